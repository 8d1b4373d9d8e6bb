package ledger

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LoansBot/loansbot/internal/money"
)

func sampleLoan() LoanRecord {
	created := time.Date(2020, time.March, 14, 12, 0, 0, 0, time.UTC)
	return LoanRecord{
		ID:              42,
		Lender:          "alice",
		Borrower:        "bob",
		Principal:       money.New(10000, "USD").Displayed(),
		PrincipalUSD:    10000,
		PrincipalRepaid: money.New(2500, "USD").Displayed(),
		Permalink:       Permalink("t3_abc", "t1_def"),
		CreatedAt:       created,
	}
}

func TestFormatLoanTable(t *testing.T) {
	loan := sampleLoan()
	table := FormatLoanTable([]LoanRecord{loan}, false)

	lines := strings.Split(table, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t,
		"Lender|Borrower|Amount Given|Amount Repaid|Unpaid?|Original Thread|Date Given|Date Paid Back",
		lines[0])
	assert.Equal(t, ":--|:--|:--|:--|:--|:--|:--|:--", lines[1])
	assert.Equal(t,
		"alice|bob|$100.00|$25.00||https://www.reddit.com/comments/abc/redditloans/def|Mar 14, 2020|",
		lines[2])
}

func TestFormatLoanTableWithIDAndUnpaid(t *testing.T) {
	loan := sampleLoan()
	unpaidAt := loan.CreatedAt.Add(30 * 24 * time.Hour)
	loan.UnpaidAt = &unpaidAt

	table := FormatLoanTable([]LoanRecord{loan}, true)
	lines := strings.Split(table, "\n")
	assert.True(t, strings.HasPrefix(lines[0], "Id|"))
	assert.True(t, strings.HasPrefix(lines[2], "42|"))
	assert.Contains(t, lines[2], "***UNPAID***")
}

func TestFormatLoanSummaryEmptyBuckets(t *testing.T) {
	summary := &Summary{
		Username: "alice",
		Counts: map[string]BucketCount{
			PaidAsLender:         {NumberOfLoans: 1, PrincipalUSDCents: 10000},
			PaidAsBorrower:       {},
			UnpaidAsLender:       {},
			UnpaidAsBorrower:     {},
			InProgressAsLender:   {},
			InProgressAsBorrower: {},
		},
		Shown: map[string][]LoanRecord{},
	}

	formatted := FormatLoanSummary(summary)
	assert.Contains(t, formatted,
		"/u/alice has taken out and paid back 0 loans, for a total of $0.00")
	assert.Contains(t, formatted,
		"/u/alice has given out and gotten returned 1 loan, for a total of $100.00")
	assert.Contains(t, formatted,
		"/u/alice has not received any loans which are currently marked unpaid")
	assert.Contains(t, formatted,
		"/u/alice does not have any outstanding loans as a lender")
}

func TestFormatLoanSummaryOmittedAnnotation(t *testing.T) {
	summary := &Summary{
		Username: "bob",
		Counts: map[string]BucketCount{
			PaidAsLender:         {},
			PaidAsBorrower:       {},
			UnpaidAsLender:       {},
			UnpaidAsBorrower:     {},
			InProgressAsLender:   {},
			InProgressAsBorrower: {NumberOfLoans: 9, PrincipalUSDCents: 90000},
		},
		Shown: map[string][]LoanRecord{
			InProgressAsBorrower: {sampleLoan(), sampleLoan()},
		},
	}

	formatted := FormatLoanSummary(summary)
	assert.Contains(t, formatted, "In-progress loans with /u/bob as borrower (9 loans, $900.00)")
	assert.Contains(t, formatted, "(**7 loans omitted from the table**)")
}

func TestPermalink(t *testing.T) {
	assert.Equal(t,
		"https://www.reddit.com/comments/abc/redditloans/def",
		Permalink("t3_abc", "t1_def"))
}
