package ledger

import (
	"fmt"
	"strings"

	"github.com/LoansBot/loansbot/internal/money"
)

// FormatLoanTable formats the loans into a markdown pipe table. With
// includeID the table leads with the loan id column.
func FormatLoanTable(loans []LoanRecord, includeID bool) string {
	header := "Lender|Borrower|Amount Given|Amount Repaid|Unpaid?|Original Thread|Date Given|Date Paid Back"
	divider := ":--|:--|:--|:--|:--|:--|:--|:--"
	if includeID {
		header = "Id|" + header
		divider = ":--|" + divider
	}

	lines := []string{header, divider}
	for _, loan := range loans {
		unpaid := ""
		if loan.UnpaidAt != nil {
			unpaid = "***UNPAID***"
		}
		repaidAt := ""
		if loan.RepaidAt != nil {
			repaidAt = loan.RepaidAt.Format("Jan 02, 2006")
		}

		cells := []string{
			loan.Lender,
			loan.Borrower,
			loan.Principal.String(),
			loan.PrincipalRepaid.String(),
			unpaid,
			loan.Permalink,
			loan.CreatedAt.Format("Jan 02, 2006"),
			repaidAt,
		}
		if includeID {
			cells = append([]string{fmt.Sprintf("%d", loan.ID)}, cells...)
		}
		lines = append(lines, strings.Join(cells, "|"))
	}

	return strings.Join(lines, "\n")
}

func plural(n int) string {
	if n != 1 {
		return "s"
	}
	return ""
}

func usdTotal(cents int64) string {
	return money.Money{Minor: cents, Currency: "USD", Exp: 2, Symbol: "$", SymbolOnLeft: true}.String()
}

// FormatLoanSummary formats the bucketed summary for a user. It
// deliberately omits some loans and splits them by category; more verbose
// for users with very few loans, but much more usable for users with many.
func FormatLoanSummary(summary *Summary) string {
	username := summary.Username

	blocks := []string{
		fmt.Sprintf(
			"/u/%s has taken out and paid back %d loan%s, for a total of %s",
			username,
			summary.Counts[PaidAsBorrower].NumberOfLoans,
			plural(summary.Counts[PaidAsBorrower].NumberOfLoans),
			usdTotal(summary.Counts[PaidAsBorrower].PrincipalUSDCents),
		),
		fmt.Sprintf(
			"/u/%s has given out and gotten returned %d loan%s, for a total of %s",
			username,
			summary.Counts[PaidAsLender].NumberOfLoans,
			plural(summary.Counts[PaidAsLender].NumberOfLoans),
			usdTotal(summary.Counts[PaidAsLender].PrincipalUSDCents),
		),
	}

	sections := []struct {
		bucket     string
		emptyFmt   string
		tableTitle string
		adjective  string
	}{
		{
			UnpaidAsBorrower,
			"/u/%s has not received any loans which are currently marked unpaid",
			"Loans unpaid with /u/%s as borrower",
			"unpaid as a borrower",
		},
		{
			UnpaidAsLender,
			"/u/%s has not given any loans which are currently marked unpaid",
			"Loans unpaid with /u/%s as lender",
			"unpaid as a lender",
		},
		{
			InProgressAsBorrower,
			"/u/%s does not have any outstanding loans as a borrower",
			"In-progress loans with /u/%s as borrower",
			"inprogress as a borrower",
		},
		{
			InProgressAsLender,
			"/u/%s does not have any outstanding loans as a lender",
			"In-progress loans with /u/%s as lender",
			"inprogress as a lender",
		},
	}

	for _, section := range sections {
		count := summary.Counts[section.bucket]
		shown := summary.Shown[section.bucket]

		if count.NumberOfLoans == 0 {
			blocks = append(blocks, fmt.Sprintf(section.emptyFmt, username))
		} else if len(shown) > 0 {
			extra := ""
			if missing := count.NumberOfLoans - len(shown); missing > 0 {
				extra = fmt.Sprintf(" (**%d loan%s omitted from the table**)", missing, plural(missing))
			}
			blocks = append(blocks, fmt.Sprintf(
				"%s (%d loan%s, %s)%s:",
				fmt.Sprintf(section.tableTitle, username),
				count.NumberOfLoans,
				plural(count.NumberOfLoans),
				usdTotal(count.PrincipalUSDCents),
				extra,
			))
			blocks = append(blocks, FormatLoanTable(shown, false))
		} else {
			blocks = append(blocks, fmt.Sprintf(
				"/u/%s has **%d loan%s %s**, for a total of %s",
				username,
				count.NumberOfLoans,
				plural(count.NumberOfLoans),
				section.adjective,
				usdTotal(count.PrincipalUSDCents),
			))
		}
	}

	return strings.Join(blocks, "\n\n")
}
