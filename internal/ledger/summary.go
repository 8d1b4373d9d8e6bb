package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Summary bucket keys
const (
	PaidAsLender         = "paid_as_lender"
	PaidAsBorrower       = "paid_as_borrower"
	UnpaidAsLender       = "unpaid_as_lender"
	UnpaidAsBorrower     = "unpaid_as_borrower"
	InProgressAsLender   = "inprogress_as_lender"
	InProgressAsBorrower = "inprogress_as_borrower"
)

// SummaryBuckets lists the buckets in presentation order.
var SummaryBuckets = []string{
	PaidAsLender, PaidAsBorrower,
	UnpaidAsLender, UnpaidAsBorrower,
	InProgressAsLender, InProgressAsBorrower,
}

// shownLoansPerBucket bounds the representative loans attached to each
// non-paid bucket.
const shownLoansPerBucket = 7

// BucketCount is the aggregate for one summary bucket.
type BucketCount struct {
	NumberOfLoans     int   `db:"number_of_loans"`
	PrincipalUSDCents int64 `db:"principal_usd_cents"`
}

// Summary is the bucketed view of a user's history: aggregates per bucket,
// plus up to seven representative loans from the last year for the
// non-paid buckets, newest first.
type Summary struct {
	Username string
	Counts   map[string]BucketCount
	Shown    map[string][]LoanRecord
}

func bucketConditions(bucket string) (role string, state string) {
	switch bucket {
	case PaidAsLender:
		return "lenders", "loans.repaid_at IS NOT NULL"
	case PaidAsBorrower:
		return "borrowers", "loans.repaid_at IS NOT NULL"
	case UnpaidAsLender:
		return "lenders", "loans.unpaid_at IS NOT NULL"
	case UnpaidAsBorrower:
		return "borrowers", "loans.unpaid_at IS NOT NULL"
	case InProgressAsLender:
		return "lenders", "loans.repaid_at IS NULL AND loans.unpaid_at IS NULL"
	case InProgressAsBorrower:
		return "borrowers", "loans.repaid_at IS NULL AND loans.unpaid_at IS NULL"
	}
	panic("ledger: unknown summary bucket " + bucket)
}

// GetSummaryInfo computes the six-bucket summary for a user.
func (l *Ledger) GetSummaryInfo(ctx context.Context, q sqlx.QueryerContext, username string) (*Summary, error) {
	lowered := strings.ToLower(username)
	summary := &Summary{
		Username: username,
		Counts:   make(map[string]BucketCount, len(SummaryBuckets)),
		Shown:    make(map[string][]LoanRecord, len(SummaryBuckets)),
	}

	for _, bucket := range SummaryBuckets {
		role, state := bucketConditions(bucket)

		var count BucketCount
		err := sqlx.GetContext(ctx, q, &count, fmt.Sprintf(`
			SELECT COUNT(*) AS number_of_loans,
			       COALESCE(SUM(principals.amount_usd_cents), 0) AS principal_usd_cents
			FROM loans
			JOIN users %s ON %s.id = loans.%s_id
			JOIN moneys principals ON principals.id = loans.principal_id
			WHERE %s.username = $1
			  AND loans.deleted_at IS NULL
			  AND %s`,
			role, role, strings.TrimSuffix(role, "s"), role, state),
			lowered,
		)
		if err != nil {
			return nil, fmt.Errorf("summary bucket %s: %w", bucket, err)
		}
		summary.Counts[bucket] = count

		if bucket == PaidAsLender || bucket == PaidAsBorrower {
			continue
		}

		shown, err := selectLoanRecords(ctx, q, fmt.Sprintf(`
			WHERE %s.username = $1
			  AND loans.deleted_at IS NULL
			  AND %s
			  AND loans.created_at > NOW() - INTERVAL '1 year'
			ORDER BY loans.created_at DESC
			LIMIT $2`,
			role, state),
			lowered, shownLoansPerBucket,
		)
		if err != nil {
			return nil, fmt.Errorf("summary shown %s: %w", bucket, err)
		}
		summary.Shown[bucket] = shown
	}

	return summary, nil
}

// GetAndFormatAllOrSummary renders the user's full loan table when they
// have fewer than threshold loans, otherwise the bucketed summary.
func (l *Ledger) GetAndFormatAllOrSummary(ctx context.Context, q sqlx.QueryerContext, username string, threshold int) (string, error) {
	count, err := l.CountLoansForUser(ctx, q, username)
	if err != nil {
		return "", err
	}

	if count < threshold {
		loans, err := l.AllLoansForUser(ctx, q, username)
		if err != nil {
			return "", err
		}
		return FormatLoanTable(loans, false), nil
	}

	summary, err := l.GetSummaryInfo(ctx, q, username)
	if err != nil {
		return "", err
	}
	return FormatLoanSummary(summary), nil
}
