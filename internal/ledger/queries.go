package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// loanRecordSelect is the joined view every loan listing builds on.
const loanRecordSelect = `
	SELECT loans.id,
	       lenders.username AS lender,
	       borrowers.username AS borrower,
	       currencies.code AS currency_code,
	       currencies.exponent AS currency_exp,
	       currencies.symbol AS currency_symbol,
	       currencies.symbol_on_left AS currency_symbol_on_left,
	       principals.amount AS principal_minor,
	       principals.amount_usd_cents AS principal_usd_cents,
	       repayments.amount AS repaid_minor,
	       loans.created_at,
	       loans.repaid_at,
	       loans.unpaid_at,
	       infos.type AS creation_type,
	       infos.parent_fullname AS creation_parent_fullname,
	       infos.comment_fullname AS creation_comment_fullname
	FROM loans
	JOIN users lenders ON lenders.id = loans.lender_id
	JOIN users borrowers ON borrowers.id = loans.borrower_id
	JOIN moneys principals ON principals.id = loans.principal_id
	JOIN currencies ON currencies.id = principals.currency_id
	JOIN moneys repayments ON repayments.id = loans.principal_repayment_id
	LEFT JOIN loan_creation_infos infos ON infos.loan_id = loans.id`

func selectLoanRecords(ctx context.Context, q sqlx.QueryerContext, where string, args ...interface{}) ([]LoanRecord, error) {
	var rows []loanRecordRow
	if err := sqlx.SelectContext(ctx, q, &rows, loanRecordSelect+" "+where, args...); err != nil {
		return nil, fmt.Errorf("select loans: %w", err)
	}
	records := make([]LoanRecord, len(rows))
	for i, row := range rows {
		records[i] = row.toRecord()
	}
	return records, nil
}

func getLoanRecord(ctx context.Context, q sqlx.QueryerContext, where string, args ...interface{}) (*LoanRecord, error) {
	var row loanRecordRow
	err := sqlx.GetContext(ctx, q, &row, loanRecordSelect+" "+where, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get loan: %w", err)
	}
	record := row.toRecord()
	return &record, nil
}

// GetLoan returns the joined record for a loan id, or nil if it does not
// exist.
func (l *Ledger) GetLoan(ctx context.Context, q sqlx.QueryerContext, loanID int64) (*LoanRecord, error) {
	return getLoanRecord(ctx, q, `WHERE loans.id = $1`, loanID)
}

// OldestOpenLoan returns the oldest non-repaid, non-deleted loan from the
// lender to the borrower, or nil when the pair has no open loans.
func (l *Ledger) OldestOpenLoan(ctx context.Context, q sqlx.QueryerContext, lender, borrower string) (*LoanRecord, error) {
	return getLoanRecord(ctx, q, `
		WHERE lenders.username = $1
		  AND borrowers.username = $2
		  AND loans.repaid_at IS NULL
		  AND loans.deleted_at IS NULL
		ORDER BY loans.created_at ASC
		LIMIT 1`,
		strings.ToLower(lender), strings.ToLower(borrower))
}

// OpenUnmarkedLoans returns every non-repaid, non-deleted loan from the
// lender to the borrower whose unpaid_at is still null.
func (l *Ledger) OpenUnmarkedLoans(ctx context.Context, q sqlx.QueryerContext, lender, borrower string) ([]LoanRecord, error) {
	return selectLoanRecords(ctx, q, `
		WHERE lenders.username = $1
		  AND borrowers.username = $2
		  AND loans.repaid_at IS NULL
		  AND loans.unpaid_at IS NULL
		  AND loans.deleted_at IS NULL`,
		strings.ToLower(lender), strings.ToLower(borrower))
}

// LoansByIDs returns joined records for the given loan ids.
func (l *Ledger) LoansByIDs(ctx context.Context, q sqlx.QueryerContext, ids []int64) ([]LoanRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(loanRecordSelect+` WHERE loans.id IN (?) ORDER BY loans.created_at ASC`, ids)
	if err != nil {
		return nil, err
	}
	query = sqlx.Rebind(sqlx.DOLLAR, query)

	var rows []loanRecordRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select loans by ids: %w", err)
	}
	records := make([]LoanRecord, len(rows))
	for i, row := range rows {
		records[i] = row.toRecord()
	}
	return records, nil
}

// RecentOpenLoansByLender returns the lender's most recent non-repaid loans,
// newest first, used when suggesting loan ids.
func (l *Ledger) RecentOpenLoansByLender(ctx context.Context, q sqlx.QueryerContext, lender string, limit int) ([]LoanRecord, error) {
	return selectLoanRecords(ctx, q, `
		WHERE lenders.username = $1
		  AND loans.repaid_at IS NULL
		ORDER BY loans.created_at DESC
		LIMIT $2`,
		strings.ToLower(lender), limit)
}

// FindConfirmLoan returns the most recent non-repaid, non-unpaid,
// non-deleted loan from the lender to the borrower whose principal matches
// the amount: exact in the native currency, or within 100 USD minor units
// on the frozen USD reference for a cross-currency confirm.
func (l *Ledger) FindConfirmLoan(ctx context.Context, q sqlx.QueryerContext, lender, borrower string, amountMinor int64, amountCurrency string, amountUSDCents int64) (*LoanRecord, error) {
	return getLoanRecord(ctx, q, `
		WHERE lenders.username = $1
		  AND borrowers.username = $2
		  AND loans.repaid_at IS NULL
		  AND loans.unpaid_at IS NULL
		  AND loans.deleted_at IS NULL
		  AND (
		    (currencies.code = $3 AND principals.amount = $4)
		    OR ABS(principals.amount_usd_cents - $5) <= 100
		  )
		ORDER BY loans.created_at DESC
		LIMIT 1`,
		strings.ToLower(lender), strings.ToLower(borrower),
		amountCurrency, amountMinor, amountUSDCents)
}

// CountLoansForUser counts the user's non-deleted loans on either side.
func (l *Ledger) CountLoansForUser(ctx context.Context, q sqlx.QueryerContext, username string) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, q, &count, `
		SELECT COUNT(*)
		FROM loans
		JOIN users lenders ON lenders.id = loans.lender_id
		JOIN users borrowers ON borrowers.id = loans.borrower_id
		WHERE (lenders.username = $1 OR borrowers.username = $1)
		  AND loans.deleted_at IS NULL`,
		strings.ToLower(username))
	if err != nil {
		return 0, fmt.Errorf("count loans for user: %w", err)
	}
	return count, nil
}

// AllLoansForUser returns every non-deleted loan the user participates in,
// oldest first.
func (l *Ledger) AllLoansForUser(ctx context.Context, q sqlx.QueryerContext, username string) ([]LoanRecord, error) {
	return selectLoanRecords(ctx, q, `
		WHERE (lenders.username = $1 OR borrowers.username = $1)
		  AND loans.deleted_at IS NULL
		ORDER BY loans.created_at ASC`,
		strings.ToLower(username))
}

// CountPriorLoansAsLender counts the user's non-deleted loans as lender
// created before the given loan id.
func (l *Ledger) CountPriorLoansAsLender(ctx context.Context, q sqlx.QueryerContext, lenderID, beforeLoanID int64) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, q, &count, `
		SELECT COUNT(*) FROM loans
		WHERE lender_id = $1 AND id < $2 AND deleted_at IS NULL`,
		lenderID, beforeLoanID)
	if err != nil {
		return 0, fmt.Errorf("count prior loans as lender: %w", err)
	}
	return count, nil
}

// CountLoansAsLender counts the user's non-deleted loans as lender.
func (l *Ledger) CountLoansAsLender(ctx context.Context, q sqlx.QueryerContext, userID int64) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, q, &count, `
		SELECT COUNT(*) FROM loans
		WHERE lender_id = $1 AND deleted_at IS NULL`,
		userID)
	if err != nil {
		return 0, fmt.Errorf("count loans as lender: %w", err)
	}
	return count, nil
}

// CountCompletedAsLender counts the user's repaid, non-deleted loans as
// lender.
func (l *Ledger) CountCompletedAsLender(ctx context.Context, q sqlx.QueryerContext, userID int64) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, q, &count, `
		SELECT COUNT(*) FROM loans
		WHERE lender_id = $1 AND repaid_at IS NOT NULL AND deleted_at IS NULL`,
		userID)
	if err != nil {
		return 0, fmt.Errorf("count completed as lender: %w", err)
	}
	return count, nil
}

// CountUnpaidByBorrower counts the borrower's currently-unpaid, non-deleted
// loans.
func (l *Ledger) CountUnpaidByBorrower(ctx context.Context, q sqlx.QueryerContext, borrowerID int64) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, q, &count, `
		SELECT COUNT(*) FROM loans
		WHERE borrower_id = $1 AND unpaid_at IS NOT NULL AND deleted_at IS NULL`,
		borrowerID)
	if err != nil {
		return 0, fmt.Errorf("count unpaid by borrower: %w", err)
	}
	return count, nil
}

// OpenLoanWithLender pairs a joined loan record with its lender's user id.
type OpenLoanWithLender struct {
	Record   LoanRecord
	LenderID int64
}

// OpenLoansByBorrower returns the borrower's in-progress loans together
// with each lender's user id, for grouping borrower-request notices.
func (l *Ledger) OpenLoansByBorrower(ctx context.Context, q sqlx.QueryerContext, borrowerID int64) ([]OpenLoanWithLender, error) {
	var rows []struct {
		loanRecordRow
		LenderID int64 `db:"loan_lender_id"`
	}
	query := strings.Replace(
		loanRecordSelect,
		"SELECT loans.id,",
		"SELECT loans.lender_id AS loan_lender_id, loans.id,",
		1,
	) + `
		WHERE loans.borrower_id = $1
		  AND loans.repaid_at IS NULL
		  AND loans.unpaid_at IS NULL
		  AND loans.deleted_at IS NULL
		ORDER BY loans.created_at ASC`
	err := sqlx.SelectContext(ctx, q, &rows, query, borrowerID)
	if err != nil {
		return nil, fmt.Errorf("open loans by borrower: %w", err)
	}
	result := make([]OpenLoanWithLender, len(rows))
	for i, row := range rows {
		result[i] = OpenLoanWithLender{Record: row.toRecord(), LenderID: row.LenderID}
	}
	return result, nil
}
