package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/LoansBot/loansbot/internal/money"
)

// RepaymentResult describes the outcome of applying money toward a loan.
type RepaymentResult struct {
	// EventID is the primary key of the created loan_repayment_events row
	EventID int64
	// LoanID is the loan the repayment applied to
	LoanID int64
	// Principal is the loan's full principal, in the loan currency
	Principal money.Money
	// Applied is how much was applied toward the loan, in the loan currency
	Applied money.Money
	// AppliedUSD is the applied amount in USD minor units, computed with
	// the loan's frozen creation-time rate
	AppliedUSD int64
	// Remaining is the part of the given amount that exceeded the open
	// principal, in the currency the amount was given in
	Remaining money.Money
	// BecameRepaid is true when this application completed the loan
	BecameRepaid bool
	// WasUnpaid is true when the loan had been marked unpaid before this
	// application completed it
	WasUnpaid bool
	// LenderID and BorrowerID identify the parties, for event publishing
	LenderID   int64
	BorrowerID int64
}

type repaymentLoanRow struct {
	LoanID            int64        `db:"loan_id"`
	LenderID          int64        `db:"lender_id"`
	BorrowerID        int64        `db:"borrower_id"`
	UnpaidAt          sql.NullTime `db:"unpaid_at"`
	CurrencyID        int64        `db:"currency_id"`
	CurrencyCode      string       `db:"currency_code"`
	CurrencyExp       int          `db:"currency_exp"`
	CurrencySymbol    string       `db:"currency_symbol"`
	CurrencySymLeft   bool         `db:"currency_symbol_on_left"`
	PrincipalMinor    int64        `db:"principal_minor"`
	PrincipalUSDCents int64        `db:"principal_usd_cents"`
	RepaidMinor       int64        `db:"repaid_minor"`
}

// ApplyRepayment applies up to the given amount of money toward the loan,
// converting into the loan currency when necessary. It returns how much was
// applied (loan currency) and how much of the given amount is left over
// (given currency). For consistency the USD value of every repayment uses
// the same loan-to-USD rate as when the loan was created.
//
// The writes run in the supplied transaction, which the caller commits;
// concurrent applications to the same loan serialize on the row lock.
func (l *Ledger) ApplyRepayment(ctx context.Context, tx *sqlx.Tx, loanID int64, amount money.Money) (*RepaymentResult, error) {
	if amount.Minor <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrNonPositiveAmount, amount)
	}

	var loan repaymentLoanRow
	err := tx.GetContext(ctx, &loan, `
		SELECT loans.id AS loan_id,
		       loans.lender_id,
		       loans.borrower_id,
		       loans.unpaid_at,
		       currencies.id AS currency_id,
		       currencies.code AS currency_code,
		       currencies.exponent AS currency_exp,
		       currencies.symbol AS currency_symbol,
		       currencies.symbol_on_left AS currency_symbol_on_left,
		       principals.amount AS principal_minor,
		       principals.amount_usd_cents AS principal_usd_cents,
		       repayments.amount AS repaid_minor
		FROM loans
		JOIN moneys principals ON principals.id = loans.principal_id
		JOIN currencies ON currencies.id = principals.currency_id
		JOIN moneys repayments ON repayments.id = loans.principal_repayment_id
		WHERE loans.id = $1
		FOR UPDATE OF loans`,
		loanID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id=%d", ErrLoanNotFound, loanID)
	}
	if err != nil {
		return nil, fmt.Errorf("load loan %d: %w", loanID, err)
	}

	if loan.PrincipalMinor == loan.RepaidMinor {
		return nil, fmt.Errorf("%w: id=%d", ErrLoanAlreadyRepaid, loanID)
	}

	rateLoanToUSD := float64(loan.PrincipalMinor) / float64(loan.PrincipalUSDCents)

	sameCurrency := loan.CurrencyCode == amount.Currency
	rateGivenToLoan := 1.0
	if !sameCurrency {
		rateGivenToLoan, err = l.fx.Convert(ctx, amount.Currency, loan.CurrencyCode)
		if err != nil {
			return nil, err
		}
	}

	split := splitRepayment(
		loan.PrincipalMinor, loan.RepaidMinor,
		amount.Minor, sameCurrency, rateGivenToLoan, rateLoanToUSD,
	)

	applied := money.Money{
		Minor:        split.AppliedMinor,
		Currency:     loan.CurrencyCode,
		Exp:          loan.CurrencyExp,
		Symbol:       loan.CurrencySymbol,
		SymbolOnLeft: loan.CurrencySymLeft,
	}
	var remaining money.Money
	if sameCurrency {
		remaining = applied
		remaining.Minor = split.RemainingMinor
	} else {
		remaining = amount
		remaining.Minor = split.RemainingMinor
	}

	appliedMoneyID, err := InsertMoney(ctx, tx, loan.CurrencyID, split.AppliedMinor, split.AppliedUSD)
	if err != nil {
		return nil, err
	}

	var eventID int64
	err = tx.GetContext(ctx, &eventID,
		`INSERT INTO loan_repayment_events (loan_id, repayment_id)
		 VALUES ($1, $2) RETURNING id`,
		loanID, appliedMoneyID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert repayment event: %w", err)
	}

	// The running total is a freshly inserted row; the prior row stays
	// untouched so repayment history survives as a DAG of money rows.
	newRepaid := loan.RepaidMinor + split.AppliedMinor
	newRepaidUSD := int64(math.Ceil(float64(newRepaid) / rateLoanToUSD))
	newRepaidID, err := InsertMoney(ctx, tx, loan.CurrencyID, newRepaid, newRepaidUSD)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE loans SET principal_repayment_id = $1 WHERE id = $2`,
		newRepaidID, loanID,
	)
	if err != nil {
		return nil, fmt.Errorf("update principal repayment: %w", err)
	}

	principal := applied
	principal.Minor = loan.PrincipalMinor

	result := &RepaymentResult{
		EventID:    eventID,
		LoanID:     loanID,
		Principal:  principal,
		Applied:    applied,
		AppliedUSD: split.AppliedUSD,
		Remaining:  remaining,
		LenderID:   loan.LenderID,
		BorrowerID: loan.BorrowerID,
	}

	if newRepaid == loan.PrincipalMinor {
		result.BecameRepaid = true
		result.WasUnpaid = loan.UnpaidAt.Valid

		_, err = tx.ExecContext(ctx,
			`UPDATE loans SET repaid_at = NOW(), unpaid_at = NULL WHERE id = $1`,
			loanID,
		)
		if err != nil {
			return nil, fmt.Errorf("mark loan repaid: %w", err)
		}

		if result.WasUnpaid {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO loan_unpaid_events (loan_id, unpaid) VALUES ($1, FALSE)`,
				loanID,
			)
			if err != nil {
				return nil, fmt.Errorf("insert unpaid clearing event: %w", err)
			}
		}
	}

	return result, nil
}

type repaymentSplit struct {
	// AppliedMinor is in the loan currency
	AppliedMinor int64
	// AppliedUSD uses the loan's frozen creation rate
	AppliedUSD int64
	// RemainingMinor is in the loan currency when the amount was given in
	// it, otherwise in the given currency
	RemainingMinor int64
}

// splitRepayment computes how much of the given amount applies to the open
// principal and how much rolls over, without touching storage.
func splitRepayment(principalMinor, repaidMinor, amountMinor int64, sameCurrency bool, rateGivenToLoan, rateLoanToUSD float64) repaymentSplit {
	amountInLoanCcy := amountMinor
	if !sameCurrency {
		amountInLoanCcy = decimal.NewFromInt(amountMinor).
			Mul(decimal.NewFromFloat(rateGivenToLoan)).
			Ceil().
			IntPart()
	}

	open := principalMinor - repaidMinor
	applied := amountInLoanCcy
	if open < applied {
		applied = open
	}
	appliedUSD := int64(math.Ceil(float64(applied) / rateLoanToUSD))

	var remaining int64
	if sameCurrency {
		remaining = amountMinor - applied
	} else {
		appliedInGiven := int64(math.Ceil(float64(applied) / rateGivenToLoan))
		remaining = amountMinor - appliedInGiven
		if remaining < 0 {
			remaining = 0
		}
	}

	return repaymentSplit{
		AppliedMinor:   applied,
		AppliedUSD:     appliedUSD,
		RemainingMinor: remaining,
	}
}
