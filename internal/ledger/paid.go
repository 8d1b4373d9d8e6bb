package ledger

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/LoansBot/loansbot/internal/money"
)

// MultiRepaymentResult captures the before/after snapshots of every loan a
// multi-loan repayment touched, for the reply tables.
type MultiRepaymentResult struct {
	Before []LoanRecord
	After  []LoanRecord
	// Completed lists the per-loan repayment results whose loans became
	// fully repaid, for publishing loans.paid events after commit
	Completed []RepaymentResult
	// Remaining is whatever could not be applied, in the given currency
	Remaining money.Money
}

// ApplyMultiLoanRepayment repeatedly selects the oldest non-repaid,
// non-deleted loan from the lender to the borrower and applies the
// remaining amount to it, rolling funds over oldest-first. It stops when
// the remainder hits zero, the pair runs out of open loans, or an
// application makes no progress.
func (l *Ledger) ApplyMultiLoanRepayment(ctx context.Context, tx *sqlx.Tx, lender, borrower string, amount money.Money) (*MultiRepaymentResult, error) {
	result := &MultiRepaymentResult{Remaining: amount}

	remaining := amount
	for remaining.Minor > 0 {
		loanBefore, err := l.OldestOpenLoan(ctx, tx, lender, borrower)
		if err != nil {
			return nil, err
		}
		if loanBefore == nil {
			break
		}

		priorMinor := remaining.Minor
		applied, err := l.ApplyRepayment(ctx, tx, loanBefore.ID, remaining)
		if err != nil {
			return nil, err
		}
		remaining = applied.Remaining

		loanAfter, err := l.GetLoan(ctx, tx, loanBefore.ID)
		if err != nil {
			return nil, err
		}
		if loanAfter == nil {
			// The loan vanished mid-application; stop propagating early.
			result.Before = append(result.Before, *loanBefore)
			break
		}

		if priorMinor <= remaining.Minor {
			// Sanity check to prevent loops
			break
		}
		result.Before = append(result.Before, *loanBefore)
		result.After = append(result.After, *loanAfter)
		if applied.BecameRepaid {
			result.Completed = append(result.Completed, *applied)
		}
	}

	result.Remaining = remaining
	return result, nil
}
