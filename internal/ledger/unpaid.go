package ledger

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// MarkUnpaidResult describes the loans a delinquency marking touched.
type MarkUnpaidResult struct {
	// Before holds the affected loans as they were prior to marking
	Before []LoanRecord
	// After holds the same loans re-read after marking
	After []LoanRecord
	// EventIDs are the created loan_unpaid_events rows, one per loan
	EventIDs []int64
}

// MarkUnpaid atomically sets unpaid_at on every non-repaid, non-deleted
// loan from the lender to the borrower whose unpaid_at is null, appending
// one unpaid event per affected loan. Zero open loans marks nothing and
// emits no events.
func (l *Ledger) MarkUnpaid(ctx context.Context, tx *sqlx.Tx, lender, borrower string) (*MarkUnpaidResult, error) {
	before, err := l.OpenUnmarkedLoans(ctx, tx, lender, borrower)
	if err != nil {
		return nil, err
	}
	if len(before) == 0 {
		return &MarkUnpaidResult{}, nil
	}

	ids := make([]int64, len(before))
	for i, loan := range before {
		ids[i] = loan.ID
	}

	query, args, err := sqlx.In(`UPDATE loans SET unpaid_at = NOW() WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, sqlx.Rebind(sqlx.DOLLAR, query), args...); err != nil {
		return nil, fmt.Errorf("mark loans unpaid: %w", err)
	}

	eventIDs := make([]int64, 0, len(ids))
	for _, id := range ids {
		var eventID int64
		err := tx.GetContext(ctx, &eventID,
			`INSERT INTO loan_unpaid_events (loan_id, unpaid) VALUES ($1, TRUE) RETURNING id`,
			id,
		)
		if err != nil {
			return nil, fmt.Errorf("insert unpaid event: %w", err)
		}
		eventIDs = append(eventIDs, eventID)
	}

	after, err := l.LoansByIDs(ctx, tx, ids)
	if err != nil {
		return nil, err
	}

	return &MarkUnpaidResult{Before: before, After: after, EventIDs: eventIDs}, nil
}
