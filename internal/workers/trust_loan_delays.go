package workers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/LoansBot/loansbot/internal/delayedqueue"
	"github.com/LoansBot/loansbot/internal/events"
	"github.com/LoansBot/loansbot/internal/ledger"
	"github.com/LoansBot/loansbot/pkg/database"
)

// TrustLoanDelaysWorker triggers deferred trust reviews. A trust loan delay
// is a moderator's request that a lender re-enter the trust queue once they
// reach a certain number of completed loans as lender.
type TrustLoanDelaysWorker struct{}

// Name implements Worker
func (w *TrustLoanDelaysWorker) Name() string {
	return "trust_loan_delays"
}

// Run implements Worker
func (w *TrustLoanDelaysWorker) Run(ctx context.Context, deps *Deps) error {
	log := deps.Logger.Named(w.Name())
	return ListenEvent(ctx, deps.Bus, events.LoansPaid, log, func(ctx context.Context, body []byte) error {
		var event events.LoanPaid
		if err := DecodeEvent(body, &event); err != nil {
			return err
		}
		return w.handleLoanPaid(ctx, deps, &event)
	})
}

func (w *TrustLoanDelaysWorker) handleLoanPaid(ctx context.Context, deps *Deps, event *events.LoanPaid) error {
	log := deps.Logger.Named(w.Name())
	lender := event.Lender
	log.Debug("detected repaid loan", zap.String("lender", lender.Username))

	var delay struct {
		ID               int64     `db:"id"`
		CompletedAtCount int       `db:"loans_completed_as_lender"`
		MinReviewAt      time.Time `db:"min_review_at"`
	}
	err := deps.DB.GetContext(ctx, &delay, `
		SELECT id, loans_completed_as_lender, min_review_at
		FROM trust_loan_delays WHERE user_id = $1`,
		lender.ID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("lender has no loan delay", zap.String("lender", lender.Username))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load trust loan delay: %w", err)
	}

	numCompleted, err := deps.Ledger.CountCompletedAsLender(ctx, deps.DB, lender.ID)
	if err != nil {
		return err
	}
	if numCompleted < delay.CompletedAtCount {
		log.Debug("loan delay threshold not reached",
			zap.String("lender", lender.Username),
			zap.Int("completed", numCompleted),
			zap.Int("threshold", delay.CompletedAtCount),
		)
		return nil
	}

	return database.Transaction(ctx, deps.DB, func(tx *sqlx.Tx) error {
		botUserID, err := ledger.FindOrCreateUser(ctx, tx, deps.Config.AppName)
		if err != nil {
			return err
		}

		comment := fmt.Sprintf(
			"/u/%s has reached %d/%d of the loans completed as lender for review and has been added back to the trust queue.",
			lender.Username, numCompleted, delay.CompletedAtCount,
		)
		_, err = tx.ExecContext(ctx, `
			INSERT INTO trust_comments (author_id, target_id, comment)
			VALUES ($1, $2, $3)`,
			botUserID, lender.ID, comment,
		)
		if err != nil {
			return fmt.Errorf("insert trust comment: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM trust_loan_delays WHERE id = $1`, delay.ID); err != nil {
			return fmt.Errorf("delete trust loan delay: %w", err)
		}

		dueAt := time.Now()
		if delay.MinReviewAt.After(dueAt) {
			dueAt = delay.MinReviewAt
		}
		err = delayedqueue.Store(ctx, tx, delayedqueue.QueueTrust, dueAt, map[string]interface{}{
			"username": lowercased(lender.Username),
		})
		if err != nil {
			return err
		}

		log.Info("loan delay triggered; lender re-queued for trust review",
			zap.String("lender", lender.Username),
			zap.Int("completed", numCompleted),
			zap.Int("threshold", delay.CompletedAtCount),
		)
		return nil
	})
}
