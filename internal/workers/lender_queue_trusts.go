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
	"github.com/LoansBot/loansbot/internal/responses"
	"github.com/LoansBot/loansbot/pkg/database"
)

// trustThresholdLoans is the number of completed-as-lender loans at which a
// lender without a trust entry gets queued for vetting.
const trustThresholdLoans = 15

// LenderQueueTrustsWorker initializes an unknown trust status and adds a
// lender to the trust queue when they cross the completed-loans threshold.
type LenderQueueTrustsWorker struct{}

// Name implements Worker
func (w *LenderQueueTrustsWorker) Name() string {
	return "lender_queue_trusts"
}

// Run implements Worker
func (w *LenderQueueTrustsWorker) Run(ctx context.Context, deps *Deps) error {
	log := deps.Logger.Named(w.Name())
	return ListenEvent(ctx, deps.Bus, events.LoansPaid, log, func(ctx context.Context, body []byte) error {
		var event events.LoanPaid
		if err := DecodeEvent(body, &event); err != nil {
			return err
		}
		return w.handleLoanPaid(ctx, deps, &event)
	})
}

func (w *LenderQueueTrustsWorker) handleLoanPaid(ctx context.Context, deps *Deps, event *events.LoanPaid) error {
	log := deps.Logger.Named(w.Name())
	lender := event.Lender
	log.Debug("detected payment toward a lender's loan", zap.String("lender", lender.Username))

	// Re-check state rather than assuming first delivery; events are
	// at-least-once.
	var one int
	err := deps.DB.GetContext(ctx, &one,
		`SELECT 1 FROM trusts WHERE user_id = $1`, lender.ID)
	if err == nil {
		log.Debug("lender already has a trust entry", zap.String("lender", lender.Username))
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check trust entry: %w", err)
	}

	numCompleted, err := deps.Ledger.CountCompletedAsLender(ctx, deps.DB, lender.ID)
	if err != nil {
		return err
	}
	if numCompleted < trustThresholdLoans {
		log.Debug("lender below trust threshold",
			zap.String("lender", lender.Username),
			zap.Int("completed", numCompleted),
		)
		return nil
	}

	err = database.Transaction(ctx, deps.DB, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO trusts (user_id, status, reason) VALUES ($1, $2, $3)`,
			lender.ID, "unknown", "Vetting required",
		)
		if err != nil {
			return fmt.Errorf("insert trust entry: %w", err)
		}
		return delayedqueue.Store(ctx, tx, delayedqueue.QueueTrust, time.Now(), map[string]interface{}{
			"username": lowercased(lender.Username),
		})
	})
	if err != nil {
		return err
	}

	log.Info("lender queued for trust vetting",
		zap.String("lender", lender.Username),
		zap.Int("completed", numCompleted),
	)

	subject, body, err := responses.GetLetter(ctx, deps.DB, "queue_trust_pm", map[string]interface{}{
		"username": lender.Username,
	})
	if err != nil {
		return err
	}
	return deps.Proxy.Compose(ctx, w.Name(), deps.Version,
		"/r/"+deps.Config.Reddit.PrimarySubreddit(), subject, body)
}
