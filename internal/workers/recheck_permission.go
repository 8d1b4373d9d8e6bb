package workers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/LoansBot/loansbot/internal/events"
	"github.com/LoansBot/loansbot/internal/perms"
	"github.com/LoansBot/loansbot/internal/responses"
	"github.com/LoansBot/loansbot/pkg/database"
)

// recheckPermission is the permission this worker grants. It can be abused
// somewhat by rechecking another user's comments to spam them, hence the
// completed-loans gate.
const recheckPermission = "recheck"

// recheckMinimumCompletedLoans is the completed-loans gate for the grant.
const recheckMinimumCompletedLoans = 5

// RecheckPermissionWorker grants established lenders the permission to have
// the bot revisit comments.
type RecheckPermissionWorker struct{}

// Name implements Worker
func (w *RecheckPermissionWorker) Name() string {
	return "recheck_permission"
}

// Run implements Worker
func (w *RecheckPermissionWorker) Run(ctx context.Context, deps *Deps) error {
	log := deps.Logger.Named(w.Name())
	return ListenEvent(ctx, deps.Bus, events.LoansPaid, log, func(ctx context.Context, body []byte) error {
		var event events.LoanPaid
		if err := DecodeEvent(body, &event); err != nil {
			return err
		}
		return w.handleLoanPaid(ctx, deps, &event)
	})
}

func (w *RecheckPermissionWorker) handleLoanPaid(ctx context.Context, deps *Deps, event *events.LoanPaid) error {
	log := deps.Logger.Named(w.Name())
	lender := event.Lender
	log.Debug("detected repaid loan", zap.String("lender", lender.Username))

	var one int
	err := deps.DB.GetContext(ctx, &one,
		`SELECT 1 FROM trusts WHERE user_id = $1 AND status = $2`, lender.ID, "bad")
	if err == nil {
		log.Debug("lender has bad trust status", zap.String("lender", lender.Username))
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check trust status: %w", err)
	}

	authID, err := perms.HumanAuthID(ctx, deps.DB, lender.ID)
	if err != nil {
		return err
	}
	if authID == 0 {
		log.Debug("lender has not signed up", zap.String("lender", lender.Username))
		return nil
	}

	held, err := perms.HasPermission(ctx, deps.DB, authID, recheckPermission)
	if err != nil {
		return err
	}
	if held {
		log.Debug("lender already has recheck permission", zap.String("lender", lender.Username))
		return nil
	}

	numCompleted, err := deps.Ledger.CountCompletedAsLender(ctx, deps.DB, lender.ID)
	if err != nil {
		return err
	}
	if numCompleted < recheckMinimumCompletedLoans {
		log.Debug("lender below recheck threshold",
			zap.String("lender", lender.Username),
			zap.Int("completed", numCompleted),
		)
		return nil
	}

	err = database.Transaction(ctx, deps.DB, func(tx *sqlx.Tx) error {
		permID, err := perms.FindOrCreatePermission(ctx, tx, recheckPermission,
			"Ability to have the LoansBot revisit a comment")
		if err != nil {
			return err
		}
		return perms.GrantPermissions(ctx, tx, lender.ID,
			fmt.Sprintf("%d loans completed as lender", numCompleted),
			authID, []int64{permID})
	})
	if err != nil {
		return err
	}

	log.Info("granted recheck permission",
		zap.String("lender", lender.Username),
		zap.Int("completed", numCompleted),
	)

	subject, body, err := responses.GetLetter(ctx, deps.DB, "user_granted_recheck_pm", map[string]interface{}{
		"username": lender.Username,
	})
	if err != nil {
		return err
	}
	return deps.Proxy.Compose(ctx, w.Name(), deps.Version, lender.Username, subject, body)
}
