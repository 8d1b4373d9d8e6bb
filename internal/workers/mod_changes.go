package workers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/LoansBot/loansbot/internal/events"
	"github.com/LoansBot/loansbot/internal/ledger"
	"github.com/LoansBot/loansbot/internal/redditproxy"
	"github.com/LoansBot/loansbot/pkg/database"
)

// ModChangesWorker keeps the moderators table in sync with modlog events
// and publishes mods.added / mods.removed for the onboarding workers.
type ModChangesWorker struct{}

// Name implements Worker
func (w *ModChangesWorker) Name() string {
	return "mod_changes"
}

// Run implements Worker
func (w *ModChangesWorker) Run(ctx context.Context, deps *Deps) error {
	log := deps.Logger.Named(w.Name())
	return ListenEvent(ctx, deps.Bus, "modlog.*", log, func(ctx context.Context, body []byte) error {
		var action redditproxy.ModAction
		if err := DecodeEvent(body, &action); err != nil {
			return err
		}
		return w.handleAction(ctx, deps, &action)
	})
}

func (w *ModChangesWorker) handleAction(ctx context.Context, deps *Deps, action *redditproxy.ModAction) error {
	log := deps.Logger.Named(w.Name())

	switch action.Action {
	case "acceptmoderatorinvite":
		username := action.Mod
		var userID int64
		err := database.Transaction(ctx, deps.DB, func(tx *sqlx.Tx) error {
			var err error
			userID, err = ledger.FindOrCreateUser(ctx, tx, username)
			return err
		})
		if err != nil {
			return err
		}

		// Membership is re-tested so redelivered events stay idempotent.
		isMod, err := isModerator(ctx, deps.DB, userID)
		if err != nil {
			return err
		}
		if isMod {
			return nil
		}
		if _, err := deps.DB.ExecContext(ctx,
			`INSERT INTO moderators (user_id) VALUES ($1)`, userID); err != nil {
			return fmt.Errorf("add moderator: %w", err)
		}
		log.Info("detected a new moderator", zap.String("username", username))
		return deps.Bus.Publish(ctx, events.ModsAdded, events.ModChange{
			Username: username, UserID: userID,
		})

	case "removemoderator":
		username := action.TargetAuthor
		userID, err := ledger.FindUserID(ctx, deps.DB, username)
		if err != nil {
			return err
		}
		if userID == 0 {
			return nil
		}
		isMod, err := isModerator(ctx, deps.DB, userID)
		if err != nil {
			return err
		}
		if !isMod {
			return nil
		}
		if _, err := deps.DB.ExecContext(ctx,
			`DELETE FROM moderators WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("remove moderator: %w", err)
		}
		log.Info("detected a moderator left", zap.String("username", username))
		return deps.Bus.Publish(ctx, events.ModsRemoved, events.ModChange{
			Username: username, UserID: userID,
		})
	}
	return nil
}

func isModerator(ctx context.Context, q sqlx.QueryerContext, userID int64) (bool, error) {
	var one int
	err := sqlx.GetContext(ctx, q, &one,
		`SELECT 1 FROM moderators WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check moderator: %w", err)
	}
	return true, nil
}
