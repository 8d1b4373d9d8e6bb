package workers

import (
	"context"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/LoansBot/loansbot/internal/events"
	"github.com/LoansBot/loansbot/internal/responses"
	"github.com/LoansBot/loansbot/pkg/database"
)

// ModOffboardingWorker strips a departing moderator of everything but the
// default permissions, logs them out everywhere, and sends a farewell.
type ModOffboardingWorker struct{}

// Name implements Worker
func (w *ModOffboardingWorker) Name() string {
	return "mod_offboarding"
}

// Run implements Worker
func (w *ModOffboardingWorker) Run(ctx context.Context, deps *Deps) error {
	log := deps.Logger.Named(w.Name())
	return ListenEvent(ctx, deps.Bus, events.ModsRemoved, log, func(ctx context.Context, body []byte) error {
		var event events.ModChange
		if err := DecodeEvent(body, &event); err != nil {
			return err
		}
		return w.handleModRemoved(ctx, deps, &event)
	})
}

func (w *ModOffboardingWorker) handleModRemoved(ctx context.Context, deps *Deps, event *events.ModChange) error {
	log := deps.Logger.Named(w.Name())
	log.Debug("detected a moderator left", zap.String("username", event.Username))

	err := database.Transaction(ctx, deps.DB, func(tx *sqlx.Tx) error {
		return revokeModPermissions(ctx, tx, event.UserID, deps.Config.Permissions.DefaultPermission)
	})
	if err != nil {
		return err
	}

	subject, body, err := responses.GetLetter(ctx, deps.DB, farewellLetterName, map[string]interface{}{
		"username": event.Username,
	})
	if err != nil {
		return err
	}
	if err := deps.Proxy.Compose(ctx, w.Name(), deps.Version, event.Username, subject, body); err != nil {
		return err
	}

	log.Info("revoked moderator privileges and sent a farewell",
		zap.String("username", event.Username))
	return nil
}
