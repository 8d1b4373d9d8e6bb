package workers

import (
	"context"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/LoansBot/loansbot/internal/events"
	"github.com/LoansBot/loansbot/internal/ledger"
	"github.com/LoansBot/loansbot/internal/perms"
	"github.com/LoansBot/loansbot/pkg/database"
)

// DefaultPermissionsWorker assigns the configured default permissions to a
// user's human authentication method when they first claim their account.
type DefaultPermissionsWorker struct{}

// Name implements Worker
func (w *DefaultPermissionsWorker) Name() string {
	return "default_permissions"
}

// Run implements Worker
func (w *DefaultPermissionsWorker) Run(ctx context.Context, deps *Deps) error {
	log := deps.Logger.Named(w.Name())
	return ListenEvent(ctx, deps.Bus, events.UserSignup, log, func(ctx context.Context, body []byte) error {
		var event events.UserSignupEvent
		if err := DecodeEvent(body, &event); err != nil {
			return err
		}
		return w.handleUserSignup(ctx, deps, &event)
	})
}

func (w *DefaultPermissionsWorker) handleUserSignup(ctx context.Context, deps *Deps, event *events.UserSignupEvent) error {
	log := deps.Logger.Named(w.Name())
	log.Debug("detected user signup", zap.Int64("user_id", event.UserID))

	defaults := deps.Config.Permissions.DefaultPermission
	if len(defaults) == 0 {
		return nil
	}

	username, err := ledger.FindUsername(ctx, deps.DB, event.UserID)
	if err != nil {
		return err
	}

	authID, err := perms.HumanAuthID(ctx, deps.DB, event.UserID)
	if err != nil {
		return err
	}
	if authID == 0 {
		log.Warn("signup event without a human authentication",
			zap.Int64("user_id", event.UserID),
			zap.String("username", username),
		)
		return nil
	}

	err = database.Transaction(ctx, deps.DB, func(tx *sqlx.Tx) error {
		missing, err := perms.MissingPermissionIDs(ctx, tx, authID, defaults)
		if err != nil {
			return err
		}
		if len(missing) == 0 {
			return nil
		}
		return perms.GrantPermissions(ctx, tx, event.UserID, "Default permissions on signup", authID, missing)
	})
	if err != nil {
		return err
	}

	log.Info("granted default permissions",
		zap.String("username", username),
		zap.Strings("permissions", defaults),
	)
	return nil
}
