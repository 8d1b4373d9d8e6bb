package workers

import (
	"context"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/LoansBot/loansbot/internal/events"
	"github.com/LoansBot/loansbot/internal/ledger"
	"github.com/LoansBot/loansbot/internal/perms"
	"github.com/LoansBot/loansbot/internal/responses"
	"github.com/LoansBot/loansbot/pkg/database"
)

// ModOnboardingClaimWorker finishes onboarding when a moderator claims
// their account after the invitation: the mod permission set is granted to
// the freshly created authentication method.
type ModOnboardingClaimWorker struct{}

// Name implements Worker
func (w *ModOnboardingClaimWorker) Name() string {
	return "mod_onboarding_claim"
}

// Run implements Worker
func (w *ModOnboardingClaimWorker) Run(ctx context.Context, deps *Deps) error {
	log := deps.Logger.Named(w.Name())
	return ListenEvent(ctx, deps.Bus, events.UserSignup, log, func(ctx context.Context, body []byte) error {
		var event events.UserSignupEvent
		if err := DecodeEvent(body, &event); err != nil {
			return err
		}
		return w.handleAccountClaimed(ctx, deps, &event)
	})
}

func (w *ModOnboardingClaimWorker) handleAccountClaimed(ctx context.Context, deps *Deps, event *events.UserSignupEvent) error {
	log := deps.Logger.Named(w.Name())
	log.Debug("detected account claim", zap.Int64("user_id", event.UserID))

	isMod, err := isModerator(ctx, deps.DB, event.UserID)
	if err != nil {
		return err
	}
	if !isMod {
		return nil
	}

	username, err := ledger.FindUsername(ctx, deps.DB, event.UserID)
	if err != nil {
		return err
	}
	log.Debug("moderator just claimed their account", zap.String("username", username))

	authID, err := perms.HumanAuthID(ctx, deps.DB, event.UserID)
	if err != nil {
		return err
	}
	if authID == 0 {
		log.Warn("claim event without a human authentication", zap.String("username", username))
		return nil
	}

	err = database.Transaction(ctx, deps.DB, func(tx *sqlx.Tx) error {
		if err := grantModPermissions(ctx, tx, event.UserID, authID); err != nil {
			return err
		}
		return storeLetterMessage(ctx, tx, event.UserID, claimedLetterName)
	})
	if err != nil {
		return err
	}

	subject, body, err := responses.GetLetter(ctx, deps.DB, claimedLetterName, map[string]interface{}{
		"username": username,
	})
	if err != nil {
		return err
	}
	if err := deps.Proxy.Compose(ctx, w.Name(), deps.Version, username, subject, body); err != nil {
		return err
	}

	log.Info("granted permissions to claiming moderator and sent a greeting",
		zap.String("username", username))
	return nil
}
