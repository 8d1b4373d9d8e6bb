package workers

import (
	"context"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/LoansBot/loansbot/internal/events"
	"github.com/LoansBot/loansbot/internal/perms"
	"github.com/LoansBot/loansbot/internal/responses"
	"github.com/LoansBot/loansbot/pkg/database"
)

// Letter names used by the onboarding workers.
const (
	greetingLetterName  = "mod_onboarding_greeting"
	unclaimedLetterName = "mod_onboarding_unclaimed"
	claimedLetterName   = "mod_onboarding_claim_greeting"
	farewellLetterName  = "mod_offboarding_farewell"
)

// ModOnboardingWorker grants new moderators their website permissions and
// greets them, or invites them to claim their account first.
type ModOnboardingWorker struct{}

// Name implements Worker
func (w *ModOnboardingWorker) Name() string {
	return "mod_onboarding"
}

// Run implements Worker
func (w *ModOnboardingWorker) Run(ctx context.Context, deps *Deps) error {
	log := deps.Logger.Named(w.Name())
	return ListenEvent(ctx, deps.Bus, events.ModsAdded, log, func(ctx context.Context, body []byte) error {
		var event events.ModChange
		if err := DecodeEvent(body, &event); err != nil {
			return err
		}
		return w.handleModAdded(ctx, deps, &event)
	})
}

func (w *ModOnboardingWorker) handleModAdded(ctx context.Context, deps *Deps, event *events.ModChange) error {
	log := deps.Logger.Named(w.Name())
	log.Debug("detected a new moderator", zap.String("username", event.Username))

	authID, err := perms.HumanAuthID(ctx, deps.DB, event.UserID)
	if err != nil {
		return err
	}

	letter := greetingLetterName
	if authID == 0 {
		log.Debug("moderator has not claimed their account", zap.String("username", event.Username))
		letter = unclaimedLetterName
	}

	subject, body, err := responses.GetLetter(ctx, deps.DB, letter, map[string]interface{}{
		"username": event.Username,
	})
	if err != nil {
		return err
	}

	err = database.Transaction(ctx, deps.DB, func(tx *sqlx.Tx) error {
		if authID != 0 {
			if err := grantModPermissions(ctx, tx, event.UserID, authID); err != nil {
				return err
			}
		}
		return storeLetterMessage(ctx, tx, event.UserID, letter)
	})
	if err != nil {
		return err
	}

	if err := deps.Proxy.Compose(ctx, w.Name(), deps.Version, event.Username, subject, body); err != nil {
		return err
	}

	if authID == 0 {
		log.Info("invited new moderator to claim their account",
			zap.String("username", event.Username))
	} else {
		log.Info("granted permissions to new moderator and sent a greeting",
			zap.String("username", event.Username))
	}
	return nil
}
