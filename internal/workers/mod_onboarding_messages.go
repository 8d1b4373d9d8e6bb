package workers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/LoansBot/loansbot/internal/responses"
	"github.com/LoansBot/loansbot/pkg/database"
)

// ModOnboardingMessagesWorker sends each moderator one sequenced onboarding
// letter per day until they have received every letter. 13:30 UTC is 6:30AM
// PST / 9:30AM EST; the half hour avoids colliding with deprecated_alerts.
type ModOnboardingMessagesWorker struct{}

// Name implements Worker
func (w *ModOnboardingMessagesWorker) Name() string {
	return "mod_onboarding_messages"
}

// Run implements Worker
func (w *ModOnboardingMessagesWorker) Run(ctx context.Context, deps *Deps) error {
	log := deps.Logger.Named(w.Name())
	log.Debug("successfully booted up")

	return RunDailyAt(ctx, 13, 30, func(ctx context.Context) error {
		return w.sendMessages(ctx, deps)
	})
}

func (w *ModOnboardingMessagesWorker) sendMessages(ctx context.Context, deps *Deps) error {
	log := deps.Logger.Named(w.Name())
	log.Debug("sending moderator onboarding messages")

	var maxOrder sql.NullInt64
	err := deps.DB.GetContext(ctx, &maxOrder,
		`SELECT MAX(msg_order) FROM mod_onboarding_messages`)
	if err != nil {
		return fmt.Errorf("max letter order: %w", err)
	}
	if !maxOrder.Valid {
		log.Debug("there are no moderator onboarding messages")
		return nil
	}

	var mods []struct {
		UserID   int64         `db:"user_id"`
		ModID    int64         `db:"mod_id"`
		Username string        `db:"username"`
		MsgOrder sql.NullInt64 `db:"msg_order"`
	}
	err = deps.DB.SelectContext(ctx, &mods, `
		SELECT users.id AS user_id,
		       moderators.id AS mod_id,
		       users.username,
		       mod_onboarding_progress.msg_order
		FROM moderators
		JOIN users ON users.id = moderators.user_id
		LEFT JOIN mod_onboarding_progress
		  ON mod_onboarding_progress.moderator_id = moderators.id
		WHERE mod_onboarding_progress.msg_order IS NULL
		   OR mod_onboarding_progress.msg_order < $1`,
		maxOrder.Int64,
	)
	if err != nil {
		return fmt.Errorf("list moderators behind on letters: %w", err)
	}

	for _, mod := range mods {
		var letter struct {
			MsgOrder  int64  `db:"msg_order"`
			TitleID   int64  `db:"title_id"`
			TitleName string `db:"title_name"`
			BodyID    int64  `db:"body_id"`
			BodyName  string `db:"body_name"`
		}
		err := deps.DB.GetContext(ctx, &letter, `
			SELECT mod_onboarding_messages.msg_order,
			       titles.id AS title_id,
			       titles.name AS title_name,
			       bodies.id AS body_id,
			       bodies.name AS body_name
			FROM mod_onboarding_messages
			JOIN responses titles ON titles.id = mod_onboarding_messages.title_id
			JOIN responses bodies ON bodies.id = mod_onboarding_messages.body_id
			WHERE $1::bigint IS NULL OR mod_onboarding_messages.msg_order > $1
			ORDER BY mod_onboarding_messages.msg_order ASC
			LIMIT 1`,
			mod.MsgOrder,
		)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return fmt.Errorf("next letter for %s: %w", mod.Username, err)
		}

		params := map[string]interface{}{"username": mod.Username}
		title, err := responses.Get(ctx, deps.DB, letter.TitleName, params)
		if err != nil {
			return err
		}
		body, err := responses.Get(ctx, deps.DB, letter.BodyName, params)
		if err != nil {
			return err
		}

		if err := deps.Proxy.Compose(ctx, w.Name(), deps.Version, mod.Username, title, body); err != nil {
			return err
		}

		mod := mod
		err = database.Transaction(ctx, deps.DB, func(tx *sqlx.Tx) error {
			err := storeLetterMessageWithIDs(ctx, tx, mod.UserID,
				letter.TitleID, letter.TitleName, letter.BodyID, letter.BodyName)
			if err != nil {
				return err
			}
			if mod.MsgOrder.Valid {
				_, err = tx.ExecContext(ctx, `
					UPDATE mod_onboarding_progress
					SET msg_order = $1, updated_at = NOW()
					WHERE moderator_id = $2`,
					letter.MsgOrder, mod.ModID,
				)
			} else {
				_, err = tx.ExecContext(ctx, `
					INSERT INTO mod_onboarding_progress (moderator_id, msg_order)
					VALUES ($1, $2)`,
					mod.ModID, letter.MsgOrder,
				)
			}
			return err
		})
		if err != nil {
			return err
		}

		log.Info("sent moderator onboarding message",
			zap.String("username", mod.Username),
			zap.Int64("msg_order", letter.MsgOrder),
		)
	}

	return nil
}
