package workers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/LoansBot/loansbot/internal/events"
	"github.com/LoansBot/loansbot/pkg/cache"
)

// lastModSyncKey stores when moderators were last synced, in UTC seconds.
const lastModSyncKey = "runners/mod_sync/last_check_at"

// modSyncInterval is how often the moderator lists are polled and diffed.
const modSyncInterval = 7 * 24 * time.Hour

// ModSyncWorker periodically fetches the moderator list per subreddit,
// diffs it against the local moderators table, and emits mods.added /
// mods.removed so membership converges even when modlog events were missed.
type ModSyncWorker struct{}

// Name implements Worker
func (w *ModSyncWorker) Name() string {
	return "mod_sync"
}

// Run implements Worker
func (w *ModSyncWorker) Run(ctx context.Context, deps *Deps) error {
	log := deps.Logger.Named(w.Name())
	log.Debug("successfully booted up")

	for {
		lastCheckAt, err := w.lastCheckAt(ctx, deps)
		if err != nil {
			return err
		}

		now := time.Now()
		if lastCheckAt != nil {
			elapsed := now.Sub(*lastCheckAt)
			if elapsed < modSyncInterval {
				select {
				case <-time.After(modSyncInterval - elapsed):
				case <-ctx.Done():
					return nil
				}
				continue
			}
		}

		if err := w.sync(ctx, deps); err != nil {
			return err
		}
		value := strconv.FormatFloat(float64(now.Unix()), 'f', -1, 64)
		if err := deps.Cache.Set(ctx, lastModSyncKey, []byte(value), 0); err != nil {
			return err
		}
	}
}

func (w *ModSyncWorker) lastCheckAt(ctx context.Context, deps *Deps) (*time.Time, error) {
	raw, err := deps.Cache.Get(ctx, lastModSyncKey)
	if errors.Is(err, cache.ErrMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	seconds, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return nil, nil
	}
	t := time.Unix(int64(seconds), 0)
	return &t, nil
}

// sync fetches the moderator list from reddit, diffs with who we know
// about, and uses that diff to update our list.
func (w *ModSyncWorker) sync(ctx context.Context, deps *Deps) error {
	log := deps.Logger.Named(w.Name())

	current := map[string]bool{}
	for _, subreddit := range deps.Config.Reddit.Subreddits {
		mods, fetched, err := deps.Proxy.SubredditModerators(ctx, w.Name(), deps.Version, subreddit)
		if err != nil {
			return err
		}
		if !fetched {
			log.Info("could not fetch subreddit moderators; not syncing",
				zap.String("subreddit", subreddit))
			return nil
		}
		for _, username := range mods {
			current[strings.ToLower(username)] = true
		}
	}

	usernames := make([]string, 0, len(current))
	for username := range current {
		usernames = append(usernames, username)
	}

	var local []string
	if len(usernames) > 0 {
		query, args, err := sqlxIn(`
			SELECT users.username FROM moderators
			JOIN users ON users.id = moderators.user_id
			WHERE users.username IN (?)`, usernames)
		if err != nil {
			return err
		}
		if err := deps.DB.SelectContext(ctx, &local, query, args...); err != nil {
			return fmt.Errorf("list known moderators: %w", err)
		}
	}
	known := make(map[string]bool, len(local))
	for _, username := range local {
		known[username] = true
	}

	var removed []string
	err := deps.DB.SelectContext(ctx, &removed, `
		SELECT users.username FROM moderators
		JOIN users ON users.id = moderators.user_id`)
	if err != nil {
		return fmt.Errorf("list all moderators: %w", err)
	}

	for _, username := range removed {
		if current[username] {
			continue
		}
		log.Info("detected a moderator is gone", zap.String("username", username))

		var removedUserID int64
		err := deps.DB.GetContext(ctx, &removedUserID, `
			DELETE FROM moderators
			USING users
			WHERE users.id = moderators.user_id AND users.username = $1
			RETURNING users.id`,
			username,
		)
		if err != nil {
			return fmt.Errorf("remove moderator %s: %w", username, err)
		}
		err = deps.Bus.Publish(ctx, events.ModsRemoved, events.ModChange{
			Username: username, UserID: removedUserID,
		})
		if err != nil {
			return err
		}
	}

	for username := range current {
		if known[username] {
			continue
		}
		log.Info("detected a new moderator", zap.String("username", username))

		var addedUserID int64
		err := deps.DB.GetContext(ctx, &addedUserID, `
			INSERT INTO moderators (user_id)
			SELECT id FROM users WHERE username = $1
			RETURNING user_id`,
			username,
		)
		if errors.Is(err, sql.ErrNoRows) {
			// Never referenced before; they'll sync once they interact.
			continue
		}
		if err != nil {
			return fmt.Errorf("add moderator %s: %w", username, err)
		}
		err = deps.Bus.Publish(ctx, events.ModsAdded, events.ModChange{
			Username: username, UserID: addedUserID,
		})
		if err != nil {
			return err
		}
	}

	return nil
}
