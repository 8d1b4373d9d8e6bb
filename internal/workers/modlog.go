package workers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/LoansBot/loansbot/internal/events"
	"github.com/LoansBot/loansbot/pkg/cache"
)

// lastActionAtKey stores the created_at of the newest modlog action seen.
const lastActionAtKey = "loansbot_runners_modlog_last_action_at"

// modlogScanInterval is how often the moderator log is polled.
const modlogScanInterval = time.Hour

// producerActions are the modlog actions re-published onto the events
// exchange for the cache-flush and mod-change subscribers.
var producerActions = map[string]bool{
	"banuser":               true,
	"unbanuser":             true,
	"acceptmoderatorinvite": true,
	"removemoderator":       true,
	"addcontributor":        true,
	"removecontributor":     true,
}

// ModlogWorker periodically scans the moderator log and publishes the
// interesting actions onto modlog.<action>. This keeps permission caches
// from scaling poorly as unique users accumulate.
type ModlogWorker struct{}

// Name implements Worker
func (w *ModlogWorker) Name() string {
	return "modlog"
}

// Run implements Worker
func (w *ModlogWorker) Run(ctx context.Context, deps *Deps) error {
	log := deps.Logger.Named(w.Name())
	log.Debug("successfully booted up")

	return RunEvery(ctx, modlogScanInterval, func(ctx context.Context) error {
		return w.scan(ctx, deps)
	})
}

func (w *ModlogWorker) scan(ctx context.Context, deps *Deps) error {
	log := deps.Logger.Named(w.Name())
	log.Debug("scanning for new moderator actions")

	var lastSeen float64
	raw, err := deps.Cache.Get(ctx, lastActionAtKey)
	if err != nil && !errors.Is(err, cache.ErrMiss) {
		return err
	}
	if err == nil {
		lastSeen, _ = strconv.ParseFloat(string(raw), 64)
	}

	newLastSeen := lastSeen
	after := ""
	for {
		actions, nextAfter, err := deps.Proxy.Modlog(
			ctx, w.Name(), deps.Version, deps.Config.Reddit.Subreddits, after)
		if err != nil {
			return err
		}

		finished := nextAfter == ""
		for _, action := range actions {
			if lastSeen != 0 && action.CreatedAt <= lastSeen {
				finished = true
				break
			}
			if producerActions[action.Action] {
				log.Info("publishing modlog action",
					zap.String("action", action.Action),
					zap.String("mod", action.Mod),
					zap.String("target", action.TargetAuthor),
				)
				if err := deps.Bus.Publish(ctx, events.ModlogPrefix+action.Action, action); err != nil {
					return err
				}
			}
			if action.CreatedAt > newLastSeen {
				newLastSeen = action.CreatedAt
			}
		}

		if finished || len(actions) == 0 {
			break
		}
		after = nextAfter
	}

	if newLastSeen != 0 {
		value := strconv.FormatFloat(newLastSeen, 'f', -1, 64)
		if err := deps.Cache.Set(ctx, lastActionAtKey, []byte(value), 0); err != nil {
			return err
		}
	}
	return nil
}
