package workers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/LoansBot/loansbot/internal/perms"
)

// reaperInterval is how often expired temporary bans are collected.
const reaperInterval = 10 * time.Minute

// reaperBatchSize bounds each sweep; looping in batches avoids unbounded
// memory if a large pile of bans lapses at once.
const reaperBatchSize = 100

// TempBanReaperWorker periodically deletes lapsed temporary bans and
// flushes the affected users' permission caches so the lifted ban is
// noticed on their next interaction.
type TempBanReaperWorker struct{}

// Name implements Worker
func (w *TempBanReaperWorker) Name() string {
	return "temp_ban_expired_cache_flush"
}

// Run implements Worker
func (w *TempBanReaperWorker) Run(ctx context.Context, deps *Deps) error {
	log := deps.Logger.Named(w.Name())
	log.Debug("successfully booted up")

	return RunEvery(ctx, reaperInterval, func(ctx context.Context) error {
		return w.sweep(ctx, deps)
	})
}

func (w *TempBanReaperWorker) sweep(ctx context.Context, deps *Deps) error {
	log := deps.Logger.Named(w.Name())

	for {
		bans, err := perms.ExpiringTempBans(ctx, deps.DB, reaperBatchSize)
		if err != nil {
			return err
		}

		ids := make([]int64, 0, len(bans))
		for _, ban := range bans {
			log.Info("temporary ban expired; clearing permission cache",
				zap.String("username", ban.Username),
				zap.String("subreddit", ban.Subreddit),
				zap.Time("ends_at", ban.EndsAt),
				zap.Int64("row_id", ban.ID),
			)
			if _, err := deps.Perms.FlushCache(ctx, ban.Username); err != nil {
				return err
			}
			ids = append(ids, ban.ID)
		}

		if err := perms.DeleteTempBansByID(ctx, deps.DB, ids); err != nil {
			return err
		}

		if len(bans) < reaperBatchSize {
			return nil
		}
	}
}
