package workers

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/LoansBot/loansbot/internal/ledger"
	"github.com/LoansBot/loansbot/internal/parsing"
	"github.com/LoansBot/loansbot/internal/perms"
	"github.com/LoansBot/loansbot/internal/redditproxy"
	"github.com/LoansBot/loansbot/pkg/database"
)

// permsRelatedActions maps each interesting modlog action to the field
// naming the user whose permission cache must be flushed.
var permsRelatedActions = map[string]func(*redditproxy.ModAction) string{
	"banuser":               func(a *redditproxy.ModAction) string { return a.TargetAuthor },
	"unbanuser":             func(a *redditproxy.ModAction) string { return a.TargetAuthor },
	"acceptmoderatorinvite": func(a *redditproxy.ModAction) string { return a.Mod },
	"removemoderator":       func(a *redditproxy.ModAction) string { return a.TargetAuthor },
	"addcontributor":        func(a *redditproxy.ModAction) string { return a.TargetAuthor },
	"removecontributor":     func(a *redditproxy.ModAction) string { return a.TargetAuthor },
}

// ModlogCacheFlushWorker listens to modlog events and flushes the affected
// users' permission snapshots, so moderator actions propagate faster than
// the cache TTL. Temporary bans are also tracked here so the reaper can
// flush again when they lapse.
type ModlogCacheFlushWorker struct{}

// Name implements Worker
func (w *ModlogCacheFlushWorker) Name() string {
	return "modlog_cache_flush"
}

// Run implements Worker
func (w *ModlogCacheFlushWorker) Run(ctx context.Context, deps *Deps) error {
	log := deps.Logger.Named(w.Name())
	return ListenEvent(ctx, deps.Bus, "modlog.*", log, func(ctx context.Context, body []byte) error {
		var action redditproxy.ModAction
		if err := DecodeEvent(body, &action); err != nil {
			return err
		}
		return w.handleAction(ctx, deps, &action)
	})
}

func (w *ModlogCacheFlushWorker) handleAction(ctx context.Context, deps *Deps, action *redditproxy.ModAction) error {
	log := deps.Logger.Named(w.Name())

	usernameFor, ok := permsRelatedActions[action.Action]
	if !ok {
		return nil
	}
	username := usernameFor(action)
	if username == "" {
		log.Debug("modlog action without a username",
			zap.String("action", action.Action),
			zap.String("mod", action.Mod),
		)
		return nil
	}

	log.Info("flushing permission cache after modlog action",
		zap.String("action", action.Action),
		zap.String("mod", action.Mod),
		zap.String("target", username),
	)
	if _, err := deps.Perms.FlushCache(ctx, username); err != nil {
		return err
	}

	switch action.Action {
	case "banuser":
		return w.handleBan(ctx, deps, action, username)
	case "unbanuser":
		return w.clearTempBans(ctx, deps, username, action.Subreddit)
	}
	return nil
}

// handleBan replaces any tracked temporary ban for the user on the
// subreddit with the one described by the action details. Permanent bans
// only clear prior temporary rows.
func (w *ModlogCacheFlushWorker) handleBan(ctx context.Context, deps *Deps, action *redditproxy.ModAction, username string) error {
	log := deps.Logger.Named(w.Name())

	if err := w.clearTempBans(ctx, deps, username, action.Subreddit); err != nil {
		return err
	}
	if strings.EqualFold(action.Details, "permanent") {
		return nil
	}

	duration, err := parsing.ParseTemporaryBan(action.Details)
	if err != nil {
		log.Warn("unparseable ban details",
			zap.String("details", action.Details),
			zap.Error(err),
		)
		return nil
	}

	var userID int64
	err = database.Transaction(ctx, deps.DB, func(tx *sqlx.Tx) error {
		var err error
		userID, err = ledger.FindOrCreateUser(ctx, tx, username)
		return err
	})
	if err != nil {
		return err
	}

	log.Info("tracking temporary ban",
		zap.String("username", username),
		zap.String("subreddit", action.Subreddit),
		zap.Duration("duration", duration),
	)
	return perms.InsertTempBan(ctx, deps.DB, userID, action.Mod, action.Subreddit, duration)
}

func (w *ModlogCacheFlushWorker) clearTempBans(ctx context.Context, deps *Deps, username, subreddit string) error {
	userID, err := ledger.FindUserID(ctx, deps.DB, username)
	if err != nil {
		return err
	}
	if userID == 0 {
		return nil
	}
	return perms.DeleteTempBans(ctx, deps.DB, userID, subreddit)
}
