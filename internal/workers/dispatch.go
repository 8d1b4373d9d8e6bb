package workers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/LoansBot/loansbot/internal/redditproxy"
	"github.com/LoansBot/loansbot/internal/summons"
	"github.com/LoansBot/loansbot/pkg/signals"
)

// dispatcher runs comments through the summon registry with the access
// gate applied, recording handled fullnames when dedupe is on.
type dispatcher struct {
	deps     *Deps
	summons  []summons.Summon
	workerID string
}

func newDispatcher(deps *Deps, workerID string) *dispatcher {
	return &dispatcher{
		deps:     deps,
		summons:  summons.Registry(),
		workerID: workerID,
	}
}

// HandleComment gates the comment on can-interact, picks the first summon
// whose MightApply accepts it, and runs the handler inside a
// signals-delayed critical section. With dedupe the fullname is recorded in
// the same section regardless of the handler's outcome, so a poison comment
// is never retried. Handler failures are logged and swallowed; the comment
// still counts as handled.
func (d *dispatcher) HandleComment(ctx context.Context, comment *redditproxy.Comment, dedupe bool) error {
	log := d.deps.Logger.Named(d.workerID)
	log.Debug("checking comment", zap.String("fullname", comment.Fullname))

	var summonToUse summons.Summon
	allowed, err := d.deps.Perms.CanInteract(ctx, comment.Author, d.workerID, d.deps.Version)
	if err != nil {
		return err
	}
	if allowed {
		for _, summon := range d.summons {
			if summon.MightApply(comment) {
				summonToUse = summon
				break
			}
		}
	} else if !d.deps.Config.Permissions.IsIgnored(comment.Author) {
		// No log for users ignored via the env var; they are usually us
		// or other bots.
		log.Info("using no summons; insufficient access",
			zap.String("fullname", comment.Fullname),
			zap.String("author", comment.Author),
		)
	}

	summonDeps := &summons.Deps{
		DB:     d.deps.DB,
		Ledger: d.deps.Ledger,
		Bus:    d.deps.Bus,
		Proxy:  d.deps.Proxy,
		Logger: log,
	}

	return signals.Run(func() error {
		if summonToUse != nil {
			log.Debug("using summon",
				zap.String("summon", summonToUse.Name()),
				zap.String("fullname", comment.Fullname),
			)
			if err := summonToUse.Handle(ctx, summonDeps, comment, d.workerID, d.deps.Version); err != nil {
				log.Warn("summon failed",
					zap.String("summon", summonToUse.Name()),
					zap.String("fullname", comment.Fullname),
					zap.Error(err),
				)
			}
		}

		if dedupe {
			_, err := d.deps.DB.ExecContext(ctx,
				`INSERT INTO handled_fullnames (fullname) VALUES ($1)`,
				comment.Fullname,
			)
			if err != nil {
				return fmt.Errorf("record handled fullname: %w", err)
			}
		}
		return nil
	})
}

// knownFullnames returns the subset of fullnames already recorded as
// handled.
func (d *dispatcher) knownFullnames(ctx context.Context, fullnames []string) (map[string]bool, error) {
	if len(fullnames) == 0 {
		return map[string]bool{}, nil
	}
	query, args, err := sqlxIn(`SELECT fullname FROM handled_fullnames WHERE fullname IN (?)`, fullnames)
	if err != nil {
		return nil, err
	}

	var known []string
	if err := d.deps.DB.SelectContext(ctx, &known, query, args...); err != nil {
		return nil, fmt.Errorf("select handled fullnames: %w", err)
	}

	seen := make(map[string]bool, len(known))
	for _, fullname := range known {
		seen[fullname] = true
	}
	return seen, nil
}
