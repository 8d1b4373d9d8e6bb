package workers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/LoansBot/loansbot/pkg/logger"
)

// commentScanInterval is how often the scanner polls for new comments.
const commentScanInterval = 60 * time.Second

// CommentsWorker periodically scans for new comments in the relevant
// subreddits and dispatches them through the summon registry.
type CommentsWorker struct{}

// Name implements Worker
func (w *CommentsWorker) Name() string {
	return "comments"
}

// Run implements Worker
func (w *CommentsWorker) Run(ctx context.Context, deps *Deps) error {
	log := deps.Logger.Named(w.Name())
	log.Debug("successfully booted up")

	d := newDispatcher(deps, w.Name())
	return RunEvery(ctx, commentScanInterval, func(ctx context.Context) error {
		return w.scan(ctx, deps, d, log)
	})
}

// scan walks the newest-first comment pages. Once every fullname on a page
// is already known, older pages are known too by induction, so the scan
// stops without fetching them.
func (w *CommentsWorker) scan(ctx context.Context, deps *Deps, d *dispatcher, log *logger.Logger) error {
	log.Debug("scanning for new comments")
	after := ""

	for {
		comments, nextAfter, err := deps.Proxy.SubredditComments(
			ctx, w.Name(), deps.Version, deps.Config.Reddit.Subreddits, after)
		if err != nil {
			return err
		}
		if len(comments) == 0 {
			log.Debug("found no more comments")
			return nil
		}

		fullnames := make([]string, len(comments))
		for i, comment := range comments {
			fullnames[i] = comment.Fullname
		}
		seen, err := d.knownFullnames(ctx, fullnames)
		if err != nil {
			return err
		}

		numToFind := len(fullnames) - len(seen)
		log.Debug("found new comments", zap.Int("count", numToFind))
		if numToFind == 0 {
			return nil
		}

		for _, comment := range comments {
			if seen[comment.Fullname] {
				continue
			}
			comment := comment
			if err := d.HandleComment(ctx, &comment, true); err != nil {
				return err
			}
			numToFind--
			if numToFind <= 0 {
				break
			}
		}

		// A page with any known fullname means older pages are known too.
		if len(seen) > 0 || nextAfter == "" {
			return nil
		}
		after = nextAfter
	}
}
