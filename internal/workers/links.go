package workers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/LoansBot/loansbot/internal/events"
	"github.com/LoansBot/loansbot/internal/redditproxy"
	"github.com/LoansBot/loansbot/internal/request"
	"github.com/LoansBot/loansbot/internal/responses"
	"github.com/LoansBot/loansbot/pkg/signals"
)

// linkScanInterval is how often the scanner polls for new submissions.
const linkScanInterval = 120 * time.Second

// LinksWorker periodically scans for new request threads, interprets their
// titles, publishes loans.request events and replies with the author's
// history.
type LinksWorker struct{}

// Name implements Worker
func (w *LinksWorker) Name() string {
	return "links"
}

// Run implements Worker
func (w *LinksWorker) Run(ctx context.Context, deps *Deps) error {
	log := deps.Logger.Named(w.Name())
	log.Debug("successfully booted up")

	d := newDispatcher(deps, w.Name())
	return RunEvery(ctx, linkScanInterval, func(ctx context.Context) error {
		return w.scan(ctx, deps, d)
	})
}

func (w *LinksWorker) scan(ctx context.Context, deps *Deps, d *dispatcher) error {
	log := deps.Logger.Named(w.Name())
	log.Debug("scanning for new links")
	after := ""

	for {
		selfPosts, urlPosts, nextAfter, err := deps.Proxy.SubredditLinks(
			ctx, w.Name(), deps.Version, deps.Config.Reddit.Subreddits, after)
		if err != nil {
			return err
		}
		if len(selfPosts) == 0 && len(urlPosts) == 0 {
			log.Debug("found no more links")
			return nil
		}

		posts := append(append([]redditproxy.Post{}, selfPosts...), urlPosts...)
		fullnames := make([]string, len(posts))
		for i, post := range posts {
			fullnames[i] = post.Fullname
		}
		seen, err := d.knownFullnames(ctx, fullnames)
		if err != nil {
			return err
		}

		numToFind := len(fullnames) - len(seen)
		log.Debug("found new links", zap.Int("count", numToFind))
		if numToFind == 0 {
			return nil
		}

		for _, post := range selfPosts {
			if seen[post.Fullname] {
				continue
			}
			post := post
			if err := w.handleSelfPost(ctx, deps, &post); err != nil {
				return err
			}
			numToFind--
			if numToFind <= 0 {
				break
			}
		}
		if numToFind > 0 {
			for _, post := range urlPosts {
				if seen[post.Fullname] {
					continue
				}
				if err := w.recordHandled(ctx, deps, post.Fullname); err != nil {
					return err
				}
				numToFind--
				if numToFind <= 0 {
					break
				}
			}
		}

		if nextAfter == "" {
			return nil
		}
		after = nextAfter
	}
}

// handleSelfPost interprets the request title, publishes loans.request and
// replies with the author's summary, then records the fullname. The
// critical section covers the reply and the dedupe insert.
func (w *LinksWorker) handleSelfPost(ctx context.Context, deps *Deps, post *redditproxy.Post) error {
	log := deps.Logger.Named(w.Name())

	return signals.Run(func() error {
		allowed, err := deps.Perms.CanInteract(ctx, post.Author, w.Name(), deps.Version)
		if err != nil {
			return err
		}
		if allowed {
			interpreted := request.Interpret(post.Title)
			err = deps.Bus.Publish(ctx, events.LoansRequest, events.LoanRequestEvent{
				Post:    *post,
				Request: interpreted,
			})
			if err != nil {
				return err
			}

			summary, err := deps.Ledger.GetAndFormatAllOrSummary(ctx, deps.DB, post.Author, 5)
			if err != nil {
				return err
			}
			formatted, err := responses.Get(ctx, deps.DB, "request_thread", map[string]interface{}{
				"author_username": post.Author,
				"report":          summary,
			})
			if err != nil {
				return err
			}
			if err := deps.Proxy.PostComment(ctx, w.Name(), deps.Version, post.Fullname, formatted); err != nil {
				return err
			}
			log.Info("handled request thread",
				zap.String("author", post.Author),
				zap.String("fullname", post.Fullname),
			)
		}

		return w.recordHandled(ctx, deps, post.Fullname)
	})
}

func (w *LinksWorker) recordHandled(ctx context.Context, deps *Deps, fullname string) error {
	_, err := deps.DB.ExecContext(ctx,
		`INSERT INTO handled_fullnames (fullname) VALUES ($1)`, fullname)
	if err != nil {
		return fmt.Errorf("record handled fullname: %w", err)
	}
	return nil
}
