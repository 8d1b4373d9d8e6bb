package workers

import (
	"context"

	"go.uber.org/zap"

	"github.com/LoansBot/loansbot/internal/events"
)

// completedFlairCSSClass is the flair applied to threads that produced a
// loan.
const completedFlairCSSClass = "991c8042-3ecc-11e4-8052-12313d05258a"

// FlairLoanThreadsWorker flairs the originating thread completed whenever a
// loan is created.
type FlairLoanThreadsWorker struct{}

// Name implements Worker
func (w *FlairLoanThreadsWorker) Name() string {
	return "flair_loan_threads_completed"
}

// Run implements Worker
func (w *FlairLoanThreadsWorker) Run(ctx context.Context, deps *Deps) error {
	log := deps.Logger.Named(w.Name())
	return ListenEvent(ctx, deps.Bus, events.LoansCreate, log, func(ctx context.Context, body []byte) error {
		var event events.LoanCreate
		if err := DecodeEvent(body, &event); err != nil {
			return err
		}

		log.Debug("flairing thread completed",
			zap.String("link_fullname", event.Comment.LinkFullname),
			zap.String("subreddit", event.Comment.Subreddit),
		)
		err := deps.Proxy.FlairLink(ctx, w.Name(), deps.Version,
			event.Comment.Subreddit, event.Comment.LinkFullname, completedFlairCSSClass)
		if err != nil {
			return err
		}
		log.Info("flaired thread as completed", zap.String("permalink", event.Permalink))
		return nil
	})
}
