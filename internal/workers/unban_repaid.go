package workers

import (
	"context"

	"go.uber.org/zap"

	"github.com/LoansBot/loansbot/internal/events"
)

// UnbanRepaidWorker lifts a borrower's ban once they have repaid the last
// of their unpaid loans.
type UnbanRepaidWorker struct{}

// Name implements Worker
func (w *UnbanRepaidWorker) Name() string {
	return "unban_repaid"
}

// Run implements Worker
func (w *UnbanRepaidWorker) Run(ctx context.Context, deps *Deps) error {
	log := deps.Logger.Named(w.Name())
	return ListenEvent(ctx, deps.Bus, events.LoansPaid, log, func(ctx context.Context, body []byte) error {
		var event events.LoanPaid
		if err := DecodeEvent(body, &event); err != nil {
			return err
		}
		return w.handleLoanPaid(ctx, deps, &event)
	})
}

func (w *UnbanRepaidWorker) handleLoanPaid(ctx context.Context, deps *Deps, event *events.LoanPaid) error {
	log := deps.Logger.Named(w.Name())
	borrower := event.Borrower.Username
	log.Debug("detected repaid loan", zap.String("borrower", borrower))

	if !event.WasUnpaid {
		return nil
	}

	info, err := deps.Perms.FetchInfo(ctx, borrower, w.Name(), deps.Version)
	if err != nil {
		return err
	}
	if info == nil || !info.Banned {
		log.Debug("borrower repaid but is not banned", zap.String("borrower", borrower))
		return nil
	}

	remaining, err := deps.Ledger.CountUnpaidByBorrower(ctx, deps.DB, event.Borrower.ID)
	if err != nil {
		return err
	}
	if remaining > 0 {
		log.Debug("borrower still has unpaid loans",
			zap.String("borrower", borrower),
			zap.Int("remaining", remaining),
		)
		return nil
	}

	primary := deps.Config.Reddit.PrimarySubreddit()
	if err := deps.Proxy.UnbanUser(ctx, w.Name(), deps.Version, primary, borrower); err != nil {
		return err
	}
	if _, err := deps.Perms.FlushCache(ctx, borrower); err != nil {
		return err
	}
	log.Info("unbanned borrower; repaid all outstanding unpaid loans",
		zap.String("borrower", borrower),
	)
	return nil
}
