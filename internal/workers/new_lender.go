package workers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/LoansBot/loansbot/internal/events"
	"github.com/LoansBot/loansbot/internal/responses"
)

// NewLenderWorker messages the moderators the first time a user acts as a
// lender, so new lenders get a closer look.
type NewLenderWorker struct{}

// Name implements Worker
func (w *NewLenderWorker) Name() string {
	return "new_lender"
}

// Run implements Worker
func (w *NewLenderWorker) Run(ctx context.Context, deps *Deps) error {
	log := deps.Logger.Named(w.Name())
	return ListenEvent(ctx, deps.Bus, events.LoansCreate, log, func(ctx context.Context, body []byte) error {
		var event events.LoanCreate
		if err := DecodeEvent(body, &event); err != nil {
			return err
		}
		return w.handleLoanCreate(ctx, deps, &event)
	})
}

func (w *NewLenderWorker) handleLoanCreate(ctx context.Context, deps *Deps, event *events.LoanCreate) error {
	log := deps.Logger.Named(w.Name())
	log.Debug("detected loan",
		zap.String("lender", event.Lender.Username),
		zap.String("borrower", event.Borrower.Username),
	)

	numPrevious, err := deps.Ledger.CountPriorLoansAsLender(ctx, deps.DB, event.Lender.ID, event.LoanID)
	if err != nil {
		return err
	}
	if numPrevious > 0 {
		log.Debug("lender is not new",
			zap.String("lender", event.Lender.Username),
			zap.Int("previous_loans", numPrevious),
		)
		return nil
	}

	log.Info("first loan as lender; messaging the mods",
		zap.String("lender", event.Lender.Username),
	)

	body, err := responses.Get(ctx, deps.DB, "new_lender", map[string]interface{}{
		"lender_username":   event.Lender.Username,
		"borrower_username": event.Borrower.Username,
		"amount":            event.Amount.String(),
		"permalink":         event.Permalink,
	})
	if err != nil {
		return err
	}

	return deps.Proxy.Compose(ctx, w.Name(), deps.Version,
		"/r/"+deps.Config.Reddit.PrimarySubreddit(),
		fmt.Sprintf("New Lender: /u/%s", event.Lender.Username),
		body,
	)
}
