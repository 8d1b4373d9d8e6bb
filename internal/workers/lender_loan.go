package workers

import (
	"context"

	"go.uber.org/zap"

	"github.com/LoansBot/loansbot/internal/events"
	"github.com/LoansBot/loansbot/internal/responses"
)

// LenderLoanWorker watches for borrowers who have themselves acted as
// lenders. The mods are alerted, and the borrower loses their approved
// submitter status on the lenders subreddit unless they moderate it.
type LenderLoanWorker struct{}

// Name implements Worker
func (w *LenderLoanWorker) Name() string {
	return "lender_loan"
}

// Run implements Worker
func (w *LenderLoanWorker) Run(ctx context.Context, deps *Deps) error {
	log := deps.Logger.Named(w.Name())
	return ListenEvent(ctx, deps.Bus, events.LoansCreate, log, func(ctx context.Context, body []byte) error {
		var event events.LoanCreate
		if err := DecodeEvent(body, &event); err != nil {
			return err
		}
		return w.handleLoanCreated(ctx, deps, &event)
	})
}

func (w *LenderLoanWorker) handleLoanCreated(ctx context.Context, deps *Deps, event *events.LoanCreate) error {
	log := deps.Logger.Named(w.Name())
	borrower := event.Borrower.Username
	log.Debug("detected loan received",
		zap.String("borrower", borrower),
		zap.String("lender", event.Lender.Username),
	)

	numAsLender, err := deps.Ledger.CountLoansAsLender(ctx, deps.DB, event.Borrower.ID)
	if err != nil {
		return err
	}
	if numAsLender == 0 {
		log.Debug("borrower has no loans as lender", zap.String("borrower", borrower))
		return nil
	}

	loansTable, err := deps.Ledger.GetAndFormatAllOrSummary(ctx, deps.DB, borrower, 5)
	if err != nil {
		return err
	}
	params := map[string]interface{}{
		"lender_username":   event.Lender.Username,
		"borrower_username": borrower,
		"loan_id":           event.LoanID,
		"loans_table":       loansTable,
	}

	info, err := deps.Perms.FetchInfo(ctx, borrower, w.Name(), deps.Version)
	if err != nil {
		return err
	}
	if info == nil {
		return nil
	}
	if info.Moderator {
		log.Debug("ignoring moderator receiving a loan", zap.String("borrower", borrower))
		return nil
	}

	primary := "/r/" + deps.Config.Reddit.PrimarySubreddit()

	if info.ApprovedSubmitter {
		log.Debug("approved submitter who lent before received a loan; pm only",
			zap.String("borrower", borrower))
		subject, err := responses.Get(ctx, deps.DB, "approved_lender_received_loan_modmail_pm_title", params)
		if err != nil {
			return err
		}
		body, err := responses.Get(ctx, deps.DB, "approved_lender_received_loan_modmail_pm_body", params)
		if err != nil {
			return err
		}
		return deps.Proxy.Compose(ctx, w.Name(), deps.Version, primary, subject, body)
	}

	subject, err := responses.Get(ctx, deps.DB, "lender_received_loan_modmail_pm_title", params)
	if err != nil {
		return err
	}
	body, err := responses.Get(ctx, deps.DB, "lender_received_loan_modmail_pm_body", params)
	if err != nil {
		return err
	}
	if err := deps.Proxy.Compose(ctx, w.Name(), deps.Version, primary, subject, body); err != nil {
		return err
	}

	lenders := deps.Config.Reddit.LendersSubreddit
	isModerator, err := deps.Proxy.UserIsModerator(ctx, w.Name(), deps.Version, lenders, borrower)
	if err != nil {
		return err
	}
	if isModerator {
		log.Debug("not removing contributor status; they moderate the lenders subreddit",
			zap.String("borrower", borrower))
		return nil
	}

	isApproved, err := deps.Proxy.UserIsApproved(ctx, w.Name(), deps.Version, lenders, borrower)
	if err != nil {
		return err
	}
	if !isApproved {
		log.Info("alerted mods; borrower was already not a contributor",
			zap.String("borrower", borrower))
		return nil
	}

	if err := deps.Proxy.DisapproveUser(ctx, w.Name(), deps.Version, lenders, borrower); err != nil {
		return err
	}
	log.Info("alerted mods about lender-gone-borrower and removed submission rights",
		zap.String("borrower", borrower))
	return nil
}
