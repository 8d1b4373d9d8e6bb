package workers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/LoansBot/loansbot/internal/events"
	"github.com/LoansBot/loansbot/internal/responses"
)

// BanUnpaidWorker listens for loans getting marked unpaid and bans the
// delinquent borrower on the primary subreddit.
type BanUnpaidWorker struct{}

// Name implements Worker
func (w *BanUnpaidWorker) Name() string {
	return "ban_unpaid"
}

// Run implements Worker
func (w *BanUnpaidWorker) Run(ctx context.Context, deps *Deps) error {
	log := deps.Logger.Named(w.Name())
	return ListenEvent(ctx, deps.Bus, events.LoansUnpaid, log, func(ctx context.Context, body []byte) error {
		var event events.LoanUnpaid
		if err := DecodeEvent(body, &event); err != nil {
			return err
		}
		return w.handleLoanUnpaid(ctx, deps, &event)
	})
}

func (w *BanUnpaidWorker) handleLoanUnpaid(ctx context.Context, deps *Deps, event *events.LoanUnpaid) error {
	log := deps.Logger.Named(w.Name())
	log.Debug("detected loan unpaid event", zap.Int64("event_id", event.LoanUnpaidEventID))

	var row struct {
		Borrower string `db:"borrower"`
		Lender   string `db:"lender"`
	}
	err := deps.DB.GetContext(ctx, &row, `
		SELECT borrowers.username AS borrower, lenders.username AS lender
		FROM loan_unpaid_events
		JOIN loans ON loans.id = loan_unpaid_events.loan_id
		JOIN users borrowers ON borrowers.id = loans.borrower_id
		JOIN users lenders ON lenders.id = loans.lender_id
		WHERE loan_unpaid_events.id = $1`,
		event.LoanUnpaidEventID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		log.Warn("loan unpaid event did not exist", zap.Int64("event_id", event.LoanUnpaidEventID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load unpaid event: %w", err)
	}

	info, err := deps.Perms.FetchInfo(ctx, row.Borrower, w.Name(), deps.Version)
	if err != nil {
		return err
	}
	if info == nil {
		log.Info("borrower defaulted then deleted their account", zap.String("borrower", row.Borrower))
		return nil
	}
	if info.Banned {
		log.Debug("borrower defaulted but is already banned", zap.String("borrower", row.Borrower))
		return nil
	}
	if info.Moderator {
		log.Info("borrower defaulted but is a moderator; no ban", zap.String("borrower", row.Borrower))
		return nil
	}

	primary := deps.Config.Reddit.PrimarySubreddit()
	if info.ApprovedSubmitter {
		log.Info("borrower defaulted but is an approved submitter; no ban",
			zap.String("borrower", row.Borrower))
		// Easy to forget about approved submitters; tell the mods.
		return deps.Proxy.Compose(ctx, w.Name(), deps.Version,
			"/r/"+primary,
			"Approved Submitter Unpaid Loan",
			fmt.Sprintf(
				"/u/%s defaulted on a loan but did not get banned since they are an approved submitter.",
				row.Borrower,
			),
		)
	}

	params := map[string]interface{}{
		"borrower_username": row.Borrower,
		"lender_username":   row.Lender,
	}
	message, err := responses.Get(ctx, deps.DB, "unpaid_ban_message", params)
	if err != nil {
		return err
	}
	note, err := responses.Get(ctx, deps.DB, "unpaid_ban_note", params)
	if err != nil {
		return err
	}

	if err := deps.Proxy.BanUser(ctx, w.Name(), deps.Version, primary, row.Borrower, message, note); err != nil {
		return err
	}
	log.Info("banned borrower for defaulting",
		zap.String("borrower", row.Borrower),
		zap.String("lender", row.Lender),
		zap.String("subreddit", primary),
	)
	_, err = deps.Perms.FlushCache(ctx, row.Borrower)
	return err
}
