package workers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/LoansBot/loansbot/internal/events"
	"github.com/LoansBot/loansbot/internal/ledger"
	"github.com/LoansBot/loansbot/internal/responses"
)

// BorrowerRequestWorker watches for borrowers with active loans making new
// request threads and informs each of their lenders, unless the lender has
// opted out of these messages.
type BorrowerRequestWorker struct{}

// Name implements Worker
func (w *BorrowerRequestWorker) Name() string {
	return "borrower_request"
}

// Run implements Worker
func (w *BorrowerRequestWorker) Run(ctx context.Context, deps *Deps) error {
	log := deps.Logger.Named(w.Name())
	return ListenEvent(ctx, deps.Bus, events.LoansRequest, log, func(ctx context.Context, body []byte) error {
		var event events.LoanRequestEvent
		if err := DecodeEvent(body, &event); err != nil {
			return err
		}
		return w.handleLoanRequest(ctx, deps, &event)
	})
}

func (w *BorrowerRequestWorker) handleLoanRequest(ctx context.Context, deps *Deps, event *events.LoanRequestEvent) error {
	log := deps.Logger.Named(w.Name())
	author := event.Post.Author
	log.Debug("detected loan request", zap.String("author", author))

	authorID, err := ledger.FindUserID(ctx, deps.DB, author)
	if err != nil {
		return err
	}
	if authorID == 0 {
		log.Debug("requester has no history", zap.String("author", author))
		return nil
	}

	openLoans, err := deps.Ledger.OpenLoansByBorrower(ctx, deps.DB, authorID)
	if err != nil {
		return err
	}
	if len(openLoans) == 0 {
		log.Debug("requester has no outstanding loans", zap.String("author", author))
		return nil
	}

	byLender := make(map[int64][]ledger.LoanRecord)
	for _, loan := range openLoans {
		byLender[loan.LenderID] = append(byLender[loan.LenderID], loan.Record)
	}

	log.Info("requester has open loans; informing lenders",
		zap.String("author", author),
		zap.Int("open_loans", len(openLoans)),
		zap.Int("unique_lenders", len(byLender)),
	)

	thread := fmt.Sprintf(
		"https://reddit.com/r/%s/comments/%s/redditloans",
		event.Post.Subreddit, trimFullnameKind(event.Post.Fullname),
	)

	for lenderID, loans := range byLender {
		optedOut, err := borrowerReqPMOptOut(ctx, deps, lenderID)
		if err != nil {
			return err
		}
		if optedOut {
			log.Debug("lender opted out of borrower request pms", zap.Int64("lender_id", lenderID))
			continue
		}

		lenderUsername := loans[0].Lender
		body, err := responses.Get(ctx, deps.DB, "borrower_request", map[string]interface{}{
			"lender_username":   lenderUsername,
			"borrower_username": author,
			"thread":            thread,
			"loans":             ledger.FormatLoanTable(loans, true),
		})
		if err != nil {
			return err
		}

		err = deps.Proxy.Compose(ctx, w.Name(), deps.Version,
			lenderUsername,
			fmt.Sprintf("/u/%s has made a request thread", author),
			body,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// borrowerReqPMOptOut reads the lender's opt-out flag from user_settings.
// Missing settings default to opted in.
func borrowerReqPMOptOut(ctx context.Context, deps *Deps, userID int64) (bool, error) {
	var optedOut bool
	err := deps.DB.GetContext(ctx, &optedOut,
		`SELECT borrower_req_pm_opt_out FROM user_settings WHERE user_id = $1`,
		userID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load user settings: %w", err)
	}
	return optedOut, nil
}

func trimFullnameKind(fullname string) string {
	if len(fullname) > 3 {
		return fullname[3:]
	}
	return fullname
}
