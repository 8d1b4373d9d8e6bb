package summons

import (
	"context"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/LoansBot/loansbot/internal/events"
	"github.com/LoansBot/loansbot/internal/ledger"
	"github.com/LoansBot/loansbot/internal/parsing"
	"github.com/LoansBot/loansbot/internal/redditproxy"
	"github.com/LoansBot/loansbot/internal/responses"
	"github.com/LoansBot/loansbot/pkg/database"
)

// UnpaidSummon marks a borrower delinquent: every open loan from the
// comment's author to that borrower is marked unpaid.
type UnpaidSummon struct {
	parser *parsing.Parser
}

// NewUnpaidSummon builds the summon
func NewUnpaidSummon() *UnpaidSummon {
	return &UnpaidSummon{
		parser: parsing.NewParser(
			[]string{"$unpaid"},
			[]parsing.TokenSpec{
				{Token: parsing.NewUserToken()},
			},
		),
	}
}

// Name implements Summon
func (s *UnpaidSummon) Name() string {
	return "unpaid"
}

// MightApply implements Summon
func (s *UnpaidSummon) MightApply(comment *redditproxy.Comment) bool {
	_, ok := s.parser.Parse(comment.Body)
	return ok
}

// Handle implements Summon
func (s *UnpaidSummon) Handle(ctx context.Context, deps *Deps, comment *redditproxy.Comment, workerID string, version float64) error {
	values, ok := s.parser.Parse(comment.Body)
	if !ok {
		return nil
	}

	lenderUsername := comment.Author
	borrowerUsername := values[0].(string)

	var result *ledger.MarkUnpaidResult
	err := database.Transaction(ctx, deps.DB, func(tx *sqlx.Tx) error {
		var err error
		result, err = deps.Ledger.MarkUnpaid(ctx, tx, lenderUsername, borrowerUsername)
		return err
	})
	if err != nil {
		return err
	}

	deps.Logger.Info("marked loans unpaid",
		zap.String("lender", lenderUsername),
		zap.String("borrower", borrowerUsername),
		zap.Int("loans_affected", len(result.Before)),
		zap.String("permalink", ledger.Permalink(comment.LinkFullname, comment.Fullname)),
	)

	for _, eventID := range result.EventIDs {
		err := deps.Bus.Publish(ctx, events.LoansUnpaid, events.LoanUnpaid{
			LoanUnpaidEventID: eventID,
		})
		if err != nil {
			return err
		}
	}

	responseName := "unpaid"
	params := map[string]interface{}{
		"lender_username":   lenderUsername,
		"borrower_username": borrowerUsername,
	}
	if len(result.Before) == 0 {
		responseName = "unpaid_no_loans"
	} else {
		borrowerSummary, err := deps.Ledger.GetAndFormatAllOrSummary(ctx, deps.DB, borrowerUsername, allOrSummaryThreshold)
		if err != nil {
			return err
		}
		params["loans_before"] = ledger.FormatLoanTable(result.Before, false)
		params["loans_after"] = ledger.FormatLoanTable(result.After, false)
		params["borrower_summary"] = borrowerSummary
	}

	formatted, err := responses.Get(ctx, deps.DB, responseName, params)
	if err != nil {
		return err
	}

	return deps.Proxy.PostComment(ctx, workerID, version, comment.Fullname, formatted)
}
