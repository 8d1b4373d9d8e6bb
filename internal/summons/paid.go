package summons

import (
	"context"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/LoansBot/loansbot/internal/events"
	"github.com/LoansBot/loansbot/internal/ledger"
	"github.com/LoansBot/loansbot/internal/money"
	"github.com/LoansBot/loansbot/internal/parsing"
	"github.com/LoansBot/loansbot/internal/redditproxy"
	"github.com/LoansBot/loansbot/internal/responses"
	"github.com/LoansBot/loansbot/pkg/database"
)

// PaidSummon marks that a borrower repaid the comment's author a certain
// amount of money, applied toward that pair's loans oldest-first with
// rollover.
type PaidSummon struct {
	parser *parsing.Parser
}

// NewPaidSummon builds the summon
func NewPaidSummon() *PaidSummon {
	return &PaidSummon{
		parser: parsing.NewParser(
			[]string{"$paid"},
			[]parsing.TokenSpec{
				{Token: parsing.NewUserToken()},
				{Token: parsing.NewMoneyToken()},
			},
		),
	}
}

// Name implements Summon
func (s *PaidSummon) Name() string {
	return "paid"
}

// MightApply implements Summon
func (s *PaidSummon) MightApply(comment *redditproxy.Comment) bool {
	_, ok := s.parser.Parse(comment.Body)
	return ok
}

// Handle implements Summon
func (s *PaidSummon) Handle(ctx context.Context, deps *Deps, comment *redditproxy.Comment, workerID string, version float64) error {
	values, ok := s.parser.Parse(comment.Body)
	if !ok {
		return nil
	}

	lenderUsername := comment.Author
	borrowerUsername := values[0].(string)
	amount := values[1].(money.Money)

	var result *ledger.MultiRepaymentResult
	err := database.Transaction(ctx, deps.DB, func(tx *sqlx.Tx) error {
		var err error
		result, err = deps.Ledger.ApplyMultiLoanRepayment(ctx, tx, lenderUsername, borrowerUsername, amount)
		return err
	})
	if err != nil {
		return err
	}

	deps.Logger.Info("applied repayment",
		zap.String("lender", lenderUsername),
		zap.String("borrower", borrowerUsername),
		zap.String("amount", amount.String()),
		zap.Int("loans_affected", len(result.Before)),
		zap.String("permalink", ledger.Permalink(comment.LinkFullname, comment.Fullname)),
	)

	for _, completed := range result.Completed {
		err := deps.Bus.Publish(ctx, events.LoansPaid, events.LoanPaid{
			LoanID:    completed.LoanID,
			Lender:    events.UserRef{ID: completed.LenderID, Username: lenderUsername},
			Borrower:  events.UserRef{ID: completed.BorrowerID, Username: borrowerUsername},
			Amount:    completed.Principal,
			WasUnpaid: completed.WasUnpaid,
		})
		if err != nil {
			return err
		}
	}

	formatted, err := responses.Get(ctx, deps.DB, "paid", map[string]interface{}{
		"lender_username":    lenderUsername,
		"borrower_username":  borrowerUsername,
		"loans_before":       ledger.FormatLoanTable(result.Before, false),
		"loans_after":        ledger.FormatLoanTable(result.After, false),
		"num_loans_affected": len(result.Before),
		"amount":             amount.String(),
		"remaining":          result.Remaining.String(),
	})
	if err != nil {
		return err
	}

	return deps.Proxy.PostComment(ctx, workerID, version, comment.Fullname, formatted)
}
