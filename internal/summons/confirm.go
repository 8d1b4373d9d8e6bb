package summons

import (
	"context"
	"math"

	"github.com/LoansBot/loansbot/internal/ledger"
	"github.com/LoansBot/loansbot/internal/money"
	"github.com/LoansBot/loansbot/internal/parsing"
	"github.com/LoansBot/loansbot/internal/redditproxy"
	"github.com/LoansBot/loansbot/internal/responses"
)

// ConfirmSummon lets a borrower confirm they received funds. Optional, and
// meant to protect the lender from the borrower later claiming they did not
// get anything.
type ConfirmSummon struct {
	parser *parsing.Parser
}

// NewConfirmSummon builds the summon
func NewConfirmSummon() *ConfirmSummon {
	return &ConfirmSummon{
		parser: parsing.NewParser(
			[]string{"$confirm"},
			[]parsing.TokenSpec{
				{Token: parsing.NewUserToken()},
				{Token: parsing.NewMoneyToken()},
			},
		),
	}
}

// Name implements Summon
func (s *ConfirmSummon) Name() string {
	return "confirm"
}

// MightApply implements Summon
func (s *ConfirmSummon) MightApply(comment *redditproxy.Comment) bool {
	_, ok := s.parser.Parse(comment.Body)
	return ok
}

// Handle implements Summon
func (s *ConfirmSummon) Handle(ctx context.Context, deps *Deps, comment *redditproxy.Comment, workerID string, version float64) error {
	values, ok := s.parser.Parse(comment.Body)
	if !ok {
		return nil
	}

	borrowerUsername := comment.Author
	lenderUsername := values[0].(string)
	amount := values[1].(money.Money)

	// The USD equivalent is only needed for the cross-currency tolerance
	// comparison, which allows a 1 USD slop against the frozen reference.
	amountUSDCents := amount.Minor
	if amount.Currency != "USD" {
		rate, err := deps.Ledger.Converter().Convert(ctx, "USD", amount.Currency)
		if err != nil {
			return err
		}
		amountUSDCents = int64(math.Ceil(float64(amount.Minor) / rate))
	}

	loan, err := deps.Ledger.FindConfirmLoan(ctx, deps.DB, lenderUsername, borrowerUsername, amount.Minor, amount.Currency, amountUSDCents)
	if err != nil {
		return err
	}

	params := map[string]interface{}{
		"lender_username":   lenderUsername,
		"borrower_username": borrowerUsername,
		"amount":            amount.String(),
	}

	responseName := "confirm_no_match"
	if loan != nil {
		responseName = "confirm"
		params["loan_id"] = loan.ID
		params["loan"] = ledger.FormatLoanTable([]ledger.LoanRecord{*loan}, true)
	}

	formatted, err := responses.Get(ctx, deps.DB, responseName, params)
	if err != nil {
		return err
	}

	return deps.Proxy.PostComment(ctx, workerID, version, comment.Fullname, formatted)
}
