package summons

import (
	"context"
	"errors"
	"strings"

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

// suggestedLoanLimit bounds how many of the lender's open loans are shown
// when a paid-with-id lookup fails.
const suggestedLoanLimit = 7

// PaidWithIDSummon applies a repayment to one specific loan identified by
// its id.
type PaidWithIDSummon struct {
	parser *parsing.Parser
}

// NewPaidWithIDSummon builds the summon. The escaped markdown form of the
// anchor is accepted as an alias.
func NewPaidWithIDSummon() *PaidWithIDSummon {
	return &PaidWithIDSummon{
		parser: parsing.NewParser(
			[]string{"$paid_with_id", `$paid\_with\_id`},
			[]parsing.TokenSpec{
				{Token: parsing.NewUintToken()},
				{Token: parsing.NewMoneyToken()},
			},
		),
	}
}

// Name implements Summon
func (s *PaidWithIDSummon) Name() string {
	return "paid_with_id"
}

// MightApply implements Summon
func (s *PaidWithIDSummon) MightApply(comment *redditproxy.Comment) bool {
	_, ok := s.parser.Parse(comment.Body)
	return ok
}

// Handle implements Summon
func (s *PaidWithIDSummon) Handle(ctx context.Context, deps *Deps, comment *redditproxy.Comment, workerID string, version float64) error {
	values, ok := s.parser.Parse(comment.Body)
	if !ok {
		return nil
	}

	lenderUsername := comment.Author
	loanID := values[0].(int64)
	amount := values[1].(money.Money)
	permalink := ledger.Permalink(comment.LinkFullname, comment.Fullname)

	loan, err := deps.Ledger.GetLoan(ctx, deps.DB, loanID)
	if err != nil {
		return err
	}
	if loan == nil {
		deps.Logger.Info("paid_with_id on non-existent loan",
			zap.String("lender", lenderUsername),
			zap.Int64("loan_id", loanID),
			zap.String("permalink", permalink),
		)
		return s.suggestLoanIDs(ctx, deps, "paid_with_id_not_found", comment.Fullname, lenderUsername, loanID, amount, nil, workerID, version)
	}

	if !strings.EqualFold(loan.Lender, lenderUsername) {
		deps.Logger.Info("paid_with_id on someone else's loan",
			zap.String("lender", lenderUsername),
			zap.Int64("loan_id", loanID),
			zap.String("loan_lender", loan.Lender),
			zap.String("permalink", permalink),
		)
		return s.suggestLoanIDs(ctx, deps, "paid_with_id_wrong_lender", comment.Fullname, lenderUsername, loanID, amount, loan, workerID, version)
	}

	if loan.RepaidAt != nil {
		deps.Logger.Info("paid_with_id on already repaid loan",
			zap.String("lender", lenderUsername),
			zap.Int64("loan_id", loanID),
			zap.String("permalink", permalink),
		)
		return s.suggestLoanIDs(ctx, deps, "paid_with_id_already_repaid", comment.Fullname, lenderUsername, loanID, amount, loan, workerID, version)
	}

	var applied *ledger.RepaymentResult
	err = database.Transaction(ctx, deps.DB, func(tx *sqlx.Tx) error {
		var err error
		applied, err = deps.Ledger.ApplyRepayment(ctx, tx, loanID, amount)
		return err
	})
	if errors.Is(err, ledger.ErrLoanAlreadyRepaid) || errors.Is(err, ledger.ErrLoanNotFound) {
		return s.suggestLoanIDs(ctx, deps, "paid_with_id_already_repaid", comment.Fullname, lenderUsername, loanID, amount, loan, workerID, version)
	}
	if err != nil {
		return err
	}

	if applied.BecameRepaid {
		err := deps.Bus.Publish(ctx, events.LoansPaid, events.LoanPaid{
			LoanID:    applied.LoanID,
			Lender:    events.UserRef{ID: applied.LenderID, Username: loan.Lender},
			Borrower:  events.UserRef{ID: applied.BorrowerID, Username: loan.Borrower},
			Amount:    applied.Principal,
			WasUnpaid: applied.WasUnpaid,
		})
		if err != nil {
			return err
		}
	}

	loanAfter, err := deps.Ledger.GetLoan(ctx, deps.DB, loanID)
	if err != nil {
		return err
	}

	deps.Logger.Info("applied repayment by id",
		zap.String("lender", lenderUsername),
		zap.String("borrower", loan.Borrower),
		zap.Int64("loan_id", loanID),
		zap.String("applied", applied.Applied.String()),
		zap.String("remaining", applied.Remaining.String()),
		zap.String("permalink", permalink),
	)

	formatted, err := responses.Get(ctx, deps.DB, "paid_with_id", map[string]interface{}{
		"lender_username":   lenderUsername,
		"borrower_username": loan.Borrower,
		"loan_before":       ledger.FormatLoanTable([]ledger.LoanRecord{*loan}, true),
		"loan_after":        ledger.FormatLoanTable([]ledger.LoanRecord{*loanAfter}, true),
		"amount":            amount.String(),
		"applied":           applied.Applied.String(),
		"remaining":         applied.Remaining.String(),
	})
	if err != nil {
		return err
	}

	return deps.Proxy.PostComment(ctx, workerID, version, comment.Fullname, formatted)
}

func (s *PaidWithIDSummon) suggestLoanIDs(ctx context.Context, deps *Deps, responseName, commentFullname, lenderUsername string, loanID int64, amount money.Money, loan *ledger.LoanRecord, workerID string, version float64) error {
	suggested, err := deps.Ledger.RecentOpenLoansByLender(ctx, deps.DB, lenderUsername, suggestedLoanLimit)
	if err != nil {
		return err
	}

	loanTable := "Loan Not Available"
	if loan != nil {
		loanTable = ledger.FormatLoanTable([]ledger.LoanRecord{*loan}, true)
	}

	formatted, err := responses.Get(ctx, deps.DB, responseName, map[string]interface{}{
		"lender_username": lenderUsername,
		"loan_id":         loanID,
		"amount":          amount.String(),
		"loan":            loanTable,
		"suggested_loans": ledger.FormatLoanTable(suggested, true),
	})
	if err != nil {
		return err
	}

	return deps.Proxy.PostComment(ctx, workerID, version, commentFullname, formatted)
}
