package summons

import (
	"context"
	"time"

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

// LoanSummon creates a loan from the comment's author (lender) to the
// thread's author (borrower).
type LoanSummon struct {
	parser *parsing.Parser
}

// NewLoanSummon builds the summon
func NewLoanSummon() *LoanSummon {
	return &LoanSummon{
		parser: parsing.NewParser(
			[]string{"$loan"},
			[]parsing.TokenSpec{
				{Token: parsing.NewMoneyToken()},
				{Token: parsing.NewAsCurrencyToken(), Optional: true},
			},
		),
	}
}

// Name implements Summon
func (s *LoanSummon) Name() string {
	return "loan"
}

// MightApply implements Summon
func (s *LoanSummon) MightApply(comment *redditproxy.Comment) bool {
	_, ok := s.parser.Parse(comment.Body)
	return ok
}

// Handle implements Summon
func (s *LoanSummon) Handle(ctx context.Context, deps *Deps, comment *redditproxy.Comment, workerID string, version float64) error {
	startedAt := time.Now()
	values, ok := s.parser.Parse(comment.Body)
	if !ok {
		return nil
	}

	amount := values[0].(money.Money)
	storeCurrency := ""
	if values[1] != nil {
		storeCurrency = values[1].(string)
	}

	var created *ledger.CreatedLoan
	err := database.Transaction(ctx, deps.DB, func(tx *sqlx.Tx) error {
		var err error
		created, err = deps.Ledger.CreateLoan(ctx, tx, ledger.CreateLoanParams{
			LenderUsername:   comment.Author,
			BorrowerUsername: comment.LinkAuthor,
			Amount:           amount,
			StoreCurrency:    storeCurrency,
			CreatedAt:        time.Unix(int64(comment.CreatedUTC), 0).UTC(),
			LinkFullname:     comment.LinkFullname,
			CommentFullname:  comment.Fullname,
		})
		return err
	})
	if err != nil {
		return err
	}

	deps.Logger.Info("created loan",
		zap.Int64("loan_id", created.LoanID),
		zap.String("lender", comment.Author),
		zap.String("borrower", comment.LinkAuthor),
		zap.String("amount", created.Principal.String()),
	)

	err = deps.Bus.Publish(ctx, events.LoansCreate, events.LoanCreate{
		LoanID: created.LoanID,
		Comment: events.CommentRef{
			LinkFullname: comment.LinkFullname,
			Fullname:     comment.Fullname,
			Subreddit:    comment.Subreddit,
		},
		Lender:    events.UserRef{ID: created.LenderID, Username: comment.Author},
		Borrower:  events.UserRef{ID: created.BorrowerID, Username: comment.LinkAuthor},
		Amount:    created.Principal,
		Permalink: created.Permalink,
	})
	if err != nil {
		return err
	}

	formatted, err := responses.Get(ctx, deps.DB, "successful_loan", map[string]interface{}{
		"lender_username":    comment.Author,
		"borrower_username":  comment.LinkAuthor,
		"principal":          created.Principal.String(),
		"principal_explicit": created.Principal.MajorStr() + " " + created.Principal.Currency,
		"loan_id":            created.LoanID,
		"processing_time":    time.Since(startedAt).Seconds(),
	})
	if err != nil {
		return err
	}

	return deps.Proxy.PostComment(ctx, workerID, version, comment.Fullname, formatted)
}
