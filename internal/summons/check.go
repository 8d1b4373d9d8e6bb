package summons

import (
	"context"

	"github.com/LoansBot/loansbot/internal/parsing"
	"github.com/LoansBot/loansbot/internal/redditproxy"
	"github.com/LoansBot/loansbot/internal/responses"
)

// allOrSummaryThreshold is the loan count at which a check switches from a
// full table to the bucketed summary.
const allOrSummaryThreshold = 5

// CheckSummon posts a user's loan history without them needing the website.
type CheckSummon struct {
	parser *parsing.Parser
}

// NewCheckSummon builds the summon
func NewCheckSummon() *CheckSummon {
	return &CheckSummon{
		parser: parsing.NewParser(
			[]string{"$check"},
			[]parsing.TokenSpec{
				{Token: parsing.NewUserToken()},
			},
		),
	}
}

// Name implements Summon
func (s *CheckSummon) Name() string {
	return "check"
}

// MightApply implements Summon
func (s *CheckSummon) MightApply(comment *redditproxy.Comment) bool {
	_, ok := s.parser.Parse(comment.Body)
	return ok
}

// Handle implements Summon
func (s *CheckSummon) Handle(ctx context.Context, deps *Deps, comment *redditproxy.Comment, workerID string, version float64) error {
	values, ok := s.parser.Parse(comment.Body)
	if !ok {
		return nil
	}
	targetUsername := values[0].(string)

	report, err := deps.Ledger.GetAndFormatAllOrSummary(ctx, deps.DB, targetUsername, allOrSummaryThreshold)
	if err != nil {
		return err
	}

	formatted, err := responses.Get(ctx, deps.DB, "check", map[string]interface{}{
		"target_username": targetUsername,
		"report":          report,
	})
	if err != nil {
		return err
	}

	return deps.Proxy.PostComment(ctx, workerID, version, comment.Fullname, formatted)
}
