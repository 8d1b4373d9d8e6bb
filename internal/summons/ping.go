package summons

import (
	"context"
	"strings"

	"github.com/LoansBot/loansbot/internal/redditproxy"
)

// PingSummon responds `Pong!` to `$ping`. A useful way of verifying the
// LoansBot is scanning comments and that one can interact with it.
type PingSummon struct{}

// NewPingSummon builds the summon
func NewPingSummon() *PingSummon {
	return &PingSummon{}
}

// Name implements Summon
func (s *PingSummon) Name() string {
	return "ping"
}

// MightApply implements Summon
func (s *PingSummon) MightApply(comment *redditproxy.Comment) bool {
	return strings.Contains(comment.Body, "$ping")
}

// Handle implements Summon
func (s *PingSummon) Handle(ctx context.Context, deps *Deps, comment *redditproxy.Comment, workerID string, version float64) error {
	return deps.Proxy.PostComment(ctx, workerID, version, comment.Fullname, "Pong!")
}
