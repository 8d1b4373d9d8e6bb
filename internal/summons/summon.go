// Package summons implements the user-invoked commands recognized in
// comment bodies and their effects on the ledger and the forum.
package summons

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/LoansBot/loansbot/internal/ledger"
	"github.com/LoansBot/loansbot/internal/redditproxy"
	"github.com/LoansBot/loansbot/pkg/bus"
	"github.com/LoansBot/loansbot/pkg/logger"
)

// Deps carries the connections a summon needs while handling a comment.
type Deps struct {
	DB     *sqlx.DB
	Ledger *ledger.Ledger
	Bus    *bus.Bus
	Proxy  *redditproxy.Client
	Logger *logger.Logger
}

// Summon is an operation which can be triggered by comments on reddit.
type Summon interface {
	// Name uniquely identifies the summon
	Name() string
	// MightApply determines if this summon applies to the comment. It must
	// be fairly fast, since every comment is checked by every summon, and
	// must have no side effects.
	MightApply(comment *redditproxy.Comment) bool
	// Handle performs the summon's side effects: ledger writes, event
	// publishes and replies through the proxy.
	Handle(ctx context.Context, deps *Deps, comment *redditproxy.Comment, workerID string, version float64) error
}

// Registry returns the summons in the order they are attempted against
// each comment; the first match handles it.
func Registry() []Summon {
	return []Summon{
		NewCheckSummon(),
		NewConfirmSummon(),
		NewLoanSummon(),
		NewPaidWithIDSummon(),
		NewPaidSummon(),
		NewPingSummon(),
		NewUnpaidSummon(),
	}
}
