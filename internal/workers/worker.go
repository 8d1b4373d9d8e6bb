// Package workers contains the long-lived processes of the fleet: the
// comment and link scanners, the modlog poller, the schedulers and every
// event-bus subscriber, plus the supervisor that runs them.
package workers

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/LoansBot/loansbot/internal/ledger"
	"github.com/LoansBot/loansbot/internal/perms"
	"github.com/LoansBot/loansbot/internal/redditproxy"
	"github.com/LoansBot/loansbot/pkg/bus"
	"github.com/LoansBot/loansbot/pkg/cache"
	"github.com/LoansBot/loansbot/pkg/config"
	"github.com/LoansBot/loansbot/pkg/logger"
)

// Deps carries every shared connection a worker may need. One Deps value
// is shared by the whole fleet; workers derive their own named loggers and
// proxy identities from it.
type Deps struct {
	Config *config.Config
	DB     *sqlx.DB
	Cache  cache.Cache
	Bus    *bus.Bus
	Proxy  *redditproxy.Client
	Perms  *perms.Manager
	Ledger *ledger.Ledger
	Logger *logger.Logger

	// Version is the fleet's boot timestamp in UTC seconds, passed with
	// every proxy request so stale requests can be dropped.
	Version float64
}

// NewDeps stamps the boot version onto the shared connections.
func NewDeps(cfg *config.Config, db *sqlx.DB, c cache.Cache, b *bus.Bus, proxy *redditproxy.Client, pm *perms.Manager, l *ledger.Ledger, log *logger.Logger) *Deps {
	return &Deps{
		Config:  cfg,
		DB:      db,
		Cache:   c,
		Bus:     b,
		Proxy:   proxy,
		Perms:   pm,
		Ledger:  l,
		Logger:  log,
		Version: float64(time.Now().UnixNano()) / 1e9,
	}
}

// Worker is a long-lived member of the fleet. Run blocks until the context
// is cancelled or the worker fails; any error tears the fleet down.
type Worker interface {
	Name() string
	Run(ctx context.Context, deps *Deps) error
}

// Fleet returns every worker of the bot in boot order.
func Fleet() []Worker {
	return []Worker{
		&CommentsWorker{},
		&RechecksWorker{},
		&LinksWorker{},
		&ModlogWorker{},
		&ModlogCacheFlushWorker{},
		&TempBanReaperWorker{},
		&BanUnpaidWorker{},
		&UnbanRepaidWorker{},
		&NewLenderWorker{},
		&BorrowerRequestWorker{},
		&LenderLoanWorker{},
		&TrustLoanDelaysWorker{},
		&LenderQueueTrustsWorker{},
		&RecheckPermissionWorker{},
		&DefaultPermissionsWorker{},
		&ModChangesWorker{},
		&ModOnboardingWorker{},
		&ModOnboardingClaimWorker{},
		&ModOffboardingWorker{},
		&ModOnboardingMessagesWorker{},
		&ModSyncWorker{},
		&DeprecatedAlertsWorker{},
		&LoansStatsWorker{},
		&FlairLoanThreadsWorker{},
	}
}
