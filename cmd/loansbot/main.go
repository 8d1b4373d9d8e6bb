// The loansbot command boots the worker fleet: it connects to the
// database, the shared cache and the broker, then supervises every worker
// until one dies or a shutdown signal arrives.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LoansBot/loansbot/internal/fx"
	"github.com/LoansBot/loansbot/internal/ledger"
	"github.com/LoansBot/loansbot/internal/perms"
	"github.com/LoansBot/loansbot/internal/redditproxy"
	"github.com/LoansBot/loansbot/internal/workers"
	"github.com/LoansBot/loansbot/pkg/bus"
	"github.com/LoansBot/loansbot/pkg/cache"
	"github.com/LoansBot/loansbot/pkg/config"
	"github.com/LoansBot/loansbot/pkg/database"
	"github.com/LoansBot/loansbot/pkg/logger"
)

func main() {
	var workerName string

	rootCmd := &cobra.Command{
		Use:   "loansbot",
		Short: "Automated moderator and accountant for the loan subreddits",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(workerName)
		},
	}
	rootCmd.Flags().StringVar(&workerName, "worker", "", "run a single worker instead of the whole fleet")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(workerName string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.LogLevel,
		Encoding:    cfg.LogFormat,
		Development: cfg.Environment == "development",
	})
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDatabase(ctx, database.Config{
		DSN:             cfg.Database.DSN(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	cacheStore, err := cache.NewRedisCache(ctx, cache.Config{
		Host:     cfg.Cache.Host,
		Port:     cfg.Cache.Port,
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
	})
	if err != nil {
		log.Fatal("failed to connect to cache", zap.Error(err))
	}
	defer cacheStore.Close()

	broker, err := bus.Connect(ctx, bus.Config{URL: cfg.AMQP.URL()}, log)
	if err != nil {
		log.Fatal("failed to connect to broker", zap.Error(err))
	}
	defer broker.Close()

	proxy := redditproxy.NewClient(broker, cfg.AMQP.RedditProxyQueue, cfg.AMQP.ResponseQueuePrefix, log)
	converter := fx.NewConverter(
		cacheStore,
		fx.NewClient(cfg.Currency.APIKey, log),
		cfg.Currency.CacheTime,
		log,
	)
	books := ledger.New(db.GetDB(), converter)
	permManager := perms.NewManager(cacheStore, proxy, cfg.Permissions, cfg.Reddit.PrimarySubreddit(), log)

	deps := workers.NewDeps(cfg, db.GetDB(), cacheStore, broker, proxy, permManager, books, log)

	fleet := workers.Fleet()
	if workerName != "" {
		fleet = nil
		for _, worker := range workers.Fleet() {
			if worker.Name() == workerName {
				fleet = []workers.Worker{worker}
				break
			}
		}
		if fleet == nil {
			return fmt.Errorf("unknown worker %q", workerName)
		}
	}

	return workers.NewSupervisor(deps, fleet).Run(ctx)
}
