package main

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	rediscache "github.com/pollpulse/api/internal/adapters/cache/redis"
	"github.com/pollpulse/api/internal/adapters/repository/postgres"
	"github.com/pollpulse/api/internal/config"
	"github.com/pollpulse/api/internal/core/ports"
	"github.com/pollpulse/api/internal/core/services"
	"github.com/pollpulse/api/internal/worker"
	"github.com/robfig/cron"
)

func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	db, err := sql.Open("postgres", cfg.PostgresDSN())
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := rediscache.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.Fatal(err)
	}
	defer rdb.Close()

	pollRepo := postgres.NewPollRepository(db)
	voteLedger := postgres.NewVoteRepository(db)
	aggregates := postgres.NewAggregateRepository(db)
	queue := postgres.NewJobQueue(db, cfg.AggregationDebounce, cfg.JobMaxAttempts)
	cache := rediscache.NewSnapshotCache(rdb, cfg.CacheTTL)

	aggregator := services.NewAggregationService(pollRepo, voteLedger, aggregates, cache, logger)

	// Periodic sweep: re-enqueue every active poll so aggregates converge
	// even when an enqueue was lost between insert and queue write.
	c := cron.New()
	err = c.AddFunc(cfg.ReconcileSchedule, func() {
		ids, err := pollRepo.ListActiveIDs(ctx)
		if err != nil {
			logger.Error("reconcile sweep failed to list polls", "error", err)
			return
		}
		for _, id := range ids {
			if err := queue.Enqueue(ctx, id, ports.JobReasonRefresh); err != nil {
				logger.Warn("reconcile sweep enqueue failed", "poll_id", id, "error", err)
			}
		}
		logger.Info("reconcile sweep enqueued", "polls", len(ids))
	})
	if err != nil {
		log.Fatal(err)
	}
	c.Start()
	defer c.Stop()

	logger.Info("aggregation worker starting",
		"pool_size", cfg.WorkerPoolSize, "batch", cfg.WorkerBatchSize)

	pool := worker.NewPool(queue, aggregator, cfg.WorkerPoolSize, cfg.WorkerBatchSize, cfg.WorkerPollInterval, logger)
	pool.Run(ctx)

	logger.Info("aggregation worker stopped")
}
