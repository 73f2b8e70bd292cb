package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	rediscache "github.com/pollpulse/api/internal/adapters/cache/redis"
	"github.com/pollpulse/api/internal/adapters/handler/http"
	"github.com/pollpulse/api/internal/adapters/repository/postgres"
	"github.com/pollpulse/api/internal/config"
	"github.com/pollpulse/api/internal/core/services"
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

	eligibility := services.NewEligibilityService(pollRepo, voteLedger)
	voteService := services.NewVoteService(pollRepo, voteLedger, aggregates, eligibility, queue, cfg.SubmitTimeout, logger)
	pollService := services.NewPollService(pollRepo, aggregates, cache, cfg.CacheTTL, logger)

	handler := http.NewHandler(
		http.NewPollHandler(pollService),
		http.NewVoteHandler(voteService, eligibility),
		[]byte(cfg.JWTSecret),
	)
	server := &stdhttp.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	logger.Info("gracefully shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal(err)
	}
}
