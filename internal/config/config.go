package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string

	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	PostgresHost     string
	PostgresPort     string

	RedisAddr     string
	RedisPassword string

	JWTSecret string

	// CacheTTL bounds how stale any cached snapshot or listing can get,
	// independent of explicit invalidation.
	CacheTTL time.Duration

	// SubmitTimeout bounds each vote write span (eligibility check through
	// ledger insert) so a stalled store fails the request instead of pinning
	// its goroutine.
	SubmitTimeout time.Duration

	// AggregationDebounce delays each enqueued job so bursts of votes on one
	// poll coalesce into a single recompute.
	AggregationDebounce time.Duration
	JobMaxAttempts      int

	WorkerPoolSize     int
	WorkerBatchSize    int
	WorkerPollInterval time.Duration

	// ReconcileSchedule is a cron spec for the sweep that re-enqueues every
	// active poll, bounding drift from lost enqueues.
	ReconcileSchedule string
}

func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	return Config{
		HTTPAddr:            getEnv("HTTP_ADDR", "0.0.0.0:8080"),
		PostgresDB:          getEnv("POSTGRES_DB", "pollpulse"),
		PostgresUser:        getEnv("POSTGRES_USER", "pollpulse"),
		PostgresPassword:    getEnv("POSTGRES_PASSWORD", ""),
		PostgresHost:        getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:        getEnv("POSTGRES_PORT", "5432"),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		CacheTTL:            getDuration("CACHE_TTL", 15*time.Second),
		SubmitTimeout:       getDuration("SUBMIT_TIMEOUT", 5*time.Second),
		AggregationDebounce: getDuration("AGGREGATION_DEBOUNCE", 500*time.Millisecond),
		JobMaxAttempts:      getInt("JOB_MAX_ATTEMPTS", 5),
		WorkerPoolSize:      getInt("WORKER_POOL_SIZE", 4),
		WorkerBatchSize:     getInt("WORKER_BATCH_SIZE", 32),
		WorkerPollInterval:  getDuration("WORKER_POLL_INTERVAL", 250*time.Millisecond),
		ReconcileSchedule:   getEnv("RECONCILE_SCHEDULE", "@every 10m"),
	}
}

func (c Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.PostgresUser, c.PostgresPassword, c.PostgresHost, c.PostgresPort, c.PostgresDB)
}

func getEnv(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		log.Printf("invalid %s=%q, using %d", key, val, fallback)
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		log.Printf("invalid %s=%q, using %s", key, val, fallback)
		return fallback
	}
	return d
}
