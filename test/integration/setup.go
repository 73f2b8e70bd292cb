package integration

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	stdhttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	rediscache "github.com/pollpulse/api/internal/adapters/cache/redis"
	"github.com/pollpulse/api/internal/adapters/handler/http"
	"github.com/pollpulse/api/internal/adapters/repository/postgres"
	"github.com/pollpulse/api/internal/core/ports"
	"github.com/pollpulse/api/internal/core/services"
)

const testJWTSecret = "test-secret"

type TestApp struct {
	DB         *sql.DB
	RDB        *goredis.Client
	Server     *httptest.Server
	Client     *stdhttp.Client
	Queue      ports.JobQueue
	Aggregator ports.Aggregator
	Polls      ports.PollService

	containers []testcontainers.Container
}

func setupTestApp(t *testing.T) *TestApp {
	t.Helper()
	ctx := context.Background()

	pgContainer, connStr, err := setupPostgresContainer(ctx)
	require.NoError(t, err)

	redisContainer, redisAddr, err := setupRedisContainer(ctx)
	require.NoError(t, err)

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	require.NoError(t, db.Ping())
	require.NoError(t, applyMigrations(db))

	rdb := goredis.NewClient(&goredis.Options{Addr: redisAddr})
	require.NoError(t, rdb.Ping(ctx).Err())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	pollRepo := postgres.NewPollRepository(db)
	voteLedger := postgres.NewVoteRepository(db)
	aggregates := postgres.NewAggregateRepository(db)
	// No debounce so tests can drain the queue immediately after a vote.
	queue := postgres.NewJobQueue(db, 0, 3)
	cache := rediscache.NewSnapshotCache(rdb, 200*time.Millisecond)

	eligibility := services.NewEligibilityService(pollRepo, voteLedger)
	voteService := services.NewVoteService(pollRepo, voteLedger, aggregates, eligibility, queue, 5*time.Second, logger)
	pollService := services.NewPollService(pollRepo, aggregates, cache, 200*time.Millisecond, logger)
	aggregator := services.NewAggregationService(pollRepo, voteLedger, aggregates, cache, logger)

	handler := http.NewHandler(
		http.NewPollHandler(pollService),
		http.NewVoteHandler(voteService, eligibility),
		[]byte(testJWTSecret),
	)
	server := httptest.NewServer(handler)

	return &TestApp{
		DB:         db,
		RDB:        rdb,
		Server:     server,
		Client:     server.Client(),
		Queue:      queue,
		Aggregator: aggregator,
		Polls:      pollService,
		containers: []testcontainers.Container{pgContainer, redisContainer},
	}
}

func (app *TestApp) Teardown(t *testing.T) {
	t.Helper()
	app.Server.Close()
	app.RDB.Close()
	app.DB.Close()
	for _, c := range app.containers {
		if err := c.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}
}

// drainJobs processes queued aggregation work until a pass claims nothing.
func (app *TestApp) drainJobs(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		n, err := app.Queue.RunDue(context.Background(), 100, func(ctx context.Context, job ports.AggregationJob) error {
			return app.Aggregator.Recompute(ctx, job.PollID)
		})
		return err == nil && n == 0
	}, 5*time.Second, 25*time.Millisecond)
}

func setupPostgresContainer(ctx context.Context) (testcontainers.Container, string, error) {
	pgContainer, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("user"),
		tcpostgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second),
		),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, "", err
	}

	return pgContainer, connStr, nil
}

func setupRedisContainer(ctx context.Context) (testcontainers.Container, string, error) {
	redisContainer, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		return nil, "", fmt.Errorf("failed to start redis container: %w", err)
	}

	uri, err := redisContainer.ConnectionString(ctx)
	if err != nil {
		return nil, "", err
	}

	return redisContainer, strings.TrimPrefix(uri, "redis://"), nil
}

func applyMigrations(db *sql.DB) error {
	dirPath := filepath.Join("..", "..", "internal", "adapters", "repository", "postgres", "migrations")

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), "up.sql") {
			continue
		}

		content, err := os.ReadFile(filepath.Join(dirPath, entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", entry.Name(), err)
		}
		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func voterToken(t *testing.T, voterID uuid.UUID) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub": voterID.String(),
		"exp": time.Now().Add(15 * time.Minute).Unix(),
		"iat": time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}
