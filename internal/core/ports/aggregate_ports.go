package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pollpulse/api/internal/core/domain"
)

// AggregateStore holds the denormalized per-poll counts. UpdateAggregate is
// the only write path and replaces all three fields in one statement; vote
// submission never touches them.
type AggregateStore interface {
	UpdateAggregate(ctx context.Context, pollID uuid.UUID, counts []int64, totalVotes, uniqueVoters int64, computedAt time.Time) error
	GetAggregate(ctx context.Context, pollID uuid.UUID) (*domain.AggregateSnapshot, error)
}

// Aggregator recomputes a poll's aggregate from the vote ledger. Recompute is
// idempotent: it derives everything from ledger rows, so redundant or retried
// runs are harmless.
type Aggregator interface {
	Recompute(ctx context.Context, pollID uuid.UUID) error
}
