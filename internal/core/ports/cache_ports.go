package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/pollpulse/api/internal/core/domain"
)

// SnapshotCache is the non-authoritative read cache in front of the
// aggregate store. Get and GetListing return (nil, nil) on a miss; entries
// expire by TTL regardless of explicit invalidation.
type SnapshotCache interface {
	Get(ctx context.Context, pollID uuid.UUID) (*domain.AggregateSnapshot, error)
	Put(ctx context.Context, snapshot *domain.AggregateSnapshot) error
	Invalidate(ctx context.Context, pollID uuid.UUID) error

	GetListing(ctx context.Context, key string) ([]*domain.PollSummary, error)
	PutListing(ctx context.Context, key string, polls []*domain.PollSummary) error
	InvalidateListings(ctx context.Context) error
}
