package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pollpulse/api/internal/core/domain"
	"github.com/pollpulse/api/internal/core/ports"
	"github.com/redis/go-redis/v9"
)

const (
	snapshotKeyPrefix = "poll:"
	snapshotKeySuffix = ":aggregate"
	listingKeyPrefix  = "polls:list:"
	scanBatch         = 100
)

type snapshotCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSnapshotCache wraps a Redis client as the read cache. Every entry
// carries the TTL, so staleness is bounded even if an invalidation path is
// missed.
func NewSnapshotCache(rdb *redis.Client, ttl time.Duration) ports.SnapshotCache {
	return &snapshotCache{
		rdb: rdb,
		ttl: ttl,
	}
}

func (c *snapshotCache) Get(ctx context.Context, pollID uuid.UUID) (*domain.AggregateSnapshot, error) {
	data, err := c.rdb.Get(ctx, snapshotKey(pollID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cached snapshot: %w", err)
	}

	var snap domain.AggregateSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		// A corrupt entry is re-derivable from the store; treat as a miss.
		return nil, nil
	}
	return &snap, nil
}

func (c *snapshotCache) Put(ctx context.Context, snapshot *domain.AggregateSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := c.rdb.Set(ctx, snapshotKey(snapshot.PollID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache snapshot: %w", err)
	}
	return nil
}

func (c *snapshotCache) Invalidate(ctx context.Context, pollID uuid.UUID) error {
	if err := c.rdb.Del(ctx, snapshotKey(pollID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate snapshot: %w", err)
	}
	return nil
}

func (c *snapshotCache) GetListing(ctx context.Context, key string) ([]*domain.PollSummary, error) {
	data, err := c.rdb.Get(ctx, listingKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cached listing: %w", err)
	}

	var polls []*domain.PollSummary
	if err := json.Unmarshal(data, &polls); err != nil {
		return nil, nil
	}
	return polls, nil
}

func (c *snapshotCache) PutListing(ctx context.Context, key string, polls []*domain.PollSummary) error {
	data, err := json.Marshal(polls)
	if err != nil {
		return fmt.Errorf("failed to encode listing: %w", err)
	}
	if err := c.rdb.Set(ctx, listingKeyPrefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache listing: %w", err)
	}
	return nil
}

// InvalidateListings drops every listing entry. Listing keys vary by filter
// combination, so they are found by pattern scan rather than tracked
// individually.
func (c *snapshotCache) InvalidateListings(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, listingKeyPrefix+"*", scanBatch).Result()
		if err != nil {
			return fmt.Errorf("failed to scan listing keys: %w", err)
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete listing keys: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return nil
}

func snapshotKey(pollID uuid.UUID) string {
	return snapshotKeyPrefix + pollID.String() + snapshotKeySuffix
}
