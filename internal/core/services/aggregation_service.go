package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pollpulse/api/internal/core/domain"
	"github.com/pollpulse/api/internal/core/ports"
)

type aggregationService struct {
	pollRepo   ports.PollRepository
	ledger     ports.VoteLedger
	aggregates ports.AggregateStore
	cache      ports.SnapshotCache
	logger     *slog.Logger
	now        func() time.Time
}

func NewAggregationService(
	pollRepo ports.PollRepository,
	ledger ports.VoteLedger,
	aggregates ports.AggregateStore,
	cache ports.SnapshotCache,
	logger *slog.Logger,
) ports.Aggregator {
	return &aggregationService{
		pollRepo:   pollRepo,
		ledger:     ledger,
		aggregates: aggregates,
		cache:      cache,
		logger:     logger,
		now:        time.Now,
	}
}

// Recompute derives the poll's full aggregate from the vote ledger and writes
// it in a single update: an ordered count per option (zero-filled where no
// votes exist), the total, and the distinct-voter count. Because nothing is
// incremented, running it twice in a row, concurrently, or after a partial
// failure always converges on the same result.
func (s *aggregationService) Recompute(ctx context.Context, pollID uuid.UUID) error {
	poll, err := s.pollRepo.GetByID(ctx, pollID)
	if err != nil {
		if errors.Is(err, domain.ErrPollNotFound) {
			// Poll deleted between enqueue and processing; drop the stale
			// cache entry and consider the job done.
			if cerr := s.cache.Invalidate(ctx, pollID); cerr != nil {
				s.logger.Warn("failed to invalidate cache for deleted poll",
					"poll_id", pollID, "error", cerr)
			}
			return nil
		}
		return fmt.Errorf("failed to load poll %s: %w", pollID, err)
	}

	tally, err := s.ledger.TallyByOption(ctx, pollID)
	if err != nil {
		return fmt.Errorf("failed to tally votes for poll %s: %w", pollID, err)
	}

	counts := make([]int64, len(poll.Options))
	var total int64
	for idx, n := range tally {
		if idx < 0 || idx >= len(counts) {
			// A ledger row pointing past the option list would mean a
			// validation hole; surface it rather than folding it in.
			return fmt.Errorf("ledger row with out-of-range option %d for poll %s", idx, pollID)
		}
		counts[idx] = n
		total += n
	}

	voters, err := s.ledger.CountDistinctVoters(ctx, pollID)
	if err != nil {
		return fmt.Errorf("failed to count voters for poll %s: %w", pollID, err)
	}

	computedAt := s.now()
	if err := s.aggregates.UpdateAggregate(ctx, pollID, counts, total, voters, computedAt); err != nil {
		return fmt.Errorf("failed to write aggregate for poll %s: %w", pollID, err)
	}

	snapshot := &domain.AggregateSnapshot{
		PollID:       pollID,
		VoteCounts:   counts,
		TotalVotes:   total,
		UniqueVoters: voters,
		ComputedAt:   computedAt,
	}
	// Proactive fill: popular polls would otherwise stampede the store on the
	// invalidation-induced miss.
	if err := s.cache.Put(ctx, snapshot); err != nil {
		s.logger.Warn("failed to refresh cache after aggregation",
			"poll_id", pollID, "error", err)
	}

	return nil
}
