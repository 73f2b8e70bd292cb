package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pollpulse/api/internal/core/domain"
	"github.com/pollpulse/api/internal/core/ports"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type pollService struct {
	repo       ports.PollRepository
	aggregates ports.AggregateStore
	cache      ports.SnapshotCache
	staleAfter time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

func NewPollService(
	repo ports.PollRepository,
	aggregates ports.AggregateStore,
	cache ports.SnapshotCache,
	staleAfter time.Duration,
	logger *slog.Logger,
) ports.PollService {
	return &pollService{
		repo:       repo,
		aggregates: aggregates,
		cache:      cache,
		staleAfter: staleAfter,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *pollService) Create(ctx context.Context, input ports.CreatePollInput) (*domain.Poll, error) {
	if strings.TrimSpace(input.Question) == "" {
		return nil, domain.ErrInvalidQuestion
	}
	options := make([]string, 0, len(input.Options))
	for _, opt := range input.Options {
		options = append(options, strings.TrimSpace(opt))
	}
	if err := domain.ValidateOptions(options); err != nil {
		return nil, err
	}

	poll := &domain.Poll{
		ID:            uuid.New(),
		Question:      strings.TrimSpace(input.Question),
		Options:       options,
		OwnerID:       input.OwnerID,
		Public:        input.Public,
		Active:        true,
		AllowMultiple: input.AllowMultiple,
		CreatedAt:     s.now(),
		ExpiresAt:     input.ExpiresAt,
		VoteCounts:    make([]int64, len(options)),
	}

	if err := s.repo.Save(ctx, poll); err != nil {
		return nil, err
	}

	s.invalidateListings(ctx)
	return poll, nil
}

func (s *pollService) GetPoll(ctx context.Context, id string) (*domain.Poll, error) {
	pollID, err := uuid.Parse(id)
	if err != nil {
		return nil, domain.ErrInvalidPollID
	}
	return s.repo.GetByID(ctx, pollID)
}

// GetAggregate is the cache-aside read path: cache first, aggregate store on
// miss, lazily repopulating the cache. Snapshots older than the freshness
// bound are still served but flagged stale.
func (s *pollService) GetAggregate(ctx context.Context, pollID uuid.UUID) (*domain.AggregateSnapshot, error) {
	snap, err := s.cache.Get(ctx, pollID)
	if err != nil {
		s.logger.Warn("cache read failed, falling back to store",
			"poll_id", pollID, "error", err)
	}
	if snap == nil {
		snap, err = s.aggregates.GetAggregate(ctx, pollID)
		if err != nil {
			return nil, err
		}
		if cerr := s.cache.Put(ctx, snap); cerr != nil {
			s.logger.Warn("failed to populate cache",
				"poll_id", pollID, "error", cerr)
		}
	}
	snap.Stale = snap.StaleBy(s.now(), s.staleAfter)
	return snap, nil
}

func (s *pollService) ListPolls(ctx context.Context, input ports.ListPollsInput) ([]*domain.PollSummary, error) {
	if input.Limit <= 0 {
		input.Limit = defaultListLimit
	}
	if input.Limit > maxListLimit {
		input.Limit = maxListLimit
	}
	if input.Offset < 0 {
		input.Offset = 0
	}
	if input.SortBy != "recent" {
		input.SortBy = "votes"
	}

	key := listingKey(input)
	if cached, err := s.cache.GetListing(ctx, key); err != nil {
		s.logger.Warn("listing cache read failed", "key", key, "error", err)
	} else if cached != nil {
		return cached, nil
	}

	polls, err := s.repo.List(ctx, input)
	if err != nil {
		return nil, err
	}
	if polls == nil {
		// An empty result must round-trip through the cache as [] rather than
		// JSON null, which would read back as a miss.
		polls = []*domain.PollSummary{}
	}
	if err := s.cache.PutListing(ctx, key, polls); err != nil {
		s.logger.Warn("failed to populate listing cache", "key", key, "error", err)
	}
	return polls, nil
}

func (s *pollService) SetVisibility(ctx context.Context, pollID, ownerID uuid.UUID, public bool) error {
	poll, err := s.repo.GetByID(ctx, pollID)
	if err != nil {
		return err
	}
	if poll.OwnerID != ownerID {
		return domain.ErrPollNotFound
	}
	if err := s.repo.SetVisibility(ctx, pollID, public); err != nil {
		return err
	}
	// Visibility affects which listings a poll appears in, not its counts:
	// the poll's own snapshot stays valid.
	s.invalidateListings(ctx)
	return nil
}

func (s *pollService) Delete(ctx context.Context, pollID, ownerID uuid.UUID) error {
	poll, err := s.repo.GetByID(ctx, pollID)
	if err != nil {
		return err
	}
	if poll.OwnerID != ownerID {
		return domain.ErrPollNotFound
	}
	if err := s.repo.Delete(ctx, pollID); err != nil {
		return err
	}
	if err := s.cache.Invalidate(ctx, pollID); err != nil {
		s.logger.Warn("failed to invalidate poll cache",
			"poll_id", pollID, "error", err)
	}
	s.invalidateListings(ctx)
	return nil
}

func (s *pollService) invalidateListings(ctx context.Context) {
	if err := s.cache.InvalidateListings(ctx); err != nil {
		s.logger.Warn("failed to invalidate listing caches", "error", err)
	}
}

func listingKey(input ports.ListPollsInput) string {
	return fmt.Sprintf("%s:%s:%d:%d",
		input.SortBy, strings.ToLower(strings.TrimSpace(input.Search)), input.Limit, input.Offset)
}
