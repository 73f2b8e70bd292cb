package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pollpulse/api/internal/core/domain"
	"github.com/pollpulse/api/internal/core/ports"
)

// memStore backs both the poll repository and the aggregate store, mirroring
// production where both live on the polls table.
type memStore struct {
	mu        sync.Mutex
	polls     map[uuid.UUID]*domain.Poll
	listCalls int
}

func newMemStore() *memStore {
	return &memStore{polls: make(map[uuid.UUID]*domain.Poll)}
}

func (s *memStore) Save(_ context.Context, poll *domain.Poll) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *poll
	cp.VoteCounts = append([]int64(nil), poll.VoteCounts...)
	s.polls[poll.ID] = &cp
	return nil
}

func (s *memStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	poll, ok := s.polls[id]
	if !ok {
		return nil, domain.ErrPollNotFound
	}
	cp := *poll
	cp.VoteCounts = append([]int64(nil), poll.VoteCounts...)
	return &cp, nil
}

func (s *memStore) List(_ context.Context, input ports.ListPollsInput) ([]*domain.PollSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	var out []*domain.PollSummary
	for _, p := range s.polls {
		if !p.Public {
			continue
		}
		if input.Search != "" && !strings.Contains(strings.ToLower(p.Question), strings.ToLower(input.Search)) {
			continue
		}
		out = append(out, &domain.PollSummary{
			ID:         p.ID,
			Question:   p.Question,
			Options:    p.Options,
			VoteCounts: append([]int64(nil), p.VoteCounts...),
			TotalVotes: p.TotalVotes,
			Active:     p.Active,
			CreatedAt:  p.CreatedAt,
			ExpiresAt:  p.ExpiresAt,
		})
	}
	return out, nil
}

func (s *memStore) listCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCalls
}

func (s *memStore) ListActiveIDs(_ context.Context) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uuid.UUID
	for id, p := range s.polls {
		if p.Active {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *memStore) SetVisibility(_ context.Context, id uuid.UUID, public bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	poll, ok := s.polls[id]
	if !ok {
		return domain.ErrPollNotFound
	}
	poll.Public = public
	return nil
}

func (s *memStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.polls[id]; !ok {
		return domain.ErrPollNotFound
	}
	delete(s.polls, id)
	return nil
}

func (s *memStore) UpdateAggregate(_ context.Context, pollID uuid.UUID, counts []int64, totalVotes, uniqueVoters int64, computedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	poll, ok := s.polls[pollID]
	if !ok {
		return domain.ErrPollNotFound
	}
	poll.VoteCounts = append([]int64(nil), counts...)
	poll.TotalVotes = totalVotes
	poll.UniqueVoters = uniqueVoters
	return nil
}

func (s *memStore) GetAggregate(_ context.Context, pollID uuid.UUID) (*domain.AggregateSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	poll, ok := s.polls[pollID]
	if !ok {
		return nil, domain.ErrPollNotFound
	}
	return &domain.AggregateSnapshot{
		PollID:       pollID,
		VoteCounts:   append([]int64(nil), poll.VoteCounts...),
		TotalVotes:   poll.TotalVotes,
		UniqueVoters: poll.UniqueVoters,
		ComputedAt:   time.Now(),
	}, nil
}

// memLedger emulates the votes table including the partial unique index:
// (poll_id, voter_id) is unique only for polls that disallow multiples.
type memLedger struct {
	mu    sync.Mutex
	store *memStore
	votes []domain.Vote
}

func newMemLedger(store *memStore) *memLedger {
	return &memLedger{store: store}
}

func (l *memLedger) Insert(ctx context.Context, vote *domain.Vote) error {
	poll, err := l.store.GetByID(ctx, vote.PollID)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if !poll.AllowMultiple {
		for _, v := range l.votes {
			if v.PollID == vote.PollID && v.VoterID == vote.VoterID {
				return domain.ErrDuplicateVote
			}
		}
	}
	l.votes = append(l.votes, *vote)
	return nil
}

// DeleteLatest removes the last matching vote only; votes is append-ordered,
// so the last match is the most recent.
func (l *memLedger) DeleteLatest(_ context.Context, pollID, voterID uuid.UUID) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.votes) - 1; i >= 0; i-- {
		if l.votes[i].PollID == pollID && l.votes[i].VoterID == voterID {
			l.votes = append(l.votes[:i], l.votes[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (l *memLedger) CountForVoter(_ context.Context, pollID, voterID uuid.UUID) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var count int64
	for _, v := range l.votes {
		if v.PollID == pollID && v.VoterID == voterID {
			count++
		}
	}
	return count, nil
}

func (l *memLedger) TallyByOption(_ context.Context, pollID uuid.UUID) (map[int]int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tally := make(map[int]int64)
	for _, v := range l.votes {
		if v.PollID == pollID {
			tally[v.OptionIndex]++
		}
	}
	return tally, nil
}

func (l *memLedger) CountDistinctVoters(_ context.Context, pollID uuid.UUID) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	voters := make(map[uuid.UUID]struct{})
	for _, v := range l.votes {
		if v.PollID == pollID {
			voters[v.VoterID] = struct{}{}
		}
	}
	return int64(len(voters)), nil
}

func (l *memLedger) rows(pollID uuid.UUID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int
	for _, v := range l.votes {
		if v.PollID == pollID {
			n++
		}
	}
	return n
}

// memQueue records enqueued jobs; tests drain it explicitly.
type memQueue struct {
	mu         sync.Mutex
	jobs       []ports.AggregationJob
	nextID     int64
	enqueueErr error
}

func newMemQueue() *memQueue {
	return &memQueue{}
}

func (q *memQueue) Enqueue(_ context.Context, pollID uuid.UUID, reason string) error {
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID++
	q.jobs = append(q.jobs, ports.AggregationJob{ID: q.nextID, PollID: pollID, Reason: reason})
	return nil
}

func (q *memQueue) RunDue(ctx context.Context, limit int, handle func(context.Context, ports.AggregationJob) error) (int, error) {
	q.mu.Lock()
	if limit > len(q.jobs) {
		limit = len(q.jobs)
	}
	batch := append([]ports.AggregationJob(nil), q.jobs[:limit]...)
	q.jobs = q.jobs[limit:]
	q.mu.Unlock()

	seen := make(map[uuid.UUID]struct{})
	for _, job := range batch {
		if _, done := seen[job.PollID]; done {
			continue
		}
		seen[job.PollID] = struct{}{}
		if err := handle(ctx, job); err != nil {
			return len(batch), err
		}
	}
	return len(batch), nil
}

func (q *memQueue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// memCache is a map-backed snapshot cache; TTL expiry is not simulated, only
// explicit invalidation.
type memCache struct {
	mu        sync.Mutex
	snapshots map[uuid.UUID]*domain.AggregateSnapshot
	listings  map[string][]*domain.PollSummary
}

func newMemCache() *memCache {
	return &memCache{
		snapshots: make(map[uuid.UUID]*domain.AggregateSnapshot),
		listings:  make(map[string][]*domain.PollSummary),
	}
}

func (c *memCache) Get(_ context.Context, pollID uuid.UUID) (*domain.AggregateSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, ok := c.snapshots[pollID]
	if !ok {
		return nil, nil
	}
	cp := *snap
	return &cp, nil
}

func (c *memCache) Put(_ context.Context, snapshot *domain.AggregateSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *snapshot
	c.snapshots[snapshot.PollID] = &cp
	return nil
}

func (c *memCache) Invalidate(_ context.Context, pollID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.snapshots, pollID)
	return nil
}

func (c *memCache) GetListing(_ context.Context, key string) ([]*domain.PollSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listings[key], nil
}

func (c *memCache) PutListing(_ context.Context, key string, polls []*domain.PollSummary) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listings[key] = polls
	return nil
}

func (c *memCache) InvalidateListings(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listings = make(map[string][]*domain.PollSummary)
	return nil
}
