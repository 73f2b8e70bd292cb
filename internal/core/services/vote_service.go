package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pollpulse/api/internal/core/domain"
	"github.com/pollpulse/api/internal/core/ports"
)

const defaultSubmitTimeout = 5 * time.Second

type voteService struct {
	pollRepo    ports.PollRepository
	ledger      ports.VoteLedger
	aggregates  ports.AggregateStore
	eligibility ports.EligibilityChecker
	queue       ports.JobQueue
	timeout     time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewVoteService builds the submission orchestrator. timeout bounds each
// write path (eligibility check through ledger write), so a stalled store
// surfaces as a transient error instead of holding the request open.
func NewVoteService(
	pollRepo ports.PollRepository,
	ledger ports.VoteLedger,
	aggregates ports.AggregateStore,
	eligibility ports.EligibilityChecker,
	queue ports.JobQueue,
	timeout time.Duration,
	logger *slog.Logger,
) ports.VoteService {
	if timeout <= 0 {
		timeout = defaultSubmitTimeout
	}
	return &voteService{
		pollRepo:    pollRepo,
		ledger:      ledger,
		aggregates:  aggregates,
		eligibility: eligibility,
		queue:       queue,
		timeout:     timeout,
		logger:      logger,
		now:         time.Now,
	}
}

// Submit validates the vote, appends it to the ledger and enqueues an
// aggregation job. It does not wait for aggregation: the returned snapshot is
// the stored aggregate overlaid with the submitter's own just-accepted vote,
// so the caller never observes their vote missing even before the worker
// runs.
func (s *voteService) Submit(ctx context.Context, input ports.SubmitVoteInput) (*domain.AggregateSnapshot, error) {
	// Bound the whole write span: a stalled store fails the submission after
	// the timeout instead of pinning the request goroutine.
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	poll, err := s.pollRepo.GetByID(opCtx, input.PollID)
	if err != nil {
		return nil, err
	}
	if !poll.ValidOption(input.OptionIndex) {
		return nil, domain.ErrInvalidOption
	}

	if err := s.eligibility.Check(opCtx, input.PollID, input.VoterID); err != nil {
		return nil, err
	}

	priorVotes, err := s.ledger.CountForVoter(opCtx, input.PollID, input.VoterID)
	if err != nil {
		return nil, err
	}

	vote := &domain.Vote{
		ID:          uuid.New(),
		PollID:      input.PollID,
		OptionIndex: input.OptionIndex,
		VoterID:     input.VoterID,
		CastAt:      s.now(),
	}
	if err := s.ledger.Insert(opCtx, vote); err != nil {
		// A concurrent submission may win the race after the eligibility
		// check passed; the constraint violation is the authoritative
		// rejection.
		return nil, err
	}

	if err := s.queue.Enqueue(opCtx, input.PollID, ports.JobReasonVote); err != nil {
		// The vote stands. The periodic reconciliation sweep will catch the
		// poll up if this enqueue is lost.
		s.logger.Warn("failed to enqueue aggregation job",
			"poll_id", input.PollID, "error", err)
	}

	return s.overlaySnapshot(opCtx, poll, input.OptionIndex, priorVotes == 0)
}

// Retract removes the voter's most recent ledger row (unvote) and schedules a
// recompute. On allow-multiple polls each retraction undoes exactly one vote.
func (s *voteService) Retract(ctx context.Context, pollID, voterID uuid.UUID) error {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.pollRepo.GetByID(opCtx, pollID); err != nil {
		return err
	}

	removed, err := s.ledger.DeleteLatest(opCtx, pollID, voterID)
	if err != nil {
		return err
	}
	if removed == 0 {
		return domain.ErrDidNotVote
	}

	if err := s.queue.Enqueue(opCtx, pollID, ports.JobReasonUnvote); err != nil {
		s.logger.Warn("failed to enqueue aggregation job",
			"poll_id", pollID, "error", err)
	}
	return nil
}

// overlaySnapshot reads the current aggregate and adds the just-cast vote on
// top. The stored aggregate may be behind by other in-flight votes; the
// contract only requires that the submitter's own vote is visible.
func (s *voteService) overlaySnapshot(ctx context.Context, poll *domain.Poll, optionIndex int, firstVote bool) (*domain.AggregateSnapshot, error) {
	snap, err := s.aggregates.GetAggregate(ctx, poll.ID)
	if err != nil {
		if errors.Is(err, domain.ErrPollNotFound) {
			return nil, err
		}
		// The vote is recorded; degrade to a zero-based snapshot rather than
		// failing the whole submission.
		s.logger.Warn("failed to read aggregate after vote",
			"poll_id", poll.ID, "error", err)
		snap = &domain.AggregateSnapshot{PollID: poll.ID, ComputedAt: s.now()}
	}

	counts := make([]int64, len(poll.Options))
	copy(counts, snap.VoteCounts)
	counts[optionIndex]++

	overlay := &domain.AggregateSnapshot{
		PollID:       poll.ID,
		VoteCounts:   counts,
		TotalVotes:   snap.TotalVotes + 1,
		UniqueVoters: snap.UniqueVoters,
		ComputedAt:   snap.ComputedAt,
	}
	if firstVote {
		overlay.UniqueVoters++
	}
	return overlay, nil
}
