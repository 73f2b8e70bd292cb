package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/pollpulse/api/internal/core/domain"
)

// VoteLedger is the append-only vote store. Insert must surface the
// storage-level uniqueness violation as domain.ErrDuplicateVote: the
// constraint, not the eligibility pre-check, is what makes duplicate
// rejection race-safe. DeleteLatest removes at most one row, the voter's most
// recent vote on the poll, and reports how many rows it removed.
type VoteLedger interface {
	Insert(ctx context.Context, vote *domain.Vote) error
	DeleteLatest(ctx context.Context, pollID, voterID uuid.UUID) (int64, error)
	CountForVoter(ctx context.Context, pollID, voterID uuid.UUID) (int64, error)
	TallyByOption(ctx context.Context, pollID uuid.UUID) (map[int]int64, error)
	CountDistinctVoters(ctx context.Context, pollID uuid.UUID) (int64, error)
}

// EligibilityChecker is the advisory pre-flight gate. Check returns nil when
// a vote may proceed, or one of domain.ErrPollNotFound, ErrPollInactive,
// ErrPollExpired, ErrDuplicateVote. CanVote collapses that to a bool and
// fails closed on any error.
type EligibilityChecker interface {
	Check(ctx context.Context, pollID, voterID uuid.UUID) error
	CanVote(ctx context.Context, pollID, voterID uuid.UUID) bool
}

type SubmitVoteInput struct {
	PollID      uuid.UUID
	OptionIndex int
	VoterID     uuid.UUID
}

type VoteService interface {
	Submit(ctx context.Context, input SubmitVoteInput) (*domain.AggregateSnapshot, error)
	Retract(ctx context.Context, pollID, voterID uuid.UUID) error
}
