package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pollpulse/api/internal/core/domain"
	"github.com/pollpulse/api/internal/core/ports"
)

type eligibilityService struct {
	pollRepo ports.PollRepository
	ledger   ports.VoteLedger
	now      func() time.Time
}

func NewEligibilityService(pollRepo ports.PollRepository, ledger ports.VoteLedger) ports.EligibilityChecker {
	return &eligibilityService{
		pollRepo: pollRepo,
		ledger:   ledger,
		now:      time.Now,
	}
}

// Check evaluates the eligibility conditions in order, short-circuiting on
// the first failure. This is advisory only: two concurrent submissions can
// both pass before either inserts, so the ledger's uniqueness constraint
// remains the authoritative duplicate guard.
func (s *eligibilityService) Check(ctx context.Context, pollID, voterID uuid.UUID) error {
	poll, err := s.pollRepo.GetByID(ctx, pollID)
	if err != nil {
		return err
	}
	if !poll.Active {
		return domain.ErrPollInactive
	}
	if poll.Expired(s.now()) {
		return domain.ErrPollExpired
	}
	if !poll.AllowMultiple {
		count, err := s.ledger.CountForVoter(ctx, pollID, voterID)
		if err != nil {
			return err
		}
		if count >= 1 {
			return domain.ErrDuplicateVote
		}
	}
	return nil
}

// CanVote fails closed: any error, including ambiguous storage failures,
// reads as ineligible.
func (s *eligibilityService) CanVote(ctx context.Context, pollID, voterID uuid.UUID) bool {
	return s.Check(ctx, pollID, voterID) == nil
}
