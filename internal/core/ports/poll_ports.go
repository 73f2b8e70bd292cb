package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pollpulse/api/internal/core/domain"
)

type PollRepository interface {
	Save(ctx context.Context, poll *domain.Poll) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Poll, error)
	List(ctx context.Context, input ListPollsInput) ([]*domain.PollSummary, error)
	ListActiveIDs(ctx context.Context) ([]uuid.UUID, error)
	SetVisibility(ctx context.Context, id uuid.UUID, public bool) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type CreatePollInput struct {
	Question      string
	Options       []string
	OwnerID       uuid.UUID
	Public        bool
	AllowMultiple bool
	ExpiresAt     *time.Time
}

// ListPollsInput carries the listing filters. SortBy is one of "votes"
// (default) or "recent"; Search matches against the question text.
type ListPollsInput struct {
	Search string
	SortBy string
	Limit  int
	Offset int
}

type PollService interface {
	Create(ctx context.Context, input CreatePollInput) (*domain.Poll, error)
	GetPoll(ctx context.Context, id string) (*domain.Poll, error)
	GetAggregate(ctx context.Context, pollID uuid.UUID) (*domain.AggregateSnapshot, error)
	ListPolls(ctx context.Context, input ListPollsInput) ([]*domain.PollSummary, error)
	SetVisibility(ctx context.Context, pollID, ownerID uuid.UUID, public bool) error
	Delete(ctx context.Context, pollID, ownerID uuid.UUID) error
}
