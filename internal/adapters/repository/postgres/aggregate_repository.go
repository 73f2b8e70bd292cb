package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pollpulse/api/internal/core/domain"
	"github.com/pollpulse/api/internal/core/ports"
)

type aggregateRepository struct {
	db *sql.DB
}

func NewAggregateRepository(db *sql.DB) ports.AggregateStore {
	return &aggregateRepository{
		db: db,
	}
}

// UpdateAggregate replaces all derived fields in a single statement, so a
// reader never observes a half-written aggregate.
func (r *aggregateRepository) UpdateAggregate(ctx context.Context, pollID uuid.UUID, counts []int64, totalVotes, uniqueVoters int64, computedAt time.Time) error {
	query := `
		UPDATE polls
		SET vote_counts = $2,
		    total_votes = $3,
		    unique_voters = $4,
		    aggregated_at = $5
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		pollID, pq.Array(counts), totalVotes, uniqueVoters, computedAt)
	if err != nil {
		return fmt.Errorf("failed to update aggregate: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update aggregate: %w", err)
	}
	if affected == 0 {
		return domain.ErrPollNotFound
	}
	return nil
}

func (r *aggregateRepository) GetAggregate(ctx context.Context, pollID uuid.UUID) (*domain.AggregateSnapshot, error) {
	query := `
		SELECT id, vote_counts, total_votes, unique_voters, aggregated_at
		FROM polls
		WHERE id = $1
	`
	snap := &domain.AggregateSnapshot{}
	err := r.db.QueryRowContext(ctx, query, pollID).Scan(
		&snap.PollID, pq.Array(&snap.VoteCounts),
		&snap.TotalVotes, &snap.UniqueVoters, &snap.ComputedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPollNotFound
		}
		return nil, fmt.Errorf("failed to get aggregate: %w", err)
	}
	return snap, nil
}
