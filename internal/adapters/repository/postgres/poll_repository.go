package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pollpulse/api/internal/core/domain"
	"github.com/pollpulse/api/internal/core/ports"
)

type pollRepository struct {
	db *sql.DB
}

func NewPollRepository(db *sql.DB) ports.PollRepository {
	return &pollRepository{
		db: db,
	}
}

func (r *pollRepository) Save(ctx context.Context, poll *domain.Poll) error {
	query := `
		INSERT INTO polls (id, question, options, owner_id, public, active, allow_multiple,
		                   created_at, expires_at, vote_counts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		poll.ID, poll.Question, pq.Array(poll.Options), poll.OwnerID,
		poll.Public, poll.Active, poll.AllowMultiple,
		poll.CreatedAt, poll.ExpiresAt, pq.Array(poll.VoteCounts),
	)
	if err != nil {
		return fmt.Errorf("failed to insert poll: %w", err)
	}
	return nil
}

func (r *pollRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Poll, error) {
	query := `
		SELECT id, question, options, owner_id, public, active, allow_multiple,
		       created_at, expires_at, vote_counts, total_votes, unique_voters
		FROM polls
		WHERE id = $1
	`

	var poll domain.Poll
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&poll.ID, &poll.Question, pq.Array(&poll.Options), &poll.OwnerID,
		&poll.Public, &poll.Active, &poll.AllowMultiple,
		&poll.CreatedAt, &poll.ExpiresAt,
		pq.Array(&poll.VoteCounts), &poll.TotalVotes, &poll.UniqueVoters,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPollNotFound
		}
		return nil, fmt.Errorf("failed to get poll: %w", err)
	}

	return &poll, nil
}

func (r *pollRepository) List(ctx context.Context, input ports.ListPollsInput) ([]*domain.PollSummary, error) {
	order := "total_votes DESC, created_at DESC"
	if input.SortBy == "recent" {
		order = "created_at DESC"
	}

	query := fmt.Sprintf(`
		SELECT id, question, options, vote_counts, total_votes, active, created_at, expires_at
		FROM polls
		WHERE public AND question ILIKE $1
		ORDER BY %s
		LIMIT $2 OFFSET $3
	`, order)

	rows, err := r.db.QueryContext(ctx, query, "%"+input.Search+"%", input.Limit, input.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list polls: %w", err)
	}
	defer rows.Close()

	var polls []*domain.PollSummary
	for rows.Next() {
		var p domain.PollSummary
		err := rows.Scan(&p.ID, &p.Question, pq.Array(&p.Options), pq.Array(&p.VoteCounts),
			&p.TotalVotes, &p.Active, &p.CreatedAt, &p.ExpiresAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan poll summary: %w", err)
		}
		polls = append(polls, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating polls: %w", err)
	}
	return polls, nil
}

func (r *pollRepository) ListActiveIDs(ctx context.Context) ([]uuid.UUID, error) {
	query := `SELECT id FROM polls WHERE active`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active polls: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan poll id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating poll ids: %w", err)
	}
	return ids, nil
}

func (r *pollRepository) SetVisibility(ctx context.Context, id uuid.UUID, public bool) error {
	query := `UPDATE polls SET public = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, public)
	if err != nil {
		return fmt.Errorf("failed to update poll visibility: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update poll visibility: %w", err)
	}
	if affected == 0 {
		return domain.ErrPollNotFound
	}
	return nil
}

func (r *pollRepository) Delete(ctx context.Context, id uuid.UUID) error {
	// Ledger rows cascade via the votes foreign key.
	query := `DELETE FROM polls WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete poll: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete poll: %w", err)
	}
	if affected == 0 {
		return domain.ErrPollNotFound
	}
	return nil
}
