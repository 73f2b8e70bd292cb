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

// uniqueViolation is the Postgres error code for a unique constraint breach.
const uniqueViolation = "23505"

type voteRepository struct {
	db *sql.DB
}

func NewVoteRepository(db *sql.DB) ports.VoteLedger {
	return &voteRepository{
		db: db,
	}
}

// Insert appends a ledger row, copying the poll's allow_multiple flag into
// single_vote so the partial unique index applies only where duplicates are
// disallowed. A constraint rejection means a concurrent submission won the
// race and maps to ErrDuplicateVote.
func (r *voteRepository) Insert(ctx context.Context, vote *domain.Vote) error {
	query := `
		INSERT INTO votes (id, poll_id, option_index, voter_id, single_vote, cast_at)
		SELECT $1, p.id, $2, $3, NOT p.allow_multiple, $4
		FROM polls p
		WHERE p.id = $5
	`
	res, err := r.db.ExecContext(ctx, query,
		vote.ID, vote.OptionIndex, vote.VoterID, vote.CastAt, vote.PollID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.ErrDuplicateVote
		}
		return fmt.Errorf("%w: failed to save vote: %v", domain.ErrTransient, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to save vote: %v", domain.ErrTransient, err)
	}
	if affected == 0 {
		return domain.ErrPollNotFound
	}
	return nil
}

// DeleteLatest removes only the voter's most recent vote on the poll, so an
// unvote on an allow-multiple poll undoes one vote, not all of them.
func (r *voteRepository) DeleteLatest(ctx context.Context, pollID, voterID uuid.UUID) (int64, error) {
	query := `
		DELETE FROM votes
		WHERE id = (
			SELECT id FROM votes
			WHERE poll_id = $1 AND voter_id = $2
			ORDER BY cast_at DESC
			LIMIT 1
		)
	`
	res, err := r.db.ExecContext(ctx, query, pollID, voterID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete vote: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to delete vote: %w", err)
	}
	return affected, nil
}

func (r *voteRepository) CountForVoter(ctx context.Context, pollID, voterID uuid.UUID) (int64, error) {
	query := `SELECT COUNT(*) FROM votes WHERE poll_id = $1 AND voter_id = $2`
	var count int64
	if err := r.db.QueryRowContext(ctx, query, pollID, voterID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count votes for voter: %w", err)
	}
	return count, nil
}

func (r *voteRepository) TallyByOption(ctx context.Context, pollID uuid.UUID) (map[int]int64, error) {
	query := `
		SELECT option_index, COUNT(*)
		FROM votes
		WHERE poll_id = $1
		GROUP BY option_index
	`
	rows, err := r.db.QueryContext(ctx, query, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to tally votes: %w", err)
	}
	defer rows.Close()

	tally := make(map[int]int64)
	for rows.Next() {
		var idx int
		var count int64
		if err := rows.Scan(&idx, &count); err != nil {
			return nil, fmt.Errorf("failed to scan tally row: %w", err)
		}
		tally[idx] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tally rows: %w", err)
	}
	return tally, nil
}

func (r *voteRepository) CountDistinctVoters(ctx context.Context, pollID uuid.UUID) (int64, error) {
	query := `SELECT COUNT(DISTINCT voter_id) FROM votes WHERE poll_id = $1`
	var count int64
	if err := r.db.QueryRowContext(ctx, query, pollID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count distinct voters: %w", err)
	}
	return count, nil
}
