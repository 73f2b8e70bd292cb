package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pollpulse/api/internal/core/ports"
)

const (
	backoffBase = 2 * time.Second
	backoffCap  = 5 * time.Minute
)

type jobQueue struct {
	db          *sql.DB
	debounce    time.Duration
	maxAttempts int
}

// NewJobQueue returns a Postgres-backed aggregation queue. debounce delays
// each job's earliest run so bursts of votes for one poll coalesce into a
// single recompute; maxAttempts bounds retries before a job is parked in the
// failure table.
func NewJobQueue(db *sql.DB, debounce time.Duration, maxAttempts int) ports.JobQueue {
	return &jobQueue{
		db:          db,
		debounce:    debounce,
		maxAttempts: maxAttempts,
	}
}

func (q *jobQueue) Enqueue(ctx context.Context, pollID uuid.UUID, reason string) error {
	query := `
		INSERT INTO aggregation_jobs (poll_id, reason, run_after)
		VALUES ($1, $2, NOW() + $3 * INTERVAL '1 millisecond')
	`
	_, err := q.db.ExecContext(ctx, query, pollID, reason, q.debounce.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to enqueue aggregation job: %w", err)
	}
	return nil
}

// RunDue claims up to limit due jobs with FOR UPDATE SKIP LOCKED, so multiple
// worker processes never contend on the same rows. Jobs for the same poll
// within a batch are handled once; the recompute is a full overwrite, so
// redundant jobs across batches are merely wasted work, never corruption.
func (q *jobQueue) RunDue(ctx context.Context, limit int, handle func(context.Context, ports.AggregationJob) error) (int, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin queue transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, poll_id, reason, attempts
		FROM aggregation_jobs
		WHERE run_after <= NOW()
		ORDER BY run_after
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to claim jobs: %w", err)
	}

	var jobs []ports.AggregationJob
	for rows.Next() {
		var job ports.AggregationJob
		if err := rows.Scan(&job.ID, &job.PollID, &job.Reason, &job.Attempts); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("error iterating jobs: %w", err)
	}
	rows.Close()

	if len(jobs) == 0 {
		return 0, tx.Commit()
	}

	// Coalesce: one handler call per poll, outcome applied to every claimed
	// job for that poll.
	byPoll := make(map[uuid.UUID][]ports.AggregationJob)
	var order []uuid.UUID
	for _, job := range jobs {
		if _, seen := byPoll[job.PollID]; !seen {
			order = append(order, job.PollID)
		}
		byPoll[job.PollID] = append(byPoll[job.PollID], job)
	}

	for _, pollID := range order {
		group := byPoll[pollID]
		handleErr := handle(ctx, group[0])
		if handleErr == nil {
			if err := q.deleteJobs(ctx, tx, group); err != nil {
				return 0, err
			}
			continue
		}
		if err := q.rescheduleOrFail(ctx, tx, group, handleErr); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit queue transaction: %w", err)
	}
	return len(jobs), nil
}

func (q *jobQueue) deleteJobs(ctx context.Context, tx *sql.Tx, group []ports.AggregationJob) error {
	ids := make([]int64, len(group))
	for i, job := range group {
		ids[i] = job.ID
	}
	_, err := tx.ExecContext(ctx, `DELETE FROM aggregation_jobs WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to delete completed jobs: %w", err)
	}
	return nil
}

func (q *jobQueue) rescheduleOrFail(ctx context.Context, tx *sql.Tx, group []ports.AggregationJob, handleErr error) error {
	for _, job := range group {
		attempts := job.Attempts + 1
		if attempts >= q.maxAttempts {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO aggregation_job_failures (poll_id, reason, attempts, last_error)
				VALUES ($1, $2, $3, $4)
			`, job.PollID, job.Reason, attempts, handleErr.Error())
			if err != nil {
				return fmt.Errorf("failed to record failed job: %w", err)
			}
			_, err = tx.ExecContext(ctx, `DELETE FROM aggregation_jobs WHERE id = $1`, job.ID)
			if err != nil {
				return fmt.Errorf("failed to remove exhausted job: %w", err)
			}
			continue
		}

		delay := backoffDelay(attempts)
		_, err := tx.ExecContext(ctx, `
			UPDATE aggregation_jobs
			SET attempts = $2,
			    run_after = NOW() + $3 * INTERVAL '1 millisecond'
			WHERE id = $1
		`, job.ID, attempts, delay.Milliseconds())
		if err != nil {
			return fmt.Errorf("failed to reschedule job: %w", err)
		}
	}
	return nil
}

// backoffDelay doubles from backoffBase per attempt, capped at backoffCap.
func backoffDelay(attempts int) time.Duration {
	delay := backoffBase
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= backoffCap {
			return backoffCap
		}
	}
	if delay > backoffCap {
		return backoffCap
	}
	return delay
}
