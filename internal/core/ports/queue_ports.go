package ports

import (
	"context"

	"github.com/google/uuid"
)

const (
	JobReasonVote    = "vote"
	JobReasonUnvote  = "unvote"
	JobReasonRefresh = "refresh"
)

type AggregationJob struct {
	ID       int64
	PollID   uuid.UUID
	Reason   string
	Attempts int
}

// JobQueue is a durable at-least-once queue of aggregation work. Enqueue
// schedules a job slightly in the future so rapid successive votes coalesce.
// RunDue claims up to limit due jobs, invokes handle for each distinct poll,
// deletes jobs that succeed and reschedules failures with backoff; jobs that
// exhaust their attempts are moved to a failed-job record. It returns the
// number of jobs claimed.
type JobQueue interface {
	Enqueue(ctx context.Context, pollID uuid.UUID, reason string) error
	RunDue(ctx context.Context, limit int, handle func(context.Context, AggregationJob) error) (int, error)
}
