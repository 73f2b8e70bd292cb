package worker

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pollpulse/api/internal/core/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubQueue struct {
	mu   sync.Mutex
	jobs []ports.AggregationJob
}

func (q *stubQueue) Enqueue(_ context.Context, pollID uuid.UUID, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, ports.AggregationJob{PollID: pollID, Reason: reason})
	return nil
}

func (q *stubQueue) RunDue(ctx context.Context, limit int, handle func(context.Context, ports.AggregationJob) error) (int, error) {
	q.mu.Lock()
	if limit > len(q.jobs) {
		limit = len(q.jobs)
	}
	batch := append([]ports.AggregationJob(nil), q.jobs[:limit]...)
	q.jobs = q.jobs[limit:]
	q.mu.Unlock()

	for _, job := range batch {
		if err := handle(ctx, job); err != nil {
			return len(batch), nil
		}
	}
	return len(batch), nil
}

func (q *stubQueue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

type countingAggregator struct {
	mu    sync.Mutex
	polls map[uuid.UUID]int
}

func (a *countingAggregator) Recompute(_ context.Context, pollID uuid.UUID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.polls == nil {
		a.polls = make(map[uuid.UUID]int)
	}
	a.polls[pollID]++
	return nil
}

func (a *countingAggregator) recomputes(pollID uuid.UUID) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.polls[pollID]
}

func TestPoolDrainsQueueAndStops(t *testing.T) {
	queue := &stubQueue{}
	agg := &countingAggregator{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	pollID := uuid.New()
	for i := 0; i < 10; i++ {
		require.NoError(t, queue.Enqueue(context.Background(), pollID, ports.JobReasonVote))
	}

	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(queue, agg, 2, 4, 5*time.Millisecond, logger)

	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return queue.pending() == 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop after cancellation")
	}

	assert.Equal(t, 10, agg.recomputes(pollID))
}

func TestPoolDefaultsSaneOnBadSizes(t *testing.T) {
	pool := NewPool(&stubQueue{}, &countingAggregator{}, 0, -1, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Equal(t, 1, pool.size)
	assert.Equal(t, 1, pool.batch)
	assert.Equal(t, time.Second, pool.interval, "zero interval would panic the ticker")
}
