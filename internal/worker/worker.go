// Package worker drains the aggregation job queue. A pool of goroutines
// polls for due jobs; claiming uses SKIP LOCKED, so pools in separate
// processes cooperate without coordination.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pollpulse/api/internal/core/ports"
)

type Pool struct {
	queue      ports.JobQueue
	aggregator ports.Aggregator
	size       int
	batch      int
	interval   time.Duration
	logger     *slog.Logger
}

func NewPool(queue ports.JobQueue, aggregator ports.Aggregator, size, batch int, interval time.Duration, logger *slog.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	if batch < 1 {
		batch = 1
	}
	// time.NewTicker panics on a non-positive interval.
	if interval <= 0 {
		interval = time.Second
	}
	return &Pool{
		queue:      queue,
		aggregator: aggregator,
		size:       size,
		batch:      batch,
		interval:   interval,
		logger:     logger,
	}
}

// Run blocks until ctx is cancelled and all workers have drained their
// current batch.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.size; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.loop(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (p *Pool) loop(ctx context.Context, id int) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		// Keep claiming while the queue has a full batch waiting, so a burst
		// is worked off faster than one batch per tick.
		for {
			n, err := p.queue.RunDue(ctx, p.batch, p.process)
			if err != nil {
				p.logger.Error("queue pass failed", "worker", id, "error", err)
				break
			}
			if n < p.batch || ctx.Err() != nil {
				break
			}
		}
	}
}

func (p *Pool) process(ctx context.Context, job ports.AggregationJob) error {
	if err := p.aggregator.Recompute(ctx, job.PollID); err != nil {
		p.logger.Warn("aggregation failed",
			"poll_id", job.PollID, "reason", job.Reason,
			"attempt", job.Attempts+1, "error", err)
		return err
	}
	return nil
}
