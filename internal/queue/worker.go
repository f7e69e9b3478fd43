package queue

import (
	"context"
	"time"
)

// Run calls ProcessQueue every interval until ctx is cancelled. A pass that
// is still running when the ticker fires delays the next one instead of
// overlapping it. Run always returns ctx.Err().
func (q *Queue) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	q.logger.InfoContext(ctx, "queue worker started", "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			q.logger.Info("queue worker stopped")
			return ctx.Err()
		case <-ticker.C:
			if n := q.ProcessQueue(ctx); n > 0 {
				q.logger.InfoContext(ctx, "queue pass finished", "processed", n)
			}
		}
	}
}
