package queue

import (
	"context"
	"time"
)

// MemQ is a channel-backed queue for tests and single-node dev runs.
type MemQ struct{ ch chan string }

func NewMem(size int) *MemQ { return &MemQ{ch: make(chan string, size)} }

func (q *MemQ) Enqueue(ctx context.Context, jobID string) error {
	select {
	case q.ch <- jobID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemQ) Dequeue(ctx context.Context, block time.Duration) (string, error) {
	t := time.NewTimer(block)
	defer t.Stop()
	select {
	case id := <-q.ch:
		return id, nil
	case <-t.C:
		return "", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Len reports how many jobs are waiting; used by tests.
func (q *MemQ) Len() int { return len(q.ch) }
