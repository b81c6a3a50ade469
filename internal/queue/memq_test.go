package queue

import (
	"context"
	"testing"
	"time"
)

func TestMemQRoundTrip(t *testing.T) {
	q := NewMem(4)
	ctx := context.Background()
	if err := q.Enqueue(ctx, "job-1"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	id, err := q.Dequeue(ctx, time.Second)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if id != "job-1" {
		t.Fatalf("expected job-1, got %q", id)
	}
}

func TestMemQDequeueTimeout(t *testing.T) {
	q := NewMem(4)
	id, err := q.Dequeue(context.Background(), 10*time.Millisecond)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if id != "" {
		t.Fatalf("expected empty id on timeout, got %q", id)
	}
}

func TestMemQDequeueHonoursContext(t *testing.T) {
	q := NewMem(4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := q.Dequeue(ctx, time.Minute); err == nil {
		t.Fatal("expected context error")
	}
}
