package queue

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nuvom/nuvom/internal/job"
)

// newTestRedis skips the test unless a real Redis instance answers PING on
// localhost:6379; there is no in-process fake in the retrieved pack for
// go-redis, so this integration test runs opportunistically the same way
// the pack's own Postgres/MinIO integration tests skip without a live
// dependency.
func newTestRedis(t *testing.T) *Redis {
	t.Helper()
	key := "nuvom:test:" + uuid.NewString()
	r := NewRedis("localhost:6379", key)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if _, err := r.client.Ping(ctx).Result(); err != nil {
		t.Skipf("redis not reachable on localhost:6379: %v", err)
	}
	t.Cleanup(func() {
		_, _ = r.Clear(context.Background())
		r.Close()
	})
	return r
}

func TestRedisEnqueueDequeueRoundTrips(t *testing.T) {
	r := newTestRedis(t)
	j := job.New("add", []interface{}{1, 2}, nil)
	if err := r.Enqueue(context.Background(), j); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	got, err := r.Dequeue(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if got == nil || got.ID != j.ID {
		t.Fatalf("expected job %s back, got %+v", j.ID, got)
	}
}

func TestRedisDequeueTimesOutOnEmptyQueue(t *testing.T) {
	r := newTestRedis(t)
	got, err := r.Dequeue(context.Background(), 100*time.Millisecond)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil on empty queue, got %+v", got)
	}
}

func TestRedisPopBatchDrainsWhatsAvailable(t *testing.T) {
	r := newTestRedis(t)
	for i := 0; i < 3; i++ {
		if err := r.Enqueue(context.Background(), job.New("add", []interface{}{i}, nil)); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	batch, err := r.PopBatch(context.Background(), 5, time.Second)
	if err != nil {
		t.Fatalf("pop batch: %v", err)
	}
	if len(batch) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(batch))
	}
}

func TestRedisSizeAndClear(t *testing.T) {
	r := newTestRedis(t)
	if err := r.Enqueue(context.Background(), job.New("add", nil, nil)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	n, err := r.Size(context.Background())
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected size 1, got %d", n)
	}
	cleared, err := r.Clear(context.Background())
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if cleared != 1 {
		t.Fatalf("expected 1 item cleared, got %d", cleared)
	}
}
