package queue

import (
	"context"
	"testing"
	"time"

	"github.com/nuvom/nuvom/internal/job"
)

func TestMemoryFIFOOrder(t *testing.T) {
	q := NewMemory()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		j := job.New("noop", nil, nil)
		if err := q.Enqueue(ctx, j); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
		time.Sleep(time.Millisecond)
	}

	got, err := q.PopBatch(ctx, 5, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("pop batch: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 jobs, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].CreatedAt.Before(got[i-1].CreatedAt) {
			t.Fatalf("FIFO order violated at index %d", i)
		}
	}
}

func TestMemoryDequeueTimesOutWhenEmpty(t *testing.T) {
	q := NewMemory()
	start := time.Now()
	j, err := q.Dequeue(context.Background(), 20*time.Millisecond)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if j != nil {
		t.Fatalf("expected nil job on empty timeout, got %+v", j)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Fatalf("returned before timeout elapsed")
	}
}

func TestMemoryDequeueWakesOnEnqueue(t *testing.T) {
	q := NewMemory()
	done := make(chan *job.Job, 1)
	go func() {
		j, _ := q.Dequeue(context.Background(), time.Second)
		done <- j
	}()

	time.Sleep(10 * time.Millisecond)
	want := job.New("noop", nil, nil)
	if err := q.Enqueue(context.Background(), want); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case got := <-done:
		if got == nil || got.ID != want.ID {
			t.Fatalf("expected job %s, got %+v", want.ID, got)
		}
	case <-time.After(time.Second):
		t.Fatal("dequeue never woke up after enqueue")
	}
}

func TestMemorySizeAndClear(t *testing.T) {
	q := NewMemory()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_ = q.Enqueue(ctx, job.New("noop", nil, nil))
	}
	n, err := q.Size(ctx)
	if err != nil || n != 3 {
		t.Fatalf("expected size 3, got %d (err %v)", n, err)
	}
	cleared, err := q.Clear(ctx)
	if err != nil || cleared != 3 {
		t.Fatalf("expected clear count 3, got %d (err %v)", cleared, err)
	}
	n, _ = q.Size(ctx)
	if n != 0 {
		t.Fatalf("expected empty queue after clear, got %d", n)
	}
}

func TestMemoryHooksSurviveRoundTrip(t *testing.T) {
	q := NewMemory()
	ctx := context.Background()
	called := false
	j := job.New("noop", nil, nil)
	j.Hooks.Before = func(*job.Job) { called = true }

	if err := q.Enqueue(ctx, j); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	got, err := q.Dequeue(ctx, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if got.Hooks.Before == nil {
		t.Fatal("expected Before hook to survive in-process round trip")
	}
	got.Hooks.Before(got)
	if !called {
		t.Fatal("hook was not the original closure")
	}
}
