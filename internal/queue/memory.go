package queue

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/nuvom/nuvom/internal/codec"
	"github.com/nuvom/nuvom/internal/job"
)

// Memory is an in-process FIFO queue backend. Serialization through the
// codec is applied (encode on enqueue, decode on dequeue), so a job comes
// out as the file backend would return it (JSON numbers in args and kwargs
// decode as float64); swapping to the file backend changes no
// caller-visible behavior.
type Memory struct {
	mu       sync.Mutex
	notEmpty chan struct{} // closed and replaced whenever an item is pushed
	items    *list.List
	codec    codec.Codec
}

func NewMemory() *Memory {
	return &Memory{
		items:    list.New(),
		codec:    codec.Default(),
		notEmpty: make(chan struct{}),
	}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Enqueue(ctx context.Context, j *job.Job) error {
	raw, err := m.codec.Encode(j)
	if err != nil {
		return err
	}
	var decoded job.Job
	if err := m.codec.Decode(raw, &decoded); err != nil {
		return err
	}
	decoded.Hooks = j.Hooks // hooks are process-local closures, never serialized

	m.mu.Lock()
	m.items.PushBack(&decoded)
	wake := m.notEmpty
	m.notEmpty = make(chan struct{})
	m.mu.Unlock()
	close(wake)
	return nil
}

// Dequeue blocks up to timeout for the oldest available job.
func (m *Memory) Dequeue(ctx context.Context, timeout time.Duration) (*job.Job, error) {
	batch, err := m.PopBatch(ctx, 1, timeout)
	if err != nil {
		return nil, err
	}
	if len(batch) == 0 {
		return nil, nil
	}
	return batch[0], nil
}

// PopBatch returns up to n oldest jobs, waiting in aggregate (a single
// deadline for the whole batch, not per item) up to timeout for at least
// one to become available, then draining whatever else is ready without
// further waiting.
func (m *Memory) PopBatch(ctx context.Context, n int, timeout time.Duration) ([]*job.Job, error) {
	if n <= 0 {
		return nil, nil
	}
	deadline := time.Now().Add(timeout)

	for {
		m.mu.Lock()
		if m.items.Len() > 0 {
			out := make([]*job.Job, 0, n)
			for m.items.Len() > 0 && len(out) < n {
				front := m.items.Front()
				m.items.Remove(front)
				out = append(out, front.Value.(*job.Job))
			}
			m.mu.Unlock()
			return out, nil
		}
		wake := m.notEmpty
		m.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		select {
		case <-wake:
			// an item arrived; loop around and drain
		case <-time.After(remaining):
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (m *Memory) Size(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items.Len(), nil
}

func (m *Memory) Clear(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.items.Len()
	m.items.Init()
	return n, nil
}
