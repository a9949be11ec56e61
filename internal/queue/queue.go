// Package queue implements the durable FIFO job queue backends: an
// in-memory variant for single-process use and tests, a file-backed
// variant providing atomic cross-process claim semantics, and a Redis
// list-backed variant.
package queue

import (
	"context"
	"time"

	"github.com/nuvom/nuvom/internal/job"
)

// Backend is the common contract every queue implementation satisfies.
// Enqueue never blocks on a full queue: queues are effectively unbounded
// unless a backend is explicitly configured otherwise.
type Backend interface {
	Enqueue(ctx context.Context, j *job.Job) error
	Dequeue(ctx context.Context, timeout time.Duration) (*job.Job, error)
	PopBatch(ctx context.Context, n int, timeout time.Duration) ([]*job.Job, error)
	Size(ctx context.Context) (int, error)
	Clear(ctx context.Context) (int, error)
	Name() string
}
