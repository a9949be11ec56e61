package worker

import (
	"context"
	"time"

	"github.com/nuvom/nuvom/internal/job"
	"github.com/nuvom/nuvom/internal/metrics"
	"github.com/nuvom/nuvom/internal/nuvomlog"
	"github.com/nuvom/nuvom/internal/queue"
)

const dispatchTimeout = time.Second

// dispatcher pulls batches from the queue backend and routes each ready
// job to the least-loaded worker (ties broken by worker id), re-enqueuing
// any job whose next_retry_at has not yet arrived.
type dispatcher struct {
	q         queue.Backend
	workers   []*Worker
	batchSize int
	log       *nuvomlog.Logger
	metrics   *metrics.Registry
}

func newDispatcher(q queue.Backend, workers []*Worker, batchSize int, log *nuvomlog.Logger) *dispatcher {
	return &dispatcher{q: q, workers: workers, batchSize: batchSize, log: log.With("component", "dispatcher")}
}

func (d *dispatcher) run(ctx context.Context, shuttingDown func() bool) {
	for !shuttingDown() {
		batch, err := d.q.PopBatch(ctx, d.batchSize, dispatchTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.log.Warn("pop_batch failed", "error", err)
			continue
		}
		for _, j := range batch {
			d.route(ctx, j)
		}
		d.reportQueueDepth(ctx)
	}
}

func (d *dispatcher) reportQueueDepth(ctx context.Context) {
	if d.metrics == nil {
		return
	}
	n, err := d.q.Size(ctx)
	if err != nil {
		return
	}
	d.metrics.QueueDepth.WithLabelValues(d.q.Name()).Set(float64(n))
}

func (d *dispatcher) route(ctx context.Context, j *job.Job) {
	if j.NextRetryAt != nil && j.NextRetryAt.After(time.Now()) {
		if err := d.q.Enqueue(ctx, j); err != nil {
			d.log.Error("failed to re-enqueue not-yet-due retry", "job_id", j.ID, "error", err)
		}
		return
	}

	target := d.leastLoaded()
	target.Submit(j)
}

// leastLoaded reads each worker's Load (in-flight plus mailbox) in turn (never holding
// more than one worker's mutex at a time) and returns the minimum, ties
// broken by the lowest worker id.
func (d *dispatcher) leastLoaded() *Worker {
	best := d.workers[0]
	bestLoad := best.Load()
	for _, w := range d.workers[1:] {
		load := w.Load()
		if load < bestLoad {
			best, bestLoad = w, load
		}
	}
	return best
}
