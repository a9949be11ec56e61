// Package worker implements the worker pool and dispatcher: N workers each
// with a private mailbox, and a single dispatcher pulling batches from the
// queue backend and routing each job to the least-loaded worker. Modeled on
// the teacher's per-client mailbox channel (internal/sse.Hub) generalized
// from broadcast fan-out to least-loaded dispatch.
package worker

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/nuvom/nuvom/internal/job"
	"github.com/nuvom/nuvom/internal/metrics"
	"github.com/nuvom/nuvom/internal/nuvomlog"
	"github.com/nuvom/nuvom/internal/runner"
)

const mailboxPollInterval = 250 * time.Millisecond

// Worker owns a private, effectively unbounded mailbox and an in-flight
// counter guarded by its own mutex — contention never crosses worker
// boundaries.
type Worker struct {
	id       int
	mu       sync.Mutex
	inbox    chan *job.Job
	inFlight int

	runner  *runner.Runner
	log     *nuvomlog.Logger
	metrics *metrics.Registry
}

func newWorker(id int, r *runner.Runner, log *nuvomlog.Logger) *Worker {
	return &Worker{
		id:     id,
		inbox:  make(chan *job.Job, 4096),
		runner: r,
		log:    log.With("component", "worker", "worker_id", id),
	}
}

// Load returns the current in-flight count plus the jobs waiting in the
// mailbox, used by the dispatcher to pick the least-loaded worker.
func (w *Worker) Load() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inFlight + len(w.inbox)
}

// Submit hands a job to this worker's mailbox. It blocks only when 4096
// jobs are already waiting in that mailbox.
func (w *Worker) Submit(j *job.Job) {
	w.inbox <- j
}

// run is the worker's loop: poll the mailbox with a short timeout so it can
// observe the shutdown flag promptly once its mailbox drains.
func (w *Worker) run(ctx context.Context, shuttingDown func() bool, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case j := <-w.inbox:
			w.execute(ctx, j)
		case <-time.After(mailboxPollInterval):
			if shuttingDown() && len(w.inbox) == 0 {
				return
			}
		}
	}
}

func (w *Worker) execute(ctx context.Context, j *job.Job) {
	w.mu.Lock()
	w.inFlight++
	load := w.inFlight
	w.mu.Unlock()
	w.reportBusy(load)

	defer func() {
		w.mu.Lock()
		w.inFlight--
		load := w.inFlight
		w.mu.Unlock()
		w.reportBusy(load)
	}()

	outcome := w.runner.Run(ctx, j)
	w.log.Debug("job processed", "job_id", j.ID, "func_name", j.FuncName, "outcome", outcome)
}

func (w *Worker) reportBusy(load int) {
	if w.metrics == nil {
		return
	}
	w.metrics.WorkerBusy.WithLabelValues(strconv.Itoa(w.id)).Set(float64(load))
}
