package worker

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/nuvom/nuvom/internal/metrics"
	"github.com/nuvom/nuvom/internal/nuvomlog"
	"github.com/nuvom/nuvom/internal/queue"
	"github.com/nuvom/nuvom/internal/runner"
)

// Config controls pool sizing.
type Config struct {
	NumWorkers int
	BatchSize  int
}

// Pool owns the fixed set of workers and the single dispatcher thread. A
// process-wide shutdown flag is shared by all of them; Shutdown sets it and
// blocks until the dispatcher has stopped and every worker has drained its
// mailbox.
type Pool struct {
	workers    []*Worker
	dispatcher *dispatcher
	shutdown   int32
	wg         sync.WaitGroup
	log        *nuvomlog.Logger
}

// New builds a pool of cfg.NumWorkers workers plus one dispatcher, wired to
// q and r. Call Start to begin processing.
func New(cfg Config, q queue.Backend, r *runner.Runner, log *nuvomlog.Logger) *Pool {
	if log == nil {
		log = nuvomlog.NewNop()
	}
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}

	p := &Pool{log: log.With("component", "worker_pool")}
	p.workers = make([]*Worker, cfg.NumWorkers)
	for i := range p.workers {
		p.workers[i] = newWorker(i, r, log)
	}
	p.dispatcher = newDispatcher(q, p.workers, cfg.BatchSize, log)
	return p
}

// SetMetrics attaches a metrics registry to every worker and the
// dispatcher. Optional; call before Start.
func (p *Pool) SetMetrics(m *metrics.Registry) {
	for _, w := range p.workers {
		w.metrics = m
	}
	p.dispatcher.metrics = m
}

func (p *Pool) isShuttingDown() bool {
	return atomic.LoadInt32(&p.shutdown) == 1
}

// Start launches one goroutine per worker plus the dispatcher goroutine.
// Returns immediately; callers wait via Shutdown or ctx cancellation.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go w.run(ctx, p.isShuttingDown, &p.wg)
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.dispatcher.run(ctx, p.isShuttingDown)
	}()
	p.log.Info("worker pool started", "num_workers", len(p.workers))
}

// Shutdown sets the shared shutdown flag and blocks until the dispatcher
// has exited and every worker has drained its mailbox and exited. Jobs
// still resident in the queue backend are left untouched (they remain
// durable for replay on next start).
func (p *Pool) Shutdown() {
	atomic.StoreInt32(&p.shutdown, 1)
	p.log.Info("shutdown requested, waiting for drain")
	p.wg.Wait()
	p.log.Info("worker pool stopped")
}
