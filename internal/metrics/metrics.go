// Package metrics registers the Prometheus collectors that expose queue
// depth, worker load, job outcomes, and scheduler dispatch counts, and
// serves them over the standard /metrics HTTP convention. It is the one
// concrete slice of the pack's observability stack (client_golang, used
// the same direct way every "/metrics" exporter in the ecosystem does)
// bound to the job-queue core rather than left unwired.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nuvom/nuvom/internal/nuvomlog"
)

const shutdownGrace = 5 * time.Second

// Registry bundles the collectors nuvom's core components update directly.
// Callers set gauges from whatever they currently measure; counters are
// incremented at the point an outcome is known.
type Registry struct {
	QueueDepth   *prometheus.GaugeVec
	WorkerBusy   *prometheus.GaugeVec
	JobOutcomes  *prometheus.CounterVec
	SchedulerRun prometheus.Counter
}

// New registers all collectors against a fresh prometheus.Registry so that
// repeated calls in tests never collide with the global default registry.
func New() (*Registry, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	r := &Registry{
		QueueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "nuvom",
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Current number of jobs waiting in the queue, by backend name.",
		}, []string{"backend"}),
		WorkerBusy: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "nuvom",
			Subsystem: "worker",
			Name:      "busy",
			Help:      "Number of jobs currently in flight on a worker, by worker id.",
		}, []string{"worker_id"}),
		JobOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nuvom",
			Subsystem: "job",
			Name:      "outcomes_total",
			Help:      "Total job outcomes, by function name and outcome (success, failed, requeue).",
		}, []string{"func_name", "outcome"}),
		SchedulerRun: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "nuvom",
			Subsystem: "scheduler",
			Name:      "dispatches_total",
			Help:      "Total number of scheduled jobs materialized and enqueued by the scheduler.",
		}),
	}
	return r, reg
}

// Server serves the Prometheus exposition format on the configured port.
type Server struct {
	httpSrv *http.Server
	log     *nuvomlog.Logger
}

// NewServer wires promhttp.HandlerFor against reg and binds it to port.
func NewServer(reg *prometheus.Registry, port int, log *nuvomlog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &Server{
		httpSrv: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
		log: log,
	}
}

// Start runs the metrics HTTP server until ctx is canceled or the listener
// fails. ListenAndServe's ErrServerClosed on graceful shutdown is swallowed.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the metrics HTTP server.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		if s.log != nil {
			s.log.Warn("metrics server shutdown error", "error", err)
		}
		return err
	}
	return nil
}
