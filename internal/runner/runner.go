// Package runner executes exactly one job at a time: it enforces the
// per-job timeout, runs hooks in isolation from the job outcome, classifies
// the result, and hands terminal jobs to the result backend or re-enqueues
// retries to the queue backend.
package runner

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/nuvom/nuvom/internal/job"
	"github.com/nuvom/nuvom/internal/metrics"
	"github.com/nuvom/nuvom/internal/nuvomerr"
	"github.com/nuvom/nuvom/internal/nuvomlog"
	"github.com/nuvom/nuvom/internal/queue"
	"github.com/nuvom/nuvom/internal/result"
)

// Outcome is what a single Run call produced.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomeRequeue Outcome = "requeue"
)

// Defaults carries worker-level fallbacks applied when a Job doesn't set
// its own timeout or retry delay.
type Defaults struct {
	TimeoutSecs int
	RetryDelay  int
}

// Runner ties a task registry to the queue and result backends it hands
// outcomes to.
type Runner struct {
	Tasks    TaskLookup
	Queue    queue.Backend
	Results  result.Backend
	Log      *nuvomlog.Logger
	Defaults Defaults
	Metrics  *metrics.Registry
}

// SetMetrics attaches a metrics registry; outcomes recorded from this point
// on increment nuvom_job_outcomes_total. Nil-safe and optional — a Runner
// with no registry attached behaves exactly as before.
func (r *Runner) SetMetrics(m *metrics.Registry) { r.Metrics = m }

func (r *Runner) recordOutcome(funcName string, outcome Outcome) {
	if r.Metrics == nil {
		return
	}
	r.Metrics.JobOutcomes.WithLabelValues(funcName, string(outcome)).Inc()
}

// TaskLookup is the narrow slice of job.TaskRegistry the runner needs.
type TaskLookup interface {
	Get(name string) (*job.Task, bool)
}

func New(tasks TaskLookup, q queue.Backend, r result.Backend, log *nuvomlog.Logger, defaults Defaults) *Runner {
	if log == nil {
		log = nuvomlog.NewNop()
	}
	return &Runner{Tasks: tasks, Queue: q, Results: r, Log: log.With("component", "runner"), Defaults: defaults}
}

// Run executes j to completion: one of success, failed, or requeue. It
// never panics out to the caller — a panicking task body is treated the
// same as a returned error.
func (r *Runner) Run(ctx context.Context, j *job.Job) Outcome {
	outcome := r.run(ctx, j)
	r.recordOutcome(j.FuncName, outcome)
	return outcome
}

func (r *Runner) run(ctx context.Context, j *job.Job) Outcome {
	j.Status = job.StatusRunning
	j.Attempts++

	t, ok := r.Tasks.Get(j.FuncName)
	if !ok {
		err := nuvomerr.New(nuvomerr.KindTaskNotRegistered, "no task registered: "+j.FuncName)
		return r.terminalFailure(ctx, j, err)
	}

	r.runHook("before_job", func() { callBefore(j) })

	timeout := r.timeoutFor(j)
	res, err := r.execute(ctx, t, j, timeout)

	switch {
	case err == nil:
		r.runHook("after_job", func() { callAfter(j) })
		j.Status = job.StatusSuccess
		j.Result = res
		j.Error = nil
		if j.StoreResult {
			r.persistSuccess(ctx, j)
		}
		return OutcomeSuccess

	case nuvomerr.Is(err, nuvomerr.ErrTimeout):
		return r.handleTimeout(ctx, j, err)

	default:
		r.runHook("on_error", func() { callOnError(j, err) })
		return r.terminalOrRetry(ctx, j, err)
	}
}

func (r *Runner) timeoutFor(j *job.Job) time.Duration {
	if j.TimeoutSecs != nil && *j.TimeoutSecs > 0 {
		return time.Duration(*j.TimeoutSecs) * time.Second
	}
	if r.Defaults.TimeoutSecs > 0 {
		return time.Duration(r.Defaults.TimeoutSecs) * time.Second
	}
	return 0 // no deadline
}

func (r *Runner) retryDelay(j *job.Job) time.Duration {
	if j.RetryDelay != nil {
		return time.Duration(*j.RetryDelay) * time.Second
	}
	if r.Defaults.RetryDelay > 0 {
		return time.Duration(r.Defaults.RetryDelay) * time.Second
	}
	return 0
}

// execute runs the task body on a one-off timed primitive: a goroutine the
// runner observes via a deadline. If the task's invocable does not respect
// ctx cancellation, the goroutine is abandoned (not killed — Go has no
// preemptive cancellation) and allowed to finish independently; the runner
// returns on deadline regardless.
func (r *Runner) execute(ctx context.Context, t *job.Task, j *job.Job, timeout time.Duration) (interface{}, error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		val interface{}
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: panicToError(rec)}
			}
		}()
		val, err := t.Fn(runCtx, j.Args, j.Kwargs)
		done <- outcome{val: val, err: err}
	}()

	select {
	case o := <-done:
		return o.val, o.err
	case <-runCtx.Done():
		return nil, nuvomerr.Wrap(nuvomerr.KindTimeout, "job timed out", runCtx.Err())
	}
}

func panicToError(rec interface{}) error {
	return nuvomerr.Wrap(nuvomerr.KindUserException, fmt.Sprintf("panic: %v", rec), nil).
		withTraceback(string(debug.Stack()))
}

func (r *Runner) handleTimeout(ctx context.Context, j *job.Job, err error) Outcome {
	switch j.TimeoutPolicy {
	case job.TimeoutPolicyIgnore:
		j.Status = job.StatusSuccess
		j.Result = nil
		j.Error = nil
		if j.StoreResult {
			r.persistSuccess(ctx, j)
		}
		return OutcomeSuccess
	case job.TimeoutPolicyRetry:
		return r.terminalOrRetry(ctx, j, err)
	default: // fail
		return r.terminalFailure(ctx, j, err)
	}
}

// terminalOrRetry decides between a retry re-enqueue and a terminal
// failure based on retries_left, decremented here (on failure only, per
// the resolved retry-accounting policy).
func (r *Runner) terminalOrRetry(ctx context.Context, j *job.Job, cause error) Outcome {
	if j.RetriesLeft > 0 {
		j.RetriesLeft--
		delay := r.retryDelay(j)
		next := time.Now().Add(delay)
		j.NextRetryAt = &next
		j.Status = job.StatusPending
		j.Error = nil

		if err := r.Queue.Enqueue(ctx, j); err != nil {
			wrapped := nuvomerr.Wrap(nuvomerr.KindBackendUnavailable, "retry re-enqueue failed, job lost", err)
			r.Log.Error("retry re-enqueue failed", "job_id", j.ID, "error", wrapped)
			return OutcomeFailed
		}
		r.Log.Info("job re-enqueued for retry", "job_id", j.ID, "retries_left", j.RetriesLeft, "next_retry_at", next)
		return OutcomeRequeue
	}
	return r.terminalFailure(ctx, j, cause)
}

func (r *Runner) terminalFailure(ctx context.Context, j *job.Job, cause error) Outcome {
	j.Status = job.StatusFailed
	j.Result = nil
	j.Error = errorDetailFrom(cause)
	r.Log.Warn("job failed terminally", "job_id", j.ID, "func_name", j.FuncName, "error", cause)
	if j.StoreResult {
		r.persistFailure(ctx, j)
	}
	return OutcomeFailed
}

func errorDetailFrom(err error) *job.ErrorDetail {
	var ne *nuvomerr.Error
	if nuvomerr.AsError(err, &ne) {
		return &job.ErrorDetail{Type: string(ne.Kind), Message: ne.Message, Traceback: ne.Traceback}
	}
	return &job.ErrorDetail{Type: fmt.Sprintf("%T", err), Message: err.Error()}
}

func (r *Runner) persistSuccess(ctx context.Context, j *job.Job) {
	now := time.Now()
	rec := result.Record{
		JobID: j.ID, FuncName: j.FuncName, Result: j.Result,
		Args: j.Args, Kwargs: j.Kwargs, Attempts: j.Attempts, RetriesLeft: j.RetriesLeft,
		CreatedAt: j.CreatedAt, CompletedAt: &now,
	}
	if err := r.Results.SetResult(ctx, rec); err != nil {
		r.Log.Error("failed to persist success result", "job_id", j.ID, "error", err)
	}
}

func (r *Runner) persistFailure(ctx context.Context, j *job.Job) {
	now := time.Now()
	rec := result.Record{
		JobID: j.ID, FuncName: j.FuncName, Error: j.Error,
		Args: j.Args, Kwargs: j.Kwargs, Attempts: j.Attempts, RetriesLeft: j.RetriesLeft,
		CreatedAt: j.CreatedAt, CompletedAt: &now,
	}
	if err := r.Results.SetError(ctx, rec); err != nil {
		r.Log.Error("failed to persist failure result", "job_id", j.ID, "error", err)
	}
}

// runHook invokes a hook callback with its own panic recovery: hook
// failures are logged and never alter the job's outcome.
func (r *Runner) runHook(name string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.Log.Warn("hook panicked, ignored", "hook", name, "recover", rec)
		}
	}()
	fn()
}

func callBefore(j *job.Job) {
	if j.Hooks.Before != nil {
		j.Hooks.Before(j)
	}
}

func callAfter(j *job.Job) {
	if j.Hooks.After != nil {
		j.Hooks.After(j)
	}
}

func callOnError(j *job.Job, err error) {
	if j.Hooks.OnError != nil {
		j.Hooks.OnError(j, err)
	}
}
