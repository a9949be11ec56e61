// Package scheduler implements the persistent schedule store plus the
// min-heap dispatch loop: at each due tick it materializes a Job from a
// Task's defaults merged with the schedule's args/kwargs and enqueues it.
// Grounded on the cron-driven polling loop in other_examples'
// minisource-scheduler (one goroutine ticking against a due-jobs query)
// generalized to a heap instead of a fixed poll interval, and on
// container/heap for the due-time ordering itself.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/nuvom/nuvom/internal/job"
	"github.com/nuvom/nuvom/internal/metrics"
	"github.com/nuvom/nuvom/internal/nuvomerr"
	"github.com/nuvom/nuvom/internal/nuvomlog"
	"github.com/nuvom/nuvom/internal/queue"
	"github.com/nuvom/nuvom/internal/result"
)

const defaultTick = time.Second

// TaskLookup is the slice of job.TaskRegistry the scheduler needs to
// materialize a Job from a schedule.
type TaskLookup interface {
	Get(name string) (*job.Task, bool)
}

// Scheduler owns the schedule store and the in-memory min-heap loop that
// dispatches due schedules to the queue backend.
type Scheduler struct {
	store   *Store
	tasks   TaskLookup
	queue   queue.Backend
	results result.Backend
	log     *nuvomlog.Logger

	mu          sync.Mutex // guards heap and running/outstanding counters; store writes outside Load happen without it
	heap        *scheduleHeap
	running     map[string]int      // schedule id -> in-flight execution count
	outstanding map[string][]string // schedule id -> dispatched job IDs not yet confirmed terminal
	wake        chan struct{}
	stopped     chan struct{}
	metrics     *metrics.Registry
}

// SetMetrics attaches a metrics registry; each successful dispatch
// increments nuvom_scheduler_dispatches_total. Optional.
func (s *Scheduler) SetMetrics(m *metrics.Registry) { s.metrics = m }

// New builds a Scheduler. results is optional: when non-nil, the
// concurrency_limit counter is reconciled against each outstanding job's
// terminal status in the result backend each time the schedule fires, so the limit
// reflects jobs actually still running rather than a same-tick counter
// that would always read zero. When nil, concurrency_limit is effectively
// disabled (every fire is allowed).
func New(store *Store, tasks TaskLookup, q queue.Backend, results result.Backend, log *nuvomlog.Logger) *Scheduler {
	if log == nil {
		log = nuvomlog.NewNop()
	}
	return &Scheduler{
		store:       store,
		tasks:       tasks,
		queue:       q,
		results:     results,
		log:         log.With("component", "scheduler"),
		heap:        newScheduleHeap(),
		running:     make(map[string]int),
		outstanding: make(map[string][]string),
		wake:        make(chan struct{}, 1),
		stopped:     make(chan struct{}),
	}
}

// Load reads all schedules from the store, computes next_run_ts where
// missing, applies misfire policy to anything already overdue, and seeds
// the heap. Must be called once before Run.
func (s *Scheduler) Load(ctx context.Context) error {
	schedules, err := s.store.List(ctx)
	if err != nil {
		return err
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sched := range schedules {
		if !sched.Enabled {
			continue
		}
		if sched.NextRunTS == nil {
			next, err := s.computeNext(sched, now)
			if err != nil {
				s.log.Warn("skipping misconfigured schedule on load", "schedule_id", sched.ID, "error", err)
				continue
			}
			sched.NextRunTS = &next
		}
		if sched.NextRunTS.Before(now) {
			s.applyMisfire(sched, now)
			if err := s.store.Update(ctx, sched); err != nil {
				return err
			}
		}
		if sched.Enabled && sched.NextRunTS != nil {
			s.heap.upsert(sched.ID, *sched.NextRunTS)
		}
	}
	return nil
}

func (s *Scheduler) applyMisfire(sched *Schedule, now time.Time) {
	switch sched.MisfirePolicy {
	case MisfireSkip:
		next, err := s.computeNext(sched, now)
		if err == nil {
			sched.NextRunTS = &next
		}
	case MisfireReschedule:
		sched.NextRunTS = &now
	default: // run_immediately: leave next_run_ts in the past
	}
}

// Run is the scheduler's main loop. Blocks until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.stopped)
	for {
		wait := s.nextWait()
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.wake:
			timer.Stop()
		case <-timer.C:
		}
		s.dispatchDue(ctx)
	}
}

func (s *Scheduler) nextWait() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, key, ok := s.heap.peek()
	if !ok {
		return defaultTick
	}
	wait := time.Until(key)
	if wait < 0 {
		return 0
	}
	return wait
}

func (s *Scheduler) dispatchDue(ctx context.Context) {
	now := time.Now()

	s.mu.Lock()
	dueIDs := s.heap.popDue(now)
	s.mu.Unlock()

	for _, id := range dueIDs {
		s.fireOne(ctx, id, now)
	}
}

func (s *Scheduler) fireOne(ctx context.Context, id string, now time.Time) {
	sched, ok, err := s.store.Get(ctx, id)
	if err != nil || !ok || !sched.Enabled {
		return
	}

	s.reconcileRunning(ctx, sched.ID)

	if limited := s.concurrencyLimited(sched); limited {
		s.log.Debug("schedule skipped, concurrency limit reached", "schedule_id", id)
		s.rescheduleAfterFire(ctx, sched, now)
		return
	}

	if task, ok := s.tasks.Get(sched.TaskName); ok {
		j := task.Build(sched.Args, sched.Kwargs)
		if err := s.queue.Enqueue(ctx, j); err != nil {
			s.log.Error("failed to enqueue scheduled job", "schedule_id", id, "error", err)
		} else {
			s.trackOutstanding(sched.ID, j.ID)
			if s.metrics != nil {
				s.metrics.SchedulerRun.Inc()
			}
		}
	} else {
		s.log.Warn("scheduled task not registered", "schedule_id", id, "task_name", sched.TaskName)
	}

	s.rescheduleAfterFire(ctx, sched, now)
}

// reconcileRunning drops any job IDs previously dispatched for id whose
// result backend record is now terminal, so running counts reflect jobs
// actually still in flight instead of a same-tick counter. A no-op when no
// result backend was wired.
func (s *Scheduler) reconcileRunning(ctx context.Context, id string) {
	if s.results == nil {
		return
	}
	s.mu.Lock()
	jobIDs := append([]string(nil), s.outstanding[id]...)
	s.mu.Unlock()
	if len(jobIDs) == 0 {
		return
	}

	still := jobIDs[:0:0]
	for _, jobID := range jobIDs {
		rec, ok, err := s.results.GetFull(ctx, jobID)
		if err != nil {
			s.log.Warn("failed to check scheduled job status", "schedule_id", id, "job_id", jobID, "error", err)
			still = append(still, jobID)
			continue
		}
		if !ok || (rec.Status != job.StatusSuccess && rec.Status != job.StatusFailed) {
			still = append(still, jobID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[id] = len(still)
	if len(still) == 0 {
		delete(s.outstanding, id)
		delete(s.running, id)
	} else {
		s.outstanding[id] = still
	}
}

func (s *Scheduler) trackOutstanding(id, jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outstanding[id] = append(s.outstanding[id], jobID)
	s.running[id] = len(s.outstanding[id])
}

func (s *Scheduler) rescheduleAfterFire(ctx context.Context, sched *Schedule, now time.Time) {
	if sched.Type == TypeOnce {
		sched.Enabled = false
		sched.NextRunTS = nil
		_ = s.store.Update(ctx, sched)
		return
	}

	next, err := s.computeNext(sched, now)
	if err != nil {
		s.log.Error("failed to compute next run, disabling schedule", "schedule_id", sched.ID, "error", err)
		sched.Enabled = false
		_ = s.store.Update(ctx, sched)
		return
	}
	sched.NextRunTS = &next
	sched.UpdatedAt = now
	if err := s.store.Update(ctx, sched); err != nil {
		s.log.Error("failed to persist rescheduled next_run_ts", "schedule_id", sched.ID, "error", err)
		return
	}

	s.mu.Lock()
	if sched.Enabled {
		s.heap.upsert(sched.ID, next)
	}
	s.mu.Unlock()
}

func (s *Scheduler) concurrencyLimited(sched *Schedule) bool {
	if sched.ConcurrencyLimit == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running[sched.ID] >= *sched.ConcurrencyLimit
}

// computeNext derives the next firing time per the schedule's type: cron
// yields the next match strictly after `from`; interval yields base plus
// the fewest whole intervals (at least one) that reach `from`; once yields
// run_at unchanged.
func (s *Scheduler) computeNext(sched *Schedule, from time.Time) (time.Time, error) {
	switch sched.Type {
	case TypeInterval:
		if sched.IntervalSecs == nil || *sched.IntervalSecs <= 0 {
			return time.Time{}, nuvomerr.New(nuvomerr.KindScheduleMisconfig, "interval_secs must be positive")
		}
		interval := time.Duration(*sched.IntervalSecs) * time.Second
		base := from
		if sched.NextRunTS != nil {
			base = *sched.NextRunTS
		} else if sched.RunAt != nil {
			base = *sched.RunAt
		}
		elapsed := from.Sub(base)
		if elapsed < 0 {
			elapsed = 0
		}
		steps := elapsed / interval
		if elapsed%interval != 0 {
			steps++
		}
		if steps == 0 {
			steps = 1 // the computed next firing must be strictly after `from`
		}
		return base.Add(interval * steps), nil

	case TypeCron:
		loc, err := time.LoadLocation(sched.Timezone)
		if err != nil {
			return time.Time{}, nuvomerr.Wrap(nuvomerr.KindScheduleMisconfig, "invalid timezone "+sched.Timezone, err)
		}
		parsed, err := cron.ParseStandard(sched.CronExpr)
		if err != nil {
			return time.Time{}, nuvomerr.Wrap(nuvomerr.KindScheduleMisconfig, "invalid cron expression "+sched.CronExpr, err)
		}
		return parsed.Next(from.In(loc)), nil

	case TypeOnce:
		if sched.RunAt == nil {
			return time.Time{}, nuvomerr.New(nuvomerr.KindScheduleMisconfig, "once schedule requires run_at")
		}
		return *sched.RunAt, nil

	default:
		return time.Time{}, nuvomerr.New(nuvomerr.KindScheduleMisconfig, "unknown schedule type "+string(sched.Type))
	}
}

func (s *Scheduler) signalWake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// --- public operations ---

// Add validates and persists a new schedule, computing its first
// next_run_ts and inserting it into the heap. Always signals the wake-up
// condition so the loop reconsiders the head.
func (s *Scheduler) Add(ctx context.Context, sched *Schedule) error {
	if sched.ID == "" {
		sched.ID = uuid.NewString()
	}
	if sched.Timezone == "" {
		sched.Timezone = "UTC"
	}
	now := time.Now()
	sched.CreatedAt = now
	sched.UpdatedAt = now

	if sched.Enabled {
		next, err := s.computeNext(sched, now)
		if err != nil {
			return err
		}
		sched.NextRunTS = &next
	}

	if err := s.store.Add(ctx, sched); err != nil {
		return err
	}
	if sched.Enabled {
		s.mu.Lock()
		s.heap.upsert(sched.ID, *sched.NextRunTS)
		s.mu.Unlock()
	}
	s.signalWake()
	return nil
}

func (s *Scheduler) Update(ctx context.Context, sched *Schedule) error {
	sched.UpdatedAt = time.Now()
	if err := s.store.Update(ctx, sched); err != nil {
		return err
	}
	s.mu.Lock()
	if sched.Enabled && sched.NextRunTS != nil {
		s.heap.upsert(sched.ID, *sched.NextRunTS)
	} else {
		s.heap.remove(sched.ID)
	}
	s.mu.Unlock()
	s.signalWake()
	return nil
}

func (s *Scheduler) Remove(ctx context.Context, id string) error {
	if err := s.store.Remove(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	s.heap.remove(id)
	delete(s.running, id)
	s.mu.Unlock()
	s.signalWake()
	return nil
}

func (s *Scheduler) Get(ctx context.Context, id string) (*Schedule, bool, error) {
	return s.store.Get(ctx, id)
}

func (s *Scheduler) List(ctx context.Context) ([]*Schedule, error) {
	return s.store.List(ctx)
}

func (s *Scheduler) Enable(ctx context.Context, id string) error {
	sched, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return nuvomerr.New(nuvomerr.KindNotFound, "schedule not found: "+id)
	}
	sched.Enabled = true
	next, err := s.computeNext(sched, time.Now())
	if err != nil {
		return err
	}
	sched.NextRunTS = &next
	return s.Update(ctx, sched)
}

func (s *Scheduler) Disable(ctx context.Context, id string) error {
	sched, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return nuvomerr.New(nuvomerr.KindNotFound, "schedule not found: "+id)
	}
	sched.Enabled = false
	return s.Update(ctx, sched)
}

// RunOnceNow materializes and enqueues a Job for sched immediately,
// bypassing next_run_ts bookkeeping entirely.
func (s *Scheduler) RunOnceNow(ctx context.Context, id string) error {
	sched, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return nuvomerr.New(nuvomerr.KindNotFound, "schedule not found: "+id)
	}
	task, ok := s.tasks.Get(sched.TaskName)
	if !ok {
		return nuvomerr.New(nuvomerr.KindTaskNotRegistered, fmt.Sprintf("task %s not registered for schedule %s", sched.TaskName, id))
	}
	j := task.Build(sched.Args, sched.Kwargs)
	return s.queue.Enqueue(ctx, j)
}
