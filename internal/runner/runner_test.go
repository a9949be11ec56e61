package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nuvom/nuvom/internal/job"
	"github.com/nuvom/nuvom/internal/queue"
	"github.com/nuvom/nuvom/internal/result"
)

func intPtr(v int) *int { return &v }

func newFixture(t *testing.T) (*Runner, *job.TaskRegistry, queue.Backend, result.Backend) {
	t.Helper()
	tasks := job.NewTaskRegistry(false)
	q := queue.NewMemory()
	res := result.NewMemory()
	r := New(tasks, q, res, nil, Defaults{})
	return r, tasks, q, res
}

func TestRunArithmeticSuccess(t *testing.T) {
	r, tasks, _, res := newFixture(t)
	tasks.Register(&job.Task{
		Name: "add",
		Fn: func(ctx context.Context, args []interface{}, kwargs map[string]any) (interface{}, error) {
			a := args[0].(int)
			b := args[1].(int)
			return a + b, nil
		},
		DefaultStoreResult: true,
	})
	task, _ := tasks.Get("add")
	j := task.Build([]interface{}{2, 3}, nil)

	outcome := r.Run(context.Background(), j)
	if outcome != OutcomeSuccess {
		t.Fatalf("expected success, got %s", outcome)
	}
	if j.Attempts != 1 {
		t.Fatalf("expected attempts=1, got %d", j.Attempts)
	}
	if j.Result != 5 {
		t.Fatalf("expected result 5, got %v", j.Result)
	}

	rec, ok, err := res.GetFull(context.Background(), j.ID)
	if err != nil || !ok {
		t.Fatalf("expected persisted record: ok=%v err=%v", ok, err)
	}
	if rec.Status != job.StatusSuccess {
		t.Fatalf("expected SUCCESS status in result backend, got %s", rec.Status)
	}
}

func TestRunRetryThenSucceed(t *testing.T) {
	r, tasks, _, res := newFixture(t)
	calls := 0
	tasks.Register(&job.Task{
		Name: "flaky",
		Fn: func(ctx context.Context, args []interface{}, kwargs map[string]any) (interface{}, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("not yet")
			}
			return 7, nil
		},
		DefaultRetries:     1,
		DefaultRetryDelay:  intPtr(0),
		DefaultStoreResult: true,
	})
	task, _ := tasks.Get("flaky")
	j := task.Build(nil, nil)

	first := r.Run(context.Background(), j)
	if first != OutcomeRequeue {
		t.Fatalf("expected requeue on first attempt, got %s", first)
	}
	second := r.Run(context.Background(), j)
	if second != OutcomeSuccess {
		t.Fatalf("expected success on second attempt, got %s", second)
	}
	if j.Attempts != 2 {
		t.Fatalf("expected attempts=2, got %d", j.Attempts)
	}
	if j.Result != 7 {
		t.Fatalf("expected result 7, got %v", j.Result)
	}

	rec, ok, _ := res.GetFull(context.Background(), j.ID)
	if !ok || rec.Status != job.StatusSuccess {
		t.Fatalf("expected one terminal SUCCESS record, got %+v ok=%v", rec, ok)
	}
}

func TestRunPermanentFailureInvokesOnErrorEachAttempt(t *testing.T) {
	r, tasks, _, res := newFixture(t)
	onErrorCalls := 0
	tasks.Register(&job.Task{
		Name: "divzero",
		Fn: func(ctx context.Context, args []interface{}, kwargs map[string]any) (interface{}, error) {
			return nil, errors.New("division by zero")
		},
		DefaultRetries:     2,
		DefaultRetryDelay:  intPtr(0),
		DefaultStoreResult: true,
		DefaultHooks: job.Hooks{
			OnError: func(j *job.Job, err error) { onErrorCalls++ },
		},
	})
	task, _ := tasks.Get("divzero")
	j := task.Build([]interface{}{1}, nil)

	var last Outcome
	for i := 0; i < 3; i++ {
		last = r.Run(context.Background(), j)
	}
	if last != OutcomeFailed {
		t.Fatalf("expected terminal failure on third attempt, got %s", last)
	}
	if j.Attempts != 3 {
		t.Fatalf("expected attempts=3, got %d", j.Attempts)
	}
	if onErrorCalls != 3 {
		t.Fatalf("expected on_error invoked 3 times, got %d", onErrorCalls)
	}

	rec, ok, _ := res.GetFull(context.Background(), j.ID)
	if !ok || rec.Status != job.StatusFailed {
		t.Fatalf("expected terminal FAILED record, got %+v ok=%v", rec, ok)
	}
}

func TestRunTimeoutWithRetryPolicy(t *testing.T) {
	r, tasks, _, _ := newFixture(t)
	tasks.Register(&job.Task{
		Name: "sleepy",
		Fn: func(ctx context.Context, args []interface{}, kwargs map[string]any) (interface{}, error) {
			select {
			case <-time.After(5 * time.Second):
				return nil, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
		DefaultTimeoutSecs: intPtr(0), // overridden below via job-level timeout
		DefaultRetries:     1,
		DefaultRetryDelay:  intPtr(0),
	})
	task, _ := tasks.Get("sleepy")
	j := task.Build(nil, nil)
	j.TimeoutSecs = intPtr(1)
	j.TimeoutPolicy = job.TimeoutPolicyRetry

	first := r.Run(context.Background(), j)
	if first != OutcomeRequeue {
		t.Fatalf("expected requeue on timeout with retry policy, got %s", first)
	}
	second := r.Run(context.Background(), j)
	if second != OutcomeFailed {
		t.Fatalf("expected terminal failure on exhausted retries, got %s", second)
	}
	if j.Attempts != 2 {
		t.Fatalf("expected attempts=2, got %d", j.Attempts)
	}
	if j.Error == nil || j.Error.Type != "timeout" {
		t.Fatalf("expected timeout error type, got %+v", j.Error)
	}
}

func TestRunTimeoutIgnorePolicyYieldsSuccess(t *testing.T) {
	r, tasks, _, _ := newFixture(t)
	tasks.Register(&job.Task{
		Name: "sleepy2",
		Fn: func(ctx context.Context, args []interface{}, kwargs map[string]any) (interface{}, error) {
			select {
			case <-time.After(time.Second):
				return 42, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	})
	task, _ := tasks.Get("sleepy2")
	j := task.Build(nil, nil)
	j.TimeoutSecs = intPtr(1)
	j.TimeoutPolicy = job.TimeoutPolicyIgnore

	outcome := r.Run(context.Background(), j)
	if outcome != OutcomeSuccess {
		t.Fatalf("expected success under ignore policy, got %s", outcome)
	}
	if j.Result != nil {
		t.Fatalf("expected no result under ignore policy, got %v", j.Result)
	}
}

func TestRunTaskNotRegisteredFailsPermanently(t *testing.T) {
	r, tasks, _, _ := newFixture(t)
	_ = tasks // no tasks registered
	j := job.New("missing", nil, nil)
	j.MaxRetries = 3
	j.RetriesLeft = 3

	outcome := r.Run(context.Background(), j)
	if outcome != OutcomeFailed {
		t.Fatalf("expected immediate failure for unregistered task, got %s", outcome)
	}
	if j.Error == nil || j.Error.Type != "task_not_registered" {
		t.Fatalf("expected task_not_registered error, got %+v", j.Error)
	}
}

func TestHookPanicDoesNotAlterOutcome(t *testing.T) {
	r, tasks, _, _ := newFixture(t)
	tasks.Register(&job.Task{
		Name: "with_bad_hook",
		Fn: func(ctx context.Context, args []interface{}, kwargs map[string]any) (interface{}, error) {
			return "ok", nil
		},
		DefaultHooks: job.Hooks{
			Before: func(j *job.Job) { panic("boom") },
		},
	})
	task, _ := tasks.Get("with_bad_hook")
	j := task.Build(nil, nil)

	outcome := r.Run(context.Background(), j)
	if outcome != OutcomeSuccess {
		t.Fatalf("expected hook panic to be swallowed, outcome still success, got %s", outcome)
	}
}
