package job

import (
	"context"
)

// Invocable is the callable body of a Task.
type Invocable func(ctx context.Context, args []interface{}, kwargs map[string]any) (interface{}, error)

// Task wraps an invocable with a stable name and policy defaults. It
// carries static metadata (tags, description, category) that is readable
// for listing but never affects execution.
type Task struct {
	Name string
	Fn   Invocable

	DefaultRetries       int
	DefaultTimeoutSecs   *int
	DefaultRetryDelay    *int
	DefaultTimeoutPolicy TimeoutPolicy
	DefaultStoreResult   bool
	DefaultHooks         Hooks

	Tags        []string
	Description string
	Category    string
}

// Submitter is the narrow interface a Task needs to hand a freshly built
// Job to the active queue backend. queue.Backend satisfies this.
type Submitter interface {
	Enqueue(ctx context.Context, j *Job) error
}

// Build constructs a Job from this task's defaults plus the call-specific
// args/kwargs, without submitting it anywhere. Exported so the scheduler
// can materialize a Job the same way enqueue does.
func (t *Task) Build(args []interface{}, kwargs map[string]any) *Job {
	j := New(t.Name, args, kwargs)
	j.MaxRetries = t.DefaultRetries
	j.RetriesLeft = t.DefaultRetries
	j.TimeoutSecs = t.DefaultTimeoutSecs
	j.RetryDelay = t.DefaultRetryDelay
	j.TimeoutPolicy = t.DefaultTimeoutPolicy
	if j.TimeoutPolicy == "" {
		j.TimeoutPolicy = TimeoutPolicyFail
	}
	j.StoreResult = t.DefaultStoreResult
	j.Hooks = t.DefaultHooks
	return j
}

// Enqueue constructs a Job from defaults + the given args/kwargs and
// submits it to the active queue backend. submit is an alias of Enqueue.
func (t *Task) Enqueue(ctx context.Context, submitter Submitter, args []interface{}, kwargs map[string]any) (*Job, error) {
	j := t.Build(args, kwargs)
	if err := submitter.Enqueue(ctx, j); err != nil {
		return nil, err
	}
	return j, nil
}

// Submit is an alias of Enqueue.
func (t *Task) Submit(ctx context.Context, submitter Submitter, args []interface{}, kwargs map[string]any) (*Job, error) {
	return t.Enqueue(ctx, submitter, args, kwargs)
}

// Map enqueues one job per element of argSeqs, sharing the given kwargs
// for every call.
func (t *Task) Map(ctx context.Context, submitter Submitter, argSeqs [][]interface{}, kwargs map[string]any) ([]*Job, error) {
	out := make([]*Job, 0, len(argSeqs))
	for _, args := range argSeqs {
		j, err := t.Enqueue(ctx, submitter, args, kwargs)
		if err != nil {
			return out, err
		}
		out = append(out, j)
	}
	return out, nil
}
