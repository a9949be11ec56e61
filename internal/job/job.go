// Package job defines the Job value object and the Task it was created
// from: the data model shared by the queue, runner, worker, and scheduler.
package job

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a Job.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusRunning Status = "RUNNING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// TimeoutPolicy controls what happens when a job's execution exceeds its
// deadline.
type TimeoutPolicy string

const (
	TimeoutPolicyFail   TimeoutPolicy = "fail"
	TimeoutPolicyRetry  TimeoutPolicy = "retry"
	TimeoutPolicyIgnore TimeoutPolicy = "ignore"
)

// ErrorDetail is the serialized shape of a terminal failure.
type ErrorDetail struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Traceback string `json:"traceback,omitempty"`
}

// Hooks are optional lifecycle callbacks. Failures in any of these are
// logged by the runner and never change the job's outcome.
type Hooks struct {
	Before  func(j *Job)
	After   func(j *Job)
	OnError func(j *Job, err error)
}

// Job is one execution request for a registered task with concrete
// args/kwargs and a retry/timeout policy. Job identity is stable across
// retries: the same ID is re-enqueued, never regenerated.
type Job struct {
	ID       string         `json:"id"`
	FuncName string         `json:"func_name"`
	Args     []interface{}  `json:"args,omitempty"`
	Kwargs   map[string]any `json:"kwargs,omitempty"`

	RetriesLeft int    `json:"retries_left"`
	MaxRetries  int    `json:"max_retries"`
	Status      Status `json:"status"`

	CreatedAt time.Time `json:"created_at"`

	TimeoutSecs   *int          `json:"timeout_secs,omitempty"`
	RetryDelay    *int          `json:"retry_delay_secs,omitempty"`
	TimeoutPolicy TimeoutPolicy `json:"timeout_policy,omitempty"`
	NextRetryAt   *time.Time    `json:"next_retry_at,omitempty"`

	StoreResult bool `json:"store_result"`

	Result interface{}  `json:"result,omitempty"`
	Error  *ErrorDetail `json:"error,omitempty"`

	// Attempts counts run() invocations for this job across its lifetime,
	// including the current one once the runner starts it.
	Attempts int `json:"attempts"`

	Hooks Hooks `json:"-"`
}

// New constructs a Job with a fresh, unique ID.
func New(funcName string, args []interface{}, kwargs map[string]any) *Job {
	return &Job{
		ID:        uuid.NewString(),
		FuncName:  funcName,
		Args:      args,
		Kwargs:    kwargs,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
}

// EnqueueTimestamp renders the time a file-backed queue would sort on.
func (j *Job) EnqueueTimestamp() int64 {
	return j.CreatedAt.UnixNano()
}

// Clone performs a shallow copy sufficient for re-enqueue: identity and
// counters travel with the job, but hook closures are preserved by
// reference (they are process-local and never serialized).
func (j *Job) Clone() *Job {
	cp := *j
	return &cp
}
