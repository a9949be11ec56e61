// Package result implements the result backends: durable key→record stores
// of terminal job outcomes, keyed by job_id with upsert-on-rewrite semantics.
package result

import (
	"context"
	"time"

	"github.com/nuvom/nuvom/internal/job"
)

// Record is the full persisted shape of one job's terminal (or in-flight)
// outcome. Exactly one of Result/Error is populated once Status is terminal.
type Record struct {
	JobID       string            `json:"job_id"`
	FuncName    string            `json:"func_name"`
	Status      job.Status        `json:"status"`
	Result      interface{}       `json:"result,omitempty"`
	Error       *job.ErrorDetail  `json:"error,omitempty"`
	Args        []interface{}     `json:"args,omitempty"`
	Kwargs      map[string]any    `json:"kwargs,omitempty"`
	Attempts    int               `json:"attempts"`
	RetriesLeft int               `json:"retries_left"`
	CreatedAt   time.Time         `json:"created_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// Backend is the common contract every result store satisfies. Writes are
// upserts keyed by JobID: a later write for the same id overwrites status
// and the status-specific payload but keeps the first write's CreatedAt.
type Backend interface {
	SetResult(ctx context.Context, rec Record) error
	GetResult(ctx context.Context, jobID string) (interface{}, bool, error)
	SetError(ctx context.Context, rec Record) error
	GetError(ctx context.Context, jobID string) (*job.ErrorDetail, bool, error)
	GetFull(ctx context.Context, jobID string) (*Record, bool, error)
	ListJobs(ctx context.Context) ([]Record, error)
	Name() string
}
