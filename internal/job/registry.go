package job

import (
	"sync"

	"github.com/nuvom/nuvom/internal/nuvomerr"
)

// TaskRegistry is the dispatch table mapping a task name to its invocable
// and policy defaults, the task-side analogue of the capability registry.
// Modeled on the concurrency-safe map pattern the job handler registry
// uses elsewhere in the stack (RWMutex-guarded map, read-heavy workload).
type TaskRegistry struct {
	mu     sync.RWMutex
	tasks  map[string]*Task
	strict bool
}

// NewTaskRegistry builds an empty registry. When strict is true, a second
// registration under the same name fails with Duplicate instead of
// silently replacing the earlier one; strict=false is the default so a discovery manifest
// reload can re-register tasks idempotently.
func NewTaskRegistry(strict bool) *TaskRegistry {
	return &TaskRegistry{tasks: make(map[string]*Task), strict: strict}
}

// Register adds a task. In non-strict mode (the default), re-registering
// the same name silently replaces the earlier registration, tolerant of
// discovery reloads;
// in strict mode it fails with Duplicate.
func (r *TaskRegistry) Register(t *Task) error {
	if t == nil || t.Name == "" {
		return nuvomerr.New(nuvomerr.KindProtocolViolation, "task must have a non-empty name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tasks[t.Name]; exists && r.strict {
		return nuvomerr.Wrap(nuvomerr.KindDuplicate, "task already registered: "+t.Name, nil)
	}
	r.tasks[t.Name] = t
	return nil
}

// Get looks up a task by name.
func (r *TaskRegistry) Get(name string) (*Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[name]
	return t, ok
}

// List returns all registered tasks, unordered.
func (r *TaskRegistry) List() []*Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t)
	}
	return out
}
