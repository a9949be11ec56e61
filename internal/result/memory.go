package result

import (
	"context"
	"sort"
	"sync"

	"github.com/nuvom/nuvom/internal/job"
)

// Memory is a volatile, process-local result store, suitable for tests and
// single-shot CLI invocations where durability across restarts is not
// required.
type Memory struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]Record)}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) upsert(rec Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.records[rec.JobID]; ok && !existing.CreatedAt.IsZero() {
		rec.CreatedAt = existing.CreatedAt
	}
	m.records[rec.JobID] = rec
}

func (m *Memory) SetResult(ctx context.Context, rec Record) error {
	rec.Status = job.StatusSuccess
	rec.Error = nil
	m.upsert(rec)
	return nil
}

func (m *Memory) SetError(ctx context.Context, rec Record) error {
	rec.Status = job.StatusFailed
	rec.Result = nil
	m.upsert(rec)
	return nil
}

func (m *Memory) GetResult(ctx context.Context, jobID string) (interface{}, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[jobID]
	if !ok {
		return nil, false, nil
	}
	return rec.Result, true, nil
}

func (m *Memory) GetError(ctx context.Context, jobID string) (*job.ErrorDetail, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[jobID]
	if !ok {
		return nil, false, nil
	}
	return rec.Error, true, nil
}

func (m *Memory) GetFull(ctx context.Context, jobID string) (*Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[jobID]
	if !ok {
		return nil, false, nil
	}
	cp := rec
	return &cp, true, nil
}

func (m *Memory) ListJobs(ctx context.Context) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
