package result

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/nuvom/nuvom/internal/job"
)

const metaExt = ".meta"

// File is a one-file-per-job result store: each record is serialized JSON
// at <dir>/<job_id>.meta, rewritten wholesale on every upsert.
type File struct {
	dir string
	mu  sync.Mutex
}

func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &File{dir: dir}, nil
}

func (f *File) Name() string { return "file" }

func (f *File) path(jobID string) string {
	return filepath.Join(f.dir, jobID+metaExt)
}

func (f *File) read(jobID string) (Record, bool, error) {
	raw, err := os.ReadFile(f.path(jobID))
	if os.IsNotExist(err) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func (f *File) write(rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	tmp := f.path(rec.JobID) + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path(rec.JobID))
}

func (f *File) upsert(rec Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok, err := f.read(rec.JobID)
	if err != nil {
		return err
	}
	if ok && !existing.CreatedAt.IsZero() {
		rec.CreatedAt = existing.CreatedAt
	}
	return f.write(rec)
}

func (f *File) SetResult(ctx context.Context, rec Record) error {
	rec.Status = job.StatusSuccess
	rec.Error = nil
	return f.upsert(rec)
}

func (f *File) SetError(ctx context.Context, rec Record) error {
	rec.Status = job.StatusFailed
	rec.Result = nil
	return f.upsert(rec)
}

func (f *File) GetResult(ctx context.Context, jobID string) (interface{}, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok, err := f.read(jobID)
	if err != nil || !ok {
		return nil, ok, err
	}
	return rec.Result, true, nil
}

func (f *File) GetError(ctx context.Context, jobID string) (*job.ErrorDetail, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok, err := f.read(jobID)
	if err != nil || !ok {
		return nil, ok, err
	}
	return rec.Error, true, nil
}

func (f *File) GetFull(ctx context.Context, jobID string) (*Record, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok, err := f.read(jobID)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &rec, true, nil
}

func (f *File) ListJobs(ctx context.Context) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), metaExt) {
			continue
		}
		jobID := strings.TrimSuffix(e.Name(), metaExt)
		rec, ok, err := f.read(jobID)
		if err != nil || !ok {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
