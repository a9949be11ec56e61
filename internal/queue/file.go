package queue

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nuvom/nuvom/internal/codec"
	"github.com/nuvom/nuvom/internal/job"
	"github.com/nuvom/nuvom/internal/nuvomlog"
)

const (
	claimedSuffix  = ".claimed."
	corruptSuffix  = ".corrupt"
	claimRetries   = 5
	claimBackoff   = 10 * time.Millisecond
	pollInterval   = 50 * time.Millisecond
	fileQueueExt   = ".job"
)

// File is a directory-backed FIFO queue. Each pending job is one file named
// <enqueue_timestamp>_<job_id>.job, giving a sortable lexical claim order.
// Claiming is a filesystem rename, atomic across any number of cooperating
// processes sharing the directory; pop_batch additionally serializes batch
// acquisition with a process-local mutex so this process's own workers
// never race each other for the same candidate list.
type File struct {
	dir   string
	codec codec.Codec
	log   *nuvomlog.Logger

	batchMu sync.Mutex
}

// NewFile opens (creating if absent) a file-backed queue rooted at dir.
func NewFile(dir string, log *nuvomlog.Logger) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if log == nil {
		log = nuvomlog.NewNop()
	}
	return &File{dir: dir, codec: codec.Default(), log: log.With("component", "queue.file")}, nil
}

func (f *File) Name() string { return "file" }

func (f *File) Enqueue(ctx context.Context, j *job.Job) error {
	raw, err := f.codec.Encode(j)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("%020d_%s%s", j.EnqueueTimestamp(), j.ID, fileQueueExt)
	tmp := filepath.Join(f.dir, "."+name+".tmp-"+uuid.NewString())
	final := filepath.Join(f.dir, name)

	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func (f *File) Dequeue(ctx context.Context, timeout time.Duration) (*job.Job, error) {
	batch, err := f.PopBatch(ctx, 1, timeout)
	if err != nil || len(batch) == 0 {
		return nil, err
	}
	return batch[0], nil
}

// PopBatch claims up to n oldest pending jobs, polling until at least the
// deadline elapses if nothing is initially available.
func (f *File) PopBatch(ctx context.Context, n int, timeout time.Duration) ([]*job.Job, error) {
	if n <= 0 {
		return nil, nil
	}
	f.batchMu.Lock()
	defer f.batchMu.Unlock()

	deadline := time.Now().Add(timeout)
	out := make([]*job.Job, 0, n)

	for {
		names, err := f.pendingNamesSorted()
		if err != nil {
			return out, err
		}
		for _, name := range names {
			if len(out) >= n {
				break
			}
			j, ok := f.tryClaim(name)
			if ok && j != nil {
				out = append(out, j)
			}
		}
		if len(out) > 0 || time.Now().After(deadline) {
			return out, nil
		}
		select {
		case <-time.After(pollInterval):
		case <-ctx.Done():
			return out, ctx.Err()
		}
	}
}

func (f *File) pendingNamesSorted() ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n := e.Name()
		if strings.HasPrefix(n, ".") {
			continue
		}
		if strings.Contains(n, claimedSuffix) || strings.HasSuffix(n, corruptSuffix) {
			continue
		}
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// tryClaim attempts the rename-based claim protocol for one candidate file.
// Returns (nil, false) when another consumer won the race; errors decoding
// or quarantining are logged, not returned, since a single bad file must
// never halt the batch.
func (f *File) tryClaim(name string) (*job.Job, bool) {
	src := filepath.Join(f.dir, name)
	claimed := filepath.Join(f.dir, name+claimedSuffix+uuid.NewString())

	var claimErr error
	for attempt := 0; attempt < claimRetries; attempt++ {
		claimErr = os.Rename(src, claimed)
		if claimErr == nil {
			break
		}
		if os.IsNotExist(claimErr) {
			return nil, false // another consumer already claimed it
		}
		time.Sleep(claimBackoff)
	}
	if claimErr != nil {
		f.log.Warn("claim failed after retries", "file", name, "error", claimErr)
		return nil, false
	}

	raw, err := os.ReadFile(claimed)
	if err != nil {
		f.quarantine(claimed)
		return nil, false
	}

	var j job.Job
	if err := f.codec.Decode(raw, &j); err != nil {
		f.log.Error("decode failure, quarantining", "file", name, "error", err)
		f.quarantine(claimed)
		return nil, false
	}

	if err := os.Remove(claimed); err != nil {
		f.log.Warn("claimed file survived decode but could not be removed", "file", claimed, "error", err)
	}
	return &j, true
}

func (f *File) quarantine(claimedPath string) {
	if err := os.Rename(claimedPath, claimedPath+corruptSuffix); err != nil {
		os.Remove(claimedPath)
	}
}

func (f *File) Size(ctx context.Context) (int, error) {
	names, err := f.pendingNamesSorted()
	if err != nil {
		return 0, err
	}
	return len(names), nil
}

func (f *File) Clear(ctx context.Context) (int, error) {
	names, err := f.pendingNamesSorted()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, name := range names {
		if err := os.Remove(filepath.Join(f.dir, name)); err == nil {
			n++
		}
	}
	return n, nil
}

// Cleanup removes stale claimed/corrupt artifacts left behind by a crashed
// process. Operator-invoked at start-up, never run automatically mid-flight.
func (f *File) Cleanup() (removed int, err error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n := e.Name()
		if strings.Contains(n, claimedSuffix) || strings.HasSuffix(n, corruptSuffix) {
			if rmErr := os.Remove(filepath.Join(f.dir, n)); rmErr == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// parseEnqueueTimestamp extracts the sortable prefix from a queue file name,
// primarily useful for diagnostics and tests asserting FIFO order.
func parseEnqueueTimestamp(name string) (int64, error) {
	idx := strings.IndexByte(name, '_')
	if idx < 0 {
		return 0, fmt.Errorf("malformed queue file name: %s", name)
	}
	return strconv.ParseInt(name[:idx], 10, 64)
}
