package scheduler

import (
	"container/heap"
	"time"
)

// scheduleHeap is a container/heap min-heap of schedule IDs keyed by their
// current next_run_ts, held in the heap's own keys map.
type scheduleHeap struct {
	ids  []string
	keys map[string]time.Time
}

func newScheduleHeap() *scheduleHeap {
	return &scheduleHeap{keys: make(map[string]time.Time)}
}

func (h *scheduleHeap) Len() int { return len(h.ids) }

func (h *scheduleHeap) Less(i, j int) bool {
	return h.keys[h.ids[i]].Before(h.keys[h.ids[j]])
}

func (h *scheduleHeap) Swap(i, j int) {
	h.ids[i], h.ids[j] = h.ids[j], h.ids[i]
}

func (h *scheduleHeap) Push(x interface{}) {
	h.ids = append(h.ids, x.(string))
}

func (h *scheduleHeap) Pop() interface{} {
	n := len(h.ids)
	id := h.ids[n-1]
	h.ids = h.ids[:n-1]
	delete(h.keys, id)
	return id
}

// upsert inserts or repositions id at key, maintaining heap invariants.
func (h *scheduleHeap) upsert(id string, key time.Time) {
	if _, exists := h.keys[id]; exists {
		h.remove(id)
	}
	h.keys[id] = key
	heap.Push(h, id)
}

// remove drops id from the heap if present; a no-op otherwise. Pop (called
// internally by heap.Remove) deletes the id's key entry.
func (h *scheduleHeap) remove(id string) {
	for i, existing := range h.ids {
		if existing == id {
			heap.Remove(h, i)
			return
		}
	}
}

// peek returns the id with the smallest next_run_ts, and whether the heap
// is non-empty.
func (h *scheduleHeap) peek() (string, time.Time, bool) {
	if len(h.ids) == 0 {
		return "", time.Time{}, false
	}
	return h.ids[0], h.keys[h.ids[0]], true
}

// popDue removes and returns every id whose key is <= now.
func (h *scheduleHeap) popDue(now time.Time) []string {
	var due []string
	for len(h.ids) > 0 && !h.keys[h.ids[0]].After(now) {
		id := heap.Pop(h).(string)
		due = append(due, id)
	}
	return due
}
