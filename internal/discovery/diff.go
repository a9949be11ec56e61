package discovery

// Diff is the set of changes between two manifests, keyed by module:func_name.
type Diff struct {
	Added    []string
	Removed  []string
	Modified []string
}

// CompareManifests computes additions/removals/modifications between an
// old and a new manifest. A modification is a key present in both whose
// file path (location) or, for scheduled tasks, schedule metadata differs.
func CompareManifests(oldM, newM *Manifest) Diff {
	oldTasks := indexTasks(oldM)
	newTasks := indexTasks(newM)
	oldSched := indexScheduled(oldM)
	newSched := indexScheduled(newM)

	var diff Diff
	for key, entry := range newTasks {
		prev, existed := oldTasks[key]
		if !existed {
			diff.Added = append(diff.Added, key)
			continue
		}
		if prev.FilePath != entry.FilePath {
			diff.Modified = append(diff.Modified, key)
		}
	}
	for key := range oldTasks {
		if _, stillPresent := newTasks[key]; !stillPresent {
			diff.Removed = append(diff.Removed, key)
		}
	}

	for key, entry := range newSched {
		prev, existed := oldSched[key]
		if !existed {
			diff.Added = append(diff.Added, key)
			continue
		}
		if prev.FilePath != entry.FilePath || !sameMetadata(prev.Metadata, entry.Metadata) {
			diff.Modified = append(diff.Modified, key)
		}
	}
	for key := range oldSched {
		if _, stillPresent := newSched[key]; !stillPresent {
			diff.Removed = append(diff.Removed, key)
		}
	}
	return diff
}

// sameMetadata compares schedule metadata by value, including the
// pointed-to interval.
func sameMetadata(a, b ScheduleMetadata) bool {
	if a.ScheduleType != b.ScheduleType || a.CronExpr != b.CronExpr {
		return false
	}
	if a.IntervalSecs == nil || b.IntervalSecs == nil {
		return a.IntervalSecs == b.IntervalSecs
	}
	return *a.IntervalSecs == *b.IntervalSecs
}

func indexTasks(m *Manifest) map[string]TaskEntry {
	out := make(map[string]TaskEntry, len(m.Tasks))
	for _, t := range m.Tasks {
		out[t.Key()] = t
	}
	return out
}

func indexScheduled(m *Manifest) map[string]ScheduledTaskEntry {
	out := make(map[string]ScheduledTaskEntry, len(m.ScheduledTasks))
	for _, t := range m.ScheduledTasks {
		out[t.Key()] = t
	}
	return out
}
