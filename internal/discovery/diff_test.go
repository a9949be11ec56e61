package discovery

import "testing"

func TestCompareManifestsDetectsAddedRemovedModified(t *testing.T) {
	oldM := &Manifest{
		SchemaVersion: ManifestSchemaVersion,
		Tasks: []TaskEntry{
			{FilePath: "a.go", FuncName: "Add", ModuleName: "a"},
			{FilePath: "b.go", FuncName: "Sub", ModuleName: "b"},
		},
		ScheduledTasks: []ScheduledTaskEntry{
			{
				TaskEntry: TaskEntry{FilePath: "c.go", FuncName: "Nightly", ModuleName: "c"},
				Metadata:  ScheduleMetadata{ScheduleType: "cron", CronExpr: "0 0 * * *"},
			},
		},
	}
	newM := &Manifest{
		SchemaVersion: ManifestSchemaVersion,
		Tasks: []TaskEntry{
			{FilePath: "a.go", FuncName: "Add", ModuleName: "a"},
			{FilePath: "d.go", FuncName: "Mul", ModuleName: "d"},
		},
		ScheduledTasks: []ScheduledTaskEntry{
			{
				TaskEntry: TaskEntry{FilePath: "c2.go", FuncName: "Nightly", ModuleName: "c"},
				Metadata:  ScheduleMetadata{ScheduleType: "cron", CronExpr: "0 0 * * *"},
			},
		},
	}

	diff := CompareManifests(oldM, newM)

	if !contains(diff.Added, "d:Mul") {
		t.Fatalf("expected d:Mul in Added, got %+v", diff.Added)
	}
	if !contains(diff.Removed, "b:Sub") {
		t.Fatalf("expected b:Sub in Removed, got %+v", diff.Removed)
	}
	if !contains(diff.Modified, "c:Nightly") {
		t.Fatalf("expected c:Nightly in Modified (file_path changed), got %+v", diff.Modified)
	}
	if contains(diff.Modified, "a:Add") {
		t.Fatalf("a:Add is unchanged and must not appear in Modified: %+v", diff.Modified)
	}
}

func TestCompareManifestsNoChanges(t *testing.T) {
	m := &Manifest{
		SchemaVersion: ManifestSchemaVersion,
		Tasks: []TaskEntry{
			{FilePath: "a.go", FuncName: "Add", ModuleName: "a"},
		},
	}
	diff := CompareManifests(m, m)
	if len(diff.Added) != 0 || len(diff.Removed) != 0 || len(diff.Modified) != 0 {
		t.Fatalf("expected empty diff comparing a manifest to itself, got %+v", diff)
	}
}

func contains(xs []string, target string) bool {
	for _, x := range xs {
		if x == target {
			return true
		}
	}
	return false
}
