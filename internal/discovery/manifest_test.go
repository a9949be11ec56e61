package discovery

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleTasksFile = `package tasks

//nuvom:task
func Add(a, b int) int {
	return a + b
}

// Multiply has no marker and must not be discovered.
func Multiply(a, b int) int {
	return a * b
}

//nuvom:scheduled
//schedule_type=cron
//cron_expr=*/5 * * * *
func Nightly() error {
	return nil
}

//nuvom:scheduled
//schedule_type=interval
//interval_secs=30
func Heartbeat() error {
	return nil
}
`

const sampleIgnoredFile = `package tasks

//nuvom:task
func ShouldBeExcluded() int {
	return 0
}
`

func writeSampleTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "tasks.go"), []byte(sampleTasksFile), 0o644); err != nil {
		t.Fatalf("write tasks.go: %v", err)
	}
	sub := filepath.Join(root, "internal", "excluded")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sub, "excluded.go"), []byte(sampleIgnoredFile), 0o644); err != nil {
		t.Fatalf("write excluded.go: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "tasks_test.go"), []byte(sampleIgnoredFile), 0o644); err != nil {
		t.Fatalf("write tasks_test.go: %v", err)
	}
	return root
}

func TestDiscoverFindsMarkedTasks(t *testing.T) {
	root := writeSampleTree(t)

	m, err := Discover(root, nil, nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if m.SchemaVersion != ManifestSchemaVersion {
		t.Fatalf("expected schema version %d, got %d", ManifestSchemaVersion, m.SchemaVersion)
	}

	// tasks.go:Add plus internal/excluded/excluded.go:ShouldBeExcluded = 2
	if len(m.Tasks) != 2 {
		t.Fatalf("expected 2 plain tasks, got %d: %+v", len(m.Tasks), m.Tasks)
	}
	if len(m.ScheduledTasks) != 2 {
		t.Fatalf("expected 2 scheduled tasks, got %d: %+v", len(m.ScheduledTasks), m.ScheduledTasks)
	}

	foundAdd := false
	for _, task := range m.Tasks {
		if task.FuncName == "Multiply" {
			t.Fatal("Multiply has no marker and must not be discovered")
		}
		if task.FuncName == "Add" {
			foundAdd = true
			if task.ModuleName != "tasks" {
				t.Fatalf("expected module name tasks, got %s", task.ModuleName)
			}
			if task.Key() != "tasks:Add" {
				t.Fatalf("expected key tasks:Add, got %s", task.Key())
			}
		}
	}
	if !foundAdd {
		t.Fatal("expected Add to be discovered")
	}

	var nightly, heartbeat *ScheduledTaskEntry
	for i := range m.ScheduledTasks {
		switch m.ScheduledTasks[i].FuncName {
		case "Nightly":
			nightly = &m.ScheduledTasks[i]
		case "Heartbeat":
			heartbeat = &m.ScheduledTasks[i]
		}
	}
	if nightly == nil || heartbeat == nil {
		t.Fatalf("expected both Nightly and Heartbeat scheduled, got %+v", m.ScheduledTasks)
	}
	if nightly.Metadata.ScheduleType != "cron" || nightly.Metadata.CronExpr != "*/5 * * * *" {
		t.Fatalf("unexpected nightly metadata: %+v", nightly.Metadata)
	}
	if heartbeat.Metadata.ScheduleType != "interval" {
		t.Fatalf("unexpected heartbeat metadata: %+v", heartbeat.Metadata)
	}
	if heartbeat.Metadata.IntervalSecs == nil || *heartbeat.Metadata.IntervalSecs != 30 {
		t.Fatalf("expected interval_secs 30, got %+v", heartbeat.Metadata.IntervalSecs)
	}
}

func TestDiscoverExcludeGlobSkipsMatchedFiles(t *testing.T) {
	root := writeSampleTree(t)

	m, err := Discover(root, nil, []string{filepath.Join("internal", "excluded", "*.go")})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	for _, task := range m.Tasks {
		if task.FuncName == "ShouldBeExcluded" {
			t.Fatal("excluded glob should have removed excluded.go from discovery")
		}
	}
}

func TestDiscoverIncludeGlobRestrictsToMatchedFiles(t *testing.T) {
	root := writeSampleTree(t)

	m, err := Discover(root, []string{"tasks.go"}, nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(m.Tasks) != 1 || m.Tasks[0].FuncName != "Add" {
		t.Fatalf("expected only Add from tasks.go, got %+v", m.Tasks)
	}
}

func TestDiscoverIgnoresTestFiles(t *testing.T) {
	root := writeSampleTree(t)

	m, err := Discover(root, nil, nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	for _, task := range m.Tasks {
		if task.ModuleName == "tasks_test" {
			t.Fatal("_test.go files must never be discovered")
		}
	}
}

func TestParseScheduleMetadataParsesKeyValueLines(t *testing.T) {
	doc := "nuvom:scheduled\nschedule_type=interval\ninterval_secs=45\nnote: free text ignored\n"
	meta := parseScheduleMetadata(doc)
	if meta.ScheduleType != "interval" {
		t.Fatalf("expected schedule_type interval, got %s", meta.ScheduleType)
	}
	if meta.IntervalSecs == nil || *meta.IntervalSecs != 45 {
		t.Fatalf("expected interval_secs 45, got %+v", meta.IntervalSecs)
	}
}
