package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nuvom/nuvom/internal/discovery"
	"github.com/nuvom/nuvom/internal/job"
	"github.com/nuvom/nuvom/internal/result"
)

func withFileResultBackend(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	os.Setenv("NUVOM_QUEUE_BACKEND", "memory")
	os.Setenv("NUVOM_RESULT_BACKEND", "file")
	os.Setenv("NUVOM_RESULT_DIR", dir)
	t.Cleanup(func() {
		os.Unsetenv("NUVOM_QUEUE_BACKEND")
		os.Unsetenv("NUVOM_RESULT_BACKEND")
		os.Unsetenv("NUVOM_RESULT_DIR")
	})
	return dir
}

func seedRecord(t *testing.T, dir string, rec result.Record) {
	t.Helper()
	f, err := result.NewFile(dir)
	if err != nil {
		t.Fatalf("result.NewFile: %v", err)
	}
	if rec.Status == job.StatusFailed {
		if err := f.SetError(context.Background(), rec); err != nil {
			t.Fatalf("seed SetError: %v", err)
		}
		return
	}
	if err := f.SetResult(context.Background(), rec); err != nil {
		t.Fatalf("seed SetResult: %v", err)
	}
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestVersionCommandPrintsBuildInfo(t *testing.T) {
	out, err := runCmd(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "nuvom") {
		t.Fatalf("expected output to mention nuvom, got %q", out)
	}
}

func TestConfigCommandPrintsValidJSON(t *testing.T) {
	out, err := runCmd(t, "config")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("expected valid JSON output, got %q: %v", out, err)
	}
}

func TestDiscoverThenListTasksRoundTrips(t *testing.T) {
	dir := t.TempDir()
	src := `package tasks

// Add adds two numbers.
//
//nuvom:task
func Add(a, b int) int { return a + b }
`
	if err := os.WriteFile(filepath.Join(dir, "tasks.go"), []byte(src), 0o644); err != nil {
		t.Fatalf("write sample task file: %v", err)
	}
	manifestPathForTest := filepath.Join(dir, "manifest.json")

	if _, err := runCmd(t, "--discover-root", dir, "--manifest", manifestPathForTest, "discover", "tasks"); err != nil {
		t.Fatalf("discover tasks: %v", err)
	}

	m, err := loadManifestFile(manifestPathForTest)
	if err != nil {
		t.Fatalf("loadManifestFile: %v", err)
	}
	if len(m.Tasks) != 1 || m.Tasks[0].FuncName != "Add" {
		t.Fatalf("expected exactly one discovered task named Add, got %+v", m.Tasks)
	}

	out, err := runCmd(t, "--manifest", manifestPathForTest, "list", "tasks")
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if !strings.Contains(out, "tasks:Add") {
		t.Fatalf("expected listed task key tasks:Add, got %q", out)
	}
}

func TestListTasksMissingManifestIsUserError(t *testing.T) {
	dir := t.TempDir()
	_, err := runCmd(t, "--manifest", filepath.Join(dir, "does-not-exist.json"), "list", "tasks")
	if err == nil {
		t.Fatal("expected an error for a missing manifest file")
	}
	if exitCode(err) != 1 {
		t.Fatalf("expected user-error exit code 1, got %d", exitCode(err))
	}
}

func TestStatusUnknownJobReportsPending(t *testing.T) {
	dir := t.TempDir()
	os.Setenv("NUVOM_QUEUE_BACKEND", "memory")
	os.Setenv("NUVOM_RESULT_BACKEND", "memory")
	t.Cleanup(func() {
		os.Unsetenv("NUVOM_QUEUE_BACKEND")
		os.Unsetenv("NUVOM_RESULT_BACKEND")
	})

	out, err := runCmd(t, "--manifest", filepath.Join(dir, "m.json"), "status", "no-such-job")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "PENDING") {
		t.Fatalf("expected PENDING for a job with no terminal record, got %q", out)
	}
}

func TestStatusSuccessAndFailedRecords(t *testing.T) {
	dir := withFileResultBackend(t)

	seedRecord(t, dir, result.Record{
		JobID:    "job-ok",
		FuncName: "tasks.Add",
		Result:   float64(7),
	})
	seedRecord(t, dir, result.Record{
		JobID:    "job-bad",
		FuncName: "tasks.Add",
		Error:    &job.ErrorDetail{Type: "ValueError", Message: "boom"},
	})

	out, err := runCmd(t, "status", "job-ok")
	if err != nil {
		t.Fatalf("status job-ok: %v", err)
	}
	if !strings.Contains(out, "SUCCESS") || !strings.Contains(out, "7") {
		t.Fatalf("expected SUCCESS with result value, got %q", out)
	}

	out, err = runCmd(t, "status", "job-bad")
	if err != nil {
		t.Fatalf("status job-bad: %v", err)
	}
	if !strings.Contains(out, "FAILED") || !strings.Contains(out, "boom") {
		t.Fatalf("expected FAILED with error message, got %q", out)
	}
}

func TestInspectJobFormats(t *testing.T) {
	dir := withFileResultBackend(t)
	seedRecord(t, dir, result.Record{
		JobID:    "job-ok",
		FuncName: "tasks.Add",
		Result:   float64(7),
		Attempts: 1,
	})

	out, err := runCmd(t, "inspect", "job", "job-ok", "--format", "json")
	if err != nil {
		t.Fatalf("inspect json: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("expected valid JSON, got %q: %v", out, err)
	}

	out, err = runCmd(t, "inspect", "job", "job-ok", "--format", "table")
	if err != nil {
		t.Fatalf("inspect table: %v", err)
	}
	if !strings.Contains(out, "job_id:") || !strings.Contains(out, "job-ok") {
		t.Fatalf("expected table output with job_id, got %q", out)
	}

	out, err = runCmd(t, "inspect", "job", "job-ok", "--format", "raw")
	if err != nil {
		t.Fatalf("inspect raw: %v", err)
	}
	if strings.Contains(out, "job_id") || !strings.Contains(out, "7") {
		t.Fatalf("expected bare payload for raw format, got %q", out)
	}

	_, err = runCmd(t, "inspect", "job", "job-ok", "--format", "bogus")
	if err == nil || exitCode(err) != 1 {
		t.Fatalf("expected user error for unknown format, got %v", err)
	}
}

func TestCompareManifestsIsReachableFromDiscoverPackage(t *testing.T) {
	// Guards the import path discover.go relies on for its diff output.
	empty := &discovery.Manifest{}
	diff := discovery.CompareManifests(empty, empty)
	if len(diff.Added) != 0 || len(diff.Removed) != 0 || len(diff.Modified) != 0 {
		t.Fatalf("expected no diff between identical empty manifests, got %+v", diff)
	}
}
