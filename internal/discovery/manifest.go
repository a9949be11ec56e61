// Package discovery walks Go source files looking for task-shaped function
// declarations and renders a manifest the registry consumes at start and on
// reload. It deliberately uses only the standard library's go/parser and
// go/ast: no example in the retrieved pack reaches for a third-party Go AST
// or source-analysis library, and the standard library's parser is already
// the complete, canonical implementation for this exact job.
package discovery

import (
	"go/ast"
	"go/parser"
	"go/token"
	"path/filepath"
	"strings"
)

const ManifestSchemaVersion = 1

// TaskEntry is one discovered task-shaped function.
type TaskEntry struct {
	FilePath   string `json:"file_path"`
	FuncName   string `json:"func_name"`
	ModuleName string `json:"module_name"`
}

// Key is the additions/removals/modifications identity for a TaskEntry.
func (t TaskEntry) Key() string { return t.ModuleName + ":" + t.FuncName }

// ScheduledTaskEntry is a TaskEntry plus the schedule metadata read from
// key=value lines in the same doc comment as its "//nuvom:scheduled"
// marker (discovery never imports user code to probe attributes).
type ScheduledTaskEntry struct {
	TaskEntry
	Metadata ScheduleMetadata `json:"metadata"`
}

type ScheduleMetadata struct {
	ScheduleType string `json:"schedule_type,omitempty"`
	CronExpr     string `json:"cron_expr,omitempty"`
	IntervalSecs *int   `json:"interval_secs,omitempty"`
}

// Manifest is the discovery output schema.
type Manifest struct {
	SchemaVersion  int                  `json:"schema_version"`
	Tasks          []TaskEntry          `json:"tasks"`
	ScheduledTasks []ScheduledTaskEntry `json:"scheduled_tasks"`
}

// taskMarker is the exported-function naming convention discovery looks
// for: any top-level func whose doc comment contains a "//nuvom:task"
// marker, the declarative equivalent of the source's attribute-mutating
// decorator.
const taskMarker = "nuvom:task"
const scheduledMarker = "nuvom:scheduled"

// Discover walks files matching include (and not matching exclude) under
// root and builds a Manifest from every marked function declaration.
func Discover(root string, include, exclude []string) (*Manifest, error) {
	files, err := matchingFiles(root, include, exclude)
	if err != nil {
		return nil, err
	}

	m := &Manifest{SchemaVersion: ManifestSchemaVersion}
	fset := token.NewFileSet()
	for _, path := range files {
		astFile, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
		if err != nil {
			continue // unparsable file is skipped, not fatal to discovery as a whole
		}
		moduleName := strippedModuleName(path)
		for _, decl := range astFile.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Doc == nil {
				continue
			}
			// CommentGroup.Text drops "//nuvom:..." lines as directives, so
			// the raw comment lines are read instead.
			lines := make([]string, 0, len(fn.Doc.List))
			for _, c := range fn.Doc.List {
				lines = append(lines, strings.TrimPrefix(c.Text, "//"))
			}
			doc := strings.Join(lines, "\n")
			entry := TaskEntry{FilePath: path, FuncName: fn.Name.Name, ModuleName: moduleName}
			switch {
			case containsMarker(doc, scheduledMarker):
				m.ScheduledTasks = append(m.ScheduledTasks, ScheduledTaskEntry{
					TaskEntry: entry,
					Metadata:  parseScheduleMetadata(doc),
				})
			case containsMarker(doc, taskMarker):
				m.Tasks = append(m.Tasks, entry)
			}
		}
	}
	return m, nil
}

func strippedModuleName(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}

func containsMarker(doc, marker string) bool {
	for _, line := range strings.Split(doc, "\n") {
		if strings.Contains(strings.TrimSpace(line), marker) {
			return true
		}
	}
	return false
}
