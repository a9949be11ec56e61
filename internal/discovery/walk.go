package discovery

import (
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"
)

// matchingFiles walks root collecting .go files whose relative path
// matches at least one include glob (all files, if include is empty) and
// none of the exclude globs.
func matchingFiles(root string, include, exclude []string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		if len(include) > 0 && !matchesAny(rel, include) {
			return nil
		}
		if matchesAny(rel, exclude) {
			return nil
		}
		out = append(out, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func matchesAny(path string, globs []string) bool {
	for _, g := range globs {
		if ok, _ := filepath.Match(g, path); ok {
			return true
		}
		if ok, _ := filepath.Match(g, filepath.Base(path)); ok {
			return true
		}
	}
	return false
}

// parseScheduleMetadata reads "key=value" pairs out of a //nuvom:scheduled
// doc comment block, e.g.:
//
//	//nuvom:scheduled
//	//schedule_type=cron
//	//cron_expr=*/5 * * * *
func parseScheduleMetadata(doc string) ScheduleMetadata {
	meta := ScheduleMetadata{}
	for _, line := range strings.Split(doc, "\n") {
		line = strings.TrimSpace(line)
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "schedule_type":
			meta.ScheduleType = strings.TrimSpace(val)
		case "cron_expr":
			meta.CronExpr = strings.TrimSpace(val)
		case "interval_secs":
			if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
				meta.IntervalSecs = &n
			}
		}
	}
	return meta
}
