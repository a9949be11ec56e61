package plugin

import (
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// LoadDeclarationFile reads an optional plugin declaration file: a
// document with a top-level "plugins" key containing a legacy "modules"
// list and/or capability-named lists (e.g. "queue_backend",
// "result_backend"), each entry a "package.module[:Symbol]" spec string.
// The format (JSON/YAML/TOML) is inferred from the file extension, the
// same way internal/config reads its own optional file via viper.
func LoadDeclarationFile(path string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext != "" {
		v.SetConfigType(ext)
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var specs []string
	specs = append(specs, v.GetStringSlice("plugins.modules")...)

	plugins, ok := v.Get("plugins").(map[string]interface{})
	if !ok {
		return dedupe(specs), nil
	}
	for key, val := range plugins {
		if key == "modules" {
			continue
		}
		switch list := val.(type) {
		case []interface{}:
			for _, item := range list {
				if s, ok := item.(string); ok {
					specs = append(specs, s)
				}
			}
		case []string:
			specs = append(specs, list...)
		}
	}
	return dedupe(specs), nil
}

func dedupe(specs []string) []string {
	seen := make(map[string]bool, len(specs))
	out := make([]string, 0, len(specs))
	for _, s := range specs {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
