// Package nuvomlog wraps zap the way the rest of the job-queue stack is
// wired: a thin sugared-logger handle with component scoping and key
// redaction, so dispatcher/worker/scheduler logs never leak job args that
// look like secrets.
package nuvomlog

import (
	"strings"

	"go.uber.org/zap"
)

type Logger struct {
	sugared *zap.SugaredLogger
}

// New builds a Logger appropriate for the given environment ("dev", "prod",
// "test"). Unknown values fall back to the development config, matching the
// teacher's logger.New.
func New(environment string) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(environment) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	zl, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{sugared: zl.Sugar()}, nil
}

// NewNop returns a logger that discards everything, for tests.
func NewNop() *Logger {
	return &Logger{sugared: zap.NewNop().Sugar()}
}

func (l *Logger) Sync() {
	if l == nil || l.sugared == nil {
		return
	}
	_ = l.sugared.Sync()
}

func (l *Logger) With(kv ...interface{}) *Logger {
	if l == nil {
		return l
	}
	return &Logger{sugared: l.sugared.With(sanitize(kv)...)}
}

func (l *Logger) Debug(msg string, kv ...interface{}) { l.log(l.sugared.Debugw, msg, kv) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.log(l.sugared.Infow, msg, kv) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.log(l.sugared.Warnw, msg, kv) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.log(l.sugared.Errorw, msg, kv) }

func (l *Logger) log(fn func(string, ...interface{}), msg string, kv []interface{}) {
	if l == nil || l.sugared == nil {
		return
	}
	fn(msg, sanitize(kv)...)
}

var redactedKeys = []string{"token", "secret", "password", "authorization", "api_key", "apikey"}

// sanitize replaces values for keys that look sensitive. kv is a flat
// key/value slice as accepted by zap's sugared *w methods.
func sanitize(kv []interface{}) []interface{} {
	if len(kv) == 0 {
		return kv
	}
	out := make([]interface{}, len(kv))
	copy(out, kv)
	for i := 0; i+1 < len(out); i += 2 {
		key, ok := out[i].(string)
		if !ok {
			continue
		}
		lower := strings.ToLower(key)
		for _, r := range redactedKeys {
			if strings.Contains(lower, r) {
				out[i+1] = "[REDACTED]"
				break
			}
		}
	}
	return out
}
