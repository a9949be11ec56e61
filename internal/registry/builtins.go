package registry

import (
	"fmt"

	"github.com/nuvom/nuvom/internal/nuvomlog"
	"github.com/nuvom/nuvom/internal/queue"
	"github.com/nuvom/nuvom/internal/result"
)

const defaultRedisListKey = "nuvom:jobs"

// builtinProvider adapts a lazily-constructed backend to the Provider
// contract: Start receives the config subset and builds the instance,
// mirroring how an external plugin's start(settings) is expected to behave.
type builtinProvider struct {
	name     string
	provides []Capability
	start    func(settings map[string]interface{}) (interface{}, error)
	instance interface{}
}

func (b *builtinProvider) APIVersion() string     { return CoreAPIVersion }
func (b *builtinProvider) Name() string           { return b.name }
func (b *builtinProvider) Provides() []Capability { return b.provides }
func (b *builtinProvider) Requires() []Capability { return nil }
func (b *builtinProvider) Instance() interface{}  { return b.instance }

func (b *builtinProvider) Start(settings map[string]interface{}) error {
	inst, err := b.start(settings)
	if err != nil {
		return err
	}
	b.instance = inst
	return nil
}

func (b *builtinProvider) Stop() error { return nil }

func settingString(settings map[string]interface{}, key, def string) string {
	if settings == nil {
		return def
	}
	if v, ok := settings[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return def
}

// builtinProviders returns the always-available queue and result backends.
// The memory variants have no configuration surface and no I/O side
// effects, so they start immediately; the file and SQL variants touch the
// filesystem and are registered unstarted — a caller activates one by
// fetching it from the registry and calling Start with the real config
// subset (directory, DSN) before reading Instance().
func builtinProviders() []*builtinProvider {
	memoryQueue := &builtinProvider{
		name:     "memory",
		provides: []Capability{CapabilityQueueBackend},
		start: func(settings map[string]interface{}) (interface{}, error) {
			return queue.NewMemory(), nil
		},
	}
	fileQueue := &builtinProvider{
		name:     "file",
		provides: []Capability{CapabilityQueueBackend},
		start: func(settings map[string]interface{}) (interface{}, error) {
			dir := settingString(settings, "dir", "./nuvom_queue")
			return queue.NewFile(dir, nuvomlog.NewNop())
		},
	}
	memoryResult := &builtinProvider{
		name:     "memory",
		provides: []Capability{CapabilityResultBackend},
		start: func(settings map[string]interface{}) (interface{}, error) {
			return result.NewMemory(), nil
		},
	}
	fileResult := &builtinProvider{
		name:     "file",
		provides: []Capability{CapabilityResultBackend},
		start: func(settings map[string]interface{}) (interface{}, error) {
			dir := settingString(settings, "dir", "./nuvom_results")
			return result.NewFile(dir)
		},
	}
	sqlResult := &builtinProvider{
		name:     "sql",
		provides: []Capability{CapabilityResultBackend},
		start: func(settings map[string]interface{}) (interface{}, error) {
			dsn := settingString(settings, "dsn", "file:nuvom_results.db?_journal_mode=WAL")
			return result.OpenSQL(dsn)
		},
	}
	redisQueue := &builtinProvider{
		name:     "redis",
		provides: []Capability{CapabilityQueueBackend},
		start: func(settings map[string]interface{}) (interface{}, error) {
			addr := settingString(settings, "addr", "localhost:6379")
			key := settingString(settings, "key", defaultRedisListKey)
			return queue.NewRedis(addr, key), nil
		},
	}

	for _, p := range []*builtinProvider{memoryQueue, memoryResult} {
		if err := p.Start(nil); err != nil {
			// No configuration surface means a failure here is a programming
			// error, not a runtime condition callers can act on.
			panic(fmt.Sprintf("registry: builtin provider %s/%v failed to start: %v", p.name, p.provides, err))
		}
	}
	return []*builtinProvider{memoryQueue, fileQueue, memoryResult, fileResult, sqlResult, redisQueue}
}
