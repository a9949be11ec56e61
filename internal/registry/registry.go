// Package registry implements the capability registry: the process-wide
// resolver of (capability, name) -> provider for the queue and result
// backends, plus the external-provider loading protocol described by the
// plugin contract in package plugin.
package registry

import (
	"sync"

	"github.com/nuvom/nuvom/internal/nuvomerr"
)

// Capability names a pluggable concern a provider can satisfy.
type Capability string

const (
	CapabilityQueueBackend  Capability = "queue_backend"
	CapabilityResultBackend Capability = "result_backend"
)

// CoreAPIVersion is compared against a loaded plugin's declared API version;
// only the major component must match.
const CoreAPIVersion = "1.0.0"

// Provider is anything the registry can hand out under a capability. Start
// and Stop are lifecycle hooks invoked once at load time and at process
// shutdown respectively; Instance returns the concrete backend object
// (e.g. a queue.Backend or result.Backend) callers type-assert to.
type Provider interface {
	APIVersion() string
	Name() string
	Provides() []Capability
	Requires() []Capability
	Start(settings map[string]interface{}) error
	Stop() error
	Instance() interface{}
}

type entry struct {
	provider Provider
}

// Registry resolves capabilities to providers. A single sync.Mutex guards
// all access; internal callers that already hold it (such as
// EnsureBuiltins) register through registerLocked instead of Register.
type Registry struct {
	mu        sync.Mutex
	providers map[Capability]map[string]entry
	builtins  bool
	loaded    bool
	memoSpecs map[string]bool
}

func New() *Registry {
	return &Registry{
		providers: make(map[Capability]map[string]entry),
		memoSpecs: make(map[string]bool),
	}
}

// Register adds a provider under capability/name. Fails with Duplicate
// unless override is set.
func (r *Registry) Register(capability Capability, name string, p Provider, override bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerLocked(capability, name, p, override)
}

func (r *Registry) registerLocked(capability Capability, name string, p Provider, override bool) error {
	bucket, ok := r.providers[capability]
	if !ok {
		bucket = make(map[string]entry)
		r.providers[capability] = bucket
	}
	if _, exists := bucket[name]; exists && !override {
		return nuvomerr.Wrap(nuvomerr.KindDuplicate, "provider already registered: "+string(capability)+"/"+name, nil)
	}
	bucket[name] = entry{provider: p}
	return nil
}

// Get resolves a provider. If name is empty and exactly one provider is
// registered for capability, it is returned; with an empty name, zero
// candidates fail with NotFound and more than one with Ambiguous.
func (r *Registry) Get(capability Capability, name string) (Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket := r.providers[capability]
	if name != "" {
		e, ok := bucket[name]
		if !ok {
			return nil, nuvomerr.Wrap(nuvomerr.KindNotFound, "no provider "+name+" for "+string(capability), nil)
		}
		return e.provider, nil
	}
	switch len(bucket) {
	case 0:
		return nil, nuvomerr.Wrap(nuvomerr.KindNotFound, "no provider registered for "+string(capability), nil)
	case 1:
		for _, e := range bucket {
			return e.provider, nil
		}
	}
	return nil, nuvomerr.Wrap(nuvomerr.KindAmbiguous, "multiple providers registered for "+string(capability)+", name required", nil)
}

// EnsureBuiltins registers the built-in queue and result providers exactly
// once. Safe to call repeatedly and from concurrent goroutines.
func (r *Registry) EnsureBuiltins() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.builtins {
		return nil
	}
	r.builtins = true
	for _, b := range builtinProviders() {
		for _, cap := range b.Provides() {
			if err := r.registerLocked(cap, b.Name(), b, false); err != nil {
				return err
			}
		}
	}
	return nil
}

// MarkSpecLoaded memoizes a plugin spec string so the loader never
// re-registers the same external provider twice in one process lifetime.
// Returns false if spec was already marked.
func (r *Registry) MarkSpecLoaded(spec string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.memoSpecs[spec] {
		return false
	}
	r.memoSpecs[spec] = true
	return true
}

// ProviderInfo is a read-only snapshot of one registered provider, for the
// "plugins status" CLI listing.
type ProviderInfo struct {
	Capability Capability
	Name       string
	Started    bool
}

// List enumerates every registered provider across all capabilities. Order
// is not guaranteed (map iteration).
func (r *Registry) List() []ProviderInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ProviderInfo
	for capability, bucket := range r.providers {
		for name, e := range bucket {
			out = append(out, ProviderInfo{
				Capability: capability,
				Name:       name,
				Started:    e.provider.Instance() != nil,
			})
		}
	}
	return out
}

// StopAll tears down every loaded provider, best-effort, in registration
// order is not preserved (map iteration order).
func (r *Registry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[Provider]bool{}
	for _, bucket := range r.providers {
		for _, e := range bucket {
			if seen[e.provider] {
				continue
			}
			seen[e.provider] = true
			_ = e.provider.Stop()
		}
	}
}
