// Package plugin implements external provider loading for the capability
// registry. Go has no portable runtime dynamic-loading mechanism — the
// standard library's plugin package only works on Linux/macOS, requires the
// loader and the plugin to share an exact toolchain build and module set,
// and is explicitly documented as fragile across Go versions. So instead of
// dlopen-style loading, a plugin spec resolves against a compile-time
// symbol table: a process registers its factories via Provide at init time
// (the same pattern database/sql drivers and image codecs use), and a spec
// string just looks a name up in that table. This keeps the declarative
// "package.path:Symbol" spec format the capability registry wants while
// staying inside what Go can actually guarantee.
package plugin

import (
	"strings"
	"sync"

	"github.com/nuvom/nuvom/internal/nuvomerr"
	"github.com/nuvom/nuvom/internal/registry"
)

// Factory builds a Provider and takes no settings (Load starts the
// provider with Start(nil)); it is what a spec's symbol must resolve to.
type Factory func() registry.Provider

var (
	tableMu sync.RWMutex
	table   = make(map[string]Factory)
)

// Provide registers a factory under a spec symbol at init time. Intended to
// be called from an external package's init() func, the Go analogue of the
// "installed package advertises an integration point" discovery source.
func Provide(spec string, f Factory) {
	tableMu.Lock()
	defer tableMu.Unlock()
	table[spec] = f
}

// Spec is one parsed plugin-spec line: "package.path:Symbol" or bare
// "package.path" (duck-typed: the whole package.path is the symbol).
type Spec struct {
	Raw        string
	PackageRef string
	Symbol     string
}

// ParseSpec splits a declarative spec string into its package and symbol
// components.
func ParseSpec(raw string) Spec {
	if idx := strings.IndexByte(raw, ':'); idx >= 0 {
		return Spec{Raw: raw, PackageRef: raw[:idx], Symbol: raw[idx+1:]}
	}
	return Spec{Raw: raw, PackageRef: raw, Symbol: raw}
}

// Load resolves every spec in specs against the compile-time symbol table
// and registers the resulting providers into reg under the capabilities
// each provider declares. Errors for individual specs are collected and
// returned together; loading continues past a failed spec so one bad entry
// never blocks the rest of the file, per the registry's "all non-fatal
// during load" contract.
func Load(reg *registry.Registry, specs []string) []error {
	var errs []error
	for _, raw := range specs {
		if err := loadOne(reg, raw); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func loadOne(reg *registry.Registry, raw string) error {
	spec := ParseSpec(raw)
	if !reg.MarkSpecLoaded(spec.Raw) {
		return nil // already loaded earlier this process lifetime
	}

	tableMu.RLock()
	factory, ok := table[spec.Raw]
	tableMu.RUnlock()
	if !ok {
		return nuvomerr.Wrap(nuvomerr.KindSpecImportFailed, "no provider registered for spec "+spec.Raw, nil)
	}

	provider := factory()
	if provider == nil {
		return nuvomerr.Wrap(nuvomerr.KindProtocolViolation, "factory for "+spec.Raw+" returned a nil provider", nil)
	}

	if !apiMajorMatches(provider.APIVersion(), registry.CoreAPIVersion) {
		return nuvomerr.Wrap(nuvomerr.KindVersionMismatch,
			"plugin "+provider.Name()+" api_version "+provider.APIVersion()+" incompatible with core "+registry.CoreAPIVersion, nil)
	}

	if err := provider.Start(nil); err != nil {
		return nuvomerr.Wrap(nuvomerr.KindSpecImportFailed, "plugin "+provider.Name()+" failed to start", err)
	}

	for _, cap := range provider.Provides() {
		if err := reg.Register(cap, provider.Name(), provider, false); err != nil {
			return err
		}
	}
	return nil
}

func apiMajorMatches(a, b string) bool {
	return majorOf(a) == majorOf(b)
}

func majorOf(version string) string {
	if idx := strings.IndexByte(version, '.'); idx >= 0 {
		return version[:idx]
	}
	return version
}
