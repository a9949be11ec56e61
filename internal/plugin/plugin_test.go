package plugin

import (
	"testing"

	"github.com/nuvom/nuvom/internal/registry"
)

type fakeQueueProvider struct {
	apiVersion string
}

func (f *fakeQueueProvider) APIVersion() string                         { return f.apiVersion }
func (f *fakeQueueProvider) Name() string                               { return "fake-redis" }
func (f *fakeQueueProvider) Provides() []registry.Capability            { return []registry.Capability{registry.CapabilityQueueBackend} }
func (f *fakeQueueProvider) Requires() []registry.Capability            { return nil }
func (f *fakeQueueProvider) Instance() interface{}                      { return f }
func (f *fakeQueueProvider) Start(map[string]interface{}) error         { return nil }
func (f *fakeQueueProvider) Stop() error                                { return nil }

func TestParseSpecWithAndWithoutSymbol(t *testing.T) {
	s := ParseSpec("github.com/acme/nuvomredis:Provider")
	if s.PackageRef != "github.com/acme/nuvomredis" || s.Symbol != "Provider" {
		t.Fatalf("unexpected parse: %+v", s)
	}
	bare := ParseSpec("github.com/acme/nuvomredis")
	if bare.PackageRef != bare.Symbol {
		t.Fatalf("bare spec should duck-type package as symbol: %+v", bare)
	}
}

func TestLoadRegistersCompatibleProvider(t *testing.T) {
	Provide("github.com/acme/nuvomredis:Provider", func() registry.Provider {
		return &fakeQueueProvider{apiVersion: "1.3.0"}
	})

	reg := registry.New()
	errs := Load(reg, []string{"github.com/acme/nuvomredis:Provider"})
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	if _, err := reg.Get(registry.CapabilityQueueBackend, "fake-redis"); err != nil {
		t.Fatalf("expected provider registered: %v", err)
	}
}

func TestLoadRejectsMajorVersionMismatch(t *testing.T) {
	Provide("github.com/acme/old-plugin:Provider", func() registry.Provider {
		return &fakeQueueProvider{apiVersion: "9.0.0"}
	})

	reg := registry.New()
	errs := Load(reg, []string{"github.com/acme/old-plugin:Provider"})
	if len(errs) != 1 {
		t.Fatalf("expected exactly one VersionMismatch error, got %v", errs)
	}
}

func TestLoadUnknownSpecFailsWithoutHaltingOthers(t *testing.T) {
	Provide("github.com/acme/known:Provider", func() registry.Provider {
		return &fakeQueueProvider{apiVersion: "1.0.0"}
	})

	reg := registry.New()
	errs := Load(reg, []string{"github.com/acme/unknown:Provider", "github.com/acme/known:Provider"})
	if len(errs) != 1 {
		t.Fatalf("expected exactly one error for the unknown spec, got %v", errs)
	}
	if _, err := reg.Get(registry.CapabilityQueueBackend, "fake-redis"); err != nil {
		t.Fatalf("expected the known spec to still register: %v", err)
	}
}

func TestLoadSpecTwiceIsMemoized(t *testing.T) {
	calls := 0
	Provide("github.com/acme/counted:Provider", func() registry.Provider {
		calls++
		return &fakeQueueProvider{apiVersion: "1.0.0"}
	})

	reg := registry.New()
	_ = Load(reg, []string{"github.com/acme/counted:Provider"})
	_ = Load(reg, []string{"github.com/acme/counted:Provider"})
	if calls != 1 {
		t.Fatalf("expected factory invoked exactly once across repeated loads, got %d", calls)
	}
}
