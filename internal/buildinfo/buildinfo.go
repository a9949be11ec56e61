// Package buildinfo holds version metadata overridable at link time via
// -ldflags "-X github.com/nuvom/nuvom/internal/buildinfo.Version=...", the
// same convention storacha-piri's pkg/build uses for its cobra CLI.
package buildinfo

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)
