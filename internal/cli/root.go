// Package cli implements the nuvom command-line tree: the cobra command
// tree storacha-piri's cmd/cli package uses, kept in a separate package
// from cmd/nuvom/main.go (which must stay package main) so the command
// tree can be unit tested without an executable wrapper.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nuvom/nuvom/internal/app"
	"github.com/nuvom/nuvom/internal/config"
)

var (
	manifestPath string
	pluginFile   string
	scheduleDSN  string
	discoverRoot string
)

var rootCmd = &cobra.Command{
	Use:           "nuvom",
	Short:         "nuvom is a task queue and worker engine",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&manifestPath, "manifest", "./nuvom_manifest.json", "path to the task discovery manifest")
	flags.StringVar(&pluginFile, "plugins", "", "path to a plugin declaration file")
	flags.StringVar(&scheduleDSN, "schedule-dsn", "", "schedule store DSN; empty disables the scheduler")
	flags.StringVar(&discoverRoot, "discover-root", ".", "root directory task discovery scans")
}

// Execute runs the command tree and returns the process exit code the
// caller's main should pass to os.Exit.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return exitCode(err)
	}
	return 0
}

// buildApp is the composition root every subcommand that needs a live
// queue/result backend calls into.
func buildApp() (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, operationalError("load config: %v", err)
	}
	a, err := app.New(cfg, app.Options{
		DiscoveryRoot: discoverRoot,
		PluginFile:    pluginFile,
		ScheduleDSN:   scheduleDSN,
	})
	if err != nil {
		return nil, operationalError("build app: %v", err)
	}
	return a, nil
}
