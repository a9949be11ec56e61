package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/nuvom/nuvom/internal/app"
	"github.com/nuvom/nuvom/internal/discovery"
)

var runworkerDev bool

var runworkerCmd = &cobra.Command{
	Use:   "runworker",
	Short: "start the worker pool (and scheduler, if --schedule-dsn is set)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a.Start(ctx)
		a.Log.Info("worker started", "workers", a.Cfg.MaxWorkers, "queue_backend", a.Queue.Name(), "result_backend", a.Results.Name())

		if runworkerDev {
			go watchManifest(ctx, a, discoverRoot, discoverInclude, discoverExclude)
		}

		<-ctx.Done()
		a.Log.Info("shutting down")
		return nil
	},
}

func init() {
	runworkerCmd.Flags().BoolVar(&runworkerDev, "dev", false, "watch the manifest file and log discovery diffs on change")
	rootCmd.AddCommand(runworkerCmd)
}

// watchManifest re-scans root whenever the manifest file changes on disk
// and logs the diff against the previous scan. It cannot re-register a
// task's compiled callable body at runtime — Go has no reflective
// re-registration from freshly parsed source — so --dev only surfaces what
// changed for the operator to act on; it is a visibility aid, not hot
// reload.
func watchManifest(ctx context.Context, a *app.App, root string, include, exclude []string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		a.Log.Warn("failed to start manifest watcher", "error", err)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(manifestPath); err != nil {
		a.Log.Warn("manifest file not found, skipping --dev watch", "path", manifestPath, "error", err)
		return
	}

	prev, _ := loadManifestFile(manifestPath)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			m, err := discovery.Discover(root, include, exclude)
			if err != nil {
				a.Log.Warn("discovery failed during --dev watch", "error", err)
				continue
			}
			if prev != nil {
				diff := discovery.CompareManifests(prev, m)
				a.Log.Info("manifest changed", "added", len(diff.Added), "removed", len(diff.Removed), "modified", len(diff.Modified))
			}
			prev = m
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			a.Log.Warn("manifest watcher error", "error", err)
		}
	}
}
