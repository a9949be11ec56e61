package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nuvom/nuvom/internal/discovery"
)

var (
	discoverInclude []string
	discoverExclude []string
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "scan source files for task declarations",
}

var discoverTasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "walk --discover-root and write the manifest file",
	RunE: func(cmd *cobra.Command, args []string) error {
		prev, _ := loadManifestFile(manifestPath)

		m, err := discovery.Discover(discoverRoot, discoverInclude, discoverExclude)
		if err != nil {
			return operationalError("discover: %v", err)
		}

		if err := writeManifestFile(manifestPath, m); err != nil {
			return operationalError("write manifest: %v", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "discovered %d task(s) and %d scheduled task(s), wrote %s\n",
			len(m.Tasks), len(m.ScheduledTasks), manifestPath)

		if prev != nil {
			diff := discovery.CompareManifests(prev, m)
			if len(diff.Added) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "added: %v\n", diff.Added)
			}
			if len(diff.Removed) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "removed: %v\n", diff.Removed)
			}
			if len(diff.Modified) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "modified: %v\n", diff.Modified)
			}
		}
		return nil
	},
}

func init() {
	discoverTasksCmd.Flags().StringSliceVar(&discoverInclude, "include", nil, "glob patterns to restrict the scan to")
	discoverTasksCmd.Flags().StringSliceVar(&discoverExclude, "exclude", nil, "glob patterns to skip")
	discoverCmd.AddCommand(discoverTasksCmd)
	rootCmd.AddCommand(discoverCmd)
}

func loadManifestFile(path string) (*discovery.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m discovery.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func writeManifestFile(path string, m *discovery.Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
