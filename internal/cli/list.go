package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "list entries from the task discovery manifest",
}

var listTasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "list tasks recorded in the manifest file",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadManifestFile(manifestPath)
		if err != nil {
			return userError("read manifest %s: %v (run 'nuvom discover tasks' first)", manifestPath, err)
		}
		out := cmd.OutOrStdout()
		for _, t := range m.Tasks {
			fmt.Fprintf(out, "%-30s %s\n", t.Key(), t.FilePath)
		}
		for _, st := range m.ScheduledTasks {
			fmt.Fprintf(out, "%-30s %s [%s]\n", st.Key(), st.FilePath, st.Metadata.ScheduleType)
		}
		return nil
	},
}

func init() {
	listCmd.AddCommand(listTasksCmd)
	rootCmd.AddCommand(listCmd)
}
