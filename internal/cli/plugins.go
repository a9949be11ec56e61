package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "inspect the capability registry",
}

var pluginsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "list every registered provider and whether it has started",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		for _, info := range a.Registry.List() {
			fmt.Fprintf(out, "%-16s %-20s started=%t\n", info.Capability, info.Name, info.Started)
		}
		return nil
	},
}

func init() {
	pluginsCmd.AddCommand(pluginsStatusCmd)
	rootCmd.AddCommand(pluginsCmd)
}
