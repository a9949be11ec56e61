package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nuvom/nuvom/internal/buildinfo"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print version, commit, and build date",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "nuvom %s (commit %s, built %s)\n",
			buildinfo.Version, buildinfo.Commit, buildinfo.Date)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
