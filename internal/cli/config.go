package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nuvom/nuvom/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "print the effective configuration as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return operationalError("load config: %v", err)
		}
		out, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return operationalError("marshal config: %v", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
