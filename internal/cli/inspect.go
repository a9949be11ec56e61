package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var inspectFormat string

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "inspect a persisted record in detail",
}

var inspectJobCmd = &cobra.Command{
	Use:   "job <job_id>",
	Short: "print the full result record for a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		rec, ok, err := a.Results.GetFull(context.Background(), args[0])
		if err != nil {
			return operationalError("lookup job: %v", err)
		}
		if !ok {
			return userError("no such job: %s", args[0])
		}

		out := cmd.OutOrStdout()
		switch inspectFormat {
		case "json", "":
			enc, err := json.MarshalIndent(rec, "", "  ")
			if err != nil {
				return operationalError("marshal record: %v", err)
			}
			fmt.Fprintln(out, string(enc))
		case "table":
			fmt.Fprintf(out, "job_id:    %s\n", rec.JobID)
			fmt.Fprintf(out, "func_name: %s\n", rec.FuncName)
			fmt.Fprintf(out, "status:    %s\n", rec.Status)
			fmt.Fprintf(out, "attempts:  %d\n", rec.Attempts)
			if rec.Error != nil {
				fmt.Fprintf(out, "error:     %s: %s\n", rec.Error.Type, rec.Error.Message)
			} else {
				fmt.Fprintf(out, "result:    %v\n", rec.Result)
			}
		case "raw":
			// Just the opaque payload, no record envelope: whichever of
			// result/error is terminal for this job.
			if rec.Error != nil {
				fmt.Fprintln(out, rec.Error.Message)
			} else {
				fmt.Fprintf(out, "%v\n", rec.Result)
			}
		default:
			return userError("unknown --format %q (want table, json, or raw)", inspectFormat)
		}
		return nil
	},
}

func init() {
	inspectJobCmd.Flags().StringVar(&inspectFormat, "format", "json", "output format: table, json, or raw")
	inspectCmd.AddCommand(inspectJobCmd)
	rootCmd.AddCommand(inspectCmd)
}
