package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nuvom/nuvom/internal/job"
)

var statusCmd = &cobra.Command{
	Use:   "status <job_id>",
	Short: "print a job's current status",
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

		out := cmd.OutOrStdout()
		// No terminal record yet covers both a freshly enqueued job and the
		// gap between retry attempts, which leaves no terminal record either.
		if !ok || (rec.Status != job.StatusSuccess && rec.Status != job.StatusFailed) {
			fmt.Fprintln(out, job.StatusPending)
			return nil
		}
		switch rec.Status {
		case job.StatusSuccess:
			fmt.Fprintf(out, "SUCCESS %v\n", rec.Result)
		case job.StatusFailed:
			msg := ""
			if rec.Error != nil {
				msg = rec.Error.Message
			}
			fmt.Fprintf(out, "FAILED %s\n", msg)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
