package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/nuvom/nuvom/internal/job"
	"github.com/nuvom/nuvom/internal/result"
)

var (
	historyLimit  int
	historyStatus string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "inspect recent job history",
}

var historyRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "list the most recently completed jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		records, err := a.Results.ListJobs(context.Background())
		if err != nil {
			return operationalError("list job history: %v", err)
		}

		var want job.Status
		if historyStatus != "" {
			want = job.Status(historyStatus)
			switch want {
			case job.StatusPending, job.StatusRunning, job.StatusSuccess, job.StatusFailed:
			default:
				return userError("unknown --status %q", historyStatus)
			}
		}

		filtered := make([]result.Record, 0, len(records))
		for _, rec := range records {
			if want != "" && rec.Status != want {
				continue
			}
			filtered = append(filtered, rec)
		}
		sort.Slice(filtered, func(i, j int) bool {
			return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
		})
		if historyLimit > 0 && len(filtered) > historyLimit {
			filtered = filtered[:historyLimit]
		}

		out := cmd.OutOrStdout()
		for _, rec := range filtered {
			fmt.Fprintf(out, "%-36s %-20s %-8s %s\n", rec.JobID, rec.FuncName, rec.Status, rec.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))
		}
		return nil
	},
}

func init() {
	historyRecentCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of records to print")
	historyRecentCmd.Flags().StringVar(&historyStatus, "status", "", "filter by status (PENDING, RUNNING, SUCCESS, FAILED)")
	historyCmd.AddCommand(historyRecentCmd)
	rootCmd.AddCommand(historyCmd)
}
