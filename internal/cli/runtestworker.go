package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nuvom/nuvom/internal/job"
)

var runtestworkerCmd = &cobra.Command{
	Use:   "runtestworker",
	Short: "execute a single job outside the normal queue/dispatch loop",
}

var runtestworkerRunCmd = &cobra.Command{
	Use:   "run <job.json>",
	Short: "load a job from a JSON file and execute it synchronously",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return userError("read %s: %v", args[0], err)
		}
		var j job.Job
		if err := json.Unmarshal(data, &j); err != nil {
			return userError("parse job file: %v", err)
		}
		if j.ID == "" {
			j = *job.New(j.FuncName, j.Args, j.Kwargs)
		}

		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if _, ok := a.Tasks.Get(j.FuncName); !ok {
			return userError("task %q is not registered in this binary; runtestworker can only run tasks the host program registered before building the CLI", j.FuncName)
		}

		outcome := a.Runner.Run(context.Background(), &j)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "outcome: %s\n", outcome)
		if j.Error != nil {
			fmt.Fprintf(out, "error: %s: %s\n", j.Error.Type, j.Error.Message)
		} else {
			fmt.Fprintf(out, "result: %v\n", j.Result)
		}
		return nil
	},
}

func init() {
	runtestworkerCmd.AddCommand(runtestworkerRunCmd)
	rootCmd.AddCommand(runtestworkerCmd)
}
