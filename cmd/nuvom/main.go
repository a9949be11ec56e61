// Command nuvom is the operator-facing entry point for the task queue
// engine: run the worker pool, inspect job history, manage the capability
// registry, and drive task discovery, all from one cobra command tree.
package main

import (
	"os"

	"github.com/nuvom/nuvom/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
