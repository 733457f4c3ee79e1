package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/atisu/evaluator/internal/runner"
)

var configFlag string

var rootCmd = &cobra.Command{
	Use:   "evaluator",
	Short: "Evaluator - bounded-time sandboxed script evaluation",
	Long: `Evaluator runs restricted scripts against named input values and returns
the requested output values.

Every evaluation executes in its own worker process with a wall-clock
deadline, so a runaway script can always be killed without touching the
calling process. The script language is a restricted Starlark subset:
no function definitions, no comprehensions, no print, no way to trap or
raise errors.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Path to evaluator.yaml (default: ./evaluator.yaml, ~/.evaluator/evaluator.yaml)")
}

func main() {
	// Must run before cobra sees the arguments: the runner re-executes
	// this binary with the worker flag as the isolated context.
	runner.MaybeRunWorker()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
