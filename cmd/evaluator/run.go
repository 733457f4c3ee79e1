package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/atisu/evaluator/internal/config"
	"github.com/atisu/evaluator/internal/eval"
)

var (
	inputFlags     []string
	inputsFileFlag string
	outputFlags    []string
	timeoutFlag    time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Evaluate a script from a file or stdin",
	Long: `Evaluate a script and print the requested output bindings as JSON.

Examples:
  evaluator run examples/scripts/interest.star --inputs-file examples/scripts/inputs.yaml --output total
  echo 'x = 6 * 7' | evaluator run --output x
  evaluator run script.star --input y=10 --output y --timeout 2s`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringArrayVar(&inputFlags, "input", nil, "Input binding name=value (value parsed as JSON, else taken as a string; repeatable)")
	runCmd.Flags().StringVar(&inputsFileFlag, "inputs-file", "", "YAML file of input bindings")
	runCmd.Flags().StringArrayVar(&outputFlags, "output", nil, "Name of an output binding to return (repeatable)")
	runCmd.Flags().DurationVar(&timeoutFlag, "timeout", 0, "Evaluation deadline (overrides config)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return err
	}

	var code []byte
	if len(args) == 1 {
		code, err = os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading script: %w", err)
		}
	} else {
		code, err = io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
	}

	inputs, err := collectInputs()
	if err != nil {
		return err
	}

	timeout := cfg.Eval.Timeout
	if timeoutFlag > 0 {
		timeout = timeoutFlag
	}

	e := eval.New(eval.Options{
		Timeout:      timeout,
		Policy:       &cfg.Sandbox,
		WorkerBinary: cfg.Worker.Binary,
		WorkerArgs:   cfg.Worker.Args,
	})

	out, err := e.Evaluate(cmd.Context(), string(code), inputs, outputFlags)
	if err != nil {
		var te *eval.TimeoutError
		if errors.As(err, &te) {
			return fmt.Errorf("%w (deadline %s)", te, timeout)
		}
		return err
	}

	rendered, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("rendering output: %w", err)
	}
	fmt.Println(string(rendered))
	return nil
}

// collectInputs merges --inputs-file with --input flags; flags win.
func collectInputs() (map[string]any, error) {
	inputs := make(map[string]any)

	if inputsFileFlag != "" {
		data, err := os.ReadFile(inputsFileFlag)
		if err != nil {
			return nil, fmt.Errorf("reading inputs file: %w", err)
		}
		if err := yaml.Unmarshal(data, &inputs); err != nil {
			return nil, fmt.Errorf("parsing inputs file: %w", err)
		}
	}

	for _, raw := range inputFlags {
		name, value, ok := strings.Cut(raw, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --input %q, want name=value", raw)
		}
		inputs[name] = parseInputValue(value)
	}
	return inputs, nil
}

// parseInputValue reads the value as JSON so numbers, booleans, lists,
// and objects come through typed; anything unparseable is a string.
func parseInputValue(value string) any {
	dec := json.NewDecoder(strings.NewReader(value))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return value
	}
	return v
}
