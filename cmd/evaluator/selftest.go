package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/atisu/evaluator/internal/eval"
)

var selftestCmd = &cobra.Command{
	Use:   "selftest",
	Short: "Run built-in sample programs and check their expected outputs",
	RunE:  runSelftest,
}

func init() {
	rootCmd.AddCommand(selftestCmd)
}

var selftests = []struct {
	name    string
	code    string
	inputs  map[string]any
	outputs []string
	want    map[string]string
}{
	{
		name:    "loop sum with trailing assignment",
		code:    "y = 0\nfor i in range(10000):\n    y = y + i\nx = 5",
		outputs: []string{"x", "y"},
		want:    map[string]string{"x": "5", "y": "49995000"},
	},
	{
		name:    "accumulate onto seeded input",
		code:    "for i in range(101):\n    y = y + i",
		inputs:  map[string]any{"y": 10},
		outputs: []string{"y"},
		want:    map[string]string{"y": "5060"},
	},
}

func runSelftest(cmd *cobra.Command, args []string) error {
	e := eval.New(eval.Options{})
	failed := 0

	for _, st := range selftests {
		out, err := e.Evaluate(cmd.Context(), st.code, st.inputs, st.outputs)
		if err != nil {
			fmt.Printf("FAIL  %s: %v\n", st.name, err)
			failed++
			continue
		}
		ok := len(out) == len(st.want)
		for name, want := range st.want {
			if got, present := out[name]; !present || fmt.Sprint(got) != want {
				ok = false
			}
		}
		if !ok {
			fmt.Printf("FAIL  %s: got %v, want %v\n", st.name, out, st.want)
			failed++
			continue
		}
		fmt.Printf("PASS  %s: %v\n", st.name, out)
	}

	// The runaway case: an infinite loop must come back as a timeout,
	// never hang the caller.
	start := time.Now()
	_, err := e.Evaluate(context.Background(), "while True:\n    pass", nil, nil)
	var te *eval.TimeoutError
	if errors.As(err, &te) {
		fmt.Printf("PASS  infinite loop timed out after %s\n", time.Since(start).Round(time.Millisecond))
	} else {
		fmt.Printf("FAIL  infinite loop: got %v, want timeout\n", err)
		failed++
	}

	if failed > 0 {
		return fmt.Errorf("%d self-test(s) failed", failed)
	}
	return nil
}
