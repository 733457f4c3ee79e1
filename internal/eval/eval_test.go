package eval_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/atisu/evaluator/internal/eval"
	"github.com/atisu/evaluator/internal/runner"
	"github.com/atisu/evaluator/internal/sandbox"
)

// brokenWorkerFlag switches the test binary into a worker that answers
// with a decode-failure envelope, as a real worker does when it cannot
// parse its request. Such an envelope carries no request id.
const brokenWorkerFlag = "--broken-worker"

func TestMain(m *testing.M) {
	runner.MaybeRunWorker()
	if len(os.Args) > 1 && os.Args[1] == brokenWorkerFlag {
		fmt.Println(`{"ok":false,"error":{"kind":"internal","message":"decoding request: truncated input"}}`)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func TestEvaluateLoopSum(t *testing.T) {
	code := "y = 0\nfor i in range(10000):\n    y = y + i\nx = 5"

	got, err := eval.Evaluate(code, nil, []string{"x", "y"})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	want := map[string]any{"x": json.Number("5"), "y": json.Number("49995000")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Evaluate = %v, want %v", got, want)
	}
}

func TestEvaluateSeededInput(t *testing.T) {
	code := "for i in range(101):\n    y = y + i"

	got, err := eval.Evaluate(code, map[string]any{"y": 10}, []string{"y"})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got["y"] != json.Number("5060") {
		t.Errorf("y = %v, want 5060", got["y"])
	}
}

func TestEvaluateTimeout(t *testing.T) {
	e := eval.New(eval.Options{Timeout: 500 * time.Millisecond})

	start := time.Now()
	_, err := e.Evaluate(context.Background(), "while True:\n    pass", nil, nil)
	elapsed := time.Since(start)

	var te *eval.TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("Evaluate = %v, want *TimeoutError", err)
	}
	if te.Elapsed < 500*time.Millisecond {
		t.Errorf("Elapsed = %s, want >= deadline", te.Elapsed)
	}
	// The kill must come promptly: within half the deadline again.
	if elapsed > 750*time.Millisecond {
		t.Errorf("call took %s, timeout enforcement is too slow", elapsed)
	}
}

func TestEvaluateWhileLoopCompletes(t *testing.T) {
	code := "n = 5\ntotal = 0\nwhile n > 0:\n    total += n\n    n -= 1"

	got, err := eval.Evaluate(code, nil, []string{"total"})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got["total"] != json.Number("15") {
		t.Errorf("total = %v, want 15", got["total"])
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	code := "y = 0\nfor i in range(100):\n    y += i * i"

	var first map[string]any
	for i := 0; i < 3; i++ {
		got, err := eval.Evaluate(code, nil, []string{"y"})
		if err != nil {
			t.Fatalf("Evaluate (run %d): %v", i, err)
		}
		if first == nil {
			first = got
			continue
		}
		if !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d = %v, first run = %v", i, got, first)
		}
	}
}

func TestEvaluateOutputFiltering(t *testing.T) {
	code := "a = 1\nb = 2\nc = 3"

	got, err := eval.Evaluate(code, nil, []string{"a", "c", "never_bound"})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	want := map[string]any{"a": json.Number("1"), "c": json.Number("3")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Evaluate = %v, want %v", got, want)
	}
}

func TestEvaluateNoOutputsRequested(t *testing.T) {
	got, err := eval.Evaluate("x = 1", nil, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Evaluate = %v, want empty mapping", got)
	}
}

func TestEvaluateInputsDoNotLeakBack(t *testing.T) {
	inputs := map[string]any{"y": 10}

	_, err := eval.Evaluate("y = y + 1\nz = 99", inputs, []string{"z"})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	// The caller-side map must be untouched by the evaluation.
	if inputs["y"] != 10 {
		t.Errorf("caller inputs mutated: %v", inputs)
	}
}

func TestEvaluateCapabilityViolation(t *testing.T) {
	_, err := eval.Evaluate("xs = [i for i in range(3)]", nil, []string{"xs"})

	var serr *sandbox.ScriptError
	if !errors.As(err, &serr) {
		t.Fatalf("Evaluate = %v, want *ScriptError", err)
	}
	if serr.Kind != sandbox.KindDisabled {
		t.Errorf("Kind = %s, want %s", serr.Kind, sandbox.KindDisabled)
	}
}

func TestEvaluateRuntimeErrorPropagates(t *testing.T) {
	_, err := eval.Evaluate("x = 1 // 0", nil, []string{"x"})

	var serr *sandbox.ScriptError
	if !errors.As(err, &serr) {
		t.Fatalf("Evaluate = %v, want *ScriptError", err)
	}
	if serr.Kind != sandbox.KindRuntime {
		t.Errorf("Kind = %s, want %s", serr.Kind, sandbox.KindRuntime)
	}
	// A failed evaluation yields no partial output; the error carries
	// everything the caller learns.
}

func TestEvaluateContextCancellation(t *testing.T) {
	e := eval.New(eval.Options{Timeout: 30 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := e.Evaluate(ctx, "while True:\n    pass", nil, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Evaluate = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Error("cancellation was not prompt")
	}
}

func TestEvaluateWorkerDecodeFailureSurfaced(t *testing.T) {
	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("Executable: %v", err)
	}
	e := eval.New(eval.Options{WorkerBinary: exe, WorkerArgs: []string{brokenWorkerFlag}})

	_, err = e.Evaluate(context.Background(), "x = 1", nil, []string{"x"})
	if err == nil {
		t.Fatal("Evaluate = nil, want worker error")
	}
	if !strings.Contains(err.Error(), "decoding request") {
		t.Errorf("err = %v, want the worker's decode failure", err)
	}
	if strings.Contains(err.Error(), "does not match request id") {
		t.Errorf("err = %v, id mismatch must not mask the worker's failure", err)
	}
}

func TestEvaluateCustomPolicy(t *testing.T) {
	policy := sandbox.DefaultPolicy()
	policy.AllowWhile = false
	e := eval.New(eval.Options{Policy: &policy})

	_, err := e.Evaluate(context.Background(), "while True:\n    pass", nil, nil)

	var serr *sandbox.ScriptError
	if !errors.As(err, &serr) {
		t.Fatalf("Evaluate = %v, want *ScriptError", err)
	}
	if serr.Kind != sandbox.KindDisabled {
		t.Errorf("Kind = %s, want %s", serr.Kind, sandbox.KindDisabled)
	}
}
