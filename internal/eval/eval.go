// Package eval provides bounded-time evaluation of restricted scripts.
// Each call runs the script in its own worker process (internal/runner)
// against a fresh symbol table (internal/sandbox), waits up to a
// deadline, and either returns the requested output bindings or kills
// the worker and reports a timeout. There is no retry, reuse, or
// partial result: one call, one process, one outcome.
package eval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atisu/evaluator/internal/runner"
	"github.com/atisu/evaluator/internal/sandbox"
)

// DefaultTimeout is the wall-clock budget applied when Options leaves
// Timeout unset. It is a default, not a constant of the domain;
// override it through Options.
const DefaultTimeout = 500 * time.Millisecond

// TimeoutError reports that evaluation exceeded its deadline. Elapsed
// is the wall-clock time from worker start to the kill decision.
type TimeoutError struct {
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("evaluation timed out after %s", e.Elapsed.Round(time.Millisecond))
}

// Options configures an Evaluator.
type Options struct {
	// Timeout is the wall-clock budget per evaluation. Zero means
	// DefaultTimeout.
	Timeout time.Duration

	// Policy is the capability restriction set. Nil means
	// sandbox.DefaultPolicy.
	Policy *sandbox.Policy

	// WorkerBinary and WorkerArgs override the worker command. Empty
	// means re-exec the current binary with the worker flag, which is
	// correct for any main() that calls runner.MaybeRunWorker.
	WorkerBinary string
	WorkerArgs   []string
}

// Evaluator runs scripts with a fixed timeout and policy. It is
// stateless across calls and safe for concurrent use; every call gets
// its own worker process.
type Evaluator struct {
	timeout    time.Duration
	policy     sandbox.Policy
	workerBin  string
	workerArgs []string
}

// New builds an Evaluator from options, filling in defaults.
func New(opts Options) *Evaluator {
	e := &Evaluator{
		timeout:    opts.Timeout,
		policy:     sandbox.DefaultPolicy(),
		workerBin:  opts.WorkerBinary,
		workerArgs: opts.WorkerArgs,
	}
	if e.timeout <= 0 {
		e.timeout = DefaultTimeout
	}
	if opts.Policy != nil {
		e.policy = *opts.Policy
	}
	return e
}

// Evaluate runs code against the given input bindings and returns the
// requested output bindings. Requested names the script never bound are
// omitted, not an error. Failures are typed: *TimeoutError for a blown
// deadline, *sandbox.ScriptError for anything the script itself did
// wrong, and plain errors for infrastructure problems.
func (e *Evaluator) Evaluate(ctx context.Context, code string, inputs map[string]any, outputs []string) (map[string]any, error) {
	req := runner.Request{
		ID:      uuid.NewString(),
		Code:    code,
		Inputs:  inputs,
		Outputs: outputs,
		Policy:  e.policy,
	}

	r := runner.New(e.workerBin, e.workerArgs...)
	start := time.Now()
	if err := r.Start(req); err != nil {
		return nil, err
	}
	// Terminate on every exit path so repeated failures never leak
	// worker processes.
	defer r.Terminate()

	finished, err := r.JoinContext(ctx, e.timeout)
	if err != nil {
		r.Terminate()
		return nil, err
	}
	if !finished {
		elapsed := time.Since(start)
		r.Terminate()
		return nil, &TimeoutError{Elapsed: elapsed}
	}

	env, err := r.Result()
	if err != nil {
		// The worker finished but the result slot is empty. This is a
		// bug or a crashed worker, never a user-facing condition; fail
		// loudly rather than returning an empty mapping.
		return nil, fmt.Errorf("invariant violation: %w", err)
	}
	if !env.OK {
		// Surface the worker's own failure before any protocol check: a
		// worker that could not decode the request cannot echo its id.
		if env.Err == nil {
			return nil, errors.New("invariant violation: failure envelope carries no error")
		}
		return nil, env.Err.Err()
	}
	if env.ID != req.ID {
		return nil, fmt.Errorf("invariant violation: envelope id %q does not match request id %q", env.ID, req.ID)
	}

	// The worker already filters to the requested names; re-filter here
	// so no extra binding can leak past the boundary regardless.
	out := make(map[string]any, len(outputs))
	for _, name := range outputs {
		if v, ok := env.Values[name]; ok {
			out[name] = v
		}
	}
	return out, nil
}

// Evaluate runs code with the default timeout and policy in a worker
// spawned by re-executing the current binary. Callers needing a custom
// deadline, policy, or context use New and the method form.
func Evaluate(code string, inputs map[string]any, outputs []string) (map[string]any, error) {
	return New(Options{}).Evaluate(context.Background(), code, inputs, outputs)
}
