// Package runner executes one evaluation request in an isolated worker
// process. A worker is the current binary re-executed with WorkerFlag
// (pattern: write one JSON request to its stdin, read one JSON envelope
// from its stdout). Process isolation is the point: a busy-looping or
// memory-hungry script can always be stopped by killing the worker,
// which a goroutine would not allow.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// ErrNoResult reports a worker that finished without producing a result
// envelope. After a Terminate this is expected; otherwise it signals a
// crashed worker or a protocol bug and must not be ignored.
var ErrNoResult = errors.New("worker exited without producing a result envelope")

// Runner manages a single worker process for a single request. It is
// not reusable; each evaluation constructs a fresh Runner.
type Runner struct {
	binary string
	args   []string

	cmd      *exec.Cmd
	stderr   bytes.Buffer
	result   chan Envelope // capacity 1: at most one outcome per request
	done     chan struct{}
	waitErr  error
	killOnce sync.Once
}

// New returns a Runner that will spawn the given binary with the given
// arguments. An empty binary means "re-exec myself in worker mode",
// which is the normal case.
func New(binary string, args ...string) *Runner {
	return &Runner{
		binary: binary,
		args:   args,
		result: make(chan Envelope, 1),
		done:   make(chan struct{}),
	}
}

// Start spawns the worker and hands it the request. It does not wait:
// the worker runs concurrently, and the outcome arrives through the
// single-slot result channel.
func (r *Runner) Start(req Request) error {
	if r.cmd != nil {
		return errors.New("runner already started")
	}

	binary := r.binary
	args := r.args
	if binary == "" {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("locating own executable: %w", err)
		}
		binary = exe
	}
	if len(args) == 0 {
		args = []string{WorkerFlag}
	}

	cmd := exec.Command(binary, args...)
	cmd.Stderr = &r.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting worker: %w", err)
	}
	r.cmd = cmd

	go func() {
		// Best effort: a worker killed before reading its stdin makes
		// this write fail, which is fine.
		enc := json.NewEncoder(stdin)
		_ = enc.Encode(req)
		stdin.Close()
	}()

	go func() {
		dec := json.NewDecoder(stdout)
		dec.UseNumber()
		var env Envelope
		if err := dec.Decode(&env); err == nil {
			r.result <- env
		}
		io.Copy(io.Discard, stdout)
		// The envelope (if any) is in the channel before done closes,
		// so Result never races against a straggling send.
		r.waitErr = cmd.Wait()
		close(r.done)
	}()

	return nil
}

// Alive reports whether the worker is still running. Non-blocking.
func (r *Runner) Alive() bool {
	if r.cmd == nil {
		return false
	}
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

// Join blocks until the worker terminates or the timeout elapses, and
// reports whether it terminated in time.
func (r *Runner) Join(timeout time.Duration) bool {
	finished, _ := r.JoinContext(context.Background(), timeout)
	return finished
}

// JoinContext is Join with caller cancellation. A context error is
// returned as-is so the caller can distinguish "deadline elapsed" from
// "caller gave up".
func (r *Runner) JoinContext(ctx context.Context, timeout time.Duration) (bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-r.done:
		return true, nil
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Terminate kills the worker process. It is unconditional (SIGKILL, not
// a catchable signal: the evaluated code cannot be trusted to honor a
// cooperative cancellation) and idempotent, safe to call on a worker
// that already exited or was never started.
func (r *Runner) Terminate() {
	r.killOnce.Do(func() {
		if r.cmd != nil && r.cmd.Process != nil {
			_ = r.cmd.Process.Kill()
		}
	})
}

// Result returns the worker's result envelope. Call it after the worker
// has terminated; it blocks until either the envelope or the worker's
// exit has been observed. A terminated-but-empty outcome returns
// ErrNoResult with the worker's exit status and stderr attached.
func (r *Runner) Result() (Envelope, error) {
	select {
	case env := <-r.result:
		return env, nil
	case <-r.done:
		// done closed after any envelope was buffered; drain to settle
		// the race between the two select cases.
		select {
		case env := <-r.result:
			return env, nil
		default:
		}
		return Envelope{}, r.exitError()
	}
}

func (r *Runner) exitError() error {
	detail := ""
	if r.waitErr != nil {
		detail = r.waitErr.Error()
	}
	if msg := strings.TrimSpace(r.stderr.String()); msg != "" {
		if detail != "" {
			detail += ": "
		}
		detail += msg
	}
	if detail == "" {
		return ErrNoResult
	}
	return fmt.Errorf("%w (%s)", ErrNoResult, detail)
}
