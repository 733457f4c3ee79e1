package runner

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/atisu/evaluator/internal/sandbox"
)

// WorkerFlag is the argv sentinel that switches a binary into worker
// mode. Any main() that evaluates scripts calls MaybeRunWorker first,
// so the parent can re-exec its own binary as the isolated context.
const WorkerFlag = "--sandbox-worker"

// MaybeRunWorker turns the current process into a sandbox worker and
// exits if the worker flag is the first argument. It must run before
// any flag parsing.
func MaybeRunWorker() {
	if len(os.Args) > 1 && os.Args[1] == WorkerFlag {
		os.Exit(RunWorker(os.Stdin, os.Stdout))
	}
}

// RunWorker is the worker process body: read one request, evaluate it,
// write one envelope, exit. The symbol table lives and dies entirely
// inside this process; only the filtered output bindings travel back.
func RunWorker(in io.Reader, out io.Writer) int {
	dec := json.NewDecoder(in)
	dec.UseNumber()

	var req Request
	if err := dec.Decode(&req); err != nil {
		// req.ID holds whatever the decoder read before failing, which
		// may be nothing; the parent must not require it on failures.
		writeEnvelope(out, Envelope{
			ID:  req.ID,
			Err: &WireError{Kind: kindInternal, Message: fmt.Sprintf("decoding request: %v", err)},
		})
		return 1
	}

	env := execute(req)
	if err := writeEnvelope(out, env); err != nil {
		return 1
	}
	return 0
}

func writeEnvelope(out io.Writer, env Envelope) error {
	return json.NewEncoder(out).Encode(env)
}

// execute runs one request against a fresh interpreter. Panics are
// converted into internal-kind failure envelopes so the parent always
// learns why the worker gave up.
func execute(req Request) (env Envelope) {
	env.ID = req.ID
	defer func() {
		if p := recover(); p != nil {
			env = Envelope{
				ID:  req.ID,
				Err: &WireError{Kind: kindInternal, Message: fmt.Sprintf("worker panic: %v", p)},
			}
		}
	}()

	in, err := sandbox.NewInterpreter(req.Policy, req.Inputs)
	if err != nil {
		env.Err = toWireError(err)
		return env
	}
	if err := in.Exec(req.Code); err != nil {
		env.Err = toWireError(err)
		return env
	}

	env.OK = true
	env.Values = in.Extract(req.Outputs)
	return env
}

func toWireError(err error) *WireError {
	var serr *sandbox.ScriptError
	if errors.As(err, &serr) {
		return &WireError{Kind: string(serr.Kind), Message: serr.Msg, Pos: serr.Pos}
	}
	return &WireError{Kind: kindInternal, Message: err.Error()}
}
