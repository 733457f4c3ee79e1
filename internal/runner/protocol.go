package runner

import (
	"fmt"

	"github.com/atisu/evaluator/internal/sandbox"
)

// Request is the execution request a parent sends to a worker process,
// as a single JSON document on the worker's stdin. It is immutable once
// written; each request gets exactly one worker.
type Request struct {
	// ID correlates the request with its result envelope. A success
	// envelope must echo it; failure envelopes carry it when the worker
	// got far enough to learn it.
	ID      string         `json:"id"`
	Code    string         `json:"code"`
	Inputs  map[string]any `json:"inputs,omitempty"`
	Outputs []string       `json:"outputs,omitempty"`
	Policy  sandbox.Policy `json:"policy"`
}

// Envelope is the single success-or-failure outcome a worker writes to
// stdout. At most one envelope is ever produced per request; a worker
// that exits without producing one was either killed or crashed.
type Envelope struct {
	ID     string         `json:"id"`
	OK     bool           `json:"ok"`
	Values map[string]any `json:"values,omitempty"`
	Err    *WireError     `json:"error,omitempty"`
}

// WireError carries a failure across the process boundary. Script
// failures keep their kind, message, and position; anything else (a
// worker bug, a protocol error) uses the internal kind.
type WireError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Pos     string `json:"position,omitempty"`
}

const kindInternal = "internal"

// Err reconstructs the typed error on the parent side.
func (w *WireError) Err() error {
	switch k := sandbox.ErrorKind(w.Kind); k {
	case sandbox.KindSyntax, sandbox.KindDisabled, sandbox.KindRuntime:
		return &sandbox.ScriptError{Kind: k, Msg: w.Message, Pos: w.Pos}
	default:
		return fmt.Errorf("worker error: %s", w.Message)
	}
}
