package sandbox

// ErrorKind classifies a script failure so callers (and the worker
// protocol) can tell a malformed program from a disabled capability from
// an error the script hit at runtime.
type ErrorKind string

const (
	// KindSyntax covers parse and resolve errors, including use of
	// keywords the grammar reserves but never implements (try, raise,
	// assert, del).
	KindSyntax ErrorKind = "syntax"

	// KindDisabled marks use of a construct the active Policy denies.
	KindDisabled ErrorKind = "disabled"

	// KindRuntime is an error raised while the script was executing,
	// such as division by zero or calling a disabled builtin stub.
	KindRuntime ErrorKind = "runtime"
)

// ScriptError is the typed failure produced by the interpreter. It
// deliberately carries only kind, message, and position so it can cross
// the worker process boundary as JSON without losing the taxonomy.
type ScriptError struct {
	Kind ErrorKind `json:"kind"`
	Msg  string    `json:"message"`
	Pos  string    `json:"position,omitempty"`
}

func (e *ScriptError) Error() string {
	if e.Pos != "" {
		return e.Pos + ": " + e.Msg
	}
	return e.Msg
}
