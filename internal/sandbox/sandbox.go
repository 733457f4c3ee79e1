// Package sandbox wraps the Starlark interpreter in a restricted-capability
// shell: a fresh symbol table per interpreter, seeded only with caller
// inputs and pure builtins, and a Policy that gates individual language
// constructs before execution starts.
//
// The package performs no isolation itself. Untrusted code must run
// through internal/runner, which moves execution into a separately
// killable worker process; the in-process API here exists for the worker,
// the REPL, and tests.
package sandbox

import (
	"errors"
	"fmt"
	"os"

	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Interpreter executes scripts against a single mutable symbol table.
// It is not safe for concurrent use; each evaluation request gets its
// own instance.
type Interpreter struct {
	policy  Policy
	opts    *syntax.FileOptions
	thread  *starlark.Thread
	globals starlark.StringDict

	// Print receives output from the script's print() calls when the
	// policy allows printing. Unset, output goes to stderr.
	Print func(msg string)
}

// NewInterpreter builds an interpreter whose symbol table holds exactly
// the given inputs. Nothing from the host process leaks in: the only
// ambient names are Starlark's pure universe builtins (range, len, and
// friends), and builtins the policy denies are shadowed by stubs that
// error on call.
func NewInterpreter(policy Policy, inputs map[string]any) (*Interpreter, error) {
	globals := make(starlark.StringDict, len(inputs)+2)
	if !policy.AllowPrint {
		globals["print"] = disabledBuiltin("print")
	}
	if !policy.AllowFail {
		globals["fail"] = disabledBuiltin("fail")
	}
	for name, v := range inputs {
		sv, err := ToStarlark(v)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", name, err)
		}
		globals[name] = sv
	}

	in := &Interpreter{
		policy:  policy,
		opts:    fileOptions(),
		globals: globals,
	}
	in.thread = &starlark.Thread{
		Name: "sandbox",
		Print: func(_ *starlark.Thread, msg string) {
			if in.Print != nil {
				in.Print(msg)
				return
			}
			fmt.Fprintln(os.Stderr, msg)
		},
	}
	return in, nil
}

// Exec parses, policy-checks, and runs a script chunk, mutating the
// symbol table in place. Failures are always a *ScriptError.
func (in *Interpreter) Exec(code string) error {
	f, err := in.opts.Parse("<script>", code, 0)
	if err != nil {
		return parseError(err)
	}
	if err := checkPolicy(f, in.policy); err != nil {
		return err
	}
	if err := starlark.ExecREPLChunk(f, in.thread, in.globals); err != nil {
		return execError(err)
	}
	return nil
}

// Extract returns the requested bindings as plain Go values. Names that
// were never bound, or whose values cannot be represented outside the
// interpreter (builtins, stubs), are omitted rather than reported.
func (in *Interpreter) Extract(names []string) map[string]any {
	out := make(map[string]any, len(names))
	for _, name := range names {
		v, ok := in.globals[name]
		if !ok {
			continue
		}
		gv, err := FromStarlark(v)
		if err != nil {
			continue
		}
		out[name] = gv
	}
	return out
}

// Bindings returns every exportable name in the symbol table. Used by
// the REPL's /vars command.
func (in *Interpreter) Bindings() map[string]any {
	out := make(map[string]any, len(in.globals))
	for name, v := range in.globals {
		gv, err := FromStarlark(v)
		if err != nil {
			continue
		}
		out[name] = gv
	}
	return out
}

// disabledBuiltin shadows a universe builtin with one that refuses to
// run, so a denied capability fails the script instead of no-opping.
func disabledBuiltin(name string) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, _ *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
		return nil, fmt.Errorf("%s is disabled", name)
	})
}

func parseError(err error) *ScriptError {
	var serr syntax.Error
	if errors.As(err, &serr) {
		return &ScriptError{Kind: KindSyntax, Msg: serr.Msg, Pos: serr.Pos.String()}
	}
	return &ScriptError{Kind: KindSyntax, Msg: err.Error()}
}

func execError(err error) *ScriptError {
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		pos := ""
		if n := len(evalErr.CallStack); n > 0 {
			pos = evalErr.CallStack[n-1].Pos.String()
		}
		return &ScriptError{Kind: KindRuntime, Msg: evalErr.Msg, Pos: pos}
	}
	var rerrs resolve.ErrorList
	if errors.As(err, &rerrs) && len(rerrs) > 0 {
		return &ScriptError{Kind: KindSyntax, Msg: rerrs[0].Msg, Pos: rerrs[0].Pos.String()}
	}
	var rerr resolve.Error
	if errors.As(err, &rerr) {
		return &ScriptError{Kind: KindSyntax, Msg: rerr.Msg, Pos: rerr.Pos.String()}
	}
	return &ScriptError{Kind: KindRuntime, Msg: err.Error()}
}
