package sandbox

import "go.starlark.net/syntax"

// Policy controls which language capabilities evaluated scripts may use.
// The zero value denies everything; DefaultPolicy enables plain control
// flow while keeping the surface that lets scripts define code, trap
// errors, or produce output disabled.
//
// Constructs that Starlark's grammar does not have at all (try/except,
// raise, assert, del, class) are rejected unconditionally by the parser
// and need no toggle here.
type Policy struct {
	AllowIf             bool `json:"allow_if" mapstructure:"allow_if"`
	AllowFor            bool `json:"allow_for" mapstructure:"allow_for"`
	AllowWhile          bool `json:"allow_while" mapstructure:"allow_while"`
	AllowAugAssign      bool `json:"allow_aug_assign" mapstructure:"allow_aug_assign"`
	AllowFunctions      bool `json:"allow_functions" mapstructure:"allow_functions"`
	AllowComprehensions bool `json:"allow_comprehensions" mapstructure:"allow_comprehensions"`
	AllowPrint          bool `json:"allow_print" mapstructure:"allow_print"`
	AllowFail           bool `json:"allow_fail" mapstructure:"allow_fail"`
}

// DefaultPolicy returns the restriction set for untrusted scripts:
// branching, loops, and augmented assignment are enabled, everything
// else is denied.
func DefaultPolicy() Policy {
	return Policy{
		AllowIf:        true,
		AllowFor:       true,
		AllowWhile:     true,
		AllowAugAssign: true,
	}
}

// fileOptions returns the Starlark parser/resolver options. The grammar
// accepts everything here; the policy walk in restrict.go is the single
// place constructs are gated, so every violation carries its source
// position and a consistent error kind.
func fileOptions() *syntax.FileOptions {
	return &syntax.FileOptions{
		Set:             true,
		While:           true,
		TopLevelControl: true,
		GlobalReassign:  true,
		Recursion:       true,
	}
}
