package sandbox

import "go.starlark.net/syntax"

// checkPolicy traverses the parsed file and rejects the first construct
// the policy denies. The traversal is a hand-written visitor covering
// every statement and expression kind the grammar produces, so a denied
// construct is reported with its source position and the script never
// starts, rather than failing partway through with side effects already
// applied.
func checkPolicy(f *syntax.File, p Policy) error {
	c := policyChecker{policy: p}
	if serr := c.stmts(f.Stmts); serr != nil {
		return serr
	}
	return nil
}

type policyChecker struct {
	policy Policy
}

func (c *policyChecker) stmts(stmts []syntax.Stmt) *ScriptError {
	for _, s := range stmts {
		if err := c.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *policyChecker) stmt(s syntax.Stmt) *ScriptError {
	switch s := s.(type) {
	case *syntax.AssignStmt:
		if s.Op != syntax.EQ && !c.policy.AllowAugAssign {
			return &ScriptError{
				Kind: KindDisabled,
				Msg:  "augmented assignment is disabled",
				Pos:  nodePos(s),
			}
		}
		return c.exprs(s.LHS, s.RHS)
	case *syntax.BranchStmt:
		return nil // break, continue, pass
	case *syntax.DefStmt:
		if !c.policy.AllowFunctions {
			return disabledAt("function definitions", s)
		}
		if err := c.exprs(s.Params...); err != nil {
			return err
		}
		return c.stmts(s.Body)
	case *syntax.ExprStmt:
		return c.expr(s.X)
	case *syntax.ForStmt:
		if !c.policy.AllowFor {
			return disabledAt("for loops", s)
		}
		if err := c.exprs(s.Vars, s.X); err != nil {
			return err
		}
		return c.stmts(s.Body)
	case *syntax.WhileStmt:
		if !c.policy.AllowWhile {
			return disabledAt("while loops", s)
		}
		if err := c.expr(s.Cond); err != nil {
			return err
		}
		return c.stmts(s.Body)
	case *syntax.IfStmt:
		if !c.policy.AllowIf {
			return disabledAt("if statements", s)
		}
		if err := c.expr(s.Cond); err != nil {
			return err
		}
		if err := c.stmts(s.True); err != nil {
			return err
		}
		return c.stmts(s.False)
	case *syntax.LoadStmt:
		// Never allowed: load reaches outside the symbol table.
		return disabledAt("load statements", s)
	case *syntax.ReturnStmt:
		return c.expr(s.Result)
	default:
		return nil
	}
}

func (c *policyChecker) exprs(exprs ...syntax.Expr) *ScriptError {
	for _, e := range exprs {
		if err := c.expr(e); err != nil {
			return err
		}
	}
	return nil
}

func (c *policyChecker) expr(e syntax.Expr) *ScriptError {
	switch e := e.(type) {
	case nil:
		return nil // optional slots: return value, slice bounds, unary operand
	case *syntax.BinaryExpr:
		return c.exprs(e.X, e.Y)
	case *syntax.CallExpr:
		if err := c.expr(e.Fn); err != nil {
			return err
		}
		return c.exprs(e.Args...)
	case *syntax.Comprehension:
		if !c.policy.AllowComprehensions {
			return disabledAt("comprehensions", e)
		}
		for _, clause := range e.Clauses {
			switch clause := clause.(type) {
			case *syntax.ForClause:
				if err := c.exprs(clause.Vars, clause.X); err != nil {
					return err
				}
			case *syntax.IfClause:
				if err := c.expr(clause.Cond); err != nil {
					return err
				}
			}
		}
		return c.expr(e.Body)
	case *syntax.CondExpr:
		if !c.policy.AllowIf {
			return disabledAt("conditional expressions", e)
		}
		return c.exprs(e.Cond, e.True, e.False)
	case *syntax.DictEntry:
		return c.exprs(e.Key, e.Value)
	case *syntax.DictExpr:
		return c.exprs(e.List...)
	case *syntax.DotExpr:
		return c.expr(e.X)
	case *syntax.Ident, *syntax.Literal:
		return nil
	case *syntax.IndexExpr:
		return c.exprs(e.X, e.Y)
	case *syntax.LambdaExpr:
		if !c.policy.AllowFunctions {
			return disabledAt("lambda expressions", e)
		}
		if err := c.exprs(e.Params...); err != nil {
			return err
		}
		return c.expr(e.Body)
	case *syntax.ListExpr:
		return c.exprs(e.List...)
	case *syntax.ParenExpr:
		return c.expr(e.X)
	case *syntax.SliceExpr:
		return c.exprs(e.X, e.Lo, e.Hi, e.Step)
	case *syntax.TupleExpr:
		return c.exprs(e.List...)
	case *syntax.UnaryExpr:
		return c.expr(e.X)
	default:
		return nil
	}
}

func disabledAt(what string, n syntax.Node) *ScriptError {
	return &ScriptError{Kind: KindDisabled, Msg: what + " are disabled", Pos: nodePos(n)}
}

func nodePos(n syntax.Node) string {
	start, _ := n.Span()
	return start.String()
}
