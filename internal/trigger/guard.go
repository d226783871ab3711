package trigger

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-script/internal/runtime"
	"github.com/nerrad567/gray-logic-script/internal/script/ast"
	"github.com/nerrad567/gray-logic-script/internal/script/eval"
	"github.com/nerrad567/gray-logic-script/internal/script/parser"
)

// guard is a compiled boolean expression.
type guard struct {
	src   string
	label string
	mod   *ast.Module
	names []string
}

// compileGuard parses src as a single expression. label names the clause
// in error positions, e.g. "motion @state_trigger".
func compileGuard(src, label string) (*guard, error) {
	expr, err := parser.ParseExpr(src, label)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidGuard, label, err)
	}
	return &guard{
		src:   src,
		label: label,
		mod:   &ast.Module{Body: []ast.Stmt{&ast.ExprStmt{Pos: expr.Position(), Value: expr}}, Filename: label},
		names: ast.Names(expr),
	}, nil
}

// eval reports whether the guard holds with vars injected as locals.
// Evaluation errors are logged by the context and count as false.
func (g *guard) eval(ctx context.Context, rt *runtime.Runtime, name string, globals *eval.SymTable, vars map[string]any) bool {
	c := rt.NewContext(ctx, name, g.label, globals)
	extra := make(map[string]eval.Value, len(vars))
	for k, v := range vars {
		extra[k] = eval.FromNative(v)
	}
	return eval.Truthy(c.Eval(g.mod, extra))
}
