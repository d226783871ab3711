package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/nerrad567/gray-logic-script/internal/script/ast"
)

var ignorePos = cmpopts.IgnoreTypes(ast.Pos{})

func mustParse(t *testing.T, src string) *ast.Module {
	t.Helper()
	mod, err := Parse(src, "test.py")
	if err != nil {
		t.Fatalf("Parse(%q) error = %v", src, err)
	}
	return mod
}

func parseExpr(t *testing.T, src string) ast.Expr {
	t.Helper()
	e, err := ParseExpr(src, "test.py")
	if err != nil {
		t.Fatalf("ParseExpr(%q) error = %v", src, err)
	}
	return e
}

func name(id string) *ast.Name      { return &ast.Name{ID: id} }
func num(v int64) *ast.Constant     { return &ast.Constant{Value: v} }
func str(v string) *ast.Constant    { return &ast.Constant{Value: v} }
func exprStmt(e ast.Expr) *ast.ExprStmt { return &ast.ExprStmt{Value: e} }

// ─── Expressions ───────────────────────────────────────────────────

func TestParseExpr_Precedence(t *testing.T) {
	tests := []struct {
		src  string
		want ast.Expr
	}{
		{
			src: "1 + 2 * 3",
			want: &ast.BinOp{Left: num(1), Op: ast.Add,
				Right: &ast.BinOp{Left: num(2), Op: ast.Mult, Right: num(3)}},
		},
		{
			src: "-2 ** 2",
			want: &ast.UnaryOp{Op: ast.USub,
				Operand: &ast.BinOp{Left: num(2), Op: ast.Pow, Right: num(2)}},
		},
		{
			src: "2 ** 3 ** 2",
			want: &ast.BinOp{Left: num(2), Op: ast.Pow,
				Right: &ast.BinOp{Left: num(3), Op: ast.Pow, Right: num(2)}},
		},
		{
			src: "a or b and not c",
			want: &ast.BoolOp{Op: ast.Or, Values: []ast.Expr{
				name("a"),
				&ast.BoolOp{Op: ast.And, Values: []ast.Expr{
					name("b"),
					&ast.UnaryOp{Op: ast.Not, Operand: name("c")},
				}},
			}},
		},
		{
			src: "1 < x <= 3",
			want: &ast.Compare{Left: num(1),
				Ops:         []ast.Op{ast.Lt, ast.LtE},
				Comparators: []ast.Expr{name("x"), num(3)}},
		},
		{
			src: "a not in b",
			want: &ast.Compare{Left: name("a"),
				Ops: []ast.Op{ast.NotIn}, Comparators: []ast.Expr{name("b")}},
		},
		{
			src: "a is not None",
			want: &ast.Compare{Left: name("a"),
				Ops: []ast.Op{ast.IsNot}, Comparators: []ast.Expr{&ast.Constant{Value: nil}}},
		},
		{
			src:  "x if c else y",
			want: &ast.IfExp{Test: name("c"), Body: name("x"), OrElse: name("y")},
		},
		{
			src: "1 | 2 ^ 3 & 4 << 1",
			want: &ast.BinOp{Left: num(1), Op: ast.BitOr,
				Right: &ast.BinOp{Left: num(2), Op: ast.BitXor,
					Right: &ast.BinOp{Left: num(3), Op: ast.BitAnd,
						Right: &ast.BinOp{Left: num(4), Op: ast.LShift, Right: num(1)}}}},
		},
		{
			src: "7 // 2 % 3",
			want: &ast.BinOp{Op: ast.Mod,
				Left:  &ast.BinOp{Left: num(7), Op: ast.FloorDiv, Right: num(2)},
				Right: num(3)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got := parseExpr(t, tt.src)
			if diff := cmp.Diff(tt.want, got, ignorePos); diff != "" {
				t.Errorf("ParseExpr(%q) mismatch (-want +got):\n%s", tt.src, diff)
			}
		})
	}
}

func TestParseExpr_Atoms(t *testing.T) {
	tests := []struct {
		src  string
		want ast.Expr
	}{
		{"0x1f", num(31)},
		{"0b101", num(5)},
		{"1_000", num(1000)},
		{"1.5e3", &ast.Constant{Value: 1500.0}},
		{"True", &ast.Constant{Value: true}},
		{"'a' \"b\"", str("ab")},
		{"()", &ast.Tuple{}},
		{"(1,)", &ast.Tuple{Elts: []ast.Expr{num(1)}}},
		{"(1)", num(1)},
		{"[1, 2,]", &ast.List{Elts: []ast.Expr{num(1), num(2)}}},
		{"{}", &ast.Dict{}},
		{"{1, 2}", &ast.Set{Elts: []ast.Expr{num(1), num(2)}}},
		{
			"{'a': 1, **b}",
			&ast.Dict{Keys: []ast.Expr{str("a"), nil}, Values: []ast.Expr{num(1), name("b")}},
		},
		{
			"sensor.temp.attr",
			&ast.Attribute{Value: &ast.Attribute{Value: name("sensor"), Attr: "temp"}, Attr: "attr"},
		},
		{
			"x[1:2]",
			&ast.Subscript{Value: name("x"), Index: &ast.Slice{Lower: num(1), Upper: num(2)}},
		},
		{
			"x[::-1]",
			&ast.Subscript{Value: name("x"), Index: &ast.Slice{
				Step: &ast.UnaryOp{Op: ast.USub, Operand: num(1)}}},
		},
		{
			"x[1, 2]",
			&ast.Subscript{Value: name("x"), Index: &ast.Tuple{Elts: []ast.Expr{num(1), num(2)}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got := parseExpr(t, tt.src)
			if diff := cmp.Diff(tt.want, got, ignorePos); diff != "" {
				t.Errorf("ParseExpr(%q) mismatch (-want +got):\n%s", tt.src, diff)
			}
		})
	}
}

func TestParseExpr_Call(t *testing.T) {
	got := parseExpr(t, "f(1, *a, k=2, **kw)")
	want := &ast.Call{
		Func: name("f"),
		Args: []ast.Expr{num(1), &ast.Starred{Value: name("a")}},
		Keywords: []ast.Keyword{
			{Name: "k", Value: num(2)},
			{Value: name("kw")},
		},
	}
	if diff := cmp.Diff(want, got, ignorePos); diff != "" {
		t.Errorf("call mismatch (-want +got):\n%s", diff)
	}
}

func TestParseExpr_FString(t *testing.T) {
	tests := []struct {
		src  string
		want ast.Expr
	}{
		{
			src: `f"x={x}"`,
			want: &ast.JoinedStr{Values: []ast.Expr{
				str("x="),
				&ast.FormattedValue{Value: name("x")},
			}},
		},
		{
			src: `f"{x!r:>{w}} {{ok}}"`,
			want: &ast.JoinedStr{Values: []ast.Expr{
				&ast.FormattedValue{
					Value:      name("x"),
					Conversion: 'r',
					FormatSpec: &ast.JoinedStr{Values: []ast.Expr{
						str(">"),
						&ast.FormattedValue{Value: name("w")},
					}},
				},
				str(" {ok}"),
			}},
		},
		{
			src: `"a" f"{1 + 2:.2f}" "b"`,
			want: &ast.JoinedStr{Values: []ast.Expr{
				str("a"),
				&ast.FormattedValue{
					Value:      &ast.BinOp{Left: num(1), Op: ast.Add, Right: num(2)},
					FormatSpec: &ast.JoinedStr{Values: []ast.Expr{str(".2f")}},
				},
				str("b"),
			}},
		},
		{
			src: `f"{d['k']}"`,
			want: &ast.JoinedStr{Values: []ast.Expr{
				&ast.FormattedValue{Value: &ast.Subscript{Value: name("d"), Index: str("k")}},
			}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got := parseExpr(t, tt.src)
			if diff := cmp.Diff(tt.want, got, ignorePos); diff != "" {
				t.Errorf("ParseExpr(%s) mismatch (-want +got):\n%s", tt.src, diff)
			}
		})
	}
}

// ─── Statements ────────────────────────────────────────────────────

func TestParse_Assignments(t *testing.T) {
	tests := []struct {
		src  string
		want ast.Stmt
	}{
		{
			"a = b = 1",
			&ast.Assign{Targets: []ast.Expr{name("a"), name("b")}, Value: num(1)},
		},
		{
			"a, b = b, a",
			&ast.Assign{
				Targets: []ast.Expr{&ast.Tuple{Elts: []ast.Expr{name("a"), name("b")}}},
				Value:   &ast.Tuple{Elts: []ast.Expr{name("b"), name("a")}},
			},
		},
		{
			"x[0] += 2",
			&ast.AugAssign{
				Target: &ast.Subscript{Value: name("x"), Index: num(0)},
				Op:     ast.Add, Value: num(2),
			},
		},
		{
			"script.var = 'on'",
			&ast.Assign{
				Targets: []ast.Expr{&ast.Attribute{Value: name("script"), Attr: "var"}},
				Value:   str("on"),
			},
		},
		{
			"a, *b, c = xs",
			&ast.Assign{
				Targets: []ast.Expr{&ast.Tuple{Elts: []ast.Expr{
					name("a"), &ast.Starred{Value: name("b")}, name("c"),
				}}},
				Value: name("xs"),
			},
		},
		{
			"[x, *rest] = xs",
			&ast.Assign{
				Targets: []ast.Expr{&ast.List{Elts: []ast.Expr{
					name("x"), &ast.Starred{Value: name("rest")},
				}}},
				Value: name("xs"),
			},
		},
		{
			"del d[1], e",
			&ast.Delete{Targets: []ast.Expr{
				&ast.Subscript{Value: name("d"), Index: num(1)},
				name("e"),
			}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			mod := mustParse(t, tt.src)
			if len(mod.Body) != 1 {
				t.Fatalf("len(Body) = %d, want 1", len(mod.Body))
			}
			if diff := cmp.Diff(tt.want, mod.Body[0], ignorePos); diff != "" {
				t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.src, diff)
			}
		})
	}
}

func TestParse_CompoundStatements(t *testing.T) {
	src := `
for i, v in enumerate(x):
    if v > 1:
        break
    elif v:
        continue
    else:
        pass
else:
    y = 0
while x: x -= 1
`
	mod := mustParse(t, src)
	want := []ast.Stmt{
		&ast.For{
			Target: &ast.Tuple{Elts: []ast.Expr{name("i"), name("v")}},
			Iter:   &ast.Call{Func: name("enumerate"), Args: []ast.Expr{name("x")}},
			Body: []ast.Stmt{
				&ast.If{
					Test: &ast.Compare{Left: name("v"), Ops: []ast.Op{ast.Gt}, Comparators: []ast.Expr{num(1)}},
					Body: []ast.Stmt{&ast.Break{}},
					Else: []ast.Stmt{&ast.If{
						Test: name("v"),
						Body: []ast.Stmt{&ast.Continue{}},
						Else: []ast.Stmt{&ast.Pass{}},
					}},
				},
			},
			Else: []ast.Stmt{&ast.Assign{Targets: []ast.Expr{name("y")}, Value: num(0)}},
		},
		&ast.While{
			Test: name("x"),
			Body: []ast.Stmt{&ast.AugAssign{Target: name("x"), Op: ast.Sub, Value: num(1)}},
		},
	}
	if diff := cmp.Diff(want, mod.Body, ignorePos); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_FunctionDef(t *testing.T) {
	src := `
@state_trigger("sensor.x == '1'")
@time_active("range(8:00, 20:00)")
def handler(a, b=2, *args, c, d=4, **kw):
    """Turn the lights on."""
    global g
    return a + b
`
	mod := mustParse(t, src)
	fn, ok := mod.Body[0].(*ast.FunctionDef)
	if !ok {
		t.Fatalf("Body[0] = %T, want *ast.FunctionDef", mod.Body[0])
	}
	if fn.Name != "handler" {
		t.Errorf("Name = %q, want handler", fn.Name)
	}
	if !fn.HasDoc || fn.Doc != "Turn the lights on." {
		t.Errorf("Doc = %q (HasDoc %v)", fn.Doc, fn.HasDoc)
	}
	if len(fn.Decorators) != 2 {
		t.Fatalf("len(Decorators) = %d, want 2", len(fn.Decorators))
	}
	wantArgs := &ast.Arguments{
		Args:       []string{"a", "b"},
		Defaults:   []ast.Expr{num(2)},
		Vararg:     "args",
		KwOnly:     []string{"c", "d"},
		KwDefaults: []ast.Expr{nil, num(4)},
		Kwarg:      "kw",
	}
	if diff := cmp.Diff(wantArgs, fn.Args, ignorePos); diff != "" {
		t.Errorf("Args mismatch (-want +got):\n%s", diff)
	}
	globals, _ := ast.DeclaredNames(fn.Body)
	if _, ok := globals["g"]; !ok {
		t.Errorf("DeclaredNames missing global g")
	}
}

func TestParse_Imports(t *testing.T) {
	mod := mustParse(t, "import math, random as r\nfrom datetime import datetime as dt, timedelta\n")
	want := []ast.Stmt{
		&ast.Import{Names: []ast.Alias{{Name: "math"}, {Name: "random", AsName: "r"}}},
		&ast.ImportFrom{Module: "datetime", Names: []ast.Alias{
			{Name: "datetime", AsName: "dt"}, {Name: "timedelta"},
		}},
	}
	if diff := cmp.Diff(want, mod.Body, ignorePos); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Unsupported(t *testing.T) {
	tests := []struct {
		src  string
		what string
	}{
		{"class A:\n    pass\n", "ClassDef"},
		{"try:\n    x = 1\nexcept Exception:\n    pass\nfinally:\n    pass\n", "Try"},
		{"with open(f) as fh:\n    pass\n", "With"},
		{"raise ValueError('x')", "Raise"},
		{"assert x", "Assert"},
		{"y = lambda a: a", "Lambda"},
		{"y = [i for i in x if i]", "ListComp"},
		{"y = {k: v for k, v in x}", "DictComp"},
		{"y = sum(i for i in x)", "GeneratorExp"},
	}
	for _, tt := range tests {
		t.Run(tt.what, func(t *testing.T) {
			mod := mustParse(t, tt.src)
			var found string
			for _, s := range mod.Body {
				ast.Inspect(s, func(n ast.Node) bool {
					if u, ok := n.(*ast.Unsupported); ok {
						found = u.What
					}
					return true
				})
			}
			if found != tt.what {
				t.Errorf("Unsupported.What = %q, want %q", found, tt.what)
			}
		})
	}
}

// ─── Errors ────────────────────────────────────────────────────────

func TestParse_SyntaxErrors(t *testing.T) {
	tests := []struct {
		src      string
		wantLine int
		wantMsg  string
	}{
		{"x = (1,\n", 2, "EOF"},
		{"if x\n    pass\n", 1, "expected ':'"},
		{"def f(a=1, b):\n    pass\n", 1, "non-default argument"},
		{"x = 1\n  y = 2\n", 2, "indent"},
		{"1 = x", 1, "cannot assign"},
		{"f(a=1, b)", 1, "positional argument follows keyword"},
		{"f'{}'", 1, "empty expression"},
		{"x = 3j", 1, ""},
		{"*a, *b = xs", 1, "multiple starred"},
		{"a, *1 = xs", 1, "cannot assign"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			_, err := Parse(tt.src, "bad.py")
			if err == nil {
				t.Fatalf("Parse(%q) expected error", tt.src)
			}
			var perr *Error
			if !errors.As(err, &perr) {
				t.Fatalf("error type = %T, want *Error", err)
			}
			if perr.Line != tt.wantLine {
				t.Errorf("Line = %d, want %d (%v)", perr.Line, tt.wantLine, err)
			}
			if perr.Filename != "bad.py" {
				t.Errorf("Filename = %q, want bad.py", perr.Filename)
			}
			if !strings.Contains(perr.Msg, tt.wantMsg) {
				t.Errorf("Msg = %q, want it to contain %q", perr.Msg, tt.wantMsg)
			}
		})
	}
}

func TestParseErrorFormat(t *testing.T) {
	perr := &Error{Msg: "invalid syntax", Filename: "hall.py", Line: 2, Col: 4}
	if got, want := perr.Error(), "SyntaxError: invalid syntax in hall.py line 2 column 4"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if perr.Kind() != SyntaxError {
		t.Errorf("Kind() = %q, want %q", perr.Kind(), SyntaxError)
	}

	_, err := Parse("x = 1\nif x\n    pass\n", "hall.py")
	if err == nil {
		t.Fatal("Parse() expected error")
	}
	if msg := err.Error(); !strings.HasPrefix(msg, "SyntaxError: ") || !strings.Contains(msg, "hall.py line 2 column ") {
		t.Errorf("Error() = %q, want SyntaxError with line and column", msg)
	}
}
