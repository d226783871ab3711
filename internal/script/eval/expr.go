package eval

import (
	"strings"

	"github.com/nerrad567/gray-logic-script/internal/script/ast"
)

func evalName(c *Context, n ast.Node) (Result, error) {
	v, err := c.lookup(n.(*ast.Name).ID)
	return Result{Value: v}, err
}

// evalAttribute first treats a chain of names as one dotted name, which is
// how state variables and host functions are addressed. When that does not
// resolve, the prefix is evaluated and the attribute applied to it.
func evalAttribute(c *Context, n ast.Node) (Result, error) {
	a := n.(*ast.Attribute)
	if full := ast.DottedName(a); full != "" {
		v, err := c.lookup(full)
		if err != nil {
			return Result{}, err
		}
		if _, unresolved := v.(*Name); !unresolved {
			return Result{Value: v}, nil
		}
	}
	base, err := c.exprRaw(a.Value)
	if err != nil {
		return Result{}, err
	}
	if name, ok := base.(*Name); ok {
		return Result{Value: &Name{ID: name.ID + "." + a.Attr}}, nil
	}
	v, err := GetAttr(base, a.Attr)
	return Result{Value: v}, err
}

func evalConstant(_ *Context, n ast.Node) (Result, error) {
	return Result{Value: n.(*ast.Constant).Value}, nil
}

func evalBinOp(c *Context, n ast.Node) (Result, error) {
	b := n.(*ast.BinOp)
	left, err := c.expr(b.Left)
	if err != nil {
		return Result{}, err
	}
	right, err := c.expr(b.Right)
	if err != nil {
		return Result{}, err
	}
	v, err := BinaryOp(b.Op, left, right)
	return Result{Value: v}, err
}

func evalUnaryOp(c *Context, n ast.Node) (Result, error) {
	u := n.(*ast.UnaryOp)
	operand, err := c.expr(u.Operand)
	if err != nil {
		return Result{}, err
	}
	v, err := UnaryOp(u.Op, operand)
	return Result{Value: v}, err
}

// evalBoolOp short-circuits and yields the deciding operand itself.
func evalBoolOp(c *Context, n ast.Node) (Result, error) {
	b := n.(*ast.BoolOp)
	var v Value
	for _, e := range b.Values {
		var err error
		if v, err = c.expr(e); err != nil {
			return Result{}, err
		}
		if Truthy(v) == (b.Op == ast.Or) {
			break
		}
	}
	return Result{Value: v}, nil
}

// evalCompare evaluates a comparison chain, each operand at most once.
func evalCompare(c *Context, n ast.Node) (Result, error) {
	cmp := n.(*ast.Compare)
	left, err := c.expr(cmp.Left)
	if err != nil {
		return Result{}, err
	}
	for i, op := range cmp.Ops {
		right, err := c.expr(cmp.Comparators[i])
		if err != nil {
			return Result{}, err
		}
		ok, err := CompareOp(op, left, right)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			return Result{Value: false}, nil
		}
		left = right
	}
	return Result{Value: true}, nil
}

func evalIfExp(c *Context, n ast.Node) (Result, error) {
	e := n.(*ast.IfExp)
	test, err := c.expr(e.Test)
	if err != nil {
		return Result{}, err
	}
	branch := e.OrElse
	if Truthy(test) {
		branch = e.Body
	}
	v, err := c.expr(branch)
	return Result{Value: v}, err
}

func evalStarred(_ *Context, _ ast.Node) (Result, error) {
	return Result{}, errorf(SyntaxError, "can't use starred expression here")
}

func evalSlice(_ *Context, _ ast.Node) (Result, error) {
	return Result{}, errorf(SyntaxError, "slice outside of subscript")
}

// elements evaluates display elements, expanding starred items.
func (c *Context) elements(elts []ast.Expr) ([]Value, error) {
	out := make([]Value, 0, len(elts))
	for _, e := range elts {
		if s, ok := e.(*ast.Starred); ok {
			v, err := c.expr(s.Value)
			if err != nil {
				return nil, err
			}
			items, err := ToSlice(v)
			if err != nil {
				return nil, err
			}
			out = append(out, items...)
			continue
		}
		v, err := c.expr(e)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func evalList(c *Context, n ast.Node) (Result, error) {
	vals, err := c.elements(n.(*ast.List).Elts)
	if err != nil {
		return Result{}, err
	}
	return Result{Value: NewList(vals...)}, nil
}

func evalTuple(c *Context, n ast.Node) (Result, error) {
	vals, err := c.elements(n.(*ast.Tuple).Elts)
	if err != nil {
		return Result{}, err
	}
	return Result{Value: Tuple(vals)}, nil
}

func evalSet(c *Context, n ast.Node) (Result, error) {
	vals, err := c.elements(n.(*ast.Set).Elts)
	if err != nil {
		return Result{}, err
	}
	s, err := NewSet(vals...)
	return Result{Value: s}, err
}

func evalDict(c *Context, n ast.Node) (Result, error) {
	d := n.(*ast.Dict)
	out := NewDict()
	for i, ke := range d.Keys {
		v, err := c.expr(d.Values[i])
		if err != nil {
			return Result{}, err
		}
		if ke == nil {
			src, ok := v.(*Dict)
			if !ok {
				return Result{}, errorf(TypeError, "'%s' object is not a mapping", TypeName(v))
			}
			src.Items(func(k, val Value) bool {
				err = out.Set(k, val)
				return err == nil
			})
			if err != nil {
				return Result{}, err
			}
			continue
		}
		k, err := c.expr(ke)
		if err != nil {
			return Result{}, err
		}
		if err := out.Set(k, v); err != nil {
			return Result{}, err
		}
	}
	return Result{Value: out}, nil
}

func evalJoinedStr(c *Context, n ast.Node) (Result, error) {
	var b strings.Builder
	for _, part := range n.(*ast.JoinedStr).Values {
		v, err := c.expr(part)
		if err != nil {
			return Result{}, err
		}
		b.WriteString(Str(v))
	}
	return Result{Value: b.String()}, nil
}

func evalFormattedValue(c *Context, n ast.Node) (Result, error) {
	f := n.(*ast.FormattedValue)
	v, err := c.expr(f.Value)
	if err != nil {
		return Result{}, err
	}
	switch f.Conversion {
	case 'r', 'a':
		v = Repr(v)
	case 's':
		v = Str(v)
	}
	spec := ""
	if f.FormatSpec != nil {
		sv, err := c.expr(f.FormatSpec)
		if err != nil {
			return Result{}, err
		}
		spec = Str(sv)
	}
	s, err := FormatValue(v, spec)
	return Result{Value: s}, err
}

func evalSubscript(c *Context, n ast.Node) (Result, error) {
	s := n.(*ast.Subscript)
	container, err := c.expr(s.Value)
	if err != nil {
		return Result{}, err
	}
	if sl, ok := s.Index.(*ast.Slice); ok {
		lo, hi, st, err := c.sliceBounds(sl)
		if err != nil {
			return Result{}, err
		}
		v, err := getSlice(container, lo, hi, st)
		return Result{Value: v}, err
	}
	idx, err := c.expr(s.Index)
	if err != nil {
		return Result{}, err
	}
	v, err := getItem(container, idx)
	return Result{Value: v}, err
}

// sliceBounds evaluates the three optional slice bounds; absent or None
// bounds come back as nil.
func (c *Context) sliceBounds(sl *ast.Slice) (lo, hi, st Value, err error) {
	eval := func(e ast.Expr) (Value, error) {
		if e == nil {
			return nil, nil
		}
		return c.expr(e)
	}
	if lo, err = eval(sl.Lower); err != nil {
		return
	}
	if hi, err = eval(sl.Upper); err != nil {
		return
	}
	st, err = eval(sl.Step)
	return
}

func evalCall(c *Context, n ast.Node) (Result, error) {
	call := n.(*ast.Call)
	fn, err := c.exprRaw(call.Func)
	if err != nil {
		return Result{}, err
	}
	if name, ok := fn.(*Name); ok {
		return Result{}, c.nameError(name.ID)
	}

	args, err := c.elements(call.Args)
	if err != nil {
		return Result{}, err
	}
	var kwargs *Dict
	if len(call.Keywords) > 0 {
		kwargs = NewDict()
		for _, kw := range call.Keywords {
			v, err := c.expr(kw.Value)
			if err != nil {
				return Result{}, err
			}
			if kw.Name != "" {
				kwargs.SetStr(kw.Name, v)
				continue
			}
			d, ok := v.(*Dict)
			if !ok {
				return Result{}, errorf(TypeError, "argument after ** must be a mapping, not %s", TypeName(v))
			}
			for _, k := range d.Keys() {
				ks, ok := k.(string)
				if !ok {
					return Result{}, errorf(TypeError, "keywords must be strings")
				}
				val, _ := d.GetStr(ks)
				kwargs.SetStr(ks, val)
			}
		}
	}
	v, err := c.Call(fn, args, kwargs)
	return Result{Value: v}, err
}
