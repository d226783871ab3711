package eval

import (
	"github.com/nerrad567/gray-logic-script/internal/script/ast"
)

// block runs statements in order, stopping at the first control-flow
// result. The result of the last statement is returned.
func (c *Context) block(body []ast.Stmt) (Result, error) {
	var r Result
	for _, s := range body {
		var err error
		if r, err = c.exec(s); err != nil {
			return Result{}, err
		}
		if r.Kind != Normal {
			return r, nil
		}
	}
	return r, nil
}

func execModule(c *Context, n ast.Node) (Result, error) {
	return c.block(n.(*ast.Module).Body)
}

func execExprStmt(c *Context, n ast.Node) (Result, error) {
	v, err := c.expr(n.(*ast.ExprStmt).Value)
	return Result{Value: v}, err
}

func execPass(*Context, ast.Node) (Result, error) { return Result{}, nil }

func execBreak(*Context, ast.Node) (Result, error) { return Result{Kind: Break}, nil }

func execContinue(*Context, ast.Node) (Result, error) { return Result{Kind: Continue}, nil }

func execReturn(c *Context, n ast.Node) (Result, error) {
	ret := n.(*ast.Return)
	if ret.Value == nil {
		return Result{Kind: Return}, nil
	}
	v, err := c.expr(ret.Value)
	if err != nil {
		return Result{}, err
	}
	return Result{Kind: Return, Value: v}, nil
}

func execUnsupported(_ *Context, n ast.Node) (Result, error) {
	return Result{}, errorf(NotImplementedError, "not implemented ast %s", n.(*ast.Unsupported).What)
}

func execIf(c *Context, n ast.Node) (Result, error) {
	s := n.(*ast.If)
	test, err := c.expr(s.Test)
	if err != nil {
		return Result{}, err
	}
	if Truthy(test) {
		return c.block(s.Body)
	}
	return c.block(s.Else)
}

func execWhile(c *Context, n ast.Node) (Result, error) {
	s := n.(*ast.While)
	for {
		if err := c.ctx.Err(); err != nil {
			return Result{}, err
		}
		test, err := c.expr(s.Test)
		if err != nil {
			return Result{}, err
		}
		if !Truthy(test) {
			break
		}
		r, err := c.block(s.Body)
		if err != nil {
			return Result{}, err
		}
		switch r.Kind {
		case Break:
			return Result{}, nil
		case Return:
			return r, nil
		}
	}
	return c.loopElse(s.Else)
}

func execFor(c *Context, n ast.Node) (Result, error) {
	s := n.(*ast.For)
	iter, err := c.expr(s.Iter)
	if err != nil {
		return Result{}, err
	}
	var (
		out    Result
		broken bool
	)
	err = Iterate(iter, func(v Value) (bool, error) {
		if err := c.ctx.Err(); err != nil {
			return false, err
		}
		if err := c.assign(s.Target, v); err != nil {
			return false, err
		}
		r, err := c.block(s.Body)
		if err != nil {
			return false, err
		}
		switch r.Kind {
		case Break:
			broken = true
			return false, nil
		case Return:
			out = r
			return false, nil
		}
		return true, nil
	})
	if err != nil || out.Kind == Return || broken {
		return out, err
	}
	return c.loopElse(s.Else)
}

// loopElse runs a loop's else clause. Only a return escapes it; break and
// continue there have no enclosing loop.
func (c *Context) loopElse(body []ast.Stmt) (Result, error) {
	r, err := c.block(body)
	if err != nil || r.Kind == Return {
		return r, err
	}
	return Result{}, nil
}

func execFunctionDef(c *Context, n ast.Node) (Result, error) {
	def := n.(*ast.FunctionDef)
	f := &Function{
		Name:     def.Name,
		Def:      def,
		Doc:      def.Doc,
		Filename: c.Filename,
	}
	f.Globals, f.Nonlocals = ast.DeclaredNames(def.Body)

	for _, d := range def.Args.Defaults {
		v, err := c.expr(d)
		if err != nil {
			return Result{}, err
		}
		f.Defaults = append(f.Defaults, v)
	}
	for _, d := range def.Args.KwDefaults {
		if d == nil {
			f.KwDefaults = append(f.KwDefaults, kwDefault{})
			continue
		}
		v, err := c.expr(d)
		if err != nil {
			return Result{}, err
		}
		f.KwDefaults = append(f.KwDefaults, kwDefault{ok: true, val: v})
	}

	for _, d := range def.Decorators {
		switch d := d.(type) {
		case *ast.Name:
			f.Decorators = append(f.Decorators, Decorator{Name: d.ID})
		case *ast.Call:
			name, ok := d.Func.(*ast.Name)
			if !ok {
				c.logger.Error("function has unexpected decorator type", "function", f.Name, "decorator", d.Kind().String())
				continue
			}
			args := []Value{}
			for _, a := range d.Args {
				v, err := c.expr(a)
				if err != nil {
					return Result{}, err
				}
				args = append(args, v)
			}
			f.Decorators = append(f.Decorators, Decorator{Name: name.ID, Args: args})
		default:
			c.logger.Error("function has unexpected decorator type", "function", f.Name, "decorator", d.Kind().String())
		}
	}

	c.sym.Set(f.Name, f)
	return Result{}, nil
}

func execImport(c *Context, n ast.Node) (Result, error) {
	for _, alias := range n.(*ast.Import).Names {
		mod, err := importModule(alias.Name)
		if err != nil {
			return Result{}, err
		}
		bind := alias.AsName
		if bind == "" {
			bind = alias.Name
		}
		c.sym.Set(bind, mod)
	}
	return Result{}, nil
}

func execImportFrom(c *Context, n ast.Node) (Result, error) {
	imp := n.(*ast.ImportFrom)
	mod, err := importModule(imp.Module)
	if err != nil {
		return Result{}, err
	}
	for _, alias := range imp.Names {
		v, ok := mod.Attrs[alias.Name]
		if !ok {
			return Result{}, errorf(ImportError, "cannot import name '%s' from '%s'", alias.Name, imp.Module)
		}
		bind := alias.AsName
		if bind == "" {
			bind = alias.Name
		}
		c.sym.Set(bind, v)
	}
	return Result{}, nil
}

func execAssign(c *Context, n ast.Node) (Result, error) {
	s := n.(*ast.Assign)
	v, err := c.expr(s.Value)
	if err != nil {
		return Result{}, err
	}
	for _, t := range s.Targets {
		if err := c.assign(t, v); err != nil {
			return Result{}, err
		}
	}
	return Result{}, nil
}

func execAugAssign(c *Context, n ast.Node) (Result, error) {
	s := n.(*ast.AugAssign)
	switch t := s.Target.(type) {
	case *ast.Name:
		cur, err := c.expr(t)
		if err != nil {
			return Result{}, err
		}
		v, err := c.augmented(s, cur)
		if err != nil {
			return Result{}, err
		}
		return Result{}, c.assignName(t.ID, v)

	case *ast.Attribute:
		full := ast.DottedName(t)
		if full == "" {
			return Result{}, errorf(NotImplementedError, "augmented assignment to an attribute of a computed value")
		}
		cur, err := c.expr(t)
		if err != nil {
			return Result{}, err
		}
		v, err := c.augmented(s, cur)
		if err != nil {
			return Result{}, err
		}
		return Result{}, c.host.StateSet(full, v, nil)

	case *ast.Subscript:
		container, err := c.expr(t.Value)
		if err != nil {
			return Result{}, err
		}
		if sl, ok := t.Index.(*ast.Slice); ok {
			lo, hi, st, err := c.sliceBounds(sl)
			if err != nil {
				return Result{}, err
			}
			cur, err := getSlice(container, lo, hi, st)
			if err != nil {
				return Result{}, err
			}
			v, err := c.augmented(s, cur)
			if err != nil {
				return Result{}, err
			}
			return Result{}, setSlice(container, lo, hi, st, v)
		}
		idx, err := c.expr(t.Index)
		if err != nil {
			return Result{}, err
		}
		cur, err := getItem(container, idx)
		if err != nil {
			return Result{}, err
		}
		v, err := c.augmented(s, cur)
		if err != nil {
			return Result{}, err
		}
		return Result{}, setItem(container, idx, v)
	}
	return Result{}, errorf(TypeError, "illegal expression for augmented assignment")
}

// augmented computes `cur op value`. A list on the left is extended in
// place, as `+=` does for mutable sequences.
func (c *Context) augmented(s *ast.AugAssign, cur Value) (Value, error) {
	rhs, err := c.expr(s.Value)
	if err != nil {
		return nil, err
	}
	if l, ok := cur.(*List); ok && s.Op == ast.Add {
		elems, err := ToSlice(rhs)
		if err != nil {
			return nil, err
		}
		l.Elems = append(l.Elems, elems...)
		return l, nil
	}
	return BinaryOp(s.Op, cur, rhs)
}

func execDelete(c *Context, n ast.Node) (Result, error) {
	for _, t := range n.(*ast.Delete).Targets {
		if err := c.deleteTarget(t); err != nil {
			return Result{}, err
		}
	}
	return Result{}, nil
}

func (c *Context) deleteTarget(t ast.Expr) error {
	switch t := t.(type) {
	case *ast.Subscript:
		container, err := c.expr(t.Value)
		if err != nil {
			return err
		}
		if sl, ok := t.Index.(*ast.Slice); ok {
			lo, hi, st, err := c.sliceBounds(sl)
			if err != nil {
				return err
			}
			return delSlice(container, lo, hi, st)
		}
		idx, err := c.expr(t.Index)
		if err != nil {
			return err
		}
		if keys, ok := idx.(*List); ok {
			for _, k := range append([]Value(nil), keys.Elems...) {
				if err := delItem(container, k); err != nil {
					return err
				}
			}
			return nil
		}
		return delItem(container, idx)

	case *ast.Name:
		name := t.ID
		switch {
		case c.declaredGlobal(name):
			c.globals.Delete(name)
			return nil
		case c.declaredNonlocal(name):
			for i := len(c.frames) - 1; i >= 0; i-- {
				if c.frames[i].Delete(name) {
					return nil
				}
			}
			return errorf(NameError, "nonlocal name '%s' is not defined", name)
		case c.sym.Delete(name):
			return nil
		}
		return errorf(NameError, "name '%s' is not defined in del", name)

	case *ast.Tuple:
		for _, e := range t.Elts {
			if err := c.deleteTarget(e); err != nil {
				return err
			}
		}
		return nil
	case *ast.List:
		for _, e := range t.Elts {
			if err := c.deleteTarget(e); err != nil {
				return err
			}
		}
		return nil
	}
	return errorf(NotImplementedError, "unknown target type %s in del", t.Kind())
}
