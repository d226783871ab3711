package eval

import (
	"strings"

	"github.com/nerrad567/gray-logic-script/internal/script/ast"
)

func (c *Context) declaredGlobal(name string) bool {
	if c.fn == nil {
		return false
	}
	_, ok := c.fn.Globals[name]
	return ok
}

func (c *Context) declaredNonlocal(name string) bool {
	if c.fn == nil {
		return false
	}
	_, ok := c.fn.Nonlocals[name]
	return ok
}

// lookup resolves a name for reading. Names that resolve nowhere come back
// as a *Name placeholder so dotted attribute chains can be reassembled.
func (c *Context) lookup(name string) (Value, error) {
	if c.declaredGlobal(name) {
		if v, ok := c.globals.Get(name); ok {
			return v, nil
		}
		return nil, errorf(NameError, "global name '%s' is not defined", name)
	}
	if c.declaredNonlocal(name) {
		for i := len(c.frames) - 1; i >= 0; i-- {
			if v, ok := c.frames[i].Get(name); ok {
				return v, nil
			}
		}
		return nil, errorf(NameError, "nonlocal name '%s' is not defined", name)
	}

	if v, ok := c.sym.Get(name); ok {
		return v, nil
	}
	if v, ok := c.locals.Get(name); ok {
		return v, nil
	}
	if v, ok := c.globals.Get(name); ok {
		return v, nil
	}
	if v, ok := builtins[name]; ok {
		return v, nil
	}
	if v, ok := c.host.Lookup(name); ok {
		return v, nil
	}
	if v, ok := c.host.StateGet(name); ok {
		return v, nil
	}
	return &Name{ID: name}, nil
}

// assignName binds a plain name, honouring global and nonlocal
// declarations. Dotted names are state variables and write through to the
// host.
func (c *Context) assignName(name string, v Value) error {
	if strings.Contains(name, ".") {
		return c.host.StateSet(name, v, nil)
	}
	switch {
	case c.declaredGlobal(name):
		c.globals.Set(name, v)
	case c.declaredNonlocal(name):
		for i := len(c.frames) - 1; i >= 0; i-- {
			if c.frames[i].Has(name) {
				c.frames[i].Set(name, v)
				return nil
			}
		}
		return errorf(NameError, "no binding for nonlocal '%s' found", name)
	default:
		c.sym.Set(name, v)
	}
	return nil
}

// assign stores v into an assignment target.
func (c *Context) assign(target ast.Expr, v Value) error {
	switch t := target.(type) {
	case *ast.Name:
		return c.assignName(t.ID, v)

	case *ast.Attribute:
		full := ast.DottedName(t)
		if full == "" {
			return errorf(NotImplementedError, "assignment to an attribute of a computed value")
		}
		return c.host.StateSet(full, v, nil)

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
			return setSlice(container, lo, hi, st, v)
		}
		idx, err := c.expr(t.Index)
		if err != nil {
			return err
		}
		return setItem(container, idx, v)

	case *ast.Tuple:
		return c.unpack(t.Elts, v)
	case *ast.List:
		return c.unpack(t.Elts, v)
	}
	return errorf(TypeError, "cannot assign to %s", target.Kind())
}

// unpack distributes an iterable across targets, with at most one starred
// target collecting the surplus into a list.
func (c *Context) unpack(targets []ast.Expr, v Value) error {
	vals, err := ToSlice(v)
	if err != nil {
		return errorf(TypeError, "cannot unpack non-iterable %s object", TypeName(v))
	}
	star := -1
	for i, t := range targets {
		if _, ok := t.(*ast.Starred); ok {
			if star >= 0 {
				return errorf(SyntaxError, "multiple starred expressions in assignment")
			}
			star = i
		}
	}
	if star < 0 {
		switch {
		case len(vals) > len(targets):
			return errorf(ValueError, "too many values to unpack (expected %d)", len(targets))
		case len(vals) < len(targets):
			return errorf(ValueError, "not enough values to unpack (expected %d, got %d)", len(targets), len(vals))
		}
		for i, t := range targets {
			if err := c.assign(t, vals[i]); err != nil {
				return err
			}
		}
		return nil
	}

	after := len(targets) - star - 1
	if len(vals) < len(targets)-1 {
		return errorf(ValueError, "not enough values to unpack (expected at least %d, got %d)", len(targets)-1, len(vals))
	}
	for i := 0; i < star; i++ {
		if err := c.assign(targets[i], vals[i]); err != nil {
			return err
		}
	}
	rest := NewList(append([]Value(nil), vals[star:len(vals)-after]...)...)
	if err := c.assign(targets[star].(*ast.Starred).Value, rest); err != nil {
		return err
	}
	for i := 0; i < after; i++ {
		if err := c.assign(targets[star+1+i], vals[len(vals)-after+i]); err != nil {
			return err
		}
	}
	return nil
}
