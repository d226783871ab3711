package eval

// call binds args and kwargs to the function's parameters and runs its body
// in a fresh local table. Keyword arguments that match no parameter are
// dropped unless the function collects them with **kwargs; trigger and
// service invocations rely on this to pass optional context.
func (f *Function) call(c *Context, args []Value, kwargs *Dict) (Value, error) {
	a := f.Def.Args
	local := NewSymTable()
	rest := NewDict()
	if kwargs != nil {
		rest = kwargs.Copy()
	}
	required := len(a.Args) - len(f.Defaults)

	for i, name := range a.Args {
		var val Value
		switch {
		case i < len(args):
			if _, dup := rest.GetStr(name); dup {
				return nil, errorf(TypeError, "%s() got multiple values for argument '%s'", f.Name, name)
			}
			val = args[i]
		case hasStr(rest, name):
			val, _ = rest.GetStr(name)
			_, _ = rest.Delete(name)
		case i >= required:
			val = f.Defaults[i-required]
		default:
			return nil, errorf(TypeError, "%s() missing %d required positional argument(s)", f.Name, required-i)
		}
		local.Set(name, val)
	}

	for i, name := range a.KwOnly {
		var val Value
		switch {
		case hasStr(rest, name):
			val, _ = rest.GetStr(name)
			_, _ = rest.Delete(name)
		case i < len(f.KwDefaults) && f.KwDefaults[i].ok:
			val = f.KwDefaults[i].val
		default:
			return nil, errorf(TypeError, "%s() missing required keyword-only argument '%s'", f.Name, name)
		}
		local.Set(name, val)
	}

	if a.Kwarg != "" {
		local.Set(a.Kwarg, rest)
	}
	switch {
	case a.Vararg != "":
		extra := Tuple{}
		if len(args) > len(a.Args) {
			extra = append(Tuple(nil), args[len(a.Args):]...)
		}
		local.Set(a.Vararg, extra)
	case len(args) > len(a.Args):
		return nil, errorf(TypeError, "%s() takes %d positional arguments but %d were given", f.Name, len(a.Args), len(args))
	}

	c.frames = append(c.frames, c.sym)
	prevSym, prevFn := c.sym, c.fn
	c.sym, c.fn = local, f
	defer func() {
		c.frames = c.frames[:len(c.frames)-1]
		c.sym, c.fn = prevSym, prevFn
	}()

	// Only return leaves a function body; a stray break or continue at
	// body level is ignored.
	for _, s := range f.Def.Body {
		r, err := c.exec(s)
		if err != nil {
			return nil, err
		}
		if r.Kind == Return {
			return r.Value, nil
		}
	}
	return nil, nil
}

func hasStr(d *Dict, key string) bool {
	_, ok := d.GetStr(key)
	return ok
}
