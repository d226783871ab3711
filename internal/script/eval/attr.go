package eval

import (
	"time"
)

// method is a built-in method before it is bound to its receiver.
type method func(c *Context, recv Value, args []Value, kwargs *Dict) (Value, error)

// methods holds the built-in methods of each value type, keyed by type name.
var methods map[string]map[string]method

func init() {
	methods = map[string]map[string]method{
		"str":       strMethods,
		"list":      listMethods,
		"tuple":     tupleMethods,
		"dict":      dictMethods,
		"set":       setMethods,
		"datetime":  dateTimeMethods,
		"timedelta": timeDeltaMethods,
		"float": {
			"is_integer": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
				if err := arity("is_integer", args, 0, 0); err != nil {
					return nil, err
				}
				f := recv.(float64)
				return f == float64(int64(f)), nil
			},
		},
		"int": {
			"bit_length": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
				if err := arity("bit_length", args, 0, 0); err != nil {
					return nil, err
				}
				n := abs64(recv.(int64))
				l := int64(0)
				for ; n > 0; n >>= 1 {
					l++
				}
				return l, nil
			},
		},
	}
}

// GetAttr returns attribute name of v. Methods come back bound to v.
func GetAttr(v Value, name string) (Value, error) {
	switch o := v.(type) {
	case *Object:
		if a, ok := o.Attrs[name]; ok {
			return a, nil
		}
		return nil, errorf(AttributeError, "%s '%s' has no attribute '%s'", o.Kind, o.Name, name)
	case *Builtin:
		if a, ok := o.Attrs[name]; ok {
			return a, nil
		}
		if name == "__name__" {
			return o.Name, nil
		}
	case *Function:
		switch name {
		case "__name__":
			return o.Name, nil
		case "__doc__":
			if o.Doc == "" {
				return nil, nil
			}
			return o.Doc, nil
		}
	case DateTime:
		if a, ok := dateTimeField(o.T, name); ok {
			return a, nil
		}
	case TimeDelta:
		days, secs, usecs := tdParts(o)
		switch name {
		case "days":
			return days, nil
		case "seconds":
			return secs, nil
		case "microseconds":
			return usecs, nil
		}
	}

	if m, ok := methods[TypeName(v)][name]; ok {
		return &Builtin{Name: name, Fn: func(c *Context, args []Value, kwargs *Dict) (Value, error) {
			return m(c, v, args, kwargs)
		}}, nil
	}
	return nil, errorf(AttributeError, "'%s' object has no attribute '%s'", TypeName(v), name)
}

func dateTimeField(t time.Time, name string) (Value, bool) {
	switch name {
	case "year":
		return int64(t.Year()), true
	case "month":
		return int64(t.Month()), true
	case "day":
		return int64(t.Day()), true
	case "hour":
		return int64(t.Hour()), true
	case "minute":
		return int64(t.Minute()), true
	case "second":
		return int64(t.Second()), true
	case "microsecond":
		return int64(t.Nanosecond() / 1000), true
	}
	return nil, false
}

// arity checks the positional argument count of a built-in.
func arity(name string, args []Value, lo, hi int) error {
	switch {
	case hi >= 0 && len(args) > hi:
		if lo == hi {
			return errorf(TypeError, "%s() takes exactly %d argument(s) (%d given)", name, lo, len(args))
		}
		return errorf(TypeError, "%s() takes at most %d argument(s) (%d given)", name, hi, len(args))
	case len(args) < lo:
		if lo == hi {
			return errorf(TypeError, "%s() takes exactly %d argument(s) (%d given)", name, lo, len(args))
		}
		return errorf(TypeError, "%s() takes at least %d argument(s) (%d given)", name, lo, len(args))
	}
	return nil
}

// optArg returns positional argument i, or keyword name, or def.
func optArg(args []Value, i int, kwargs *Dict, name string, def Value) Value {
	if i < len(args) {
		return args[i]
	}
	if v, ok := kwargs.GetStr(name); ok {
		return v
	}
	return def
}

func intArg(fn string, v Value) (int64, error) {
	n, ok := toInt(v)
	if !ok {
		return 0, errorf(TypeError, "%s() argument must be int, not %s", fn, TypeName(v))
	}
	return n, nil
}

func strArg(fn string, v Value) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errorf(TypeError, "%s() argument must be str, not %s", fn, TypeName(v))
	}
	return s, nil
}
