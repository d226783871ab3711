package eval

import (
	"time"

	"github.com/nerrad567/gray-logic-script/internal/script/ast"
)

// Value is any script value. Scalars use native Go types:
//
//	None  -> nil
//	bool  -> bool
//	int   -> int64
//	float -> float64
//	str   -> string
//
// Containers and callables use the types declared below.
type Value = any

// List is a mutable sequence. Lists are shared by reference.
type List struct {
	Elems []Value
}

// NewList returns a list holding elems.
func NewList(elems ...Value) *List {
	if elems == nil {
		elems = []Value{}
	}
	return &List{Elems: elems}
}

// Tuple is an immutable sequence.
type Tuple []Value

// Range is a lazy arithmetic progression as produced by range().
type Range struct {
	Start, Stop, Step int64
}

// Len returns the number of values in the range.
func (r *Range) Len() int64 {
	switch {
	case r.Step > 0 && r.Start < r.Stop:
		return (r.Stop - r.Start + r.Step - 1) / r.Step
	case r.Step < 0 && r.Start > r.Stop:
		return (r.Start - r.Stop - r.Step - 1) / -r.Step
	}
	return 0
}

// At returns the i-th value of the range without bounds checking.
func (r *Range) At(i int64) int64 { return r.Start + i*r.Step }

// Function is a user-defined function. Default values and decorator
// arguments are evaluated once, when the def statement runs.
type Function struct {
	Name       string
	Def        *ast.FunctionDef
	Defaults   []Value
	KwDefaults []kwDefault
	Decorators []Decorator
	Doc        string
	Globals    map[string]struct{}
	Nonlocals  map[string]struct{}
	Filename   string
}

type kwDefault struct {
	ok  bool
	val Value
}

// Decorator is one decorator applied to a function. Args is nil when the
// decorator was a bare name rather than a call.
type Decorator struct {
	Name string
	Args []Value
}

// PositionalArgs returns the names of the function's positional parameters.
func (f *Function) PositionalArgs() []string {
	return append([]string(nil), f.Def.Args.Args...)
}

// BuiltinFunc is the Go signature of a built-in or host function.
// kwargs may be nil when no keyword arguments were passed.
type BuiltinFunc func(c *Context, args []Value, kwargs *Dict) (Value, error)

// Builtin is a callable implemented in Go. When TypeName is set the builtin
// is also a type object, so type(1) == int and isinstance work. Attrs holds
// class-level attributes such as datetime.now.
type Builtin struct {
	Name     string
	Fn       BuiltinFunc
	TypeName string
	Attrs    map[string]Value
}

// Object is a namespace-like value: an imported module, a compiled regular
// expression or a match.
type Object struct {
	Kind  string
	Name  string
	Attrs map[string]Value
}

// DateTime is a point in time as used by the datetime module.
type DateTime struct {
	T time.Time
}

// TimeDelta is a duration as used by the datetime module.
type TimeDelta struct {
	D time.Duration
}

// Name is an identifier that has not resolved to anything. It exists only
// so dotted names can be reassembled before lookup fails.
type Name struct {
	ID string
}

// ResultKind tags the outcome of executing a statement.
type ResultKind uint8

// Result kinds.
const (
	Normal ResultKind = iota
	Break
	Continue
	Return
)

// Result is the outcome of executing a node. Statements other than
// expression statements produce Normal with a nil value.
type Result struct {
	Kind  ResultKind
	Value Value
}

// Iterate calls fn for every element of v. Lists are walked live, by index,
// so appending while iterating visits the new elements. Returning false from
// fn stops the walk.
func Iterate(v Value, fn func(Value) (bool, error)) error {
	switch v := v.(type) {
	case *List:
		for i := 0; i < len(v.Elems); i++ {
			if more, err := fn(v.Elems[i]); err != nil || !more {
				return err
			}
		}
	case Tuple:
		for _, e := range v {
			if more, err := fn(e); err != nil || !more {
				return err
			}
		}
	case string:
		for _, r := range v {
			if more, err := fn(string(r)); err != nil || !more {
				return err
			}
		}
	case *Dict:
		for _, k := range v.Keys() {
			if more, err := fn(k); err != nil || !more {
				return err
			}
		}
	case *Set:
		for _, k := range v.Items() {
			if more, err := fn(k); err != nil || !more {
				return err
			}
		}
	case *Range:
		n := v.Len()
		for i := int64(0); i < n; i++ {
			if more, err := fn(v.At(i)); err != nil || !more {
				return err
			}
		}
	default:
		return errorf(TypeError, "'%s' object is not iterable", TypeName(v))
	}
	return nil
}

// ToSlice materialises any iterable into a fresh slice.
func ToSlice(v Value) ([]Value, error) {
	switch v := v.(type) {
	case *List:
		return append([]Value(nil), v.Elems...), nil
	case Tuple:
		return append([]Value(nil), v...), nil
	}
	var out []Value
	err := Iterate(v, func(e Value) (bool, error) {
		out = append(out, e)
		return true, nil
	})
	return out, err
}

// Len returns the length of a sized value.
func Len(v Value) (int64, error) {
	switch v := v.(type) {
	case string:
		return int64(len([]rune(v))), nil
	case *List:
		return int64(len(v.Elems)), nil
	case Tuple:
		return int64(len(v)), nil
	case *Dict:
		return int64(v.Len()), nil
	case *Set:
		return int64(v.Len()), nil
	case *Range:
		return v.Len(), nil
	}
	return 0, errorf(TypeError, "object of type '%s' has no len()", TypeName(v))
}

// Truthy reports the truth value of v.
func Truthy(v Value) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case int64:
		return v != 0
	case float64:
		return v != 0
	case string:
		return v != ""
	case *List:
		return len(v.Elems) > 0
	case Tuple:
		return len(v) > 0
	case *Dict:
		return v.Len() > 0
	case *Set:
		return v.Len() > 0
	case *Range:
		return v.Len() > 0
	case TimeDelta:
		return v.D != 0
	}
	return true
}

// TypeName returns the script-visible type name of v.
func TypeName(v Value) string {
	switch v := v.(type) {
	case nil:
		return "NoneType"
	case bool:
		return "bool"
	case int64:
		return "int"
	case float64:
		return "float"
	case string:
		return "str"
	case *List:
		return "list"
	case Tuple:
		return "tuple"
	case *Dict:
		return "dict"
	case *Set:
		return "set"
	case *Range:
		return "range"
	case *Function:
		return "function"
	case *Builtin:
		if v.TypeName != "" {
			return "type"
		}
		return "builtin_function_or_method"
	case *Object:
		return v.Kind
	case DateTime:
		return "datetime"
	case TimeDelta:
		return "timedelta"
	case *Name:
		return "name"
	}
	return "object"
}
