package eval

// Helpers for host functions defined outside this package. They raise the
// same TypeErrors as the built-ins.

// CheckArity fails unless lo <= len(args) <= hi. A negative hi means no
// upper bound.
func CheckArity(name string, args []Value, lo, hi int) error {
	return arity(name, args, lo, hi)
}

// Arg returns positional argument i, else keyword name, else def.
func Arg(args []Value, i int, kwargs *Dict, name string, def Value) Value {
	return optArg(args, i, kwargs, name, def)
}

// StringArg asserts that v is a str.
func StringArg(fn string, v Value) (string, error) {
	return strArg(fn, v)
}

// FloatArg converts an int or float argument to float64.
func FloatArg(fn string, v Value) (float64, error) {
	return floatArg(fn, v)
}
