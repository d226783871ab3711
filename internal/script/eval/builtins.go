package eval

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/bits"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/nerrad567/gray-logic-script/internal/script/ast"
)

// builtins are the global functions every script can call. File and
// process access is deliberately absent.
var builtins map[string]Value

// typeObjects maps a type name to its type object. Types that cannot be
// constructed from script code still get one so type(x) works for them.
var typeObjects map[string]*Builtin

func init() {
	fns := map[string]BuiltinFunc{
		"abs":        builtinAbs,
		"all":        builtinAll,
		"any":        builtinAny,
		"ascii":      builtinASCII,
		"bin":        radix("bin", 2, "0b"),
		"callable":   builtinCallable,
		"chr":        builtinChr,
		"divmod":     builtinDivmod,
		"enumerate":  builtinEnumerate,
		"filter":     builtinFilter,
		"format":     builtinFormat,
		"hash":       builtinHash,
		"hex":        radix("hex", 16, "0x"),
		"isinstance": builtinIsinstance,
		"len":        builtinLen,
		"map":        builtinMap,
		"max":        extremum("max", 1),
		"min":        extremum("min", -1),
		"oct":        radix("oct", 8, "0o"),
		"ord":        builtinOrd,
		"pow":        builtinPow,
		"print":      builtinPrint,
		"repr":       builtinRepr,
		"reversed":   builtinReversed,
		"round":      builtinRound,
		"sorted":     builtinSorted,
		"sum":        builtinSum,
		"type":       builtinType,
		"zip":        builtinZip,
	}
	ctors := map[string]BuiltinFunc{
		"bool":  builtinBool,
		"int":   builtinInt,
		"float": builtinFloat,
		"str":   builtinStr,
		"list":  builtinList,
		"tuple": builtinTuple,
		"dict":  builtinDict,
		"set":   builtinSet,
		"range": builtinRange,
	}

	builtins = make(map[string]Value, len(fns)+len(ctors))
	typeObjects = make(map[string]*Builtin)
	for name, fn := range fns {
		builtins[name] = &Builtin{Name: name, Fn: fn}
	}
	for name, fn := range ctors {
		t := &Builtin{Name: name, Fn: fn, TypeName: name}
		builtins[name] = t
		typeObjects[name] = t
	}
	for _, name := range []string{"NoneType", "function", "builtin_function_or_method", "type", "module"} {
		typeObjects[name] = &Builtin{Name: name, TypeName: name}
	}
	typeObjects["datetime"] = newDateTimeType()
	typeObjects["timedelta"] = newTimeDeltaType()
}

// typeOf returns the type object of v.
func typeOf(v Value) *Builtin {
	name := TypeName(v)
	if t, ok := typeObjects[name]; ok {
		return t
	}
	return &Builtin{Name: name, TypeName: name}
}

func builtinAbs(_ *Context, args []Value, _ *Dict) (Value, error) {
	if err := arity("abs", args, 1, 1); err != nil {
		return nil, err
	}
	switch v := args[0].(type) {
	case bool:
		return btoi(v), nil
	case int64:
		if v == math.MinInt64 {
			return nil, errorf(OverflowError, "integer overflow")
		}
		return abs64(v), nil
	case float64:
		return math.Abs(v), nil
	case TimeDelta:
		if v.D < 0 {
			return TimeDelta{D: -v.D}, nil
		}
		return v, nil
	}
	return nil, errorf(TypeError, "bad operand type for abs(): '%s'", TypeName(args[0]))
}

func builtinAll(_ *Context, args []Value, _ *Dict) (Value, error) {
	if err := arity("all", args, 1, 1); err != nil {
		return nil, err
	}
	out := true
	err := Iterate(args[0], func(v Value) (bool, error) {
		out = Truthy(v)
		return out, nil
	})
	return out, err
}

func builtinAny(_ *Context, args []Value, _ *Dict) (Value, error) {
	if err := arity("any", args, 1, 1); err != nil {
		return nil, err
	}
	out := false
	err := Iterate(args[0], func(v Value) (bool, error) {
		out = Truthy(v)
		return !out, nil
	})
	return out, err
}

func builtinASCII(_ *Context, args []Value, _ *Dict) (Value, error) {
	if err := arity("ascii", args, 1, 1); err != nil {
		return nil, err
	}
	var b strings.Builder
	for _, r := range Repr(args[0]) {
		switch {
		case r < utf8.RuneSelf:
			b.WriteRune(r)
		case r <= 0xff:
			fmt.Fprintf(&b, "\\x%02x", r)
		case r <= 0xffff:
			fmt.Fprintf(&b, "\\u%04x", r)
		default:
			fmt.Fprintf(&b, "\\U%08x", r)
		}
	}
	return b.String(), nil
}

func radix(name string, base int, prefix string) BuiltinFunc {
	return func(_ *Context, args []Value, _ *Dict) (Value, error) {
		if err := arity(name, args, 1, 1); err != nil {
			return nil, err
		}
		n, ok := toInt(args[0])
		if !ok {
			return nil, errorf(TypeError, "'%s' object cannot be interpreted as an integer", TypeName(args[0]))
		}
		if n < 0 {
			return "-" + prefix + strconv.FormatUint(uint64(-n), base), nil
		}
		return prefix + strconv.FormatInt(n, base), nil
	}
}

func builtinCallable(_ *Context, args []Value, _ *Dict) (Value, error) {
	if err := arity("callable", args, 1, 1); err != nil {
		return nil, err
	}
	switch f := args[0].(type) {
	case *Function:
		return true, nil
	case *Builtin:
		return f.Fn != nil, nil
	}
	return false, nil
}

func builtinChr(_ *Context, args []Value, _ *Dict) (Value, error) {
	if err := arity("chr", args, 1, 1); err != nil {
		return nil, err
	}
	n, err := intArg("chr", args[0])
	if err != nil {
		return nil, err
	}
	if n < 0 || n > utf8.MaxRune {
		return nil, errorf(ValueError, "chr() arg not in range(0x110000)")
	}
	return string(rune(n)), nil
}

func builtinOrd(_ *Context, args []Value, _ *Dict) (Value, error) {
	if err := arity("ord", args, 1, 1); err != nil {
		return nil, err
	}
	s, err := strArg("ord", args[0])
	if err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(s) != 1 {
		return nil, errorf(TypeError, "ord() expected a character, but string of length %d found", utf8.RuneCountInString(s))
	}
	r, _ := utf8.DecodeRuneInString(s)
	return int64(r), nil
}

func builtinDivmod(_ *Context, args []Value, _ *Dict) (Value, error) {
	if err := arity("divmod", args, 2, 2); err != nil {
		return nil, err
	}
	q, err := BinaryOp(ast.FloorDiv, args[0], args[1])
	if err != nil {
		return nil, err
	}
	r, err := BinaryOp(ast.Mod, args[0], args[1])
	if err != nil {
		return nil, err
	}
	return Tuple{q, r}, nil
}

func builtinEnumerate(_ *Context, args []Value, kwargs *Dict) (Value, error) {
	if err := arity("enumerate", args, 1, 2); err != nil {
		return nil, err
	}
	start, err := intArg("enumerate", optArg(args, 1, kwargs, "start", int64(0)))
	if err != nil {
		return nil, err
	}
	var out []Value
	err = Iterate(args[0], func(v Value) (bool, error) {
		out = append(out, Tuple{start, v})
		start++
		return true, nil
	})
	return NewList(out...), err
}

func builtinFilter(c *Context, args []Value, _ *Dict) (Value, error) {
	if err := arity("filter", args, 2, 2); err != nil {
		return nil, err
	}
	var out []Value
	err := Iterate(args[1], func(v Value) (bool, error) {
		keep := v
		if args[0] != nil {
			r, err := c.Call(args[0], []Value{v}, nil)
			if err != nil {
				return false, err
			}
			keep = r
		}
		if Truthy(keep) {
			out = append(out, v)
		}
		return true, nil
	})
	return NewList(out...), err
}

func builtinMap(c *Context, args []Value, _ *Dict) (Value, error) {
	if len(args) < 2 {
		return nil, errorf(TypeError, "map() must have at least two arguments.")
	}
	cols, err := columns(args[1:])
	if err != nil {
		return nil, err
	}
	out := make([]Value, 0, len(cols))
	for _, row := range cols {
		v, err := c.Call(args[0], row, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return NewList(out...), nil
}

func builtinZip(_ *Context, args []Value, _ *Dict) (Value, error) {
	cols, err := columns(args)
	if err != nil {
		return nil, err
	}
	out := make([]Value, len(cols))
	for i, row := range cols {
		out[i] = Tuple(row)
	}
	return NewList(out...), nil
}

// columns transposes iterables into rows, stopping at the shortest.
func columns(iters []Value) ([][]Value, error) {
	if len(iters) == 0 {
		return nil, nil
	}
	seqs := make([][]Value, len(iters))
	n := math.MaxInt
	for i, it := range iters {
		s, err := ToSlice(it)
		if err != nil {
			return nil, err
		}
		seqs[i] = s
		n = min(n, len(s))
	}
	rows := make([][]Value, n)
	for r := range rows {
		row := make([]Value, len(seqs))
		for i, s := range seqs {
			row[i] = s[r]
		}
		rows[r] = row
	}
	return rows, nil
}

func builtinFormat(_ *Context, args []Value, _ *Dict) (Value, error) {
	if err := arity("format", args, 1, 2); err != nil {
		return nil, err
	}
	spec := ""
	if len(args) == 2 {
		s, err := strArg("format", args[1])
		if err != nil {
			return nil, err
		}
		spec = s
	}
	return FormatValue(args[0], spec)
}

func builtinHash(_ *Context, args []Value, _ *Dict) (Value, error) {
	if err := arity("hash", args, 1, 1); err != nil {
		return nil, err
	}
	if n, ok := toInt(args[0]); ok {
		return n, nil
	}
	k, err := hashKey(args[0])
	if err != nil {
		return nil, err
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(k))
	return int64(h.Sum64() >> 1), nil
}

func builtinIsinstance(_ *Context, args []Value, _ *Dict) (Value, error) {
	if err := arity("isinstance", args, 2, 2); err != nil {
		return nil, err
	}
	var types []Value
	switch t := args[1].(type) {
	case Tuple:
		types = t
	default:
		types = []Value{t}
	}
	have := TypeName(args[0])
	for _, t := range types {
		tb, ok := t.(*Builtin)
		if !ok || tb.TypeName == "" {
			return nil, errorf(TypeError, "isinstance() arg 2 must be a type or tuple of types")
		}
		if tb.TypeName == have || (have == "bool" && tb.TypeName == "int") {
			return true, nil
		}
	}
	return false, nil
}

func builtinLen(_ *Context, args []Value, _ *Dict) (Value, error) {
	if err := arity("len", args, 1, 1); err != nil {
		return nil, err
	}
	return Len(args[0])
}

// extremum implements max (sign 1) and min (sign -1).
func extremum(name string, sign int) BuiltinFunc {
	return func(c *Context, args []Value, kwargs *Dict) (Value, error) {
		if len(args) == 0 {
			return nil, errorf(TypeError, "%s expected at least 1 argument, got 0", name)
		}
		items := args
		if len(args) == 1 {
			var err error
			if items, err = ToSlice(args[0]); err != nil {
				return nil, err
			}
		}
		if len(items) == 0 {
			if def, ok := kwargs.GetStr("default"); ok {
				return def, nil
			}
			return nil, errorf(ValueError, "%s() arg is an empty sequence", name)
		}
		key, _ := kwargs.GetStr("key")
		var best, bestKey Value
		for i, v := range items {
			k := v
			if key != nil {
				var err error
				if k, err = c.Call(key, []Value{v}, nil); err != nil {
					return nil, err
				}
			}
			if i == 0 {
				best, bestKey = v, k
				continue
			}
			sym := "<"
			if sign > 0 {
				sym = ">"
			}
			r, err := compare(k, bestKey, sym)
			if err != nil {
				return nil, err
			}
			if r == sign {
				best, bestKey = v, k
			}
		}
		return best, nil
	}
}

func builtinPow(_ *Context, args []Value, _ *Dict) (Value, error) {
	if err := arity("pow", args, 2, 3); err != nil {
		return nil, err
	}
	if len(args) == 2 || args[2] == nil {
		return BinaryOp(ast.Pow, args[0], args[1])
	}
	base, ok1 := toInt(args[0])
	exp, ok2 := toInt(args[1])
	mod, ok3 := toInt(args[2])
	if !ok1 || !ok2 || !ok3 {
		return nil, errorf(TypeError, "pow() 3rd argument not allowed unless all arguments are integers")
	}
	if mod == 0 {
		return nil, errorf(ValueError, "pow() 3rd argument cannot be 0")
	}
	if exp < 0 {
		return nil, errorf(ValueError, "pow() 2nd argument cannot be negative when 3rd argument specified")
	}
	m := uint64(abs64(mod))
	b := uint64((base%int64(m) + int64(m)) % int64(m))
	r := uint64(1) % m
	for ; exp > 0; exp >>= 1 {
		if exp&1 == 1 {
			r = mulMod(r, b, m)
		}
		b = mulMod(b, b, m)
	}
	result := int64(r)
	if mod < 0 && result != 0 {
		result += mod
	}
	return result, nil
}

func mulMod(a, b, m uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	return bits.Rem64(hi, lo, m)
}

func builtinPrint(c *Context, args []Value, kwargs *Dict) (Value, error) {
	sep := " "
	if v, ok := kwargs.GetStr("sep"); ok && v != nil {
		sep = Str(v)
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = Str(a)
	}
	c.logger.Info(strings.Join(parts, sep), "context", c.Name)
	return nil, nil
}

func builtinRepr(_ *Context, args []Value, _ *Dict) (Value, error) {
	if err := arity("repr", args, 1, 1); err != nil {
		return nil, err
	}
	return Repr(args[0]), nil
}

func builtinReversed(_ *Context, args []Value, _ *Dict) (Value, error) {
	if err := arity("reversed", args, 1, 1); err != nil {
		return nil, err
	}
	switch args[0].(type) {
	case *Dict, *Set:
		return nil, errorf(TypeError, "'%s' object is not reversible", TypeName(args[0]))
	}
	items, err := ToSlice(args[0])
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return NewList(items...), nil
}

// builtinRound rounds half to even, as Python does.
func builtinRound(_ *Context, args []Value, kwargs *Dict) (Value, error) {
	if err := arity("round", args, 1, 2); err != nil {
		return nil, err
	}
	nd := optArg(args, 1, kwargs, "ndigits", nil)
	switch v := args[0].(type) {
	case int64, bool:
		n, _ := toInt(v)
		if nd == nil {
			return n, nil
		}
		d, err := intArg("round", nd)
		if err != nil {
			return nil, err
		}
		if d >= 0 {
			return n, nil
		}
		scale := math.Pow(10, float64(-d))
		return int64(math.RoundToEven(float64(n)/scale) * scale), nil
	case float64:
		if nd == nil {
			if math.IsInf(v, 0) || math.IsNaN(v) {
				return nil, errorf(OverflowError, "cannot convert float infinity or NaN to integer")
			}
			return int64(math.RoundToEven(v)), nil
		}
		d, err := intArg("round", nd)
		if err != nil {
			return nil, err
		}
		// Round through the decimal representation so round(2.675, 2)
		// matches the stored binary value.
		s := strconv.FormatFloat(v, 'f', int(max(d, 0)), 64)
		if d < 0 {
			scale := math.Pow(10, float64(-d))
			return math.RoundToEven(v/scale) * scale, nil
		}
		f, _ := strconv.ParseFloat(s, 64)
		return f, nil
	}
	return nil, errorf(TypeError, "type %s doesn't define __round__ method", TypeName(args[0]))
}

func builtinSorted(c *Context, args []Value, kwargs *Dict) (Value, error) {
	if err := arity("sorted", args, 1, 1); err != nil {
		return nil, err
	}
	items, err := ToSlice(args[0])
	if err != nil {
		return nil, err
	}
	key, _ := kwargs.GetStr("key")
	rev, _ := kwargs.GetStr("reverse")
	if err := sortValues(c, items, key, Truthy(rev)); err != nil {
		return nil, err
	}
	return NewList(items...), nil
}

func builtinSum(_ *Context, args []Value, kwargs *Dict) (Value, error) {
	if err := arity("sum", args, 1, 2); err != nil {
		return nil, err
	}
	total := optArg(args, 1, kwargs, "start", int64(0))
	if _, ok := total.(string); ok {
		return nil, errorf(TypeError, "sum() can't sum strings [use ''.join(seq) instead]")
	}
	err := Iterate(args[0], func(v Value) (bool, error) {
		var err error
		total, err = BinaryOp(ast.Add, total, v)
		return err == nil, err
	})
	return total, err
}

func builtinType(_ *Context, args []Value, _ *Dict) (Value, error) {
	if err := arity("type", args, 1, 1); err != nil {
		return nil, err
	}
	return typeOf(args[0]), nil
}

// ─── type constructors ──────────────────────────────────────────────────────

func builtinBool(_ *Context, args []Value, _ *Dict) (Value, error) {
	if err := arity("bool", args, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return false, nil
	}
	return Truthy(args[0]), nil
}

func builtinInt(_ *Context, args []Value, kwargs *Dict) (Value, error) {
	if err := arity("int", args, 0, 2); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return int64(0), nil
	}
	baseV := optArg(args, 1, kwargs, "base", nil)
	switch v := args[0].(type) {
	case bool:
		return btoi(v), nil
	case int64:
		return v, nil
	case float64:
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return nil, errorf(ValueError, "cannot convert float %s to integer", FormatFloat(v))
		}
		if v >= math.MaxInt64 || v < math.MinInt64 {
			return nil, errorf(OverflowError, "int too large to convert")
		}
		return int64(v), nil
	case string:
		base := int64(10)
		if baseV != nil {
			b, err := intArg("int", baseV)
			if err != nil {
				return nil, err
			}
			base = b
		}
		s := strings.ReplaceAll(strings.TrimSpace(v), "_", "")
		n, err := strconv.ParseInt(s, int(base), 64)
		if err != nil {
			if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
				return nil, errorf(OverflowError, "int too large to convert")
			}
			return nil, errorf(ValueError, "invalid literal for int() with base %d: %s", base, quote(v))
		}
		return n, nil
	}
	return nil, errorf(TypeError, "int() argument must be a string or a number, not '%s'", TypeName(args[0]))
}

func builtinFloat(_ *Context, args []Value, _ *Dict) (Value, error) {
	if err := arity("float", args, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return 0.0, nil
	}
	if f, ok := toFloat(args[0]); ok {
		return f, nil
	}
	s, ok := args[0].(string)
	if !ok {
		return nil, errorf(TypeError, "float() argument must be a string or a number, not '%s'", TypeName(args[0]))
	}
	t := strings.ToLower(strings.TrimSpace(s))
	switch strings.TrimLeft(t, "+-") {
	case "inf", "infinity":
		if strings.HasPrefix(t, "-") {
			return math.Inf(-1), nil
		}
		return math.Inf(1), nil
	case "nan":
		return math.NaN(), nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(t, "_", ""), 64)
	if err != nil {
		return nil, errorf(ValueError, "could not convert string to float: %s", quote(s))
	}
	return f, nil
}

func builtinStr(_ *Context, args []Value, _ *Dict) (Value, error) {
	if err := arity("str", args, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return "", nil
	}
	return Str(args[0]), nil
}

func builtinList(_ *Context, args []Value, _ *Dict) (Value, error) {
	if err := arity("list", args, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return NewList(), nil
	}
	items, err := ToSlice(args[0])
	return NewList(items...), err
}

func builtinTuple(_ *Context, args []Value, _ *Dict) (Value, error) {
	if err := arity("tuple", args, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return Tuple{}, nil
	}
	if t, ok := args[0].(Tuple); ok {
		return t, nil
	}
	items, err := ToSlice(args[0])
	if items == nil {
		items = []Value{}
	}
	return Tuple(items), err
}

func builtinDict(_ *Context, args []Value, kwargs *Dict) (Value, error) {
	if err := arity("dict", args, 0, 1); err != nil {
		return nil, err
	}
	out := NewDict()
	if len(args) == 1 {
		if err := mergeInto(out, args[0]); err != nil {
			return nil, err
		}
	}
	if kwargs != nil {
		if err := mergeInto(out, kwargs); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func builtinSet(_ *Context, args []Value, _ *Dict) (Value, error) {
	if err := arity("set", args, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return NewSet()
	}
	items, err := ToSlice(args[0])
	if err != nil {
		return nil, err
	}
	return NewSet(items...)
}

func builtinRange(_ *Context, args []Value, _ *Dict) (Value, error) {
	if err := arity("range", args, 1, 3); err != nil {
		return nil, err
	}
	ints := make([]int64, len(args))
	for i, a := range args {
		n, ok := toInt(a)
		if !ok {
			return nil, errorf(TypeError, "'%s' object cannot be interpreted as an integer", TypeName(a))
		}
		ints[i] = n
	}
	r := &Range{Step: 1}
	switch len(ints) {
	case 1:
		r.Stop = ints[0]
	case 2:
		r.Start, r.Stop = ints[0], ints[1]
	case 3:
		r.Start, r.Stop, r.Step = ints[0], ints[1], ints[2]
	}
	if r.Step == 0 {
		return nil, errorf(ValueError, "range() arg 3 must not be zero")
	}
	return r, nil
}
