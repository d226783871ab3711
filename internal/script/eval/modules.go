package eval

import (
	"math"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"
)

// moduleBuilders construct the importable modules on first use.
var moduleBuilders = map[string]func() *Object{
	"math":       mathModule,
	"random":     randomModule,
	"time":       timeModule,
	"datetime":   datetimeModule,
	"re":         reModule,
	"string":     stringModule,
	"statistics": statisticsModule,
}

var (
	moduleMu    sync.Mutex
	moduleCache = map[string]*Object{}
)

// importModule returns the named module. Modules are shared between all
// scripts, so they only hold immutable attributes and functions.
func importModule(name string) (*Object, error) {
	switch name {
	case "cmath", "decimal", "fractions":
		return nil, errorf(ImportError, "import of %s not supported", name)
	}
	build, ok := moduleBuilders[name]
	if !ok {
		return nil, errorf(ImportError, "import of %s not allowed", name)
	}
	moduleMu.Lock()
	defer moduleMu.Unlock()
	if m, ok := moduleCache[name]; ok {
		return m, nil
	}
	m := build()
	moduleCache[name] = m
	return m, nil
}

func module(name string, attrs map[string]Value) *Object {
	return &Object{Kind: "module", Name: name, Attrs: attrs}
}

func fn(name string, f BuiltinFunc) *Builtin {
	return &Builtin{Name: name, Fn: f}
}

// ─── math ───────────────────────────────────────────────────────────────────

func floatArg(name string, v Value) (float64, error) {
	f, ok := toFloat(v)
	if !ok {
		return 0, errorf(TypeError, "must be real number, not %s", TypeName(v))
	}
	return f, nil
}

func mathUnary(name string, f func(float64) float64, domain func(float64) bool) *Builtin {
	return fn(name, func(_ *Context, args []Value, _ *Dict) (Value, error) {
		if err := arity(name, args, 1, 1); err != nil {
			return nil, err
		}
		x, err := floatArg(name, args[0])
		if err != nil {
			return nil, err
		}
		if domain != nil && !domain(x) {
			return nil, errorf(ValueError, "math domain error")
		}
		return f(x), nil
	})
}

func mathToInt(name string, f func(float64) float64) *Builtin {
	return fn(name, func(_ *Context, args []Value, _ *Dict) (Value, error) {
		if err := arity(name, args, 1, 1); err != nil {
			return nil, err
		}
		if n, ok := toInt(args[0]); ok {
			return n, nil
		}
		x, err := floatArg(name, args[0])
		if err != nil {
			return nil, err
		}
		if math.IsInf(x, 0) || math.IsNaN(x) {
			return nil, errorf(ValueError, "cannot convert float %s to integer", FormatFloat(x))
		}
		return int64(f(x)), nil
	})
}

func mathPredicate(name string, f func(float64) bool) *Builtin {
	return fn(name, func(_ *Context, args []Value, _ *Dict) (Value, error) {
		if err := arity(name, args, 1, 1); err != nil {
			return nil, err
		}
		x, err := floatArg(name, args[0])
		if err != nil {
			return nil, err
		}
		return f(x), nil
	})
}

func mathBinary(name string, f func(a, b float64) float64) *Builtin {
	return fn(name, func(_ *Context, args []Value, _ *Dict) (Value, error) {
		if err := arity(name, args, 2, 2); err != nil {
			return nil, err
		}
		a, err := floatArg(name, args[0])
		if err != nil {
			return nil, err
		}
		b, err := floatArg(name, args[1])
		if err != nil {
			return nil, err
		}
		return f(a, b), nil
	})
}

func positive(x float64) bool    { return x > 0 }
func nonNegative(x float64) bool { return x >= 0 }
func unitRange(x float64) bool   { return x >= -1 && x <= 1 }

func mathModule() *Object {
	return module("math", map[string]Value{
		"pi":        math.Pi,
		"e":         math.E,
		"tau":       2 * math.Pi,
		"inf":       math.Inf(1),
		"nan":       math.NaN(),
		"sqrt":      mathUnary("sqrt", math.Sqrt, nonNegative),
		"exp":       mathUnary("exp", math.Exp, nil),
		"log10":     mathUnary("log10", math.Log10, positive),
		"log2":      mathUnary("log2", math.Log2, positive),
		"sin":       mathUnary("sin", math.Sin, nil),
		"cos":       mathUnary("cos", math.Cos, nil),
		"tan":       mathUnary("tan", math.Tan, nil),
		"asin":      mathUnary("asin", math.Asin, unitRange),
		"acos":      mathUnary("acos", math.Acos, unitRange),
		"atan":      mathUnary("atan", math.Atan, nil),
		"fabs":      mathUnary("fabs", math.Abs, nil),
		"degrees":   mathUnary("degrees", func(x float64) float64 { return x * 180 / math.Pi }, nil),
		"radians":   mathUnary("radians", func(x float64) float64 { return x * math.Pi / 180 }, nil),
		"floor":     mathToInt("floor", math.Floor),
		"ceil":      mathToInt("ceil", math.Ceil),
		"trunc":     mathToInt("trunc", math.Trunc),
		"isnan":     mathPredicate("isnan", math.IsNaN),
		"isinf":     mathPredicate("isinf", func(x float64) bool { return math.IsInf(x, 0) }),
		"isfinite":  mathPredicate("isfinite", func(x float64) bool { return !math.IsInf(x, 0) && !math.IsNaN(x) }),
		"atan2":     mathBinary("atan2", math.Atan2),
		"hypot":     mathBinary("hypot", math.Hypot),
		"copysign":  mathBinary("copysign", math.Copysign),
		"fmod":      mathBinary("fmod", math.Mod),
		"pow":       mathBinary("pow", math.Pow),
		"log":       fn("log", mathLog),
		"gcd":       fn("gcd", mathGcd),
		"factorial": fn("factorial", mathFactorial),
		"isclose":   fn("isclose", mathIsclose),
	})
}

func mathLog(_ *Context, args []Value, _ *Dict) (Value, error) {
	if err := arity("log", args, 1, 2); err != nil {
		return nil, err
	}
	x, err := floatArg("log", args[0])
	if err != nil {
		return nil, err
	}
	if x <= 0 {
		return nil, errorf(ValueError, "math domain error")
	}
	if len(args) == 1 {
		return math.Log(x), nil
	}
	base, err := floatArg("log", args[1])
	if err != nil {
		return nil, err
	}
	if base <= 0 || base == 1 {
		return nil, errorf(ValueError, "math domain error")
	}
	return math.Log(x) / math.Log(base), nil
}

func mathGcd(_ *Context, args []Value, _ *Dict) (Value, error) {
	g := int64(0)
	for _, a := range args {
		n, err := intArg("gcd", a)
		if err != nil {
			return nil, err
		}
		n = abs64(n)
		for n != 0 {
			g, n = n, g%n
		}
	}
	return g, nil
}

func mathFactorial(_ *Context, args []Value, _ *Dict) (Value, error) {
	if err := arity("factorial", args, 1, 1); err != nil {
		return nil, err
	}
	n, err := intArg("factorial", args[0])
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, errorf(ValueError, "factorial() not defined for negative values")
	}
	if n > 20 {
		return nil, errorf(OverflowError, "factorial() result does not fit in an integer")
	}
	out := int64(1)
	for i := int64(2); i <= n; i++ {
		out *= i
	}
	return out, nil
}

func mathIsclose(_ *Context, args []Value, kwargs *Dict) (Value, error) {
	if err := arity("isclose", args, 2, 2); err != nil {
		return nil, err
	}
	a, err := floatArg("isclose", args[0])
	if err != nil {
		return nil, err
	}
	b, err := floatArg("isclose", args[1])
	if err != nil {
		return nil, err
	}
	rel, err := floatArg("isclose", optArg(nil, 0, kwargs, "rel_tol", 1e-9))
	if err != nil {
		return nil, err
	}
	abs, err := floatArg("isclose", optArg(nil, 0, kwargs, "abs_tol", 0.0))
	if err != nil {
		return nil, err
	}
	if a == b {
		return true, nil
	}
	diff := math.Abs(a - b)
	return diff <= math.Max(rel*math.Max(math.Abs(a), math.Abs(b)), abs), nil
}

// ─── random ─────────────────────────────────────────────────────────────────

// scriptRand is the generator behind the random module; seed() replaces it.
var (
	randMu     sync.Mutex
	scriptRand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15))
)

func withRand[T any](f func(r *rand.Rand) T) T {
	randMu.Lock()
	defer randMu.Unlock()
	return f(scriptRand)
}

func randomModule() *Object {
	return module("random", map[string]Value{
		"random": fn("random", func(_ *Context, args []Value, _ *Dict) (Value, error) {
			return withRand((*rand.Rand).Float64), arity("random", args, 0, 0)
		}),
		"uniform": fn("uniform", func(_ *Context, args []Value, _ *Dict) (Value, error) {
			if err := arity("uniform", args, 2, 2); err != nil {
				return nil, err
			}
			a, err := floatArg("uniform", args[0])
			if err != nil {
				return nil, err
			}
			b, err := floatArg("uniform", args[1])
			if err != nil {
				return nil, err
			}
			return a + (b-a)*withRand((*rand.Rand).Float64), nil
		}),
		"randint": fn("randint", func(_ *Context, args []Value, _ *Dict) (Value, error) {
			if err := arity("randint", args, 2, 2); err != nil {
				return nil, err
			}
			a, err := intArg("randint", args[0])
			if err != nil {
				return nil, err
			}
			b, err := intArg("randint", args[1])
			if err != nil {
				return nil, err
			}
			if b < a {
				return nil, errorf(ValueError, "empty range for randint(%d, %d)", a, b)
			}
			return a + withRand(func(r *rand.Rand) int64 { return r.Int64N(b - a + 1) }), nil
		}),
		"choice": fn("choice", func(_ *Context, args []Value, _ *Dict) (Value, error) {
			if err := arity("choice", args, 1, 1); err != nil {
				return nil, err
			}
			items, err := ToSlice(args[0])
			if err != nil {
				return nil, err
			}
			if len(items) == 0 {
				return nil, errorf(IndexError, "Cannot choose from an empty sequence")
			}
			return items[withRand(func(r *rand.Rand) int { return r.IntN(len(items)) })], nil
		}),
		"shuffle": fn("shuffle", func(_ *Context, args []Value, _ *Dict) (Value, error) {
			if err := arity("shuffle", args, 1, 1); err != nil {
				return nil, err
			}
			l, ok := args[0].(*List)
			if !ok {
				return nil, errorf(TypeError, "shuffle() argument must be a list, not %s", TypeName(args[0]))
			}
			withRand(func(r *rand.Rand) struct{} {
				r.Shuffle(len(l.Elems), func(i, j int) { l.Elems[i], l.Elems[j] = l.Elems[j], l.Elems[i] })
				return struct{}{}
			})
			return nil, nil
		}),
		"sample": fn("sample", func(_ *Context, args []Value, kwargs *Dict) (Value, error) {
			if err := arity("sample", args, 1, 2); err != nil {
				return nil, err
			}
			items, err := ToSlice(args[0])
			if err != nil {
				return nil, err
			}
			k, err := intArg("sample", optArg(args, 1, kwargs, "k", nil))
			if err != nil {
				return nil, err
			}
			if k < 0 || k > int64(len(items)) {
				return nil, errorf(ValueError, "Sample larger than population or is negative")
			}
			perm := withRand(func(r *rand.Rand) []int { return r.Perm(len(items)) })
			out := make([]Value, k)
			for i := range out {
				out[i] = items[perm[i]]
			}
			return NewList(out...), nil
		}),
		"seed": fn("seed", func(_ *Context, args []Value, _ *Dict) (Value, error) {
			if err := arity("seed", args, 0, 1); err != nil {
				return nil, err
			}
			seed := uint64(time.Now().UnixNano())
			if len(args) == 1 && args[0] != nil {
				k, err := hashKey(args[0])
				if err != nil {
					return nil, err
				}
				seed = 0
				for _, b := range []byte(k) {
					seed = seed*1099511628211 + uint64(b)
				}
			}
			randMu.Lock()
			scriptRand = rand.New(rand.NewPCG(seed, 0x9e3779b97f4a7c15))
			randMu.Unlock()
			return nil, nil
		}),
	})
}

// ─── time ───────────────────────────────────────────────────────────────────

func timeModule() *Object {
	return module("time", map[string]Value{
		"time": fn("time", func(_ *Context, args []Value, _ *Dict) (Value, error) {
			return float64(time.Now().UnixNano()) / 1e9, arity("time", args, 0, 0)
		}),
		"monotonic": fn("monotonic", func(_ *Context, args []Value, _ *Dict) (Value, error) {
			return time.Since(processStart).Seconds(), arity("monotonic", args, 0, 0)
		}),
		"strftime": fn("strftime", func(_ *Context, args []Value, _ *Dict) (Value, error) {
			if err := arity("strftime", args, 1, 1); err != nil {
				return nil, err
			}
			layout, err := strArg("strftime", args[0])
			if err != nil {
				return nil, err
			}
			return strftime(time.Now(), layout), nil
		}),
		"sleep": fn("sleep", func(c *Context, args []Value, _ *Dict) (Value, error) {
			if err := arity("sleep", args, 1, 1); err != nil {
				return nil, err
			}
			secs, err := floatArg("sleep", args[0])
			if err != nil {
				return nil, err
			}
			t := time.NewTimer(time.Duration(secs * float64(time.Second)))
			defer t.Stop()
			select {
			case <-t.C:
				return nil, nil
			case <-c.Context().Done():
				return nil, c.Context().Err()
			}
		}),
	})
}

var processStart = time.Now()

// ─── string ─────────────────────────────────────────────────────────────────

func stringModule() *Object {
	const (
		lower = "abcdefghijklmnopqrstuvwxyz"
		upper = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
		punct = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
		white = " \t\n\r\x0b\x0c"
	)
	return module("string", map[string]Value{
		"ascii_lowercase": lower,
		"ascii_uppercase": upper,
		"ascii_letters":   lower + upper,
		"digits":          "0123456789",
		"hexdigits":       "0123456789abcdefABCDEF",
		"octdigits":       "01234567",
		"punctuation":     punct,
		"whitespace":      white,
		"printable":       "0123456789" + lower + upper + punct + white,
		"capwords": fn("capwords", func(_ *Context, args []Value, _ *Dict) (Value, error) {
			if err := arity("capwords", args, 1, 2); err != nil {
				return nil, err
			}
			s, err := strArg("capwords", args[0])
			if err != nil {
				return nil, err
			}
			var words []string
			sep := " "
			if len(args) == 2 && args[1] != nil {
				if sep, err = strArg("capwords", args[1]); err != nil {
					return nil, err
				}
				words = strings.Split(s, sep)
			} else {
				words = strings.Fields(s)
			}
			for i, w := range words {
				words[i] = capitalize(w).(string)
			}
			return strings.Join(words, sep), nil
		}),
	})
}

// ─── statistics ─────────────────────────────────────────────────────────────

func numbers(name string, v Value) ([]float64, error) {
	items, err := ToSlice(v)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(items))
	for i, it := range items {
		if out[i], err = floatArg(name, it); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func variance(xs []float64, sample bool) float64 {
	m := mean(xs)
	ss := 0.0
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	n := float64(len(xs))
	if sample {
		n--
	}
	return ss / n
}

func statFunc(name string, need int, f func(args []Value, xs []float64) (Value, error)) *Builtin {
	return fn(name, func(_ *Context, args []Value, _ *Dict) (Value, error) {
		if err := arity(name, args, 1, 1); err != nil {
			return nil, err
		}
		xs, err := numbers(name, args[0])
		if err != nil {
			return nil, err
		}
		if len(xs) < need {
			if need == 1 {
				return nil, errorf(ValueError, "%s requires at least one data point", name)
			}
			return nil, errorf(ValueError, "%s requires at least two data points", name)
		}
		return f(args, xs)
	})
}

func statisticsModule() *Object {
	return module("statistics", map[string]Value{
		"mean": statFunc("mean", 1, func(args []Value, xs []float64) (Value, error) {
			items, _ := ToSlice(args[0])
			allInt := true
			for _, it := range items {
				if _, ok := it.(float64); ok {
					allInt = false
				}
			}
			m := mean(xs)
			if allInt && m == math.Trunc(m) {
				return int64(m), nil
			}
			return m, nil
		}),
		"fmean": statFunc("fmean", 1, func(_ []Value, xs []float64) (Value, error) {
			return mean(xs), nil
		}),
		"median": statFunc("median", 1, func(args []Value, xs []float64) (Value, error) {
			items, _ := ToSlice(args[0])
			if err := sortValues(nil, items, nil, false); err != nil {
				return nil, err
			}
			n := len(items)
			if n%2 == 1 {
				return items[n/2], nil
			}
			slices.Sort(xs)
			return (xs[n/2-1] + xs[n/2]) / 2, nil
		}),
		"mode": fn("mode", func(_ *Context, args []Value, _ *Dict) (Value, error) {
			if err := arity("mode", args, 1, 1); err != nil {
				return nil, err
			}
			items, err := ToSlice(args[0])
			if err != nil {
				return nil, err
			}
			if len(items) == 0 {
				return nil, errorf(ValueError, "no mode for empty data")
			}
			counts := NewDict()
			var best Value
			bestN := int64(0)
			for _, it := range items {
				c, _, err := counts.Get(it)
				if err != nil {
					return nil, err
				}
				n, _ := c.(int64)
				n++
				if err := counts.Set(it, n); err != nil {
					return nil, err
				}
				if n > bestN {
					best, bestN = it, n
				}
			}
			return best, nil
		}),
		"variance": statFunc("variance", 2, func(_ []Value, xs []float64) (Value, error) {
			return variance(xs, true), nil
		}),
		"pvariance": statFunc("pvariance", 1, func(_ []Value, xs []float64) (Value, error) {
			return variance(xs, false), nil
		}),
		"stdev": statFunc("stdev", 2, func(_ []Value, xs []float64) (Value, error) {
			return math.Sqrt(variance(xs, true)), nil
		}),
		"pstdev": statFunc("pstdev", 1, func(_ []Value, xs []float64) (Value, error) {
			return math.Sqrt(variance(xs, false)), nil
		}),
	})
}
