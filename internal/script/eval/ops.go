package eval

import (
	"math"
	"math/bits"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-script/internal/script/ast"
)

// toInt reports whether v is an integer (bools included) and its value.
func toInt(v Value) (int64, bool) {
	switch v := v.(type) {
	case int64:
		return v, true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// toFloat reports whether v is numeric and its value as a float.
func toFloat(v Value) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func isNumber(v Value) bool {
	switch v.(type) {
	case int64, float64, bool:
		return true
	}
	return false
}

func unsupported(op ast.Op, a, b Value) error {
	return errorf(TypeError, "unsupported operand type(s) for %s: '%s' and '%s'", op, TypeName(a), TypeName(b))
}

// BinaryOp applies a binary arithmetic or bitwise operator.
func BinaryOp(op ast.Op, a, b Value) (Value, error) {
	if ai, ok := toInt(a); ok {
		if bi, ok := toInt(b); ok {
			if _, ab := a.(bool); ab {
				if _, bb := b.(bool); bb {
					switch op {
					case ast.BitAnd:
						return a.(bool) && b.(bool), nil
					case ast.BitOr:
						return a.(bool) || b.(bool), nil
					case ast.BitXor:
						return a.(bool) != b.(bool), nil
					}
				}
			}
			return intOp(op, ai, bi)
		}
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return floatOp(op, af, bf)
		}
	}

	switch op {
	case ast.Add:
		return add(a, b)
	case ast.Sub:
		return sub(a, b)
	case ast.Mult:
		return mul(a, b)
	case ast.Div:
		if ad, ok := a.(TimeDelta); ok {
			if bd, ok := b.(TimeDelta); ok {
				if bd.D == 0 {
					return nil, errorf(ZeroDivisionError, "division by zero")
				}
				return float64(ad.D) / float64(bd.D), nil
			}
			if f, ok := toFloat(b); ok {
				if f == 0 {
					return nil, errorf(ZeroDivisionError, "division by zero")
				}
				return TimeDelta{D: time.Duration(math.Round(float64(ad.D) / f))}, nil
			}
		}
	case ast.Mod:
		if s, ok := a.(string); ok {
			return percentFormat(s, b)
		}
	case ast.BitOr, ast.BitAnd, ast.BitXor:
		if as, ok := a.(*Set); ok {
			if bs, ok := b.(*Set); ok {
				return setOp(op, as, bs)
			}
		}
		if ad, ok := a.(*Dict); ok && op == ast.BitOr {
			if bd, ok := b.(*Dict); ok {
				out := ad.Copy()
				var err error
				bd.Items(func(k, v Value) bool {
					err = out.Set(k, v)
					return err == nil
				})
				return out, err
			}
		}
	}
	return nil, unsupported(op, a, b)
}

func intOp(op ast.Op, a, b int64) (Value, error) {
	switch op {
	case ast.Add:
		return a + b, nil
	case ast.Sub:
		return a - b, nil
	case ast.Mult:
		return a * b, nil
	case ast.Div:
		if b == 0 {
			return nil, errorf(ZeroDivisionError, "division by zero")
		}
		return float64(a) / float64(b), nil
	case ast.FloorDiv:
		if b == 0 {
			return nil, errorf(ZeroDivisionError, "integer division or modulo by zero")
		}
		return floorDiv(a, b), nil
	case ast.Mod:
		if b == 0 {
			return nil, errorf(ZeroDivisionError, "integer division or modulo by zero")
		}
		return a - floorDiv(a, b)*b, nil
	case ast.Pow:
		if b < 0 {
			if a == 0 {
				return nil, errorf(ZeroDivisionError, "0.0 cannot be raised to a negative power")
			}
			return math.Pow(float64(a), float64(b)), nil
		}
		return intPow(a, b)
	case ast.LShift:
		if b < 0 {
			return nil, errorf(ValueError, "negative shift count")
		}
		if b >= 63 || (a != 0 && bits.Len64(uint64(abs64(a)))+int(b) > 63) {
			return nil, errorf(OverflowError, "integer overflow in left shift")
		}
		return a << uint(b), nil
	case ast.RShift:
		if b < 0 {
			return nil, errorf(ValueError, "negative shift count")
		}
		if b > 63 {
			b = 63
		}
		return a >> uint(b), nil
	case ast.BitOr:
		return a | b, nil
	case ast.BitXor:
		return a ^ b, nil
	case ast.BitAnd:
		return a & b, nil
	}
	return nil, unsupported(op, a, b)
}

func abs64(a int64) int64 {
	if a < 0 {
		return -a
	}
	return a
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func intPow(base, exp int64) (Value, error) {
	result := int64(1)
	for exp > 0 {
		if exp&1 == 1 {
			hi, lo := bits.Mul64(uint64(abs64(result)), uint64(abs64(base)))
			if hi != 0 || lo > math.MaxInt64 {
				return nil, errorf(OverflowError, "integer result too large")
			}
			result *= base
		}
		exp >>= 1
		if exp > 0 {
			hi, lo := bits.Mul64(uint64(abs64(base)), uint64(abs64(base)))
			if hi != 0 || lo > math.MaxInt64 {
				return nil, errorf(OverflowError, "integer result too large")
			}
			base *= base
		}
	}
	return result, nil
}

func floatOp(op ast.Op, a, b float64) (Value, error) {
	switch op {
	case ast.Add:
		return a + b, nil
	case ast.Sub:
		return a - b, nil
	case ast.Mult:
		return a * b, nil
	case ast.Div:
		if b == 0 {
			return nil, errorf(ZeroDivisionError, "float division by zero")
		}
		return a / b, nil
	case ast.FloorDiv:
		if b == 0 {
			return nil, errorf(ZeroDivisionError, "float floor division by zero")
		}
		return math.Floor(a / b), nil
	case ast.Mod:
		if b == 0 {
			return nil, errorf(ZeroDivisionError, "float modulo")
		}
		m := math.Mod(a, b)
		if m != 0 && (m < 0) != (b < 0) {
			m += b
		}
		return m, nil
	case ast.Pow:
		if a == 0 && b < 0 {
			return nil, errorf(ZeroDivisionError, "0.0 cannot be raised to a negative power")
		}
		return math.Pow(a, b), nil
	}
	return nil, errorf(TypeError, "unsupported operand type(s) for %s: 'float' and 'float'", op)
}

func add(a, b Value) (Value, error) {
	switch a := a.(type) {
	case string:
		if b, ok := b.(string); ok {
			return a + b, nil
		}
	case *List:
		if b, ok := b.(*List); ok {
			out := make([]Value, 0, len(a.Elems)+len(b.Elems))
			return &List{Elems: append(append(out, a.Elems...), b.Elems...)}, nil
		}
	case Tuple:
		if b, ok := b.(Tuple); ok {
			out := make(Tuple, 0, len(a)+len(b))
			return append(append(out, a...), b...), nil
		}
	case DateTime:
		if b, ok := b.(TimeDelta); ok {
			return DateTime{T: a.T.Add(b.D)}, nil
		}
	case TimeDelta:
		switch b := b.(type) {
		case TimeDelta:
			return TimeDelta{D: a.D + b.D}, nil
		case DateTime:
			return DateTime{T: b.T.Add(a.D)}, nil
		}
	}
	return nil, unsupported(ast.Add, a, b)
}

func sub(a, b Value) (Value, error) {
	switch a := a.(type) {
	case *Set:
		if b, ok := b.(*Set); ok {
			return setOp(ast.Sub, a, b)
		}
	case DateTime:
		switch b := b.(type) {
		case TimeDelta:
			return DateTime{T: a.T.Add(-b.D)}, nil
		case DateTime:
			return TimeDelta{D: a.T.Sub(b.T)}, nil
		}
	case TimeDelta:
		if b, ok := b.(TimeDelta); ok {
			return TimeDelta{D: a.D - b.D}, nil
		}
	}
	return nil, unsupported(ast.Sub, a, b)
}

func mul(a, b Value) (Value, error) {
	if _, ok := toInt(a); ok && !isNumber(b) {
		a, b = b, a
	}
	n, isInt := toInt(b)
	switch a := a.(type) {
	case string:
		if isInt {
			if n <= 0 {
				return "", nil
			}
			return strings.Repeat(a, int(n)), nil
		}
	case *List:
		if isInt {
			out := &List{Elems: []Value{}}
			for i := int64(0); i < n; i++ {
				out.Elems = append(out.Elems, a.Elems...)
			}
			return out, nil
		}
	case Tuple:
		if isInt {
			out := Tuple{}
			for i := int64(0); i < n; i++ {
				out = append(out, a...)
			}
			return out, nil
		}
	case TimeDelta:
		if f, ok := toFloat(b); ok {
			return TimeDelta{D: time.Duration(math.Round(float64(a.D) * f))}, nil
		}
	}
	if f, ok := toFloat(a); ok {
		if d, ok := b.(TimeDelta); ok {
			return TimeDelta{D: time.Duration(math.Round(float64(d.D) * f))}, nil
		}
	}
	return nil, unsupported(ast.Mult, a, b)
}

func setOp(op ast.Op, a, b *Set) (Value, error) {
	out, _ := NewSet() //nolint:errcheck // no items
	switch op {
	case ast.BitOr:
		for _, v := range a.Items() {
			_ = out.Add(v) //nolint:errcheck // members are hashable
		}
		for _, v := range b.Items() {
			_ = out.Add(v) //nolint:errcheck // members are hashable
		}
	case ast.BitAnd:
		for _, v := range a.Items() {
			if ok, _ := b.Has(v); ok {
				_ = out.Add(v) //nolint:errcheck // members are hashable
			}
		}
	case ast.Sub:
		for _, v := range a.Items() {
			if ok, _ := b.Has(v); !ok {
				_ = out.Add(v) //nolint:errcheck // members are hashable
			}
		}
	case ast.BitXor:
		for _, v := range a.Items() {
			if ok, _ := b.Has(v); !ok {
				_ = out.Add(v) //nolint:errcheck // members are hashable
			}
		}
		for _, v := range b.Items() {
			if ok, _ := a.Has(v); !ok {
				_ = out.Add(v) //nolint:errcheck // members are hashable
			}
		}
	}
	return out, nil
}

// UnaryOp applies a unary operator.
func UnaryOp(op ast.Op, v Value) (Value, error) {
	switch op {
	case ast.Not:
		return !Truthy(v), nil
	case ast.UAdd:
		if i, ok := toInt(v); ok {
			return i, nil
		}
		if f, ok := v.(float64); ok {
			return f, nil
		}
		if d, ok := v.(TimeDelta); ok {
			return d, nil
		}
	case ast.USub:
		if i, ok := toInt(v); ok {
			return -i, nil
		}
		if f, ok := v.(float64); ok {
			return -f, nil
		}
		if d, ok := v.(TimeDelta); ok {
			return TimeDelta{D: -d.D}, nil
		}
	case ast.Invert:
		if i, ok := toInt(v); ok {
			return ^i, nil
		}
	}
	return nil, errorf(TypeError, "bad operand type for unary %s: '%s'", op, TypeName(v))
}

// Equal reports whether a == b.
func Equal(a, b Value) bool {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			ai, aInt := toInt(a)
			bi, bInt := toInt(b)
			if aInt && bInt {
				return ai == bi
			}
			return af == bf
		}
		return false
	}
	switch a := a.(type) {
	case nil:
		return b == nil
	case string:
		bs, ok := b.(string)
		return ok && a == bs
	case *List:
		bl, ok := b.(*List)
		return ok && seqEqual(a.Elems, bl.Elems)
	case Tuple:
		bt, ok := b.(Tuple)
		return ok && seqEqual(a, bt)
	case *Dict:
		bd, ok := b.(*Dict)
		if !ok || a.Len() != bd.Len() {
			return false
		}
		eq := true
		a.Items(func(k, v Value) bool {
			bv, found, err := bd.Get(k)
			eq = err == nil && found && Equal(v, bv)
			return eq
		})
		return eq
	case *Set:
		bs, ok := b.(*Set)
		if !ok || a.Len() != bs.Len() {
			return false
		}
		for _, v := range a.Items() {
			if has, _ := bs.Has(v); !has {
				return false
			}
		}
		return true
	case *Range:
		br, ok := b.(*Range)
		return ok && *a == *br
	case DateTime:
		bd, ok := b.(DateTime)
		return ok && a.T.Equal(bd.T)
	case TimeDelta:
		bd, ok := b.(TimeDelta)
		return ok && a.D == bd.D
	}
	return identical(a, b)
}

func seqEqual(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// identical implements the `is` operator. Scalars compare by value, which
// matches interning of small values; everything else by reference.
func identical(a, b Value) bool {
	switch a := a.(type) {
	case nil:
		return b == nil
	case bool:
		bb, ok := b.(bool)
		return ok && a == bb
	case int64:
		bi, ok := b.(int64)
		return ok && a == bi
	case float64:
		bf, ok := b.(float64)
		return ok && a == bf
	case string:
		bs, ok := b.(string)
		return ok && a == bs
	case *List:
		bl, ok := b.(*List)
		return ok && a == bl
	case *Dict:
		bd, ok := b.(*Dict)
		return ok && a == bd
	case *Set:
		bs, ok := b.(*Set)
		return ok && a == bs
	case *Range:
		br, ok := b.(*Range)
		return ok && a == br
	case *Function:
		bf, ok := b.(*Function)
		return ok && a == bf
	case *Builtin:
		bf, ok := b.(*Builtin)
		return ok && a == bf
	case *Object:
		bo, ok := b.(*Object)
		return ok && a == bo
	case Tuple:
		bt, ok := b.(Tuple)
		return ok && len(a) == 0 && len(bt) == 0
	case DateTime, TimeDelta:
		return Equal(a, b)
	}
	return false
}

// Less reports whether a < b, or a TypeError for unordered operands.
func Less(a, b Value) (bool, error) {
	c, err := compare(a, b, "<")
	return c < 0, err
}

// compare orders two values, returning -1, 0 or 1.
func compare(a, b Value, sym string) (int, error) {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			ai, aInt := toInt(a)
			bi, bInt := toInt(b)
			switch {
			case aInt && bInt:
				return cmp3(ai < bi, ai > bi), nil
			default:
				return cmp3(af < bf, af > bf), nil
			}
		}
	}
	switch a := a.(type) {
	case string:
		if b, ok := b.(string); ok {
			return strings.Compare(a, b), nil
		}
	case *List:
		if b, ok := b.(*List); ok {
			return seqCompare(a.Elems, b.Elems, sym)
		}
	case Tuple:
		if b, ok := b.(Tuple); ok {
			return seqCompare(a, b, sym)
		}
	case DateTime:
		if b, ok := b.(DateTime); ok {
			return a.T.Compare(b.T), nil
		}
	case TimeDelta:
		if b, ok := b.(TimeDelta); ok {
			return cmp3(a.D < b.D, a.D > b.D), nil
		}
	}
	return 0, errorf(TypeError, "'%s' not supported between instances of '%s' and '%s'", sym, TypeName(a), TypeName(b))
}

func cmp3(lt, gt bool) int {
	switch {
	case lt:
		return -1
	case gt:
		return 1
	}
	return 0
}

func seqCompare(a, b []Value, sym string) (int, error) {
	for i := 0; i < len(a) && i < len(b); i++ {
		if Equal(a[i], b[i]) {
			continue
		}
		return compare(a[i], b[i], sym)
	}
	return cmp3(len(a) < len(b), len(a) > len(b)), nil
}

// subset reports whether every member of a is in b.
func subset(a, b *Set) bool {
	for _, v := range a.Items() {
		if ok, _ := b.Has(v); !ok {
			return false
		}
	}
	return true
}

// CompareOp applies one comparison operator.
func CompareOp(op ast.Op, a, b Value) (bool, error) {
	switch op {
	case ast.Eq:
		return Equal(a, b), nil
	case ast.NotEq:
		return !Equal(a, b), nil
	case ast.Is:
		return identical(a, b), nil
	case ast.IsNot:
		return !identical(a, b), nil
	case ast.In:
		return Contains(b, a)
	case ast.NotIn:
		in, err := Contains(b, a)
		return !in, err
	}

	if as, ok := a.(*Set); ok {
		if bs, ok := b.(*Set); ok {
			switch op {
			case ast.Lt:
				return as.Len() < bs.Len() && subset(as, bs), nil
			case ast.LtE:
				return subset(as, bs), nil
			case ast.Gt:
				return as.Len() > bs.Len() && subset(bs, as), nil
			case ast.GtE:
				return subset(bs, as), nil
			}
		}
	}

	c, err := compare(a, b, op.String())
	if err != nil {
		return false, err
	}
	switch op {
	case ast.Lt:
		return c < 0, nil
	case ast.LtE:
		return c <= 0, nil
	case ast.Gt:
		return c > 0, nil
	case ast.GtE:
		return c >= 0, nil
	}
	return false, errorf(TypeError, "unsupported comparison %s", op)
}

// Contains implements `item in container`.
func Contains(container, item Value) (bool, error) {
	switch c := container.(type) {
	case string:
		s, ok := item.(string)
		if !ok {
			return false, errorf(TypeError, "'in <string>' requires string as left operand, not %s", TypeName(item))
		}
		return strings.Contains(c, s), nil
	case *List:
		for _, e := range c.Elems {
			if Equal(e, item) {
				return true, nil
			}
		}
		return false, nil
	case Tuple:
		for _, e := range c {
			if Equal(e, item) {
				return true, nil
			}
		}
		return false, nil
	case *Dict:
		_, ok, err := c.Get(item)
		return ok, err
	case *Set:
		return c.Has(item)
	case *Range:
		i, ok := toInt(item)
		if !ok {
			return false, nil
		}
		n := c.Len()
		if n == 0 {
			return false, nil
		}
		off := i - c.Start
		if off%c.Step != 0 {
			return false, nil
		}
		idx := off / c.Step
		return idx >= 0 && idx < n, nil
	}
	return false, errorf(TypeError, "argument of type '%s' is not iterable", TypeName(container))
}
