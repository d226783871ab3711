package eval

import (
	"encoding/json"
	"maps"
	"math"
	"slices"
	"time"
)

// ToNative converts a script value into plain Go data that encoding/json
// and YAML encoders accept. Dicts become map[string]any with keys in their
// str() form; lists, tuples and sets become []any; datetimes become RFC 3339
// strings and timedeltas seconds. Callables and modules become their repr.
func ToNative(v Value) any {
	switch v := v.(type) {
	case nil, bool, int64, float64, string:
		return v
	case *List:
		return nativeSlice(v.Elems)
	case Tuple:
		return nativeSlice(v)
	case *Set:
		return nativeSlice(v.Items())
	case *Range:
		out := make([]any, 0, v.Len())
		for i := range v.Len() {
			out = append(out, v.At(i))
		}
		return out
	case *Dict:
		out := make(map[string]any, v.Len())
		v.Items(func(k, val Value) bool {
			out[Str(k)] = ToNative(val)
			return true
		})
		return out
	case DateTime:
		return v.T.Format(time.RFC3339Nano)
	case TimeDelta:
		return v.D.Seconds()
	}
	return Repr(v)
}

func nativeSlice(elems []Value) []any {
	out := make([]any, len(elems))
	for i, e := range elems {
		out[i] = ToNative(e)
	}
	return out
}

// FromNative converts decoded JSON or YAML data into script values. Whole
// numbers become int; maps become dicts with sorted keys.
func FromNative(v any) Value {
	switch v := v.(type) {
	case nil, bool, int64, string:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case uint64:
		if v > math.MaxInt64 {
			return float64(v)
		}
		return int64(v)
	case float32:
		return fromFloat(float64(v))
	case float64:
		return fromFloat(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		f, _ := v.Float64()
		return f
	case []any:
		elems := make([]Value, len(v))
		for i, e := range v {
			elems[i] = FromNative(e)
		}
		return NewList(elems...)
	case []string:
		elems := make([]Value, len(v))
		for i, e := range v {
			elems[i] = e
		}
		return NewList(elems...)
	case map[string]any:
		d := NewDict()
		for _, k := range slices.Sorted(maps.Keys(v)) {
			d.SetStr(k, FromNative(v[k]))
		}
		return d
	case map[any]any:
		d := NewDict()
		for k, e := range v {
			_ = d.Set(FromNative(k), FromNative(e))
		}
		return d
	case time.Time:
		return DateTime{T: v}
	case time.Duration:
		return TimeDelta{D: v}
	}
	return v
}

func fromFloat(f float64) Value {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}
