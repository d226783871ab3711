package eval

import (
	"slices"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nerrad567/gray-logic-script/internal/script/ast"
)

// Casers carry state, so each call gets its own.
func lowerCase(s string) string { return cases.Lower(language.Und).String(s) }

// sortValues sorts vals in place, stable, optionally through a key function.
func sortValues(c *Context, vals []Value, key Value, reverse bool) error {
	keys := vals
	if key != nil {
		keys = make([]Value, len(vals))
		for i, v := range vals {
			k, err := c.Call(key, []Value{v}, nil)
			if err != nil {
				return err
			}
			keys[i] = k
		}
	}
	idx := make([]int, len(vals))
	for i := range idx {
		idx[i] = i
	}
	var cmpErr error
	slices.SortStableFunc(idx, func(a, b int) int {
		r, err := compare(keys[a], keys[b], "<")
		if err != nil && cmpErr == nil {
			cmpErr = err
		}
		if reverse {
			return -r
		}
		return r
	})
	if cmpErr != nil {
		return cmpErr
	}
	sorted := make([]Value, len(vals))
	for i, j := range idx {
		sorted[i] = vals[j]
	}
	copy(vals, sorted)
	return nil
}

// ─── str ────────────────────────────────────────────────────────────────────

func strRecv(recv Value) string { return recv.(string) }

func stripChars(args []Value, kwargs *Dict, name string) (string, bool, error) {
	v := optArg(args, 0, kwargs, "chars", nil)
	if v == nil {
		return "", false, nil
	}
	s, err := strArg(name, v)
	return s, true, err
}

func strStrip(name string, fn func(s, cut string) string, space func(string) string) method {
	return func(_ *Context, recv Value, args []Value, kwargs *Dict) (Value, error) {
		if err := arity(name, args, 0, 1); err != nil {
			return nil, err
		}
		chars, ok, err := stripChars(args, kwargs, name)
		if err != nil {
			return nil, err
		}
		if !ok {
			return space(strRecv(recv)), nil
		}
		return fn(strRecv(recv), chars), nil
	}
}

func strPredicate(name string, pred func(rune) bool) method {
	return func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		if err := arity(name, args, 0, 0); err != nil {
			return nil, err
		}
		s := strRecv(recv)
		if s == "" {
			return false, nil
		}
		for _, r := range s {
			if !pred(r) {
				return false, nil
			}
		}
		return true, nil
	}
}

func strAffix(name string, test func(s, affix string) bool) method {
	return func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		if err := arity(name, args, 1, 1); err != nil {
			return nil, err
		}
		s := strRecv(recv)
		switch a := args[0].(type) {
		case string:
			return test(s, a), nil
		case Tuple:
			for _, e := range a {
				es, err := strArg(name, e)
				if err != nil {
					return nil, err
				}
				if test(s, es) {
					return true, nil
				}
			}
			return false, nil
		}
		return nil, errorf(TypeError, "%s first arg must be str or a tuple of str, not %s", name, TypeName(args[0]))
	}
}

func strSplit(name string, fromRight bool) method {
	return func(_ *Context, recv Value, args []Value, kwargs *Dict) (Value, error) {
		if err := arity(name, args, 0, 2); err != nil {
			return nil, err
		}
		s := strRecv(recv)
		sepV := optArg(args, 0, kwargs, "sep", nil)
		maxV, err := intArg(name, optArg(args, 1, kwargs, "maxsplit", int64(-1)))
		if err != nil {
			return nil, err
		}
		limit := int(maxV)
		var parts []string
		if sepV == nil {
			fields := strings.Fields(s)
			if limit >= 0 && len(fields) > limit+1 {
				if fromRight {
					head := strings.TrimRightFunc(s, unicode.IsSpace)
					for range limit {
						i := strings.LastIndexFunc(head, unicode.IsSpace)
						parts = append([]string{head[i+1:]}, parts...)
						head = strings.TrimRightFunc(head[:i], unicode.IsSpace)
					}
					parts = append([]string{strings.TrimSpace(head)}, parts...)
				} else {
					tail := strings.TrimLeftFunc(s, unicode.IsSpace)
					for range limit {
						i := strings.IndexFunc(tail, unicode.IsSpace)
						parts = append(parts, tail[:i])
						tail = strings.TrimLeftFunc(tail[i:], unicode.IsSpace)
					}
					parts = append(parts, tail)
				}
			} else {
				parts = fields
			}
		} else {
			sep, err := strArg(name, sepV)
			if err != nil {
				return nil, err
			}
			if sep == "" {
				return nil, errorf(ValueError, "empty separator")
			}
			switch {
			case limit < 0:
				parts = strings.Split(s, sep)
			case fromRight:
				for range limit {
					i := strings.LastIndex(s, sep)
					if i < 0 {
						break
					}
					parts = append([]string{s[i+len(sep):]}, parts...)
					s = s[:i]
				}
				parts = append([]string{s}, parts...)
			default:
				parts = strings.SplitN(s, sep, limit+1)
			}
		}
		return strList(parts), nil
	}
}

func strList(parts []string) *List {
	out := make([]Value, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	return NewList(out...)
}

func strFind(name string, last, raise bool) method {
	return func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		if err := arity(name, args, 1, 3); err != nil {
			return nil, err
		}
		sub, err := strArg(name, args[0])
		if err != nil {
			return nil, err
		}
		r := []rune(strRecv(recv))
		lo, hi, _, err := sliceIndices(optArg(args, 1, nil, "", nil), optArg(args, 2, nil, "", nil), nil, len(r))
		if err != nil {
			return nil, err
		}
		if hi < lo {
			hi = lo
		}
		window := string(r[lo:hi])
		var i int
		if last {
			i = strings.LastIndex(window, sub)
		} else {
			i = strings.Index(window, sub)
		}
		if i < 0 {
			if raise {
				return nil, errorf(ValueError, "substring not found")
			}
			return int64(-1), nil
		}
		return int64(lo + utf8.RuneCountInString(window[:i])), nil
	}
}

func strJustify(name string, align byte) method {
	return func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		if err := arity(name, args, 1, 2); err != nil {
			return nil, err
		}
		w, err := intArg(name, args[0])
		if err != nil {
			return nil, err
		}
		fill := ' '
		if len(args) == 2 {
			f, err := strArg(name, args[1])
			if err != nil {
				return nil, err
			}
			if utf8.RuneCountInString(f) != 1 {
				return nil, errorf(TypeError, "The fill character must be exactly one character long")
			}
			fill, _ = utf8.DecodeRuneInString(f)
		}
		return pad(strRecv(recv), fmtSpec{fill: fill, align: align, width: int(w)}, align), nil
	}
}

func strNoArgs(name string, fn func(string) Value) method {
	return func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		if err := arity(name, args, 0, 0); err != nil {
			return nil, err
		}
		return fn(strRecv(recv)), nil
	}
}

var strMethods = map[string]method{
	"upper":      strNoArgs("upper", func(s string) Value { return strings.ToUpper(s) }),
	"lower":      strNoArgs("lower", func(s string) Value { return lowerCase(s) }),
	"casefold":   strNoArgs("casefold", func(s string) Value { return cases.Fold().String(s) }),
	"title":      strNoArgs("title", func(s string) Value { return cases.Title(language.Und).String(s) }),
	"swapcase":   strNoArgs("swapcase", swapCase),
	"capitalize": strNoArgs("capitalize", capitalize),
	"splitlines": strNoArgs("splitlines", func(s string) Value {
		s = strings.ReplaceAll(s, "\r\n", "\n")
		s = strings.TrimSuffix(s, "\n")
		if s == "" {
			return NewList()
		}
		return strList(strings.Split(s, "\n"))
	}),
	"strip":      strStrip("strip", strings.Trim, strings.TrimSpace),
	"lstrip":     strStrip("lstrip", strings.TrimLeft, func(s string) string { return strings.TrimLeftFunc(s, unicode.IsSpace) }),
	"rstrip":     strStrip("rstrip", strings.TrimRight, func(s string) string { return strings.TrimRightFunc(s, unicode.IsSpace) }),
	"isdigit":    strPredicate("isdigit", unicode.IsDigit),
	"isnumeric":  strPredicate("isnumeric", unicode.IsNumber),
	"isdecimal":  strPredicate("isdecimal", unicode.IsDigit),
	"isalpha":    strPredicate("isalpha", unicode.IsLetter),
	"isalnum":    strPredicate("isalnum", func(r rune) bool { return unicode.IsLetter(r) || unicode.IsNumber(r) }),
	"isspace":    strPredicate("isspace", unicode.IsSpace),
	"startswith": strAffix("startswith", strings.HasPrefix),
	"endswith":   strAffix("endswith", strings.HasSuffix),
	"split":      strSplit("split", false),
	"rsplit":     strSplit("rsplit", true),
	"find":       strFind("find", false, false),
	"rfind":      strFind("rfind", true, false),
	"index":      strFind("index", false, true),
	"rindex":     strFind("rindex", true, true),
	"center":     strJustify("center", '^'),
	"ljust":      strJustify("ljust", '<'),
	"rjust":      strJustify("rjust", '>'),
	"isupper": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		s := strRecv(recv)
		return strings.ToUpper(s) == s && strings.ToLower(s) != s, arity("isupper", args, 0, 0)
	},
	"islower": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		s := strRecv(recv)
		return strings.ToLower(s) == s && strings.ToUpper(s) != s, arity("islower", args, 0, 0)
	},
	"join": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		if err := arity("join", args, 1, 1); err != nil {
			return nil, err
		}
		items, err := ToSlice(args[0])
		if err != nil {
			return nil, err
		}
		parts := make([]string, len(items))
		for i, it := range items {
			s, ok := it.(string)
			if !ok {
				return nil, errorf(TypeError, "sequence item %d: expected str instance, %s found", i, TypeName(it))
			}
			parts[i] = s
		}
		return strings.Join(parts, strRecv(recv)), nil
	},
	"replace": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		if err := arity("replace", args, 2, 3); err != nil {
			return nil, err
		}
		old, err := strArg("replace", args[0])
		if err != nil {
			return nil, err
		}
		repl, err := strArg("replace", args[1])
		if err != nil {
			return nil, err
		}
		n := int64(-1)
		if len(args) == 3 {
			if n, err = intArg("replace", args[2]); err != nil {
				return nil, err
			}
		}
		return strings.Replace(strRecv(recv), old, repl, int(n)), nil
	},
	"count": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		if err := arity("count", args, 1, 1); err != nil {
			return nil, err
		}
		sub, err := strArg("count", args[0])
		if err != nil {
			return nil, err
		}
		return int64(strings.Count(strRecv(recv), sub)), nil
	},
	"zfill": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		if err := arity("zfill", args, 1, 1); err != nil {
			return nil, err
		}
		w, err := intArg("zfill", args[0])
		if err != nil {
			return nil, err
		}
		s := strRecv(recv)
		sign := ""
		if s != "" && (s[0] == '-' || s[0] == '+') {
			sign, s = s[:1], s[1:]
		}
		return padNumber(sign, s, fmtSpec{fill: '0', align: '=', width: int(w)}), nil
	},
	"partition": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		if err := arity("partition", args, 1, 1); err != nil {
			return nil, err
		}
		sep, err := strArg("partition", args[0])
		if err != nil {
			return nil, err
		}
		before, after, found := strings.Cut(strRecv(recv), sep)
		if !found {
			return Tuple{before, "", ""}, nil
		}
		return Tuple{before, sep, after}, nil
	},
	"format": func(c *Context, recv Value, args []Value, kwargs *Dict) (Value, error) {
		return strFormat(c, strRecv(recv), args, kwargs)
	},
	"removeprefix": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		if err := arity("removeprefix", args, 1, 1); err != nil {
			return nil, err
		}
		p, err := strArg("removeprefix", args[0])
		return strings.TrimPrefix(strRecv(recv), p), err
	},
	"removesuffix": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		if err := arity("removesuffix", args, 1, 1); err != nil {
			return nil, err
		}
		p, err := strArg("removesuffix", args[0])
		return strings.TrimSuffix(strRecv(recv), p), err
	},
}

func swapCase(s string) Value {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsUpper(r):
			return unicode.ToLower(r)
		case unicode.IsLower(r):
			return unicode.ToUpper(r)
		}
		return r
	}, s)
}

func capitalize(s string) Value {
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + lowerCase(s[n:])
}

// ─── list and tuple ─────────────────────────────────────────────────────────

func seqIndexOf(name string, elems []Value, args []Value) (Value, error) {
	if err := arity(name, args, 1, 1); err != nil {
		return nil, err
	}
	for i, e := range elems {
		if Equal(e, args[0]) {
			return int64(i), nil
		}
	}
	return nil, errorf(ValueError, "%s is not in list", Repr(args[0]))
}

func seqCount(elems []Value, args []Value) (Value, error) {
	if err := arity("count", args, 1, 1); err != nil {
		return nil, err
	}
	n := int64(0)
	for _, e := range elems {
		if Equal(e, args[0]) {
			n++
		}
	}
	return n, nil
}

var tupleMethods = map[string]method{
	"index": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		return seqIndexOf("index", recv.(Tuple), args)
	},
	"count": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		return seqCount(recv.(Tuple), args)
	},
}

var listMethods = map[string]method{
	"append": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		if err := arity("append", args, 1, 1); err != nil {
			return nil, err
		}
		l := recv.(*List)
		l.Elems = append(l.Elems, args[0])
		return nil, nil
	},
	"extend": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		if err := arity("extend", args, 1, 1); err != nil {
			return nil, err
		}
		items, err := ToSlice(args[0])
		if err != nil {
			return nil, err
		}
		l := recv.(*List)
		l.Elems = append(l.Elems, items...)
		return nil, nil
	},
	"insert": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		if err := arity("insert", args, 2, 2); err != nil {
			return nil, err
		}
		l := recv.(*List)
		i, err := intArg("insert", args[0])
		if err != nil {
			return nil, err
		}
		n := int64(len(l.Elems))
		if i < 0 {
			i = max(i+n, 0)
		}
		i = min(i, n)
		l.Elems = slices.Insert(l.Elems, int(i), args[1])
		return nil, nil
	},
	"pop": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		if err := arity("pop", args, 0, 1); err != nil {
			return nil, err
		}
		l := recv.(*List)
		if len(l.Elems) == 0 {
			return nil, errorf(IndexError, "pop from empty list")
		}
		idx := Value(int64(-1))
		if len(args) == 1 {
			idx = args[0]
		}
		i, err := seqIndex("pop", idx, len(l.Elems))
		if err != nil {
			return nil, err
		}
		v := l.Elems[i]
		l.Elems = slices.Delete(l.Elems, i, i+1)
		return v, nil
	},
	"remove": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		if err := arity("remove", args, 1, 1); err != nil {
			return nil, err
		}
		l := recv.(*List)
		for i, e := range l.Elems {
			if Equal(e, args[0]) {
				l.Elems = slices.Delete(l.Elems, i, i+1)
				return nil, nil
			}
		}
		return nil, errorf(ValueError, "list.remove(x): x not in list")
	},
	"index": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		return seqIndexOf("index", recv.(*List).Elems, args)
	},
	"count": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		return seqCount(recv.(*List).Elems, args)
	},
	"sort": func(c *Context, recv Value, args []Value, kwargs *Dict) (Value, error) {
		if err := arity("sort", args, 0, 0); err != nil {
			return nil, err
		}
		key, _ := kwargs.GetStr("key")
		rev, _ := kwargs.GetStr("reverse")
		return nil, sortValues(c, recv.(*List).Elems, key, Truthy(rev))
	},
	"reverse": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		slices.Reverse(recv.(*List).Elems)
		return nil, arity("reverse", args, 0, 0)
	},
	"clear": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		recv.(*List).Elems = []Value{}
		return nil, arity("clear", args, 0, 0)
	},
	"copy": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		return NewList(append([]Value(nil), recv.(*List).Elems...)...), arity("copy", args, 0, 0)
	},
}

// ─── dict ───────────────────────────────────────────────────────────────────

var dictMethods = map[string]method{
	"keys": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		return NewList(recv.(*Dict).Keys()...), arity("keys", args, 0, 0)
	},
	"values": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		return NewList(recv.(*Dict).Values()...), arity("values", args, 0, 0)
	},
	"items": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		var out []Value
		recv.(*Dict).Items(func(k, v Value) bool {
			out = append(out, Tuple{k, v})
			return true
		})
		return NewList(out...), arity("items", args, 0, 0)
	},
	"get": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		if err := arity("get", args, 1, 2); err != nil {
			return nil, err
		}
		v, ok, err := recv.(*Dict).Get(args[0])
		if err != nil || ok {
			return v, err
		}
		if len(args) == 2 {
			return args[1], nil
		}
		return nil, nil
	},
	"pop": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		if err := arity("pop", args, 1, 2); err != nil {
			return nil, err
		}
		d := recv.(*Dict)
		v, ok, err := d.Get(args[0])
		if err != nil {
			return nil, err
		}
		if !ok {
			if len(args) == 2 {
				return args[1], nil
			}
			return nil, errorf(KeyError, "%s", Repr(args[0]))
		}
		_, err = d.Delete(args[0])
		return v, err
	},
	"popitem": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		d := recv.(*Dict)
		keys := d.Keys()
		if len(keys) == 0 {
			return nil, errorf(KeyError, "'popitem(): dictionary is empty'")
		}
		k := keys[len(keys)-1]
		v, _, _ := d.Get(k)
		_, err := d.Delete(k)
		return Tuple{k, v}, err
	},
	"setdefault": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		if err := arity("setdefault", args, 1, 2); err != nil {
			return nil, err
		}
		d := recv.(*Dict)
		v, ok, err := d.Get(args[0])
		if err != nil || ok {
			return v, err
		}
		var def Value
		if len(args) == 2 {
			def = args[1]
		}
		return def, d.Set(args[0], def)
	},
	"update": func(_ *Context, recv Value, args []Value, kwargs *Dict) (Value, error) {
		if err := arity("update", args, 0, 1); err != nil {
			return nil, err
		}
		d := recv.(*Dict)
		var err error
		if len(args) == 1 {
			err = mergeInto(d, args[0])
		}
		if err == nil && kwargs != nil {
			err = mergeInto(d, kwargs)
		}
		return nil, err
	},
	"clear": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		recv.(*Dict).Clear()
		return nil, arity("clear", args, 0, 0)
	},
	"copy": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		return recv.(*Dict).Copy(), arity("copy", args, 0, 0)
	},
}

// mergeInto adds a mapping or an iterable of pairs to d.
func mergeInto(d *Dict, src Value) error {
	if m, ok := src.(*Dict); ok {
		var err error
		m.Items(func(k, v Value) bool {
			err = d.Set(k, v)
			return err == nil
		})
		return err
	}
	return Iterate(src, func(pair Value) (bool, error) {
		kv, err := ToSlice(pair)
		if err != nil {
			return false, err
		}
		if len(kv) != 2 {
			return false, errorf(ValueError, "dictionary update sequence element has length %d; 2 is required", len(kv))
		}
		return true, d.Set(kv[0], kv[1])
	})
}

// ─── set ────────────────────────────────────────────────────────────────────

func setArg(name string, v Value) (*Set, error) {
	if s, ok := v.(*Set); ok {
		return s, nil
	}
	items, err := ToSlice(v)
	if err != nil {
		return nil, errorf(TypeError, "%s() argument must be iterable, not %s", name, TypeName(v))
	}
	return NewSet(items...)
}

func setCombine(name string, op func(a, b *Set) (Value, error)) method {
	return func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		out := Value(recv.(*Set).Copy())
		for _, a := range args {
			other, err := setArg(name, a)
			if err != nil {
				return nil, err
			}
			if out, err = op(out.(*Set), other); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
}

func setRelation(name string, rel func(a, b *Set) bool) method {
	return func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		if err := arity(name, args, 1, 1); err != nil {
			return nil, err
		}
		other, err := setArg(name, args[0])
		if err != nil {
			return nil, err
		}
		return rel(recv.(*Set), other), nil
	}
}

var setMethods = map[string]method{
	"add": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		if err := arity("add", args, 1, 1); err != nil {
			return nil, err
		}
		return nil, recv.(*Set).Add(args[0])
	},
	"remove": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		if err := arity("remove", args, 1, 1); err != nil {
			return nil, err
		}
		ok, err := recv.(*Set).Remove(args[0])
		if err == nil && !ok {
			err = errorf(KeyError, "%s", Repr(args[0]))
		}
		return nil, err
	},
	"discard": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		if err := arity("discard", args, 1, 1); err != nil {
			return nil, err
		}
		_, err := recv.(*Set).Remove(args[0])
		return nil, err
	},
	"pop": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		s := recv.(*Set)
		items := s.Items()
		if len(items) == 0 {
			return nil, errorf(KeyError, "'pop from an empty set'")
		}
		_, err := s.Remove(items[0])
		return items[0], err
	},
	"clear": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		recv.(*Set).Clear()
		return nil, arity("clear", args, 0, 0)
	},
	"copy": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		return recv.(*Set).Copy(), arity("copy", args, 0, 0)
	},
	"update": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		s := recv.(*Set)
		for _, a := range args {
			if err := Iterate(a, func(v Value) (bool, error) { return true, s.Add(v) }); err != nil {
				return nil, err
			}
		}
		return nil, nil
	},
	"union": setCombine("union", func(a, b *Set) (Value, error) {
		return setOp(ast.BitOr, a, b)
	}),
	"intersection": setCombine("intersection", func(a, b *Set) (Value, error) {
		return setOp(ast.BitAnd, a, b)
	}),
	"difference": setCombine("difference", func(a, b *Set) (Value, error) {
		return setOp(ast.Sub, a, b)
	}),
	"symmetric_difference": setCombine("symmetric_difference", func(a, b *Set) (Value, error) {
		return setOp(ast.BitXor, a, b)
	}),
	"issubset":   setRelation("issubset", subset),
	"issuperset": setRelation("issuperset", func(a, b *Set) bool { return subset(b, a) }),
	"isdisjoint": setRelation("isdisjoint", func(a, b *Set) bool {
		for _, v := range a.Items() {
			if ok, _ := b.Has(v); ok {
				return false
			}
		}
		return true
	}),
}

// ─── datetime and timedelta ─────────────────────────────────────────────────

var dateTimeMethods = map[string]method{
	"isoformat": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		sep := "T"
		if len(args) > 0 {
			s, err := strArg("isoformat", args[0])
			if err != nil {
				return nil, err
			}
			sep = s
		}
		t := recv.(DateTime).T
		layout := "2006-01-02" + sep + "15:04:05"
		if t.Nanosecond() >= 1000 {
			layout += ".000000"
		}
		if t.Location() != time.Local {
			layout += "-07:00"
		}
		return t.Format(layout), nil
	},
	"strftime": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		if err := arity("strftime", args, 1, 1); err != nil {
			return nil, err
		}
		layout, err := strArg("strftime", args[0])
		if err != nil {
			return nil, err
		}
		return strftime(recv.(DateTime).T, layout), nil
	},
	"timestamp": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		t := recv.(DateTime).T
		return float64(t.UnixNano()) / 1e9, arity("timestamp", args, 0, 0)
	},
	"weekday": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		return int64((recv.(DateTime).T.Weekday() + 6) % 7), arity("weekday", args, 0, 0)
	},
	"isoweekday": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		return int64((recv.(DateTime).T.Weekday()+6)%7 + 1), arity("isoweekday", args, 0, 0)
	},
	"date": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		t := recv.(DateTime).T
		return DateTime{T: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())}, arity("date", args, 0, 0)
	},
	"replace": func(_ *Context, recv Value, args []Value, kwargs *Dict) (Value, error) {
		if err := arity("replace", args, 0, 0); err != nil {
			return nil, err
		}
		t := recv.(DateTime).T
		f := map[string]int{
			"year": t.Year(), "month": int(t.Month()), "day": t.Day(),
			"hour": t.Hour(), "minute": t.Minute(), "second": t.Second(),
			"microsecond": t.Nanosecond() / 1000,
		}
		var err error
		kwargs.Items(func(k, v Value) bool {
			name, _ := k.(string)
			if _, ok := f[name]; !ok {
				err = errorf(TypeError, "'%s' is an invalid keyword argument for replace()", name)
				return false
			}
			n, ok := toInt(v)
			if !ok {
				err = errorf(TypeError, "an integer is required (got type %s)", TypeName(v))
				return false
			}
			f[name] = int(n)
			return true
		})
		if err != nil {
			return nil, err
		}
		return DateTime{T: time.Date(f["year"], time.Month(f["month"]), f["day"], f["hour"], f["minute"], f["second"], f["microsecond"]*1000, t.Location())}, nil
	},
}

var timeDeltaMethods = map[string]method{
	"total_seconds": func(_ *Context, recv Value, args []Value, _ *Dict) (Value, error) {
		return recv.(TimeDelta).D.Seconds(), arity("total_seconds", args, 0, 0)
	},
}
