package eval

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// Regular expression flags, matching the re module's values.
const (
	reIgnoreCase = 2
	reMultiline  = 8
	reDotAll     = 16
)

// pattern is a compiled expression plus the anchored variants match and
// fullmatch need.
type pattern struct {
	src    string
	flags  int64
	search *regexp.Regexp
	prefix *regexp.Regexp
	full   *regexp.Regexp
}

var (
	patternMu    sync.Mutex
	patternCache = map[string]*pattern{}
)

func compilePattern(src string, flags int64) (*pattern, error) {
	key := strconv.FormatInt(flags, 10) + ":" + src
	patternMu.Lock()
	defer patternMu.Unlock()
	if p, ok := patternCache[key]; ok {
		return p, nil
	}
	prefix := ""
	if flags&(reIgnoreCase|reMultiline|reDotAll) != 0 {
		prefix = "(?"
		if flags&reIgnoreCase != 0 {
			prefix += "i"
		}
		if flags&reMultiline != 0 {
			prefix += "m"
		}
		if flags&reDotAll != 0 {
			prefix += "s"
		}
		prefix += ")"
	}
	search, err := regexp.Compile(prefix + src)
	if err != nil {
		return nil, errorf(ValueError, "bad regular expression %s: %v", quote(src), err)
	}
	p := &pattern{
		src:    src,
		flags:  flags,
		search: search,
		prefix: regexp.MustCompile(prefix + `\A(?:` + src + `)`),
		full:   regexp.MustCompile(prefix + `\A(?:` + src + `)\z`),
	}
	if len(patternCache) > 256 {
		clear(patternCache)
	}
	patternCache[key] = p
	return p, nil
}

// patternArg accepts either a pattern string or a compiled pattern object.
func patternArg(name string, v Value, flags Value) (*pattern, error) {
	switch p := v.(type) {
	case string:
		f := int64(0)
		if flags != nil {
			n, err := intArg(name, flags)
			if err != nil {
				return nil, err
			}
			f = n
		}
		return compilePattern(p, f)
	case *Object:
		if cp, ok := p.Attrs["__pattern__"].(*pattern); ok {
			return cp, nil
		}
	}
	return nil, errorf(TypeError, "first argument must be string or compiled pattern")
}

func matchObject(p *pattern, s string, loc []int) Value {
	if loc == nil {
		return nil
	}
	names := p.search.SubexpNames()
	group := func(g Value) (Value, error) {
		i, err := groupIndex(p, names, g)
		if err != nil {
			return nil, err
		}
		if loc[2*i] < 0 {
			return nil, nil
		}
		return s[loc[2*i]:loc[2*i+1]], nil
	}
	span := func(name string, which int) *Builtin {
		return fn(name, func(_ *Context, args []Value, _ *Dict) (Value, error) {
			i, err := groupIndex(p, names, optArg(args, 0, nil, "", int64(0)))
			if err != nil {
				return nil, err
			}
			start, end := runeOffset(s, loc[2*i]), runeOffset(s, loc[2*i+1])
			switch which {
			case 0:
				return start, nil
			case 1:
				return end, nil
			}
			return Tuple{start, end}, nil
		})
	}
	return &Object{
		Kind: "re.Match",
		Name: p.src,
		Attrs: map[string]Value{
			"__repr__":    "<re.Match object; span=(" + Str(runeOffset(s, loc[0])) + ", " + Str(runeOffset(s, loc[1])) + "), match=" + quote(s[loc[0]:loc[1]]) + ">",
			"__getitem__": group,
			"string":      s,
			"group": fn("group", func(_ *Context, args []Value, _ *Dict) (Value, error) {
				if len(args) <= 1 {
					return group(optArg(args, 0, nil, "", int64(0)))
				}
				out := make(Tuple, len(args))
				for i, a := range args {
					v, err := group(a)
					if err != nil {
						return nil, err
					}
					out[i] = v
				}
				return out, nil
			}),
			"groups": fn("groups", func(_ *Context, args []Value, kwargs *Dict) (Value, error) {
				def := optArg(args, 0, kwargs, "default", nil)
				out := make(Tuple, len(names)-1)
				for i := range out {
					if loc[2*(i+1)] < 0 {
						out[i] = def
						continue
					}
					out[i] = s[loc[2*(i+1)]:loc[2*(i+1)+1]]
				}
				return out, nil
			}),
			"groupdict": fn("groupdict", func(_ *Context, args []Value, kwargs *Dict) (Value, error) {
				def := optArg(args, 0, kwargs, "default", nil)
				out := NewDict()
				for i, n := range names {
					if n == "" {
						continue
					}
					if loc[2*i] < 0 {
						out.SetStr(n, def)
						continue
					}
					out.SetStr(n, s[loc[2*i]:loc[2*i+1]])
				}
				return out, nil
			}),
			"start": span("start", 0),
			"end":   span("end", 1),
			"span":  span("span", 2),
		},
	}
}

func groupIndex(p *pattern, names []string, g Value) (int, error) {
	switch g := g.(type) {
	case string:
		if i := p.search.SubexpIndex(g); i >= 0 {
			return i, nil
		}
	default:
		if i, ok := toInt(g); ok && i >= 0 && int(i) < len(names) {
			return int(i), nil
		}
	}
	return 0, errorf(IndexError, "no such group")
}

func runeOffset(s string, byteOff int) int64 {
	if byteOff < 0 {
		return -1
	}
	return int64(len([]rune(s[:byteOff])))
}

// expandTemplate converts \1, \g<1> and \g<name> references into the
// ${1} and ${name} syntax of regexp.Expand.
func expandTemplate(repl string) string {
	var b strings.Builder
	for i := 0; i < len(repl); i++ {
		ch := repl[i]
		switch {
		case ch == '$':
			b.WriteString("$$")
		case ch == '\\' && i+1 < len(repl):
			next := repl[i+1]
			switch {
			case next >= '0' && next <= '9':
				j := i + 1
				for j < len(repl) && j < i+3 && repl[j] >= '0' && repl[j] <= '9' {
					j++
				}
				b.WriteString("${" + repl[i+1:j] + "}")
				i = j - 1
			case next == 'g' && i+2 < len(repl) && repl[i+2] == '<':
				end := strings.IndexByte(repl[i+3:], '>')
				if end < 0 {
					b.WriteByte(ch)
					continue
				}
				b.WriteString("${" + repl[i+3:i+3+end] + "}")
				i += 3 + end
			case next == 'n':
				b.WriteByte('\n')
				i++
			case next == 't':
				b.WriteByte('\t')
				i++
			case next == '\\':
				b.WriteByte('\\')
				i++
			default:
				b.WriteByte(ch)
			}
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

func reSub(c *Context, p *pattern, repl Value, s string, count int64) (string, int64, error) {
	limit := -1
	if count > 0 {
		limit = int(count)
	}
	matches := p.search.FindAllStringSubmatchIndex(s, limit)
	var (
		b    strings.Builder
		last int
	)
	tmpl, isStr := repl.(string)
	if isStr {
		tmpl = expandTemplate(tmpl)
	}
	for _, m := range matches {
		b.WriteString(s[last:m[0]])
		if isStr {
			b.Write(p.search.ExpandString(nil, tmpl, s, m))
		} else {
			v, err := c.Call(repl, []Value{matchObject(p, s, m)}, nil)
			if err != nil {
				return "", 0, err
			}
			str, ok := v.(string)
			if !ok {
				return "", 0, errorf(TypeError, "expected str instance, %s found", TypeName(v))
			}
			b.WriteString(str)
		}
		last = m[1]
	}
	b.WriteString(s[last:])
	return b.String(), int64(len(matches)), nil
}

func reFindall(p *pattern, s string) Value {
	var out []Value
	for _, m := range p.search.FindAllStringSubmatch(s, -1) {
		switch len(m) {
		case 1:
			out = append(out, m[0])
		case 2:
			out = append(out, m[1])
		default:
			groups := make(Tuple, len(m)-1)
			for i, g := range m[1:] {
				groups[i] = g
			}
			out = append(out, groups)
		}
	}
	return NewList(out...)
}

func reSplit(p *pattern, s string, maxsplit int64) Value {
	limit := -1
	if maxsplit > 0 {
		limit = int(maxsplit)
	}
	var (
		out  []Value
		last int
	)
	for _, m := range p.search.FindAllStringSubmatchIndex(s, limit) {
		out = append(out, s[last:m[0]])
		for g := 1; g < len(m)/2; g++ {
			if m[2*g] < 0 {
				out = append(out, nil)
				continue
			}
			out = append(out, s[m[2*g]:m[2*g+1]])
		}
		last = m[1]
	}
	return NewList(append(out, s[last:])...)
}

// reOp builds one operation shared by the module functions and compiled
// pattern methods. pat is nil for module functions, which take the
// pattern as their first argument.
func reOp(name string, pat *pattern) *Builtin {
	return fn(name, func(c *Context, args []Value, kwargs *Dict) (Value, error) {
		p := pat
		if p == nil {
			if len(args) == 0 {
				return nil, errorf(TypeError, "%s() missing required argument 'pattern'", name)
			}
			flagPos := 2
			switch name {
			case "sub", "subn":
				flagPos = 4
			case "split":
				flagPos = 3
			}
			var err error
			if p, err = patternArg(name, args[0], optArg(args, flagPos, kwargs, "flags", nil)); err != nil {
				return nil, err
			}
			args = args[1:]
		}
		switch name {
		case "sub", "subn":
			if len(args) < 2 {
				return nil, errorf(TypeError, "%s() missing required arguments", name)
			}
			s, err := strArg(name, args[1])
			if err != nil {
				return nil, err
			}
			count, err := intArg(name, optArg(args, 2, kwargs, "count", int64(0)))
			if err != nil {
				return nil, err
			}
			out, n, err := reSub(c, p, args[0], s, count)
			if err != nil {
				return nil, err
			}
			if name == "subn" {
				return Tuple{out, n}, nil
			}
			return out, nil
		}

		if len(args) == 0 {
			return nil, errorf(TypeError, "%s() missing required argument 'string'", name)
		}
		s, err := strArg(name, args[0])
		if err != nil {
			return nil, err
		}
		switch name {
		case "match":
			return matchObject(p, s, p.prefix.FindStringSubmatchIndex(s)), nil
		case "fullmatch":
			return matchObject(p, s, p.full.FindStringSubmatchIndex(s)), nil
		case "search":
			return matchObject(p, s, p.search.FindStringSubmatchIndex(s)), nil
		case "findall":
			return reFindall(p, s), nil
		case "split":
			n, err := intArg(name, optArg(args, 1, kwargs, "maxsplit", int64(0)))
			if err != nil {
				return nil, err
			}
			return reSplit(p, s, n), nil
		}
		return nil, errorf(NotImplementedError, "re.%s", name)
	})
}

var reOpNames = []string{"match", "fullmatch", "search", "findall", "split", "sub", "subn"}

func patternObject(p *pattern) *Object {
	attrs := map[string]Value{
		"__pattern__": p,
		"__repr__":    "re.compile(" + quote(p.src) + ")",
		"pattern":     p.src,
		"flags":       p.flags,
		"groups":      int64(p.search.NumSubexp()),
	}
	for _, name := range reOpNames {
		attrs[name] = reOp(name, p)
	}
	return &Object{Kind: "re.Pattern", Name: p.src, Attrs: attrs}
}

func reModule() *Object {
	attrs := map[string]Value{
		"I":          int64(reIgnoreCase),
		"IGNORECASE": int64(reIgnoreCase),
		"M":          int64(reMultiline),
		"MULTILINE":  int64(reMultiline),
		"S":          int64(reDotAll),
		"DOTALL":     int64(reDotAll),
		"compile": fn("compile", func(_ *Context, args []Value, kwargs *Dict) (Value, error) {
			if err := arity("compile", args, 1, 2); err != nil {
				return nil, err
			}
			p, err := patternArg("compile", args[0], optArg(args, 1, kwargs, "flags", nil))
			if err != nil {
				return nil, err
			}
			return patternObject(p), nil
		}),
		"escape": fn("escape", func(_ *Context, args []Value, _ *Dict) (Value, error) {
			if err := arity("escape", args, 1, 1); err != nil {
				return nil, err
			}
			s, err := strArg("escape", args[0])
			return regexp.QuoteMeta(s), err
		}),
	}
	for _, name := range reOpNames {
		attrs[name] = reOp(name, nil)
	}
	return module("re", attrs)
}
