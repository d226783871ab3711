package eval

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nerrad567/gray-logic-script/internal/script/parser"
)

// ─── Fake Host ──────────────────────────────────────────────────────

// fakeHost stores state values as strings, as the real state store does.
type fakeHost struct {
	mu     sync.Mutex
	states map[string]Value
	funcs  map[string]Value
}

func newFakeHost() *fakeHost {
	return &fakeHost{states: make(map[string]Value), funcs: make(map[string]Value)}
}

func (h *fakeHost) Lookup(name string) (Value, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.funcs[name]
	return v, ok
}

func (h *fakeHost) StateGet(name string) (Value, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.states[name]
	return v, ok
}

func (h *fakeHost) StateSet(name string, value Value, _ *Dict) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.states[name] = Str(value)
	return nil
}

// recordLogger keeps every message logged through it.
type recordLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *recordLogger) add(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, level+": "+msg)
}

func (l *recordLogger) Debug(msg string, _ ...any) { l.add("debug", msg) }
func (l *recordLogger) Info(msg string, _ ...any)  { l.add("info", msg) }
func (l *recordLogger) Warn(msg string, _ ...any)  { l.add("warn", msg) }
func (l *recordLogger) Error(msg string, _ ...any) { l.add("error", msg) }

func (l *recordLogger) messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.msgs))
	copy(out, l.msgs)
	return out
}

// ─── Helper ─────────────────────────────────────────────────────────

func newTestContext(t *testing.T, host Host) (*Context, *recordLogger) {
	t.Helper()
	c := NewContext(context.Background(), "test", nil, host)
	c.Filename = "test.py"
	log := &recordLogger{}
	c.SetLogger(log)
	return c, log
}

func evalIn(t *testing.T, c *Context, src string) Value {
	t.Helper()
	mod, err := parser.Parse(src, "test.py")
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	return c.Eval(mod, nil)
}

// run evaluates src in a fresh context and returns the repr of the result.
func run(t *testing.T, src string) string {
	t.Helper()
	c, _ := newTestContext(t, newFakeHost())
	v := evalIn(t, c, src)
	if err := c.Err(); err != nil {
		t.Fatalf("eval %q: %v", src, err)
	}
	return Repr(v)
}

// runErr evaluates src and returns the recorded error.
func runErr(t *testing.T, src string) *Error {
	t.Helper()
	c, _ := newTestContext(t, newFakeHost())
	if v := evalIn(t, c, src); v != nil {
		t.Fatalf("eval %q = %s, want nil on error", src, Repr(v))
	}
	if c.Err() == nil {
		t.Fatalf("eval %q: expected an error", src)
	}
	return c.Err()
}

// ─── Core Language ──────────────────────────────────────────────────

func TestEval(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"1", "1"},
		{"1+1", "2"},
		{"1+2*3-2", "5"},
		{"1-1", "0"},
		{"4/2", "2.0"},
		{"4**2", "16"},
		{"7 // -2", "-4"},
		{"-7 % 3", "2"},
		{"2 ** -1", "0.5"},
		{"1 << 3", "8"},
		{"True + True", "2"},
		{"'ab' * 3", "'ababab'"},
		{"[1] * 3", "[1, 1, 1]"},
		{"x = 1; x < 2", "True"},
		{"x = 1; 0 < x < 2", "True"},
		{"x = 1; 0 < x < 2 < -x", "False"},
		{"1 and 2", "2"},
		{"1 and 0", "0"},
		{"0 or 1", "1"},
		{"0 or 0", "0"},
		{"not 0", "True"},
		{"None is None", "True"},
		{"3 in [1, 2, 3]", "True"},
		{"'b' not in 'abc'", "False"},
		{"f'{1} {2}'", "'1 2'"},
		{"'foo' + 'bar'", "'foobar'"},
		{"x = 5; y = 2; x + y", "7"},
		{"'hello'.find('l')", "2"},
		{"'abcd'.upper()", "'ABCD'"},
		{"len('abcd')", "4"},
		{"1 if 0 else 2", "2"},
		{"x = 1; x += 3; x", "4"},
		{"if 1: x = 10\nelse: x = 20\nx", "10"},
		{"if 0: x = 10\nelse: x = 20\nx", "20"},
		{"i = 0\nwhile i < 5: i += 1\ni", "5"},
		{"i = 0\nwhile i < 5: i += 2\ni", "6"},
		{"i = 0\nwhile i < 10:\n    i += 1\n    if i >= 6: break\ni", "6"},
		{"i = 0\nk = 10\nwhile i < 10:\n    i += 1\n    if i <= 6: continue\n    k += 2\nk", "18"},
		{"i = 1; break; i = 1/0", "None"},
		{"s = 0\nfor i in range(5):\n    s += i\ns", "10"},
		{"s = 0\nfor i in range(5):\n    s += i\nelse:\n    s = -1\ns", "-1"},
		{"s = 0\nfor i in range(5):\n    if i == 2: break\nelse:\n    s = -1\ns", "0"},
		{"z = {'foo': 'bar', 'foo2': 12}; z['foo'] = 'bar2'; z", "{'foo': 'bar2', 'foo2': 12}"},
		{"z = {'foo': 'bar', 'foo2': 12}; z['foo'] = 'bar2'; z.keys()", "['foo', 'foo2']"},
		{"z = {'foo', 'bar', 12}; z", "{'foo', 'bar', 12}"},
		{"x = dict(key1 = 'value1', key2 = 'value2'); x", "{'key1': 'value1', 'key2': 'value2'}"},
		{"x = {'key1': 'value1', 'key2': 'value2', 'key3': 'value3'}; del x['key1']; x", "{'key2': 'value2', 'key3': 'value3'}"},
		{"x = {'key1': 'value1', 'key2': 'value2', 'key3': 'value3'}; del x['key1'], x['key2']; x", "{'key3': 'value3'}"},
		{"z = {'foo', 'bar', 12}; z.remove(12); z.add(20); z", "{'foo', 'bar', 20}"},
		{"z = [0, 1, 2, 3, 4, 5, 6]; z[1:5:2] = [4, 5]; z", "[0, 4, 2, 5, 4, 5, 6]"},
		{"import random as rand, math as m\n[rand.uniform(10,10), m.sqrt(1024)]", "[10.0, 32.0]"},
		{"import cmath\ncmath.sqrt(1024)", "None"},
		{"from math import sqrt as sqroot\nsqroot(1024)", "32.0"},
		{"a, *b, c = [1, 2, 3, 4]\n[a, b, c]", "[1, [2, 3], 4]"},
		{"a = b = 3\n[a, b]", "[3, 3]"},
		{"x = [1, 2]\nx[0], x[1] = x[1], x[0]\nx", "[2, 1]"},
		{"x = {}\nx.setdefault('a', []).append(1)\nx", "{'a': [1]}"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			c, _ := newTestContext(t, newFakeHost())
			got := Repr(evalIn(t, c, tt.src))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("eval mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEvalFunctions(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "defaults",
			src: `
def foo(bar=6):
    bar += 2
    return bar
    bar += 5
    return 1000
[foo(), foo(5), foo('xxx' if False else 98)]
`,
			want: "[8, 7, 100]",
		},
		{
			name: "for loop return",
			src: `
def foo(cnt=5):
    sum = 0
    for i in range(cnt):
        sum += i
        if i == 6:
            sum += 1000
            return sum
    return sum
[foo(3), foo(6), foo(10), foo(20), foo()]
`,
			want: "[3, 15, 1021, 1021, 10]",
		},
		{
			name: "while loop return",
			src: `
def foo(cnt=5):
    sum = 0
    i = 0
    while i < cnt:
        sum += i
        if i == 6:
            sum += 1000
            return sum
        i += 1
    return sum
[foo(3), foo(6), foo(10), foo(20), foo()]
`,
			want: "[3, 15, 1021, 1021, 10]",
		},
		{
			name: "varargs and kwargs",
			src: `
def foo(arg1=None, arg2=None, *args, **kwargs):
    return [arg1, arg2, args, kwargs]
def bar(*args, **kwargs):
    return foo(*args, **kwargs)
[bar(30, 123, a=10, b=3), bar(40, 3, 7, 8, 9, a=10), bar(arg2=123, arg1=42)]
`,
			want: "[[30, 123, (), {'a': 10, 'b': 3}], [40, 3, (7, 8, 9), {'a': 10}], [42, 123, (), {}]]",
		},
		{
			name: "keyword only",
			src: `
def foo(a, *, b=2, c):
    return (a, b, c)
foo(1, c=3)
`,
			want: "(1, 2, 3)",
		},
		{
			name: "unknown keyword ignored",
			src: `
def foo(a, b):
    return a + b
foo(1, 2, trigger_type='state')
`,
			want: "3",
		},
		{
			name: "recursion",
			src: `
def fib(n):
    return n if n < 2 else fib(n - 1) + fib(n - 2)
fib(15)
`,
			want: "610",
		},
		{
			name: "function as value",
			src:  "def twice(x, y=2):\n    return x * y\nf = twice\n[f(3), f(3, 3)]",
			want: "[6, 9]",
		},
		{
			name: "docstring",
			src:  "def f():\n    '''Turns the lights on.'''\n    pass\nf.__doc__",
			want: "'Turns the lights on.'",
		},
		{
			name: "global",
			src:  "x = 1\ndef f():\n    global x\n    x = 5\nf()\nx",
			want: "5",
		},
		{
			name: "local shadows global",
			src:  "x = 1\ndef f():\n    x = 5\n    return x\n[f(), x]",
			want: "[5, 1]",
		},
		{
			name: "nonlocal",
			src: `
def outer():
    y = 1
    def inner():
        nonlocal y
        y = 2
    inner()
    return y
outer()
`,
			want: "2",
		},
		{
			name: "nonlocal read",
			src: `
def outer():
    y = 7
    def inner():
        nonlocal y
        return y * 2
    return inner()
outer()
`,
			want: "14",
		},
		{
			name: "keyword only after varargs",
			src: `
def foo(x=30, *args, y=123, **kwargs):
    return [x, y, args, kwargs]
[foo(a=10, b=3), foo(40, 7, 8, 9, a=10, y=3)]
`,
			want: "[[30, 123, (), {'a': 10, 'b': 3}], [40, 3, (7, 8, 9), {'a': 10}]]",
		},
		{
			name: "global declared later in nested block",
			src: `
x = 1
def f():
    x = 5
    if True:
        global x
f()
x
`,
			want: "5",
		},
		{
			name: "nonlocal declared later in nested block",
			src: `
def outer():
    y = 1
    def inner():
        y = 2
        if True:
            nonlocal y
    inner()
    return y
outer()
`,
			want: "2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, run(t, tt.src)); diff != "" {
				t.Errorf("result mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEvalBuiltins(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"abs(-3)", "3"},
		{"abs(-2.5)", "2.5"},
		{"all([])", "True"},
		{"any([0, '', 1])", "True"},
		{"chr(65) + str(ord('a'))", "'A97'"},
		{"divmod(-7, 2)", "(-4, 1)"},
		{"hex(255)", "'0xff'"},
		{"bin(5)", "'0b101'"},
		{"int('ff', 16)", "255"},
		{"int(' 42 ')", "42"},
		{"int(3.9)", "3"},
		{"float('1.5')", "1.5"},
		{"str(None)", "'None'"},
		{"bool([])", "False"},
		{"list('ab')", "['a', 'b']"},
		{"tuple([1])", "(1,)"},
		{"sorted([3, 1, 2], reverse=True)", "[3, 2, 1]"},
		{"sorted(['bb', 'a', 'ccc'], key=len)", "['a', 'bb', 'ccc']"},
		{"max([1, 5, 3])", "5"},
		{"max([], default=-1)", "-1"},
		{"min(4, 2, 8)", "2"},
		{"min(['aa', 'b'], key=len)", "'b'"},
		{"sum([1, 2, 3], 10)", "16"},
		{"sum([0.5, 0.25])", "0.75"},
		{"list(zip([1, 2], [3, 4, 5]))", "[(1, 3), (2, 4)]"},
		{"list(enumerate('ab', 1))", "[(1, 'a'), (2, 'b')]"},
		{"def dbl(x): return x * 2\nlist(map(dbl, [1, 2]))", "[2, 4]"},
		{"list(filter(None, [0, 1, '', 'a']))", "[1, 'a']"},
		{"list(reversed(range(3)))", "[2, 1, 0]"},
		{"round(2.5)", "2"},
		{"round(3.5)", "4"},
		{"round(2.675, 2)", "2.67"},
		{"round(1234, -2)", "1200"},
		{"pow(3, 4, 5)", "1"},
		{"pow(2, 10)", "1024"},
		{"type(1) == int", "True"},
		{"type('a').__name__", "'str'"},
		{"isinstance(True, int)", "True"},
		{"isinstance(1.0, (int, str))", "False"},
		{"callable(len)", "True"},
		{"repr('a')", "\"'a'\""},
		{"format(3.14159, '.2f')", "'3.14'"},
		{"list(range(10))[2:8:3]", "[2, 5]"},
		{"len(range(0, 10, 3))", "4"},
		{"set([1, 1, 2])", "{1, 2}"},
		{"dict([('a', 1)], b=2)", "{'a': 1, 'b': 2}"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, run(t, tt.src)); diff != "" {
				t.Errorf("result mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEvalMethods(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"'a,b,,c'.split(',')", "['a', 'b', '', 'c']"},
		{"' x  y '.split()", "['x', 'y']"},
		{"'a-b-c'.rsplit('-', 1)", "['a-b', 'c']"},
		{"'-'.join(['a', 'b'])", "'a-b'"},
		{"'hello world'.title()", "'Hello World'"},
		{"'hello'.capitalize()", "'Hello'"},
		{"'  pad '.strip()", "'pad'"},
		{"'xxhixx'.strip('x')", "'hi'"},
		{"'abc'.startswith(('x', 'a'))", "True"},
		{"'aaa'.replace('a', 'b', 2)", "'bba'"},
		{"'ab'.center(6, '*')", "'**ab**'"},
		{"'42'.zfill(5)", "'00042'"},
		{"'-42'.zfill(5)", "'-0042'"},
		{"'k=v'.partition('=')", "('k', '=', 'v')"},
		{"'light.kitchen'.removeprefix('light.')", "'kitchen'"},
		{"'123'.isdigit()", "True"},
		{"l = [3, 1, 2]\nl.sort()\nl", "[1, 2, 3]"},
		{"l = [1, 2, 3]\n[l.pop(), l.pop(0), l]", "[3, 1, [2]]"},
		{"l = [1]\nl.extend((2, 3))\nl.insert(0, 0)\nl", "[0, 1, 2, 3]"},
		{"[1, 2, 2].count(2)", "2"},
		{"d = {'a': 1}\nd.get('b', 5)", "5"},
		{"d = {'a': 1}\nd.update(b=2)\nd.items()", "[('a', 1), ('b', 2)]"},
		{"d = {'a': 1, 'b': 2}\n[d.pop('a'), d]", "[1, {'b': 2}]"},
		{"{1, 2}.union([3])", "{1, 2, 3}"},
		{"{1, 2, 3} & {2, 3, 4}", "{2, 3}"},
		{"{1, 2}.issubset([1, 2, 3])", "True"},
		{"(1.0).is_integer()", "True"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, run(t, tt.src)); diff != "" {
				t.Errorf("result mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// ─── Formatting ─────────────────────────────────────────────────────

func TestFormatValue(t *testing.T) {
	tests := []struct {
		v    Value
		spec string
		want string
	}{
		{3.14159, ".2f", "3.14"},
		{int64(42), "05d", "00042"},
		{int64(42), ">6", "    42"},
		{"ab", "^6", "  ab  "},
		{"ab", "*<4", "ab**"},
		{int64(1234567), ",", "1,234,567"},
		{1234567.891, ",.2f", "1,234,567.89"},
		{int64(255), "#x", "0xff"},
		{int64(255), "08b", "11111111"},
		{0.5, "%", "50.000000%"},
		{0.25, ".0%", "25%"},
		{int64(-3), "+d", "-3"},
		{int64(3), "+d", "+3"},
		{1e6, "g", "1e+06"},
		{1.5, "", "1.5"},
		{1.5, "e", "1.500000e+00"},
		{true, "", "True"},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := FormatValue(tt.v, tt.spec)
			if err != nil {
				t.Fatalf("FormatValue(%v, %q): %v", tt.v, tt.spec, err)
			}
			if got != tt.want {
				t.Errorf("FormatValue(%v, %q) = %q, want %q", tt.v, tt.spec, got, tt.want)
			}
		})
	}
}

func TestStringFormatting(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{`name = 'bob'; f"hi {name!r:>7} {2*3:03d}"`, `"hi   'bob' 006"`},
		{`x = 3.14159; f"{x:.{2}f}"`, "'3.14'"},
		{`f"{{literal}}"`, "'{literal}'"},
		{`'%s is %d years, %.1f%%' % ('al', 30, 1.26)`, "'al is 30 years, 1.3%'"},
		{`'%(a)s-%(b)05.1f' % {'a': 'x', 'b': 2.5}`, "'x-002.5'"},
		{`'%-4s|' % 'ab'`, "'ab  |'"},
		{`'%x %o %r' % (255, 8, 'q')`, "\"ff 10 'q'\""},
		{`'{0}-{1}-{0} {n}'.format('a', 'b', n=3)`, "'a-b-a 3'"},
		{`'{:>5}|{:<3}|'.format('r', 'l')`, "'    r|l  |'"},
		{`'{d[k]} {t[1]}'.format(d={'k': 'v'}, t=(1, 2))`, "'v 2'"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, run(t, tt.src)); diff != "" {
				t.Errorf("result mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// ─── Subscripts ─────────────────────────────────────────────────────

func TestSlicing(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"[1, 2, 3, 4, 5][::-1]", "[5, 4, 3, 2, 1]"},
		{"'hello'[1:-1]", "'ell'"},
		{"'hello'[::2]", "'hlo'"},
		{"(1, 2, 3)[-1]", "3"},
		{"(1, 2, 3)[1:]", "(2, 3)"},
		{"[1, 2, 3][5:]", "[]"},
		{"x = [1, 2, 3, 4]\ndel x[1:3]\nx", "[1, 4]"},
		{"x = [1, 2, 3]\nx[1:2] = ['a', 'b', 'c']\nx", "[1, 'a', 'b', 'c', 3]"},
		{"x = list(range(6))\ndel x[::2]\nx", "[1, 3, 5]"},
		{"range(10)[-2]", "8"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, run(t, tt.src)); diff != "" {
				t.Errorf("result mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// ─── Modules ────────────────────────────────────────────────────────

func TestModules(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"import math\n[math.floor(2.7), math.ceil(2.1), math.gcd(12, 18)]", "[2, 3, 6]"},
		{"import math\nmath.isclose(0.1 + 0.2, 0.3)", "True"},
		{"import random\nrandom.seed(1)\nx = random.randint(1, 6)\n1 <= x <= 6", "True"},
		{"import random\nrandom.choice(['only'])", "'only'"},
		{"import statistics\n[statistics.mean([1, 2, 3]), statistics.median([1, 3, 2, 4])]", "[2, 2.5]"},
		{"import statistics\nstatistics.pstdev([2, 4, 4, 4, 5, 5, 7, 9])", "2.0"},
		{"import string\nstring.digits", "'0123456789'"},
		{"import re\nm = re.match(r'(\\w+)-(\\d+)', 'abc-123')\n[m.group(1), m.group(2), m[0]]", "['abc', '123', 'abc-123']"},
		{"import re\nre.match('b', 'ab')", "None"},
		{"import re\nre.search('b', 'ab').span()", "(1, 2)"},
		{"import re\nre.fullmatch('a+', 'aab')", "None"},
		{"import re\nre.sub(r'(\\d+)', r'<\\1>', 'a1b22')", "'a<1>b<22>'"},
		{"import re\nre.findall(r'\\d', 'a1b2')", "['1', '2']"},
		{"import re\nre.findall(r'(\\w)=(\\d)', 'a=1 b=2')", "[('a', '1'), ('b', '2')]"},
		{"import re\nre.split(r'[,;]\\s*', 'a, b;c')", "['a', 'b', 'c']"},
		{"import re\np = re.compile('(?P<word>[a-z]+)', re.I)\np.search('12 ABC').groupdict()", "{'word': 'ABC'}"},
		{"import re\ndef up(m): return m.group(0).upper()\nre.sub('x', up, 'axbx')", "'aXbX'"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, run(t, tt.src)); diff != "" {
				t.Errorf("result mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDateTime(t *testing.T) {
	orig := Now
	Now = func() time.Time { return time.Date(2024, 6, 1, 8, 30, 0, 0, time.Local) }
	t.Cleanup(func() { Now = orig })

	tests := []struct {
		src  string
		want string
	}{
		{"from datetime import datetime, timedelta\nd = datetime(2024, 1, 31, 12, 0)\nstr(d + timedelta(days=1, hours=2))", "'2024-02-01 14:00:00'"},
		{"from datetime import datetime\nd = datetime(2024, 1, 31, 12, 0)\nd.strftime('%Y/%m/%d %H:%M')", "'2024/01/31 12:00'"},
		{"from datetime import datetime\n(datetime(2024, 1, 31) - datetime(2024, 1, 1)).days", "30"},
		{"from datetime import timedelta\nstr(timedelta(hours=36))", "'1 day, 12:00:00'"},
		{"from datetime import timedelta\ntimedelta(minutes=90).total_seconds()", "5400.0"},
		{"from datetime import datetime\ndatetime.now().hour", "8"},
		{"import datetime\ndatetime.datetime(2024, 3, 1).weekday()", "4"},
		{"from datetime import datetime\ndatetime(2024, 1, 1) < datetime(2024, 1, 2)", "True"},
		{"from datetime import datetime\ndatetime.strptime('2024-05-06 07:08', '%Y-%m-%d %H:%M').minute", "8"},
		{"from datetime import datetime\ndatetime.fromisoformat('2024-05-06T07:08:09').second", "9"},
		{"from datetime import datetime\ndatetime(2024, 1, 1).replace(hour=5).isoformat()", "'2024-01-01T05:00:00'"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, run(t, tt.src)); diff != "" {
				t.Errorf("result mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// ─── Errors ─────────────────────────────────────────────────────────

func TestEvalErrors(t *testing.T) {
	tests := []struct {
		src  string
		kind string
		msg  string
	}{
		{"1/0", ZeroDivisionError, "division by zero"},
		{"2 ** 64", OverflowError, "integer result too large"},
		{"{}['k']", KeyError, "'k'"},
		{"[1][5]", IndexError, "list index out of range"},
		{"'a' + 1", TypeError, "unsupported operand type(s) for +: 'str' and 'int'"},
		{"import os", ImportError, "import of os not allowed"},
		{"from decimal import Decimal", ImportError, "import of decimal not supported"},
		{"class A: pass", NotImplementedError, "not implemented ast ClassDef"},
		{"f = lambda: 1", NotImplementedError, "not implemented ast Lambda"},
		{"x = [1]\nx.foo", AttributeError, "'list' object has no attribute 'foo'"},
		{"a, b = 1, 2, 3", ValueError, "too many values to unpack (expected 2)"},
		{"sorted([1, 'a'])", TypeError, "'<' not supported between instances of 'str' and 'int'"},
		{"int('x')", ValueError, "invalid literal for int() with base 10: 'x'"},
		{"def f(a, b): return a\nf(1)", TypeError, "f() missing 1 required positional argument(s)"},
		{"def f(a, b): return a\nf(1, 2, 3)", TypeError, "f() takes 2 positional arguments but 3 were given"},
		{"def f(a, b): return a\nf(1, a=2)", TypeError, "f() got multiple values for argument 'a'"},
		{"def f(*, a): return a\nf()", TypeError, "f() missing required keyword-only argument 'a'"},
		{"def f():\n    nonlocal z\n    z = 1\nf()", NameError, "no binding for nonlocal 'z' found"},
		{"x = [1, 2, 3]\nx[::2] = [1]", ValueError, "attempt to assign sequence of size 1 to extended slice of size 2"},
		{"'%d %d' % (1,)", TypeError, "not enough arguments for format string"},
		{"'%d' % (1, 2)", TypeError, "not all arguments converted during string formatting"},
		{"5()", TypeError, "'int' object is not callable"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			err := runErr(t, tt.src)
			if err.Kind != tt.kind || err.Msg != tt.msg {
				t.Errorf("got %s: %s, want %s: %s", err.Kind, err.Msg, tt.kind, tt.msg)
			}
		})
	}
}

func TestEnclosingFrameNeedsNonlocal(t *testing.T) {
	err := runErr(t, "def outer():\n    y = 7\n    def inner():\n        return y * 2\n    return inner()\nouter()")
	if err.Kind != NameError || !strings.HasPrefix(err.Msg, "name 'y' is not defined") {
		t.Errorf("got %s: %s, want NameError for y", err.Kind, err.Msg)
	}
}

func TestErrorLocation(t *testing.T) {
	c, log := newTestContext(t, newFakeHost())
	evalIn(t, c, "counter = 1\ncountr + 1")

	err := c.Err()
	if err == nil {
		t.Fatal("expected a NameError")
	}
	want := "NameError: name 'countr' is not defined. Did you mean 'counter'? in test.py line 2 column 0"
	if diff := cmp.Diff(want, err.Error()); diff != "" {
		t.Errorf("error mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"error: " + want}, log.messages()); diff != "" {
		t.Errorf("logged messages mismatch (-want +got):\n%s", diff)
	}
}

func TestErrorLocationInFunction(t *testing.T) {
	err := runErr(t, "def f():\n    x = 1\n    return x / 0\nf()")
	if err.Kind != ZeroDivisionError || err.Func != "f" || err.Line != 3 {
		t.Errorf("got %+v, want ZeroDivisionError in f() at line 3", err)
	}
	if !strings.Contains(err.Error(), "in f(), test.py line 3") {
		t.Errorf("Error() = %q, want function and line", err.Error())
	}
}

func TestErrorResetBetweenRuns(t *testing.T) {
	c, _ := newTestContext(t, newFakeHost())
	evalIn(t, c, "1/0")
	if c.Err() == nil {
		t.Fatal("expected an error")
	}
	if got := evalIn(t, c, "2"); got != int64(2) || c.Err() != nil {
		t.Errorf("second run = %v, err %v; want 2 and no error", got, c.Err())
	}
}

// ─── Host Integration ───────────────────────────────────────────────

func TestStateVariables(t *testing.T) {
	host := newFakeHost()
	host.states["sensor.temp"] = "21.5"
	c, _ := newTestContext(t, host)

	got := evalIn(t, c, "binary_sensor.door = 'on'\nlight.x = 10\n[binary_sensor.door, float(sensor.temp) + 1, light.x]")
	if err := c.Err(); err != nil {
		t.Fatalf("eval: %v", err)
	}
	if diff := cmp.Diff("['on', 22.5, '10']", Repr(got)); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
	if host.states["binary_sensor.door"] != "on" {
		t.Errorf("state not written through host: %v", host.states)
	}
}

func TestUndefinedDottedName(t *testing.T) {
	err := runErr(t, "sensor.missing + 1")
	if err.Kind != NameError || err.Msg != "name 'sensor.missing' is not defined" {
		t.Errorf("got %s: %s", err.Kind, err.Msg)
	}
}

func TestHostFunctions(t *testing.T) {
	host := newFakeHost()
	var got []Value
	host.funcs["log.info"] = &Builtin{Name: "log.info", Fn: func(_ *Context, args []Value, _ *Dict) (Value, error) {
		got = append(got, args...)
		return nil, nil
	}}
	host.funcs["task.fail"] = &Builtin{Name: "task.fail", Fn: func(*Context, []Value, *Dict) (Value, error) {
		return nil, NewError(ValueError, "bad value")
	}}
	c, _ := newTestContext(t, host)

	evalIn(t, c, "log.info('hello', 1)")
	if diff := cmp.Diff([]Value{"hello", int64(1)}, got); diff != "" {
		t.Errorf("host call args mismatch (-want +got):\n%s", diff)
	}

	evalIn(t, c, "task.fail()")
	if err := c.Err(); err == nil || err.Kind != ValueError || err.Line != 1 {
		t.Errorf("host error = %v, want located ValueError", err)
	}
}

func TestPrintLogs(t *testing.T) {
	c, log := newTestContext(t, nil)
	evalIn(t, c, "print('a', 1, None)")
	if diff := cmp.Diff([]string{"info: a 1 None"}, log.messages()); diff != "" {
		t.Errorf("logged messages mismatch (-want +got):\n%s", diff)
	}
}

func TestExtraLocals(t *testing.T) {
	c, _ := newTestContext(t, nil)
	mod, err := parser.Parse("f'{var_name}={value}'", "test.py")
	if err != nil {
		t.Fatal(err)
	}
	got := c.Eval(mod, map[string]Value{"var_name": "light.x", "value": "on"})
	if got != "light.x=on" {
		t.Errorf("got %v", got)
	}
}

func TestInvoke(t *testing.T) {
	c, _ := newTestContext(t, nil)
	evalIn(t, c, "def handler(value=None, **kwargs):\n    return [value, sorted(kwargs.keys())]")
	fn, ok := c.Globals().Get("handler")
	if !ok {
		t.Fatal("handler not defined")
	}

	kwargs := NewDict()
	kwargs.SetStr("value", int64(3))
	kwargs.SetStr("trigger_type", "state")
	got := c.Invoke(fn, nil, kwargs)
	if diff := cmp.Diff("[3, ['trigger_type']]", Repr(got)); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestDecoratorsRecorded(t *testing.T) {
	c, _ := newTestContext(t, nil)
	evalIn(t, c, "@time_trigger('cron(* * * * *)', 'startup')\n@state_trigger\ndef f():\n    pass")
	v, _ := c.Globals().Get("f")
	f, ok := v.(*Function)
	if !ok {
		t.Fatalf("f = %T, want *Function", v)
	}
	want := []Decorator{
		{Name: "time_trigger", Args: []Value{"cron(* * * * *)", "startup"}},
		{Name: "state_trigger", Args: nil},
	}
	if diff := cmp.Diff(want, f.Decorators); diff != "" {
		t.Errorf("decorators mismatch (-want +got):\n%s", diff)
	}
}

func TestSharedGlobals(t *testing.T) {
	globals := NewSymTable()
	first := NewContext(context.Background(), "first", globals, nil)
	second := NewContext(context.Background(), "second", globals, nil)

	mod, _ := parser.Parse("counter = 0\ndef bump():\n    global counter\n    counter += 1\n    return counter", "test.py")
	first.Eval(mod, nil)

	fn, _ := globals.Get("bump")
	first.Invoke(fn, nil, nil)
	if got := second.Invoke(fn, nil, nil); got != int64(2) {
		t.Errorf("second invocation = %v, want 2", got)
	}
}

// ─── Cancellation ───────────────────────────────────────────────────

func TestCancellationStopsLoop(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	c := NewContext(ctx, "loop", nil, nil)
	log := &recordLogger{}
	c.SetLogger(log)

	mod, err := parser.Parse("while True:\n    pass", "test.py")
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan Value, 1)
	go func() { done <- c.Eval(mod, nil) }()

	select {
	case v := <-done:
		if v != nil {
			t.Errorf("cancelled eval = %v, want nil", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop after cancellation")
	}
	if c.Err() != nil {
		t.Errorf("cancellation recorded as error: %v", c.Err())
	}
	if msgs := log.messages(); len(msgs) != 0 {
		t.Errorf("cancellation logged: %v", msgs)
	}
}

func TestSleepHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := NewContext(ctx, "sleeper", nil, nil)
	mod, _ := parser.Parse("import time\ntime.sleep(30)\nx = 1", "test.py")

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	c.Eval(mod, nil)
	if time.Since(start) > 5*time.Second {
		t.Fatal("time.sleep ignored cancellation")
	}
	if _, ok := c.Globals().Get("x"); ok {
		t.Error("statement after cancelled sleep ran")
	}
}
