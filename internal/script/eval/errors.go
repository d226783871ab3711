package eval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Error kinds raised by the interpreter. They mirror the exception class
// names script authors see in log output.
const (
	SyntaxError         = "SyntaxError"
	NameError           = "NameError"
	TypeError           = "TypeError"
	ValueError          = "ValueError"
	KeyError            = "KeyError"
	IndexError          = "IndexError"
	AttributeError      = "AttributeError"
	ZeroDivisionError   = "ZeroDivisionError"
	ImportError         = "ImportError"
	NotImplementedError = "NotImplementedError"
	OverflowError       = "OverflowError"
	RuntimeError        = "RuntimeError"
)

// Error is a script error. Line, Col and Func are filled in by the
// innermost syntax node that was executing when the error was raised.
type Error struct {
	Kind string
	Msg  string
	Func string
	File string
	Line int
	Col  int

	located bool
}

// NewError returns an unlocated script error of the given kind. Host
// functions use it to raise TypeError, ValueError and friends.
func NewError(kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind)
	b.WriteString(": ")
	b.WriteString(e.Msg)
	if !e.located {
		return b.String()
	}
	b.WriteString(" in ")
	if e.Func != "" {
		b.WriteString(e.Func)
		b.WriteString("(), ")
	}
	fmt.Fprintf(&b, "%s line %d column %d", e.File, e.Line, e.Col)
	return b.String()
}

// Located reports whether the error carries a source position.
func (e *Error) Located() bool { return e.located }

func errorf(kind, format string, args ...any) error {
	return NewError(kind, format, args...)
}

// IsCancel reports whether err is a cancellation rather than a script
// failure. Cancellation is never logged or recorded as an error.
func IsCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// asScriptError converts any error from a host function into an *Error.
func asScriptError(err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return &Error{Kind: RuntimeError, Msg: err.Error()}
}

// nameError builds a NameError, suggesting the closest visible name when
// one is within a small edit distance.
func (c *Context) nameError(name string) error {
	msg := fmt.Sprintf("name '%s' is not defined", name)
	if hint := c.suggest(name); hint != "" {
		msg += fmt.Sprintf(". Did you mean '%s'?", hint)
	}
	return NewError(NameError, "%s", msg)
}

func (c *Context) suggest(name string) string {
	candidates := make(map[string]struct{})
	add := func(names []string) {
		for _, n := range names {
			candidates[n] = struct{}{}
		}
	}
	add(c.sym.Names())
	add(c.locals.Names())
	add(c.globals.Names())
	for n := range builtins {
		candidates[n] = struct{}{}
	}

	maxDist := 2
	if len(name) <= 3 {
		maxDist = 1
	}
	best, bestDist := "", maxDist+1
	sorted := make([]string, 0, len(candidates))
	for n := range candidates {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)
	for _, n := range sorted {
		if n == name {
			continue
		}
		if d := levenshtein.ComputeDistance(name, n); d < bestDist {
			best, bestDist = n, d
		}
	}
	return best
}
