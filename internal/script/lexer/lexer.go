package lexer

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Error is a tokenization failure.
type Error struct {
	Msg  string
	Line int
	Col  int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (line %d column %d)", e.Msg, e.Line, e.Col)
}

// tabSize is the tab stop used when measuring indentation.
const tabSize = 8

var operators = []string{
	"**=", "//=", ">>=", "<<=", "...",
	"**", "//", ">>", "<<", "<=", ">=", "==", "!=", "->",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", ":=",
	"+", "-", "*", "/", "%", "@", "&", "|", "^", "~", "<", ">",
	"(", ")", "[", "]", "{", "}", ",", ":", ".", ";", "=",
}

type lexer struct {
	src     string
	pos     int
	line    int
	lineBeg int

	indents     []int
	depth       int
	atLineStart bool
	tokens      []Token
}

// Tokenize splits src into tokens, synthesising NEWLINE, INDENT and DEDENT
// tokens from the line structure. Line breaks inside brackets are ignored.
func Tokenize(src string) ([]Token, error) {
	lx := &lexer{
		src:         strings.ReplaceAll(src, "\r\n", "\n"),
		line:        1,
		indents:     []int{0},
		atLineStart: true,
	}
	if err := lx.run(); err != nil {
		return nil, err
	}
	return lx.tokens, nil
}

func (lx *lexer) col() int { return lx.pos - lx.lineBeg }

func (lx *lexer) errorf(format string, args ...any) error {
	return &Error{Msg: fmt.Sprintf(format, args...), Line: lx.line, Col: lx.col()}
}

func (lx *lexer) emit(t Type, text, value string, line, col int) {
	lx.tokens = append(lx.tokens, Token{Type: t, Text: text, Value: value, Line: line, Col: col})
}

func (lx *lexer) lastType() (Type, bool) {
	if len(lx.tokens) == 0 {
		return EOF, false
	}
	return lx.tokens[len(lx.tokens)-1].Type, true
}

func (lx *lexer) newline() {
	lx.pos++
	lx.line++
	lx.lineBeg = lx.pos
}

func (lx *lexer) run() error {
	for {
		if lx.atLineStart && lx.depth == 0 {
			done, err := lx.indentation()
			if err != nil {
				return err
			}
			if done {
				break
			}
			if lx.atLineStart {
				continue
			}
		}
		if lx.pos >= len(lx.src) {
			break
		}
		c := lx.src[lx.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\f':
			lx.pos++
		case c == '\\' && lx.pos+1 < len(lx.src) && lx.src[lx.pos+1] == '\n':
			lx.pos++
			lx.newline()
		case c == '#':
			for lx.pos < len(lx.src) && lx.src[lx.pos] != '\n' {
				lx.pos++
			}
		case c == '\n':
			if lx.depth == 0 {
				if t, ok := lx.lastType(); ok && t != Newline && t != Indent && t != Dedent {
					lx.emit(Newline, "", "", lx.line, lx.col())
				}
				lx.atLineStart = true
			}
			lx.newline()
		case c == '"' || c == '\'':
			if err := lx.str(""); err != nil {
				return err
			}
		case isDigit(c) || (c == '.' && lx.pos+1 < len(lx.src) && isDigit(lx.src[lx.pos+1])):
			if err := lx.number(); err != nil {
				return err
			}
		default:
			r, _ := utf8.DecodeRuneInString(lx.src[lx.pos:])
			if r == '_' || unicode.IsLetter(r) {
				if err := lx.ident(); err != nil {
					return err
				}
				continue
			}
			if err := lx.op(); err != nil {
				return err
			}
		}
	}

	if lx.depth > 0 {
		return lx.errorf("unexpected EOF: unclosed bracket")
	}
	if t, ok := lx.lastType(); ok && t != Newline && t != Dedent {
		lx.emit(Newline, "", "", lx.line, lx.col())
	}
	for len(lx.indents) > 1 {
		lx.indents = lx.indents[:len(lx.indents)-1]
		lx.emit(Dedent, "", "", lx.line, 0)
	}
	lx.emit(EOF, "", "", lx.line, lx.col())
	return nil
}

// indentation measures the leading whitespace of a logical line and emits
// INDENT/DEDENT tokens. Blank and comment-only lines are skipped entirely.
// It reports done when the end of input is reached.
func (lx *lexer) indentation() (bool, error) {
	width := 0
	p := lx.pos
	for p < len(lx.src) {
		switch lx.src[p] {
		case ' ':
			width++
		case '\t':
			width = (width/tabSize + 1) * tabSize
		case '\f':
			width = 0
		default:
			goto measured
		}
		p++
	}
measured:
	if p >= len(lx.src) {
		lx.pos = p
		return true, nil
	}
	switch lx.src[p] {
	case '\n':
		lx.pos = p
		lx.newline()
		return false, nil
	case '#':
		for p < len(lx.src) && lx.src[p] != '\n' {
			p++
		}
		lx.pos = p
		if p < len(lx.src) {
			lx.newline()
		}
		return false, nil
	}

	lx.pos = p
	lx.atLineStart = false
	top := lx.indents[len(lx.indents)-1]
	switch {
	case width > top:
		lx.indents = append(lx.indents, width)
		lx.emit(Indent, "", "", lx.line, 0)
	case width < top:
		for width < lx.indents[len(lx.indents)-1] {
			lx.indents = lx.indents[:len(lx.indents)-1]
			lx.emit(Dedent, "", "", lx.line, 0)
		}
		if width != lx.indents[len(lx.indents)-1] {
			return false, lx.errorf("unindent does not match any outer indentation level")
		}
	}
	return false, nil
}

func (lx *lexer) ident() error {
	start := lx.pos
	col := lx.col()
	for lx.pos < len(lx.src) {
		r, size := utf8.DecodeRuneInString(lx.src[lx.pos:])
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		lx.pos += size
	}
	word := lx.src[start:lx.pos]
	if lx.pos < len(lx.src) && (lx.src[lx.pos] == '"' || lx.src[lx.pos] == '\'') {
		switch strings.ToLower(word) {
		case "r", "u", "f", "b", "rb", "br", "fr", "rf":
			lx.pos = start
			return lx.strWithPrefix(len(word), col)
		}
	}
	lx.emit(Name, word, "", lx.line, col)
	return nil
}

func (lx *lexer) strWithPrefix(n, col int) error {
	prefix := strings.ToLower(lx.src[lx.pos : lx.pos+n])
	lx.pos += n
	return lx.strAt(prefix, col)
}

func (lx *lexer) str(prefix string) error {
	return lx.strAt(prefix, lx.col())
}

func (lx *lexer) strAt(prefix string, col int) error {
	line := lx.line
	quote := lx.src[lx.pos]
	triple := strings.HasPrefix(lx.src[lx.pos:], strings.Repeat(string(quote), 3))
	if triple {
		lx.pos += 3
	} else {
		lx.pos++
	}
	raw := strings.ContainsRune(prefix, 'r')

	var body strings.Builder
	for {
		if lx.pos >= len(lx.src) {
			return &Error{Msg: "unterminated string literal", Line: line, Col: col}
		}
		c := lx.src[lx.pos]
		if c == quote {
			if !triple {
				lx.pos++
				break
			}
			if strings.HasPrefix(lx.src[lx.pos:], strings.Repeat(string(quote), 3)) {
				lx.pos += 3
				break
			}
		}
		if c == '\n' {
			if !triple {
				return &Error{Msg: "unterminated string literal", Line: line, Col: col}
			}
			body.WriteByte(c)
			lx.newline()
			continue
		}
		if c == '\\' && lx.pos+1 < len(lx.src) {
			body.WriteByte(c)
			body.WriteByte(lx.src[lx.pos+1])
			if lx.src[lx.pos+1] == '\n' {
				lx.pos++
				lx.newline()
			} else {
				lx.pos += 2
			}
			continue
		}
		body.WriteByte(c)
		lx.pos++
	}

	if strings.ContainsRune(prefix, 'f') {
		lx.emit(FString, prefix, body.String(), line, col)
		return nil
	}
	value := body.String()
	if !raw {
		var err error
		value, err = Unescape(value)
		if err != nil {
			return &Error{Msg: err.Error(), Line: line, Col: col}
		}
	}
	lx.emit(String, prefix, value, line, col)
	return nil
}

func (lx *lexer) number() error {
	start := lx.pos
	col := lx.col()
	isFloat := false

	if lx.src[lx.pos] == '0' && lx.pos+1 < len(lx.src) && strings.ContainsRune("xXoObB", rune(lx.src[lx.pos+1])) {
		lx.pos += 2
		for lx.pos < len(lx.src) && (isHex(lx.src[lx.pos]) || lx.src[lx.pos] == '_') {
			lx.pos++
		}
	} else {
		digits := func() {
			for lx.pos < len(lx.src) && (isDigit(lx.src[lx.pos]) || lx.src[lx.pos] == '_') {
				lx.pos++
			}
		}
		digits()
		if lx.pos < len(lx.src) && lx.src[lx.pos] == '.' {
			isFloat = true
			lx.pos++
			digits()
		}
		if lx.pos < len(lx.src) && (lx.src[lx.pos] == 'e' || lx.src[lx.pos] == 'E') {
			p := lx.pos + 1
			if p < len(lx.src) && (lx.src[p] == '+' || lx.src[p] == '-') {
				p++
			}
			if p < len(lx.src) && isDigit(lx.src[p]) {
				isFloat = true
				lx.pos = p
				digits()
			}
		}
	}
	if lx.pos < len(lx.src) && (lx.src[lx.pos] == 'j' || lx.src[lx.pos] == 'J') {
		return lx.errorf("complex literals are not supported")
	}

	text := lx.src[start:lx.pos]
	if isFloat {
		lx.emit(Float, text, "", lx.line, col)
		return nil
	}
	if _, err := strconv.ParseInt(strings.ReplaceAll(text, "_", ""), 0, 64); err != nil {
		return &Error{Msg: fmt.Sprintf("invalid integer literal %q", text), Line: lx.line, Col: col}
	}
	lx.emit(Int, text, "", lx.line, col)
	return nil
}

func (lx *lexer) op() error {
	col := lx.col()
	for _, op := range operators {
		if strings.HasPrefix(lx.src[lx.pos:], op) {
			switch op {
			case "(", "[", "{":
				lx.depth++
			case ")", "]", "}":
				if lx.depth == 0 {
					return lx.errorf("unmatched '%s'", op)
				}
				lx.depth--
			}
			lx.pos += len(op)
			lx.emit(Op, op, "", lx.line, col)
			return nil
		}
	}
	r, _ := utf8.DecodeRuneInString(lx.src[lx.pos:])
	return lx.errorf("invalid character %q", r)
}

// Unescape decodes backslash escape sequences in a string literal body.
func Unescape(s string) (string, error) {
	if !strings.ContainsRune(s, '\\') {
		return s, nil
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch e := s[i]; e {
		case '\n':
		case '\\', '\'', '"':
			b.WriteByte(e)
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'a':
			b.WriteByte('\a')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case 'x', 'u', 'U':
			n := map[byte]int{'x': 2, 'u': 4, 'U': 8}[e]
			if i+1+n > len(s) {
				return "", fmt.Errorf("truncated \\%c escape", e)
			}
			v, err := strconv.ParseUint(s[i+1:i+1+n], 16, 32)
			if err != nil {
				return "", fmt.Errorf("invalid \\%c escape", e)
			}
			b.WriteRune(rune(v))
			i += n
		case '0', '1', '2', '3', '4', '5', '6', '7':
			j := i
			for j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7' {
				j++
			}
			v, _ := strconv.ParseUint(s[i:j], 8, 32) //nolint:errcheck // digits validated above
			b.WriteRune(rune(v))
			i = j - 1
		default:
			b.WriteByte('\\')
			b.WriteByte(e)
		}
	}
	return b.String(), nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
