package parser

import (
	"strings"

	"github.com/nerrad567/gray-logic-script/internal/script/ast"
	"github.com/nerrad567/gray-logic-script/internal/script/lexer"
)

// stringAtom parses a run of adjacent string literals. Plain literals fold into
// a single Constant; any f-string in the run turns the result into a
// JoinedStr.
func (p *parser) stringAtom() (ast.Expr, error) {
	first := p.peek()
	var (
		parts []ast.Expr
		lit   strings.Builder
		isF   bool
	)
	flush := func() {
		if lit.Len() > 0 {
			parts = append(parts, &ast.Constant{Pos: posOf(first), Value: lit.String()})
			lit.Reset()
		}
	}
	for p.at(lexer.String) || p.at(lexer.FString) {
		t := p.next()
		if t.Type == lexer.String {
			lit.WriteString(t.Value)
			continue
		}
		isF = true
		vals, err := p.fstringParts(t.Value, strings.ContainsRune(t.Text, 'r'), t, 0)
		if err != nil {
			return nil, err
		}
		for _, v := range vals {
			if c, ok := v.(*ast.Constant); ok {
				lit.WriteString(c.Value.(string))
				continue
			}
			flush()
			parts = append(parts, v)
		}
	}
	if !isF {
		return &ast.Constant{Pos: posOf(first), Value: lit.String()}, nil
	}
	flush()
	return &ast.JoinedStr{Pos: posOf(first), Values: parts}, nil
}

func (p *parser) fstringParts(body string, raw bool, t lexer.Token, depth int) ([]ast.Expr, error) {
	var (
		out []ast.Expr
		lit strings.Builder
	)
	flush := func() error {
		if lit.Len() == 0 {
			return nil
		}
		s := lit.String()
		lit.Reset()
		if !raw {
			u, err := lexer.Unescape(s)
			if err != nil {
				return p.errAt(t, "f-string: %v", err)
			}
			s = u
		}
		out = append(out, &ast.Constant{Pos: posOf(t), Value: s})
		return nil
	}

	for i := 0; i < len(body); {
		c := body[i]
		switch {
		case c == '{' && i+1 < len(body) && body[i+1] == '{':
			lit.WriteByte('{')
			i += 2
		case c == '}' && i+1 < len(body) && body[i+1] == '}':
			lit.WriteByte('}')
			i += 2
		case c == '}':
			return nil, p.errAt(t, "f-string: single '}' is not allowed")
		case c == '{':
			if err := flush(); err != nil {
				return nil, err
			}
			fv, n, err := p.fstringField(body[i+1:], raw, t, depth)
			if err != nil {
				return nil, err
			}
			out = append(out, fv)
			i += 1 + n
		default:
			lit.WriteByte(c)
			i++
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

// fstringField parses one replacement field. s starts just after the opening
// brace; the returned count includes the closing brace.
func (p *parser) fstringField(s string, raw bool, t lexer.Token, depth int) (ast.Expr, int, error) {
	if depth > 1 {
		return nil, 0, p.errAt(t, "f-string: expressions nested too deeply")
	}
	end, err := p.fstringExprEnd(s, t)
	if err != nil {
		return nil, 0, err
	}
	src := s[:end]
	if strings.TrimSpace(src) == "" {
		return nil, 0, p.errAt(t, "f-string: empty expression not allowed")
	}
	value, err := p.subExpr(src, t)
	if err != nil {
		return nil, 0, err
	}
	fv := &ast.FormattedValue{Pos: posOf(t), Value: value}

	i := end
	if s[i] == '!' {
		if i+1 >= len(s) {
			return nil, 0, p.errAt(t, "f-string: expecting '}'")
		}
		switch conv := rune(s[i+1]); conv {
		case 'r', 's', 'a':
			fv.Conversion = conv
		default:
			return nil, 0, p.errAt(t, "f-string: invalid conversion character: expected 's', 'r', or 'a'")
		}
		i += 2
	}
	if i < len(s) && s[i] == ':' {
		i++
		start, nest := i, 0
		for ; i < len(s); i++ {
			if s[i] == '{' {
				nest++
			} else if s[i] == '}' {
				if nest == 0 {
					break
				}
				nest--
			}
		}
		parts, err := p.fstringParts(s[start:i], raw, t, depth+1)
		if err != nil {
			return nil, 0, err
		}
		fv.FormatSpec = &ast.JoinedStr{Pos: posOf(t), Values: parts}
	}
	if i >= len(s) || s[i] != '}' {
		return nil, 0, p.errAt(t, "f-string: expecting '}'")
	}
	return fv, i + 1, nil
}

// fstringExprEnd finds where the expression part of a field ends: the first
// '}', ':' or conversion '!' outside brackets and quotes.
func (p *parser) fstringExprEnd(s string, t lexer.Token) (int, error) {
	nest := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(', '[', '{':
			nest++
		case ')', ']':
			nest--
		case '}':
			if nest == 0 {
				return i, nil
			}
			nest--
		case ':':
			if nest == 0 {
				return i, nil
			}
		case '!':
			if nest == 0 && (i+1 >= len(s) || s[i+1] != '=') {
				return i, nil
			}
		case '\\':
			return 0, p.errAt(t, "f-string expression part cannot include a backslash")
		case '#':
			return 0, p.errAt(t, "f-string expression part cannot include '#'")
		}
	}
	return 0, p.errAt(t, "f-string: expecting '}'")
}

// subExpr parses the expression inside a replacement field. Positions are
// pinned to the enclosing string token.
func (p *parser) subExpr(src string, t lexer.Token) (ast.Expr, error) {
	toks, err := lexer.Tokenize("(" + src + ")")
	if err != nil {
		return nil, p.errAt(t, "f-string: invalid syntax")
	}
	for i := range toks {
		toks[i].Line, toks[i].Col = t.Line, t.Col
	}
	sub := &parser{toks: toks, filename: p.filename}
	e, err := sub.testList()
	if err != nil {
		return nil, err
	}
	if !sub.at(lexer.Newline) && !sub.at(lexer.EOF) {
		return nil, sub.unexpected()
	}
	return e, nil
}
