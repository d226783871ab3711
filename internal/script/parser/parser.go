package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nerrad567/gray-logic-script/internal/script/ast"
	"github.com/nerrad567/gray-logic-script/internal/script/lexer"
)

// SyntaxError is the kind reported for every parse failure, matching the
// kind names used by runtime errors.
const SyntaxError = "SyntaxError"

// Error is a syntax error with its source position.
type Error struct {
	Msg      string
	Filename string
	Line     int
	Col      int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s in %s line %d column %d", SyntaxError, e.Msg, e.Filename, e.Line, e.Col)
}

// Kind returns SyntaxError.
func (e *Error) Kind() string { return SyntaxError }

// Parse compiles source text into a module. filename is used only for
// error messages and is recorded on the returned module.
func Parse(src, filename string) (*ast.Module, error) {
	toks, err := lexer.Tokenize(src)
	if err != nil {
		var lerr *lexer.Error
		if errors.As(err, &lerr) {
			return nil, &Error{Msg: lerr.Msg, Filename: filename, Line: lerr.Line, Col: lerr.Col}
		}
		return nil, &Error{Msg: err.Error(), Filename: filename, Line: 1}
	}
	p := &parser{toks: toks, filename: filename}
	mod := &ast.Module{Pos: ast.Pos{Line: 1}, Filename: filename}
	for !p.at(lexer.EOF) {
		stmts, err := p.statement()
		if err != nil {
			return nil, err
		}
		mod.Body = append(mod.Body, stmts...)
	}
	return mod, nil
}

// ParseExpr compiles a single expression, as used by trigger guards.
func ParseExpr(src, filename string) (ast.Expr, error) {
	mod, err := Parse(src, filename)
	if err != nil {
		return nil, err
	}
	if len(mod.Body) != 1 {
		return nil, &Error{Msg: "expected a single expression", Filename: filename, Line: 1}
	}
	es, ok := mod.Body[0].(*ast.ExprStmt)
	if !ok {
		pos := mod.Body[0].Position()
		return nil, &Error{Msg: "expected an expression", Filename: filename, Line: pos.Line, Col: pos.Col}
	}
	return es.Value, nil
}

type parser struct {
	toks     []lexer.Token
	pos      int
	filename string

	// trailingComma is set by exprListItems when the list ended in a comma.
	trailingComma bool
	// pushBack holds a dict key already consumed while telling a dict
	// display from a set display.
	pushBack ast.Expr
}

// ─── Token helpers ─────────────────────────────────────────────────

func (p *parser) peek() lexer.Token { return p.toks[p.pos] }

func (p *parser) peekAt(n int) lexer.Token {
	if p.pos+n < len(p.toks) {
		return p.toks[p.pos+n]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) next() lexer.Token {
	t := p.toks[p.pos]
	if t.Type != lexer.EOF {
		p.pos++
	}
	return t
}

func (p *parser) at(t lexer.Type) bool { return p.peek().Type == t }

func (p *parser) atOp(s string) bool {
	t := p.peek()
	return t.Type == lexer.Op && t.Text == s
}

func (p *parser) atKw(s string) bool {
	t := p.peek()
	return t.Type == lexer.Name && t.Text == s
}

func (p *parser) acceptOp(s string) bool {
	if p.atOp(s) {
		p.next()
		return true
	}
	return false
}

func (p *parser) acceptKw(s string) bool {
	if p.atKw(s) {
		p.next()
		return true
	}
	return false
}

func (p *parser) errAt(t lexer.Token, format string, args ...any) error {
	return &Error{Msg: fmt.Sprintf(format, args...), Filename: p.filename, Line: t.Line, Col: t.Col}
}

func (p *parser) unexpected() error {
	t := p.peek()
	switch t.Type {
	case lexer.EOF:
		return p.errAt(t, "unexpected EOF while parsing")
	case lexer.Indent:
		return p.errAt(t, "unexpected indent")
	case lexer.Newline, lexer.Dedent:
		return p.errAt(t, "invalid syntax")
	}
	return p.errAt(t, "invalid syntax near %s", t)
}

func (p *parser) expectOp(s string) (lexer.Token, error) {
	if !p.atOp(s) {
		return p.peek(), p.errAt(p.peek(), "expected '%s'", s)
	}
	return p.next(), nil
}

func (p *parser) expectKw(s string) error {
	if !p.atKw(s) {
		return p.errAt(p.peek(), "expected '%s'", s)
	}
	p.next()
	return nil
}

func (p *parser) expectName() (lexer.Token, error) {
	t := p.peek()
	if t.Type != lexer.Name || lexer.IsKeyword(t.Text) {
		return t, p.errAt(t, "expected a name")
	}
	return p.next(), nil
}

func posOf(t lexer.Token) ast.Pos { return ast.Pos{Line: t.Line, Col: t.Col} }

// ─── Statements ────────────────────────────────────────────────────

func (p *parser) statement() ([]ast.Stmt, error) {
	t := p.peek()
	if t.Type == lexer.Indent {
		return nil, p.errAt(t, "unexpected indent")
	}
	if t.Type == lexer.Op && t.Text == "@" {
		s, err := p.decorated()
		if err != nil {
			return nil, err
		}
		return []ast.Stmt{s}, nil
	}
	if t.Type == lexer.Name {
		var (
			s   ast.Stmt
			err error
		)
		switch t.Text {
		case "if":
			s, err = p.ifStmt()
		case "while":
			s, err = p.whileStmt()
		case "for":
			s, err = p.forStmt()
		case "def":
			s, err = p.funcDef(nil)
		case "class":
			s, err = p.unsupportedCompound("ClassDef")
		case "try":
			s, err = p.unsupportedCompound("Try")
		case "with":
			s, err = p.unsupportedCompound("With")
		case "async":
			s, err = p.unsupportedCompound("Async")
		default:
			return p.simpleStmts()
		}
		if err != nil {
			return nil, err
		}
		return []ast.Stmt{s}, nil
	}
	return p.simpleStmts()
}

func (p *parser) simpleStmts() ([]ast.Stmt, error) {
	var out []ast.Stmt
	for {
		s, err := p.smallStmt()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
		if !p.acceptOp(";") {
			break
		}
		if p.at(lexer.Newline) || p.at(lexer.EOF) {
			break
		}
	}
	if p.at(lexer.EOF) {
		return out, nil
	}
	if !p.at(lexer.Newline) {
		return nil, p.unexpected()
	}
	p.next()
	return out, nil
}

func (p *parser) smallStmt() (ast.Stmt, error) {
	t := p.peek()
	pos := posOf(t)
	if t.Type == lexer.Name {
		switch t.Text {
		case "pass":
			p.next()
			return &ast.Pass{Pos: pos}, nil
		case "break":
			p.next()
			return &ast.Break{Pos: pos}, nil
		case "continue":
			p.next()
			return &ast.Continue{Pos: pos}, nil
		case "return":
			p.next()
			ret := &ast.Return{Pos: pos}
			if !p.atStmtEnd() {
				v, err := p.testList()
				if err != nil {
					return nil, err
				}
				ret.Value = v
			}
			return ret, nil
		case "global", "nonlocal":
			p.next()
			var names []string
			for {
				n, err := p.expectName()
				if err != nil {
					return nil, err
				}
				names = append(names, n.Text)
				if !p.acceptOp(",") {
					break
				}
			}
			if t.Text == "global" {
				return &ast.Global{Pos: pos, Names: names}, nil
			}
			return &ast.Nonlocal{Pos: pos, Names: names}, nil
		case "del":
			p.next()
			targets, err := p.exprListItems()
			if err != nil {
				return nil, err
			}
			return &ast.Delete{Pos: pos, Targets: targets}, nil
		case "import":
			return p.importStmt()
		case "from":
			return p.importFrom()
		case "raise", "assert", "yield":
			p.next()
			p.skipToStmtEnd()
			return &ast.Unsupported{Pos: pos, What: strings.ToUpper(t.Text[:1]) + t.Text[1:]}, nil
		}
	}
	return p.exprStmt()
}

func (p *parser) atStmtEnd() bool {
	return p.at(lexer.Newline) || p.at(lexer.EOF) || p.atOp(";")
}

// skipToStmtEnd discards tokens up to the end of the current simple statement.
func (p *parser) skipToStmtEnd() {
	depth := 0
	for !p.at(lexer.EOF) {
		t := p.peek()
		if t.Type == lexer.Newline && depth == 0 {
			return
		}
		if t.Type == lexer.Op {
			switch t.Text {
			case "(", "[", "{":
				depth++
			case ")", "]", "}":
				depth--
			case ";":
				if depth == 0 {
					return
				}
			}
		}
		p.next()
	}
}

var augOps = map[string]ast.Op{
	"+=": ast.Add, "-=": ast.Sub, "*=": ast.Mult, "/=": ast.Div,
	"//=": ast.FloorDiv, "%=": ast.Mod, "**=": ast.Pow,
	"<<=": ast.LShift, ">>=": ast.RShift,
	"|=": ast.BitOr, "^=": ast.BitXor, "&=": ast.BitAnd,
}

func (p *parser) exprStmt() (ast.Stmt, error) {
	start := p.peek()
	first, err := p.testList()
	if err != nil {
		return nil, err
	}

	if t := p.peek(); t.Type == lexer.Op {
		if op, ok := augOps[t.Text]; ok {
			if err := checkTarget(first, false); err != nil {
				return nil, p.errAt(start, "%s", err.Error())
			}
			p.next()
			v, err := p.testList()
			if err != nil {
				return nil, err
			}
			return &ast.AugAssign{Pos: posOf(start), Target: first, Op: op, Value: v}, nil
		}
		if t.Text == ":" {
			return nil, p.errAt(t, "annotated assignments are not supported")
		}
	}

	if !p.atOp("=") {
		return &ast.ExprStmt{Pos: posOf(start), Value: first}, nil
	}

	exprs := []ast.Expr{first}
	for p.acceptOp("=") {
		e, err := p.testList()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	targets := exprs[:len(exprs)-1]
	for _, tgt := range targets {
		if err := checkTarget(tgt, true); err != nil {
			return nil, p.errAt(start, "%s", err.Error())
		}
	}
	return &ast.Assign{Pos: posOf(start), Targets: targets, Value: exprs[len(exprs)-1]}, nil
}

func checkTarget(e ast.Expr, allowUnpack bool) error {
	switch e := e.(type) {
	case *ast.Name, *ast.Attribute, *ast.Subscript:
		return nil
	case *ast.Tuple:
		if allowUnpack {
			return checkUnpackTargets(e.Elts)
		}
	case *ast.List:
		if allowUnpack {
			return checkUnpackTargets(e.Elts)
		}
	}
	return fmt.Errorf("cannot assign to %s", e.Kind())
}

// checkUnpackTargets allows at most one starred element per level.
func checkUnpackTargets(elts []ast.Expr) error {
	starred := 0
	for _, elt := range elts {
		if st, ok := elt.(*ast.Starred); ok {
			starred++
			if starred > 1 {
				return errors.New("multiple starred expressions in assignment")
			}
			elt = st.Value
		}
		if err := checkTarget(elt, true); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) dottedName() (string, error) {
	n, err := p.expectName()
	if err != nil {
		return "", err
	}
	name := n.Text
	for p.acceptOp(".") {
		n, err := p.expectName()
		if err != nil {
			return "", err
		}
		name += "." + n.Text
	}
	return name, nil
}

func (p *parser) importStmt() (ast.Stmt, error) {
	t := p.next()
	imp := &ast.Import{Pos: posOf(t)}
	for {
		name, err := p.dottedName()
		if err != nil {
			return nil, err
		}
		alias := ast.Alias{Name: name}
		if p.acceptKw("as") {
			as, err := p.expectName()
			if err != nil {
				return nil, err
			}
			alias.AsName = as.Text
		}
		imp.Names = append(imp.Names, alias)
		if !p.acceptOp(",") {
			break
		}
	}
	return imp, nil
}

func (p *parser) importFrom() (ast.Stmt, error) {
	t := p.next()
	if p.atOp(".") {
		return nil, p.errAt(p.peek(), "relative imports are not supported")
	}
	mod, err := p.dottedName()
	if err != nil {
		return nil, err
	}
	if err := p.expectKw("import"); err != nil {
		return nil, err
	}
	imp := &ast.ImportFrom{Pos: posOf(t), Module: mod}
	if p.atOp("*") {
		return nil, p.errAt(p.peek(), "wildcard imports are not supported")
	}
	paren := p.acceptOp("(")
	for {
		n, err := p.expectName()
		if err != nil {
			return nil, err
		}
		alias := ast.Alias{Name: n.Text}
		if p.acceptKw("as") {
			as, err := p.expectName()
			if err != nil {
				return nil, err
			}
			alias.AsName = as.Text
		}
		imp.Names = append(imp.Names, alias)
		if !p.acceptOp(",") {
			break
		}
		if paren && p.atOp(")") {
			break
		}
	}
	if paren {
		if _, err := p.expectOp(")"); err != nil {
			return nil, err
		}
	}
	return imp, nil
}

func (p *parser) block() ([]ast.Stmt, error) {
	if _, err := p.expectOp(":"); err != nil {
		return nil, err
	}
	if !p.at(lexer.Newline) {
		return p.simpleStmts()
	}
	p.next()
	if !p.at(lexer.Indent) {
		return nil, p.errAt(p.peek(), "expected an indented block")
	}
	p.next()
	var body []ast.Stmt
	for !p.at(lexer.Dedent) && !p.at(lexer.EOF) {
		stmts, err := p.statement()
		if err != nil {
			return nil, err
		}
		body = append(body, stmts...)
	}
	if p.at(lexer.Dedent) {
		p.next()
	}
	return body, nil
}

func (p *parser) ifStmt() (ast.Stmt, error) {
	t := p.next()
	test, err := p.namedTest()
	if err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	node := &ast.If{Pos: posOf(t), Test: test, Body: body}
	switch {
	case p.atKw("elif"):
		elif, err := p.ifStmt()
		if err != nil {
			return nil, err
		}
		node.Else = []ast.Stmt{elif}
	case p.acceptKw("else"):
		node.Else, err = p.block()
		if err != nil {
			return nil, err
		}
	}
	return node, nil
}

func (p *parser) whileStmt() (ast.Stmt, error) {
	t := p.next()
	test, err := p.namedTest()
	if err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	node := &ast.While{Pos: posOf(t), Test: test, Body: body}
	if p.acceptKw("else") {
		if node.Else, err = p.block(); err != nil {
			return nil, err
		}
	}
	return node, nil
}

func (p *parser) forStmt() (ast.Stmt, error) {
	t := p.next()
	target, err := p.exprList()
	if err != nil {
		return nil, err
	}
	if err := checkTarget(target, true); err != nil {
		return nil, p.errAt(t, "%s", err.Error())
	}
	if err := p.expectKw("in"); err != nil {
		return nil, err
	}
	iter, err := p.testList()
	if err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	node := &ast.For{Pos: posOf(t), Target: target, Iter: iter, Body: body}
	if p.acceptKw("else") {
		if node.Else, err = p.block(); err != nil {
			return nil, err
		}
	}
	return node, nil
}

func (p *parser) decorated() (ast.Stmt, error) {
	var decorators []ast.Expr
	for p.atOp("@") {
		p.next()
		d, err := p.namedTest()
		if err != nil {
			return nil, err
		}
		decorators = append(decorators, d)
		if !p.at(lexer.Newline) {
			return nil, p.unexpected()
		}
		p.next()
	}
	switch {
	case p.atKw("def"):
		return p.funcDef(decorators)
	case p.atKw("class"):
		return p.unsupportedCompound("ClassDef")
	case p.atKw("async"):
		return p.unsupportedCompound("AsyncFunctionDef")
	}
	return nil, p.errAt(p.peek(), "expected 'def' after decorator")
}

func (p *parser) funcDef(decorators []ast.Expr) (ast.Stmt, error) {
	t := p.next()
	name, err := p.expectName()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectOp("("); err != nil {
		return nil, err
	}
	args, err := p.parameters()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectOp(")"); err != nil {
		return nil, err
	}
	if p.acceptOp("->") {
		if _, err := p.test(); err != nil {
			return nil, err
		}
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	fn := &ast.FunctionDef{
		Pos:        posOf(t),
		Name:       name.Text,
		Args:       args,
		Body:       body,
		Decorators: decorators,
	}
	if len(body) > 0 {
		if es, ok := body[0].(*ast.ExprStmt); ok {
			if c, ok := es.Value.(*ast.Constant); ok {
				if s, ok := c.Value.(string); ok {
					fn.Doc = s
					fn.HasDoc = true
				}
			}
		}
	}
	return fn, nil
}

func (p *parser) parameters() (*ast.Arguments, error) {
	args := &ast.Arguments{}
	seen := make(map[string]struct{})
	addName := func(t lexer.Token) error {
		if _, dup := seen[t.Text]; dup {
			return p.errAt(t, "duplicate argument '%s' in function definition", t.Text)
		}
		seen[t.Text] = struct{}{}
		return nil
	}
	kwOnly := false
	for !p.atOp(")") {
		switch {
		case p.acceptOp("/"):
		case p.acceptOp("**"):
			n, err := p.expectName()
			if err != nil {
				return nil, err
			}
			if err := addName(n); err != nil {
				return nil, err
			}
			if err := p.skipAnnotation(); err != nil {
				return nil, err
			}
			args.Kwarg = n.Text
		case p.acceptOp("*"):
			kwOnly = true
			if p.atOp(",") || p.atOp(")") {
				break
			}
			n, err := p.expectName()
			if err != nil {
				return nil, err
			}
			if err := addName(n); err != nil {
				return nil, err
			}
			if err := p.skipAnnotation(); err != nil {
				return nil, err
			}
			args.Vararg = n.Text
		default:
			if args.Kwarg != "" {
				return nil, p.errAt(p.peek(), "arguments cannot follow var-keyword argument")
			}
			n, err := p.expectName()
			if err != nil {
				return nil, err
			}
			if err := addName(n); err != nil {
				return nil, err
			}
			if err := p.skipAnnotation(); err != nil {
				return nil, err
			}
			var def ast.Expr
			if p.acceptOp("=") {
				if def, err = p.test(); err != nil {
					return nil, err
				}
			}
			if kwOnly {
				args.KwOnly = append(args.KwOnly, n.Text)
				args.KwDefaults = append(args.KwDefaults, def)
				break
			}
			if def == nil && len(args.Defaults) > 0 {
				return nil, p.errAt(n, "non-default argument follows default argument")
			}
			args.Args = append(args.Args, n.Text)
			if def != nil {
				args.Defaults = append(args.Defaults, def)
			}
		}
		if !p.acceptOp(",") {
			break
		}
	}
	return args, nil
}

func (p *parser) skipAnnotation() error {
	if p.acceptOp(":") {
		_, err := p.test()
		return err
	}
	return nil
}

// unsupportedCompound consumes a compound statement outside the language
// subset, including any trailing clauses, and returns a placeholder.
func (p *parser) unsupportedCompound(what string) (ast.Stmt, error) {
	t := p.peek()
	for {
		depth := 0
		for !p.at(lexer.EOF) {
			c := p.peek()
			if c.Type == lexer.Op {
				switch c.Text {
				case "(", "[", "{":
					depth++
				case ")", "]", "}":
					depth--
				}
				if c.Text == ":" && depth == 0 {
					break
				}
			}
			if c.Type == lexer.Newline {
				return nil, p.errAt(c, "expected ':'")
			}
			p.next()
		}
		if _, err := p.block(); err != nil {
			return nil, err
		}
		if !(p.atKw("except") || p.atKw("else") || p.atKw("finally")) || what != "Try" {
			break
		}
	}
	return &ast.Unsupported{Pos: posOf(t), What: what}, nil
}

// ─── Expressions ───────────────────────────────────────────────────

// testList parses `test (',' test)* [',']`, producing a Tuple when a comma
// is present.
func (p *parser) testList() (ast.Expr, error) {
	start := p.peek()
	first, err := p.testOrStar()
	if err != nil {
		return nil, err
	}
	if !p.atOp(",") {
		return first, nil
	}
	elts := []ast.Expr{first}
	for p.acceptOp(",") {
		if p.atTestListEnd() {
			break
		}
		e, err := p.testOrStar()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
	return &ast.Tuple{Pos: posOf(start), Elts: elts}, nil
}

func (p *parser) atTestListEnd() bool {
	if p.at(lexer.Newline) || p.at(lexer.EOF) {
		return true
	}
	t := p.peek()
	if t.Type != lexer.Op {
		return false
	}
	switch t.Text {
	case ")", "]", "}", "=", ";", ":":
		return true
	}
	_, aug := augOps[t.Text]
	return aug
}

func (p *parser) testOrStar() (ast.Expr, error) {
	if p.atOp("*") {
		t := p.next()
		v, err := p.bitOr()
		if err != nil {
			return nil, err
		}
		return &ast.Starred{Pos: posOf(t), Value: v}, nil
	}
	return p.test()
}

// exprList parses a target list for `for` and `del`.
func (p *parser) exprList() (ast.Expr, error) {
	start := p.peek()
	items, err := p.exprListItems()
	if err != nil {
		return nil, err
	}
	if len(items) == 1 && !p.trailingComma {
		return items[0], nil
	}
	return &ast.Tuple{Pos: posOf(start), Elts: items}, nil
}

func (p *parser) exprListItems() ([]ast.Expr, error) {
	p.trailingComma = false
	var items []ast.Expr
	for {
		e, err := p.bitOr()
		if err != nil {
			return nil, err
		}
		items = append(items, e)
		if !p.atOp(",") {
			break
		}
		p.next()
		p.trailingComma = true
		if p.atKw("in") || p.atStmtEnd() {
			break
		}
		p.trailingComma = false
	}
	return items, nil
}

func (p *parser) namedTest() (ast.Expr, error) {
	e, err := p.test()
	if err != nil {
		return nil, err
	}
	if p.atOp(":=") {
		return nil, p.errAt(p.peek(), "assignment expressions are not supported")
	}
	return e, nil
}

func (p *parser) test() (ast.Expr, error) {
	if p.atKw("lambda") {
		return p.lambda()
	}
	start := p.peek()
	body, err := p.orTest()
	if err != nil {
		return nil, err
	}
	if !p.atKw("if") {
		return body, nil
	}
	p.next()
	cond, err := p.orTest()
	if err != nil {
		return nil, err
	}
	if err := p.expectKw("else"); err != nil {
		return nil, err
	}
	orElse, err := p.test()
	if err != nil {
		return nil, err
	}
	return &ast.IfExp{Pos: posOf(start), Test: cond, Body: body, OrElse: orElse}, nil
}

func (p *parser) lambda() (ast.Expr, error) {
	t := p.next()
	for !p.atOp(":") {
		if p.at(lexer.EOF) || p.at(lexer.Newline) {
			return nil, p.errAt(p.peek(), "expected ':' in lambda")
		}
		p.next()
	}
	p.next()
	if _, err := p.test(); err != nil {
		return nil, err
	}
	return &ast.Unsupported{Pos: posOf(t), What: "Lambda"}, nil
}

func (p *parser) orTest() (ast.Expr, error) {
	return p.boolChain("or", ast.Or, p.andTest)
}

func (p *parser) andTest() (ast.Expr, error) {
	return p.boolChain("and", ast.And, p.notTest)
}

func (p *parser) boolChain(kw string, op ast.Op, operand func() (ast.Expr, error)) (ast.Expr, error) {
	start := p.peek()
	first, err := operand()
	if err != nil {
		return nil, err
	}
	if !p.atKw(kw) {
		return first, nil
	}
	values := []ast.Expr{first}
	for p.acceptKw(kw) {
		v, err := operand()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return &ast.BoolOp{Pos: posOf(start), Op: op, Values: values}, nil
}

func (p *parser) notTest() (ast.Expr, error) {
	if p.atKw("not") {
		t := p.next()
		v, err := p.notTest()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryOp{Pos: posOf(t), Op: ast.Not, Operand: v}, nil
	}
	return p.comparison()
}

func (p *parser) compOp() (ast.Op, bool) {
	t := p.peek()
	switch {
	case t.Type == lexer.Op:
		switch t.Text {
		case "<":
			return ast.Lt, true
		case ">":
			return ast.Gt, true
		case "==":
			return ast.Eq, true
		case ">=":
			return ast.GtE, true
		case "<=":
			return ast.LtE, true
		case "!=":
			return ast.NotEq, true
		}
	case t.Type == lexer.Name && t.Text == "in":
		return ast.In, true
	case t.Type == lexer.Name && t.Text == "is":
		if n := p.peekAt(1); n.Type == lexer.Name && n.Text == "not" {
			return ast.IsNot, true
		}
		return ast.Is, true
	case t.Type == lexer.Name && t.Text == "not":
		if n := p.peekAt(1); n.Type == lexer.Name && n.Text == "in" {
			return ast.NotIn, true
		}
	}
	return ast.OpInvalid, false
}

func (p *parser) comparison() (ast.Expr, error) {
	start := p.peek()
	left, err := p.bitOr()
	if err != nil {
		return nil, err
	}
	op, ok := p.compOp()
	if !ok {
		return left, nil
	}
	cmp := &ast.Compare{Pos: posOf(start), Left: left}
	for ok {
		p.next()
		if op == ast.IsNot || op == ast.NotIn {
			p.next()
		}
		right, err := p.bitOr()
		if err != nil {
			return nil, err
		}
		cmp.Ops = append(cmp.Ops, op)
		cmp.Comparators = append(cmp.Comparators, right)
		op, ok = p.compOp()
	}
	return cmp, nil
}

type binLevel struct {
	ops  map[string]ast.Op
	next func() (ast.Expr, error)
}

func (p *parser) binary(lvl binLevel) (ast.Expr, error) {
	start := p.peek()
	left, err := lvl.next()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.Type != lexer.Op {
			return left, nil
		}
		op, ok := lvl.ops[t.Text]
		if !ok {
			return left, nil
		}
		p.next()
		right, err := lvl.next()
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{Pos: posOf(start), Left: left, Op: op, Right: right}
	}
}

func (p *parser) bitOr() (ast.Expr, error) {
	return p.binary(binLevel{map[string]ast.Op{"|": ast.BitOr}, p.bitXor})
}

func (p *parser) bitXor() (ast.Expr, error) {
	return p.binary(binLevel{map[string]ast.Op{"^": ast.BitXor}, p.bitAnd})
}

func (p *parser) bitAnd() (ast.Expr, error) {
	return p.binary(binLevel{map[string]ast.Op{"&": ast.BitAnd}, p.shift})
}

func (p *parser) shift() (ast.Expr, error) {
	return p.binary(binLevel{map[string]ast.Op{"<<": ast.LShift, ">>": ast.RShift}, p.arith})
}

func (p *parser) arith() (ast.Expr, error) {
	return p.binary(binLevel{map[string]ast.Op{"+": ast.Add, "-": ast.Sub}, p.term})
}

func (p *parser) term() (ast.Expr, error) {
	return p.binary(binLevel{map[string]ast.Op{
		"*": ast.Mult, "/": ast.Div, "//": ast.FloorDiv, "%": ast.Mod,
	}, p.factor})
}

func (p *parser) factor() (ast.Expr, error) {
	t := p.peek()
	if t.Type == lexer.Op {
		var op ast.Op
		switch t.Text {
		case "+":
			op = ast.UAdd
		case "-":
			op = ast.USub
		case "~":
			op = ast.Invert
		}
		if op != ast.OpInvalid {
			p.next()
			v, err := p.factor()
			if err != nil {
				return nil, err
			}
			return &ast.UnaryOp{Pos: posOf(t), Op: op, Operand: v}, nil
		}
	}
	return p.power()
}

func (p *parser) power() (ast.Expr, error) {
	start := p.peek()
	if p.atKw("await") {
		p.next()
		if _, err := p.power(); err != nil {
			return nil, err
		}
		return &ast.Unsupported{Pos: posOf(start), What: "Await"}, nil
	}
	base, err := p.atomExpr()
	if err != nil {
		return nil, err
	}
	if !p.acceptOp("**") {
		return base, nil
	}
	exp, err := p.factor()
	if err != nil {
		return nil, err
	}
	return &ast.BinOp{Pos: posOf(start), Left: base, Op: ast.Pow, Right: exp}, nil
}

func (p *parser) atomExpr() (ast.Expr, error) {
	e, err := p.atom()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.Type != lexer.Op {
			return e, nil
		}
		switch t.Text {
		case "(":
			p.next()
			call, err := p.callArgs(e, t)
			if err != nil {
				return nil, err
			}
			e = call
		case "[":
			p.next()
			idx, err := p.subscriptList()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectOp("]"); err != nil {
				return nil, err
			}
			e = &ast.Subscript{Pos: posOf(t), Value: e, Index: idx}
		case ".":
			p.next()
			n, err := p.expectName()
			if err != nil {
				return nil, err
			}
			e = &ast.Attribute{Pos: e.Position(), Value: e, Attr: n.Text}
		default:
			return e, nil
		}
	}
}

func (p *parser) callArgs(fn ast.Expr, open lexer.Token) (ast.Expr, error) {
	call := &ast.Call{Pos: fn.Position(), Func: fn}
	for !p.atOp(")") {
		switch {
		case p.atOp("**"):
			p.next()
			v, err := p.test()
			if err != nil {
				return nil, err
			}
			call.Keywords = append(call.Keywords, ast.Keyword{Value: v})
		case p.atOp("*"):
			t := p.next()
			v, err := p.test()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, &ast.Starred{Pos: posOf(t), Value: v})
		case p.peek().Type == lexer.Name && p.peekAt(1).Type == lexer.Op && p.peekAt(1).Text == "=":
			n, err := p.expectName()
			if err != nil {
				return nil, err
			}
			p.next()
			v, err := p.test()
			if err != nil {
				return nil, err
			}
			for _, kw := range call.Keywords {
				if kw.Name == n.Text {
					return nil, p.errAt(n, "keyword argument repeated: %s", n.Text)
				}
			}
			call.Keywords = append(call.Keywords, ast.Keyword{Name: n.Text, Value: v})
		default:
			v, err := p.test()
			if err != nil {
				return nil, err
			}
			if p.atKw("for") {
				if err := p.compFor(); err != nil {
					return nil, err
				}
				v = &ast.Unsupported{Pos: v.Position(), What: "GeneratorExp"}
			}
			if len(call.Keywords) > 0 {
				return nil, p.errAt(open, "positional argument follows keyword argument")
			}
			call.Args = append(call.Args, v)
		}
		if !p.acceptOp(",") {
			break
		}
	}
	if _, err := p.expectOp(")"); err != nil {
		return nil, err
	}
	return call, nil
}

func (p *parser) subscriptList() (ast.Expr, error) {
	start := p.peek()
	first, err := p.subscript()
	if err != nil {
		return nil, err
	}
	if !p.atOp(",") {
		return first, nil
	}
	elts := []ast.Expr{first}
	for p.acceptOp(",") {
		if p.atOp("]") {
			break
		}
		e, err := p.subscript()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
	return &ast.Tuple{Pos: posOf(start), Elts: elts}, nil
}

func (p *parser) subscript() (ast.Expr, error) {
	start := p.peek()
	var lower ast.Expr
	if !p.atOp(":") {
		e, err := p.test()
		if err != nil {
			return nil, err
		}
		if !p.atOp(":") {
			return e, nil
		}
		lower = e
	}
	p.next()
	sl := &ast.Slice{Pos: posOf(start), Lower: lower}
	if !p.atOp(":") && !p.atOp("]") && !p.atOp(",") {
		e, err := p.test()
		if err != nil {
			return nil, err
		}
		sl.Upper = e
	}
	if p.acceptOp(":") {
		if !p.atOp("]") && !p.atOp(",") {
			e, err := p.test()
			if err != nil {
				return nil, err
			}
			sl.Step = e
		}
	}
	return sl, nil
}

// compFor consumes comprehension clauses. Comprehensions are parsed only so
// that they can be reported as unsupported with a precise position.
func (p *parser) compFor() error {
	for p.atKw("for") || p.atKw("if") {
		if p.acceptKw("if") {
			if _, err := p.orTest(); err != nil {
				return err
			}
			continue
		}
		p.next()
		if _, err := p.exprList(); err != nil {
			return err
		}
		if err := p.expectKw("in"); err != nil {
			return err
		}
		if _, err := p.orTest(); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) atom() (ast.Expr, error) {
	t := p.peek()
	pos := posOf(t)
	switch t.Type {
	case lexer.Name:
		switch t.Text {
		case "True":
			p.next()
			return &ast.Constant{Pos: pos, Value: true}, nil
		case "False":
			p.next()
			return &ast.Constant{Pos: pos, Value: false}, nil
		case "None":
			p.next()
			return &ast.Constant{Pos: pos, Value: nil}, nil
		}
		if lexer.IsKeyword(t.Text) {
			return nil, p.unexpected()
		}
		p.next()
		return &ast.Name{Pos: pos, ID: t.Text}, nil
	case lexer.Int:
		p.next()
		v, err := strconv.ParseInt(strings.ReplaceAll(t.Text, "_", ""), 0, 64)
		if err != nil {
			return nil, p.errAt(t, "invalid integer literal %s", t.Text)
		}
		return &ast.Constant{Pos: pos, Value: v}, nil
	case lexer.Float:
		p.next()
		v, err := strconv.ParseFloat(strings.ReplaceAll(t.Text, "_", ""), 64)
		if err != nil {
			return nil, p.errAt(t, "invalid float literal %s", t.Text)
		}
		return &ast.Constant{Pos: pos, Value: v}, nil
	case lexer.String, lexer.FString:
		return p.stringAtom()
	case lexer.Op:
		switch t.Text {
		case "(":
			return p.parenAtom()
		case "[":
			return p.listAtom()
		case "{":
			return p.braceAtom()
		}
	}
	return nil, p.unexpected()
}

func (p *parser) parenAtom() (ast.Expr, error) {
	open := p.next()
	if p.acceptOp(")") {
		return &ast.Tuple{Pos: posOf(open)}, nil
	}
	first, err := p.testOrStar()
	if err != nil {
		return nil, err
	}
	if p.atKw("for") {
		if err := p.compFor(); err != nil {
			return nil, err
		}
		if _, err := p.expectOp(")"); err != nil {
			return nil, err
		}
		return &ast.Unsupported{Pos: posOf(open), What: "GeneratorExp"}, nil
	}
	if p.acceptOp(")") {
		return first, nil
	}
	elts := []ast.Expr{first}
	for p.acceptOp(",") {
		if p.atOp(")") {
			break
		}
		e, err := p.testOrStar()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
	if _, err := p.expectOp(")"); err != nil {
		return nil, err
	}
	return &ast.Tuple{Pos: posOf(open), Elts: elts}, nil
}

func (p *parser) listAtom() (ast.Expr, error) {
	open := p.next()
	list := &ast.List{Pos: posOf(open)}
	for !p.atOp("]") {
		e, err := p.testOrStar()
		if err != nil {
			return nil, err
		}
		if len(list.Elts) == 0 && p.atKw("for") {
			if err := p.compFor(); err != nil {
				return nil, err
			}
			if _, err := p.expectOp("]"); err != nil {
				return nil, err
			}
			return &ast.Unsupported{Pos: posOf(open), What: "ListComp"}, nil
		}
		list.Elts = append(list.Elts, e)
		if !p.acceptOp(",") {
			break
		}
	}
	if _, err := p.expectOp("]"); err != nil {
		return nil, err
	}
	return list, nil
}

func (p *parser) braceAtom() (ast.Expr, error) {
	open := p.next()
	if p.acceptOp("}") {
		return &ast.Dict{Pos: posOf(open)}, nil
	}

	if p.atOp("**") {
		return p.dictBody(open)
	}
	first, err := p.test()
	if err != nil {
		return nil, err
	}
	if p.atOp(":") {
		p.pushBack = first
		return p.dictBody(open)
	}

	set := &ast.Set{Pos: posOf(open), Elts: []ast.Expr{first}}
	if p.atKw("for") {
		if err := p.compFor(); err != nil {
			return nil, err
		}
		if _, err := p.expectOp("}"); err != nil {
			return nil, err
		}
		return &ast.Unsupported{Pos: posOf(open), What: "SetComp"}, nil
	}
	for p.acceptOp(",") {
		if p.atOp("}") {
			break
		}
		e, err := p.test()
		if err != nil {
			return nil, err
		}
		set.Elts = append(set.Elts, e)
	}
	if _, err := p.expectOp("}"); err != nil {
		return nil, err
	}
	return set, nil
}

func (p *parser) dictBody(open lexer.Token) (ast.Expr, error) {
	dict := &ast.Dict{Pos: posOf(open)}
	first := true
	for !p.atOp("}") {
		if p.acceptOp("**") {
			v, err := p.bitOr()
			if err != nil {
				return nil, err
			}
			dict.Keys = append(dict.Keys, nil)
			dict.Values = append(dict.Values, v)
		} else {
			var key ast.Expr
			if p.pushBack != nil {
				key, p.pushBack = p.pushBack, nil
			} else {
				k, err := p.test()
				if err != nil {
					return nil, err
				}
				key = k
			}
			if _, err := p.expectOp(":"); err != nil {
				return nil, err
			}
			v, err := p.test()
			if err != nil {
				return nil, err
			}
			if first && p.atKw("for") {
				if err := p.compFor(); err != nil {
					return nil, err
				}
				if _, err := p.expectOp("}"); err != nil {
					return nil, err
				}
				return &ast.Unsupported{Pos: posOf(open), What: "DictComp"}, nil
			}
			dict.Keys = append(dict.Keys, key)
			dict.Values = append(dict.Values, v)
		}
		first = false
		if !p.acceptOp(",") {
			break
		}
	}
	if _, err := p.expectOp("}"); err != nil {
		return nil, err
	}
	return dict, nil
}
