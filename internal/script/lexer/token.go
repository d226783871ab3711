package lexer

import "fmt"

// Type is a token category.
type Type uint8

// Token types.
const (
	EOF Type = iota
	Newline
	Indent
	Dedent
	Name
	Int
	Float
	String
	FString
	Op
)

var typeNames = [...]string{
	EOF:     "EOF",
	Newline: "NEWLINE",
	Indent:  "INDENT",
	Dedent:  "DEDENT",
	Name:    "NAME",
	Int:     "INT",
	Float:   "FLOAT",
	String:  "STRING",
	FString: "FSTRING",
	Op:      "OP",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", t)
}

// Token is a lexical token. Value holds the decoded string for String and
// the raw body for FString; Text is the source spelling for everything else.
type Token struct {
	Type  Type
	Text  string
	Value string
	Line  int
	Col   int
}

func (t Token) String() string {
	switch t.Type {
	case Name, Int, Float, Op:
		return fmt.Sprintf("%s %q", t.Type, t.Text)
	case String, FString:
		return fmt.Sprintf("%s %q", t.Type, t.Value)
	default:
		return t.Type.String()
	}
}

// keywords are reserved words that can never be used as a Name.
var keywords = map[string]struct{}{
	"False": {}, "None": {}, "True": {}, "and": {}, "as": {}, "assert": {},
	"async": {}, "await": {}, "break": {}, "class": {}, "continue": {},
	"def": {}, "del": {}, "elif": {}, "else": {}, "except": {}, "finally": {},
	"for": {}, "from": {}, "global": {}, "if": {}, "import": {}, "in": {},
	"is": {}, "lambda": {}, "nonlocal": {}, "not": {}, "or": {}, "pass": {},
	"raise": {}, "return": {}, "try": {}, "while": {}, "with": {}, "yield": {},
}

// IsKeyword reports whether s is a reserved word.
func IsKeyword(s string) bool {
	_, ok := keywords[s]
	return ok
}
