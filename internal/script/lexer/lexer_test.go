package lexer

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type tok struct {
	Type Type
	Text string
}

func simplify(toks []Token) []tok {
	out := make([]tok, len(toks))
	for i, t := range toks {
		text := t.Text
		if t.Type == String || t.Type == FString {
			text = t.Value
		}
		out[i] = tok{t.Type, text}
	}
	return out
}

func TestTokenize_Indentation(t *testing.T) {
	src := "if x:\n    y = 1\n\n    # comment\n    z(\n  2)\nw\n"
	toks, err := Tokenize(src)
	if err != nil {
		t.Fatalf("Tokenize() error = %v", err)
	}
	want := []tok{
		{Name, "if"}, {Name, "x"}, {Op, ":"}, {Newline, ""},
		{Indent, ""},
		{Name, "y"}, {Op, "="}, {Int, "1"}, {Newline, ""},
		{Name, "z"}, {Op, "("}, {Int, "2"}, {Op, ")"}, {Newline, ""},
		{Dedent, ""},
		{Name, "w"}, {Newline, ""},
		{EOF, ""},
	}
	if diff := cmp.Diff(want, simplify(toks)); diff != "" {
		t.Errorf("tokens mismatch (-want +got):\n%s", diff)
	}
}

func TestTokenize_DedentAtEOF(t *testing.T) {
	toks, err := Tokenize("def f():\n    if a:\n        pass")
	if err != nil {
		t.Fatalf("Tokenize() error = %v", err)
	}
	dedents := 0
	for _, tk := range toks {
		if tk.Type == Dedent {
			dedents++
		}
	}
	if dedents != 2 {
		t.Errorf("dedents = %d, want 2", dedents)
	}
	if last := toks[len(toks)-1]; last.Type != EOF {
		t.Errorf("last token = %v, want EOF", last)
	}
}

func TestTokenize_Numbers(t *testing.T) {
	tests := []struct {
		src  string
		want tok
	}{
		{"42", tok{Int, "42"}},
		{"0xFF", tok{Int, "0xFF"}},
		{"0o17", tok{Int, "0o17"}},
		{"1_000", tok{Int, "1_000"}},
		{"3.14", tok{Float, "3.14"}},
		{".5", tok{Float, ".5"}},
		{"1e-3", tok{Float, "1e-3"}},
		{"2.", tok{Float, "2."}},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			toks, err := Tokenize(tt.src)
			if err != nil {
				t.Fatalf("Tokenize(%q) error = %v", tt.src, err)
			}
			if got := simplify(toks)[0]; got != tt.want {
				t.Errorf("Tokenize(%q)[0] = %v, want %v", tt.src, got, tt.want)
			}
		})
	}
}

func TestTokenize_Strings(t *testing.T) {
	tests := []struct {
		src  string
		want tok
	}{
		{`'a\tb'`, tok{String, "a\tb"}},
		{`"it's"`, tok{String, "it's"}},
		{`r'a\nb'`, tok{String, `a\nb`}},
		{`'\x41\u00e9'`, tok{String, "Aé"}},
		{`'''multi
line'''`, tok{String, "multi\nline"}},
		{`f"{x}\n"`, tok{FString, `{x}\n`}},
		{`'\d'`, tok{String, `\d`}},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			toks, err := Tokenize(tt.src)
			if err != nil {
				t.Fatalf("Tokenize(%q) error = %v", tt.src, err)
			}
			if got := simplify(toks)[0]; got != tt.want {
				t.Errorf("Tokenize(%q)[0] = %v, want %v", tt.src, got, tt.want)
			}
		})
	}
}

func TestTokenize_Operators(t *testing.T) {
	toks, err := Tokenize("a **= b // c != d -> e")
	if err != nil {
		t.Fatalf("Tokenize() error = %v", err)
	}
	var ops []string
	for _, tk := range toks {
		if tk.Type == Op {
			ops = append(ops, tk.Text)
		}
	}
	want := []string{"**=", "//", "!=", "->"}
	if diff := cmp.Diff(want, ops); diff != "" {
		t.Errorf("ops mismatch (-want +got):\n%s", diff)
	}
}

func TestTokenize_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
	}{
		{"unterminated string", "x = 'abc\n", 1},
		{"bad dedent", "if x:\n    a\n  b\n", 3},
		{"unclosed bracket", "f(\n", 2},
		{"unmatched bracket", "x)\n", 1},
		{"complex literal", "3j", 1},
		{"invalid character", "a $ b", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Tokenize(tt.src)
			var lerr *Error
			if !errors.As(err, &lerr) {
				t.Fatalf("Tokenize(%q) error = %v, want *Error", tt.src, err)
			}
			if lerr.Line != tt.line {
				t.Errorf("Line = %d, want %d", lerr.Line, tt.line)
			}
		})
	}
}

func TestUnescape(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`a\nb`, "a\nb"},
		{`\\`, `\`},
		{`\101`, "A"},
		{`\U0001F600`, "😀"},
		{`\q`, `\q`},
	}
	for _, tt := range tests {
		got, err := Unescape(tt.in)
		if err != nil {
			t.Errorf("Unescape(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Unescape(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if _, err := Unescape(`\x4`); err == nil {
		t.Error(`Unescape("\x4") expected error`)
	}
}
