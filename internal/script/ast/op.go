package ast

// Op is an operator used by BinOp, AugAssign, UnaryOp, BoolOp and Compare.
type Op uint8

// Operators.
const (
	OpInvalid Op = iota

	// Binary
	Add
	Sub
	Mult
	Div
	FloorDiv
	Mod
	Pow
	LShift
	RShift
	BitOr
	BitXor
	BitAnd

	// Unary
	Not
	Invert
	UAdd
	USub

	// Boolean
	And
	Or

	// Comparison
	Eq
	NotEq
	Lt
	LtE
	Gt
	GtE
	Is
	IsNot
	In
	NotIn
)

var opSymbols = [...]string{
	OpInvalid: "?",
	Add:       "+",
	Sub:       "-",
	Mult:      "*",
	Div:       "/",
	FloorDiv:  "//",
	Mod:       "%",
	Pow:       "**",
	LShift:    "<<",
	RShift:    ">>",
	BitOr:     "|",
	BitXor:    "^",
	BitAnd:    "&",
	Not:       "not",
	Invert:    "~",
	UAdd:      "+",
	USub:      "-",
	And:       "and",
	Or:        "or",
	Eq:        "==",
	NotEq:     "!=",
	Lt:        "<",
	LtE:       "<=",
	Gt:        ">",
	GtE:       ">=",
	Is:        "is",
	IsNot:     "is not",
	In:        "in",
	NotIn:     "not in",
}

// String returns the operator as written in source.
func (o Op) String() string {
	if int(o) < len(opSymbols) {
		return opSymbols[o]
	}
	return "?"
}
