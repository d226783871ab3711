package ast

// Kind identifies the concrete type of a syntax node.
type Kind uint8

// Node kinds. The order is significant only in that NumKinds must stay last.
const (
	KindModule Kind = iota

	// Statements
	KindExprStmt
	KindAssign
	KindAugAssign
	KindDelete
	KindIf
	KindWhile
	KindFor
	KindBreak
	KindContinue
	KindReturn
	KindPass
	KindGlobal
	KindNonlocal
	KindFunctionDef
	KindImport
	KindImportFrom

	// Expressions
	KindName
	KindAttribute
	KindConstant
	KindBinOp
	KindUnaryOp
	KindBoolOp
	KindCompare
	KindCall
	KindStarred
	KindSubscript
	KindSlice
	KindList
	KindTuple
	KindDict
	KindSet
	KindIfExp
	KindJoinedStr
	KindFormattedValue

	// KindUnsupported marks syntax that parses but is outside the language
	// subset (classes, try, lambda, comprehensions...).
	KindUnsupported

	NumKinds
)

var kindNames = [...]string{
	KindModule:         "Module",
	KindExprStmt:       "Expr",
	KindAssign:         "Assign",
	KindAugAssign:      "AugAssign",
	KindDelete:         "Delete",
	KindIf:             "If",
	KindWhile:          "While",
	KindFor:            "For",
	KindBreak:          "Break",
	KindContinue:       "Continue",
	KindReturn:         "Return",
	KindPass:           "Pass",
	KindGlobal:         "Global",
	KindNonlocal:       "Nonlocal",
	KindFunctionDef:    "FunctionDef",
	KindImport:         "Import",
	KindImportFrom:     "ImportFrom",
	KindName:           "Name",
	KindAttribute:      "Attribute",
	KindConstant:       "Constant",
	KindBinOp:          "BinOp",
	KindUnaryOp:        "UnaryOp",
	KindBoolOp:         "BoolOp",
	KindCompare:        "Compare",
	KindCall:           "Call",
	KindStarred:        "Starred",
	KindSubscript:      "Subscript",
	KindSlice:          "Slice",
	KindList:           "List",
	KindTuple:          "Tuple",
	KindDict:           "Dict",
	KindSet:            "Set",
	KindIfExp:          "IfExp",
	KindJoinedStr:      "JoinedStr",
	KindFormattedValue: "FormattedValue",
	KindUnsupported:    "Unsupported",
}

// String returns the node kind name.
func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "Unknown"
}

// Pos is a source position. Line is 1-based, Col is 0-based.
type Pos struct {
	Line int
	Col  int
}

// Position returns the position itself so that embedding Pos satisfies Node.
func (p Pos) Position() Pos { return p }

// Node is implemented by every syntax tree node.
type Node interface {
	Kind() Kind
	Position() Pos
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// Module is a compiled script.
type Module struct {
	Pos
	Filename string
	Body     []Stmt
}

func (*Module) Kind() Kind { return KindModule }

// ─── Statements ────────────────────────────────────────────────────

// ExprStmt is an expression evaluated for its value or side effects.
type ExprStmt struct {
	Pos
	Value Expr
}

// Assign is `t1 = t2 = value`.
type Assign struct {
	Pos
	Targets []Expr
	Value   Expr
}

// AugAssign is `target op= value`.
type AugAssign struct {
	Pos
	Target Expr
	Op     Op
	Value  Expr
}

// Delete is `del a, b[c]`.
type Delete struct {
	Pos
	Targets []Expr
}

// If is an if/elif/else chain; elif is represented as a nested If in Else.
type If struct {
	Pos
	Test Expr
	Body []Stmt
	Else []Stmt
}

// While is a while loop with optional else clause.
type While struct {
	Pos
	Test Expr
	Body []Stmt
	Else []Stmt
}

// For is a for loop with optional else clause.
type For struct {
	Pos
	Target Expr
	Iter   Expr
	Body   []Stmt
	Else   []Stmt
}

// Break is `break`.
type Break struct{ Pos }

// Continue is `continue`.
type Continue struct{ Pos }

// Return is `return [value]`. Value is nil for a bare return.
type Return struct {
	Pos
	Value Expr
}

// Pass is `pass`.
type Pass struct{ Pos }

// Global is `global a, b`.
type Global struct {
	Pos
	Names []string
}

// Nonlocal is `nonlocal a, b`.
type Nonlocal struct {
	Pos
	Names []string
}

// Arguments describes a function parameter list.
//
// Defaults align with the tail of Args. KwDefaults aligns with KwOnly and
// holds nil where a keyword-only parameter has no default.
type Arguments struct {
	Args       []string
	Defaults   []Expr
	Vararg     string
	KwOnly     []string
	KwDefaults []Expr
	Kwarg      string
}

// FunctionDef is a `def` statement with its decorators.
type FunctionDef struct {
	Pos
	Name       string
	Args       *Arguments
	Body       []Stmt
	Decorators []Expr
	Doc        string
	HasDoc     bool
}

// Alias is one `name [as asname]` clause of an import.
type Alias struct {
	Name   string
	AsName string
}

// Import is `import a [as b], c`.
type Import struct {
	Pos
	Names []Alias
}

// ImportFrom is `from m import a [as b]`.
type ImportFrom struct {
	Pos
	Module string
	Names  []Alias
}

func (*ExprStmt) Kind() Kind    { return KindExprStmt }
func (*Assign) Kind() Kind      { return KindAssign }
func (*AugAssign) Kind() Kind   { return KindAugAssign }
func (*Delete) Kind() Kind      { return KindDelete }
func (*If) Kind() Kind          { return KindIf }
func (*While) Kind() Kind       { return KindWhile }
func (*For) Kind() Kind         { return KindFor }
func (*Break) Kind() Kind       { return KindBreak }
func (*Continue) Kind() Kind    { return KindContinue }
func (*Return) Kind() Kind      { return KindReturn }
func (*Pass) Kind() Kind        { return KindPass }
func (*Global) Kind() Kind      { return KindGlobal }
func (*Nonlocal) Kind() Kind    { return KindNonlocal }
func (*FunctionDef) Kind() Kind { return KindFunctionDef }
func (*Import) Kind() Kind      { return KindImport }
func (*ImportFrom) Kind() Kind  { return KindImportFrom }

func (*ExprStmt) stmtNode()    {}
func (*Assign) stmtNode()      {}
func (*AugAssign) stmtNode()   {}
func (*Delete) stmtNode()      {}
func (*If) stmtNode()          {}
func (*While) stmtNode()       {}
func (*For) stmtNode()         {}
func (*Break) stmtNode()       {}
func (*Continue) stmtNode()    {}
func (*Return) stmtNode()      {}
func (*Pass) stmtNode()        {}
func (*Global) stmtNode()      {}
func (*Nonlocal) stmtNode()    {}
func (*FunctionDef) stmtNode() {}
func (*Import) stmtNode()      {}
func (*ImportFrom) stmtNode()  {}
func (*Unsupported) stmtNode() {}

// ─── Expressions ───────────────────────────────────────────────────

// Name is an identifier.
type Name struct {
	Pos
	ID string
}

// Attribute is `value.attr`.
type Attribute struct {
	Pos
	Value Expr
	Attr  string
}

// Constant is a literal: nil, bool, int64, float64 or string.
type Constant struct {
	Pos
	Value any
}

// BinOp is `left op right`.
type BinOp struct {
	Pos
	Left  Expr
	Op    Op
	Right Expr
}

// UnaryOp is `op operand`.
type UnaryOp struct {
	Pos
	Op      Op
	Operand Expr
}

// BoolOp is `a and b and c` or `a or b or c`.
type BoolOp struct {
	Pos
	Op     Op
	Values []Expr
}

// Compare is a comparison chain `left op1 c1 op2 c2 ...`.
type Compare struct {
	Pos
	Left        Expr
	Ops         []Op
	Comparators []Expr
}

// Keyword is a `name=value` call argument. Name is empty for `**value`.
type Keyword struct {
	Name  string
	Value Expr
}

// Call is a function call.
type Call struct {
	Pos
	Func     Expr
	Args     []Expr
	Keywords []Keyword
}

// Starred is `*value` in a call argument list.
type Starred struct {
	Pos
	Value Expr
}

// Subscript is `value[index]`; Index is a *Slice for slicing.
type Subscript struct {
	Pos
	Value Expr
	Index Expr
}

// Slice is `lower:upper:step`; absent bounds are nil.
type Slice struct {
	Pos
	Lower Expr
	Upper Expr
	Step  Expr
}

// List is a list display.
type List struct {
	Pos
	Elts []Expr
}

// Tuple is a tuple display.
type Tuple struct {
	Pos
	Elts []Expr
}

// Dict is a dict display. A nil key marks a `**mapping` entry.
type Dict struct {
	Pos
	Keys   []Expr
	Values []Expr
}

// Set is a set display.
type Set struct {
	Pos
	Elts []Expr
}

// IfExp is `body if test else orelse`.
type IfExp struct {
	Pos
	Test   Expr
	Body   Expr
	OrElse Expr
}

// JoinedStr is an f-string: a concatenation of constants and FormattedValues.
type JoinedStr struct {
	Pos
	Values []Expr
}

// FormattedValue is one `{value!conv:spec}` field of an f-string.
// Conversion is 0, 'r', 's' or 'a'. FormatSpec may be nil.
type FormattedValue struct {
	Pos
	Value      Expr
	Conversion rune
	FormatSpec Expr
}

// Unsupported is syntax recognised by the parser but not by the language
// subset. What names the construct, for example "ClassDef" or "Lambda".
type Unsupported struct {
	Pos
	What string
}

func (*Name) Kind() Kind           { return KindName }
func (*Attribute) Kind() Kind      { return KindAttribute }
func (*Constant) Kind() Kind       { return KindConstant }
func (*BinOp) Kind() Kind          { return KindBinOp }
func (*UnaryOp) Kind() Kind        { return KindUnaryOp }
func (*BoolOp) Kind() Kind         { return KindBoolOp }
func (*Compare) Kind() Kind        { return KindCompare }
func (*Call) Kind() Kind           { return KindCall }
func (*Starred) Kind() Kind        { return KindStarred }
func (*Subscript) Kind() Kind      { return KindSubscript }
func (*Slice) Kind() Kind          { return KindSlice }
func (*List) Kind() Kind           { return KindList }
func (*Tuple) Kind() Kind          { return KindTuple }
func (*Dict) Kind() Kind           { return KindDict }
func (*Set) Kind() Kind            { return KindSet }
func (*IfExp) Kind() Kind          { return KindIfExp }
func (*JoinedStr) Kind() Kind      { return KindJoinedStr }
func (*FormattedValue) Kind() Kind { return KindFormattedValue }
func (*Unsupported) Kind() Kind    { return KindUnsupported }

func (*Name) exprNode()           {}
func (*Attribute) exprNode()      {}
func (*Constant) exprNode()       {}
func (*BinOp) exprNode()          {}
func (*UnaryOp) exprNode()        {}
func (*BoolOp) exprNode()         {}
func (*Compare) exprNode()        {}
func (*Call) exprNode()           {}
func (*Starred) exprNode()        {}
func (*Subscript) exprNode()      {}
func (*Slice) exprNode()          {}
func (*List) exprNode()           {}
func (*Tuple) exprNode()          {}
func (*Dict) exprNode()           {}
func (*Set) exprNode()            {}
func (*IfExp) exprNode()          {}
func (*JoinedStr) exprNode()      {}
func (*FormattedValue) exprNode() {}
func (*Unsupported) exprNode()    {}
