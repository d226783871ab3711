package ast

import "strings"

// Inspect traverses the tree rooted at n in depth-first order. If f returns
// false the children of that node are skipped.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	for _, c := range children(n) {
		Inspect(c, f)
	}
}

func children(n Node) []Node {
	var out []Node
	addE := func(es ...Expr) {
		for _, e := range es {
			if e != nil {
				out = append(out, e)
			}
		}
	}
	addS := func(ss []Stmt) {
		for _, s := range ss {
			out = append(out, s)
		}
	}

	switch n := n.(type) {
	case *Module:
		addS(n.Body)
	case *ExprStmt:
		addE(n.Value)
	case *Assign:
		addE(n.Targets...)
		addE(n.Value)
	case *AugAssign:
		addE(n.Target, n.Value)
	case *Delete:
		addE(n.Targets...)
	case *If:
		addE(n.Test)
		addS(n.Body)
		addS(n.Else)
	case *While:
		addE(n.Test)
		addS(n.Body)
		addS(n.Else)
	case *For:
		addE(n.Target, n.Iter)
		addS(n.Body)
		addS(n.Else)
	case *Return:
		addE(n.Value)
	case *FunctionDef:
		addE(n.Decorators...)
		addE(n.Args.Defaults...)
		addE(n.Args.KwDefaults...)
		addS(n.Body)
	case *Attribute:
		addE(n.Value)
	case *BinOp:
		addE(n.Left, n.Right)
	case *UnaryOp:
		addE(n.Operand)
	case *BoolOp:
		addE(n.Values...)
	case *Compare:
		addE(n.Left)
		addE(n.Comparators...)
	case *Call:
		addE(n.Func)
		addE(n.Args...)
		for _, kw := range n.Keywords {
			addE(kw.Value)
		}
	case *Starred:
		addE(n.Value)
	case *Subscript:
		addE(n.Value, n.Index)
	case *Slice:
		addE(n.Lower, n.Upper, n.Step)
	case *List:
		addE(n.Elts...)
	case *Tuple:
		addE(n.Elts...)
	case *Dict:
		addE(n.Keys...)
		addE(n.Values...)
	case *Set:
		addE(n.Elts...)
	case *IfExp:
		addE(n.Test, n.Body, n.OrElse)
	case *JoinedStr:
		addE(n.Values...)
	case *FormattedValue:
		addE(n.Value, n.FormatSpec)
	}
	return out
}

// DottedName flattens an attribute chain whose root is a Name, so that
// Attribute(Attribute(Name(a), b), c) becomes "a.b.c". It returns "" when
// the chain is rooted at anything other than a Name.
func DottedName(a *Attribute) string {
	parts := []string{a.Attr}
	val := a.Value
	for {
		switch v := val.(type) {
		case *Attribute:
			parts = append(parts, v.Attr)
			val = v.Value
			continue
		case *Name:
			parts = append(parts, v.ID)
		default:
			return ""
		}
		break
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ".")
}

// Names returns every variable name mentioned in n, in first-seen order.
// Attribute chains rooted at a Name are reported once, fully dotted.
func Names(n Node) []string {
	seen := make(map[string]struct{})
	var names []string
	add := func(s string) {
		if s == "" {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		names = append(names, s)
	}
	Inspect(n, func(n Node) bool {
		switch n := n.(type) {
		case *Attribute:
			if full := DottedName(n); full != "" {
				add(full)
				return false
			}
		case *Name:
			add(n.ID)
		}
		return true
	})
	return names
}

// DeclaredNames collects the names declared global and nonlocal anywhere in
// body, not descending into nested function definitions. Declarations apply
// to the whole body regardless of where they appear.
func DeclaredNames(body []Stmt) (globals, nonlocals map[string]struct{}) {
	globals = make(map[string]struct{})
	nonlocals = make(map[string]struct{})
	for _, s := range body {
		Inspect(s, func(n Node) bool {
			switch n := n.(type) {
			case *FunctionDef:
				return false
			case *Global:
				for _, name := range n.Names {
					globals[name] = struct{}{}
				}
			case *Nonlocal:
				for _, name := range n.Names {
					nonlocals[name] = struct{}{}
				}
			}
			return true
		})
	}
	return globals, nonlocals
}
