// Package ast defines the syntax tree produced by the script parser.
//
// The tree is a closed set of node types. Every node reports a Kind, and the
// evaluator dispatches on that Kind through a table rather than through
// reflection or type switches spread across the code base.
//
// # Key Types
//
//   - Module: the root of a compiled script (a list of statements)
//   - Stmt / Expr: marker interfaces for statement and expression nodes
//   - Kind: the closed enumeration of node kinds
//   - Pos: 1-based line and 0-based column of the node's first token
//
// Helpers:
//
//   - DottedName flattens an attribute chain such as a.b.c into "a.b.c"
//   - Names lists every variable name an expression mentions, which is how
//     state-trigger expressions learn which state variables to watch
package ast
