// Package ast defines the syntax tree produced by the parser. It is a thin,
// short-lived representation: the compiler walks it once to emit bytecode
// and discards it, so nodes carry just enough information for that walk and
// for error reporting.
package ast

import "github.com/wudi/gza/lexer"

// Node is implemented by every AST node.
type Node interface {
	Pos() lexer.Position
}

// Statement is implemented by statement nodes.
type Statement interface {
	Node
	stmtNode()
}

// Expression is implemented by expression nodes.
type Expression interface {
	Node
	exprNode()
}

// Program is the root node: a sequence of top-level statements.
type Program struct {
	Statements []Statement
}

func (p *Program) Pos() lexer.Position {
	if len(p.Statements) == 0 {
		return lexer.Position{Line: 1, Column: 1}
	}
	return p.Statements[0].Pos()
}

// ---- Statements ----

// VarDecl is `var name = expr` (global declaration).
type VarDecl struct {
	Position lexer.Position
	Name     string
	Value    Expression // nil if no initializer
}

func (n *VarDecl) Pos() lexer.Position { return n.Position }
func (*VarDecl) stmtNode()             {}

// LocalDecl is `local name = expr`.
type LocalDecl struct {
	Position lexer.Position
	Names    []string
	Values   []Expression
}

func (n *LocalDecl) Pos() lexer.Position { return n.Position }
func (*LocalDecl) stmtNode()             {}

// AssignStmt covers plain assignment and indexed/field assignment targets.
type AssignStmt struct {
	Position lexer.Position
	Target   Expression // Identifier, IndexExpr, or FieldExpr
	Value    Expression
}

func (n *AssignStmt) Pos() lexer.Position { return n.Position }
func (*AssignStmt) stmtNode()             {}

// ExprStmt is an expression evaluated for its side effects (e.g. a call).
type ExprStmt struct {
	Position lexer.Position
	X        Expression
}

func (n *ExprStmt) Pos() lexer.Position { return n.Position }
func (*ExprStmt) stmtNode()             {}

// Block is a brace-delimited or end-delimited statement sequence.
type Block struct {
	Position lexer.Position
	Stmts    []Statement
}

func (n *Block) Pos() lexer.Position { return n.Position }
func (*Block) stmtNode()             {}

// IfStmt supports elseif chains and both brace/keyword syntaxes (the parser
// normalizes both into this single shape).
type IfStmt struct {
	Position lexer.Position
	Cond     Expression
	Then     *Block
	ElseIfs  []*ElseIf
	Else     *Block // nil if absent
}

func (n *IfStmt) Pos() lexer.Position { return n.Position }
func (*IfStmt) stmtNode()             {}

type ElseIf struct {
	Cond Expression
	Then *Block
}

// WhileStmt is `while cond { ... }` / `while cond do ... end`.
type WhileStmt struct {
	Position lexer.Position
	Cond     Expression
	Body     *Block
}

func (n *WhileStmt) Pos() lexer.Position { return n.Position }
func (*WhileStmt) stmtNode()             {}

// RepeatStmt is `repeat ... until cond` (condition evaluated after the body,
// in the body's own scope, so the loop runs at least once).
type RepeatStmt struct {
	Position lexer.Position
	Body     *Block
	Cond     Expression
}

func (n *RepeatStmt) Pos() lexer.Position { return n.Position }
func (*RepeatStmt) stmtNode()             {}

// NumericForStmt is `for i = start, stop[, step] { ... }`.
type NumericForStmt struct {
	Position lexer.Position
	Var      string
	Start    Expression
	Stop     Expression
	Step     Expression // nil => literal 1
	Body     *Block
}

func (n *NumericForStmt) Pos() lexer.Position { return n.Position }
func (*NumericForStmt) stmtNode()             {}

// GenericForStmt is `for k, v in iterExpr { ... }`: iterExpr evaluates once
// to a function, which is then called repeatedly and returns a
// [key, value, ok] triple each time, stopping once ok is falsy.
type GenericForStmt struct {
	Position lexer.Position
	KeyVar   string
	ValVar   string // "" if only one loop variable was given
	Iter     Expression
	Body     *Block
}

func (n *GenericForStmt) Pos() lexer.Position { return n.Position }
func (*GenericForStmt) stmtNode()             {}

// ForRangeStmt is `for i in A .. B { ... }`, a half-open integer range:
// i takes every value from A up to but not including B.
type ForRangeStmt struct {
	Position lexer.Position
	Var      string
	Start    Expression
	Stop     Expression
	Body     *Block
}

func (n *ForRangeStmt) Pos() lexer.Position { return n.Position }
func (*ForRangeStmt) stmtNode()             {}

// FunctionDecl is `function name(params) { ... }`, sugar for
// `var name = function(params) { ... }`.
type FunctionDecl struct {
	Position lexer.Position
	Name     string
	Params   []string
	Body     *Block
}

func (n *FunctionDecl) Pos() lexer.Position { return n.Position }
func (*FunctionDecl) stmtNode()             {}

// ReturnStmt optionally carries a value.
type ReturnStmt struct {
	Position lexer.Position
	Value    Expression // nil => return nil
}

func (n *ReturnStmt) Pos() lexer.Position { return n.Position }
func (*ReturnStmt) stmtNode()             {}

type BreakStmt struct{ Position lexer.Position }

func (n *BreakStmt) Pos() lexer.Position { return n.Position }
func (*BreakStmt) stmtNode()             {}

type ContinueStmt struct{ Position lexer.Position }

func (n *ContinueStmt) Pos() lexer.Position { return n.Position }
func (*ContinueStmt) stmtNode()             {}

// ---- Expressions ----

type Identifier struct {
	Position lexer.Position
	Name     string
}

func (n *Identifier) Pos() lexer.Position { return n.Position }
func (*Identifier) exprNode()             {}

type NumberLiteral struct {
	Position lexer.Position
	Value    float64
}

func (n *NumberLiteral) Pos() lexer.Position { return n.Position }
func (*NumberLiteral) exprNode()             {}

type StringLiteral struct {
	Position lexer.Position
	Value    string
}

func (n *StringLiteral) Pos() lexer.Position { return n.Position }
func (*StringLiteral) exprNode()             {}

type BoolLiteral struct {
	Position lexer.Position
	Value    bool
}

func (n *BoolLiteral) Pos() lexer.Position { return n.Position }
func (*BoolLiteral) exprNode()             {}

type NilLiteral struct{ Position lexer.Position }

func (n *NilLiteral) Pos() lexer.Position { return n.Position }
func (*NilLiteral) exprNode()             {}

// ArrayLiteral is `[e1, e2, ...]`.
type ArrayLiteral struct {
	Position lexer.Position
	Elements []Expression
}

func (n *ArrayLiteral) Pos() lexer.Position { return n.Position }
func (*ArrayLiteral) exprNode()             {}

// TableLiteral is `{ key = value, ... }`.
type TableLiteral struct {
	Position lexer.Position
	Keys     []string
	Values   []Expression
}

func (n *TableLiteral) Pos() lexer.Position { return n.Position }
func (*TableLiteral) exprNode()             {}

// FunctionLiteral is an anonymous `function(params) { ... }`.
type FunctionLiteral struct {
	Position lexer.Position
	Params   []string
	Body     *Block
}

func (n *FunctionLiteral) Pos() lexer.Position { return n.Position }
func (*FunctionLiteral) exprNode()             {}

// BinaryExpr covers arithmetic, comparison, logical, and concat operators.
type BinaryExpr struct {
	Position lexer.Position
	Op       string
	Left     Expression
	Right    Expression
}

func (n *BinaryExpr) Pos() lexer.Position { return n.Position }
func (*BinaryExpr) exprNode()             {}

// UnaryExpr covers `-x`, `not x`, `!x`.
type UnaryExpr struct {
	Position lexer.Position
	Op       string
	X        Expression
}

func (n *UnaryExpr) Pos() lexer.Position { return n.Position }
func (*UnaryExpr) exprNode()             {}

// CallExpr is `callee(args...)`.
type CallExpr struct {
	Position lexer.Position
	Callee   Expression
	Args     []Expression
}

func (n *CallExpr) Pos() lexer.Position { return n.Position }
func (*CallExpr) exprNode()             {}

// IndexExpr is `x[i]`.
type IndexExpr struct {
	Position lexer.Position
	X        Expression
	Index    Expression
}

func (n *IndexExpr) Pos() lexer.Position { return n.Position }
func (*IndexExpr) exprNode()             {}

// FieldExpr is `x.name`, sugar for a string-keyed table index.
type FieldExpr struct {
	Position lexer.Position
	X        Expression
	Name     string
}

func (n *FieldExpr) Pos() lexer.Position { return n.Position }
func (*FieldExpr) exprNode()             {}
