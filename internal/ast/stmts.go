package ast

import (
	"github.com/ciphrpool/ciphel-sub003/internal/scope"
	"github.com/ciphrpool/ciphel-sub003/internal/token"
	"github.com/ciphrpool/ciphel-sub003/internal/types"
)

// LetPattern is the left-hand side of a LetStmt: a single name or a
// destructuring tuple/struct pattern (SPEC_FULL §4.B point 3).
type LetPattern struct {
	// Name is set for a plain `let x = ...`.
	Name string

	// TupleBinds is set for `let (a, b) = ...`.
	TupleBinds []string

	// StructType/StructBinds are set for `let T{a, b} = ...`.
	StructType  string
	StructBinds []string
}

// LetStmt declares one or more new bindings in the current scope.
type LetStmt struct {
	Kind    token.Token // LET or CONST
	Pattern LetPattern
	Type    *TypeExpr // explicit annotation, nil when inferred from Value
	Value   Expr
	Span_   Span
}

func (n *LetStmt) Span() Span { return n.Span_ }
func (n *LetStmt) Walk(v Visitor) {
	if v(n) {
		Walk(v, n.Value)
	}
}
func (*LetStmt) IsLoop() bool { return false }
func (*LetStmt) stmtNode()    {}

// AssignStmt is `target = value` or a compound assignment desugared by the
// parser into an equivalent BinOpExpr already, so Op is always plain
// assignment here.
type AssignStmt struct {
	Target Expr
	Value  Expr
	Span_  Span
}

func (n *AssignStmt) Span() Span { return n.Span_ }
func (n *AssignStmt) Walk(v Visitor) {
	if v(n) {
		Walk(v, n.Target)
		Walk(v, n.Value)
	}
}
func (*AssignStmt) IsLoop() bool { return false }
func (*AssignStmt) stmtNode()    {}

// ExprStmt is an expression evaluated for its side effects (typically a
// CallExpr).
type ExprStmt struct {
	X     Expr
	Span_ Span
}

func (n *ExprStmt) Span() Span { return n.Span_ }
func (n *ExprStmt) Walk(v Visitor) {
	if v(n) {
		Walk(v, n.X)
	}
}
func (*ExprStmt) IsLoop() bool { return false }
func (*ExprStmt) stmtNode()    {}

// ElseIf is one `else if Cond { Body }` link of an IfStmt chain.
type ElseIf struct {
	Cond Expr
	Body *Block
}

// IfStmt is `if Cond { Then } else if ... else { Else }`. It is a statement
// only: it has no expression form and yields no value (LetStmt and
// ReturnStmt take an Expr, which an IfStmt is not).
type IfStmt struct {
	Cond    Expr
	Then    *Block
	ElseIfs []ElseIf
	Else    *Block // nil when no else/else-if arm
	Span_   Span
}

func (n *IfStmt) Span() Span { return n.Span_ }
func (n *IfStmt) Walk(v Visitor) {
	if !v(n) {
		return
	}
	Walk(v, n.Cond)
	Walk(v, n.Then)
	for _, ei := range n.ElseIfs {
		Walk(v, ei.Cond)
		Walk(v, ei.Body)
	}
	if n.Else != nil {
		Walk(v, n.Else)
	}
}
func (*IfStmt) IsLoop() bool { return false }
func (*IfStmt) stmtNode()    {}

// WhileStmt is `while Cond { Body }`.
type WhileStmt struct {
	Cond  Expr
	Body  *Block
	Span_ Span
}

func (n *WhileStmt) Span() Span { return n.Span_ }
func (n *WhileStmt) Walk(v Visitor) {
	if v(n) {
		Walk(v, n.Cond)
		Walk(v, n.Body)
	}
}
func (*WhileStmt) IsLoop() bool { return true }
func (*WhileStmt) stmtNode()    {}

// ForStmt is a classic three-clause `for Init; Cond; Post { Body }`; the
// code generator desugars it to an equivalent While (SPEC_FULL §4.C).
type ForStmt struct {
	Init  Stmt // nil-able
	Cond  Expr // nil-able, defaults to true
	Post  Stmt // nil-able
	Body  *Block
	Span_ Span
}

func (n *ForStmt) Span() Span { return n.Span_ }
func (n *ForStmt) Walk(v Visitor) {
	if !v(n) {
		return
	}
	if n.Init != nil {
		Walk(v, n.Init)
	}
	if n.Cond != nil {
		Walk(v, n.Cond)
	}
	Walk(v, n.Body)
	if n.Post != nil {
		Walk(v, n.Post)
	}
}
func (*ForStmt) IsLoop() bool { return true }
func (*ForStmt) stmtNode()    {}

// ForInStmt is `for x in Iterable { Body }`, lowered by the code generator
// to an iterator triplet (cursor init/has-next/advance) over Iterable's
// Slice/Vec/Map/Channel/Range value.
type ForInStmt struct {
	Var      string
	Iterable Expr
	Body     *Block
	Span_    Span

	// BodyScope is the scope the resolver created for Body, where Var lives
	// as a *scope.Variable; set so the code generator can assign it an
	// offset without re-declaring it.
	BodyScope *scope.Scope
}

func (n *ForInStmt) Span() Span { return n.Span_ }
func (n *ForInStmt) Walk(v Visitor) {
	if v(n) {
		Walk(v, n.Iterable)
		Walk(v, n.Body)
	}
}
func (*ForInStmt) IsLoop() bool { return true }
func (*ForInStmt) stmtNode()    {}

// FuncStmt declares a named, module-level or nested function.
type FuncStmt struct {
	Name  string
	Sig   FuncSignature
	Body  *Block
	Span_ Span

	// Captures is non-empty only for a FuncStmt nested inside another
	// function's body; a module-level function never captures.
	Captures []*scope.Variable

	// ResolvedSig is filled in by the resolver with the function's full
	// parameter/return types, so the code generator never has to re-derive
	// types.Type from source-level TypeExpr syntax.
	ResolvedSig types.StaticFn

	// BodyScope is the scope the resolver entered for this function's body
	// (where its parameters live as *scope.Variable), so the code generator
	// can assign them FZ offsets without re-declaring them.
	BodyScope *scope.Scope
}

func (n *FuncStmt) Span() Span { return n.Span_ }
func (n *FuncStmt) Walk(v Visitor) {
	if v(n) {
		Walk(v, n.Body)
	}
}
func (*FuncStmt) IsLoop() bool { return false }
func (*FuncStmt) stmtNode()    {}

// ReturnStmt returns from the enclosing function; Value is nil for a bare
// `return` from a unit-typed function.
type ReturnStmt struct {
	Value Expr // nil-able
	Span_ Span
}

func (n *ReturnStmt) Span() Span { return n.Span_ }
func (n *ReturnStmt) Walk(v Visitor) {
	if v(n) && n.Value != nil {
		Walk(v, n.Value)
	}
}
func (*ReturnStmt) IsLoop() bool { return false }
func (*ReturnStmt) stmtNode()    {}

// BreakStmt exits the nearest enclosing loop.
type BreakStmt struct{ Span_ Span }

func (n *BreakStmt) Span() Span     { return n.Span_ }
func (n *BreakStmt) Walk(v Visitor) { v(n) }
func (*BreakStmt) IsLoop() bool     { return false }
func (*BreakStmt) stmtNode()        {}

// ContinueStmt jumps to the next iteration of the nearest enclosing loop.
type ContinueStmt struct{ Span_ Span }

func (n *ContinueStmt) Span() Span     { return n.Span_ }
func (n *ContinueStmt) Walk(v Visitor) { v(n) }
func (*ContinueStmt) IsLoop() bool     { return false }
func (*ContinueStmt) stmtNode()        {}

// MatchStmt is the statement form of match: arm bodies run for effect and
// are not required to merge to a common type.
type MatchStmt struct {
	Scrutinee Expr
	Arms      []MatchArm
	Span_     Span
}

func (n *MatchStmt) Span() Span { return n.Span_ }
func (n *MatchStmt) Walk(v Visitor) {
	if !v(n) {
		return
	}
	Walk(v, n.Scrutinee)
	for _, a := range n.Arms {
		if a.Pattern != nil {
			Walk(v, a.Pattern)
		}
		Walk(v, a.Body)
	}
}
func (*MatchStmt) IsLoop() bool { return false }
func (*MatchStmt) stmtNode()    {}

// TryStmt is the statement form of try: Body runs for effect, Else runs if
// Body raised a catchable error; neither arm's type is required.
type TryStmt struct {
	Body  *Block
	Else  *Block
	Span_ Span
}

func (n *TryStmt) Span() Span { return n.Span_ }
func (n *TryStmt) Walk(v Visitor) {
	if !v(n) {
		return
	}
	Walk(v, n.Body)
	if n.Else != nil {
		Walk(v, n.Else)
	}
}
func (*TryStmt) IsLoop() bool { return false }
func (*TryStmt) stmtNode()    {}

// ThrowStmt raises Value as a catchable error, unwinding to the nearest
// enclosing try's else arm.
type ThrowStmt struct {
	Value Expr
	Span_ Span
}

func (n *ThrowStmt) Span() Span { return n.Span_ }
func (n *ThrowStmt) Walk(v Visitor) {
	if v(n) {
		Walk(v, n.Value)
	}
}
func (*ThrowStmt) IsLoop() bool { return false }
func (*ThrowStmt) stmtNode()    {}

// StructField is one field of a StructDecl/union-arm declaration.
type StructField struct {
	Name string
	Type TypeExpr
}

// StructDecl declares a named struct type.
type StructDecl struct {
	Name   string
	Fields []StructField
}

// UnionArmDecl is one `Variant{f1: T1, ...}` arm of a UnionDecl.
type UnionArmDecl struct {
	Variant string
	Fields  []StructField
}

// UnionDecl declares a named tagged-union type.
type UnionDecl struct {
	Name string
	Arms []UnionArmDecl
}

// EnumDecl declares a named plain enum type.
type EnumDecl struct {
	Name     string
	Variants []string
}

// TypeDeclStmt wraps exactly one of Struct/Union/Enum, whichever the
// parser produced.
type TypeDeclStmt struct {
	Struct *StructDecl
	Union  *UnionDecl
	Enum   *EnumDecl
	Span_  Span
}

func (n *TypeDeclStmt) Span() Span     { return n.Span_ }
func (n *TypeDeclStmt) Walk(v Visitor) { v(n) }
func (*TypeDeclStmt) IsLoop() bool     { return false }
func (*TypeDeclStmt) stmtNode()        {}
