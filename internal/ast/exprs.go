package ast

import (
	"github.com/ciphrpool/ciphel-sub003/internal/scope"
	"github.com/ciphrpool/ciphel-sub003/internal/token"
)

// IdentExpr is a bare identifier reference.
type IdentExpr struct {
	Metadata
	Name  string
	Span_ Span
}

func (n *IdentExpr) Span() Span    { return n.Span_ }
func (n *IdentExpr) Walk(v Visitor) { v(n) }
func (*IdentExpr) exprNode()        {}

// LiteralKind identifies the shape of a LiteralExpr's value.
type LiteralKind uint8

const (
	IntLit LiteralKind = iota
	FloatLit
	BoolLit
	CharLit
	StringLit
)

// LiteralExpr is a literal value. Numeric literals start with an
// Unresolved-width type (per 4.A) until the resolver pins them.
type LiteralExpr struct {
	Metadata
	Kind  LiteralKind
	Int   int64
	Float float64
	Bool  bool
	Char  rune
	Str   string
	Span_ Span
}

func (n *LiteralExpr) Span() Span    { return n.Span_ }
func (n *LiteralExpr) Walk(v Visitor) { v(n) }
func (*LiteralExpr) exprNode()        {}

// BinOpExpr is a binary operator expression.
type BinOpExpr struct {
	Metadata
	Op          token.Token
	Left, Right Expr
	Span_       Span
}

func (n *BinOpExpr) Span() Span { return n.Span_ }
func (n *BinOpExpr) Walk(v Visitor) {
	if v(n) {
		Walk(v, n.Left)
		Walk(v, n.Right)
	}
}
func (*BinOpExpr) exprNode() {}

// UnaryOpExpr is a unary operator expression.
type UnaryOpExpr struct {
	Metadata
	Op    token.Token
	Right Expr
	Span_ Span
}

func (n *UnaryOpExpr) Span() Span { return n.Span_ }
func (n *UnaryOpExpr) Walk(v Visitor) {
	if v(n) {
		Walk(v, n.Right)
	}
}
func (*UnaryOpExpr) exprNode() {}

// CallExpr is a function or intrinsic call. Fn resolves either to a
// user-defined StaticFn/Closure binding or, when the callee name is not
// otherwise bound, to a PlatformApi intrinsic (vec, push, pop, send,
// receive, spawn, print, math builtins, ...).
type CallExpr struct {
	Metadata
	Fn    Expr
	Args  []Expr
	Span_ Span
}

func (n *CallExpr) Span() Span { return n.Span_ }
func (n *CallExpr) Walk(v Visitor) {
	if v(n) {
		Walk(v, n.Fn)
		for _, a := range n.Args {
			Walk(v, a)
		}
	}
}
func (*CallExpr) exprNode() {}

// IndexExpr is a[i] indexing, valid against Slice, StrSlice, Vec, Map and
// String operands.
type IndexExpr struct {
	Metadata
	Prefix, Index Expr
	Span_         Span
}

func (n *IndexExpr) Span() Span { return n.Span_ }
func (n *IndexExpr) Walk(v Visitor) {
	if v(n) {
		Walk(v, n.Prefix)
		Walk(v, n.Index)
	}
}
func (*IndexExpr) exprNode() {}

// DotExpr is x.field, valid against Struct and Union-arm-bound values.
type DotExpr struct {
	Metadata
	Left  Expr
	Field string
	Span_ Span
}

func (n *DotExpr) Span() Span { return n.Span_ }
func (n *DotExpr) Walk(v Visitor) {
	if v(n) {
		Walk(v, n.Left)
	}
}
func (*DotExpr) exprNode() {}

// ParenExpr is a parenthesized expression, kept distinct from its child so
// that position information and pretty-printing survive round-tripping.
type ParenExpr struct {
	Metadata
	Expr  Expr
	Span_ Span
}

func (n *ParenExpr) Span() Span { return n.Span_ }
func (n *ParenExpr) Walk(v Visitor) {
	if v(n) {
		Walk(v, n.Expr)
	}
}
func (*ParenExpr) exprNode() {}

// ArrayLikeExpr is a `[e1, e2, ...]` literal; IsVec distinguishes a
// growable Vec literal from a fixed-size Slice literal (both share syntax,
// the resolver decides the static type from context).
type ArrayLikeExpr struct {
	Metadata
	Items []Expr
	IsVec bool
	Span_ Span
}

func (n *ArrayLikeExpr) Span() Span { return n.Span_ }
func (n *ArrayLikeExpr) Walk(v Visitor) {
	if v(n) {
		for _, e := range n.Items {
			Walk(v, e)
		}
	}
}
func (*ArrayLikeExpr) exprNode() {}

// TupleExpr is a `(e1, e2, ...)` tuple literal.
type TupleExpr struct {
	Metadata
	Items []Expr
	Span_ Span
}

func (n *TupleExpr) Span() Span { return n.Span_ }
func (n *TupleExpr) Walk(v Visitor) {
	if v(n) {
		for _, e := range n.Items {
			Walk(v, e)
		}
	}
}
func (*TupleExpr) exprNode() {}

// FieldInit is one `name: value` pair in a struct or union-arm literal.
type FieldInit struct {
	Name  string
	Value Expr
}

// StructLitExpr is a `TypeName{f1: e1, f2: e2}` struct literal.
type StructLitExpr struct {
	Metadata
	TypeName string
	Fields   []FieldInit
	Span_    Span
}

func (n *StructLitExpr) Span() Span { return n.Span_ }
func (n *StructLitExpr) Walk(v Visitor) {
	if v(n) {
		for _, f := range n.Fields {
			Walk(v, f.Value)
		}
	}
}
func (*StructLitExpr) exprNode() {}

// UnionLitExpr is a `TypeName::Variant{f1: e1}` tagged-union literal.
type UnionLitExpr struct {
	Metadata
	TypeName string
	Variant  string
	Fields   []FieldInit
	Span_    Span
}

func (n *UnionLitExpr) Span() Span { return n.Span_ }
func (n *UnionLitExpr) Walk(v Visitor) {
	if v(n) {
		for _, f := range n.Fields {
			Walk(v, f.Value)
		}
	}
}
func (*UnionLitExpr) exprNode() {}

// EnumLitExpr is a `TypeName::Variant` enum value reference.
type EnumLitExpr struct {
	Metadata
	TypeName string
	Variant  string
	Span_    Span
}

func (n *EnumLitExpr) Span() Span    { return n.Span_ }
func (n *EnumLitExpr) Walk(v Visitor) { v(n) }
func (*EnumLitExpr) exprNode()        {}

// MapItem is one `key: value` pair of a MapExpr literal.
type MapItem struct {
	Key, Value Expr
}

// MapExpr is a `{k1: v1, k2: v2}` map literal.
type MapExpr struct {
	Metadata
	Items []MapItem
	Span_ Span
}

func (n *MapExpr) Span() Span { return n.Span_ }
func (n *MapExpr) Walk(v Visitor) {
	if v(n) {
		for _, it := range n.Items {
			Walk(v, it.Key)
			Walk(v, it.Value)
		}
	}
}
func (*MapExpr) exprNode() {}

// Param is one function parameter declaration.
type Param struct {
	Name string
	Type TypeExpr
}

// FuncSignature describes a function or closure's parameter list and
// return type.
type FuncSignature struct {
	Params []Param
	Ret    TypeExpr
}

// ClosureExpr is a function literal; it may capture outer variables only
// when its enclosing scope's ClosureState is CanCapture (4.B point 6).
type ClosureExpr struct {
	Metadata
	Sig   FuncSignature
	Body  *Block
	Span_ Span

	// Captures is filled in by the resolver with the free variables this
	// closure reads from its enclosing function, in capture order; the code
	// generator uses it to build the closure's environment record.
	Captures []*scope.Variable

	// BodyScope is the scope the resolver entered for Body, where the
	// closure's parameters live as *scope.Variable.
	BodyScope *scope.Scope
}

func (n *ClosureExpr) Span() Span { return n.Span_ }
func (n *ClosureExpr) Walk(v Visitor) {
	if v(n) {
		Walk(v, n.Body)
	}
}
func (*ClosureExpr) exprNode() {}

// RangeExpr is a `lo..hi` numeric range, used directly and as a for-in
// iterable.
type RangeExpr struct {
	Metadata
	Lo, Hi Expr
	Span_  Span
}

func (n *RangeExpr) Span() Span { return n.Span_ }
func (n *RangeExpr) Walk(v Visitor) {
	if v(n) {
		Walk(v, n.Lo)
		Walk(v, n.Hi)
	}
}
func (*RangeExpr) exprNode() {}

// Pattern is implemented by every match-arm pattern kind.
type Pattern interface {
	Node
	patternNode()
}

// LiteralPattern matches a primitive or string literal by equality.
type LiteralPattern struct {
	Value Expr
	Span_ Span
}

func (n *LiteralPattern) Span() Span     { return n.Span_ }
func (n *LiteralPattern) Walk(v Visitor) { Walk(v, n.Value) }
func (*LiteralPattern) patternNode()     {}

// EnumPattern matches `T::V`.
type EnumPattern struct {
	TypeName, Variant string
	Span_             Span
}

func (n *EnumPattern) Span() Span     { return n.Span_ }
func (n *EnumPattern) Walk(v Visitor) { v(n) }
func (*EnumPattern) patternNode()     {}

// UnionPattern matches `T::V{a, b}`, binding the arm's fields to new
// variables named after the pattern's Binds.
type UnionPattern struct {
	TypeName, Variant string
	Binds             []string
	Span_             Span
}

func (n *UnionPattern) Span() Span     { return n.Span_ }
func (n *UnionPattern) Walk(v Visitor) { v(n) }
func (*UnionPattern) patternNode()     {}

// StructPattern matches `T{a, b}`, binding fields by name.
type StructPattern struct {
	TypeName string
	Binds    []string
	Span_    Span
}

func (n *StructPattern) Span() Span     { return n.Span_ }
func (n *StructPattern) Walk(v Visitor) { v(n) }
func (*StructPattern) patternNode()     {}

// TuplePattern matches `(a, b, ...)`, binding by position.
type TuplePattern struct {
	Binds []string
	Span_ Span
}

func (n *TuplePattern) Span() Span     { return n.Span_ }
func (n *TuplePattern) Walk(v Visitor) { v(n) }
func (*TuplePattern) patternNode()     {}

// MatchArm is one `pattern => body` arm of a MatchExpr/MatchStmt.
type MatchArm struct {
	Pattern Pattern // nil means the mandatory `else` arm
	Body    *Block

	// Scope is the scope the resolver entered to bind this arm's pattern
	// variables, set so the code generator can assign them offsets.
	Scope *scope.Scope
}

// MatchExpr matches a scrutinee against an ordered list of arms; every arm
// merges to a single type, and a missing else is an error unless the
// patterns statically exhaust the scrutinee type.
type MatchExpr struct {
	Metadata
	Scrutinee Expr
	Arms      []MatchArm
	Span_     Span
}

func (n *MatchExpr) Span() Span { return n.Span_ }
func (n *MatchExpr) Walk(v Visitor) {
	if v(n) {
		Walk(v, n.Scrutinee)
		for _, a := range n.Arms {
			if a.Pattern != nil {
				Walk(v, a.Pattern)
			}
			Walk(v, a.Body)
		}
	}
}
func (*MatchExpr) exprNode() {}

// TryExpr is `try { Body } else { Else }`: Body's type must contain Error
// in its arm set, and the resolved type is merge(strip_error(typeof(Body)),
// typeof(Else)).
type TryExpr struct {
	Metadata
	Body  *Block
	Else  *Block
	Span_ Span
}

func (n *TryExpr) Span() Span { return n.Span_ }
func (n *TryExpr) Walk(v Visitor) {
	if v(n) {
		Walk(v, n.Body)
		if n.Else != nil {
			Walk(v, n.Else)
		}
	}
}
func (*TryExpr) exprNode() {}

// TypeExpr is a reference to a static type in source syntax; the resolver
// turns it into a types.Type.
type TypeExpr struct {
	// Name is the primitive or user type name ("i64", "string", "Point",
	// ...); empty when one of the composite forms below is used.
	Name string

	Address *TypeExpr // &T
	Slice   *TypeExpr // [N]T
	SliceN  int
	Vec     *TypeExpr   // vec<T>
	MapKey  *TypeExpr   // map<K,V>
	MapVal  *TypeExpr
	Tuple   []TypeExpr // (T1, T2, ...)
	Chan    *TypeExpr  // chan<T>
}
