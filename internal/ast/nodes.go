// Package ast defines the abstract syntax tree the external parser is
// contracted to produce (spec §6 "Parser (consumed)"). The concrete grammar
// is out of scope for this repository — only the node shapes the resolver,
// code generator and executor consume are defined here, plus the Metadata
// every expression/statement carries once the resolver has run.
package ast

import (
	"github.com/ciphrpool/ciphel-sub003/internal/scope"
	"github.com/ciphrpool/ciphel-sub003/internal/types"
)

// Node is implemented by every AST node.
type Node interface {
	Span() Span
	Walk(v Visitor)
}

// Expr is implemented by every expression node.
type Expr interface {
	Node
	Meta() *Metadata
	exprNode()
}

// Stmt is implemented by every statement node.
type Stmt interface {
	Node
	// IsLoop reports whether this statement introduces a loop body (used by
	// the resolver to mark the body scope's is_loop flag, per 4.B point 7).
	IsLoop() bool
	stmtNode()
}

// Ownership is the per-reference ownership flag the resolver attaches to a
// variable use, supplementing the spec's Metadata "ownership flags" with
// the three concrete states the semantic resolver tracks (SPEC_FULL §4.B).
type Ownership uint8

const (
	Owned Ownership = iota
	Borrowed
	Moved
)

// Info is the resolved-or-not state of a node's Metadata, matching spec
// 3's `Info` enum (Unresolved | Resolved{signature, context}).
type Info struct {
	Resolved bool
	Type     types.Type
	// Context is a short description of the expected-type context this node
	// was resolved against (e.g. "let binding", "function return", "match
	// arm"), useful for diagnostics; empty when not meaningful.
	Context string
}

// Metadata is embedded by every expression node. After a successful
// resolve pass every expression node's Info.Resolved must be true.
type Metadata struct {
	Info      Info
	Scope     *scope.Scope
	Ownership Ownership
}

func (m *Metadata) Meta() *Metadata { return m }

// Chunk is the top-level unit the parser produces for one source file or
// module.
type Chunk struct {
	Name  string
	Block *Block
	Span_ Span
}

func (n *Chunk) Span() Span { return n.Span_ }
func (n *Chunk) Walk(v Visitor) {
	if v(n) && n.Block != nil {
		Walk(v, n.Block)
	}
}

// Block is a sequence of statements forming one lexical block.
type Block struct {
	Stmts []Stmt
	Span_ Span
}

func (n *Block) Span() Span { return n.Span_ }
func (n *Block) Walk(v Visitor) {
	if !v(n) {
		return
	}
	for _, s := range n.Stmts {
		Walk(v, s)
	}
}
