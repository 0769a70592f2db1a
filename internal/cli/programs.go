package cli

import (
	"github.com/ciphrpool/ciphel-sub003/internal/ast"
	"github.com/ciphrpool/ciphel-sub003/internal/token"
)

// Program is one bundled, ready-to-resolve Chunk the CLI can run, keyed by
// name. Source files have no grammar in this repository (spec §1 Non-
// goals: the concrete grammar is a black box the external parser owns), so
// -program substitutes for a file path: each entry is built directly in Go,
// the same contract an embedder driving internal/resolver/internal/casm/
// internal/runtime straight from a hand-built *ast.Chunk would use.
var Programs = map[string]*ast.Chunk{
	"hello":   helloProgram(),
	"threads": threadsProgram(),
}

// helloProgram computes a constant and prints it, exercising the resolver
// and code generator's straight-line path with no concurrency.
func helloProgram() *ast.Chunk {
	add := &ast.BinOpExpr{
		Op:   token.PLUS,
		Left: &ast.LiteralExpr{Kind: ast.IntLit, Int: 1},
		Right: &ast.LiteralExpr{Kind: ast.IntLit, Int: 2},
	}
	let := &ast.LetStmt{
		Kind:    token.LET,
		Pattern: ast.LetPattern{Name: "sum"},
		Type:    &ast.TypeExpr{Name: "i64"},
		Value:   add,
	}
	call := &ast.CallExpr{
		Fn:   &ast.IdentExpr{Name: "print"},
		Args: []ast.Expr{&ast.LiteralExpr{Kind: ast.StringLit, Str: "hello from ciphel"}},
	}
	body := &ast.Block{Stmts: []ast.Stmt{
		let,
		&ast.ExprStmt{X: call},
	}}
	return &ast.Chunk{Name: "hello", Block: body}
}

// threadsProgram spawns a worker thread that sleeps briefly and prints,
// then joins it from the top level — exercising runtime.Scheduler's
// THREAD_SPAWN/THREAD_SLEEP/THREAD_JOIN path end to end.
func threadsProgram() *ast.Chunk {
	workerBody := &ast.Block{Stmts: []ast.Stmt{
		&ast.ExprStmt{X: &ast.CallExpr{
			Fn:   &ast.IdentExpr{Name: "sleep"},
			Args: []ast.Expr{&ast.LiteralExpr{Kind: ast.IntLit, Int: 10}},
		}},
		&ast.ExprStmt{X: &ast.CallExpr{
			Fn:   &ast.IdentExpr{Name: "print"},
			Args: []ast.Expr{&ast.LiteralExpr{Kind: ast.StringLit, Str: "worker done"}},
		}},
	}}
	worker := &ast.FuncStmt{
		Name: "worker",
		Sig:  ast.FuncSignature{},
		Body: workerBody,
	}

	spawnCall := &ast.CallExpr{
		Fn:   &ast.IdentExpr{Name: "spawn"},
		Args: []ast.Expr{&ast.IdentExpr{Name: "worker"}},
	}
	letTid := &ast.LetStmt{
		Kind:    token.LET,
		Pattern: ast.LetPattern{Name: "tid"},
		Value:   spawnCall,
	}
	joinCall := &ast.CallExpr{
		Fn:   &ast.IdentExpr{Name: "join"},
		Args: []ast.Expr{&ast.IdentExpr{Name: "tid"}},
	}
	body := &ast.Block{Stmts: []ast.Stmt{
		worker,
		letTid,
		&ast.ExprStmt{X: joinCall},
		&ast.ExprStmt{X: &ast.CallExpr{
			Fn:   &ast.IdentExpr{Name: "print"},
			Args: []ast.Expr{&ast.LiteralExpr{Kind: ast.StringLit, Str: "joined"}},
		}},
	}}
	return &ast.Chunk{Name: "threads", Block: body}
}
