// Package casm's generator lowers a resolved ast.Chunk into a Program. It
// follows the stack-frame and sub-scope lowering conventions of the
// component design exactly: every scope that yields a value pushes it
// before exit, locals get FZ offsets on first declaration, and control
// flow is expressed entirely with labels local to one Funcode (there is no
// separate call stack frame per lexical block — SCOPE_ENTER/FRAME_RETURN
// around a block plays that role without leaving the enclosing function).
package casm

import (
	"github.com/ciphrpool/ciphel-sub003/internal/ast"
	"github.com/ciphrpool/ciphel-sub003/internal/diag"
	"github.com/ciphrpool/ciphel-sub003/internal/ids"
	"github.com/ciphrpool/ciphel-sub003/internal/scope"
	"github.com/ciphrpool/ciphel-sub003/internal/types"
)

type loopLabels struct {
	top, exit Label
}

type gen struct {
	prog   *Program
	diags  diag.List
	labels *ids.Source

	fn       *Funcode
	localCur []int // stack of local-byte cursors, one per active SCOPE_ENTER sub-scope
	loops    []loopLabels
	funcRet  []types.Type

	// funcLabels maps a FuncStmt to the Funcode its body generates into, so
	// that a later visit of a forward-declared function's body reuses the
	// same label instead of emitting a duplicate.
	funcLabels map[*ast.FuncStmt]*Funcode

	// funcsByName resolves a direct-call callee name to its Funcode without
	// walking funcLabels; module-level function names are unique by
	// construction (the resolver rejects redeclaration).
	funcsByName map[string]*Funcode
}

// Generate lowers chunk (already walked by the resolver against mgr) into a
// Program. The returned diagnostics use diag.CodeGen for every entry.
func Generate(mgr *scope.Manager, chunk *ast.Chunk) (*Program, *diag.List) {
	g := &gen{
		prog:        NewProgram(),
		labels:      ids.NewSource(2),
		funcLabels:  make(map[*ast.FuncStmt]*Funcode),
		funcsByName: make(map[string]*Funcode),
	}

	top := &Funcode{Name: "$top", Label: g.labels.Next()}
	g.prog.TopLevel = top
	g.prog.NameLabel(top.Label, "$top")
	g.fn = top
	g.localCur = []int{0}
	g.funcRet = []types.Type{types.UnitType{}}

	// hoist every module-level function declaration into its own Funcode
	// first, so forward/recursive calls resolve regardless of source order.
	for _, s := range chunk.Block.Stmts {
		if fs, ok := s.(*ast.FuncStmt); ok {
			g.declareFunc(fs)
		}
	}
	for _, s := range chunk.Block.Stmts {
		g.stmt(s)
	}
	top.NumLocals = g.localCur[0]

	for _, fn := range g.prog.Funcs {
		if missing := fn.Finalize(); len(missing) > 0 {
			for l := range missing {
				g.errorf(diag.ErrUnresolvedLabel(labelText(g.prog, l)).Error())
			}
		}
	}
	if missing := top.Finalize(); len(missing) > 0 {
		for l := range missing {
			g.errorf(diag.ErrUnresolvedLabel(labelText(g.prog, l)).Error())
		}
	}

	g.diags.Sort()
	return g.prog, &g.diags
}

func (g *gen) errorf(format string, args ...any) {
	g.diags.Add(ast.Position{}, diag.CodeGen, format, args...)
}

func (g *gen) newLabel() Label { return g.labels.Next() }

func (g *gen) emit(ins Instr) int { return g.fn.Emit(ins) }

// pushLocalFrame starts a fresh SCOPE_ENTER sub-scope: locals declared from
// here on start counting from FZ(0) again.
func (g *gen) pushLocalFrame() { g.localCur = append(g.localCur, 0) }

func (g *gen) popLocalFrame() int {
	n := g.localCur[len(g.localCur)-1]
	g.localCur = g.localCur[:len(g.localCur)-1]
	return n
}

// allocLocal assigns v its FZ offset in the current sub-scope frame and
// advances that frame's cursor by the variable's size.
func (g *gen) allocLocal(v *scope.Variable) {
	top := len(g.localCur) - 1
	v.HasOffset = true
	v.Offset = g.localCur[top]
	g.localCur[top] += types.SizeOf(v.Type)
}

// declareFunc registers fs's signature as a callable Funcode; the body is
// generated lazily the first time funcStmt walks it (module order does not
// matter for declaration, only for call-site resolution of shadowing,
// which the resolver already captured in fs.Meta()/scope bindings).
func (g *gen) declareFunc(fs *ast.FuncStmt) *Funcode {
	fn := &Funcode{Name: fs.Name, Label: g.newLabel()}
	for _, p := range fs.ResolvedSig.Params {
		fn.ParamSize += types.SizeOf(p)
	}
	if _, ok := fs.ResolvedSig.Ret.(types.UnitType); !ok && fs.ResolvedSig.Ret != nil {
		fn.ReturnSize = types.SizeOf(fs.ResolvedSig.Ret)
	}
	g.funcLabels[fs] = fn
	g.funcsByName[fs.Name] = fn
	g.prog.AddFunc(fn)
	g.prog.NameLabel(fn.Label, fs.Name)
	return fn
}
