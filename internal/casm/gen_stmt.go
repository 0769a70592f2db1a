package casm

import (
	"github.com/ciphrpool/ciphel-sub003/internal/ast"
	"github.com/ciphrpool/ciphel-sub003/internal/types"
)

// genScope lowers one lexical block: it brackets the block's statements
// with SCOPE_ENTER/FRAME_RETURN so that every local the block declares is
// reclaimed on exit while any value already pushed on top of the stack
// (retSize bytes) survives the pop, matching the stack-discipline invariant
// that every local allocation is freed on every exit path from its scope.
func (g *gen) genScope(b *ast.Block, retSize int) {
	g.emit(Instr{Op: SCOPE_ENTER})
	g.pushLocalFrame()
	for _, s := range b.Stmts {
		g.stmt(s)
	}
	g.popLocalFrame()
	g.emit(Instr{Op: FRAME_RETURN, A: retSize})
}

// genScopeValue is like genScope but additionally evaluates a trailing
// expression (the block's "tail expression", the last ExprStmt) so its
// value sits on top of the stack before FRAME_RETURN folds the frame away
// — used by try-expression arms and by if-chains lowered with a wanted
// value type (match arms go through armBody instead).
func (g *gen) genScopeValue(b *ast.Block, want types.Type) {
	g.emit(Instr{Op: SCOPE_ENTER})
	g.pushLocalFrame()
	for i, s := range b.Stmts {
		if i == len(b.Stmts)-1 {
			if es, ok := s.(*ast.ExprStmt); ok {
				g.expr(es.X)
				g.popLocalFrame()
				g.emit(Instr{Op: FRAME_RETURN, A: types.SizeOf(want)})
				return
			}
		}
		g.stmt(s)
	}
	g.popLocalFrame()
	g.emit(Instr{Op: FRAME_RETURN, A: 0})
}

func (g *gen) stmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.LetStmt:
		g.letStmt(s)
	case *ast.AssignStmt:
		g.assignStmt(s)
	case *ast.ExprStmt:
		g.expr(s.X)
		if t := exprType(s.X); t != nil {
			if sz := types.SizeOf(t); sz > 0 {
				g.emit(Instr{Op: POP, A: sz})
			}
		}
	case *ast.IfStmt:
		g.ifStmt(s)
	case *ast.WhileStmt:
		g.whileStmt(s)
	case *ast.ForStmt:
		g.forStmt(s)
	case *ast.ForInStmt:
		g.forInStmt(s)
	case *ast.FuncStmt:
		g.funcStmt(s)
	case *ast.ReturnStmt:
		g.returnStmt(s)
	case *ast.BreakStmt:
		top := g.loops[len(g.loops)-1]
		g.emit(Instr{Op: GOTO, Label: top.exit})
	case *ast.ContinueStmt:
		top := g.loops[len(g.loops)-1]
		g.emit(Instr{Op: GOTO, Label: top.top})
	case *ast.MatchStmt:
		g.matchLower(s.Scrutinee, s.Arms, nil)
	case *ast.TryStmt:
		g.tryLower(s.Body, s.Else, nil)
	case *ast.ThrowStmt:
		g.expr(s.Value)
		g.emit(Instr{Op: THROW, A: types.SizeOf(exprType(s.Value))})
	case *ast.TypeDeclStmt:
		// type declarations have no runtime representation beyond what the
		// resolver already recorded in scope; nothing to emit.
	default:
		g.errorf("unhandled statement %T", s)
	}
}

func exprType(e ast.Expr) types.Type {
	if e == nil {
		return nil
	}
	return e.Meta().Info.Type
}

func (g *gen) letStmt(s *ast.LetStmt) {
	g.expr(s.Value)
	valType := exprType(s.Value)
	scp := s.Value.Meta().Scope

	switch {
	case s.Pattern.Name != "":
		v, _, _ := scp.FindVar(s.Pattern.Name)
		if v == nil {
			// declared in the *following* scope by the resolver at statement
			// granularity; look it up on the scope this statement binds into.
			return
		}
		g.allocLocal(v)
	case s.Pattern.TupleBinds != nil:
		tt, _ := valType.(types.TupleType)
		offset := 0
		for i, name := range s.Pattern.TupleBinds {
			v, _, _ := scp.FindVar(name)
			if v == nil {
				continue
			}
			v.HasOffset = true
			top := len(g.localCur) - 1
			v.Offset = g.localCur[top] + offset
			if i < len(tt.Fields) {
				offset += types.SizeOf(tt.Fields[i])
			}
		}
		g.localCur[len(g.localCur)-1] += types.SizeOf(valType)
	case s.Pattern.StructType != "":
		st, _ := valType.(types.Struct)
		offset := 0
		for i, name := range s.Pattern.StructBinds {
			v, _, _ := scp.FindVar(name)
			if v == nil {
				continue
			}
			v.HasOffset = true
			top := len(g.localCur) - 1
			v.Offset = g.localCur[top] + offset
			if i < len(st.Fields) {
				offset += types.SizeOf(st.Fields[i].Type)
			}
		}
		g.localCur[len(g.localCur)-1] += types.SizeOf(valType)
	}
}

func (g *gen) assignStmt(s *ast.AssignStmt) {
	addr := g.lvalueAddr(s.Target)
	g.emit(Instr{Op: LOCATE, Offset: addr})
	g.expr(s.Value)
	sz := types.SizeOf(exprType(s.Value))
	g.emit(Instr{Op: MEM_TAKE, A: sz})
}

// lvalueAddr returns the Offset of an assignable target. Only identifiers
// are supported as direct lvalues; dotted/indexed targets resolve their
// prefix to a handle and add the field/element byte offset (left as a
// generator-computed constant since struct layout is static).
func (g *gen) lvalueAddr(e ast.Expr) Offset {
	switch e := e.(type) {
	case *ast.IdentExpr:
		v, _, _ := e.Meta().Scope.FindVar(e.Name)
		if v == nil || !v.HasOffset {
			return Offset{Kind: FZ, Rel: 0}
		}
		return Offset{Kind: FZ, Rel: v.Offset}
	default:
		g.errorf("unsupported assignment target %T", e)
		return Offset{Kind: FZ, Rel: 0}
	}
}

func (g *gen) ifStmt(s *ast.IfStmt) {
	endLabel := g.newLabel()
	g.emitIfChain(s.Cond, s.Then, s.ElseIfs, s.Else, endLabel, nil)
	g.fn.EmitLabel(endLabel)
}

// emitIfChain lowers the Cond/Then pair, then recurses over ElseIfs, then
// the trailing Else block. want, when non-nil, means this if is being used
// in expression position and every arm must leave a value of that type.
func (g *gen) emitIfChain(cond ast.Expr, then *ast.Block, elseIfs []ast.ElseIf, elseBlk *ast.Block, endLabel Label, want types.Type) {
	g.expr(cond)
	elseLabel := g.newLabel()
	g.emit(Instr{Op: IF, Label: elseLabel})
	if want != nil {
		g.genScopeValue(then, want)
	} else {
		g.genScope(then, 0)
	}
	g.emit(Instr{Op: GOTO, Label: endLabel})
	g.fn.EmitLabel(elseLabel)

	if len(elseIfs) > 0 {
		ei := elseIfs[0]
		g.emitIfChain(ei.Cond, ei.Body, elseIfs[1:], elseBlk, endLabel, want)
		return
	}
	if elseBlk != nil {
		if want != nil {
			g.genScopeValue(elseBlk, want)
		} else {
			g.genScope(elseBlk, 0)
		}
	} else if want != nil {
		// expression-form if without an else arm cannot occur post-resolve;
		// defend anyway by pushing a zeroed value of the right size.
		g.emit(Instr{Op: SERIALIZE, A: types.SizeOf(want), Bytes: make([]byte, types.SizeOf(want))})
	}
}

func (g *gen) whileStmt(s *ast.WhileStmt) {
	top := g.newLabel()
	exit := g.newLabel()
	g.loops = append(g.loops, loopLabels{top: top, exit: exit})

	g.fn.EmitLabel(top)
	g.expr(s.Cond)
	g.emit(Instr{Op: IF, Label: exit})
	g.genScope(s.Body, 0)
	g.emit(Instr{Op: GOTO, Label: top})
	g.fn.EmitLabel(exit)

	g.loops = g.loops[:len(g.loops)-1]
}

func (g *gen) forStmt(s *ast.ForStmt) {
	g.emit(Instr{Op: SCOPE_ENTER})
	g.pushLocalFrame()
	if s.Init != nil {
		g.stmt(s.Init)
	}

	top := g.newLabel()
	exit := g.newLabel()
	g.loops = append(g.loops, loopLabels{top: top, exit: exit})

	g.fn.EmitLabel(top)
	if s.Cond != nil {
		g.expr(s.Cond)
		g.emit(Instr{Op: IF, Label: exit})
	}
	g.genScope(s.Body, 0)
	if s.Post != nil {
		g.stmt(s.Post)
	}
	g.emit(Instr{Op: GOTO, Label: top})
	g.fn.EmitLabel(exit)

	g.loops = g.loops[:len(g.loops)-1]
	g.popLocalFrame()
	g.emit(Instr{Op: FRAME_RETURN, A: 0})
}

// forInStmt lowers the iterator triplet (init_index, build_item, next) per
// iterable type (3.C): Slice/Vec/StrSlice/String/Range all iterate by a u64
// index against VEC_LEN/VEC_GET, which the executor dispatches per the
// iterable's runtime tag (a Range's "length" is Hi-Lo, its "element" is
// Lo+index); Channel is handled separately in forInChannel since it has no
// length to bound against.
func (g *gen) forInStmt(s *ast.ForInStmt) {
	iterType := exprType(s.Iterable)
	if ch, ok := iterType.(types.Channel); ok {
		g.forInChannel(s, ch)
		return
	}

	g.emit(Instr{Op: SCOPE_ENTER})
	g.pushLocalFrame()

	g.expr(s.Iterable)
	iterOffset := g.localCur[len(g.localCur)-1]
	g.localCur[len(g.localCur)-1] += types.SizeOf(iterType)
	g.emit(Instr{Op: LOCATE, Offset: Offset{Kind: FZ, Rel: iterOffset}})
	g.emit(Instr{Op: MEM_TAKE, A: types.SizeOf(iterType)})

	idxOffset := g.localCur[len(g.localCur)-1]
	g.localCur[len(g.localCur)-1] += 8
	g.emit(Instr{Op: SERIALIZE, A: 8, Bytes: make([]byte, 8)})
	g.emit(Instr{Op: LOCATE, Offset: Offset{Kind: FZ, Rel: idxOffset}})
	g.emit(Instr{Op: MEM_TAKE, A: 8})

	top := g.newLabel()
	exit := g.newLabel()
	g.loops = append(g.loops, loopLabels{top: top, exit: exit})
	g.fn.EmitLabel(top)

	g.loadFZ(idxOffset, 8)
	g.loadFZ(iterOffset, types.SizeOf(iterType))
	g.emit(Instr{Op: VEC_LEN})
	g.emit(Instr{Op: LT})
	g.emit(Instr{Op: IF, Label: exit})

	g.emit(Instr{Op: SCOPE_ENTER})
	g.pushLocalFrame()
	v, _, _ := s.BodyScope.FindVar(s.Var)
	if v != nil {
		g.allocLocal(v)
	}
	g.loadFZ(idxOffset, 8)
	g.loadFZ(iterOffset, types.SizeOf(iterType))
	g.emit(Instr{Op: VEC_GET})
	if v != nil {
		g.emit(Instr{Op: LOCATE, Offset: Offset{Kind: FZ, Rel: v.Offset}})
		g.emit(Instr{Op: MEM_TAKE, A: types.SizeOf(v.Type)})
	}

	for _, st := range s.Body.Stmts {
		g.stmt(st)
	}
	g.popLocalFrame()
	g.emit(Instr{Op: FRAME_RETURN, A: 0})

	g.loadFZ(idxOffset, 8)
	g.emit(Instr{Op: SERIALIZE, A: 8, Bytes: encodeU64(1)})
	g.emit(Instr{Op: PLUS})
	g.emit(Instr{Op: LOCATE, Offset: Offset{Kind: FZ, Rel: idxOffset}})
	g.emit(Instr{Op: MEM_TAKE, A: 8})
	g.emit(Instr{Op: GOTO, Label: top})
	g.fn.EmitLabel(exit)

	g.loops = g.loops[:len(g.loops)-1]
	g.popLocalFrame()
	g.emit(Instr{Op: FRAME_RETURN, A: 0})
}

// loadFZ emits LOCATE+ACCESS_RUNTIME for the local at the given FZ offset.
func (g *gen) loadFZ(offset, size int) {
	g.emit(Instr{Op: LOCATE, Offset: Offset{Kind: FZ, Rel: offset}})
	g.emit(Instr{Op: ACCESS_RUNTIME, A: size})
}

func encodeU64(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

func (g *gen) forInChannel(s *ast.ForInStmt, ch types.Channel) {
	g.emit(Instr{Op: SCOPE_ENTER})
	g.pushLocalFrame()
	g.expr(s.Iterable)
	chanOffset := g.localCur[len(g.localCur)-1]
	g.localCur[len(g.localCur)-1] += 8
	g.emit(Instr{Op: LOCATE, Offset: Offset{Kind: FZ, Rel: chanOffset}})
	g.emit(Instr{Op: MEM_TAKE, A: 8})

	top := g.newLabel()
	exit := g.newLabel()
	g.loops = append(g.loops, loopLabels{top: top, exit: exit})
	g.fn.EmitLabel(top)

	g.emit(Instr{Op: SCOPE_ENTER})
	g.pushLocalFrame()
	v, _, _ := s.BodyScope.FindVar(s.Var)
	if v != nil {
		g.allocLocal(v)
	}
	g.emit(Instr{Op: LOCATE, Offset: Offset{Kind: FZ, Rel: chanOffset}})
	g.emit(Instr{Op: ACCESS_RUNTIME, A: 8})
	g.emit(Instr{Op: CHAN_RECEIVE, A: types.SizeOf(ch.Elem), B: 0})
	g.emit(Instr{Op: IF, Label: exit}) // receive pushes a bool-false on ChannelClosed
	if v != nil {
		// the received value is already on top of the stack; stash it in
		// reg0 so LOCATE can push v's address underneath it, matching the
		// addr-then-val order MEM_TAKE expects everywhere else.
		g.emit(Instr{Op: REG_SET, A: 0, B: types.SizeOf(ch.Elem)})
		g.emit(Instr{Op: LOCATE, Offset: Offset{Kind: FZ, Rel: v.Offset}})
		g.emit(Instr{Op: REG_GET, A: 0})
		g.emit(Instr{Op: MEM_TAKE, A: types.SizeOf(v.Type)})
	}
	for _, st := range s.Body.Stmts {
		g.stmt(st)
	}
	g.popLocalFrame()
	g.emit(Instr{Op: FRAME_RETURN, A: 0})
	g.emit(Instr{Op: GOTO, Label: top})
	g.fn.EmitLabel(exit)

	g.loops = g.loops[:len(g.loops)-1]
	g.popLocalFrame()
	g.emit(Instr{Op: FRAME_RETURN, A: 0})
}

func (g *gen) funcStmt(s *ast.FuncStmt) {
	fn, ok := g.funcLabels[s]
	if !ok {
		fn = g.declareFunc(s)
	}
	g.genFuncBody(fn, s)
}

// genFuncBody generates fn's body into its own Funcode, switching the
// generator's current-function context for the duration. Parameters reuse
// the *scope.Variable the resolver already declared in s.BodyScope, so a
// reference anywhere in the body resolves to the same offset this assigns.
func (g *gen) genFuncBody(fn *Funcode, s *ast.FuncStmt) {
	savedFn, savedCur, savedLoops := g.fn, g.localCur, g.loops
	g.fn = fn
	g.localCur = []int{0}
	g.loops = nil
	g.funcRet = append(g.funcRet, s.ResolvedSig.Ret)

	for _, p := range s.Sig.Params {
		if v, _, ok := s.BodyScope.FindVar(p.Name); ok {
			g.allocLocal(v)
		}
	}

	g.emit(Instr{Op: SCOPE_ENTER})
	for _, st := range s.Body.Stmts {
		g.stmt(st)
	}
	if types.SizeOf(s.ResolvedSig.Ret) == 0 {
		g.emit(Instr{Op: RET, A: 0})
	}
	fn.NumLocals = g.localCur[0]

	g.funcRet = g.funcRet[:len(g.funcRet)-1]
	g.fn, g.localCur, g.loops = savedFn, savedCur, savedLoops
}

func (g *gen) returnStmt(s *ast.ReturnStmt) {
	want := g.funcRet[len(g.funcRet)-1]
	if s.Value != nil {
		g.expr(s.Value)
	}
	g.emit(Instr{Op: RET, A: types.SizeOf(want)})
}
