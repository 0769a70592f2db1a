package casm

import (
	"math"

	"github.com/ciphrpool/ciphel-sub003/internal/ast"
	"github.com/ciphrpool/ciphel-sub003/internal/scope"
	"github.com/ciphrpool/ciphel-sub003/internal/token"
	"github.com/ciphrpool/ciphel-sub003/internal/types"
)

// expr lowers e, leaving a value of exprType(e)'s size on top of the stack.
func (g *gen) expr(e ast.Expr) {
	switch e := e.(type) {
	case *ast.IdentExpr:
		g.identExpr(e)
	case *ast.LiteralExpr:
		g.literalExpr(e)
	case *ast.BinOpExpr:
		g.binOpExpr(e)
	case *ast.UnaryOpExpr:
		g.unaryOpExpr(e)
	case *ast.CallExpr:
		g.callExpr(e)
	case *ast.IndexExpr:
		g.indexExpr(e)
	case *ast.DotExpr:
		g.dotExpr(e)
	case *ast.ParenExpr:
		g.expr(e.Expr)
	case *ast.ArrayLikeExpr:
		g.arrayLikeExpr(e)
	case *ast.TupleExpr:
		g.tupleExpr(e)
	case *ast.StructLitExpr:
		g.structLitExpr(e)
	case *ast.UnionLitExpr:
		g.unionLitExpr(e)
	case *ast.EnumLitExpr:
		g.enumLitExpr(e)
	case *ast.MapExpr:
		g.mapLitExpr(e)
	case *ast.ClosureExpr:
		g.closureExpr(e)
	case *ast.RangeExpr:
		g.rangeExpr(e)
	case *ast.MatchExpr:
		g.matchLower(e.Scrutinee, e.Arms, exprType(e))
	case *ast.TryExpr:
		g.tryLower(e.Body, e.Else, exprType(e))
	default:
		g.errorf("unhandled expression %T", e)
	}
}

func (g *gen) identExpr(e *ast.IdentExpr) {
	v, _, ok := e.Meta().Scope.FindVar(e.Name)
	if !ok || !v.HasOffset {
		g.errorf("identifier %s has no stack slot", e.Name)
		return
	}
	g.emit(Instr{Op: LOCATE, Offset: Offset{Kind: FZ, Rel: v.Offset}})
	g.emit(Instr{Op: ACCESS_RUNTIME, A: types.SizeOf(v.Type)})
}

func (g *gen) literalExpr(e *ast.LiteralExpr) {
	t := exprType(e)
	switch e.Kind {
	case ast.IntLit:
		g.emit(Instr{Op: SERIALIZE, A: types.SizeOf(t), Bytes: encodeInt(e.Int, types.SizeOf(t))})
	case ast.FloatLit:
		g.emit(Instr{Op: SERIALIZE, A: 8, Bytes: encodeU64(math.Float64bits(e.Float))})
	case ast.BoolLit:
		b := byte(0)
		if e.Bool {
			b = 1
		}
		g.emit(Instr{Op: SERIALIZE, A: 1, Bytes: []byte{b}})
	case ast.CharLit:
		g.emit(Instr{Op: SERIALIZE, A: 4, Bytes: encodeInt(int64(e.Char), 4)})
	case ast.StringLit:
		raw := []byte(e.Str)
		g.emit(Instr{Op: SERIALIZE, A: len(raw), Bytes: raw})
		g.emit(Instr{Op: STR_NEW, A: len(raw)})
	}
}

func encodeInt(v int64, size int) []byte {
	b := make([]byte, size)
	for i := 0; i < size; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

var binOpcodes = map[token.Token]Opcode{
	token.LT: LT, token.LE: LE, token.GT: GT, token.GE: GE, token.EQL: EQL, token.NEQ: NEQ,
	token.PLUS: PLUS, token.MINUS: MINUS, token.STAR: STAR, token.SLASH: SLASH, token.PERCENT: PERCENT,
	token.CIRCUMFLEX: CIRCUMFLEX, token.AMPERSAND: AMPERSAND, token.PIPE: PIPE, token.LTLT: LTLT, token.GTGT: GTGT,
}

func (g *gen) binOpExpr(e *ast.BinOpExpr) {
	g.expr(e.Left)
	g.expr(e.Right)
	if _, isStr := exprType(e.Left).(types.StringVal); isStr && (e.Op == token.EQL || e.Op == token.NEQ) {
		g.emit(Instr{Op: STR_EQ})
		if e.Op == token.NEQ {
			g.emit(Instr{Op: NOT})
		}
		return
	}
	op, ok := binOpcodes[e.Op]
	if !ok {
		g.errorf("unhandled binary operator %s", e.Op)
		return
	}
	// A carries the operand width in bytes and B its NumClass (signed/
	// unsigned/float): CASM itself is untyped, so the executor has nothing
	// else to size or interpret a PLUS/LT/EQL/etc pop against.
	t := exprType(e.Left)
	g.emit(Instr{Op: op, A: types.SizeOf(t), B: int(types.ClassOf(t))})
}

var unaryOpcodes = map[token.Token]Opcode{
	token.UPLUS: UPLUS, token.UMINUS: UMINUS, token.UTILDE: UTILDE, token.NOT: NOT,
}

func (g *gen) unaryOpExpr(e *ast.UnaryOpExpr) {
	g.expr(e.Right)
	if e.Op == token.POUND {
		// A StrSlice's length is static (baked into its type, not the heap);
		// everything else (Vec/Map/String) is a handle whose length the
		// executor looks up on the heap. B distinguishes which heap lookup
		// to make when A is zero.
		switch t := exprType(e.Right).(type) {
		case types.StrSlice:
			g.emit(Instr{Op: LEN, A: t.Size, B: t.Size})
		case types.MapType:
			g.emit(Instr{Op: LEN, B: LenKindMap})
		case types.StringVal:
			g.emit(Instr{Op: LEN, B: LenKindStr})
		default:
			g.emit(Instr{Op: LEN, B: LenKindVec})
		}
		return
	}
	op, ok := unaryOpcodes[e.Op]
	if !ok {
		g.errorf("unhandled unary operator %s", e.Op)
		return
	}
	t := exprType(e.Right)
	g.emit(Instr{Op: op, A: types.SizeOf(t), B: int(types.ClassOf(t))})
}

// platformCalls maps an intrinsic/platform function name to the CoreCasm
// opcode its call lowers to. Every one of these takes its arguments in the
// order they were pushed and leaves whatever the opcode is documented to
// leave on the stack (see opcode.go); callers with no matching entry are
// assumed to be user-defined and go through CALL instead.
var platformCalls = map[string]Opcode{
	"print": STD_PRINT, "cursor_print": CURSOR_PRINT, "cursor_move": CURSOR_MOVE, "cursor_clear": CURSOR_CLEAR,
	"push": VEC_PUSH, "pop": VEC_POP, "extend": VEC_EXTEND, "delete": VEC_DELETE, "clear": VEC_CLEAR,
	"contains": MAP_CONTAINS,
	"channel": CHAN_NEW,
	"send": CHAN_SEND, "receive": CHAN_RECEIVE, "try_receive": CHAN_TRY_RECEIVE, "close": CHAN_CLOSE,
	"spawn": THREAD_SPAWN, "join": THREAD_JOIN, "sleep": THREAD_SLEEP, "wait": THREAD_WAIT, "wake": THREAD_WAKE,
	"alloc": INTRINSIC_ALLOC, "free": INTRINSIC_FREE, "sizeof": INTRINSIC_SIZEOF,
	"math": STD_MATH,
}

func (g *gen) callExpr(e *ast.CallExpr) {
	id, isIdent := e.Fn.(*ast.IdentExpr)
	if isIdent {
		if _, _, ok := id.Meta().Scope.FindVar(id.Name); !ok {
			if op, ok := platformCalls[id.Name]; ok {
				op = resolveOverloadedCall(op, e.Args)
				if op == CHAN_NEW {
					g.chanNewCall(e)
					return
				}
				if op == CHAN_RECEIVE && len(e.Args) == 2 {
					g.chanReceiveTimeoutCall(e, op)
					return
				}
				for _, a := range e.Args {
					g.expr(a)
				}
				g.emit(Instr{Op: op, A: platformCallOperand(op, e.Args)})
				return
			}
		}
	}

	for _, a := range e.Args {
		g.expr(a)
	}
	paramSize := 0
	for _, a := range e.Args {
		paramSize += types.SizeOf(exprType(a))
	}

	if isIdent {
		if fn, ok := g.funcsByName[id.Name]; ok {
			g.emit(Instr{Op: CALL, Label: fn.Label, A: paramSize})
			return
		}
	}

	// indirect call: the callee is a closure value, its {fn_label, env_ptr}
	// pair evaluated onto the stack right after the arguments; a zero Label
	// tells the executor to read the call target off the stack instead of
	// the instruction.
	g.expr(e.Fn)
	g.emit(Instr{Op: CALL, A: paramSize})
}

// platformCallOperand computes the A operand a platform call's opcode
// expects. The vec/map/chan family need the byte size of the element they
// carry (the receiver is always args[0]); THREAD_SPAWN wants the byte size
// of all its arguments, the function handle included; everything else
// (the other thread, std and cursor intrinsics) just wants its argument
// count.
func platformCallOperand(op Opcode, args []ast.Expr) int {
	switch op {
	case VEC_PUSH, VEC_EXTEND, VEC_SET:
		if len(args) > 0 {
			return types.SizeOf(exprType(args[len(args)-1]))
		}
	case VEC_POP, VEC_GET, VEC_DELETE:
		if len(args) > 0 {
			if vec, ok := exprType(args[0]).(types.Vec); ok {
				return types.SizeOf(vec.Item)
			}
		}
	case CHAN_SEND, CHAN_RECEIVE, CHAN_TRY_RECEIVE:
		if len(args) > 0 {
			if ch, ok := exprType(args[0]).(types.Channel); ok {
				return types.SizeOf(ch.Elem)
			}
		}
	case THREAD_SPAWN:
		n := 0
		for _, a := range args {
			n += types.SizeOf(exprType(a))
		}
		return n
	}
	return len(args)
}

// resolveOverloadedCall disambiguates the handful of platformCalls names
// that mean different opcodes depending on their receiver's type: "delete"
// is VEC_DELETE-by-index on a Vec but MAP_DELETE-by-key on a Map.
func resolveOverloadedCall(op Opcode, args []ast.Expr) Opcode {
	if op == VEC_DELETE && len(args) > 0 {
		if _, ok := exprType(args[0]).(types.MapType); ok {
			return MAP_DELETE
		}
	}
	return op
}

// chanNewCall lowers channel(cap) to CHAN_NEW. The element size comes from
// the call expression's own resolved type (a Channel), not from an argument,
// since CASM has no type-argument syntax to carry it explicitly.
func (g *gen) chanNewCall(e *ast.CallExpr) {
	ch, _ := exprType(e).(types.Channel)
	capacity := 1
	if len(e.Args) > 0 {
		if lit, ok := e.Args[0].(*ast.LiteralExpr); ok && lit.Kind == ast.IntLit {
			capacity = int(lit.Int)
		}
	}
	g.emit(Instr{Op: CHAN_NEW, A: types.SizeOf(ch.Elem), B: capacity})
}

// chanReceiveTimeoutCall lowers receive(ch, timeout_ms) to CHAN_RECEIVE with
// B=1, stashing the timeout in R3 and a deadline sentinel (0 == "not yet
// computed") in R4. Registers survive instruction retries on the same
// thread's Stack, so the executor computes the real deadline on the first
// blocking attempt and reuses it on every retry after that — CASM itself
// has no wall clock, only the scheduler driving Hooks does.
func (g *gen) chanReceiveTimeoutCall(e *ast.CallExpr, op Opcode) {
	g.expr(e.Args[1])
	g.emit(Instr{Op: REG_SET, A: 2, B: 8})
	g.emit(Instr{Op: SERIALIZE, A: 8, Bytes: make([]byte, 8)})
	g.emit(Instr{Op: REG_SET, A: 3, B: 8})
	g.expr(e.Args[0])
	g.emit(Instr{Op: op, A: platformCallOperand(op, e.Args), B: 1})
}

func (g *gen) dotExpr(e *ast.DotExpr) {
	elemType := g.addrExpr(e)
	g.emit(Instr{Op: ACCESS_RUNTIME, A: types.SizeOf(elemType)})
}

func (g *gen) indexExpr(e *ast.IndexExpr) {
	prefixType := exprType(e.Prefix)
	switch pt := prefixType.(type) {
	case types.MapType:
		g.expr(e.Prefix)
		g.expr(e.Index)
		g.emit(Instr{Op: MAP_GET, A: types.SizeOf(pt.Value)})
	case types.Vec:
		g.expr(e.Prefix)
		g.expr(e.Index)
		g.emit(Instr{Op: VEC_GET, A: types.SizeOf(pt.Item)})
	default:
		elemType := g.addrExpr(e)
		g.emit(Instr{Op: ACCESS_RUNTIME, A: types.SizeOf(elemType)})
	}
}

// addrExpr pushes the runtime address of the lvalue e names, returning the
// static type stored there. ACCESS_RUNTIME<size> loads the value at that
// address; LOCATE+MEM_TAKE<size> stores one.
func (g *gen) addrExpr(e ast.Expr) types.Type {
	switch e := e.(type) {
	case *ast.IdentExpr:
		v, _, ok := e.Meta().Scope.FindVar(e.Name)
		if !ok {
			g.errorf("identifier %s has no stack slot", e.Name)
			return types.AnyType{}
		}
		g.emit(Instr{Op: LOCATE, Offset: Offset{Kind: FZ, Rel: v.Offset}})
		return v.Type

	case *ast.DotExpr:
		t := g.addrExpr(e.Left)
		if addr, ok := t.(types.Address); ok {
			g.emit(Instr{Op: ACCESS_RUNTIME, A: types.HandleSize})
			t = addr.Elem
		}
		st, ok := t.(types.Struct)
		if !ok {
			g.errorf("%s is not a struct", t)
			return types.AnyType{}
		}
		offset := 0
		for _, f := range st.Fields {
			if f.Name == e.Field {
				break
			}
			offset += types.SizeOf(f.Type)
		}
		if offset != 0 {
			g.emit(Instr{Op: SERIALIZE, A: 8, Bytes: encodeU64(uint64(offset))})
			g.emit(Instr{Op: PLUS})
		}
		ft, _ := st.FieldByName(e.Field)
		return ft.Type

	case *ast.IndexExpr:
		containerType := g.addrExpr(e.Prefix)
		elemType := elementTypeOf(containerType)
		elemSize := types.SizeOf(elemType)
		g.expr(e.Index)
		g.emit(Instr{Op: SERIALIZE, A: 8, Bytes: encodeU64(uint64(elemSize))})
		g.emit(Instr{Op: STAR})
		g.emit(Instr{Op: PLUS})
		return elemType

	default:
		g.errorf("unsupported lvalue %T", e)
		return types.AnyType{}
	}
}

// elementTypeOf mirrors the resolver's elementType for the container kinds
// the code generator addresses directly (Slice/StrSlice/StringVal); Vec and
// Map are handled through their own CoreCasm ops instead, not addrExpr.
func elementTypeOf(t types.Type) types.Type {
	switch t := t.(type) {
	case types.Slice:
		return t.Item
	case types.StrSlice:
		return types.Primitive{Kind: types.Char}
	case types.StringVal:
		return types.Primitive{Kind: types.Char}
	default:
		return types.AnyType{}
	}
}

func (g *gen) arrayLikeExpr(e *ast.ArrayLikeExpr) {
	t := exprType(e)
	if vec, ok := t.(types.Vec); ok {
		g.emit(Instr{Op: VEC_NEW, A: len(e.Items), B: types.SizeOf(vec.Item)})
		for _, it := range e.Items {
			g.expr(it)
			g.emit(Instr{Op: VEC_PUSH, A: types.SizeOf(vec.Item)})
		}
		return
	}
	for _, it := range e.Items {
		g.expr(it)
	}
}

func (g *gen) tupleExpr(e *ast.TupleExpr) {
	for _, it := range e.Items {
		g.expr(it)
	}
}

func (g *gen) structLitExpr(e *ast.StructLitExpr) {
	st, _ := exprType(e).(types.Struct)
	for _, f := range st.Fields {
		for _, init := range e.Fields {
			if init.Name == f.Name {
				g.expr(init.Value)
				break
			}
		}
	}
}

func (g *gen) unionLitExpr(e *ast.UnionLitExpr) {
	un, _ := exprType(e).(types.Union)
	idx := 0
	for i, a := range un.Arms {
		if a.Variant == e.Variant {
			idx = i
			break
		}
	}
	g.emit(Instr{Op: SERIALIZE, A: 8, Bytes: encodeU64(uint64(idx))})
	arm, _ := un.ArmByName(e.Variant)
	for _, f := range arm.Payload.Fields {
		for _, init := range e.Fields {
			if init.Name == f.Name {
				g.expr(init.Value)
				break
			}
		}
	}
}

func (g *gen) enumLitExpr(e *ast.EnumLitExpr) {
	en, _ := exprType(e).(types.Enum)
	g.emit(Instr{Op: SERIALIZE, A: 8, Bytes: encodeU64(uint64(en.IndexOf(e.Variant)))})
}

func (g *gen) mapLitExpr(e *ast.MapExpr) {
	mt, _ := exprType(e).(types.MapType)
	g.emit(Instr{Op: MAP_NEW, A: len(e.Items)})
	for _, it := range e.Items {
		g.expr(it.Key)
		g.expr(it.Value)
		g.emit(Instr{Op: MAP_SET, A: types.SizeOf(mt.Value)})
	}
}

// closureExpr emits the closure's body as its own Funcode (named
// "$closure"), pushes its captured environment as a
// heap-allocated record, and leaves the {fn_label, env_ptr} pair the Closure
// representation is defined as.
func (g *gen) closureExpr(e *ast.ClosureExpr) {
	fn := &Funcode{Name: "$closure", Label: g.newLabel()}
	sig := resolvedClosureSig(e)
	for _, p := range sig.Params {
		fn.ParamSize += types.SizeOf(p)
	}
	if _, ok := sig.Ret.(types.UnitType); !ok {
		fn.ReturnSize = types.SizeOf(sig.Ret)
	}
	g.prog.AddFunc(fn)

	savedFn, savedCur, savedLoops := g.fn, g.localCur, g.loops
	g.fn = fn
	g.localCur = []int{0}
	g.loops = nil
	g.funcRet = append(g.funcRet, sig.Ret)
	for _, p := range e.Sig.Params {
		if v, _, ok := e.BodyScope.FindVar(p.Name); ok {
			g.allocLocal(v)
		}
	}
	envSize := 0
	for _, v := range e.Captures {
		g.allocLocal(v)
		envSize += types.SizeOf(v.Type)
	}
	g.emit(Instr{Op: SCOPE_ENTER})
	for _, st := range e.Body.Stmts {
		g.stmt(st)
	}
	if types.SizeOf(sig.Ret) == 0 {
		g.emit(Instr{Op: RET, A: 0})
	}
	fn.NumLocals = g.localCur[0]
	g.funcRet = g.funcRet[:len(g.funcRet)-1]
	g.fn, g.localCur, g.loops = savedFn, savedCur, savedLoops

	g.emit(Instr{Op: LABEL_OFFSET, Label: fn.Label})
	if envSize > 0 {
		g.emit(Instr{Op: ALLOC_HEAP, A: envSize})
		for i, v := range e.Captures {
			if i > 0 {
				g.emit(Instr{Op: DUP})
			}
			g.identFromVar(v)
			g.emit(Instr{Op: MEM_TAKE, A: types.SizeOf(v.Type)})
		}
	} else {
		g.emit(Instr{Op: SERIALIZE, A: 8, Bytes: make([]byte, 8)})
	}
}

func resolvedClosureSig(e *ast.ClosureExpr) types.StaticFn {
	cl, _ := exprType(e).(types.Closure)
	return types.StaticFn{Params: cl.Params, Ret: cl.Ret}
}

func (g *gen) identFromVar(v *scope.Variable) {
	g.emit(Instr{Op: LOCATE, Offset: Offset{Kind: FZ, Rel: v.Offset}})
	g.emit(Instr{Op: ACCESS_RUNTIME, A: types.SizeOf(v.Type)})
}

func (g *gen) rangeExpr(e *ast.RangeExpr) {
	g.expr(e.Lo)
	g.expr(e.Hi)
}

// matchLower lowers a match scrutinee/arms pair, used both in statement
// position (want == nil, arm bodies run for effect) and expression position
// (want != nil, every arm leaves a want-sized value). Enum/Union scrutinees
// dispatch through BRANCH_TABLE on the runtime tag, matching the component
// design's "jump table for enum/union" convention; every other scrutinee
// (primitives, strings, struct/tuple destructuring) falls back to a
// sequential equality chain.
func (g *gen) matchLower(scrutinee ast.Expr, arms []ast.MatchArm, want types.Type) {
	st := exprType(scrutinee)
	endLabel := g.newLabel()

	if _, isEnum := st.(types.Enum); isEnum {
		g.matchEnumLike(scrutinee, arms, want, endLabel, true)
		return
	}
	if _, isUnion := st.(types.Union); isUnion {
		g.matchEnumLike(scrutinee, arms, want, endLabel, false)
		return
	}

	g.expr(scrutinee)
	scrutSize := types.SizeOf(st)
	scrutOffset := g.localCur[len(g.localCur)-1]
	g.localCur[len(g.localCur)-1] += scrutSize
	g.emit(Instr{Op: LOCATE, Offset: Offset{Kind: FZ, Rel: scrutOffset}})
	g.emit(Instr{Op: MEM_TAKE, A: scrutSize})

	for _, arm := range arms {
		nextLabel := g.newLabel()
		if lp, ok := arm.Pattern.(*ast.LiteralPattern); ok {
			g.loadFZ(scrutOffset, scrutSize)
			g.expr(lp.Value)
			if _, isStr := st.(types.StringVal); isStr {
				g.emit(Instr{Op: STR_EQ})
			} else {
				g.emit(Instr{Op: EQL, A: scrutSize, B: int(types.ClassOf(st))})
			}
			g.emit(Instr{Op: IF, Label: nextLabel})
		}
		g.armBody(arm, want, scrutOffset, st)
		g.emit(Instr{Op: GOTO, Label: endLabel})
		g.fn.EmitLabel(nextLabel)
	}
	if want != nil {
		g.emit(Instr{Op: SERIALIZE, A: types.SizeOf(want), Bytes: make([]byte, types.SizeOf(want))})
	}
	g.fn.EmitLabel(endLabel)
}

func (g *gen) matchEnumLike(scrutinee ast.Expr, arms []ast.MatchArm, want types.Type, endLabel Label, isEnum bool) {
	g.expr(scrutinee)
	tagOffset := g.localCur[len(g.localCur)-1]
	g.localCur[len(g.localCur)-1] += 8
	g.emit(Instr{Op: LOCATE, Offset: Offset{Kind: FZ, Rel: tagOffset}})
	g.emit(Instr{Op: MEM_TAKE, A: 8})

	table := make(map[int64]Label)
	elseLabel := g.newLabel()
	armLabels := make([]Label, len(arms))
	for i, arm := range arms {
		armLabels[i] = g.newLabel()
		if arm.Pattern == nil {
			continue
		}
		var idx int
		if isEnum {
			ep := arm.Pattern.(*ast.EnumPattern)
			en, _ := exprType(scrutinee).(types.Enum)
			idx = en.IndexOf(ep.Variant)
		} else {
			up := arm.Pattern.(*ast.UnionPattern)
			un, _ := exprType(scrutinee).(types.Union)
			for j, a := range un.Arms {
				if a.Variant == up.Variant {
					idx = j
					break
				}
			}
		}
		table[int64(idx)] = armLabels[i]
	}

	g.emit(Instr{Op: LOCATE, Offset: Offset{Kind: FZ, Rel: tagOffset}})
	g.emit(Instr{Op: ACCESS_RUNTIME, A: 8})
	g.emit(Instr{Op: BRANCH_TABLE, Label2: elseLabel, Table: table})

	st := exprType(scrutinee)
	for i, arm := range arms {
		g.fn.EmitLabel(armLabels[i])
		g.armBody(arm, want, tagOffset, st)
		g.emit(Instr{Op: GOTO, Label: endLabel})
	}
	g.fn.EmitLabel(elseLabel)
	if want != nil {
		g.emit(Instr{Op: SERIALIZE, A: types.SizeOf(want), Bytes: make([]byte, types.SizeOf(want))})
	}
	g.fn.EmitLabel(endLabel)
}

// armBody binds arm's pattern variables (for Union/Struct/Tuple patterns)
// from the scrutinee's payload, already sitting at scrutOffset, then lowers
// the arm body as a sub-scope.
func (g *gen) armBody(arm ast.MatchArm, want types.Type, scrutOffset int, scrutType types.Type) {
	g.emit(Instr{Op: SCOPE_ENTER})
	g.pushLocalFrame()

	switch p := arm.Pattern.(type) {
	case *ast.UnionPattern:
		un, _ := scrutType.(types.Union)
		if armT, ok := un.ArmByName(p.Variant); ok {
			payloadOffset := scrutOffset + 8
			for i, name := range p.Binds {
				if i >= len(armT.Payload.Fields) {
					break
				}
				v, _, ok := arm.Scope.FindVar(name)
				if !ok {
					continue
				}
				v.HasOffset = true
				v.Offset = payloadOffset
				payloadOffset += types.SizeOf(armT.Payload.Fields[i].Type)
			}
		}
	case *ast.StructPattern:
		st, _ := scrutType.(types.Struct)
		fieldOffset := scrutOffset
		for i, name := range p.Binds {
			if i >= len(st.Fields) {
				break
			}
			v, _, ok := arm.Scope.FindVar(name)
			if ok {
				v.HasOffset = true
				v.Offset = fieldOffset
			}
			fieldOffset += types.SizeOf(st.Fields[i].Type)
		}
	case *ast.TuplePattern:
		tt, _ := scrutType.(types.TupleType)
		fieldOffset := scrutOffset
		for i, name := range p.Binds {
			if i >= len(tt.Fields) {
				break
			}
			v, _, ok := arm.Scope.FindVar(name)
			if ok {
				v.HasOffset = true
				v.Offset = fieldOffset
			}
			fieldOffset += types.SizeOf(tt.Fields[i])
		}
	}

	for i, st := range arm.Body.Stmts {
		if want != nil && i == len(arm.Body.Stmts)-1 {
			if es, ok := st.(*ast.ExprStmt); ok {
				g.expr(es.X)
				g.popLocalFrame()
				g.emit(Instr{Op: FRAME_RETURN, A: types.SizeOf(want)})
				return
			}
		}
		g.stmt(st)
	}
	g.popLocalFrame()
	g.emit(Instr{Op: FRAME_RETURN, A: 0})
}

// tryLower lowers `try { Body } else { Else }`: Body runs inside a
// START_TRY/END_TRY bracket, and a throw unwinds directly to Else.
func (g *gen) tryLower(body, elseBlk *ast.Block, want types.Type) {
	elseLabel := g.newLabel()
	endLabel := g.newLabel()

	g.emit(Instr{Op: START_TRY, Label: elseLabel})
	if want != nil {
		g.genScopeValue(body, want)
	} else {
		g.genScope(body, 0)
	}
	g.emit(Instr{Op: END_TRY})
	g.emit(Instr{Op: GOTO, Label: endLabel})

	g.fn.EmitLabel(elseLabel)
	if elseBlk != nil {
		if want != nil {
			g.genScopeValue(elseBlk, want)
		} else {
			g.genScope(elseBlk, 0)
		}
	} else if want != nil {
		g.emit(Instr{Op: SERIALIZE, A: types.SizeOf(want), Bytes: make([]byte, types.SizeOf(want))})
	}
	g.fn.EmitLabel(endLabel)
}
