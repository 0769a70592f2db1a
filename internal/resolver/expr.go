package resolver

import (
	"github.com/ciphrpool/ciphel-sub003/internal/ast"
	"github.com/ciphrpool/ciphel-sub003/internal/diag"
	"github.com/ciphrpool/ciphel-sub003/internal/token"
	"github.com/ciphrpool/ciphel-sub003/internal/types"
)

// expr resolves e and every subexpression, populating Metadata.Info on each
// node it visits. Call typeOf afterwards to read the computed type.
func (r *resolver) expr(e ast.Expr) {
	if e == nil {
		return
	}
	switch e := e.(type) {
	case *ast.IdentExpr:
		r.identExpr(e)
	case *ast.LiteralExpr:
		r.setType(e, r.literalType(e))
	case *ast.BinOpExpr:
		r.binOpExpr(e)
	case *ast.UnaryOpExpr:
		r.unaryOpExpr(e)
	case *ast.CallExpr:
		r.callExpr(e)
	case *ast.IndexExpr:
		r.indexExpr(e)
	case *ast.DotExpr:
		r.dotExpr(e)
	case *ast.ParenExpr:
		r.expr(e.Expr)
		r.setType(e, r.typeOf(e.Expr))
	case *ast.ArrayLikeExpr:
		r.arrayLikeExpr(e)
	case *ast.TupleExpr:
		r.tupleExpr(e)
	case *ast.StructLitExpr:
		r.structLitExpr(e)
	case *ast.UnionLitExpr:
		r.unionLitExpr(e)
	case *ast.EnumLitExpr:
		r.enumLitExpr(e)
	case *ast.MapExpr:
		r.mapExpr(e)
	case *ast.ClosureExpr:
		r.closureExpr(e)
	case *ast.RangeExpr:
		r.rangeExpr(e)
	case *ast.MatchExpr:
		r.setType(e, r.matchArms(e.Scrutinee, e.Arms, e.Span(), true))
	case *ast.TryExpr:
		r.setType(e, r.tryArms(e.Body, e.Else, true))
	default:
		r.errorf(ast.Position{}, "resolver: unhandled expression %T", e)
	}
}

func (r *resolver) setType(e ast.Expr, t types.Type) {
	m := e.Meta()
	m.Info.Resolved = t != nil
	m.Info.Type = t
	m.Scope = r.scope
}

// typeOf returns the type a prior expr call computed for e.
func (r *resolver) typeOf(e ast.Expr) types.Type {
	if e == nil {
		return nil
	}
	return e.Meta().Info.Type
}

// platformNames mirrors internal/casm's platformCalls table: callee names
// that never get a scope binding because they are resolved straight to a
// CoreCasm opcode at the call site instead of through CALL. An identifier
// used as one of these names is a platform intrinsic reference, not an
// unbound variable, matching CallExpr's own doc comment ("when the callee
// name is not otherwise bound, to a PlatformApi intrinsic").
var platformNames = map[string]bool{
	"print": true, "cursor_print": true, "cursor_move": true, "cursor_clear": true,
	"push": true, "pop": true, "extend": true, "delete": true, "clear": true,
	"contains": true,
	"channel":  true,
	"send": true, "receive": true, "try_receive": true, "close": true,
	"spawn": true, "join": true, "sleep": true, "wait": true, "wake": true,
	"alloc": true, "free": true, "sizeof": true,
	"math": true,
}

func (r *resolver) identExpr(e *ast.IdentExpr) {
	r.use(e.Name)
	v, _, ok := r.scope.FindVar(e.Name)
	if !ok {
		if platformNames[e.Name] {
			r.setType(e, types.AnyType{})
			return
		}
		r.errorf(r.pos(e.Span()), "%s: %s", diag.UnknownIdentifier, e.Name)
		r.setType(e, types.AnyType{})
		return
	}
	r.setType(e, v.Type)
}

func (r *resolver) literalType(e *ast.LiteralExpr) types.Type {
	switch e.Kind {
	case ast.IntLit:
		return types.Primitive{Kind: types.UnresolvedInt}
	case ast.FloatLit:
		return types.Primitive{Kind: types.UnresolvedFloat}
	case ast.BoolLit:
		return types.Primitive{Kind: types.Bool}
	case ast.CharLit:
		return types.Primitive{Kind: types.Char}
	case ast.StringLit:
		return types.StringVal{}
	default:
		return types.AnyType{}
	}
}

func (r *resolver) binOpExpr(e *ast.BinOpExpr) {
	r.expr(e.Left)
	r.expr(e.Right)
	lt, rt := r.typeOf(e.Left), r.typeOf(e.Right)
	if lt == nil || rt == nil {
		r.setType(e, types.AnyType{})
		return
	}
	if e.Op.IsComparison() {
		if !types.CompatibleWith(lt, rt) {
			r.errorf(r.pos(e.Span()), "%s: %s and %s", diag.IncompatibleTypes, lt, rt)
		}
		r.setType(e, types.Primitive{Kind: types.Bool})
		return
	}
	merged, err := types.Merge(lt, rt)
	if err != nil {
		r.errorf(r.pos(e.Span()), "%s: %s", diag.IncompatibleTypes, err)
		r.setType(e, types.AnyType{})
		return
	}
	r.setType(e, merged)
}

func (r *resolver) unaryOpExpr(e *ast.UnaryOpExpr) {
	r.expr(e.Right)
	t := r.typeOf(e.Right)
	if e.Op == token.NOT {
		r.setType(e, types.Primitive{Kind: types.Bool})
		return
	}
	if e.Op == token.POUND {
		r.setType(e, types.Primitive{Kind: types.U64})
		return
	}
	r.setType(e, t)
}

func (r *resolver) callExpr(e *ast.CallExpr) {
	for _, a := range e.Args {
		r.expr(a)
	}
	r.expr(e.Fn)
	fnType := r.typeOf(e.Fn)

	var params []types.Type
	var ret types.Type
	switch fn := fnType.(type) {
	case types.StaticFn:
		params, ret = fn.Params, fn.Ret
	case types.Closure:
		params, ret = fn.Params, fn.Ret
	case types.AnyType:
		// an intrinsic/platform call whose signature the resolver does not
		// itself know; accept any arguments and yield Any (the code generator
		// validates arity against the platform API table).
		r.setType(e, types.AnyType{})
		return
	default:
		r.errorf(r.pos(e.Span()), "%s: callee is not a function", diag.IncorrectArguments)
		r.setType(e, types.AnyType{})
		return
	}
	if len(params) != len(e.Args) {
		r.errorf(r.pos(e.Span()), "%s: want %d, got %d", diag.IncorrectArguments, len(params), len(e.Args))
	} else {
		for i, p := range params {
			if at := r.typeOf(e.Args[i]); at != nil && !types.CompatibleWith(p, at) {
				r.errorf(r.pos(e.Args[i].Span()), "%s: argument %d: %s and %s", diag.IncompatibleTypes, i, p, at)
			}
		}
	}
	r.setType(e, ret)
}

func (r *resolver) indexExpr(e *ast.IndexExpr) {
	r.expr(e.Prefix)
	r.expr(e.Index)
	t := elementType(r.typeOf(e.Prefix))
	if t == nil {
		r.errorf(r.pos(e.Span()), "%s: not indexable", diag.IncompatibleTypes)
		t = types.AnyType{}
	}
	r.setType(e, t)
}

func (r *resolver) dotExpr(e *ast.DotExpr) {
	r.expr(e.Left)
	lt := r.typeOf(e.Left)
	if addr, ok := lt.(types.Address); ok {
		lt = addr.Elem
	}
	st, ok := lt.(types.Struct)
	if !ok {
		r.errorf(r.pos(e.Span()), "%s: %s has no field %s", diag.IncompatibleTypes, lt, e.Field)
		r.setType(e, types.AnyType{})
		return
	}
	f, ok := st.FieldByName(e.Field)
	if !ok {
		r.errorf(r.pos(e.Span()), "%s: %s has no field %s", diag.IncompatibleTypes, st.ID, e.Field)
		r.setType(e, types.AnyType{})
		return
	}
	r.setType(e, f.Type)
}

func (r *resolver) arrayLikeExpr(e *ast.ArrayLikeExpr) {
	var item types.Type = types.AnyType{}
	for i, it := range e.Items {
		r.expr(it)
		t := r.typeOf(it)
		if t == nil {
			continue
		}
		if i == 0 {
			item = t
			continue
		}
		merged, err := types.Merge(item, t)
		if err != nil {
			r.errorf(r.pos(it.Span()), "%s: %s", diag.IncompatibleTypes, err)
			continue
		}
		item = merged
	}
	if e.IsVec {
		r.setType(e, types.Vec{Item: item})
	} else {
		r.setType(e, types.Slice{Size: len(e.Items), Item: item})
	}
}

func (r *resolver) tupleExpr(e *ast.TupleExpr) {
	fields := make([]types.Type, len(e.Items))
	for i, it := range e.Items {
		r.expr(it)
		fields[i] = r.typeOf(it)
	}
	r.setType(e, types.TupleType{Fields: fields})
}

func (r *resolver) structLitExpr(e *ast.StructLitExpr) {
	st, ok := r.lookupNamedStruct(e.TypeName, e.Span())
	for _, f := range e.Fields {
		r.expr(f.Value)
	}
	if !ok {
		r.setType(e, types.AnyType{})
		return
	}
	for _, f := range e.Fields {
		want, ok := st.FieldByName(f.Name)
		if !ok {
			r.errorf(r.pos(e.Span()), "%s: %s has no field %s", diag.IncompatibleTypes, st.ID, f.Name)
			continue
		}
		if got := r.typeOf(f.Value); got != nil && !types.CompatibleWith(want.Type, got) {
			r.errorf(r.pos(f.Value.Span()), "%s: field %s: %s and %s", diag.IncompatibleTypes, f.Name, want.Type, got)
		}
	}
	r.setType(e, st)
}

func (r *resolver) unionLitExpr(e *ast.UnionLitExpr) {
	t, ok := r.scope.FindType(e.TypeName)
	for _, f := range e.Fields {
		r.expr(f.Value)
	}
	if !ok {
		r.errorf(r.pos(e.Span()), "%s: %s", diag.UnknownIdentifier, e.TypeName)
		r.setType(e, types.AnyType{})
		return
	}
	un, ok := t.(types.Union)
	if !ok {
		r.errorf(r.pos(e.Span()), "%s is not a union type", e.TypeName)
		r.setType(e, types.AnyType{})
		return
	}
	arm, ok := un.ArmByName(e.Variant)
	if !ok {
		r.errorf(r.pos(e.Span()), "%s: %s has no variant %s", diag.IncompatibleTypes, un.ID, e.Variant)
		r.setType(e, un)
		return
	}
	for _, f := range e.Fields {
		want, ok := arm.Payload.FieldByName(f.Name)
		if !ok {
			continue
		}
		if got := r.typeOf(f.Value); got != nil && !types.CompatibleWith(want.Type, got) {
			r.errorf(r.pos(f.Value.Span()), "%s: field %s: %s and %s", diag.IncompatibleTypes, f.Name, want.Type, got)
		}
	}
	r.setType(e, un)
}

func (r *resolver) enumLitExpr(e *ast.EnumLitExpr) {
	t, ok := r.scope.FindType(e.TypeName)
	if !ok {
		r.errorf(r.pos(e.Span()), "%s: %s", diag.UnknownIdentifier, e.TypeName)
		r.setType(e, types.AnyType{})
		return
	}
	en, ok := t.(types.Enum)
	if !ok || en.IndexOf(e.Variant) < 0 {
		r.errorf(r.pos(e.Span()), "%s: unknown enum variant %s", diag.IncompatibleTypes, e.Variant)
		r.setType(e, types.AnyType{})
		return
	}
	r.setType(e, en)
}

func (r *resolver) mapExpr(e *ast.MapExpr) {
	var key, val types.Type = types.AnyType{}, types.AnyType{}
	for i, it := range e.Items {
		r.expr(it.Key)
		r.expr(it.Value)
		kt, vt := r.typeOf(it.Key), r.typeOf(it.Value)
		if i == 0 {
			key, val = kt, vt
			continue
		}
		if kt != nil {
			if m, err := types.Merge(key, kt); err == nil {
				key = m
			}
		}
		if vt != nil {
			if m, err := types.Merge(val, vt); err == nil {
				val = m
			}
		}
	}
	r.setType(e, types.MapType{Key: key, Value: val})
}

func (r *resolver) closureExpr(e *ast.ClosureExpr) {
	sig := r.funcSignature(e.Sig)

	fc, prevScope := r.enterFunction()
	fc.retType = sig.Ret
	e.BodyScope = r.scope
	for _, p := range e.Sig.Params {
		r.scope.DeclareVar(p.Name, r.resolveTypeExpr(p.Type), false)
	}
	for _, st := range e.Body.Stmts {
		r.stmt(st)
	}
	captured := r.leaveFunction(prevScope)
	e.Captures = captured

	captureTypes := make([]types.Type, len(captured))
	for i, v := range captured {
		captureTypes[i] = v.Type
	}
	r.setType(e, types.Closure{Params: sig.Params, Ret: sig.Ret, Captured: captureTypes})
}

func (r *resolver) rangeExpr(e *ast.RangeExpr) {
	r.expr(e.Lo)
	r.expr(e.Hi)
	lo, hi := r.typeOf(e.Lo), r.typeOf(e.Hi)
	numeric := lo
	if numeric == nil {
		numeric = hi
	}
	if lo != nil && hi != nil && !types.CompatibleWith(lo, hi) {
		r.errorf(r.pos(e.Span()), "%s: range bounds %s and %s", diag.IncompatibleTypes, lo, hi)
	}
	r.setType(e, types.RangeType{Numeric: numeric})
}
