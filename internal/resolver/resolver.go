// Package resolver walks a parsed ast.Chunk and resolves every identifier
// to a scope.Variable or scope.Type binding, computes the static type of
// every expression via Type.signature rules, and annotates each node's
// ast.Metadata with the result. It is the single pass that turns an
// unresolved parse tree into one the code generator can consume.
package resolver

import (
	"golang.org/x/exp/slices"

	"github.com/ciphrpool/ciphel-sub003/internal/ast"
	"github.com/ciphrpool/ciphel-sub003/internal/diag"
	"github.com/ciphrpool/ciphel-sub003/internal/scope"
	"github.com/ciphrpool/ciphel-sub003/internal/token"
	"github.com/ciphrpool/ciphel-sub003/internal/types"
)

// funcCtx tracks the state the resolver needs while inside one function or
// closure body: the set of identifiers referenced (for capture discovery)
// and the declared return type, used to check every return statement.
type funcCtx struct {
	bodyScope *scope.Scope
	used      []string
	retType   types.Type
}

type resolver struct {
	mgr   *scope.Manager
	scope *scope.Scope
	diags diag.List

	funcs     []*funcCtx
	loopDepth int
}

// Resolve binds and type-checks every statement in chunk against mgr's root
// scope, mutating the AST in place. It returns the accumulated diagnostics;
// Resolve should be treated as having failed whenever diags.Err() != nil.
func Resolve(mgr *scope.Manager, chunk *ast.Chunk) *diag.List {
	r := &resolver{mgr: mgr, scope: mgr.Root}
	r.funcs = append(r.funcs, &funcCtx{bodyScope: mgr.Root})
	r.block(chunk.Block, false)
	r.diags.Sort()
	return &r.diags
}

func (r *resolver) errorf(pos ast.Position, format string, args ...any) {
	r.diags.Add(pos, diag.Semantic, format, args...)
}

func (r *resolver) curFunc() *funcCtx { return r.funcs[len(r.funcs)-1] }

// use records that name was referenced somewhere in the current function
// body, feeding closure-capture discovery once the body finishes.
func (r *resolver) use(name string) {
	fc := r.curFunc()
	if !slices.Contains(fc.used, name) {
		fc.used = append(fc.used, name)
	}
}

func (r *resolver) enterBlock() *scope.Scope {
	prev := r.scope
	r.scope = r.mgr.EnterChild(r.scope)
	return prev
}

func (r *resolver) leaveBlock(prev *scope.Scope) { r.scope = prev }

// enterFunction pushes both a new scope.Scope (capture-capable) and a new
// funcCtx, returning the funcCtx so callers can read its captured-variable
// discovery after the body has been walked.
func (r *resolver) enterFunction() (*funcCtx, *scope.Scope) {
	caller := r.scope
	body := r.mgr.EnterFunction(r.scope, caller)
	prevScope := r.scope
	r.scope = body
	fc := &funcCtx{bodyScope: body}
	r.funcs = append(r.funcs, fc)
	return fc, prevScope
}

func (r *resolver) leaveFunction(prevScope *scope.Scope) []*scope.Variable {
	fc := r.funcs[len(r.funcs)-1]
	r.funcs = r.funcs[:len(r.funcs)-1]
	r.scope = prevScope
	captured := scope.FindOuterVars(fc.bodyScope, fc.used)
	// propagate inner uses of outer-outer names to the enclosing function, so
	// a doubly-nested closure's capture chain resolves correctly.
	if len(r.funcs) > 0 {
		outer := r.curFunc()
		for _, name := range fc.used {
			if _, _, ok := fc.bodyScope.Parent.FindVar(name); ok {
				if !slices.Contains(outer.used, name) {
					outer.used = append(outer.used, name)
				}
			}
		}
	}
	return captured
}

// block resolves every statement of b in a fresh child scope. markLoop, if
// true, marks that scope as a loop body (4.B point 7).
func (r *resolver) block(b *ast.Block, markLoop bool) {
	prev := r.enterBlock()
	r.scope.IsLoop = markLoop
	for _, s := range b.Stmts {
		r.stmt(s)
	}
	r.leaveBlock(prev)
}

func (r *resolver) stmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.LetStmt:
		r.letStmt(s)
	case *ast.AssignStmt:
		r.expr(s.Value)
		r.expr(s.Target)
		lt := r.typeOf(s.Target)
		rt := r.typeOf(s.Value)
		if lt != nil && rt != nil && !types.CompatibleWith(lt, rt) {
			r.errorf(r.pos(s.Span()), "%s: %s and %s", diag.IncompatibleTypes, lt, rt)
		}
	case *ast.ExprStmt:
		r.expr(s.X)
	case *ast.IfStmt:
		r.ifStmt(s)
	case *ast.WhileStmt:
		r.expr(s.Cond)
		r.block(s.Body, true)
	case *ast.ForStmt:
		r.forStmt(s)
	case *ast.ForInStmt:
		r.forInStmt(s)
	case *ast.FuncStmt:
		r.funcStmt(s)
	case *ast.ReturnStmt:
		r.returnStmt(s)
	case *ast.BreakStmt:
		if !r.inLoop() {
			r.errorf(r.pos(s.Span()), "break outside of a loop")
		}
	case *ast.ContinueStmt:
		if !r.inLoop() {
			r.errorf(r.pos(s.Span()), "continue outside of a loop")
		}
	case *ast.MatchStmt:
		r.matchArms(s.Scrutinee, s.Arms, s.Span(), false)
	case *ast.TryStmt:
		r.tryArms(s.Body, s.Else, false)
	case *ast.ThrowStmt:
		r.expr(s.Value)
	case *ast.TypeDeclStmt:
		r.typeDeclStmt(s)
	default:
		r.errorf(ast.Position{}, "resolver: unhandled statement %T", s)
	}
}

func (r *resolver) inLoop() bool {
	for sc := r.scope; sc != nil && !sc.IsFunc; sc = sc.Parent {
		if sc.IsLoop {
			return true
		}
	}
	return false
}

func (r *resolver) pos(sp ast.Span) ast.Position {
	line, col := sp.Start.LineCol()
	return ast.Position{Line: line, Col: col}
}

func (r *resolver) letStmt(s *ast.LetStmt) {
	r.expr(s.Value)
	valType := r.typeOf(s.Value)

	var declType types.Type
	if s.Type != nil {
		declType = r.resolveTypeExpr(*s.Type)
		if valType != nil && !types.CompatibleWith(declType, valType) {
			r.errorf(r.pos(s.Span()), "%s: %s and %s", diag.IncompatibleTypes, declType, valType)
		}
		// A platform constructor call (channel(...), vec(...), ...) resolves
		// to AnyType on its own — its callee is untyped by definition — so it
		// carries no element type for the code generator to size CHAN_NEW/
		// VEC_NEW with. The let binding's own declared type is the only place
		// that element type is ever written down; push it back onto the call
		// expression's Info.Type so gen_expr.go's exprType(e) lookup finds it.
		if call, ok := s.Value.(*ast.CallExpr); ok {
			if _, isAny := valType.(types.AnyType); isAny {
				switch declType.(type) {
				case types.Channel, types.Vec, types.MapType:
					r.setType(call, declType)
				}
			}
		}
	} else {
		declType = valType
	}
	if declType == nil {
		r.errorf(r.pos(s.Span()), "%s", diag.CantInferType)
		return
	}
	if p, ok := declType.(types.Primitive); ok && p.Kind == types.UnresolvedInt {
		declType = types.Pin(p, types.I64)
	} else if ok && p.Kind == types.UnresolvedFloat {
		declType = types.Pin(p, types.F64)
	}

	mutable := s.Kind == token.LET
	switch {
	case s.Pattern.Name != "":
		r.declareOrError(s.Pattern.Name, declType, mutable, s.Span())
	case s.Pattern.TupleBinds != nil:
		tt, ok := declType.(types.TupleType)
		if !ok || len(tt.Fields) != len(s.Pattern.TupleBinds) {
			r.errorf(r.pos(s.Span()), "%s: tuple pattern does not match %s", diag.IncompatibleTypes, declType)
			return
		}
		for i, name := range s.Pattern.TupleBinds {
			field := tt.Fields[i]
			if p, ok := field.(types.Primitive); ok && p.Kind == types.UnresolvedInt {
				field = types.Pin(p, types.I64)
			} else if ok && p.Kind == types.UnresolvedFloat {
				field = types.Pin(p, types.F64)
			}
			r.declareOrError(name, field, mutable, s.Span())
		}
	case s.Pattern.StructType != "":
		st, ok := r.lookupNamedStruct(s.Pattern.StructType, s.Span())
		if !ok {
			return
		}
		if len(st.Fields) != len(s.Pattern.StructBinds) {
			r.errorf(r.pos(s.Span()), "%s: struct pattern arity mismatch for %s", diag.IncompatibleTypes, st.ID)
			return
		}
		for i, name := range s.Pattern.StructBinds {
			r.declareOrError(name, st.Fields[i].Type, mutable, s.Span())
		}
	}
}

func (r *resolver) declareOrError(name string, t types.Type, mutable bool, sp ast.Span) {
	if _, ok := r.scope.FindType(name); ok {
		r.errorf(r.pos(sp), "%s: %s", diag.RedefinedIdentifier, name)
		return
	}
	r.scope.DeclareVar(name, t, mutable)
}

func (r *resolver) lookupNamedStruct(name string, sp ast.Span) (types.Struct, bool) {
	t, ok := r.scope.FindType(name)
	if !ok {
		r.errorf(r.pos(sp), "%s: %s", diag.UnknownIdentifier, name)
		return types.Struct{}, false
	}
	st, ok := t.(types.Struct)
	if !ok {
		r.errorf(r.pos(sp), "%s is not a struct type", name)
		return types.Struct{}, false
	}
	return st, true
}

func (r *resolver) ifStmt(s *ast.IfStmt) {
	r.expr(s.Cond)
	r.block(s.Then, false)
	for _, ei := range s.ElseIfs {
		r.expr(ei.Cond)
		r.block(ei.Body, false)
	}
	if s.Else != nil {
		r.block(s.Else, false)
	}
}

func (r *resolver) forStmt(s *ast.ForStmt) {
	prev := r.enterBlock()
	r.scope.IsLoop = true
	if s.Init != nil {
		r.stmt(s.Init)
	}
	if s.Cond != nil {
		r.expr(s.Cond)
	}
	for _, st := range s.Body.Stmts {
		r.stmt(st)
	}
	if s.Post != nil {
		r.stmt(s.Post)
	}
	r.leaveBlock(prev)
}

func (r *resolver) forInStmt(s *ast.ForInStmt) {
	r.expr(s.Iterable)
	iterType := r.typeOf(s.Iterable)
	prev := r.enterBlock()
	r.scope.IsLoop = true
	elemType := elementType(iterType)
	if elemType == nil {
		r.errorf(r.pos(s.Span()), "%s: %s is not iterable", diag.IncompatibleTypes, iterType)
		elemType = types.AnyType{}
	}
	r.scope.DeclareVar(s.Var, elemType, false)
	s.BodyScope = r.scope
	for _, st := range s.Body.Stmts {
		r.stmt(st)
	}
	r.leaveBlock(prev)
}

func elementType(t types.Type) types.Type {
	switch t := t.(type) {
	case types.Slice:
		return t.Item
	case types.Vec:
		return t.Item
	case types.Channel:
		return t.Elem
	case types.RangeType:
		return t.Numeric
	case types.MapType:
		return types.TupleType{Fields: []types.Type{t.Key, t.Value}}
	case types.StrSlice, types.StringVal:
		return types.Primitive{Kind: types.Char}
	default:
		return nil
	}
}

func (r *resolver) funcStmt(s *ast.FuncStmt) {
	sig := r.funcSignature(s.Sig)
	s.ResolvedSig = sig
	// bind the name in the *enclosing* scope so recursive calls resolve.
	if _, ok := r.scope.FindVar(s.Name); !ok {
		r.scope.DeclareVar(s.Name, sig, false)
	}

	fc, prevScope := r.enterFunction()
	fc.retType = sig.Ret
	s.BodyScope = r.scope
	for _, p := range s.Sig.Params {
		r.scope.DeclareVar(p.Name, r.resolveTypeExpr(p.Type), false)
	}
	for _, st := range s.Body.Stmts {
		r.stmt(st)
	}
	s.Captures = r.leaveFunction(prevScope)
}

func (r *resolver) funcSignature(sig ast.FuncSignature) types.StaticFn {
	params := make([]types.Type, len(sig.Params))
	for i, p := range sig.Params {
		params[i] = r.resolveTypeExpr(p.Type)
	}
	ret := r.resolveTypeExpr(sig.Ret)
	return types.StaticFn{Params: params, Ret: ret}
}

func (r *resolver) returnStmt(s *ast.ReturnStmt) {
	want := r.curFunc().retType
	var got types.Type = types.UnitType{}
	if s.Value != nil {
		r.expr(s.Value)
		got = r.typeOf(s.Value)
	}
	if r.curFunc().bodyScope == r.mgr.Root {
		r.errorf(r.pos(s.Span()), "%s", diag.ReturnOutsideFunction)
		return
	}
	if want != nil && got != nil && !types.CompatibleWith(want, got) {
		r.errorf(r.pos(s.Span()), "%s: return %s, expected %s", diag.IncompatibleTypes, got, want)
	}
}

func (r *resolver) typeDeclStmt(s *ast.TypeDeclStmt) {
	switch {
	case s.Struct != nil:
		fields := make([]types.Field, len(s.Struct.Fields))
		for i, f := range s.Struct.Fields {
			fields[i] = types.Field{Name: f.Name, Type: r.resolveTypeExpr(f.Type)}
		}
		r.scope.RegisterType(s.Struct.Name, types.Struct{ID: s.Struct.Name, Fields: fields})
	case s.Union != nil:
		arms := make([]types.Arm, len(s.Union.Arms))
		for i, a := range s.Union.Arms {
			fields := make([]types.Field, len(a.Fields))
			for j, f := range a.Fields {
				fields[j] = types.Field{Name: f.Name, Type: r.resolveTypeExpr(f.Type)}
			}
			arms[i] = types.Arm{Variant: a.Variant, Payload: types.Struct{ID: a.Variant, Fields: fields}}
		}
		r.scope.RegisterType(s.Union.Name, types.Union{ID: s.Union.Name, Arms: arms})
	case s.Enum != nil:
		r.scope.RegisterType(s.Enum.Name, types.Enum{ID: s.Enum.Name, Variants: append([]string(nil), s.Enum.Variants...)})
	}
}

// resolveTypeExpr turns source-level type syntax into a types.Type. A nil
// or zero-value TypeExpr denotes the absence of an explicit return type
// (UnitType).
func (r *resolver) resolveTypeExpr(te ast.TypeExpr) types.Type {
	switch {
	case te.Address != nil:
		return types.Address{Elem: r.resolveTypeExpr(*te.Address)}
	case te.Slice != nil:
		return types.Slice{Size: te.SliceN, Item: r.resolveTypeExpr(*te.Slice)}
	case te.Vec != nil:
		return types.Vec{Item: r.resolveTypeExpr(*te.Vec)}
	case te.MapKey != nil:
		return types.MapType{Key: r.resolveTypeExpr(*te.MapKey), Value: r.resolveTypeExpr(*te.MapVal)}
	case te.Tuple != nil:
		fields := make([]types.Type, len(te.Tuple))
		for i, t := range te.Tuple {
			fields[i] = r.resolveTypeExpr(t)
		}
		return types.TupleType{Fields: fields}
	case te.Chan != nil:
		return types.Channel{Elem: r.resolveTypeExpr(*te.Chan)}
	}
	if te.Name == "" {
		return types.UnitType{}
	}
	if t, ok := primitiveByName(te.Name); ok {
		return t
	}
	if te.Name == "string" {
		return types.StringVal{}
	}
	if te.Name == "any" {
		return types.AnyType{}
	}
	if te.Name == "error" {
		return types.ErrorType{}
	}
	if t, ok := r.scope.FindType(te.Name); ok {
		return t
	}
	r.errorf(ast.Position{}, "%s: %s", diag.UnknownIdentifier, te.Name)
	return types.AnyType{}
}

func primitiveByName(name string) (types.Type, bool) {
	names := map[string]types.Kind{
		"i8": types.I8, "i16": types.I16, "i32": types.I32, "i64": types.I64, "i128": types.I128,
		"u8": types.U8, "u16": types.U16, "u32": types.U32, "u64": types.U64, "u128": types.U128,
		"f64": types.F64, "bool": types.Bool, "char": types.Char,
	}
	k, ok := names[name]
	if !ok {
		return nil, false
	}
	return types.Primitive{Kind: k}, true
}
