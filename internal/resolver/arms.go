package resolver

import (
	"golang.org/x/exp/slices"

	"github.com/ciphrpool/ciphel-sub003/internal/ast"
	"github.com/ciphrpool/ciphel-sub003/internal/diag"
	"github.com/ciphrpool/ciphel-sub003/internal/types"
)

// matchArms resolves every arm of a match expression/statement against
// scrutinee's type, merging arm body types when asExpr is true (the result
// becomes the MatchExpr's type); when asExpr is false each arm runs only
// for effect and arm types need not agree.
//
// A missing else arm is an error unless the scrutinee is an Enum and the
// listed variants exhaust every one of its members (4.B point 9).
func (r *resolver) matchArms(scrutinee ast.Expr, arms []ast.MatchArm, sp ast.Span, asExpr bool) types.Type {
	r.expr(scrutinee)
	st := r.typeOf(scrutinee)

	var result types.Type
	var hasElse bool
	var seenVariants []string

	for i := range arms {
		arm := &arms[i]
		prev := r.enterBlock()
		arm.Scope = r.scope
		if arm.Pattern == nil {
			hasElse = true
		} else {
			r.bindPattern(arm.Pattern, st)
			if ep, ok := arm.Pattern.(*ast.EnumPattern); ok {
				seenVariants = append(seenVariants, ep.Variant)
			} else if up, ok := arm.Pattern.(*ast.UnionPattern); ok {
				seenVariants = append(seenVariants, up.Variant)
			}
		}
		bodyType := r.blockType(arm.Body)
		r.leaveBlock(prev)

		if !asExpr {
			continue
		}
		if result == nil {
			result = bodyType
			continue
		}
		if bodyType == nil {
			continue
		}
		merged, err := types.Merge(result, bodyType)
		if err != nil {
			r.errorf(r.pos(arm.Body.Span()), "%s: %s", diag.IncompatibleTypes, err)
			continue
		}
		result = merged
	}

	if !hasElse && !exhausts(st, seenVariants) {
		r.errorf(r.pos(sp), "%s", diag.NonExhaustiveMatch)
	}
	if !asExpr {
		return nil
	}
	if result == nil {
		result = types.UnitType{}
	}
	return result
}

func exhausts(scrutinee types.Type, seen []string) bool {
	en, ok := scrutinee.(types.Enum)
	if !ok {
		return false
	}
	for _, v := range en.Variants {
		if !slices.Contains(seen, v) {
			return false
		}
	}
	return true
}

// blockType resolves a match/try arm body and reports the type of its last
// statement when that statement is an ExprStmt (the arm's "tail
// expression"), or UnitType otherwise.
func (r *resolver) blockType(b *ast.Block) types.Type {
	prev := r.enterBlock()
	defer r.leaveBlock(prev)

	var last types.Type = types.UnitType{}
	for i, s := range b.Stmts {
		r.stmt(s)
		if i == len(b.Stmts)-1 {
			if es, ok := s.(*ast.ExprStmt); ok {
				last = r.typeOf(es.X)
			}
		}
	}
	return last
}

func (r *resolver) bindPattern(p ast.Pattern, scrutinee types.Type) {
	switch p := p.(type) {
	case *ast.LiteralPattern:
		r.expr(p.Value)
	case *ast.EnumPattern:
		// no bindings; the enum tag itself carries the information.
	case *ast.UnionPattern:
		un, ok := scrutinee.(types.Union)
		if !ok {
			return
		}
		arm, ok := un.ArmByName(p.Variant)
		if !ok || len(arm.Payload.Fields) != len(p.Binds) {
			return
		}
		for i, name := range p.Binds {
			r.scope.DeclareVar(name, arm.Payload.Fields[i].Type, false)
		}
	case *ast.StructPattern:
		st, ok := scrutinee.(types.Struct)
		if !ok || len(st.Fields) != len(p.Binds) {
			return
		}
		for i, name := range p.Binds {
			r.scope.DeclareVar(name, st.Fields[i].Type, false)
		}
	case *ast.TuplePattern:
		tt, ok := scrutinee.(types.TupleType)
		if !ok || len(tt.Fields) != len(p.Binds) {
			return
		}
		for i, name := range p.Binds {
			r.scope.DeclareVar(name, tt.Fields[i], false)
		}
	}
}

// tryArms resolves `try { Body } else { Else }`. The resolved type of the
// try expression is merge(typeof(Body), typeof(Else)); Body's type is not
// checked for ErrorType and no Error arm is stripped from it. When asExpr is false (statement form) neither arm's type
// is required to merge and nil is returned.
func (r *resolver) tryArms(body, elseBlk *ast.Block, asExpr bool) types.Type {
	bodyType := r.blockType(body)

	var elseType types.Type = types.UnitType{}
	if elseBlk != nil {
		elseType = r.blockType(elseBlk)
	}
	if !asExpr {
		return nil
	}
	if bodyType == nil {
		bodyType = types.UnitType{}
	}
	merged, err := types.Merge(bodyType, elseType)
	if err != nil {
		r.errorf(r.pos(body.Span()), "%s: %s", diag.IncompatibleTypes, err)
		return types.AnyType{}
	}
	return merged
}
