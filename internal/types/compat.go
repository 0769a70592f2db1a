package types

import "fmt"

// IncompatibleTypesError is returned by Merge when two types cannot be
// reconciled to a common join type.
type IncompatibleTypesError struct {
	A, B Type
}

func (e *IncompatibleTypesError) Error() string {
	return fmt.Sprintf("incompatible types: %s and %s", e.A, e.B)
}

// CompatibleWith reports whether a and b may stand in for one another (used
// for assignment, argument binding and arm reconciliation). It follows the
// rules in 4.A exactly:
//   - two primitives are compatible iff identical (after literal pinning);
//   - Slice/Vec/Tuple/Map/Chan/Address are compatible iff their item/key/
//     value types are pairwise compatible;
//   - Struct/Union/Enum are compatible iff they share the same id, the same
//     cardinality, and fields match pairwise by name;
//   - Any is compatible with anything; Error is only compatible with Error;
//   - a Static type and a User type are compatible only when one wraps the
//     other via Address.
func CompatibleWith(a, b Type) bool {
	if _, ok := a.(ErrorType); ok {
		_, ok2 := b.(ErrorType)
		return ok2
	}
	if _, ok := b.(ErrorType); ok {
		return false // a is not ErrorType (handled above)
	}
	if _, ok := a.(AnyType); ok {
		return true
	}
	if _, ok := b.(AnyType); ok {
		return true
	}

	// a reference to a user type is transparently compatible with the bare
	// user type on the other side, regardless of which operand is which.
	if _, aAddr := a.(Address); !aAddr {
		if bAddr, ok := b.(Address); ok && isUserType(a) {
			return CompatibleWith(a, bAddr.Elem)
		}
	}

	switch a := a.(type) {
	case Primitive:
		b, ok := b.(Primitive)
		return ok && primitiveCompatible(a, b)
	case StringVal:
		_, ok := b.(StringVal)
		return ok
	case StrSlice:
		b, ok := b.(StrSlice)
		return ok && a.Size == b.Size
	case Slice:
		b, ok := b.(Slice)
		return ok && a.Size == b.Size && CompatibleWith(a.Item, b.Item)
	case Vec:
		b, ok := b.(Vec)
		return ok && CompatibleWith(a.Item, b.Item)
	case MapType:
		b, ok := b.(MapType)
		return ok && CompatibleWith(a.Key, b.Key) && CompatibleWith(a.Value, b.Value)
	case TupleType:
		b, ok := b.(TupleType)
		if !ok || len(a.Fields) != len(b.Fields) {
			return false
		}
		for i := range a.Fields {
			if !CompatibleWith(a.Fields[i], b.Fields[i]) {
				return false
			}
		}
		return true
	case Address:
		if b, ok := b.(Address); ok {
			return CompatibleWith(a.Elem, b.Elem)
		}
		// a reference to a user type is compatible with the bare user type
		// itself: passing a Struct/Union/Enum by address is transparent to the
		// caller (4.A "mixed Static/User types compatible only via Address").
		return isUserType(a.Elem) && CompatibleWith(a.Elem, b)
	case Channel:
		b, ok := b.(Channel)
		return ok && CompatibleWith(a.Elem, b.Elem)
	case StaticFn:
		b, ok := b.(StaticFn)
		return ok && fnCompatible(a.Params, a.Ret, b.Params, b.Ret)
	case Closure:
		b, ok := b.(Closure)
		return ok && fnCompatible(a.Params, a.Ret, b.Params, b.Ret)
	case RangeType:
		b, ok := b.(RangeType)
		return ok && CompatibleWith(a.Numeric, b.Numeric)
	case UnitType:
		_, ok := b.(UnitType)
		return ok
	case Struct:
		b, ok := b.(Struct)
		return ok && userTypeCompatible(a.ID, b.ID, len(a.Fields), len(b.Fields), func(i int) bool {
			return a.Fields[i].Name == b.Fields[i].Name && CompatibleWith(a.Fields[i].Type, b.Fields[i].Type)
		})
	case Union:
		b, ok := b.(Union)
		return ok && userTypeCompatible(a.ID, b.ID, len(a.Arms), len(b.Arms), func(i int) bool {
			return a.Arms[i].Variant == b.Arms[i].Variant &&
				userTypeCompatible(a.Arms[i].Payload.ID, b.Arms[i].Payload.ID, len(a.Arms[i].Payload.Fields), len(b.Arms[i].Payload.Fields), func(j int) bool {
					return a.Arms[i].Payload.Fields[j].Name == b.Arms[i].Payload.Fields[j].Name &&
						CompatibleWith(a.Arms[i].Payload.Fields[j].Type, b.Arms[i].Payload.Fields[j].Type)
				})
		})
	case Enum:
		b, ok := b.(Enum)
		if !ok || a.ID != b.ID || len(a.Variants) != len(b.Variants) {
			return false
		}
		for i := range a.Variants {
			if a.Variants[i] != b.Variants[i] {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func primitiveCompatible(a, b Primitive) bool {
	// unresolved numeric literals are compatible with any primitive of the
	// matching float/int family, standing in until Pin commits them.
	if a.Kind.isUnresolved() || b.Kind.isUnresolved() {
		if a.Kind.isUnresolved() && b.Kind.isUnresolved() {
			return a.Kind.isFloat() == b.Kind.isFloat()
		}
		lit, other := a, b
		if !a.Kind.isUnresolved() {
			lit, other = b, a
		}
		if lit.Kind == UnresolvedFloat {
			return other.Kind == F64
		}
		return !other.Kind.isFloat() && other.Kind != Bool && other.Kind != Char
	}
	return a.Kind == b.Kind
}

func fnCompatible(pa []Type, ra Type, pb []Type, rb Type) bool {
	if len(pa) != len(pb) {
		return false
	}
	for i := range pa {
		if !CompatibleWith(pa[i], pb[i]) {
			return false
		}
	}
	return CompatibleWith(ra, rb)
}

func userTypeCompatible(idA, idB string, na, nb int, fieldsEq func(i int) bool) bool {
	if idA != idB || na != nb {
		return false
	}
	for i := 0; i < na; i++ {
		if !fieldsEq(i) {
			return false
		}
	}
	return true
}

func isUserType(t Type) bool {
	switch t.(type) {
	case Struct, Union, Enum:
		return true
	default:
		return false
	}
}

// Merge returns the join type used at if/match/try arm reconciliation: if a
// and b are compatible, it returns the more specific of the two (this
// resolves unresolved numeric literals to their pinned sibling's width);
// if one of them is Any, it returns the other; otherwise it fails.
func Merge(a, b Type) (Type, error) {
	if !CompatibleWith(a, b) {
		return nil, &IncompatibleTypesError{A: a, B: b}
	}
	if _, ok := a.(AnyType); ok {
		return b, nil
	}
	if _, ok := b.(AnyType); ok {
		return a, nil
	}
	if pa, ok := a.(Primitive); ok {
		if pb, ok := b.(Primitive); ok {
			if pa.Kind.isUnresolved() && !pb.Kind.isUnresolved() {
				return pb, nil
			}
			return pa, nil
		}
	}
	return a, nil
}

// Pin commits an unresolved numeric literal type to a concrete width. It
// panics if t is not an unresolved Primitive, since the resolver must never
// call Pin on anything else.
func Pin(t Type, to Kind) Type {
	p, ok := t.(Primitive)
	if !ok || !p.Kind.isUnresolved() {
		panic(fmt.Sprintf("Pin: %s is not an unresolved numeric literal type", t))
	}
	return Primitive{Kind: to}
}
