// Package types implements the static type system described by the
// language: a closed set of primitive and compound type kinds, each
// answering size_of, plus the compatible_with and merge rules the resolver
// and code generator rely on to type-check and lay out every expression.
//
// Types are modeled as tagged-variant dispatch (one small struct per kind,
// all implementing the Type interface) rather than a hand-rolled vtable,
// since the set of kinds is closed and known at compile time.
package types

// Kind identifies a primitive's width and signedness/float-ness.
type Kind uint8

const ( //nolint:revive
	I8 Kind = iota
	I16
	I32
	I64
	I128
	U8
	U16
	U32
	U64
	U128
	F64
	Bool
	Char

	// UnresolvedInt and UnresolvedFloat are the sentinel widths carried by a
	// numeric literal until it is pinned to a concrete width on first use (see
	// Pin).
	UnresolvedInt
	UnresolvedFloat
)

var kindNames = [...]string{
	I8: "i8", I16: "i16", I32: "i32", I64: "i64", I128: "i128",
	U8: "u8", U16: "u16", U32: "u32", U64: "u64", U128: "u128",
	F64: "f64", Bool: "bool", Char: "char",
	UnresolvedInt: "{unresolved int}", UnresolvedFloat: "{unresolved float}",
}

func (k Kind) String() string { return kindNames[k] }

var kindSizes = [...]int{
	I8: 1, I16: 2, I32: 4, I64: 8, I128: 16,
	U8: 1, U16: 2, U32: 4, U64: 8, U128: 16,
	F64: 8, Bool: 1, Char: 4,
}

func (k Kind) isFloat() bool { return k == F64 || k == UnresolvedFloat }

func (k Kind) isUnresolved() bool { return k == UnresolvedInt || k == UnresolvedFloat }

// NumClass classifies how an arithmetic/comparison opcode should interpret
// a value's bytes at runtime: CASM itself only carries the byte width
// (SizeOf), never a type tag, so the generator folds signedness/float-ness
// into this small class and the executor switches on it alongside width.
type NumClass uint8

const (
	ClassUnsigned NumClass = iota
	ClassSigned
	ClassFloat
)

// ClassOf reports t's NumClass; any non-primitive (handles, structs, bytes
// compared for raw equality) defaults to ClassUnsigned, matching plain
// byte-for-byte comparison.
func ClassOf(t Type) NumClass {
	p, ok := t.(Primitive)
	if !ok {
		return ClassUnsigned
	}
	switch {
	case p.Kind.isFloat():
		return ClassFloat
	case p.Kind <= I128:
		return ClassSigned
	default:
		return ClassUnsigned
	}
}
