package types

import "fmt"

// Type is the sum type of every static type the language can express. It is
// a closed set: adding a new kind means adding a new struct and a new arm in
// SizeOf, CompatibleWith and Merge, not implementing a new interface method
// per type (no vtable dispatch, see package doc).
type Type interface {
	String() string
	isType()
}

// Primitive is a signed/unsigned integer, float, bool or char type, or the
// sentinel "unresolved" width a numeric literal starts life with.
type Primitive struct{ Kind Kind }

func (p Primitive) String() string { return p.Kind.String() }
func (Primitive) isType()          {}

// StringVal is the heap-backed, growable string type.
type StringVal struct{}

func (StringVal) String() string { return "string" }
func (StringVal) isType()        {}

// StrSlice is a fixed-capacity inline string buffer of Size bytes.
type StrSlice struct{ Size int }

func (s StrSlice) String() string { return fmt.Sprintf("strslice[%d]", s.Size) }
func (StrSlice) isType()          {}

// Slice is a fixed-length, inline sequence of Size elements of type Item.
type Slice struct {
	Size int
	Item Type
}

func (s Slice) String() string { return fmt.Sprintf("[%d]%s", s.Size, s.Item) }
func (Slice) isType()          {}

// Vec is a heap-backed, growable sequence.
type Vec struct{ Item Type }

func (v Vec) String() string { return fmt.Sprintf("vec<%s>", v.Item) }
func (Vec) isType()          {}

// MapType is a heap-backed hash map.
type MapType struct{ Key, Value Type }

func (m MapType) String() string { return fmt.Sprintf("map<%s,%s>", m.Key, m.Value) }
func (MapType) isType()          {}

// TupleType is a fixed, ordered, heterogeneous product of fields.
type TupleType struct{ Fields []Type }

func (t TupleType) String() string {
	s := "("
	for i, f := range t.Fields {
		if i > 0 {
			s += ", "
		}
		s += f.String()
	}
	return s + ")"
}
func (TupleType) isType() {}

// Address is a pointer to a value of type Elem, either on the stack or the
// heap (the stack/heap distinction is a runtime, not a static, property).
type Address struct{ Elem Type }

func (a Address) String() string { return "&" + a.Elem.String() }
func (Address) isType()          {}

// Channel is a heap-backed, bounded channel of Elem-typed items.
type Channel struct{ Elem Type }

func (c Channel) String() string { return fmt.Sprintf("chan<%s>", c.Elem) }
func (Channel) isType()          {}

// StaticFn is the type of a named, non-closing-over function.
type StaticFn struct {
	Params []Type
	Ret    Type
}

func (f StaticFn) String() string { return signature("fn", f.Params, f.Ret) }
func (StaticFn) isType()          {}

// Closure is the type of a function value that captures variables from an
// enclosing scope. Captured holds the types of the captured environment, in
// capture order, matching the runtime {fn_label, env_ptr} representation.
type Closure struct {
	Params   []Type
	Ret      Type
	Captured []Type
}

func (f Closure) String() string { return signature("closure", f.Params, f.Ret) }
func (Closure) isType()          {}

func signature(kw string, params []Type, ret Type) string {
	s := kw + "("
	for i, p := range params {
		if i > 0 {
			s += ", "
		}
		s += p.String()
	}
	s += ")"
	if ret != nil {
		s += " -> " + ret.String()
	}
	return s
}

// RangeType is the type of a `lo..hi` range expression over a numeric type.
type RangeType struct{ Numeric Type }

func (r RangeType) String() string { return "range<" + r.Numeric.String() + ">" }
func (RangeType) isType()          {}

// UnitType is the type of an expression that yields no value (e.g. a bare
// statement context).
type UnitType struct{}

func (UnitType) String() string { return "()" }
func (UnitType) isType()        {}

// AnyType is compatible with every other type (see CompatibleWith); it
// exists so platform intrinsics and the `try`/merge machinery have a join
// type to fall back on.
type AnyType struct{}

func (AnyType) String() string { return "any" }
func (AnyType) isType()        {}

// ErrorType is the type of a caught or thrown error value. It is compatible
// only with itself, never with Any, per spec.
type ErrorType struct{}

func (ErrorType) String() string { return "error" }
func (ErrorType) isType()        {}

// Field is one ordered (name, type) member of a Struct.
type Field struct {
	Name string
	Type Type
}

// Struct is a user-defined product type with named, ordered fields.
type Struct struct {
	ID     string
	Fields []Field
}

func (s Struct) String() string { return s.ID }
func (Struct) isType()          {}

// FieldByName returns the field with the given name, or false if absent.
func (s Struct) FieldByName(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Arm is one variant of a Union: a name plus the Struct describing its
// payload fields (a nullary variant has a Struct with no fields).
type Arm struct {
	Variant string
	Payload Struct
}

// Union is a user-defined tagged sum type: one pointer-sized tag plus the
// payload of whichever arm is active.
type Union struct {
	ID   string
	Arms []Arm
}

func (u Union) String() string { return u.ID }
func (Union) isType()          {}

// ArmByName returns the arm with the given variant name, or false if absent.
func (u Union) ArmByName(name string) (Arm, bool) {
	for _, a := range u.Arms {
		if a.Variant == name {
			return a, true
		}
	}
	return Arm{}, false
}

// Enum is a user-defined type whose values are one of a fixed, ordered set
// of nullary variant identifiers.
type Enum struct {
	ID       string
	Variants []string
}

func (e Enum) String() string { return e.ID }
func (Enum) isType()          {}

// IndexOf returns the ordinal of the given variant name, or -1 if absent.
func (e Enum) IndexOf(variant string) int {
	for i, v := range e.Variants {
		if v == variant {
			return i
		}
	}
	return -1
}
