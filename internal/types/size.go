package types

import "fmt"

// HandleSize is the size in bytes of every heap-resident handle (vector,
// map, string, channel) pushed onto the stack: a handle is the 8-byte heap
// address of the block; the block's size is kept by the heap, not in it.
const HandleSize = 8

// SizeOf returns the size in bytes of t, per the size_of rules: tuples and
// structs sum their fields; unions add one pointer-sized tag plus the
// largest arm; enums are pointer-sized; vectors, maps, strings and channels
// are handles; slices and strslices carry their declared length inline.
func SizeOf(t Type) int {
	switch t := t.(type) {
	case Primitive:
		if t.Kind.isUnresolved() {
			panic(fmt.Sprintf("size_of: unresolved numeric literal type %s", t))
		}
		return kindSizes[t.Kind]
	case StringVal:
		return HandleSize
	case StrSlice:
		return t.Size
	case Slice:
		return t.Size * SizeOf(t.Item)
	case Vec:
		return HandleSize
	case MapType:
		return HandleSize
	case TupleType:
		n := 0
		for _, f := range t.Fields {
			n += SizeOf(f)
		}
		return n
	case Address:
		return HandleSize
	case Channel:
		return HandleSize
	case StaticFn:
		return HandleSize
	case Closure:
		// {fn_label, env_ptr}
		return 2 * HandleSize
	case RangeType:
		return 2 * SizeOf(t.Numeric)
	case UnitType:
		return 0
	case AnyType:
		// boxed representation: 8-byte type tag + 8-byte payload handle/value.
		return 16
	case ErrorType:
		return HandleSize
	case Struct:
		n := 0
		for _, f := range t.Fields {
			n += SizeOf(f.Type)
		}
		return n
	case Union:
		max := 0
		for _, a := range t.Arms {
			if sz := SizeOf(a.Payload); sz > max {
				max = sz
			}
		}
		return HandleSize + max
	case Enum:
		return HandleSize
	default:
		panic(fmt.Sprintf("size_of: unhandled type %T", t))
	}
}
