package machine

import "unicode/utf8"

// strObj is the runtime representation of a growable String: a flat UTF-8
// byte buffer. StrSlice (the fixed-capacity inline variant) never reaches
// this type — it is SizeOf(t.Size) bytes living directly on the stack, read
// and written with plain ACCESS_RUNTIME/MEM_TAKE like any other inline value.
type strObj struct{ data []byte }

func (h *Heap) NewString(data []byte) int64 {
	cp := append([]byte(nil), data...)
	return h.NewObjectHandle(&strObj{data: cp})
}

func (h *Heap) str(addr int64) *strObj { return h.Object(addr).(*strObj) }

func (h *Heap) StrLen(addr int64) int { return len(h.str(addr).data) }

func (h *Heap) StrBytes(addr int64) []byte { return h.str(addr).data }

func (h *Heap) StrConcat(a, b int64) int64 {
	sa, sb := h.str(a), h.str(b)
	out := make([]byte, 0, len(sa.data)+len(sb.data))
	out = append(out, sa.data...)
	out = append(out, sb.data...)
	return h.NewObjectHandle(&strObj{data: out})
}

func (h *Heap) StrEq(a, b int64) bool {
	sa, sb := h.str(a), h.str(b)
	if len(sa.data) != len(sb.data) {
		return false
	}
	for i := range sa.data {
		if sa.data[i] != sb.data[i] {
			return false
		}
	}
	return true
}

// StrSlice returns the substring [lo:hi), measured in bytes, as a new
// string handle.
func (h *Heap) StrSlice(addr int64, lo, hi int) int64 {
	s := h.str(addr)
	return h.NewObjectHandle(&strObj{data: append([]byte(nil), s.data[lo:hi]...)})
}

// AccessUTF8 decodes the rune starting at byte offset off and returns it
// along with its width in bytes, so the executor can advance a cursor by
// that width rather than by a fixed 4.
func (h *Heap) AccessUTF8(addr int64, off int) (rune, int) {
	r, size := utf8.DecodeRune(h.str(addr).data[off:])
	return r, size
}
