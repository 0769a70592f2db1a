package machine

// vecObj is the runtime representation of a Vec: a flat byte buffer holding
// Len/ItemSize-sized elements back to back. It is kept as a heap side object
// (see Heap.NewObjectHandle) rather than laid out inline in the arena, since
// growth needs a realloc-and-copy whose size the caller doesn't track the
// way a raw ALLOC_HEAP block does.
type vecObj struct {
	itemSize int
	data     []byte
}

func newVecObj(itemSize, capHint int) *vecObj {
	return &vecObj{itemSize: itemSize, data: make([]byte, 0, itemSize*capHint)}
}

func (v *vecObj) len() int { return len(v.data) / v.itemSize }

func (v *vecObj) push(item []byte) { v.data = append(v.data, item...) }

func (v *vecObj) pop() []byte {
	n := v.len()
	if n == 0 {
		return nil
	}
	start := (n - 1) * v.itemSize
	item := append([]byte(nil), v.data[start:]...)
	v.data = v.data[:start]
	return item
}

func (v *vecObj) get(i int) []byte {
	start := i * v.itemSize
	return v.data[start : start+v.itemSize]
}

func (v *vecObj) set(i int, item []byte) {
	start := i * v.itemSize
	copy(v.data[start:start+v.itemSize], item)
}

func (v *vecObj) delete(i int) {
	start := i * v.itemSize
	v.data = append(v.data[:start], v.data[start+v.itemSize:]...)
}

func (v *vecObj) clear() { v.data = v.data[:0] }

func (v *vecObj) extend(other *vecObj) { v.data = append(v.data, other.data...) }

// NewVec allocates an empty vector whose elements are itemSize bytes, with
// room reserved for capHint of them, and returns its handle.
func (h *Heap) NewVec(itemSize, capHint int) int64 {
	return h.NewObjectHandle(newVecObj(itemSize, capHint))
}

func (h *Heap) vec(addr int64) *vecObj { return h.Object(addr).(*vecObj) }

func (h *Heap) VecLen(addr int64) int { return h.vec(addr).len() }

func (h *Heap) VecPush(addr int64, item []byte) { h.vec(addr).push(item) }

func (h *Heap) VecPop(addr int64) []byte { return h.vec(addr).pop() }

func (h *Heap) VecGet(addr int64, i int) []byte {
	v := h.vec(addr)
	return append([]byte(nil), v.get(i)...)
}

func (h *Heap) VecSet(addr int64, i int, item []byte) { h.vec(addr).set(i, item) }

func (h *Heap) VecDelete(addr int64, i int) { h.vec(addr).delete(i) }

func (h *Heap) VecClear(addr int64) { h.vec(addr).clear() }

func (h *Heap) VecExtend(addr, otherAddr int64) { h.vec(addr).extend(h.vec(otherAddr)) }
