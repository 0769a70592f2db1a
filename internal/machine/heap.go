// Package machine implements the CASM executor: a byte-addressable stack
// machine that runs the Program the code generator emits. It follows the
// dispatch-by-opcode-switch shape of the component design's own VM
// (lang/machine's run loop) but operates on raw bytes rather than a tagged
// Value tree, since CASM itself is an untyped bytecode: every instruction
// only knows sizes, never kinds.
package machine

import (
	"fmt"
)

// blockHeader is the bookkeeping every heap allocation carries. It is kept
// in Heap.headers, keyed by the block's address, not in the arena: no
// header bytes precede a block, and a handle value pushed onto the operand
// stack (SizeOf == types.HandleSize) is the address of the block's first
// byte.
type blockHeader struct {
	size int64 // payload size in bytes, as currently in use (not capacity)
	free bool
}

// Heap is a simple first-fit allocator over a growable byte arena. It is
// deliberately unsophisticated (no compaction, no generational collection):
// the language has no garbage collector, only explicit alloc/free plus
// scope-exit stack reclamation, so a freelist is all ALLOC_FREE needs.
type Heap struct {
	arena []byte
	// headers maps an allocation's header address to its bookkeeping; kept
	// out-of-band instead of packed into the arena bytes so blockHeader can
	// carry Go-native fields (size as int64, free as bool) without a manual
	// binary encoding for metadata no CASM instruction ever reads directly.
	headers map[int64]*blockHeader
	// order keeps header addresses in allocation order so Alloc's first-fit
	// scan is deterministic (useful for tests and reproducible traces).
	order []int64

	// objects backs handles whose payload is a Go-side object rather than flat
	// bytes (Map and Channel need real hashing/synchronization, not a byte
	// layout) — see NewObjectHandle.
	objects []any
}

func NewHeap() *Heap {
	return &Heap{headers: make(map[int64]*blockHeader)}
}

// Alloc reserves size bytes and returns the address of the block's first
// byte, which is also its key in headers. Free blocks are reused first-fit;
// otherwise the arena grows.
func (h *Heap) Alloc(size int) int64 {
	for _, addr := range h.order {
		hdr := h.headers[addr]
		if hdr.free && hdr.size >= int64(size) {
			hdr.free = false
			hdr.size = int64(size)
			return addr
		}
	}
	addr := int64(len(h.arena))
	h.arena = append(h.arena, make([]byte, size)...)
	h.headers[addr] = &blockHeader{size: int64(size)}
	h.order = append(h.order, addr)
	return addr
}

// Realloc grows or shrinks the block at addr, copying its live bytes into a
// fresh allocation when it cannot be extended in place.
func (h *Heap) Realloc(addr int64, newSize int) int64 {
	hdr, ok := h.headers[addr]
	if !ok {
		return h.Alloc(newSize)
	}
	if newSize <= int(hdr.size) {
		hdr.size = int64(newSize)
		return addr
	}
	newAddr := h.Alloc(newSize)
	copy(h.arena[newAddr:newAddr+hdr.size], h.arena[addr:addr+hdr.size])
	h.Free(addr)
	return newAddr
}

// Free marks addr's block reusable. Freeing an address Alloc never returned
// is a heap-corruption condition the caller should surface as a fatal
// runtime error.
func (h *Heap) Free(addr int64) error {
	hdr, ok := h.headers[addr]
	if !ok {
		return fmt.Errorf("free of unallocated address %d", addr)
	}
	hdr.free = true
	return nil
}

// Read returns a view of size bytes starting at addr. The returned slice
// aliases the arena; callers that need to retain it past the next Alloc
// (which may re-grow the arena) must copy.
func (h *Heap) Read(addr int64, size int) []byte {
	return h.arena[addr : addr+int64(size)]
}

// Write copies val into the arena at addr, growing the arena if addr+len(val)
// is beyond its current length (used for handles allocated as part of a
// larger structure, e.g. a Vec's inline elements).
func (h *Heap) Write(addr int64, val []byte) {
	end := addr + int64(len(val))
	if end > int64(len(h.arena)) {
		grown := make([]byte, end)
		copy(grown, h.arena)
		h.arena = grown
	}
	copy(h.arena[addr:end], val)
}

// NewObjectHandle allocates an 8-byte cell whose payload is the index of obj
// in the heap's side object table, and returns the cell's address. Map and
// Channel handles are built this way: the handle looks like any other
// 8-byte heap handle to LOCATE/ACCESS_RUNTIME, but Object dereferences it to
// the real Go value instead of reading flat bytes.
func (h *Heap) NewObjectHandle(obj any) int64 {
	idx := int64(len(h.objects))
	h.objects = append(h.objects, obj)
	addr := h.Alloc(8)
	h.Write(addr, encodeU64(uint64(idx)))
	return addr
}

// Object dereferences an object handle previously created by
// NewObjectHandle.
func (h *Heap) Object(addr int64) any {
	idx := decodeU64(h.Read(addr, 8))
	return h.objects[idx]
}

func encodeU64(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

func decodeU64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func encodeI64(v int64) []byte { return encodeU64(uint64(v)) }
func decodeI64(b []byte) int64 { return int64(decodeU64(b)) }
