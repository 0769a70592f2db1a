package machine

import "github.com/dolthub/swiss"

// mapObj backs a Map handle with a swiss-table hash map, the same
// open-addressing structure the component design's own map type is built
// on. Keys and values travel as their already-serialized byte form (what
// MAP_SET/MAP_GET push and pop); using the byte string as the swiss map's
// comparable key avoids needing a second, CASM-specific hash function.
type mapObj struct {
	valSize int
	m       *swiss.Map[string, []byte]
}

func newMapObj(valSize, capHint int) *mapObj {
	return &mapObj{valSize: valSize, m: swiss.NewMap[string, []byte](uint32(capHint))}
}

func (h *Heap) NewMap(valSize, capHint int) int64 {
	return h.NewObjectHandle(newMapObj(valSize, capHint))
}

func (h *Heap) mapv(addr int64) *mapObj { return h.Object(addr).(*mapObj) }

func (h *Heap) MapGet(addr int64, key []byte) ([]byte, bool) {
	v, ok := h.mapv(addr).m.Get(string(key))
	return v, ok
}

func (h *Heap) MapSet(addr int64, key, val []byte) {
	h.mapv(addr).m.Put(string(key), append([]byte(nil), val...))
}

func (h *Heap) MapDelete(addr int64, key []byte) {
	h.mapv(addr).m.Delete(string(key))
}

func (h *Heap) MapContains(addr int64, key []byte) bool {
	_, ok := h.mapv(addr).m.Get(string(key))
	return ok
}

func (h *Heap) MapLen(addr int64) int { return int(h.mapv(addr).m.Count()) }
