package machine

// chanObj is the runtime representation of a Channel: a bounded ring buffer
// of fixed-size elements plus a closed flag. It knows nothing about which
// threads are waiting on it, and there is no wait queue: when CHAN_SEND
// finds the buffer full or CHAN_RECEIVE finds it empty, the executor rewinds
// the thread's pc and yields, and the scheduler runs the same instruction
// again on a later tick. Keeping the channel itself thread-agnostic means the executor
// can run every VM thread on the same goroutine, matching the spec's
// cooperative (not preemptive OS-thread) scheduling model.
type chanObj struct {
	elemSize int
	cap      int
	buf      [][]byte
	closed   bool
}

func newChanObj(elemSize, capacity int) *chanObj {
	if capacity <= 0 {
		capacity = 1
	}
	return &chanObj{elemSize: elemSize, cap: capacity}
}

func (h *Heap) NewChannel(elemSize, capacity int) int64 {
	return h.NewObjectHandle(newChanObj(elemSize, capacity))
}

func (h *Heap) chanv(addr int64) *chanObj { return h.Object(addr).(*chanObj) }

// TrySend appends val to the channel's buffer if there is room. It reports
// false (without error) when the buffer is full, meaning the caller should
// suspend the sending thread and retry later; closed reports the
// ChannelClosed condition, which is always an error regardless of buffer
// state.
func (h *Heap) TrySend(addr int64, val []byte) (ok bool, closed bool) {
	c := h.chanv(addr)
	if c.closed {
		return false, true
	}
	if len(c.buf) >= c.cap {
		return false, false
	}
	c.buf = append(c.buf, append([]byte(nil), val...))
	return true, false
}

// TryReceive pops the oldest buffered value. ok is false with closed==false
// when the buffer is empty but the channel is still open (caller should
// suspend and retry); ok is false with closed==true once the channel is
// closed and drained, matching the spec's "receive on a closed, empty
// channel" terminal condition.
func (h *Heap) TryReceive(addr int64) (val []byte, ok bool, closed bool) {
	c := h.chanv(addr)
	if len(c.buf) == 0 {
		return nil, false, c.closed
	}
	val = c.buf[0]
	c.buf = c.buf[1:]
	return val, true, false
}

func (h *Heap) CloseChannel(addr int64) { h.chanv(addr).closed = true }

func (h *Heap) ChannelClosed(addr int64) bool { return h.chanv(addr).closed }
