package machine_test

import (
	"testing"

	"github.com/ciphrpool/ciphel-sub003/internal/casm"
	"github.com/ciphrpool/ciphel-sub003/internal/machine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nopHooks satisfies machine.Hooks for tests that never touch a thread
// intrinsic; every method either panics (if a test does reach it
// unexpectedly) or returns an inert zero value.
type nopHooks struct{ now int64 }

func (h *nopHooks) Spawn(fnLo uint64, args []byte) uint64  { panic("Spawn not expected") }
func (h *nopHooks) Join(thread uint64) (bool, []byte)      { panic("Join not expected") }
func (h *nopHooks) Sleep(thread uint64, millis int64) bool { panic("Sleep not expected") }
func (h *nopHooks) Wait(signal uint64) bool                { panic("Wait not expected") }
func (h *nopHooks) Wake(signal uint64)                     {}
func (h *nopHooks) Now() int64                             { return h.now }
func (h *nopHooks) Print(s string)                         {}
func (h *nopHooks) CursorPrint(s string)                   {}
func (h *nopHooks) CursorMove(dx, dy int64)                {}
func (h *nopHooks) CursorClear()                           {}

func u64le(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

func decodeU64le(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func boolByte(b []byte) bool { return b[0] != 0 }

// newEntry builds a zero-param Funcode whose body is ins, ready to run via
// VM.Start/VM.Run — matching seed scenario 1's "let x: u64 = 420; return
// x;", expressed directly as bytecode since no parser exists to produce it
// from source text.
func newEntry(returnSize int, ins ...casm.Instr) *casm.Funcode {
	fn := &casm.Funcode{Name: "$top", ReturnSize: returnSize, Body: ins}
	fn.Finalize()
	return fn
}

// TestRunArithReturn covers seed scenario 1: a u64 literal computed via
// PLUS and returned, verifying the stack-machine's arithmetic dispatch and
// doReturn's frame-popping arithmetic.
func TestRunArithReturn(t *testing.T) {
	fn := newEntry(8,
		casm.Instr{Op: casm.SERIALIZE, Bytes: u64le(120)},
		casm.Instr{Op: casm.SERIALIZE, Bytes: u64le(300)},
		casm.Instr{Op: casm.PLUS, A: 8, B: 0}, // classUnsigned
		casm.Instr{Op: casm.RET, A: 8},
	)
	prog := casm.NewProgram()
	prog.TopLevel = fn

	vm := machine.NewVM(prog, machine.NewHeap(), &nopHooks{})
	vm.Start(fn, nil)
	status := vm.Run(0)

	require.Equal(t, machine.Done, status)
	require.Nil(t, vm.Err)
	assert.Equal(t, uint64(420), decodeU64le(vm.Result))
}

// TestRunDivByZeroIsCatchableFatal covers the DivByZero edge case: with no
// active try frame, a catchable runtime error still aborts the thread as
// Fatal and records itself on vm.Err.
func TestRunDivByZeroIsCatchableFatal(t *testing.T) {
	fn := newEntry(8,
		casm.Instr{Op: casm.SERIALIZE, Bytes: u64le(10)},
		casm.Instr{Op: casm.SERIALIZE, Bytes: u64le(0)},
		casm.Instr{Op: casm.SLASH, A: 8, B: 0},
		casm.Instr{Op: casm.RET, A: 8},
	)
	prog := casm.NewProgram()
	prog.TopLevel = fn

	vm := machine.NewVM(prog, machine.NewHeap(), &nopHooks{})
	vm.Start(fn, nil)
	status := vm.Run(0)

	require.Equal(t, machine.Fatal, status)
	require.NotNil(t, vm.Err)
	assert.Equal(t, "DivByZero", vm.Err.RuntimeKind())
	assert.True(t, vm.Err.Catchable())
}

// TestRunYieldsOnBudget covers the scheduler-facing weight-budget contract:
// a positive budget returns Yielded before the entry function completes,
// without corrupting the stack (resuming with budget<=0 still finishes
// correctly).
func TestRunYieldsOnBudget(t *testing.T) {
	fn := newEntry(8,
		casm.Instr{Op: casm.SERIALIZE, Bytes: u64le(1)},
		casm.Instr{Op: casm.SERIALIZE, Bytes: u64le(2)},
		casm.Instr{Op: casm.PLUS, A: 8, B: 0},
		casm.Instr{Op: casm.RET, A: 8},
	)
	prog := casm.NewProgram()
	prog.TopLevel = fn

	vm := machine.NewVM(prog, machine.NewHeap(), &nopHooks{})
	vm.Start(fn, nil)

	status := vm.Run(1)
	require.Equal(t, machine.Yielded, status)

	status = vm.Run(0)
	require.Equal(t, machine.Done, status)
	assert.Equal(t, uint64(3), decodeU64le(vm.Result))
}

// TestVecPushPop covers seed scenario 6: constructing a vec, pushing two
// u64 elements, and popping the most recently pushed one back off, using
// VEC_NEW/VEC_PUSH/VEC_POP directly against a fresh Heap.
func TestVecPushPop(t *testing.T) {
	fn := newEntry(8,
		casm.Instr{Op: casm.VEC_NEW, A: 0, B: 8}, // capHint=0, itemSize=8
		casm.Instr{Op: casm.SERIALIZE, Bytes: u64le(7)},
		casm.Instr{Op: casm.VEC_PUSH, A: 8},
		casm.Instr{Op: casm.SERIALIZE, Bytes: u64le(9)},
		casm.Instr{Op: casm.VEC_PUSH, A: 8},
		casm.Instr{Op: casm.VEC_POP},
		// stack: [vecAddr(8), popped(8)] -> discard the handle, keep the value
		casm.Instr{Op: casm.EXCH, A: 8, B: 8},
		casm.Instr{Op: casm.POP, A: 8},
		casm.Instr{Op: casm.RET, A: 8},
	)
	prog := casm.NewProgram()
	prog.TopLevel = fn

	heap := machine.NewHeap()
	vm := machine.NewVM(prog, heap, &nopHooks{})
	vm.Start(fn, nil)
	status := vm.Run(0)

	require.Equal(t, machine.Done, status)
	require.Nil(t, vm.Err)
	assert.Equal(t, uint64(9), decodeU64le(vm.Result))
}

// TestChanSendReceive covers seed scenario 7's happy path: sending a value
// on a buffered channel and receiving it back, FIFO, across two separate
// VMs sharing one Heap the way two cooperating threads would.
func TestChanSendReceive(t *testing.T) {
	heap := machine.NewHeap()
	chanAddr := heap.NewChannel(8, 4)

	sendFn := newEntry(0,
		casm.Instr{Op: casm.SERIALIZE, Bytes: u64le(uint64(chanAddr))},
		casm.Instr{Op: casm.SERIALIZE, Bytes: u64le(42)},
		casm.Instr{Op: casm.CHAN_SEND, A: 8},
		casm.Instr{Op: casm.RET, A: 0},
	)
	progSend := casm.NewProgram()
	progSend.TopLevel = sendFn

	vmSend := machine.NewVM(progSend, heap, &nopHooks{})
	vmSend.Start(sendFn, nil)
	status := vmSend.Run(0)
	require.Equal(t, machine.Done, status)
	require.Nil(t, vmSend.Err)

	recvFn := newEntry(9,
		casm.Instr{Op: casm.SERIALIZE, Bytes: u64le(uint64(chanAddr))},
		casm.Instr{Op: casm.CHAN_RECEIVE, A: 8, B: 0},
		casm.Instr{Op: casm.RET, A: 9},
	)
	progRecv := casm.NewProgram()
	progRecv.TopLevel = recvFn

	vmRecv := machine.NewVM(progRecv, heap, &nopHooks{})
	vmRecv.Start(recvFn, nil)
	status = vmRecv.Run(0)
	require.Equal(t, machine.Done, status)
	require.Nil(t, vmRecv.Err)

	got := vmRecv.Result
	require.Len(t, got, 9)
	assert.Equal(t, uint64(42), decodeU64le(got[:8]))
	assert.True(t, boolByte(got[8:]))
}

// TestChanReceiveTimeout covers seed scenario 7's negative path: a
// CHAN_RECEIVE with a timeout form raises the catchable TimedOut condition
// once the test's controllable clock passes the deadline, instead of
// retrying forever.
func TestChanReceiveTimeout(t *testing.T) {
	heap := machine.NewHeap()
	chanAddr := heap.NewChannel(8, 1) // left empty: nothing ever sent

	fn := newEntry(9,
		casm.Instr{Op: casm.SERIALIZE, Bytes: u64le(50)}, // timeout millis
		casm.Instr{Op: casm.REG_SET, A: 2, B: 8},
		casm.Instr{Op: casm.SERIALIZE, Bytes: u64le(uint64(chanAddr))},
		casm.Instr{Op: casm.CHAN_RECEIVE, A: 8, B: 1},
		casm.Instr{Op: casm.RET, A: 9},
	)
	prog := casm.NewProgram()
	prog.TopLevel = fn

	hooks := &nopHooks{now: 1000}
	vm := machine.NewVM(prog, heap, hooks)
	vm.Start(fn, nil)

	status := vm.Run(0)
	require.Equal(t, machine.Yielded, status, "channel is empty, not yet past the deadline")

	hooks.now += 51
	status = vm.Run(0)

	require.Equal(t, machine.Fatal, status)
	require.NotNil(t, vm.Err)
	assert.Equal(t, "TimedOut", vm.Err.RuntimeKind())
}
