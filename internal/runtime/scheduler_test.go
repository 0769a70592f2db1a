package runtime_test

import (
	"testing"

	"github.com/ciphrpool/ciphel-sub003/internal/casm"
	"github.com/ciphrpool/ciphel-sub003/internal/ids"
	"github.com/ciphrpool/ciphel-sub003/internal/machine"
	"github.com/ciphrpool/ciphel-sub003/internal/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine is a controllable-clock runtime.Engine: Now() advances only
// when the test calls Advance, never off the wall clock, so
// sleep/timeout-driven scheduler behavior is deterministic.
type fakeEngine struct {
	now      int64
	nextID   uint64
	stdin    bool
	prints   []string
	closedID []uint64
}

func (e *fakeEngine) Spawn() uint64 {
	e.nextID++
	return e.nextID
}
func (e *fakeEngine) Close(tid uint64) error {
	e.closedID = append(e.closedID, tid)
	return nil
}
func (e *fakeEngine) Now() int64              { return e.now }
func (e *fakeEngine) StdinReady() bool        { return e.stdin }
func (e *fakeEngine) PushCasm(s string)       {}
func (e *fakeEngine) PushCasmLabel(s string)  {}
func (e *fakeEngine) PushCasmLib(s string)    {}
func (e *fakeEngine) Print(s string)          { e.prints = append(e.prints, s) }
func (e *fakeEngine) CursorPrint(s string)    {}
func (e *fakeEngine) CursorMove(dx, dy int64) {}
func (e *fakeEngine) CursorClear()            {}

func (e *fakeEngine) Advance(millis int64) { e.now += millis }

func u64le(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

func entry(returnSize int, ins ...casm.Instr) *casm.Funcode {
	fn := &casm.Funcode{Name: "$top", ReturnSize: returnSize, Body: ins}
	fn.Finalize()
	return fn
}

// TestSchedulerSpawnAndComplete covers seed scenario 1 at the scheduler
// level: a spawned thread computing and returning a value reaches Closed
// with its Result set, and the scheduler itself reports AllClosed.
func TestSchedulerSpawnAndComplete(t *testing.T) {
	fn := entry(8,
		casm.Instr{Op: casm.SERIALIZE, Bytes: u64le(120)},
		casm.Instr{Op: casm.SERIALIZE, Bytes: u64le(300)},
		casm.Instr{Op: casm.PLUS, A: 8, B: 0},
		casm.Instr{Op: casm.RET, A: 8},
	)
	prog := casm.NewProgram()
	prog.AddFunc(fn)
	prog.TopLevel = fn

	eng := &fakeEngine{}
	sch := runtime.NewScheduler(prog, machine.NewHeap(), eng, nil)
	tid := sch.Spawn(fn, nil)

	sch.Run()

	require.True(t, sch.Slab().AllClosed())
	th, ok := sch.Slab().Get(tid)
	require.True(t, ok)
	assert.Equal(t, runtime.Closed, th.Status)
	assert.Nil(t, th.Err)

	var got uint64
	for i := 0; i < 8; i++ {
		got |= uint64(th.Result[i]) << (8 * i)
	}
	assert.Equal(t, uint64(420), got)
}

// TestSchedulerSleepPromotesOnlyAfterDeadline covers Status transitions for
// THREAD_SLEEP: the thread stays Sleeping across ticks until the fake
// clock reaches its deadline, only then resuming and completing.
func TestSchedulerSleepPromotesOnlyAfterDeadline(t *testing.T) {
	fn := entry(0,
		casm.Instr{Op: casm.SERIALIZE, Bytes: u64le(100)},
		casm.Instr{Op: casm.THREAD_SLEEP},
		casm.Instr{Op: casm.RET, A: 0},
	)
	prog := casm.NewProgram()
	prog.AddFunc(fn)
	prog.TopLevel = fn

	eng := &fakeEngine{}
	sch := runtime.NewScheduler(prog, machine.NewHeap(), eng, nil)
	tid := sch.Spawn(fn, nil)

	sch.Tick()
	th, _ := sch.Slab().Get(tid)
	require.Equal(t, runtime.Sleeping, th.Status)

	sch.Tick()
	assert.Equal(t, runtime.Sleeping, th.Status, "deadline not reached yet")

	eng.Advance(100)
	sch.Run()
	assert.Equal(t, runtime.Closed, th.Status)
}

// TestSchedulerJoinWaitsForTarget covers THREAD_JOIN/THREAD_SPAWN end to
// end: a parent thread spawning a child and joining it only completes
// once the child reaches Closed, and observes the child's Result.
func TestSchedulerJoinWaitsForTarget(t *testing.T) {
	child := entry(8,
		casm.Instr{Op: casm.SERIALIZE, Bytes: u64le(7)},
		casm.Instr{Op: casm.RET, A: 8},
	)
	child.Label = ids.ID{Hi: 1, Lo: 1}
	parent := entry(8,
		// THREAD_SPAWN pops its arg block first, then the callee's fnLo
		// below it, so the fnLo bytes must be pushed before the (zero)
		// argument bytes.
		casm.Instr{Op: casm.SERIALIZE, Bytes: append(u64le(child.Label.Lo), u64le(0)...)},
		casm.Instr{Op: casm.THREAD_SPAWN, A: 16},
		casm.Instr{Op: casm.THREAD_JOIN},
		casm.Instr{Op: casm.RET, A: 8},
	)
	parent.Label = ids.ID{Hi: 1, Lo: 2}
	prog := casm.NewProgram()
	prog.AddFunc(child)
	prog.AddFunc(parent)
	prog.TopLevel = parent

	eng := &fakeEngine{}
	sch := runtime.NewScheduler(prog, machine.NewHeap(), eng, nil)
	ptid := sch.Spawn(parent, nil)

	sch.Run()

	require.True(t, sch.Slab().AllClosed())
	th, _ := sch.Slab().Get(ptid)
	assert.Equal(t, runtime.Closed, th.Status)
	assert.Nil(t, th.Err)
}

// TestSchedulerChannelHandoffAcrossThreads covers seed scenario 7: two
// threads sharing one Heap-resident channel, one blocked on CHAN_SEND
// until the other's CHAN_RECEIVE drains it, driven purely by repeated
// Scheduler ticks (ToCompletion retrying the blocked op each slice).
func TestSchedulerChannelHandoffAcrossThreads(t *testing.T) {
	heap := machine.NewHeap()
	chanAddr := heap.NewChannel(8, 1)

	sender := entry(0,
		casm.Instr{Op: casm.SERIALIZE, Bytes: u64le(uint64(chanAddr))},
		casm.Instr{Op: casm.SERIALIZE, Bytes: u64le(99)},
		casm.Instr{Op: casm.CHAN_SEND, A: 8},
		casm.Instr{Op: casm.RET, A: 0},
	)
	receiver := entry(9,
		casm.Instr{Op: casm.SERIALIZE, Bytes: u64le(uint64(chanAddr))},
		casm.Instr{Op: casm.CHAN_RECEIVE, A: 8, B: 0},
		casm.Instr{Op: casm.RET, A: 9},
	)
	prog := casm.NewProgram()
	prog.AddFunc(sender)
	prog.AddFunc(receiver)
	prog.TopLevel = sender

	eng := &fakeEngine{}
	sch := runtime.NewScheduler(prog, heap, eng, nil)
	sch.Spawn(receiver, nil)
	sch.Spawn(sender, nil)

	sch.Run()

	require.True(t, sch.Slab().AllClosed())
	for _, th := range sch.Slab().All() {
		assert.Nil(t, th.Err)
	}
}
