package runtime

import (
	"github.com/ciphrpool/ciphel-sub003/internal/casm"
	"github.com/ciphrpool/ciphel-sub003/internal/machine"
)

// Engine is the host's side of the contract: thread id allocation, the
// monotonic clock, stdin readiness, the disassembly sink, and the terminal
// side effects CASM's Cursor/Std opcodes relay outward. internal/engine
// provides a default implementation; the Scheduler only depends on this
// interface, never on that concrete package, to keep the dependency
// pointing one way.
type Engine interface {
	Spawn() uint64
	Close(tid uint64) error
	Now() int64
	StdinReady() bool
	PushCasm(s string)
	PushCasmLabel(s string)
	PushCasmLib(s string)
	Print(s string)
	CursorPrint(s string)
	CursorMove(dx, dy int64)
	CursorClear()
}

// Scheduler owns the Slab and drives every thread's VM one slice at a
// time. It implements machine.Hooks once per bound thread (see
// threadHooks) rather than once globally, since Sleep/Wait/Join need to
// know which thread is asking.
type Scheduler struct {
	Prog   *casm.Program
	Heap   *machine.Heap
	Engine Engine
	Policy Policy

	slab    *Slab
	signals []Signal
}

// NewScheduler wires a Scheduler over a shared Program/Heap; Policy
// defaults to ToCompletion if nil.
func NewScheduler(prog *casm.Program, heap *machine.Heap, engine Engine, policy Policy) *Scheduler {
	if policy == nil {
		policy = &ToCompletion{}
	}
	return &Scheduler{Prog: prog, Heap: heap, Engine: engine, Policy: policy, slab: NewSlab()}
}

// Spawn starts a new thread running entry with args as its parameter
// block, minting its id through the Engine (the spec's "externally chosen"
// ThreadId), and returns that id.
func (sch *Scheduler) Spawn(entry *casm.Funcode, args []byte) ExternThreadIdentifier {
	tid := ExternThreadIdentifier(sch.Engine.Spawn())
	vm := machine.NewVM(sch.Prog, sch.Heap, &threadHooks{sched: sch, self: tid})
	vm.Start(entry, args)
	sch.slab.add(newThread(tid, vm))
	return tid
}

// Slab exposes the underlying thread table, e.g. for tests inspecting
// final Thread.Status/Result after a run.
func (sch *Scheduler) Slab() *Slab { return sch.slab }

// Close cancels tid immediately: it is marked Closed, any joiners are woken,
// and the Engine is told. No channel is closed here, so threads blocked on
// a channel the closed thread used are not woken with ChannelClosed.
func (sch *Scheduler) Close(tid ExternThreadIdentifier) error {
	t, ok := sch.slab.Get(tid)
	if !ok {
		return nil
	}
	t.Status = Closed
	sch.wakeJoiners(tid)
	return sch.Engine.Close(uint64(tid))
}

func (sch *Scheduler) wakeJoiners(closed ExternThreadIdentifier) {
	for _, t := range sch.slab.All() {
		if t.Status == WaitingOn && t.joinTarget == closed {
			t.Status = Runnable
		}
	}
}

// Tick advances the runtime by one slice: it first promotes any
// Sleeping/WaitingSTDIN thread whose condition has now been met back to
// Runnable, then lets Policy pick the next thread to run and commits
// whatever status its VM.Run call leaves it in.
func (sch *Scheduler) Tick() error {
	sch.promoteReady()

	t := sch.Policy.Next(sch.slab)
	if t == nil {
		return nil
	}

	budget := sch.Policy.Budget(t)
	status := t.VM.Run(budget)

	switch status {
	case machine.Done:
		t.Status = Closed
		t.Result = t.VM.Result
		sch.wakeJoiners(t.ID)
	case machine.Fatal:
		t.Status = Closed
		t.Err = t.VM.Err
		sch.wakeJoiners(t.ID)
	case machine.Yielded:
		// threadHooks already recorded whatever blocking transition caused
		// this (Sleeping/WaitingOn/WaitingSTDIN/etc); a plain weight-budget
		// exhaustion or an unresolved channel op leaves Status untouched
		// (still Runnable), so the next Tick just retries it.
	}
	return nil
}

// Run drives Tick until every known thread is Closed (ToCompletion's own
// stopping condition) or no thread is Runnable and none is waiting on a
// time-based condition that will ever fire — callers using TimeSliced or
// Cooperative policies for an interactive program should drive Tick
// themselves instead, since those are meant to share the caller's own
// event loop.
func (sch *Scheduler) Run() {
	for !sch.slab.AllClosed() {
		before := sch.anyProgressPossible()
		sch.Tick()
		if !before {
			return
		}
	}
}

func (sch *Scheduler) anyProgressPossible() bool {
	for _, t := range sch.slab.All() {
		switch t.Status {
		case Runnable, Sleeping, WaitingOn, WaitingChannel:
			return true
		case WaitingSTDIN:
			if sch.Engine.StdinReady() {
				return true
			}
		}
	}
	return false
}

func (sch *Scheduler) promoteReady() {
	now := sch.Engine.Now()
	for _, t := range sch.slab.All() {
		switch t.Status {
		case Sleeping:
			if now >= t.sleepUntil {
				t.Status = Runnable
			}
		case WaitingSTDIN:
			if sch.Engine.StdinReady() {
				t.Status = Runnable
			}
		}
	}
}

// threadHooks binds a Scheduler to one thread's identity so Sleep/Wait's
// "which thread is asking" is implicit rather than needing the VM to track
// its own id (the VM deliberately has none — see internal/machine DESIGN
// entry on Label.Lo-only runtime identity).
type threadHooks struct {
	sched *Scheduler
	self  ExternThreadIdentifier
}

func (h *threadHooks) self_() *Thread {
	t, _ := h.sched.slab.Get(h.self)
	return t
}

func (h *threadHooks) Spawn(fnLo uint64, args []byte) uint64 {
	// Label.Lo alone identifies a function within one Program, same as
	// VM.byLo in internal/machine — every label here shares one generation
	// word, so ByLabel's full 128-bit key can't be reconstructed from the
	// 8-byte value THREAD_SPAWN carries on the stack.
	var fn *casm.Funcode
	for _, f := range h.sched.Prog.Funcs {
		if f.Label.Lo == fnLo {
			fn = f
			break
		}
	}
	if fn == nil {
		return 0
	}
	h.sched.signals = appendSignal(h.sched.signals, Signal{Kind: SignalSpawn, Thread: h.self})
	return uint64(h.sched.Spawn(fn, args))
}

func (h *threadHooks) Join(thread uint64) (bool, []byte) {
	target, ok := h.sched.slab.Get(ExternThreadIdentifier(thread))
	if !ok {
		return true, nil
	}
	if target.Status == Closed {
		return true, target.Result
	}
	self := h.self_()
	self.Status = WaitingOn
	self.joinTarget = ExternThreadIdentifier(thread)
	h.sched.signals = appendSignal(h.sched.signals, Signal{Kind: SignalJoin, Thread: h.self, Data: thread})
	return false, nil
}

func (h *threadHooks) Sleep(_ uint64, millis int64) bool {
	self := h.self_()
	if self.Status == Sleeping || self.sleepUntil != 0 {
		if h.sched.Engine.Now() >= self.sleepUntil {
			self.Status = Runnable
			self.sleepUntil = 0
			return true
		}
		return false
	}
	if millis <= 0 {
		return true
	}
	self.Status = Sleeping
	self.sleepUntil = h.sched.Engine.Now() + millis
	h.sched.signals = appendSignal(h.sched.signals, Signal{Kind: SignalSleep, Thread: h.self, Data: uint64(millis)})
	return false
}

func (h *threadHooks) Wait(signal uint64) bool {
	self := h.self_()
	if self.Status == Runnable {
		// a prior Wake already promoted us; this retry of THREAD_WAIT can
		// proceed.
		return true
	}
	self.Status = WaitingSignal
	self.waitSignal = signal
	h.sched.signals = appendSignal(h.sched.signals, Signal{Kind: SignalWait, Thread: h.self, Data: signal})
	return false
}

func (h *threadHooks) Wake(signal uint64) {
	for _, t := range h.sched.slab.All() {
		if t.Status == WaitingSignal && t.waitSignal == signal {
			t.Status = Runnable
		}
	}
	h.sched.signals = appendSignal(h.sched.signals, Signal{Kind: SignalWake, Thread: h.self, Data: signal})
}

func (h *threadHooks) Now() int64 { return h.sched.Engine.Now() }

func (h *threadHooks) Print(s string) { h.sched.Engine.Print(s) }

func (h *threadHooks) CursorPrint(s string) { h.sched.Engine.CursorPrint(s) }

func (h *threadHooks) CursorMove(dx, dy int64) { h.sched.Engine.CursorMove(dx, dy) }

func (h *threadHooks) CursorClear() { h.sched.Engine.CursorClear() }
