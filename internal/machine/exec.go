package machine

import (
	"github.com/ciphrpool/ciphel-sub003/internal/casm"
	"github.com/ciphrpool/ciphel-sub003/internal/diag"
)

// Hooks lets the executor reach outside its own instruction set without
// importing the scheduler or the host engine directly (internal/runtime and
// internal/engine both depend on internal/machine, never the reverse).
// Thread/channel intrinsics that can block hand control back to whichever
// Hooks implementation is driving the VM, which decides whether to retry
// the instruction on the next tick or let it proceed.
type Hooks interface {
	// Spawn starts a new thread running the function whose Label.Lo is
	// fnLo (see VM.byLo) with args as its parameter block, and returns the
	// new thread's id.
	Spawn(fnLo uint64, args []byte) uint64
	Join(thread uint64) (done bool, result []byte)
	Sleep(thread uint64, millis int64) (done bool)
	Wait(signal uint64) (done bool)
	Wake(signal uint64)
	// Now reports the engine's monotonic clock in milliseconds; only
	// CHAN_RECEIVE's optional timeout form needs wall-clock access, since
	// CASM itself has none.
	Now() int64
	Print(s string)
	CursorPrint(s string)
	CursorMove(dx, dy int64)
	CursorClear()
}

// mapKeySize is the fixed width MAP_GET/MAP_SET/MAP_DELETE/MAP_CONTAINS pop
// a key as. CASM's map opcodes carry only one size operand (the value's),
// so keys travel as a flat 8-byte cell the way every other handle and every
// scalar primitive up to I64/U64/F64 already does; see the Map entry in
// DESIGN.md for the I128/U128-key case this simplification doesn't cover.
const mapKeySize = 8

// Status reports why Run returned control to its caller.
type Status uint8

const (
	Running Status = iota
	Done           // the thread's entry function returned
	Yielded        // weight budget spent, or a blocking op isn't ready yet
	Fatal          // an uncatchable runtime error unwound the whole thread
)

// VM executes one thread's instructions against its own Stack. Two threads
// never share a VM (or a Stack) but do share the Heap and the Program,
// matching the spec's single-address-space, many-threads model.
type VM struct {
	Prog  *casm.Program
	Heap  *Heap
	Hooks Hooks

	st *Stack
	fn *casm.Funcode
	pc int

	// byLo resolves a Funcode from just the low 64 bits of its Label. Every
	// label in one Program shares the same generation word (one ids.Source
	// per compiled chunk), so the low word alone is enough to disambiguate
	// at runtime — which lets closure/thread-spawn values travel as a plain
	// 8-byte cell instead of the full 128-bit Label, matching HandleSize.
	byLo map[uint64]*casm.Funcode

	Err         diag.RuntimeError
	Result      []byte
	ThrownValue []byte // the raw payload of the most recent THROW, for diagnostics
}

func NewVM(prog *casm.Program, heap *Heap, hooks Hooks) *VM {
	byLo := make(map[uint64]*casm.Funcode, len(prog.Funcs))
	for _, fn := range prog.Funcs {
		byLo[fn.Label.Lo] = fn
	}
	return &VM{Prog: prog, Heap: heap, Hooks: hooks, st: NewStack(), byLo: byLo}
}

// Start pushes args as the entry function's parameter block and positions
// the VM at its first instruction, as if a CALL from an implicit outer
// caller had just landed — the sentinel callFrame it pushes has a nil
// fn, so Run recognizes popping it as the thread finishing rather
// than an ordinary inter-function return.
func (vm *VM) Start(entry *casm.Funcode, args []byte) {
	vm.fn = entry
	vm.pc = 0
	vm.st.fp = vm.st.Top()
	vm.st.Push(args)
	vm.st.callStack = append(vm.st.callStack, callFrame{
		fn: nil, savedFP: 0, savedScopeDepth: 0, returnSize: entry.ReturnSize,
	})
	vm.st.scopeBases = append(vm.st.scopeBases, vm.st.fp)
}

// Run executes instructions until the entry function returns, a blocking
// intrinsic can't proceed, the weight budget is spent, or a fatal error
// unwinds the thread. budget <= 0 means run to completion or block,
// ignoring instruction weight (used by the ToCompletion scheduling policy).
func (vm *VM) Run(budget int) Status {
	spent := 0
	for {
		if budget > 0 && spent >= budget {
			return Yielded
		}
		if vm.pc >= len(vm.fn.Body) {
			return vm.fatal(diag.ErrCodeSegmentation("pc past end of function body"))
		}
		ins := vm.fn.Body[vm.pc]
		spent += int(casm.InstrWeight(ins.Op))
		switch st, ok := vm.step(ins); {
		case !ok, st == Fatal:
			return st
		}
	}
}

func (vm *VM) fatal(err diag.RuntimeError) Status {
	vm.Err = err
	return Fatal
}

// throwOrFatal raises err: if it's catchable and a try frame is active,
// unwind to it; otherwise stop the thread.
func (vm *VM) throwOrFatal(err diag.RuntimeError) Status {
	if err.Catchable() && len(vm.st.catchStack) > 0 {
		vm.unwindToCatch()
		return Running
	}
	return vm.fatal(err)
}

func (vm *VM) unwindToCatch() {
	n := len(vm.st.catchStack) - 1
	cf := vm.st.catchStack[n]
	vm.st.catchStack = vm.st.catchStack[:n]
	vm.st.callStack = vm.st.callStack[:cf.callDepth]
	vm.st.scopeBases = vm.st.scopeBases[:cf.scopeDepth]
	vm.st.buf = vm.st.buf[:cf.stackTop]
	vm.fn = cf.fn
	idx, _ := cf.fn.IndexOf(cf.elseLabel)
	vm.pc = idx
}

// step executes one instruction, advancing vm.pc. It returns (status,
// false) when the VM should stop looping (Run returns status to its
// caller); (anything, true) means keep going.
func (vm *VM) step(ins casm.Instr) (Status, bool) {
	pc := vm.pc
	vm.pc++
	s := vm.st
	h := vm.Heap

	switch ins.Op {
	case casm.NOP:
	case 255: // labelMarker: a no-op placeholder instruction

	case casm.DUP:
		s.Push(s.Peek(ins.A))
	case casm.POP:
		s.Pop(ins.A)
	case casm.EXCH:
		a := s.Pop(ins.A)
		b := s.Pop(ins.B)
		s.Push(a)
		s.Push(b)

	case casm.LT, casm.LE, casm.GT, casm.GE, casm.EQL, casm.NEQ:
		return vm.compare(ins), true

	case casm.PLUS, casm.MINUS, casm.STAR, casm.SLASH, casm.PERCENT,
		casm.CIRCUMFLEX, casm.AMPERSAND, casm.PIPE, casm.LTLT, casm.GTGT:
		st, ok := vm.arith(ins)
		if !ok {
			return st, false
		}

	case casm.UPLUS, casm.UMINUS, casm.UTILDE, casm.NOT:
		vm.unary(ins)
	case casm.LEN:
		vm.lenOp(ins)

	case casm.ALLOC_STACK:
		s.Push(make([]byte, ins.A))
	case casm.ALLOC_HEAP:
		addr := h.Alloc(ins.A)
		s.Push(encodeI64(addr))
	case casm.ALLOC_REALLOC:
		addr := decodeI64(s.Pop(8))
		newAddr := h.Realloc(addr, ins.A)
		s.Push(encodeI64(newAddr))
	case casm.ALLOC_FREE:
		addr := decodeI64(s.Pop(8))
		if err := h.Free(addr); err != nil {
			return vm.fatal(diag.ErrHeapCorruption(err.Error())), false
		}

	case casm.SERIALIZE:
		s.Push(ins.Bytes)

	case casm.LOCATE:
		s.Push(encodeI64(s.Locate(ins.Offset)))

	case casm.ACCESS_STATIC:
		s.Push(ins.Bytes)
	case casm.ACCESS_RUNTIME:
		addr := decodeI64(s.Pop(8))
		s.Push(s.Read(addr, ins.A))
	case casm.ACCESS_UTF8:
		addr := decodeI64(s.Pop(8))
		r, _ := h.AccessUTF8(addr, 0)
		s.Push(encodeI64(int64(r)))

	case casm.MEM_DUP:
		v := s.Peek(ins.B)
		for i := 0; i < ins.A; i++ {
			s.Push(v)
		}
	case casm.MEM_TAKE:
		val := s.Pop(ins.A)
		addr := decodeI64(s.Pop(8))
		s.Write(addr, val)
	case casm.MEM_CLONE:
		addr := decodeI64(s.Pop(8))
		data := h.Read(addr, ins.A)
		newAddr := h.Alloc(ins.A)
		h.Write(newAddr, data)
		s.Push(encodeI64(newAddr))
	case casm.REG_SET:
		s.regs[ins.A] = s.Pop(ins.B)
	case casm.REG_GET:
		s.Push(s.regs[ins.A])
	case casm.REG_ADD:
		cur := bytesToInt(s.regs[ins.A])
		s.regs[ins.A] = intToBytes(cur+bytesToInt(s.Pop(ins.B)), len(s.regs[ins.A]))
	case casm.REG_SUB:
		cur := bytesToInt(s.regs[ins.A])
		s.regs[ins.A] = intToBytes(cur-bytesToInt(s.Pop(ins.B)), len(s.regs[ins.A]))
	case casm.REGS_DUMP:
		for _, r := range s.regs {
			s.Push(r)
		}
	case casm.REGS_RECOVER:
		for i := 3; i >= 0; i-- {
			s.regs[i] = s.Pop(len(s.regs[i]))
		}
	case casm.LABEL_OFFSET:
		s.Push(labelIDToBytes(ins.Label))

	case casm.IF:
		cond := isTruthy(s.Pop(1))
		if !cond {
			vm.jump(ins.Label)
		}
	case casm.GOTO:
		vm.jump(ins.Label)
	case casm.CALL:
		vm.doCall(ins)
	case casm.BRANCH_SWITCH, casm.BRANCH_TABLE:
		tag := decodeI64(s.Pop(8))
		if target, ok := ins.Table[tag]; ok {
			vm.jump(target)
		} else {
			vm.jump(ins.Label2)
		}
	case casm.START_TRY:
		s.catchStack = append(s.catchStack, catchFrame{
			fn: vm.fn, elseLabel: ins.Label,
			callDepth: len(s.callStack), scopeDepth: len(s.scopeBases), stackTop: s.Top(),
		})
	case casm.END_TRY:
		s.catchStack = s.catchStack[:len(s.catchStack)-1]

	case casm.SCOPE_ENTER:
		s.EnterScope()
	case casm.FRAME_SET:
		// reserved for a future explicit register snapshot; no current
		// generator path emits it.
	case casm.FRAME_RETURN:
		s.ExitScope(ins.A)
	case casm.RET:
		if done := vm.doReturn(ins.A); done {
			return Done, false
		}

	case casm.VEC_NEW:
		s.Push(encodeI64(h.NewVec(ins.B, ins.A)))
	case casm.VEC_PUSH:
		item := s.Pop(ins.A)
		addr := decodeI64(s.Peek(8))
		h.VecPush(addr, item)
	case casm.VEC_POP:
		addr := decodeI64(s.Peek(8))
		s.Push(h.VecPop(addr))
	case casm.VEC_DELETE:
		idx := int(decodeI64(s.Pop(8)))
		addr := decodeI64(s.Peek(8))
		h.VecDelete(addr, idx)
	case casm.VEC_CLEAR:
		addr := decodeI64(s.Peek(8))
		h.VecClear(addr)
	case casm.VEC_EXTEND:
		other := decodeI64(s.Pop(8))
		addr := decodeI64(s.Peek(8))
		h.VecExtend(addr, other)
	case casm.VEC_LEN:
		addr := decodeI64(s.Pop(8))
		s.Push(encodeI64(int64(h.VecLen(addr))))
	case casm.VEC_GET:
		idx := int(decodeI64(s.Pop(8)))
		addr := decodeI64(s.Pop(8))
		if idx < 0 || idx >= h.VecLen(addr) {
			return vm.throwOrFatal(diag.ErrIndexOutOfBound(idx, h.VecLen(addr))), true
		}
		s.Push(h.VecGet(addr, idx))
	case casm.VEC_SET:
		val := s.Pop(ins.A)
		idx := int(decodeI64(s.Pop(8)))
		addr := decodeI64(s.Pop(8))
		h.VecSet(addr, idx, val)

	case casm.MAP_NEW:
		s.Push(encodeI64(h.NewMap(0, ins.A)))
	case casm.MAP_GET:
		// keys travel as a fixed mapKeySize cell regardless of the map's
		// declared key type; see the Map entry in DESIGN.md.
		key := s.Pop(mapKeySize)
		addr := decodeI64(s.Pop(8))
		val, ok := h.MapGet(addr, key)
		if !ok {
			return vm.throwOrFatal(diag.ErrDeserialization("map key not present")), true
		}
		s.Push(val)
	case casm.MAP_SET:
		val := s.Pop(ins.A)
		key := s.Pop(mapKeySize)
		addr := decodeI64(s.Pop(8))
		h.MapSet(addr, key, val)
		s.Push(encodeI64(addr))
	case casm.MAP_DELETE:
		key := s.Pop(mapKeySize)
		addr := decodeI64(s.Pop(8))
		h.MapDelete(addr, key)
	case casm.MAP_LEN:
		addr := decodeI64(s.Pop(8))
		s.Push(encodeI64(int64(h.MapLen(addr))))
	case casm.MAP_CONTAINS:
		key := s.Pop(mapKeySize)
		addr := decodeI64(s.Pop(8))
		s.Push(boolBytes(h.MapContains(addr, key)))

	case casm.STR_NEW:
		data := s.Pop(ins.A)
		s.Push(encodeI64(h.NewString(data)))
	case casm.STR_CONCAT:
		b := decodeI64(s.Pop(8))
		a := decodeI64(s.Pop(8))
		s.Push(encodeI64(h.StrConcat(a, b)))
	case casm.STR_LEN:
		addr := decodeI64(s.Pop(8))
		s.Push(encodeI64(int64(h.StrLen(addr))))
	case casm.STR_EQ:
		b := decodeI64(s.Pop(8))
		a := decodeI64(s.Pop(8))
		s.Push(boolBytes(h.StrEq(a, b)))
	case casm.STR_SLICE:
		hi := int(decodeI64(s.Pop(8)))
		lo := int(decodeI64(s.Pop(8)))
		addr := decodeI64(s.Pop(8))
		s.Push(encodeI64(h.StrSlice(addr, lo, hi)))

	case casm.CHAN_NEW:
		s.Push(encodeI64(h.NewChannel(ins.A, ins.B)))
	case casm.CHAN_SEND:
		val := s.Pop(ins.A)
		addr := decodeI64(s.Pop(8))
		ok, closed := h.TrySend(addr, val)
		if closed {
			return vm.throwOrFatal(diag.ErrChannelClosed()), true
		}
		if !ok {
			vm.pc = pc // retry this same instruction once unblocked
			s.Push(encodeI64(addr))
			s.Push(val)
			return Yielded, false
		}
	case casm.CHAN_RECEIVE:
		addr := decodeI64(s.Pop(8))
		val, ok, closed := h.TryReceive(addr)
		if !ok && closed {
			s.Push(make([]byte, ins.A))
			s.Push(boolBytes(false))
			return Running, true
		}
		if !ok {
			if ins.B == 1 {
				deadline := decodeI64(s.regs[3])
				if deadline == 0 {
					deadline = vm.Hooks.Now() + decodeI64(s.regs[2])
					s.regs[3] = encodeI64(deadline)
				}
				if vm.Hooks.Now() >= deadline {
					return vm.throwOrFatal(diag.ErrTimedOut()), true
				}
			}
			vm.pc = pc
			s.Push(encodeI64(addr))
			return Yielded, false
		}
		s.Push(val)
		s.Push(boolBytes(true))
	case casm.CHAN_TRY_RECEIVE:
		addr := decodeI64(s.Pop(8))
		val, ok, _ := h.TryReceive(addr)
		if !ok {
			val = make([]byte, ins.A)
		}
		s.Push(val)
		s.Push(boolBytes(ok))
	case casm.CHAN_CLOSE:
		addr := decodeI64(s.Pop(8))
		h.CloseChannel(addr)

	case casm.THREAD_SPAWN:
		argBytes := s.Pop(ins.A - 8)
		fnLo := uint64(decodeI64(s.Pop(8)))
		tid := vm.Hooks.Spawn(fnLo, argBytes)
		s.Push(encodeI64(int64(tid)))
	case casm.THREAD_CLOSE:
		// cancellation is driven by the scheduler directly via the thread
		// id; nothing for the executor itself to do here.
	case casm.THREAD_JOIN:
		tid := uint64(decodeI64(s.Pop(8)))
		done, result := vm.Hooks.Join(tid)
		if !done {
			vm.pc = pc
			s.Push(encodeI64(int64(tid)))
			return Yielded, false
		}
		s.Push(result)
	case casm.THREAD_SLEEP:
		millis := decodeI64(s.Pop(8))
		tid := uint64(0)
		if !vm.Hooks.Sleep(tid, millis) {
			vm.pc = pc
			s.Push(encodeI64(millis))
			return Yielded, false
		}
	case casm.THREAD_WAIT:
		sig := uint64(decodeI64(s.Pop(8)))
		if !vm.Hooks.Wait(sig) {
			vm.pc = pc
			s.Push(encodeI64(int64(sig)))
			return Yielded, false
		}
	case casm.THREAD_WAKE:
		sig := uint64(decodeI64(s.Pop(8)))
		vm.Hooks.Wake(sig)

	case casm.CURSOR_PRINT:
		addr := decodeI64(s.Pop(8))
		vm.Hooks.CursorPrint(string(h.StrBytes(addr)))
	case casm.CURSOR_MOVE:
		dy := decodeI64(s.Pop(8))
		dx := decodeI64(s.Pop(8))
		vm.Hooks.CursorMove(dx, dy)
	case casm.CURSOR_CLEAR:
		vm.Hooks.CursorClear()

	case casm.INTRINSIC_ALLOC:
		size := decodeI64(s.Pop(8))
		s.Push(encodeI64(h.Alloc(int(size))))
	case casm.INTRINSIC_FREE:
		addr := decodeI64(s.Pop(8))
		if err := h.Free(addr); err != nil {
			return vm.fatal(diag.ErrHeapCorruption(err.Error())), false
		}
	case casm.INTRINSIC_SIZEOF:
		s.Push(encodeI64(int64(ins.A)))

	case casm.STD_PRINT:
		addr := decodeI64(s.Pop(8))
		vm.Hooks.Print(string(h.StrBytes(addr)))
	case casm.STD_MATH:
		// the generator lowers every math platform call to STD_MATH, and
		// STD_MATH computes nothing: its arguments stay on the stack and no
		// result is pushed.

	case casm.THROW:
		vm.ThrownValue = s.Pop(ins.A)
		return vm.throwOrFatal(diag.ErrDeserialization("uncaught throw")), true

	default:
		return vm.fatal(diag.ErrCodeSegmentation("unimplemented opcode")), false
	}
	return Running, true
}

func (vm *VM) jump(l casm.Label) {
	if idx, ok := vm.fn.IndexOf(l); ok {
		vm.pc = idx
	}
}

func labelIDToBytes(l casm.Label) []byte { return encodeU64(l.Lo) }

func (vm *VM) funcByLo(v int64) (*casm.Funcode, bool) {
	fn, ok := vm.byLo[uint64(v)]
	return fn, ok
}

func (vm *VM) doCall(ins casm.Instr) {
	s := vm.st
	var callee *casm.Funcode
	var ok bool
	if ins.Label.IsZero() {
		// indirect call: the {fn_label, env_ptr} pair sits on top of the
		// evaluated arguments.
		envPtr := decodeI64(s.Pop(8))
		callee, ok = vm.funcByLo(decodeI64(s.Pop(8)))
		_ = envPtr // the callee reaches its captures through its own locals
	} else {
		callee, ok = vm.Prog.ByLabel[ins.Label]
	}
	if !ok {
		vm.fatal(diag.ErrCodeSegmentation("call to undefined label"))
		return
	}
	newFP := s.Top() - int64(ins.A)
	s.callStack = append(s.callStack, callFrame{
		fn: vm.fn, pc: vm.pc, savedFP: s.fp, savedScopeDepth: len(s.scopeBases), returnSize: callee.ReturnSize,
	})
	s.scopeBases = append(s.scopeBases, newFP)
	s.fp = newFP
	vm.fn = callee
	vm.pc = 0
}

// doReturn pops the current call frame, relocating the top returnSize bytes
// (ins.A, the statically known size of this RET's value) to FP. It reports
// true when the popped frame was the thread's initial sentinel frame (see
// Start), meaning the whole thread is finished.
func (vm *VM) doReturn(returnSize int) bool {
	s := vm.st
	tail := s.Peek(returnSize)
	n := len(s.callStack) - 1
	cf := s.callStack[n]
	s.callStack = s.callStack[:n]
	s.scopeBases = s.scopeBases[:cf.savedScopeDepth]
	s.buf = s.buf[:cf.savedFP]
	s.Push(tail)
	s.fp = cf.savedFP

	if cf.fn == nil {
		vm.Result = tail
		return true
	}
	vm.fn = cf.fn
	vm.pc = cf.pc
	return false
}
