package casm

import "github.com/ciphrpool/ciphel-sub003/internal/ids"

// OffsetKind identifies which of the stack's addressing modes an Offset
// names (3 "Stack": SB/FP/FZ/ST/FE).
type OffsetKind uint8

const (
	SB OffsetKind = iota // absolute
	FP                   // relative to the current frame base
	FZ                   // relative to frame zero (the locals cursor at scope entry)
	ST                   // relative to the current stack top
	FE                   // dereference-and-add: (stack_idx, heap_idx)
)

// Offset is a typed stack/heap address as the generator and executor pass
// it around prior to Locate resolving it to an absolute integer.
type Offset struct {
	Kind    OffsetKind
	Rel     int // meaningful for SB/FP/FZ/ST
	HeapIdx int // meaningful for FE only, added after one heap dereference
}

// Label is a generator-assigned jump target; ids are 128-bit so two
// independently generated functions never collide.
type Label = ids.ID

// Instr is one CASM instruction: an opcode plus whichever operand fields
// that opcode's family uses. Unused fields are simply left zero; this
// favors one flat struct (matching the executor's single switch dispatch)
// over a per-opcode operand type hierarchy.
type Instr struct {
	Op Opcode

	// generic integer operands (size, n, param_size, return_size, reg index...)
	A, B int

	Offset Offset
	Label  Label
	Label2 Label // second label, used by BRANCH_*

	// Bytes holds literal payload for SERIALIZE and jump/switch tables.
	Bytes []byte

	// Table maps a case value (enum tag ordinal, or a hashed literal) to a
	// target label, used by BRANCH_SWITCH/BRANCH_TABLE.
	Table map[int64]Label
}

// Funcode is one compiled function: its body, the size of its parameter
// block and locals layout bookkeeping. It records no try/catch state; the
// executor keeps that on the running thread's stack.
type Funcode struct {
	Name       string
	Label      Label
	ParamSize  int
	ReturnSize int
	NumLocals  int
	NumCells   int
	NumFree    int

	Body []Instr

	// labelIndex maps a label id to an instruction index within Body; filled
	// in by Program.Finalize.
	labelIndex map[Label]int
}

// Program is the full CASM module emitted for one resolved Chunk: every
// function plus the top-level initialization code, and the reverse label
// table used for disassembly.
type Program struct {
	Funcs    []*Funcode
	ByLabel  map[Label]*Funcode
	TopLevel *Funcode

	// labelNames supports pretty-printing: generated labels are otherwise
	// opaque 128-bit ids.
	labelNames map[Label]string
}

func NewProgram() *Program {
	return &Program{
		ByLabel:    make(map[Label]*Funcode),
		labelNames: make(map[Label]string),
	}
}

// AddFunc registers fn under its label so Call instructions can resolve it.
func (p *Program) AddFunc(fn *Funcode) {
	p.Funcs = append(p.Funcs, fn)
	p.ByLabel[fn.Label] = fn
}

// NameLabel records a human-readable name for id, used only by Dasm.
func (p *Program) NameLabel(id Label, name string) { p.labelNames[id] = name }

// Finalize builds each function's label→index table. It returns an
// UnresolvedLabel-flavoured error (via the caller wrapping diag) for any
// label referenced by a jump but never defined within its own function body
// — the generator calls this once code generation for a function completes.
func (fn *Funcode) Finalize() map[Label]bool {
	fn.labelIndex = make(map[Label]int, len(fn.Body))
	referenced := make(map[Label]bool)
	for i, ins := range fn.Body {
		if ins.Op == labelMarker {
			fn.labelIndex[ins.Label] = i
		}
		if !ins.Label.IsZero() {
			referenced[ins.Label] = true
		}
		if !ins.Label2.IsZero() {
			referenced[ins.Label2] = true
		}
		for _, target := range ins.Table {
			referenced[target] = true
		}
	}
	missing := make(map[Label]bool)
	for l := range referenced {
		if _, ok := fn.labelIndex[l]; !ok {
			missing[l] = true
		}
	}
	return missing
}

// IndexOf returns the instruction index a label resolves to within fn.
func (fn *Funcode) IndexOf(l Label) (int, bool) {
	i, ok := fn.labelIndex[l]
	return i, ok
}

// labelMarker is a pseudo-opcode used only inside Funcode.Body to mark the
// instruction index a Label resolves to; the executor never dispatches on
// it directly (Finalize strips the bookkeeping into labelIndex, but the
// marker instructions stay in Body as zero-cost NOPs so indices remain
// stable across Finalize calls).
const labelMarker = Opcode(255)

// EmitLabel appends a label-marker instruction at the current end of fn's
// body, associating l with that position.
func (fn *Funcode) EmitLabel(l Label) {
	fn.Body = append(fn.Body, Instr{Op: labelMarker, Label: l})
}

// Emit appends ins to fn's body and returns its index.
func (fn *Funcode) Emit(ins Instr) int {
	fn.Body = append(fn.Body, ins)
	return len(fn.Body) - 1
}
