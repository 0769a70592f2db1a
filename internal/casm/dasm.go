package casm

import (
	"fmt"
	"strings"
)

// Dasm renders p as human-readable text, in the spirit of the teacher's
// assembler/disassembler pair — used only for the TRACE=1 debugging sink
// (spec §6 push_casm*), never round-tripped back into a Program, since the
// concrete grammar that would otherwise need an Asm-side parser is out of
// scope here.
func Dasm(p *Program) string {
	var b strings.Builder
	fmt.Fprintf(&b, "program:\n")
	for _, fn := range p.Funcs {
		dasmFunc(&b, p, fn)
	}
	if p.TopLevel != nil {
		dasmFunc(&b, p, p.TopLevel)
	}
	return b.String()
}

func dasmFunc(b *strings.Builder, p *Program, fn *Funcode) {
	fmt.Fprintf(b, "function: %s <params=%d> <return=%d> <locals=%d>\n", fn.Name, fn.ParamSize, fn.ReturnSize, fn.NumLocals)
	fmt.Fprintf(b, "code:\n")
	for i, ins := range fn.Body {
		if ins.Op == labelMarker {
			fmt.Fprintf(b, "%s:\n", labelText(p, ins.Label))
			continue
		}
		fmt.Fprintf(b, "\t%4d  %s", i, ins.Op)
		dasmOperands(b, p, ins)
		b.WriteByte('\n')
	}
}

func dasmOperands(b *strings.Builder, p *Program, ins Instr) {
	switch ins.Op {
	case ALLOC_STACK, ALLOC_HEAP, ALLOC_REALLOC, SERIALIZE, MEM_DUP, MEM_TAKE, MEM_CLONE,
		REG_SET, REG_GET, REG_ADD, REG_SUB, VEC_NEW, MAP_NEW, STR_NEW, CHAN_NEW, INTRINSIC_SIZEOF:
		fmt.Fprintf(b, " %d", ins.A)
	case LOCATE:
		fmt.Fprintf(b, " %s", offsetText(ins.Offset))
	case ACCESS_STATIC, ACCESS_RUNTIME:
		fmt.Fprintf(b, " %s %d", offsetText(ins.Offset), ins.A)
	case CALL:
		fmt.Fprintf(b, " %s params=%d", labelText(p, ins.Label), ins.A)
	case IF, GOTO, START_TRY, LABEL_OFFSET:
		fmt.Fprintf(b, " %s", labelText(p, ins.Label))
	case BRANCH_SWITCH, BRANCH_TABLE:
		fmt.Fprintf(b, " else=%s cases=%d", labelText(p, ins.Label2), len(ins.Table))
	case FRAME_SET:
		fmt.Fprintf(b, " return=%d cursor=%d", ins.A, ins.B)
	case FRAME_RETURN, RET:
		fmt.Fprintf(b, " return=%d", ins.A)
	case CHAN_SEND, CHAN_RECEIVE:
		fmt.Fprintf(b, " item_size=%d timeout=%d", ins.A, ins.B)
	}
}

func offsetText(o Offset) string {
	switch o.Kind {
	case SB:
		return fmt.Sprintf("SB[%d]", o.Rel)
	case FP:
		return fmt.Sprintf("FP[%d]", o.Rel)
	case FZ:
		return fmt.Sprintf("FZ[%d]", o.Rel)
	case ST:
		return fmt.Sprintf("ST[%d]", o.Rel)
	case FE:
		return fmt.Sprintf("FE[%d,%d]", o.Rel, o.HeapIdx)
	default:
		return "?"
	}
}

func labelText(p *Program, l Label) string {
	if l.IsZero() {
		return "-"
	}
	if p != nil {
		if name, ok := p.labelNames[l]; ok {
			return name
		}
	}
	return fmt.Sprintf("L%x%x", l.Hi, l.Lo)
}
