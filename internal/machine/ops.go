package machine

import (
	"math/big"

	"github.com/ciphrpool/ciphel-sub003/internal/casm"
	"github.com/ciphrpool/ciphel-sub003/internal/diag"
)

// numClass mirrors types.NumClass without importing internal/types: the
// generator already folded a value's signedness/float-ness into Instr.B,
// so the executor only needs to switch on the small integer it wrote
// there, not the richer static type it came from.
const (
	classUnsigned = 0
	classSigned   = 1
	classFloat    = 2
)

// compare handles LT/LE/GT/GE/EQL/NEQ. Equality/inequality work uniformly
// over raw bytes regardless of class (two's-complement and IEEE-754 both
// compare equal-bytes-equal-value); ordered comparisons need the class to
// interpret the bytes' sign.
func (vm *VM) compare(ins casm.Instr) Status {
	s := vm.st
	b := s.Pop(ins.A)
	a := s.Pop(ins.A)
	var result bool
	switch ins.Op {
	case casm.EQL:
		result = bytesEqual(a, b)
	case casm.NEQ:
		result = !bytesEqual(a, b)
	default:
		result = vm.orderedCompare(ins.Op, a, b, ins.A, ins.B)
	}
	s.Push(boolBytes(result))
	return Running
}

func (vm *VM) orderedCompare(op casm.Opcode, a, b []byte, size, class int) bool {
	switch class {
	case classFloat:
		fa, fb := bytesToFloat(a), bytesToFloat(b)
		switch op {
		case casm.LT:
			return fa < fb
		case casm.LE:
			return fa <= fb
		case casm.GT:
			return fa > fb
		default:
			return fa >= fb
		}
	case classSigned:
		if size > 8 {
			return bigCompare(op, bytesToBig(a), bytesToBig(b))
		}
		ia, ib := bytesToInt(a), bytesToInt(b)
		switch op {
		case casm.LT:
			return ia < ib
		case casm.LE:
			return ia <= ib
		case casm.GT:
			return ia > ib
		default:
			return ia >= ib
		}
	default: // classUnsigned
		if size > 8 {
			return bigCompare(op, new(big.Int).SetBytes(reverse(a)), new(big.Int).SetBytes(reverse(b)))
		}
		ua, ub := decodeUnsigned(a), decodeUnsigned(b)
		switch op {
		case casm.LT:
			return ua < ub
		case casm.LE:
			return ua <= ub
		case casm.GT:
			return ua > ub
		default:
			return ua >= ub
		}
	}
}

func bigCompare(op casm.Opcode, a, b *big.Int) bool {
	c := a.Cmp(b)
	switch op {
	case casm.LT:
		return c < 0
	case casm.LE:
		return c <= 0
	case casm.GT:
		return c > 0
	default:
		return c >= 0
	}
}

func reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i, by := range b {
		out[len(b)-1-i] = by
	}
	return out
}

func decodeUnsigned(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// arith handles PLUS/MINUS/STAR/SLASH/PERCENT/CIRCUMFLEX/AMPERSAND/PIPE/
// LTLT/GTGT. Bitwise ops (xor/and/or/shl/shr) operate on the raw unsigned
// bit pattern regardless of class; the rest follow ins.B. Division/modulo
// by zero raises the catchable DivByZero condition rather than panicking.
func (vm *VM) arith(ins casm.Instr) (Status, bool) {
	s := vm.st
	b := s.Pop(ins.A)
	a := s.Pop(ins.A)

	switch ins.Op {
	case casm.CIRCUMFLEX, casm.AMPERSAND, casm.PIPE, casm.LTLT, casm.GTGT:
		s.Push(bitwise(ins.Op, a, b, ins.A))
		return Running, true
	}

	if ins.B == classFloat {
		fa, fb := bytesToFloat(a), bytesToFloat(b)
		var r float64
		switch ins.Op {
		case casm.PLUS:
			r = fa + fb
		case casm.MINUS:
			r = fa - fb
		case casm.STAR:
			r = fa * fb
		case casm.SLASH:
			if fb == 0 {
				return vm.throwOrFatal(diag.ErrDivByZero()), false
			}
			r = fa / fb
		case casm.PERCENT:
			if fb == 0 {
				return vm.throwOrFatal(diag.ErrDivByZero()), false
			}
			r = floatMod(fa, fb)
		}
		s.Push(floatToBytes(r))
		return Running, true
	}

	if ins.A > 8 {
		st, ok := vm.bigArith(ins, a, b)
		return st, ok
	}

	ia, ib := bytesToInt(a), bytesToInt(b)
	if ins.B == classUnsigned {
		ia, ib = int64(decodeUnsigned(a)), int64(decodeUnsigned(b))
	}
	var r int64
	switch ins.Op {
	case casm.PLUS:
		r = ia + ib
	case casm.MINUS:
		r = ia - ib
	case casm.STAR:
		r = ia * ib
	case casm.SLASH:
		if ib == 0 {
			return vm.throwOrFatal(diag.ErrDivByZero()), false
		}
		r = ia / ib
	case casm.PERCENT:
		if ib == 0 {
			return vm.throwOrFatal(diag.ErrDivByZero()), false
		}
		r = ia % ib
	}
	s.Push(intToBytes(r, ins.A))
	return Running, true
}

func floatMod(a, b float64) float64 {
	q := float64(int64(a / b))
	return a - q*b
}

func bitwise(op casm.Opcode, a, b []byte, size int) []byte {
	out := make([]byte, size)
	switch op {
	case casm.CIRCUMFLEX:
		for i := range out {
			out[i] = a[i] ^ b[i]
		}
	case casm.AMPERSAND:
		for i := range out {
			out[i] = a[i] & b[i]
		}
	case casm.PIPE:
		for i := range out {
			out[i] = a[i] | b[i]
		}
	case casm.LTLT:
		shift := bytesToInt(b)
		return intToBytes(bytesToInt(a)<<uint(shift), size)
	case casm.GTGT:
		shift := bytesToInt(b)
		return intToBytes(bytesToInt(a)>>uint(shift), size)
	}
	return out
}

// bigArith handles I128/U128 (16-byte) PLUS/MINUS/STAR/SLASH/PERCENT.
// Add/Sub/Mul wrap to the same bit pattern under modulo 2^128 regardless of
// signedness, so the signed two's-complement helpers serve both classes;
// Quo/Rem don't share that property, so unsigned division reinterprets the
// operands as plain non-negative big.Ints before dividing.
func (vm *VM) bigArith(ins casm.Instr, a, b []byte) (Status, bool) {
	na, nb := bytesToBig(a), bytesToBig(b)
	var r big.Int
	switch ins.Op {
	case casm.PLUS:
		r.Add(na, nb)
	case casm.MINUS:
		r.Sub(na, nb)
	case casm.STAR:
		r.Mul(na, nb)
	case casm.SLASH:
		if ins.B == classUnsigned {
			na, nb = new(big.Int).SetBytes(reverse(a)), new(big.Int).SetBytes(reverse(b))
		}
		if nb.Sign() == 0 {
			return vm.throwOrFatal(diag.ErrDivByZero()), false
		}
		r.Quo(na, nb)
	case casm.PERCENT:
		if ins.B == classUnsigned {
			na, nb = new(big.Int).SetBytes(reverse(a)), new(big.Int).SetBytes(reverse(b))
		}
		if nb.Sign() == 0 {
			return vm.throwOrFatal(diag.ErrDivByZero()), false
		}
		r.Rem(na, nb)
	}
	vm.st.Push(bigToBytes(&r, ins.A))
	return Running, true
}

// unary handles UPLUS/UMINUS/UTILDE/NOT.
func (vm *VM) unary(ins casm.Instr) {
	s := vm.st
	v := s.Pop(ins.A)
	switch ins.Op {
	case casm.UPLUS:
		s.Push(v)
	case casm.UMINUS:
		if ins.B == classFloat {
			s.Push(floatToBytes(-bytesToFloat(v)))
			return
		}
		if ins.A > 8 {
			s.Push(bigToBytes(new(big.Int).Neg(bytesToBig(v)), ins.A))
			return
		}
		s.Push(intToBytes(-bytesToInt(v), ins.A))
	case casm.UTILDE:
		out := make([]byte, len(v))
		for i, by := range v {
			out[i] = ^by
		}
		s.Push(out)
	case casm.NOT:
		s.Push(boolBytes(!isTruthy(v)))
	}
}

// lenOp handles the `#x` operator: Vec/Map/String/StrSlice all report a
// runtime length, but only Vec/Map/String are heap handles — StrSlice's
// length is baked into its static type size and carried in ins.A instead.
func (vm *VM) lenOp(ins casm.Instr) {
	s := vm.st
	if ins.A > 0 {
		// fixed-size StrSlice on the stack: the generator already popped it
		// via ins.A and recorded its static length in ins.B.
		s.Pop(ins.A)
		s.Push(encodeI64(int64(ins.B)))
		return
	}
	addr := decodeI64(s.Pop(8))
	switch ins.B {
	case casm.LenKindMap:
		s.Push(encodeI64(int64(vm.Heap.MapLen(addr))))
	case casm.LenKindStr:
		s.Push(encodeI64(int64(vm.Heap.StrLen(addr))))
	default:
		s.Push(encodeI64(int64(vm.Heap.VecLen(addr))))
	}
}
