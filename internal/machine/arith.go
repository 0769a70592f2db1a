package machine

import (
	"math"
	"math/big"
)

// CASM itself carries no type tags at runtime — every PLUS/EQL/etc. opcode
// only knows the operand width the generator recorded in Instr.A. These
// helpers interpret a little-endian byte span of that width as a signed
// integer for widths up to 8 bytes, falling back to math/big for the I128/
// U128 case (16 bytes), and round-trip back to bytes the same way.

func bytesToInt(b []byte) int64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	switch len(b) {
	case 1:
		return int64(int8(v))
	case 2:
		return int64(int16(v))
	case 4:
		return int64(int32(v))
	default:
		return int64(v)
	}
}

func intToBytes(v int64, size int) []byte {
	b := make([]byte, size)
	for i := 0; i < size && i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

func bytesToBig(b []byte) *big.Int {
	le := make([]byte, len(b))
	for i, by := range b {
		le[len(b)-1-i] = by
	}
	n := new(big.Int).SetBytes(le)
	// two's complement sign fixup: if the top bit is set, subtract 2^(8*len)
	if len(b) > 0 && b[len(b)-1]&0x80 != 0 {
		mod := new(big.Int).Lsh(big.NewInt(1), uint(8*len(b)))
		n.Sub(n, mod)
	}
	return n
}

func bigToBytes(n *big.Int, size int) []byte {
	m := new(big.Int).Set(n)
	if m.Sign() < 0 {
		mod := new(big.Int).Lsh(big.NewInt(1), uint(8*size))
		m.Add(m, mod)
	}
	be := m.Bytes()
	b := make([]byte, size)
	for i, by := range be {
		if idx := len(be) - 1 - i; idx >= 0 && idx < size {
			b[idx] = by
		}
	}
	return b
}

func bytesToFloat(b []byte) float64 {
	return math.Float64frombits(decodeU64(b))
}

func floatToBytes(v float64) []byte { return encodeU64(math.Float64bits(v)) }

func isTruthy(b []byte) bool {
	for _, by := range b {
		if by != 0 {
			return true
		}
	}
	return false
}

func boolBytes(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
