// z80_tables.go - precomputed flag tables (spec.md §4.4)

package main

// Flag bit masks (spec.md §3 register model).
const (
	FlagC  = 0x01
	FlagN  = 0x02
	FlagPV = 0x04
	FlagX  = 0x08 // undocumented bit 3
	FlagH  = 0x10
	FlagY  = 0x20 // undocumented bit 5
	FlagZ  = 0x40
	FlagS  = 0x80
)

// sz53Table[v] gives the S, Z, 5, 3 bits of the flag register for a result
// byte v, precomputed once at startup as spec.md §4.4 requires.
var sz53Table [256]byte

// sz53pTable additionally folds in the parity bit.
var sz53pTable [256]byte

// parityTable[v] is FlagPV set iff v has even parity.
var parityTable [256]byte

// halfcarryAddTable and halfcarrySubTable are indexed by a packed 3-bit key
// built from bit 3 of each operand/result (r3<<2 | b3<<1 | a3).
var halfcarryAddTable [8]byte
var halfcarrySubTable [8]byte

// overflowAddTable and overflowSubTable are indexed the same way but using
// bit 7 of each operand/result.
var overflowAddTable [8]byte
var overflowSubTable [8]byte

func init() {
	for i := 0; i < 256; i++ {
		v := byte(i)
		f := v & (FlagS | FlagY | FlagX)
		if v == 0 {
			f |= FlagZ
		}
		sz53Table[i] = f

		bits := 0
		for b := v; b != 0; b &= b - 1 {
			bits++
		}
		p := f
		if bits%2 == 0 {
			p |= FlagPV
		}
		sz53pTable[i] = p

		if bits%2 == 0 {
			parityTable[i] = FlagPV
		} else {
			parityTable[i] = 0
		}
	}

	halfcarryAddTable = [8]byte{0, FlagH, FlagH, FlagH, 0, 0, 0, FlagH}
	halfcarrySubTable = [8]byte{0, 0, FlagH, 0, FlagH, 0, FlagH, FlagH}
	overflowAddTable = [8]byte{0, 0, 0, FlagPV, FlagPV, 0, 0, 0}
	overflowSubTable = [8]byte{0, FlagPV, 0, 0, 0, 0, FlagPV, 0}
}

// halfcarryAddIndex packs bit 3 of the operands/result for an 8-bit add into
// the 3-bit key halfcarryAddTable expects.
func halfcarryAddIndex(a, b, r byte) int {
	return int(((a & 0x08) >> 3) | ((b & 0x08) >> 2) | ((r & 0x08) >> 1))
}

func halfcarrySubIndex(a, b, r byte) int {
	return int(((a & 0x08) >> 3) | ((b & 0x08) >> 2) | ((r & 0x08) >> 1))
}

func overflowAddIndex(a, b, r byte) int {
	return int(((a & 0x80) >> 7) | ((b & 0x80) >> 6) | ((r & 0x80) >> 5))
}

func overflowSubIndex(a, b, r byte) int {
	return int(((a & 0x80) >> 7) | ((b & 0x80) >> 6) | ((r & 0x80) >> 5))
}
