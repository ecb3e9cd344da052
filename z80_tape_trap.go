// z80_tape_trap.go - tape LD/SAVE ROM trap (spec.md §4.7)

package main

// TapeBlockKind distinguishes the handful of tape block shapes the trap
// cares about; full tape parsing stays external (spec.md §1).
type TapeBlockKind int

const (
	TapeBlockStandardROM TapeBlockKind = iota
	TapeBlockOther
)

// TapeBlock is the minimal view of the current tape block the trap needs.
// The owning tape/snap library supplies these; this core never parses a
// tape file itself.
type TapeBlock struct {
	Kind   TapeBlockKind
	Data   []byte
	Length int
}

// TapeTrapHook is consumed by the Z80 core at the LD/SAVE ROM entry points.
// CurrentBlock returns the block the tape is positioned at (nil if no tape
// is inserted). ConsumeBlock advances past a fully-consumed block.
// StartPlaying is the non-ROM/partial-load fallback of spec.md §4.7.
// SaveBlock appends a freshly-recorded ROM block with the given pause.
type TapeTrapHook interface {
	CurrentBlock() *TapeBlock
	ConsumeBlock()
	StartPlaying()
	SaveBlock(data []byte, pauseMs int)
}

// TapeTrapConfig gates whether CheckLoadTrap/CheckSaveTrap act at all and
// selects the TS2068 return addresses.
type TapeTrapConfig struct {
	Enabled bool
	TS2068  bool // selects the 0x0136/0x00E4 return addresses instead of 0x05E2/0x053E
}

// CheckLoadTrap implements the register-level contract of spec.md §4.7. It
// must be called exactly when PC has just landed on the tape LD-BYTES entry
// point (0x0556 on the 48K ROM; 0x04D0 is the SAVE-BYTES entry handled by
// CheckSaveTrap) with tape traps enabled.
// Returns true if the trap fired (and PC/registers were rewritten).
func (z *Z80) CheckLoadTrap(cfg TapeTrapConfig) bool {
	if !cfg.Enabled || z.TapeTrap == nil {
		return false
	}
	block := z.TapeTrap.CurrentBlock()
	if block == nil || block.Kind != TapeBlockStandardROM {
		return false
	}
	de := z.DE()
	if int(de)+2 != block.Length {
		return false
	}

	retPC := uint16(0x05E2)
	if cfg.TS2068 {
		retPC = 0x0136
	}

	if block.Length == 0 {
		z.L = 1
		z.F2 |= FlagC
		z.setFlag(FlagC, false)
		z.PC = retPC
		return true
	}

	savedA2 := z.A2
	z.A2 = 1
	z.F2 = 0x45
	flagByte := block.Data[0]
	var parity byte = flagByte
	z.L = flagByte

	if flagByte != savedA2 {
		z.setFlag(FlagC, false)
		z.PC = retPC
		return true
	}

	verify := z.flag(FlagC)
	transferLen := int(de)
	if transferLen > len(block.Data)-1 {
		transferLen = len(block.Data) - 1
	}

	mismatch := false
	i := 0
	for ; i < transferLen; i++ {
		b := block.Data[1+i]
		parity ^= b
		if verify {
			existing := z.bus.ReadByteInternal(z.IX + uint16(i))
			if existing != b {
				z.L = b
				z.setFlag(FlagC, false)
				mismatch = true
				break
			}
		} else {
			z.bus.WriteByteInternal(z.IX+uint16(i), b)
		}
	}

	if mismatch {
		z.PC = retPC
		return true
	}

	short := i < transferLen
	if !short && len(block.Data) > 1+transferLen {
		parity ^= block.Data[1+transferLen]
	}

	if short {
		z.B = 255
		z.L = 1
		z.B++
		z.setFlag(FlagC, false)
	} else {
		z.A = parity
		z.setFlag(FlagZ, parity == 1)
		z.B = 0xB0
		z.setFlag(FlagC, true)
	}

	z.setFlag(FlagC, !short)
	z.C = 1
	z.H = parity
	newDE := de - uint16(i)
	z.SetDE(newDE)
	z.IX += uint16(i)
	z.PC = retPC

	z.TapeTrap.ConsumeBlock()
	return true
}

// CheckSaveTrap implements the SAVE-BYTES trap: read DE+1 bytes from IX,
// compute parity, append a new ROM block with a 1000ms pause, then return
// through 0x053E (0x00E4 on TS2068).
func (z *Z80) CheckSaveTrap(cfg TapeTrapConfig) bool {
	if !cfg.Enabled || z.TapeTrap == nil {
		return false
	}
	de := z.DE()
	n := int(de) + 1
	data := make([]byte, n)
	var parity byte
	for i := 0; i < n; i++ {
		b := z.bus.ReadByteInternal(z.IX + uint16(i))
		data[i] = b
		parity ^= b
	}
	z.TapeTrap.SaveBlock(data, 1000)

	retPC := uint16(0x053E)
	if cfg.TS2068 {
		retPC = 0x00E4
	}
	z.PC = retPC
	return true
}
