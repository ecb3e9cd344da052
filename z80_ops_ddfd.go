// z80_ops_ddfd.go - DD/FD prefixed opcodes (IX/IY substitution for HL)

package main

// dispatchIndexed decodes the opcode following a DD or FD prefix. idx points
// at z.IX or z.IY. Opcodes that do not reference H, L, or (HL) behave
// exactly as their unprefixed counterpart (the prefix is a wasted M1 cycle);
// opcodes that do are redirected to the index register or (idx+d).
func (z *Z80) dispatchIndexed(idx *uint16) {
	z.bus.ContendRead(z.PC, 4)
	opcode := z.bus.ReadByteInternal(z.PC)
	z.PC++
	z.incrementR()

	switch opcode {
	case 0xDD, 0xFD:
		// Consecutive index prefixes: the new prefix wins, this one is
		// just a wasted fetch.
		if opcode == 0xDD {
			z.dispatchIndexed(&z.IX)
		} else {
			z.dispatchIndexed(&z.IY)
		}
		return
	case 0xED:
		z.dispatchED()
		return
	case 0xCB:
		z.dispatchIndexedCB(idx)
		return
	}

	x := opcode >> 6
	y := (opcode >> 3) & 7
	zf := opcode & 7

	switch {
	case opcode == 0x21: // LD idx,nn
		*idx = z.fetchWord()
	case opcode == 0x22: // LD (nn),idx
		addr := z.fetchWord()
		z.writeMem(addr, byte(*idx))
		z.writeMem(addr+1, byte(*idx>>8))
		z.MEMPTR = addr + 1
	case opcode == 0x2A: // LD idx,(nn)
		addr := z.fetchWord()
		lo := z.readMem(addr)
		hi := z.readMem(addr + 1)
		*idx = uint16(hi)<<8 | uint16(lo)
		z.MEMPTR = addr + 1
	case opcode == 0x23: // INC idx
		z.bus.ContendReadNoMREQ(z.PC, 1)
		z.bus.ContendReadNoMREQ(z.PC, 1)
		*idx++
	case opcode == 0x2B: // DEC idx
		z.bus.ContendReadNoMREQ(z.PC, 1)
		z.bus.ContendReadNoMREQ(z.PC, 1)
		*idx--
	case opcode == 0x09: // ADD idx,BC
		z.addIndexed(idx, z.BC())
	case opcode == 0x19: // ADD idx,DE
		z.addIndexed(idx, z.DE())
	case opcode == 0x29: // ADD idx,idx
		z.addIndexed(idx, *idx)
	case opcode == 0x39: // ADD idx,SP
		z.addIndexed(idx, z.SP)
	case opcode == 0x24 || opcode == 0x2C: // INC IXh / INC IXl (undocumented)
		z.writeIndexedOperand(idx, y, z.inc8(z.readIndexedOperand(idx, y)))
	case opcode == 0x25 || opcode == 0x2D: // DEC IXh / DEC IXl (undocumented)
		z.writeIndexedOperand(idx, y, z.dec8(z.readIndexedOperand(idx, y)))
	case opcode == 0x26 || opcode == 0x2E: // LD IXh,n / LD IXl,n (undocumented)
		z.writeIndexedOperand(idx, y, z.fetchByte())
	case opcode == 0x34: // INC (idx+d)
		addr := z.indexedAddr(idx)
		v := z.readMem(addr)
		z.bus.ContendReadNoMREQ(addr, 1)
		z.writeMem(addr, z.inc8(v))
	case opcode == 0x35: // DEC (idx+d)
		addr := z.indexedAddr(idx)
		v := z.readMem(addr)
		z.bus.ContendReadNoMREQ(addr, 1)
		z.writeMem(addr, z.dec8(v))
	case opcode == 0x36: // LD (idx+d),n
		d := int8(z.fetchByte())
		n := z.fetchByte()
		addr := uint16(int32(*idx) + int32(d))
		z.MEMPTR = addr
		z.bus.ContendReadNoMREQ(z.PC, 1)
		z.bus.ContendReadNoMREQ(z.PC, 1)
		z.writeMem(addr, n)
	case opcode == 0xE1: // POP idx
		*idx = z.pop()
	case opcode == 0xE5: // PUSH idx
		z.bus.ContendReadNoMREQ(z.PC, 1)
		z.push(*idx)
	case opcode == 0xE9: // JP (idx)
		z.PC = *idx
	case opcode == 0xF9: // LD SP,idx
		z.bus.ContendReadNoMREQ(z.PC, 1)
		z.bus.ContendReadNoMREQ(z.PC, 1)
		z.SP = *idx
	case opcode == 0xE3: // EX (SP),idx
		lo := z.readMem(z.SP)
		hi := z.readMem(z.SP + 1)
		old := *idx
		z.bus.ContendReadNoMREQ(z.SP+1, 1)
		z.writeMem(z.SP+1, byte(old>>8))
		z.writeMem(z.SP, byte(old))
		z.bus.ContendReadNoMREQ(z.SP, 1)
		z.bus.ContendReadNoMREQ(z.SP, 1)
		*idx = uint16(hi)<<8 | uint16(lo)
		z.MEMPTR = *idx
	case x == 1 && (zf == 6 || y == 6) && !(zf == 6 && y == 6): // LD r,(idx+d) / LD (idx+d),r
		d := int8(z.fetchByte())
		addr := uint16(int32(*idx) + int32(d))
		z.MEMPTR = addr
		z.bus.ContendReadNoMREQ(z.PC, 1)
		z.bus.ContendReadNoMREQ(z.PC, 1)
		z.bus.ContendReadNoMREQ(z.PC, 1)
		z.bus.ContendReadNoMREQ(z.PC, 1)
		z.bus.ContendReadNoMREQ(z.PC, 1)
		// The register operand is always plain H/L here, never IXh/IXl.
		if zf == 6 {
			z.write8(y, z.readMem(addr))
		} else {
			z.writeMem(addr, z.read8(zf))
		}
	case x == 1 && zf == 6 && y == 6: // HALT (no index effect)
		z.Halted = true
		z.PC--
	case x == 1: // LD r,r' among B/C/D/E/IXh/IXl/A (undocumented high/low halves)
		v := z.readIndexedOperand(idx, zf)
		z.writeIndexedOperand(idx, y, v)
	case x == 2 && zf == 6: // ALU A,(idx+d)
		d := int8(z.fetchByte())
		addr := uint16(int32(*idx) + int32(d))
		z.MEMPTR = addr
		z.bus.ContendReadNoMREQ(z.PC, 1)
		z.bus.ContendReadNoMREQ(z.PC, 1)
		z.bus.ContendReadNoMREQ(z.PC, 1)
		z.bus.ContendReadNoMREQ(z.PC, 1)
		z.bus.ContendReadNoMREQ(z.PC, 1)
		z.aluOp(y, z.readMem(addr))
	case x == 2: // ALU A,IXh/IXl (undocumented)
		v := z.readIndexedOperand(idx, zf)
		z.aluOp(y, v)
	default:
		// Any opcode not involving H/L/(HL) behaves exactly like the
		// unprefixed form; the prefix only cost the extra M1 fetch above.
		z.dispatchBase(opcode)
	}
}

func (z *Z80) indexedAddr(idx *uint16) uint16 {
	d := int8(z.fetchByte())
	addr := uint16(int32(*idx) + int32(d))
	z.MEMPTR = addr
	z.bus.ContendReadNoMREQ(z.PC, 1)
	z.bus.ContendReadNoMREQ(z.PC, 1)
	z.bus.ContendReadNoMREQ(z.PC, 1)
	z.bus.ContendReadNoMREQ(z.PC, 1)
	z.bus.ContendReadNoMREQ(z.PC, 1)
	return addr
}

func (z *Z80) addIndexed(idx *uint16, operand uint16) {
	for i := 0; i < 7; i++ {
		z.bus.ContendReadNoMREQ(z.PC, 1)
	}
	a := *idx
	sum := uint32(a) + uint32(operand)
	r := uint16(sum)
	f := z.F &^ (FlagN | FlagC | FlagH | FlagX | FlagY)
	if (a^operand^r)&0x1000 != 0 {
		f |= FlagH
	}
	if sum > 0xFFFF {
		f |= FlagC
	}
	f |= byte(r>>8) & (FlagX | FlagY)
	z.F = f
	z.markQ()
	*idx = r
}

// readIndexedOperand / writeIndexedOperand decode the 3-bit register field
// when a DD/FD prefix is active and the field does not target (HL): 4/5
// become the index register's high/low half (undocumented), everything
// else (B,C,D,E,A) is unaffected by the prefix.
func (z *Z80) readIndexedOperand(idx *uint16, code byte) byte {
	switch code & 7 {
	case 4:
		return byte(*idx >> 8)
	case 5:
		return byte(*idx)
	default:
		return z.read8(code)
	}
}

func (z *Z80) writeIndexedOperand(idx *uint16, code byte, v byte) {
	switch code & 7 {
	case 4:
		*idx = (*idx)&0x00FF | uint16(v)<<8
	case 5:
		*idx = (*idx)&0xFF00 | uint16(v)
	default:
		z.write8(code, v)
	}
}

// dispatchIndexedCB handles DD CB d op / FD CB d op: the displacement byte
// is fetched first, then the opcode, and the CB operation always targets
// (idx+d); for opcodes other than plain BIT it additionally writes the
// result into the z-field register, an undocumented quirk of the real
// silicon this core preserves.
func (z *Z80) dispatchIndexedCB(idx *uint16) {
	d := int8(z.fetchByte())
	opcode := z.bus.ReadByteInternal(z.PC)
	z.bus.ContendReadNoMREQ(z.PC, 1)
	z.bus.ContendReadNoMREQ(z.PC, 1)
	z.PC++

	addr := uint16(int32(*idx) + int32(d))
	z.MEMPTR = addr

	x := opcode >> 6
	y := (opcode >> 3) & 7
	zf := opcode & 7

	v := z.readMem(addr)
	z.bus.ContendReadNoMREQ(addr, 1)

	switch x {
	case 0:
		r := z.rotateShift(y, v)
		z.writeMem(addr, r)
		if zf != 6 {
			z.write8(zf, r)
		}
	case 1:
		z.bitTest(y, v, true)
	case 2:
		r := v &^ (1 << y)
		z.writeMem(addr, r)
		if zf != 6 {
			z.write8(zf, r)
		}
	case 3:
		r := v | (1 << y)
		z.writeMem(addr, r)
		if zf != 6 {
			z.write8(zf, r)
		}
	}
}
