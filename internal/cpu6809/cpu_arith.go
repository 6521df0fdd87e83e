/*
   a09 - 6809 inherent, read-modify-write, and condition-code instructions.

   Copyright (c) 2024, Richard Cornwell

   Permission is hereby granted, free of charge, to any person obtaining a
   copy of this software and associated documentation files (the "Software"),
   to deal in the Software without restriction, including without limitation
   the rights to use, copy, modify, merge, publish, distribute, sublicense,
   and/or sell copies of the Software, and to permit persons to whom the
   Software is furnished to do so, subject to the following conditions:

   The above copyright notice and this permission notice shall be included in
   all copies or substantial portions of the Software.

   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.  IN NO EVENT SHALL
   RICHARD CORNWELL BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
   IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
   CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
*/

package cpu6809

func (c *CPU) setNZ8(v uint8) {
	c.CC.Z = v == 0
	c.CC.N = v&0x80 != 0
}

func (c *CPU) setNZ16(v uint16) {
	c.CC.Z = v == 0
	c.CC.N = v&0x8000 != 0
}

// execInherent runs the no-operand opcodes: single-accumulator arithmetic,
// shifts/rotates, and the control instructions (NOP/RTS/RTI/SEX/ABX/MUL).
func (c *CPU) execInherent(e entry) error {
	switch e.mnemonic {
	case "NOP", "SYNC":
		return nil
	case "CLRA":
		c.A = 0
		c.CC.N, c.CC.Z, c.CC.V, c.CC.C = false, true, false, false
	case "CLRB":
		c.B = 0
		c.CC.N, c.CC.Z, c.CC.V, c.CC.C = false, true, false, false
	case "COMA":
		c.A = ^c.A
		c.setNZ8(c.A)
		c.CC.V = false
		c.CC.C = true
	case "COMB":
		c.B = ^c.B
		c.setNZ8(c.B)
		c.CC.V = false
		c.CC.C = true
	case "NEGA":
		c.A = c.neg8(c.A)
	case "NEGB":
		c.B = c.neg8(c.B)
	case "INCA":
		c.A = c.inc8(c.A)
	case "INCB":
		c.B = c.inc8(c.B)
	case "DECA":
		c.A = c.dec8(c.A)
	case "DECB":
		c.B = c.dec8(c.B)
	case "TSTA":
		c.setNZ8(c.A)
		c.CC.V = false
	case "TSTB":
		c.setNZ8(c.B)
		c.CC.V = false
	case "ASLA", "LSLA":
		c.A = c.asl8(c.A)
	case "ASLB", "LSLB":
		c.B = c.asl8(c.B)
	case "ASRA":
		c.A = c.asr8(c.A)
	case "ASRB":
		c.B = c.asr8(c.B)
	case "LSRA":
		c.A = c.lsr8(c.A)
	case "LSRB":
		c.B = c.lsr8(c.B)
	case "ROLA":
		c.A = c.rol8(c.A)
	case "ROLB":
		c.B = c.rol8(c.B)
	case "RORA":
		c.A = c.ror8(c.A)
	case "RORB":
		c.B = c.ror8(c.B)
	case "DAA":
		c.daa()
	case "SEX":
		c.A = 0
		if c.B&0x80 != 0 {
			c.A = 0xFF
		}
		c.setNZ16(c.D())
	case "ABX":
		c.X += uint16(c.B)
	case "MUL":
		v := uint16(c.A) * uint16(c.B)
		c.SetD(v)
		c.CC.Z = v == 0
		c.CC.C = v&0x80 != 0
	case "RTS":
		pc, err := c.pullWord(&c.S)
		if err != nil {
			return err
		}
		c.PC = pc
	case "RTI":
		return c.execRTI()
	case "SWI", "SWI2", "SWI3":
		return &Fault{Kind: FaultIllegalInstruction, PC: c.PC, Msg: e.mnemonic + " (interrupts not modeled)"}
	default:
		return &Fault{Kind: FaultInternal, PC: c.PC, Msg: "unhandled inherent " + e.mnemonic}
	}
	return nil
}

func (c *CPU) execRTI() error {
	cc, err := c.pullByte(&c.S)
	if err != nil {
		return err
	}
	c.CC.SetByte(cc)
	if !c.CC.E {
		pc, err := c.pullWord(&c.S)
		if err != nil {
			return err
		}
		c.PC = pc
		return nil
	}
	for _, reg := range []*uint8{&c.A, &c.B, &c.DP} {
		v, err := c.pullByte(&c.S)
		if err != nil {
			return err
		}
		*reg = v
	}
	for _, reg := range []*uint16{&c.X, &c.Y, &c.U} {
		v, err := c.pullWord(&c.S)
		if err != nil {
			return err
		}
		*reg = v
	}
	pc, err := c.pullWord(&c.S)
	if err != nil {
		return err
	}
	c.PC = pc
	return nil
}

func (c *CPU) neg8(v uint8) uint8 {
	r := uint8(0) - v
	c.CC.C = v != 0
	c.CC.V = v == 0x80
	c.setNZ8(r)
	return r
}

func (c *CPU) inc8(v uint8) uint8 {
	r := v + 1
	c.CC.V = v == 0x7F
	c.setNZ8(r)
	return r
}

func (c *CPU) dec8(v uint8) uint8 {
	r := v - 1
	c.CC.V = v == 0x80
	c.setNZ8(r)
	return r
}

func (c *CPU) asl8(v uint8) uint8 {
	c.CC.C = v&0x80 != 0
	r := v << 1
	c.CC.V = (v^r)&0x80 != 0
	c.setNZ8(r)
	return r
}

func (c *CPU) asr8(v uint8) uint8 {
	c.CC.C = v&0x01 != 0
	r := (v & 0x80) | (v >> 1)
	c.setNZ8(r)
	return r
}

func (c *CPU) lsr8(v uint8) uint8 {
	c.CC.C = v&0x01 != 0
	r := v >> 1
	c.setNZ8(r)
	return r
}

func (c *CPU) rol8(v uint8) uint8 {
	carryIn := uint8(0)
	if c.CC.C {
		carryIn = 1
	}
	c.CC.C = v&0x80 != 0
	r := (v << 1) | carryIn
	c.CC.V = (v^(v<<1))&0x80 != 0
	c.setNZ8(r)
	return r
}

func (c *CPU) ror8(v uint8) uint8 {
	carryIn := uint8(0)
	if c.CC.C {
		carryIn = 0x80
	}
	c.CC.C = v&0x01 != 0
	r := (v >> 1) | carryIn
	c.setNZ8(r)
	return r
}

// daa implements decimal adjust following an ADDA/ADCA/SUBA sequence,
// per the standard 6809 correction-nibble table.
func (c *CPU) daa() {
	a := c.A
	lo := a & 0x0f
	hi := a >> 4
	corrLo, corrHi := uint8(0), uint8(0)
	if c.CC.H || lo > 9 {
		corrLo = 6
	}
	if c.CC.C || hi > 9 || (hi >= 9 && lo > 9) {
		corrHi = 6
	}
	sum := uint16(a) + uint16(corrHi)<<4 + uint16(corrLo)
	c.CC.C = c.CC.C || sum > 0xff
	c.A = uint8(sum)
	c.setNZ8(c.A)
}

// execDirIdxExt runs the direct/indexed/extended read-modify-write family
// (CLR/COM/NEG/INC/DEC/shifts/TST), the stores, and JMP/JSR.
func (c *CPU) execDirIdxExt(e entry) error {
	addr, err := c.effectiveAddress(e.mode)
	if err != nil {
		return err
	}
	switch e.mnemonic {
	case "JMP":
		c.PC = addr
		return nil
	case "JSR":
		if err := c.pushWord(&c.S, c.PC); err != nil {
			return err
		}
		c.PC = addr
		return nil
	case "STA":
		c.setNZ8(c.A)
		c.CC.V = false
		return c.writeByte(addr, c.A)
	case "STB":
		c.setNZ8(c.B)
		c.CC.V = false
		return c.writeByte(addr, c.B)
	case "STD":
		c.setNZ16(c.D())
		c.CC.V = false
		return c.writeWord(addr, c.D())
	case "STX":
		c.setNZ16(c.X)
		c.CC.V = false
		return c.writeWord(addr, c.X)
	case "STY":
		c.setNZ16(c.Y)
		c.CC.V = false
		return c.writeWord(addr, c.Y)
	case "STU":
		c.setNZ16(c.U)
		c.CC.V = false
		return c.writeWord(addr, c.U)
	case "STS":
		c.setNZ16(c.S)
		c.CC.V = false
		return c.writeWord(addr, c.S)
	}

	v, err := c.readByte(addr)
	if err != nil {
		return err
	}
	switch e.mnemonic {
	case "TST":
		c.setNZ8(v)
		c.CC.V = false
		return nil
	case "CLR":
		c.CC.N, c.CC.Z, c.CC.V, c.CC.C = false, true, false, false
		return c.writeByte(addr, 0)
	case "COM":
		v = ^v
		c.setNZ8(v)
		c.CC.V = false
		c.CC.C = true
	case "NEG":
		v = c.neg8(v)
	case "INC":
		v = c.inc8(v)
	case "DEC":
		v = c.dec8(v)
	case "ASL":
		v = c.asl8(v)
	case "ASR":
		v = c.asr8(v)
	case "LSR":
		v = c.lsr8(v)
	case "ROL":
		v = c.rol8(v)
	case "ROR":
		v = c.ror8(v)
	default:
		return &Fault{Kind: FaultInternal, PC: c.PC, Msg: "unhandled direct/indexed/extended " + e.mnemonic}
	}
	return c.writeByte(addr, v)
}

// execCCOp runs ANDCC/ORCC/CWAI, which mask or set the condition-code byte
// from an immediate operand.
func (c *CPU) execCCOp(e entry) error {
	mask, err := c.fetchByte()
	if err != nil {
		return err
	}
	switch e.mnemonic {
	case "ANDCC":
		c.CC.SetByte(c.CC.Byte() & mask)
	case "ORCC":
		c.CC.SetByte(c.CC.Byte() | mask)
	case "CWAI":
		c.CC.SetByte(c.CC.Byte() & mask)
		return &Fault{Kind: FaultIllegalInstruction, PC: c.PC, Msg: "CWAI (interrupts not modeled)"}
	default:
		return &Fault{Kind: FaultInternal, PC: c.PC, Msg: "unhandled CC op " + e.mnemonic}
	}
	return nil
}
