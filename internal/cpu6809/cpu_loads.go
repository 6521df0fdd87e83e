/*
   a09 - 6809 accumulator arithmetic, LEA, register-stack, and TFR/EXG.

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

import "github.com/rcornwell/a09/internal/opcode"

// operand8/operand16 fetch or resolve e's operand for the immediate/direct/
// indexed/extended shape, without writing anything back.
func (c *CPU) operand8(e entry) (uint8, error) {
	if e.mode == opcode.ModeImmediate {
		return c.fetchByte()
	}
	addr, err := c.effectiveAddress(e.mode)
	if err != nil {
		return 0, err
	}
	return c.readByte(addr)
}

func (c *CPU) operand16(e entry) (uint16, error) {
	if e.mode == opcode.ModeImmediate {
		return c.fetchWord()
	}
	addr, err := c.effectiveAddress(e.mode)
	if err != nil {
		return 0, err
	}
	return c.readWord(addr)
}

func (c *CPU) add8(a, v uint8, carryIn bool) uint8 {
	cin := uint16(0)
	if carryIn {
		cin = 1
	}
	sum := uint16(a) + uint16(v) + cin
	c.CC.H = (a&0xf)+(v&0xf)+uint8(cin) > 0xf
	c.CC.C = sum > 0xff
	c.CC.V = (a^v^0x80)&(a^uint8(sum))&0x80 != 0
	c.setNZ8(uint8(sum))
	return uint8(sum)
}

func (c *CPU) sub8(a, v uint8, borrowIn bool) uint8 {
	bin := uint16(0)
	if borrowIn {
		bin = 1
	}
	diff := uint16(a) - uint16(v) - bin
	c.CC.C = diff > 0xff
	c.CC.V = (a^v)&(a^uint8(diff))&0x80 != 0
	c.setNZ8(uint8(diff))
	return uint8(diff)
}

func (c *CPU) add16(a, v uint16) uint16 {
	sum := uint32(a) + uint32(v)
	c.CC.C = sum > 0xffff
	c.CC.V = (a^v^0x8000)&(a^uint16(sum))&0x8000 != 0
	c.setNZ16(uint16(sum))
	return uint16(sum)
}

func (c *CPU) sub16(a, v uint16) uint16 {
	diff := uint32(a) - uint32(v)
	c.CC.C = diff > 0xffff
	c.CC.V = (a^v)&(a^uint16(diff))&0x8000 != 0
	c.setNZ16(uint16(diff))
	return uint16(diff)
}

// execImmDirIdxExt runs the accumulator and 16-bit register ops whose
// operand is immediate/direct/indexed/extended (loads, compares,
// accumulate-with-memory).
func (c *CPU) execImmDirIdxExt(e entry) error {
	if e.wide {
		return c.execImmDirIdxExt16(e)
	}
	v, err := c.operand8(e)
	if err != nil {
		return err
	}
	switch e.mnemonic {
	case "LDA":
		c.A = v
		c.setNZ8(c.A)
		c.CC.V = false
	case "LDB":
		c.B = v
		c.setNZ8(c.B)
		c.CC.V = false
	case "ADDA":
		c.A = c.add8(c.A, v, false)
	case "ADDB":
		c.B = c.add8(c.B, v, false)
	case "ADCA":
		c.A = c.add8(c.A, v, c.CC.C)
	case "ADCB":
		c.B = c.add8(c.B, v, c.CC.C)
	case "SUBA":
		c.A = c.sub8(c.A, v, false)
	case "SUBB":
		c.B = c.sub8(c.B, v, false)
	case "SBCA":
		c.A = c.sub8(c.A, v, c.CC.C)
	case "SBCB":
		c.B = c.sub8(c.B, v, c.CC.C)
	case "CMPA":
		c.sub8(c.A, v, false)
	case "CMPB":
		c.sub8(c.B, v, false)
	case "ANDA":
		c.A &= v
		c.setNZ8(c.A)
		c.CC.V = false
	case "ANDB":
		c.B &= v
		c.setNZ8(c.B)
		c.CC.V = false
	case "ORA":
		c.A |= v
		c.setNZ8(c.A)
		c.CC.V = false
	case "ORB":
		c.B |= v
		c.setNZ8(c.B)
		c.CC.V = false
	case "EORA":
		c.A ^= v
		c.setNZ8(c.A)
		c.CC.V = false
	case "EORB":
		c.B ^= v
		c.setNZ8(c.B)
		c.CC.V = false
	case "BITA":
		c.setNZ8(c.A & v)
		c.CC.V = false
	case "BITB":
		c.setNZ8(c.B & v)
		c.CC.V = false
	default:
		return &Fault{Kind: FaultInternal, PC: c.PC, Msg: "unhandled byte-operand op " + e.mnemonic}
	}
	return nil
}

func (c *CPU) execImmDirIdxExt16(e entry) error {
	v, err := c.operand16(e)
	if err != nil {
		return err
	}
	switch e.mnemonic {
	case "LDD":
		c.SetD(v)
		c.setNZ16(v)
		c.CC.V = false
	case "LDX":
		c.X = v
		c.setNZ16(v)
		c.CC.V = false
	case "LDY":
		c.Y = v
		c.setNZ16(v)
		c.CC.V = false
	case "LDU":
		c.U = v
		c.setNZ16(v)
		c.CC.V = false
	case "LDS":
		c.S = v
		c.setNZ16(v)
		c.CC.V = false
	case "ADDD":
		c.SetD(c.add16(c.D(), v))
	case "SUBD":
		c.SetD(c.sub16(c.D(), v))
	case "CMPD":
		c.sub16(c.D(), v)
	case "CMPX":
		c.sub16(c.X, v)
	case "CMPY":
		c.sub16(c.Y, v)
	case "CMPU":
		c.sub16(c.U, v)
	case "CMPS":
		c.sub16(c.S, v)
	default:
		return &Fault{Kind: FaultInternal, PC: c.PC, Msg: "unhandled word-operand op " + e.mnemonic}
	}
	return nil
}

// execLEA loads an indexed effective address into X/Y/S/U without touching
// memory; only LEAX/LEAY affect the zero flag.
func (c *CPU) execLEA(e entry) error {
	addr, err := c.decodeIndexed()
	if err != nil {
		return err
	}
	switch e.mnemonic {
	case "LEAX":
		c.X = addr
		c.CC.Z = addr == 0
	case "LEAY":
		c.Y = addr
		c.CC.Z = addr == 0
	case "LEAS":
		c.S = addr
	case "LEAU":
		c.U = addr
	default:
		return &Fault{Kind: FaultInternal, PC: c.PC, Msg: "unhandled LEA " + e.mnemonic}
	}
	return nil
}

// execPushPull runs PSHS/PSHU/PULS/PULU against the stack named by the
// mnemonic's own register (S or U), with the *other* register pushed/pulled
// as a plain 16-bit value when its bit is set.
func (c *CPU) execPushPull(e entry) error {
	mask, err := c.fetchByte()
	if err != nil {
		return err
	}
	var sp *uint16
	var other *uint16
	pull := false
	switch e.mnemonic {
	case "PSHS":
		sp, other = &c.S, &c.U
	case "PULS":
		sp, other = &c.S, &c.U
		pull = true
	case "PSHU":
		sp, other = &c.U, &c.S
	case "PULU":
		sp, other = &c.U, &c.S
		pull = true
	default:
		return &Fault{Kind: FaultInternal, PC: c.PC, Msg: "unhandled push/pull " + e.mnemonic}
	}

	if pull {
		return c.pull(sp, other, mask)
	}
	return c.push(sp, other, mask)
}

// push stores registers selected by mask onto *sp, highest-numbered
// register first (PC, then the far pointer, down to CC), matching the
// 6809's fixed push order.
func (c *CPU) push(sp, other *uint16, mask uint8) error {
	if mask&0x80 != 0 {
		if err := c.pushWord(sp, c.PC); err != nil {
			return err
		}
	}
	if mask&0x40 != 0 {
		if err := c.pushWord(sp, *other); err != nil {
			return err
		}
	}
	if mask&0x20 != 0 {
		if err := c.pushWord(sp, c.Y); err != nil {
			return err
		}
	}
	if mask&0x10 != 0 {
		if err := c.pushWord(sp, c.X); err != nil {
			return err
		}
	}
	if mask&0x08 != 0 {
		if err := c.pushByte(sp, c.DP); err != nil {
			return err
		}
	}
	if mask&0x04 != 0 {
		if err := c.pushByte(sp, c.B); err != nil {
			return err
		}
	}
	if mask&0x02 != 0 {
		if err := c.pushByte(sp, c.A); err != nil {
			return err
		}
	}
	if mask&0x01 != 0 {
		if err := c.pushByte(sp, c.CC.Byte()); err != nil {
			return err
		}
	}
	return nil
}

// pull is push's mirror image: lowest-numbered register first.
func (c *CPU) pull(sp, other *uint16, mask uint8) error {
	if mask&0x01 != 0 {
		v, err := c.pullByte(sp)
		if err != nil {
			return err
		}
		c.CC.SetByte(v)
	}
	if mask&0x02 != 0 {
		v, err := c.pullByte(sp)
		if err != nil {
			return err
		}
		c.A = v
	}
	if mask&0x04 != 0 {
		v, err := c.pullByte(sp)
		if err != nil {
			return err
		}
		c.B = v
	}
	if mask&0x08 != 0 {
		v, err := c.pullByte(sp)
		if err != nil {
			return err
		}
		c.DP = v
	}
	if mask&0x10 != 0 {
		v, err := c.pullWord(sp)
		if err != nil {
			return err
		}
		c.X = v
	}
	if mask&0x20 != 0 {
		v, err := c.pullWord(sp)
		if err != nil {
			return err
		}
		c.Y = v
	}
	if mask&0x40 != 0 {
		v, err := c.pullWord(sp)
		if err != nil {
			return err
		}
		*other = v
	}
	if mask&0x80 != 0 {
		v, err := c.pullWord(sp)
		if err != nil {
			return err
		}
		c.PC = v
	}
	return nil
}

// execExchange runs TFR/EXG: the postbyte's high nibble names the source,
// the low nibble the destination (TFR) or the other half of the swap (EXG).
func (c *CPU) execExchange(e entry) error {
	post, err := c.fetchByte()
	if err != nil {
		return err
	}
	srcNibble, dstNibble := post>>4, post&0x0f

	srcWide := srcNibble < 0x6
	dstWide := dstNibble < 0x6
	if srcWide != dstWide {
		return &Fault{Kind: FaultIllegalRegisterPair, PC: c.PC, Msg: e.mnemonic}
	}

	if srcWide {
		srcVal, srcIsD := c.wideRegValue(srcNibble)
		dstPtr, dstIsD := c.widePtr(dstNibble)
		if e.mnemonic == "TFR" {
			if dstIsD {
				c.SetD(srcVal)
			} else if dstPtr != nil {
				*dstPtr = srcVal
			} else {
				return &Fault{Kind: FaultIllegalRegisterPair, PC: c.PC}
			}
			return nil
		}
		// EXG
		dstVal, _ := c.wideRegValue(dstNibble)
		if srcIsD {
			c.SetD(dstVal)
		} else if srcPtr, _ := c.widePtr(srcNibble); srcPtr != nil {
			*srcPtr = dstVal
		}
		if dstIsD {
			c.SetD(srcVal)
		} else if dstPtr != nil {
			*dstPtr = srcVal
		}
		return nil
	}

	srcVal := c.byteRegValue(srcNibble)
	if e.mnemonic == "TFR" {
		c.setByteReg(dstNibble, srcVal)
		return nil
	}
	dstVal := c.byteRegValue(dstNibble)
	c.setByteReg(srcNibble, dstVal)
	c.setByteReg(dstNibble, srcVal)
	return nil
}

func (c *CPU) wideRegValue(nibble uint8) (v uint16, isD bool) {
	switch nibble {
	case 0x0:
		return c.D(), true
	case 0x1:
		return c.X, false
	case 0x2:
		return c.Y, false
	case 0x3:
		return c.U, false
	case 0x4:
		return c.S, false
	case 0x5:
		return c.PC, false
	}
	return 0, false
}

func (c *CPU) widePtr(nibble uint8) (ptr *uint16, isD bool) {
	switch nibble {
	case 0x0:
		return nil, true
	case 0x1:
		return &c.X, false
	case 0x2:
		return &c.Y, false
	case 0x3:
		return &c.U, false
	case 0x4:
		return &c.S, false
	case 0x5:
		return &c.PC, false
	}
	return nil, false
}

func (c *CPU) byteRegValue(nibble uint8) uint8 {
	switch nibble {
	case 0x8:
		return c.A
	case 0x9:
		return c.B
	case 0xA:
		return c.CC.Byte()
	case 0xB:
		return c.DP
	}
	return 0
}

func (c *CPU) setByteReg(nibble uint8, v uint8) {
	switch nibble {
	case 0x8:
		c.A = v
	case 0x9:
		c.B = v
	case 0xA:
		c.CC.SetByte(v)
	case 0xB:
		c.DP = v
	}
}
