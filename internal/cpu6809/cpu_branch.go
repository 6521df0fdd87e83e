/*
   a09 - 6809 short and long conditional/unconditional branches.

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

// branchTaken evaluates mnemonic's condition against the current CC flags.
func (c *CPU) branchTaken(mnemonic string) bool {
	cc := c.CC
	switch mnemonic {
	case "BRA", "LBRA", "BSR", "LBSR":
		return true
	case "BRN", "LBRN":
		return false
	case "BHI", "LBHI":
		return !cc.C && !cc.Z
	case "BLS", "LBLS":
		return cc.C || cc.Z
	case "BCC", "BHS", "LBCC", "LBHS":
		return !cc.C
	case "BCS", "BLO", "LBCS", "LBLO":
		return cc.C
	case "BNE", "LBNE":
		return !cc.Z
	case "BEQ", "LBEQ":
		return cc.Z
	case "BVC", "LBVC":
		return !cc.V
	case "BVS", "LBVS":
		return cc.V
	case "BPL", "LBPL":
		return !cc.N
	case "BMI", "LBMI":
		return cc.N
	case "BGE", "LBGE":
		return cc.N == cc.V
	case "BLT", "LBLT":
		return cc.N != cc.V
	case "BGT", "LBGT":
		return !cc.Z && cc.N == cc.V
	case "BLE", "LBLE":
		return cc.Z || cc.N != cc.V
	default:
		return false
	}
}

// execBranch runs the 8-bit PC-relative branches, including BSR's implicit
// return-address push.
func (c *CPU) execBranch(e entry) error {
	off, err := c.fetchByte()
	if err != nil {
		return err
	}
	target := uint16(int32(c.PC) + int32(int8(off)))
	if e.mnemonic == "BSR" {
		if err := c.pushWord(&c.S, c.PC); err != nil {
			return err
		}
	}
	if c.branchTaken(e.mnemonic) {
		c.PC = target
	}
	return nil
}

// execLongBranch runs the 16-bit PC-relative branches, including LBSR's
// implicit return-address push.
func (c *CPU) execLongBranch(e entry) error {
	off, err := c.fetchWord()
	if err != nil {
		return err
	}
	target := uint16(int32(c.PC) + int32(int16(off)))
	if e.mnemonic == "LBSR" {
		if err := c.pushWord(&c.S, c.PC); err != nil {
			return err
		}
	}
	if c.branchTaken(e.mnemonic) {
		c.PC = target
	}
	return nil
}
