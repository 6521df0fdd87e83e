/*
   a09 - Inherent, branch, push/pull, exchange/transfer, and CC encoders.

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
package opcode

import (
	"fmt"
	"strings"
)

func encodeInherent(ctx Context, desc Descriptor) error {
	emitPage(ctx, desc)
	ctx.Emit(desc.Base)
	return nil
}

// Warning tag numbers referenced by boundary behaviors: W0012 "branch to
// next location", matching the reference assembler's numbering.
const warnBranchToNext = 12

func encodeBranch(ctx Context, desc Descriptor, text string) error {
	v, rest, err := ctx.Eval(text)
	if err != nil {
		return err
	}
	if strings.TrimSpace(rest) != "" {
		return fmt.Errorf("extra text after branch operand")
	}
	target := v.Word
	afterPC := ctx.PC() + 2
	delta := int32(target) - int32(afterPC)
	if ctx.Pass() == 2 {
		if delta < -128 || delta > 127 {
			return ctx.Errorf(29, "target exceeds 8-bit range")
		}
		if delta == 0 && desc.Mnemonic != "BRN" {
			ctx.Warnf(warnBranchToNext, "branch to next location")
		}
	}
	ctx.Emit(desc.Base, byte(delta))
	return nil
}

func encodeLongBranch(ctx Context, desc Descriptor, text string) error {
	v, rest, err := ctx.Eval(text)
	if err != nil {
		return err
	}
	if strings.TrimSpace(rest) != "" {
		return fmt.Errorf("extra text after branch operand")
	}
	instrLen := uint16(3)
	if desc.Page != 0 {
		instrLen = 4
	}
	afterPC := ctx.PC() + instrLen
	delta := int32(v.Word) - int32(afterPC)
	if ctx.Pass() == 2 && (delta >= -128 && delta <= 127) {
		ctx.Warnf(13, "8-bit branch would suffice")
	}
	emitPage(ctx, desc)
	ctx.Emit(desc.Base)
	ctx.Emit(be16(uint16(delta))...)
	return nil
}

var pushPullBits = map[byte]byte{
	'C': 0x01, // CC
	'A': 0x02,
	'B': 0x04,
	'D': 0x06, // A and B together
	'X': 0x10,
	'Y': 0x20,
	'U': 0x40,
	'S': 0x40,
	'P': 0x80, // PC
}

func encodePushPull(ctx Context, desc Descriptor, text string) error {
	own := byte('S')
	if desc.Base == 0x36 || desc.Base == 0x37 {
		own = 'U'
	}
	mask := byte(0)
	for _, field := range strings.Split(text, ",") {
		field = strings.TrimSpace(strings.ToUpper(field))
		if field == "" {
			continue
		}
		if len(field) == 1 && field[0] == own {
			return fmt.Errorf("cannot push/pull a register onto its own stack")
		}
		bits, ok := pushPullBits[regCode(field)]
		if !ok {
			return fmt.Errorf("invalid register %q in push/pull list", field)
		}
		mask |= bits
	}
	ctx.Emit(desc.Base, mask)
	return nil
}

func regCode(field string) byte {
	switch field {
	case "PC":
		return 'P'
	case "U", "S":
		if field == "U" {
			return 'U'
		}
		return 'S'
	default:
		if len(field) == 1 {
			return field[0]
		}
		return 0
	}
}

var tfrExgCode = map[string]byte{
	"D": 0x0, "X": 0x1, "Y": 0x2, "U": 0x3, "S": 0x4, "PC": 0x5,
	"A": 0x8, "B": 0x9, "CC": 0xA, "DP": 0xB,
}

func is16bitReg(name string) bool {
	switch name {
	case "D", "X", "Y", "U", "S", "PC":
		return true
	default:
		return false
	}
}

func encodeExchange(ctx Context, desc Descriptor, text string) error {
	parts := strings.SplitN(text, ",", 2)
	if len(parts) != 2 {
		return fmt.Errorf("%s requires two comma-separated registers", desc.Mnemonic)
	}
	r1 := strings.ToUpper(strings.TrimSpace(parts[0]))
	r2 := strings.ToUpper(strings.TrimSpace(parts[1]))
	c1, ok1 := tfrExgCode[r1]
	c2, ok2 := tfrExgCode[r2]
	if !ok1 || !ok2 {
		return fmt.Errorf("invalid register in %s", desc.Mnemonic)
	}
	if is16bitReg(r1) != is16bitReg(r2) {
		ctx.Warnf(14, "mixed-size %s between an 8-bit and 16-bit register", desc.Mnemonic)
	}
	ctx.Emit(desc.Base, (c1<<4)|c2)
	return nil
}

var ccFlagBits = map[byte]byte{
	'C': 0x01, 'V': 0x02, 'Z': 0x04, 'N': 0x08, 'I': 0x10, 'H': 0x20, 'F': 0x40, 'E': 0x80,
}

// parseCCOperand accepts either a plain expression or a "{C V Z ...}"
// flag-letter-list, per §4.5's ANDCC/ORCC/CWAI note.
func parseCCOperand(ctx Context, text string) (byte, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "{") {
		end := strings.Index(text, "}")
		if end < 0 {
			return 0, fmt.Errorf("missing close brace in flag list")
		}
		var mask byte
		for _, f := range strings.Fields(text[1:end]) {
			f = strings.ToUpper(f)
			if len(f) != 1 {
				return 0, fmt.Errorf("invalid flag %q", f)
			}
			bit, ok := ccFlagBits[f[0]]
			if !ok {
				return 0, fmt.Errorf("invalid flag %q", f)
			}
			mask |= bit
		}
		return mask, nil
	}
	v, rest, err := ctx.Eval(text)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(rest) != "" {
		return 0, fmt.Errorf("extra text after operand")
	}
	return byte(v.Word), nil
}

func encodeCCOp(ctx Context, desc Descriptor, text string) error {
	mask, err := parseCCOperand(ctx, text)
	if err != nil {
		return err
	}
	if desc.Shape == ShapeANDCC {
		mask = ^mask
	}
	ctx.Emit(desc.Base, mask)
	return nil
}
