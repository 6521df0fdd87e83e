/*
   a09 - Operand / addressing-mode parser and idie/die/LEA encoders.

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

// operand is the decoded result of parsing one instruction's operand text.
type operand struct {
	mode     AddrMode
	value    Value
	postbyte byte   // valid when mode == ModeIndexed
	extra    []byte // extra indexed-mode bytes (5/8/16-bit offset), already computed
}

var indexRegBits = map[byte]byte{'X': 0x00, 'Y': 0x20, 'U': 0x40, 'S': 0x60}

// parseOperand implements §4.4: immediate/indirect-extended/indexed-no-offset
// detection up front, then falls back to evaluating an expression and
// deciding direct-vs-extended or expression-offset-indexed from what follows.
func parseOperand(ctx Context, text string) (operand, error) {
	text = strings.TrimLeft(text, " ")

	if strings.HasPrefix(text, "#") {
		v, rest, err := ctx.Eval(text[1:])
		if err != nil {
			return operand{}, err
		}
		if strings.TrimSpace(rest) != "" {
			return operand{}, fmt.Errorf("extra text after immediate operand")
		}
		return operand{mode: ModeImmediate, value: v}, nil
	}

	indirect := false
	if strings.HasPrefix(text, "[") {
		indirect = true
		text = text[1:]
	}

	if strings.HasPrefix(text, ",") {
		op, rest, err := parseIndexedNoOffset(text[1:], indirect)
		if err != nil {
			return operand{}, err
		}
		if indirect {
			rest = consumeCloseBracket(rest)
		}
		if strings.TrimSpace(rest) != "" {
			return operand{}, fmt.Errorf("extra text after indexed operand")
		}
		return op, nil
	}

	if len(text) >= 3 && text[1] == ',' {
		accPost := map[byte]byte{'A': 0x86, 'B': 0x85, 'D': 0x8B}
		regBits, regOK := indexRegBits[upper(text[2])]
		if post, ok := accPost[upper(text[0])]; ok && regOK {
			rest := text[3:]
			if indirect {
				post |= 0x10
				rest = consumeCloseBracket(rest)
			}
			if strings.TrimSpace(rest) != "" {
				return operand{}, fmt.Errorf("extra text after indexed operand")
			}
			return operand{mode: ModeIndexed, postbyte: regBits | post}, nil
		}
	}

	v, rest, err := ctx.Eval(text)
	if err != nil {
		return operand{}, err
	}
	rest = strings.TrimLeft(rest, " ")

	if indirect {
		if !strings.HasPrefix(rest, "]") {
			if strings.HasPrefix(rest, ",") {
				op, rest2, err := parseIndexedWithOffset(v, rest[1:], true)
				if err != nil {
					return operand{}, err
				}
				rest2 = consumeCloseBracket(rest2)
				if strings.TrimSpace(rest2) != "" {
					return operand{}, fmt.Errorf("extra text after indexed operand")
				}
				return op, nil
			}
			return operand{}, fmt.Errorf("missing close bracket in indirect operand")
		}
		rest = rest[1:]
		if strings.TrimSpace(rest) != "" {
			return operand{}, fmt.Errorf("extra text after indirect extended operand")
		}
		return operand{mode: ModeIndexed, postbyte: 0x9F, value: v, extra: be16(v.Word)}, nil
	}

	if strings.HasPrefix(rest, ",") {
		op, rest2, err := parseIndexedWithOffset(v, rest[1:], false)
		if err != nil {
			return operand{}, err
		}
		if strings.TrimSpace(rest2) != "" {
			return operand{}, fmt.Errorf("extra text after indexed operand")
		}
		return op, nil
	}
	if strings.TrimSpace(rest) != "" {
		return operand{}, fmt.Errorf("extra text after operand")
	}

	mode := ModeExtended
	if v.Width == 8 || (v.Width == 0 && !v.Unknown && hiByteMatchesDP(ctx, v.Word)) {
		mode = ModeDirect
	}
	return operand{mode: mode, value: v}, nil
}

func hiByteMatchesDP(ctx Context, w uint16) bool {
	return byte(w>>8) == ctx.DP()
}

func consumeCloseBracket(rest string) string {
	rest = strings.TrimLeft(rest, " ")
	if strings.HasPrefix(rest, "]") {
		return rest[1:]
	}
	return rest
}

// parseIndexedNoOffset parses the register (with optional pre-decrement
// prefix or post-increment suffix) following a bare leading comma.
func parseIndexedNoOffset(text string, indirect bool) (operand, string, error) {
	predec := 0
	if strings.HasPrefix(text, "--") {
		predec = 2
		text = text[2:]
	} else if strings.HasPrefix(text, "-") {
		predec = 1
		text = text[1:]
	}

	if len(text) == 0 {
		return operand{}, "", fmt.Errorf("missing register in indexed operand")
	}
	reg := byte(upper(text[0]))
	regBits, ok := indexRegBits[reg]
	if !ok {
		return operand{}, "", fmt.Errorf("invalid index register %q", string(reg))
	}
	text = text[1:]

	postinc := 0
	if predec == 0 {
		if strings.HasPrefix(text, "++") {
			postinc = 2
			text = text[2:]
		} else if strings.HasPrefix(text, "+") {
			postinc = 1
			text = text[1:]
		}
	}

	if predec != 0 && postinc != 0 {
		return operand{}, "", fmt.Errorf("cannot combine pre-decrement and post-increment")
	}

	var post byte
	switch {
	case predec == 2:
		post = 0x83
	case predec == 1:
		post = 0x82
	case postinc == 2:
		post = 0x81
	case postinc == 1:
		post = 0x80
	default:
		post = 0x84
	}

	if indirect && (post == 0x80 || post == 0x82 || post == 0x81) {
		return operand{}, "", fmt.Errorf("illegal indexed addressing mode for indirection")
	}
	if indirect {
		post |= 0x10
	}
	return operand{mode: ModeIndexed, postbyte: regBits | post}, text, nil
}

// parseIndexedWithOffset handles "<expr>,R" / "<expr>,PCR" once the offset
// expression and the register name are both known. Accumulator-offset forms
// ("A,R" / "B,R" / "D,R") are recognized earlier, in parseOperand.
func parseIndexedWithOffset(v Value, text string, indirect bool) (operand, string, error) {
	text = strings.TrimLeft(text, " ")
	if len(text) == 0 {
		return operand{}, "", fmt.Errorf("missing register in indexed operand")
	}

	if upper(text[0]) == 'P' && strings.HasPrefix(strings.ToUpper(text), "PCR") {
		rest := text[3:]
		post := byte(0x8C)
		extra := []byte{byte(v.Word)}
		if v.Width == 16 || v.Unknown || v.Word > 127 && v.Word < 0xFF80 {
			post = 0x8D
			extra = be16(v.Word)
		}
		if indirect {
			post |= 0x10
		}
		return operand{mode: ModeIndexed, postbyte: post, extra: extra, value: v}, rest, nil
	}

	reg := byte(upper(text[0]))
	regBits, ok := indexRegBits[reg]
	if ok {
		rest := text[1:]
		width := v.Width
		if width == 0 {
			if v.Unknown {
				width = 16
			} else if v.Word == 0 {
				width = 5
			} else if v.Word <= 15 || v.Word >= 0xFFF0 {
				width = 5
			} else if v.Word <= 127 || v.Word >= 0xFF80 {
				width = 8
			} else {
				width = 16
			}
		}
		if width == 5 && indirect {
			width = 8
		}

		var post byte
		var extra []byte
		switch width {
		case 5:
			post = 0x00 | (byte(v.Word) & 0x1F)
			if v.Word == 0 {
				post = 0x84
			}
		case 8:
			post = 0x88
			extra = []byte{byte(v.Word)}
		default:
			post = 0x89
			extra = be16(v.Word)
		}
		if indirect && width != 5 {
			post |= 0x10
		}
		return operand{mode: ModeIndexed, postbyte: regBits | post, extra: extra, value: v}, rest, nil
	}

	return operand{}, "", fmt.Errorf("invalid index register %q", string(text[0]))
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}

func be16(w uint16) []byte {
	return []byte{byte(w >> 8), byte(w)}
}

// --- immediate/direct/indexed/extended family (LDA, ADDB, CMPX, ...) ---

func encodeImmDirIdxExt(ctx Context, desc Descriptor, text string) error {
	op, err := parseOperand(ctx, text)
	if err != nil {
		return err
	}
	emitPage(ctx, desc)
	switch op.mode {
	case ModeImmediate:
		ctx.Emit(desc.Base)
		if desc.Wide {
			ctx.Emit(byte(op.value.Word>>8), byte(op.value.Word))
		} else {
			ctx.Emit(byte(op.value.Word))
		}
	case ModeDirect:
		ctx.Emit(desc.Base + 0x10)
		ctx.Emit(byte(op.value.Word))
	case ModeIndexed:
		ctx.Emit(desc.Base + 0x20)
		ctx.Emit(op.postbyte)
		ctx.Emit(op.extra...)
	case ModeExtended:
		ctx.Emit(desc.Base + 0x30)
		ctx.Emit(be16(op.value.Word)...)
	}
	return nil
}

// --- direct/indexed/extended-only family (STA, CLR, JMP, ...) ---

func encodeDirIdxExt(ctx Context, desc Descriptor, text string) error {
	op, err := parseOperand(ctx, text)
	if err != nil {
		return err
	}
	if op.mode == ModeImmediate {
		return fmt.Errorf("immediate addressing not valid for this opcode")
	}
	shiftDir, shiftIdx, shiftExt := byte(0x10), byte(0x20), byte(0x30)
	if desc.Base < 0x80 {
		shiftDir, shiftIdx, shiftExt = 0x00, 0x60, 0x70
	}
	emitPage(ctx, desc)
	switch op.mode {
	case ModeDirect:
		ctx.Emit(desc.Base + shiftDir)
		ctx.Emit(byte(op.value.Word))
	case ModeIndexed:
		ctx.Emit(desc.Base + shiftIdx)
		ctx.Emit(op.postbyte)
		ctx.Emit(op.extra...)
	case ModeExtended:
		ctx.Emit(desc.Base + shiftExt)
		ctx.Emit(be16(op.value.Word)...)
	}
	return nil
}

// --- LEA: indexed-only, reuses the indexed postbyte logic ---

func encodeLEA(ctx Context, desc Descriptor, text string) error {
	op, err := parseOperand(ctx, text)
	if err != nil {
		return err
	}
	if op.mode != ModeIndexed {
		return fmt.Errorf("LEA requires an indexed operand")
	}
	ctx.Emit(desc.Base)
	ctx.Emit(op.postbyte)
	ctx.Emit(op.extra...)
	return nil
}

func emitPage(ctx Context, desc Descriptor) {
	switch desc.Page {
	case 0x10:
		ctx.Emit(0x10)
	case 0x11:
		ctx.Emit(0x11)
	}
}
