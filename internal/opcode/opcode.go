/*
   a09 - 6809 opcode descriptor table and encoder dispatch.

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

// Package opcode holds the 6809 mnemonic table and the addressing-mode
// encoders each opcode shape dispatches to. To avoid an import cycle with
// the assembler (which needs the table, while handlers need the assembler's
// PC/DP/symbol/expression/emit services), encoders talk to their caller only
// through the Context interface defined here; internal/assembler implements it.
package opcode

import "fmt"

// Shape selects which addressing-mode family an opcode's handler belongs to.
type Shape int

const (
	ShapeInherent    Shape = iota // ABX, NOP, RTS, SWI, ...
	ShapeImmDirIdxExt             // op_idie: LDA, ADDB, CMPX, ...
	ShapeDirIdxExt                // op_die: CLR, NEG, STA, JMP, ...
	ShapeBranch                   // op_br: short, 8-bit PC-relative
	ShapeLongBranch                // op_lbr: 16-bit PC-relative
	ShapeLEA                       // op_lea: indexed-only, loads effective address
	ShapePushPull                   // op_pshpul: PSHS/PSHU/PULS/PULU
	ShapeExchange                    // op_exg: EXG, TFR
	ShapeANDCC                        // op_andcc: ANDCC, CWAI (stores complement)
	ShapeORCC                          // op_orcc: ORCC (stores value directly)
)

// Descriptor is one entry in the mnemonic table.
type Descriptor struct {
	Mnemonic string
	Shape    Shape
	Base     byte // base opcode byte (the 8-bit-immediate/direct form, where applicable)
	Page     byte // page-prefix byte: 0x00 (none), 0x10, or 0x11
	Wide     bool // operates on a 16-bit register / emits a 16-bit operand
}

// AddrMode is the addressing mode selected by the operand parser.
type AddrMode int

const (
	ModeInherent AddrMode = iota
	ModeImmediate
	ModeDirect
	ModeIndexed
	ModeExtended
	ModeBranch
)

// Context is the set of assembler services an encoder needs: PC/DP state,
// expression evaluation, byte emission, and diagnostics. Implemented by
// internal/assembler.Assembler.
type Context interface {
	Pass() int
	PC() uint16
	DP() uint8
	// Eval evaluates the leading expression in operand and returns its value
	// together with the unconsumed remainder of operand.
	Eval(operand string) (Value, string, error)
	Emit(b ...byte)
	Warnf(tag int, format string, args ...interface{}) bool
	Errorf(tag int, format string, args ...interface{}) error
}

// Value mirrors internal/expr.Value's shape without importing it directly,
// so opcode's Context boundary stays a pure interface; internal/assembler's
// Eval implementation adapts an expr.Value into this struct.
type Value struct {
	Word    uint16
	Width   int // 0 unspecified, else 5/8/16
	Unknown bool
	Defined bool
}

// table is keyed by upper-case mnemonic. Reconstructed in full from the
// reference 6809 assembler's opcode table (pseudo-ops live in internal/pseudo
// and are not duplicated here).
var table = map[string]Descriptor{
	"ABX":  {"ABX", ShapeInherent, 0x3A, 0x00, false},
	"ADCA": {"ADCA", ShapeImmDirIdxExt, 0x89, 0x00, false},
	"ADCB": {"ADCB", ShapeImmDirIdxExt, 0xC9, 0x00, false},
	"ADDA": {"ADDA", ShapeImmDirIdxExt, 0x8B, 0x00, false},
	"ADDB": {"ADDB", ShapeImmDirIdxExt, 0xCB, 0x00, false},
	"ADDD": {"ADDD", ShapeImmDirIdxExt, 0xC3, 0x00, true},
	"ANDA": {"ANDA", ShapeImmDirIdxExt, 0x84, 0x00, false},
	"ANDB": {"ANDB", ShapeImmDirIdxExt, 0xC4, 0x00, false},
	"ANDCC": {"ANDCC", ShapeANDCC, 0x1C, 0x00, false},
	"ASL":  {"ASL", ShapeDirIdxExt, 0x08, 0x00, false},
	"ASLA": {"ASLA", ShapeInherent, 0x48, 0x00, false},
	"ASLB": {"ASLB", ShapeInherent, 0x58, 0x00, false},
	"ASR":  {"ASR", ShapeDirIdxExt, 0x07, 0x00, false},
	"ASRA": {"ASRA", ShapeInherent, 0x47, 0x00, false},
	"ASRB": {"ASRB", ShapeInherent, 0x57, 0x00, false},
	"BCC":  {"BCC", ShapeBranch, 0x24, 0x00, false},
	"BCS":  {"BCS", ShapeBranch, 0x25, 0x00, false},
	"BEQ":  {"BEQ", ShapeBranch, 0x27, 0x00, false},
	"BGE":  {"BGE", ShapeBranch, 0x2C, 0x00, false},
	"BGT":  {"BGT", ShapeBranch, 0x2E, 0x00, false},
	"BHI":  {"BHI", ShapeBranch, 0x22, 0x00, false},
	"BHS":  {"BHS", ShapeBranch, 0x24, 0x00, false},
	"BITA": {"BITA", ShapeImmDirIdxExt, 0x85, 0x00, false},
	"BITB": {"BITB", ShapeImmDirIdxExt, 0xC5, 0x00, false},
	"BLE":  {"BLE", ShapeBranch, 0x2F, 0x00, false},
	"BLO":  {"BLO", ShapeBranch, 0x25, 0x00, false},
	"BLS":  {"BLS", ShapeBranch, 0x23, 0x00, false},
	"BLT":  {"BLT", ShapeBranch, 0x2D, 0x00, false},
	"BMI":  {"BMI", ShapeBranch, 0x2B, 0x00, false},
	"BNE":  {"BNE", ShapeBranch, 0x26, 0x00, false},
	"BPL":  {"BPL", ShapeBranch, 0x2A, 0x00, false},
	"BRA":  {"BRA", ShapeBranch, 0x20, 0x00, false},
	"BRN":  {"BRN", ShapeBranch, 0x21, 0x00, false},
	"BSR":  {"BSR", ShapeBranch, 0x8D, 0x00, false},
	"BVC":  {"BVC", ShapeBranch, 0x28, 0x00, false},
	"BVS":  {"BVS", ShapeBranch, 0x29, 0x00, false},
	"CLR":  {"CLR", ShapeDirIdxExt, 0x0F, 0x00, false},
	"CLRA": {"CLRA", ShapeInherent, 0x4F, 0x00, false},
	"CLRB": {"CLRB", ShapeInherent, 0x5F, 0x00, false},
	"CMPA": {"CMPA", ShapeImmDirIdxExt, 0x81, 0x00, false},
	"CMPB": {"CMPB", ShapeImmDirIdxExt, 0xC1, 0x00, false},
	"CMPD": {"CMPD", ShapeImmDirIdxExt, 0x83, 0x10, true},
	"CMPS": {"CMPS", ShapeImmDirIdxExt, 0x8C, 0x11, true},
	"CMPU": {"CMPU", ShapeImmDirIdxExt, 0x83, 0x11, true},
	"CMPX": {"CMPX", ShapeImmDirIdxExt, 0x8C, 0x00, true},
	"CMPY": {"CMPY", ShapeImmDirIdxExt, 0x8C, 0x10, true},
	"COM":  {"COM", ShapeDirIdxExt, 0x03, 0x00, false},
	"COMA": {"COMA", ShapeInherent, 0x43, 0x00, false},
	"COMB": {"COMB", ShapeInherent, 0x53, 0x00, false},
	"CWAI": {"CWAI", ShapeANDCC, 0x3C, 0x00, false},
	"DAA":  {"DAA", ShapeInherent, 0x19, 0x00, false},
	"DEC":  {"DEC", ShapeDirIdxExt, 0x0A, 0x00, false},
	"DECA": {"DECA", ShapeInherent, 0x4A, 0x00, false},
	"DECB": {"DECB", ShapeInherent, 0x5A, 0x00, false},
	"EORA": {"EORA", ShapeImmDirIdxExt, 0x88, 0x00, false},
	"EORB": {"EORB", ShapeImmDirIdxExt, 0xC8, 0x00, false},
	"EXG":  {"EXG", ShapeExchange, 0x1E, 0x00, false},
	"INC":  {"INC", ShapeDirIdxExt, 0x0C, 0x00, false},
	"INCA": {"INCA", ShapeInherent, 0x4C, 0x00, false},
	"INCB": {"INCB", ShapeInherent, 0x5C, 0x00, false},
	"JMP":  {"JMP", ShapeDirIdxExt, 0x0E, 0x00, false},
	"JSR":  {"JSR", ShapeDirIdxExt, 0x8D, 0x00, false},
	"LBCC": {"LBCC", ShapeLongBranch, 0x24, 0x10, true},
	"LBCS": {"LBCS", ShapeLongBranch, 0x25, 0x10, true},
	"LBEQ": {"LBEQ", ShapeLongBranch, 0x27, 0x10, true},
	"LBGE": {"LBGE", ShapeLongBranch, 0x2C, 0x10, true},
	"LBGT": {"LBGT", ShapeLongBranch, 0x2E, 0x10, true},
	"LBHI": {"LBHI", ShapeLongBranch, 0x22, 0x10, true},
	"LBHS": {"LBHS", ShapeLongBranch, 0x24, 0x10, true},
	"LBLE": {"LBLE", ShapeLongBranch, 0x2F, 0x10, true},
	"LBLO": {"LBLO", ShapeLongBranch, 0x25, 0x10, true},
	"LBLS": {"LBLS", ShapeLongBranch, 0x23, 0x10, true},
	"LBLT": {"LBLT", ShapeLongBranch, 0x2D, 0x10, true},
	"LBMI": {"LBMI", ShapeLongBranch, 0x2B, 0x10, true},
	"LBNE": {"LBNE", ShapeLongBranch, 0x26, 0x10, true},
	"LBPL": {"LBPL", ShapeLongBranch, 0x2A, 0x10, true},
	"LBRA": {"LBRA", ShapeLongBranch, 0x16, 0x00, true},
	"LBRN": {"LBRN", ShapeLongBranch, 0x21, 0x10, true},
	"LBSR": {"LBSR", ShapeLongBranch, 0x17, 0x00, true},
	"LBVC": {"LBVC", ShapeLongBranch, 0x28, 0x10, true},
	"LBVS": {"LBVS", ShapeLongBranch, 0x29, 0x10, true},
	"LDA":  {"LDA", ShapeImmDirIdxExt, 0x86, 0x00, false},
	"LDB":  {"LDB", ShapeImmDirIdxExt, 0xC6, 0x00, false},
	"LDD":  {"LDD", ShapeImmDirIdxExt, 0xCC, 0x00, true},
	"LDS":  {"LDS", ShapeImmDirIdxExt, 0xCE, 0x10, true},
	"LDU":  {"LDU", ShapeImmDirIdxExt, 0xCE, 0x00, true},
	"LDX":  {"LDX", ShapeImmDirIdxExt, 0x8E, 0x00, true},
	"LDY":  {"LDY", ShapeImmDirIdxExt, 0x8E, 0x10, true},
	"LEAS": {"LEAS", ShapeLEA, 0x32, 0x00, true},
	"LEAU": {"LEAU", ShapeLEA, 0x33, 0x00, true},
	"LEAX": {"LEAX", ShapeLEA, 0x30, 0x00, true},
	"LEAY": {"LEAY", ShapeLEA, 0x31, 0x00, true},
	"LSL":  {"LSL", ShapeDirIdxExt, 0x08, 0x00, false},
	"LSLA": {"LSLA", ShapeInherent, 0x48, 0x00, false},
	"LSLB": {"LSLB", ShapeInherent, 0x58, 0x00, false},
	"LSR":  {"LSR", ShapeDirIdxExt, 0x04, 0x00, false},
	"LSRA": {"LSRA", ShapeInherent, 0x44, 0x00, false},
	"LSRB": {"LSRB", ShapeInherent, 0x54, 0x00, false},
	"MUL":  {"MUL", ShapeInherent, 0x3D, 0x00, false},
	"NEG":  {"NEG", ShapeDirIdxExt, 0x00, 0x00, false},
	"NEGA": {"NEGA", ShapeInherent, 0x40, 0x00, false},
	"NEGB": {"NEGB", ShapeInherent, 0x50, 0x00, false},
	"NOP":  {"NOP", ShapeInherent, 0x12, 0x00, false},
	"ORA":  {"ORA", ShapeImmDirIdxExt, 0x8A, 0x00, false},
	"ORB":  {"ORB", ShapeImmDirIdxExt, 0xCA, 0x00, false},
	"ORCC": {"ORCC", ShapeORCC, 0x1A, 0x00, false},
	"PSHS": {"PSHS", ShapePushPull, 0x34, 0x00, false},
	"PSHU": {"PSHU", ShapePushPull, 0x36, 0x00, false},
	"PULS": {"PULS", ShapePushPull, 0x35, 0x00, false},
	"PULU": {"PULU", ShapePushPull, 0x37, 0x00, false},
	"ROL":  {"ROL", ShapeDirIdxExt, 0x09, 0x00, false},
	"ROLA": {"ROLA", ShapeInherent, 0x49, 0x00, false},
	"ROLB": {"ROLB", ShapeInherent, 0x59, 0x00, false},
	"ROR":  {"ROR", ShapeDirIdxExt, 0x06, 0x00, false},
	"RORA": {"RORA", ShapeInherent, 0x46, 0x00, false},
	"RORB": {"RORB", ShapeInherent, 0x56, 0x00, false},
	"RTI":  {"RTI", ShapeInherent, 0x3B, 0x00, false},
	"RTS":  {"RTS", ShapeInherent, 0x39, 0x00, false},
	"SBCA": {"SBCA", ShapeImmDirIdxExt, 0x82, 0x00, false},
	"SBCB": {"SBCB", ShapeImmDirIdxExt, 0xC2, 0x00, false},
	"SEX":  {"SEX", ShapeInherent, 0x1D, 0x00, false},
	"STA":  {"STA", ShapeDirIdxExt, 0x87, 0x00, false},
	"STB":  {"STB", ShapeDirIdxExt, 0xC7, 0x00, false},
	"STD":  {"STD", ShapeDirIdxExt, 0xCD, 0x00, true},
	"STS":  {"STS", ShapeDirIdxExt, 0xCF, 0x10, true},
	"STU":  {"STU", ShapeDirIdxExt, 0xCF, 0x00, true},
	"STX":  {"STX", ShapeDirIdxExt, 0x8F, 0x00, true},
	"STY":  {"STY", ShapeDirIdxExt, 0x8F, 0x10, true},
	"SUBA": {"SUBA", ShapeImmDirIdxExt, 0x80, 0x00, false},
	"SUBB": {"SUBB", ShapeImmDirIdxExt, 0xC0, 0x00, false},
	"SUBD": {"SUBD", ShapeImmDirIdxExt, 0x83, 0x00, true},
	"SWI":  {"SWI", ShapeInherent, 0x3F, 0x00, false},
	"SWI2": {"SWI2", ShapeInherent, 0x3F, 0x10, false},
	"SWI3": {"SWI3", ShapeInherent, 0x3F, 0x11, false},
	"SYNC": {"SYNC", ShapeInherent, 0x13, 0x00, false},
	"TFR":  {"TFR", ShapeExchange, 0x1F, 0x00, false},
	"TST":  {"TST", ShapeDirIdxExt, 0x0D, 0x00, false},
	"TSTA": {"TSTA", ShapeInherent, 0x4D, 0x00, false},
	"TSTB": {"TSTB", ShapeInherent, 0x5D, 0x00, false},
}

// Lookup returns the descriptor for mnemonic (case-sensitive upper-case, the
// form the lexer hands every mnemonic through).
func Lookup(mnemonic string) (Descriptor, bool) {
	d, ok := table[mnemonic]
	return d, ok
}

// Table returns a copy of the full mnemonic table, for callers (the CPU
// decoder) that need to derive opcode bytes for every addressing-mode
// variant rather than look up one mnemonic at a time.
func Table() map[string]Descriptor {
	out := make(map[string]Descriptor, len(table))
	for k, v := range table {
		out[k] = v
	}
	return out
}

// Encode dispatches desc's shape to its handler, consuming operand and
// emitting bytes through ctx.
func Encode(ctx Context, desc Descriptor, operand string) error {
	switch desc.Shape {
	case ShapeInherent:
		return encodeInherent(ctx, desc)
	case ShapeImmDirIdxExt:
		return encodeImmDirIdxExt(ctx, desc, operand)
	case ShapeDirIdxExt:
		return encodeDirIdxExt(ctx, desc, operand)
	case ShapeBranch:
		return encodeBranch(ctx, desc, operand)
	case ShapeLongBranch:
		return encodeLongBranch(ctx, desc, operand)
	case ShapeLEA:
		return encodeLEA(ctx, desc, operand)
	case ShapePushPull:
		return encodePushPull(ctx, desc, operand)
	case ShapeExchange:
		return encodeExchange(ctx, desc, operand)
	case ShapeANDCC, ShapeORCC:
		return encodeCCOp(ctx, desc, operand)
	default:
		return fmt.Errorf("internal error: unhandled opcode shape for %s", desc.Mnemonic)
	}
}
