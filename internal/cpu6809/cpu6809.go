/*
   a09 - 6809 instruction-level emulator: registers, memory, fault model.

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

// Package cpu6809 steps one Motorola 6809 instruction at a time against a
// flat 64 KiB memory image with a parallel array of per-byte protection
// bits. The decode table is derived at init time from internal/opcode's
// mnemonic table, so every addressing-mode variant the assembler can emit
// is one the CPU can also decode.
package cpu6809

import (
	"fmt"

	"github.com/rcornwell/a09/internal/assert"
	"github.com/rcornwell/a09/internal/opcode"
)

// MemProt is the set of per-byte access rights spec.md's fault model
// checks on every memory operation.
type MemProt struct {
	Read  bool
	Write bool
	Exec  bool
	Tron  bool
	Check bool // an assertion program is attached to this address
}

// ConditionCode holds the 6809's eight condition-code bits.
type ConditionCode struct {
	C, V, Z, N, I, H, F, E bool
}

// Byte packs the condition code into the wire CC byte (E F H I N Z V C,
// bit 7 down to bit 0).
func (cc ConditionCode) Byte() uint8 {
	var b uint8
	if cc.C {
		b |= 0x01
	}
	if cc.V {
		b |= 0x02
	}
	if cc.Z {
		b |= 0x04
	}
	if cc.N {
		b |= 0x08
	}
	if cc.I {
		b |= 0x10
	}
	if cc.H {
		b |= 0x20
	}
	if cc.F {
		b |= 0x40
	}
	if cc.E {
		b |= 0x80
	}
	return b
}

// SetByte unpacks b into the individual condition-code flags.
func (cc *ConditionCode) SetByte(b uint8) {
	cc.C = b&0x01 != 0
	cc.V = b&0x02 != 0
	cc.Z = b&0x04 != 0
	cc.N = b&0x08 != 0
	cc.I = b&0x10 != 0
	cc.H = b&0x20 != 0
	cc.F = b&0x40 != 0
	cc.E = b&0x80 != 0
}

// FaultKind names the taxonomy of faults spec.md §4.10 maps to human
// messages.
type FaultKind int

const (
	FaultInternal FaultKind = iota
	FaultIllegalInstruction
	FaultIllegalAddressingMode
	FaultIllegalRegisterPair
	FaultTestFailed
	FaultNonReadable
	FaultNonExecutable
	FaultNonWritable
)

func (k FaultKind) String() string {
	switch k {
	case FaultInternal:
		return "internal error"
	case FaultIllegalInstruction:
		return "illegal instruction"
	case FaultIllegalAddressingMode:
		return "illegal addressing mode"
	case FaultIllegalRegisterPair:
		return "illegal EXG/TFR pair"
	case FaultTestFailed:
		return "test failed"
	case FaultNonReadable:
		return "non-readable read"
	case FaultNonExecutable:
		return "control into non-executable memory"
	case FaultNonWritable:
		return "non-writable write"
	default:
		return "unknown fault"
	}
}

// Fault is the error type every CPU stop condition is reported as.
type Fault struct {
	Kind FaultKind
	PC   uint16
	Addr uint16
	Msg  string
}

func (f *Fault) Error() string {
	if f.Msg != "" {
		return fmt.Sprintf("%s: %s (PC=%04X addr=%04X)", f.Kind, f.Msg, f.PC, f.Addr)
	}
	return fmt.Sprintf("%s (PC=%04X addr=%04X)", f.Kind, f.PC, f.Addr)
}

// CPU is the register file, memory image, and protection map for one 6809.
type CPU struct {
	A, B           uint8
	DP             uint8
	X, Y, U, S, PC uint16
	CC             ConditionCode

	Mem  [65536]uint8
	Prot [65536]MemProt

	Cycles       uint64
	Instructions uint64

	// OnWarn reports non-fatal conditions (self-modifying code writes).
	OnWarn func(format string, args ...any)
	// OnTrace reports accesses to memory with its Tron bit set.
	OnTrace func(format string, args ...any)
}

// New returns a CPU with an empty memory image and no access rights on any
// byte; callers (the test-code loader) grant rights explicitly as they lay
// down code and data.
func New() *CPU {
	return &CPU{}
}

// D returns the 16-bit A:B accumulator pair.
func (c *CPU) D() uint16 { return uint16(c.A)<<8 | uint16(c.B) }

// SetD stores v into the A:B accumulator pair.
func (c *CPU) SetD(v uint16) {
	c.A = uint8(v >> 8)
	c.B = uint8(v)
}

func (c *CPU) warnf(format string, args ...any) {
	if c.OnWarn != nil {
		c.OnWarn(format, args...)
	}
}

func (c *CPU) trace(addr uint16, verb string) {
	if c.Prot[addr].Tron && c.OnTrace != nil {
		c.OnTrace("%s %04X", verb, addr)
	}
}

func (c *CPU) fetchByte() (uint8, error) {
	addr := c.PC
	if !c.Prot[addr].Read {
		return 0, &Fault{Kind: FaultNonReadable, PC: c.PC, Addr: addr}
	}
	if !c.Prot[addr].Exec {
		return 0, &Fault{Kind: FaultNonExecutable, PC: c.PC, Addr: addr}
	}
	c.trace(addr, "fetch")
	v := c.Mem[addr]
	c.PC++
	return v, nil
}

func (c *CPU) fetchWord() (uint16, error) {
	hi, err := c.fetchByte()
	if err != nil {
		return 0, err
	}
	lo, err := c.fetchByte()
	if err != nil {
		return 0, err
	}
	return uint16(hi)<<8 | uint16(lo), nil
}

func (c *CPU) readByte(addr uint16) (uint8, error) {
	if !c.Prot[addr].Read {
		return 0, &Fault{Kind: FaultNonReadable, PC: c.PC, Addr: addr}
	}
	c.trace(addr, "read")
	return c.Mem[addr], nil
}

func (c *CPU) readWord(addr uint16) (uint16, error) {
	hi, err := c.readByte(addr)
	if err != nil {
		return 0, err
	}
	lo, err := c.readByte(addr + 1)
	if err != nil {
		return 0, err
	}
	return uint16(hi)<<8 | uint16(lo), nil
}

func (c *CPU) writeByte(addr uint16, v uint8) error {
	if !c.Prot[addr].Write {
		return &Fault{Kind: FaultNonWritable, PC: c.PC, Addr: addr}
	}
	if c.Prot[addr].Exec {
		c.warnf("possible self-modifying code @ %04X", c.PC)
	}
	c.trace(addr, "write")
	c.Mem[addr] = v
	return nil
}

func (c *CPU) writeWord(addr uint16, v uint16) error {
	if err := c.writeByte(addr, uint8(v>>8)); err != nil {
		return err
	}
	return c.writeByte(addr+1, uint8(v))
}

func (c *CPU) pushByte(sp *uint16, v uint8) error {
	*sp--
	return c.writeByte(*sp, v)
}

func (c *CPU) pushWord(sp *uint16, v uint16) error {
	if err := c.pushByte(sp, uint8(v)); err != nil {
		return err
	}
	return c.pushByte(sp, uint8(v>>8))
}

func (c *CPU) pullByte(sp *uint16) (uint8, error) {
	v, err := c.readByte(*sp)
	if err != nil {
		return 0, err
	}
	*sp++
	return v, nil
}

func (c *CPU) pullWord(sp *uint16) (uint16, error) {
	hi, err := c.pullByte(sp)
	if err != nil {
		return 0, err
	}
	lo, err := c.pullByte(sp)
	if err != nil {
		return 0, err
	}
	return uint16(hi)<<8 | uint16(lo), nil
}

// Step decodes and executes exactly one instruction, returning a *Fault on
// any stop condition.
func (c *CPU) Step() error {
	start := c.PC
	op, err := c.fetchByte()
	if err != nil {
		return err
	}
	page := byte(0)
	if op == 0x10 || op == 0x11 {
		page = op
		op, err = c.fetchByte()
		if err != nil {
			return err
		}
	}
	e, ok := decodeTable[tableKey(page, op)]
	if !ok {
		return &Fault{Kind: FaultIllegalInstruction, PC: start, Msg: fmt.Sprintf("opcode %02X %02X", page, op)}
	}
	c.Instructions++
	c.Cycles += uint64(cyclesFor(e))
	return c.exec(e)
}

func tableKey(page, op byte) uint16 { return uint16(page)<<8 | uint16(op) }

// entry is one decode-table slot: the mnemonic, its shape, and — for the
// multi-mode shapes — which addressing mode this particular byte selects.
type entry struct {
	mnemonic string
	shape    opcode.Shape
	mode     opcode.AddrMode
	wide     bool
}

var decodeTable map[uint16]entry

func init() {
	decodeTable = make(map[uint16]entry, 256)
	for _, d := range opcode.Table() {
		switch d.Shape {
		case opcode.ShapeInherent, opcode.ShapeBranch, opcode.ShapeLongBranch,
			opcode.ShapeLEA, opcode.ShapePushPull, opcode.ShapeExchange,
			opcode.ShapeANDCC, opcode.ShapeORCC:
			decodeTable[tableKey(d.Page, d.Base)] = entry{d.Mnemonic, d.Shape, opcode.ModeInherent, d.Wide}

		case opcode.ShapeImmDirIdxExt:
			decodeTable[tableKey(d.Page, d.Base)] = entry{d.Mnemonic, d.Shape, opcode.ModeImmediate, d.Wide}
			decodeTable[tableKey(d.Page, d.Base+0x10)] = entry{d.Mnemonic, d.Shape, opcode.ModeDirect, d.Wide}
			decodeTable[tableKey(d.Page, d.Base+0x20)] = entry{d.Mnemonic, d.Shape, opcode.ModeIndexed, d.Wide}
			decodeTable[tableKey(d.Page, d.Base+0x30)] = entry{d.Mnemonic, d.Shape, opcode.ModeExtended, d.Wide}

		case opcode.ShapeDirIdxExt:
			shiftDir, shiftIdx, shiftExt := byte(0x10), byte(0x20), byte(0x30)
			if d.Base < 0x80 {
				shiftDir, shiftIdx, shiftExt = 0x00, 0x60, 0x70
			}
			decodeTable[tableKey(d.Page, d.Base+shiftDir)] = entry{d.Mnemonic, d.Shape, opcode.ModeDirect, d.Wide}
			decodeTable[tableKey(d.Page, d.Base+shiftIdx)] = entry{d.Mnemonic, d.Shape, opcode.ModeIndexed, d.Wide}
			decodeTable[tableKey(d.Page, d.Base+shiftExt)] = entry{d.Mnemonic, d.Shape, opcode.ModeExtended, d.Wide}
		}
	}
}

// cyclesFor is a coarse per-shape cycle estimate, not a cycle-exact model:
// spec.md's TIMEON/TIMEOFF only needs a monotonically accumulating counter
// for relative before/after comparisons, not bus-accurate timing.
func cyclesFor(e entry) int {
	switch e.shape {
	case opcode.ShapeInherent:
		return 2
	case opcode.ShapeImmDirIdxExt:
		switch e.mode {
		case opcode.ModeImmediate:
			return 2
		case opcode.ModeDirect:
			return 4
		case opcode.ModeIndexed:
			return 4
		default:
			return 5
		}
	case opcode.ShapeDirIdxExt:
		return 6
	case opcode.ShapeBranch:
		return 3
	case opcode.ShapeLongBranch:
		return 5
	case opcode.ShapeLEA:
		return 4
	case opcode.ShapePushPull:
		return 5
	case opcode.ShapeExchange:
		return 6
	case opcode.ShapeANDCC, opcode.ShapeORCC:
		return 3
	default:
		return 2
	}
}

// exec dispatches e to the handler for its shape.
func (c *CPU) exec(e entry) error {
	switch e.shape {
	case opcode.ShapeInherent:
		return c.execInherent(e)
	case opcode.ShapeImmDirIdxExt:
		return c.execImmDirIdxExt(e)
	case opcode.ShapeDirIdxExt:
		return c.execDirIdxExt(e)
	case opcode.ShapeBranch:
		return c.execBranch(e)
	case opcode.ShapeLongBranch:
		return c.execLongBranch(e)
	case opcode.ShapeLEA:
		return c.execLEA(e)
	case opcode.ShapePushPull:
		return c.execPushPull(e)
	case opcode.ShapeExchange:
		return c.execExchange(e)
	case opcode.ShapeANDCC, opcode.ShapeORCC:
		return c.execCCOp(e)
	default:
		return &Fault{Kind: FaultInternal, PC: c.PC, Msg: "unhandled opcode shape"}
	}
}

// effectiveAddress resolves e's addressing mode to a memory address,
// consuming whatever operand bytes that mode requires from the PC stream.
// ModeImmediate has no address and must be handled by the caller instead.
func (c *CPU) effectiveAddress(mode opcode.AddrMode) (uint16, error) {
	switch mode {
	case opcode.ModeDirect:
		lo, err := c.fetchByte()
		if err != nil {
			return 0, err
		}
		return uint16(c.DP)<<8 | uint16(lo), nil
	case opcode.ModeExtended:
		return c.fetchWord()
	case opcode.ModeIndexed:
		return c.decodeIndexed()
	default:
		return 0, &Fault{Kind: FaultIllegalAddressingMode, PC: c.PC}
	}
}

var indexRegPtr = map[byte]func(*CPU) *uint16{
	0x00: func(c *CPU) *uint16 { return &c.X },
	0x20: func(c *CPU) *uint16 { return &c.Y },
	0x40: func(c *CPU) *uint16 { return &c.U },
	0x60: func(c *CPU) *uint16 { return &c.S },
}

// decodeIndexed implements the postbyte encoding parseIndexedNoOffset/
// parseIndexedWithOffset in internal/opcode produce, in reverse.
func (c *CPU) decodeIndexed() (uint16, error) {
	post, err := c.fetchByte()
	if err != nil {
		return 0, err
	}
	regSel := post & 0x60
	regPtr := indexRegPtr[regSel](c)
	indirect := post&0x10 != 0 && post&0x80 != 0

	var addr uint16
	if post&0x80 == 0 {
		// 5-bit constant offset, no indirection possible.
		offset := int8(post << 3) >> 3
		addr = uint16(int32(*regPtr) + int32(offset))
		return addr, nil
	}

	switch post & 0x0f {
	case 0x00: // ,R+
		addr = *regPtr
		*regPtr++
	case 0x01: // ,R++
		addr = *regPtr
		*regPtr += 2
	case 0x02: // ,-R
		*regPtr--
		addr = *regPtr
	case 0x03: // ,--R
		*regPtr -= 2
		addr = *regPtr
	case 0x04: // ,R
		addr = *regPtr
	case 0x05: // A,R
		addr = uint16(int32(*regPtr) + int32(int8(c.A)))
	case 0x06: // B,R
		addr = uint16(int32(*regPtr) + int32(int8(c.B)))
	case 0x08: // 8-bit offset,R
		off, err := c.fetchByte()
		if err != nil {
			return 0, err
		}
		addr = uint16(int32(*regPtr) + int32(int8(off)))
	case 0x09: // 16-bit offset,R
		off, err := c.fetchWord()
		if err != nil {
			return 0, err
		}
		addr = uint16(int32(*regPtr) + int32(int16(off)))
	case 0x0b: // D,R
		addr = uint16(int32(*regPtr) + int32(int16(c.D())))
	case 0x0c: // 8-bit offset,PC
		off, err := c.fetchByte()
		if err != nil {
			return 0, err
		}
		addr = uint16(int32(c.PC) + int32(int8(off)))
	case 0x0d: // 16-bit offset,PC
		off, err := c.fetchWord()
		if err != nil {
			return 0, err
		}
		addr = uint16(int32(c.PC) + int32(int16(off)))
	case 0x0f: // [,address] extended indirect
		ptr, err := c.fetchWord()
		if err != nil {
			return 0, err
		}
		addr = ptr
	default:
		return 0, &Fault{Kind: FaultIllegalAddressingMode, PC: c.PC}
	}

	if indirect {
		return c.readWord(addr)
	}
	return addr, nil
}

// Register satisfies assert.Machine: resolves a CPU-register opcode to its
// current value.
func (c *CPU) Register(op assert.Op) uint16 {
	switch op {
	case assert.OpCPUCC:
		return uint16(c.CC.Byte())
	case assert.OpCPUCCc:
		return boolWord(c.CC.C)
	case assert.OpCPUCCv:
		return boolWord(c.CC.V)
	case assert.OpCPUCCz:
		return boolWord(c.CC.Z)
	case assert.OpCPUCCn:
		return boolWord(c.CC.N)
	case assert.OpCPUCCi:
		return boolWord(c.CC.I)
	case assert.OpCPUCCh:
		return boolWord(c.CC.H)
	case assert.OpCPUCCf:
		return boolWord(c.CC.F)
	case assert.OpCPUCCe:
		return boolWord(c.CC.E)
	case assert.OpCPUA:
		return uint16(c.A)
	case assert.OpCPUB:
		return uint16(c.B)
	case assert.OpCPUDP:
		return uint16(c.DP)
	case assert.OpCPUD:
		return c.D()
	case assert.OpCPUX:
		return c.X
	case assert.OpCPUY:
		return c.Y
	case assert.OpCPUU:
		return c.U
	case assert.OpCPUS:
		return c.S
	case assert.OpCPUPC:
		return c.PC
	default:
		return 0
	}
}

func boolWord(b bool) uint16 {
	if b {
		return 1
	}
	return 0
}

// ReadByte satisfies assert.Machine with an unprotected peek (assertions
// run between instructions, with full visibility into the image).
func (c *CPU) ReadByte(addr uint16) uint8 { return c.Mem[addr] }

// WriteByte satisfies assert.Machine with an unprotected poke.
func (c *CPU) WriteByte(addr uint16, v uint8) { c.Mem[addr] = v }

// SetProt satisfies assert.Machine's VM_PROT opcode.
func (c *CPU) SetProt(low, high uint16, bits assert.Prot) {
	for a := uint32(low); a <= uint32(high); a++ {
		c.Prot[uint16(a)] = MemProt{Read: bits.Read, Write: bits.Write, Exec: bits.Exec, Tron: bits.Tron}
		if a == uint32(high) {
			break
		}
	}
}

// ResetTimer satisfies assert.Machine's TIMEON.
func (c *CPU) ResetTimer() {
	c.Cycles = 0
	c.Instructions = 0
}

// ReportTimer satisfies assert.Machine's TIMEOFF.
func (c *CPU) ReportTimer(tag string) {
	cpi := float64(0)
	if c.Instructions > 0 {
		cpi = float64(c.Cycles) / float64(c.Instructions)
	}
	fmt.Printf("%s: cycles=%d instructions=%d cpi=%.2f\n", tag, c.Cycles, c.Instructions, cpi)
}
