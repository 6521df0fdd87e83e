/*
   a09 - Assertion-expression compiler and stack VM.

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

// Package assert compiles ".ASSERT" expressions into a small stack-machine
// bytecode and runs that bytecode against a live CPU/memory image. The
// expression grammar is the integer expression grammar of package expr,
// extended with CPU register references, memory dereferences, and string
// comparisons against the machine's stack.
package assert

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Op is one stack-machine instruction. The first 19 values intentionally
// share their numbering with the binary operators of package expr, so a
// table-driven disassembler can print either stream with one table.
type Op uint16

const (
	OpLor Op = iota
	OpLand
	OpGt
	OpGe
	OpEq
	OpLe
	OpLt
	OpNe
	OpBor
	OpBeor
	OpBand
	OpShr
	OpShl
	OpSub
	OpAdd
	OpMul
	OpDiv
	OpMod
	OpExp

	OpNeg
	OpNot
	OpLit // followed by one literal word
	OpAt8
	OpAt16
	OpCPUCC
	OpCPUCCc
	OpCPUCCv
	OpCPUCCz
	OpCPUCCn
	OpCPUCCi
	OpCPUCCh
	OpCPUCCf
	OpCPUCCe
	OpCPUA
	OpCPUB
	OpCPUDP
	OpCPUD
	OpCPUX
	OpCPUY
	OpCPUU
	OpCPUS
	OpCPUPC
	OpIdx // "/offset,x" == "(/x + offset)"
	OpIdy
	OpIds
	OpIdu
	OpScmp
	OpSex
	OpTimeOn
	OpTimeOff
	OpFalse
	OpTrue
	OpTo8
	OpTo16
	OpProt
	OpExit
)

// Program is a compiled assertion: a flat stream of Op values, literals
// stored inline immediately after the OpLit that introduces them.
type Program []Op

// MaxDepth is the stack-machine's value-stack depth, matching the 15-slot
// operand stack of the integer expression evaluator.
const MaxDepth = 15

// MaxProgram bounds a single compiled assertion's instruction count.
const MaxProgram = 64

// Prot is the set of per-byte memory-protection bits VM_PROT can apply to
// a range.
type Prot struct {
	Read  bool
	Write bool
	Exec  bool
	Tron  bool
}

// Context resolves the compile-time environment an assertion expression is
// compiled against: the symbol table, the stored-fill byte, and a place to
// stash string-literal bytes for later SCMP comparisons.
type Context interface {
	// Lookup returns the named symbol's value. ok is false if undefined.
	Lookup(name string) (uint16, bool)
	// FillByte returns the value '?' evaluates to: the memory fill byte.
	FillByte() uint8
	// StoreString copies s into the test memory image below the current
	// stack-allocation pointer and returns its address and length.
	StoreString(s string) (addr uint16, length uint16)
}

// Machine is the runtime an assertion program executes against: the 6809
// register file and the byte-addressable memory image.
type Machine interface {
	ReadByte(addr uint16) uint8
	WriteByte(addr uint16, v uint8)
	// Register returns the value a CPU-register opcode (OpCPUA..OpCPUPC)
	// resolves to.
	Register(op Op) uint16
	// SetProt applies bits to every byte in [low, high].
	SetProt(low, high uint16, bits Prot)
	// ResetTimer zeroes the cycle/instruction counters TIMEON/TIMEOFF report.
	ResetTimer()
	// ReportTimer prints the accumulated cycle count under tag.
	ReportTimer(tag string)
}

var errTooComplex = errors.New("expression too complex")

// compiler holds the mutable state of one Compile call.
type compiler struct {
	ctx  Context
	text string
	pos  int
}

// Compile compiles text (the operand of an .ASSERT, .PROT, POKE, or similar
// directive) into a Program ending in OpExit, and returns the unconsumed
// remainder of text.
func Compile(text string, ctx Context) (Program, string, error) {
	c := &compiler{ctx: ctx, text: text}
	prog, err := c.expr()
	if err != nil {
		return nil, "", err
	}
	prog = append(prog, OpExit)
	if len(prog) > MaxProgram {
		return nil, "", errTooComplex
	}
	return prog, c.text[c.pos:], nil
}

type operator struct {
	sym  string
	prec int
	op   Op
}

// binaryOps mirrors package expr's precedence table symbol-for-symbol, with
// the operand codes emitted instead of being reduced immediately.
var binaryOps = []operator{
	{"**", 1000, OpExp},
	{"*", 900, OpMul},
	{"/", 900, OpDiv},
	{"%", 900, OpMod},
	{"+", 800, OpAdd},
	{"-", 800, OpSub},
	{"<<", 700, OpShl},
	{">>", 700, OpShr},
	{"&&", 200, OpLand},
	{"&", 600, OpBand},
	{"^", 500, OpBeor},
	{"||", 100, OpLor},
	{"|", 400, OpBor},
	{"<>", 300, OpNe},
	{"<=", 300, OpLe},
	{"<", 300, OpLt},
	{">=", 300, OpGe},
	{">", 300, OpGt},
	{"=", 300, OpEq},
}

func matchOp(rest string) (operator, bool) {
	var best operator
	bestLen := 0
	for _, op := range binaryOps {
		if strings.HasPrefix(rest, op.sym) && len(op.sym) > bestLen {
			best = op
			bestLen = len(op.sym)
		}
	}
	return best, bestLen > 0
}

func (c *compiler) peek() byte {
	if c.pos >= len(c.text) {
		return 0
	}
	return c.text[c.pos]
}

func (c *compiler) peekAt(n int) byte {
	if c.pos+n >= len(c.text) {
		return 0
	}
	return c.text[c.pos+n]
}

func (c *compiler) skipSpace() {
	for c.pos < len(c.text) && c.text[c.pos] == ' ' {
		c.pos++
	}
}

// expr runs a shunting-yard reduction over the factor/operator stream,
// emitting opcodes in postfix order as operators pop off the stack.
func (c *compiler) expr() (Program, error) {
	var prog Program
	var ops []operator

	first, err := c.factor()
	if err != nil {
		return nil, err
	}
	prog = append(prog, first...)

	for {
		c.skipSpace()
		op, ok := matchOp(c.text[c.pos:])
		if !ok {
			break
		}
		for len(ops) > 0 && ops[len(ops)-1].prec >= op.prec {
			prog = append(prog, ops[len(ops)-1].op)
			ops = ops[:len(ops)-1]
		}
		ops = append(ops, op)
		c.pos += len(op.sym)

		f, err := c.factor()
		if err != nil {
			return nil, err
		}
		prog = append(prog, f...)
	}

	for len(ops) > 0 {
		prog = append(prog, ops[len(ops)-1].op)
		ops = ops[:len(ops)-1]
	}
	if len(prog) > MaxProgram {
		return nil, errTooComplex
	}
	return prog, nil
}

// factor parses one unary-prefixed, optionally dereferenced term: a
// register reference, a parenthesized sub-expression, or a plain value.
func (c *compiler) factor() (Program, error) {
	c.skipSpace()
	neg, not := false, false
loop:
	for {
		switch c.peek() {
		case '-':
			neg = !neg
			c.pos++
		case '~':
			not = !not
			c.pos++
		case '+':
			c.pos++
		default:
			break loop
		}
		c.skipSpace()
	}

	fetch := 0 // 0 none, 8 byte, 16 word
	if c.peek() == '@' {
		c.pos++
		if c.peek() == '@' {
			c.pos++
			fetch = 16
		} else {
			fetch = 8
		}
		c.skipSpace()
	}

	var prog Program
	switch {
	case c.peek() == '(':
		c.pos++
		sub, err := c.expr()
		if err != nil {
			return nil, err
		}
		prog = append(prog, sub...)
		c.skipSpace()
		if c.peek() != ')' {
			return nil, errors.New("missing close parenthesis")
		}
		c.pos++
	case c.peek() == '/':
		c.pos++
		reg, err := c.register()
		if err != nil {
			return nil, err
		}
		prog = append(prog, reg...)
	default:
		v, err := c.value()
		if err != nil {
			return nil, err
		}
		prog = append(prog, v...)
	}

	switch fetch {
	case 8:
		prog = append(prog, OpAt8)
	case 16:
		prog = append(prog, OpAt16)
	}
	if neg {
		prog = append(prog, OpNeg)
	}
	if not {
		prog = append(prog, OpNot)
	}
	return prog, nil
}

// registers maps a register name (upper-cased) to the opcode that pushes
// its value.
var registers = map[string]Op{
	"A":    OpCPUA,
	"B":    OpCPUB,
	"CC":   OpCPUCC,
	"CC.C": OpCPUCCc,
	"CC.E": OpCPUCCe,
	"CC.F": OpCPUCCf,
	"CC.H": OpCPUCCh,
	"CC.I": OpCPUCCi,
	"CC.N": OpCPUCCn,
	"CC.V": OpCPUCCv,
	"CC.Z": OpCPUCCz,
	"D":    OpCPUD,
	"DP":   OpCPUDP,
	"PC":   OpCPUPC,
	"S":    OpCPUS,
	"U":    OpCPUU,
	"X":    OpCPUX,
	"Y":    OpCPUY,
}

var indexOps = map[Op]Op{
	OpCPUX: OpIdx,
	OpCPUY: OpIdy,
	OpCPUS: OpIds,
	OpCPUU: OpIdu,
}

// register compiles the text following a leading '/': a bare register
// reference, an "accum,index" combined form, or an "offset,index" indexed
// form (the leading '/' has already been consumed).
func (c *compiler) register() (Program, error) {
	if c.peek() == ',' {
		c.pos++
		return c.indexRegister()
	}

	if name, ok := c.tryRegisterName(); ok {
		op, known := registers[name]
		if !known {
			return nil, fmt.Errorf("unknown register %q", name)
		}
		prog := Program{op}
		c.skipSpace()
		if c.peek() != ',' {
			return prog, nil
		}
		c.pos++
		switch op {
		case OpCPUA, OpCPUB:
			prog = append(prog, OpSex)
		case OpCPUD:
		default:
			return nil, errors.New("missing A, B, or D register")
		}
		idx, err := c.indexRegister()
		if err != nil {
			return nil, err
		}
		return append(prog, idx...), nil
	}

	// Not a register name: an indexed expression "/expr,x".
	expr, err := c.expr()
	if err != nil {
		return nil, err
	}
	c.skipSpace()
	if c.peek() != ',' {
		return nil, errors.New("missing index register")
	}
	c.pos++
	idx, err := c.indexRegister()
	if err != nil {
		return nil, err
	}
	return append(expr, idx...), nil
}

func (c *compiler) indexRegister() (Program, error) {
	c.skipSpace()
	name, ok := c.tryRegisterName()
	if !ok {
		return nil, errors.New("expected index register")
	}
	op, known := registers[name]
	if !known {
		return nil, fmt.Errorf("unknown register %q", name)
	}
	idx, known := indexOps[op]
	if !known {
		return nil, errors.New("not an index register")
	}
	return Program{idx}, nil
}

func (c *compiler) tryRegisterName() (string, bool) {
	start := c.pos
	for c.pos < len(c.text) && (isAlpha(c.text[c.pos]) || c.text[c.pos] == '.') {
		c.pos++
	}
	if c.pos == start {
		return "", false
	}
	return strings.ToUpper(c.text[start:c.pos]), true
}

// value parses a numeric literal, symbol reference, string literal, or the
// fill-byte placeholder '?'.
func (c *compiler) value() (Program, error) {
	ch := c.peek()
	switch {
	case ch == '$':
		c.pos++
		return c.literal(16)
	case ch == '&':
		c.pos++
		return c.literal(8)
	case ch == '%':
		c.pos++
		return c.literal(2)
	case ch >= '0' && ch <= '9':
		return c.literal(10)
	case ch == '\'':
		c.pos++
		if c.peek() == 0 {
			return nil, errors.New("unterminated character literal")
		}
		r := c.peek()
		c.pos++
		return Program{OpLit, Op(r)}, nil
	case ch == '"':
		return c.stringLiteral()
	case ch == '?':
		c.pos++
		return Program{OpLit, Op(c.ctx.FillByte())}, nil
	case isAlpha(ch) || ch == '_' || ch == '.':
		start := c.pos
		for c.pos < len(c.text) && isSymbolCont(c.text[c.pos]) {
			c.pos++
		}
		name := c.text[start:c.pos]
		v, ok := c.ctx.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown symbol %q", name)
		}
		return Program{OpLit, Op(v)}, nil
	default:
		return nil, fmt.Errorf("unexpected character %q in assertion", string(ch))
	}
}

// stringLiteral compiles a quoted string into its stash-and-compare triple.
func (c *compiler) stringLiteral() (Program, error) {
	quote := c.peek()
	c.pos++
	start := c.pos
	var sb strings.Builder
	for c.pos < len(c.text) && c.text[c.pos] != quote {
		ch := c.text[c.pos]
		if ch == '\\' && c.pos+1 < len(c.text) {
			c.pos++
			ch = unescape(c.text[c.pos])
		}
		sb.WriteByte(ch)
		c.pos++
	}
	if c.pos >= len(c.text) {
		c.pos = start
		return nil, errors.New("unterminated string literal")
	}
	c.pos++ // closing quote

	addr, length := c.ctx.StoreString(sb.String())
	return Program{OpLit, Op(addr), OpLit, Op(length), OpScmp}, nil
}

func unescape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '0':
		return 0
	default:
		return c
	}
}

func (c *compiler) literal(base int) (Program, error) {
	start := c.pos
	var digits strings.Builder
	for c.pos < len(c.text) {
		ch := c.text[c.pos]
		if ch == '_' {
			c.pos++
			continue
		}
		if !isDigitInBase(ch, base) {
			break
		}
		digits.WriteByte(ch)
		c.pos++
	}
	if digits.Len() == 0 {
		return nil, fmt.Errorf("invalid numeric literal at %q", c.text[start:])
	}
	n, err := strconv.ParseUint(digits.String(), base, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid numeric literal: %w", err)
	}
	return Program{OpLit, Op(uint16(n))}, nil
}

func isAlpha(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func isSymbolCont(c byte) bool {
	return isAlpha(c) || c == '_' || c == '.' || (c >= '0' && c <= '9') || c == '$'
}

func isDigitInBase(c byte, base int) bool {
	switch base {
	case 2:
		return c == '0' || c == '1'
	case 8:
		return c >= '0' && c <= '7'
	case 10:
		return c >= '0' && c <= '9'
	case 16:
		return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
	default:
		return false
	}
}

// Run executes prog against m, returning the boolean result left by EXIT:
// the assertion passed iff it returns true. tag labels TIMEOFF's report.
func Run(prog Program, m Machine, tag string) (bool, error) {
	var stack [MaxDepth]uint16
	sp := MaxDepth

	push := func(v uint16) error {
		if sp == 0 {
			return errors.New("assertion stack overflow")
		}
		sp--
		stack[sp] = v
		return nil
	}
	pop := func() (uint16, error) {
		if sp == MaxDepth {
			return 0, errors.New("assertion stack underflow")
		}
		v := stack[sp]
		sp++
		return v, nil
	}
	binary := func(f func(a, b uint16) uint16) error {
		b, err := pop()
		if err != nil {
			return err
		}
		a, err := pop()
		if err != nil {
			return err
		}
		return push(f(a, b))
	}
	boolWord := func(b bool) uint16 {
		if b {
			return 1
		}
		return 0
	}

	ip := 0
	fetch := func() (Op, error) {
		if ip >= len(prog) {
			return 0, errors.New("assertion program ran off the end")
		}
		op := prog[ip]
		ip++
		return op, nil
	}

	for {
		op, err := fetch()
		if err != nil {
			return false, err
		}
		switch op {
		case OpLor:
			if err := binary(func(a, b uint16) uint16 { return boolWord(a != 0 || b != 0) }); err != nil {
				return false, err
			}
		case OpLand:
			if err := binary(func(a, b uint16) uint16 { return boolWord(a != 0 && b != 0) }); err != nil {
				return false, err
			}
		case OpGt:
			if err := binary(func(a, b uint16) uint16 { return boolWord(int16(a) > int16(b)) }); err != nil {
				return false, err
			}
		case OpGe:
			if err := binary(func(a, b uint16) uint16 { return boolWord(int16(a) >= int16(b)) }); err != nil {
				return false, err
			}
		case OpEq:
			if err := binary(func(a, b uint16) uint16 { return boolWord(a == b) }); err != nil {
				return false, err
			}
		case OpLe:
			if err := binary(func(a, b uint16) uint16 { return boolWord(int16(a) <= int16(b)) }); err != nil {
				return false, err
			}
		case OpLt:
			if err := binary(func(a, b uint16) uint16 { return boolWord(int16(a) < int16(b)) }); err != nil {
				return false, err
			}
		case OpNe:
			if err := binary(func(a, b uint16) uint16 { return boolWord(a != b) }); err != nil {
				return false, err
			}
		case OpBor:
			if err := binary(func(a, b uint16) uint16 { return a | b }); err != nil {
				return false, err
			}
		case OpBeor:
			if err := binary(func(a, b uint16) uint16 { return a ^ b }); err != nil {
				return false, err
			}
		case OpBand:
			if err := binary(func(a, b uint16) uint16 { return a & b }); err != nil {
				return false, err
			}
		case OpShr:
			if err := binary(func(a, b uint16) uint16 { return a >> (b & 0xf) }); err != nil {
				return false, err
			}
		case OpShl:
			if err := binary(func(a, b uint16) uint16 { return a << (b & 0xf) }); err != nil {
				return false, err
			}
		case OpSub:
			if err := binary(func(a, b uint16) uint16 { return a - b }); err != nil {
				return false, err
			}
		case OpAdd:
			if err := binary(func(a, b uint16) uint16 { return a + b }); err != nil {
				return false, err
			}
		case OpMul:
			if err := binary(func(a, b uint16) uint16 { return a * b }); err != nil {
				return false, err
			}
		case OpDiv:
			b, err := pop()
			if err != nil {
				return false, err
			}
			a, err := pop()
			if err != nil {
				return false, err
			}
			if b == 0 {
				return false, errors.New("division by zero")
			}
			if err := push(a / b); err != nil {
				return false, err
			}
		case OpMod:
			b, err := pop()
			if err != nil {
				return false, err
			}
			a, err := pop()
			if err != nil {
				return false, err
			}
			if b == 0 {
				return false, errors.New("modulo by zero")
			}
			if err := push(a % b); err != nil {
				return false, err
			}
		case OpExp:
			if err := binary(func(a, b uint16) uint16 {
				r := uint16(1)
				for i := uint16(0); i < b; i++ {
					r *= a
				}
				return r
			}); err != nil {
				return false, err
			}
		case OpNeg:
			v, err := pop()
			if err != nil {
				return false, err
			}
			if err := push(-v); err != nil {
				return false, err
			}
		case OpNot:
			v, err := pop()
			if err != nil {
				return false, err
			}
			if err := push(^v); err != nil {
				return false, err
			}
		case OpLit:
			w, err := fetch()
			if err != nil {
				return false, err
			}
			if err := push(uint16(w)); err != nil {
				return false, err
			}
		case OpAt8:
			addr, err := pop()
			if err != nil {
				return false, err
			}
			if err := push(uint16(m.ReadByte(addr))); err != nil {
				return false, err
			}
		case OpAt16:
			addr, err := pop()
			if err != nil {
				return false, err
			}
			hi := uint16(m.ReadByte(addr))
			lo := uint16(m.ReadByte(addr + 1))
			if err := push(hi<<8 | lo); err != nil {
				return false, err
			}
		case OpCPUCC, OpCPUCCc, OpCPUCCv, OpCPUCCz, OpCPUCCn, OpCPUCCi, OpCPUCCh, OpCPUCCf, OpCPUCCe,
			OpCPUA, OpCPUB, OpCPUDP, OpCPUD, OpCPUX, OpCPUY, OpCPUU, OpCPUS, OpCPUPC:
			if err := push(m.Register(op)); err != nil {
				return false, err
			}
		case OpIdx, OpIdy, OpIds, OpIdu:
			v, err := pop()
			if err != nil {
				return false, err
			}
			reg := map[Op]Op{OpIdx: OpCPUX, OpIdy: OpCPUY, OpIds: OpCPUS, OpIdu: OpCPUU}[op]
			if err := push(v + m.Register(reg)); err != nil {
				return false, err
			}
		case OpScmp:
			n, err := pop()
			if err != nil {
				return false, err
			}
			dst, err := pop()
			if err != nil {
				return false, err
			}
			src := m.Register(OpCPUS)
			result := compareBytes(m, src, dst, n)
			if err := push(uint16(int16(result))); err != nil {
				return false, err
			}
		case OpSex:
			v, err := pop()
			if err != nil {
				return false, err
			}
			if v >= 0x80 {
				v |= 0xff00
			}
			if err := push(v); err != nil {
				return false, err
			}
		case OpTimeOn:
			m.ResetTimer()
		case OpTimeOff:
			m.ReportTimer(tag)
		case OpFalse:
			if err := push(0); err != nil {
				return false, err
			}
		case OpTrue:
			if err := push(1); err != nil {
				return false, err
			}
		case OpTo8:
			addr, err := pop()
			if err != nil {
				return false, err
			}
			v, err := pop()
			if err != nil {
				return false, err
			}
			m.WriteByte(addr, uint8(v))
		case OpTo16:
			addr, err := pop()
			if err != nil {
				return false, err
			}
			v, err := pop()
			if err != nil {
				return false, err
			}
			m.WriteByte(addr, uint8(v>>8))
			m.WriteByte(addr+1, uint8(v))
		case OpProt:
			low, err := pop()
			if err != nil {
				return false, err
			}
			high, err := pop()
			if err != nil {
				return false, err
			}
			bits, err := pop()
			if err != nil {
				return false, err
			}
			m.SetProt(low, high, decodeProt(bits))
		case OpExit:
			v, err := pop()
			if err != nil {
				return false, err
			}
			return v != 0, nil
		default:
			return false, fmt.Errorf("illegal assertion opcode %d", op)
		}
	}
}

// EncodeProt packs Prot into the single word OpProt's literal operand
// expects, mirroring the struct-into-enum-slot trick of the reference VM.
func EncodeProt(p Prot) uint16 {
	var v uint16
	if p.Read {
		v |= 1
	}
	if p.Write {
		v |= 2
	}
	if p.Exec {
		v |= 4
	}
	if p.Tron {
		v |= 8
	}
	return v
}

func decodeProt(v uint16) Prot {
	return Prot{
		Read:  v&1 != 0,
		Write: v&2 != 0,
		Exec:  v&4 != 0,
		Tron:  v&8 != 0,
	}
}

func compareBytes(m Machine, src, dst, n uint16) int {
	for i := uint16(0); i < n; i++ {
		a := m.ReadByte(src + i)
		b := m.ReadByte(dst + i)
		if a != b {
			if a < b {
				return -1
			}
			return 1
		}
	}
	return 0
}
