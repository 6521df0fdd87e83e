/*
   a09 - Integer expression evaluator: shunting-yard reducer.

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

// Package expr implements the integer expression evaluator: a shunting-yard
// reducer over a fixed operator-precedence table, with bounded operand and
// operator stacks matching the 15-deep limits of the original line-at-a-time
// evaluator.
package expr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrTooComplex is reported when either stack would overflow its 15-slot depth.
var ErrTooComplex = errors.New("expression too complex")

// ErrExternInExpr is reported when an Extern symbol participates in any
// operator combination rather than standing alone.
var ErrExternInExpr = errors.New("EXTERN in expression not allowed")

const maxDepth = 15

// Width is the bit-width hint carried by a Value: unspecified, or forced to
// 5, 8, or 16 bits by a size prefix or the observed numeric range.
type Width int

const (
	WidthUnspecified Width = 0
	Width5           Width = 5
	Width8           Width = 8
	Width16          Width = 16
)

// Value is the result of evaluating an expression.
type Value struct {
	Word      uint16
	Width     Width
	Unknown   bool // true iff a participating symbol was defined on a later line of the same pass
	Defined   bool
	External  bool
}

// Symbols resolves a bare name to a Value during evaluation; callers adapt
// their symbol table (and current-PC, local-label scoping) to this shape.
type Symbols interface {
	// Lookup returns the named symbol's value. ok is false for an unknown
	// name (not yet a hard error — the evaluator treats it as unknown-in-pass-1).
	Lookup(name string) (Value, bool)
	// PC returns the value of '*', the current program counter.
	PC() Value
}

type opKind int

const (
	opBinary opKind = iota
	opUnary
)

type operator struct {
	sym   string
	prec  int
	right bool // right-associative
	kind  opKind
}

// precedence table, per the fixed operator levels; longer operators are
// matched before shorter prefixes of themselves (e.g. "**" before "*").
var binaryOps = []operator{
	{"**", 1000, true, opBinary},
	{"*", 900, false, opBinary},
	{"/", 900, false, opBinary},
	{"%", 900, false, opBinary},
	{"+", 800, false, opBinary},
	{"-", 800, false, opBinary},
	{"<<", 700, false, opBinary},
	{">>", 700, false, opBinary},
	{"&&", 200, false, opBinary},
	{"&", 600, false, opBinary},
	{"^", 500, false, opBinary},
	{"||", 100, false, opBinary},
	{"|", 400, false, opBinary},
	{"<>", 300, false, opBinary},
	{"<=", 300, false, opBinary},
	{"<", 300, false, opBinary},
	{">=", 300, false, opBinary},
	{">", 300, false, opBinary},
	{"=", 300, false, opBinary},
}

// Parser evaluates one expression string against a Symbols resolver.
type Parser struct {
	syms Symbols
	text string
	pos  int
	pass int // 1 or 2: controls divide-by-zero behavior
}

// NewParser builds a parser for text, resolving symbols through syms. pass
// selects pass-1 (divide-by-zero yields 0) or pass-2 (divide-by-zero fails)
// semantics.
func NewParser(text string, syms Symbols, pass int) *Parser {
	return &Parser{syms: syms, text: text, pass: pass}
}

func (p *Parser) peek() byte {
	if p.pos >= len(p.text) {
		return 0
	}
	return p.text[p.pos]
}

func (p *Parser) peekAt(n int) byte {
	if p.pos+n >= len(p.text) {
		return 0
	}
	return p.text[p.pos+n]
}

func (p *Parser) skipSpace() {
	for p.pos < len(p.text) && p.text[p.pos] == ' ' {
		p.pos++
	}
}

// Rest returns the unconsumed remainder of the expression text.
func (p *Parser) Rest() string {
	return p.text[p.pos:]
}

type stackEntry struct {
	val Value
}

// Evaluate runs the shunting-yard reduction to completion, returning the
// final Value and leaving Rest() positioned just past the expression.
func (p *Parser) Evaluate() (Value, error) {
	var operands []stackEntry
	var operators []operator

	apply := func(op operator) error {
		if len(operands) < 2 {
			return fmt.Errorf("internal error: operator stack underflow on %q", op.sym)
		}
		b := operands[len(operands)-1]
		a := operands[len(operands)-2]
		operands = operands[:len(operands)-2]
		v, err := combine(op.sym, a.val, b.val, p.pass)
		if err != nil {
			return err
		}
		operands = append(operands, stackEntry{v})
		return nil
	}

	popWhileHigherPrec := func(next operator) error {
		for len(operators) > 0 {
			top := operators[len(operators)-1]
			if top.prec > next.prec || (top.prec == next.prec && !next.right) {
				operators = operators[:len(operators)-1]
				if err := apply(top); err != nil {
					return err
				}
				continue
			}
			break
		}
		return nil
	}

	expectFactor := true
	for {
		p.skipSpace()
		if p.peek() == 0 {
			break
		}

		if expectFactor {
			v, err := p.parseFactor()
			if err != nil {
				return Value{}, err
			}
			if len(operands) >= maxDepth {
				return Value{}, ErrTooComplex
			}
			operands = append(operands, stackEntry{v})
			expectFactor = false
			continue
		}

		if p.peek() == ')' {
			break
		}

		op, ok := matchBinaryOp(p.text[p.pos:])
		if !ok {
			break
		}
		if err := popWhileHigherPrec(op); err != nil {
			return Value{}, err
		}
		if len(operators) >= maxDepth {
			return Value{}, ErrTooComplex
		}
		operators = append(operators, op)
		p.pos += len(op.sym)
		expectFactor = true
	}

	for len(operators) > 0 {
		top := operators[len(operators)-1]
		operators = operators[:len(operators)-1]
		if err := apply(top); err != nil {
			return Value{}, err
		}
	}

	if len(operands) != 1 {
		return Value{}, fmt.Errorf("internal error: expression did not reduce to one value")
	}
	return operands[0].val, nil
}

func matchBinaryOp(rest string) (operator, bool) {
	var best operator
	bestLen := 0
	for _, op := range binaryOps {
		if strings.HasPrefix(rest, op.sym) && len(op.sym) > bestLen {
			best = op
			bestLen = len(op.sym)
		}
	}
	if bestLen == 0 {
		return operator{}, false
	}
	return best, true
}

// parseFactor parses: optional size prefix, optional unary prefix, then a
// parenthesized sub-expression or a value.
func (p *Parser) parseFactor() (Value, error) {
	width := WidthUnspecified
	p.skipSpace()
	switch {
	case p.peek() == '<' && p.peekAt(1) == '<':
		width = Width5
		p.pos += 2
	case p.peek() == '<':
		width = Width8
		p.pos++
	case p.peek() == '>':
		width = Width16
		p.pos++
	}
	p.skipSpace()

	neg, comp := false, false
	for {
		switch p.peek() {
		case '-':
			neg = !neg
			p.pos++
		case '~':
			comp = !comp
			p.pos++
		case '+':
			p.pos++
		default:
			goto prefixDone
		}
		p.skipSpace()
	}
prefixDone:

	var v Value
	var err error
	if p.peek() == '(' {
		p.pos++
		v, err = p.Evaluate()
		if err != nil {
			return Value{}, err
		}
		p.skipSpace()
		if p.peek() != ')' {
			return Value{}, errors.New("missing close parenthesis")
		}
		p.pos++
	} else {
		v, err = p.parseValue()
		if err != nil {
			return Value{}, err
		}
	}

	if neg {
		v.Word = -v.Word & 0xffff
	}
	if comp {
		v.Word = ^v.Word & 0xffff
	}
	if width != WidthUnspecified {
		v.Width = width
	}
	return v, nil
}

// parseValue parses a single terminal: '*', a radix-prefixed or plain number,
// a symbol reference, or a quoted character literal.
func (p *Parser) parseValue() (Value, error) {
	c := p.peek()
	switch {
	case c == '*':
		p.pos++
		return p.syms.PC(), nil
	case c == '$':
		p.pos++
		return p.parseRadix(16)
	case c == '&':
		p.pos++
		return p.parseRadix(8)
	case c == '%':
		p.pos++
		return p.parseRadix(2)
	case c >= '0' && c <= '9':
		return p.parseRadix(10)
	case c == '\'':
		p.pos++
		if p.peek() == 0 {
			return Value{}, errors.New("unterminated character literal")
		}
		ch := p.peek()
		p.pos++
		return Value{Word: uint16(ch), Width: Width8, Defined: true}, nil
	case isSymbolStart(c):
		start := p.pos
		for p.pos < len(p.text) && isSymbolCont(p.text[p.pos]) {
			p.pos++
		}
		name := p.text[start:p.pos]
		v, ok := p.syms.Lookup(name)
		if !ok {
			return Value{Unknown: true}, nil
		}
		return v, nil
	default:
		return Value{}, fmt.Errorf("unexpected character %q in expression", string(c))
	}
}

func isSymbolStart(c byte) bool {
	return c == '.' || c == '_' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func isSymbolCont(c byte) bool {
	return isSymbolStart(c) || (c >= '0' && c <= '9') || c == '$'
}

// parseRadix consumes digits (with '_' separators allowed) in the given base.
func (p *Parser) parseRadix(base int) (Value, error) {
	start := p.pos
	var digits strings.Builder
	for p.pos < len(p.text) {
		c := p.text[p.pos]
		if c == '_' {
			p.pos++
			continue
		}
		if !isDigitInBase(c, base) {
			break
		}
		digits.WriteByte(c)
		p.pos++
	}
	if digits.Len() == 0 {
		return Value{}, fmt.Errorf("invalid numeric literal at %q", p.text[start:])
	}
	n, err := strconv.ParseUint(digits.String(), base, 32)
	if err != nil {
		return Value{}, fmt.Errorf("invalid numeric literal: %w", err)
	}
	return Value{Word: uint16(n & 0xffff), Defined: true}, nil
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

// combine applies a binary operator to two already-evaluated operands,
// propagating Unknown/External flags and enforcing modulo-65536 arithmetic.
func combine(sym string, a, b Value, pass int) (Value, error) {
	if a.External || b.External {
		return Value{}, ErrExternInExpr
	}
	out := Value{
		Defined: a.Defined && b.Defined,
		Unknown: a.Unknown || b.Unknown,
		Width:   maxWidth(a.Width, b.Width),
	}
	x, y := a.Word, b.Word
	switch sym {
	case "**":
		if int16(y) < 0 {
			return Value{}, errors.New("exponent must be non-negative")
		}
		r := uint16(1)
		for i := uint16(0); i < y; i++ {
			r *= x
		}
		out.Word = r
	case "*":
		out.Word = x * y
	case "/":
		if y == 0 {
			if pass == 1 {
				out.Word = 0
			} else {
				return Value{}, errors.New("division by zero")
			}
		} else {
			out.Word = x / y
		}
	case "%":
		if y == 0 {
			if pass == 1 {
				out.Word = 0
			} else {
				return Value{}, errors.New("modulo by zero")
			}
		} else {
			out.Word = x % y
		}
	case "+":
		out.Word = x + y
	case "-":
		out.Word = x - y
	case "<<":
		out.Word = x << (y & 0xf)
	case ">>":
		out.Word = x >> (y & 0xf)
	case "&":
		out.Word = x & y
	case "^":
		out.Word = x ^ y
	case "|":
		out.Word = x | y
	case "=":
		out.Word = boolWord(x == y)
	case "<>":
		out.Word = boolWord(x != y)
	case "<":
		out.Word = boolWord(int16(x) < int16(y))
	case "<=":
		out.Word = boolWord(int16(x) <= int16(y))
	case ">":
		out.Word = boolWord(int16(x) > int16(y))
	case ">=":
		out.Word = boolWord(int16(x) >= int16(y))
	case "&&":
		out.Word = boolWord(x != 0 && y != 0)
	case "||":
		out.Word = boolWord(x != 0 || y != 0)
	default:
		return Value{}, fmt.Errorf("internal error: unknown operator %q", sym)
	}
	return out, nil
}

func boolWord(b bool) uint16 {
	if b {
		return 1
	}
	return 0
}

func maxWidth(a, b Width) Width {
	if a > b {
		return a
	}
	return b
}
