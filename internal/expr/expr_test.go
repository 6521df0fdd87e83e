/*
   a09 - Expression evaluator tests.

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
package expr

import "testing"

type fakeSymbols struct {
	table map[string]Value
	pc    uint16
}

func (f *fakeSymbols) Lookup(name string) (Value, bool) {
	v, ok := f.table[name]
	return v, ok
}

func (f *fakeSymbols) PC() Value {
	return Value{Word: f.pc, Defined: true}
}

func eval(t *testing.T, text string, syms *fakeSymbols, pass int) Value {
	t.Helper()
	p := NewParser(text, syms, pass)
	v, err := p.Evaluate()
	if err != nil {
		t.Fatalf("Evaluate(%q) returned error: %v", text, err)
	}
	return v
}

func TestPrecedenceAddMul(t *testing.T) {
	syms := &fakeSymbols{table: map[string]Value{}}
	v := eval(t, "2+3*4", syms, 2)
	if v.Word != 14 {
		t.Errorf("2+3*4 = %d, want 14", v.Word)
	}
}

func TestPrecedenceParens(t *testing.T) {
	syms := &fakeSymbols{table: map[string]Value{}}
	v := eval(t, "(2+3)*4", syms, 2)
	if v.Word != 20 {
		t.Errorf("(2+3)*4 = %d, want 20", v.Word)
	}
}

func TestExponentRightAssoc(t *testing.T) {
	syms := &fakeSymbols{table: map[string]Value{}}
	v := eval(t, "2**3**2", syms, 2)
	if v.Word != 512 {
		t.Errorf("2**3**2 = %d, want 512 (2**(3**2))", v.Word)
	}
}

func TestUnaryMinus(t *testing.T) {
	syms := &fakeSymbols{table: map[string]Value{}}
	v := eval(t, "-1", syms, 2)
	if v.Word != 0xffff {
		t.Errorf("-1 = %#x, want 0xffff", v.Word)
	}
}

func TestHexOctalBinaryLiterals(t *testing.T) {
	syms := &fakeSymbols{table: map[string]Value{}}
	if v := eval(t, "$10", syms, 2); v.Word != 16 {
		t.Errorf("$10 = %d, want 16", v.Word)
	}
	if v := eval(t, "&10", syms, 2); v.Word != 8 {
		t.Errorf("&10 = %d, want 8", v.Word)
	}
	if v := eval(t, "%10", syms, 2); v.Word != 2 {
		t.Errorf("%%10 = %d, want 2", v.Word)
	}
}

func TestDigitSeparator(t *testing.T) {
	syms := &fakeSymbols{table: map[string]Value{}}
	v := eval(t, "1_000", syms, 2)
	if v.Word != 1000 {
		t.Errorf("1_000 = %d, want 1000", v.Word)
	}
}

func TestCurrentPC(t *testing.T) {
	syms := &fakeSymbols{table: map[string]Value{}, pc: 0x2000}
	v := eval(t, "*+2", syms, 2)
	if v.Word != 0x2002 {
		t.Errorf("*+2 = %#x, want 0x2002", v.Word)
	}
}

func TestCharacterLiteral(t *testing.T) {
	syms := &fakeSymbols{table: map[string]Value{}}
	v := eval(t, "'A'", syms, 2)
	if v.Word != 'A' {
		t.Errorf("'A' = %d, want %d", v.Word, 'A')
	}
}

func TestSymbolReference(t *testing.T) {
	syms := &fakeSymbols{table: map[string]Value{"LEN": {Word: 5, Defined: true}}}
	v := eval(t, "LEN*2", syms, 2)
	if v.Word != 10 {
		t.Errorf("LEN*2 = %d, want 10", v.Word)
	}
}

func TestUnknownSymbolPropagates(t *testing.T) {
	syms := &fakeSymbols{table: map[string]Value{}}
	v := eval(t, "UNRESOLVED+1", syms, 1)
	if !v.Unknown {
		t.Errorf("expected Unknown propagation through +, got %+v", v)
	}
}

func TestDivideByZeroPass1ReturnsZero(t *testing.T) {
	syms := &fakeSymbols{table: map[string]Value{}}
	v := eval(t, "1/0", syms, 1)
	if v.Word != 0 {
		t.Errorf("pass-1 1/0 = %d, want 0", v.Word)
	}
}

func TestDivideByZeroPass2Fails(t *testing.T) {
	syms := &fakeSymbols{table: map[string]Value{}}
	p := NewParser("1/0", syms, 2)
	if _, err := p.Evaluate(); err == nil {
		t.Error("pass-2 1/0 did not return an error")
	}
}

func TestSizePrefix(t *testing.T) {
	syms := &fakeSymbols{table: map[string]Value{}}
	v := eval(t, "<$1234", syms, 2)
	if v.Width != Width8 {
		t.Errorf("Width = %v, want Width8", v.Width)
	}
}

func TestExternInExpressionFails(t *testing.T) {
	syms := &fakeSymbols{table: map[string]Value{"EXT": {Word: 0x4000, Defined: true, External: true}}}
	p := NewParser("EXT+1", syms, 2)
	if _, err := p.Evaluate(); err != ErrExternInExpr {
		t.Errorf("err = %v, want %v", err, ErrExternInExpr)
	}
}

func TestStackOverflow(t *testing.T) {
	// A right-associative chain (unlike left-associative '+') keeps pushing
	// without reducing, so a long enough "**" chain exercises the 15-slot cap.
	syms := &fakeSymbols{table: map[string]Value{}}
	text := ""
	for i := 0; i < 20; i++ {
		text += "1**"
	}
	text += "1"
	p := NewParser(text, syms, 2)
	if _, err := p.Evaluate(); err != ErrTooComplex {
		t.Errorf("err = %v, want %v", err, ErrTooComplex)
	}
}
