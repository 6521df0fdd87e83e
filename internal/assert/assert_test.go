/*
   a09 - Assertion compiler and stack VM tests.

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
package assert

import "testing"

// fakeCtx is a Context backed by a plain symbol map, for compiling
// assertions outside a full assembler.
type fakeCtx struct {
	syms map[string]uint16
	fill uint8
	mem  []byte
	sp   uint16
}

func (f *fakeCtx) Lookup(name string) (uint16, bool) {
	v, ok := f.syms[name]
	return v, ok
}

func (f *fakeCtx) FillByte() uint8 { return f.fill }

func (f *fakeCtx) StoreString(s string) (uint16, uint16) {
	f.sp -= uint16(len(s))
	copy(f.mem[f.sp:], s)
	return f.sp, uint16(len(s))
}

// fakeMachine is a Machine backed by a flat byte slice and a small register
// file, for running compiled assertions in isolation.
type fakeMachine struct {
	mem  [65536]byte
	regs map[Op]uint16
	prot []struct {
		low, high uint16
		bits      Prot
	}
	timerReset  bool
	reportedTag string
}

func newFakeMachine() *fakeMachine {
	return &fakeMachine{regs: map[Op]uint16{}}
}

func (m *fakeMachine) ReadByte(addr uint16) uint8     { return m.mem[addr] }
func (m *fakeMachine) WriteByte(addr uint16, v uint8) { m.mem[addr] = v }
func (m *fakeMachine) Register(op Op) uint16          { return m.regs[op] }
func (m *fakeMachine) SetProt(low, high uint16, bits Prot) {
	m.prot = append(m.prot, struct {
		low, high uint16
		bits      Prot
	}{low, high, bits})
}
func (m *fakeMachine) ResetTimer()          { m.timerReset = true }
func (m *fakeMachine) ReportTimer(tag string) { m.reportedTag = tag }

func compileAndRun(t *testing.T, expr string, ctx *fakeCtx, m *fakeMachine) bool {
	t.Helper()
	prog, rest, err := Compile(expr, ctx)
	if err != nil {
		t.Fatalf("Compile(%q): %v", expr, err)
	}
	if rest != "" {
		t.Fatalf("Compile(%q) left remainder %q", expr, rest)
	}
	result, err := Run(prog, m, "test")
	if err != nil {
		t.Fatalf("Run(%q): %v", expr, err)
	}
	return result
}

func TestArithmeticAndComparison(t *testing.T) {
	ctx := &fakeCtx{syms: map[string]uint16{}}
	m := newFakeMachine()
	cases := map[string]bool{
		"1+2=3":     true,
		"5-2=3":     true,
		"2*3=6":     true,
		"10/3=3":    true,
		"10%3=1":    true,
		"2**3=8":    true,
		"1<2":       true,
		"2<=2":      true,
		"3>2&&2>1":  true,
		"3>2||1>2":  true,
		"1<>2":      true,
		"$FF&$0F=$0F": true,
		"%1010|%0101=%1111": true,
	}
	for expr, want := range cases {
		if got := compileAndRun(t, expr, ctx, m); got != want {
			t.Errorf("%q = %v, want %v", expr, got, want)
		}
	}
}

func TestSymbolLookup(t *testing.T) {
	ctx := &fakeCtx{syms: map[string]uint16{"FOO": 0x42}}
	m := newFakeMachine()
	if !compileAndRun(t, "FOO=$42", ctx, m) {
		t.Error("expected FOO to equal $42")
	}
	if _, _, err := Compile("BAR=1", ctx); err == nil {
		t.Error("expected error for undefined symbol BAR")
	}
}

func TestRegisterReference(t *testing.T) {
	ctx := &fakeCtx{syms: map[string]uint16{}}
	m := newFakeMachine()
	m.regs[OpCPUA] = 5
	m.regs[OpCPUX] = 0x1000
	if !compileAndRun(t, "/a=5", ctx, m) {
		t.Error("expected /a to equal 5")
	}
	if !compileAndRun(t, "/x=$1000", ctx, m) {
		t.Error("expected /x to equal $1000")
	}
}

func TestIndexedRegisterForm(t *testing.T) {
	ctx := &fakeCtx{syms: map[string]uint16{}}
	m := newFakeMachine()
	m.regs[OpCPUX] = 0x2000
	if !compileAndRun(t, "/4,x=$2004", ctx, m) {
		t.Error("expected /4,x to equal X+4")
	}
}

func TestMemoryDereference(t *testing.T) {
	ctx := &fakeCtx{syms: map[string]uint16{}}
	m := newFakeMachine()
	m.mem[0x3000] = 0xAB
	m.mem[0x3001] = 0xCD
	if !compileAndRun(t, "@$3000=$AB", ctx, m) {
		t.Error("expected @$3000 to equal $AB")
	}
	if !compileAndRun(t, "@@$3000=$ABCD", ctx, m) {
		t.Error("expected @@$3000 to equal $ABCD")
	}
}

func TestFillByteAndStackEffects(t *testing.T) {
	ctx := &fakeCtx{syms: map[string]uint16{}, fill: 0xFE}
	m := newFakeMachine()
	if !compileAndRun(t, "?=$FE", ctx, m) {
		t.Error("expected ? to equal the fill byte")
	}
}

func TestTooComplexFails(t *testing.T) {
	ctx := &fakeCtx{syms: map[string]uint16{}}
	expr := ""
	for i := 0; i < 40; i++ {
		expr += "1+"
	}
	expr += "1"
	if _, _, err := Compile(expr, ctx); err == nil {
		t.Error("expected too-complex error for a long operator chain")
	}
}

func TestDivideByZeroFails(t *testing.T) {
	ctx := &fakeCtx{syms: map[string]uint16{}}
	prog, _, err := Compile("1/0", ctx)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if _, err := Run(prog, newFakeMachine(), "t"); err == nil {
		t.Error("expected division by zero to fail at run time")
	}
}

func TestProtAndTimingOpcodes(t *testing.T) {
	m := newFakeMachine()
	prog := Program{OpLit, Op(EncodeProt(Prot{Read: true, Write: true})), OpLit, 0x10FF, OpLit, 0x1000, OpProt, OpTrue, OpExit}
	if ok := mustRun(t, prog, m); !ok {
		t.Error("expected PROT program to report true")
	}
	if len(m.prot) != 1 || m.prot[0].low != 0x1000 || m.prot[0].high != 0x10FF {
		t.Errorf("SetProt range = %+v, want [0x1000,0x10FF]", m.prot)
	}
	if !m.prot[0].bits.Read || !m.prot[0].bits.Write {
		t.Errorf("SetProt bits = %+v, want read+write", m.prot[0].bits)
	}

	timing := Program{OpTimeOn, OpTimeOff, OpTrue, OpExit}
	if ok := mustRun(t, timing, m); !ok {
		t.Error("expected timing program to report true")
	}
	if !m.timerReset || m.reportedTag != "loop" {
		t.Errorf("timer reset=%v tag=%q, want reset=true tag=loop", m.timerReset, m.reportedTag)
	}
}

func mustRun(t *testing.T, prog Program, m *fakeMachine) bool {
	t.Helper()
	ok, err := Run(prog, m, "loop")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return ok
}

func TestPokeOpcodes(t *testing.T) {
	m := newFakeMachine()
	prog := Program{OpLit, 0x42, OpLit, 0x4000, OpTo8, OpTrue, OpExit}
	if ok := mustRun(t, prog, m); !ok {
		t.Error("expected TO8 program to report true")
	}
	if m.mem[0x4000] != 0x42 {
		t.Errorf("mem[0x4000] = %#02x, want 0x42", m.mem[0x4000])
	}

	prog = Program{OpLit, 0x1234, OpLit, 0x5000, OpTo16, OpTrue, OpExit}
	if ok := mustRun(t, prog, m); !ok {
		t.Error("expected TO16 program to report true")
	}
	if m.mem[0x5000] != 0x12 || m.mem[0x5001] != 0x34 {
		t.Errorf("mem[0x5000:2] = %02x %02x, want 12 34", m.mem[0x5000], m.mem[0x5001])
	}
}

func TestStringLiteralComparesAgainstStack(t *testing.T) {
	ctx := &fakeCtx{syms: map[string]uint16{}, mem: make([]byte, 65536), sp: 0x8000}
	m := newFakeMachine()
	m.regs[OpCPUS] = 0x7000

	prog, _, err := Compile(`"HI"`, ctx)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	copy(m.mem[:], ctx.mem)
	copy(m.mem[0x7000:], "HI")
	result, err := Run(prog, m, "t")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// A bare string literal leaves SCMP's -1/0/1 result on the stack; EXIT
	// reports that word as the pass/fail flag directly, so a match (0)
	// reads as false unless the caller wraps it in "= 0".
	if result {
		t.Error("expected equal-bytes SCMP result (0) to read as false via EXIT")
	}
}
