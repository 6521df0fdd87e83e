/*
   a09 - 6809 instruction-level emulator tests.

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

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rcornwell/a09/internal/assert"
)

// load grants full rights over [addr, addr+len(code)) and copies code in,
// the way a unit-test loader lays down a code block before running it.
func load(c *CPU, addr uint16, code []byte) {
	for i, b := range code {
		a := addr + uint16(i)
		c.Prot[a] = MemProt{Read: true, Write: true, Exec: true}
		c.Mem[a] = b
	}
}

func TestLoadImmediateAndStore(t *testing.T) {
	c := New()
	// LDA #$42 ; STA $2000 ; NOP
	load(c, 0x1000, []byte{0x86, 0x42, 0xB7, 0x20, 0x00, 0x12})
	c.Prot[0x2000] = MemProt{Read: true, Write: true}
	c.PC = 0x1000
	for i := 0; i < 3; i++ {
		require.NoErrorf(t, c.Step(), "step %d", i)
	}
	require.Equal(t, uint8(0x42), c.A)
	require.Equal(t, uint8(0x42), c.Mem[0x2000])
	require.False(t, c.CC.Z, "Z flag set after loading nonzero value")
}

func TestAddAndCarry(t *testing.T) {
	c := New()
	// LDA #$FF ; ADDA #$01
	load(c, 0x0000, []byte{0x86, 0xFF, 0x8B, 0x01})
	c.PC = 0x0000
	require.NoError(t, c.Step())
	require.NoError(t, c.Step())
	require.Equal(t, uint8(0), c.A)
	require.True(t, c.CC.C, "expected carry out of $FF+$01")
	require.True(t, c.CC.Z, "expected zero result")
}

func TestBranchTaken(t *testing.T) {
	c := New()
	// LDA #0 ; BEQ +2 ; (skipped) LDA #1 ; LDA #2
	load(c, 0x0000, []byte{0x86, 0x00, 0x27, 0x02, 0x86, 0x01, 0x86, 0x02})
	c.PC = 0
	for i := 0; i < 3; i++ {
		if err := c.Step(); err != nil {
			t.Fatal(err)
		}
	}
	if c.A != 2 {
		t.Errorf("A = %d, want 2 (branch should have skipped LDA #1)", c.A)
	}
}

func TestJsrRts(t *testing.T) {
	c := New()
	// at $0000: JSR $0010 ; NOP
	// at $0010: LDA #$7 ; RTS
	load(c, 0x0000, []byte{0xBD, 0x00, 0x10, 0x12})
	load(c, 0x0010, []byte{0x86, 0x07, 0x39})
	c.S = 0x8000
	c.Prot[0x7FFF] = MemProt{Read: true, Write: true}
	c.Prot[0x7FFE] = MemProt{Read: true, Write: true}
	c.PC = 0
	for i := 0; i < 3; i++ {
		if err := c.Step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if c.PC != 3 {
		t.Errorf("PC after RTS = %#04x, want 0x0003", c.PC)
	}
	if c.A != 7 {
		t.Errorf("A = %d, want 7", c.A)
	}
}

func TestNonExecutableFault(t *testing.T) {
	c := New()
	c.Mem[0] = 0x12 // NOP, but not marked executable
	c.Prot[0] = MemProt{Read: true}
	c.PC = 0
	err := c.Step()
	f, ok := err.(*Fault)
	if !ok || f.Kind != FaultNonExecutable {
		t.Fatalf("Step() = %v, want FaultNonExecutable", err)
	}
}

func TestSelfModifyingWarning(t *testing.T) {
	c := New()
	// STA $0005 at an address that is also marked executable.
	load(c, 0x0000, []byte{0xB7, 0x00, 0x05, 0x12})
	c.A = 0x99
	c.PC = 0
	var warned string
	c.OnWarn = func(format string, args ...any) { warned = format }
	if err := c.Step(); err != nil {
		t.Fatal(err)
	}
	if warned == "" {
		t.Error("expected a self-modifying-code warning writing into exec memory")
	}
}

func TestPushPullRoundTrip(t *testing.T) {
	c := New()
	// PSHS A,B,X ; PULS A,B,X
	load(c, 0x0000, []byte{0x34, 0x16, 0x35, 0x16})
	c.A, c.B, c.X = 1, 2, 0x1234
	c.S = 0x8000
	for a := uint16(0x7FF0); a < 0x8000; a++ {
		c.Prot[a] = MemProt{Read: true, Write: true}
	}
	c.PC = 0
	if err := c.Step(); err != nil {
		t.Fatal(err)
	}
	c.A, c.B, c.X = 0, 0, 0
	if err := c.Step(); err != nil {
		t.Fatal(err)
	}
	if c.A != 1 || c.B != 2 || c.X != 0x1234 {
		t.Errorf("A=%d B=%d X=%#04x, want 1 2 0x1234", c.A, c.B, c.X)
	}
}

func TestTfrExg(t *testing.T) {
	c := New()
	// TFR X,Y ; EXG A,B
	load(c, 0x0000, []byte{0x1F, 0x12, 0x1E, 0x89})
	c.X, c.Y = 0xAAAA, 0
	c.A, c.B = 1, 2
	c.PC = 0
	if err := c.Step(); err != nil {
		t.Fatal(err)
	}
	if c.Y != 0xAAAA {
		t.Errorf("Y = %#04x after TFR X,Y, want 0xAAAA", c.Y)
	}
	if err := c.Step(); err != nil {
		t.Fatal(err)
	}
	if c.A != 2 || c.B != 1 {
		t.Errorf("A=%d B=%d after EXG A,B, want 2 1", c.A, c.B)
	}
}

func TestRegisterSatisfiesAssertMachine(t *testing.T) {
	c := New()
	c.A = 5
	c.X = 0x1000
	if v := c.Register(assert.OpCPUA); v != 5 {
		t.Errorf("Register(OpCPUA) = %d, want 5", v)
	}
	if v := c.Register(assert.OpCPUX); v != 0x1000 {
		t.Errorf("Register(OpCPUX) = %#04x, want 0x1000", v)
	}
}
