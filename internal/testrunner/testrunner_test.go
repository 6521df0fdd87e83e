/*
   a09 - unit test driver tests.

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

package testrunner

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rcornwell/a09/internal/assert"
	"github.com/rcornwell/a09/internal/cpu6809"
)

func grant(c *cpu6809.CPU, addr uint16, code []byte) {
	for i, b := range code {
		a := addr + uint16(i)
		c.Prot[a] = cpu6809.MemProt{Read: true, Write: true, Exec: true}
		c.Mem[a] = b
	}
}

func newCPU() *cpu6809.CPU {
	c := cpu6809.New()
	for a := 0xFF00; a < 0x10000; a++ {
		c.Prot[a] = cpu6809.MemProt{Read: true, Write: true}
	}
	return c
}

func TestRunPassingUnit(t *testing.T) {
	c := newCPU()
	// LDA #$2A ; RTS
	grant(c, 0x0200, []byte{0x86, 0x2A, 0x39})
	var out bytes.Buffer
	r := &Runner{
		CPU:     c,
		Units:   []Unit{{Name: "load_constant", Addr: 0x0200, File: "t.asm", Line: 3}},
		Asserts: map[uint16][]Assertion{},
		Cfg:     Config{StackTop: 0xFF00, StackSize: 16, FillByte: 0x00, TAPOutput: true},
		Out:     &out,
	}
	results := r.Run()
	require.Len(t, results, 1)
	require.True(t, results[0].Passed)
	require.Contains(t, out.String(), "ok 1 - load_constant")
}

func TestRunFailingAssertion(t *testing.T) {
	c := newCPU()
	// LDA #$01 ; RTS
	grant(c, 0x0300, []byte{0x86, 0x01, 0x39})
	ctx := &compileCtx{}
	prog, _, err := assert.Compile("/a=2", ctx)
	require.NoError(t, err)
	c.Prot[0x0302].Check = true // the RTS address: assert before returning
	r := &Runner{
		CPU:     c,
		Units:   []Unit{{Name: "wrong_value", Addr: 0x0300}},
		Asserts: map[uint16][]Assertion{0x0302: {{Tag: "wrong_value:1", Program: prog}}},
		Cfg:     Config{StackTop: 0xFF00, StackSize: 16},
	}
	results := r.Run()
	if results[0].Passed {
		t.Error("expected assertion failure to fail the unit")
	}
	if results[0].Fault.(*cpu6809.Fault).Kind != cpu6809.FaultTestFailed {
		t.Errorf("fault = %v, want FaultTestFailed", results[0].Fault)
	}
}

func TestRunWeeds(t *testing.T) {
	c := newCPU()
	c.Prot[0x0400] = cpu6809.MemProt{Read: true, Write: true, Exec: true}
	// memory at 0x0400 left at the fill byte (never written code)
	r := &Runner{
		CPU:     c,
		Units:   []Unit{{Name: "ran_off_the_end", Addr: 0x0400}},
		Asserts: map[uint16][]Assertion{},
		Cfg:     Config{StackTop: 0xFF00, StackSize: 16, FillByte: 0x00},
	}
	results := r.Run()
	if results[0].Passed {
		t.Error("expected landing on the fill byte to fail")
	}
	if got := FaultMessage(results[0].Fault); got != "code went into the weeds" {
		t.Errorf("FaultMessage = %q", got)
	}
}

func TestDeterministicShuffle(t *testing.T) {
	c := newCPU()
	grant(c, 0x0500, []byte{0x39})
	grant(c, 0x0510, []byte{0x39})
	r := &Runner{
		CPU: c,
		Units: []Unit{
			{Name: "first", Addr: 0x0500},
			{Name: "second", Addr: 0x0510},
		},
		Asserts: map[uint16][]Assertion{},
		Cfg:     Config{StackTop: 0xFF00, StackSize: 16, Randomize: true},
		Shuffle: func(n int, swap func(i, j int)) { swap(0, 1) },
	}
	r.Run()
	if r.Units[0].Name != "second" {
		t.Errorf("Units[0] = %q, want the forced swap to put \"second\" first", r.Units[0].Name)
	}
}

// compileCtx is a minimal assert.Context for compiling test-only assertions.
type compileCtx struct{}

func (compileCtx) Lookup(name string) (uint16, bool) { return 0, false }
func (compileCtx) FillByte() uint8                   { return 0 }
func (compileCtx) StoreString(s string) (uint16, uint16) { return 0, 0 }
