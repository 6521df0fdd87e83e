/*
   a09 - unit test driver: runs compiled .TEST blocks against the 6809
   emulator and reports results in TAP-14 form.

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

// Package testrunner drives the 6809 emulator through each .TEST block an
// assembly pass collected, reporting pass/fail in TAP-14 form. Register
// initialization, the stack-return exit condition, and the optional
// shuffle/randomize behavior all follow the unit-test back-end's own
// test-run loop.
package testrunner

import (
	"fmt"
	"io"
	"math/rand"

	"github.com/rcornwell/a09/internal/assert"
	"github.com/rcornwell/a09/internal/cpu6809"
)

// Unit is one .TEST ... .ENDTST block: a name, its entry address, and the
// source location it was defined at (for TAP's diagnostic suffix).
type Unit struct {
	Name string
	Addr uint16
	File string
	Line int
}

// Assertion is one compiled .ASSERT attached to a PC; checkAssertions runs
// every assertion registered at a given address in declaration order and
// the first one to report false ends the test.
type Assertion struct {
	Tag     string
	Program assert.Program
}

// Config is the set of test-run parameters spec.md §4.10/§6.1 exposes as
// CLI flags or .STACK/.STACKSIZE/.RANDOMIZE directives.
type Config struct {
	StackTop  uint16 // .STACK: the address a test's RTS must return S to
	StackSize int    // .STACKSIZE: bytes below StackTop granted read+write
	DP        uint8
	FillByte  uint8 // memory fill value; landing on it means control ran off the end of a test
	Randomize bool  // -r: Fisher-Yates shuffle test order
	TAPOutput bool  // -t: emit "TAP version 14" framing
}

// Runner owns the CPU image and the collected units/assertions a completed
// assembly pass produced.
type Runner struct {
	CPU       *cpu6809.CPU
	Units     []Unit
	Asserts   map[uint16][]Assertion
	Cfg       Config
	Out       io.Writer
	Trace     io.Writer
	Shuffle   func(n int, swap func(i, j int)) // defaults to math/rand.Shuffle; overridable for deterministic tests
}

// Result is one unit's outcome.
type Result struct {
	Unit    Unit
	Passed  bool
	Fault   error // nil on success
	Tag     string
	Steps   uint64
}

// Run executes every unit in r.Units (optionally shuffled) and returns one
// Result per unit in the order they ran.
func (r *Runner) Run() []Result {
	shuffle := r.Shuffle
	if shuffle == nil {
		shuffle = rand.Shuffle
	}
	if r.Cfg.Randomize && len(r.Units) > 1 {
		shuffle(len(r.Units), func(i, j int) { r.Units[i], r.Units[j] = r.Units[j], r.Units[i] })
	}

	if r.Cfg.TAPOutput && r.Out != nil {
		fmt.Fprintf(r.Out, "TAP version 14\n1..%d\n", len(r.Units))
	}

	results := make([]Result, 0, len(r.Units))
	for i, unit := range r.Units {
		res := r.runOne(unit)
		results = append(results, res)
		if r.Cfg.TAPOutput && r.Out != nil {
			status := "ok"
			if !res.Passed {
				status = "not ok"
			}
			fmt.Fprintf(r.Out, "%s %d - %s %s:%d %s\n", status, i+1, unit.Name, unit.File, unit.Line, res.Tag)
		}
	}
	return results
}

func (r *Runner) runOne(unit Unit) Result {
	c := r.CPU
	sp := r.Cfg.StackTop
	for j := 0; j < r.Cfg.StackSize; j++ {
		addr := sp - uint16(j)
		c.Prot[addr].Read = true
		c.Prot[addr].Write = true
	}

	c.PC = unit.Addr
	c.S = sp - 2
	c.DP = r.Cfg.DP
	c.U = c.PC ^ c.S
	c.Y = c.U
	c.X = c.Y
	c.SetD(c.X)

	res := Result{Unit: unit}
	for {
		if c.Mem[c.PC] == r.Cfg.FillByte {
			res.Fault = &cpu6809.Fault{Kind: weedsKind, PC: c.PC, Msg: fmt.Sprintf("PC=%04X", c.PC)}
			break
		}

		if c.Prot[c.PC].Tron && r.Trace != nil {
			fmt.Fprintf(r.Trace, "A=%02X B=%02X X=%04X Y=%04X U=%04X S=%04X DP=%02X CC=%02X | PC=%04X\n",
				c.A, c.B, c.X, c.Y, c.U, c.S, c.DP, c.CC.Byte(), c.PC)
		}

		if c.Prot[c.PC].Check {
			ok, tag, err := r.checkAssertions(c.PC)
			if err != nil {
				res.Fault = err
				res.Tag = tag
				break
			}
			if !ok {
				res.Fault = &cpu6809.Fault{Kind: cpu6809.FaultTestFailed, PC: c.PC}
				res.Tag = tag
				break
			}
		}

		res.Steps++
		if err := c.Step(); err != nil {
			res.Fault = err
			break
		}
		if c.S == sp {
			break
		}
	}

	res.Passed = res.Fault == nil
	if res.Tag == "" {
		res.Tag = unit.Name
	}
	return res
}

// weedsKind is FaultNonExecutable's value, reused here under the test
// runner's own name for the fill-byte convention (landing on untouched
// memory, not a protection-bit violation).
const weedsKind = cpu6809.FaultNonExecutable

func (r *Runner) checkAssertions(pc uint16) (ok bool, tag string, err error) {
	for _, a := range r.Asserts[pc] {
		result, runErr := assert.Run(a.Program, r.CPU, a.Tag)
		if runErr != nil {
			return false, a.Tag, runErr
		}
		if !result {
			return false, a.Tag, nil
		}
	}
	return true, "", nil
}

// FaultMessage renders err (expected to be a *cpu6809.Fault, but any error
// is accepted) the way the unit-test back-end's mfaults[] table does.
func FaultMessage(err error) string {
	f, ok := err.(*cpu6809.Fault)
	if !ok {
		return err.Error()
	}
	switch f.Kind {
	case cpu6809.FaultInternal:
		return "an internal error inside the 6809 emulator"
	case cpu6809.FaultIllegalInstruction:
		return "an illegal instruction was encountered"
	case cpu6809.FaultIllegalAddressingMode:
		return "an illegal addressing mode was encountered"
	case cpu6809.FaultIllegalRegisterPair:
		return "an undefined combination of registers was being exchanged or transferred"
	case cpu6809.FaultTestFailed:
		return "test failed"
	case cpu6809.FaultNonReadable:
		return "reading from non-readable memory"
	case cpu6809.FaultNonExecutable:
		return "code went into the weeds"
	case cpu6809.FaultNonWritable:
		return "writing to non-writable memory"
	default:
		return f.Error()
	}
}
