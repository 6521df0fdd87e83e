/*
   a09 - Output format back-end trait.

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

// Package backend defines the pluggable output-container trait that
// decouples instruction/data emission from container layout, plus the
// bin/rsdos/srec/basic/dragon implementations. Each back-end registers
// itself by name at init time; cmd/a09 constructs one with New from the
// -f flag's value, and internal/assembler only sees the Backend interface.
package backend

import (
	"fmt"
	"io"
)

// Kind distinguishes an instruction byte run from a data byte run, mirroring
// the reference assembler's write(bytes, kind) parameter.
type Kind int

const (
	KindInstruction Kind = iota
	KindData
)

// FloatFormat selects the runtime float encoding a back-end wants for
// FCC-style real-number literals.
type FloatFormat int

const (
	FloatIEEE         FloatFormat = iota // SREC
	FloatMicrosoft129                    // RSDOS, BASIC, Dragon
	FloatMicrosoft128                    // bias-128 variant; no back-end selects it
)

// Entry describes the program's entry symbol as passed to End.
type Entry struct {
	Value   uint16
	Present bool
}

// Sink is the seekable output stream a back-end writes its container to.
// Back-ends patch earlier headers by seeking backward and restoring the
// write position, so plain io.Writer is not enough.
type Sink interface {
	io.Writer
	io.Seeker
}

// Backend is the dispatch table every output-format container implements.
// Optional handlers that a format has no use for are satisfied by embedding
// Base; Name, Write, Align, RMB, Org and End are always the format's own.
type Backend interface {
	// Name is the back-end's registered -f value ("bin", "rsdos", ...).
	Name() string

	// Init binds the back-end to its output sink before assembly starts.
	Init(out Sink) error

	// CmdLine offers an unrecognized top-level CLI flag to the back-end.
	// ok is false if the back-end does not understand flag.
	CmdLine(flag string, value string) (ok bool, err error)

	PassStart(pass int) error
	PassEnd(pass int) error

	// Write emits one byte run. Called in both passes; pass tells the
	// back-end which one it is in.
	Write(pass int, data []byte, kind Kind) error

	// Opt handles a back-end-specific "OPT *<label>" key/value pair whose
	// label matched this back-end's name; rest is the remaining operand
	// text after the label. ok is false if key is not recognized.
	Opt(pass int, key string, rest string) (ok bool, err error)

	DP() error
	Code() error

	// Align advances the output position by gap bytes of filler (ALIGN).
	Align(pass int, gap int) error
	// RMB reserves n bytes of filler (RMB).
	RMB(pass int, n int) error

	// Org notifies the back-end of a new program counter; last is the PC
	// value before this ORG (0 on the first ORG of the assembly).
	Org(pass int, start uint16, last uint16) error

	// End finalizes the container; entry is the label named on END, if any.
	End(pass int, entry Entry) error

	Test(pass int) error
	TestOn(pass int) error
	TestOff(pass int) error
	Assert(pass int) error
	EndTest(pass int) error

	Float() FloatFormat

	Fini() error
}

// Base supplies default implementations of every Backend method except Name,
// Write, Align, RMB, Org and End: no-ops, CmdLine/Opt reporting "not
// recognized", and Float returning FloatMicrosoft129. Concrete back-ends
// embed it and override only the operations their container format cares
// about.
type Base struct{}

func (Base) Init(Sink) error                               { return nil }
func (Base) CmdLine(string, string) (bool, error)           { return false, nil }
func (Base) PassStart(int) error                            { return nil }
func (Base) PassEnd(int) error                              { return nil }
func (Base) Opt(int, string, string) (bool, error)          { return false, nil }
func (Base) DP() error                                      { return nil }
func (Base) Code() error                                    { return nil }
func (Base) Test(int) error                                 { return nil }
func (Base) TestOn(int) error                               { return nil }
func (Base) TestOff(int) error                              { return nil }
func (Base) Assert(int) error                               { return nil }
func (Base) EndTest(int) error                              { return nil }
func (Base) Fini() error                                    { return nil }
func (Base) Float() FloatFormat                             { return FloatMicrosoft129 }

var registry = map[string]func() Backend{}

// Register adds a back-end constructor under name. Called from each
// format's init function.
func Register(name string, ctor func() Backend) {
	registry[name] = ctor
}

// New constructs the named back-end, or reports it as unknown.
func New(name string) (Backend, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown output format %q", name)
	}
	return ctor(), nil
}

// Names lists every registered back-end, for usage text.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	return names
}

// tell returns the sink's current write offset via a zero-length relative seek.
func tell(out Sink) (int64, error) {
	return out.Seek(0, io.SeekCurrent)
}
