/*
   a09 - Command-line driver.

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
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rcornwell/a09/internal/assembler"
	"github.com/rcornwell/a09/internal/backend"
	"github.com/rcornwell/a09/internal/cli"
	"github.com/rcornwell/a09/internal/depwriter"
	"github.com/rcornwell/a09/internal/diag"
	"github.com/rcornwell/a09/internal/testrunner"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// The back-end is selected up front (format defaults to "bin") so
	// unknown top-level flags can be offered to it per §6.1 before cli.Parse
	// fails on them.
	format := "bin"
	for i, a := range args {
		if (a == "-f" || a == "--format") && i+1 < len(args) {
			format = args[i+1]
		} else if strings.HasPrefix(a, "--format=") {
			format = strings.TrimPrefix(a, "--format=")
		}
	}
	be, err := backend.New(format)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	opts, err := cli.Parse(args, be.CmdLine)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if opts.Help {
		fmt.Fprintf(os.Stderr, "usage: a09 [options] file\n")
		return 0
	}
	if opts.Source == "" {
		fmt.Fprintln(os.Stderr, "a09: missing source file")
		return 1
	}

	var listingDest io.Writer
	if opts.ListingFile != "" {
		listing, err := os.Create(opts.ListingFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		defer listing.Close()
		listingDest = listing
	}
	rp := diag.New(listingDest, opts.Debug)
	rp.SetFailOnWarning(opts.FailOnWarn)
	for _, tag := range opts.DisableWarn {
		tag = strings.TrimSpace(tag)
		tag = strings.TrimPrefix(tag, "W")
		var n int
		if _, err := fmt.Sscanf(tag, "%d", &n); err == nil {
			rp.DisableWarning(n)
		}
	}

	if opts.MakeDeps {
		return runDeps(opts, be, rp)
	}

	out, err := os.Create(opts.OutputFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer out.Close()
	if err := be.Init(out); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	a := assembler.New(&osFileSystem{}, be, rp)
	a.SourceName = opts.Source
	a.OutputName = opts.OutputFile
	a.ListingName = opts.ListingFile
	a.IncludeDirs = opts.IncludeDirs

	if err := a.Assemble(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if opts.RunTests || opts.PlainTests {
		runUnitTests(a, opts, rp)
	}

	if opts.CoreFile != "" {
		if err := writeCoreFile(opts.CoreFile, a); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}

	return rp.ExitStatus()
}

func runDeps(opts *cli.Options, be backend.Backend, rp *diag.Reporter) int {
	sink := &discardSink{}
	if err := be.Init(sink); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	a := assembler.New(&osFileSystem{}, be, rp)
	a.SourceName = opts.Source
	a.IncludeDirs = opts.IncludeDirs
	if err := a.Assemble(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	target := opts.OutputFile
	if target == "" {
		target = "a09.obj"
	}
	deps := append([]string{opts.Source}, a.DepList()...)
	if err := depwriter.Write(os.Stdout, target, deps, 78); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// runUnitTests drives every .TEST block the assembly pass collected through
// the 6809 emulator, reporting results in TAP-14 form under -T or plainly
// under -t.
func runUnitTests(a *assembler.Assembler, opts *cli.Options, rp *diag.Reporter) {
	cpu := a.TestCPU()
	if cpu == nil {
		return
	}
	for addr := 0xFF00; addr < 0x10000; addr++ {
		cpu.Prot[addr].Read = true
		cpu.Prot[addr].Write = true
	}
	r := &testrunner.Runner{
		CPU:     cpu,
		Units:   a.TestUnits(),
		Asserts: a.TestAsserts(),
		Cfg: testrunner.Config{
			StackTop:  0xFF00,
			StackSize: 256,
			FillByte:  0,
			Randomize: opts.Randomize,
			TAPOutput: opts.RunTests,
		},
		Out: os.Stdout,
	}
	results := r.Run()
	if !opts.RunTests {
		for _, res := range results {
			status := "PASS"
			if !res.Passed {
				status = "FAIL"
			}
			msg := ""
			if !res.Passed {
				msg = ": " + testrunner.FaultMessage(res.Fault)
			}
			fmt.Fprintf(os.Stdout, "%-4s %s%s\n", status, res.Unit.Name, msg)
		}
	}
	for _, res := range results {
		if !res.Passed {
			rp.Errorf(50, "test %q failed: %s", res.Unit.Name, testrunner.FaultMessage(res.Fault))
		}
	}
}

// writeCoreFile dumps the test CPU's register and memory state after -T/-t
// ran, for post-mortem inspection of a failing unit.
func writeCoreFile(path string, a *assembler.Assembler) error {
	cpu := a.TestCPU()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	bw := bufio.NewWriter(f)
	defer bw.Flush()
	if cpu == nil {
		_, err := fmt.Fprintln(bw, "no test units were assembled")
		return err
	}
	fmt.Fprintf(bw, "A=%02X B=%02X DP=%02X X=%04X Y=%04X U=%04X S=%04X PC=%04X CC=%02X\n",
		cpu.A, cpu.B, cpu.DP, cpu.X, cpu.Y, cpu.U, cpu.S, cpu.PC, cpu.CC.Byte())
	fmt.Fprintf(bw, "cycles=%d instructions=%d\n", cpu.Cycles, cpu.Instructions)
	for base := 0; base < 0x10000; base += 16 {
		row := cpu.Mem[base : base+16]
		allZero := true
		for _, b := range row {
			if b != 0 {
				allZero = false
				break
			}
		}
		if allZero {
			continue
		}
		fmt.Fprintf(bw, "%04X:", base)
		for _, b := range row {
			fmt.Fprintf(bw, " %02X", b)
		}
		fmt.Fprintln(bw)
	}
	return nil
}

// discardSink is a no-op backend.Sink for -M's dependency-only pass, which
// assembles (to resolve INCLUDEs) but never needs to write output bytes.
type discardSink struct{ pos int64 }

func (s *discardSink) Write(p []byte) (int, error) { s.pos += int64(len(p)); return len(p), nil }

func (s *discardSink) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case 0:
		s.pos = offset
	case 1:
		s.pos += offset
	case 2:
		s.pos += offset
	}
	return s.pos, nil
}

// osFileSystem resolves INCLUDE/INCBIN paths against a search list using
// real file I/O; internal/assembler never imports "os" itself.
type osFileSystem struct{}

func (osFileSystem) resolve(path string, searchDirs []string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	for _, dir := range searchDirs {
		candidate := filepath.Join(dir, path)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return path, nil
}

func (fs osFileSystem) Open(path string, searchDirs []string) (assembler.LineSource, error) {
	full, err := fs.resolve(path, searchDirs)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, err
	}
	return &osLineSource{name: full, sc: bufio.NewScanner(f), f: f}, nil
}

func (fs osFileSystem) ReadFile(path string, searchDirs []string) ([]byte, error) {
	full, err := fs.resolve(path, searchDirs)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(full)
}

type osLineSource struct {
	name string
	sc   *bufio.Scanner
	f    *os.File
}

func (s *osLineSource) Name() string { return s.name }

func (s *osLineSource) ReadLine() (string, bool, error) {
	if s.sc.Scan() {
		return s.sc.Text(), true, nil
	}
	return "", false, s.sc.Err()
}

func (s *osLineSource) Close() error { return s.f.Close() }
