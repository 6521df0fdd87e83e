/*
   a09 - Two-pass assembler driver and state.

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

// Package assembler drives the two-pass assembly loop over a tokenized
// source line stream, wiring internal/opcode, internal/pseudo, and
// internal/expr together through a single Assembler that implements all
// three packages' Context/Symbols boundary interfaces. File I/O is kept an
// external concern: callers supply a FileSystem that opens the root source,
// INCLUDEs, and INCBINs, so this package never touches the OS directly.
package assembler

import (
	"strings"

	"github.com/rcornwell/a09/internal/assert"
	"github.com/rcornwell/a09/internal/backend"
	"github.com/rcornwell/a09/internal/cpu6809"
	"github.com/rcornwell/a09/internal/diag"
	"github.com/rcornwell/a09/internal/expr"
	"github.com/rcornwell/a09/internal/lexer"
	"github.com/rcornwell/a09/internal/opcode"
	"github.com/rcornwell/a09/internal/pseudo"
	"github.com/rcornwell/a09/internal/symtab"
	"github.com/rcornwell/a09/internal/testrunner"
)

// defaultTestOrigin is OPT *TEST ORG's default: the address the first
// .TEST block begins emitting code at.
const defaultTestOrigin = 0xE000

// LineSource reads successive already-tab-expandable raw lines from one
// opened file, named for diagnostics.
type LineSource interface {
	Name() string
	// ReadLine returns the next raw line (without its trailing newline) and
	// true, or ok=false at end of file.
	ReadLine() (line string, ok bool, err error)
	Close() error
}

// FileSystem is the assembler's only escape hatch to the outside world: it
// resolves INCLUDE/INCBIN paths against a search list and opens or reads
// them. The caller (internal/cli, or a test double) supplies the concrete
// implementation; this package never calls os.Open itself.
type FileSystem interface {
	Open(path string, searchDirs []string) (LineSource, error)
	ReadFile(path string, searchDirs []string) ([]byte, error)
}

// Entry is the program's optional entry point, set by END.
type Entry struct {
	Value   uint16
	Present bool
}

// Assembler is the full two-pass driver state described by the data model:
// file names and search paths, the running PC/DP/label cursor, the opaque
// back-end, the symbol table, and the diagnostic channel (which itself owns
// the 10,000-bit warning-suppression bitmap).
type Assembler struct {
	fs FileSystem
	be backend.Backend
	rp *diag.Reporter

	symbols *symtab.Table
	scope   symtab.Scope

	SourceName   string
	OutputName   string
	ListingName  string
	Dependencies []string
	IncludeDirs  []string

	pass int
	pc   uint16
	dp   uint8

	curLabel string // label attached to the line currently being assembled
	curFile  string
	curLine  int

	prevMnemonic    string
	prevWasTransfer bool

	objectEmission bool

	entry Entry

	lineBuf []byte // bytes emitted so far for the current line, kind-tagged
	lineKind backend.Kind
	haveKind bool

	// Test-subsystem state (§4.9/§4.10): code inside a .TEST ... .ENDTST
	// block is assembled into testCPU's memory image instead of the
	// back-end's file, per a "swap the write hook" model.
	testCPU      *cpu6809.CPU
	testOrigin   uint16 // OPT *TEST ORG; where the next .TEST block starts
	inTest       bool
	traceOn      bool
	testName     string
	testAddr     uint16
	testFile     string
	testLine     int
	savedPC      uint16
	stringPool   uint16 // next free (descending) address for Assert string literals
	units        []testrunner.Unit
	asserts      map[uint16][]testrunner.Assertion
}

// New builds an Assembler around fs (file I/O), be (the selected output
// back-end, already Init'd with its Sink), and rp (the diagnostic channel).
func New(fs FileSystem, be backend.Backend, rp *diag.Reporter) *Assembler {
	return &Assembler{
		fs:             fs,
		be:             be,
		rp:             rp,
		symbols:        symtab.New(),
		objectEmission: true,
	}
}

// --- opcode.Context, pseudo.Context, expr.Symbols -------------------------

func (a *Assembler) Pass() int      { return a.pass }
func (a *Assembler) PC() uint16     { return a.pc }
func (a *Assembler) SetPC(pc uint16) { a.pc = pc }
func (a *Assembler) DP() uint8      { return a.dp }
func (a *Assembler) SetDP(dp uint8) { a.dp = dp }
func (a *Assembler) Label() string  { return a.curLabel }

func (a *Assembler) Warnf(tag int, format string, args ...interface{}) bool {
	return a.rp.Warnf(tag, format, args...)
}

func (a *Assembler) Errorf(tag int, format string, args ...interface{}) error {
	return a.rp.Errorf(tag, format, args...)
}

func (a *Assembler) DisableWarning(tag int) { a.rp.DisableWarning(tag) }
func (a *Assembler) EnableWarning(tag int)  { a.rp.EnableWarning(tag) }

// PCValue implements expr.Symbols.PC: '*' evaluates to the current address.
func (a *Assembler) PCValue() expr.Value {
	return expr.Value{Word: a.pc, Width: expr.Width16, Defined: true}
}

// Lookup implements expr.Symbols: resolve a bare name against the symbol
// table, scoping through '.'-local labels first.
func (a *Assembler) Lookup(name string) (expr.Value, bool) {
	effective, err := a.scope.Effective(name)
	if err != nil {
		effective = name
	}
	sym := a.symbols.Find(effective)
	if sym == nil {
		sym = a.symbols.Find(name)
	}
	if sym == nil {
		return expr.Value{}, false
	}
	v := expr.Value{Word: sym.Value, Defined: true, External: sym.Kind == symtab.Extern}
	if sym.Width == 8 {
		v.Width = expr.Width8
	} else if sym.Width == 16 {
		v.Width = expr.Width16
	}
	if sym.Kind == symtab.Undefined {
		v.Defined = false
		v.Unknown = true
	}
	return v, true
}

// expr.Symbols requires a method literally named PC; Assembler already
// exposes PC() uint16 for opcode/pseudo, so expr's interface is satisfied
// through a thin adapter type instead of a name clash on Assembler itself.
type symbolsView struct{ a *Assembler }

func (s symbolsView) Lookup(name string) (expr.Value, bool) { return s.a.Lookup(name) }
func (s symbolsView) PC() expr.Value                        { return s.a.PCValue() }

// Eval implements opcode.Context.Eval: run the expression parser over
// operand, returning its Value translated into opcode's mirror struct plus
// the unconsumed remainder. Pseudo-op handlers reach the same parser through
// pseudoView.Eval.
func (a *Assembler) Eval(operand string) (opcode.Value, string, error) {
	p := expr.NewParser(operand, symbolsView{a}, a.pass)
	v, err := p.Evaluate()
	if err != nil {
		return opcode.Value{}, "", err
	}
	return opcode.Value{
		Word:    v.Word,
		Width:   int(v.Width),
		Unknown: v.Unknown,
		Defined: v.Defined,
	}, p.Rest(), nil
}

// evalPseudoValue runs the same parser but returns a pseudo.Value, for
// pseudo-op handlers, plus the unconsumed remainder of operand.
func (a *Assembler) evalPseudoValue(operand string) (pseudo.Value, string, error) {
	p := expr.NewParser(operand, symbolsView{a}, a.pass)
	v, err := p.Evaluate()
	if err != nil {
		return pseudo.Value{}, "", err
	}
	return pseudo.Value{Word: v.Word, Unknown: v.Unknown, Defined: v.Defined}, p.Rest(), nil
}

// Eval (pseudo.Context variant) shares the identifier name with
// opcode.Context's method and the same signature shape is not possible in
// Go without an adapter, since pseudo.Value and opcode.Value are distinct
// mirror types; pseudoView below bridges the difference.
type pseudoView struct{ a *Assembler }

func (p pseudoView) Pass() int       { return p.a.pass }
func (p pseudoView) PC() uint16      { return p.a.pc }
func (p pseudoView) SetPC(pc uint16) { p.a.pc = pc }
func (p pseudoView) Org(addr uint16) error { return p.a.org(addr) }
func (p pseudoView) Align(n uint16) error  { return p.a.gap(n, false) }
func (p pseudoView) Reserve(n uint16) error { return p.a.gap(n, true) }
func (p pseudoView) DP() uint8       { return p.a.dp }
func (p pseudoView) SetDP(dp uint8)  { p.a.dp = dp }
func (p pseudoView) Label() string   { return p.a.curLabel }

func (p pseudoView) Eval(operand string) (pseudo.Value, string, error) {
	return p.a.evalPseudoValue(operand)
}

func (p pseudoView) DefineSymbol(name string, kind pseudo.SymbolKind, value uint16) error {
	return p.a.defineSymbol(name, kind, value)
}

func (p pseudoView) RekindSymbol(name string, kind pseudo.SymbolKind) error {
	return p.a.rekindSymbol(name, kind)
}

func (p pseudoView) Emit(b ...byte)     { p.a.emit(backend.KindInstruction, b) }
func (p pseudoView) EmitData(b ...byte) { p.a.emit(backend.KindData, b) }

func (p pseudoView) Warnf(tag int, format string, args ...interface{}) bool {
	return p.a.rp.Warnf(tag, format, args...)
}
func (p pseudoView) Errorf(tag int, format string, args ...interface{}) error {
	return p.a.rp.Errorf(tag, format, args...)
}

func (p pseudoView) Include(path string) error         { return p.a.include(path) }
func (p pseudoView) IncBinSize(path string) (int, error) { return p.a.incbinSize(path) }
func (p pseudoView) IncBinBytes(path string) ([]byte, error) {
	return p.a.incbinBytes(path)
}

func (p pseudoView) DisableWarning(tag int) { p.a.rp.DisableWarning(tag) }
func (p pseudoView) EnableWarning(tag int)  { p.a.rp.EnableWarning(tag) }

func (p pseudoView) SetObjectEmission(enabled bool) { p.a.objectEmission = enabled }

func (p pseudoView) End(entryLabel string) { p.a.end(entryLabel) }

func (p pseudoView) BeginTest(name string) error { return p.a.beginTest(name) }
func (p pseudoView) EndTest() error              { return p.a.endTest() }
func (p pseudoView) Assert(operand string) error { return p.a.assertDirective(operand) }
func (p pseudoView) Tron(timing bool) error      { return p.a.tron(timing) }
func (p pseudoView) Troff(timing bool) error     { return p.a.troff(timing) }
func (p pseudoView) SetTestOrigin(addr uint16)   { p.a.testOrigin = addr }

// Emit implements opcode.Context.Emit: instruction bytes.
func (a *Assembler) Emit(b ...byte) { a.emit(backend.KindInstruction, b) }

// emit buffers b (tagged instruction or data) into the current line's
// pending output and advances the PC; the driver flushes the line buffer to
// the back-end once the whole line has been processed, so a single ORG-like
// pseudo-op and an instruction never interleave kinds within one call.
func (a *Assembler) emit(kind backend.Kind, b []byte) {
	if a.inTest {
		a.emitTest(b)
		return
	}
	if !a.haveKind {
		a.lineKind = kind
		a.haveKind = true
	}
	a.lineBuf = append(a.lineBuf, b...)
	a.pc += uint16(len(b))
}

// emitTest lays b down in the test CPU's memory image instead of the
// back-end file: pass 1 only advances the PC (addresses must still land
// right for labels defined inside the block), pass 2 also writes the bytes
// and grants them read+write+exec, matching how a loader lays down a test
// unit's code before running it.
func (a *Assembler) emitTest(b []byte) {
	if a.pass == 2 {
		if a.testCPU == nil {
			a.testCPU = cpu6809.New()
		}
		for i, v := range b {
			addr := a.pc + uint16(i)
			a.testCPU.Mem[addr] = v
			a.testCPU.Prot[addr] = cpu6809.MemProt{Read: true, Write: true, Exec: true, Tron: a.traceOn}
		}
	}
	a.pc += uint16(len(b))
}

func (a *Assembler) flushLine() error {
	if len(a.lineBuf) == 0 {
		return nil
	}
	if a.objectEmission {
		if err := a.be.Write(a.pass, a.lineBuf, a.lineKind); err != nil {
			return err
		}
	}
	a.lineBuf = a.lineBuf[:0]
	a.haveKind = false
	return nil
}

// org implements ORG: flush whatever the current line already buffered,
// hand the back-end the jump (old PC as "last", new PC as "start"), then
// adopt the new PC.
func (a *Assembler) org(addr uint16) error {
	if err := a.flushLine(); err != nil {
		return err
	}
	last := a.pc
	if err := a.be.Org(a.pass, addr, last); err != nil {
		return err
	}
	a.pc = addr
	return nil
}

// gap implements RMB/ALIGN: flush, ask the back-end's RMB hook (rmb true) or
// Align hook to fill n bytes per its own policy (flat binary seeks, RSDOS
// pads-or-reopens, SREC/BASIC append zero bytes), then advance the PC past
// the reserved run.
func (a *Assembler) gap(n uint16, rmb bool) error {
	if err := a.flushLine(); err != nil {
		return err
	}
	if a.objectEmission {
		fill := a.be.Align
		if rmb {
			fill = a.be.RMB
		}
		if err := fill(a.pass, int(n)); err != nil {
			return err
		}
	}
	a.pc += n
	return nil
}

// defineSymbol resolves name through local-label scoping and records it in
// the symbol table, promoting Address->Equate/Set/Public per kind and
// enforcing the pass-1/pass-2 out-of-phase invariant for Address/Equate.
func (a *Assembler) defineSymbol(name string, kind pseudo.SymbolKind, value uint16) error {
	effective, err := a.scope.Effective(name)
	if err != nil {
		a.rp.Warnf(1, "%v", err)
		effective = name
	}
	tk := symKindFor(kind)

	if a.pass == 1 {
		if _, err := a.symbols.Define(effective, tk, value, a.curFile, a.curLine); err != nil {
			return a.rp.Errorf(2, "%s", err)
		}
		return nil
	}

	// Pass 2 re-walks the same source: every Address/Equate symbol was
	// already inserted in pass 1, so this call only verifies the binding
	// didn't drift (the out-of-phase invariant) instead of re-inserting,
	// which symtab.Define would otherwise reject as "already defined".
	// Set symbols are the one kind allowed to take a new value each pass.
	sym := a.symbols.Find(effective)
	if sym == nil {
		if _, err := a.symbols.Define(effective, tk, value, a.curFile, a.curLine); err != nil {
			return a.rp.Errorf(2, "%s", err)
		}
		return nil
	}
	if sym.Kind == symtab.Set {
		sym.Value = value
		sym.Kind = tk
		sym.File, sym.Line = a.curFile, a.curLine
		return nil
	}
	if sym.Value != value {
		return a.rp.Internalf(1, "%s value changed between passes (%#04x -> %#04x)", effective, sym.Value, value)
	}
	return nil
}

// rekindSymbol implements PUBLIC: re-kind an already-defined label in place
// (preserving its existing value) rather than redefine it, since
// symtab.Table.Define unconditionally rejects a second definition of a
// non-Set symbol. name is normally already present as the Address symbol
// runLine auto-defines for every labeled line.
func (a *Assembler) rekindSymbol(name string, kind pseudo.SymbolKind) error {
	if name == "" {
		return a.rp.Errorf(48, "missing label or expression for PUBLIC")
	}
	effective, err := a.scope.Effective(name)
	if err != nil {
		a.rp.Warnf(1, "%v", err)
		effective = name
	}
	value := a.pc
	file, line := a.curFile, a.curLine
	if sym := a.symbols.Find(effective); sym != nil {
		value = sym.Value
		file, line = sym.File, sym.Line
	}
	a.symbols.Rekind(effective, symKindFor(kind), value, file, line)
	return nil
}

func symKindFor(k pseudo.SymbolKind) symtab.Kind {
	switch k {
	case pseudo.KindEquate:
		return symtab.Equate
	case pseudo.KindSet:
		return symtab.Set
	case pseudo.KindPublic:
		return symtab.Public
	case pseudo.KindExtern:
		return symtab.Extern
	default:
		return symtab.Address
	}
}

// include implements INCLUDE: save the current label, assemble the named
// file's lines against the current pass (PC, symbol table and dependency
// list are shared with the including file), then restore the label.
func (a *Assembler) include(path string) error {
	src, err := a.fs.Open(path, a.IncludeDirs)
	if err != nil {
		return a.rp.Errorf(3, "cannot open include file %q: %v", path, err)
	}
	defer src.Close()
	if a.pass == 1 {
		a.Dependencies = append(a.Dependencies, src.Name())
	}

	savedLabel := a.curLabel
	a.curLabel = ""
	defer func() { a.curLabel = savedLabel }()

	return a.runLines(src)
}

func (a *Assembler) incbinSize(path string) (int, error) {
	data, err := a.fs.ReadFile(path, a.IncludeDirs)
	if err != nil {
		return 0, a.rp.Errorf(4, "cannot read binary file %q: %v", path, err)
	}
	a.Dependencies = append(a.Dependencies, path)
	return len(data), nil
}

func (a *Assembler) incbinBytes(path string) ([]byte, error) {
	data, err := a.fs.ReadFile(path, a.IncludeDirs)
	if err != nil {
		return nil, a.rp.Errorf(4, "cannot read binary file %q: %v", path, err)
	}
	return data, nil
}

func (a *Assembler) end(entryLabel string) {
	if entryLabel == "" {
		return
	}
	v, ok := a.Lookup(entryLabel)
	if !ok {
		a.rp.Warnf(5, "entry label %q not defined", entryLabel)
		return
	}
	a.entry = Entry{Value: v.Word, Present: true}
}

// --- test subsystem (§4.9/§4.10) ------------------------------------------

// beginTest implements .TEST "name": flush any pending line, remember the
// PC to resume at after .ENDTST, and switch emission into the test image
// starting at the current test-origin pointer.
func (a *Assembler) beginTest(name string) error {
	if a.inTest {
		return a.rp.Errorf(40, "nested .TEST blocks are not allowed")
	}
	if err := a.flushLine(); err != nil {
		return err
	}
	if a.testOrigin == 0 {
		a.testOrigin = defaultTestOrigin
	}
	a.savedPC = a.pc
	a.inTest = true
	a.testName = name
	a.testAddr = a.testOrigin
	a.testFile, a.testLine = a.curFile, a.curLine
	a.pc = a.testOrigin
	return nil
}

// endTest implements .ENDTST: record the closed block as a runnable unit,
// remember where the next .TEST block should continue, and resume emission
// into the back-end file at the PC .TEST found it at.
func (a *Assembler) endTest() error {
	if !a.inTest {
		return a.rp.Errorf(41, ".ENDTST without a matching .TEST")
	}
	if err := a.flushLine(); err != nil {
		return err
	}
	a.testOrigin = a.pc
	if a.pass == 2 {
		a.units = append(a.units, testrunner.Unit{
			Name: a.testName, Addr: a.testAddr, File: a.testFile, Line: a.testLine,
		})
	}
	a.inTest = false
	a.traceOn = false
	a.pc = a.savedPC
	return nil
}

// assertDirective implements .ASSERT expr[, "message"]: only meaningful
// inside a .TEST block, since the test runner only ever steps through the
// units it collected — an assertion anywhere else could never trigger.
func (a *Assembler) assertDirective(operand string) error {
	if !a.inTest {
		return a.rp.Errorf(42, ".ASSERT outside .TEST")
	}
	if a.pass != 2 {
		return nil
	}
	prog, rest, err := assert.Compile(operand, assertView{a})
	if err != nil {
		return a.rp.Errorf(43, "%v", err)
	}
	tag := a.testName
	if msg, ok := trailingMessage(rest); ok {
		tag = msg
	}
	a.registerCheck(a.pc, tag, prog)
	return nil
}

// trailingMessage parses .ASSERT's optional ", \"message\"" tail, the part
// assert.Compile leaves unconsumed in rest.
func trailingMessage(rest string) (string, bool) {
	rest = strings.TrimSpace(rest)
	rest = strings.TrimPrefix(rest, ",")
	rest = strings.TrimSpace(rest)
	if len(rest) < 2 || rest[0] != '"' || rest[len(rest)-1] != '"' {
		return "", false
	}
	return rest[1 : len(rest)-1], true
}

// tron/troff implement .TRON/.TROFF: timing emplaces a one-shot TIMEON/
// TIMEOFF checkpoint at the current PC; otherwise they toggle the per-byte
// trace flag future emitted bytes carry.
func (a *Assembler) tron(timing bool) error {
	if !a.inTest {
		return a.rp.Errorf(44, ".TRON outside .TEST")
	}
	if timing {
		return a.emitTimingCheckpoint(true)
	}
	a.traceOn = true
	return nil
}

func (a *Assembler) troff(timing bool) error {
	if !a.inTest {
		return a.rp.Errorf(45, ".TROFF outside .TEST")
	}
	if timing {
		return a.emitTimingCheckpoint(false)
	}
	a.traceOn = false
	return nil
}

func (a *Assembler) emitTimingCheckpoint(on bool) error {
	if a.pass != 2 {
		return nil
	}
	op := assert.OpTimeOff
	if on {
		op = assert.OpTimeOn
	}
	a.registerCheck(a.pc, a.testName, assert.Program{op, assert.OpTrue, assert.OpExit})
	return nil
}

// registerCheck attaches prog to addr's checkpoint list and marks the byte
// check-gated in the test CPU's memory image.
func (a *Assembler) registerCheck(addr uint16, tag string, prog assert.Program) {
	if a.asserts == nil {
		a.asserts = map[uint16][]testrunner.Assertion{}
	}
	a.asserts[addr] = append(a.asserts[addr], testrunner.Assertion{Tag: tag, Program: prog})
	if a.testCPU == nil {
		a.testCPU = cpu6809.New()
	}
	a.testCPU.Prot[addr].Check = true
}

// assertView adapts Assembler to assert.Context: symbol lookup, the memory
// fill byte ('?'), and string-literal storage below a descending pool
// pointer in the test image, the way the unit-test back-end lays test
// strings below the stack rather than inside the code stream.
type assertView struct{ a *Assembler }

func (v assertView) Lookup(name string) (uint16, bool) {
	val, ok := v.a.Lookup(name)
	if !ok || !val.Defined {
		return 0, false
	}
	return val.Word, true
}

func (v assertView) FillByte() uint8 { return 0 }

func (v assertView) StoreString(s string) (uint16, uint16) {
	return v.a.storeTestString(s)
}

func (a *Assembler) storeTestString(s string) (uint16, uint16) {
	if a.testCPU == nil {
		a.testCPU = cpu6809.New()
	}
	if a.stringPool == 0 {
		a.stringPool = 0xFF00
	}
	n := uint16(len(s))
	a.stringPool -= n
	addr := a.stringPool
	for i := 0; i < len(s); i++ {
		a.testCPU.Mem[addr+uint16(i)] = s[i]
		a.testCPU.Prot[addr+uint16(i)] = cpu6809.MemProt{Read: true}
	}
	return addr, n
}

// TestCPU, TestUnits, and TestAsserts expose the assembled test image for
// the caller (internal/cli / cmd/a09) to drive through a testrunner.Runner
// once assembly completes.
func (a *Assembler) TestCPU() *cpu6809.CPU                         { return a.testCPU }
func (a *Assembler) TestUnits() []testrunner.Unit                  { return a.units }
func (a *Assembler) TestAsserts() map[uint16][]testrunner.Assertion { return a.asserts }

// --- pass driver -----------------------------------------------------------

// Assemble runs both passes of the root source file in sequence, driving
// the back-end through PassStart/PassEnd and End.
func (a *Assembler) Assemble() error {
	for pass := 1; pass <= 2; pass++ {
		a.pass = pass
		a.pc = 0
		a.dp = 0
		a.scope = symtab.Scope{}
		a.prevMnemonic = ""
		a.prevWasTransfer = false

		a.inTest = false
		a.traceOn = false
		a.testOrigin = defaultTestOrigin
		a.stringPool = 0
		a.units = nil
		a.asserts = map[uint16][]testrunner.Assertion{}
		if a.testCPU != nil {
			a.testCPU = cpu6809.New()
		}

		if err := a.be.PassStart(pass); err != nil {
			return err
		}

		src, err := a.fs.Open(a.SourceName, a.IncludeDirs)
		if err != nil {
			return a.rp.Errorf(6, "cannot open %q: %v", a.SourceName, err)
		}
		err = a.runLines(src)
		src.Close()
		if err != nil {
			return err
		}

		if err := a.be.PassEnd(pass); err != nil {
			return err
		}
	}
	return a.be.End(2, backend.Entry{Value: a.entry.Value, Present: a.entry.Present})
}

// runLines drives one file (root source or an INCLUDE child) to completion
// against the current pass, dispatching each line's mnemonic to the
// pseudo-op table first, then the opcode table.
func (a *Assembler) runLines(src LineSource) error {
	lineNo := 0
	for {
		raw, ok, err := src.ReadLine()
		if err != nil {
			return a.rp.Errorf(7, "%s: %v", src.Name(), err)
		}
		if !ok {
			break
		}
		lineNo++
		a.curFile, a.curLine = src.Name(), lineNo
		a.rp.SetPosition(src.Name(), lineNo)

		if err := a.runLine(raw); err != nil {
			return err
		}
	}
	a.rp.ClearPosition()
	return nil
}

func (a *Assembler) runLine(raw string) error {
	expanded, err := lexer.Expand(raw)
	if err != nil {
		return a.rp.Errorf(8, "%v", err)
	}
	fields := lexer.Split(expanded)

	mnemonic := strings.ToUpper(fields.Mnemonic)

	a.curLabel = ""
	if fields.Label != "" {
		a.curLabel = fields.Label
		// EQU/SET give the label its value themselves via DefineSymbol;
		// every other mnemonic treats a leading label as an address symbol
		// bound to the line's starting PC.
		if mnemonic != "EQU" && mnemonic != "SET" {
			if err := a.defineSymbol(fields.Label, pseudo.KindAddress, a.pc); err != nil {
				return err
			}
		}
	}

	if mnemonic == "" {
		return nil
	}

	if handler, ok := pseudo.Lookup(mnemonic); ok {
		if err := handler(pseudoView{a}, fields.Operand); err != nil {
			return err
		}
		return a.flushLine()
	}

	desc, ok := opcode.Lookup(mnemonic)
	if !ok {
		return a.rp.Errorf(10, "unknown mnemonic %q", mnemonic)
	}
	if err := opcode.Encode(a, desc, fields.Operand); err != nil {
		return err
	}
	bytesEmitted := len(a.lineBuf)

	if a.pass == 2 {
		a.checkDeadCode(mnemonic, bytesEmitted, fields.Label == "")
	}
	a.prevMnemonic = mnemonic
	a.prevWasTransfer = isUnconditionalTransfer(mnemonic, fields.Operand)

	return a.flushLine()
}

// checkDeadCode implements §4.8: after an unconditional transfer, a next
// line that is unlabeled and emits a non-zero byte count is suspicious
// unless it repeats the same mnemonic (an explicit jump table).
func (a *Assembler) checkDeadCode(mnemonic string, cycles int, unlabeled bool) {
	if a.prevWasTransfer && unlabeled && cycles > 0 && mnemonic != a.prevMnemonic {
		a.rp.Warnf(11, "possible dead code")
	}
}

func isUnconditionalTransfer(mnemonic, operand string) bool {
	switch mnemonic {
	case "BRA", "LBRA", "JMP", "RTS", "RTI":
		return true
	case "PULS", "PULU":
		return strings.Contains(strings.ToUpper(operand), "PC")
	case "TFR", "EXG":
		fields := strings.Split(strings.ToUpper(operand), ",")
		return len(fields) == 2 && strings.TrimSpace(fields[1]) == "PC"
	}
	return false
}

// Dependencies/IncludeDirs are exported directly; DepList returns a copy for
// callers (e.g. the Makefile-dependency printer) that must not retain a
// reference into the assembler's live slice.
func (a *Assembler) DepList() []string {
	out := make([]string, len(a.Dependencies))
	copy(out, a.Dependencies)
	return out
}

// Entry returns the program entry point recorded by END, if any.
func (a *Assembler) Entry() Entry { return a.entry }

// SymbolTable exposes the underlying table read-only, for listing output.
func (a *Assembler) SymbolTable() *symtab.Table { return a.symbols }
