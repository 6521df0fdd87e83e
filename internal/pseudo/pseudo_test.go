/*
   a09 - Pseudo-op handler tests.

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
package pseudo

import (
	"fmt"
	"testing"
)

type symDef struct {
	name  string
	kind  SymbolKind
	value uint16
}

type fakeCtx struct {
	pass      int
	pc        uint16
	dp        uint8
	label     string
	data      []byte
	code      []byte
	symbols   []symDef
	warnings  []int
	disabled  []int
	enabled   []int
	objOn     *bool
	endLabel  *string
	includes  []string
	incbinLen int
	incbinErr error
	incbinOut []byte
}

func (f *fakeCtx) Pass() int      { return f.pass }
func (f *fakeCtx) PC() uint16     { return f.pc }
func (f *fakeCtx) SetPC(v uint16) { f.pc = v }

func (f *fakeCtx) Org(addr uint16) error {
	f.pc = addr
	return nil
}

func (f *fakeCtx) Align(n uint16) error {
	f.pc += n
	return nil
}

func (f *fakeCtx) Reserve(n uint16) error {
	f.pc += n
	return nil
}

func (f *fakeCtx) DP() uint8     { return f.dp }
func (f *fakeCtx) SetDP(v uint8) { f.dp = v }
func (f *fakeCtx) Label() string { return f.label }

func (f *fakeCtx) Eval(operand string) (Value, string, error) {
	n := 0
	i := 0
	for i < len(operand) && operand[i] >= '0' && operand[i] <= '9' {
		n = n*10 + int(operand[i]-'0')
		i++
	}
	return Value{Word: uint16(n), Defined: true}, operand[i:], nil
}

func (f *fakeCtx) DefineSymbol(name string, kind SymbolKind, value uint16) error {
	f.symbols = append(f.symbols, symDef{name, kind, value})
	return nil
}

func (f *fakeCtx) RekindSymbol(name string, kind SymbolKind) error {
	for i := range f.symbols {
		if f.symbols[i].name == name {
			f.symbols[i].kind = kind
			return nil
		}
	}
	f.symbols = append(f.symbols, symDef{name, kind, 0})
	return nil
}

func (f *fakeCtx) Emit(b ...byte)     { f.code = append(f.code, b...) }
func (f *fakeCtx) EmitData(b ...byte) { f.data = append(f.data, b...) }

func (f *fakeCtx) Warnf(tag int, format string, args ...interface{}) bool {
	f.warnings = append(f.warnings, tag)
	return true
}

func (f *fakeCtx) Errorf(tag int, format string, args ...interface{}) error {
	return fmt.Errorf("E%04d: %s", tag, fmt.Sprintf(format, args...))
}

func (f *fakeCtx) Include(path string) error {
	f.includes = append(f.includes, path)
	return nil
}

func (f *fakeCtx) IncBinSize(path string) (int, error) {
	return f.incbinLen, f.incbinErr
}

func (f *fakeCtx) IncBinBytes(path string) ([]byte, error) {
	return f.incbinOut, f.incbinErr
}

func (f *fakeCtx) DisableWarning(tag int) { f.disabled = append(f.disabled, tag) }
func (f *fakeCtx) EnableWarning(tag int)  { f.enabled = append(f.enabled, tag) }

func (f *fakeCtx) SetObjectEmission(enabled bool) { f.objOn = &enabled }

func (f *fakeCtx) End(entryLabel string) { f.endLabel = &entryLabel }

func (f *fakeCtx) BeginTest(name string) error { return nil }
func (f *fakeCtx) EndTest() error              { return nil }
func (f *fakeCtx) Assert(operand string) error { return nil }
func (f *fakeCtx) Tron(timing bool) error      { return nil }
func (f *fakeCtx) Troff(timing bool) error     { return nil }
func (f *fakeCtx) SetTestOrigin(addr uint16)   {}

func TestEquDefinesEquate(t *testing.T) {
	ctx := &fakeCtx{label: "FOO"}
	h, _ := Lookup("EQU")
	if err := h(ctx, "42"); err != nil {
		t.Fatalf("EQU returned error: %v", err)
	}
	if len(ctx.symbols) != 1 || ctx.symbols[0].kind != KindEquate || ctx.symbols[0].value != 42 {
		t.Errorf("symbols = %+v, want one Equate=42", ctx.symbols)
	}
}

func TestSetDefinesSetSymbol(t *testing.T) {
	ctx := &fakeCtx{label: "COUNT"}
	h, _ := Lookup("SET")
	if err := h(ctx, "1"); err != nil {
		t.Fatalf("SET returned error: %v", err)
	}
	if ctx.symbols[0].kind != KindSet {
		t.Errorf("kind = %v, want KindSet", ctx.symbols[0].kind)
	}
}

func TestOrgSetsPC(t *testing.T) {
	ctx := &fakeCtx{}
	h, _ := Lookup("ORG")
	if err := h(ctx, "100"); err != nil {
		t.Fatalf("ORG returned error: %v", err)
	}
	if ctx.pc != 100 {
		t.Errorf("pc = %d, want 100", ctx.pc)
	}
}

func TestRmbAdvancesPC(t *testing.T) {
	ctx := &fakeCtx{pc: 10}
	h, _ := Lookup("RMB")
	if err := h(ctx, "5"); err != nil {
		t.Fatalf("RMB returned error: %v", err)
	}
	if ctx.pc != 15 {
		t.Errorf("pc = %d, want 15", ctx.pc)
	}
}

func TestRmbZeroFails(t *testing.T) {
	ctx := &fakeCtx{}
	h, _ := Lookup("RMB")
	if err := h(ctx, "0"); err == nil {
		t.Fatal("expected error reserving 0 bytes")
	}
}

func TestAlignAdvancesToBoundary(t *testing.T) {
	ctx := &fakeCtx{pc: 0x1003}
	h, _ := Lookup("ALIGN")
	if err := h(ctx, "4"); err != nil {
		t.Fatalf("ALIGN returned error: %v", err)
	}
	if ctx.pc != 0x1004 {
		t.Errorf("pc = %#x, want 0x1004", ctx.pc)
	}
}

func TestAlignAlreadyAligned(t *testing.T) {
	ctx := &fakeCtx{pc: 0x1000}
	h, _ := Lookup("ALIGN")
	if err := h(ctx, "4"); err != nil {
		t.Fatalf("ALIGN returned error: %v", err)
	}
	if ctx.pc != 0x1000 {
		t.Errorf("pc = %#x, want unchanged 0x1000", ctx.pc)
	}
}

func TestFcbEmitsBytes(t *testing.T) {
	ctx := &fakeCtx{}
	h, _ := Lookup("FCB")
	if err := h(ctx, "1,2,3"); err != nil {
		t.Fatalf("FCB returned error: %v", err)
	}
	if len(ctx.data) != 3 || ctx.data[0] != 1 || ctx.data[2] != 3 {
		t.Errorf("data = %v, want [1 2 3]", ctx.data)
	}
}

func TestFcbWarnsOnTruncation(t *testing.T) {
	ctx := &fakeCtx{}
	h, _ := Lookup("FCB")
	if err := h(ctx, "300"); err != nil {
		t.Fatalf("FCB returned error: %v", err)
	}
	if len(ctx.warnings) != 1 {
		t.Errorf("warnings = %v, want one truncation warning", ctx.warnings)
	}
}

func TestFdbEmitsBigEndianWords(t *testing.T) {
	ctx := &fakeCtx{}
	h, _ := Lookup("FDB")
	if err := h(ctx, "258"); err != nil {
		t.Fatalf("FDB returned error: %v", err)
	}
	if len(ctx.data) != 2 || ctx.data[0] != 1 || ctx.data[1] != 2 {
		t.Errorf("data = %v, want [1 2] (big-endian 258)", ctx.data)
	}
}

func TestFccEmitsDelimitedText(t *testing.T) {
	ctx := &fakeCtx{}
	h, _ := Lookup("FCC")
	if err := h(ctx, "/HELLO/"); err != nil {
		t.Fatalf("FCC returned error: %v", err)
	}
	if string(ctx.data) != "HELLO" {
		t.Errorf("data = %q, want HELLO", ctx.data)
	}
}

func TestFcsSetsHighBitOfLastByte(t *testing.T) {
	ctx := &fakeCtx{}
	h, _ := Lookup("FCS")
	if err := h(ctx, "/HI/"); err != nil {
		t.Fatalf("FCS returned error: %v", err)
	}
	if ctx.data[1] != ('I' | 0x80) {
		t.Errorf("last byte = %#x, want high bit set", ctx.data[1])
	}
}

func TestAsciiCSuffixPrependsLength(t *testing.T) {
	ctx := &fakeCtx{}
	h, _ := Lookup("ASCII")
	if err := h(ctx, "'HI' C"); err != nil {
		t.Fatalf("ASCII returned error: %v", err)
	}
	if ctx.data[0] != 2 || string(ctx.data[1:]) != "HI" {
		t.Errorf("data = %v, want length-prefixed HI", ctx.data)
	}
}

func TestAsciiHSuffixSetsHighBit(t *testing.T) {
	ctx := &fakeCtx{}
	h, _ := Lookup("ASCII")
	if err := h(ctx, "'HI' H"); err != nil {
		t.Fatalf("ASCII returned error: %v", err)
	}
	if ctx.data[1] != ('I' | 0x80) {
		t.Errorf("last byte = %#x, want high bit set", ctx.data[1])
	}
}

func TestAsciiZSuffixAppendsNull(t *testing.T) {
	ctx := &fakeCtx{}
	h, _ := Lookup("ASCII")
	if err := h(ctx, "'HI' Z"); err != nil {
		t.Fatalf("ASCII returned error: %v", err)
	}
	if len(ctx.data) != 3 || ctx.data[2] != 0 {
		t.Errorf("data = %v, want trailing null", ctx.data)
	}
}

func TestAsciiEscapes(t *testing.T) {
	ctx := &fakeCtx{}
	h, _ := Lookup("ASCII")
	if err := h(ctx, "'A\\nB'"); err != nil {
		t.Fatalf("ASCII returned error: %v", err)
	}
	if string(ctx.data) != "A\nB" {
		t.Errorf("data = %q, want A\\nB", ctx.data)
	}
}

func TestIncludePassesPath(t *testing.T) {
	ctx := &fakeCtx{}
	h, _ := Lookup("INCLUDE")
	if err := h(ctx, `"sub.asm"`); err != nil {
		t.Fatalf("INCLUDE returned error: %v", err)
	}
	if len(ctx.includes) != 1 || ctx.includes[0] != "sub.asm" {
		t.Errorf("includes = %v, want [sub.asm]", ctx.includes)
	}
}

func TestIncbinPass1MeasuresSize(t *testing.T) {
	ctx := &fakeCtx{pass: 1, pc: 0x2000, incbinLen: 16}
	h, _ := Lookup("INCBIN")
	if err := h(ctx, `"data.bin"`); err != nil {
		t.Fatalf("INCBIN returned error: %v", err)
	}
	if ctx.pc != 0x2010 {
		t.Errorf("pc = %#x, want advanced by 16 bytes", ctx.pc)
	}
	if len(ctx.data) != 0 {
		t.Errorf("pass 1 INCBIN should not emit data, got %v", ctx.data)
	}
}

func TestIncbinPass2StreamsBytes(t *testing.T) {
	ctx := &fakeCtx{pass: 2, incbinOut: []byte{0xAA, 0xBB}}
	h, _ := Lookup("INCBIN")
	if err := h(ctx, `"data.bin"`); err != nil {
		t.Fatalf("INCBIN returned error: %v", err)
	}
	if len(ctx.data) != 2 || ctx.data[0] != 0xAA {
		t.Errorf("data = %v, want [aa bb]", ctx.data)
	}
}

func TestSetdpSetsDP(t *testing.T) {
	ctx := &fakeCtx{}
	h, _ := Lookup("SETDP")
	if err := h(ctx, "1"); err != nil {
		t.Fatalf("SETDP returned error: %v", err)
	}
	if ctx.dp != 1 {
		t.Errorf("dp = %d, want 1", ctx.dp)
	}
}

func TestPublicReKindsLabel(t *testing.T) {
	ctx := &fakeCtx{label: "ENTRY"}
	h, _ := Lookup("PUBLIC")
	if err := h(ctx, ""); err != nil {
		t.Fatalf("PUBLIC returned error: %v", err)
	}
	if ctx.symbols[0].kind != KindPublic {
		t.Errorf("kind = %v, want KindPublic", ctx.symbols[0].kind)
	}
}

func TestExternNamesSymbolFromOperand(t *testing.T) {
	ctx := &fakeCtx{label: "HERE"}
	h, _ := Lookup("EXTERN")
	if err := h(ctx, "FOOBAR"); err != nil {
		t.Fatalf("EXTERN returned error: %v", err)
	}
	if len(ctx.symbols) != 1 || ctx.symbols[0].name != "FOOBAR" || ctx.symbols[0].kind != KindExtern {
		t.Errorf("symbols = %+v, want one Extern FOOBAR", ctx.symbols)
	}
}

func TestExtdpNamesSymbolFromOperand(t *testing.T) {
	ctx := &fakeCtx{label: "HERE"}
	h, _ := Lookup("EXTDP")
	if err := h(ctx, "BAZ"); err != nil {
		t.Fatalf("EXTDP returned error: %v", err)
	}
	if len(ctx.symbols) != 1 || ctx.symbols[0].name != "BAZ" || ctx.symbols[0].kind != KindExtern {
		t.Errorf("symbols = %+v, want one Extern BAZ", ctx.symbols)
	}
}

func TestEndRecordsEntryLabel(t *testing.T) {
	ctx := &fakeCtx{}
	h, _ := Lookup("END")
	if err := h(ctx, "START"); err != nil {
		t.Fatalf("END returned error: %v", err)
	}
	if ctx.endLabel == nil || *ctx.endLabel != "START" {
		t.Errorf("endLabel = %v, want START", ctx.endLabel)
	}
}

func TestOptDisableWarning(t *testing.T) {
	ctx := &fakeCtx{}
	h, _ := Lookup("OPT")
	if err := h(ctx, "*DISABLE W0014"); err != nil {
		t.Fatalf("OPT returned error: %v", err)
	}
	if len(ctx.disabled) != 1 || ctx.disabled[0] != 14 {
		t.Errorf("disabled = %v, want [14]", ctx.disabled)
	}
}

func TestOptEnableWarning(t *testing.T) {
	ctx := &fakeCtx{}
	h, _ := Lookup("OPT")
	if err := h(ctx, "*ENABLE W0014"); err != nil {
		t.Fatalf("OPT returned error: %v", err)
	}
	if len(ctx.enabled) != 1 || ctx.enabled[0] != 14 {
		t.Errorf("enabled = %v, want [14]", ctx.enabled)
	}
}

func TestOptObjFalseSuppressesEmission(t *testing.T) {
	ctx := &fakeCtx{}
	h, _ := Lookup("OPT")
	if err := h(ctx, "*OBJ FALSE"); err != nil {
		t.Fatalf("OPT returned error: %v", err)
	}
	if ctx.objOn == nil || *ctx.objOn != false {
		t.Errorf("objOn = %v, want false", ctx.objOn)
	}
}
