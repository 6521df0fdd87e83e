/*
   a09 - Pseudo-op handlers.

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

// Package pseudo implements the assembler directives: EQU/SET/ORG/RMB/FCB/
// FCC/FCS/FDB/ASCII/INCLUDE/INCBIN/ALIGN/EXTDP/EXTERN/PUBLIC/SETDP/END/OPT,
// plus the test-subsystem directives .TEST/.ENDTST/.ASSERT/.TRON/.TROFF.
// Like internal/opcode, handlers reach back into the assembler only through
// a Context interface, avoiding a direct dependency on internal/assembler.
package pseudo

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// SymbolKind mirrors symtab.Kind's values the handlers need to request,
// without importing internal/symtab directly.
type SymbolKind int

const (
	KindAddress SymbolKind = iota
	KindEquate
	KindSet
	KindPublic
	KindExtern
)

// Context is the assembler surface a pseudo-op handler needs.
type Context interface {
	Pass() int
	PC() uint16
	// SetPC bumps the address counter directly, without involving the
	// back-end; only INCBIN's pass-1 size accounting uses it, since no
	// bytes are written (and so no gap-fill policy applies) until pass 2.
	SetPC(uint16)
	// Org sets the PC to addr and runs the back-end's ORG hook (flat binary
	// seeks the delta, RSDOS opens a new section, SREC flushes and retargets
	// its accumulator, BASIC/Dragon record the load address).
	Org(addr uint16) error
	// Align advances the PC by n bytes of gap, running the back-end's
	// align-fill policy (ALIGN padding).
	Align(n uint16) error
	// Reserve advances the PC by n bytes of gap for RMB, running the
	// back-end's RMB hook.
	Reserve(n uint16) error
	DP() uint8
	SetDP(uint8)
	Label() string

	Eval(operand string) (Value, string, error)
	DefineSymbol(name string, kind SymbolKind, value uint16) error
	// RekindSymbol implements PUBLIC: promotes an already-defined label
	// (typically the Address symbol every labeled line auto-defines) to
	// kind in place, keeping its existing value, instead of redefining it.
	RekindSymbol(name string, kind SymbolKind) error

	Emit(b ...byte)
	EmitData(b ...byte) // data (not code) emission, for FCB/FCC/FCS/FDB/ASCII/INCBIN

	Warnf(tag int, format string, args ...interface{}) bool
	Errorf(tag int, format string, args ...interface{}) error

	Include(path string) error
	IncBinSize(path string) (int, error)
	IncBinBytes(path string) ([]byte, error)

	DisableWarning(tag int)
	EnableWarning(tag int)
	SetObjectEmission(enabled bool)
	End(entryLabel string)

	// BeginTest implements .TEST "name": emission switches from the active
	// back-end to the CPU test-memory image at the current test-origin
	// pointer (OPT *TEST ORG, default 0xE000) until the matching .ENDTST.
	BeginTest(name string) error
	// EndTest implements .ENDTST: closes the open .TEST block, records it
	// as a runnable unit, and restores normal back-end emission.
	EndTest() error
	// Assert implements .ASSERT expr[, "message"]: compiles expr against
	// the assertion-expression language and attaches it as a checkpoint at
	// the current PC, tagged with message or (if absent) the enclosing
	// .TEST block's name. Only valid within an open .TEST block.
	Assert(operand string) error
	// Tron/Troff implement .TRON/.TROFF: timing selects between emplacing
	// a one-shot TIMEON/TIMEOFF checkpoint at the current PC ("timing"
	// operand) and toggling the per-byte trace flag on bytes emitted from
	// here on. Only valid within an open .TEST block.
	Tron(timing bool) error
	Troff(timing bool) error
	// SetTestOrigin implements OPT *TEST ORG <addr>: the address the next
	// .TEST block begins emitting at.
	SetTestOrigin(addr uint16)
}

// Value mirrors expr.Value's observable fields, matching opcode.Value's role.
type Value struct {
	Word    uint16
	Unknown bool
	Defined bool
}

// Handler processes one pseudo-op's operand text.
type Handler func(ctx Context, operand string) error

// Table is keyed by upper-case mnemonic.
var Table = map[string]Handler{
	"EQU":     equHandler,
	"SET":     setHandler,
	"ORG":     orgHandler,
	"RMB":     rmbHandler,
	"ALIGN":   alignHandler,
	"FCB":     fcbHandler,
	"FDB":     fdbHandler,
	"FCC":     fccHandler,
	"FCS":     fcsHandler,
	"ASCII":   asciiHandler,
	"INCLUDE": includeHandler,
	"INCBIN":  incbinHandler,
	"SETDP":   setdpHandler,
	"EXTDP":   extdpHandler,
	"EXTERN":  externHandler,
	"PUBLIC":  publicHandler,
	"END":     endHandler,
	"OPT":     optHandler,

	".TEST":   testHandler,
	".ENDTST": endtstHandler,
	".ASSERT": assertHandler,
	".TRON":   tronHandler,
	".TROFF":  troffHandler,
}

// Lookup returns the handler for mnemonic, if any.
func Lookup(mnemonic string) (Handler, bool) {
	h, ok := Table[mnemonic]
	return h, ok
}

func equHandler(ctx Context, operand string) error {
	v, _, err := ctx.Eval(operand)
	if err != nil {
		return err
	}
	if err := ctx.DefineSymbol(ctx.Label(), KindEquate, v.Word); err != nil {
		return err
	}
	return nil
}

func setHandler(ctx Context, operand string) error {
	v, _, err := ctx.Eval(operand)
	if err != nil {
		return err
	}
	return ctx.DefineSymbol(ctx.Label(), KindSet, v.Word)
}

func orgHandler(ctx Context, operand string) error {
	v, _, err := ctx.Eval(operand)
	if err != nil {
		return err
	}
	return ctx.Org(v.Word)
}

func rmbHandler(ctx Context, operand string) error {
	v, _, err := ctx.Eval(operand)
	if err != nil {
		return err
	}
	if v.Word == 0 {
		return ctx.Errorf(30, "can't reserve 0 bytes")
	}
	return ctx.Reserve(v.Word)
}

func alignHandler(ctx Context, operand string) error {
	v, _, err := ctx.Eval(operand)
	if err != nil {
		return err
	}
	if v.Word == 0 {
		return ctx.Errorf(31, "cannot align to 0")
	}
	if v.Unknown {
		return ctx.Errorf(32, "alignment value unknown in pass 1")
	}
	pc := ctx.PC()
	rem := pc % v.Word
	if rem != 0 {
		return ctx.Align(v.Word - rem)
	}
	return nil
}

func fcbHandler(ctx Context, operand string) error {
	for _, field := range strings.Split(operand, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		v, _, err := ctx.Eval(field)
		if err != nil {
			return err
		}
		if v.Word > 0xFF && v.Word < 0xFF80 {
			ctx.Warnf(4, "16-bit value truncated to 8 bits")
		}
		ctx.EmitData(byte(v.Word))
	}
	return nil
}

func fdbHandler(ctx Context, operand string) error {
	for _, field := range strings.Split(operand, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		v, _, err := ctx.Eval(field)
		if err != nil {
			return err
		}
		ctx.EmitData(byte(v.Word>>8), byte(v.Word))
	}
	return nil
}

func fccHandler(ctx Context, operand string) error {
	text, err := delimitedText(operand)
	if err != nil {
		return err
	}
	ctx.EmitData([]byte(text)...)
	return nil
}

func fcsHandler(ctx Context, operand string) error {
	text, err := delimitedText(operand)
	if err != nil {
		return err
	}
	b := []byte(text)
	if len(b) > 0 {
		b[len(b)-1] |= 0x80
	}
	ctx.EmitData(b...)
	return nil
}

// delimitedText implements "FCC <delim> ... <delim>": the first non-space
// byte is the delimiter and the text runs until its matching close.
func delimitedText(operand string) (string, error) {
	operand = strings.TrimLeft(operand, " ")
	if operand == "" {
		return "", fmt.Errorf("FCC/FCS requires a delimiter")
	}
	delim := operand[0]
	rest := operand[1:]
	end := strings.IndexByte(rest, delim)
	if end < 0 {
		return "", fmt.Errorf("unterminated FCC/FCS text")
	}
	return rest[:end], nil
}

func asciiHandler(ctx Context, operand string) error {
	operand = strings.TrimLeft(operand, " ")
	if operand == "" || operand[0] != '\'' {
		return fmt.Errorf("ASCII requires a quoted string")
	}
	rest := operand[1:]
	end := strings.IndexByte(rest, '\'')
	if end < 0 {
		return fmt.Errorf("unterminated ASCII string")
	}
	raw := rest[:end]
	suffix := strings.ToUpper(strings.TrimSpace(rest[end+1:]))

	text, err := unescape(raw)
	if err != nil {
		return err
	}
	b := []byte(text)
	switch suffix {
	case "C":
		if len(b) > 255 {
			return fmt.Errorf("ASCII C-suffixed string too long for a length byte")
		}
		b = append([]byte{byte(len(b))}, b...)
	case "H":
		if len(b) > 0 {
			b[len(b)-1] |= 0x80
		}
	case "Z":
		b = append(b, 0)
	case "":
		// no suffix: literal bytes only
	default:
		return fmt.Errorf("unknown ASCII suffix %q", suffix)
	}
	ctx.EmitData(b...)
	return nil
}

func unescape(s string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(s) {
			return "", fmt.Errorf("trailing backslash in string")
		}
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '0':
			b.WriteByte(0)
		case '\\':
			b.WriteByte('\\')
		case '\'':
			b.WriteByte('\'')
		case '"':
			b.WriteByte('"')
		default:
			return "", fmt.Errorf("unknown escape \\%c", s[i])
		}
	}
	return b.String(), nil
}

func quotedPath(operand string) (string, error) {
	operand = strings.TrimSpace(operand)
	if len(operand) < 2 || operand[0] != '"' || operand[len(operand)-1] != '"' {
		return "", fmt.Errorf("expected a quoted file name")
	}
	return operand[1 : len(operand)-1], nil
}

func includeHandler(ctx Context, operand string) error {
	path, err := quotedPath(operand)
	if err != nil {
		return err
	}
	return ctx.Include(path)
}

func incbinHandler(ctx Context, operand string) error {
	path, err := quotedPath(operand)
	if err != nil {
		return err
	}
	if ctx.Pass() == 1 {
		n, err := ctx.IncBinSize(path)
		if err != nil {
			return err
		}
		ctx.SetPC(ctx.PC() + uint16(n))
		return nil
	}
	b, err := ctx.IncBinBytes(path)
	if err != nil {
		return err
	}
	ctx.EmitData(b...)
	return nil
}

func setdpHandler(ctx Context, operand string) error {
	v, _, err := ctx.Eval(operand)
	if err != nil {
		return err
	}
	ctx.SetDP(byte(v.Word))
	return nil
}

// parseLabelOperand extracts a single label name from operand text, the
// grammar EXTERN/EXTDP name their declared symbol with — the label column is
// the current line's own label (already claimed by the Address auto-define
// in runLine), not the symbol EXTERN/EXTDP introduce. Uses the same
// label-start/label-continue character classes as internal/lexer.Split.
func parseLabelOperand(operand string) (string, error) {
	s := strings.TrimSpace(operand)
	if s == "" || !isLabelStart(s[0]) {
		return "", fmt.Errorf("missing label")
	}
	i := 1
	for i < len(s) && isLabelCont(s[i]) {
		i++
	}
	return s[:i], nil
}

func isLabelStart(c byte) bool {
	return c == '.' || c == '_' || unicode.IsLetter(rune(c))
}

func isLabelCont(c byte) bool {
	return c == '.' || c == '_' || c == '$' || unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c))
}

func extdpHandler(ctx Context, operand string) error {
	name, err := parseLabelOperand(operand)
	if err != nil {
		return fmt.Errorf("EXTDP missing label: %w", err)
	}
	return ctx.DefineSymbol(name, KindExtern, 0)
}

func externHandler(ctx Context, operand string) error {
	name, err := parseLabelOperand(operand)
	if err != nil {
		return fmt.Errorf("EXTERN missing label: %w", err)
	}
	return ctx.DefineSymbol(name, KindExtern, 0)
}

func publicHandler(ctx Context, operand string) error {
	return ctx.RekindSymbol(ctx.Label(), KindPublic)
}

func endHandler(ctx Context, operand string) error {
	ctx.End(strings.TrimSpace(operand))
	return nil
}

// optHandler dispatches OPT's sub-keys: *DISABLE/*ENABLE Wxxxx and *OBJ
// TRUE|FALSE are handled here; anything else is routed to the back-end by
// the caller (internal/assembler), since this package has no Backend
// reference.
func optHandler(ctx Context, operand string) error {
	operand = strings.TrimSpace(operand)
	if !strings.HasPrefix(operand, "*") {
		return fmt.Errorf("OPT requires a *-prefixed key")
	}
	fields := strings.Fields(operand[1:])
	if len(fields) == 0 {
		return fmt.Errorf("OPT requires a key")
	}
	switch strings.ToUpper(fields[0]) {
	case "DISABLE":
		for _, tag := range fields[1:] {
			n, err := parseWarningTag(tag)
			if err != nil {
				return err
			}
			ctx.DisableWarning(n)
		}
	case "ENABLE":
		for _, tag := range fields[1:] {
			n, err := parseWarningTag(tag)
			if err != nil {
				return err
			}
			ctx.EnableWarning(n)
		}
	case "OBJ":
		if len(fields) != 2 {
			return fmt.Errorf("OPT *OBJ requires TRUE or FALSE")
		}
		switch strings.ToUpper(fields[1]) {
		case "TRUE":
			ctx.SetObjectEmission(true)
		case "FALSE":
			ctx.SetObjectEmission(false)
		default:
			return fmt.Errorf("OPT *OBJ requires TRUE or FALSE")
		}
	case "TEST":
		if len(fields) != 3 || !strings.EqualFold(fields[1], "ORG") {
			return fmt.Errorf("OPT *TEST requires ORG <addr>")
		}
		v, _, err := ctx.Eval(fields[2])
		if err != nil {
			return err
		}
		ctx.SetTestOrigin(v.Word)
	}
	// Unrecognized keys are back-end-specific; the caller offers them to
	// the active back-end before reporting an error.
	return nil
}

func testHandler(ctx Context, operand string) error {
	name, err := quotedPath(operand)
	if err != nil {
		return fmt.Errorf(".TEST requires a quoted name: %w", err)
	}
	return ctx.BeginTest(name)
}

func endtstHandler(ctx Context, operand string) error {
	return ctx.EndTest()
}

func assertHandler(ctx Context, operand string) error {
	return ctx.Assert(operand)
}

func tronHandler(ctx Context, operand string) error {
	return ctx.Tron(strings.EqualFold(strings.TrimSpace(operand), "timing"))
}

func troffHandler(ctx Context, operand string) error {
	return ctx.Troff(strings.EqualFold(strings.TrimSpace(operand), "timing"))
}

func parseWarningTag(s string) (int, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ",")
	if len(s) > 0 && (s[0] == 'W' || s[0] == 'w') {
		s = s[1:]
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid warning tag %q", s)
	}
	return n, nil
}
