/*
   a09 - Ordered symbol table.

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

// Package symtab implements the assembler's label table: an insertion-ordered
// map from effective label to Symbol, kept ordered so listing output can walk
// symbols in definition order the way a balanced-tree-backed table would walk
// them in key order.
package symtab

import "fmt"

// Kind is a symbol's binding classification.
type Kind int

const (
	Undefined Kind = iota
	Address
	Equate
	Set
	Public
	Extern
)

func (k Kind) String() string {
	switch k {
	case Undefined:
		return "undefined"
	case Address:
		return "address"
	case Equate:
		return "equate"
	case Set:
		return "set"
	case Public:
		return "public"
	case Extern:
		return "extern"
	default:
		return "unknown"
	}
}

// MaxLabel is the longest label length accepted anywhere in the assembler.
const MaxLabel = 63

// Symbol is one entry in the table, keyed externally by its effective label.
type Symbol struct {
	Name     string
	Kind     Kind
	Value    uint16
	Width    int // intended bit width, 8 or 16, for direct-page analysis; 0 if unknown
	File     string
	Line     int
	Refs     int // incremented on each pass-2 use
}

// Table is an ordered label→Symbol map: a map for O(1) lookup plus a parallel
// slice of names recording insertion order for listing traversal.
type Table struct {
	index map[string]*Symbol
	order []string
}

// New returns an empty table.
func New() *Table {
	return &Table{index: make(map[string]*Symbol)}
}

// Find performs an exact-key lookup, returning nil if absent.
func (t *Table) Find(name string) *Symbol {
	return t.index[name]
}

// Define inserts name if absent. If present and its kind is Set, the value,
// file, and line are overwritten and the symbol returned. Otherwise, a
// pre-existing symbol is an error: "already defined".
func (t *Table) Define(name string, kind Kind, value uint16, file string, line int) (*Symbol, error) {
	if sym, ok := t.index[name]; ok {
		if sym.Kind != Set {
			return nil, fmt.Errorf("%s already defined", name)
		}
		sym.Value = value
		sym.Kind = kind
		sym.File = file
		sym.Line = line
		return sym, nil
	}
	sym := &Symbol{Name: name, Kind: kind, Value: value, File: file, Line: line}
	t.index[name] = sym
	t.order = append(t.order, name)
	return sym, nil
}

// Rekind changes an already-defined symbol's kind and value in place,
// without going through Define's "already defined" guard. PUBLIC/EXTERN/
// EXTDP use this to promote a label's binding (typically from the Address
// kind the assembler auto-defines every label as) rather than redefine it.
// A name not yet present is inserted fresh, the same as Define would.
func (t *Table) Rekind(name string, kind Kind, value uint16, file string, line int) *Symbol {
	if sym, ok := t.index[name]; ok {
		sym.Kind = kind
		sym.Value = value
		sym.File = file
		sym.Line = line
		return sym
	}
	sym := &Symbol{Name: name, Kind: kind, Value: value, File: file, Line: line}
	t.index[name] = sym
	t.order = append(t.order, name)
	return sym
}

// DefineUndefined creates a placeholder Undefined symbol on first forward
// reference, leaving an already-present entry untouched.
func (t *Table) DefineUndefined(name string) *Symbol {
	if sym, ok := t.index[name]; ok {
		return sym
	}
	sym := &Symbol{Name: name, Kind: Undefined}
	t.index[name] = sym
	t.order = append(t.order, name)
	return sym
}

// FreeAll drops every symbol, releasing the table's storage at shutdown.
func (t *Table) FreeAll() {
	t.index = make(map[string]*Symbol)
	t.order = nil
}

// Len returns the number of symbols currently defined.
func (t *Table) Len() int {
	return len(t.order)
}

// Each walks symbols in insertion order, stopping early if fn returns false.
func (t *Table) Each(fn func(*Symbol) bool) {
	for _, name := range t.order {
		if !fn(t.index[name]) {
			return
		}
	}
}

// Scope tracks the currently-remembered global label for resolving `.`-prefixed
// local labels to their effective ("global.local") name.
type Scope struct {
	global string
}

// Effective resolves label to its effective table key: local labels
// (beginning with '.') are concatenated onto the last non-local label seen;
// non-local labels pass through unchanged and update the remembered global.
func (s *Scope) Effective(label string) (string, error) {
	if label == "" {
		return "", nil
	}
	if label[0] != '.' {
		s.global = label
		return label, nil
	}
	if s.global == "" {
		return label, fmt.Errorf("local label %s defined before any global label", label)
	}
	return s.global + label, nil
}

// SetGlobal records label as the current global without resolving it,
// used when the caller already knows label is non-local.
func (s *Scope) SetGlobal(label string) {
	if label != "" && label[0] != '.' {
		s.global = label
	}
}
