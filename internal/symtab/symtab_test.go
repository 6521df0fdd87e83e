/*
   a09 - Symbol table tests.

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
package symtab

import "testing"

func TestDefineNew(t *testing.T) {
	tab := New()
	sym, err := tab.Define("START", Address, 0x2000, "foo.asm", 1)
	if err != nil {
		t.Fatalf("Define returned error: %v", err)
	}
	if sym.Value != 0x2000 {
		t.Errorf("Value = %#x, want %#x", sym.Value, 0x2000)
	}
	if tab.Find("START") != sym {
		t.Errorf("Find did not return the defined symbol")
	}
}

func TestDefineAlreadyDefined(t *testing.T) {
	tab := New()
	if _, err := tab.Define("START", Address, 0x2000, "foo.asm", 1); err != nil {
		t.Fatalf("first Define returned error: %v", err)
	}
	_, err := tab.Define("START", Address, 0x3000, "foo.asm", 2)
	if err == nil {
		t.Fatal("redefining an Address symbol did not error")
	}
	if err.Error() != "START already defined" {
		t.Errorf("error = %q, want %q", err.Error(), "START already defined")
	}
}

func TestDefineSetRedefinition(t *testing.T) {
	tab := New()
	if _, err := tab.Define("COUNT", Set, 1, "foo.asm", 1); err != nil {
		t.Fatalf("first Define returned error: %v", err)
	}
	sym, err := tab.Define("COUNT", Set, 2, "foo.asm", 5)
	if err != nil {
		t.Fatalf("redefining a Set symbol errored: %v", err)
	}
	if sym.Value != 2 {
		t.Errorf("Value after redefinition = %d, want 2", sym.Value)
	}
	if sym.Line != 5 {
		t.Errorf("Line after redefinition = %d, want 5", sym.Line)
	}
}

func TestFindMissing(t *testing.T) {
	tab := New()
	if tab.Find("NOPE") != nil {
		t.Error("Find of undefined name returned non-nil")
	}
}

func TestFreeAll(t *testing.T) {
	tab := New()
	_, _ = tab.Define("A", Address, 1, "f", 1)
	_, _ = tab.Define("B", Address, 2, "f", 2)
	tab.FreeAll()
	if tab.Len() != 0 {
		t.Errorf("Len after FreeAll = %d, want 0", tab.Len())
	}
	if tab.Find("A") != nil {
		t.Error("Find after FreeAll returned non-nil")
	}
}

func TestEachInsertionOrder(t *testing.T) {
	tab := New()
	_, _ = tab.Define("ZEBRA", Address, 1, "f", 1)
	_, _ = tab.Define("APPLE", Address, 2, "f", 2)
	_, _ = tab.Define("MANGO", Address, 3, "f", 3)

	var names []string
	tab.Each(func(s *Symbol) bool {
		names = append(names, s.Name)
		return true
	})
	want := []string{"ZEBRA", "APPLE", "MANGO"}
	if len(names) != len(want) {
		t.Fatalf("Each visited %d symbols, want %d", len(names), len(want))
	}
	for i, n := range want {
		if names[i] != n {
			t.Errorf("order[%d] = %q, want %q", i, names[i], n)
		}
	}
}

func TestScopeEffectiveLocal(t *testing.T) {
	var s Scope
	s.SetGlobal("LOOP")
	eff, err := s.Effective(".again")
	if err != nil {
		t.Fatalf("Effective returned error: %v", err)
	}
	if eff != "LOOP.again" {
		t.Errorf("Effective = %q, want %q", eff, "LOOP.again")
	}
}

func TestScopeEffectiveLocalBeforeGlobal(t *testing.T) {
	var s Scope
	_, err := s.Effective(".again")
	if err == nil {
		t.Error("local label before any global did not report an error")
	}
}

func TestScopeEffectiveGlobalUpdatesScope(t *testing.T) {
	var s Scope
	if _, err := s.Effective("FIRST"); err != nil {
		t.Fatalf("Effective returned error: %v", err)
	}
	eff, err := s.Effective(".x")
	if err != nil {
		t.Fatalf("Effective returned error: %v", err)
	}
	if eff != "FIRST.x" {
		t.Errorf("Effective = %q, want %q", eff, "FIRST.x")
	}
}
