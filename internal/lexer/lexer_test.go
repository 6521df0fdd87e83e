/*
   a09 - Lexical surface tests.

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
package lexer

import (
	"strings"
	"testing"
)

func TestExpandTabs(t *testing.T) {
	got, err := Expand("A\tB")
	if err != nil {
		t.Fatalf("Expand returned error: %v", err)
	}
	want := "A       B"
	if got != want {
		t.Errorf("Expand(%q) = %q, want %q", "A\tB", got, want)
	}
}

func TestExpandControlByte(t *testing.T) {
	_, err := Expand("A\x01B")
	if err != ErrControlByte {
		t.Errorf("Expand with control byte: got %v, want %v", err, ErrControlByte)
	}
}

func TestExpandTooLong(t *testing.T) {
	_, err := Expand(strings.Repeat("A", MaxLine+1))
	if err != ErrLineTooLong {
		t.Errorf("Expand over capacity: got %v, want %v", err, ErrLineTooLong)
	}
}

func TestLineCursorUngetch(t *testing.T) {
	l := NewLine("AB")
	if c := l.Next(); c != 'A' {
		t.Fatalf("first Next() = %q, want 'A'", c)
	}
	l.Ungetch()
	if c := l.Next(); c != 'A' {
		t.Errorf("Next() after Ungetch() = %q, want 'A'", c)
	}
	if c := l.Next(); c != 'B' {
		t.Errorf("Next() = %q, want 'B'", c)
	}
	if !l.AtEnd() {
		t.Errorf("AtEnd() = false, want true")
	}
	if c := l.Next(); c != 0 {
		t.Errorf("Next() at end = %q, want 0", c)
	}
}

func TestSplitLabelMnemonicOperand(t *testing.T) {
	f := Split("LOOP    LDA   #$10    ; comment")
	if f.Label != "LOOP" {
		t.Errorf("Label = %q, want %q", f.Label, "LOOP")
	}
	if f.Mnemonic != "LDA" {
		t.Errorf("Mnemonic = %q, want %q", f.Mnemonic, "LDA")
	}
	if f.Operand != "#$10" {
		t.Errorf("Operand = %q, want %q", f.Operand, "#$10")
	}
	if f.Comment != " comment" {
		t.Errorf("Comment = %q, want %q", f.Comment, " comment")
	}
}

func TestSplitNoLabel(t *testing.T) {
	f := Split("        NOP")
	if f.Label != "" {
		t.Errorf("Label = %q, want empty", f.Label)
	}
	if f.Mnemonic != "NOP" {
		t.Errorf("Mnemonic = %q, want %q", f.Mnemonic, "NOP")
	}
}

func TestSplitCommentOnly(t *testing.T) {
	f := Split("; just a comment")
	if f.Label != "" || f.Mnemonic != "" || f.Operand != "" {
		t.Errorf("Split of comment-only line produced fields: %+v", f)
	}
	if f.Comment != " just a comment" {
		t.Errorf("Comment = %q, want %q", f.Comment, " just a comment")
	}
}

func TestSplitSemicolonInsideQuote(t *testing.T) {
	f := Split("        FCC   '; not a comment'")
	if f.Operand != "'; not a comment'" {
		t.Errorf("Operand = %q, want quoted text preserved", f.Operand)
	}
	if f.Comment != "" {
		t.Errorf("Comment = %q, want empty (semicolon was quoted)", f.Comment)
	}
}

func TestSplitLocalLabel(t *testing.T) {
	f := Split(".loop   BRA   .loop")
	if f.Label != ".loop" {
		t.Errorf("Label = %q, want %q", f.Label, ".loop")
	}
}

func TestGetName(t *testing.T) {
	name, rest := GetName("  FOO BAR")
	if name != "FOO" {
		t.Errorf("GetName name = %q, want %q", name, "FOO")
	}
	if rest != "BAR" {
		t.Errorf("GetName rest = %q, want %q", rest, "BAR")
	}
}

func TestGetNext(t *testing.T) {
	c, rest := GetNext("  ,X")
	if c != ',' {
		t.Errorf("GetNext byte = %q, want ','", c)
	}
	if rest != "X" {
		t.Errorf("GetNext rest = %q, want %q", rest, "X")
	}
}
