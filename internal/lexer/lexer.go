/*
   a09 - Lexical surface: line buffer and field tokenizer.

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

// Package lexer implements the source line buffer (tab expansion, control-byte
// validation, 132-column capacity) and the label/mnemonic/operand field
// splitter that the pass driver runs over every assembly line.
package lexer

import (
	"errors"
	"strings"
	"unicode"
)

// MaxLine is the line buffer's storage capacity, not counting the consumed
// trailing newline.
const MaxLine = 132

// TabWidth is the column stop tabs expand to.
const TabWidth = 8

var (
	// ErrControlByte reports a non-printable, non-tab byte in the input.
	ErrControlByte = errors.New("invalid character on input")
	// ErrLineTooLong reports a line whose expanded length exceeds MaxLine.
	ErrLineTooLong = errors.New("line too long")
)

// Expand expands tabs in raw to the next multiple of TabWidth columns,
// rejecting any byte that is neither printable ASCII nor a tab, and failing
// if the expanded result exceeds MaxLine columns.
func Expand(raw string) (string, error) {
	var b strings.Builder
	col := 0
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c == '\t':
			next := ((col / TabWidth) + 1) * TabWidth
			for ; col < next; col++ {
				b.WriteByte(' ')
			}
		case c >= 0x20 && c < 0x7f:
			b.WriteByte(c)
			col++
		default:
			return "", ErrControlByte
		}
		if col > MaxLine {
			return "", ErrLineTooLong
		}
	}
	return b.String(), nil
}

// Line is a fixed-capacity read cursor over one expanded source line. The
// read cursor supports a single character of ungetch lookahead, mirroring
// the parser's single-character-ungettable read cursor.
type Line struct {
	text string
	pos  int
}

// NewLine wraps an already tab-expanded line for cursor-based reading.
func NewLine(text string) *Line {
	return &Line{text: text}
}

// Peek returns the next unconsumed byte without advancing, or 0 at end of line.
func (l *Line) Peek() byte {
	if l.pos >= len(l.text) {
		return 0
	}
	return l.text[l.pos]
}

// Next returns the next byte and advances the cursor, or 0 at end of line.
func (l *Line) Next() byte {
	c := l.Peek()
	if c != 0 {
		l.pos++
	}
	return c
}

// Ungetch steps the cursor back by one, the parser's only lookahead.
func (l *Line) Ungetch() {
	if l.pos > 0 {
		l.pos--
	}
}

// Rest returns everything from the cursor to the end of the line.
func (l *Line) Rest() string {
	return l.text[l.pos:]
}

// AtEnd reports whether the cursor has consumed the whole line.
func (l *Line) AtEnd() bool {
	return l.pos >= len(l.text)
}

// SkipSpace advances the cursor past any run of spaces.
func (l *Line) SkipSpace() {
	for !l.AtEnd() && l.text[l.pos] == ' ' {
		l.pos++
	}
}

// Fields is the result of splitting one source line into its three
// recognized regions, per the column-significant grammar: column 1 begins a
// label, the first run of whitespace ends it, the next non-blank run is the
// mnemonic, and the remainder up to an unquoted ';' is the operand text.
type Fields struct {
	Label    string
	Mnemonic string
	Operand  string
	Comment  string
}

// isLabelStart reports whether c can begin a label: '.', '_', or alphabetic.
func isLabelStart(c byte) bool {
	return c == '.' || c == '_' || unicode.IsLetter(rune(c))
}

// isLabelCont reports whether c can continue a label once started.
func isLabelCont(c byte) bool {
	return c == '.' || c == '_' || c == '$' || unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c))
}

// Split extracts label, mnemonic, operand, and trailing comment from one
// already tab-expanded source line. A blank line, or one beginning with ';'
// or whitespace, has an empty label.
func Split(text string) Fields {
	var f Fields
	i := 0
	n := len(text)

	if i < n && isLabelStart(text[i]) {
		start := i
		for i < n && isLabelCont(text[i]) {
			i++
		}
		f.Label = text[start:i]
	}

	for i < n && text[i] == ' ' {
		i++
	}

	if i < n && text[i] != ';' {
		start := i
		for i < n && text[i] != ' ' && text[i] != ';' {
			i++
		}
		f.Mnemonic = text[start:i]
	}

	for i < n && text[i] == ' ' {
		i++
	}

	if i < n && text[i] != ';' {
		start := i
		inQuote := byte(0)
		for i < n {
			c := text[i]
			if inQuote != 0 {
				if c == inQuote {
					inQuote = 0
				}
				i++
				continue
			}
			if c == '\'' || c == '"' {
				inQuote = c
				i++
				continue
			}
			if c == ';' {
				break
			}
			i++
		}
		f.Operand = strings.TrimRight(text[start:i], " ")
	}

	if i < n && text[i] == ';' {
		f.Comment = text[i+1:]
	}

	return f
}

// GetName returns the next whitespace-delimited token and the remainder of
// str, skipping leading spaces first.
func GetName(str string) (string, string) {
	str = SkipSpace(str)
	for i := 0; i < len(str); i++ {
		if str[i] == ' ' {
			return str[:i], str[i+1:]
		}
	}
	return str, ""
}

// SkipSpace returns str with any leading spaces removed.
func SkipSpace(str string) string {
	for i := 0; i < len(str); i++ {
		if str[i] != ' ' {
			return str[i:]
		}
	}
	return ""
}

// GetNext returns the next non-space byte and the remainder following it.
func GetNext(str string) (byte, string) {
	str = SkipSpace(str)
	if str == "" {
		return 0, ""
	}
	return str[0], str[1:]
}
