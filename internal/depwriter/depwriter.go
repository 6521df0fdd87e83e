/*
   a09 - Makefile-dependency line printer.

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

// Package depwriter implements -M: printing the output file's Make-format
// dependency line (target, a colon, then the source and every file it
// INCLUDEs) in place of an object file; the source is still assembled so
// that its INCLUDEs are found.
package depwriter

import (
	"fmt"
	"io"
	"strings"
)

// Write prints "target: dep dep dep" to w, wrapping with trailing
// backslash-newline continuations the way `cc -M` does once a line would run
// past width columns.
func Write(w io.Writer, target string, deps []string, width int) error {
	if width <= 0 {
		width = 78
	}
	line := target + ":"
	for _, d := range deps {
		candidate := line + " " + d
		lastLine := candidate
		if i := strings.LastIndexByte(candidate, '\n'); i >= 0 {
			lastLine = candidate[i+1:]
		}
		if len(lastLine) > width {
			if _, err := fmt.Fprintf(w, "%s \\\n", line); err != nil {
				return err
			}
			line = " " + d
			continue
		}
		line = candidate
	}
	_, err := fmt.Fprintln(w, line)
	return err
}
