/*
   a09 - Color BASIC loader output format.

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
package backend

import (
	"errors"
	"fmt"
	"strings"
)

func init() {
	Register("basic", func() Backend {
		return &basicBackend{line: 10, incr: 10, strspace: 200}
	})
}

// basicBackend emits a plain-text Color BASIC program: numbered DATA lines
// packed with the emitted bytes up to a line-length limit, followed by a CLEAR/FOR/READ/POKE/NEXT
// loader and an EXEC (or CSAVEM/SAVEM) trailer line.
type basicBackend struct {
	Base
	out       Sink
	cassette  string
	disk      string
	line      uint16
	incr      uint16
	strspace  uint16
	staddr    uint16
	usr       uint16
	haveOrg   bool
	dataLine  strings.Builder
}

func (b *basicBackend) Name() string { return "basic" }

func (b *basicBackend) Init(out Sink) error {
	b.out = out
	return nil
}

func (b *basicBackend) Float() FloatFormat { return FloatMicrosoft129 }

func (b *basicBackend) CmdLine(flag string, value string) (bool, error) {
	switch flag {
	case "C":
		b.cassette = value
		return true, nil
	case "S":
		b.disk = value
		return true, nil
	default:
		return false, nil
	}
}

func (b *basicBackend) Opt(pass int, key string, rest string) (bool, error) {
	if key != "BASIC" {
		return false, nil
	}
	return true, nil
}

func (b *basicBackend) PassStart(pass int) error {
	if pass == 2 {
		b.dataLine.Reset()
		fmt.Fprintf(&b.dataLine, "%d DATA", b.line)
	}
	return nil
}

func (b *basicBackend) flushDataLine() error {
	text := strings.TrimSuffix(b.dataLine.String(), ",")
	if _, err := fmt.Fprintln(b.out, text); err != nil {
		return err
	}
	b.line += b.incr
	b.dataLine.Reset()
	fmt.Fprintf(&b.dataLine, "%d DATA", b.line)
	return nil
}

const maxBasicLineLen = 249

func (b *basicBackend) Write(pass int, data []byte, kind Kind) error {
	if pass != 2 {
		return nil
	}
	for _, c := range data {
		piece := fmt.Sprintf("%d,", c)
		if b.dataLine.Len()+len(piece) > maxBasicLineLen {
			if err := b.flushDataLine(); err != nil {
				return err
			}
		}
		b.dataLine.WriteString(piece)
	}
	return nil
}

func (b *basicBackend) Org(pass int, start uint16, last uint16) error {
	if pass == 2 && !b.haveOrg {
		b.staddr = start
	}
	b.haveOrg = true
	return nil
}

func (b *basicBackend) Align(pass int, gap int) error {
	return b.Write(pass, make([]byte, gap), KindData)
}

func (b *basicBackend) RMB(pass int, n int) error {
	if n == 0 {
		return errors.New("E0099: can't reserve 0 bytes of memory")
	}
	return b.Align(pass, n)
}

func (b *basicBackend) End(pass int, entry Entry) error {
	if pass != 2 {
		return nil
	}
	if !b.haveOrg {
		return errors.New("E9999: missing ORG for backend")
	}
	if err := b.flushDataLine(); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(b.out, "%d CLEAR%d,%d:FORA=%dTO%d:READB:POKEA,B:NEXT\n",
		b.line, b.strspace, b.staddr-1, b.staddr, b.staddr-1); err != nil {
		return err
	}
	if b.usr != 0 {
		b.line += b.incr
		if _, err := fmt.Fprintf(b.out, "%d POKE275,%d:POKE276,%d\n",
			b.line, b.usr>>8, b.usr&255); err != nil {
			return err
		}
	}
	if entry.Present && b.cassette == "" && b.disk == "" {
		b.line += b.incr
		if _, err := fmt.Fprintf(b.out, "%d EXEC%d\n", b.line, entry.Value); err != nil {
			return err
		}
	}
	if b.cassette != "" {
		if !entry.Present {
			return errors.New("E9999: missing entry point on END")
		}
		b.line += b.incr
		if _, err := fmt.Fprintf(b.out, "%d CSAVEM\"%s\",%d,%d,%d\n",
			b.line, b.cassette, b.staddr, entry.Value, entry.Value); err != nil {
			return err
		}
	}
	if b.disk != "" {
		if !entry.Present {
			return errors.New("E9999: missing entry point on END")
		}
		b.line += b.incr
		if _, err := fmt.Fprintf(b.out, "%d SAVEM\"%s\",%d,%d,%d\n",
			b.line, b.disk, b.staddr, entry.Value, entry.Value); err != nil {
			return err
		}
	}
	return nil
}
