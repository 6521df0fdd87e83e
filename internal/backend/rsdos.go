/*
   a09 - RS-DOS (Color Computer disk) output format.

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
	"io"
)

func init() {
	Register("rsdos", func() Backend { return &rsdosBackend{} })
}

// rsdosBackend writes a sequence of 5-byte ($00 <length:16> <load addr:16>)
// section headers followed by raw code, terminated by an $FF entry header.
// ORG opens a new section; a gap of fewer than 6 bytes is padded in
// place, a longer one closes the section and opens a fresh one.
type rsdosBackend struct {
	Base
	out          Sink
	sectionHdr   int64
	sectionStart int64
	endf         bool
	haveOrg      bool
	pc           uint16
}

func (r *rsdosBackend) Name() string { return "rsdos" }

func (r *rsdosBackend) Init(out Sink) error {
	r.out = out
	return nil
}

func (r *rsdosBackend) Float() FloatFormat { return FloatMicrosoft129 }

func (r *rsdosBackend) updateSectionSize() error {
	pos, err := tell(r.out)
	if err != nil {
		return err
	}
	if pos < r.sectionStart {
		return errors.New("E0054: internal error: no header written")
	}
	size := pos - r.sectionStart
	if size == 0 {
		_, err := r.out.Seek(r.sectionHdr, io.SeekStart)
		return err
	}
	if size > 0xFFFF {
		return errors.New("E0055: object size too large")
	}
	if _, err := r.out.Seek(r.sectionHdr+1, io.SeekStart); err != nil {
		return err
	}
	if _, err := r.out.Write([]byte{byte(size >> 8), byte(size)}); err != nil {
		return err
	}
	_, err = r.out.Seek(pos, io.SeekStart)
	return err
}

func (r *rsdosBackend) openSection(loadAddr uint16) error {
	pos, err := tell(r.out)
	if err != nil {
		return err
	}
	hdr := [5]byte{0, 0, 0, byte(loadAddr >> 8), byte(loadAddr)}
	if _, err := r.out.Write(hdr[:]); err != nil {
		return err
	}
	r.sectionHdr = pos
	r.sectionStart, err = tell(r.out)
	return err
}

// blockZeroWrite implements the reference assembler's gap-filling policy:
// fewer than 6 bytes pads in place, otherwise the current section is
// closed and a fresh one opened past the gap, saving space in the image.
func (r *rsdosBackend) blockZeroWrite(pass int, size uint16) error {
	if pass != 2 {
		return nil
	}
	if !r.haveOrg {
		return errors.New("E0057: ORG directive missing")
	}
	if size < 6 {
		_, err := r.out.Seek(int64(size), io.SeekCurrent)
		return err
	}
	pos, err := tell(r.out)
	if err != nil {
		return err
	}
	next := r.pc + uint16(pos-r.sectionStart) + size
	if err := r.updateSectionSize(); err != nil {
		return err
	}
	r.pc = next
	return r.openSection(next)
}

func (r *rsdosBackend) Align(pass int, gap int) error {
	return r.blockZeroWrite(pass, uint16(gap))
}

func (r *rsdosBackend) RMB(pass int, n int) error {
	if n == 0 {
		return errors.New("E0099: can't reserve 0 bytes of memory")
	}
	return r.blockZeroWrite(pass, uint16(n))
}

func (r *rsdosBackend) Org(pass int, start uint16, last uint16) error {
	r.pc = start
	if pass != 2 {
		return nil
	}
	r.haveOrg = true
	if r.sectionStart != 0 || r.sectionHdr != 0 {
		if err := r.updateSectionSize(); err != nil {
			return err
		}
	}
	return r.openSection(start)
}

func (r *rsdosBackend) Write(pass int, data []byte, kind Kind) error {
	if pass != 2 {
		return nil
	}
	if !r.haveOrg {
		return errors.New("E0057: ORG directive missing")
	}
	_, err := r.out.Write(data)
	return err
}

func (r *rsdosBackend) End(pass int, entry Entry) error {
	if pass != 2 {
		return nil
	}
	if !r.haveOrg {
		return errors.New("E0057: ORG directive missing")
	}
	if r.endf {
		return errors.New("E0056: END section already written")
	}
	if err := r.updateSectionSize(); err != nil {
		return err
	}
	hdr := [5]byte{0xFF, 0, 0, 0, 0}
	if entry.Present {
		hdr[3] = byte(entry.Value >> 8)
		hdr[4] = byte(entry.Value)
	}
	if _, err := r.out.Write(hdr[:]); err != nil {
		return err
	}
	r.endf = true
	return nil
}
