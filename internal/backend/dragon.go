/*
   a09 - Dragon DOS output format.

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

import "io"

func init() {
	Register("dragon", func() Backend { return &dragonBackend{} })
}

// dragonBackend reserves a 9-byte header ($55 $02 <load:16> <len:16>
// <exec:16> $AA) at the start of the file, writing the code immediately
// after it, then seeks back to offset 0 at End to fill the header in once
// the final length and entry point are known.
type dragonBackend struct {
	Base
	out     Sink
	load    uint16
	haveOrg bool
	first   bool
}

func (d *dragonBackend) Name() string { return "dragon" }

func (d *dragonBackend) Float() FloatFormat { return FloatMicrosoft129 }

func (d *dragonBackend) Init(out Sink) error {
	d.out = out
	// reserve the 9-byte header, filled in at End
	_, err := out.Seek(9, io.SeekStart)
	return err
}

func (d *dragonBackend) Align(pass int, gap int) error {
	if pass != 2 {
		return nil
	}
	_, err := d.out.Seek(int64(gap), io.SeekCurrent)
	return err
}

func (d *dragonBackend) RMB(pass int, n int) error {
	return d.Align(pass, n)
}

func (d *dragonBackend) Org(pass int, start uint16, last uint16) error {
	if pass == 2 {
		if d.first {
			if _, err := d.out.Seek(int64(int32(start)-int32(last)), io.SeekCurrent); err != nil {
				return err
			}
		} else {
			d.load = start
		}
		d.first = true
		d.haveOrg = true
	}
	return nil
}

func (d *dragonBackend) Write(pass int, data []byte, kind Kind) error {
	if pass != 2 {
		return nil
	}
	_, err := d.out.Write(data)
	return err
}

func (d *dragonBackend) End(pass int, entry Entry) error {
	if pass != 2 {
		return nil
	}
	endPos, err := tell(d.out)
	if err != nil {
		return err
	}
	length := endPos - 9
	var exec uint16
	if entry.Present {
		exec = entry.Value
	}
	hdr := [9]byte{
		0x55, 0x02,
		byte(d.load >> 8), byte(d.load),
		byte(length >> 8), byte(length),
		byte(exec >> 8), byte(exec),
		0xAA,
	}
	if _, err := d.out.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := d.out.Write(hdr[:]); err != nil {
		return err
	}
	_, err = d.out.Seek(0, io.SeekEnd)
	return err
}
