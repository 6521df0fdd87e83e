/*
   a09 - Flat binary output format.

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
	Register("bin", func() Backend { return &binBackend{} })
}

// binBackend writes a headerless flat image: gaps between ORGs and
// RMB/ALIGN directives are just forward seeks over the sink.
type binBackend struct {
	Base
	out   Sink
	first bool
}

func (b *binBackend) Name() string { return "bin" }

func (b *binBackend) Init(out Sink) error {
	b.out = out
	return nil
}

func (b *binBackend) Align(pass int, gap int) error {
	if pass != 2 {
		return nil
	}
	_, err := b.out.Seek(int64(gap), io.SeekCurrent)
	return err
}

func (b *binBackend) RMB(pass int, n int) error {
	return b.Align(pass, n)
}

func (b *binBackend) Org(pass int, start uint16, last uint16) error {
	if pass == 2 {
		if b.first {
			delta := int64(int32(start) - int32(last))
			if _, err := b.out.Seek(delta, io.SeekCurrent); err != nil {
				return err
			}
		}
		b.first = true
	}
	return nil
}

func (b *binBackend) Write(pass int, data []byte, kind Kind) error {
	if pass != 2 {
		return nil
	}
	_, err := b.out.Write(data)
	return err
}

func (b *binBackend) End(pass int, entry Entry) error { return nil }
