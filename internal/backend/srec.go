/*
   a09 - Motorola S-record output format.

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
)

func init() {
	Register("srec", func() Backend { return &srecBackend{recsize: 34} })
}

// srecBackend accumulates bytes into a fixed-size buffer and flushes an
// S1 data record whenever it fills, an ORG changes the load address, or
// assembly ends; END/pass-end write the S9 termination record.
type srecBackend struct {
	Base
	out       Sink
	addr      uint16
	exec      uint16
	recsize   int
	buf       []byte
	endf      bool
	execf     bool
	override  bool
}

func (s *srecBackend) Name() string { return "srec" }

func (s *srecBackend) Init(out Sink) error {
	s.out = out
	return nil
}

func (s *srecBackend) Float() FloatFormat { return FloatIEEE }

func (s *srecBackend) CmdLine(flag string, value string) (bool, error) {
	switch flag {
	case "R":
		var n int
		if _, err := fmt.Sscanf(value, "%d", &n); err != nil || n < 1 || n > 252 {
			return true, errors.New("E0067: record size must be between 1 and 252")
		}
		s.recsize = n
		return true, nil
	case "O":
		s.override = true
		return true, nil
	default:
		return false, nil
	}
}

func writeRecord(out Sink, kind byte, addr uint16, data []byte) error {
	n := len(data) + 3
	checksum := byte(n) + byte(addr>>8) + byte(addr)
	line := fmt.Sprintf("S%c%02X%04X", kind, n, addr)
	for _, b := range data {
		line += fmt.Sprintf("%02X", b)
		checksum += b
	}
	line += fmt.Sprintf("%02X\n", ^checksum)
	_, err := out.Write([]byte(line))
	return err
}

func (s *srecBackend) flush() error {
	if len(s.buf) == 0 {
		return nil
	}
	if err := writeRecord(s.out, '1', s.addr, s.buf); err != nil {
		return err
	}
	s.addr += uint16(len(s.buf))
	s.buf = s.buf[:0]
	return nil
}

func (s *srecBackend) append(b []byte) error {
	for _, c := range b {
		if len(s.buf) == s.recsize {
			if err := s.flush(); err != nil {
				return err
			}
		}
		s.buf = append(s.buf, c)
	}
	return nil
}

func (s *srecBackend) Write(pass int, data []byte, kind Kind) error {
	if pass != 2 {
		return nil
	}
	return s.append(data)
}

func (s *srecBackend) Align(pass int, gap int) error {
	if pass != 2 {
		return nil
	}
	return s.append(make([]byte, gap))
}

func (s *srecBackend) RMB(pass int, n int) error {
	if n == 0 {
		return errors.New("E0099: can't reserve 0 bytes of memory")
	}
	if pass != 2 {
		return nil
	}
	return s.append(make([]byte, n))
}

func (s *srecBackend) Org(pass int, start uint16, last uint16) error {
	if pass != 2 {
		return nil
	}
	if err := s.flush(); err != nil {
		return err
	}
	if !s.override {
		s.addr = start
	}
	return nil
}

func (s *srecBackend) PassStart(pass int) error { return nil }

func (s *srecBackend) PassEnd(pass int) error {
	if pass != 2 || s.endf {
		return nil
	}
	if err := s.flush(); err != nil {
		return err
	}
	if s.execf {
		return writeRecord(s.out, '9', s.exec, nil)
	}
	return nil
}

func (s *srecBackend) End(pass int, entry Entry) error {
	if pass != 2 {
		return nil
	}
	if s.endf {
		return errors.New("E0056: END section already written")
	}
	if err := s.flush(); err != nil {
		return err
	}
	execAddr := s.exec
	if !s.override && entry.Present {
		execAddr = entry.Value
	}
	if err := writeRecord(s.out, '9', execAddr, nil); err != nil {
		return err
	}
	s.endf = true
	s.execf = true
	return nil
}
