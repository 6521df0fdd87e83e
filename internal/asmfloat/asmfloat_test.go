/*
   a09 - Floating point literal encoder tests.

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
package asmfloat

import (
	"math"
	"testing"
)

func TestEncodeMicrosoft5OnePointZero(t *testing.T) {
	b, err := EncodeMicrosoft5(1.0, Bias129)
	if err != nil {
		t.Fatalf("EncodeMicrosoft5 returned error: %v", err)
	}
	want := [5]byte{0x81, 0x00, 0x00, 0x00, 0x00}
	if b != want {
		t.Errorf("bytes = % x, want % x", b, want)
	}
}

func TestEncodeMicrosoft5NegativeOne(t *testing.T) {
	b, err := EncodeMicrosoft5(-1.0, Bias129)
	if err != nil {
		t.Fatalf("EncodeMicrosoft5 returned error: %v", err)
	}
	want := [5]byte{0x81, 0x80, 0x00, 0x00, 0x00}
	if b != want {
		t.Errorf("bytes = % x, want % x", b, want)
	}
}

func TestEncodeMicrosoft5Zero(t *testing.T) {
	b, err := EncodeMicrosoft5(0.0, Bias129)
	if err != nil {
		t.Fatalf("EncodeMicrosoft5 returned error: %v", err)
	}
	if b != ([5]byte{}) {
		t.Errorf("bytes = % x, want all zero", b)
	}
}

func TestEncodeMicrosoft5Bias128(t *testing.T) {
	b, err := EncodeMicrosoft5(1.0, Bias128)
	if err != nil {
		t.Fatalf("EncodeMicrosoft5 returned error: %v", err)
	}
	if b[0] != 0x80 {
		t.Errorf("exponent byte = %#x, want 0x80 under bias 128", b[0])
	}
}

func TestEncodeMicrosoft5OutOfRange(t *testing.T) {
	_, err := EncodeMicrosoft5(1e300, Bias129)
	if err != ErrOutOfRange {
		t.Errorf("err = %v, want ErrOutOfRange", err)
	}
}

func TestEncodeMicrosoft5RejectsInfAndNaN(t *testing.T) {
	if _, err := EncodeMicrosoft5(math.Inf(1), Bias129); err != ErrOutOfRange {
		t.Errorf("+Inf: err = %v, want ErrOutOfRange", err)
	}
	if _, err := EncodeMicrosoft5(math.NaN(), Bias129); err != ErrOutOfRange {
		t.Errorf("NaN: err = %v, want ErrOutOfRange", err)
	}
}

func TestEncodeIEEESingleRoundTrips(t *testing.T) {
	b := EncodeIEEESingle(1.0)
	want := [4]byte{0x3F, 0x80, 0x00, 0x00}
	if b != want {
		t.Errorf("bytes = % x, want % x", b, want)
	}
}

func TestEncodeIEEEDoubleRoundTrips(t *testing.T) {
	b := EncodeIEEEDouble(1.0)
	want := [8]byte{0x3F, 0xF0, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	if b != want {
		t.Errorf("bytes = % x, want % x", b, want)
	}
}
