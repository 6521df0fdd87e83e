/*
   a09 - Floating point literal encoders.

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

// Package asmfloat encodes Go float64 values into the wire formats a
// back-end may request for FLOAT/FLOATD/FCB-style real-number literals:
// the 5-byte Microsoft/Color-Computer binary format (two exponent biases),
// and plain big-endian IEEE-754 single/double precision.
//
// The Microsoft format stores [exp:8 biased][sign:1][frac:31] with an
// implicit leading fraction bit, derived directly from the IEEE-754 double
// by re-biasing the exponent and keeping the top 31 fraction bits.
package asmfloat

import (
	"errors"
	"math"
)

// ErrOutOfRange is returned when a value's re-biased exponent does not fit
// in the target format's 8-bit exponent field.
var ErrOutOfRange = errors.New("floating point value exceeds range of target format")

// Bias129 re-biases the IEEE-754 exponent by 129, the bias Microsoft BASIC
// (and so the Color Computer / Dragon) uses for its 5-byte real format.
const Bias129 = 129

// Bias128 is the alternate 6809 float library bias noted in the reference
// assembler: identical layout, bias 128 instead of 129.
const Bias128 = 128

// EncodeMicrosoft5 encodes v into the 5-byte Microsoft binary format using
// the given exponent bias (Bias129 or Bias128). v == 0 encodes as all
// zero bytes; any non-finite or non-representable value is an error.
func EncodeMicrosoft5(v float64, bias int) ([5]byte, error) {
	var out [5]byte
	if v == 0 {
		return out, nil
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return out, ErrOutOfRange
	}

	bits := math.Float64bits(v)
	frac := bits & 0x000FFFFFFFFFFFFF
	sign := bits&0x8000000000000000 != 0
	exp := int((bits >> 52) & 0x7FF)

	if exp == 0 {
		// subnormal: below the smallest value this format can represent
		return out, ErrOutOfRange
	}
	exp = exp - 1023 + bias
	if exp > 255 || exp < 0 {
		return out, ErrOutOfRange
	}

	out[0] = byte(exp)
	out[1] = byte(frac >> 45)
	out[2] = byte(frac >> 37)
	out[3] = byte(frac >> 29)
	out[4] = byte(frac >> 21)
	if sign {
		out[1] |= 0x80
	}
	return out, nil
}

// EncodeIEEESingle encodes v as a big-endian IEEE-754 single-precision
// (4-byte) float, the format the MC6839 ROM's float library expects.
func EncodeIEEESingle(v float32) [4]byte {
	x := math.Float32bits(v)
	return [4]byte{byte(x >> 24), byte(x >> 16), byte(x >> 8), byte(x)}
}

// EncodeIEEEDouble encodes v as a big-endian IEEE-754 double-precision
// (8-byte) float.
func EncodeIEEEDouble(v float64) [8]byte {
	x := math.Float64bits(v)
	return [8]byte{
		byte(x >> 56), byte(x >> 48), byte(x >> 40), byte(x >> 32),
		byte(x >> 24), byte(x >> 16), byte(x >> 8), byte(x),
	}
}
