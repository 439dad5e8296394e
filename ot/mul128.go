//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package ot

import (
	"math/bits"
)

// mul128 computes the 256-bit carryless product of a and b. The
// labels are read as polynomials with D1 holding the low 64
// coefficients. The result lo holds the coefficients 0-127 and hi
// the coefficients 128-255.
func mul128(a, b Label) (lo, hi Label) {
	a0, a1 := a.D1, a.D0
	b0, b1 := b.D1, b.D0

	p00lo, p00hi := clmul64(a0, b0)
	p01lo, p01hi := clmul64(a0, b1)
	p10lo, p10hi := clmul64(a1, b0)
	p11lo, p11hi := clmul64(a1, b1)

	midLo := p01lo ^ p10lo
	midHi := p01hi ^ p10hi

	lo.D1 = p00lo
	lo.D0 = p00hi ^ midLo

	hi.D1 = midHi ^ p11lo
	hi.D0 = p11hi

	return
}

// innerProduct computes Σ a[i]·b[i] in GF(2)[x] without the modular
// reduction. The vectors must have the same length.
func innerProduct(a, b []Label) (lo, hi Label) {
	for i := range a {
		l, h := mul128(a[i], b[i])
		lo.Xor(l)
		hi.Xor(h)
	}
	return
}

// clmul64 computes the carryless product of a and b.
func clmul64(a, b uint64) (lo, hi uint64) {
	for b != 0 {
		i := bits.TrailingZeros64(b)
		b &= b - 1
		lo ^= a << i
		if i > 0 {
			hi ^= a >> (64 - i)
		}
	}
	return
}
