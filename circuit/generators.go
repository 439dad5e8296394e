//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package circuit

import (
	"github.com/markkurossi/agmpc/abort"
)

// NewAdder creates a two-party ripple-carry adder of bits-bit
// integers. The inputs and outputs are least significant bit first
// and the result is taken modulo 2^bits.
func NewAdder(bits int) (*Circuit, error) {
	if bits <= 0 {
		return nil, abort.Misusef("invalid adder size %d", bits)
	}
	b := NewBuilder(bits, bits)
	sum := b.Add(b.Inputs(0), b.Inputs(1))
	return b.Compile(sum)
}

// Add returns x+y modulo 2^len(x). The arguments are least
// significant bit first and must have the same length.
func (b *Builder) Add(x, y []Wire) []Wire {
	result := make([]Wire, len(x))
	carry := b.Zero()
	for i := range x {
		t := b.XOR(x[i], carry)
		result[i] = b.XOR(t, y[i])
		if i+1 < len(x) {
			// c' = ((x⊕c)∧(y⊕c))⊕c
			carry = b.XOR(b.AND(t, b.XOR(y[i], carry)), carry)
		}
	}
	return result
}

type word [32]Wire

var sha1IV = [5]uint32{
	0x67452301, 0xefcdab89, 0x98badcfe, 0x10325476, 0xc3d2e1f0,
}

var sha1K = [4]uint32{
	0x5a827999, 0x6ed9eba1, 0x8f1bbcdc, 0xca62c1d6,
}

// NewSHA1 creates the SHA-1 compression function over one 512-bit
// block with the standard initial state. The first input range holds
// the block, most significant bit of each byte first. The second
// input range is empty. The 160 outputs are the digest, most
// significant bit of each byte first.
func NewSHA1() (*Circuit, error) {
	b := NewBuilder(512, 0)

	var w [80]word
	for t := 0; t < 16; t++ {
		for i := 0; i < 32; i++ {
			w[t][i] = b.Input(0, 32*t+31-i)
		}
	}
	for t := 16; t < 80; t++ {
		var x word
		for i := 0; i < 32; i++ {
			x[i] = b.XOR(b.XOR(w[t-3][i], w[t-8][i]),
				b.XOR(w[t-14][i], w[t-16][i]))
		}
		w[t] = rotl(x, 1)
	}

	var h [5]word
	for i := range h {
		h[i] = b.constWord(sha1IV[i])
	}
	a, bb, c, d, e := h[0], h[1], h[2], h[3], h[4]

	for t := 0; t < 80; t++ {
		var f word
		for i := 0; i < 32; i++ {
			switch t / 20 {
			case 0:
				// Ch(b,c,d) = d⊕(b∧(c⊕d))
				f[i] = b.XOR(d[i], b.AND(bb[i], b.XOR(c[i], d[i])))
			case 2:
				// Maj(b,c,d) = ((b⊕c)∧(c⊕d))⊕c
				f[i] = b.XOR(b.AND(b.XOR(bb[i], c[i]), b.XOR(c[i], d[i])),
					c[i])
			default:
				f[i] = b.XOR(b.XOR(bb[i], c[i]), d[i])
			}
		}
		k := b.constWord(sha1K[t/20])
		tmp := b.addWords(rotl(a, 5), f, e, k, w[t])
		e = d
		d = c
		c = rotl(bb, 30)
		bb = a
		a = tmp
	}

	final := [5]word{a, bb, c, d, e}
	var outputs []Wire
	for i := range h {
		sum := b.addWords(h[i], final[i])
		for j := 31; j >= 0; j-- {
			outputs = append(outputs, sum[j])
		}
	}
	return b.Compile(outputs)
}

func (b *Builder) constWord(v uint32) word {
	var result word
	for i := range result {
		result[i] = b.Const((v>>i)&1 == 1)
	}
	return result
}

func (b *Builder) addWords(words ...word) word {
	result := words[0]
	for _, w := range words[1:] {
		copy(result[:], b.Add(result[:], w[:]))
	}
	return result
}

func rotl(x word, n int) word {
	var result word
	for i := 0; i < 32; i++ {
		result[(i+n)%32] = x[i]
	}
	return result
}
