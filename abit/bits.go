//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package abit

import (
	"github.com/markkurossi/agmpc/ot"
	"github.com/markkurossi/agmpc/tensor"
)

// Bits holds a batch of authenticated bits of one party. For the
// party h and its peer v, the batch satisfies:
//
//	MAC_h.At(v, i) = Key_v.At(h, i) ⊕ Value_h[i]·Δ_v
type Bits struct {
	Value []bool
	MAC   *tensor.Matrix[ot.Label]
	Key   *tensor.Matrix[ot.Label]
}

// NewBits creates a zero batch of length bits for parties parties.
func NewBits(parties, length int) *Bits {
	return &Bits{
		Value: make([]bool, length),
		MAC:   tensor.NewMatrix[ot.Label](parties, length),
		Key:   tensor.NewMatrix[ot.Label](parties, length),
	}
}

// Len returns the number of bits in the batch.
func (b *Bits) Len() int {
	return len(b.Value)
}

// Parties returns the number of parties of the batch.
func (b *Bits) Parties() int {
	return b.MAC.Parties()
}

// Copy copies the bit src of from to the bit dst of b.
func (b *Bits) Copy(dst int, from *Bits, src int) {
	b.Value[dst] = from.Value[src]
	for p := 1; p <= b.Parties(); p++ {
		b.MAC.Set(tensor.Party(p), dst, from.MAC.At(tensor.Party(p), src))
		b.Key.Set(tensor.Party(p), dst, from.Key.At(tensor.Party(p), src))
	}
}

// Xor adds the bit src of from to the bit dst of b.
func (b *Bits) Xor(dst int, from *Bits, src int) {
	b.Value[dst] = b.Value[dst] != from.Value[src]
	for p := 1; p <= b.Parties(); p++ {
		b.MAC.Ptr(tensor.Party(p), dst).Xor(from.MAC.At(tensor.Party(p), src))
		b.Key.Ptr(tensor.Party(p), dst).Xor(from.Key.At(tensor.Party(p), src))
	}
}
