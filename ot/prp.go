//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package ot

import (
	"crypto/aes"
	"crypto/cipher"
)

// PRP implements a fixed-key AES permutation over labels.
type PRP struct {
	block cipher.Block
}

// NewPRP creates a new permutation keyed with key.
func NewPRP(key Label) *PRP {
	var ld LabelData
	block, err := aes.NewCipher(key.Bytes(&ld))
	if err != nil {
		// A 16-byte key is always valid.
		panic(err)
	}
	return &PRP{
		block: block,
	}
}

// Permute computes π(x).
func (p *PRP) Permute(x Label) Label {
	var in, out LabelData
	x.GetData(&in)
	p.block.Encrypt(out[:], in[:])
	x.SetData(&out)
	return x
}

// PermuteLabels computes π in place for all labels.
func (p *PRP) PermuteLabels(labels []Label) {
	for i := range labels {
		labels[i] = p.Permute(labels[i])
	}
}

// Hash computes the correlation robust hash π(x)⊕x.
func (p *PRP) Hash(x Label) Label {
	r := p.Permute(x)
	r.Xor(x)
	return r
}

// HashID computes the tweaked hash H(σ(x)⊕id) where the tweak id is
// placed in the low half of the block.
func (p *PRP) HashID(x Label, id uint64) Label {
	x = x.Sigma()
	x.D1 ^= id
	return p.Hash(x)
}

// FixedKey is the public key of the fixed-key permutations shared by
// all parties.
var FixedKey = MakeLabel(0x243f6a8885a308d3, 0x13198a2e03707344)

// NewFixedKeyPRP creates a permutation keyed with FixedKey.
func NewFixedKeyPRP() *PRP {
	return NewPRP(FixedKey)
}
