//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package ot

import (
	"testing"
)

func TestPRPFixedKey(t *testing.T) {
	p0 := NewPRP(Label{})
	p1 := NewPRP(Label{})

	x := MakeLabel(0x0123456789abcdef, 0xfedcba9876543210)
	if !p0.Permute(x).Equal(p1.Permute(x)) {
		t.Fatalf("permutation not deterministic")
	}
	if p0.Permute(x).Equal(x) {
		t.Fatalf("permutation is identity")
	}
	h := p0.Hash(x)
	e := p0.Permute(x)
	e.Xor(x)
	if !h.Equal(e) {
		t.Fatalf("Hash: got %v, expected %v", h, e)
	}
	if p0.HashID(x, 1).Equal(p0.HashID(x, 2)) {
		t.Fatalf("HashID ignores tweak")
	}
	y := x.Sigma()
	y.D1 ^= 7
	if !p0.HashID(x, 7).Equal(p0.Hash(y)) {
		t.Fatalf("HashID mismatch")
	}
}

func TestPRG(t *testing.T) {
	seed := MakeLabel(1, 2)
	g0 := NewPRG(seed)
	g1 := NewPRG(seed)

	for i := 0; i < 10; i++ {
		if !g0.Label().Equal(g1.Label()) {
			t.Fatalf("PRG streams differ at %d", i)
		}
	}
	b0 := g0.Bools(100)
	b1 := g1.Bools(100)
	for i := range b0 {
		if b0[i] != b1[i] {
			t.Fatalf("Bools differ at %d", i)
		}
	}
	i0 := g0.Int32s(10)
	i1 := g1.Int32s(10)
	for i := range i0 {
		if i0[i] != i1[i] {
			t.Fatalf("Int32s differ at %d", i)
		}
	}

	g2 := NewPRG(MakeLabel(1, 3))
	if g2.Label().Equal(NewPRG(seed).Label()) {
		t.Fatalf("different seeds produce the same stream")
	}
}
