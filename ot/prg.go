//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package ot

import (
	"crypto/cipher"
	"encoding/binary"
)

// PRG implements an AES-CTR pseudorandom generator. Two generators
// created from the same seed produce the same stream.
type PRG struct {
	s cipher.Stream
}

// NewPRG creates a new generator from the seed.
func NewPRG(seed Label) *PRG {
	s, err := newPrg(seed)
	if err != nil {
		panic(err)
	}
	return &PRG{
		s: s,
	}
}

// Read implements io.Reader. It always fills p.
func (g *PRG) Read(p []byte) (int, error) {
	g.Fill(p)
	return len(p), nil
}

// Fill fills buf with pseudorandom bytes.
func (g *PRG) Fill(buf []byte) {
	prg(g.s, buf)
}

// Label returns a pseudorandom label.
func (g *PRG) Label() Label {
	var ld LabelData
	g.Fill(ld[:])

	var l Label
	l.SetData(&ld)
	return l
}

// Labels fills labels with pseudorandom labels.
func (g *PRG) Labels(labels []Label) {
	prgLabels(g.s, labels)
}

// Bools returns n pseudorandom bits.
func (g *PRG) Bools(n int) []bool {
	buf := make([]byte, n)
	g.Fill(buf)

	result := make([]bool, n)
	for i, b := range buf {
		result[i] = b&1 == 1
	}
	return result
}

// Int32s returns n pseudorandom signed 32-bit integers.
func (g *PRG) Int32s(n int) []int32 {
	buf := make([]byte, n*4)
	g.Fill(buf)

	result := make([]int32, n)
	for i := range result {
		result[i] = int32(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return result
}
