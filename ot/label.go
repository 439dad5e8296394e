//
// label.go
//
// Copyright (c) 2019-2026 Markku Rossi
//
// All rights reserved.
//

package ot

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Wire implements a wire with 0 and 1 labels.
type Wire struct {
	L0 Label
	L1 Label
}

func (w Wire) String() string {
	return fmt.Sprintf("%s/%s", w.L0, w.L1)
}

// Label implements a 128 bit block. The D0 holds the high and D1 the
// low 64 bits of the block.
type Label struct {
	D0 uint64
	D1 uint64
}

// LabelData contains lable data as byte array.
type LabelData [16]byte

// LabelSize is the serialized size of a label in bytes.
const LabelSize = 16

// MakeLabel creates a label from its high and low halves.
func MakeLabel(high, low uint64) Label {
	return Label{
		D0: high,
		D1: low,
	}
}

// NewLabel creates a new random label.
func NewLabel(rand io.Reader) (Label, error) {
	var buf LabelData
	var label Label

	if _, err := io.ReadFull(rand, buf[:]); err != nil {
		return label, err
	}
	label.SetData(&buf)
	return label, nil
}

// NewDelta creates a new random global key. The least significant
// bit of the key is always set.
func NewDelta(rand io.Reader) (Label, error) {
	delta, err := NewLabel(rand)
	if err != nil {
		return delta, err
	}
	delta.D1 |= 1
	return delta, nil
}

func (l Label) String() string {
	return fmt.Sprintf("%016x%016x", l.D0, l.D1)
}

// Equal test if the labels are equal.
func (l Label) Equal(o Label) bool {
	return l.D0 == o.D0 && l.D1 == o.D1
}

// IsZero tests if the label is all zero.
func (l Label) IsZero() bool {
	return l.D0 == 0 && l.D1 == 0
}

// Xor xors the label with the argument label.
func (l *Label) Xor(o Label) {
	l.D0 ^= o.D0
	l.D1 ^= o.D1
}

// And ands the label with the argument label.
func (l *Label) And(o Label) {
	l.D0 &= o.D0
	l.D1 &= o.D1
}

// XorIf xors the label with the argument label if the flag is set.
func (l *Label) XorIf(o Label, flag bool) {
	if flag {
		l.D0 ^= o.D0
		l.D1 ^= o.D1
	}
}

// LSB returns the least significant bit of the label.
func (l Label) LSB() bool {
	return l.D1&1 == 1
}

// Bit returns the label's bit i. Bit 0 is the least significant bit.
func (l Label) Bit(i int) uint {
	if i < 64 {
		return uint((l.D1 >> i) & 1)
	}
	return uint((l.D0 >> (i - 64)) & 1)
}

// SetBit sets the label's bit i to the value v.
func (l *Label) SetBit(i int, v uint) {
	if i < 64 {
		l.D1 &^= 1 << i
		l.D1 |= uint64(v&1) << i
	} else {
		l.D0 &^= 1 << (i - 64)
		l.D0 |= uint64(v&1) << (i - 64)
	}
}

// Sigma computes the linear orthomorphism σ(hi, lo) = (hi⊕lo, hi).
func (l Label) Sigma() Label {
	return Label{
		D0: l.D0 ^ l.D1,
		D1: l.D0,
	}
}

// GetData gets the labels as label data.
func (l Label) GetData(buf *LabelData) {
	binary.BigEndian.PutUint64(buf[0:8], l.D0)
	binary.BigEndian.PutUint64(buf[8:16], l.D1)
}

// SetData sets the labels from label data.
func (l *Label) SetData(data *LabelData) {
	l.D0 = binary.BigEndian.Uint64((*data)[0:8])
	l.D1 = binary.BigEndian.Uint64((*data)[8:16])
}

// Bytes returns the label data as bytes.
func (l Label) Bytes(buf *LabelData) []byte {
	l.GetData(buf)
	return buf[:]
}

// SetBytes sets the label data from bytes.
func (l *Label) SetBytes(data []byte) {
	l.D0 = binary.BigEndian.Uint64(data[0:8])
	l.D1 = binary.BigEndian.Uint64(data[8:16])
}

// XorLabels xors the src labels into dst.
func XorLabels(dst, src []Label) {
	for i := range dst {
		dst[i].Xor(src[i])
	}
}

// EqualLabels tests if the label slices are equal.
func EqualLabels(a, b []Label) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
