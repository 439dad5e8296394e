//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package tensor implements party-indexed matrices.
package tensor

import (
	"fmt"
)

// Party is a 1-based party number.
type Party int

// Evaluator is the party that evaluates the garbled circuit.
const Evaluator Party = 1

func (p Party) String() string {
	return fmt.Sprintf("P%d", int(p))
}

// Matrix holds cols values for the parties 1..parties. The row of
// party p is a contiguous slice of the backing array.
type Matrix[T any] struct {
	parties int
	cols    int
	data    []T
}

// NewMatrix creates a zero-valued matrix for the parties 1..parties.
func NewMatrix[T any](parties, cols int) *Matrix[T] {
	return &Matrix[T]{
		parties: parties,
		cols:    cols,
		data:    make([]T, parties*cols),
	}
}

// Parties returns the number of party rows.
func (m *Matrix[T]) Parties() int {
	return m.parties
}

// Cols returns the number of columns.
func (m *Matrix[T]) Cols() int {
	return m.cols
}

func (m *Matrix[T]) offset(p Party, i int) int {
	if p < 1 || int(p) > m.parties {
		panic(fmt.Sprintf("party %v out of range 1..%d", p, m.parties))
	}
	if i < 0 || i >= m.cols {
		panic(fmt.Sprintf("column %d out of range 0..%d", i, m.cols-1))
	}
	return (int(p)-1)*m.cols + i
}

// At returns the value at the party p and column i.
func (m *Matrix[T]) At(p Party, i int) T {
	return m.data[m.offset(p, i)]
}

// Ptr returns a pointer to the value at the party p and column i.
func (m *Matrix[T]) Ptr(p Party, i int) *T {
	return &m.data[m.offset(p, i)]
}

// Set sets the value at the party p and column i.
func (m *Matrix[T]) Set(p Party, i int, v T) {
	m.data[m.offset(p, i)] = v
}

// Row returns the columns of party p.
func (m *Matrix[T]) Row(p Party) []T {
	if p < 1 || int(p) > m.parties {
		panic(fmt.Sprintf("party %v out of range 1..%d", p, m.parties))
	}
	start := (int(p) - 1) * m.cols
	return m.data[start : start+m.cols : start+m.cols]
}
