//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package circuit

import (
	"math"

	"github.com/cockroachdb/errors"
)

// Constant wires. They never appear in compiled circuits.
const (
	constZero Wire = math.MaxUint32
	constOne  Wire = math.MaxUint32 - 1
)

// Builder constructs circuits gate by gate. Gates with constant
// inputs are folded at construction time.
type Builder struct {
	inputs    []int
	numInputs int
	next      Wire
	gates     []Gate
}

// NewBuilder creates a builder for a circuit with the input ranges.
func NewBuilder(inputs ...int) *Builder {
	b := &Builder{
		inputs: inputs,
	}
	for _, n := range inputs {
		b.numInputs += n
	}
	b.next = Wire(b.numInputs)
	return b
}

// Input returns the input wire i of the input range k.
func (b *Builder) Input(k, i int) Wire {
	var w int
	for j := 0; j < k; j++ {
		w += b.inputs[j]
	}
	if i < 0 || i >= b.inputs[k] {
		panic(errors.Newf("input %d out of range %d", i, b.inputs[k]))
	}
	return Wire(w + i)
}

// Inputs returns the wires of the input range k.
func (b *Builder) Inputs(k int) []Wire {
	result := make([]Wire, b.inputs[k])
	for i := range result {
		result[i] = b.Input(k, i)
	}
	return result
}

// Zero returns the constant false wire.
func (b *Builder) Zero() Wire {
	return constZero
}

// One returns the constant true wire.
func (b *Builder) One() Wire {
	return constOne
}

// Const returns the constant wire for v.
func (b *Builder) Const(v bool) Wire {
	if v {
		return constOne
	}
	return constZero
}

func isConst(w Wire) bool {
	return w == constZero || w == constOne
}

func (b *Builder) gate(op Operation, i0, i1 Wire) Wire {
	o := b.next
	b.next++
	b.gates = append(b.gates, Gate{
		Input0: i0,
		Input1: i1,
		Output: o,
		Op:     op,
	})
	return o
}

// XOR returns x⊕y.
func (b *Builder) XOR(x, y Wire) Wire {
	switch {
	case x == constZero:
		return y
	case y == constZero:
		return x
	case x == constOne:
		return b.INV(y)
	case y == constOne:
		return b.INV(x)
	case x == y:
		return constZero
	}
	return b.gate(XOR, x, y)
}

// AND returns x∧y.
func (b *Builder) AND(x, y Wire) Wire {
	switch {
	case x == constZero || y == constZero:
		return constZero
	case x == constOne:
		return y
	case y == constOne:
		return x
	case x == y:
		return x
	}
	return b.gate(AND, x, y)
}

// INV returns ¬x.
func (b *Builder) INV(x Wire) Wire {
	switch x {
	case constZero:
		return constOne
	case constOne:
		return constZero
	}
	return b.gate(INV, x, 0)
}

// OR returns x∨y.
func (b *Builder) OR(x, y Wire) Wire {
	return b.XOR(b.XOR(x, y), b.AND(x, y))
}

// MUX returns t if s is set and f otherwise.
func (b *Builder) MUX(s, t, f Wire) Wire {
	return b.XOR(f, b.AND(s, b.XOR(t, f)))
}

// Compile creates the circuit with the outputs. The gates are
// renumbered so that the outputs occupy the last wires. Outputs that
// are constants, inputs, or repeated are copied to fresh wires.
func (b *Builder) Compile(outputs []Wire) (*Circuit, error) {
	var zero Wire
	var haveZero bool

	used := make(map[Wire]bool)
	final := make([]Wire, len(outputs))

	for i, o := range outputs {
		if isConst(o) {
			if b.numInputs == 0 {
				return nil, errors.New("constant output without inputs")
			}
			if !haveZero {
				zero = b.gate(XOR, 0, 0)
				haveZero = true
			}
			if o == constZero {
				o = b.gate(INV, b.gate(INV, zero, 0), 0)
			} else {
				o = b.gate(INV, zero, 0)
			}
		} else if int(o) < b.numInputs || used[o] {
			o = b.gate(INV, b.gate(INV, o, 0), 0)
		}
		used[o] = true
		final[i] = o
	}

	numWires := b.numInputs + len(b.gates)
	mapping := make([]Wire, len(b.gates))
	internal := func(w Wire) int {
		return int(w) - b.numInputs
	}
	for i, o := range final {
		mapping[internal(o)] = Wire(numWires - len(final) + i)
	}
	next := Wire(b.numInputs)
	for _, g := range b.gates {
		if used[g.Output] {
			continue
		}
		mapping[internal(g.Output)] = next
		next++
	}
	remap := func(w Wire) Wire {
		if int(w) < b.numInputs {
			return w
		}
		return mapping[internal(w)]
	}

	c := &Circuit{
		NumGates:   len(b.gates),
		NumWires:   numWires,
		Inputs:     append([]int(nil), b.inputs...),
		NumOutputs: len(final),
		Gates:      make([]Gate, len(b.gates)),
	}
	for i, g := range b.gates {
		if isConst(g.Input0) || isConst(g.Input1) {
			return nil, errors.Newf("gate %d has constant input", i)
		}
		c.Gates[i] = Gate{
			Input0: remap(g.Input0),
			Output: remap(g.Output),
			Op:     g.Op,
		}
		if g.Op != INV {
			c.Gates[i].Input1 = remap(g.Input1)
		}
		c.Stats[g.Op]++
	}
	return c, nil
}
