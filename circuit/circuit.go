//
// Copyright (c) 2019-2026 Markku Rossi
//
// All rights reserved.
//

// Package circuit implements Boolean circuits in the Bristol format.
package circuit

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/agmpc/abort"
)

// Operation specifies gate function.
type Operation byte

// Gate functions.
const (
	XOR Operation = iota
	AND
	INV
)

// Stats holds statistics about circuit operations.
type Stats [INV + 1]int

func (op Operation) String() string {
	switch op {
	case XOR:
		return "XOR"
	case AND:
		return "AND"
	case INV:
		return "INV"
	default:
		return fmt.Sprintf("{Operation %d}", op)
	}
}

// Arity returns the number of gate inputs.
func (op Operation) Arity() int {
	if op == INV {
		return 1
	}
	return 2
}

// Circuit specifies a boolean circuit. The input wires are
// 0..sum(Inputs)-1 and the input range k belongs to the party
// k+1. The outputs are the last NumOutputs wires.
type Circuit struct {
	NumGates   int
	NumWires   int
	Inputs     []int
	NumOutputs int
	Gates      []Gate
	Stats      Stats
}

func (c *Circuit) String() string {
	var stats string

	for k := XOR; k <= INV; k++ {
		v := c.Stats[k]
		if len(stats) > 0 {
			stats += " "
		}
		stats += fmt.Sprintf("%s=%d", k, v)
	}
	return fmt.Sprintf("#gates=%d (%s) #w=%d", c.NumGates, stats, c.NumWires)
}

// NumInputs returns the total number of input wires.
func (c *Circuit) NumInputs() int {
	var sum int
	for _, n := range c.Inputs {
		sum += n
	}
	return sum
}

// NumANDs returns the number of AND gates.
func (c *Circuit) NumANDs() int {
	return c.Stats[AND]
}

// InputRange returns the first input wire and the number of input
// wires of the range k.
func (c *Circuit) InputRange(k int) (int, int) {
	var start int
	for i := 0; i < k; i++ {
		start += c.Inputs[i]
	}
	return start, c.Inputs[k]
}

// OutputWire returns the wire of the output i.
func (c *Circuit) OutputWire(i int) Wire {
	return Wire(c.NumWires - c.NumOutputs + i)
}

// Compute evaluates the circuit in plaintext.
func (c *Circuit) Compute(inputs []bool) ([]bool, error) {
	if len(inputs) != c.NumInputs() {
		return nil, abort.Misusef("invalid inputs: got %d, expected %d",
			len(inputs), c.NumInputs())
	}
	wires := make([]bool, c.NumWires)
	copy(wires, inputs)

	for _, g := range c.Gates {
		switch g.Op {
		case XOR:
			wires[g.Output] = wires[g.Input0] != wires[g.Input1]
		case AND:
			wires[g.Output] = wires[g.Input0] && wires[g.Input1]
		case INV:
			wires[g.Output] = !wires[g.Input0]
		default:
			return nil, errors.Newf("invalid gate %s", g.Op)
		}
	}

	result := make([]bool, c.NumOutputs)
	copy(result, wires[c.NumWires-c.NumOutputs:])
	return result, nil
}

// Gate specifies a boolean gate.
type Gate struct {
	Input0 Wire
	Input1 Wire
	Output Wire
	Op     Operation
}

func (g Gate) String() string {
	return fmt.Sprintf("%v %v %v", g.Inputs(), g.Op, g.Output)
}

// Inputs returns gate input wires.
func (g Gate) Inputs() []Wire {
	switch g.Op {
	case XOR, AND:
		return []Wire{g.Input0, g.Input1}
	case INV:
		return []Wire{g.Input0}
	default:
		panic(fmt.Sprintf("unsupported gate type %s", g.Op))
	}
}

// Wire specifies a wire ID.
type Wire uint32

// ID returns the wire ID as integer.
func (w Wire) ID() int {
	return int(w)
}

func (w Wire) String() string {
	return fmt.Sprintf("w%d", w)
}
