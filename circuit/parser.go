//
// parser.go
//
// Copyright (c) 2019-2026 Markku Rossi
//
// All rights reserved.
//

package circuit

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"

	"github.com/cockroachdb/errors"
)

var reParts = regexp.MustCompilePOSIX("[[:space:]]+")

// ParseFile parses the Bristol circuit file.
func ParseFile(name string) (*Circuit, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", name)
	}
	return c, nil
}

// Parse parses a circuit in the Bristol format. The first line holds
// the gate and wire counts. The second line holds the input range
// sizes followed by the number of outputs.
func Parse(in io.Reader) (*Circuit, error) {
	p := &parser{
		r: bufio.NewReader(in),
	}

	// NumGates NumWires
	line, err := p.readLine()
	if err != nil {
		return nil, p.errorf(err, "missing header")
	}
	if len(line) != 2 {
		return nil, p.errorf(nil, "invalid header: %v", line)
	}
	numGates, err := p.atoi(line[0])
	if err != nil {
		return nil, err
	}
	numWires, err := p.atoi(line[1])
	if err != nil {
		return nil, err
	}

	// N1 ... Nk NOut
	line, err = p.readLine()
	if err != nil {
		return nil, p.errorf(err, "missing I/O line")
	}
	if len(line) < 2 {
		return nil, p.errorf(nil, "invalid I/O line: %v", line)
	}
	var inputs []int
	for _, part := range line[:len(line)-1] {
		n, err := p.atoi(part)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, n)
	}
	numOutputs, err := p.atoi(line[len(line)-1])
	if err != nil {
		return nil, err
	}

	c := &Circuit{
		NumGates:   numGates,
		NumWires:   numWires,
		Inputs:     inputs,
		NumOutputs: numOutputs,
		Gates:      make([]Gate, 0, numGates),
	}
	numInputs := c.NumInputs()
	if numInputs+numOutputs > numWires {
		return nil, p.errorf(nil,
			"%d inputs and %d outputs do not fit in %d wires",
			numInputs, numOutputs, numWires)
	}

	defined := make([]bool, numWires)
	for i := 0; i < numInputs; i++ {
		defined[i] = true
	}

	for {
		line, err = p.readLine()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		if len(c.Gates) >= numGates {
			return nil, p.errorf(nil, "too many gates: expected %d", numGates)
		}
		g, err := p.parseGate(line, numWires)
		if err != nil {
			return nil, err
		}
		for _, w := range g.Inputs() {
			if !defined[w] {
				return nil, p.errorf(nil, "wire %d used before definition", w)
			}
		}
		if int(g.Output) < numInputs {
			return nil, p.errorf(nil, "gate writes input wire %d", g.Output)
		}
		if defined[g.Output] {
			return nil, p.errorf(nil, "wire %d written twice", g.Output)
		}
		defined[g.Output] = true

		c.Gates = append(c.Gates, g)
		c.Stats[g.Op]++
	}
	if len(c.Gates) != numGates {
		return nil, p.errorf(nil, "got %d gates, expected %d",
			len(c.Gates), numGates)
	}
	for w := numWires - numOutputs; w < numWires; w++ {
		if !defined[w] {
			return nil, p.errorf(nil, "output wire %d not defined", w)
		}
	}

	return c, nil
}

type parser struct {
	r    *bufio.Reader
	line int
}

func (p *parser) errorf(err error, format string, args ...interface{}) error {
	if err != nil && err != io.EOF {
		return errors.Wrapf(err, "line %d", p.line)
	}
	return errors.Newf("line %d: %s", p.line, fmt.Sprintf(format, args...))
}

func (p *parser) atoi(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, p.errorf(nil, "invalid number '%s'", s)
	}
	if v < 0 {
		return 0, p.errorf(nil, "negative number %d", v)
	}
	return v, nil
}

func (p *parser) parseGate(line []string, numWires int) (Gate, error) {
	var g Gate

	if len(line) < 3 {
		return g, p.errorf(nil, "invalid gate: %v", line)
	}
	n1, err := p.atoi(line[0])
	if err != nil {
		return g, err
	}
	n2, err := p.atoi(line[1])
	if err != nil {
		return g, err
	}
	if 2+n1+n2+1 != len(line) {
		return g, p.errorf(nil, "invalid gate: %v", line)
	}

	switch line[len(line)-1] {
	case "XOR":
		g.Op = XOR
	case "AND":
		g.Op = AND
	case "INV", "NOT":
		g.Op = INV
	default:
		return g, p.errorf(nil, "invalid operation '%s'", line[len(line)-1])
	}
	if n1 != g.Op.Arity() || n2 != 1 {
		return g, p.errorf(nil, "invalid arity %d→%d for %s", n1, n2, g.Op)
	}

	var wires [3]Wire
	for i := 0; i < n1+n2; i++ {
		v, err := p.atoi(line[2+i])
		if err != nil {
			return g, err
		}
		if v >= numWires {
			return g, p.errorf(nil, "wire %d out of range", v)
		}
		wires[i] = Wire(v)
	}
	g.Input0 = wires[0]
	if n1 == 2 {
		g.Input1 = wires[1]
	}
	g.Output = wires[n1]

	return g, nil
}

func (p *parser) readLine() ([]string, error) {
	for {
		line, err := p.r.ReadString('\n')
		if err != nil && (err != io.EOF || len(line) == 0) {
			return nil, err
		}
		p.line++
		parts := reParts.Split(line, -1)
		var result []string
		for _, part := range parts {
			if len(part) > 0 {
				result = append(result, part)
			}
		}
		if len(result) > 0 {
			return result, nil
		}
		if err == io.EOF {
			return nil, err
		}
	}
}
