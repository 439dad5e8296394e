//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

package circuit

import (
	"bufio"
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
)

// Marshal marshals the circuit in the Bristol format.
func (c *Circuit) Marshal(out io.Writer) error {
	w := bufio.NewWriter(out)

	fmt.Fprintf(w, "%d %d\n", c.NumGates, c.NumWires)
	for _, n := range c.Inputs {
		fmt.Fprintf(w, "%d ", n)
	}
	fmt.Fprintf(w, "%d\n\n", c.NumOutputs)

	for _, g := range c.Gates {
		switch g.Op {
		case XOR, AND:
			fmt.Fprintf(w, "2 1 %d %d %d %s\n",
				g.Input0, g.Input1, g.Output, g.Op)
		case INV:
			fmt.Fprintf(w, "1 1 %d %d %s\n", g.Input0, g.Output, g.Op)
		default:
			return errors.Newf("unsupported gate type %s", g.Op)
		}
	}
	return w.Flush()
}
