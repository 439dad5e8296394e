//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package cmpc implements the N-party authenticated garbling of
// Boolean circuits. The evaluation runs in three phases: a function
// independent preprocessing, a function dependent garbling, and the
// online evaluation by party 1.
package cmpc

import (
	"io"

	"github.com/markkurossi/agmpc/abit"
	"github.com/markkurossi/agmpc/abort"
	"github.com/markkurossi/agmpc/circuit"
	"github.com/markkurossi/agmpc/env"
	"github.com/markkurossi/agmpc/fpre"
	"github.com/markkurossi/agmpc/ot"
	"github.com/markkurossi/agmpc/p2p"
	"github.com/markkurossi/agmpc/tensor"
	"go.uber.org/zap"
)

type phase int

const (
	phaseInit phase = iota
	phaseIndependent
	phaseDependent
	phaseOnline
)

var phaseNames = map[phase]string{
	phaseInit:        "init",
	phaseIndependent: "function independent",
	phaseDependent:   "function dependent",
	phaseOnline:      "online",
}

func (p phase) String() string {
	name, ok := phaseNames[p]
	if ok {
		return name
	}
	return "{phase}"
}

// Evaluator evaluates one circuit among all parties of the network.
type Evaluator struct {
	fpre  *fpre.Engine
	abit  *abit.Engine
	nw    *p2p.Network
	party tensor.Party
	circ  *circuit.Circuit
	delta ot.Label
	ssp   int
	rand  io.Reader
	prp   *ot.PRP
	log   *zap.SugaredLogger
	phase phase

	progress func(template string, args ...interface{})

	numIn  int
	ands   []int
	wires  *abit.Bits
	labels []ot.Label

	triples *abit.Bits
	pre     *abit.Bits

	// The evaluator's garbled tables and its own row shares.
	gt  []*table
	gtk *table
	gtm *table
	gtv [][4]bool

	evalLabels *tensor.Matrix[ot.Label]

	tamper *tamperHooks
}

// table holds 4 rows of parties+1 labels per AND gate.
type table struct {
	parties int
	data    []ot.Label
}

func newTable(ands, parties int) *table {
	return &table{
		parties: parties,
		data:    make([]ot.Label, ands*4*(parties+1)),
	}
}

func (t *table) row(and, r int) []ot.Label {
	n := t.parties + 1
	ofs := (and*4 + r) * n
	return t.data[ofs : ofs+n : ofs+n]
}

// New creates an evaluator for the circuit. The circuit's input
// ranges must not exceed the number of parties.
func New(f *fpre.Engine, circ *circuit.Circuit, cfg *env.Config) (
	*Evaluator, error) {

	a := f.ABit()
	nw := a.Network()
	if len(circ.Inputs) > nw.Size() {
		return nil, abort.Misusef("circuit has %d input ranges, %d parties",
			len(circ.Inputs), nw.Size())
	}

	e := &Evaluator{
		fpre:   f,
		abit:   a,
		nw:     nw,
		party:  nw.Party(),
		circ:   circ,
		delta:  a.Delta(),
		ssp:    a.SSP(),
		rand:   cfg.GetRandom(),
		prp:    ot.NewFixedKeyPRP(),
		log:    cfg.PartyLogger(int(nw.Party())),
		numIn:  circ.NumInputs(),
		wires:  abit.NewBits(nw.Size(), circ.NumWires),
		labels: make([]ot.Label, circ.NumWires),
	}
	e.progress = cfg.Progress(e.log)
	for idx, g := range circ.Gates {
		if g.Op == circuit.AND {
			e.ands = append(e.ands, idx)
		}
	}
	if e.party == tensor.Evaluator {
		e.gt = make([]*table, nw.Size()+1)
		for _, peer := range nw.Peers() {
			e.gt[peer] = newTable(len(e.ands), nw.Size())
		}
		e.gtk = newTable(len(e.ands), nw.Size())
		e.gtm = newTable(len(e.ands), nw.Size())
		e.gtv = make([][4]bool, len(e.ands))
		e.evalLabels = tensor.NewMatrix[ot.Label](nw.Size(), circ.NumWires)
	}
	return e, nil
}

func (e *Evaluator) enter(from, to phase) error {
	if e.phase != from {
		return abort.Misusef("%s phase called in %s phase", to, e.phase)
	}
	e.phase = to
	return nil
}

// FunctionIndependent runs the preprocessing that depends only on
// the circuit size: the AND triples and the wire masks.
func (e *Evaluator) FunctionIndependent() error {
	if err := e.enter(phaseInit, phaseIndependent); err != nil {
		return err
	}
	if e.party != tensor.Evaluator {
		seed, err := ot.NewLabel(e.rand)
		if err != nil {
			return err
		}
		ot.NewPRG(seed).Labels(e.labels)
	}

	var err error
	e.triples, err = e.fpre.Compute(len(e.ands))
	if err != nil {
		return err
	}

	e.pre, err = e.abit.NewBits(e.numIn + len(e.ands) + 3*e.ssp)
	if err != nil {
		return err
	}
	if err := e.abit.Compute(e.pre); err != nil {
		return err
	}
	if err := e.abit.Check(e.pre); err != nil {
		return err
	}
	for i := 0; i < e.numIn; i++ {
		e.wires.Copy(i, e.pre, i)
	}
	e.progress("function independent: %d inputs, %d ANDs",
		e.numIn, len(e.ands))
	return nil
}

// FunctionDependent garbles the circuit. The garblers send their
// garbled rows to party 1.
func (e *Evaluator) FunctionDependent() error {
	if err := e.enter(phaseIndependent, phaseDependent); err != nil {
		return err
	}
	gates := e.circ.Gates

	// AND outputs take fresh masks, XOR and INV outputs derive them.
	for k, idx := range e.ands {
		e.wires.Copy(int(gates[idx].Output), e.pre, e.numIn+k)
	}
	for _, g := range gates {
		switch g.Op {
		case circuit.XOR:
			o := int(g.Output)
			e.wires.Copy(o, e.wires, int(g.Input0))
			e.wires.Xor(o, e.wires, int(g.Input1))
			if e.party != tensor.Evaluator {
				e.labels[o] = e.labels[g.Input0]
				e.labels[o].Xor(e.labels[g.Input1])
			}
		case circuit.INV:
			o := int(g.Output)
			e.wires.Copy(o, e.wires, int(g.Input0))
			if e.party != tensor.Evaluator {
				e.labels[o] = e.labels[g.Input0]
				e.labels[o].Xor(e.delta)
			}
		}
	}

	sigma, err := e.andSigma()
	if err != nil {
		return err
	}

	if e.party != tensor.Evaluator {
		err = e.garble(sigma)
	} else {
		err = e.receiveTables(sigma)
	}
	if err != nil {
		return err
	}
	e.progress("function dependent: %d gates", len(gates))
	return nil
}

// andSigma computes the authenticated shares of λ_a·λ_b for every AND
// gate from its triple and the opened differences.
func (e *Evaluator) andSigma() (*abit.Bits, error) {
	n := len(e.ands)
	gates := e.circ.Gates
	x := tensor.NewMatrix[bool](e.nw.Size(), n)
	y := tensor.NewMatrix[bool](e.nw.Size(), n)

	xs := x.Row(e.party)
	ys := y.Row(e.party)
	for k, idx := range e.ands {
		g := gates[idx]
		xs[k] = e.wires.Value[g.Input0] != e.triples.Value[3*k]
		ys[k] = e.wires.Value[g.Input1] != e.triples.Value[3*k+1]
	}
	err := e.nw.ForEachPeer(func(peer tensor.Party) error {
		return e.nw.Exchange(peer,
			func(c *p2p.Conn) error {
				if err := c.SendBools(xs); err != nil {
					return err
				}
				return c.SendBools(ys)
			},
			func(c *p2p.Conn) error {
				if err := c.ReceiveBools(x.Row(peer)); err != nil {
					return err
				}
				return c.ReceiveBools(y.Row(peer))
			})
	})
	if err != nil {
		return nil, err
	}

	dx := make([]bool, n)
	dy := make([]bool, n)
	for p := 1; p <= e.nw.Size(); p++ {
		for k := 0; k < n; k++ {
			dx[k] = dx[k] != x.At(tensor.Party(p), k)
			dy[k] = dy[k] != y.At(tensor.Party(p), k)
		}
	}

	sigma := abit.NewBits(e.nw.Size(), n)
	for k := 0; k < n; k++ {
		sigma.Copy(k, e.triples, 3*k+2)
		if dx[k] {
			sigma.Xor(k, e.triples, 3*k+1)
		}
		if dy[k] {
			sigma.Xor(k, e.triples, 3*k)
		}
		if dx[k] && dy[k] {
			if e.party != tensor.Evaluator {
				sigma.Key.Ptr(tensor.Evaluator, k).Xor(e.delta)
			} else {
				sigma.Value[k] = !sigma.Value[k]
			}
		}
	}
	return sigma, nil
}

// rowShares computes the row bits, MACs, and keys of the AND gate k.
func (e *Evaluator) rowShares(sigma *abit.Bits, k int) (
	r [4]bool, m, key [4][]ot.Label) {

	g := e.circ.Gates[e.ands[k]]
	w := e.wires
	a, b, o := int(g.Input0), int(g.Input1), int(g.Output)

	r[0] = sigma.Value[k] != w.Value[o]
	r[1] = r[0] != w.Value[a]
	r[2] = r[0] != w.Value[b]
	r[3] = r[1] != w.Value[b]

	size := e.nw.Size()
	for j := 0; j < 4; j++ {
		m[j] = make([]ot.Label, size+1)
		key[j] = make([]ot.Label, size+1)
	}
	for p := 1; p <= size; p++ {
		pp := tensor.Party(p)

		m[0][p] = sigma.MAC.At(pp, k)
		m[0][p].Xor(w.MAC.At(pp, o))
		m[1][p] = m[0][p]
		m[1][p].Xor(w.MAC.At(pp, a))
		m[2][p] = m[0][p]
		m[2][p].Xor(w.MAC.At(pp, b))
		m[3][p] = m[1][p]
		m[3][p].Xor(w.MAC.At(pp, b))

		key[0][p] = sigma.Key.At(pp, k)
		key[0][p].Xor(w.Key.At(pp, o))
		key[1][p] = key[0][p]
		key[1][p].Xor(w.Key.At(pp, a))
		key[2][p] = key[0][p]
		key[2][p].Xor(w.Key.At(pp, b))
		key[3][p] = key[1][p]
		key[3][p].Xor(w.Key.At(pp, b))
	}
	return
}

// rowHashes computes the 4 rows of hashes of the AND gate idx with
// the zero labels a and b.
func (e *Evaluator) rowHashes(a, b ot.Label, idx int) [4][]ot.Label {
	var t [4]ot.Label
	t[0] = a.Sigma()
	a.Xor(e.delta)
	t[1] = a.Sigma()
	t[2] = b.Sigma().Sigma()
	b.Xor(e.delta)
	t[3] = b.Sigma().Sigma()

	var h [4][]ot.Label
	for j := 0; j < 4; j++ {
		base := t[j>>1]
		base.Xor(t[2+j&1])
		h[j] = e.hashRow(base, idx, j)
	}
	return h
}

// hashRow expands the row base to one block per party.
func (e *Evaluator) hashRow(base ot.Label, idx, row int) []ot.Label {
	size := e.nw.Size()
	h := make([]ot.Label, size+1)
	h[0] = base
	for i := 1; i <= size; i++ {
		x := base
		x.Xor(ot.MakeLabel(uint64(4*idx+row), uint64(i)))
		h[i] = e.prp.Permute(x)
	}
	return h
}

func (e *Evaluator) garble(sigma *abit.Bits) error {
	size := e.nw.Size()
	c := e.nw.Send(tensor.Evaluator)

	for k, idx := range e.ands {
		g := e.circ.Gates[idx]
		r, m, key := e.rowShares(sigma, k)
		key[3][tensor.Evaluator].Xor(e.delta)

		h := e.rowHashes(e.labels[g.Input0], e.labels[g.Input1], k)
		for j := 0; j < 4; j++ {
			for p := 1; p <= size; p++ {
				if tensor.Party(p) == e.party {
					continue
				}
				h[j][p].Xor(m[j][p])
				h[j][e.party].Xor(key[j][p])
			}
			h[j][e.party].Xor(e.labels[g.Output])
			h[j][e.party].XorIf(e.delta, r[j])
		}
		for j := 0; j < 4; j++ {
			if err := c.SendLabels(h[j][1:]); err != nil {
				return err
			}
		}
	}
	return e.nw.Flush(tensor.Evaluator)
}

func (e *Evaluator) receiveTables(sigma *abit.Bits) error {
	err := e.nw.ForEachPeer(func(peer tensor.Party) error {
		c := e.nw.Recv(peer)
		t := e.gt[peer]
		for k := range e.ands {
			for j := 0; j < 4; j++ {
				if err := c.ReceiveLabels(t.row(k, j)[1:]); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for k := range e.ands {
		r, m, key := e.rowShares(sigma, k)
		r[3] = !r[3]
		for j := 0; j < 4; j++ {
			copy(e.gtk.row(k, j), key[j])
			copy(e.gtm.row(k, j), m[j])
		}
		e.gtv[k] = r
	}
	return nil
}

// Online evaluates the circuit on the inputs in and resolves the
// outputs into out.
func (e *Evaluator) Online(in *FlexIn, out *FlexOut) error {
	if err := e.enter(phaseDependent, phaseOnline); err != nil {
		return err
	}
	if in.Len() != e.numIn {
		return abort.Misusef("invalid input length: got %d, expected %d",
			in.Len(), e.numIn)
	}
	if out.Len() != e.circ.NumOutputs {
		return abort.Misusef("invalid output length: got %d, expected %d",
			out.Len(), e.circ.NumOutputs)
	}

	ctx := &ioContext{
		nw:     e.nw,
		party:  e.party,
		delta:  e.delta,
		wires:  e.wires,
		rand:   e.rand,
		tamper: e.tamper,
	}
	inputs, err := in.input(ctx)
	if err != nil {
		return err
	}
	masked := make([]bool, e.circ.NumWires)
	copy(masked, inputs)

	if e.party != tensor.Evaluator {
		c := e.nw.Send(tensor.Evaluator)
		var ld ot.LabelData
		for i := 0; i < e.numIn; i++ {
			l := e.labels[i]
			l.XorIf(e.delta, masked[i])
			if err := c.SendLabel(l, &ld); err != nil {
				return err
			}
		}
		if err := e.nw.Flush(tensor.Evaluator); err != nil {
			return err
		}
	} else {
		err := e.nw.ForEachPeer(func(peer tensor.Party) error {
			row := e.evalLabels.Row(peer)
			return e.nw.Recv(peer).ReceiveLabels(row[:e.numIn])
		})
		if err != nil {
			return err
		}
		if err := e.evaluate(masked); err != nil {
			return err
		}
	}

	err = out.output(ctx, masked, e.circ.NumWires-e.circ.NumOutputs,
		e.evalLabels, e.labels)
	if err != nil {
		return err
	}
	e.progress("online: %d outputs", out.Len())
	return nil
}

// evaluate walks the gates at party 1 and computes the masked values
// and labels of all wires.
func (e *Evaluator) evaluate(masked []bool) error {
	peers := e.nw.Peers()
	ev := e.evalLabels

	var k int
	for _, g := range e.circ.Gates {
		a, b, o := int(g.Input0), int(g.Input1), int(g.Output)

		switch g.Op {
		case circuit.XOR:
			for _, j := range peers {
				l := ev.At(j, a)
				l.Xor(ev.At(j, b))
				ev.Set(j, o, l)
			}
			masked[o] = masked[a] != masked[b]

		case circuit.AND:
			index := 0
			if masked[a] {
				index += 2
			}
			if masked[b] {
				index++
			}
			gtm := e.gtm.row(k, index)
			gtk := e.gtk.row(k, index)
			for _, j := range peers {
				ev.Set(j, o, gtm[j])
			}
			masked[o] = e.gtv[k][index]

			for _, j := range peers {
				base := ev.At(j, a).Sigma()
				base.Xor(ev.At(j, b).Sigma().Sigma())
				h := e.hashRow(base, k, index)
				ot.XorLabels(h, e.gt[j].row(k, index))
				for _, kk := range peers {
					ev.Ptr(kk, o).Xor(h[kk])
				}
				one := gtk[j]
				one.Xor(e.delta)
				switch {
				case h[tensor.Evaluator].Equal(gtk[j]):
				case h[tensor.Evaluator].Equal(one):
					masked[o] = !masked[o]
				default:
					return abort.Cheatingf("cmpc: AND gate %d row %d from peer %d does not decode",
						k, index, j)
				}
			}
			k++

		case circuit.INV:
			for _, j := range peers {
				ev.Set(j, o, ev.At(j, a))
			}
			masked[o] = !masked[a]
		}
	}
	return nil
}
