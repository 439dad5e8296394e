//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package agmpc evaluates Boolean circuits among N parties with
// authenticated garbling. A Session holds the authenticated bit and
// AND triple engines of one party; several circuits can be evaluated
// in one session and linked with carried authenticated shares.
package agmpc

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/agmpc/abit"
	"github.com/markkurossi/agmpc/abort"
	"github.com/markkurossi/agmpc/circuit"
	"github.com/markkurossi/agmpc/cmpc"
	"github.com/markkurossi/agmpc/env"
	"github.com/markkurossi/agmpc/fpre"
	"github.com/markkurossi/agmpc/p2p"
	"go.uber.org/zap"
)

// Session is one party's view of an MPC session.
type Session struct {
	nw     *p2p.Network
	cfg    *env.Config
	abit   *abit.Engine
	fpre   *fpre.Engine
	timing *circuit.Timing
	log    *zap.SugaredLogger
}

// NewSession creates a session over the network. It runs the base
// OTs with all peers and fixes the party's global Δ.
func NewSession(nw *p2p.Network, cfg *env.Config) (*Session, error) {
	timing := circuit.NewTiming()

	a, err := abit.New(nw, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "setup")
	}
	timing.Sample("Setup", []string{
		fmt.Sprintf("%d peers", len(nw.Peers())),
	})
	return &Session{
		nw:     nw,
		cfg:    cfg,
		abit:   a,
		fpre:   fpre.New(a, cfg),
		timing: timing,
		log:    cfg.PartyLogger(int(nw.Party())),
	}, nil
}

// Network returns the session's network.
func (s *Session) Network() *p2p.Network {
	return s.nw
}

// Evaluate runs all three phases of the circuit with the inputs in
// and resolves its outputs into out.
func (s *Session) Evaluate(circ *circuit.Circuit, in *cmpc.FlexIn,
	out *cmpc.FlexOut) error {

	e, err := cmpc.New(s.fpre, circ, s.cfg)
	if err != nil {
		return err
	}
	if err := e.FunctionIndependent(); err != nil {
		return errors.Wrap(err, "function independent")
	}
	s.timing.Sample("Preprocess", []string{
		fmt.Sprintf("%d ANDs", circ.NumANDs()),
	})
	if err := e.FunctionDependent(); err != nil {
		return errors.Wrap(err, "function dependent")
	}
	s.timing.Sample("Garble", []string{
		fmt.Sprintf("%d gates", circ.NumGates),
	})
	if err := e.Online(in, out); err != nil {
		return errors.Wrap(err, "online")
	}
	s.timing.Sample("Online", []string{
		fmt.Sprintf("%d outputs", circ.NumOutputs),
	})
	s.cfg.Progress(s.log)("evaluated %v", circ)
	return nil
}

// Stats returns the session's I/O statistics.
func (s *Session) Stats() p2p.IOStats {
	return s.nw.Stats()
}

// Timing returns the session's timing samples.
func (s *Session) Timing() *circuit.Timing {
	return s.timing
}

// Close closes the session's network.
func (s *Session) Close() error {
	return s.nw.Close()
}

// Run evaluates the circuit in a new session. The input range k
// belongs to the party k+1 and inputs holds the calling party's bits
// of its range. All outputs are public. On error, Run aborts the
// network and returns no outputs.
func Run(nw *p2p.Network, circ *circuit.Circuit, inputs []bool,
	cfg *env.Config) ([]bool, error) {

	if err := checkInputs(nw, circ, inputs); err != nil {
		nw.Abort()
		return nil, err
	}
	s, err := NewSession(nw, cfg)
	if err != nil {
		nw.Abort()
		return nil, err
	}
	return s.Run(circ, inputs)
}

// Run evaluates the circuit with the input ranges assigned to the
// parties in order and with all outputs public. On error, Run aborts
// the session's network.
func (s *Session) Run(circ *circuit.Circuit, inputs []bool) ([]bool, error) {
	result, err := s.run(circ, inputs)
	if err != nil {
		s.nw.Abort()
		return nil, err
	}
	return result, nil
}

// checkInputs verifies that the circuit's input ranges fit the
// network and that inputs covers the calling party's range.
func checkInputs(nw *p2p.Network, circ *circuit.Circuit, inputs []bool) error {
	if len(circ.Inputs) > nw.Size() {
		return abort.Misusef("circuit has %d input ranges, %d parties",
			len(circ.Inputs), nw.Size())
	}
	party := int(nw.Party())
	var expected int
	if party <= len(circ.Inputs) {
		expected = circ.Inputs[party-1]
	}
	if len(inputs) != expected {
		return abort.Misusef("invalid input length: got %d, expected %d",
			len(inputs), expected)
	}
	return nil
}

func (s *Session) run(circ *circuit.Circuit, inputs []bool) ([]bool, error) {
	nw := s.nw
	if err := checkInputs(nw, circ, inputs); err != nil {
		return nil, err
	}
	party := int(nw.Party())

	in := cmpc.NewFlexIn(nw.Size(), nw.Party(), circ.NumInputs())
	for k := range circ.Inputs {
		start, n := circ.InputRange(k)
		for i := 0; i < n; i++ {
			if err := in.AssignParty(start+i, k+1); err != nil {
				return nil, err
			}
			if k+1 == party {
				if err := in.AssignPlaintext(start+i, inputs[i]); err != nil {
					return nil, err
				}
			}
		}
	}
	out := cmpc.NewFlexOut(nw.Size(), nw.Party(), circ.NumOutputs)
	if err := s.Evaluate(circ, in, out); err != nil {
		return nil, err
	}

	result := make([]bool, circ.NumOutputs)
	for i := range result {
		v, err := out.Plaintext(i)
		if err != nil {
			return nil, err
		}
		result[i] = v
	}
	return result, nil
}
