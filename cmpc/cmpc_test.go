//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package cmpc

import (
	"fmt"
	"testing"

	"github.com/markkurossi/agmpc/abit"
	"github.com/markkurossi/agmpc/abort"
	"github.com/markkurossi/agmpc/circuit"
	"github.com/markkurossi/agmpc/env"
	"github.com/markkurossi/agmpc/fpre"
	"github.com/markkurossi/agmpc/ot"
	"github.com/markkurossi/agmpc/p2p"
	"github.com/markkurossi/agmpc/tensor"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func testConfig(party tensor.Party) *env.Config {
	return &env.Config{
		Rand: env.NewSeededRand([]byte(fmt.Sprintf("cmpc-%d", party))),
	}
}

func newTriples(nw *p2p.Network) (*fpre.Engine, error) {
	cfg := testConfig(nw.Party())
	a, err := abit.New(nw, cfg)
	if err != nil {
		return nil, err
	}
	return fpre.New(a, cfg), nil
}

func evaluate(f *fpre.Engine, circ *circuit.Circuit, in *FlexIn,
	out *FlexOut) error {

	e, err := New(f, circ, testConfig(f.ABit().Party()))
	if err != nil {
		return err
	}
	if err := e.FunctionIndependent(); err != nil {
		return err
	}
	if err := e.FunctionDependent(); err != nil {
		return err
	}
	return e.Online(in, out)
}

// adderInputs assigns the adder input ranges to the parties 1 and 2.
func adderInputs(nw *p2p.Network, bits int, x, y uint64) (*FlexIn, error) {
	in := NewFlexIn(nw.Size(), nw.Party(), 2*bits)
	values := append(circuit.IntToBits(x, bits), circuit.IntToBits(y, bits)...)
	for i := range values {
		who := 1 + i/bits
		if err := in.AssignParty(i, who); err != nil {
			return nil, err
		}
		if who == int(nw.Party()) {
			if err := in.AssignPlaintext(i, values[i]); err != nil {
				return nil, err
			}
		}
	}
	return in, nil
}

func publicOutput(out *FlexOut) (uint64, error) {
	bits := make([]bool, out.Len())
	for i := range bits {
		v, err := out.Plaintext(i)
		if err != nil {
			return 0, err
		}
		bits[i] = v
	}
	return circuit.BitsToInt(bits), nil
}

func TestAdder(t *testing.T) {
	circ, err := circuit.NewAdder(32)
	require.NoError(t, err)

	for _, n := range []int{2, 3} {
		t.Run(fmt.Sprintf("%dparties", n), func(t *testing.T) {
			err := p2p.RunLocal(n, func(nw *p2p.Network) error {
				f, err := newTriples(nw)
				if err != nil {
					return err
				}
				in, err := adderInputs(nw, 32, 3, 5)
				if err != nil {
					return err
				}
				out := NewFlexOut(nw.Size(), nw.Party(), circ.NumOutputs)
				if err := evaluate(f, circ, in, out); err != nil {
					return err
				}
				v, err := publicOutput(out)
				if err != nil {
					return err
				}
				if v != 8 {
					return fmt.Errorf("%v: 3+5=%d", nw.Party(), v)
				}
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestPhaseOrder(t *testing.T) {
	circ, err := circuit.NewAdder(4)
	require.NoError(t, err)

	err = p2p.RunLocal(2, func(nw *p2p.Network) error {
		f, err := newTriples(nw)
		if err != nil {
			return err
		}
		e, err := New(f, circ, nil)
		if err != nil {
			return err
		}
		in := NewFlexIn(nw.Size(), nw.Party(), circ.NumInputs())
		out := NewFlexOut(nw.Size(), nw.Party(), circ.NumOutputs)

		if err := e.FunctionDependent(); !abort.IsMisuse(err) {
			return fmt.Errorf("FunctionDependent before preprocessing: %v", err)
		}
		if err := e.Online(in, out); !abort.IsMisuse(err) {
			return fmt.Errorf("Online before garbling: %v", err)
		}
		if err := e.FunctionIndependent(); err != nil {
			return err
		}
		if err := e.FunctionIndependent(); !abort.IsMisuse(err) {
			return fmt.Errorf("FunctionIndependent twice: %v", err)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestVerboseProgress(t *testing.T) {
	circ, err := circuit.NewAdder(4)
	require.NoError(t, err)

	core, recorded := observer.New(zapcore.InfoLevel)
	log := zap.New(core).Sugar()

	err = p2p.RunLocal(2, func(nw *p2p.Network) error {
		f, err := newTriples(nw)
		if err != nil {
			return err
		}
		cfg := testConfig(nw.Party())
		cfg.Logger = log
		cfg.Verbose = true
		e, err := New(f, circ, cfg)
		if err != nil {
			return err
		}
		if err := e.FunctionIndependent(); err != nil {
			return err
		}
		if err := e.FunctionDependent(); err != nil {
			return err
		}
		in, err := adderInputs(nw, 4, 1, 2)
		if err != nil {
			return err
		}
		return e.Online(in, NewFlexOut(nw.Size(), nw.Party(), circ.NumOutputs))
	})
	require.NoError(t, err)

	for _, msg := range []string{"function independent:",
		"function dependent:", "online:"} {
		require.Equal(t, 2, recorded.FilterMessageSnippet(msg).Len(), msg)
	}
}

func TestTooManyInputRanges(t *testing.T) {
	b := circuit.NewBuilder(1, 1, 1)
	circ, err := b.Compile([]circuit.Wire{
		b.AND(b.Input(0, 0), b.XOR(b.Input(1, 0), b.Input(2, 0))),
	})
	require.NoError(t, err)

	err = p2p.RunLocal(2, func(nw *p2p.Network) error {
		f, err := newTriples(nw)
		if err != nil {
			return err
		}
		_, err = New(f, circ, nil)
		return err
	})
	require.ErrorIs(t, err, abort.ErrMisuse)
}

// disciplineCircuit computes (x0∧x1)⊕x2 and x3∧¬x0 over one input
// range.
func disciplineCircuit(t *testing.T) *circuit.Circuit {
	b := circuit.NewBuilder(4)
	x := b.Inputs(0)
	circ, err := b.Compile([]circuit.Wire{
		b.XOR(b.AND(x[0], x[1]), x[2]),
		b.AND(x[3], b.INV(x[0])),
	})
	require.NoError(t, err)
	return circ
}

func TestInputOutputDisciplines(t *testing.T) {
	circ := disciplineCircuit(t)

	// x0 is private to P2, x1 is public, x2 is XOR-shared, and x3 is
	// private to P1.
	const (
		x0 = true
		x1 = true
		x3 = true
	)
	unauthShares := map[tensor.Party]bool{1: true, 2: false, 3: true}
	x2 := unauthShares[1] != unauthShares[2] != unauthShares[3]

	expected := []bool{(x0 && x1) != x2, x3 && !x0}

	err := p2p.RunLocal(3, func(nw *p2p.Network) error {
		f, err := newTriples(nw)
		if err != nil {
			return err
		}
		party := nw.Party()
		in := NewFlexIn(nw.Size(), party, 4)
		for pos, who := range []int{2, Public, Unauth, 1} {
			if err := in.AssignParty(pos, who); err != nil {
				return err
			}
		}
		if party == 2 {
			if err := in.AssignPlaintext(0, x0); err != nil {
				return err
			}
		}
		if err := in.AssignPlaintext(1, x1); err != nil {
			return err
		}
		if err := in.AssignPlaintext(2, unauthShares[party]); err != nil {
			return err
		}
		if party == 1 {
			if err := in.AssignPlaintext(3, x3); err != nil {
				return err
			}
		}

		out := NewFlexOut(nw.Size(), party, 2)
		if err := out.AssignParty(0, Public); err != nil {
			return err
		}
		if err := out.AssignParty(1, 3); err != nil {
			return err
		}
		if err := evaluate(f, circ, in, out); err != nil {
			return err
		}

		v, err := out.Plaintext(0)
		if err != nil {
			return err
		}
		if v != expected[0] {
			return fmt.Errorf("%v: public output %v", party, v)
		}
		v, err = out.Plaintext(1)
		if party == 3 {
			if err != nil {
				return err
			}
			if v != expected[1] {
				return fmt.Errorf("%v: private output %v", party, v)
			}
		} else if !abort.IsMisuse(err) {
			return fmt.Errorf("%v: private output of P3 revealed: %v",
				party, err)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestFlexMisuse(t *testing.T) {
	in := NewFlexIn(3, 2, 4)
	require.NoError(t, in.AssignParty(0, 1))
	require.NoError(t, in.AssignParty(1, AuthShare))
	require.ErrorIs(t, in.AssignParty(2, 4), abort.ErrMisuse)
	require.ErrorIs(t, in.AssignParty(2, -3), abort.ErrMisuse)
	require.ErrorIs(t, in.AssignParty(4, 1), abort.ErrMisuse)
	require.ErrorIs(t, in.AssignPlaintext(0, true), abort.ErrMisuse)
	require.ErrorIs(t, in.AssignPlaintext(1, true), abort.ErrMisuse)
	require.NoError(t, in.AssignPlaintext(2, true))
	require.ErrorIs(t, in.AssignShare(0, NewShare(3)), abort.ErrMisuse)
	require.ErrorIs(t, in.AssignShare(1, NewShare(2)), abort.ErrMisuse)
	require.NoError(t, in.AssignShare(1, NewShare(3)))

	out := NewFlexOut(3, 2, 3)
	require.NoError(t, out.AssignParty(0, 1))
	require.NoError(t, out.AssignParty(1, AuthShare))
	require.ErrorIs(t, out.AssignParty(2, Unauth), abort.ErrMisuse)
	_, err := out.Plaintext(2)
	require.ErrorIs(t, err, abort.ErrMisuse, "output not computed")
	_, err = out.Plaintext(0)
	require.ErrorIs(t, err, abort.ErrMisuse)
	_, err = out.Plaintext(1)
	require.ErrorIs(t, err, abort.ErrMisuse)
	_, err = out.Share(2)
	require.ErrorIs(t, err, abort.ErrMisuse)
}

func TestCarriedShare(t *testing.T) {
	const bits = 8
	first, err := circuit.NewAdder(bits)
	require.NoError(t, err)

	// The second circuit adds a public constant to the carried sum.
	b := circuit.NewBuilder(bits, bits)
	second, err := b.Compile(b.Add(b.Inputs(0), b.Inputs(1)))
	require.NoError(t, err)

	const x, y, z = 100, 27, 91

	err = p2p.RunLocal(3, func(nw *p2p.Network) error {
		f, err := newTriples(nw)
		if err != nil {
			return err
		}
		in, err := adderInputs(nw, bits, x, y)
		if err != nil {
			return err
		}
		out := NewFlexOut(nw.Size(), nw.Party(), bits)
		for i := 0; i < bits; i++ {
			if err := out.AssignParty(i, AuthShare); err != nil {
				return err
			}
		}
		if err := evaluate(f, first, in, out); err != nil {
			return err
		}

		in2 := NewFlexIn(nw.Size(), nw.Party(), 2*bits)
		zBits := circuit.IntToBits(z, bits)
		for i := 0; i < bits; i++ {
			share, err := out.Share(i)
			if err != nil {
				return err
			}
			if err := in2.AssignParty(i, AuthShare); err != nil {
				return err
			}
			if err := in2.AssignShare(i, share); err != nil {
				return err
			}
			if err := in2.AssignParty(bits+i, Public); err != nil {
				return err
			}
			if err := in2.AssignPlaintext(bits+i, zBits[i]); err != nil {
				return err
			}
		}
		out2 := NewFlexOut(nw.Size(), nw.Party(), bits)
		if err := evaluate(f, second, in2, out2); err != nil {
			return err
		}
		v, err := publicOutput(out2)
		if err != nil {
			return err
		}
		if v != (x+y+z)%256 {
			return fmt.Errorf("%v: got %d, expected %d", nw.Party(), v,
				(x+y+z)%256)
		}
		return nil
	})
	require.NoError(t, err)
}

// runTampered evaluates an 8-bit adder among 3 parties with the
// parties' tamper hooks and expects the evaluation to abort on
// cheating.
func runTampered(t *testing.T, hooks map[tensor.Party]*tamperHooks,
	tamperTables func(e *Evaluator)) {

	circ, err := circuit.NewAdder(8)
	require.NoError(t, err)

	err = p2p.RunLocal(3, func(nw *p2p.Network) error {
		f, err := newTriples(nw)
		if err != nil {
			return err
		}
		e, err := New(f, circ, testConfig(nw.Party()))
		if err != nil {
			return err
		}
		e.tamper = hooks[nw.Party()]
		if err := e.FunctionIndependent(); err != nil {
			return err
		}
		if err := e.FunctionDependent(); err != nil {
			return err
		}
		if tamperTables != nil {
			tamperTables(e)
		}
		in, err := adderInputs(nw, 8, 1, 2)
		if err != nil {
			return err
		}
		out := NewFlexOut(nw.Size(), nw.Party(), circ.NumOutputs)
		return e.Online(in, out)
	})
	require.Error(t, err)
	require.True(t, abort.IsCheating(err), "unexpected error: %v", err)
}

func TestTamperedTable(t *testing.T) {
	// Every row of the first AND gate from P2 differs in one bit, so
	// whichever row P1 decodes there is off by one bit.
	runTampered(t, nil, func(e *Evaluator) {
		if e.party != tensor.Evaluator {
			return
		}
		for j := 0; j < 4; j++ {
			e.gt[2].row(0, j)[tensor.Evaluator].Xor(ot.MakeLabel(0, 1<<20))
		}
	})
}

func TestTamperedInputMasks(t *testing.T) {
	runTampered(t, map[tensor.Party]*tamperHooks{
		2: {
			inputMasks: func(peer tensor.Party, o *opening) {
				if peer == 1 {
					o.bits[3] = !o.bits[3]
				}
			},
		},
	}, nil)
}

func TestTamperedMaskedInputs(t *testing.T) {
	// P2 sends a different masked input bit to P3 than to P1.
	runTampered(t, map[tensor.Party]*tamperHooks{
		2: {
			maskedInputs: func(peer tensor.Party, bits []bool) {
				if peer == 3 {
					bits[5] = !bits[5]
				}
			},
		},
	}, nil)
}

func TestTamperedOutputLabels(t *testing.T) {
	runTampered(t, map[tensor.Party]*tamperHooks{
		tensor.Evaluator: {
			outputLabels: func(peer tensor.Party, labels []ot.Label) {
				if peer == 3 {
					labels[2].Xor(ot.MakeLabel(1, 0))
				}
			},
		},
	}, nil)
}

func TestTamperedOutputOpening(t *testing.T) {
	runTampered(t, map[tensor.Party]*tamperHooks{
		3: {
			outputOpening: func(peer tensor.Party, o *opening) {
				if peer == 2 {
					o.macs[0].Xor(ot.MakeLabel(0, 1))
				}
			},
		},
	}, nil)
}

func TestPublicInputMismatch(t *testing.T) {
	circ := disciplineCircuit(t)

	err := p2p.RunLocal(3, func(nw *p2p.Network) error {
		f, err := newTriples(nw)
		if err != nil {
			return err
		}
		in := NewFlexIn(nw.Size(), nw.Party(), 4)
		for pos := 0; pos < 4; pos++ {
			if err := in.AssignParty(pos, Public); err != nil {
				return err
			}
		}
		if err := in.AssignPlaintext(1, nw.Party() == 3); err != nil {
			return err
		}
		out := NewFlexOut(nw.Size(), nw.Party(), 2)
		return evaluate(f, circ, in, out)
	})
	require.Error(t, err)
	require.True(t, abort.IsCheating(err), "unexpected error: %v", err)
}
