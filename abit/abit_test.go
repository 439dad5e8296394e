//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package abit

import (
	"fmt"
	"testing"

	"github.com/markkurossi/agmpc/abort"
	"github.com/markkurossi/agmpc/env"
	"github.com/markkurossi/agmpc/ot"
	"github.com/markkurossi/agmpc/p2p"
	"github.com/markkurossi/agmpc/tensor"
	"github.com/stretchr/testify/require"
)

func testConfig(party tensor.Party) *env.Config {
	return &env.Config{
		Rand: env.NewSeededRand([]byte(fmt.Sprintf("abit-%d", party))),
	}
}

func TestComputeAndCheck(t *testing.T) {
	for _, n := range []int{2, 3, 4} {
		t.Run(fmt.Sprintf("%dparties", n), func(t *testing.T) {
			err := p2p.RunLocal(n, func(nw *p2p.Network) error {
				e, err := New(nw, testConfig(nw.Party()))
				if err != nil {
					return err
				}
				bits, err := e.NewBits(1000)
				if err != nil {
					return err
				}
				if err := e.Compute(bits); err != nil {
					return err
				}
				if err := e.Verify(bits); err != nil {
					return err
				}
				return e.Check(bits)
			})
			require.NoError(t, err)
		})
	}
}

func TestDeltaLSB(t *testing.T) {
	err := p2p.RunLocal(2, func(nw *p2p.Network) error {
		e, err := New(nw, nil)
		if err != nil {
			return err
		}
		if !e.Delta().LSB() {
			return fmt.Errorf("delta LSB not set")
		}
		return nil
	})
	require.NoError(t, err)
}

func TestCheckSmallBatch(t *testing.T) {
	err := p2p.RunLocal(2, func(nw *p2p.Network) error {
		e, err := New(nw, testConfig(nw.Party()))
		if err != nil {
			return err
		}
		bits, err := e.NewBits(3*e.SSP() - 1)
		if err != nil {
			return err
		}
		if err := e.Compute(bits); err != nil {
			return err
		}
		return e.Check(bits)
	})
	require.ErrorIs(t, err, abort.ErrMisuse)
}

func testCorrupt(t *testing.T, corrupt func(e *Engine, bits *Bits)) {
	err := p2p.RunLocal(3, func(nw *p2p.Network) error {
		e, err := New(nw, testConfig(nw.Party()))
		if err != nil {
			return err
		}
		bits, err := e.NewBits(500)
		if err != nil {
			return err
		}
		if err := e.Compute(bits); err != nil {
			return err
		}
		if nw.Party() == 2 {
			corrupt(e, bits)
		}
		return e.Check(bits)
	})
	require.Error(t, err)
	require.True(t, abort.IsCheating(err), "unexpected error: %v", err)
}

func TestCheckFlippedMAC(t *testing.T) {
	testCorrupt(t, func(e *Engine, bits *Bits) {
		bits.MAC.Ptr(1, 17).Xor(ot.MakeLabel(0, 1))
	})
}

func TestCheckFlippedKey(t *testing.T) {
	testCorrupt(t, func(e *Engine, bits *Bits) {
		bits.Key.Ptr(3, 123).Xor(ot.MakeLabel(1<<40, 0))
	})
}

func TestCheckFlippedValue(t *testing.T) {
	testCorrupt(t, func(e *Engine, bits *Bits) {
		bits.Value[42] = !bits.Value[42]
	})
}

func TestCheckFlippedTail(t *testing.T) {
	testCorrupt(t, func(e *Engine, bits *Bits) {
		bits.MAC.Ptr(3, bits.Len()-1).Xor(ot.MakeLabel(0, 2))
	})
}

func TestBitsCombine(t *testing.T) {
	a := NewBits(2, 2)
	a.Value[0] = true
	a.MAC.Set(2, 0, ot.MakeLabel(1, 1))
	a.Key.Set(2, 0, ot.MakeLabel(2, 2))

	a.Copy(1, a, 0)
	require.True(t, a.Value[1])
	require.Equal(t, ot.MakeLabel(1, 1), a.MAC.At(2, 1))

	a.Xor(1, a, 0)
	require.False(t, a.Value[1])
	require.True(t, a.MAC.At(2, 1).IsZero())
	require.True(t, a.Key.At(2, 1).IsZero())
}
