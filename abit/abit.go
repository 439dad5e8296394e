//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package abit implements N-party authenticated bits. Every party
// holds a global key Δ and, for each peer, a correlated OT pair in
// both directions. An authenticated bit of the party h is a share
// b_h with the MACs M_h[v] = K_v[h] ⊕ b_h·Δ_v for every peer v.
package abit

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/agmpc/abort"
	"github.com/markkurossi/agmpc/env"
	"github.com/markkurossi/agmpc/ot"
	"github.com/markkurossi/agmpc/p2p"
	"github.com/markkurossi/agmpc/tensor"
	"go.uber.org/zap"
)

// Engine computes and checks authenticated bits.
type Engine struct {
	nw    *p2p.Network
	party tensor.Party
	ssp   int
	rand  io.Reader
	log   *zap.SugaredLogger
	delta ot.Label

	sender   []*ot.IKNPSender
	receiver []*ot.IKNPReceiver
	peerRand []*ot.PRG
}

// New creates a new engine and runs the correlated OT setup with all
// peers.
func New(nw *p2p.Network, cfg *env.Config) (*Engine, error) {
	e := &Engine{
		nw:       nw,
		party:    nw.Party(),
		ssp:      cfg.GetSSP(),
		rand:     cfg.GetRandom(),
		log:      cfg.PartyLogger(int(nw.Party())),
		sender:   make([]*ot.IKNPSender, nw.Size()+1),
		receiver: make([]*ot.IKNPReceiver, nw.Size()+1),
		peerRand: make([]*ot.PRG, nw.Size()+1),
	}

	var err error
	e.delta, err = ot.NewDelta(e.rand)
	if err != nil {
		return nil, err
	}

	// The per-peer generators are seeded in party order so that the
	// concurrent setup is deterministic under a seeded source.
	for _, peer := range nw.Peers() {
		seed, err := ot.NewLabel(e.rand)
		if err != nil {
			return nil, err
		}
		e.peerRand[peer] = ot.NewPRG(seed)
	}

	err = nw.ForEachPeer(func(peer tensor.Party) error {
		if e.party < peer {
			if err := e.setupSender(peer); err != nil {
				return err
			}
			return e.setupReceiver(peer)
		}
		if err := e.setupReceiver(peer); err != nil {
			return err
		}
		return e.setupSender(peer)
	})
	if err != nil {
		return nil, err
	}
	e.log.Debugf("abit setup complete")

	return e, nil
}

func (e *Engine) setupSender(peer tensor.Party) error {
	conn := e.nw.Recv(peer)
	base := ot.NewCO(e.peerRand[peer])
	if err := base.InitSender(conn); err != nil {
		return errors.Wrapf(err, "base OT with peer %d", peer)
	}
	delta := e.delta
	s, err := ot.NewIKNPSender(base, conn, e.peerRand[peer], &delta)
	if err != nil {
		return errors.Wrapf(err, "COT sender setup with peer %d", peer)
	}
	e.sender[peer] = s
	return nil
}

func (e *Engine) setupReceiver(peer tensor.Party) error {
	conn := e.nw.Send(peer)
	base := ot.NewCO(e.peerRand[peer])
	if err := base.InitReceiver(conn); err != nil {
		return errors.Wrapf(err, "base OT with peer %d", peer)
	}
	r, err := ot.NewIKNPReceiver(base, conn, e.peerRand[peer])
	if err != nil {
		return errors.Wrapf(err, "COT receiver setup with peer %d", peer)
	}
	e.receiver[peer] = r
	return nil
}

// Network returns the engine's network.
func (e *Engine) Network() *p2p.Network {
	return e.nw
}

// Party returns the engine's party number.
func (e *Engine) Party() tensor.Party {
	return e.party
}

// Delta returns the party's global key.
func (e *Engine) Delta() ot.Label {
	return e.delta
}

// SSP returns the statistical security parameter.
func (e *Engine) SSP() int {
	return e.ssp
}

// PeerRand returns the deterministic random source of the peer.
func (e *Engine) PeerRand(peer tensor.Party) *ot.PRG {
	return e.peerRand[peer]
}

// NewBits creates a batch of length bits with random values drawn
// from the party's random source.
func (e *Engine) NewBits(length int) (*Bits, error) {
	bits := NewBits(e.nw.Size(), length)
	buf := make([]byte, (length+7)/8)
	if _, err := io.ReadFull(e.rand, buf); err != nil {
		return nil, err
	}
	for i := range bits.Value {
		bits.Value[i] = (buf[i/8]>>(i%8))&1 == 1
	}
	return bits, nil
}

// Compute computes the MACs and keys of bits.Value with all peers.
func (e *Engine) Compute(bits *Bits) error {
	if bits.Parties() != e.nw.Size() {
		return errors.Newf("bits for %d parties, network has %d",
			bits.Parties(), e.nw.Size())
	}
	err := e.nw.ForEachPeer(func(peer tensor.Party) error {
		if e.party < peer {
			if err := e.receiveCOT(peer, bits); err != nil {
				return err
			}
			return e.sendCOT(peer, bits)
		}
		if err := e.sendCOT(peer, bits); err != nil {
			return err
		}
		return e.receiveCOT(peer, bits)
	})
	if err != nil {
		return err
	}
	e.log.Debugf("abit: computed %d bits", bits.Len())
	return nil
}

func (e *Engine) receiveCOT(peer tensor.Party, bits *Bits) error {
	err := e.receiver[peer].Receive(bits.Value, bits.MAC.Row(peer), true)
	if err != nil {
		return errors.Wrapf(markCheating(err), "COT receive from peer %d", peer)
	}
	return nil
}

func (e *Engine) sendCOT(peer tensor.Party, bits *Bits) error {
	keys, err := e.sender[peer].Send(bits.Len(), true)
	if err != nil {
		return errors.Wrapf(markCheating(err), "COT send to peer %d", peer)
	}
	copy(bits.Key.Row(peer), keys)
	return nil
}

func markCheating(err error) error {
	if errors.Is(err, ot.ErrConsistency) {
		return errors.Mark(err, abort.ErrCheating)
	}
	return err
}
