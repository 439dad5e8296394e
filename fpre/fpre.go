//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package fpre implements the N-party preprocessing of authenticated
// AND triples. Candidate triples are computed with pairwise garbled
// gadgets over authenticated bits, checked by sacrificing a random
// linear combination, and combined in random buckets.
package fpre

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/agmpc/abit"
	"github.com/markkurossi/agmpc/abort"
	"github.com/markkurossi/agmpc/commit"
	"github.com/markkurossi/agmpc/env"
	"github.com/markkurossi/agmpc/ot"
	"github.com/markkurossi/agmpc/p2p"
	"github.com/markkurossi/agmpc/tensor"
	"go.uber.org/zap"
)

// Engine computes authenticated AND triples.
type Engine struct {
	abit  *abit.Engine
	nw    *p2p.Network
	party tensor.Party
	delta ot.Label
	ssp   int
	rand  io.Reader
	prp   *ot.PRP
	log   *zap.SugaredLogger

	// tamper, if set, is called with the product shares and their
	// corrections before the corrections are sent.
	tamper func(value, diff []bool)

	// tamperOpening, if set, is called with the opened check values
	// before they are sent to the peer.
	tamperOpening func(peer tensor.Party, opened []ot.Label)
}

// New creates a new triple engine over the authenticated bit engine.
func New(a *abit.Engine, cfg *env.Config) *Engine {
	return &Engine{
		abit:  a,
		nw:    a.Network(),
		party: a.Party(),
		delta: a.Delta(),
		ssp:   a.SSP(),
		rand:  cfg.GetRandom(),
		prp:   ot.NewFixedKeyPRP(),
		log:   cfg.PartyLogger(int(a.Party())),
	}
}

// ABit returns the engine's authenticated bit engine.
func (e *Engine) ABit() *abit.Engine {
	return e.abit
}

// BucketSize returns the bucket size for count triples.
func BucketSize(count int) int {
	size := count
	if size < 320 {
		size = 320
	}
	batch := ((size + 1) / 2) * 2
	switch {
	case batch >= 280000:
		return 3
	case batch >= 3100:
		return 4
	default:
		return 5
	}
}

// Compute computes count triples. The result holds 3·count bits where
// the bits 3k, 3k+1, and 3k+2 are the triple a, b, and c with c =
// a∧b over the parties' shares.
func (e *Engine) Compute(count int) (*abit.Bits, error) {
	if count < 0 {
		return nil, abort.Misusef("fpre: invalid triple count %d", count)
	}
	bucket := BucketSize(count)
	n := count * bucket

	t, err := e.abit.NewBits(3*n + 3*e.ssp)
	if err != nil {
		return nil, err
	}
	if err := e.abit.Compute(t); err != nil {
		return nil, err
	}
	e.log.Debugf("fpre: %d candidates, bucket size %d", n, bucket)

	if err := e.multiply(t, n); err != nil {
		return nil, err
	}
	if err := e.abit.Check(t); err != nil {
		return nil, err
	}
	if err := e.sacrifice(t, n); err != nil {
		return nil, err
	}
	result, err := e.combine(t, count, bucket)
	if err != nil {
		return nil, err
	}
	e.log.Debugf("fpre: computed %d triples", count)
	return result, nil
}

// multiply sets the c share of the n candidate triples so that the
// shares of c sum to the product of the sums of a and b, and fixes
// the keys of the peers' c bits accordingly.
func (e *Engine) multiply(t *abit.Bits, n int) error {
	r := t.Value
	s := tensor.NewMatrix[bool](e.nw.Size(), n)

	err := e.nw.ForEachPeer(func(peer tensor.Party) error {
		row := s.Row(peer)
		if e.party < peer {
			tables := make([]byte, n)
			copy(row, e.abit.PeerRand(peer).Bools(n))
			key := t.Key.Row(peer)
			for k := 0; k < n; k++ {
				tables[k] = e.garble(key, r, row[k], k)
				row[k] = row[k] != (r[3*k] && r[3*k+1])
			}
			c := e.nw.Send(peer)
			if err := c.SendBytes(tables); err != nil {
				return errors.Wrapf(err, "send tables to peer %d", peer)
			}
			return e.nw.Flush(peer)
		}
		tables := make([]byte, n)
		if err := e.nw.Recv(peer).ReceiveBytes(tables); err != nil {
			return errors.Wrapf(err, "receive tables from peer %d", peer)
		}
		mac := t.MAC.Row(peer)
		for k := 0; k < n; k++ {
			v := e.evaluate(tables[k], mac, r, k)
			row[k] = v != (r[3*k] && r[3*k+1])
		}
		return nil
	})
	if err != nil {
		return err
	}

	diff := make([]bool, n)
	for k := 0; k < n; k++ {
		v := r[3*k] && r[3*k+1]
		for _, peer := range e.nw.Peers() {
			v = v != s.At(peer, k)
		}
		diff[k] = v != r[3*k+2]
		r[3*k+2] = v
	}
	if e.tamper != nil {
		e.tamper(r, diff)
	}

	return e.nw.ForEachPeer(func(peer tensor.Party) error {
		peerDiff := make([]bool, n)
		err := e.nw.Exchange(peer,
			func(c *p2p.Conn) error {
				return c.SendBools(diff)
			},
			func(c *p2p.Conn) error {
				return c.ReceiveBools(peerDiff)
			})
		if err != nil {
			return err
		}
		key := t.Key.Row(peer)
		for k, d := range peerDiff {
			key[3*k+2].XorIf(e.delta, d)
		}
		return nil
	})
}

// garble creates the 4-entry table of the triple k for the evaluator
// holding the MACs under the keys key.
func (e *Engine) garble(key []ot.Label, r []bool, s bool, k int) byte {
	var tmp [4]ot.Label
	tmp[0] = key[3*k]
	tmp[1] = tmp[0]
	tmp[1].Xor(e.delta)
	tmp[2] = key[3*k+1]
	tmp[3] = tmp[2]
	tmp[3].Xor(e.delta)
	for i := range tmp {
		tmp[i] = e.prp.HashID(tmp[i], uint64(4*k+i))
	}

	var data byte
	for idx := 0; idx < 4; idx++ {
		x := idx&1 == 1
		y := idx>>1 == 1
		h := tmp[idx&1]
		h.Xor(tmp[2+idx>>1])
		bit := h.LSB() != (((x != r[3*k]) && (y != r[3*k+1])) != s)
		if bit {
			data |= 1 << idx
		}
	}
	return data
}

// evaluate decodes the table entry of the triple k selected by the
// evaluator's shares.
func (e *Engine) evaluate(table byte, mac []ot.Label, r []bool, k int) bool {
	var ra, rb uint64
	if r[3*k] {
		ra = 1
	}
	if r[3*k+1] {
		rb = 1
	}
	h := e.prp.HashID(mac[3*k], uint64(4*k)+ra)
	h.Xor(e.prp.HashID(mac[3*k+1], uint64(4*k+2)+rb))

	bit := (table>>(2*rb+ra))&1 == 1
	return bit != h.LSB()
}

// sacrifice verifies the products of the n candidate triples with a
// random linear combination of their key and MAC relations.
func (e *Engine) sacrifice(t *abit.Bits, n int) error {
	r := t.Value
	peers := e.nw.Peers()

	phi := make([]ot.Label, n)
	for k := 0; k < n; k++ {
		for _, peer := range peers {
			phi[k].Xor(t.Key.At(peer, 3*k+1))
			phi[k].Xor(t.MAC.At(peer, 3*k+1))
		}
		phi[k].XorIf(e.delta, r[3*k+1])
	}

	keyPhi := tensor.NewMatrix[ot.Label](e.nw.Size(), n)
	macPhi := tensor.NewMatrix[ot.Label](e.nw.Size(), n)

	err := e.nw.ForEachPeer(func(peer tensor.Party) error {
		key := t.Key.Row(peer)
		mac := t.MAC.Row(peer)
		kp := keyPhi.Row(peer)
		mp := macPhi.Row(peer)

		return e.nw.Exchange(peer,
			func(c *p2p.Conn) error {
				var ld ot.LabelData
				for k := 0; k < n; k++ {
					k0 := key[3*k]
					k1 := k0
					k1.Xor(e.delta)
					h0 := e.prp.HashID(k0, uint64(2*k))
					h1 := e.prp.HashID(k1, uint64(2*k+1))
					kp[k] = h0
					h1.Xor(h0)
					h1.Xor(phi[k])
					if err := c.SendLabel(h1, &ld); err != nil {
						return err
					}
				}
				return nil
			},
			func(c *p2p.Conn) error {
				var ld ot.LabelData
				var u ot.Label
				for k := 0; k < n; k++ {
					if err := c.ReceiveLabel(&u, &ld); err != nil {
						return err
					}
					var ra uint64
					if r[3*k] {
						ra = 1
					}
					mp[k] = e.prp.HashID(mac[3*k], uint64(2*k)+ra)
					mp[k].XorIf(u, r[3*k])
				}
				return nil
			})
	})
	if err != nil {
		return err
	}

	h := make([]ot.Label, n)
	for k := 0; k < n; k++ {
		for _, peer := range peers {
			h[k].Xor(keyPhi.At(peer, k))
			h[k].Xor(macPhi.At(peer, k))
			h[k].Xor(t.Key.At(peer, 3*k+2))
			h[k].Xor(t.MAC.At(peer, 3*k+2))
		}
		h[k].XorIf(phi[k], r[3*k])
		h[k].XorIf(e.delta, r[3*k+2])
	}

	seed, err := commit.SampleRandom(e.nw, e.rand)
	if err != nil {
		return err
	}
	prg := ot.NewPRG(seed)

	x := tensor.NewMatrix[ot.Label](e.nw.Size(), e.ssp)
	own := x.Row(e.party)
	for i := 0; i < e.ssp; i++ {
		coeffs := prg.Bools(n)
		for k, c := range coeffs {
			if c {
				own[i].Xor(h[k])
			}
		}
	}
	com := commit.HashLabels(own...)

	cheat := make([]bool, e.nw.Size()+1)
	err = e.nw.ForEachPeer(func(peer tensor.Party) error {
		var peerCom commit.Digest
		err := e.nw.Exchange(peer,
			func(c *p2p.Conn) error {
				return c.SendBytes(com[:])
			},
			func(c *p2p.Conn) error {
				return c.ReceiveBytes(peerCom[:])
			})
		if err != nil {
			return err
		}
		row := x.Row(peer)
		opened := own
		if e.tamperOpening != nil {
			opened = append([]ot.Label(nil), own...)
			e.tamperOpening(peer, opened)
		}
		err = e.nw.Exchange(peer,
			func(c *p2p.Conn) error {
				return c.SendLabels(opened)
			},
			func(c *p2p.Conn) error {
				return c.ReceiveLabels(row)
			})
		if err != nil {
			return err
		}
		cheat[peer] = commit.HashLabels(row...) != peerCom
		return nil
	})
	if err != nil {
		return err
	}
	for _, peer := range peers {
		if cheat[peer] {
			return abort.Cheatingf("fpre: invalid opening from peer %d", peer)
		}
	}

	sum := make([]ot.Label, e.ssp)
	for p := 1; p <= e.nw.Size(); p++ {
		ot.XorLabels(sum, x.Row(tensor.Party(p)))
	}
	for i := range sum {
		if !sum[i].IsZero() {
			return abort.Cheatingf("fpre: AND check failed")
		}
	}
	return nil
}

// combine shuffles the n = count·bucket candidates with a jointly
// random permutation and combines each bucket into one triple.
func (e *Engine) combine(t *abit.Bits, count, bucket int) (*abit.Bits, error) {
	n := count * bucket

	seed, err := commit.SampleRandom(e.nw, e.rand)
	if err != nil {
		return nil, err
	}
	ind := ot.NewPRG(seed).Int32s(n)
	location := make([]int, n)
	for i := range location {
		location[i] = i
	}
	for i := n - 1; i >= 0; i-- {
		index := int(ind[i] % int32(i+1))
		if index < 0 {
			index = -index
		}
		location[i], location[index] = location[index], location[i]
	}

	dlen := (bucket - 1) * count
	d := tensor.NewMatrix[bool](e.nw.Size(), dlen)
	own := d.Row(e.party)

	result := abit.NewBits(e.nw.Size(), 3*count)
	for i := 0; i < count; i++ {
		first := 3 * location[i*bucket]
		for j := 0; j < bucket-1; j++ {
			cand := 3 * location[i*bucket+1+j]
			own[(bucket-1)*i+j] = t.Value[first+1] != t.Value[cand+1]
		}
		result.Copy(3*i, t, first)
		result.Copy(3*i+1, t, first+1)
		result.Copy(3*i+2, t, first+2)
		for k := 1; k < bucket; k++ {
			cand := 3 * location[i*bucket+k]
			result.Xor(3*i, t, cand)
			result.Xor(3*i+2, t, cand+2)
		}
	}

	err = e.nw.ForEachPeer(func(peer tensor.Party) error {
		return e.nw.Exchange(peer,
			func(c *p2p.Conn) error {
				return c.SendBools(own)
			},
			func(c *p2p.Conn) error {
				return c.ReceiveBools(d.Row(peer))
			})
	})
	if err != nil {
		return nil, err
	}
	sum := make([]bool, dlen)
	for p := 1; p <= e.nw.Size(); p++ {
		for j, v := range d.Row(tensor.Party(p)) {
			sum[j] = sum[j] != v
		}
	}

	for i := 0; i < count; i++ {
		for k := 1; k < bucket; k++ {
			if sum[(bucket-1)*i+k-1] {
				cand := 3 * location[i*bucket+k]
				result.Xor(3*i+2, t, cand)
			}
		}
	}
	return result, nil
}
