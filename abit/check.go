//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package abit

import (
	"github.com/markkurossi/agmpc/abort"
	"github.com/markkurossi/agmpc/commit"
	"github.com/markkurossi/agmpc/ot"
	"github.com/markkurossi/agmpc/p2p"
	"github.com/markkurossi/agmpc/tensor"
)

// Check verifies the MACs of bits with all peers. The last 3·ssp
// bits of the batch are consumed by the check and must not be used
// afterwards.
func (e *Engine) Check(bits *Bits) error {
	if bits.Len() < 3*e.ssp {
		return abort.Misusef("abit check: %d bits, need at least %d",
			bits.Len(), 3*e.ssp)
	}
	if err := e.check1(bits); err != nil {
		return err
	}
	if err := e.check2(bits); err != nil {
		return err
	}
	e.log.Debugf("abit: checked %d bits", bits.Len())
	return nil
}

// check1 verifies random linear combinations of the bits against the
// peers' keys.
func (e *Engine) check1(bits *Bits) error {
	seed, err := commit.SampleRandom(e.nw, e.rand)
	if err != nil {
		return err
	}
	length := bits.Len()
	ssp := e.ssp

	sel := make([]byte, ssp*length)
	ot.NewPRG(seed).Fill(sel)
	for i := range sel {
		sel[i] %= 4
	}

	cheat := make([]bool, e.nw.Size()+1)

	err = e.nw.ForEachPeer(func(peer tensor.Party) error {
		ms := make([]ot.Label, ssp)
		ks := make([]ot.Label, ssp)
		bs := make([]bool, ssp)

		mac := bits.MAC.Row(peer)
		key := bits.Key.Row(peer)

		var tm, tk [4]ot.Label
		var tb [4]bool

		for i := 0; i < length; i++ {
			tm[1] = mac[i]
			tk[1] = key[i]
			tb[1] = bits.Value[i]
			if i+1 < length {
				tm[2] = mac[i+1]
				tk[2] = key[i+1]
				tb[2] = bits.Value[i+1]
			} else {
				tm[2] = ot.Label{}
				tk[2] = ot.Label{}
				tb[2] = false
			}
			tm[3] = tm[1]
			tm[3].Xor(tm[2])
			tk[3] = tk[1]
			tk[3].Xor(tk[2])
			tb[3] = tb[1] != tb[2]

			s := sel[i*ssp : (i+1)*ssp]
			for j := 0; j < ssp; j++ {
				ms[j].Xor(tm[s[j]])
				ks[j].Xor(tk[s[j]])
				bs[j] = bs[j] != tb[s[j]]
			}
		}

		tms := make([]ot.Label, ssp)
		tbs := make([]bool, ssp)
		err := e.nw.Exchange(peer,
			func(c *p2p.Conn) error {
				if err := c.SendLabels(ms); err != nil {
					return err
				}
				return c.SendBools(bs)
			},
			func(c *p2p.Conn) error {
				if err := c.ReceiveLabels(tms); err != nil {
					return err
				}
				return c.ReceiveBools(tbs)
			})
		if err != nil {
			return err
		}
		for j := 0; j < ssp; j++ {
			ks[j].XorIf(e.delta, tbs[j])
		}
		cheat[peer] = !ot.EqualLabels(ks, tms)
		return nil
	})
	if err != nil {
		return err
	}
	for _, peer := range e.nw.Peers() {
		if cheat[peer] {
			return abort.Cheatingf("abit check1: MAC mismatch with peer %d",
				peer)
		}
	}
	return nil
}

// check2 verifies that the key sums of the parties are consistent
// with the global keys.
func (e *Engine) check2(bits *Bits) error {
	ssp := e.ssp
	pos := bits.Len() - 3*ssp
	n := e.nw.Size()
	peers := e.nw.Peers()

	// ks[0] is the sum of the keys, ks[1] the sum with Δ.
	var ks [2][]ot.Label
	ks[0] = make([]ot.Label, ssp)
	ks[1] = make([]ot.Label, ssp)

	dgst0 := tensor.NewMatrix[commit.Digest](n, ssp)
	dgst1 := tensor.NewMatrix[commit.Digest](n, ssp)
	dgst := tensor.NewMatrix[commit.Digest](n, 1)

	for i := 0; i < ssp; i++ {
		for _, peer := range peers {
			ks[0][i].Xor(bits.Key.At(peer, pos+i))
		}
		ks[1][i] = ks[0][i]
		ks[1][i].Xor(e.delta)
		dgst0.Set(e.party, i, commit.HashLabels(ks[0][i]))
		dgst1.Set(e.party, i, commit.HashLabels(ks[1][i]))
	}

	share := bits.Value[pos : pos+ssp]
	h := commit.NewHasher()
	h.AddBools(share)
	for _, peer := range peers {
		h.AddLabels(bits.MAC.Row(peer)[pos : pos+ssp])
	}
	dgst.Set(e.party, 0, h.Sum())

	// Round 1: exchange the commitments.
	err := e.nw.ForEachPeer(func(peer tensor.Party) error {
		return e.nw.Exchange(peer,
			func(c *p2p.Conn) error {
				d := dgst.At(e.party, 0)
				if err := c.SendBytes(d[:]); err != nil {
					return err
				}
				if err := sendDigests(c, dgst0.Row(e.party)); err != nil {
					return err
				}
				return sendDigests(c, dgst1.Row(e.party))
			},
			func(c *p2p.Conn) error {
				d := dgst.Ptr(peer, 0)
				if err := c.ReceiveBytes(d[:]); err != nil {
					return err
				}
				if err := receiveDigests(c, dgst0.Row(peer)); err != nil {
					return err
				}
				return receiveDigests(c, dgst1.Row(peer))
			})
	})
	if err != nil {
		return err
	}

	// ms.At(j, k) holds the MAC of the party j's bit under the
	// party k's key.
	ms := make([]*tensor.Matrix[ot.Label], n+1)
	for j := 1; j <= n; j++ {
		ms[j] = tensor.NewMatrix[ot.Label](n, ssp)
	}
	for _, k := range peers {
		copy(ms[e.party].Row(k), bits.MAC.Row(k)[pos:pos+ssp])
	}
	bs := tensor.NewMatrix[bool](n, ssp)
	copy(bs.Row(e.party), share)

	// Round 2: open the shares and MACs.
	cheat := make([]bool, n+1)
	err = e.nw.ForEachPeer(func(peer tensor.Party) error {
		return e.nw.Exchange(peer,
			func(c *p2p.Conn) error {
				if err := c.SendBools(share); err != nil {
					return err
				}
				for _, k := range peers {
					err := c.SendLabels(bits.MAC.Row(k)[pos : pos+ssp])
					if err != nil {
						return err
					}
				}
				return nil
			},
			func(c *p2p.Conn) error {
				h := commit.NewHasher()
				if err := c.ReceiveBools(bs.Row(peer)); err != nil {
					return err
				}
				h.AddBools(bs.Row(peer))
				for k := 1; k <= n; k++ {
					if tensor.Party(k) == peer {
						continue
					}
					row := ms[peer].Row(tensor.Party(k))
					if err := c.ReceiveLabels(row); err != nil {
						return err
					}
					h.AddLabels(row)
				}
				cheat[peer] = h.Sum() != dgst.At(peer, 0)
				return nil
			})
	})
	if err != nil {
		return err
	}
	for _, peer := range peers {
		if cheat[peer] {
			return abort.Cheatingf("abit check2: opening mismatch with peer %d",
				peer)
		}
	}

	// Round 3: reveal the key sums selected by the other parties'
	// share sums.
	own := bs.Row(e.party)
	for i := range own {
		own[i] = false
	}
	for _, peer := range peers {
		for i, b := range bs.Row(peer) {
			own[i] = own[i] != b
		}
	}
	kk := tensor.NewMatrix[ot.Label](n, ssp)

	err = e.nw.ForEachPeer(func(peer tensor.Party) error {
		return e.nw.Exchange(peer,
			func(c *p2p.Conn) error {
				if err := c.SendBools(own); err != nil {
					return err
				}
				var ld ot.LabelData
				for i, b := range own {
					sel := ks[0][i]
					if b {
						sel = ks[1][i]
					}
					if err := c.SendLabel(sel, &ld); err != nil {
						return err
					}
				}
				return nil
			},
			func(c *p2p.Conn) error {
				sel := make([]bool, ssp)
				if err := c.ReceiveBools(sel); err != nil {
					return err
				}
				row := kk.Row(peer)
				if err := c.ReceiveLabels(row); err != nil {
					return err
				}
				for i := 0; i < ssp; i++ {
					d := commit.HashLabels(row[i])
					if sel[i] {
						cheat[peer] = cheat[peer] || d != dgst1.At(peer, i)
					} else {
						cheat[peer] = cheat[peer] || d != dgst0.At(peer, i)
					}
				}
				return nil
			})
	})
	if err != nil {
		return err
	}
	for _, peer := range peers {
		if cheat[peer] {
			return abort.Cheatingf("abit check2: key sum mismatch with peer %d",
				peer)
		}
	}

	// The MACs under each peer's key must sum to its revealed key sum.
	for _, i := range peers {
		sum := make([]ot.Label, ssp)
		for j := 1; j <= n; j++ {
			if tensor.Party(j) == i {
				continue
			}
			ot.XorLabels(sum, ms[j].Row(i))
		}
		if !ot.EqualLabels(sum, kk.Row(i)) {
			return abort.Cheatingf("abit check2: share check failed for peer %d",
				i)
		}
	}
	return nil
}

func sendDigests(c *p2p.Conn, digests []commit.Digest) error {
	for _, d := range digests {
		if err := c.SendBytes(d[:]); err != nil {
			return err
		}
	}
	return nil
}

func receiveDigests(c *p2p.Conn, digests []commit.Digest) error {
	for i := range digests {
		if err := c.ReceiveBytes(digests[i][:]); err != nil {
			return err
		}
	}
	return nil
}
