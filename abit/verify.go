//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package abit

import (
	"github.com/markkurossi/agmpc/abort"
	"github.com/markkurossi/agmpc/ot"
	"github.com/markkurossi/agmpc/p2p"
	"github.com/markkurossi/agmpc/tensor"
)

// Verify checks the MAC relation of bits directly by revealing Δ and
// the keys to the peers. Verify destroys the security of the session
// and is intended for debugging and tests only.
func (e *Engine) Verify(bits *Bits) error {
	return e.nw.ForEachPeer(func(peer tensor.Party) error {
		var delta ot.Label
		keys := make([]ot.Label, bits.Len())

		err := e.nw.Exchange(peer,
			func(c *p2p.Conn) error {
				var ld ot.LabelData
				if err := c.SendLabel(e.delta, &ld); err != nil {
					return err
				}
				return c.SendLabels(bits.Key.Row(peer))
			},
			func(c *p2p.Conn) error {
				var ld ot.LabelData
				if err := c.ReceiveLabel(&delta, &ld); err != nil {
					return err
				}
				return c.ReceiveLabels(keys)
			})
		if err != nil {
			return err
		}
		mac := bits.MAC.Row(peer)
		for i := range keys {
			keys[i].XorIf(delta, bits.Value[i])
			if !keys[i].Equal(mac[i]) {
				return abort.Cheatingf("abit verify: MAC %d mismatch with peer %d",
					i, peer)
			}
		}
		return nil
	})
}
