//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package commit implements hash commitments between parties: the
// pairwise equality check and coin tossing.
package commit

import (
	"bytes"
	"crypto/sha256"
	"hash"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/agmpc/abort"
	"github.com/markkurossi/agmpc/ot"
	"github.com/markkurossi/agmpc/p2p"
	"github.com/markkurossi/agmpc/tensor"
)

// DigestSize is the size of digests in bytes.
const DigestSize = sha256.Size

// Digest is a SHA-256 digest.
type Digest [DigestSize]byte

// HashOnce returns the digest of the concatenation of data.
func HashOnce(data ...[]byte) Digest {
	h := sha256.New()
	for _, d := range data {
		h.Write(d)
	}
	var result Digest
	h.Sum(result[:0])
	return result
}

// HashLabels returns the digest of the labels.
func HashLabels(labels ...ot.Label) Digest {
	h := sha256.New()
	writeLabels(h, labels)
	var result Digest
	h.Sum(result[:0])
	return result
}

func writeLabels(h hash.Hash, labels []ot.Label) {
	var ld ot.LabelData
	for _, l := range labels {
		h.Write(l.Bytes(&ld))
	}
}

// Hasher computes digests over protocol values.
type Hasher struct {
	h hash.Hash
}

// NewHasher creates a new hasher.
func NewHasher() *Hasher {
	return &Hasher{
		h: sha256.New(),
	}
}

// Add adds data to the digest.
func (h *Hasher) Add(data []byte) {
	h.h.Write(data)
}

// AddLabels adds labels to the digest.
func (h *Hasher) AddLabels(labels []ot.Label) {
	writeLabels(h.h, labels)
}

// AddBools adds bits to the digest, one byte per bit.
func (h *Hasher) AddBools(bits []bool) {
	writeBools(h.h, bits)
}

// Sum returns the digest.
func (h *Hasher) Sum() Digest {
	var result Digest
	h.h.Sum(result[:0])
	return result
}

func writeBools(h hash.Hash, bits []bool) {
	var buf [256]byte
	for len(bits) > 0 {
		n := len(bits)
		if n > len(buf) {
			n = len(buf)
		}
		for i := 0; i < n; i++ {
			if bits[i] {
				buf[i] = 1
			} else {
				buf[i] = 0
			}
		}
		h.Write(buf[:n])
		bits = bits[n:]
	}
}

// Feq checks that two parties hold equal data without revealing it
// to the other party before the check.
type Feq struct {
	nw   *p2p.Network
	peer tensor.Party
	h    hash.Hash
}

// NewFeq creates a new equality check with the peer.
func NewFeq(nw *p2p.Network, peer tensor.Party) *Feq {
	return &Feq{
		nw:   nw,
		peer: peer,
		h:    sha256.New(),
	}
}

// Add adds data to the checked value.
func (feq *Feq) Add(data []byte) {
	feq.h.Write(data)
}

// AddLabel adds labels to the checked value.
func (feq *Feq) AddLabel(labels ...ot.Label) {
	writeLabels(feq.h, labels)
}

// AddBools adds bits to the checked value.
func (feq *Feq) AddBools(bits []bool) {
	writeBools(feq.h, bits)
}

// Compare runs the equality check. The lower party commits to its
// digest, the higher party reveals its digest, and the lower party
// opens the commitment. Both parties abort if the digests differ.
func (feq *Feq) Compare(rand io.Reader) error {
	var digest Digest
	feq.h.Sum(digest[:0])

	send := feq.nw.Send(feq.peer)

	if feq.nw.Party() < feq.peer {
		var r [16]byte
		if _, err := io.ReadFull(rand, r[:]); err != nil {
			return err
		}
		com := HashOnce(digest[:], r[:])
		if err := send.SendBytes(com[:]); err != nil {
			return errors.Wrapf(err, "feq commit to peer %d", feq.peer)
		}
		recv, err := feq.nw.RecvFrom(feq.peer)
		if err != nil {
			return errors.Wrapf(err, "feq commit to peer %d", feq.peer)
		}
		var peerDigest Digest
		if err := recv.ReceiveBytes(peerDigest[:]); err != nil {
			return errors.Wrapf(err, "feq digest from peer %d", feq.peer)
		}
		if err := send.SendBytes(r[:]); err != nil {
			return errors.Wrapf(err, "feq open to peer %d", feq.peer)
		}
		if err := send.Flush(); err != nil {
			return errors.Wrapf(err, "feq open to peer %d", feq.peer)
		}
		if peerDigest != digest {
			return abort.Cheatingf("feq: digest mismatch with peer %d",
				feq.peer)
		}
		return nil
	}

	var com Digest
	if err := feq.nw.Recv(feq.peer).ReceiveBytes(com[:]); err != nil {
		return errors.Wrapf(err, "feq commit from peer %d", feq.peer)
	}
	if err := send.SendBytes(digest[:]); err != nil {
		return errors.Wrapf(err, "feq digest to peer %d", feq.peer)
	}
	recv, err := feq.nw.RecvFrom(feq.peer)
	if err != nil {
		return errors.Wrapf(err, "feq digest to peer %d", feq.peer)
	}
	var r [16]byte
	if err := recv.ReceiveBytes(r[:]); err != nil {
		return errors.Wrapf(err, "feq open from peer %d", feq.peer)
	}
	expected := HashOnce(digest[:], r[:])
	if !bytes.Equal(expected[:], com[:]) {
		return abort.Cheatingf("feq: commitment mismatch with peer %d",
			feq.peer)
	}
	return nil
}

// SampleRandom runs a coin toss between all parties and returns the
// jointly random label. Each party commits to its contribution
// before seeing the contributions of its peers.
func SampleRandom(nw *p2p.Network, rand io.Reader) (ot.Label, error) {
	s, err := ot.NewLabel(rand)
	if err != nil {
		return ot.Label{}, err
	}
	var ld ot.LabelData
	own := HashOnce(s.Bytes(&ld))

	peerS := tensor.NewMatrix[ot.Label](nw.Size(), 1)

	err = nw.ForEachPeer(func(peer tensor.Party) error {
		var com Digest
		err := nw.Exchange(peer,
			func(c *p2p.Conn) error {
				return c.SendBytes(own[:])
			},
			func(c *p2p.Conn) error {
				return c.ReceiveBytes(com[:])
			})
		if err != nil {
			return err
		}
		var opened ot.Label
		err = nw.Exchange(peer,
			func(c *p2p.Conn) error {
				var ld ot.LabelData
				return c.SendLabel(s, &ld)
			},
			func(c *p2p.Conn) error {
				var ld ot.LabelData
				return c.ReceiveLabel(&opened, &ld)
			})
		if err != nil {
			return err
		}
		var ld ot.LabelData
		if HashOnce(opened.Bytes(&ld)) != com {
			return abort.Cheatingf("coin toss: invalid opening from peer %d",
				peer)
		}
		peerS.Set(peer, 0, opened)
		return nil
	})
	if err != nil {
		return ot.Label{}, err
	}
	for _, peer := range nw.Peers() {
		s.Xor(peerS.At(peer, 0))
	}
	return s, nil
}
