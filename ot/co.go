//
// co.go
//
// Copyright (c) 2019-2026 Markku Rossi
//
// All rights reserved.
//
// Chou Orlandi OT - The Simplest Protocol for Oblivious Transfer.
//  - https://eprint.iacr.org/2015/267.pdf

/*

This implementation is derived from the EMP Toolkit's co.h
(https://github.com/emp-toolkit/emp-ot/blob/master/emp-ot/co.h)
with original license as follows:

MIT License

Copyright (c) 2018 Xiao Wang (wangxiao1254@gmail.com)

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.

Enquiries about further applications and development opportunities are welcome.

*/

package ot

import (
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"hash"
	"io"
	"math/big"

	"github.com/cockroachdb/errors"
)

var (
	bo    = binary.BigEndian
	_  OT = &CO{}
)

// CO implements the Chou-Orlandi 1-out-of-2 base OT. It seeds the
// IKNP extension.
type CO struct {
	curve elliptic.Curve
	hash  hash.Hash
	rand  io.Reader
	io    IO
}

// NewCO creates a new CO OT implementing the OT interface. The rand
// provides the scalars for the transfers.
func NewCO(r io.Reader) *CO {
	if r == nil {
		r = rand.Reader
	}
	return &CO{
		curve: elliptic.P256(),
		hash:  sha256.New(),
		rand:  r,
	}
}

// InitSender initializes the OT sender.
func (co *CO) InitSender(io IO) error {
	co.io = io
	if err := SendString(io, co.curve.Params().Name); err != nil {
		return err
	}
	return io.Flush()
}

// InitReceiver initializes the OT receiver.
func (co *CO) InitReceiver(io IO) error {
	co.io = io

	name, err := ReceiveString(io)
	if err != nil {
		return err
	}
	if name != co.curve.Params().Name {
		return errors.Newf("invalid curve %s, expected %s",
			name, co.curve.Params().Name)
	}
	return nil
}

// Send sends the wire labels with OT.
func (co *CO) Send(wires []Wire) error {
	curveParams := co.curve.Params()

	// a <- Zp
	a, err := rand.Int(co.rand, curveParams.N)
	if err != nil {
		return err
	}
	aBytes := a.Bytes()

	// A = G^a
	Ax, Ay := co.curve.ScalarBaseMult(aBytes)

	if err := sendPoint(co.io, Ax, Ay); err != nil {
		return err
	}
	if err := co.io.Flush(); err != nil {
		return err
	}

	// Aa = A^a
	Aax, Aay := co.curve.ScalarMult(Ax, Ay, aBytes)

	// a:    {x,y}
	// a^-1: {x,-y}
	// AaInv = {Aax, -Aay}
	AaInvx := big.NewInt(0).Set(Aax)
	AaInvy := big.NewInt(0).Sub(curveParams.P, Aay)

	Bx := big.NewInt(0)
	By := big.NewInt(0)

	for i := 0; i < len(wires); i++ {
		if err := receivePoint(co.io, co.curve, Bx, By); err != nil {
			return errors.Wrapf(err, "CO: choice %d", i)
		}

		Bax, Bay := co.curve.ScalarMult(Bx, By, aBytes)
		Bix, Biy := co.curve.Add(Bax, Bay, AaInvx, AaInvy)

		var ld LabelData
		e0 := co.kdf(Bax, Bay, uint64(i))
		xor(e0, wires[i].L0.Bytes(&ld))
		if err := co.io.SendData(e0); err != nil {
			return err
		}
		e1 := co.kdf(Bix, Biy, uint64(i))
		xor(e1, wires[i].L1.Bytes(&ld))
		if err := co.io.SendData(e1); err != nil {
			return err
		}
	}
	return co.io.Flush()
}

// Receive receives the wire labels with OT based on the flag values.
func (co *CO) Receive(flags []bool, result []Label) error {
	curveParams := co.curve.Params()

	Ax := big.NewInt(0)
	Ay := big.NewInt(0)
	if err := receivePoint(co.io, co.curve, Ax, Ay); err != nil {
		return errors.Wrap(err, "CO: sender")
	}

	bs := make([][]byte, len(flags))

	for i := 0; i < len(flags); i++ {
		// b <= Zp
		b, err := rand.Int(co.rand, curveParams.N)
		if err != nil {
			return err
		}
		bs[i] = b.Bytes()

		Bx, By := co.curve.ScalarBaseMult(bs[i])
		if flags[i] {
			Bx, By = co.curve.Add(Bx, By, Ax, Ay)
		}
		if err := sendPoint(co.io, Bx, By); err != nil {
			return err
		}
	}
	if err := co.io.Flush(); err != nil {
		return err
	}

	for i := 0; i < len(flags); i++ {
		Asx, Asy := co.curve.ScalarMult(Ax, Ay, bs[i])
		mask := co.kdf(Asx, Asy, uint64(i))

		e0, err := co.io.ReceiveData()
		if err != nil {
			return err
		}
		e1, err := co.io.ReceiveData()
		if err != nil {
			return err
		}
		if len(e0) != LabelSize || len(e1) != LabelSize {
			return errors.Newf("CO: invalid ciphertext length %d/%d",
				len(e0), len(e1))
		}
		if flags[i] {
			xor(mask, e1)
		} else {
			xor(mask, e0)
		}
		result[i].SetBytes(mask)
	}
	return nil
}

func (co *CO) kdf(x, y *big.Int, id uint64) []byte {
	co.hash.Reset()
	co.hash.Write(x.Bytes())
	co.hash.Write(y.Bytes())

	var tmp [8]byte
	bo.PutUint64(tmp[:], id)
	co.hash.Write(tmp[:])

	return co.hash.Sum(nil)[:LabelSize]
}

// xor xors src into dst. The function panics if src is shorter than
// dst.
func xor(dst, src []byte) {
	for i := range dst {
		dst[i] ^= src[i]
	}
}
