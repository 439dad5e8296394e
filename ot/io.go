//
// io.go
//
// Copyright (c) 2023-2026 Markku Rossi
//
// All rights reserved.

package ot

import (
	"crypto/elliptic"
	"math/big"

	"github.com/cockroachdb/errors"
)

// IO is the byte channel the OT protocols run over. The p2p.Conn
// implements it.
type IO interface {
	SendData(val []byte) error
	SendUint32(val int) error
	SendLabel(val Label, data *LabelData) error
	Flush() error

	ReceiveData() ([]byte, error)
	ReceiveUint32() (int, error)
	ReceiveLabel(val *Label, data *LabelData) error
}

// SendString sends a string value.
func SendString(io IO, str string) error {
	return io.SendData([]byte(str))
}

// ReceiveString receives a string value.
func ReceiveString(io IO) (string, error) {
	data, err := io.ReceiveData()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// sendPoint sends the affine coordinates of a curve point.
func sendPoint(io IO, x, y *big.Int) error {
	if err := io.SendData(x.Bytes()); err != nil {
		return err
	}
	return io.SendData(y.Bytes())
}

// receivePoint receives a curve point into x and y. It fails unless
// the point is on the curve.
func receivePoint(io IO, curve elliptic.Curve, x, y *big.Int) error {
	data, err := io.ReceiveData()
	if err != nil {
		return err
	}
	x.SetBytes(data)
	data, err = io.ReceiveData()
	if err != nil {
		return err
	}
	y.SetBytes(data)
	if !curve.IsOnCurve(x, y) {
		return errors.Newf("point (%x,%x) not on curve %s",
			x.Bytes(), y.Bytes(), curve.Params().Name)
	}
	return nil
}
