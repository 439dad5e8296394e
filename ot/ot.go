//
// ot.go
//
// Copyright (c) 2023-2026 Markku Rossi
//
// All rights reserved.

// Package ot implements the 128-bit label algebra and the oblivious
// transfer layer of the authenticated bits: the Chou-Orlandi base OT,
// the IKNP correlated OT extension with the KOS consistency check,
// the fixed-key AES permutation, and the AES-CTR PRG.
package ot

// OT is the base 1-out-of-2 oblivious transfer that seeds the IKNP
// extension. The sender sends one Wire per transfer and the receiver
// selects one label of each with its flags.
type OT interface {
	InitSender(io IO) error
	InitReceiver(io IO) error
	Send(wires []Wire) error
	Receive(flags []bool, result []Label) error
}
