//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package abort defines the error taxonomy of the protocol. All
// errors are fatal for the session; the package only classifies
// them.
package abort

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrCheating is returned when a MAC, digest, or commitment
	// check fails, or when a garbled table does not decode.
	ErrCheating = errors.New("cheating detected")

	// ErrMisuse is returned for API misuse: wrong party counts,
	// input lengths, out-of-order phases, or forbidden openings.
	ErrMisuse = errors.New("protocol misuse")
)

// Cheatingf creates a new cheating error with the formatted context.
func Cheatingf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrCheating, format, args...)
}

// Misusef creates a new misuse error with the formatted context.
func Misusef(format string, args ...interface{}) error {
	return errors.Wrapf(ErrMisuse, format, args...)
}

// IsCheating tests if the error is caused by detected cheating.
func IsCheating(err error) bool {
	return errors.Is(err, ErrCheating)
}

// IsMisuse tests if the error is caused by API misuse.
func IsMisuse(err error) bool {
	return errors.Is(err, ErrMisuse)
}
