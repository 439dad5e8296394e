//
// Copyright (c) 2025-2026 Markku Rossi
//
// All rights reserved.
//

// Package env implements global environment for the MPC system.
package env

import (
	"crypto/rand"
	"crypto/sha256"
	"io"
	"sync"

	"github.com/markkurossi/text/superscript"
	"go.uber.org/zap"
	"golang.org/x/crypto/chacha20"
)

// DefaultSSP is the default statistical security parameter.
const DefaultSSP = 40

// Config defines the global system configuration for the MPC system.
// It configures system operation for all MPC modules. Config must not
// be modified after being passed to any MPC module.  It is safe for
// concurrent use by multiple modules as they do not modify it.
type Config struct {
	// Rand is the source of entropy. If unset, crypto/rand is used.
	Rand io.Reader

	// Logger receives protocol diagnostics. If unset, nothing is
	// logged.
	Logger *zap.SugaredLogger

	// SSP is the statistical security parameter. If unset,
	// DefaultSSP is used.
	SSP int

	// Verbose enables per-phase progress reporting.
	Verbose bool
}

// GetRandom returns the source of entropy for garbling, OT, and other
// cryptography operations.
func (config *Config) GetRandom() io.Reader {
	if config != nil && config.Rand != nil {
		return config.Rand
	}
	return rand.Reader
}

// GetLogger returns the configured logger or a no-op logger.
func (config *Config) GetLogger() *zap.SugaredLogger {
	if config != nil && config.Logger != nil {
		return config.Logger
	}
	return zap.NewNop().Sugar()
}

// PartyLogger returns the logger scoped to the party.
func (config *Config) PartyLogger(party int) *zap.SugaredLogger {
	return config.GetLogger().Named("P" + superscript.Itoa(party))
}

// Progress returns the logging function for per-phase progress
// reports. The reports are logged at the info level in verbose mode
// and at the debug level otherwise.
func (config *Config) Progress(log *zap.SugaredLogger) func(
	template string, args ...interface{}) {

	if config != nil && config.Verbose {
		return log.Infof
	}
	return log.Debugf
}

// GetSSP returns the statistical security parameter.
func (config *Config) GetSSP() int {
	if config != nil && config.SSP > 0 {
		return config.SSP
	}
	return DefaultSSP
}

// NewSeededRand creates a deterministic random source from the
// seed. The stream is the chacha20 keystream keyed with SHA-256 of
// the seed. It is intended for reproducible test runs; the returned
// reader is safe for concurrent use.
func NewSeededRand(seed []byte) io.Reader {
	key := sha256.Sum256(seed)
	var nonce [chacha20.NonceSize]byte

	c, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
	if err != nil {
		panic(err)
	}
	return &seededRand{
		c: c,
	}
}

type seededRand struct {
	m sync.Mutex
	c *chacha20.Cipher
}

func (r *seededRand) Read(p []byte) (int, error) {
	r.m.Lock()
	defer r.m.Unlock()

	for i := range p {
		p[i] = 0
	}
	r.c.XORKeyStream(p, p)
	return len(p), nil
}
