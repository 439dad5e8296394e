//
// Copyright (c) 2025-2026 Markku Rossi
//
// All rights reserved.
//

package p2p

import (
	"io"

	"github.com/cockroachdb/errors"
)

// ErrPipeClosed is returned to the peer of an in-process connection
// that has been closed or aborted.
var ErrPipeClosed = errors.New("p2p: pipe closed")

// Pipe creates an in-process connection pair. Data sent to one end
// is received from the other.
func Pipe() (*Conn, *Conn) {
	ar, aw := io.Pipe()
	br, bw := io.Pipe()

	return NewConn(&pipeEnd{r: ar, w: bw}), NewConn(&pipeEnd{r: br, w: aw})
}

type pipeEnd struct {
	r *io.PipeReader
	w *io.PipeWriter
}

// Close ends the write direction with EOF and fails the peer's
// pending writes.
func (p *pipeEnd) Close() error {
	p.w.Close()
	return p.r.CloseWithError(ErrPipeClosed)
}

func (p *pipeEnd) Read(data []byte) (int, error) {
	return p.r.Read(data)
}

func (p *pipeEnd) Write(data []byte) (int, error) {
	return p.w.Write(data)
}
