//
// pipe.go
//
// Copyright (c) 2023-2026 Markku Rossi
//
// All rights reserved.

package ot

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"
)

var (
	_ IO = &Pipe{}
)

// Pipe implements the IO interface with in-memory io.Pipe.
type Pipe struct {
	r *io.PipeReader
	w *io.PipeWriter
	b *bufio.Writer
}

// NewPipe creates a new in-memory pipe.
func NewPipe() (*Pipe, *Pipe) {
	ar, aw := io.Pipe()
	br, bw := io.Pipe()

	return &Pipe{
			r: ar,
			w: bw,
			b: bufio.NewWriterSize(bw, 64*1024),
		}, &Pipe{
			r: br,
			w: aw,
			b: bufio.NewWriterSize(aw, 64*1024),
		}
}

// SendData sends binary data.
func (p *Pipe) SendData(val []byte) error {
	if err := p.SendUint32(len(val)); err != nil {
		return err
	}
	_, err := p.b.Write(val)
	return err
}

// SendUint32 sends an uint32 value.
func (p *Pipe) SendUint32(val int) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(val))
	_, err := p.b.Write(buf[:])
	return err
}

// SendLabel sends a label.
func (p *Pipe) SendLabel(val Label, data *LabelData) error {
	_, err := p.b.Write(val.Bytes(data))
	return err
}

// Flush flushed any pending data in the connection.
func (p *Pipe) Flush() error {
	return p.b.Flush()
}

// Close closes the pipe.
func (p *Pipe) Close() error {
	if err := p.b.Flush(); err != nil {
		return err
	}
	return p.w.Close()
}

// ReceiveData receives binary data.
func (p *Pipe) ReceiveData() ([]byte, error) {
	l, err := p.ReceiveUint32()
	if err != nil {
		return nil, err
	}
	if l > 64*1024*1024 {
		return nil, errors.Newf("pipe data too long: %d", l)
	}
	buf := make([]byte, l)
	if _, err := io.ReadFull(p.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReceiveUint32 receives an uint32 value.
func (p *Pipe) ReceiveUint32() (int, error) {
	var buf [4]byte
	if _, err := io.ReadFull(p.r, buf[:]); err != nil {
		return 0, err
	}
	return int(binary.BigEndian.Uint32(buf[:])), nil
}

// ReceiveLabel receives a label.
func (p *Pipe) ReceiveLabel(val *Label, data *LabelData) error {
	if _, err := io.ReadFull(p.r, data[:]); err != nil {
		return err
	}
	val.SetData(data)
	return nil
}
