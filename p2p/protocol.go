//
// Copyright (c) 2019-2026 Markku Rossi
//
// All rights reserved.
//

// Package p2p implements the byte channels and the N-party channel
// fabric.
package p2p

import (
	"encoding/binary"
	"io"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/agmpc/ot"
)

var (
	_  ot.IO = &Conn{}
	bo       = binary.BigEndian
)

const (
	numBuffers   = 3
	writeBufSize = 64 * 1024
	readBufSize  = 1024 * 1024

	// MaxDataSize is the maximum length of a SendData payload.
	MaxDataSize = 1 << 30
)

// Conn implements a protocol connection. A Conn may be used by two
// goroutines at the same time: one sending and one receiving.
type Conn struct {
	conn      io.ReadWriter
	writeBuf  []byte
	writePos  int
	readBuf   []byte
	readStart int
	readEnd   int
	Stats     IOStats

	fromWriter chan []byte
	toWriter   chan []byte
	errMu      sync.Mutex
	writerErr  error
	closeOnce  sync.Once
	closeErr   error
}

// IOStats implements I/O statistics.
type IOStats struct {
	Sent    *atomic.Uint64
	Recvd   *atomic.Uint64
	Flushed *atomic.Uint64
}

// NewIOStats creates a new I/O statistics object.
func NewIOStats() IOStats {
	return IOStats{
		Sent:    new(atomic.Uint64),
		Recvd:   new(atomic.Uint64),
		Flushed: new(atomic.Uint64),
	}
}

// Add adds the argument stats to this IOStats and returns the sum.
func (stats IOStats) Add(o IOStats) IOStats {
	result := NewIOStats()
	result.Sent.Store(stats.Sent.Load() + o.Sent.Load())
	result.Recvd.Store(stats.Recvd.Load() + o.Recvd.Load())
	result.Flushed.Store(stats.Flushed.Load() + o.Flushed.Load())
	return result
}

// Sum returns sum of sent and received bytes.
func (stats IOStats) Sum() uint64 {
	return stats.Sent.Load() + stats.Recvd.Load()
}

// NewConn creates a new connection around the argument connection.
func NewConn(conn io.ReadWriter) *Conn {
	c := &Conn{
		conn:       conn,
		readBuf:    make([]byte, readBufSize),
		fromWriter: make(chan []byte, numBuffers),
		toWriter:   make(chan []byte, numBuffers),
		Stats:      NewIOStats(),
	}

	go c.writer()

	c.writeBuf = <-c.fromWriter

	return c
}

func (c *Conn) writer() {
	for i := 0; i < numBuffers; i++ {
		c.fromWriter <- make([]byte, writeBufSize)
	}

	var err error
	for buf := range c.toWriter {
		if err == nil {
			_, err = c.conn.Write(buf)
		}
		if err != nil {
			c.errMu.Lock()
			c.writerErr = err
			c.errMu.Unlock()
		}
		c.fromWriter <- buf[0:cap(buf)]
	}
	close(c.fromWriter)
}

// Flush flushed any pending data in the connection.
func (c *Conn) Flush() error {
	if c.writePos > 0 {
		c.Stats.Sent.Add(uint64(c.writePos))
		c.toWriter <- c.writeBuf[0:c.writePos]

		next := <-c.fromWriter
		if err := c.writeErr(); err != nil {
			return err
		}

		c.writeBuf = next
		c.writePos = 0
		c.Stats.Flushed.Add(1)
	}
	return nil
}

func (c *Conn) writeErr() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.writerErr
}

// Close flushes any pending data and closes the connection.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		err := c.Flush()

		close(c.toWriter)
		for range c.fromWriter {
		}
		if err == nil {
			err = c.writeErr()
		}
		if cerr := c.closeTransport(); err == nil {
			err = cerr
		}
		c.closeErr = err
	})
	return c.closeErr
}

// Abort closes the underlying transport without flushing pending
// data. Any blocked reads and writes of both endpoints fail. Abort
// may be called from any goroutine.
func (c *Conn) Abort() error {
	return c.closeTransport()
}

func (c *Conn) closeTransport() error {
	closer, ok := c.conn.(io.Closer)
	if ok {
		return closer.Close()
	}
	return nil
}

func (c *Conn) write(data []byte) error {
	for len(data) > 0 {
		if c.writePos == len(c.writeBuf) {
			if err := c.Flush(); err != nil {
				return err
			}
		}
		n := copy(c.writeBuf[c.writePos:], data)
		c.writePos += n
		data = data[n:]
	}
	return nil
}

// SendByte sends a byte value.
func (c *Conn) SendByte(val byte) error {
	var buf [1]byte
	buf[0] = val
	return c.write(buf[:])
}

// SendUint32 sends an uint32 value.
func (c *Conn) SendUint32(val int) error {
	var buf [4]byte
	bo.PutUint32(buf[:], uint32(val))
	return c.write(buf[:])
}

// SendData sends length-prefixed binary data.
func (c *Conn) SendData(val []byte) error {
	if len(val) > MaxDataSize {
		return errors.Newf("data too long: %d", len(val))
	}
	if err := c.SendUint32(len(val)); err != nil {
		return err
	}
	return c.write(val)
}

// SendBytes sends raw bytes. The receiver must know the length.
func (c *Conn) SendBytes(val []byte) error {
	return c.write(val)
}

// SendLabel sends an OT label.
func (c *Conn) SendLabel(val ot.Label, data *ot.LabelData) error {
	return c.write(val.Bytes(data))
}

// SendLabels sends labels.
func (c *Conn) SendLabels(labels []ot.Label) error {
	var data ot.LabelData
	for _, l := range labels {
		if err := c.write(l.Bytes(&data)); err != nil {
			return err
		}
	}
	return nil
}

// SendBools sends bits, one per byte.
func (c *Conn) SendBools(bits []bool) error {
	var buf [1024]byte
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
		if err := c.write(buf[:n]); err != nil {
			return err
		}
		bits = bits[n:]
	}
	return nil
}

// SendString sends a string value.
func (c *Conn) SendString(val string) error {
	return c.SendData([]byte(val))
}

// fill ensures the input buffer holds at least n bytes, n <=
// readBufSize. Any unused data in the buffer is moved to the
// beginning of the buffer.
func (c *Conn) fill(n int) error {
	if c.readStart+n <= c.readEnd {
		return nil
	}
	if c.readStart < c.readEnd {
		copy(c.readBuf[0:], c.readBuf[c.readStart:c.readEnd])
		c.readEnd -= c.readStart
		c.readStart = 0
	} else {
		c.readStart = 0
		c.readEnd = 0
	}
	for c.readStart+n > c.readEnd {
		got, err := c.conn.Read(c.readBuf[c.readEnd:])
		c.Stats.Recvd.Add(uint64(got))
		c.readEnd += got
		if err != nil && c.readStart+n > c.readEnd {
			if err == io.EOF && c.readEnd > 0 {
				return io.ErrUnexpectedEOF
			}
			return err
		}
	}
	return nil
}

func (c *Conn) read(data []byte) error {
	for len(data) > 0 {
		if c.readStart == c.readEnd {
			if err := c.fill(1); err != nil {
				return err
			}
		}
		n := copy(data, c.readBuf[c.readStart:c.readEnd])
		c.readStart += n
		data = data[n:]
	}
	return nil
}

// ReceiveByte receives a byte value.
func (c *Conn) ReceiveByte() (byte, error) {
	if err := c.fill(1); err != nil {
		return 0, err
	}
	val := c.readBuf[c.readStart]
	c.readStart++
	return val, nil
}

// ReceiveUint32 receives an uint32 value.
func (c *Conn) ReceiveUint32() (int, error) {
	if err := c.fill(4); err != nil {
		return 0, err
	}
	val := bo.Uint32(c.readBuf[c.readStart:])
	c.readStart += 4

	return int(val), nil
}

// ReceiveData receives length-prefixed binary data.
func (c *Conn) ReceiveData() ([]byte, error) {
	n, err := c.ReceiveUint32()
	if err != nil {
		return nil, err
	}
	if n > MaxDataSize {
		return nil, errors.Newf("data too long: %d", n)
	}
	result := make([]byte, n)
	if err := c.read(result); err != nil {
		return nil, err
	}
	return result, nil
}

// ReceiveBytes receives len(buf) raw bytes into buf.
func (c *Conn) ReceiveBytes(buf []byte) error {
	return c.read(buf)
}

// ReceiveLabel receives an OT label.
func (c *Conn) ReceiveLabel(val *ot.Label, data *ot.LabelData) error {
	if err := c.read(data[:]); err != nil {
		return err
	}
	val.SetData(data)
	return nil
}

// ReceiveLabels receives len(labels) labels.
func (c *Conn) ReceiveLabels(labels []ot.Label) error {
	var data ot.LabelData
	for i := range labels {
		if err := c.ReceiveLabel(&labels[i], &data); err != nil {
			return err
		}
	}
	return nil
}

// ReceiveBools receives len(bits) bits, one per byte. Any non-zero
// byte is true.
func (c *Conn) ReceiveBools(bits []bool) error {
	var buf [1024]byte
	for ofs := 0; ofs < len(bits); {
		n := len(bits) - ofs
		if n > len(buf) {
			n = len(buf)
		}
		if err := c.read(buf[:n]); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			bits[ofs+i] = buf[i] != 0
		}
		ofs += n
	}
	return nil
}

// ReceiveString receives a string value.
func (c *Conn) ReceiveString() (string, error) {
	data, err := c.ReceiveData()
	if err != nil {
		return "", err
	}
	return string(data), nil
}
