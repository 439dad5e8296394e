//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

package p2p

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/markkurossi/agmpc/tensor"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Channel tags of a pair's two connections.
const (
	ChannelA byte = 'a'
	ChannelB byte = 'b'
)

const handshakeTimeout = 10 * time.Second

// Network implements the channel fabric of one party. Every pair of
// parties shares two duplex connections, a and b.
type Network struct {
	party tensor.Party
	size  int
	a     []*Conn
	b     []*Conn
	log   *zap.SugaredLogger
}

func newNetwork(party tensor.Party, size int,
	log *zap.SugaredLogger) *Network {

	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Network{
		party: party,
		size:  size,
		a:     make([]*Conn, size+1),
		b:     make([]*Conn, size+1),
		log:   log,
	}
}

// NewPipeNetworks creates in-process networks for the parties
// 1..n. The network of party p is at index p-1.
func NewPipeNetworks(n int) []*Network {
	result := make([]*Network, n)
	for i := 0; i < n; i++ {
		result[i] = newNetwork(tensor.Party(i+1), n, nil)
	}
	for i := 1; i <= n; i++ {
		for j := i + 1; j <= n; j++ {
			a0, a1 := Pipe()
			b0, b1 := Pipe()
			result[i-1].a[j], result[j-1].a[i] = a0, a1
			result[i-1].b[j], result[j-1].b[i] = b0, b1
		}
	}
	return result
}

// Party returns the network's own party number.
func (nw *Network) Party() tensor.Party {
	return nw.party
}

// Size returns the number of parties.
func (nw *Network) Size() int {
	return nw.size
}

// Peers returns the peer party numbers in ascending order.
func (nw *Network) Peers() []tensor.Party {
	var result []tensor.Party
	for p := 1; p <= nw.size; p++ {
		if tensor.Party(p) != nw.party {
			result = append(result, tensor.Party(p))
		}
	}
	return result
}

func (nw *Network) checkPeer(peer tensor.Party) {
	if peer < 1 || int(peer) > nw.size || peer == nw.party {
		panic(errors.Newf("%v: invalid peer %v", nw.party, peer))
	}
}

// Send returns the connection for messages to the peer.
func (nw *Network) Send(peer tensor.Party) *Conn {
	nw.checkPeer(peer)
	if nw.party < peer {
		return nw.a[peer]
	}
	return nw.b[peer]
}

// Recv returns the connection for messages from the peer.
func (nw *Network) Recv(peer tensor.Party) *Conn {
	nw.checkPeer(peer)
	if peer < nw.party {
		return nw.a[peer]
	}
	return nw.b[peer]
}

// RecvFrom flushes any pending data to the peer and returns the
// connection for messages from the peer.
func (nw *Network) RecvFrom(peer tensor.Party) (*Conn, error) {
	if err := nw.Flush(peer); err != nil {
		return nil, err
	}
	return nw.Recv(peer), nil
}

// Flush flushes the send connection of the peer.
func (nw *Network) Flush(peer tensor.Party) error {
	if err := nw.Send(peer).Flush(); err != nil {
		return errors.Wrapf(err, "flush to peer %d", peer)
	}
	return nil
}

// Exchange runs send on the peer's send connection and recv on the
// peer's receive connection concurrently. The send connection is
// flushed after send returns.
func (nw *Network) Exchange(peer tensor.Party, send, recv func(c *Conn) error) error {
	var g errgroup.Group
	g.Go(func() error {
		c := nw.Send(peer)
		if err := send(c); err != nil {
			return errors.Wrapf(err, "send to peer %d", peer)
		}
		if err := c.Flush(); err != nil {
			return errors.Wrapf(err, "flush to peer %d", peer)
		}
		return nil
	})
	g.Go(func() error {
		if err := recv(nw.Recv(peer)); err != nil {
			return errors.Wrapf(err, "receive from peer %d", peer)
		}
		return nil
	})
	return g.Wait()
}

// ForEachPeer calls fn for every peer concurrently. It returns the
// first error.
func (nw *Network) ForEachPeer(fn func(peer tensor.Party) error) error {
	var g errgroup.Group
	for _, peer := range nw.Peers() {
		g.Go(func() error {
			return fn(peer)
		})
	}
	return g.Wait()
}

// Stats returns the sum of the I/O statistics of all connections.
func (nw *Network) Stats() IOStats {
	result := NewIOStats()
	for _, peer := range nw.Peers() {
		send, recv := nw.ChannelStats(peer)
		result = result.Add(send).Add(recv)
	}
	return result
}

// ChannelStats returns the I/O statistics of the peer's send and
// receive connections.
func (nw *Network) ChannelStats(peer tensor.Party) (send, recv IOStats) {
	return nw.Send(peer).Stats, nw.Recv(peer).Stats
}

// Close flushes and closes all connections.
func (nw *Network) Close() error {
	var g errgroup.Group
	for _, peer := range nw.Peers() {
		for _, c := range []*Conn{nw.a[peer], nw.b[peer]} {
			if c == nil {
				continue
			}
			g.Go(func() error {
				return c.Close()
			})
		}
	}
	return g.Wait()
}

// Abort closes all connections without flushing. Peers blocked on
// the connections fail.
func (nw *Network) Abort() {
	for _, peer := range nw.Peers() {
		for _, c := range []*Conn{nw.a[peer], nw.b[peer]} {
			if c != nil {
				c.Abort()
			}
		}
	}
}

// DialNetwork creates a TCP network for the party. The addrs list
// the listening addresses of the parties 1..len(addrs). The party
// listens on its own address, dials the parties above it, and accepts
// connections from the parties below it. Connections must present
// the session id.
func DialNetwork(ctx context.Context, party tensor.Party, addrs []string,
	session uuid.UUID, log *zap.SugaredLogger) (*Network, error) {

	if party < 1 || int(party) > len(addrs) {
		return nil, errors.Newf("invalid party %d for %d addresses",
			party, len(addrs))
	}
	nw := newNetwork(party, len(addrs), log)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addrs[party-1])
	if err != nil {
		return nil, errors.Wrapf(err, "listen %s", addrs[party-1])
	}
	defer listener.Close()

	g, gctx := errgroup.WithContext(ctx)

	go func() {
		<-gctx.Done()
		listener.Close()
	}()

	expected := 2 * (int(party) - 1)
	if expected > 0 {
		g.Go(func() error {
			return nw.acceptLoop(listener, session, expected)
		})
	}
	for p := party + 1; int(p) <= len(addrs); p++ {
		for _, tag := range []byte{ChannelA, ChannelB} {
			g.Go(func() error {
				c, err := nw.dial(gctx, addrs[p-1], p, tag, session)
				if err != nil {
					return err
				}
				nw.install(p, tag, c)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		nw.Abort()
		return nil, err
	}
	nw.log.Infof("connected to %d peers", len(addrs)-1)

	return nw, nil
}

func (nw *Network) install(peer tensor.Party, tag byte, c *Conn) {
	if tag == ChannelA {
		nw.a[peer] = c
	} else {
		nw.b[peer] = c
	}
}

func (nw *Network) dial(ctx context.Context, addr string, peer tensor.Party,
	tag byte, session uuid.UUID) (*Conn, error) {

	var d net.Dialer
	for {
		nw.log.Debugf("connecting to peer %d at %s (%c)", peer, addr, tag)
		nc, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			delay := 500 * time.Millisecond
			nw.log.Debugf("connect to %s failed, retrying in %s: %v",
				addr, delay, err)
			select {
			case <-ctx.Done():
				return nil, errors.Wrapf(ctx.Err(), "dial peer %d", peer)
			case <-time.After(delay):
			}
			continue
		}
		conn := NewConn(nc)
		if err := sendHello(conn, session, nw.party, tag); err != nil {
			conn.Abort()
			return nil, errors.Wrapf(err, "handshake with peer %d", peer)
		}
		ack, err := conn.ReceiveByte()
		if err != nil {
			conn.Abort()
			return nil, errors.Wrapf(err, "handshake with peer %d", peer)
		}
		if ack != tag {
			conn.Abort()
			return nil, errors.Newf("peer %d rejected channel %c", peer, tag)
		}
		nw.log.Debugf("connected to peer %d (%c)", peer, tag)
		return conn, nil
	}
}

func sendHello(conn *Conn, session uuid.UUID, party tensor.Party,
	tag byte) error {

	if err := conn.SendBytes(session[:]); err != nil {
		return err
	}
	if err := conn.SendUint32(int(party)); err != nil {
		return err
	}
	if err := conn.SendByte(tag); err != nil {
		return err
	}
	return conn.Flush()
}

func (nw *Network) acceptLoop(listener net.Listener, session uuid.UUID,
	expected int) error {

	seen := make(map[[2]int]bool)
	for len(seen) < expected {
		nc, err := listener.Accept()
		if err != nil {
			return errors.Wrap(err, "accept")
		}
		conn := NewConn(nc)

		nc.SetDeadline(time.Now().Add(handshakeTimeout))
		peer, tag, err := nw.receiveHello(conn, session)
		if err != nil {
			nw.log.Warnf("rejected connection from %s: %v",
				nc.RemoteAddr(), err)
			conn.Abort()
			continue
		}
		key := [2]int{int(peer), int(tag)}
		if seen[key] {
			nw.log.Warnf("duplicate channel %c from peer %d", tag, peer)
			conn.Abort()
			continue
		}
		if err := conn.SendByte(tag); err != nil {
			conn.Abort()
			continue
		}
		if err := conn.Flush(); err != nil {
			conn.Abort()
			continue
		}
		nc.SetDeadline(time.Time{})
		seen[key] = true
		nw.install(peer, tag, conn)
		nw.log.Debugf("accepted peer %d (%c)", peer, tag)
	}
	return nil
}

func (nw *Network) receiveHello(conn *Conn, session uuid.UUID) (
	tensor.Party, byte, error) {

	var id uuid.UUID
	if err := conn.ReceiveBytes(id[:]); err != nil {
		return 0, 0, err
	}
	if id != session {
		return 0, 0, errors.Newf("foreign session %s", id)
	}
	p, err := conn.ReceiveUint32()
	if err != nil {
		return 0, 0, err
	}
	peer := tensor.Party(p)
	if peer < 1 || peer >= nw.party {
		return 0, 0, errors.Newf("unexpected peer %d", peer)
	}
	tag, err := conn.ReceiveByte()
	if err != nil {
		return 0, 0, err
	}
	if tag != ChannelA && tag != ChannelB {
		return 0, 0, errors.Newf("invalid channel tag %x", tag)
	}
	return peer, tag, nil
}

// RunLocal runs fn for the parties 1..n over in-process networks. If
// any party fails, the networks are aborted so that the other parties
// fail fast. RunLocal returns the error of the first failing party.
func RunLocal(n int, fn func(nw *Network) error) error {
	nws := NewPipeNetworks(n)

	var once sync.Once
	var first error

	var wg sync.WaitGroup
	for _, nw := range nws {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := fn(nw)
			if err != nil {
				once.Do(func() {
					first = errors.Wrapf(err, "party %d", nw.Party())
					for _, o := range nws {
						o.Abort()
					}
				})
			}
		}()
	}
	wg.Wait()
	if first == nil {
		for _, nw := range nws {
			nw.Close()
		}
	}
	return first
}
