//go:build !js

package wstest

import (
	"context"
	"errors"
	"net"

	"github.com/gobwas/ws"
)

// Peer accepts WebSocket connections on a loopback listener and hands
// them out as PeerConns for tests that script frames by hand.
type Peer struct {
	// URL is the ws:// URL of the listener.
	URL string

	ln    net.Listener
	conns chan *PeerConn
}

// NewPeer starts a Peer.
func NewPeer() (*Peer, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	p := &Peer{
		URL:   "ws://" + ln.Addr().String(),
		ln:    ln,
		conns: make(chan *PeerConn, 4),
	}
	go p.serve()
	return p, nil
}

func (p *Peer) serve() {
	defer close(p.conns)

	for {
		c, err := p.ln.Accept()
		if err != nil {
			return
		}
		_, err = ws.Upgrade(c)
		if err != nil {
			c.Close()
			continue
		}
		p.conns <- &PeerConn{Conn: c}
	}
}

// Accept returns the next upgraded connection.
func (p *Peer) Accept(ctx context.Context) (*PeerConn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case c, ok := <-p.conns:
		if !ok {
			return nil, errors.New("peer closed")
		}
		return c, nil
	}
}

// Close stops accepting connections.
func (p *Peer) Close() error {
	return p.ln.Close()
}

// PeerConn is the server side of one connection.
type PeerConn struct {
	net.Conn
}

// WriteFrame writes f unmasked.
func (c *PeerConn) WriteFrame(f ws.Frame) error {
	return ws.WriteFrame(c, f)
}

// ReadFrame reads the next frame and unmasks its payload.
func (c *PeerConn) ReadFrame() (ws.Frame, error) {
	f, err := ws.ReadFrame(c)
	if err != nil {
		return ws.Frame{}, err
	}
	if f.Header.Masked {
		ws.Cipher(f.Payload, f.Header.Mask, 0)
		f.Header.Masked = false
	}
	return f, nil
}
