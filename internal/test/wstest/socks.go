//go:build !js

package wstest

import (
	"context"
	"net"
	"sync/atomic"

	socks5 "github.com/armon/go-socks5"
)

// Proxy is a loopback SOCKS5 proxy without authentication.
type Proxy struct {
	// Addr is the host:port of the proxy.
	Addr string

	ln    net.Listener
	dials int64
}

// NewProxy starts a Proxy.
func NewProxy() (*Proxy, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	p := &Proxy{
		Addr: ln.Addr().String(),
		ln:   ln,
	}
	srv, err := socks5.New(&socks5.Config{
		Dial: func(ctx context.Context, network, addr string) (net.Conn, error) {
			atomic.AddInt64(&p.dials, 1)
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		},
	})
	if err != nil {
		ln.Close()
		return nil, err
	}
	go srv.Serve(ln)
	return p, nil
}

// Dials returns the number of connections made through the proxy.
func (p *Proxy) Dials() int {
	return int(atomic.LoadInt64(&p.dials))
}

// Close stops the proxy.
func (p *Proxy) Close() error {
	return p.ln.Close()
}
