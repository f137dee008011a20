//go:build !js

package pollws

import (
	"crypto/tls"
	"net/http"
	"time"
)

const (
	// defaultReadLimit bounds a single message unless Options.ReadLimit is set.
	defaultReadLimit = 32768

	// defaultWriteTimeout bounds a single frame write unless
	// Options.WriteTimeout is set.
	defaultWriteTimeout = time.Millisecond * 500
)

// Options represents the options available to pass to Open.
type Options struct {
	// TLSConfig is used for wss:// URLs.
	// nil means the crypto/tls defaults with the URL's host as ServerName.
	TLSConfig *tls.Config

	// Header holds extra HTTP headers sent with the handshake request.
	Header http.Header

	// Subprotocols lists the subprotocols to negotiate with the server.
	Subprotocols []string

	// ProxyAddr is the host:port of a SOCKS5 proxy to dial through.
	// Empty means dialing directly.
	ProxyAddr string

	// HandshakeTimeout bounds every connection attempt made by Open and
	// Revive. Zero means only the passed context applies.
	HandshakeTimeout time.Duration

	// ReadLimit is the maximum size of a single message in bytes.
	// A larger message moves the channel to StateDisconnected.
	// Zero means 32768.
	ReadLimit int64

	// WriteTimeout bounds every frame written by Write, Close and the
	// automatic replies to pings and close frames, so a peer that stops
	// reading cannot stall the caller. A frame that is only partly written
	// in time, or any timed out write over TLS, moves the channel to
	// StateDisconnected.
	// Zero means 500ms.
	WriteTimeout time.Duration

	// Logf receives failures that are absorbed by the channel, such as
	// failed handshakes or shutdown errors. nil disables logging.
	Logf func(f string, v ...interface{})
}

func (o *Options) clone() *Options {
	o2 := *o
	if o2.ReadLimit <= 0 {
		o2.ReadLimit = defaultReadLimit
	}
	if o2.WriteTimeout <= 0 {
		o2.WriteTimeout = defaultWriteTimeout
	}
	if o.Header != nil {
		o2.Header = o.Header.Clone()
	}
	if o.TLSConfig != nil {
		o2.TLSConfig = o.TLSConfig.Clone()
	}
	return &o2
}
