package pollws

import (
	"context"
	"fmt"
	"net/url"
	"runtime"
	"strings"

	"nhooyr.io/pollws/internal/errd"
)

// transport is implemented by the native and the host backend.
// Exactly one of them is compiled in, see channel_notjs.go and channel_js.go.
type transport interface {
	Write(p []byte) bool
	Read() ([]byte, bool)
	Close()
	State() int32
	Revive(ctx context.Context) bool
}

// Channel is a WebSocket connection driven by polling.
//
// The zero value is not usable, use Open.
// Dropping a Channel without calling Close closes it once it
// is garbage collected.
type Channel struct {
	url string
	t   transport
}

// Open is OpenContext with context.Background().
func Open(u string, opts *Options) (*Channel, error) {
	return OpenContext(context.Background(), u, opts)
}

// OpenContext opens a channel to the ws:// or wss:// URL u.
//
// An error is only returned if u is unusable or the host refuses to
// allocate a channel. A failed connection attempt still returns a Channel
// in StateDisconnected which may be revived later.
//
// ctx bounds the native handshake. It is not retained.
func OpenContext(ctx context.Context, u string, opts *Options) (_ *Channel, err error) {
	defer errd.Wrap(&err, "failed to open channel")

	if opts == nil {
		opts = &Options{}
	}
	opts = opts.clone()

	secure, err := parseScheme(u)
	if err != nil {
		return nil, err
	}

	t, err := newTransport(ctx, u, secure, opts)
	if err != nil {
		return nil, err
	}
	return newChannel(u, t), nil
}

func newChannel(u string, t transport) *Channel {
	c := &Channel{
		url: u,
		t:   t,
	}
	runtime.SetFinalizer(c, func(c *Channel) {
		c.t.Close()
	})
	return c
}

// parseScheme reports whether u selects TLS.
func parseScheme(u string) (bool, error) {
	parsedURL, err := url.Parse(u)
	if err != nil {
		return false, fmt.Errorf("failed to parse websocket url: %w", err)
	}

	switch strings.ToLower(parsedURL.Scheme) {
	case "ws":
		return false, nil
	case "wss":
		return true, nil
	default:
		return false, fmt.Errorf("unexpected url scheme: %q", parsedURL.Scheme)
	}
}

// URL returns the URL the channel was opened with.
func (c *Channel) URL() string {
	return c.url
}

// Write sends p as a single binary message.
//
// It returns false if the message was not sent, including when the
// channel is not connected. On native platforms the write is bounded by
// Options.WriteTimeout. A ws:// write that timed out before any byte was
// sent keeps the state. A write that broke off mid frame, or any timed out
// wss:// write, moves the channel to StateDisconnected.
func (c *Channel) Write(p []byte) bool {
	return c.t.Write(p)
}

// Read polls the channel once without blocking.
//
// It returns the next binary message if one is available. Text messages,
// pings and pongs are consumed without being returned; pings are answered.
// A close frame from the peer or a lost connection moves the channel to
// StateDisconnected.
func (c *Channel) Read() ([]byte, bool) {
	return c.t.Read()
}

// Close closes the channel. It is a no-op if the channel is already
// closed or never connected.
//
// A live channel always ends up in StateClosed, even if shutting down
// the underlying socket fails.
func (c *Channel) Close() {
	c.t.Close()
}

// State returns the current state of the channel.
func (c *Channel) State() State {
	return decodeState(c.t.State())
}

// Connected reports whether the channel is in StateConnected.
func (c *Channel) Connected() bool {
	return c.State() == StateConnected
}

// Revive is ReviveContext with context.Background().
func (c *Channel) Revive() bool {
	return c.ReviveContext(context.Background())
}

// ReviveContext makes a single attempt to reconnect a channel that is
// not connected. It never tears down a live connection.
//
// On native platforms it dials the channel's URL again and reports
// whether the channel is connected afterwards; a failed attempt leaves
// the channel in StateDisconnected.
//
// With GOOS=js the host decides whether the channel may be revived and
// the return value only reports whether it accepted. The connection is
// then established asynchronously, poll State to observe it. Hosts that
// do not implement revival always return false.
func (c *Channel) ReviveContext(ctx context.Context) bool {
	return c.t.Revive(ctx)
}

func (o *Options) logf(f string, v ...interface{}) {
	if o.Logf != nil {
		o.Logf(f, v...)
	}
}
