// Package hostws drives a WebSocket channel through a host function table
// addressed by an integer id, as provided by a browser embedding.
//
// The host owns the socket and everything that happens asynchronously:
// DNS, TLS, the handshake and buffering received messages. This package
// only polls it.
package hostws

import (
	"context"
	"fmt"
)

// State codes reported by Host.State.
const (
	CodeNotExisting int32 = -1
	CodeConnecting  int32 = 0
	CodeOpen        int32 = 1
	CodeClosed      int32 = 2
)

// Host is the function table of the embedding environment.
type Host interface {
	// Open starts connecting to url and returns the channel id.
	// A negative id means the host refused.
	Open(url string) int32
	// Write sends p as a binary message.
	Write(id int32, p []byte) bool
	// Available returns the length of the oldest received message
	// or a negative number if there is none.
	Available(id int32) int32
	// Read copies the oldest received message into p and drops it.
	Read(id int32, p []byte)
	// State returns one of the Code constants. Other values are
	// possible and must be tolerated by callers.
	State(id int32) int32
	// Close closes the channel.
	Close(id int32)
	// Revive asks the host to reconnect the channel.
	Revive(id int32) bool
}

// Transport is a single channel of a Host.
type Transport struct {
	host   Host
	url    string
	id     int32
	closed bool
	logf   func(string, ...interface{})
}

// Open asks h for a new channel to url. logf receives refused writes and
// revivals and may be nil.
func Open(h Host, url string, logf func(string, ...interface{})) (*Transport, error) {
	id := h.Open(url)
	if id < 0 {
		return nil, fmt.Errorf("host refused to open %q: %d", url, id)
	}
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Transport{
		host: h,
		url:  url,
		id:   id,
		logf: logf,
	}, nil
}

// ID returns the host's id of the channel.
func (t *Transport) ID() int32 {
	return t.id
}

// Write sends p if the host reports the channel open.
func (t *Transport) Write(p []byte) bool {
	if t.State() != CodeOpen {
		return false
	}
	if !t.host.Write(t.id, p) {
		t.logf("host refused write of %v bytes to channel %d", len(p), t.id)
		return false
	}
	return true
}

// Read returns the oldest message received by the host, if any.
// The host's reported length is trusted.
func (t *Transport) Read() ([]byte, bool) {
	if t.closed {
		return nil, false
	}

	n := t.host.Available(t.id)
	if n < 0 {
		return nil, false
	}
	p := make([]byte, n)
	t.host.Read(t.id, p)
	return p, true
}

// Close closes the channel once and releases its id. Later calls do
// nothing.
func (t *Transport) Close() {
	if t.closed {
		return
	}
	t.closed = true
	t.host.Close(t.id)
}

// State returns the raw code reported by the host, or CodeClosed once
// Close was called.
func (t *Transport) State() int32 {
	if t.closed {
		return CodeClosed
	}
	return t.host.State(t.id)
}

// Revive leaves it to the host to reconnect the channel and reports
// whether the host accepted. An open channel is left alone. A channel
// closed by Close has no id anymore and is opened again under a new one.
//
// ctx is unused as the host connects asynchronously.
func (t *Transport) Revive(ctx context.Context) bool {
	if t.State() == CodeOpen {
		return true
	}

	if t.closed {
		id := t.host.Open(t.url)
		if id < 0 {
			t.logf("host refused to reopen %q: %d", t.url, id)
			return false
		}
		t.id = id
		t.closed = false
		return true
	}

	if !t.host.Revive(t.id) {
		t.logf("host refused to revive channel %d", t.id)
		return false
	}
	return true
}
