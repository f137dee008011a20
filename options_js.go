//go:build js

package pollws

import (
	"nhooyr.io/pollws/internal/hostws"
)

// Host is the function table a channel is driven through when compiled
// with GOOS=js. Channels are addressed by the id returned from Open.
//
// State must report -1 for an unknown id, 0 while connecting, 1 when open
// and 2 once closed. Available returns the length of the oldest queued
// message or a negative number if there is none; Read copies that message
// into the passed buffer and removes it from the queue.
type Host = hostws.Host

// Options represents the options available to pass to Open.
type Options struct {
	// Host drives the channel. nil means globalThis.pollws_host if it is
	// defined and the browser WebSocket API otherwise.
	Host Host

	// Logf receives failures that are absorbed by the channel.
	// nil disables logging.
	Logf func(f string, v ...interface{})
}

func (o *Options) clone() *Options {
	o2 := *o
	return &o2
}
