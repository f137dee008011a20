// Package pollws is a poll driven WebSocket client with one API on every
// platform.
//
// A Channel is opened for a ws:// or wss:// URL and is then driven entirely by
// its owner: Read performs a single non-blocking poll and returns at most one
// binary message, Write sends one binary message, State reports where the
// connection stands and Revive makes one manual reconnection attempt.
// Nothing runs in the background and text messages are dropped.
//
// On native platforms the channel owns a TCP (or TLS) socket that is switched
// to non-blocking reads right after the handshake. Ping frames are answered
// with pongs and close frames move the channel to StateDisconnected.
//
// When compiled with GOOS=js the channel is backed by a host function table
// addressed by an integer id. If globalThis.pollws_host is defined it is used,
// otherwise the browser WebSocket API is driven directly from Go. See Host.
//
// A Channel is not safe for concurrent use.
package pollws // import "nhooyr.io/pollws"
