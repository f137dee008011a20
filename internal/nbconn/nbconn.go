//go:build !js

// Package nbconn wraps a stream connection so that its reads can be
// switched from blocking to a single non-blocking attempt.
//
// Reads stay blocking until SetNonblocking(true) is called which lets a
// handshake run on the connection first.
package nbconn

import (
	"errors"
	"net"
	"sync/atomic"
	"syscall"
	"time"
)

// PollSlack is how long a read waits for data on connections that do not
// expose their file descriptor, e.g. connections through a SOCKS5 proxy.
const PollSlack = time.Millisecond

type wouldBlockError struct{}

func (wouldBlockError) Error() string   { return "nbconn: read would block" }
func (wouldBlockError) Timeout() bool   { return true }
func (wouldBlockError) Temporary() bool { return true }

// ErrWouldBlock is returned by a non-blocking Read when no data is available.
//
// It is a temporary net.Error so crypto/tls keeps partially received
// records and the connection stays usable.
var ErrWouldBlock net.Error = wouldBlockError{}

// Conn is a net.Conn whose reads can be made non-blocking.
// Writes always go through the wrapped connection unchanged.
type Conn struct {
	net.Conn

	// raw is nil if the wrapped connection does not expose one.
	raw         syscall.RawConn
	nonblocking uint32
}

// New wraps c. Reads are blocking until SetNonblocking is called.
func New(c net.Conn) *Conn {
	nc := &Conn{
		Conn: c,
	}
	if sc, ok := c.(syscall.Conn); ok {
		raw, err := sc.SyscallConn()
		if err == nil {
			nc.raw = raw
		}
	}
	return nc
}

// SetNonblocking switches reads between one non-blocking attempt and the
// wrapped connection's blocking Read.
func (c *Conn) SetNonblocking(on bool) error {
	if on {
		atomic.StoreUint32(&c.nonblocking, 1)
		return nil
	}
	atomic.StoreUint32(&c.nonblocking, 0)
	return c.Conn.SetReadDeadline(time.Time{})
}

// Nonblocking reports whether reads are non-blocking.
func (c *Conn) Nonblocking() bool {
	return atomic.LoadUint32(&c.nonblocking) == 1
}

// Read reads from the connection. When non-blocking it returns
// ErrWouldBlock instead of waiting for data.
func (c *Conn) Read(p []byte) (int, error) {
	if !c.Nonblocking() || len(p) == 0 {
		return c.Conn.Read(p)
	}

	if c.raw != nil {
		n, ok, err := rawRead(c.raw, p)
		if ok {
			return n, err
		}
	}
	return c.deadlineRead(p)
}

func (c *Conn) deadlineRead(p []byte) (int, error) {
	err := c.Conn.SetReadDeadline(time.Now().Add(PollSlack))
	if err != nil {
		return 0, err
	}

	n, err := c.Conn.Read(p)
	if n == 0 && isTimeout(err) {
		return 0, ErrWouldBlock
	}
	return n, err
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
