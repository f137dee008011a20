// Package wsframe splits bytes received by a WebSocket client into frames
// and messages without ever waiting for more input.
//
// See https://tools.ietf.org/html/rfc6455#section-5.2
package wsframe

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/gobwas/ws"
)

// ErrIncomplete is returned by Next when the buffered bytes do not hold
// a complete frame yet.
var ErrIncomplete = errors.New("wsframe: incomplete frame")

// CloseError is a failure that must be answered by closing the
// connection with Code.
type CloseError struct {
	Code ws.StatusCode
	Err  error
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("%v (status %d)", e.Err, e.Code)
}

func (e *CloseError) Unwrap() error {
	return e.Err
}

// minRead is the least amount of free space offered to a single Fill.
const minRead = 4096

// Frame is a single decoded frame. Payload is owned by the caller.
type Frame struct {
	Header  ws.Header
	Payload []byte
}

// Decoder accumulates bytes read from a server connection and decodes
// them into frames. It validates every header as a client would.
//
// The zero value is not usable, use NewDecoder.
type Decoder struct {
	buf   []byte
	limit int64
	state ws.State
}

// NewDecoder returns a Decoder rejecting frames with payloads larger
// than limit bytes. A limit <= 0 disables the check.
func NewDecoder(limit int64) *Decoder {
	return &Decoder{
		limit: limit,
		state: ws.StateClientSide,
	}
}

// Buffered returns the number of bytes waiting to be decoded.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Feed appends p to the buffered bytes.
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Fill calls r.Read exactly once and buffers what it returned.
func (d *Decoder) Fill(r io.Reader) (int, error) {
	if cap(d.buf)-len(d.buf) < minRead {
		b := make([]byte, len(d.buf), 2*cap(d.buf)+minRead)
		copy(b, d.buf)
		d.buf = b
	}

	n, err := r.Read(d.buf[len(d.buf):cap(d.buf)])
	if n < 0 {
		n = 0
	}
	d.buf = d.buf[:len(d.buf)+n]
	return n, err
}

// Next removes the next complete frame from the buffer.
//
// It returns ErrIncomplete if more bytes are needed and a *CloseError if
// the peer violated the protocol. Nothing is consumed on error.
func (d *Decoder) Next() (Frame, error) {
	r := bytes.NewReader(d.buf)
	h, err := ws.ReadHeader(r)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, ErrIncomplete
		}
		return Frame{}, &CloseError{
			Code: ws.StatusProtocolError,
			Err:  fmt.Errorf("failed to read frame header: %w", err),
		}
	}

	err = ws.CheckHeader(h, d.state)
	if err != nil {
		return Frame{}, &CloseError{
			Code: ws.StatusProtocolError,
			Err:  fmt.Errorf("received invalid %v frame: %w", opName(h.OpCode), err),
		}
	}
	if d.limit > 0 && h.Length > d.limit {
		return Frame{}, &CloseError{
			Code: ws.StatusMessageTooBig,
			Err:  fmt.Errorf("frame of %v bytes exceeds read limit of %v bytes", h.Length, d.limit),
		}
	}

	headerLen := len(d.buf) - r.Len()
	if int64(r.Len()) < h.Length {
		return Frame{}, ErrIncomplete
	}
	end := headerLen + int(h.Length)

	f := Frame{
		Header:  h,
		Payload: make([]byte, h.Length),
	}
	copy(f.Payload, d.buf[headerLen:end])

	n := copy(d.buf, d.buf[end:])
	d.buf = d.buf[:n]

	if !h.OpCode.IsControl() {
		if h.Fin {
			d.state = d.state.Clear(ws.StateFragmented)
		} else {
			d.state = d.state.Set(ws.StateFragmented)
		}
	}
	return f, nil
}

func opName(op ws.OpCode) string {
	switch op {
	case ws.OpContinuation:
		return "continuation"
	case ws.OpText:
		return "text"
	case ws.OpBinary:
		return "binary"
	case ws.OpClose:
		return "close"
	case ws.OpPing:
		return "ping"
	case ws.OpPong:
		return "pong"
	default:
		return fmt.Sprintf("opcode %d", op)
	}
}
