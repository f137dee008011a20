//go:build !js

package pollws

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/gobwas/ws"
	"golang.org/x/net/proxy"

	"nhooyr.io/pollws/internal/bpool"
	"nhooyr.io/pollws/internal/errd"
	"nhooyr.io/pollws/internal/nbconn"
	"nhooyr.io/pollws/internal/wsframe"
)

// link is the connection resource of a native channel.
// It is always exactly one of absentLink, closedLink, plainLink or
// secureLink.
type link interface {
	code() int32
}

// absentLink means there is no connection yet or the peer went away.
type absentLink struct{}

// closedLink means the connection was shut down by Close.
type closedLink struct{}

// plainLink is a connection over ws://.
type plainLink struct {
	*wire
}

// secureLink is a connection over wss://.
type secureLink struct {
	*wire
}

func (absentLink) code() int32 { return codeDisconnected }
func (closedLink) code() int32 { return codeClosed }
func (plainLink) code() int32  { return codeConnected }
func (secureLink) code() int32 { return codeConnected }

// wire is an established WebSocket connection in non-blocking mode.
type wire struct {
	// conn is the *nbconn.Conn from the dial or the *tls.Conn wrapping it.
	conn net.Conn

	dec *wsframe.Decoder
	asm wsframe.Assembler
}

// writeFrame writes a single masked frame with one call to conn.Write
// that must complete within timeout. It returns the number of bytes of
// the frame that reached the socket. p is not modified.
func (w *wire) writeFrame(op ws.OpCode, p []byte, timeout time.Duration) (int, error) {
	h := ws.Header{
		Fin:    true,
		OpCode: op,
		Length: int64(len(p)),
		Masked: true,
		Mask:   ws.NewMask(),
	}

	b := bpool.Get()
	defer bpool.Put(b)

	err := ws.WriteHeader(b, h)
	if err != nil {
		return 0, fmt.Errorf("failed to write frame header: %w", err)
	}
	off := b.Len()
	b.Write(p)
	ws.Cipher(b.Bytes()[off:], h.Mask, 0)

	err = w.conn.SetWriteDeadline(time.Now().Add(timeout))
	if err != nil {
		return 0, fmt.Errorf("failed to set write deadline: %w", err)
	}
	n, err := w.conn.Write(b.Bytes())
	if err != nil {
		return n, fmt.Errorf("failed to write frame with opcode %d: %w", op, err)
	}
	return n, nil
}

// next returns the next buffered frame. The connection is read at most
// once and only if no complete frame is buffered.
func (w *wire) next() (wsframe.Frame, error) {
	f, err := w.dec.Next()
	if !errors.Is(err, wsframe.ErrIncomplete) {
		return f, err
	}

	n, err := w.dec.Fill(w.conn)
	if n == 0 && err != nil {
		return wsframe.Frame{}, err
	}
	return w.dec.Next()
}

// nativeTransport drives a native channel.
type nativeTransport struct {
	url    string
	secure bool
	opts   *Options
	link   link
}

func newTransport(ctx context.Context, u string, secure bool, opts *Options) (transport, error) {
	t := &nativeTransport{
		url:    u,
		secure: secure,
		opts:   opts,
		link:   absentLink{},
	}

	l, err := t.connect(ctx)
	if err != nil {
		opts.logf("%v", err)
		return t, nil
	}
	t.link = l
	return t, nil
}

// connect dials the channel's URL and performs the handshake.
// The socket is non-blocking once connect returns.
func (t *nativeTransport) connect(ctx context.Context) (_ link, err error) {
	defer errd.Wrap(&err, "failed to connect to %q", t.url)

	if t.opts.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.HandshakeTimeout)
		defer cancel()
	}

	var nb *nbconn.Conn
	d := ws.Dialer{
		Protocols: t.opts.Subprotocols,
		TLSConfig: t.opts.TLSConfig,
		NetDial: func(ctx context.Context, network, addr string) (net.Conn, error) {
			c, err := t.netDial(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			nb = nbconn.New(c)
			return nb, nil
		},
	}
	if len(t.opts.Header) > 0 {
		d.Header = ws.HandshakeHeaderHTTP(t.opts.Header)
	}

	conn, br, _, err := d.Dial(ctx, t.url)
	if err != nil {
		return nil, err
	}

	w := &wire{
		conn: conn,
		dec:  wsframe.NewDecoder(t.opts.ReadLimit),
		asm: wsframe.Assembler{
			Limit: t.opts.ReadLimit,
		},
	}
	if br != nil {
		// Frames that arrived together with the handshake response.
		b, _ := br.Peek(br.Buffered())
		w.dec.Feed(b)
		ws.PutReader(br)
	}

	err = nb.SetNonblocking(true)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to make socket non-blocking: %w", err)
	}

	if t.secure {
		return secureLink{w}, nil
	}
	return plainLink{w}, nil
}

func (t *nativeTransport) netDial(ctx context.Context, network, addr string) (net.Conn, error) {
	if t.opts.ProxyAddr == "" {
		var d net.Dialer
		return d.DialContext(ctx, network, addr)
	}

	pd, err := proxy.SOCKS5("tcp", t.opts.ProxyAddr, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create socks5 dialer: %w", err)
	}
	if cd, ok := pd.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, addr)
	}
	return pd.Dial(network, addr)
}

// live returns the wire of a connected channel or nil.
func (t *nativeTransport) live() *wire {
	switch l := t.link.(type) {
	case plainLink:
		return l.wire
	case secureLink:
		return l.wire
	default:
		return nil
	}
}

// release closes the socket of w and moves to next.
func (t *nativeTransport) release(w *wire, next link) {
	errd.Absorb(t.opts.logf, w.conn.Close(), "failed to close socket of %q", t.url)
	t.link = next
}

func (t *nativeTransport) Write(p []byte) bool {
	w := t.live()
	if w == nil {
		return false
	}
	return t.send(w, ws.OpBinary, p)
}

// send writes a frame on a live connection. A failure that leaves part of
// a frame on the wire, or a timed out TLS write, releases the connection
// as the stream can no longer be framed.
func (t *nativeTransport) send(w *wire, op ws.OpCode, p []byte) bool {
	n, err := w.writeFrame(op, p, t.opts.WriteTimeout)
	if err == nil {
		return true
	}

	t.opts.logf("failed to write to %q: %v", t.url, err)
	var netErr net.Error
	timeout := errors.As(err, &netErr) && netErr.Timeout()
	if n > 0 || (timeout && t.secure) {
		t.release(w, absentLink{})
	}
	return false
}

// sendClose writes a close frame with code, ignoring how much of it was
// written. The connection is released right after by the caller.
func (t *nativeTransport) sendClose(w *wire, code ws.StatusCode) {
	_, err := w.writeFrame(ws.OpClose, ws.NewCloseFrameBody(code, ""), t.opts.WriteTimeout)
	errd.Absorb(t.opts.logf, err, "failed to write close frame to %q", t.url)
}

func (t *nativeTransport) Read() ([]byte, bool) {
	w := t.live()
	if w == nil {
		return nil, false
	}

	f, err := w.next()
	if err != nil {
		t.readError(w, err)
		return nil, false
	}

	switch f.Header.OpCode {
	case ws.OpPing:
		t.send(w, ws.OpPong, f.Payload)
		return nil, false
	case ws.OpPong:
		return nil, false
	case ws.OpClose:
		t.handleClose(w, f.Payload)
		return nil, false
	}

	m, ok, err := w.asm.Push(f)
	if err != nil {
		t.readError(w, err)
		return nil, false
	}
	if !ok || m.OpCode != ws.OpBinary {
		return nil, false
	}
	return m.Payload, true
}

func (t *nativeTransport) readError(w *wire, err error) {
	if errors.Is(err, wsframe.ErrIncomplete) || errors.Is(err, nbconn.ErrWouldBlock) {
		return
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return
	}

	if errors.Is(err, io.EOF) {
		t.opts.logf("peer of %q went away", t.url)
		t.release(w, absentLink{})
		return
	}

	var ce *wsframe.CloseError
	if errors.As(err, &ce) {
		t.sendClose(w, ce.Code)
	}
	t.opts.logf("dropping connection to %q: %v", t.url, err)
	t.release(w, absentLink{})
}

// handleClose echoes the peer's close frame and drops the connection.
// A malformed close payload or a code that must not appear on the wire is
// answered with a protocol error.
func (t *nativeTransport) handleClose(w *wire, payload []byte) {
	t.sendClose(w, closeReply(payload))
	t.release(w, absentLink{})
}

func closeReply(payload []byte) ws.StatusCode {
	switch len(payload) {
	case 0:
		return ws.StatusNormalClosure
	case 1:
		return ws.StatusProtocolError
	}
	code, reason := ws.ParseCloseFrameData(payload)
	if ws.CheckCloseFrameData(code, reason) != nil {
		return ws.StatusProtocolError
	}
	return code
}

func (t *nativeTransport) Close() {
	w := t.live()
	if w == nil {
		return
	}
	t.sendClose(w, ws.StatusNormalClosure)
	t.release(w, closedLink{})
}

func (t *nativeTransport) State() int32 {
	return t.link.code()
}

func (t *nativeTransport) Revive(ctx context.Context) bool {
	if t.live() != nil {
		return true
	}

	l, err := t.connect(ctx)
	if err != nil {
		t.opts.logf("%v", err)
		t.link = absentLink{}
		return false
	}
	t.link = l
	return true
}
