package wsframe_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/gobwas/ws"

	"nhooyr.io/pollws/internal/test/assert"
	"nhooyr.io/pollws/internal/test/xrand"
	"nhooyr.io/pollws/internal/wsframe"
)

func encode(t *testing.T, frames ...ws.Frame) []byte {
	t.Helper()

	var b bytes.Buffer
	for _, f := range frames {
		err := ws.WriteFrame(&b, f)
		assert.Success(t, err)
	}
	return b.Bytes()
}

func closeCode(t *testing.T, err error) ws.StatusCode {
	t.Helper()

	var ce *wsframe.CloseError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *wsframe.CloseError but got %v", err)
	}
	return ce.Code
}

func TestDecoder(t *testing.T) {
	t.Parallel()

	t.Run("empty", func(t *testing.T) {
		t.Parallel()

		d := wsframe.NewDecoder(0)
		_, err := d.Next()
		assert.ErrorIs(t, wsframe.ErrIncomplete, err)
	})

	t.Run("byteAtATime", func(t *testing.T) {
		t.Parallel()

		payload := xrand.Bytes(300)
		b := encode(t, ws.NewBinaryFrame(payload))

		d := wsframe.NewDecoder(0)
		for i := 0; i < len(b)-1; i++ {
			d.Feed(b[i : i+1])
			_, err := d.Next()
			assert.ErrorIs(t, wsframe.ErrIncomplete, err)
		}
		d.Feed(b[len(b)-1:])

		f, err := d.Next()
		assert.Success(t, err)
		assert.Equal(t, "opcode", ws.OpBinary, f.Header.OpCode)
		assert.Equal(t, "payload", payload, f.Payload)
		assert.Equal(t, "buffered", 0, d.Buffered())
	})

	t.Run("twoFrames", func(t *testing.T) {
		t.Parallel()

		d := wsframe.NewDecoder(0)
		d.Feed(encode(t,
			ws.NewBinaryFrame([]byte("one")),
			ws.NewPingFrame([]byte("two")),
		))

		f, err := d.Next()
		assert.Success(t, err)
		assert.Equal(t, "payload", []byte("one"), f.Payload)

		f, err = d.Next()
		assert.Success(t, err)
		assert.Equal(t, "opcode", ws.OpPing, f.Header.OpCode)
		assert.Equal(t, "payload", []byte("two"), f.Payload)

		_, err = d.Next()
		assert.ErrorIs(t, wsframe.ErrIncomplete, err)
	})

	t.Run("payloadIsCopied", func(t *testing.T) {
		t.Parallel()

		d := wsframe.NewDecoder(0)
		d.Feed(encode(t,
			ws.NewBinaryFrame([]byte("aaaa")),
			ws.NewBinaryFrame([]byte("bbbb")),
		))

		f1, err := d.Next()
		assert.Success(t, err)
		_, err = d.Next()
		assert.Success(t, err)
		assert.Equal(t, "payload", []byte("aaaa"), f1.Payload)
	})

	t.Run("masked", func(t *testing.T) {
		t.Parallel()

		d := wsframe.NewDecoder(0)
		d.Feed(encode(t, ws.MaskFrame(ws.NewBinaryFrame([]byte("x")))))

		_, err := d.Next()
		assert.Equal(t, "code", ws.StatusProtocolError, closeCode(t, err))
	})

	t.Run("reservedOpcode", func(t *testing.T) {
		t.Parallel()

		d := wsframe.NewDecoder(0)
		d.Feed([]byte{0x80 | 0x3, 0})

		_, err := d.Next()
		assert.Equal(t, "code", ws.StatusProtocolError, closeCode(t, err))
	})

	t.Run("fragmentedControl", func(t *testing.T) {
		t.Parallel()

		d := wsframe.NewDecoder(0)
		d.Feed(encode(t, ws.NewFrame(ws.OpPing, false, []byte("x"))))

		_, err := d.Next()
		assert.Equal(t, "code", ws.StatusProtocolError, closeCode(t, err))
	})

	t.Run("unexpectedContinuation", func(t *testing.T) {
		t.Parallel()

		d := wsframe.NewDecoder(0)
		d.Feed(encode(t, ws.NewFrame(ws.OpContinuation, true, []byte("x"))))

		_, err := d.Next()
		assert.Equal(t, "code", ws.StatusProtocolError, closeCode(t, err))
	})

	t.Run("interleavedDataFrame", func(t *testing.T) {
		t.Parallel()

		d := wsframe.NewDecoder(0)
		d.Feed(encode(t,
			ws.NewFrame(ws.OpBinary, false, []byte("a")),
			ws.NewBinaryFrame([]byte("b")),
		))

		_, err := d.Next()
		assert.Success(t, err)
		_, err = d.Next()
		assert.Equal(t, "code", ws.StatusProtocolError, closeCode(t, err))
	})

	t.Run("limit", func(t *testing.T) {
		t.Parallel()

		d := wsframe.NewDecoder(8)
		// Only the header is needed to reject the frame.
		b := encode(t, ws.NewBinaryFrame(make([]byte, 9)))
		d.Feed(b[:2])

		_, err := d.Next()
		assert.Equal(t, "code", ws.StatusMessageTooBig, closeCode(t, err))
		assert.Contains(t, err, "exceeds read limit")
	})

	t.Run("fillReadsOnce", func(t *testing.T) {
		t.Parallel()

		r := &countingReader{
			r: bytes.NewReader(encode(t, ws.NewBinaryFrame([]byte("hi")))),
		}

		d := wsframe.NewDecoder(0)
		n, err := d.Fill(r)
		assert.Success(t, err)
		assert.Equal(t, "n", 4, n)
		assert.Equal(t, "reads", 1, r.reads)

		f, err := d.Next()
		assert.Success(t, err)
		assert.Equal(t, "payload", []byte("hi"), f.Payload)

		n, err = d.Fill(r)
		assert.ErrorIs(t, io.EOF, err)
		assert.Equal(t, "n", 0, n)
		assert.Equal(t, "reads", 2, r.reads)
	})
}

type countingReader struct {
	r     io.Reader
	reads int
}

func (r *countingReader) Read(p []byte) (int, error) {
	r.reads++
	return r.r.Read(p)
}

func TestAssembler(t *testing.T) {
	t.Parallel()

	frame := func(op ws.OpCode, fin bool, p string) wsframe.Frame {
		return wsframe.Frame{
			Header: ws.Header{
				Fin:    fin,
				OpCode: op,
				Length: int64(len(p)),
			},
			Payload: []byte(p),
		}
	}

	t.Run("single", func(t *testing.T) {
		t.Parallel()

		var a wsframe.Assembler
		m, ok, err := a.Push(frame(ws.OpBinary, true, "abc"))
		assert.Success(t, err)
		assert.Equal(t, "ok", true, ok)
		assert.Equal(t, "message", wsframe.Message{
			OpCode:  ws.OpBinary,
			Payload: []byte("abc"),
		}, m)
	})

	t.Run("fragments", func(t *testing.T) {
		t.Parallel()

		var a wsframe.Assembler
		_, ok, err := a.Push(frame(ws.OpBinary, false, "ab"))
		assert.Success(t, err)
		assert.Equal(t, "ok", false, ok)
		_, ok, err = a.Push(frame(ws.OpContinuation, false, "cd"))
		assert.Success(t, err)
		assert.Equal(t, "ok", false, ok)

		m, ok, err := a.Push(frame(ws.OpContinuation, true, "ef"))
		assert.Success(t, err)
		assert.Equal(t, "ok", true, ok)
		assert.Equal(t, "message", wsframe.Message{
			OpCode:  ws.OpBinary,
			Payload: []byte("abcdef"),
		}, m)

		m, ok, err = a.Push(frame(ws.OpText, true, "next"))
		assert.Success(t, err)
		assert.Equal(t, "ok", true, ok)
		assert.Equal(t, "opcode", ws.OpText, m.OpCode)
	})

	t.Run("limit", func(t *testing.T) {
		t.Parallel()

		a := wsframe.Assembler{
			Limit: 4,
		}
		_, _, err := a.Push(frame(ws.OpBinary, false, "abc"))
		assert.Success(t, err)

		_, ok, err := a.Push(frame(ws.OpContinuation, true, "de"))
		assert.Equal(t, "ok", false, ok)
		assert.Equal(t, "code", ws.StatusMessageTooBig, closeCode(t, err))

		m, ok, err := a.Push(frame(ws.OpBinary, true, "ok"))
		assert.Success(t, err)
		assert.Equal(t, "ok", true, ok)
		assert.Equal(t, "payload", []byte("ok"), m.Payload)
	})
}
