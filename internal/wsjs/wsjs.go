//go:build js

// Package wsjs implements typed access to the browser javascript WebSocket API
// and to a host function table defined in javascript.
//
// https://developer.mozilla.org/en-US/docs/Web/API/WebSocket
package wsjs

import (
	"syscall/js"

	"nhooyr.io/pollws/internal/hosttable"
)

func handleJSError(err *error, onErr func()) {
	r := recover()

	if jsErr, ok := r.(js.Error); ok {
		*err = jsErr

		if onErr != nil {
			onErr()
		}
		return
	}

	if r != nil {
		panic(r)
	}
}

// WebSocket is a browser WebSocket.
type WebSocket struct {
	v js.Value

	funcs []js.Func
}

// New creates a WebSocket connecting to url. Binary messages are delivered
// as ArrayBuffers.
func New(url string) (c *WebSocket, err error) {
	defer handleJSError(&err, func() {
		c = nil
	})

	c = &WebSocket{
		v: js.Global().Get("WebSocket").New(url),
	}
	c.v.Set("binaryType", "arraybuffer")

	return c, nil
}

func (c *WebSocket) addEventListener(eventType string, fn func(e js.Value)) {
	f := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		fn(args[0])
		return nil
	})
	c.funcs = append(c.funcs, f)
	c.v.Call("addEventListener", eventType, f)
}

// release frees the listeners. The WebSocket must not fire events anymore.
func (c *WebSocket) release() {
	for _, f := range c.funcs {
		f.Release()
	}
	c.funcs = nil
}

// OnOpen registers fn for the open event.
func (c *WebSocket) OnOpen(fn func()) {
	c.addEventListener("open", func(js.Value) {
		fn()
	})
}

// OnError registers fn for the error event.
func (c *WebSocket) OnError(fn func()) {
	c.addEventListener("error", func(js.Value) {
		fn()
	})
}

// OnClose registers fn for the close event.
func (c *WebSocket) OnClose(fn func()) {
	c.addEventListener("close", func(js.Value) {
		fn()
	})
}

// OnBinaryMessage registers fn for messages carrying an ArrayBuffer.
// Text messages are dropped.
func (c *WebSocket) OnBinaryMessage(fn func(p []byte)) {
	c.addEventListener("message", func(e js.Value) {
		data := e.Get("data")
		if data.Type() == js.TypeString {
			return
		}
		fn(extractArrayBuffer(data))
	})
}

// Close starts the closing handshake with status 1000.
func (c *WebSocket) Close() (err error) {
	defer handleJSError(&err, nil)
	c.v.Call("close", 1000, "")
	return err
}

// SendBytes sends v as a binary message.
func (c *WebSocket) SendBytes(v []byte) (err error) {
	defer handleJSError(&err, nil)
	c.v.Call("send", uint8Array(v))
	return err
}

// Dial is a hosttable.DialFunc over the browser WebSocket API.
func Dial(url string, ev hosttable.Events) (hosttable.Socket, error) {
	c, err := New(url)
	if err != nil {
		return nil, err
	}

	c.OnOpen(ev.OnOpen)
	c.OnBinaryMessage(ev.OnMessage)
	c.OnError(ev.OnError)
	c.OnClose(func() {
		ev.OnClose()
		c.release()
	})
	return c, nil
}

func extractArrayBuffer(arrayBuffer js.Value) []byte {
	uint8Array := js.Global().Get("Uint8Array").New(arrayBuffer)
	dst := make([]byte, uint8Array.Length())
	js.CopyBytesToGo(dst, uint8Array)
	return dst
}

func uint8Array(src []byte) js.Value {
	uint8Array := js.Global().Get("Uint8Array").New(len(src))
	js.CopyBytesToJS(uint8Array, src)
	return uint8Array
}
