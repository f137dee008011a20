//go:build js

package wsjs

import (
	"syscall/js"

	"nhooyr.io/pollws/internal/hostws"
)

// FuncTable is a hostws.Host implemented by a javascript object with the
// functions ws_open(url), ws_write(id, Uint8Array), ws_available(id),
// ws_read(id, Uint8Array), ws_state(id), ws_close(id) and optionally
// ws_revive(id).
//
// Exceptions thrown by the functions are reported as failures.
type FuncTable struct {
	v js.Value
}

var _ hostws.Host = FuncTable{}

// GlobalFuncTable returns the FuncTable registered as name on globalThis.
// It reports false if there is none.
func GlobalFuncTable(name string) (FuncTable, bool) {
	v := js.Global().Get(name)
	if v.Type() != js.TypeObject || v.Get("ws_open").Type() != js.TypeFunction {
		return FuncTable{}, false
	}
	return FuncTable{v: v}, true
}

func (h FuncTable) call(fn string, args ...interface{}) (v js.Value, err error) {
	defer handleJSError(&err, nil)
	return h.v.Call(fn, args...), nil
}

func (h FuncTable) callInt(fn string, fallback int32, args ...interface{}) int32 {
	v, err := h.call(fn, args...)
	if err != nil || v.Type() != js.TypeNumber {
		return fallback
	}
	return int32(v.Int())
}

func (h FuncTable) callBool(fn string, args ...interface{}) bool {
	v, err := h.call(fn, args...)
	return err == nil && v.Truthy()
}

// Open implements hostws.Host.
func (h FuncTable) Open(url string) int32 {
	return h.callInt("ws_open", -1, url)
}

// Write implements hostws.Host.
func (h FuncTable) Write(id int32, p []byte) bool {
	return h.callBool("ws_write", id, uint8Array(p))
}

// Available implements hostws.Host.
func (h FuncTable) Available(id int32) int32 {
	return h.callInt("ws_available", -1, id)
}

// Read implements hostws.Host.
func (h FuncTable) Read(id int32, p []byte) {
	dst := js.Global().Get("Uint8Array").New(len(p))
	_, err := h.call("ws_read", id, dst)
	if err != nil {
		return
	}
	js.CopyBytesToGo(p, dst)
}

// State implements hostws.Host.
func (h FuncTable) State(id int32) int32 {
	return h.callInt("ws_state", hostws.CodeNotExisting, id)
}

// Close implements hostws.Host.
func (h FuncTable) Close(id int32) {
	h.call("ws_close", id)
}

// Revive implements hostws.Host. It returns false if the table has no
// ws_revive function.
func (h FuncTable) Revive(id int32) bool {
	if h.v.Get("ws_revive").Type() != js.TypeFunction {
		return false
	}
	return h.callBool("ws_revive", id)
}
