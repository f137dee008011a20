// Package bpool pools the buffers outgoing frames are encoded into.
package bpool

import (
	"bytes"
	"sync"
)

// MaxPooled is the largest capacity a buffer may have to be pooled again.
// Buffers grown by an unusually large frame are left to the GC.
const MaxPooled = 64 << 10

var pool sync.Pool

// Get returns an empty buffer from the pool or a new one.
func Get() *bytes.Buffer {
	b, ok := pool.Get().(*bytes.Buffer)
	if !ok {
		b = &bytes.Buffer{}
	}
	return b
}

// Put resets b and returns it to the pool unless it grew past MaxPooled.
func Put(b *bytes.Buffer) {
	if b.Cap() > MaxPooled {
		return
	}
	b.Reset()
	pool.Put(b)
}
