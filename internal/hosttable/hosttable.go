// Package hosttable implements hostws.Host in Go on top of evented
// sockets such as the browser WebSocket API.
//
// Socket events may arrive on any goroutine; they only update the table.
// Received messages are queued until the channel polls them.
package hosttable

import (
	"sync"

	"github.com/eapache/queue"

	"nhooyr.io/pollws/internal/hostws"
)

// Socket is a connection created by a DialFunc.
type Socket interface {
	SendBytes(p []byte) error
	Close() error
}

// Events are the callbacks a DialFunc must invoke for its socket.
type Events struct {
	OnOpen    func()
	OnMessage func(p []byte)
	OnError   func()
	OnClose   func()
}

// DialFunc starts connecting to url and returns immediately.
// Only binary messages must be passed to ev.OnMessage.
type DialFunc func(url string, ev Events) (Socket, error)

// Table is a hostws.Host. Ids are never reused.
type Table struct {
	dial DialFunc

	mu      sync.Mutex
	next    int32
	entries map[int32]*entry
}

var _ hostws.Host = &Table{}

type entry struct {
	url   string
	sock  Socket
	state int32
	// gen is bumped whenever sock is replaced or dropped so events
	// of a previous socket are ignored.
	gen      int
	received *queue.Queue
}

// New returns a Table creating its sockets with dial.
func New(dial DialFunc) *Table {
	return &Table{
		dial:    dial,
		entries: make(map[int32]*entry),
	}
}

// Open implements hostws.Host.
func (t *Table) Open(url string) int32 {
	t.mu.Lock()
	id := t.next
	t.next++
	e := &entry{
		url:      url,
		state:    hostws.CodeConnecting,
		received: queue.New(),
	}
	t.entries[id] = e
	gen := e.gen
	t.mu.Unlock()

	if !t.connect(id, e, gen) {
		t.mu.Lock()
		delete(t.entries, id)
		t.mu.Unlock()
		return -1
	}
	return id
}

// connect dials e.url without holding the lock as a DialFunc may invoke
// its callbacks right away.
func (t *Table) connect(id int32, e *entry, gen int) bool {
	sock, err := t.dial(e.url, t.events(id, gen))

	t.mu.Lock()
	defer t.mu.Unlock()

	if err != nil {
		if e.gen == gen {
			e.state = hostws.CodeClosed
		}
		return false
	}
	if e.gen != gen {
		// Closed while dialing.
		sock.Close()
		return true
	}
	e.sock = sock
	return true
}

// lookup returns the entry of id if the socket generation is current.
// t.mu must be held.
func (t *Table) lookup(id int32, gen int) *entry {
	e, ok := t.entries[id]
	if !ok || e.gen != gen {
		return nil
	}
	return e
}

func (t *Table) events(id int32, gen int) Events {
	update := func(fn func(e *entry)) {
		t.mu.Lock()
		defer t.mu.Unlock()

		e := t.lookup(id, gen)
		if e != nil {
			fn(e)
		}
	}

	return Events{
		OnOpen: func() {
			update(func(e *entry) {
				if e.state == hostws.CodeConnecting {
					e.state = hostws.CodeOpen
				}
			})
		},
		OnMessage: func(p []byte) {
			update(func(e *entry) {
				e.received.Add(p)
			})
		},
		OnError: func() {
			update(func(e *entry) {
				e.state = hostws.CodeClosed
			})
		},
		OnClose: func() {
			update(func(e *entry) {
				e.state = hostws.CodeClosed
				e.sock = nil
			})
		},
	}
}

// Len returns the number of ids that were opened and not closed yet.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Write implements hostws.Host.
func (t *Table) Write(id int32, p []byte) bool {
	t.mu.Lock()
	e, ok := t.entries[id]
	if !ok || e.sock == nil || e.state != hostws.CodeOpen {
		t.mu.Unlock()
		return false
	}
	sock := e.sock
	t.mu.Unlock()

	return sock.SendBytes(p) == nil
}

// Available implements hostws.Host.
func (t *Table) Available(id int32) int32 {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if !ok || e.received.Length() == 0 {
		return -1
	}
	return int32(len(e.received.Peek().([]byte)))
}

// Read implements hostws.Host.
func (t *Table) Read(id int32, p []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if !ok || e.received.Length() == 0 {
		return
	}
	copy(p, e.received.Remove().([]byte))
}

// State implements hostws.Host.
func (t *Table) State(id int32) int32 {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if !ok {
		return hostws.CodeNotExisting
	}
	return e.state
}

// Close implements hostws.Host. The id is forgotten and queued messages
// are dropped.
func (t *Table) Close(id int32) {
	t.mu.Lock()
	e, ok := t.entries[id]
	if !ok {
		t.mu.Unlock()
		return
	}
	delete(t.entries, id)
	sock := e.sock
	e.sock = nil
	e.gen++
	t.mu.Unlock()

	if sock != nil {
		sock.Close()
	}
}

// Revive implements hostws.Host. A connecting or open channel is left
// alone, anything else is dialed again under the same id.
func (t *Table) Revive(id int32) bool {
	t.mu.Lock()
	e, ok := t.entries[id]
	if !ok {
		t.mu.Unlock()
		return false
	}
	if e.sock != nil && e.state != hostws.CodeClosed {
		t.mu.Unlock()
		return true
	}
	old := e.sock
	e.sock = nil
	e.gen++
	e.state = hostws.CodeConnecting
	gen := e.gen
	t.mu.Unlock()

	if old != nil {
		old.Close()
	}
	return t.connect(id, e, gen)
}
