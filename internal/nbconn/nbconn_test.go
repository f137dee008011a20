//go:build !js

package nbconn_test

import (
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"nhooyr.io/pollws/internal/nbconn"
	"nhooyr.io/pollws/internal/test/assert"
)

func tcpPair(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	assert.Success(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- c
	}()

	c1, err := net.Dial("tcp", ln.Addr().String())
	assert.Success(t, err)
	c2, ok := <-accepted
	if !ok {
		t.Fatal("failed to accept connection")
	}
	t.Cleanup(func() {
		c1.Close()
		c2.Close()
	})
	return c1, c2
}

// readEventually retries a non-blocking read until it returns data or
// an error other than ErrWouldBlock.
func readEventually(t *testing.T, c net.Conn, p []byte) (int, error) {
	t.Helper()

	deadline := time.Now().Add(time.Second * 10)
	for time.Now().Before(deadline) {
		n, err := c.Read(p)
		if !errors.Is(err, nbconn.ErrWouldBlock) {
			return n, err
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for data")
	return 0, nil
}

func testConn(t *testing.T, client, server net.Conn) {
	c := nbconn.New(client)
	assert.Equal(t, "nonblocking", false, c.Nonblocking())
	assert.Success(t, c.SetNonblocking(true))
	assert.Equal(t, "nonblocking", true, c.Nonblocking())

	p := make([]byte, 16)
	start := time.Now()
	n, err := c.Read(p)
	assert.ErrorIs(t, nbconn.ErrWouldBlock, err)
	assert.Equal(t, "n", 0, n)
	if d := time.Since(start); d > time.Second {
		t.Fatalf("non-blocking read took %v", d)
	}

	go server.Write([]byte("hey"))
	n, err = readEventually(t, c, p)
	assert.Success(t, err)
	assert.Equal(t, "data", []byte("hey"), p[:n])

	received := make(chan []byte, 1)
	go func() {
		b := make([]byte, 4)
		_, err := io.ReadFull(server, b)
		if err != nil {
			b = nil
		}
		received <- b
	}()
	n, err = c.Write([]byte("back"))
	assert.Success(t, err)
	assert.Equal(t, "n", 4, n)
	assert.Equal(t, "data", []byte("back"), <-received)

	server.Close()
	_, err = readEventually(t, c, p)
	assert.ErrorIs(t, io.EOF, err)
}

func TestConn(t *testing.T) {
	t.Parallel()

	t.Run("tcp", func(t *testing.T) {
		t.Parallel()

		client, server := tcpPair(t)
		testConn(t, client, server)
	})

	t.Run("deadlineFallback", func(t *testing.T) {
		t.Parallel()

		// net.Pipe does not expose a file descriptor.
		client, server := net.Pipe()
		defer client.Close()
		testConn(t, client, server)
	})

	t.Run("blocking", func(t *testing.T) {
		t.Parallel()

		client, server := tcpPair(t)
		c := nbconn.New(client)
		assert.Success(t, c.SetNonblocking(true))
		assert.Success(t, c.SetNonblocking(false))

		go func() {
			time.Sleep(time.Millisecond * 50)
			server.Write([]byte("late"))
		}()

		p := make([]byte, 4)
		n, err := io.ReadFull(c, p)
		assert.Success(t, err)
		assert.Equal(t, "data", []byte("late"), p[:n])
	})

	t.Run("wouldBlockIsTemporary", func(t *testing.T) {
		t.Parallel()

		var netErr net.Error
		if !errors.As(nbconn.ErrWouldBlock, &netErr) {
			t.Fatal("ErrWouldBlock is not a net.Error")
		}
		assert.Equal(t, "timeout", true, netErr.Timeout())
		assert.Equal(t, "temporary", true, netErr.Temporary())
	})
}
