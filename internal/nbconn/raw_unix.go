//go:build unix

package nbconn

import (
	"errors"
	"io"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// rawRead performs exactly one read(2) on the connection's descriptor.
// The runtime keeps the descriptor in non-blocking mode so EAGAIN is
// returned instead of waiting.
func rawRead(raw syscall.RawConn, p []byte) (n int, ok bool, err error) {
	var rerr error
	cerr := raw.Read(func(fd uintptr) bool {
		n, rerr = unix.Read(int(fd), p)
		return true
	})
	if cerr != nil {
		return 0, true, cerr
	}

	switch {
	case errors.Is(rerr, unix.EAGAIN), errors.Is(rerr, unix.EINTR):
		return 0, true, ErrWouldBlock
	case rerr != nil:
		return 0, true, os.NewSyscallError("read", rerr)
	case n == 0:
		return 0, true, io.EOF
	}
	return n, true, nil
}
