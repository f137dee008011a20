//go:build !unix && !js

package nbconn

import (
	"syscall"
)

// rawRead is unavailable here, reads fall back to a short deadline.
func rawRead(raw syscall.RawConn, p []byte) (int, bool, error) {
	return 0, false, nil
}
