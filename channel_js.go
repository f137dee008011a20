//go:build js

package pollws

import (
	"context"
	"sync"

	"nhooyr.io/pollws/internal/hostws"
	"nhooyr.io/pollws/internal/hosttable"
	"nhooyr.io/pollws/internal/wsjs"
)

// globalHostName is the globalThis property checked for a javascript
// host function table.
const globalHostName = "pollws_host"

var (
	defaultHostOnce sync.Once
	defaultHost     hostws.Host
)

func getDefaultHost() hostws.Host {
	defaultHostOnce.Do(func() {
		if ft, ok := wsjs.GlobalFuncTable(globalHostName); ok {
			defaultHost = ft
			return
		}
		defaultHost = hosttable.New(wsjs.Dial)
	})
	return defaultHost
}

func newTransport(ctx context.Context, u string, secure bool, opts *Options) (transport, error) {
	h := opts.Host
	if h == nil {
		h = getDefaultHost()
	}

	t, err := hostws.Open(h, u, opts.logf)
	if err != nil {
		return nil, err
	}
	return t, nil
}
