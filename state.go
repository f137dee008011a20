package pollws

// State is the connection state of a Channel.
type State int

//go:generate stringer -type=State -trimprefix=State

// State constants.
const (
	// StateDisconnected means the channel never connected, the last
	// connection attempt failed or the peer went away.
	// Revive may be used to try again.
	StateDisconnected State = iota
	// StateConnected means the transport is established and usable.
	StateConnected
	// StateClosed means the channel was closed or failed terminally.
	StateClosed
)

// Raw state codes reported by the backends.
const (
	codeDisconnected int32 = 0
	codeConnected    int32 = 1
	codeClosed       int32 = 2
)

// decodeState maps a raw backend code to a State.
// Codes outside of the known range, such as the host's -1 for an id it
// does not know, are reported as StateClosed.
func decodeState(code int32) State {
	switch code {
	case codeDisconnected:
		return StateDisconnected
	case codeConnected:
		return StateConnected
	case codeClosed:
		return StateClosed
	default:
		return StateClosed
	}
}
