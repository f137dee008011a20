package wsframe

import (
	"fmt"

	"github.com/gobwas/ws"
)

// Message is a complete text or binary message.
type Message struct {
	OpCode  ws.OpCode
	Payload []byte
}

// Assembler joins fragmented data frames into messages.
// Frames must have been validated by a Decoder, control frames must not
// be pushed.
type Assembler struct {
	// Limit bounds the size of an assembled message. <= 0 disables it.
	Limit int64

	op      ws.OpCode
	payload []byte
}

// Push adds a data frame. It returns the message and true once the
// final fragment was pushed.
func (a *Assembler) Push(f Frame) (Message, bool, error) {
	if f.Header.OpCode != ws.OpContinuation {
		a.op = f.Header.OpCode
		a.payload = a.payload[:0]
	}

	if a.Limit > 0 && int64(len(a.payload))+f.Header.Length > a.Limit {
		size := int64(len(a.payload)) + f.Header.Length
		a.reset()
		return Message{}, false, &CloseError{
			Code: ws.StatusMessageTooBig,
			Err:  fmt.Errorf("message of at least %v bytes exceeds read limit of %v bytes", size, a.Limit),
		}
	}

	if f.Header.Fin && len(a.payload) == 0 {
		m := Message{
			OpCode:  a.op,
			Payload: f.Payload,
		}
		a.reset()
		return m, true, nil
	}

	a.payload = append(a.payload, f.Payload...)
	if !f.Header.Fin {
		return Message{}, false, nil
	}

	m := Message{
		OpCode:  a.op,
		Payload: make([]byte, len(a.payload)),
	}
	copy(m.Payload, a.payload)
	a.reset()
	return m, true, nil
}

func (a *Assembler) reset() {
	a.op = 0
	a.payload = a.payload[:0]
}
