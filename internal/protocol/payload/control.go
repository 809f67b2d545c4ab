package payload

import (
	"fmt"
	"unicode/utf8"

	"github.com/danmuck/boatlink/internal/protocol"
)

// Connect is the handshake probe. Both sides send it; a Connect reply
// completes the handshake.
type Connect struct {
	Version string
}

func NewConnect() Connect {
	return Connect{Version: protocol.Version}
}

func (c Connect) Marshal() []byte {
	return appendString(nil, 1, c.Version)
}

func UnmarshalConnect(b []byte) (Connect, error) {
	var c Connect
	err := walk(b, func(f field) error {
		if f.num != 1 {
			return nil
		}
		v, err := f.message()
		if err != nil {
			return err
		}
		if !utf8.Valid(v) {
			return fmt.Errorf("%w: connect version", ErrInvalidString)
		}
		c.Version = string(v)
		return nil
	})
	if err != nil {
		return Connect{}, err
	}
	return c, nil
}

// Received acknowledges a PathData upload. It carries no fields.
type Received struct{}

func (Received) Marshal() []byte {
	return nil
}

func UnmarshalReceived(b []byte) (Received, error) {
	if err := walk(b, func(field) error { return nil }); err != nil {
		return Received{}, err
	}
	return Received{}, nil
}
