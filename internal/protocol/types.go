package protocol

import "fmt"

// Version is the protocol version stamped on every outgoing envelope.
const Version = "0.1.0"

// Kind identifies the payload carried by an Envelope.
type Kind int32

const (
	KindUndefined Kind = 0
	KindConnect   Kind = 1
	KindBoatData  Kind = 2
	KindPathData  Kind = 3
	KindReceived  Kind = 4
)

// Valid reports whether k is one of the four kinds that may appear on the wire.
func (k Kind) Valid() bool {
	switch k {
	case KindConnect, KindBoatData, KindPathData, KindReceived:
		return true
	default:
		return false
	}
}

func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindConnect:
		return "connect"
	case KindBoatData:
		return "boat_data"
	case KindPathData:
		return "path_data"
	case KindReceived:
		return "received"
	default:
		return fmt.Sprintf("kind(%d)", int32(k))
	}
}

// Envelope is the outer message of every frame.
// Version is informational; receivers never reject on mismatch.
type Envelope struct {
	Version string
	Kind    Kind
	Payload []byte
}
