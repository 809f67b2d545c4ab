package frame

import (
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/boatlink/internal/protocol"
	"google.golang.org/protobuf/encoding/protowire"
)

var (
	ErrNeedMoreData  = errors.New("frame: need more data")
	ErrMalformed     = errors.New("frame: malformed frame")
	ErrFrameTooLarge = errors.New("frame: frame too large")
	ErrWrite         = errors.New("frame: write failed")
)

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxFrameBytes uint64
}

func DefaultLimits() Limits {
	return Limits{MaxFrameBytes: 1 << 20}
}

// Encode returns uvarint(len(envelope)) followed by the encoded envelope.
func Encode(kind protocol.Kind, version string, payload []byte) ([]byte, error) {
	return EncodeLimited(kind, version, payload, DefaultLimits())
}

func EncodeLimited(kind protocol.Kind, version string, payload []byte, limits Limits) ([]byte, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %s", protocol.ErrUnknownKind, kind)
	}
	body := protocol.MarshalEnvelope(protocol.Envelope{Version: version, Kind: kind, Payload: payload})
	if limits.MaxFrameBytes > 0 && uint64(len(body)) > limits.MaxFrameBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(body))
	}
	out := make([]byte, 0, protowire.SizeVarint(uint64(len(body)))+len(body))
	out = protowire.AppendVarint(out, uint64(len(body)))
	return append(out, body...), nil
}

// WriteFrame encodes one frame and writes it in a single call. Failures of w
// are wrapped in ErrWrite; encode failures are returned as is.
func WriteFrame(w io.Writer, kind protocol.Kind, version string, payload []byte, limits Limits) error {
	b, err := EncodeLimited(kind, version, payload, limits)
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}

// Decode parses the first complete frame in buf and reports how many bytes it
// used. ErrNeedMoreData means buf holds only a prefix of a frame and nothing
// was consumed. Anything else that fails is ErrMalformed.
func Decode(buf []byte) (protocol.Envelope, int, error) {
	return DecodeLimited(buf, DefaultLimits())
}

func DecodeLimited(buf []byte, limits Limits) (protocol.Envelope, int, error) {
	size, n := protowire.ConsumeVarint(buf)
	if n < 0 {
		if errors.Is(protowire.ParseError(n), io.ErrUnexpectedEOF) {
			return protocol.Envelope{}, 0, ErrNeedMoreData
		}
		return protocol.Envelope{}, 0, fmt.Errorf("%w: length prefix: %v", ErrMalformed, protowire.ParseError(n))
	}
	if n != protowire.SizeVarint(size) {
		return protocol.Envelope{}, 0, fmt.Errorf("%w: non-minimal length prefix", ErrMalformed)
	}
	if limits.MaxFrameBytes > 0 && size > limits.MaxFrameBytes {
		return protocol.Envelope{}, 0, fmt.Errorf("%w: declared length %d exceeds %d", ErrMalformed, size, limits.MaxFrameBytes)
	}
	if uint64(len(buf)-n) < size {
		return protocol.Envelope{}, 0, ErrNeedMoreData
	}

	end := n + int(size)
	env, err := protocol.UnmarshalEnvelope(buf[n:end])
	if err != nil {
		return protocol.Envelope{}, 0, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return env, end, nil
}
