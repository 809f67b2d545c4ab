package protocol

import (
	"fmt"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

// UnmarshalEnvelope decodes a protobuf-encoded envelope.
// Unknown fields are skipped. A kind outside the known set is rejected.
func UnmarshalEnvelope(b []byte) (Envelope, error) {
	var env Envelope
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Envelope{}, fmt.Errorf("%w: tag: %v", ErrTruncated, protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fieldVersion:
			if typ != protowire.BytesType {
				return Envelope{}, fmt.Errorf("%w: version", ErrFieldTypeMismatch)
			}
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Envelope{}, fmt.Errorf("%w: version: %v", ErrTruncated, protowire.ParseError(n))
			}
			if !utf8.Valid(v) {
				return Envelope{}, ErrInvalidUTF8
			}
			env.Version = string(v)
			b = b[n:]
		case fieldKind:
			if typ != protowire.VarintType {
				return Envelope{}, fmt.Errorf("%w: kind", ErrFieldTypeMismatch)
			}
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Envelope{}, fmt.Errorf("%w: kind: %v", ErrTruncated, protowire.ParseError(n))
			}
			env.Kind = Kind(int32(v))
			b = b[n:]
		case fieldPayload:
			if typ != protowire.BytesType {
				return Envelope{}, fmt.Errorf("%w: payload", ErrFieldTypeMismatch)
			}
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Envelope{}, fmt.Errorf("%w: payload: %v", ErrTruncated, protowire.ParseError(n))
			}
			env.Payload = append([]byte(nil), v...)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Envelope{}, fmt.Errorf("%w: field %d: %v", ErrTruncated, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	if !env.Kind.Valid() {
		return Envelope{}, fmt.Errorf("%w: %s", ErrUnknownKind, env.Kind)
	}
	return env, nil
}
