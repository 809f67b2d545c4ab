package protocol

import "google.golang.org/protobuf/encoding/protowire"

const (
	fieldVersion protowire.Number = 1
	fieldKind    protowire.Number = 2
	fieldPayload protowire.Number = 3
)

// MarshalEnvelope encodes env as a protobuf message.
// Zero-valued fields are omitted, matching proto3 encoding.
func MarshalEnvelope(env Envelope) []byte {
	out := make([]byte, 0, len(env.Version)+len(env.Payload)+8)
	if env.Version != "" {
		out = protowire.AppendTag(out, fieldVersion, protowire.BytesType)
		out = protowire.AppendString(out, env.Version)
	}
	if env.Kind != KindUndefined {
		out = protowire.AppendTag(out, fieldKind, protowire.VarintType)
		out = protowire.AppendVarint(out, uint64(int64(env.Kind)))
	}
	if len(env.Payload) > 0 {
		out = protowire.AppendTag(out, fieldPayload, protowire.BytesType)
		out = protowire.AppendBytes(out, env.Payload)
	}
	return out
}
