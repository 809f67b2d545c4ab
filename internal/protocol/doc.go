// Package protocol owns the boat link wire contract.
//
// Ownership boundary:
// - message kinds and the envelope type
// - envelope encode/decode (protobuf wire format)
//
// Framing lives in protocol/frame, payload schemas in protocol/payload,
// and link behavior in protocol/session.
package protocol
