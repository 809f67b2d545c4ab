// Package session owns the lifecycle of one boat link.
//
// Ownership boundary:
// - Link: transport, receive buffer, connection state
// - Handshake: bounded Connect exchange that establishes a link
// - Transfer: bounded PathData upload awaiting Received
// - retry/backoff primitives
//
// Every Handshake and Transfer runs inside Link.Transact, so request/reply
// exchanges on one link never interleave. Different links are independent.
package session
