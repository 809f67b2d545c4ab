package session

import "errors"

var (
	ErrNotConnected      = errors.New("session: link not connected")
	ErrNothingReceived   = errors.New("session: no complete frame received")
	ErrTransport         = errors.New("session: transport failure")
	ErrProtocol          = errors.New("session: protocol error")
	ErrUnexpectedKind    = errors.New("session: unexpected message kind")
	ErrHandshakeFailed   = errors.New("session: handshake failed")
	ErrNoAcknowledgement = errors.New("session: no acknowledgement")
)
