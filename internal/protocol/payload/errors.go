package payload

import "errors"

var (
	ErrTruncated     = errors.New("payload: truncated message")
	ErrWireType      = errors.New("payload: unexpected wire type")
	ErrMissingField  = errors.New("payload: required field missing")
	ErrUnknownLayer  = errors.New("payload: unknown layer")
	ErrInvalidString = errors.New("payload: string is not valid utf-8")
	ErrTimestamp     = errors.New("payload: invalid timestamp")
)
