package protocol

import "errors"

var (
	ErrTruncated         = errors.New("protocol: truncated envelope")
	ErrFieldTypeMismatch = errors.New("protocol: field wire type mismatch")
	ErrInvalidUTF8       = errors.New("protocol: version is not valid utf-8")
	ErrUnknownKind       = errors.New("protocol: unknown message kind")
)
