package boattest

import (
	"github.com/danmuck/boatlink/internal/protocol"
	"github.com/danmuck/boatlink/internal/protocol/payload"
)

// Silent never answers.
func Silent() Responder {
	return func(protocol.Envelope) []byte { return nil }
}

// Boat answers Connect with Connect and PathData with Received.
func Boat() Responder {
	return func(env protocol.Envelope) []byte {
		switch env.Kind {
		case protocol.KindConnect:
			return Frame(protocol.KindConnect, payload.NewConnect().Marshal())
		case protocol.KindPathData:
			return Frame(protocol.KindReceived, payload.Received{}.Marshal())
		default:
			return nil
		}
	}
}

// AckOnAttempt behaves like Boat but only acknowledges the nth PathData.
func AckOnAttempt(n int) Responder {
	boat := Boat()
	paths := 0
	return func(env protocol.Envelope) []byte {
		if env.Kind != protocol.KindPathData {
			return boat(env)
		}
		paths++
		if paths == n {
			return boat(env)
		}
		return nil
	}
}

// ConnectOnly answers Connect and ignores everything else.
func ConnectOnly() Responder {
	boat := Boat()
	return func(env protocol.Envelope) []byte {
		if env.Kind == protocol.KindConnect {
			return boat(env)
		}
		return nil
	}
}

// ConnectTimes answers the first n Connect frames, then goes silent.
func ConnectTimes(n int) Responder {
	boat := Boat()
	seen := 0
	return func(env protocol.Envelope) []byte {
		if env.Kind != protocol.KindConnect {
			return nil
		}
		seen++
		if seen > n {
			return nil
		}
		return boat(env)
	}
}
