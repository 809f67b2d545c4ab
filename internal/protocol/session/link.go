package session

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"github.com/danmuck/boatlink/internal/observability"
	"github.com/danmuck/boatlink/internal/protocol"
	"github.com/danmuck/boatlink/internal/protocol/frame"
	"github.com/danmuck/boatlink/internal/protocol/payload"
	"github.com/rs/zerolog/log"
)

// State is the connection state of a Link. Disconnected is terminal.
type State int32

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Emitter receives link notifications. Calls happen on the goroutine that
// drove the link and must not block for long.
type Emitter interface {
	DataReceived(link string, data payload.BoatData)
	LinkLost(link string)
}

// Link is one point-to-point session with a boat over an exclusively owned
// byte stream.
type Link struct {
	name    string
	cfg     Config
	emitter Emitter

	// tx serializes request/reply exchanges; mu guards the transport and
	// receive buffer for a single Send or Receive.
	tx        sync.Mutex
	mu        sync.Mutex
	transport io.ReadWriteCloser
	buf       []byte
	chunk     []byte

	state       atomic.Int32
	established atomic.Bool

	closeOnce sync.Once
	closeErr  error
}

// NewLink wraps an opened transport. The link starts in StateConnecting and
// becomes StateConnected after a successful Handshake.
func NewLink(name string, transport io.ReadWriteCloser, cfg Config, emitter Emitter) *Link {
	cfg = cfg.withDefaults()
	return &Link{
		name:      name,
		cfg:       cfg,
		emitter:   emitter,
		transport: transport,
		chunk:     make([]byte, cfg.ReadChunk),
	}
}

func (l *Link) Name() string {
	return l.name
}

func (l *Link) Config() Config {
	return l.cfg
}

func (l *Link) State() State {
	return State(l.state.Load())
}

// Connected reports whether the link has not been disconnected.
func (l *Link) Connected() bool {
	return l.State() != StateDisconnected
}

// Transact runs fn while holding the link's transaction lock.
func (l *Link) Transact(fn func() error) error {
	l.tx.Lock()
	defer l.tx.Unlock()
	return fn()
}

// Send frames msg under kind and writes it to the transport. A write error is
// returned but leaves the state untouched.
func (l *Link) Send(kind protocol.Kind, msg []byte) error {
	if !l.Connected() {
		return ErrNotConnected
	}
	l.mu.Lock()
	err := frame.WriteFrame(l.transport, kind, l.cfg.Version, msg, frame.Limits{MaxFrameBytes: l.cfg.MaxFrameBytes})
	l.mu.Unlock()
	if errors.Is(err, frame.ErrWrite) {
		return fmt.Errorf("%w: %s: %w", ErrTransport, kind, err)
	}
	return err
}

// Receive performs one read and decodes at most one frame.
//
// ErrNothingReceived means no complete frame is buffered yet. ErrProtocol
// means the buffered bytes were discarded. ErrTransport means the link is now
// disconnected. BoatData frames are forwarded to the emitter before returning.
func (l *Link) Receive() (protocol.Kind, error) {
	if !l.Connected() {
		return protocol.KindUndefined, ErrNotConnected
	}

	l.mu.Lock()
	n, err := l.transport.Read(l.chunk)
	if n > 0 {
		l.buf = append(l.buf, l.chunk[:n]...)
	}
	if err != nil && !isTimeout(err) {
		l.mu.Unlock()
		log.Warn().Str("link", l.name).Err(err).Msg("link read failed")
		l.Disconnect()
		return protocol.KindUndefined, fmt.Errorf("%w: read: %w", ErrTransport, err)
	}

	env, used, err := frame.DecodeLimited(l.buf, frame.Limits{MaxFrameBytes: l.cfg.MaxFrameBytes})
	if errors.Is(err, frame.ErrNeedMoreData) {
		l.mu.Unlock()
		return protocol.KindUndefined, ErrNothingReceived
	}
	if err != nil {
		dropped := len(l.buf)
		l.buf = l.buf[:0]
		l.mu.Unlock()
		observability.RecordProtocolError(l.name)
		log.Warn().Str("link", l.name).Int("dropped", dropped).Err(err).Msg("malformed frame discarded")
		return protocol.KindUndefined, fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	l.buf = append(l.buf[:0], l.buf[used:]...)
	l.mu.Unlock()

	observability.RecordFrame(l.name, env.Kind.String())
	return l.dispatch(env)
}

func (l *Link) dispatch(env protocol.Envelope) (protocol.Kind, error) {
	switch env.Kind {
	case protocol.KindBoatData:
		data, err := payload.UnmarshalBoatData(env.Payload)
		if err != nil {
			return l.protocolError(env.Kind, err)
		}
		log.Debug().Str("link", l.name).Int("features", len(data.Features)).Msg("boat data received")
		if l.emitter != nil {
			l.emitter.DataReceived(l.name, data)
		}
	case protocol.KindConnect:
		if _, err := payload.UnmarshalConnect(env.Payload); err != nil {
			return l.protocolError(env.Kind, err)
		}
	case protocol.KindReceived:
		if _, err := payload.UnmarshalReceived(env.Payload); err != nil {
			return l.protocolError(env.Kind, err)
		}
	default:
		return l.protocolError(env.Kind, fmt.Errorf("%w: %s from boat", ErrUnexpectedKind, env.Kind))
	}
	return env.Kind, nil
}

func (l *Link) protocolError(kind protocol.Kind, err error) (protocol.Kind, error) {
	observability.RecordProtocolError(l.name)
	log.Warn().Str("link", l.name).Str("kind", kind.String()).Err(err).Msg("invalid payload")
	return protocol.KindUndefined, fmt.Errorf("%w: %s: %w", ErrProtocol, kind, err)
}

// Disconnect moves the link to StateDisconnected. The first call on a link
// that completed a handshake emits LinkLost.
func (l *Link) Disconnect() {
	prev := State(l.state.Swap(int32(StateDisconnected)))
	if prev == StateDisconnected {
		return
	}
	log.Info().Str("link", l.name).Str("from", prev.String()).Msg("link disconnected")
	if l.established.Load() && l.emitter != nil {
		l.emitter.LinkLost(l.name)
	}
}

// Close disconnects without emitting and releases the transport. It does not
// wait for an in-flight read, so it can be used to unblock one.
func (l *Link) Close() error {
	l.state.Store(int32(StateDisconnected))
	l.closeOnce.Do(func() {
		l.closeErr = l.transport.Close()
	})
	return l.closeErr
}

func (l *Link) markConnected() {
	l.established.Store(true)
	l.state.CompareAndSwap(int32(StateConnecting), int32(StateConnected))
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
