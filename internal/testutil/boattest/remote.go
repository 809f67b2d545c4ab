// Package boattest provides an in-memory boat for link tests.
package boattest

import (
	"errors"
	"io"
	"sync"

	"github.com/danmuck/boatlink/internal/protocol"
	"github.com/danmuck/boatlink/internal/protocol/frame"
	"github.com/danmuck/boatlink/internal/protocol/payload"
)

// Responder maps one decoded frame from the desk side to the raw bytes the
// boat sends back. It runs with the Remote locked.
type Responder func(env protocol.Envelope) []byte

// Remote is the boat end of a link transport. Reads never block: an empty
// outbox reads as a timeout (0, nil).
type Remote struct {
	mu       sync.Mutex
	respond  Responder
	chunk    int
	inbox    []byte
	outbox   []byte
	readErr  error
	writeErr error
	closed   bool
	sent     map[protocol.Kind]int
	reads    int
	writes   int
	opens    int
}

func NewRemote(respond Responder) *Remote {
	if respond == nil {
		respond = Silent()
	}
	return &Remote{respond: respond, sent: make(map[protocol.Kind]int)}
}

// SetReadChunk caps each Read to n bytes. Zero means everything queued.
func (r *Remote) SetReadChunk(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunk = n
}

func (r *Remote) SetResponder(respond Responder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if respond == nil {
		respond = Silent()
	}
	r.respond = respond
}

func (r *Remote) SetReadErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readErr = err
}

func (r *Remote) SetWriteErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writeErr = err
}

// Push queues raw bytes for the desk side to read.
func (r *Remote) Push(b []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outbox = append(r.outbox, b...)
}

func (r *Remote) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	if r.closed {
		return 0, io.EOF
	}
	if r.readErr != nil {
		return 0, r.readErr
	}
	n := len(r.outbox)
	if r.chunk > 0 && n > r.chunk {
		n = r.chunk
	}
	n = copy(p, r.outbox[:n])
	r.outbox = r.outbox[n:]
	return n, nil
}

func (r *Remote) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, io.ErrClosedPipe
	}
	if r.writeErr != nil {
		return 0, r.writeErr
	}
	r.writes++
	r.inbox = append(r.inbox, p...)
	for {
		env, n, err := frame.Decode(r.inbox)
		if errors.Is(err, frame.ErrNeedMoreData) {
			break
		}
		if err != nil {
			r.inbox = r.inbox[:0]
			break
		}
		r.inbox = r.inbox[n:]
		r.sent[env.Kind]++
		r.outbox = append(r.outbox, r.respond(env)...)
	}
	return len(p), nil
}

func (r *Remote) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// reopen resets the connection state for a fresh Open and returns the new
// connection generation.
func (r *Remote) reopen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = false
	r.inbox = nil
	r.outbox = nil
	r.opens++
	return r.opens
}

// conn is one opened handle on a Remote. Handles from earlier opens read EOF
// and their Close does not affect the current handle.
type conn struct {
	remote *Remote
	gen    int
}

func (c *conn) stale() bool {
	c.remote.mu.Lock()
	defer c.remote.mu.Unlock()
	return c.remote.opens != c.gen
}

func (c *conn) Read(p []byte) (int, error) {
	if c.stale() {
		return 0, io.EOF
	}
	return c.remote.Read(p)
}

func (c *conn) Write(p []byte) (int, error) {
	if c.stale() {
		return 0, io.ErrClosedPipe
	}
	return c.remote.Write(p)
}

func (c *conn) Close() error {
	if c.stale() {
		return nil
	}
	return c.remote.Close()
}

// Sent reports how many frames of kind the desk side wrote.
func (r *Remote) Sent(kind protocol.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent[kind]
}

func (r *Remote) Reads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reads
}

func (r *Remote) Writes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

func (r *Remote) Opens() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opens
}

func (r *Remote) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Frame encodes one frame or panics; test inputs are always valid.
func Frame(kind protocol.Kind, msg []byte) []byte {
	b, err := frame.Encode(kind, protocol.Version, msg)
	if err != nil {
		panic(err)
	}
	return b
}

// BoatDataFrame encodes data as a BoatData frame.
func BoatDataFrame(data payload.BoatData) []byte {
	msg, err := data.Marshal()
	if err != nil {
		panic(err)
	}
	return Frame(protocol.KindBoatData, msg)
}
