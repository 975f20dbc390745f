package irpc

import (
	"io"
	"sync"

	"github.com/nasa-jpl/irpcd/wire"
)

// Role names which end of a Session a peer is playing (spec.md §3:
// "Session / connection info").
type Role int

const (
	// RoleClient drives the session: write selector, write request,
	// read response.
	RoleClient Role = iota
	// RoleServer blocks on the stream, reads a selector, dispatches,
	// writes a response.
	RoleServer
)

// Session owns one byte stream and sequences the frames that cross it.
// It does not interleave calls: a caller must complete one full
// request/response exchange before starting the next (spec.md §4.6,
// §5). The mutex below turns "undefined behavior" for concurrent
// callers into simple serialization rather than a corrupted stream,
// the same posture comm.RemoteDevice takes with SendRecv in the
// teacher repository.
type Session struct {
	conn io.ReadWriteCloser
	role Role
	w    *wire.Writer
	r    *wire.Reader
	mu   sync.Mutex
}

// NewSession wraps conn (typically a net.Conn) in a Session playing
// role.
func NewSession(conn io.ReadWriteCloser, role Role) *Session {
	return &Session{
		conn: conn,
		role: role,
		w:    wire.NewWriter(conn),
		r:    wire.NewReader(conn),
	}
}

// Role reports which end of the session this peer is playing.
func (s *Session) Role() Role { return s.role }

// Close drops the underlying stream. Per spec.md §7, any transport
// error is fatal to the connection; Close is how a caller acts on
// that.
func (s *Session) Close() error { return s.conn.Close() }

// Lock and Unlock bracket one full request/response exchange so two
// goroutines sharing a Session cannot interleave their frames.
func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// SendSelector writes the operation selector as its own frame
// (spec.md §4.2: "every request is preceded ... by a separate framed
// message carrying only the operation selector").
func (s *Session) SendSelector(op Selector) error {
	s.w.Int32(int32(op))
	return s.w.Flush(selectorFormat)
}

// RecvSelector reads one selector frame. Used by the server dispatch
// loop (spec.md §4.4) and by tests that want to observe what a client
// stub actually sent (spec.md P3).
func (s *Session) RecvSelector() (Selector, error) {
	if err := s.r.ReadFrame(selectorFormat); err != nil {
		return 0, err
	}
	v, err := s.r.Int32()
	return Selector(v), err
}

// Writer exposes the session's frame writer to the irpc message types'
// Write methods.
func (s *Session) Writer() *wire.Writer { return s.w }

// Reader exposes the session's frame reader to the irpc ReadX
// functions.
func (s *Session) Reader() *wire.Reader { return s.r }
