/*Package rpcserver implements the server half of the wire protocol: the
state machine and dispatch loop of spec.md §4.4, translating each of the
17 catalog operations into a call against a usbadapter.Adapter and the
result back into the matching irpc response frame.
*/
package rpcserver

import (
	"context"
	"log"
	"net"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/nasa-jpl/irpcd/irpc"
	"github.com/nasa-jpl/irpcd/usbadapter"
)

// Stage names the position in spec.md §4.4's state machine:
// INIT_PENDING -> READY -> HANDLE_OPEN -> READY -> TEARDOWN.
type Stage int

const (
	StageInitPending Stage = iota
	StageReady
	StageHandleOpen
	StageTeardown
)

func (s Stage) String() string {
	switch s {
	case StageInitPending:
		return "INIT_PENDING"
	case StageReady:
		return "READY"
	case StageHandleOpen:
		return "HANDLE_OPEN"
	case StageTeardown:
		return "TEARDOWN"
	default:
		return "UNKNOWN"
	}
}

// Server holds the single global USB context and current device handle
// spec.md §4.4 describes. It is shared across every connection accepted
// by Serve: the protocol has one adapter context and one current handle
// for the life of the process, not one per connection (spec.md §9
// Non-goals: "no support for more than one simultaneous client
// connection").
type Server struct {
	Adapter usbadapter.Adapter

	// Strict, when true, rejects any per-device operation whose request
	// handle does not carry the session ID of the currently open
	// device, instead of the original library's behavior of routing
	// every such operation to current_handle regardless of which handle
	// the client sent (spec.md §9 Open Question, §4 supplemented
	// features: "StrictHandleRouting"). Default false reproduces the
	// original behavior exactly.
	Strict bool

	Logger *log.Logger

	// Limiter, if non-nil, throttles dispatched operations before they
	// reach Adapter, the same protection nkt's command sender gives a
	// source that "does not like being connection thrashed" — a real
	// USB device driven by a tight client loop deserves the same
	// courtesy. Nil disables throttling entirely.
	Limiter *rate.Limiter

	mu           sync.Mutex
	stage        Stage
	handle       usbadapter.Handle
	handleDevice usbadapter.Device
}

// NewServer returns a Server in INIT_PENDING, ready for Serve.
func NewServer(adapter usbadapter.Adapter, strict bool, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{Adapter: adapter, Strict: strict, Logger: logger}
}

// Serve runs the dispatch loop of spec.md §4.4 against conn until a
// transport error occurs (spec.md §7 category 1), at which point it
// closes conn and returns the error. Adapter and protocol-misuse errors
// (categories 2 and 3) are reported to the peer as FAILURE and do not
// end the loop.
func (s *Server) Serve(conn net.Conn) error {
	defer conn.Close()
	sess := irpc.NewSession(conn, irpc.RoleServer)
	for {
		op, err := sess.RecvSelector()
		if err != nil {
			return errors.Wrap(err, "rpcserver: recv selector")
		}
		if !op.Valid() {
			s.Logger.Printf("rpcserver: unknown selector %d, replying FAILURE", op)
			if err := (irpc.StatusResponse{Status: int32(irpc.StatusFailure)}).Write(sess.Writer()); err != nil {
				return errors.Wrap(err, "rpcserver: unknown selector reply")
			}
			continue
		}
		if s.Limiter != nil {
			if err := s.Limiter.Wait(context.Background()); err != nil {
				return errors.Wrap(err, "rpcserver: rate limiter")
			}
		}
		if err := s.dispatch(sess, op); err != nil {
			s.Logger.Printf("rpcserver: %s: transport error: %v", op, err)
			return err
		}
	}
}

// Snapshot is a read-only view of the server's state machine, safe to
// expose over the diagnostics sidecar since it cannot drive any USB
// operation (spec.md §9 supplemented features).
type Snapshot struct {
	Stage            string `json:"stage"`
	HandleOpen       bool   `json:"handle_open"`
	CurrentSessionID int32  `json:"current_session_id,omitempty"`
	StrictRouting    bool   `json:"strict_handle_routing"`
}

// Snapshot reads the server's current state without mutating it.
func (s *Server) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Stage:            s.stage.String(),
		HandleOpen:       s.handle != nil,
		CurrentSessionID: s.handleDevice.SessionID,
		StrictRouting:    s.Strict,
	}
}

func (s *Server) dispatch(sess *irpc.Session, op irpc.Selector) error {
	switch op {
	case irpc.OpInit:
		return s.doInit(sess)
	case irpc.OpExit:
		return s.doExit(sess)
	case irpc.OpGetDeviceList:
		return s.doGetDeviceList(sess)
	case irpc.OpGetDeviceDescriptor:
		return s.doGetDeviceDescriptor(sess)
	case irpc.OpOpenWithVIDPID:
		return s.doOpenWithVIDPID(sess)
	case irpc.OpOpen:
		return s.doOpen(sess)
	case irpc.OpClose:
		return s.doClose(sess)
	case irpc.OpClaimInterface:
		return s.doHandleInt(sess, func(h usbadapter.Handle, v int32) error {
			return s.Adapter.ClaimInterface(h, int(v))
		})
	case irpc.OpReleaseInterface:
		return s.doHandleInt(sess, func(h usbadapter.Handle, v int32) error {
			return s.Adapter.ReleaseInterface(h, int(v))
		})
	case irpc.OpGetConfiguration:
		return s.doGetConfiguration(sess)
	case irpc.OpSetConfiguration:
		return s.doHandleInt(sess, func(h usbadapter.Handle, v int32) error {
			return s.Adapter.SetConfiguration(h, int(v))
		})
	case irpc.OpSetInterfaceAltSetting:
		return s.doSetInterfaceAltSetting(sess)
	case irpc.OpResetDevice:
		return s.doHandleOnly(sess, s.Adapter.Reset)
	case irpc.OpControlTransfer:
		return s.doControlTransfer(sess)
	case irpc.OpBulkTransfer:
		return s.doBulkTransfer(sess)
	case irpc.OpClearHalt:
		return s.doClearHalt(sess)
	case irpc.OpGetStringDescriptorASCII:
		return s.doGetStringDescriptorASCII(sess)
	default:
		return errors.Errorf("rpcserver: selector %s not implemented", op)
	}
}
