package ocppcs

import (
	"net/http"
	"sync"
)

// Transport is the contract a Transport Adapter implements so a Session can
// send frames back out over whatever channel it arrived on (WebSocket
// connection, or HTTP-tunnel send-to-client webhook).
type Transport interface {
	// Send writes text to the remote end. isResponse is true for a
	// CallResult/CallError reply to an inbound Call, false for a
	// server-initiated outbound Call — the HTTP-tunnel transport needs this
	// to decide whether it can still write to the original response writer
	// or must fall back to the out-of-band webhook.
	Send(text []byte, isResponse bool) error
}

// Session is the per-connection state the spec calls the Connection
// Coordinator: charging station identity, negotiated subprotocol, the
// transport it arrived on, and the single in-flight-Call discipline that
// keeps a Charging Station from ever seeing two overlapping server-initiated
// Calls.
type Session struct {
	ChargingStationID string
	Subprotocol       Subprotocol
	Adapter           *VersionAdapter
	Transport         Transport
	Header            http.Header // request headers, for auth inspection by handlers

	callLock sync.Mutex

	mu        sync.Mutex
	closed    bool
	ownedIDs  []string // unique_ids of Calls this session has outstanding
	pending   *PendingCallTable
}

// NewSession builds a Session bound to a PendingCallTable shared by the
// owning Router.
func NewSession(chargingStationID string, subprotocol Subprotocol, adapter *VersionAdapter, transport Transport, header http.Header, pending *PendingCallTable) *Session {
	return &Session{
		ChargingStationID: chargingStationID,
		Subprotocol:       subprotocol,
		Adapter:           adapter,
		Transport:         transport,
		Header:            header,
		pending:           pending,
	}
}

// LockCall acquires the session's call lock. A server-initiated Call must
// hold this for its entire request/response round trip so at most one
// outbound Call is ever in flight per session, per the spec's concurrency
// model.
func (s *Session) LockCall() {
	s.callLock.Lock()
}

// UnlockCall releases the call lock.
func (s *Session) UnlockCall() {
	s.callLock.Unlock()
}

// trackOutstanding records a unique_id this session is waiting on, so Close
// can release it if the connection drops mid-call.
func (s *Session) trackOutstanding(uniqueID string) {
	s.mu.Lock()
	s.ownedIDs = append(s.ownedIDs, uniqueID)
	s.mu.Unlock()
}

func (s *Session) untrackOutstanding(uniqueID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, id := range s.ownedIDs {
		if id == uniqueID {
			s.ownedIDs = append(s.ownedIDs[:i], s.ownedIDs[i+1:]...)
			return
		}
	}
}

// IsClosed reports whether Close has already run.
func (s *Session) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close tears the session down: any Router.Call blocked on this session's
// outstanding unique_ids is unblocked with a GenericError "session closed"
// CentralSystemError (same code and message as ErrSessionClosed, but not
// that value itself) instead of hanging until the response timeout.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	ids := s.ownedIDs
	s.ownedIDs = nil
	s.mu.Unlock()

	s.pending.RemoveAllForSession(ids)
}
