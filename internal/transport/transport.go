// Package transport defines the contract both Transport Adapter variants
// (WebSocket, HTTP-tunneled) satisfy, and the callbacks the Application
// Shell supplies to drive session lifecycle regardless of which variant a
// Charging Station connected through.
package transport

import (
	"github.com/gridstreamer/ocpp-central/internal/ocppcs"
)

// Lifecycle is implemented by the Application Shell and invoked by a
// Transport Adapter as connections come and go. It is the seam that keeps
// both transport variants ignorant of routing/session bookkeeping.
type Lifecycle interface {
	// Negotiate picks a subprotocol and its Router from the ones offered,
	// or reports that none of them are installed.
	Negotiate(offered []string) (ocppcs.Subprotocol, *ocppcs.Router, bool)

	// OnConnect is called once a session's identity and subprotocol are
	// known. Returning an error rejects the connection (e.g. duplicate
	// charging station id, if the host chooses to enforce that).
	OnConnect(sess *ocppcs.Session) error

	// OnFrame is called for every inbound frame on an already-open session.
	OnFrame(sess *ocppcs.Session, text []byte)

	// OnDisconnect is called once a session's connection has ended.
	OnDisconnect(sess *ocppcs.Session)
}
