// Package centralsystem is the Application Shell: it owns one Router per
// installed subprotocol, negotiates which one a connecting Charging Station
// gets, and wires both Transport Adapter variants to the same routing and
// session bookkeeping regardless of which one a connection arrived through.
package centralsystem

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gridstreamer/ocpp-central/internal/metrics"
	"github.com/gridstreamer/ocpp-central/internal/ocppcs"
)

// CentralSystem is the Application Shell.
type CentralSystem struct {
	routers map[ocppcs.Subprotocol]*ocppcs.Router
	metrics *metrics.Registry
	log     *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*ocppcs.Session // charging station id -> session

	// OnStartup and OnShutdown are optional host hooks run once at process
	// lifecycle boundaries, mirroring the ASGI lifespan protocol the
	// original source exposed.
	OnStartup  func() error
	OnShutdown func() error

	// OnConnectHook, if set, is consulted before a connection is accepted,
	// letting a host reject e.g. duplicate charging station ids.
	OnConnectHook func(sess *ocppcs.Session) error
}

// New builds a CentralSystem from the set of Routers the host has installed,
// one per subprotocol it wants to speak.
func New(routers map[ocppcs.Subprotocol]*ocppcs.Router, m *metrics.Registry, log *slog.Logger) *CentralSystem {
	if log == nil {
		log = slog.Default()
	}
	return &CentralSystem{
		routers:  routers,
		metrics:  m,
		log:      log,
		sessions: make(map[string]*ocppcs.Session),
	}
}

// Start runs OnStartup, if set, surfacing any failure instead of silently
// continuing — the original ASGI app.py distinguishes startup.complete from
// startup.failed; this is that distinction expressed as a plain error
// return.
func (cs *CentralSystem) Start() error {
	if cs.OnStartup == nil {
		return nil
	}
	if err := cs.OnStartup(); err != nil {
		return fmt.Errorf("centralsystem: startup failed: %w", err)
	}
	return nil
}

// Stop runs OnShutdown, if set.
func (cs *CentralSystem) Stop() error {
	if cs.OnShutdown == nil {
		return nil
	}
	return cs.OnShutdown()
}

// Negotiate implements transport.Lifecycle.
func (cs *CentralSystem) Negotiate(offered []string) (ocppcs.Subprotocol, *ocppcs.Router, bool) {
	installed := make(map[ocppcs.Subprotocol]bool, len(cs.routers))
	for sp := range cs.routers {
		installed[sp] = true
	}
	sp, ok := ocppcs.NegotiateSubprotocol(offered, installed)
	if !ok {
		return "", nil, false
	}
	return sp, cs.routers[sp], true
}

// OnConnect implements transport.Lifecycle.
func (cs *CentralSystem) OnConnect(sess *ocppcs.Session) error {
	if cs.OnConnectHook != nil {
		if err := cs.OnConnectHook(sess); err != nil {
			return err
		}
	}

	cs.mu.Lock()
	if existing, ok := cs.sessions[sess.ChargingStationID]; ok {
		existing.Close()
	}
	cs.sessions[sess.ChargingStationID] = sess
	cs.mu.Unlock()

	if cs.metrics != nil {
		cs.metrics.ActiveSessions.Inc()
	}
	cs.log.Info("session opened", "charging_station_id", sess.ChargingStationID, "subprotocol", sess.Subprotocol)
	return nil
}

// OnFrame implements transport.Lifecycle.
func (cs *CentralSystem) OnFrame(sess *ocppcs.Session, text []byte) {
	router, ok := cs.routers[sess.Subprotocol]
	if !ok {
		cs.log.Error("no router for negotiated subprotocol", "subprotocol", sess.Subprotocol)
		return
	}
	if cs.metrics != nil {
		cs.metrics.FramesReceived.WithLabelValues(string(sess.Subprotocol), "unknown").Inc()
	}
	if err := router.RouteMessage(context.Background(), text, sess); err != nil {
		cs.log.Warn("dropped frame", "charging_station_id", sess.ChargingStationID, "error", err)
	}
}

// OnDisconnect implements transport.Lifecycle.
func (cs *CentralSystem) OnDisconnect(sess *ocppcs.Session) {
	cs.mu.Lock()
	if current, ok := cs.sessions[sess.ChargingStationID]; ok && current == sess {
		delete(cs.sessions, sess.ChargingStationID)
	}
	cs.mu.Unlock()

	if cs.metrics != nil {
		cs.metrics.ActiveSessions.Dec()
	}
	cs.log.Info("session closed", "charging_station_id", sess.ChargingStationID)
}

// Session looks up the live session for a Charging Station, for host code
// that wants to issue a server-initiated Call from outside a Handler (e.g.
// from an admin HTTP endpoint).
func (cs *CentralSystem) Session(chargingStationID string) (*ocppcs.Session, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	sess, ok := cs.sessions[chargingStationID]
	return sess, ok
}

// Router returns the Router installed for a subprotocol, if any.
func (cs *CentralSystem) Router(sp ocppcs.Subprotocol) (*ocppcs.Router, bool) {
	r, ok := cs.routers[sp]
	return r, ok
}

// ActiveSessionCount returns the number of currently connected sessions,
// for the admin /api/sessions endpoint.
func (cs *CentralSystem) ActiveSessionCount() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return len(cs.sessions)
}
