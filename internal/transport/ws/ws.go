// Package ws is the WebSocket Transport Adapter: it upgrades an incoming
// HTTP request to a persistent WebSocket connection, negotiates an OCPP-J
// subprotocol, and pumps frames between the socket and the Application
// Shell for the life of the connection.
package ws

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/gridstreamer/ocpp-central/internal/ocppcs"
	"github.com/gridstreamer/ocpp-central/internal/transport"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Handler upgrades and serves OCPP-J WebSocket connections mounted at
// /ocpp/{chargingStationId}.
type Handler struct {
	lifecycle transport.Lifecycle
	upgrader  websocket.Upgrader
	log       *slog.Logger
}

// NewHandler builds a Handler wired to the Application Shell's Lifecycle.
func NewHandler(lifecycle transport.Lifecycle, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		lifecycle: lifecycle,
		log:       log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The charging station id in the path, plus the handler's own
			// TLS/network perimeter, is the access control here — the
			// upstream reverse proxy is expected to restrict Origins.
			CheckOrigin: func(r *http.Request) bool { return true },
			Subprotocols: []string{
				string(ocppcs.SubprotocolOCPP201),
				string(ocppcs.SubprotocolOCPP20),
				string(ocppcs.SubprotocolOCPP16),
			},
		},
	}
}

// RegisterRoutes mounts the WebSocket endpoint on r.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/ocpp/{chargingStationId}", h.handle).Methods(http.MethodGet)
}

func (h *Handler) handle(w http.ResponseWriter, r *http.Request) {
	chargingStationID := mux.Vars(r)["chargingStationId"]
	if chargingStationID == "" {
		http.Error(w, "missing charging station id", http.StatusBadRequest)
		return
	}

	offered := websocket.Subprotocols(r)
	subprotocol, router, ok := h.lifecycle.Negotiate(offered)
	if !ok {
		h.log.Warn("no common subprotocol", "charging_station_id", chargingStationID, "offered", offered)
		http.Error(w, "no common OCPP subprotocol", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "charging_station_id", chargingStationID, "error", err)
		return
	}
	defer conn.Close()

	connTransport := &connAdapter{conn: conn}
	sess := ocppcs.NewSession(chargingStationID, subprotocol, router.Adapter, connTransport, r.Header, router.PendingCalls())
	connTransport.sess = sess

	if err := h.lifecycle.OnConnect(sess); err != nil {
		h.log.Warn("connection rejected", "charging_station_id", chargingStationID, "error", err)
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()))
		return
	}

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	stopPings := make(chan struct{})
	go h.sendPings(conn, stopPings)

	defer func() {
		close(stopPings)
		sess.Close()
		h.lifecycle.OnDisconnect(sess)
	}()

	h.log.Info("charging station connected", "charging_station_id", chargingStationID, "subprotocol", subprotocol)

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug("websocket read error", "charging_station_id", chargingStationID, "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		h.lifecycle.OnFrame(sess, message)
	}
}

func (h *Handler) sendPings(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			// WriteControl may run concurrently with connAdapter's writes.
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-stop:
			return
		}
	}
}

// connAdapter implements ocppcs.Transport over a gorilla/websocket
// connection. Writes are serialized with a mutex because the inbound read
// loop and any number of concurrent HandlerContext.Send callers can race to
// write.
type connAdapter struct {
	conn    *websocket.Conn
	sess    *ocppcs.Session
	writeMu sync.Mutex
}

func (a *connAdapter) Send(text []byte, _ bool) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	_ = a.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return a.conn.WriteMessage(websocket.TextMessage, text)
}
