// Package httptunnel is the HTTP-tunneled Transport Adapter variant: each
// inbound OCPP-J frame arrives as the body of a single HTTP POST and the
// reply (if any) goes back as that request's response body. A
// server-initiated Call, which has no open request/response cycle to ride
// on, is instead delivered through a host-configured webhook.
package httptunnel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/gridstreamer/ocpp-central/internal/ocppcs"
	"github.com/gridstreamer/ocpp-central/internal/transport"
)

// RequestContext is the envelope metadata carried alongside each tunneled
// frame, matching the wire shape described for the HTTP-tunneled transport:
// a requestContext object plus a body.
type RequestContext struct {
	ConnectionID string   `json:"connection_id"`
	Subprotocols []string `json:"subprotocols"`
}

// Envelope is the full HTTP-tunnel request body.
type Envelope struct {
	RequestContext RequestContext  `json:"requestContext"`
	Body           json.RawMessage `json:"body"`
}

// Webhook delivers a server-initiated Call to a Charging Station that has no
// open HTTP request to write the Call into. Grounded on the teacher's
// HealthMonitor.sendHeartbeat pattern: an http.Client POST with a bearer
// token, built fresh per call rather than held open.
type Webhook struct {
	URL    string
	Token  string
	Client *http.Client
}

// NewWebhook builds a Webhook with a bounded-timeout client, mirroring the
// teacher's health.go http.Client configuration.
func NewWebhook(url, token string) *Webhook {
	return &Webhook{URL: url, Token: token, Client: &http.Client{Timeout: 10 * time.Second}}
}

// Deliver posts text to the webhook URL on behalf of connectionID.
func (wh *Webhook) Deliver(ctx context.Context, connectionID string, text []byte) error {
	body, err := json.Marshal(map[string]any{
		"connection_id": connectionID,
		"body":          json.RawMessage(text),
	})
	if err != nil {
		return fmt.Errorf("httptunnel: marshaling webhook body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("httptunnel: building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if wh.Token != "" {
		req.Header.Set("Authorization", "Bearer "+wh.Token)
	}

	resp, err := wh.Client.Do(req)
	if err != nil {
		return fmt.Errorf("httptunnel: webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("httptunnel: webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Handler serves the single-frame HTTP-tunnel ingress endpoint.
type Handler struct {
	lifecycle transport.Lifecycle
	webhook   *Webhook
	log       *slog.Logger
}

// NewHandler builds a Handler. webhook may be nil if the deployment has no
// server-initiated-Call delivery channel configured; Calls issued against
// HTTP-tunnel sessions will then fail with a clear error instead of hanging.
func NewHandler(lifecycle transport.Lifecycle, webhook *Webhook, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{lifecycle: lifecycle, webhook: webhook, log: log}
}

// RegisterRoutes mounts the HTTP-tunnel ingress endpoint on r.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/ocpp-http/{chargingStationId}", h.handle).Methods(http.MethodPost)
}

func (h *Handler) handle(w http.ResponseWriter, r *http.Request) {
	chargingStationID := mux.Vars(r)["chargingStationId"]

	var env Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		http.Error(w, "invalid request envelope: "+err.Error(), http.StatusBadRequest)
		return
	}
	if env.RequestContext.ConnectionID == "" {
		env.RequestContext.ConnectionID = chargingStationID
	}

	subprotocol, router, ok := h.lifecycle.Negotiate(env.RequestContext.Subprotocols)
	if !ok {
		http.Error(w, "no common OCPP subprotocol", http.StatusBadRequest)
		return
	}

	respTransport := &requestAdapter{w: w, webhook: h.webhook, connectionID: env.RequestContext.ConnectionID}
	sess := ocppcs.NewSession(chargingStationID, subprotocol, router.Adapter, respTransport, r.Header, router.PendingCalls())

	if err := h.lifecycle.OnConnect(sess); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	defer func() {
		sess.Close()
		h.lifecycle.OnDisconnect(sess)
	}()

	frame, err := ocppcs.Decode(env.Body)
	if err != nil {
		// Not a valid frame at all: the HTTP cycle itself fails, there's no
		// unique_id to reply to.
		http.Error(w, "invalid OCPP frame: "+err.Error(), http.StatusBadRequest)
		return
	}

	if frame.Type != ocppcs.MessageTypeCall {
		// CallResult/CallError need no HTTP body reply: the original cycle
		// that started the Call has already been answered by a different
		// request/response pair (see Webhook.Deliver on the way out).
		w.WriteHeader(http.StatusOK)
		h.lifecycle.OnFrame(sess, env.Body)
		return
	}

	h.lifecycle.OnFrame(sess, env.Body)
}

// requestAdapter implements ocppcs.Transport for one HTTP-tunnel request.
// isResponse true means "write it into the still-open HTTP response"; false
// means the original request/response cycle is already spent and the frame
// must go out through the webhook instead — the canonical variant from the
// source this runtime's HTTP-tunnel semantics are ported from.
type requestAdapter struct {
	w            http.ResponseWriter
	webhook      *Webhook
	connectionID string
	written      bool
}

func (a *requestAdapter) Send(text []byte, isResponse bool) error {
	if isResponse && !a.written {
		a.written = true
		a.w.Header().Set("Content-Type", "application/json")
		a.w.WriteHeader(http.StatusOK)
		_, err := a.w.Write(text)
		return err
	}

	if a.webhook == nil {
		return fmt.Errorf("httptunnel: no webhook configured to deliver server-initiated message to %s", a.connectionID)
	}
	return a.webhook.Deliver(context.Background(), a.connectionID, text)
}
