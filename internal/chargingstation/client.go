// Package chargingstation is a thin demo Charging Station client: enough to
// exercise the central system's WebSocket transport end to end (connect,
// BootNotification, periodic Heartbeat, respond to server-initiated Calls),
// not a production OCPP client implementation.
package chargingstation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gridstreamer/ocpp-central/internal/ocppcs"
)

const (
	maxReconnectDelay  = 2 * time.Minute
	baseReconnectDelay = 1 * time.Second
	writeTimeout       = 10 * time.Second
	pongWait           = 60 * time.Second
)

// Client is a demo Charging Station: it dials the central system, performs
// the initial BootNotification, sends periodic Heartbeats, and answers any
// server-initiated Call with a canned Accepted response.
type Client struct {
	ServerURL         string
	ChargingStationID string
	Subprotocol       ocppcs.Subprotocol
	HeartbeatInterval time.Duration
	AuthToken         string
	Log               *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// Run connects and reconnects with exponential backoff until ctx is
// cancelled, the same reconnection discipline as the teacher's
// ConnectSignaling.
func (c *Client) Run(ctx context.Context) error {
	if c.Log == nil {
		c.Log = slog.Default()
	}

	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		c.Log.Info("connecting to central system", "url", c.ServerURL, "attempt", attempt)

		err := c.runSession(ctx)
		if err != nil {
			c.Log.Warn("session ended", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		delay := calculateBackoff(attempt)
		attempt++
		c.Log.Info("reconnecting", "delay", delay, "attempt", attempt)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func calculateBackoff(attempt int) time.Duration {
	if attempt == 0 {
		return baseReconnectDelay
	}
	delay := time.Duration(math.Pow(2, float64(attempt))) * baseReconnectDelay
	if delay > maxReconnectDelay {
		delay = maxReconnectDelay
	}
	return delay
}

func (c *Client) runSession(ctx context.Context) error {
	target, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("parsing server url: %w", err)
	}
	target.Path = "/ocpp/" + c.ChargingStationID

	header := http.Header{}
	if c.AuthToken != "" {
		header.Set("Authorization", "Bearer "+c.AuthToken)
	}

	dialer := websocket.Dialer{
		Subprotocols:     []string{string(c.Subprotocol)},
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, target.String(), header)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", target.String(), err)
	}
	defer conn.Close()

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	if err := c.sendBootNotification(); err != nil {
		return fmt.Errorf("boot notification: %w", err)
	}

	heartbeatTicker := time.NewTicker(c.HeartbeatInterval)
	defer heartbeatTicker.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				return
			}
			c.handleInbound(message)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			return fmt.Errorf("connection closed by remote")
		case <-heartbeatTicker.C:
			if err := c.sendHeartbeat(); err != nil {
				return fmt.Errorf("heartbeat: %w", err)
			}
		}
	}
}

func (c *Client) send(frame ocppcs.Frame) error {
	wire, err := ocppcs.Encode(frame)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, wire)
}

func (c *Client) sendBootNotification() error {
	payload := map[string]any{
		"chargePointVendor": "gridstreamer-sim",
		"chargePointModel":  "demo-v1",
	}
	return c.send(ocppcs.NewCall(ocppcs.NewUniqueID(), "BootNotification", payload))
}

func (c *Client) sendHeartbeat() error {
	return c.send(ocppcs.NewCall(ocppcs.NewUniqueID(), "Heartbeat", map[string]any{}))
}

// handleInbound answers any server-initiated Call with a generic Accepted
// response. CallResult/CallError frames (replies to this client's own
// outbound Calls) are logged and dropped — the demo doesn't correlate them,
// since it never blocks waiting on its own requests.
func (c *Client) handleInbound(text []byte) {
	frame, err := ocppcs.Decode(text)
	if err != nil {
		c.Log.Warn("dropping malformed inbound frame", "error", err)
		return
	}

	switch frame.Type {
	case ocppcs.MessageTypeCall:
		c.Log.Info("received server-initiated call", "action", frame.Action)
		response := map[string]any{"status": "Accepted"}
		if err := c.send(ocppcs.NewCallResult(frame.UniqueID, response)); err != nil {
			c.Log.Warn("failed to reply to server-initiated call", "error", err)
		}
	case ocppcs.MessageTypeCallResult, ocppcs.MessageTypeCallError:
		c.Log.Debug("received reply", "unique_id", frame.UniqueID)
	}
}
