package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/gridstreamer/ocpp-central/internal/ocppcs"
)

type fakeLifecycle struct {
	mu        sync.Mutex
	router    *ocppcs.Router
	connected []*ocppcs.Session
	frames    [][]byte
}

func (f *fakeLifecycle) Negotiate(offered []string) (ocppcs.Subprotocol, *ocppcs.Router, bool) {
	return ocppcs.SubprotocolOCPP16, f.router, true
}

func (f *fakeLifecycle) OnConnect(sess *ocppcs.Session) error {
	f.mu.Lock()
	f.connected = append(f.connected, sess)
	f.mu.Unlock()
	return nil
}

func (f *fakeLifecycle) OnFrame(sess *ocppcs.Session, text []byte) {
	f.mu.Lock()
	f.frames = append(f.frames, text)
	f.mu.Unlock()
	_ = sess.Transport.Send([]byte(`[3,"echo",{"ok":true}]`), true)
}

func (f *fakeLifecycle) OnDisconnect(sess *ocppcs.Session) {}

func TestWebSocketHandlerRoundTrip(t *testing.T) {
	adapter := ocppcs.NewVersionAdapter(ocppcs.SubprotocolOCPP16)
	lifecycle := &fakeLifecycle{router: ocppcs.NewRouter(ocppcs.SubprotocolOCPP16, adapter)}

	handler := NewHandler(lifecycle, nil)
	router := mux.NewRouter()
	handler.RegisterRoutes(router)

	server := httptest.NewServer(router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ocpp/CS-1"
	dialer := websocket.Dialer{Subprotocols: []string{"ocpp1.6"}}
	conn, resp, err := dialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	if resp.Header.Get("Sec-WebSocket-Protocol") != "ocpp1.6" {
		t.Fatalf("expected negotiated subprotocol ocpp1.6, got %q", resp.Header.Get("Sec-WebSocket-Protocol"))
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`[2,"1","Heartbeat",{}]`)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(message) != `[3,"echo",{"ok":true}]` {
		t.Fatalf("unexpected echoed frame: %s", message)
	}

	lifecycle.mu.Lock()
	connectedCount := len(lifecycle.connected)
	lifecycle.mu.Unlock()
	if connectedCount != 1 {
		t.Fatalf("expected exactly one OnConnect call, got %d", connectedCount)
	}
}

func TestWebSocketHandlerRejectsMissingChargingStationID(t *testing.T) {
	adapter := ocppcs.NewVersionAdapter(ocppcs.SubprotocolOCPP16)
	lifecycle := &fakeLifecycle{router: ocppcs.NewRouter(ocppcs.SubprotocolOCPP16, adapter)}
	handler := NewHandler(lifecycle, nil)
	router := mux.NewRouter()
	handler.RegisterRoutes(router)

	server := httptest.NewServer(router)
	defer server.Close()

	resp, err := http.Get(server.URL + "/ocpp/")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		t.Fatalf("expected non-200 for a missing charging station id, got %d", resp.StatusCode)
	}
}
