package handlers

import (
	"context"
	"testing"

	"github.com/gridstreamer/ocpp-central/internal/ocppcs"
)

type captureTransport struct {
	last []byte
}

func (c *captureTransport) Send(text []byte, isResponse bool) error {
	c.last = text
	return nil
}

func newTestSession(t *testing.T, router *ocppcs.Router) (*ocppcs.Session, *captureTransport) {
	t.Helper()
	transport := &captureTransport{}
	adapter := ocppcs.NewVersionAdapter(ocppcs.SubprotocolOCPP16)
	sess := ocppcs.NewSession("CS-1", ocppcs.SubprotocolOCPP16, adapter, transport, nil, router.PendingCalls())
	return sess, transport
}

func newRegisteredRouter() *ocppcs.Router {
	router := ocppcs.NewRouter(ocppcs.SubprotocolOCPP16, ocppcs.NewVersionAdapter(ocppcs.SubprotocolOCPP16))
	Register(router, nil)
	return router
}

func TestHeartbeatReturnsCurrentTime(t *testing.T) {
	router := newRegisteredRouter()
	sess, transport := newTestSession(t, router)

	if err := router.RouteMessage(context.Background(), []byte(`[2,"1","Heartbeat",{}]`), sess); err != nil {
		t.Fatalf("RouteMessage returned error: %v", err)
	}

	frame, err := ocppcs.Decode(transport.last)
	if err != nil {
		t.Fatalf("could not decode response: %v", err)
	}
	if frame.Type != ocppcs.MessageTypeCallResult {
		t.Fatalf("expected CallResult, got %+v", frame)
	}
	if _, ok := frame.Payload["currentTime"]; !ok {
		t.Fatalf("expected currentTime in response, got %v", frame.Payload)
	}
}

func TestAuthorizeRejectsEmptyIDTag(t *testing.T) {
	router := newRegisteredRouter()
	sess, transport := newTestSession(t, router)

	if err := router.RouteMessage(context.Background(), []byte(`[2,"1","Authorize",{"idTag":""}]`), sess); err != nil {
		t.Fatalf("RouteMessage returned error: %v", err)
	}

	frame, err := ocppcs.Decode(transport.last)
	if err != nil {
		t.Fatalf("could not decode response: %v", err)
	}
	if frame.Type != ocppcs.MessageTypeCallError || frame.ErrorCode != ocppcs.ErrPropertyConstraintViolation {
		t.Fatalf("expected PropertyConstraintViolation CallError, got %+v", frame)
	}
}

func TestAuthorizeAcceptsNonEmptyIDTag(t *testing.T) {
	router := newRegisteredRouter()
	sess, transport := newTestSession(t, router)

	if err := router.RouteMessage(context.Background(), []byte(`[2,"1","Authorize",{"idTag":"ABC123"}]`), sess); err != nil {
		t.Fatalf("RouteMessage returned error: %v", err)
	}

	frame, err := ocppcs.Decode(transport.last)
	if err != nil {
		t.Fatalf("could not decode response: %v", err)
	}
	if frame.Type != ocppcs.MessageTypeCallResult {
		t.Fatalf("expected CallResult, got %+v", frame)
	}
	idTagInfo, ok := frame.Payload["idTagInfo"].(map[string]any)
	if !ok || idTagInfo["status"] != "Accepted" {
		t.Fatalf("expected idTagInfo.status Accepted, got %v", frame.Payload)
	}
}

func TestDataTransferRejectsEmptyVendorID(t *testing.T) {
	router := newRegisteredRouter()
	sess, transport := newTestSession(t, router)

	if err := router.RouteMessage(context.Background(), []byte(`[2,"1","DataTransfer",{"vendorId":""}]`), sess); err != nil {
		t.Fatalf("RouteMessage returned error: %v", err)
	}

	frame, err := ocppcs.Decode(transport.last)
	if err != nil {
		t.Fatalf("could not decode response: %v", err)
	}
	if frame.Type != ocppcs.MessageTypeCallError || frame.ErrorCode != ocppcs.ErrPropertyConstraintViolation {
		t.Fatalf("expected PropertyConstraintViolation CallError, got %+v", frame)
	}
}
