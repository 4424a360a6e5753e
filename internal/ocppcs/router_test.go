package ocppcs

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeTransport struct {
	mu   sync.Mutex
	sent [][]byte
	// deliver, if set, is called with every outbound frame so a test can
	// feed a reply back into the Router and exercise Router.Call round
	// trips without a real socket.
	deliver func(out []byte)
}

func (f *fakeTransport) Send(text []byte, isResponse bool) error {
	f.mu.Lock()
	f.sent = append(f.sent, append([]byte(nil), text...))
	f.mu.Unlock()
	if f.deliver != nil {
		f.deliver(text)
	}
	return nil
}

func (f *fakeTransport) last() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

func newTestRouter() (*Router, *VersionAdapter) {
	adapter := NewVersionAdapter(SubprotocolOCPP16)
	adapter.Add("Heartbeat", "", "")
	adapter.Add("BootNotification", "", "")
	router := NewRouter(SubprotocolOCPP16, adapter, WithResponseTimeout(200*time.Millisecond))
	return router, adapter
}

func TestRouteMessageUnknownActionSendsNotImplemented(t *testing.T) {
	router, adapter := newTestRouter()
	transport := &fakeTransport{}
	sess := NewSession("CS-1", SubprotocolOCPP16, adapter, transport, nil, router.PendingCalls())

	text := []byte(`[2,"1","ChangeAvailability",{}]`)
	if err := router.RouteMessage(context.Background(), text, sess); err != nil {
		t.Fatalf("RouteMessage returned error: %v", err)
	}

	frame, err := Decode(transport.last())
	if err != nil {
		t.Fatalf("could not decode sent frame: %v", err)
	}
	if frame.Type != MessageTypeCallError || frame.ErrorCode != ErrNotImplemented {
		t.Fatalf("expected NotImplemented CallError, got %+v", frame)
	}
}

func TestRouteMessageDispatchesToHandler(t *testing.T) {
	router, adapter := newTestRouter()
	transport := &fakeTransport{}
	sess := NewSession("CS-1", SubprotocolOCPP16, adapter, transport, nil, router.PendingCalls())

	var gotPayload map[string]any
	router.On("Heartbeat", func(hc *HandlerContext, payload map[string]any) (map[string]any, error) {
		gotPayload = payload
		return map[string]any{"current_time": "2024-01-01T00:00:00Z"}, nil
	})

	text := []byte(`[2,"1","Heartbeat",{}]`)
	if err := router.RouteMessage(context.Background(), text, sess); err != nil {
		t.Fatalf("RouteMessage returned error: %v", err)
	}
	if gotPayload == nil {
		t.Fatal("expected handler to be invoked")
	}

	frame, err := Decode(transport.last())
	if err != nil {
		t.Fatalf("could not decode sent frame: %v", err)
	}
	if frame.Type != MessageTypeCallResult {
		t.Fatalf("expected CallResult, got %+v", frame)
	}
	if frame.Payload["currentTime"] != "2024-01-01T00:00:00Z" {
		t.Fatalf("expected response to be camelCased, got %v", frame.Payload)
	}
}

func TestHandlerErrorSendsCallErrorAndStops(t *testing.T) {
	router, adapter := newTestRouter()
	transport := &fakeTransport{}
	sess := NewSession("CS-1", SubprotocolOCPP16, adapter, transport, nil, router.PendingCalls())

	afterCalled := false
	router.On("Heartbeat", func(hc *HandlerContext, payload map[string]any) (map[string]any, error) {
		return nil, NewError(ErrInternalError, "boom")
	})
	router.After("Heartbeat", func(hc *HandlerContext, payload map[string]any) (map[string]any, error) {
		afterCalled = true
		return nil, nil
	})

	text := []byte(`[2,"1","Heartbeat",{}]`)
	if err := router.RouteMessage(context.Background(), text, sess); err != nil {
		t.Fatalf("RouteMessage returned error: %v", err)
	}

	frame, err := Decode(transport.last())
	if err != nil {
		t.Fatalf("could not decode sent frame: %v", err)
	}
	if frame.Type != MessageTypeCallError || frame.ErrorCode != ErrInternalError {
		t.Fatalf("expected InternalError CallError, got %+v", frame)
	}

	time.Sleep(20 * time.Millisecond)
	if afterCalled {
		t.Fatal("after hook must not run when the handler itself failed")
	}
}

func TestRouteMessageResolvesPendingCall(t *testing.T) {
	router, adapter := newTestRouter()
	transport := &fakeTransport{}
	sess := NewSession("CS-1", SubprotocolOCPP16, adapter, transport, nil, router.PendingCalls())

	ch := router.PendingCalls().Insert("xyz")
	reply := []byte(`[3,"xyz",{"status":"Accepted"}]`)
	if err := router.RouteMessage(context.Background(), reply, sess); err != nil {
		t.Fatalf("RouteMessage returned error: %v", err)
	}

	select {
	case got := <-ch:
		if got.UniqueID != "xyz" {
			t.Fatalf("unexpected resolved frame: %+v", got)
		}
	default:
		t.Fatal("expected pending call to be resolved")
	}
}

func TestRouterCallRoundTrip(t *testing.T) {
	router, adapter := newTestRouter()

	transport := &fakeTransport{}
	sess := NewSession("CS-1", SubprotocolOCPP16, adapter, transport, nil, router.PendingCalls())

	transport.deliver = func(out []byte) {
		frame, err := Decode(out)
		if err != nil || frame.Type != MessageTypeCall {
			return
		}
		go func() {
			reply := NewCallResult(frame.UniqueID, map[string]any{"status": "Accepted"})
			_ = router.RouteMessage(context.Background(), mustEncode(reply), sess)
		}()
	}

	resp, err := router.Call(context.Background(), sess, "BootNotification", map[string]any{"charge_point_vendor": "Acme"})
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if resp["status"] != "Accepted" {
		t.Fatalf("unexpected response: %v", resp)
	}
}

func TestRouterCallTimesOut(t *testing.T) {
	router, adapter := newTestRouter()
	transport := &fakeTransport{}
	sess := NewSession("CS-1", SubprotocolOCPP16, adapter, transport, nil, router.PendingCalls())

	_, err := router.Call(context.Background(), sess, "Heartbeat", map[string]any{})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	cse := AsCentralSystemError(err)
	if cse.Code != ErrTimeout {
		t.Fatalf("expected Timeout error code, got %v", cse.Code)
	}
}

func TestRouterCallFailsWhenSessionClosed(t *testing.T) {
	router, adapter := newTestRouter()
	transport := &fakeTransport{}
	sess := NewSession("CS-1", SubprotocolOCPP16, adapter, transport, nil, router.PendingCalls())
	sess.Close()

	_, err := router.Call(context.Background(), sess, "Heartbeat", map[string]any{})
	if err != ErrSessionClosed {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}

func mustEncode(f Frame) []byte {
	wire, err := Encode(f)
	if err != nil {
		panic(err)
	}
	return wire
}
