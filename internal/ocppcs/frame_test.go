package ocppcs

import (
	"encoding/json"
	"testing"
)

func TestDecodeCall(t *testing.T) {
	text := []byte(`[2,"1234","BootNotification",{"chargePointVendor":"Acme"}]`)
	frame, err := Decode(text)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if frame.Type != MessageTypeCall {
		t.Fatalf("expected Call, got %v", frame.Type)
	}
	if frame.UniqueID != "1234" {
		t.Fatalf("expected unique id 1234, got %q", frame.UniqueID)
	}
	if frame.Action != "BootNotification" {
		t.Fatalf("expected action BootNotification, got %q", frame.Action)
	}
	if frame.Payload["chargePointVendor"] != "Acme" {
		t.Fatalf("unexpected payload: %v", frame.Payload)
	}
}

func TestDecodeCallResult(t *testing.T) {
	text := []byte(`[3,"1234",{"status":"Accepted"}]`)
	frame, err := Decode(text)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if frame.Type != MessageTypeCallResult {
		t.Fatalf("expected CallResult, got %v", frame.Type)
	}
}

func TestDecodeCallError(t *testing.T) {
	text := []byte(`[4,"1234","NotImplemented","no handler",{}]`)
	frame, err := Decode(text)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if frame.Type != MessageTypeCallError {
		t.Fatalf("expected CallError, got %v", frame.Type)
	}
	if frame.ErrorCode != ErrNotImplemented {
		t.Fatalf("unexpected error code %v", frame.ErrorCode)
	}
}

func TestDecodeRejectsBadArity(t *testing.T) {
	cases := [][]byte{
		[]byte(`[2,"1234","BootNotification"]`),
		[]byte(`[3,"1234"]`),
		[]byte(`[4,"1234","NotImplemented","x"]`),
		[]byte(`[2]`),
		[]byte(`not even json`),
		[]byte(`{"not":"an array"}`),
	}
	for _, c := range cases {
		if _, err := Decode(c); err == nil {
			t.Errorf("expected error decoding %s", c)
		}
	}
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	if _, err := Decode([]byte(`[9,"1234","Foo",{}]`)); err == nil {
		t.Fatal("expected error for unknown message type id")
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	original := NewCall("abc", "Heartbeat", map[string]any{})
	wire, err := Encode(original)
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(wire, &raw); err != nil {
		t.Fatalf("encoded frame is not a JSON array: %v", err)
	}
	if len(raw) != 4 {
		t.Fatalf("expected 4 elements, got %d", len(raw))
	}

	decoded, err := Decode(wire)
	if err != nil {
		t.Fatalf("Decode(Encode(x)) returned error: %v", err)
	}
	if decoded.UniqueID != original.UniqueID || decoded.Action != original.Action {
		t.Fatalf("round trip mismatch: got %+v", decoded)
	}
}

func TestEncodeCallErrorAlwaysHasFiveElements(t *testing.T) {
	wire, err := Encode(NewCallError("id", ErrInternalError, "boom", nil))
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(wire, &raw); err != nil {
		t.Fatalf("not a JSON array: %v", err)
	}
	if len(raw) != 5 {
		t.Fatalf("expected 5 elements, got %d", len(raw))
	}
}
