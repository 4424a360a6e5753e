package ocppcs

import (
	"encoding/json"
	"fmt"
)

// MessageTypeID is the first element of every OCPP-J frame.
type MessageTypeID int

const (
	MessageTypeCall       MessageTypeID = 2
	MessageTypeCallResult MessageTypeID = 3
	MessageTypeCallError  MessageTypeID = 4
)

// Frame is a decoded OCPP-J message. Only the fields relevant to its Type
// are populated.
type Frame struct {
	Type MessageTypeID

	UniqueID string

	// Call fields.
	Action  string
	Payload map[string]any

	// CallResult fields reuse Payload.

	// CallError fields.
	ErrorCode        ErrorCode
	ErrorDescription string
	ErrorDetails     map[string]any
}

// NewCall builds a Call frame.
func NewCall(uniqueID, action string, payload map[string]any) Frame {
	return Frame{Type: MessageTypeCall, UniqueID: uniqueID, Action: action, Payload: payload}
}

// NewCallResult builds a CallResult frame.
func NewCallResult(uniqueID string, payload map[string]any) Frame {
	return Frame{Type: MessageTypeCallResult, UniqueID: uniqueID, Payload: payload}
}

// NewCallError builds a CallError frame.
func NewCallError(uniqueID string, code ErrorCode, description string, details map[string]any) Frame {
	if details == nil {
		details = map[string]any{}
	}
	return Frame{Type: MessageTypeCallError, UniqueID: uniqueID, ErrorCode: code, ErrorDescription: description, ErrorDetails: details}
}

// NewCallErrorFrom builds a CallError frame from a Go error, mapping it
// through AsCentralSystemError first.
func NewCallErrorFrom(uniqueID string, cause error) Frame {
	cse := AsCentralSystemError(cause)
	return NewCallError(uniqueID, cse.Code, cse.Message, cse.Details)
}

// Decode parses a raw OCPP-J text frame into a Frame. It never panics;
// malformed input is reported as a *CentralSystemError with code
// ProtocolError or FormationViolation.
func Decode(text []byte) (Frame, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(text, &raw); err != nil {
		return Frame{}, NewErrorf(ErrProtocolError, "message is not a JSON array: %v", err)
	}
	if len(raw) < 3 {
		return Frame{}, NewErrorf(ErrProtocolError, "message has %d elements, need at least 3", len(raw))
	}

	var typeID int
	if err := json.Unmarshal(raw[0], &typeID); err != nil {
		return Frame{}, NewErrorf(ErrProtocolError, "message type id is not a number: %v", err)
	}

	var uniqueID string
	if err := json.Unmarshal(raw[1], &uniqueID); err != nil {
		return Frame{}, NewErrorf(ErrProtocolError, "unique id is not a string: %v", err)
	}

	switch MessageTypeID(typeID) {
	case MessageTypeCall:
		if len(raw) != 4 {
			return Frame{}, NewErrorf(ErrFormationViolation, "Call frame needs 4 elements, got %d", len(raw))
		}
		var action string
		if err := json.Unmarshal(raw[2], &action); err != nil {
			return Frame{}, NewErrorf(ErrFormationViolation, "action is not a string: %v", err)
		}
		payload, err := decodePayload(raw[3])
		if err != nil {
			return Frame{}, err
		}
		return NewCall(uniqueID, action, payload), nil

	case MessageTypeCallResult:
		if len(raw) != 3 {
			return Frame{}, NewErrorf(ErrFormationViolation, "CallResult frame needs 3 elements, got %d", len(raw))
		}
		payload, err := decodePayload(raw[2])
		if err != nil {
			return Frame{}, err
		}
		return NewCallResult(uniqueID, payload), nil

	case MessageTypeCallError:
		if len(raw) != 5 {
			return Frame{}, NewErrorf(ErrFormationViolation, "CallError frame needs 5 elements, got %d", len(raw))
		}
		var code, description string
		if err := json.Unmarshal(raw[2], &code); err != nil {
			return Frame{}, NewErrorf(ErrFormationViolation, "error code is not a string: %v", err)
		}
		if err := json.Unmarshal(raw[3], &description); err != nil {
			return Frame{}, NewErrorf(ErrFormationViolation, "error description is not a string: %v", err)
		}
		details, err := decodePayload(raw[4])
		if err != nil {
			return Frame{}, err
		}
		return NewCallError(uniqueID, ErrorCode(code), description, details), nil

	default:
		return Frame{}, NewErrorf(ErrProtocolError, "unknown message type id %d", typeID)
	}
}

func decodePayload(raw json.RawMessage) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, NewErrorf(ErrFormationViolation, "payload is not a JSON object: %v", err)
	}
	return m, nil
}

// Encode serializes a Frame back into its positional wire representation.
func Encode(f Frame) ([]byte, error) {
	switch f.Type {
	case MessageTypeCall:
		return json.Marshal([]any{int(MessageTypeCall), f.UniqueID, f.Action, orEmptyObject(f.Payload)})
	case MessageTypeCallResult:
		return json.Marshal([]any{int(MessageTypeCallResult), f.UniqueID, orEmptyObject(f.Payload)})
	case MessageTypeCallError:
		return json.Marshal([]any{int(MessageTypeCallError), f.UniqueID, string(f.ErrorCode), f.ErrorDescription, orEmptyObject(f.ErrorDetails)})
	default:
		return nil, fmt.Errorf("ocppcs: encode: unknown frame type %d", f.Type)
	}
}

func orEmptyObject(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
