package ocppcs

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Handler is an action handler: it receives the decoded, snake_cased
// payload and returns the response payload (snake_cased; the Router
// converts it back to camelCase and strips nils before it goes on the
// wire), or an error. Any error is converted to a CallError and the frame's
// processing stops there — no partial response is ever sent.
type Handler func(ctx *HandlerContext, payload map[string]any) (map[string]any, error)

// SchemaValidator validates a decoded payload against a named schema. The
// Router treats a nil Validator as "validation disabled" so tests and
// minimal deployments aren't forced to wire internal/schemas.
type SchemaValidator interface {
	Validate(schemaID string, payload map[string]any) error
}

// HandlerContext is passed to every Handler and After hook. It carries the
// owning Session so a handler can issue its own server-initiated Calls
// (e.g. a StatusNotification handler that immediately asks for a
// GetConfiguration) without reaching into Router internals.
type HandlerContext struct {
	Session *Session
	Action  string
	router  *Router
}

// Send issues a server-initiated Call to this handler's Charging Station and
// blocks for the matching CallResult/CallError, honoring the session's call
// lock and the Router's response timeout.
func (hc *HandlerContext) Send(ctx context.Context, action string, payload map[string]any) (map[string]any, error) {
	return hc.router.Call(ctx, hc.Session, action, payload)
}

// RouteOption configures a Router at construction time.
type RouteOption func(*Router)

// WithResponseTimeout overrides the default Call response timeout.
func WithResponseTimeout(d time.Duration) RouteOption {
	return func(r *Router) { r.responseTimeout = d }
}

// WithAfterInline runs After hooks synchronously instead of detached in a
// goroutine. The default is detached: inbound frames are routed on the
// goroutine that reads them (the WebSocket read loop), so an inline After
// hook that calls HandlerContext.Send waits for a reply that loop cannot
// read until the hook returns, and the Call times out.
func WithAfterInline() RouteOption {
	return func(r *Router) { r.afterInline = true }
}

// WithSchemaValidator wires a SchemaValidator into the Router. Without one,
// Validate (§4.A) is a no-op and payloads pass through unchecked.
func WithSchemaValidator(v SchemaValidator) RouteOption {
	return func(r *Router) { r.validator = v }
}

// WithIDGenerator overrides unique_id generation, for tests asserting exact
// wire bytes.
func WithIDGenerator(gen func() string) RouteOption {
	return func(r *Router) { r.idGenerator = gen }
}

// WithLogger overrides the package default slog.Logger.
func WithLogger(l *slog.Logger) RouteOption {
	return func(r *Router) { r.log = l }
}

type routeEntry struct {
	on                   Handler
	after                Handler
	skipSchemaValidation bool
}

// Router is the per-subprotocol action dispatcher and the home of the
// Correlation Engine's outbound half (Call). One Router exists per
// negotiated Subprotocol; every Session speaking that subprotocol shares it
// and its PendingCallTable.
type Router struct {
	Subprotocol Subprotocol
	Adapter     *VersionAdapter

	routes          map[string]*routeEntry
	pending         *PendingCallTable
	responseTimeout time.Duration
	afterInline     bool
	validator       SchemaValidator
	idGenerator     func() string
	log             *slog.Logger
}

const defaultResponseTimeout = 30 * time.Second

// NewRouter builds a Router for one subprotocol.
func NewRouter(subprotocol Subprotocol, adapter *VersionAdapter, opts ...RouteOption) *Router {
	r := &Router{
		Subprotocol:     subprotocol,
		Adapter:         adapter,
		routes:          make(map[string]*routeEntry),
		pending:         NewPendingCallTable(),
		responseTimeout: defaultResponseTimeout,
		idGenerator:     NewUniqueID,
		log:             slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PendingCalls exposes the Router's correlation table so a Transport
// Adapter can hand it to the Session it builds for a newly connected
// Charging Station.
func (r *Router) PendingCalls() *PendingCallTable {
	return r.pending
}

func (r *Router) entry(action string) *routeEntry {
	e, ok := r.routes[action]
	if !ok {
		e = &routeEntry{}
		r.routes[action] = e
	}
	return e
}

// On registers the handler invoked for inbound Calls carrying action.
func (r *Router) On(action string, h Handler, skipSchemaValidation ...bool) {
	e := r.entry(action)
	e.on = h
	if len(skipSchemaValidation) > 0 {
		e.skipSchemaValidation = skipSchemaValidation[0]
	}
}

// After registers a hook invoked once the CallResult/CallError for action
// has been sent. Runs detached by default; see WithAfterInline.
func (r *Router) After(action string, h Handler) {
	r.entry(action).after = h
}

// RouteMessage decodes text and dispatches it: inbound Calls go to the
// registered handler, CallResult/CallError frames resolve a pending
// outbound Call. It never returns an error for a well-formed frame that
// simply has no handler or no waiter — those are handled by sending a
// CallError or logging a drop, matching the "don't crash the connection for
// a single bad frame" rule. It does return an error for a frame so
// malformed Decode itself failed, so the caller can decide whether to drop
// the connection.
func (r *Router) RouteMessage(ctx context.Context, text []byte, sess *Session) error {
	frame, err := Decode(text)
	if err != nil {
		r.log.Warn("dropping malformed frame", "charging_station_id", sess.ChargingStationID, "error", err)
		return err
	}

	switch frame.Type {
	case MessageTypeCall:
		r.handleCall(ctx, frame, sess)
		return nil
	case MessageTypeCallResult, MessageTypeCallError:
		if !r.pending.Resolve(frame) {
			r.log.Warn("dropping frame with unknown unique_id",
				"charging_station_id", sess.ChargingStationID,
				"unique_id", frame.UniqueID,
			)
		}
		return nil
	default:
		return nil
	}
}

func (r *Router) handleCall(ctx context.Context, frame Frame, sess *Session) {
	entry, ok := r.routes[frame.Action]
	if !ok || entry.on == nil {
		r.sendError(sess, frame.UniqueID, ErrUnknownAction(frame.Action))
		return
	}

	// Schemas are authored in the handler-facing snake_case shape, so the
	// wire payload has to be converted before it's ever validated.
	snakeCased := AsPayloadMap(ToSnakeCase(frame.Payload))

	if !entry.skipSchemaValidation {
		if spec, ok := r.Adapter.Lookup(frame.Action); ok && r.validator != nil {
			if err := r.validator.Validate(spec.RequestSchema, snakeCased); err != nil {
				r.sendError(sess, frame.UniqueID, classifySchemaValidationError("request", err))
				return
			}
		}
	}

	hc := &HandlerContext{Session: sess, Action: frame.Action, router: r}
	response, err := entry.on(hc, snakeCased)
	if err != nil {
		// Fix over the original source's nested try/except: a handler
		// failure sends a CallError and stops. No further processing of
		// this frame — the response is never partially built.
		r.sendError(sess, frame.UniqueID, err)
		return
	}

	if !entry.skipSchemaValidation {
		if spec, ok := r.Adapter.Lookup(frame.Action); ok && r.validator != nil {
			if err := r.validator.Validate(spec.ResponseSchema, response); err != nil {
				r.sendError(sess, frame.UniqueID, classifySchemaValidationError("response", err))
				return
			}
		}
	}

	camelCased := AsPayloadMap(RemoveNones(ToCamelCase(response)))
	resultFrame := NewCallResult(frame.UniqueID, camelCased)
	wire, err := Encode(resultFrame)
	if err != nil {
		r.log.Error("failed to encode CallResult", "error", err)
		return
	}
	if err := sess.Transport.Send(wire, true); err != nil {
		r.log.Warn("failed to send CallResult", "charging_station_id", sess.ChargingStationID, "error", err)
		return
	}

	if entry.after != nil {
		run := func() {
			if _, err := entry.after(hc, snakeCased); err != nil {
				r.log.Warn("after hook returned error", "action", frame.Action, "error", err)
			}
		}
		if r.afterInline {
			run()
		} else {
			go run()
		}
	}
}

func (r *Router) sendError(sess *Session, uniqueID string, cause error) {
	frame := NewCallErrorFrom(uniqueID, cause)
	wire, err := Encode(frame)
	if err != nil {
		r.log.Error("failed to encode CallError", "error", err)
		return
	}
	if err := sess.Transport.Send(wire, true); err != nil {
		r.log.Warn("failed to send CallError", "charging_station_id", sess.ChargingStationID, "error", err)
	}
}

// classifySchemaValidationError turns a jsonschema-go validation failure
// into the OCPP-J error code that best describes it, instead of collapsing
// every rejection into FormationViolation. stage names which payload failed
// (request/response/outbound request/inbound response) for the message.
func classifySchemaValidationError(stage string, err error) *CentralSystemError {
	return NewErrorf(schemaErrorCode(err), "%s payload failed schema validation: %v", stage, err)
}

// schemaErrorCode inspects the keyword a jsonschema-go validation error
// failed on (the library reports it as a "keyword: detail" prefix, possibly
// wrapped by nested "validating <schema>: " context) and maps it to the
// matching OCPP-J ErrorCode: a wrong JSON type is TypeConstraintViolation, a
// missing required property or an out-of-bounds count is
// OccurrenceConstraintViolation, and a value that's the right type and
// shape but fails a content constraint (length, range, pattern, enum) is
// PropertyConstraintViolation. Anything else falls back to
// FormationViolation.
func schemaErrorCode(err error) ErrorCode {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "type:"):
		return ErrTypeConstraintViolation
	case strings.Contains(msg, "required:"),
		strings.Contains(msg, "minItems:"),
		strings.Contains(msg, "maxItems:"),
		strings.Contains(msg, "minProperties:"),
		strings.Contains(msg, "maxProperties:"),
		strings.Contains(msg, "minContains:"),
		strings.Contains(msg, "maxContains:"):
		return ErrOccurrenceConstraintViolation
	case strings.Contains(msg, "minLength:"),
		strings.Contains(msg, "maxLength:"),
		strings.Contains(msg, "pattern:"),
		strings.Contains(msg, "minimum:"),
		strings.Contains(msg, "maximum:"),
		strings.Contains(msg, "exclusiveMinimum:"),
		strings.Contains(msg, "exclusiveMaximum:"),
		strings.Contains(msg, "multipleOf:"),
		strings.Contains(msg, "enum:"),
		strings.Contains(msg, "const:"):
		return ErrPropertyConstraintViolation
	default:
		return ErrFormationViolation
	}
}

// Call issues a server-initiated Call to sess and blocks until the matching
// CallResult/CallError arrives, ctx is cancelled, or the response timeout
// elapses. It holds sess's call lock for the whole round trip so at most
// one outbound Call is ever in flight per session.
func (r *Router) Call(ctx context.Context, sess *Session, action string, payload map[string]any) (map[string]any, error) {
	if sess.IsClosed() {
		return nil, ErrSessionClosed
	}

	sess.LockCall()
	defer sess.UnlockCall()

	if sess.IsClosed() {
		return nil, ErrSessionClosed
	}

	uniqueID := r.idGenerator()

	if spec, ok := r.Adapter.Lookup(action); ok && r.validator != nil {
		if err := r.validator.Validate(spec.RequestSchema, payload); err != nil {
			return nil, classifySchemaValidationError("outbound request", err)
		}
	}

	camelCased := AsPayloadMap(RemoveNones(ToCamelCase(payload)))
	frame := NewCall(uniqueID, action, camelCased)
	wire, err := Encode(frame)
	if err != nil {
		return nil, err
	}

	replyCh := r.pending.Insert(uniqueID)
	sess.trackOutstanding(uniqueID)
	defer sess.untrackOutstanding(uniqueID)

	if err := sess.Transport.Send(wire, false); err != nil {
		r.pending.Remove(uniqueID)
		return nil, err
	}

	timer := time.NewTimer(r.responseTimeout)
	defer timer.Stop()

	select {
	case reply := <-replyCh:
		if reply.Type == MessageTypeCallError {
			return nil, &CentralSystemError{Code: reply.ErrorCode, Message: reply.ErrorDescription, Details: reply.ErrorDetails}
		}
		response := AsPayloadMap(ToSnakeCase(reply.Payload))
		if spec, ok := r.Adapter.Lookup(action); ok && r.validator != nil {
			if err := r.validator.Validate(spec.ResponseSchema, response); err != nil {
				return nil, classifySchemaValidationError("inbound response", err)
			}
		}
		return response, nil
	case <-timer.C:
		r.pending.Remove(uniqueID)
		return nil, NewErrorf(ErrTimeout, "no response to %s within %s", action, r.responseTimeout)
	case <-ctx.Done():
		r.pending.Remove(uniqueID)
		return nil, ctx.Err()
	}
}
