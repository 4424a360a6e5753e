// Package metrics exposes the central system's Prometheus counters and
// gauges. Not named by the specification, but carried as ambient
// observability infrastructure the way a production Go service would ship
// it regardless of the business-logic scope.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry bundles every metric the central system records.
type Registry struct {
	ActiveSessions  prometheus.Gauge
	FramesReceived  *prometheus.CounterVec
	FramesSent      *prometheus.CounterVec
	HandlerErrors   *prometheus.CounterVec
	CallTimeouts    prometheus.Counter
	SchemaRejects   *prometheus.CounterVec
}

// New registers every metric against prometheus.DefaultRegisterer via
// promauto, matching the usual Go-ecosystem idiom of registering metrics at
// package-init/startup time rather than threading a registry handle through
// every call site.
func New() *Registry {
	return &Registry{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "ocpp_central",
			Name:      "active_sessions",
			Help:      "Number of currently connected Charging Station sessions.",
		}),
		FramesReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ocpp_central",
			Name:      "frames_received_total",
			Help:      "OCPP-J frames received, labeled by subprotocol and message type.",
		}, []string{"subprotocol", "message_type"}),
		FramesSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ocpp_central",
			Name:      "frames_sent_total",
			Help:      "OCPP-J frames sent, labeled by subprotocol and message type.",
		}, []string{"subprotocol", "message_type"}),
		HandlerErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ocpp_central",
			Name:      "handler_errors_total",
			Help:      "Handler invocations that returned an error, labeled by action.",
		}, []string{"action"}),
		CallTimeouts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "ocpp_central",
			Name:      "call_timeouts_total",
			Help:      "Server-initiated Calls that timed out waiting for a response.",
		}),
		SchemaRejects: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ocpp_central",
			Name:      "schema_rejects_total",
			Help:      "Payloads rejected by schema validation, labeled by schema id.",
		}, []string{"schema_id"}),
	}
}
