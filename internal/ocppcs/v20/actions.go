// Package v20 registers the OCPP 2.0-J action vocabulary. OCPP 2.0 and
// 2.0.1 share almost the entire action set and payload shape; this runtime
// reuses the 2.0.1 schema ids rather than duplicating a near-identical
// schema set for a subprotocol that saw limited field deployment.
package v20

import "github.com/gridstreamer/ocpp-central/internal/ocppcs"

// Register populates adapter with the OCPP 2.0 actions this runtime knows
// about, validated against the 2.0.1 schema set.
func Register(adapter *ocppcs.VersionAdapter) {
	adapter.Add("BootNotification", "ocpp201.BootNotification.req", "ocpp201.BootNotification.conf")
	adapter.Add("Heartbeat", "ocpp201.Heartbeat.req", "ocpp201.Heartbeat.conf")
	adapter.Add("StatusNotification", "ocpp201.StatusNotification.req", "ocpp201.StatusNotification.conf")
	adapter.Add("Authorize", "ocpp201.Authorize.req", "ocpp201.Authorize.conf")
	adapter.Add("GetLocalListVersion", "ocpp201.GetLocalListVersion.req", "ocpp201.GetLocalListVersion.conf")
	adapter.Add("DataTransfer", "ocpp201.DataTransfer.req", "ocpp201.DataTransfer.conf")
}
