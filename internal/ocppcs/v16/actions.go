// Package v16 registers the OCPP 1.6-J action vocabulary: the subset of
// actions a Central System needs to validate and route. It does not attempt
// to carry the full official schema set (see the schemas Non-goal).
package v16

import "github.com/gridstreamer/ocpp-central/internal/ocppcs"

// Register populates adapter with the OCPP 1.6 actions this runtime knows
// about. Call it once at startup before the adapter is handed to a Router.
func Register(adapter *ocppcs.VersionAdapter) {
	adapter.Add("BootNotification", "ocpp16.BootNotification.req", "ocpp16.BootNotification.conf")
	adapter.Add("Heartbeat", "ocpp16.Heartbeat.req", "ocpp16.Heartbeat.conf")
	adapter.Add("StatusNotification", "ocpp16.StatusNotification.req", "ocpp16.StatusNotification.conf")
	adapter.Add("Authorize", "ocpp16.Authorize.req", "ocpp16.Authorize.conf")
	adapter.Add("GetLocalListVersion", "ocpp16.GetLocalListVersion.req", "ocpp16.GetLocalListVersion.conf")
	adapter.Add("DataTransfer", "ocpp16.DataTransfer.req", "ocpp16.DataTransfer.conf")
	adapter.Add("MeterValues", "ocpp16.MeterValues.req", "ocpp16.MeterValues.conf")
	adapter.Add("StartTransaction", "ocpp16.StartTransaction.req", "ocpp16.StartTransaction.conf")
	adapter.Add("StopTransaction", "ocpp16.StopTransaction.req", "ocpp16.StopTransaction.conf")
}
