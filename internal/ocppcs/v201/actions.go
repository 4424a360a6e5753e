// Package v201 registers the OCPP 2.0.1-J action vocabulary.
package v201

import "github.com/gridstreamer/ocpp-central/internal/ocppcs"

// Register populates adapter with the OCPP 2.0.1 actions this runtime
// knows about.
func Register(adapter *ocppcs.VersionAdapter) {
	adapter.Add("BootNotification", "ocpp201.BootNotification.req", "ocpp201.BootNotification.conf")
	adapter.Add("Heartbeat", "ocpp201.Heartbeat.req", "ocpp201.Heartbeat.conf")
	adapter.Add("StatusNotification", "ocpp201.StatusNotification.req", "ocpp201.StatusNotification.conf")
	adapter.Add("Authorize", "ocpp201.Authorize.req", "ocpp201.Authorize.conf")
	adapter.Add("GetLocalListVersion", "ocpp201.GetLocalListVersion.req", "ocpp201.GetLocalListVersion.conf")
	adapter.Add("DataTransfer", "ocpp201.DataTransfer.req", "ocpp201.DataTransfer.conf")
	adapter.Add("TransactionEvent", "ocpp201.TransactionEvent.req", "ocpp201.TransactionEvent.conf")
	adapter.Add("NotifyReport", "ocpp201.NotifyReport.req", "ocpp201.NotifyReport.conf")
}
