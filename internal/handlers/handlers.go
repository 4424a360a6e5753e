// Package handlers is the reference business logic wired into the demo
// central system binary: one On handler per action the bundled demo
// Charging Station exercises, plus an After hook that logs once the reply
// has actually gone out. Real deployments replace this package with their
// own handler set; the Router doesn't care where handlers come from.
package handlers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gridstreamer/ocpp-central/internal/ocppcs"
)

// Register installs BootNotification/Heartbeat/StatusNotification/
// Authorize/GetLocalListVersion/DataTransfer handlers on router.
func Register(router *ocppcs.Router, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}

	router.On("BootNotification", func(hc *ocppcs.HandlerContext, payload map[string]any) (map[string]any, error) {
		log.Info("boot notification",
			"charging_station_id", hc.Session.ChargingStationID,
			"vendor", firstNonEmpty(payload, "charge_point_vendor", "charging_station"),
		)
		return map[string]any{
			"status":       "Accepted",
			"current_time": time.Now().UTC().Format(time.RFC3339),
			"interval":     300,
		}, nil
	})

	router.After("BootNotification", func(hc *ocppcs.HandlerContext, payload map[string]any) (map[string]any, error) {
		log.Debug("boot notification acknowledged", "charging_station_id", hc.Session.ChargingStationID)
		return nil, nil
	})

	router.On("Heartbeat", func(hc *ocppcs.HandlerContext, payload map[string]any) (map[string]any, error) {
		return map[string]any{"current_time": time.Now().UTC().Format(time.RFC3339)}, nil
	})

	router.On("StatusNotification", func(hc *ocppcs.HandlerContext, payload map[string]any) (map[string]any, error) {
		log.Info("status notification",
			"charging_station_id", hc.Session.ChargingStationID,
			"status", payload["status"],
		)
		return map[string]any{}, nil
	})

	router.On("Authorize", func(hc *ocppcs.HandlerContext, payload map[string]any) (map[string]any, error) {
		if router.Subprotocol != ocppcs.SubprotocolOCPP16 {
			idToken, _ := payload["id_token"].(map[string]any)
			if token, _ := idToken["id_token"].(string); token == "" {
				return nil, ocppcs.NewError(ocppcs.ErrPropertyConstraintViolation, "id_token is required")
			}
			return map[string]any{
				"id_token_info": map[string]any{"status": "Accepted"},
			}, nil
		}
		idTag, _ := payload["id_tag"].(string)
		if idTag == "" {
			return nil, ocppcs.NewError(ocppcs.ErrPropertyConstraintViolation, "id_tag is required")
		}
		return map[string]any{
			"id_tag_info": map[string]any{"status": "Accepted"},
		}, nil
	})

	router.On("GetLocalListVersion", func(hc *ocppcs.HandlerContext, payload map[string]any) (map[string]any, error) {
		if router.Subprotocol != ocppcs.SubprotocolOCPP16 {
			return map[string]any{"version_number": 0}, nil
		}
		return map[string]any{"list_version": 0}, nil
	})

	router.On("DataTransfer", func(hc *ocppcs.HandlerContext, payload map[string]any) (map[string]any, error) {
		vendorID, _ := payload["vendor_id"].(string)
		if vendorID == "" {
			return nil, ocppcs.NewError(ocppcs.ErrPropertyConstraintViolation, "vendor_id is required")
		}
		return map[string]any{"status": "Accepted"}, nil
	})
}

func firstNonEmpty(payload map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := payload[k].(string); ok && v != "" {
			return v
		}
		if v, ok := payload[k].(map[string]any); ok {
			if vendor, ok := v["vendor_name"].(string); ok {
				return vendor
			}
		}
	}
	return fmt.Sprintf("%v", payload)
}
