package v16

import (
	"testing"

	"github.com/gridstreamer/ocpp-central/internal/ocppcs"
)

func TestRegisterPopulatesCoreActions(t *testing.T) {
	adapter := ocppcs.NewVersionAdapter(ocppcs.SubprotocolOCPP16)
	Register(adapter)

	for _, action := range []string{"BootNotification", "Heartbeat", "StartTransaction", "StopTransaction"} {
		if _, ok := adapter.Lookup(action); !ok {
			t.Errorf("expected %s to be registered", action)
		}
	}
}
