package schemas

import "testing"

func TestLoadRegistersKnownSchemas(t *testing.T) {
	reg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if _, ok := reg.resolved["ocpp16.BootNotification.req"]; !ok {
		t.Fatal("expected ocpp16.BootNotification.req to be registered")
	}
	if _, ok := reg.resolved["ocpp201.Authorize.conf"]; !ok {
		t.Fatal("expected ocpp201.Authorize.conf to be registered")
	}
}

func TestValidateAcceptsConformingPayload(t *testing.T) {
	reg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	payload := map[string]any{
		"charge_point_vendor": "Acme",
		"charge_point_model":  "X1",
	}
	if err := reg.Validate("ocpp16.BootNotification.req", payload); err != nil {
		t.Fatalf("expected conforming payload to validate, got %v", err)
	}
}

func TestValidateRejectsMissingRequiredField(t *testing.T) {
	reg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	payload := map[string]any{
		"charge_point_vendor": "Acme",
	}
	if err := reg.Validate("ocpp16.BootNotification.req", payload); err == nil {
		t.Fatal("expected validation error for missing charge_point_model")
	}
}

func TestValidateUnknownSchemaIDIsNoOp(t *testing.T) {
	reg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if err := reg.Validate("ocpp16.MeterValues.req", map[string]any{"anything": true}); err != nil {
		t.Fatalf("expected unregistered schema id to pass through, got %v", err)
	}
}
