// Package schemas backs the Protocol Codec's validate operation with real
// JSON Schema documents, compiled once at startup via
// github.com/google/jsonschema-go.
package schemas

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

//go:embed data/*.json
var embedded embed.FS

// Registry holds every schema this runtime knows how to validate against,
// keyed by the schema id used in a VersionAdapter's ActionSpec (for example
// "ocpp16.BootNotification.req").
type Registry struct {
	resolved map[string]*jsonschema.Resolved
}

// Load compiles every *.json document under data/ into the registry. It is
// meant to run once at startup; a failure here is a deployment error, not a
// runtime one, so callers should treat it as fatal.
func Load() (*Registry, error) {
	entries, err := embedded.ReadDir("data")
	if err != nil {
		return nil, fmt.Errorf("schemas: reading embedded data dir: %w", err)
	}

	reg := &Registry{resolved: make(map[string]*jsonschema.Resolved, len(entries))}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		raw, err := embedded.ReadFile("data/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("schemas: reading %s: %w", entry.Name(), err)
		}

		var schema jsonschema.Schema
		if err := json.Unmarshal(raw, &schema); err != nil {
			return nil, fmt.Errorf("schemas: parsing %s: %w", entry.Name(), err)
		}

		resolved, err := schema.Resolve(nil)
		if err != nil {
			return nil, fmt.Errorf("schemas: resolving %s: %w", entry.Name(), err)
		}

		id := schemaIDFromFilename(entry.Name())
		reg.resolved[id] = resolved
	}

	return reg, nil
}

func schemaIDFromFilename(name string) string {
	// "ocpp16.BootNotification.req.json" -> "ocpp16.BootNotification.req"
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[:i]
		}
	}
	return name
}

// Validate checks payload against the schema registered under schemaID. A
// schema id with no registered document is treated as "nothing to check
// against" and returns nil — the embedded set deliberately covers only the
// vocabulary this runtime routes, not the full official OCPP schema corpus.
func (r *Registry) Validate(schemaID string, payload map[string]any) error {
	resolved, ok := r.resolved[schemaID]
	if !ok {
		return nil
	}
	if err := resolved.Validate(payload); err != nil {
		return fmt.Errorf("schema %s: %w", schemaID, err)
	}
	return nil
}
