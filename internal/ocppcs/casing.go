package ocppcs

import "strings"

// ToSnakeCase recursively converts every map key in v from lowerCamelCase
// (the wire format) to snake_case (the handler-facing format). Values other
// than nested maps/slices are left untouched.
func ToSnakeCase(v any) any {
	return walkKeys(v, camelToSnake)
}

// ToCamelCase recursively converts every map key in v from snake_case back
// to lowerCamelCase before it goes on the wire.
func ToCamelCase(v any) any {
	return walkKeys(v, snakeToCamel)
}

func walkKeys(v any, convert func(string) string) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[convert(k)] = walkKeys(val, convert)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = walkKeys(val, convert)
		}
		return out
	default:
		return v
	}
}

func camelToSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func snakeToCamel(s string) string {
	parts := strings.Split(s, "_")
	var b strings.Builder
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i == 0 {
			b.WriteString(p)
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}

// RemoveNones strips keys whose value is nil from v, recursively. This
// mirrors the original router's remove_nones step applied to outbound
// payloads: Go structs already elide absent optional fields via
// `json:",omitempty"`, but handler code building map[string]any payloads by
// hand can still leave explicit nils that must not reach the wire.
func RemoveNones(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if val == nil {
				continue
			}
			out[k] = RemoveNones(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = RemoveNones(val)
		}
		return out
	default:
		return v
	}
}

// AsPayloadMap coerces RemoveNones/ToCamelCase's any return back into the
// map[string]any shape Frame.Payload requires, for the common case where v
// is already a map at the top level.
func AsPayloadMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}
