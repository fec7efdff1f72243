package reader

import "github.com/pithecene-io/tandem/audit"

// healthTransition extracts a transition from a health record payload.
// Payloads read back from JSON arrive as map[string]any.
func healthTransition(rec audit.Record) (HealthTransition, bool) {
	payload := toMap(rec.Payload)
	if payload == nil {
		return HealthTransition{}, false
	}

	health := toString(payload["health"])
	if health == "" {
		return HealthTransition{}, false
	}

	tr := HealthTransition{At: rec.At, Health: health}
	if d := toMap(payload["degradation"]); d != nil {
		tr.Degradation = toString(d["level"])
	}
	return tr, true
}

// toMap converts a payload value to a map, returning nil for anything else.
func toMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// toString converts a value to string, returning empty string for nil/non-string.
func toString(v any) string {
	s, _ := v.(string)
	return s
}
