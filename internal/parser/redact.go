package parser

import "strings"

// RedactedValue replaces any value whose key looks secret-bearing.
const RedactedValue = "[REDACTED]"

// secretKeyHints are case-insensitive substring matches against map keys.
var secretKeyHints = []string{"secret", "password", "passwd", "token", "key", "credential"}

func looksSecret(key string) bool {
	k := strings.ToLower(key)
	for _, hint := range secretKeyHints {
		if strings.Contains(k, hint) {
			return true
		}
	}
	return false
}

// RedactSecrets returns a copy of payload with every secret-looking
// field replaced, recursing through nested objects and arrays. The input
// is not modified.
func RedactSecrets(payload map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		if looksSecret(k) {
			out[k] = RedactedValue
			continue
		}
		out[k] = redactValue(v)
	}
	return out
}

func redactValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return RedactSecrets(t)
	case []interface{}:
		list := make([]interface{}, len(t))
		for i, item := range t {
			list[i] = redactValue(item)
		}
		return list
	default:
		return v
	}
}
