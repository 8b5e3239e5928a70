package config

import "strings"

// ResolveCredential returns the effective API key for a provider given the
// process-wide (environment/.env) value and a per-request UI-supplied value.
// The environment value always wins when non-empty; the precedence is
// deterministic and has no other inputs.
func ResolveCredential(envValue, uiValue string) string {
	if v := strings.TrimSpace(envValue); v != "" {
		return v
	}
	return strings.TrimSpace(uiValue)
}
