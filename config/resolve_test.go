package config

import "testing"

func TestResolveCredential(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		uiValue  string
		want     string
	}{
		{"env wins over ui", "env-key", "ui-key", "env-key"},
		{"ui used when env empty", "", "ui-key", "ui-key"},
		{"both empty", "", "", ""},
		{"whitespace env falls through", "   ", "ui-key", "ui-key"},
		{"ui value trimmed", "", "  ui-key  ", "ui-key"},
		{"env value trimmed", "  env-key  ", "", "env-key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveCredential(tt.envValue, tt.uiValue); got != tt.want {
				t.Errorf("ResolveCredential(%q, %q) = %q, want %q",
					tt.envValue, tt.uiValue, got, tt.want)
			}
		})
	}
}
