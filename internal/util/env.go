// Package util provides small helpers shared across components.
package util

import (
	"log/slog"
	"os"
	"strings"
)

// ParseBoolEnv reads a boolean environment variable, falling back to
// defaultValue when the variable is unset, empty, or unrecognized. Accepts
// true/false, 1/0, yes/no, and on/off in any case. Used for feature toggles
// like DTA_FHIR_EXPORT.
func ParseBoolEnv(key string, defaultValue bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	switch strings.ToLower(raw) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	slog.Warn("ParseBoolEnv: unrecognized boolean value, falling back to default", "key", key, "value", raw, "default", defaultValue)
	return defaultValue
}
