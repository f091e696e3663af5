package handlers

import (
	"strings"
)

// SensitiveFieldPatterns defines patterns for sensitive configuration fields
// These fields should never be exposed in API responses
var SensitiveFieldPatterns = []string{
	// Shared secrets and tokens
	"secret",
	"token",
	"api_key",
	"apikey",
	"private_key",

	// Database and service credentials
	"password",
	"passwd",
	"credential",

	// Connection strings with embedded credentials
	"connection_string",
	"database_url",
	"rabbitmq_url",

	// Encryption keys
	"encryption_key",
	"signing_key",
}

// nonSensitiveFields match a pattern above but only name a setting.
var nonSensitiveFields = map[string]bool{
	"secret_store":         true,
	"ends_with_secret_key": true,
}

// RedactedValue replaces the value of a sensitive field.
const RedactedValue = "[REDACTED]"

// FilterSensitiveSettings masks sensitive values in a settings map.
// Empty values are kept so callers can tell an unset secret from a set one.
func FilterSensitiveSettings(settings map[string]string) map[string]string {
	if settings == nil {
		return nil
	}

	filtered := make(map[string]string, len(settings))

	for key, value := range settings {
		if value != "" && isSensitiveField(key) {
			filtered[key] = RedactedValue
		} else {
			filtered[key] = value
		}
	}

	return filtered
}

// isSensitiveField checks if a field name contains sensitive patterns
func isSensitiveField(fieldName string) bool {
	fieldLower := strings.ToLower(fieldName)
	if nonSensitiveFields[fieldLower] {
		return false
	}

	for _, pattern := range SensitiveFieldPatterns {
		if strings.Contains(fieldLower, pattern) {
			return true
		}
	}

	return false
}
