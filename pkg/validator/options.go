package validator

import "strings"

func ValidateLogLevel(level string) bool {
	validLevels := map[string]bool{
		"debug":   true,
		"info":    true,
		"warn":    true,
		"warning": true,
		"error":   true,
	}

	// Если не входит в validLevels вернет false
	return validLevels[strings.ToLower(level)]
}

func ValidateLogFormat(format string) bool {
	switch strings.ToLower(format) {
	case "text", "json":
		return true
	}
	return false
}

func ValidateServerMode(mode string) bool {
	return mode == "debug" || mode == "release" || mode == "test"
}
