package utils

import (
	"strings"
	"unicode/utf8"

	"socialnet/pkg/errs"
)

// ValidateString trims the value and rejects empty input.
func ValidateString(value string, name string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", errs.Validationf("%s must be a non-empty string", name)
	}
	return trimmed, nil
}

// ValidateBoundedString additionally enforces the configured length cap,
// counted in runes rather than bytes.
func ValidateBoundedString(value string, name string, maxLength int) (string, error) {
	trimmed, err := ValidateString(value, name)
	if err != nil {
		return "", err
	}
	length := utf8.RuneCountInString(trimmed)
	if length > maxLength {
		return "", errs.Validationf("%s is too long (%d > %d)", name, length, maxLength)
	}
	return trimmed, nil
}
