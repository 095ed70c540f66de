// Package validate provides shared validation functions.
package validate

import (
	"fmt"
	"strings"
)

// MaxIdentifierLength bounds room and user identifiers.
const MaxIdentifierLength = 64

// Identifier validates a caller-supplied room or user identifier. Identifiers
// must be non-empty, at most MaxIdentifierLength bytes, and contain only
// letters, digits, '-', '_', '.' or ':'.
func Identifier(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("identifier is required")
	}
	if len(id) > MaxIdentifierLength {
		return fmt.Errorf("identifier exceeds %d characters", MaxIdentifierLength)
	}
	for _, r := range id {
		if !isIdentRune(r) {
			return fmt.Errorf("identifier contains invalid character %q", r)
		}
	}
	return nil
}

// RoomID validates a room identifier.
func RoomID(id string) error {
	if err := Identifier(id); err != nil {
		return fmt.Errorf("room id: %w", err)
	}
	return nil
}

// UserID validates a user identifier.
func UserID(id string) error {
	if err := Identifier(id); err != nil {
		return fmt.Errorf("user id: %w", err)
	}
	return nil
}

func isIdentRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-', r == '_', r == '.', r == ':':
		return true
	default:
		return false
	}
}
