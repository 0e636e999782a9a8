// Package uuid generates the identifiers the sync core mints on the device:
// placeholder ids of donations created offline and request ids.
package uuid

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// LocalPrefix marks a donation id that the server has not assigned yet.
const LocalPrefix = "local-"

// UUID v4 format: xxxxxxxx-xxxx-4xxx-yxxx-xxxxxxxxxxxx
// where y is one of [8, 9, a, b] (variant bits)
var uuidV4Regex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-4[0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}$`)

// New generates a new UUID v4.
func New() string {
	return uuid.New().String()
}

// NewLocalID returns a placeholder id for an entity created offline.
func NewLocalID() string {
	return LocalPrefix + New()
}

// IsLocalID reports whether id was produced by NewLocalID.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, LocalPrefix) && IsValid(strings.TrimPrefix(id, LocalPrefix))
}

// IsValid checks if a string is a valid UUID v4.
func IsValid(s string) bool {
	return uuidV4Regex.MatchString(s)
}

// Validate returns an error if the string is not a valid UUID v4.
func Validate(s string) error {
	if !IsValid(s) {
		return fmt.Errorf("invalid UUID v4 format: %q", s)
	}
	return nil
}
