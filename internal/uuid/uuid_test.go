// Package uuid provides unit tests for UUID generation and validation.
package uuid

import (
	"strings"
	"testing"
)

// TestNew tests that New() generates valid, unique UUID v4 strings.
func TestNew(t *testing.T) {
	ids := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := New()
		if !IsValid(id) {
			t.Fatalf("Generated UUID does not match v4 format: %s", id)
		}
		if ids[id] {
			t.Fatalf("Duplicate UUID generated: %s", id)
		}
		ids[id] = true
	}
}

// TestIsValid tests UUID v4 format validation.
func TestIsValid(t *testing.T) {
	tests := []struct {
		name string
		uuid string
		want bool
	}{
		{"valid UUID v4", "550e8400-e29b-41d4-a716-446655440000", true},
		{"uppercase", "550E8400-E29B-41D4-A716-446655440000", true},
		{"version 1", "550e8400-e29b-11d4-a716-446655440000", false},
		{"bad variant", "550e8400-e29b-41d4-c716-446655440000", false},
		{"no dashes", "550e8400e29b41d4a716446655440000", false},
		{"mongo object id", "65f1c2a4b3e2a1d4c5b6a7f8", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValid(tt.uuid); got != tt.want {
				t.Errorf("IsValid(%q) = %v, want %v", tt.uuid, got, tt.want)
			}
			if err := Validate(tt.uuid); (err == nil) != tt.want {
				t.Errorf("Validate(%q) error = %v", tt.uuid, err)
			}
		})
	}
}

// TestLocalID verifies placeholder ids are recognised and server ids are not.
func TestLocalID(t *testing.T) {
	id := NewLocalID()
	if !strings.HasPrefix(id, LocalPrefix) {
		t.Fatalf("NewLocalID() = %q, missing prefix", id)
	}
	if !IsLocalID(id) {
		t.Errorf("IsLocalID(%q) = false", id)
	}

	for _, s := range []string{"65f1c2a4b3e2a1d4c5b6a7f8", "local-", "local-abc", ""} {
		if IsLocalID(s) {
			t.Errorf("IsLocalID(%q) = true", s)
		}
	}
}
