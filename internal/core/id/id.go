// Package id provides time-ordered identifiers for every ledger entity.
package id

import (
	"github.com/google/uuid"
)

// ID is the identifier type of tenants, catalog items, movements, reservations and documents.
type ID = uuid.UUID

// New generates a UUIDv7. Movements and reservations sort by id in creation order.
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

// Parse converts string to ID with validation.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// ParseOptional parses an optional reference. Empty input yields nil.
func ParseOptional(s string) (*ID, error) {
	if s == "" {
		return nil, nil
	}
	v, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// MustParse converts string to ID, panics on error.
// Use only for constants and tests.
func MustParse(s string) ID {
	return uuid.MustParse(s)
}

// IsNil checks if ID is zero-value.
func IsNil(v ID) bool {
	return v == uuid.Nil
}

// Equal compares two optional references.
func Equal(a, b *ID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// String renders an optional reference, empty for nil.
func String(v *ID) string {
	if v == nil {
		return ""
	}
	return v.String()
}

// Clone copies an optional reference so callers never share the pointee.
func Clone(v *ID) *ID {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
