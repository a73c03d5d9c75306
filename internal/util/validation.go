package util

import (
	"slices"

	"github.com/google/uuid"
)

// IsValidUUID accepts only the canonical 36 character form.
func IsValidUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// IsValidEnum treats the empty value as "not set".
func IsValidEnum[T ~string](value T, valid []T) bool {
	return value == "" || slices.Contains(valid, value)
}
