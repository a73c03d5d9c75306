package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidUUID(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"6ba7b810-9dad-11d1-80b4-00c04fd430c8", true},
		{"", false},
		{"6ba7b8109dad11d180b400c04fd430c8", false},
		{"{6ba7b810-9dad-11d1-80b4-00c04fd430c8}", false},
		{"urn:uuid:6ba7b810-9dad-11d1-80b4-00c04fd430c8", false},
		{"not-a-uuid-at-all-but-36-characters!", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsValidUUID(tt.in), tt.in)
	}
}

func TestIsValidEnum(t *testing.T) {
	type color string
	valid := []color{"red", "green"}

	assert.True(t, IsValidEnum(color(""), valid))
	assert.True(t, IsValidEnum(color("red"), valid))
	assert.False(t, IsValidEnum(color("blue"), valid))
}
