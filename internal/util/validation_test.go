package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidUUID(t *testing.T) {
	assert.True(t, IsValidUUID("0b7c9d2e-4f1a-4c3b-9e8d-7a6b5c4d3e2f"))
	assert.False(t, IsValidUUID(""))
	assert.False(t, IsValidUUID("not-a-uuid"))
	assert.False(t, IsValidUUID("0B7C9D2E-4F1A-4C3B-9E8D-7A6B5C4D3E2F"))
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"+62 812-3456-7890", "6281234567890", true},
		{"6281234567890", "6281234567890", true},
		{"(62) 81234567", "6281234567", true},
		{"081234567890", "", false},
		{"1234", "", false},
		{"62abc4567890", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := NormalizePhone(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
