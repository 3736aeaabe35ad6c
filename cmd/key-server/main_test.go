package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateFlags(t *testing.T) {
	tests := []struct {
		name         string
		port         int
		threads      int
		validityDays int
		valid        bool
	}{
		{"defaults", 9000, 4, 365, true},
		{"highest port", 65535, 1, 1, true},
		{"port zero", 0, 4, 365, false},
		{"negative port", -1, 4, 365, false},
		{"port too large", 65536, 4, 365, false},
		{"no workers", 9000, 0, 365, false},
		{"no validity", 9000, 4, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFlags(tt.port, tt.threads, tt.validityDays)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
