package position

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSide(t *testing.T) {
	tests := []struct {
		in   string
		side Side
		ok   bool
	}{
		{"long", Long, true},
		{"SHORT", Short, true},
		{" Long ", Long, true},
		{"buy", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		side, ok := ParseSide(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.side, side, tt.in)
	}
}
