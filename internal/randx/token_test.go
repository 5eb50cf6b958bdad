package randx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTokenShape(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		token := NewToken()
		assert.True(t, ValidTokenShape(token), token)
		assert.False(t, seen[token], "token repeated")
		seen[token] = true
	}
}

func TestValidTokenShape(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"123e4567-e89b-42d3-a456-426614174000", true},
		{"", false},
		{"123e4567", false},
		{"123e4567-e89b-42d3-a456-42661417400g", false},
		{"123e4567-e89b-42d3-a456-4266141740000", false},
		{"'; DROP TABLE app_users;--", false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, ValidTokenShape(tc.in), tc.in)
	}
}

func TestMakeRandHexString(t *testing.T) {
	s, err := MakeRandHexString(16)
	require.NoError(t, err)
	assert.Len(t, s, 32)
}
