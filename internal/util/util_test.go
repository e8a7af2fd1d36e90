package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAsInt32(t *testing.T) {
	tests := []struct {
		name     string
		input    int
		expected int32
	}{
		{
			name:     "zero value",
			input:    0,
			expected: 0,
		},
		{
			name:     "positive value within range",
			input:    1000,
			expected: 1000,
		},
		{
			name:     "negative value within range",
			input:    -1000,
			expected: -1000,
		},
		{
			name:     "max int32 value",
			input:    2147483647,
			expected: 2147483647,
		},
		{
			name:     "min int32 value",
			input:    -2147483648,
			expected: -2147483648,
		},
		{
			name:     "value above max int32",
			input:    2147483648,
			expected: 2147483647,
		},
		{
			name:     "large positive value",
			input:    9223372036854775807, // max int64
			expected: 2147483647,
		},
		{
			name:     "value below min int32",
			input:    -2147483649,
			expected: -2147483648,
		},
		{
			name:     "large negative value",
			input:    -9223372036854775808, // min int64
			expected: -2147483648,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := AsInt32(tt.input)
			require.Equal(t, tt.expected, result)
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		n        int
		expected string
	}{
		{
			name:     "short string unchanged",
			input:    "Inception",
			n:        60,
			expected: "Inception",
		},
		{
			name:     "exact length unchanged",
			input:    "abcdef",
			n:        6,
			expected: "abcdef",
		},
		{
			name:     "long string gets ellipsis",
			input:    "The Lord of the Rings: The Return of the King",
			n:        20,
			expected: "The Lord of the R...",
		},
		{
			name:     "multibyte runes not split",
			input:    "アメリ アメリ アメリ",
			n:        8,
			expected: "アメリ ア...",
		},
		{
			name:     "limit smaller than ellipsis",
			input:    "abcdef",
			n:        2,
			expected: "ab",
		},
		{
			name:     "zero limit",
			input:    "abc",
			n:        0,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(tt.input, tt.n)
			require.Equal(t, tt.expected, got)
			require.LessOrEqual(t, len([]rune(got)), max(tt.n, 0))
		})
	}
}
