package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in    string
		want  int64
		valid bool
	}{
		{"150.25", 15025, true},
		{"150", 15000, true},
		{"0.01", 1, true},
		{"100000.00", 10000000, true},
		{"0", 0, false},
		{"0.00", 0, false},
		{"-5.00", 0, false},
		{"1.005", 0, false},
		{"abc", 0, false},
		{"", 0, false},
		// out of int64 minor-unit range; must not wrap around
		{"92233720368547758.07", 9223372036854775807, true},
		{"92233720368547758.08", 0, false},
		{"184467440737095516.16", 0, false},
		{"99999999999999999999999999.00", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseAmount(tt.in)
			require.Equal(t, tt.valid, ok)
			if tt.valid {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "150.25", formatAmount(15025))
	assert.Equal(t, "0.01", formatAmount(1))
	assert.Equal(t, "0.00", formatAmount(0))
	assert.Equal(t, "100000.00", formatAmount(10000000))
}
