package interval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Valid(t *testing.T) {
	tests := []struct {
		expr     string
		expected time.Duration
	}{
		{"daily", 24 * time.Hour},
		{"weekly", 7 * 24 * time.Hour},
		{"monthly", 30 * 24 * time.Hour},
		{"DAILY", 24 * time.Hour},
		{"  Weekly ", 7 * 24 * time.Hour},
		{"1d12h", 36 * time.Hour},
		{"2h30m", 150 * time.Minute},
		{"15d", 15 * 24 * time.Hour},
		{"1d2h3m", 26*time.Hour + 3*time.Minute},
		{"45m", 45 * time.Minute},
		{"0d1m", time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			d, err := Parse(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, d)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, expr := range []string{
		"", "   ", "abc", "1x", "d", "1h1d", "1d1d", "0m",
		"0d0h0m", "-1d", "1.5h", "99999999999999999999d",
		"106752d",
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := Parse(expr)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestParse_Disabled(t *testing.T) {
	_, err := Parse(" Disabled")
	assert.ErrorIs(t, err, ErrDisabled)
	assert.True(t, IsDisabled("DISABLED"))
	assert.False(t, IsDisabled("daily"))
}

func TestParseTesting(t *testing.T) {
	d, err := ParseTesting("daily")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, d)

	d, err = ParseTesting("weekly")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, d)

	d, err = ParseTesting("monthly")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, d)

	d, err = ParseTesting("3d")
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, d)

	d, err = ParseTesting("1m")
	require.NoError(t, err)
	assert.Equal(t, time.Millisecond, d)

	_, err = ParseTesting("nope")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestFormat(t *testing.T) {
	tests := []struct {
		remaining time.Duration
		expected  string
	}{
		{Never, "Disabled"},
		{0, "Ready to rotate"},
		{30 * time.Second, "0m"},
		{5 * time.Minute, "5m"},
		{2*time.Hour + 5*time.Minute, "2h 5m"},
		{Day + 30*time.Minute, "1d 0h 30m"},
		{3*Day + 4*time.Hour + 59*time.Minute + 59*time.Second, "3d 4h 59m"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, Format(tt.remaining))
		})
	}
}
