package parsing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTemporaryBan(t *testing.T) {
	tests := []struct {
		details  string
		expected time.Duration
	}{
		{"1 second", time.Second},
		{"30 seconds", 30 * time.Second},
		{"5 minutes", 5 * time.Minute},
		{"1 hour", time.Hour},
		{"3 days", 72 * time.Hour},
		{"2 weeks", 14 * 24 * time.Hour},
		{"Ban changed to 7 days", 7 * 24 * time.Hour},
	}

	for _, tt := range tests {
		duration, err := ParseTemporaryBan(tt.details)
		require.NoError(t, err, "details=%q", tt.details)
		assert.Equal(t, tt.expected, duration, "details=%q", tt.details)
	}
}

func TestParseTemporaryBanErrors(t *testing.T) {
	for _, details := range []string{"permanent", "", "30 fortnights", "soon"} {
		_, err := ParseTemporaryBan(details)
		assert.ErrorIs(t, err, ErrTempBanDetails, "details=%q", details)
	}
}
