package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatSpan(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{"seconds only", 45 * time.Second, "45s"},
		{"minutes", 5*time.Minute + 30*time.Second, "5m 30s"},
		{"hours", 2*time.Hour + 15*time.Minute, "2h 15m 0s"},
		{"days", 72*time.Hour + 30*time.Minute, "3d 0h 30m"},
		{"zero", 0, "0s"},
		{"negative", -time.Minute, "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatSpan(tt.d))
		})
	}
}

func TestFormatLocal(t *testing.T) {
	ts := time.Date(2026, time.March, 9, 14, 30, 0, 0, time.UTC)

	got := FormatLocal(ts)
	assert.NotEmpty(t, got)
	// The rendered form depends on the local timezone; the year survives
	// any offset in use.
	assert.Contains(t, got, "2026")
}
