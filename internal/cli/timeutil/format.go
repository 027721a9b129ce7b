// Package timeutil provides time formatting utilities for CLI output.
package timeutil

import (
	"fmt"
	"time"
)

// LocalTimeFormat is the format used for displaying local times in CLI output.
// Uses Go's reference time: Mon Jan 2 15:04:05 2006.
const LocalTimeFormat = "Mon Jan 2 15:04:05 2006"

// FormatLocal renders a timestamp in the local timezone for CLI output.
func FormatLocal(t time.Time) string {
	return t.Local().Format(LocalTimeFormat)
}

// Age returns a human-readable span since t, like "3d 2h 30m" or "45s".
func Age(t time.Time) string {
	return FormatSpan(time.Since(t))
}

// FormatSpan converts a duration to a human-readable format like
// "3d 0h 30m 15s". Negative durations render as "0s".
func FormatSpan(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
