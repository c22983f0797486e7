package timeparsing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Wednesday, January 15, 2025, 10:00
var now = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

func TestParseCompactDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"+6h", now.Add(6 * time.Hour)},
		{"-1d", now.AddDate(0, 0, -1)},
		{"+2w", now.AddDate(0, 0, 14)},
		{"3m", now.AddDate(0, 3, 0)},
		{"-1y", now.AddDate(-1, 0, 0)},
		{"0d", now},
	}
	for _, tt := range tests {
		got, err := ParseCompactDuration(tt.in, now)
		require.NoError(t, err, tt.in)
		assert.True(t, got.Equal(tt.want), "%s: got %v want %v", tt.in, got, tt.want)
	}

	for _, bad := range []string{"", "6", "h", "+6x", "6 h", "1.5d", "++1d"} {
		_, err := ParseCompactDuration(bad, now)
		assert.Error(t, err, bad)
		assert.False(t, IsCompactDuration(bad), bad)
	}
}

func TestParseCompactDurationMonthBoundary(t *testing.T) {
	jan31 := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	got, err := ParseCompactDuration("+1m", jan31)
	require.NoError(t, err)
	// AddDate normalizes Feb 31 to Mar 3.
	assert.Equal(t, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), got)
}

func TestParseRelativeTimeLayers(t *testing.T) {
	local := time.Date(2025, 1, 15, 10, 0, 0, 0, time.Local)
	tests := []struct {
		name  string
		in    string
		year  int
		month time.Month
		day   int
		hour  int // -1 skips the check
	}{
		{"compact", "+1d", 2025, time.January, 16, 10},
		{"date only is local midnight", "2025-02-01", 2025, time.February, 1, 0},
		{"rfc3339", "2025-03-15T14:30:00Z", 2025, time.March, 15, 14},
		{"natural language", "tomorrow", 2025, time.January, 16, -1},
		{"next weekday", "next monday", 2025, time.January, 20, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRelativeTime(tt.in, local)
			require.NoError(t, err)
			assert.Equal(t, tt.year, got.Year())
			assert.Equal(t, tt.month, got.Month())
			assert.Equal(t, tt.day, got.Day())
			if tt.hour >= 0 {
				assert.Equal(t, tt.hour, got.Hour())
			}
		})
	}

	_, err := ParseRelativeTime("not-a-date", local)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot parse time")
}

func TestParseNaturalLanguage(t *testing.T) {
	got, err := ParseNaturalLanguage("yesterday", now)
	require.NoError(t, err)
	assert.Equal(t, 14, got.Day())

	_, err = ParseNaturalLanguage("   ", now)
	assert.Error(t, err)
	_, err = ParseNaturalLanguage("qwerty", now)
	assert.Error(t, err)
}

func TestSince(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2w", now.AddDate(0, 0, -14)},
		{"-2w", now.AddDate(0, 0, -14)},
		{" 36h ", now.Add(-36 * time.Hour)},
		{"2025-01-01T00:00:00Z", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := Since(tt.in, now)
		require.NoError(t, err, tt.in)
		assert.True(t, got.Equal(tt.want), "%s: got %v want %v", tt.in, got, tt.want)
	}

	got, err := Since("2 weeks ago", now)
	require.NoError(t, err)
	assert.True(t, got.Before(now))

	_, err = Since("+1d", now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "in the future")

	_, err = Since("someday", now)
	assert.Error(t, err)
}
