package predictor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHourKey(t *testing.T) {
	helsinki := time.FixedZone("EET", 2*3600)

	tests := []struct {
		name     string
		input    time.Time
		expected string
	}{
		{"already aligned", time.Date(2024, 11, 21, 12, 0, 0, 0, time.UTC), "2024-11-21T12:00:00Z"},
		{"truncates minutes", time.Date(2024, 11, 21, 12, 59, 59, 999, time.UTC), "2024-11-21T12:00:00Z"},
		{"converts to UTC", time.Date(2024, 11, 21, 12, 34, 56, 0, helsinki), "2024-11-21T10:00:00Z"},
		{"zero time", time.Time{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HourKey(tt.input))
		})
	}
}

func TestParseHourKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"rfc3339", "2024-11-21T12:34:56Z", "2024-11-21T12:00:00Z"},
		{"rfc3339 nano with offset", "2024-11-21T12:34:56.789+02:00", "2024-11-21T10:00:00Z"},
		{"naive minutes", "2024-11-21T07:15", "2024-11-21T07:00:00Z"},
		{"space separated", "2024-11-21 23:59:00", "2024-11-21T23:00:00Z"},
		{"unix seconds", "1700000000", "2023-11-14T22:00:00Z"},
		{"fractional unix seconds", "1700000000.68", "2023-11-14T22:00:00Z"},
		{"garbage", "not a time", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseHourKey(tt.input))
		})
	}
}

func TestHourOf(t *testing.T) {
	in := time.Date(2024, 11, 21, 12, 34, 0, 0, time.FixedZone("EET", 2*3600))
	assert.Equal(t, time.Date(2024, 11, 21, 10, 0, 0, 0, time.UTC), HourOf(in))
}
