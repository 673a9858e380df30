package predictor

import (
	"strconv"
	"strings"
	"time"
)

// hourKeyLayout is the canonical form of an hour bucket.
const hourKeyLayout = "2006-01-02T15:00:00Z"

// inputLayouts are tried in order when parsing free-form timestamps.
var inputLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// HourOf truncates t to the top of its UTC hour.
func HourOf(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

// HourKey returns the hour bucket of t, or "" for the zero time.
func HourKey(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return HourOf(t).Format(hourKeyLayout)
}

// ParseHourKey parses a timestamp string and returns its hour bucket.
// Unparsable input yields "".
func ParseHourKey(s string) string {
	t, ok := ParseTimestamp(s)
	if !ok {
		return ""
	}
	return HourKey(t)
}

// ParseTimestamp accepts RFC3339 variants, naive UTC layouts and unix
// seconds (optionally fractional).
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range inputLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		sec := int64(f)
		nsec := int64((f - float64(sec)) * 1e9)
		return time.Unix(sec, nsec).UTC(), true
	}
	return time.Time{}, false
}
