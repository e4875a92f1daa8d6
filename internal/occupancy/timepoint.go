package occupancy

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var errEmptyTimestamp = errors.New("empty timestamp")

// Layouts carrying an explicit UTC offset. Fractional seconds are accepted by
// time.Parse after the seconds field even when the layout omits them.
var zonedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05Z07",
	"2006-01-02T15:04Z07:00",
}

// Layouts without offset; interpreted as wall clock time in the store's zone.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02T15",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 timestamp and normalizes it into loc.
// Timestamps without an offset are taken as wall clock time in loc. Both the
// "T" and the space date/time separator are accepted.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errEmptyTimestamp
	}
	if loc == nil {
		loc = time.UTC
	}
	if len(s) > 10 && s[10] == ' ' {
		s = s[:10] + "T" + s[11:]
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.In(loc), nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid ISO-8601 timestamp %q", s)
}

// TruncateToSecond drops the sub-second component of t.
func TruncateToSecond(t time.Time) time.Time {
	return t.Add(-time.Duration(t.Nanosecond()))
}

// SameSecond reports whether a and b denote the same instant once sub-second
// components are discarded.
func SameSecond(a, b time.Time) bool {
	return TruncateToSecond(a).Equal(TruncateToSecond(b))
}
