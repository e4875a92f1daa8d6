package occupancy

import (
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	taipei := time.FixedZone("CST", 8*3600)

	tests := []struct {
		in   string
		want time.Time
	}{
		{in: "2025-12-03T15:04:05", want: time.Date(2025, 12, 3, 15, 4, 5, 0, taipei)},
		{in: "2025-12-03 15:04:05", want: time.Date(2025, 12, 3, 15, 4, 5, 0, taipei)},
		{in: "2025-12-03T15:04:05.123456", want: time.Date(2025, 12, 3, 15, 4, 5, 123456000, taipei)},
		{in: "2025-12-03T15:04", want: time.Date(2025, 12, 3, 15, 4, 0, 0, taipei)},
		{in: "2025-12-03", want: time.Date(2025, 12, 3, 0, 0, 0, 0, taipei)},
		{in: "2025-12-03T07:04:05Z", want: time.Date(2025, 12, 3, 15, 4, 5, 0, taipei)},
		{in: "2025-12-03T15:04:05+08:00", want: time.Date(2025, 12, 3, 15, 4, 5, 0, taipei)},
		{in: "2025-12-03T09:04:05.5+02:00", want: time.Date(2025, 12, 3, 15, 4, 5, 500000000, taipei)},
		{in: "2025-12-03T15:04:05+0800", want: time.Date(2025, 12, 3, 15, 4, 5, 0, taipei)},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseTimestamp(tc.in, taipei)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			if got.Hour() != tc.want.Hour() {
				t.Fatalf("hour not normalized into zone: got %d, want %d", got.Hour(), tc.want.Hour())
			}
		})
	}
}

func TestParseTimestampInvalid(t *testing.T) {
	for _, in := range []string{"", "   ", "yesterday", "2025-13-01T00:00:00", "1764749435"} {
		if _, err := ParseTimestamp(in, time.UTC); err == nil {
			t.Errorf("ParseTimestamp(%q): expected error", in)
		}
	}
}

func TestTruncateToSecond(t *testing.T) {
	a := time.Date(2025, 12, 3, 15, 4, 5, 100, time.UTC)
	b := time.Date(2025, 12, 3, 15, 4, 5, 999999999, time.UTC)
	c := time.Date(2025, 12, 3, 15, 4, 6, 0, time.UTC)

	if !SameSecond(a, b) {
		t.Fatalf("expected %v and %v to share a second", a, b)
	}
	if SameSecond(b, c) {
		t.Fatalf("expected %v and %v to differ", b, c)
	}
	if got := TruncateToSecond(b); got.Nanosecond() != 0 || got.Second() != 5 {
		t.Fatalf("TruncateToSecond = %v", got)
	}
}
