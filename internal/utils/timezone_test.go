package utils

import (
	"testing"
	"time"
)

func TestStartOfDayUTC(t *testing.T) {
	cases := []struct {
		name     string
		tz       string
		at       string // RFC3339, UTC
		expected string
	}{
		{
			// 23:00 IST on Sep 1 is 17:30 UTC; local midnight of Sep 1 is
			// Aug 31 18:30 UTC.
			name:     "kolkata evening",
			tz:       "Asia/Kolkata",
			at:       "2026-09-01T17:30:00Z",
			expected: "2026-08-31T18:30:00Z",
		},
		{
			// 01:00 IST on Sep 2 (19:30 UTC Sep 1) already belongs to the
			// next local day.
			name:     "kolkata past midnight",
			tz:       "Asia/Kolkata",
			at:       "2026-09-01T19:30:00Z",
			expected: "2026-09-01T18:30:00Z",
		},
		{
			name:     "utc tenant",
			tz:       "UTC",
			at:       "2026-09-01T13:45:00Z",
			expected: "2026-09-01T00:00:00Z",
		},
		{
			name:     "unknown zone falls back to default",
			tz:       "Not/AZone",
			at:       "2026-09-01T13:45:00Z",
			expected: "2026-09-01T00:00:00Z",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			at, err := time.Parse(time.RFC3339, tc.at)
			if err != nil {
				t.Fatalf("bad test input: %v", err)
			}
			got := StartOfDayUTC(tc.tz, "UTC", at)
			if got.Format(time.RFC3339) != tc.expected {
				t.Fatalf("expected %s, got %s", tc.expected, got.Format(time.RFC3339))
			}
		})
	}
}

func TestDateInTimezone(t *testing.T) {
	at, _ := time.Parse(time.RFC3339, "2026-09-01T19:30:00Z")
	if got := DateInTimezone("Asia/Kolkata", "UTC", at); got != "2026-09-02" {
		t.Fatalf("expected 2026-09-02 in Kolkata, got %s", got)
	}
	if got := DateInTimezone("", "UTC", at); got != "2026-09-01" {
		t.Fatalf("expected 2026-09-01 in UTC fallback, got %s", got)
	}
}
