package utils

import (
	"testing"
)

func TestParseDateRange(t *testing.T) {
	cases := []struct {
		name  string
		input string
		ok    bool
		start string
		end   string
	}{
		{name: "valid range", input: "2026-01-01 to 2026-01-31", ok: true, start: "2026-01-01", end: "2026-01-31"},
		{name: "no surrounding spaces", input: "2026-01-01to2026-01-31", ok: true, start: "2026-01-01", end: "2026-01-31"},
		{name: "empty", input: "", ok: false},
		{name: "whitespace only", input: "   ", ok: false},
		{name: "single date", input: "2026-01-01", ok: false},
		{name: "missing end", input: "2026-01-01 to ", ok: false},
		{name: "bad start date", input: "2026-13-01 to 2026-01-31", ok: false},
		{name: "bad end date", input: "2026-01-01 to not-a-date", ok: false},
		{name: "wrong separator", input: "2026-01-01 - 2026-01-31", ok: false},
		{name: "too many segments", input: "2026-01-01 to 2026-01-15 to 2026-01-31", ok: false},
		{name: "non strict format", input: "2026-1-1 to 2026-1-31", ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			start, end, ok := ParseDateRange(tc.input)
			if ok != tc.ok {
				t.Fatalf("ParseDateRange(%q) ok=%v; want %v", tc.input, ok, tc.ok)
			}
			if !tc.ok {
				if !start.IsZero() || !end.IsZero() {
					t.Fatalf("ParseDateRange(%q) returned non-zero times on failure", tc.input)
				}
				return
			}
			if got := start.Format("2006-01-02"); got != tc.start {
				t.Fatalf("start = %s; want %s", got, tc.start)
			}
			if got := end.Format("2006-01-02"); got != tc.end {
				t.Fatalf("end = %s; want %s", got, tc.end)
			}
		})
	}
}

func TestParseDateRangeInvertedRangeStillParses(t *testing.T) {
	// Ordering is not validated here; the query layer just gets an empty
	// BETWEEN window.
	start, end, ok := ParseDateRange("2026-02-01 to 2026-01-01")
	if !ok {
		t.Fatalf("expected inverted range to parse")
	}
	if !end.Before(start) {
		t.Fatalf("expected end before start, got %v / %v", start, end)
	}
}
