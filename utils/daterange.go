package utils

import (
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// ParseDateRange parses a compound range string of the form
// "YYYY-MM-DD to YYYY-MM-DD". The string is split on the literal token "to";
// unless that yields exactly two segments that both parse as strict
// YYYY-MM-DD dates, the whole range is treated as absent (ok=false), never
// as an error. Callers must keep this silent-failure behavior: a malformed
// range filters nothing.
func ParseDateRange(s string) (start, end time.Time, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, time.Time{}, false
	}
	parts := strings.Split(s, "to")
	if len(parts) != 2 {
		return time.Time{}, time.Time{}, false
	}
	start, err := time.Parse(dateLayout, strings.TrimSpace(parts[0]))
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	end, err = time.Parse(dateLayout, strings.TrimSpace(parts[1]))
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}
