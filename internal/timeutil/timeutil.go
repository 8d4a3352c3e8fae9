// Package timeutil converts between HH:MM clock strings and minute offsets
// and answers interval questions on half-open [start, end) ranges.
package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DateLayout    = "2006-01-02"
	MinutesPerDay = 24 * 60
)

// ParseTime parses "HH:MM" into minutes since midnight.
// ok is false for missing or non-digit parts (signs included) and out-of-range values.
// "24:00" is accepted so a range can end at midnight.
func ParseTime(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	hh, mm, found := strings.Cut(s, ":")
	if !found || !isDigits(hh) || !isDigits(mm) {
		return 0, false
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, false
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, false
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, false
	}
	return h*60 + m, true
}

// isDigits reports whether s is non-empty and only ASCII digits; Atoi alone would accept signs.
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// FormatTime renders minutes since midnight as zero-padded "HH:MM".
func FormatTime(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// NormalizeTime re-renders a valid clock string in canonical form ("9:5" -> "09:05").
func NormalizeTime(s string) (string, bool) {
	m, ok := ParseTime(s)
	if !ok {
		return "", false
	}
	return FormatTime(m), true
}

// IntervalsOverlap reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
// Touching endpoints do not overlap.
func IntervalsOverlap(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && aEnd > bStart
}

// CeilToStep rounds minutes up to the next multiple of step counted from midnight.
func CeilToStep(minutes, step int) int {
	if step <= 0 {
		return minutes
	}
	if rem := minutes % step; rem != 0 {
		return minutes + step - rem
	}
	return minutes
}

// ParseDate parses a calendar date in YYYY-MM-DD form.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q; expected YYYY-MM-DD", s)
	}
	return d, nil
}
