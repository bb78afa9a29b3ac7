package entitlement

import (
	"math"
	"regexp"
	"strings"
	"time"
)

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

var fractionRe = regexp.MustCompile(`\.(\d+)`)

// normalizeFraction rewrites the fractional-second group, if any, to exactly
// three digits so layouts with a fixed precision can parse it.
func normalizeFraction(s string) string {
	loc := fractionRe.FindStringSubmatchIndex(s)
	if loc == nil {
		return s[:19] + ".000" + s[19:]
	}
	digits := s[loc[2]:loc[3]]
	switch {
	case len(digits) > 3:
		digits = digits[:3]
	case len(digits) < 3:
		digits += strings.Repeat("0", 3-len(digits))
	}
	return s[:loc[0]] + "." + digits + s[loc[1]:]
}

// ParseTimestamp parses provider timestamps such as
// "2025-01-05T10:00:00.123456789Z" or "2025-01-05T10:00:00+00:00".
// The second return value is false for anything it cannot read.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 19 || s[10] != 'T' && s[10] != ' ' {
		return time.Time{}, false
	}
	s = s[:10] + "T" + s[11:]
	if strings.HasSuffix(s, "z") {
		s = s[:len(s)-1] + "Z"
	}

	s = normalizeFraction(s)
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		// No zone at all: the panel only ever speaks UTC.
		if len(s) != len(timestampLayout)-len("Z07:00") {
			return time.Time{}, false
		}
		if t, err = time.Parse(timestampLayout, s+"Z"); err != nil {
			return time.Time{}, false
		}
	}
	return t.UTC(), true
}

// ParseTimestampPtr is ParseTimestamp for optional fields.
func ParseTimestampPtr(s string) *time.Time {
	t, ok := ParseTimestamp(s)
	if !ok {
		return nil
	}
	return &t
}

// RemainingHours is the whole number of hours left until expiry, clamped at
// zero. ok is false when expiry is unknown.
func RemainingHours(now time.Time, expiry *time.Time) (hours int, ok bool) {
	if expiry == nil {
		return 0, false
	}
	h := math.Floor(expiry.Sub(now).Hours())
	if h < 0 {
		return 0, true
	}
	return int(h), true
}

// ElapsedMinutes is the time since past in minutes. ok is false when past is
// unknown.
func ElapsedMinutes(now time.Time, past *time.Time) (minutes float64, ok bool) {
	if past == nil {
		return 0, false
	}
	return now.Sub(*past).Minutes(), true
}
