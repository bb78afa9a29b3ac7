package entitlement

import (
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2025-01-05T10:00:00.123456789Z", time.Date(2025, 1, 5, 10, 0, 0, 123e6, time.UTC), true},
		{"2025-01-05T10:00:00.1Z", time.Date(2025, 1, 5, 10, 0, 0, 100e6, time.UTC), true},
		{"2025-01-05T10:00:00Z", time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC), true},
		{"2025-01-05T10:00:00.123z", time.Date(2025, 1, 5, 10, 0, 0, 123e6, time.UTC), true},
		{"2025-01-05T10:00:00.5+02:00", time.Date(2025, 1, 5, 8, 0, 0, 500e6, time.UTC), true},
		{"2025-01-05T10:00:00", time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC), true},
		{"2025-01-05 10:00:00.42Z", time.Date(2025, 1, 5, 10, 0, 0, 420e6, time.UTC), true},
		{"  2025-01-05T10:00:00Z ", time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"soon", time.Time{}, false},
		{"2025-01-05", time.Time{}, false},
		{"2025-13-45T10:00:00Z", time.Time{}, false},
		{"2025-01-05X10:00:00Z", time.Time{}, false},
	}

	for _, tt := range tests {
		got, ok := ParseTimestamp(tt.in)
		if ok != tt.ok {
			t.Fatalf("ParseTimestamp(%q) ok = %v, want %v", tt.in, ok, tt.ok)
		}
		if ok && !got.Equal(tt.want) {
			t.Fatalf("ParseTimestamp(%q) = %s, want %s", tt.in, got, tt.want)
		}
		if ok && got.Location() != time.UTC {
			t.Fatalf("ParseTimestamp(%q) location = %s, want UTC", tt.in, got.Location())
		}
	}
}

func TestRemainingHoursFractionPrecision(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	exact := time.Date(2025, 1, 4, 17, 59, 59, 987654321, time.UTC)
	want, _ := RemainingHours(now, &exact)

	for _, s := range []string{
		"2025-01-04T17:59:59Z",
		"2025-01-04T17:59:59.9Z",
		"2025-01-04T17:59:59.98Z",
		"2025-01-04T17:59:59.987Z",
		"2025-01-04T17:59:59.9876Z",
		"2025-01-04T17:59:59.98765Z",
		"2025-01-04T17:59:59.987654Z",
	} {
		parsed, ok := ParseTimestamp(s)
		if !ok {
			t.Fatalf("could not parse %q", s)
		}
		got, _ := RemainingHours(now, &parsed)
		if d := got - want; d < -1 || d > 1 {
			t.Fatalf("%q: remaining %dh, full precision %dh", s, got, want)
		}
	}
}

func TestRemainingHours(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	in := func(d time.Duration) *time.Time {
		t := now.Add(d)
		return &t
	}

	tests := []struct {
		name   string
		expiry *time.Time
		want   int
		ok     bool
	}{
		{"unknown", nil, 0, false},
		{"floors", in(5*time.Hour + 59*time.Minute), 5, true},
		{"exact", in(72 * time.Hour), 72, true},
		{"under an hour", in(30 * time.Minute), 0, true},
		{"expired", in(-3 * time.Hour), 0, true},
	}
	for _, tt := range tests {
		got, ok := RemainingHours(now, tt.expiry)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("%s: got (%d, %v), want (%d, %v)", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}

func TestRemainingHoursNonIncreasing(t *testing.T) {
	expiry := time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)
	now := expiry.Add(-50 * time.Hour)
	prev := 1 << 30
	for now.Before(expiry.Add(5 * time.Hour)) {
		h, ok := RemainingHours(now, &expiry)
		if !ok {
			t.Fatalf("unexpected unknown at %s", now)
		}
		if h > prev {
			t.Fatalf("remaining hours went up at %s: %d > %d", now, h, prev)
		}
		if !now.Before(expiry) && h != 0 {
			t.Fatalf("expected 0 at or after expiry, got %d at %s", h, now)
		}
		prev = h
		now = now.Add(17 * time.Minute)
	}
}

func TestElapsedMinutes(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-90 * time.Second)

	got, ok := ElapsedMinutes(now, &past)
	if !ok || got != 1.5 {
		t.Fatalf("got (%v, %v), want (1.5, true)", got, ok)
	}
	if _, ok := ElapsedMinutes(now, nil); ok {
		t.Fatal("expected unknown for nil past")
	}
}
