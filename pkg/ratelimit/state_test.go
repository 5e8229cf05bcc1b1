package ratelimit

import (
	"testing"
	"time"
)

func TestWindowState_Exhausted(t *testing.T) {
	tests := []struct {
		name      string
		count     int64
		limit     int
		exhausted bool
		remaining int
	}{
		{name: "empty window", count: 0, limit: 4, exhausted: false, remaining: 4},
		{name: "one below limit", count: 3, limit: 4, exhausted: false, remaining: 1},
		{name: "at limit", count: 4, limit: 4, exhausted: false, remaining: 0},
		{name: "over limit", count: 5, limit: 4, exhausted: true, remaining: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := WindowState{Count: tt.count, Limit: tt.limit}
			if got := s.Exhausted(); got != tt.exhausted {
				t.Errorf("Exhausted() = %v, want %v", got, tt.exhausted)
			}
			if got := s.Remaining(); got != tt.remaining {
				t.Errorf("Remaining() = %d, want %d", got, tt.remaining)
			}
		})
	}
}

func TestWindowState_TimeUntilReset(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := WindowState{Start: start, Limit: 4}

	if got := s.TimeUntilReset(start.Add(250 * time.Millisecond)); got != 750*time.Millisecond {
		t.Errorf("TimeUntilReset() = %v, want 750ms", got)
	}
	if got := s.TimeUntilReset(start.Add(2 * time.Second)); got != 0 {
		t.Errorf("TimeUntilReset() after window = %v, want 0", got)
	}
}

func TestWindowKey(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	a := windowKey(base.Add(100 * time.Millisecond))
	b := windowKey(base.Add(900 * time.Millisecond))
	c := windowKey(base.Add(1100 * time.Millisecond))

	if a != b {
		t.Errorf("same window produced different keys: %q vs %q", a, b)
	}
	if a == c {
		t.Errorf("adjacent windows share key %q", a)
	}
	if want := "igdb:rate_limit:1714564800"; a != want {
		t.Errorf("windowKey() = %q, want %q", a, want)
	}
}
