// Package ratelimit enforces the IGDB request ceiling (4 requests per
// second per client credentials). A process-local token bucket always
// applies; when a Redis client is configured the ceiling is also shared
// across processes through a fixed one-second window counter.
package ratelimit

import (
	"fmt"
	"time"
)

// RedisKeyPrefix prefixes the per-second window counters.
const RedisKeyPrefix = "igdb:rate_limit:"

// DefaultRequestsPerSecond is the documented IGDB ceiling.
const DefaultRequestsPerSecond = 4

// Window is the length of one shared counting window.
const Window = time.Second

// windowTTL keeps a counter alive a little past its window so that late
// readers still see it.
const windowTTL = 2 * Window

// WindowState is a snapshot of one shared counting window.
type WindowState struct {
	// Start is the beginning of the window.
	Start time.Time `json:"start"`

	// Count is the number of requests admitted (or attempted) in the window.
	Count int64 `json:"count"`

	// Limit is the ceiling for the window.
	Limit int `json:"limit"`
}

// Exhausted returns true if the window admitted more than its ceiling.
func (s WindowState) Exhausted() bool {
	return s.Count > int64(s.Limit)
}

// Remaining returns how many more requests the window admits.
func (s WindowState) Remaining() int {
	r := int64(s.Limit) - s.Count
	if r < 0 {
		return 0
	}
	return int(r)
}

// TimeUntilReset returns the duration until the next window starts.
// Returns 0 if the window has already ended.
func (s WindowState) TimeUntilReset(now time.Time) time.Duration {
	d := s.Start.Add(Window).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// windowStart truncates t to its counting window.
func windowStart(t time.Time) time.Time {
	return t.Truncate(Window)
}

// windowKey returns the Redis key counting the window that contains t.
func windowKey(t time.Time) string {
	return fmt.Sprintf("%s%d", RedisKeyPrefix, windowStart(t).Unix())
}
