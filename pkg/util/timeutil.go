package util

import "time"

// NowUTC exposes time.Now for deterministic testing.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// Since reports elapsed time in milliseconds, the unit request logs use.
func Since(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
