package domain

import "time"

// NowMillis returns the current time as Unix milliseconds.
// All domain timestamps use this representation.
func NowMillis() int64 {
	return timeNow().UnixMilli()
}

// timeNow is a hook for testing.
var timeNow = time.Now
