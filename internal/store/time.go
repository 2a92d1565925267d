package store

import "time"

// nowMS returns the current time in milliseconds since epoch, the unit
// every timestamp column in this schema uses (spec §3).
func nowMS() int64 {
	return time.Now().UnixMilli()
}
