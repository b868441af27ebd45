package model

import "time"

const Day = 24 * time.Hour

// ExtendExpiry returns max(now, current) + days. Both the panel and the local
// store go through this function so the two never drift.
func ExtendExpiry(current *time.Time, now time.Time, days int) time.Time {
	base := now
	if current != nil && current.After(now) {
		base = *current
	}
	return base.Add(time.Duration(days) * Day)
}
