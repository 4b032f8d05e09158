// Package utils provides utility functions for the application.
package utils

import (
	"time"
)

// UTCNow returns the current time in UTC
func UTCNow() time.Time {
	return time.Now().UTC()
}

// UTCNowAdd returns the current UTC time plus the given duration
func UTCNowAdd(d time.Duration) time.Time {
	return UTCNow().Add(d)
}

// UTCToday returns the current UTC date truncated to midnight
func UTCToday() time.Time {
	return UTCNow().Truncate(24 * time.Hour)
}

// UTCDateKey returns the given time's UTC date formatted as YYYY-MM-DD
func UTCDateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// SameUTCDay reports whether the two times fall on the same UTC calendar day
func SameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
