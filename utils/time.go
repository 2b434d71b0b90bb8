// Package utils provides time helpers shared by the forecast providers and query layer.
package utils //nolint:revive // utils is a common and acceptable package name

import "time"

// GetUTCString formats a time.Time to the ISO-8601 form accepted by FMI stored queries.
func GetUTCString(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// TruncateToHour returns t in UTC with minutes, seconds and nanoseconds dropped.
func TruncateToHour(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
}

// HalfPastHour returns the hh:30 instant of the UTC hour containing t.
func HalfPastHour(t time.Time) time.Time {
	return TruncateToHour(t).Add(30 * time.Minute)
}

// WithMinute returns t in UTC with the minute field replaced and seconds dropped.
func WithMinute(t time.Time, minute int) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), minute, 0, 0, time.UTC)
}
