package timeutil

import (
	"sync"
	"time"
)

// Layouts used by bridge payloads.
const (
	DateTimeLayout  = "2006-01-02 15:04:05"
	StartDateLayout = "02-01-2006 03:04"
)

var (
	mu       sync.RWMutex
	location = time.UTC
)

// LoadLocation resolves an IANA zone name, treating an empty name as UTC.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}

// SetLocation changes the location used for formatting and parsing.
func SetLocation(loc *time.Location) {
	if loc == nil {
		loc = time.UTC
	}
	mu.Lock()
	location = loc
	mu.Unlock()
}

// Location returns the configured location.
func Location() *time.Location {
	mu.RLock()
	defer mu.RUnlock()
	return location
}

// Now returns the current time in the configured location.
func Now() time.Time {
	return time.Now().In(Location())
}

// FromMillis converts epoch milliseconds to a time in the configured location.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).In(Location())
}

// FormatPurchaseDate renders epoch milliseconds as yyyy-MM-dd HH:mm:ss.
func FormatPurchaseDate(ms int64) string {
	return FromMillis(ms).Format(DateTimeLayout)
}

// FormatStartDate renders epoch milliseconds as dd-MM-yyyy hh:mm on a
// 12-hour clock without a meridiem marker.
func FormatStartDate(ms int64) string {
	return FromMillis(ms).Format(StartDateLayout)
}
