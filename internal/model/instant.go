package model

import (
	"fmt"
	"strings"
	"time"
)

// Layout is the canonical wire and storage form of event and task dates:
// a local timestamp without offset.
const Layout = "2006-01-02T15:04:05"

const layoutMinutes = "2006-01-02T15:04"

// ParseLocal parses a canonical local timestamp in loc. Minute precision
// ("2024-06-10T17:00") is accepted as well. A nil loc means time.Local.
func ParseLocal(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(Layout, s, loc); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(layoutMinutes, s, loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidInstant, s)
}

// FormatLocal renders t in its own location using Layout.
func FormatLocal(t time.Time) string {
	return t.Format(Layout)
}

// Canonical moves t into loc and drops anything below one second, which is
// exactly what survives a FormatLocal/ParseLocal round trip.
func Canonical(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Truncate(time.Second)
}

// StartOfDay returns local midnight of the day containing t.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AtHour returns the day containing t at hour:00:00.
func AtHour(t time.Time, hour int) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, hour, 0, 0, 0, t.Location())
}
