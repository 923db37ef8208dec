package model

import (
	"fmt"
	"time"
)

// View is the calendar granularity a client is looking at.
type View string

const (
	ViewDay    View = "day"
	ViewWeek   View = "week"
	ViewMonth  View = "month"
	ViewYear   View = "year"
	ViewAgenda View = "agenda"
)

// ParseView validates a view name.
func ParseView(s string) (View, error) {
	switch v := View(s); v {
	case ViewDay, ViewWeek, ViewMonth, ViewYear, ViewAgenda:
		return v, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownView, s)
}

// Range returns the half-open interval [from, to) covered by the view
// around date. weekStart selects the first day of a week view. The agenda
// view spans the month, like the month view.
func (v View) Range(date time.Time, weekStart time.Weekday) (time.Time, time.Time) {
	day := StartOfDay(date)
	switch v {
	case ViewWeek:
		offset := (int(day.Weekday()) - int(weekStart) + 7) % 7
		from := day.AddDate(0, 0, -offset)
		return from, from.AddDate(0, 0, 7)
	case ViewMonth, ViewAgenda:
		from := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
		return from, from.AddDate(0, 1, 0)
	case ViewYear:
		from := time.Date(day.Year(), time.January, 1, 0, 0, 0, 0, day.Location())
		return from, from.AddDate(1, 0, 0)
	default:
		return day, day.AddDate(0, 0, 1)
	}
}
