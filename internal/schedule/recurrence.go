package schedule

import (
	"errors"
	"time"

	appLog "taskcal/internal/log"
	"taskcal/internal/model"
)

// MaxOccurrences caps a single expansion.
const MaxOccurrences = 5000

// IDSource hands out fresh event identifiers.
type IDSource interface {
	NextID() int
}

// Expand materializes rule into rule.Count independent events based on
// base. Occurrences keep every field of base except ID, Start, End and
// Recurrence, which is cleared. Callers only expand rules whose Count is
// greater than one; see model.Recurrence.Expands.
func Expand(base model.Event, rule model.Recurrence, ids IDSource) []model.Event {
	count := rule.Count
	if count > MaxOccurrences {
		appLog.Error("expand: truncated occurrences due to cap",
			errors.New("max occurrences reached"),
			"title", base.Title,
			"count", count,
			"cap", MaxOccurrences,
		)
		count = MaxOccurrences
	}
	if count <= 0 {
		return nil
	}
	interval := rule.EffectiveInterval()
	if interval < 1 {
		interval = 1
	}

	if rule.Freq == model.Weekly {
		if days := weekdaySet(rule.ByWeekday); len(days) > 0 {
			return expandWeekdays(base, days, interval, count, ids)
		}
	}

	out := make([]model.Event, 0, count)
	for i := 0; i < count; i++ {
		step := i * interval
		start := addStep(base.Start, rule.Freq, step)
		end := addStep(base.End, rule.Freq, step)
		out = append(out, occurrence(base, ids.NextID(), start, end))
	}
	return out
}

// expandWeekdays walks forward one day at a time from the base start and
// keeps days whose weekday is selected and whose week index (whole weeks
// since the base start) is a multiple of interval.
func expandWeekdays(base model.Event, days map[time.Weekday]bool, interval, count int, ids IDSource) []model.Event {
	out := make([]model.Event, 0, count)
	dur := base.Duration()
	for k := 0; len(out) < count; k++ {
		day := base.Start.AddDate(0, 0, k)
		if (k/7)%interval != 0 || !days[day.Weekday()] {
			continue
		}
		out = append(out, occurrence(base, ids.NextID(), day, day.Add(dur)))
	}
	return out
}

func occurrence(base model.Event, id int, start, end time.Time) model.Event {
	occ := base
	occ.ID = id
	occ.Start = start
	occ.End = end
	occ.Recurrence = nil
	return occ
}

// weekdaySet keeps only valid weekday indices.
func weekdaySet(in []int) map[time.Weekday]bool {
	out := make(map[time.Weekday]bool, len(in))
	for _, d := range in {
		if d >= 0 && d <= 6 {
			out[time.Weekday(d)] = true
		}
	}
	return out
}

func addStep(t time.Time, freq model.Frequency, step int) time.Time {
	switch freq {
	case model.Weekly:
		return t.AddDate(0, 0, 7*step)
	case model.Monthly:
		return addMonthsClamped(t, step)
	case model.Yearly:
		return addMonthsClamped(t, 12*step)
	default:
		return t.AddDate(0, 0, step)
	}
}

// addMonthsClamped adds n calendar months, pinning the day of month to the
// last day of the target month instead of overflowing (Jan 31 + 1 month is
// Feb 28/29, not early March).
func addMonthsClamped(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, hh, mm, ss, t.Nanosecond(), t.Location())
}
