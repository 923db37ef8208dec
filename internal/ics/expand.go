package ics

import (
	"errors"
	"math"
	"slices"
	"time"

	"github.com/teambition/rrule-go"

	appLog "taskcal/internal/log"
	"taskcal/internal/model"
)

const defaultMaxOccurrencesPerEvent = 5000

// ExpandConfig controls subscription expansion.
type ExpandConfig struct {
	// Location is the zone occurrences are converted into. nil means
	// time.Local.
	Location *time.Location

	// RangeStart / RangeEnd bound the window; occurrences intersecting it
	// are kept.
	RangeStart time.Time
	RangeEnd   time.Time

	// Category is applied to events whose CATEGORIES does not name a known
	// category.
	Category model.Category

	// MaxOccurrencesPerEvent caps one RRULE. Zero means 5000.
	MaxOccurrencesPerEvent int
}

// Expand turns parsed VEVENTs into concrete events inside the configured
// window. RRULE, EXDATE and RECURRENCE-ID overrides are honored. Events come
// back sorted by start without identifiers; the planner assigns those when
// the source is replaced.
func Expand(parsed []ParsedEvent, cfg ExpandConfig) ([]model.Event, error) {
	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return nil, errors.New("expand: range end is before range start")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	bases := make([]ParsedEvent, 0, len(parsed))
	overrides := make(map[string][]ParsedEvent)
	for _, ev := range parsed {
		if ev.RecurrenceID != nil {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		bases = append(bases, ev)
	}

	out := make([]model.Event, 0, len(bases))
	for _, ev := range bases {
		if ev.RawRRule == "" {
			if intersects(ev.Start, ev.End, cfg.RangeStart, cfg.RangeEnd) {
				out = append(out, toEvent(ev, ev.Start, ev.End, cfg))
			}
			continue
		}
		out = append(out, expandRecurring(ev, overrides[ev.UID], cfg)...)
	}

	slices.SortStableFunc(out, func(a, b model.Event) int { return a.Start.Compare(b.Start) })
	return out, nil
}

func expandRecurring(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []model.Event {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	length := ev.End.Sub(ev.Start)
	days := int(math.Round(length.Hours() / 24))
	if days < 1 {
		days = 1
	}

	// Occurrences that started before the window may still run into it.
	from := cfg.RangeStart.Add(-length).In(ev.Start.Location())
	to := cfg.RangeEnd.In(ev.Start.Location())
	starts := set.Between(from, to, true)
	if len(starts) > cfg.MaxOccurrencesPerEvent {
		appLog.Error("expand: truncated occurrences due to cap",
			errors.New("max occurrences reached"),
			"uid", ev.UID,
			"cap", cfg.MaxOccurrencesPerEvent,
		)
		starts = starts[:cfg.MaxOccurrencesPerEvent]
	}

	out := make([]model.Event, 0, len(starts))
	for _, start := range starts {
		var end time.Time
		if ev.AllDay {
			start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
			end = start.AddDate(0, 0, days)
		} else {
			end = start.Add(length)
		}

		src := ev
		if o, ok := overrideFor(overrides, start); ok {
			src, start, end = o, o.Start, o.End
		}
		if !intersects(start, end, cfg.RangeStart, cfg.RangeEnd) {
			continue
		}
		out = append(out, toEvent(src, start, end, cfg))
	}
	return out
}

// overrideFor finds the override whose RECURRENCE-ID is exactly start.
func overrideFor(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, o := range overrides {
		if o.RecurrenceID != nil && o.RecurrenceID.Equal(start) {
			return o, true
		}
	}
	return ParsedEvent{}, false
}

func toEvent(ev ParsedEvent, start, end time.Time, cfg ExpandConfig) model.Event {
	category := cfg.Category
	if c, err := model.ParseCategory(ev.Category); err == nil {
		category = c
	}
	return model.Event{
		Start:       start.In(cfg.Location),
		End:         end.In(cfg.Location),
		Title:       ev.Summary,
		Location:    ev.Location,
		Category:    category,
		Description: ev.Description,
		SourceID:    ev.Source.ID,
		UID:         ev.UID,
	}
}

// intersects treats zero-length events as occupying their instant.
func intersects(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aEnd.Equal(aStart) {
		return !aStart.Before(bStart) && aStart.Before(bEnd)
	}
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
