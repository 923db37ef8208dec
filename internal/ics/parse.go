// Package ics imports calendar subscriptions into the planner and exports
// the merged calendar view as an iCalendar feed.
package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	appLog "taskcal/internal/log"
	"taskcal/internal/model"
)

// ParsedEvent is one VEVENT before recurrence expansion.
type ParsedEvent struct {
	Source Source

	UID         string
	Summary     string
	Description string
	Location    string
	// Category is the first CATEGORIES value, if any.
	Category string

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule string
	ExDates  []time.Time
	// RecurrenceID is set on VEVENTs that override one instance of a
	// recurring event.
	RecurrenceID *time.Time
}

// Parse decodes an ICS payload. Floating times and all-day dates are
// interpreted in loc. VEVENTs without UID or DTSTART are skipped.
func Parse(src Source, body []byte, loc *time.Location) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "url", redactURL(src.URL))
		return nil, err
	}

	events := make([]ParsedEvent, 0, len(cal.Events()))
	for _, comp := range cal.Events() {
		ev, err := parseVEvent(src, comp, loc)
		if err != nil {
			appLog.Error("ics vevent skipped", err, "id", src.ID)
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "id", src.ID, "event_count", len(events))
	return events, nil
}

func parseVEvent(src Source, ve *ical.VEvent, loc *time.Location) (ParsedEvent, error) {
	out := ParsedEvent{Source: src}

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uid.Value

	out.Summary = propValue(ve, ical.ComponentPropertySummary)
	out.Description = propValue(ve, ical.ComponentPropertyDescription)
	out.Location = propValue(ve, ical.ComponentPropertyLocation)
	if cats := propValue(ve, ical.ComponentPropertyCategories); cats != "" {
		out.Category = strings.TrimSpace(strings.Split(cats, ",")[0])
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || dtStart.Value == "" {
		return out, fmt.Errorf("uid %s: missing DTSTART", out.UID)
	}
	out.AllDay = isDateValue(dtStart)

	var err error
	if out.AllDay {
		out.Start, err = parseICSTime(dtStart.Value, loc)
		if err != nil {
			return out, fmt.Errorf("uid %s: DTSTART: %w", out.UID, err)
		}
		out.End = out.Start.AddDate(0, 0, 1)
		if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
			if end, err := parseICSTime(dtEnd.Value, loc); err == nil && end.After(out.Start) {
				out.End = end
			}
		}
	} else {
		out.Start, err = eventTime(ve.GetStartAt, dtStart, loc)
		if err != nil {
			return out, fmt.Errorf("uid %s: DTSTART: %w", out.UID, err)
		}
		out.End = out.Start
		if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
			if end, err := eventTime(ve.GetEndAt, dtEnd, loc); err == nil && !end.Before(out.Start) {
				out.End = end
			}
		}
	}

	out.RawRRule = propValue(ve, ical.ComponentPropertyRrule)

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part, paramLocation(p, loc)); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if rid := ve.GetProperty(ical.ComponentPropertyRecurrenceId); rid != nil {
		if t, err := parseICSTime(rid.Value, paramLocation(rid, loc)); err == nil {
			out.RecurrenceID = &t
		}
	}

	return out, nil
}

func propValue(ve *ical.VEvent, prop ical.ComponentProperty) string {
	if p := ve.GetProperty(prop); p != nil {
		return p.Value
	}
	return ""
}

func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// eventTime prefers the library's TZID handling and falls back to a floating
// parse in loc.
func eventTime(get func() (time.Time, error), p *ical.IANAProperty, loc *time.Location) (time.Time, error) {
	if !strings.HasSuffix(p.Value, "Z") {
		if _, ok := p.ICalParameters["TZID"]; !ok {
			return parseICSTime(p.Value, loc)
		}
	}
	if t, err := get(); err == nil {
		return t, nil
	}
	return parseICSTime(p.Value, paramLocation(p, loc))
}

func paramLocation(p *ical.IANAProperty, fallback *time.Location) *time.Location {
	if tzs, ok := p.ICalParameters["TZID"]; ok && len(tzs) > 0 {
		if loc, err := time.LoadLocation(tzs[0]); err == nil {
			return loc
		}
	}
	return fallback
}

// parseICSTime handles the UTC, floating date-time and date-only forms.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}

var rruleWeekdays = [...]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// RecurrenceFromRRule converts an RRULE value such as
// "FREQ=WEEKLY;BYDAY=MO,WE;COUNT=6" into a model.Recurrence. Only the
// frequencies the expander knows are accepted.
func RecurrenceFromRRule(s string) (model.Recurrence, error) {
	opt, err := rrule.StrToROption(strings.TrimPrefix(strings.TrimSpace(s), "RRULE:"))
	if err != nil {
		return model.Recurrence{}, err
	}

	var r model.Recurrence
	switch opt.Freq {
	case rrule.DAILY:
		r.Freq = model.Daily
	case rrule.WEEKLY:
		r.Freq = model.Weekly
	case rrule.MONTHLY:
		r.Freq = model.Monthly
	case rrule.YEARLY:
		r.Freq = model.Yearly
	default:
		return model.Recurrence{}, fmt.Errorf("unsupported frequency %s", opt.Freq)
	}
	r.Interval = opt.Interval
	r.Count = opt.Count
	for _, wd := range opt.Byweekday {
		// rrule counts from Monday.
		r.ByWeekday = append(r.ByWeekday, (wd.Day()+1)%7)
	}
	if !opt.Until.IsZero() {
		until := opt.Until
		r.Until = &until
	}
	return r, nil
}

// RRule renders r back into an RRULE value.
func RRule(r model.Recurrence) string {
	opt := rrule.ROption{
		Interval: r.Interval,
		Count:    r.Count,
	}
	switch r.Freq {
	case model.Weekly:
		opt.Freq = rrule.WEEKLY
	case model.Monthly:
		opt.Freq = rrule.MONTHLY
	case model.Yearly:
		opt.Freq = rrule.YEARLY
	default:
		opt.Freq = rrule.DAILY
	}
	for _, d := range r.ByWeekday {
		if d >= 0 && d < len(rruleWeekdays) {
			opt.Byweekday = append(opt.Byweekday, rruleWeekdays[d])
		}
	}
	if r.Until != nil {
		opt.Until = *r.Until
	}
	return opt.RRuleString()
}
