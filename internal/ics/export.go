package ics

import (
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	"taskcal/internal/model"
)

const productID = "-//taskcal//calendar export//EN"

// ExportItem is one block of the exported feed.
type ExportItem struct {
	model.Event
	IsTask bool
}

// uid keeps imported UIDs stable and derives local ones from the id. An
// imported UID shared by several occurrences gets the occurrence start
// appended, since the feed exports them as standalone events.
func (it ExportItem) uid(shared bool) string {
	switch {
	case it.UID != "" && shared:
		return fmt.Sprintf("%s-%s", it.UID, it.Start.UTC().Format("20060102T150405Z"))
	case it.UID != "":
		return it.UID
	case it.IsTask:
		return fmt.Sprintf("task-%d@taskcal", it.ID)
	default:
		return fmt.Sprintf("event-%d@taskcal", it.ID)
	}
}

// Export writes items as a PUBLISH calendar named name. stamp becomes every
// DTSTAMP so repeated exports of the same state are byte-identical.
func Export(w io.Writer, name string, items []ExportItem, stamp time.Time) error {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	uidCount := make(map[string]int, len(items))
	for _, it := range items {
		if it.UID != "" {
			uidCount[it.UID]++
		}
	}

	for _, it := range items {
		ev := cal.AddEvent(it.uid(uidCount[it.UID] > 1))
		ev.SetDtStampTime(stamp)
		ev.SetStartAt(it.Start)
		ev.SetEndAt(it.End)
		ev.SetSummary(it.Title)
		if it.Location != "" {
			ev.SetLocation(it.Location)
		}
		if it.Description != "" {
			ev.SetDescription(it.Description)
		}
		ev.AddCategory(it.Category.String())
		if it.IsTask {
			ev.SetProperty(ical.ComponentProperty("X-TASKCAL-KIND"), "task")
		}
	}

	_, err := io.WriteString(w, cal.Serialize())
	return err
}
