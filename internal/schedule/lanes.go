package schedule

import (
	"slices"

	"taskcal/internal/model"
)

// GroupLanes splits a day's events into lanes of non-overlapping events so
// a UI can draw concurrent blocks side by side. Events are taken in start
// order and placed in the first lane whose last event has already ended.
func GroupLanes(events []model.Event) [][]model.Event {
	sorted := slices.Clone(events)
	slices.SortStableFunc(sorted, func(a, b model.Event) int {
		return a.Start.Compare(b.Start)
	})

	var lanes [][]model.Event
	for _, ev := range sorted {
		placed := false
		for i, lane := range lanes {
			if !ev.Start.Before(lane[len(lane)-1].End) {
				lanes[i] = append(lane, ev)
				placed = true
				break
			}
		}
		if !placed {
			lanes = append(lanes, []model.Event{ev})
		}
	}
	return lanes
}
