package schedule

import (
	"time"

	"taskcal/internal/model"
)

// Overlaps reports whether [start, end) intersects any event or task.
// Touching endpoints do not conflict. Tasks occupy [Due, Due+hours); the
// task whose ID equals ignoreTaskID is skipped so an edited task does not
// collide with its own previous placement. ignoreTaskID 0 skips nothing.
func Overlaps(start, end time.Time, events []model.Event, tasks []model.Task, ignoreTaskID int) bool {
	for _, e := range events {
		if intersects(start, end, e.Start, e.End) {
			return true
		}
	}
	for _, t := range tasks {
		if ignoreTaskID != 0 && t.ID == ignoreTaskID {
			continue
		}
		if intersects(start, end, t.Due, TaskEnd(t)) {
			return true
		}
	}
	return false
}

// TaskEnd is the end of a task's effective interval.
func TaskEnd(t model.Task) time.Time {
	return t.Due.Add(model.HoursDuration(NormalizeHours(t.EstimatedHours)))
}

func intersects(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
