// Package schedule holds the pure scheduling logic: duration handling,
// conflict detection, task slot search and recurrence expansion. Nothing in
// here owns state; callers pass in the current event and task collections.
package schedule

import "math"

const (
	MinTaskHours     = 0.5
	MaxTaskHours     = 8.0
	DefaultTaskHours = 1.0
)

// NormalizeHours rounds h to the nearest half hour (halves round up) and
// clamps it to [MinTaskHours, MaxTaskHours]. NaN stands for "not given" and
// yields DefaultTaskHours.
func NormalizeHours(h float64) float64 {
	if math.IsNaN(h) {
		return DefaultTaskHours
	}
	rounded := math.Floor(h*2+0.5) / 2
	return math.Min(MaxTaskHours, math.Max(MinTaskHours, rounded))
}
