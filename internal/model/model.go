package model

import "time"

// User is the owner of an event or task. The scheduler never mutates users.
type User struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	PicturePath string `yaml:"picture_path,omitempty" json:"picture_path,omitempty"`
}

// Frequency is the step unit of a recurrence rule.
type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

// Recurrence describes how a single event definition repeats.
//
// Expansion is driven purely by Count; Until is carried along for
// round-tripping but is not consulted when generating occurrences.
type Recurrence struct {
	Freq     Frequency
	Interval int // 0 means 1
	Count    int
	// ByWeekday holds weekday indices (0=Sunday..6=Saturday). Only
	// meaningful for Weekly.
	ByWeekday []int
	Until     *time.Time
}

// EffectiveInterval returns the interval with the zero value defaulted to 1.
func (r Recurrence) EffectiveInterval() int {
	if r.Interval == 0 {
		return 1
	}
	return r.Interval
}

// Expands reports whether the rule produces more than one occurrence.
// A negative interval makes the rule invalid, which is treated as no
// recurrence at all.
func (r *Recurrence) Expands() bool {
	return r != nil && r.Count > 1 && r.Interval >= 0
}

// Event is a fixed calendar commitment.
type Event struct {
	ID    int
	Start time.Time
	End   time.Time

	Title       string
	Location    string
	Category    Category
	Description string
	User        *User

	Recurrence *Recurrence

	// SourceID / UID identify events imported from an ICS subscription.
	// Both are empty for events created through the planner.
	SourceID string
	UID      string
}

// Validate checks the start <= end invariant.
func (e Event) Validate() error {
	if e.End.Before(e.Start) {
		return ErrInvalidRange
	}
	return nil
}

// Duration is the length of the event.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Task is a unit of work with a deadline. Due holds the placement chosen by
// the slot finder once the task is stored; the task occupies
// [Due, Due+EstimatedHours).
type Task struct {
	ID             int
	Due            time.Time
	EstimatedHours float64

	Title       string
	Location    string
	Category    Category
	Description string
	User        *User
}

// HoursDuration converts fractional hours into a time.Duration.
func HoursDuration(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}
