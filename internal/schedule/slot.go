package schedule

import (
	"slices"
	"time"

	"taskcal/internal/model"
)

// SchoolTitle marks the fixed daily commitment after which tasks keep a gap.
const SchoolTitle = "School"

const (
	minGapBeforeDue  = time.Hour
	schoolGap        = time.Hour
	backwardScanStep = time.Hour
	// backwardScanLimit bounds the last-resort search to one week.
	backwardScanLimit = 24 * 7
)

var (
	PreferredHours  = []int{10, 11, 13, 14, 15, 16, 9, 12, 17}
	ReasonableHours = append(slices.Clone(PreferredHours), 8, 18, 7, 19)
	allDayHours     = []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23}
)

// Policy holds the date constraints a due-day candidate must satisfy on top
// of not overlapping anything.
type Policy struct {
	// MustBeBeforeDue: the candidate must end no later than the due instant.
	MustBeBeforeDue bool
	// EnforceGapBeforeDue: the candidate must end at least an hour before due.
	EnforceGapBeforeDue bool
	// EnforceSchoolGap: the candidate must start at least an hour after the
	// latest School event of the due day ends.
	EnforceSchoolGap bool
}

// Tier is one step of the due-day cascade.
type Tier struct {
	Name   string
	Hours  []int
	Policy Policy
}

// Tiers is the due-day cascade in precedence order. The first tier that
// yields a candidate wins.
var Tiers = []Tier{
	{Name: "preferred", Hours: PreferredHours, Policy: Policy{MustBeBeforeDue: true, EnforceGapBeforeDue: true, EnforceSchoolGap: true}},
	{Name: "reasonable", Hours: ReasonableHours, Policy: Policy{MustBeBeforeDue: true, EnforceGapBeforeDue: true, EnforceSchoolGap: true}},
	{Name: "preferred-no-due-gap", Hours: PreferredHours, Policy: Policy{MustBeBeforeDue: true, EnforceSchoolGap: true}},
	{Name: "reasonable-no-due-gap", Hours: ReasonableHours, Policy: Policy{MustBeBeforeDue: true, EnforceSchoolGap: true}},
	{Name: "preferred-no-school-gap", Hours: PreferredHours, Policy: Policy{MustBeBeforeDue: true, EnforceGapBeforeDue: true}},
	{Name: "reasonable-no-school-gap", Hours: ReasonableHours, Policy: Policy{MustBeBeforeDue: true, EnforceGapBeforeDue: true}},
	{Name: "preferred-any", Hours: PreferredHours},
	{Name: "reasonable-any", Hours: ReasonableHours},
}

// Stage names of the two fallbacks that run after the cascade.
const (
	StageBackwardScan = "backward-scan"
	StageFullDay      = "full-day"
)

// Request describes a task to place.
type Request struct {
	Due          time.Time
	Hours        float64
	IgnoreTaskID int
}

// Placement is the slot chosen for a task.
type Placement struct {
	Start time.Time
	End   time.Time
	// Stage is the tier name or fallback stage that produced the slot.
	Stage string
}

type slotSearch struct {
	due          time.Time
	dueDay       time.Time
	duration     time.Duration
	schoolCutoff *time.Time
	ignoreTaskID int
	events       []model.Event
	tasks        []model.Task
}

// FindSlot picks a start time for a task of req.Hours due at req.Due that
// does not overlap any of events or tasks. It tries every tier of Tiers on
// the due day, then walks backward hour by hour for up to a week, then tries
// every hour of the due day. It returns model.ErrNoSlot when all of that
// fails.
func FindSlot(req Request, events []model.Event, tasks []model.Task) (Placement, error) {
	s := slotSearch{
		due:          req.Due,
		dueDay:       model.StartOfDay(req.Due),
		duration:     model.HoursDuration(NormalizeHours(req.Hours)),
		ignoreTaskID: req.IgnoreTaskID,
		events:       events,
		tasks:        tasks,
	}
	s.schoolCutoff = schoolCutoff(events, s.dueDay)

	for _, tier := range Tiers {
		if start, ok := s.scanHours(tier.Hours, tier.Policy); ok {
			return s.placement(start, tier.Name), nil
		}
	}

	if start, ok := s.scanBackward(); ok {
		return s.placement(start, StageBackwardScan), nil
	}

	if start, ok := s.scanHours(allDayHours, Policy{}); ok {
		return s.placement(start, StageFullDay), nil
	}

	return Placement{}, model.ErrNoSlot
}

func (s *slotSearch) placement(start time.Time, stage string) Placement {
	return Placement{Start: start, End: start.Add(s.duration), Stage: stage}
}

func (s *slotSearch) scanHours(hours []int, p Policy) (time.Time, bool) {
	for _, h := range hours {
		if start, ok := s.candidate(h, p); ok {
			return start, true
		}
	}
	return time.Time{}, false
}

func (s *slotSearch) candidate(hour int, p Policy) (time.Time, bool) {
	start := model.AtHour(s.dueDay, hour)
	end := start.Add(s.duration)

	if p.MustBeBeforeDue && end.After(s.due) {
		return time.Time{}, false
	}
	if p.EnforceGapBeforeDue && s.due.Sub(end) < minGapBeforeDue {
		return time.Time{}, false
	}
	if p.EnforceSchoolGap && s.schoolCutoff != nil && start.Before(*s.schoolCutoff) {
		return time.Time{}, false
	}
	if Overlaps(start, end, s.events, s.tasks, s.ignoreTaskID) {
		return time.Time{}, false
	}
	return start, true
}

// scanBackward ignores every policy and only avoids overlaps.
func (s *slotSearch) scanBackward() (time.Time, bool) {
	candidate := model.AtHour(s.due, s.due.Hour())
	if candidate.Add(s.duration).After(s.due) {
		candidate = candidate.Add(-backwardScanStep)
	}
	for i := 0; i < backwardScanLimit; i++ {
		if !Overlaps(candidate, candidate.Add(s.duration), s.events, s.tasks, s.ignoreTaskID) {
			return candidate, true
		}
		candidate = candidate.Add(-backwardScanStep)
	}
	return time.Time{}, false
}

// schoolCutoff returns one hour after the latest end among School events
// starting on the given day, or nil when there are none.
func schoolCutoff(events []model.Event, dayStart time.Time) *time.Time {
	dayEnd := dayStart.AddDate(0, 0, 1)
	var latest *time.Time
	for i := range events {
		e := events[i]
		if e.Title != SchoolTitle {
			continue
		}
		if e.Start.Before(dayStart) || !e.Start.Before(dayEnd) {
			continue
		}
		if latest == nil || e.End.After(*latest) {
			end := e.End
			latest = &end
		}
	}
	if latest == nil {
		return nil
	}
	cutoff := latest.Add(schoolGap)
	return &cutoff
}
