package planner

import (
	"slices"
	"time"

	"taskcal/internal/model"
	"taskcal/internal/schedule"
)

// AllUsers disables user filtering.
const AllUsers = "all"

// Filter narrows the merged view. The zero value matches everything.
type Filter struct {
	Categories []model.Category
	UserID     string
}

// MatchCategory reports whether c is selected. No selection means all.
func (f Filter) MatchCategory(c model.Category) bool {
	return len(f.Categories) == 0 || slices.Contains(f.Categories, c)
}

// MatchUser reports whether u passes the user filter.
func (f Filter) MatchUser(u *model.User) bool {
	if f.UserID == "" || f.UserID == AllUsers {
		return true
	}
	return u != nil && u.ID == f.UserID
}

// Toggle adds c to the selection, or removes it when already selected.
func (f Filter) Toggle(c model.Category) Filter {
	if i := slices.Index(f.Categories, c); i >= 0 {
		f.Categories = slices.Delete(slices.Clone(f.Categories), i, i+1)
		return f
	}
	f.Categories = append(slices.Clone(f.Categories), c)
	return f
}

// Query selects a window of the merged view. Zero From/To leave that side
// unbounded.
type Query struct {
	Filter
	From time.Time
	To   time.Time
}

// inWindow treats [From, To) as half-open. A zero-length block occupies its
// instant, so one starting at From is kept.
func (q Query) inWindow(start, end time.Time) bool {
	if !q.To.IsZero() && !start.Before(q.To) {
		return false
	}
	if q.From.IsZero() {
		return true
	}
	if end.Equal(start) {
		return !start.Before(q.From)
	}
	return end.After(q.From)
}

// Block is one entry of the merged view. Task blocks are projections of a
// task onto [Due, Due+hours) and are never stored.
type Block struct {
	model.Event
	IsTask bool
}

// Merged returns events and task blocks matching q, ordered by start.
func (p *Planner) Merged(q Query) []Block {
	p.mu.Lock()
	events := p.store.Events()
	tasks := p.store.Tasks()
	p.mu.Unlock()

	out := make([]Block, 0, len(events)+len(tasks))
	for _, e := range events {
		if q.MatchCategory(e.Category) && q.MatchUser(e.User) && q.inWindow(e.Start, e.End) {
			out = append(out, Block{Event: e})
		}
	}
	for _, t := range tasks {
		end := schedule.TaskEnd(t)
		if q.MatchCategory(t.Category) && q.MatchUser(t.User) && q.inWindow(t.Due, end) {
			out = append(out, Block{Event: taskBlock(t, end), IsTask: true})
		}
	}
	slices.SortStableFunc(out, func(a, b Block) int {
		return a.Start.Compare(b.Start)
	})
	return out
}

func taskBlock(t model.Task, end time.Time) model.Event {
	return model.Event{
		ID:          t.ID,
		Start:       t.Due,
		End:         end,
		Title:       t.Title,
		Location:    t.Location,
		Category:    t.Category,
		Description: t.Description,
		User:        t.User,
	}
}

// Lanes groups the merged blocks of one day into non-overlapping lanes.
func (p *Planner) Lanes(day time.Time, f Filter) [][]model.Event {
	from, to := model.ViewDay.Range(day.In(p.loc), time.Monday)
	blocks := p.Merged(Query{Filter: f, From: from, To: to})
	evs := make([]model.Event, 0, len(blocks))
	for _, b := range blocks {
		evs = append(evs, b.Event)
	}
	return schedule.GroupLanes(evs)
}
