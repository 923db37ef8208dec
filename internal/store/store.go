// Package store owns the in-memory event, task and user collections and the
// identifier counter. It is not safe for concurrent use; the planner
// serializes every access.
package store

import (
	"slices"

	"taskcal/internal/model"
)

// Store holds all events and tasks. Identifiers are handed out from a single
// monotonic counter shared by events and tasks, so an id never names both.
type Store struct {
	lastID int
	events []model.Event
	tasks  []model.Task
	users  []model.User
}

// New creates an empty store with a fixed user list.
func New(users []model.User) *Store {
	return &Store{users: slices.Clone(users)}
}

// NextID returns a fresh identifier.
func (s *Store) NextID() int {
	s.lastID++
	return s.lastID
}

func (s *Store) Events() []model.Event { return slices.Clone(s.events) }
func (s *Store) Tasks() []model.Task   { return slices.Clone(s.tasks) }
func (s *Store) Users() []model.User   { return slices.Clone(s.users) }

func (s *Store) InsertEvents(evs ...model.Event) {
	s.events = append(s.events, evs...)
}

// Event returns the stored event with id.
func (s *Store) Event(id int) (model.Event, bool) {
	i := slices.IndexFunc(s.events, func(e model.Event) bool { return e.ID == id })
	if i < 0 {
		return model.Event{}, false
	}
	return s.events[i], true
}

// ReplaceEvent swaps the event with ev.ID for ev. It reports whether a
// matching event existed.
func (s *Store) ReplaceEvent(ev model.Event) bool {
	i := slices.IndexFunc(s.events, func(e model.Event) bool { return e.ID == ev.ID })
	if i < 0 {
		return false
	}
	s.events[i] = ev
	return true
}

// DeleteEvent removes the event with id, reporting whether it existed.
func (s *Store) DeleteEvent(id int) bool {
	n := len(s.events)
	s.events = slices.DeleteFunc(s.events, func(e model.Event) bool { return e.ID == id })
	return len(s.events) != n
}

// ReplaceSource drops every event imported from sourceID and inserts evs in
// their place. It returns how many events were dropped.
func (s *Store) ReplaceSource(sourceID string, evs []model.Event) int {
	n := len(s.events)
	s.events = slices.DeleteFunc(s.events, func(e model.Event) bool { return e.SourceID == sourceID })
	removed := n - len(s.events)
	s.events = append(s.events, evs...)
	return removed
}

func (s *Store) InsertTask(t model.Task) {
	s.tasks = append(s.tasks, t)
}

func (s *Store) HasTask(id int) bool {
	return slices.ContainsFunc(s.tasks, func(t model.Task) bool { return t.ID == id })
}

// ReplaceTask swaps the task with t.ID for t. It reports whether a matching
// task existed.
func (s *Store) ReplaceTask(t model.Task) bool {
	i := slices.IndexFunc(s.tasks, func(x model.Task) bool { return x.ID == t.ID })
	if i < 0 {
		return false
	}
	s.tasks[i] = t
	return true
}

// DeleteTask removes the task with id, reporting whether it existed.
func (s *Store) DeleteTask(id int) bool {
	n := len(s.tasks)
	s.tasks = slices.DeleteFunc(s.tasks, func(t model.Task) bool { return t.ID == id })
	return len(s.tasks) != n
}
