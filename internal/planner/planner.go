// Package planner is the mutation-oriented API over the calendar: it
// expands recurring events, places tasks into free slots and commits the
// results to the store.
package planner

import (
	"fmt"
	"slices"
	"sync"
	"time"

	appLog "taskcal/internal/log"
	"taskcal/internal/model"
	"taskcal/internal/schedule"
	"taskcal/internal/store"
)

// Observer receives scheduling outcomes, e.g. for metrics.
type Observer interface {
	TaskPlaced(stage string)
	TaskUnschedulable()
	OccurrencesCreated(n int)
}

type nopObserver struct{}

func (nopObserver) TaskPlaced(string)      {}
func (nopObserver) TaskUnschedulable()     {}
func (nopObserver) OccurrencesCreated(int) {}

// Option configures a Planner.
type Option func(*Planner)

// WithLocation sets the zone in which local timestamps are interpreted.
// Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(p *Planner) {
		if loc != nil {
			p.loc = loc
		}
	}
}

func WithObserver(o Observer) Option {
	return func(p *Planner) {
		if o != nil {
			p.obs = o
		}
	}
}

// Planner serializes every operation on the store it owns, so two
// concurrent AddTask calls never choose a slot from the same snapshot.
type Planner struct {
	mu    sync.Mutex
	store *store.Store
	loc   *time.Location
	obs   Observer
}

func New(st *store.Store, opts ...Option) *Planner {
	p := &Planner{
		store: st,
		loc:   time.Local,
		obs:   nopObserver{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Location is the zone local timestamps are interpreted in.
func (p *Planner) Location() *time.Location {
	return p.loc
}

func (p *Planner) Events() []model.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.store.Events()
}

func (p *Planner) Tasks() []model.Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.store.Tasks()
}

func (p *Planner) Users() []model.User {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.store.Users()
}

// AddEvent stores ev, or the occurrences of its recurrence rule when the
// rule expands. Identifiers are assigned by the store; ev.ID is ignored.
// Events are never checked for overlap. The stored events are returned.
func (p *Planner) AddEvent(ev model.Event) ([]model.Event, error) {
	if err := ev.Validate(); err != nil {
		return nil, fmt.Errorf("add event %q: %w", ev.Title, err)
	}
	ev.Start = model.Canonical(ev.Start, p.loc)
	ev.End = model.Canonical(ev.End, p.loc)

	p.mu.Lock()
	defer p.mu.Unlock()

	if ev.Recurrence.Expands() {
		occ := schedule.Expand(ev, *ev.Recurrence, p.store)
		p.store.InsertEvents(occ...)
		p.obs.OccurrencesCreated(len(occ))
		appLog.Info("recurring event added",
			"title", ev.Title,
			"freq", ev.Recurrence.Freq,
			"interval", ev.Recurrence.EffectiveInterval(),
			"occurrences", len(occ),
		)
		return occ, nil
	}

	ev.ID = p.store.NextID()
	p.store.InsertEvents(ev)
	p.obs.OccurrencesCreated(1)
	appLog.Debug("event added", "id", ev.ID, "title", ev.Title)
	return []model.Event{ev}, nil
}

// UpdateEvent replaces the stored event with the same ID. An imported event
// keeps its SourceID and UID, so the next refresh of its source replaces
// the edited copy instead of duplicating it.
func (p *Planner) UpdateEvent(ev model.Event) (model.Event, error) {
	if err := ev.Validate(); err != nil {
		return model.Event{}, fmt.Errorf("update event %d: %w", ev.ID, err)
	}
	ev.Start = model.Canonical(ev.Start, p.loc)
	ev.End = model.Canonical(ev.End, p.loc)

	p.mu.Lock()
	defer p.mu.Unlock()

	stored, ok := p.store.Event(ev.ID)
	if !ok {
		return model.Event{}, fmt.Errorf("update event %d: %w", ev.ID, model.ErrEventNotFound)
	}
	ev.SourceID = stored.SourceID
	ev.UID = stored.UID
	p.store.ReplaceEvent(ev)
	return ev, nil
}

// RemoveEvent deletes an event. Unknown ids are ignored.
func (p *Planner) RemoveEvent(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.store.DeleteEvent(id)
}

// RemoveTask deletes a task. Unknown ids are ignored.
func (p *Planner) RemoveTask(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.store.DeleteTask(id)
}

// Remove deletes whatever id names, looking at tasks first.
func (p *Planner) Remove(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.store.DeleteTask(id) {
		return
	}
	p.store.DeleteEvent(id)
}

// AddTask places task at a free slot near its requested due instant and
// stores it with Due rewritten to the slot start. The wrapped
// model.ErrNoSlot is returned, and nothing stored, when no slot exists.
func (p *Planner) AddTask(task model.Task) (model.Task, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	placed, err := p.place(task, 0)
	if err != nil {
		return model.Task{}, fmt.Errorf("add task %q: %w", task.Title, err)
	}
	placed.ID = p.store.NextID()
	p.store.InsertTask(placed)
	return placed, nil
}

// UpdateTask re-places an existing task. Its own current placement does
// not block the search.
func (p *Planner) UpdateTask(task model.Task) (model.Task, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.store.HasTask(task.ID) {
		return model.Task{}, fmt.Errorf("update task %d: %w", task.ID, model.ErrTaskNotFound)
	}
	placed, err := p.place(task, task.ID)
	if err != nil {
		return model.Task{}, fmt.Errorf("update task %d: %w", task.ID, err)
	}
	p.store.ReplaceTask(placed)
	return placed, nil
}

func (p *Planner) place(task model.Task, ignoreID int) (model.Task, error) {
	hours := schedule.NormalizeHours(task.EstimatedHours)
	requested := model.Canonical(task.Due, p.loc)

	slot, err := schedule.FindSlot(schedule.Request{
		Due:          requested,
		Hours:        hours,
		IgnoreTaskID: ignoreID,
	}, p.store.Events(), p.store.Tasks())
	if err != nil {
		p.obs.TaskUnschedulable()
		appLog.Error("task unschedulable", err,
			"title", task.Title,
			"due", model.FormatLocal(requested),
			"hours", hours,
		)
		return model.Task{}, err
	}

	p.obs.TaskPlaced(slot.Stage)
	appLog.Info("task scheduled",
		"title", task.Title,
		"requested", model.FormatLocal(requested),
		"start", model.FormatLocal(slot.Start),
		"hours", hours,
		"stage", slot.Stage,
	)

	task.Due = slot.Start
	task.EstimatedHours = hours
	return task, nil
}

// ReplaceSource swaps all events previously imported from sourceID for evs,
// assigning fresh identifiers.
func (p *Planner) ReplaceSource(sourceID string, evs []model.Event) []model.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]model.Event, 0, len(evs))
	for _, ev := range evs {
		ev.ID = p.store.NextID()
		ev.SourceID = sourceID
		ev.Start = model.Canonical(ev.Start, p.loc)
		ev.End = model.Canonical(ev.End, p.loc)
		out = append(out, ev)
	}
	removed := p.store.ReplaceSource(sourceID, slices.Clone(out))
	appLog.Info("subscription events replaced", "source", sourceID, "removed", removed, "added", len(out))
	return out
}
