package web

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"taskcal/internal/ics"
	"taskcal/internal/model"
	"taskcal/internal/planner"
	"taskcal/internal/schedule"
)

var errUnknownUser = errors.New("unknown user")

// recurrenceDTO accepts either the structured fields or an RRULE value; the
// structured fields win when Freq is set. Responses carry both.
type recurrenceDTO struct {
	Freq      model.Frequency `json:"freq,omitempty"`
	Interval  int             `json:"interval,omitempty"`
	Count     int             `json:"count,omitempty"`
	ByWeekday []int           `json:"by_weekday,omitempty"`
	Until     string          `json:"until,omitempty"`
	RRule     string          `json:"rrule,omitempty"`
}

type eventDTO struct {
	ID          int            `json:"id"`
	Title       string         `json:"title"`
	Start       string         `json:"start"`
	End         string         `json:"end"`
	Location    string         `json:"location,omitempty"`
	Category    model.Category `json:"category"`
	Description string         `json:"description,omitempty"`
	UserID      string         `json:"user_id,omitempty"`
	Recurrence  *recurrenceDTO `json:"recurrence,omitempty"`
	SourceID    string         `json:"source_id,omitempty"`
	IsTask      bool           `json:"is_task,omitempty"`
}

type taskDTO struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	// Due is the requested due instant on input and the placed start on
	// output.
	Due string `json:"due"`
	End string `json:"end,omitempty"`
	// EstimatedHours may be omitted; the default duration applies.
	EstimatedHours *float64 `json:"estimated_hours,omitempty"`
	// AutoEstimate derives the duration from title and description.
	AutoEstimate bool           `json:"auto_estimate,omitempty"`
	Location     string         `json:"location,omitempty"`
	Category     model.Category `json:"category"`
	Description  string         `json:"description,omitempty"`
	UserID       string         `json:"user_id,omitempty"`
}

func userID(u *model.User) string {
	if u == nil {
		return ""
	}
	return u.ID
}

func (s *Server) resolveUser(id string) (*model.User, error) {
	if id == "" {
		return nil, nil
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %q", errUnknownUser, id)
	}
	for _, u := range s.planner.Users() {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", errUnknownUser, id)
}

func (s *Server) parseInstant(v string) (time.Time, error) {
	return model.ParseLocal(v, s.planner.Location())
}

func (s *Server) formatInstant(t time.Time) string {
	return model.FormatLocal(t.In(s.planner.Location()))
}

func (s *Server) toRecurrence(d *recurrenceDTO) (*model.Recurrence, error) {
	if d == nil {
		return nil, nil
	}
	if d.RRule != "" && d.Freq == "" {
		r, err := ics.RecurrenceFromRRule(d.RRule)
		if err != nil {
			return nil, fmt.Errorf("%w: rrule: %v", errBadRequest, err)
		}
		return &r, nil
	}
	r := &model.Recurrence{
		Freq:      d.Freq,
		Interval:  d.Interval,
		Count:     d.Count,
		ByWeekday: d.ByWeekday,
	}
	if d.Until != "" {
		until, err := s.parseInstant(d.Until)
		if err != nil {
			return nil, err
		}
		r.Until = &until
	}
	return r, nil
}

func (s *Server) toEvent(d eventDTO) (model.Event, error) {
	start, err := s.parseInstant(d.Start)
	if err != nil {
		return model.Event{}, err
	}
	end, err := s.parseInstant(d.End)
	if err != nil {
		return model.Event{}, err
	}
	user, err := s.resolveUser(d.UserID)
	if err != nil {
		return model.Event{}, err
	}
	rule, err := s.toRecurrence(d.Recurrence)
	if err != nil {
		return model.Event{}, err
	}
	return model.Event{
		ID:          d.ID,
		Start:       start,
		End:         end,
		Title:       d.Title,
		Location:    d.Location,
		Category:    d.Category,
		Description: d.Description,
		User:        user,
		Recurrence:  rule,
	}, nil
}

func (s *Server) fromEvent(ev model.Event) eventDTO {
	return eventDTO{
		ID:          ev.ID,
		Title:       ev.Title,
		Start:       s.formatInstant(ev.Start),
		End:         s.formatInstant(ev.End),
		Location:    ev.Location,
		Category:    ev.Category,
		Description: ev.Description,
		UserID:      userID(ev.User),
		Recurrence:  s.fromRecurrence(ev.Recurrence),
		SourceID:    ev.SourceID,
	}
}

func (s *Server) fromRecurrence(r *model.Recurrence) *recurrenceDTO {
	if r == nil {
		return nil
	}
	d := &recurrenceDTO{
		Freq:      r.Freq,
		Interval:  r.Interval,
		Count:     r.Count,
		ByWeekday: r.ByWeekday,
		RRule:     ics.RRule(*r),
	}
	if r.Until != nil {
		d.Until = s.formatInstant(*r.Until)
	}
	return d
}

func (s *Server) fromBlock(b planner.Block) eventDTO {
	d := s.fromEvent(b.Event)
	d.IsTask = b.IsTask
	return d
}

func (s *Server) toTask(d taskDTO) (model.Task, error) {
	due, err := s.parseInstant(d.Due)
	if err != nil {
		return model.Task{}, err
	}
	user, err := s.resolveUser(d.UserID)
	if err != nil {
		return model.Task{}, err
	}

	hours := math.NaN()
	switch {
	case d.AutoEstimate:
		hours = schedule.EstimateHours(d.Title, d.Description)
	case d.EstimatedHours != nil:
		hours = *d.EstimatedHours
	}

	return model.Task{
		ID:             d.ID,
		Due:            due,
		EstimatedHours: hours,
		Title:          d.Title,
		Location:       d.Location,
		Category:       d.Category,
		Description:    d.Description,
		User:           user,
	}, nil
}

func (s *Server) fromTask(t model.Task) taskDTO {
	hours := t.EstimatedHours
	return taskDTO{
		ID:             t.ID,
		Title:          t.Title,
		Due:            s.formatInstant(t.Due),
		End:            s.formatInstant(schedule.TaskEnd(t)),
		EstimatedHours: &hours,
		Location:       t.Location,
		Category:       t.Category,
		Description:    t.Description,
		UserID:         userID(t.User),
	}
}
