package web

import (
	"bytes"
	"errors"
	"net/http"
	"net/url"

	"taskcal/internal/config"
	"taskcal/internal/ics"
	"taskcal/internal/model"
	"taskcal/internal/planner"
)

type viewResponse struct {
	View      model.View   `json:"view"`
	From      string       `json:"from"`
	To        string       `json:"to"`
	Timezone  string       `json:"timezone"`
	WeekStart string       `json:"week_start"`
	Items     []eventDTO   `json:"items"`
	Lanes     [][]eventDTO `json:"lanes,omitempty"`
}

// filterFromQuery reads the repeatable "category" and the "user" parameters.
func filterFromQuery(q url.Values) (planner.Filter, error) {
	var f planner.Filter
	for _, name := range q["category"] {
		c, err := model.ParseCategory(name)
		if err != nil {
			return planner.Filter{}, err
		}
		f.Categories = append(f.Categories, c)
	}
	f.UserID = q.Get("user")
	return f, nil
}

// GET /api/events?view=week&date=2024-06-10T00:00:00&category=Work&user=all
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	view := s.preferences().View
	if v := q.Get("view"); v != "" {
		parsed, err := model.ParseView(v)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		view = parsed
	}

	date := s.now().In(s.planner.Location())
	if d := q.Get("date"); d != "" {
		parsed, err := s.parseInstant(d)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		date = parsed
	}

	filter, err := filterFromQuery(q)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	from, to := view.Range(date, s.cfg.FirstWeekday())
	blocks := s.planner.Merged(planner.Query{Filter: filter, From: from, To: to})

	resp := viewResponse{
		View:      view,
		From:      s.formatInstant(from),
		To:        s.formatInstant(to),
		Timezone:  s.planner.Location().String(),
		WeekStart: s.cfg.WeekStart,
		Items:     make([]eventDTO, 0, len(blocks)),
	}
	for _, b := range blocks {
		resp.Items = append(resp.Items, s.fromBlock(b))
	}
	if view == model.ViewDay {
		for _, lane := range s.planner.Lanes(date, filter) {
			out := make([]eventDTO, 0, len(lane))
			for _, ev := range lane {
				out = append(out, s.fromEvent(ev))
			}
			resp.Lanes = append(resp.Lanes, out)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var in eventDTO
	if err := decodeJSON(r, &in); err != nil {
		writeDomainError(w, err)
		return
	}
	ev, err := s.toEvent(in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	created, err := s.planner.AddEvent(ev)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]eventDTO, 0, len(created))
	for _, c := range created {
		out = append(out, s.fromEvent(c))
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var in eventDTO
	if err := decodeJSON(r, &in); err != nil {
		writeDomainError(w, err)
		return
	}
	in.ID = id
	ev, err := s.toEvent(in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	updated, err := s.planner.UpdateEvent(ev)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.fromEvent(updated))
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.planner.RemoveEvent(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTasks(w http.ResponseWriter, _ *http.Request) {
	tasks := s.planner.Tasks()
	out := make([]taskDTO, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, s.fromTask(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var in taskDTO
	if err := decodeJSON(r, &in); err != nil {
		writeDomainError(w, err)
		return
	}
	task, err := s.toTask(in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	placed, err := s.planner.AddTask(task)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.fromTask(placed))
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var in taskDTO
	if err := decodeJSON(r, &in); err != nil {
		writeDomainError(w, err)
		return
	}
	in.ID = id
	task, err := s.toTask(in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	placed, err := s.planner.UpdateTask(task)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.fromTask(placed))
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.planner.RemoveTask(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.planner.Remove(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUsers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.planner.Users())
}

func (s *Server) preferences() config.Preferences {
	s.prefsMu.RLock()
	defer s.prefsMu.RUnlock()
	return s.prefs
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.preferences())
}

func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	in := s.preferences()
	if err := decodeJSON(r, &in); err != nil {
		writeDomainError(w, err)
		return
	}

	s.prefsMu.Lock()
	defer s.prefsMu.Unlock()
	saved, err := config.SavePreferences(s.cfg.PreferencesPath, in)
	if err != nil {
		writeDomainError(w, errors.Join(errors.New("save preferences"), err))
		return
	}
	s.prefs = saved
	writeJSON(w, http.StatusOK, saved)
}

// GET /api/calendar.ics accepts the same category and user filters as the
// events view and exports every matching block.
func (s *Server) handleCalendarICS(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r.URL.Query())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	blocks := s.planner.Merged(planner.Query{Filter: filter})
	items := make([]ics.ExportItem, 0, len(blocks))
	for _, b := range blocks {
		items = append(items, ics.ExportItem{Event: b.Event, IsTask: b.IsTask})
	}

	var buf bytes.Buffer
	if err := ics.Export(&buf, "taskcal", items, s.now()); err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="taskcal.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
