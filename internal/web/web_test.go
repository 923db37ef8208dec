package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskcal/internal/config"
	"taskcal/internal/metrics"
	"taskcal/internal/model"
	"taskcal/internal/planner"
	"taskcal/internal/store"
)

var alice = model.User{ID: "3e36ea6e-78f3-40dd-ab8c-a6c737c3c422", Name: "Alice Johnson"}

type testServer struct {
	handler http.Handler
	planner *planner.Planner
	cfg     *config.Config
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.PreferencesPath = filepath.Join(t.TempDir(), "preferences.yaml")

	m := metrics.New()
	p := planner.New(store.New([]model.User{alice}), planner.WithLocation(time.UTC), planner.WithObserver(m))
	now := func() time.Time { return time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC) }
	s := NewServer(p, cfg, WithMetrics(m), WithClock(now))
	return &testServer{handler: s.Handler(), planner: p, cfg: cfg}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

const schoolJSON = `{"title":"School","start":"2024-06-10T07:40:00","end":"2024-06-10T14:30:00","category":"School"}`

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestCreateTaskAfterSchool(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/events", schoolJSON)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[[]eventDTO](t, rec)
	require.Len(t, created, 1)
	assert.Equal(t, "2024-06-10T07:40:00", created[0].Start)
	assert.Equal(t, model.CategorySchool, created[0].Category)

	rec = ts.do(t, http.MethodPost, "/api/tasks",
		`{"title":"Lab report","due":"2024-06-10T20:00:00","estimated_hours":2,"category":"Homework","user_id":"`+alice.ID+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	task := decode[taskDTO](t, rec)
	assert.Equal(t, "2024-06-10T16:00:00", task.Due)
	assert.Equal(t, "2024-06-10T18:00:00", task.End)
	require.NotNil(t, task.EstimatedHours)
	assert.Equal(t, 2.0, *task.EstimatedHours)
	assert.Equal(t, alice.ID, task.UserID)

	rec = ts.do(t, http.MethodGet, "/api/events?view=day&date=2024-06-10T00:00:00", "")
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[viewResponse](t, rec)
	assert.Equal(t, model.ViewDay, view.View)
	assert.Equal(t, "2024-06-10T00:00:00", view.From)
	assert.Equal(t, "2024-06-11T00:00:00", view.To)
	assert.Equal(t, "UTC", view.Timezone)
	require.Len(t, view.Items, 2)
	assert.False(t, view.Items[0].IsTask)
	assert.True(t, view.Items[1].IsTask)
	require.Len(t, view.Lanes, 1)
	assert.Len(t, view.Lanes[0], 2)
}

func TestListEventsFilters(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/events", schoolJSON).Code)
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/events",
		`{"title":"Shift","start":"2024-06-11T17:00:00","end":"2024-06-11T21:00:00","category":"Work","user_id":"`+alice.ID+`"}`).Code)

	// The default view comes from preferences (day) and the date from the clock.
	rec := ts.do(t, http.MethodGet, "/api/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[viewResponse](t, rec).Items, 1)

	rec = ts.do(t, http.MethodGet, "/api/events?view=week&date=2024-06-12T00:00:00&category=Work", "")
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode[viewResponse](t, rec).Items
	require.Len(t, items, 1)
	assert.Equal(t, "Shift", items[0].Title)

	rec = ts.do(t, http.MethodGet, "/api/events?view=week&date=2024-06-12T00:00:00&user="+alice.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[viewResponse](t, rec).Items, 1)

	rec = ts.do(t, http.MethodGet, "/api/events?view=week&date=2024-06-12T00:00:00&user=all", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[viewResponse](t, rec).Items, 2)
}

func TestCreateRecurringEventFromRRule(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/events",
		`{"title":"Standup","start":"2024-06-10T09:00:00","end":"2024-06-10T09:15:00","category":"Work","recurrence":{"rrule":"FREQ=DAILY;COUNT=3"}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decode[[]eventDTO](t, rec)
	require.Len(t, created, 3)
	for i, ev := range created {
		assert.Equal(t, fmt.Sprintf("2024-06-%02dT09:00:00", 10+i), ev.Start)
	}
	assert.Len(t, ts.planner.Events(), 3)
}

func TestCreateRecurringEventStructured(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/events",
		`{"title":"Review","start":"2024-06-10T09:00:00","end":"2024-06-10T10:00:00","category":"Work","recurrence":{"freq":"weekly","count":2}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decode[[]eventDTO](t, rec)
	require.Len(t, created, 2)
	assert.Equal(t, "2024-06-17T09:00:00", created[1].Start)
}

func TestSingleEventKeepsRecurrenceOnWire(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/events",
		`{"title":"Review","start":"2024-06-10T09:00:00","end":"2024-06-10T10:00:00","recurrence":{"freq":"weekly","count":1,"until":"2024-12-31T00:00:00"}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decode[[]eventDTO](t, rec)
	require.Len(t, created, 1)
	rule := created[0].Recurrence
	require.NotNil(t, rule)
	assert.Equal(t, model.Weekly, rule.Freq)
	assert.Equal(t, 1, rule.Count)
	assert.Equal(t, "2024-12-31T00:00:00", rule.Until)
	assert.Contains(t, rule.RRule, "FREQ=WEEKLY")

	// Sending the response back unchanged keeps the rule.
	body, err := json.Marshal(created[0])
	require.NoError(t, err)
	rec = ts.do(t, http.MethodPut, fmt.Sprintf("/api/events/%d", created[0].ID), string(body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[eventDTO](t, rec)
	require.NotNil(t, updated.Recurrence)
	assert.Equal(t, "2024-12-31T00:00:00", updated.Recurrence.Until)

	view := decode[viewResponse](t, ts.do(t, http.MethodGet, "/api/events?view=day&date=2024-06-10T00:00:00", ""))
	require.Len(t, view.Items, 1)
	assert.NotNil(t, view.Items[0].Recurrence)
}

func TestUpdateImportedEventDoesNotDuplicate(t *testing.T) {
	ts := newTestServer(t)
	feed := []model.Event{{Title: "Practice", UID: "p1@feed", Start: time.Date(2024, 6, 10, 15, 0, 0, 0, time.UTC), End: time.Date(2024, 6, 10, 16, 0, 0, 0, time.UTC)}}
	imported := ts.planner.ReplaceSource("feed", feed)
	require.Len(t, imported, 1)

	rec := ts.do(t, http.MethodPut, fmt.Sprintf("/api/events/%d", imported[0].ID),
		`{"title":"Practice","start":"2024-06-10T17:00:00","end":"2024-06-10T18:00:00"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "feed", decode[eventDTO](t, rec).SourceID)

	ts.planner.ReplaceSource("feed", feed)
	events := ts.planner.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "p1@feed", events[0].UID)
}

func TestUpdateAndDeleteEvent(t *testing.T) {
	ts := newTestServer(t)
	created := decode[[]eventDTO](t, ts.do(t, http.MethodPost, "/api/events", schoolJSON))
	id := created[0].ID

	rec := ts.do(t, http.MethodPut, fmt.Sprintf("/api/events/%d", id),
		`{"title":"School","start":"2024-06-10T08:00:00","end":"2024-06-10T15:00:00","category":"School"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[eventDTO](t, rec)
	assert.Equal(t, id, updated.ID)
	assert.Equal(t, "2024-06-10T15:00:00", updated.End)

	rec = ts.do(t, http.MethodPut, fmt.Sprintf("/api/events/%d", id),
		`{"title":"School","start":"2024-06-10T15:00:00","end":"2024-06-10T08:00:00","category":"School"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodDelete, fmt.Sprintf("/api/events/%d", id), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, ts.planner.Events())

	// Unknown ids are ignored.
	rec = ts.do(t, http.MethodDelete, "/api/events/999", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequestErrors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown event", http.MethodPut, "/api/events/999", schoolJSON, http.StatusNotFound},
		{"unknown task", http.MethodPut, "/api/tasks/999", `{"title":"x","due":"2024-06-10T20:00:00"}`, http.StatusNotFound},
		{"non-numeric id", http.MethodDelete, "/api/tasks/abc", "", http.StatusBadRequest},
		{"malformed json", http.MethodPost, "/api/events", `{"title":`, http.StatusBadRequest},
		{"unknown category", http.MethodPost, "/api/events", `{"title":"x","start":"2024-06-10T09:00:00","end":"2024-06-10T10:00:00","category":"Purple"}`, http.StatusBadRequest},
		{"bad instant", http.MethodPost, "/api/tasks", `{"title":"x","due":"tomorrow"}`, http.StatusBadRequest},
		{"unknown user", http.MethodPost, "/api/tasks", `{"title":"x","due":"2024-06-10T20:00:00","user_id":"a7aff6bd-a50a-4d6a-ab57-76f76bb27cf5"}`, http.StatusBadRequest},
		{"malformed user", http.MethodPost, "/api/tasks", `{"title":"x","due":"2024-06-10T20:00:00","user_id":"bob"}`, http.StatusBadRequest},
		{"bad rrule", http.MethodPost, "/api/events", `{"title":"x","start":"2024-06-10T09:00:00","end":"2024-06-10T10:00:00","recurrence":{"rrule":"INTERVAL=2"}}`, http.StatusBadRequest},
		{"unknown view", http.MethodGet, "/api/events?view=decade", "", http.StatusBadRequest},
		{"unknown filter category", http.MethodGet, "/api/events?category=Purple", "", http.StatusBadRequest},
		{"wrong method", http.MethodPatch, "/api/tasks", "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			if tt.want != http.StatusMethodNotAllowed {
				assert.NotEmpty(t, decode[map[string]string](t, rec)["error"])
			}
		})
	}
}

func TestCreateTaskNoSlot(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/events",
		`{"title":"Trip","start":"2024-06-01T00:00:00","end":"2024-06-12T00:00:00","category":"Personal"}`).Code)

	rec := ts.do(t, http.MethodPost, "/api/tasks", `{"title":"Essay","due":"2024-06-10T20:00:00","estimated_hours":1}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, ts.planner.Tasks())
}

func TestTaskDefaultsAndEstimate(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/tasks", `{"title":"Call dentist","due":"2024-06-10T20:00:00"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	task := decode[taskDTO](t, rec)
	assert.Equal(t, 1.0, *task.EstimatedHours)
	assert.Equal(t, "2024-06-10T10:00:00", task.Due)

	rec = ts.do(t, http.MethodPost, "/api/tasks", `{"title":"Write essay 3h","due":"2024-06-11T20:00:00","auto_estimate":true}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	task = decode[taskDTO](t, rec)
	assert.Equal(t, 3.0, *task.EstimatedHours)

	rec = ts.do(t, http.MethodGet, "/api/tasks", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]taskDTO](t, rec), 2)
}

func TestUpdateTaskKeepsOwnSlot(t *testing.T) {
	ts := newTestServer(t)
	task := decode[taskDTO](t, ts.do(t, http.MethodPost, "/api/tasks", `{"title":"Essay","due":"2024-06-10T20:00:00","estimated_hours":1}`))
	assert.Equal(t, "2024-06-10T10:00:00", task.Due)

	rec := ts.do(t, http.MethodPut, fmt.Sprintf("/api/tasks/%d", task.ID), `{"title":"Essay v2","due":"2024-06-10T20:00:00","estimated_hours":1}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[taskDTO](t, rec)
	assert.Equal(t, task.ID, updated.ID)
	assert.Equal(t, "Essay v2", updated.Title)
	assert.Equal(t, "2024-06-10T10:00:00", updated.Due)
}

func TestDeleteItem(t *testing.T) {
	ts := newTestServer(t)
	ev := decode[[]eventDTO](t, ts.do(t, http.MethodPost, "/api/events", schoolJSON))[0]
	task := decode[taskDTO](t, ts.do(t, http.MethodPost, "/api/tasks", `{"title":"Essay","due":"2024-06-10T20:00:00"}`))

	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, fmt.Sprintf("/api/items/%d", task.ID), "").Code)
	assert.Empty(t, ts.planner.Tasks())
	assert.Len(t, ts.planner.Events(), 1)

	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, fmt.Sprintf("/api/items/%d", ev.ID), "").Code)
	assert.Empty(t, ts.planner.Events())

	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, "/api/tasks/12345", "").Code)
}

func TestUsers(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/users", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []model.User{alice}, decode[[]model.User](t, rec))
}

func TestPreferences(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/preferences", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, config.DefaultPreferences(), decode[config.Preferences](t, rec))

	rec = ts.do(t, http.MethodPut, "/api/preferences", `{"view":"week","badge_variant":"dot","agenda_group_by":"sideways"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	saved := decode[config.Preferences](t, rec)
	assert.Equal(t, model.ViewWeek, saved.View)
	assert.Equal(t, "dot", saved.BadgeVariant)
	assert.Equal(t, "date", saved.AgendaGroupBy)
	assert.True(t, saved.Use24Hour)

	_, err := os.Stat(ts.cfg.PreferencesPath)
	require.NoError(t, err)
	loaded, err := config.LoadPreferences(ts.cfg.PreferencesPath)
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)

	// The stored view becomes the default of the events endpoint.
	rec = ts.do(t, http.MethodGet, "/api/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[viewResponse](t, rec)
	assert.Equal(t, model.ViewWeek, view.View)
	assert.Equal(t, "2024-06-10T00:00:00", view.From)
	assert.Equal(t, "2024-06-17T00:00:00", view.To)
}

func TestPreferencesLoadedAtStartup(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.PreferencesPath = filepath.Join(t.TempDir(), "preferences.yaml")
	_, err := config.SavePreferences(cfg.PreferencesPath, config.Preferences{View: model.ViewMonth, Use24Hour: false})
	require.NoError(t, err)

	p := planner.New(store.New(nil), planner.WithLocation(time.UTC))
	s := NewServer(p, cfg)
	assert.Equal(t, model.ViewMonth, s.preferences().View)
	assert.False(t, s.preferences().Use24Hour)
}

func TestCalendarExport(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/events", schoolJSON).Code)
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/tasks", `{"title":"Essay","due":"2024-06-10T20:00:00","category":"Homework"}`).Code)

	rec := ts.do(t, http.MethodGet, "/api/calendar.ics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/calendar")

	body := rec.Body.String()
	assert.Contains(t, body, "BEGIN:VCALENDAR")
	assert.Contains(t, body, "SUMMARY:School")
	assert.Contains(t, body, "SUMMARY:Essay")
	assert.Contains(t, body, "X-TASKCAL-KIND:task")
	assert.Contains(t, body, "DTSTART:20240610T160000Z")

	rec = ts.do(t, http.MethodGet, "/api/calendar.ics?category=School", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "SUMMARY:Essay")
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/tasks", `{"title":"Essay","due":"2024-06-10T20:00:00"}`).Code)

	rec := ts.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `taskcal_scheduler_tasks_placed_total{stage="preferred"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/tasks", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/tasks", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("add task: %w", model.ErrNoSlot), http.StatusConflict},
		{model.ErrEventNotFound, http.StatusNotFound},
		{model.ErrTaskNotFound, http.StatusNotFound},
		{model.ErrInvalidRange, http.StatusBadRequest},
		{model.ErrUnknownView, http.StatusBadRequest},
		{errUnknownUser, http.StatusBadRequest},
		{errors.Join(errBadRequest, io.ErrUnexpectedEOF), http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
