package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestSchedulerCounters(t *testing.T) {
	m := New()
	m.TaskPlaced("preferred")
	m.TaskPlaced("preferred")
	m.TaskPlaced("backward-scan")
	m.TaskUnschedulable()
	m.OccurrencesCreated(5)

	body := scrape(t, m)
	assert.Contains(t, body, `taskcal_scheduler_tasks_placed_total{stage="preferred"} 2`)
	assert.Contains(t, body, `taskcal_scheduler_tasks_placed_total{stage="backward-scan"} 1`)
	assert.Contains(t, body, "taskcal_scheduler_tasks_unschedulable_total 1")
	assert.Contains(t, body, "taskcal_scheduler_occurrences_created_total 5")
	assert.Contains(t, body, "go_goroutines")
}

func TestRefreshDone(t *testing.T) {
	m := New()
	m.RefreshDone("club", 12, 30*time.Millisecond, nil)
	m.RefreshDone("club", 0, time.Second, errors.New("boom"))

	body := scrape(t, m)
	assert.Contains(t, body, `taskcal_subscription_refresh_total{result="ok",source="club"} 1`)
	assert.Contains(t, body, `taskcal_subscription_refresh_total{result="error",source="club"} 1`)
	assert.Contains(t, body, `taskcal_subscription_imported_events{source="club"} 12`)
	assert.Contains(t, body, `taskcal_subscription_refresh_duration_seconds_count{source="club"} 2`)
}

func TestInstancesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.TaskUnschedulable()
	assert.Contains(t, scrape(t, b), "taskcal_scheduler_tasks_unschedulable_total 0")
}
