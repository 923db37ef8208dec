package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocalRoundTrip(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	inputs := []string{
		"2024-06-10T17:00:00",
		"2024-03-10T01:30:15",
		"2024-11-03T23:59:59",
		"2024-01-01T00:00:00",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			got, err := ParseLocal(in, loc)
			require.NoError(t, err)
			assert.Equal(t, in, FormatLocal(got))

			again, err := ParseLocal(FormatLocal(got), loc)
			require.NoError(t, err)
			assert.True(t, got.Equal(again))
		})
	}
}

func TestParseLocalMinutePrecision(t *testing.T) {
	got, err := ParseLocal("2024-06-10T17:00", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 10, 17, 0, 0, 0, time.UTC), got)
}

func TestParseLocalRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "tomorrow", "2024-06-10", "2024-06-10T17:00:00Z"} {
		_, err := ParseLocal(in, time.UTC)
		assert.ErrorIs(t, err, ErrInvalidInstant, in)
	}
}

func TestCanonicalDropsSubSecond(t *testing.T) {
	in := time.Date(2024, 6, 10, 9, 0, 0, 999_000_000, time.UTC)
	got := Canonical(in, time.UTC)
	assert.Equal(t, time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC), got)
}

func TestCategoryText(t *testing.T) {
	for _, c := range Categories() {
		b, err := c.MarshalText()
		require.NoError(t, err)

		var back Category
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, c, back)
	}

	_, err := ParseCategory("Purple")
	assert.ErrorIs(t, err, ErrUnknownCategory)

	var c Category
	err = json.Unmarshal([]byte(`"Chores"`), &c)
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestRecurrenceExpands(t *testing.T) {
	tests := []struct {
		name string
		rule *Recurrence
		want bool
	}{
		{name: "nil", rule: nil, want: false},
		{name: "count one", rule: &Recurrence{Freq: Daily, Count: 1}, want: false},
		{name: "count two", rule: &Recurrence{Freq: Daily, Count: 2}, want: true},
		{name: "zero interval defaults", rule: &Recurrence{Freq: Daily, Count: 3, Interval: 0}, want: true},
		{name: "negative interval", rule: &Recurrence{Freq: Daily, Count: 3, Interval: -2}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rule.Expands())
		})
	}
}

func TestEventValidate(t *testing.T) {
	start := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	assert.NoError(t, Event{Start: start, End: start}.Validate())
	assert.NoError(t, Event{Start: start, End: start.Add(time.Hour)}.Validate())
	assert.ErrorIs(t, Event{Start: start, End: start.Add(-time.Minute)}.Validate(), ErrInvalidRange)
}

func TestViewRange(t *testing.T) {
	// Wednesday.
	date := time.Date(2024, 6, 12, 15, 30, 0, 0, time.UTC)
	day := func(m time.Month, d int) time.Time { return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		view      View
		weekStart time.Weekday
		from, to  time.Time
	}{
		{ViewDay, time.Monday, day(6, 12), day(6, 13)},
		{ViewWeek, time.Monday, day(6, 10), day(6, 17)},
		{ViewWeek, time.Sunday, day(6, 9), day(6, 16)},
		{ViewMonth, time.Monday, day(6, 1), day(7, 1)},
		{ViewAgenda, time.Monday, day(6, 1), day(7, 1)},
		{ViewYear, time.Monday, day(1, 1), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(string(tt.view)+"/"+tt.weekStart.String(), func(t *testing.T) {
			from, to := tt.view.Range(date, tt.weekStart)
			assert.Equal(t, tt.from, from)
			assert.Equal(t, tt.to, to)
		})
	}

	_, err := ParseView("fortnight")
	assert.ErrorIs(t, err, ErrUnknownView)
}
