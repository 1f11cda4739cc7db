// Package storetest holds the behavior every store.Store driver must show.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/timewarden/internal/schedule"
	"github.com/loykin/timewarden/internal/store"
	"github.com/loykin/timewarden/internal/usage"
)

// Run exercises s against an empty schema.
func Run(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx))
	require.NoError(t, s.EnsureSchema(ctx), "schema creation must be idempotent")

	t.Run("schedules", func(t *testing.T) { schedules(ctx, t, s) })
	t.Run("sessions", func(t *testing.T) { sessions(ctx, t, s) })
}

func schedules(ctx context.Context, t *testing.T, s store.Store) {
	list, err := s.ListSchedules(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	work := schedule.NewDraft("Work")
	work.Days = []schedule.Weekday{schedule.Mon, schedule.Tue, schedule.Fri}
	work.ExpectedApps = []string{"code", "slack"}
	id, err := s.InsertSchedule(ctx, work)
	require.NoError(t, err)
	require.NotZero(t, id)

	study := schedule.NewDraft("Study")
	study.Enabled = false
	id2, err := s.InsertSchedule(ctx, study)
	require.NoError(t, err)

	list, err = s.ListSchedules(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, id, list[0].IDValue())
	assert.Equal(t, work.Days, list[0].Days)
	assert.Equal(t, work.ExpectedApps, list[0].ExpectedApps)
	assert.Equal(t, schedule.DefaultCheckIntervalSecs, list[0].CheckIntervalSecs)
	assert.True(t, list[0].Enabled)
	assert.Empty(t, list[1].ExpectedApps)
	assert.False(t, list[1].Enabled)

	edited := list[0].Clone()
	edited.Name = "Work hours"
	edited.EndTime = "18:00:00"
	require.NoError(t, s.UpdateSchedule(ctx, edited))
	require.NoError(t, s.SetScheduleEnabled(ctx, id2, true))

	list, err = s.ListSchedules(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Work hours", list[0].Name)
	assert.Equal(t, "18:00:00", list[0].EndTime)
	assert.True(t, list[1].Enabled)

	require.NoError(t, s.DeleteSchedule(ctx, id))
	list, err = s.ListSchedules(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	assert.ErrorIs(t, s.DeleteSchedule(ctx, id), store.ErrNotFound)
	assert.ErrorIs(t, s.SetScheduleEnabled(ctx, id, true), store.ErrNotFound)
	assert.ErrorIs(t, s.UpdateSchedule(ctx, edited), store.ErrNotFound)
	assert.Error(t, s.UpdateSchedule(ctx, schedule.NewDraft("no id")))
}

func sessions(ctx context.Context, t *testing.T, s store.Store) {
	day := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	name := "Google Chrome"
	add := func(app string, start time.Time, secs int64, idle bool) {
		end := start.Add(time.Duration(secs) * time.Second)
		_, err := s.InsertSession(ctx, usage.Session{
			AppID: app, AppName: &name, StartTime: start, EndTime: &end, IsIdle: idle,
		})
		require.NoError(t, err)
	}
	add("chrome", day.Add(9*time.Hour), 600, false)
	add("code", day.Add(10*time.Hour), 900, false)
	add("chrome", day.Add(11*time.Hour), 600, false)
	add("idle", day.Add(12*time.Hour), 3600, true)
	add("code", day.Add(-time.Hour), 5000, false) // previous day

	open := day.Add(13 * time.Hour)
	_, err := s.InsertSession(ctx, usage.Session{AppID: "term", StartTime: open})
	require.NoError(t, err)

	got, err := s.SessionsBetween(ctx, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, "chrome", got[0].AppID)
	assert.Equal(t, day.Add(9*time.Hour), got[0].StartTime)
	require.NotNil(t, got[0].DurationSeconds)
	assert.Equal(t, int64(600), *got[0].DurationSeconds)
	assert.Equal(t, "Google Chrome", got[0].Label())
	assert.True(t, got[3].IsIdle)
	assert.Nil(t, got[4].EndTime)
	assert.Nil(t, got[4].AppName)
	assert.Nil(t, got[4].DurationSeconds)

	totals, err := s.AppTotalsBetween(ctx, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []usage.AppTotal{
		{Name: "chrome", Seconds: 1200},
		{Name: "code", Seconds: 900},
		{Name: "term", Seconds: 0},
	}, totals)
}
