package backend

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/timewarden/internal/schedule"
	"github.com/loykin/timewarden/internal/store"
	"github.com/loykin/timewarden/internal/store/sqlite"
	"github.com/loykin/timewarden/internal/usage"
)

var noon = time.Date(2026, 10, 15, 12, 0, 0, 0, time.FixedZone("KST", 9*3600))

func newService(t *testing.T, probe Probe) *Service {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.EnsureSchema(context.Background()))
	return New(db, probe, WithClock(func() time.Time { return noon }))
}

func session(app string, start time.Time, secs int64, idle bool) usage.Session {
	end := start.Add(time.Duration(secs) * time.Second)
	return usage.Session{AppID: app, StartTime: start, EndTime: &end, IsIdle: idle}
}

func TestNullProbe(t *testing.T) {
	s := newService(t, nil)
	app, ok, err := s.CurrentApp(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, app)
	idle, err := s.IdleSeconds(context.Background())
	require.NoError(t, err)
	assert.Zero(t, idle)
}

func TestManualProbe(t *testing.T) {
	p := &ManualProbe{}
	s := newService(t, p)
	p.Set("Code", 12)

	app, ok, _ := s.CurrentApp(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "Code", app)
	idle, _ := s.IdleSeconds(context.Background())
	assert.Equal(t, uint64(12), idle)

	p.Set("", 400)
	_, ok, _ = s.CurrentApp(context.Background())
	assert.False(t, ok)
}

func TestTodayUsesLocalCalendarDay(t *testing.T) {
	s := newService(t, nil)
	ctx := context.Background()
	midnight := time.Date(2026, 10, 15, 0, 0, 0, 0, noon.Location())

	for _, sess := range []usage.Session{
		session("chrome", midnight.Add(-time.Minute), 300, false), // yesterday
		session("chrome", midnight, 600, false),
		session("code", midnight.Add(10*time.Hour), 1200, false),
		session("idle", midnight.Add(11*time.Hour), 900, true),
		session("code", midnight.Add(24*time.Hour), 60, false), // tomorrow
	} {
		_, err := s.RecordSession(ctx, sess)
		require.NoError(t, err)
	}

	got, err := s.TodaySessions(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, got[0].StartTime.Equal(midnight), "oldest first")

	totals, err := s.AppTotalsToday(ctx)
	require.NoError(t, err)
	assert.Equal(t, []usage.AppTotal{{Name: "code", Seconds: 1200}, {Name: "chrome", Seconds: 600}}, totals)
}

func TestCreateNormalizesAndValidates(t *testing.T) {
	s := newService(t, nil)
	ctx := context.Background()

	d := schedule.NewDraft(" Work ")
	d.StartTime = "08:00"
	d.Days = []schedule.Weekday{schedule.Fri, schedule.Mon, schedule.Mon}
	d.ID = new(int64) // ignored on create
	require.NoError(t, s.CreateSchedule(ctx, d))

	all, err := s.AllSchedules(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Work", all[0].Name)
	assert.Equal(t, "08:00:00", all[0].StartTime)
	assert.Equal(t, []schedule.Weekday{schedule.Mon, schedule.Fri}, all[0].Days)
	assert.NotZero(t, all[0].IDValue())

	bad := schedule.NewDraft("")
	bad.CheckIntervalSecs = 0
	err = s.CreateSchedule(ctx, bad)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "name must not be empty")
	assert.Contains(t, err.Error(), "check_interval_secs")
}

func TestUpdateDeleteToggle(t *testing.T) {
	s := newService(t, nil)
	ctx := context.Background()
	require.NoError(t, s.CreateSchedule(ctx, schedule.NewDraft("Work")))
	all, _ := s.AllSchedules(ctx)
	id := all[0].IDValue()

	assert.ErrorIs(t, s.UpdateSchedule(ctx, schedule.NewDraft("x")), ErrInvalid)

	edited := all[0]
	edited.GracePeriodSecs = 120
	require.NoError(t, s.UpdateSchedule(ctx, edited))
	require.NoError(t, s.ToggleSchedule(ctx, id, false))
	all, _ = s.AllSchedules(ctx)
	assert.Equal(t, 120, all[0].GracePeriodSecs)
	assert.False(t, all[0].Enabled)

	require.NoError(t, s.DeleteSchedule(ctx, id))
	assert.ErrorIs(t, s.DeleteSchedule(ctx, id), store.ErrNotFound)
	assert.ErrorIs(t, s.ToggleSchedule(ctx, id, true), store.ErrNotFound)
}

func TestRecordSessionRejectsBadInput(t *testing.T) {
	s := newService(t, nil)
	ctx := context.Background()
	_, err := s.RecordSession(ctx, usage.Session{StartTime: noon})
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = s.RecordSession(ctx, usage.Session{AppID: "x"})
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = s.RecordSession(ctx, session("x", noon, -10, false))
	assert.ErrorIs(t, err, ErrInvalid)
}
