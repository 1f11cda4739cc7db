package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/timewarden/internal/gateway"
	"github.com/loykin/timewarden/internal/usage"
)

type fakeSource struct {
	mu       sync.Mutex
	app      string
	hasApp   bool
	idle     uint64
	sessions []usage.Session
	totals   []usage.AppTotal
	errs     map[string]error

	gate    chan struct{} // when set, IdleSeconds blocks until closed
	started chan struct{} // receives one value per IdleSeconds call, if set
	calls   atomic.Int64
}

func (f *fakeSource) err(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errs[call]
}

func (f *fakeSource) setErr(call string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errs == nil {
		f.errs = map[string]error{}
	}
	f.errs[call] = err
}

func (f *fakeSource) setIdle(v uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.idle = v
}

func (f *fakeSource) CurrentApp(context.Context) (string, bool, error) {
	if err := f.err(gateway.CallGetCurrentApp); err != nil {
		return "", false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.app, f.hasApp, nil
}

func (f *fakeSource) IdleSeconds(context.Context) (uint64, error) {
	f.calls.Add(1)
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.gate != nil {
		<-f.gate
	}
	if err := f.err(gateway.CallGetIdleSeconds); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.idle, nil
}

func (f *fakeSource) TodaySessions(context.Context) ([]usage.Session, error) {
	if err := f.err(gateway.CallGetTodaySessions); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions, nil
}

func (f *fakeSource) AppTotalsToday(context.Context) ([]usage.AppTotal, error) {
	if err := f.err(gateway.CallGetAppTotalsToday); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.totals, nil
}

var fixedNow = time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)

func newFake() *fakeSource {
	return &fakeSource{
		app:    "Code",
		hasApp: true,
		idle:   3,
		sessions: []usage.Session{
			{ID: 1, AppID: "chrome", StartTime: fixedNow.Add(-2 * time.Hour)},
			{ID: 2, AppID: "code", StartTime: fixedNow.Add(-time.Hour)},
		},
		totals: []usage.AppTotal{{Name: "chrome", Seconds: 1200}, {Name: "code", Seconds: 600}},
	}
}

func newPoller(src Source, opts ...Option) *Poller {
	return New(src, append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)...)
}

func TestViewString(t *testing.T) {
	assert.Equal(t, "status", ViewStatus.String())
	assert.Equal(t, "dashboard", ViewDashboard.String())
	assert.Equal(t, "unknown", View(9).String())
}

func TestPollOnceStatusView(t *testing.T) {
	p := newPoller(newFake())
	_, ok := p.Status()
	require.False(t, ok)

	require.NoError(t, p.PollOnce(context.Background()))

	st, ok := p.Status()
	require.True(t, ok)
	assert.Equal(t, "Code", st.CurrentApp)
	assert.True(t, st.HasApp)
	assert.Equal(t, uint64(3), st.IdleSeconds)
	assert.Equal(t, fixedNow, st.At)
	_, ok = p.Usage()
	assert.False(t, ok, "status view must not fetch usage")
}

func TestPollOnceDashboardView(t *testing.T) {
	p := newPoller(newFake())
	p.SetView(ViewDashboard)
	require.NoError(t, p.PollOnce(context.Background()))

	u, ok := p.Usage()
	require.True(t, ok)
	assert.Equal(t, int64(1800), u.TotalSeconds)
	require.Len(t, u.Sessions, 2)
	assert.Equal(t, int64(2), u.Sessions[0].ID, "most recent session first")
	top, _ := u.TopApp()
	assert.Equal(t, "chrome", top.Name)
}

func TestFailedTickKeepsPreviousSnapshot(t *testing.T) {
	src := newFake()
	p := newPoller(src)
	p.SetView(ViewDashboard)
	require.NoError(t, p.PollOnce(context.Background()))

	src.setIdle(99)
	src.setErr(gateway.CallGetAppTotalsToday, errors.New("db locked"))
	err := p.PollOnce(context.Background())
	require.Error(t, err)
	call, ok := gateway.CallOf(err)
	require.True(t, ok)
	assert.Equal(t, gateway.CallGetAppTotalsToday, call)

	// status calls succeeded but the tick is all or nothing
	st, _ := p.Status()
	assert.Equal(t, uint64(3), st.IdleSeconds)
	u, _ := p.Usage()
	assert.Equal(t, int64(1800), u.TotalSeconds)

	src.setErr(gateway.CallGetAppTotalsToday, nil)
	require.NoError(t, p.PollOnce(context.Background()))
	st, _ = p.Status()
	assert.Equal(t, uint64(99), st.IdleSeconds)
}

func TestStatusTickKeepsLastUsage(t *testing.T) {
	p := newPoller(newFake())
	p.SetView(ViewDashboard)
	require.NoError(t, p.PollOnce(context.Background()))
	p.SetView(ViewStatus)
	require.NoError(t, p.PollOnce(context.Background()))

	s := p.Snapshot()
	assert.Equal(t, ViewStatus, s.View)
	assert.True(t, s.HasUsage)
	assert.Equal(t, int64(1800), s.Usage.TotalSeconds)
}

func TestOverlappingTickIsSkipped(t *testing.T) {
	src := newFake()
	src.gate = make(chan struct{})
	src.started = make(chan struct{}, 1)
	p := newPoller(src)

	done := make(chan error, 1)
	go func() { done <- p.PollOnce(context.Background()) }()
	<-src.started

	assert.ErrorIs(t, p.PollOnce(context.Background()), ErrSkipped)
	close(src.gate)
	require.NoError(t, <-done)
	assert.Equal(t, int64(1), src.calls.Load())
}

func TestPollOnceGuardIsSeparateFromLoop(t *testing.T) {
	src := newFake()
	src.gate = make(chan struct{})
	src.started = make(chan struct{}, 1)
	p := newPoller(src, WithInterval(time.Hour))

	p.Activate(ViewStatus)
	defer p.Deactivate()
	<-src.started

	done := make(chan error, 1)
	go func() { done <- p.PollOnce(context.Background()) }()
	<-src.started
	assert.Equal(t, int64(2), src.calls.Load(), "loop tick and PollOnce both in flight")

	close(src.gate)
	require.NoError(t, <-done)
	st, ok := p.Status()
	require.True(t, ok)
	assert.Equal(t, "Code", st.CurrentApp)
}

func TestOutOfOrderResultIsDiscarded(t *testing.T) {
	p := newPoller(newFake())
	newer := Snapshot{Status: usage.StatusSnapshot{CurrentApp: "newer"}, HasStatus: true}
	older := Snapshot{Status: usage.StatusSnapshot{CurrentApp: "older"}, HasStatus: true}

	require.True(t, p.apply(0, 2, newer))
	assert.False(t, p.apply(0, 1, older))
	st, _ := p.Status()
	assert.Equal(t, "newer", st.CurrentApp)
}

func TestActivatePollsImmediatelyAndRepeatedly(t *testing.T) {
	src := newFake()
	p := newPoller(src, WithInterval(10*time.Millisecond))
	p.Activate(ViewStatus)
	defer p.Deactivate()

	require.Eventually(t, func() bool {
		_, ok := p.Status()
		return ok
	}, time.Second, 2*time.Millisecond)
	require.Eventually(t, func() bool { return src.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)

	view, active := p.Active()
	assert.True(t, active)
	assert.Equal(t, ViewStatus, view)
}

func TestDeactivateStopsPolling(t *testing.T) {
	src := newFake()
	p := newPoller(src, WithInterval(5*time.Millisecond))
	p.Activate(ViewStatus)
	require.Eventually(t, func() bool { return src.calls.Load() >= 2 }, time.Second, 2*time.Millisecond)

	p.Deactivate()
	_, active := p.Active()
	assert.False(t, active)
	time.Sleep(20 * time.Millisecond)
	n := src.calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, src.calls.Load())
}

func TestResultArrivingAfterDeactivateIsDiscarded(t *testing.T) {
	src := newFake()
	src.gate = make(chan struct{})
	src.started = make(chan struct{}, 1)
	p := newPoller(src, WithInterval(time.Hour))

	p.Activate(ViewStatus)
	<-src.started
	p.Deactivate()
	close(src.gate)

	assert.Never(t, func() bool {
		_, ok := p.Status()
		return ok
	}, 100*time.Millisecond, 5*time.Millisecond)
}

func TestViewSwitchDiscardsOldViewResult(t *testing.T) {
	src := newFake()
	src.gate = make(chan struct{})
	src.started = make(chan struct{}, 1)
	p := newPoller(src, WithInterval(time.Hour))

	p.Activate(ViewDashboard)
	<-src.started
	p.Activate(ViewStatus)
	<-src.started
	close(src.gate)
	defer p.Deactivate()

	require.Eventually(t, func() bool {
		_, ok := p.Status()
		return ok
	}, time.Second, 2*time.Millisecond)
	// the dashboard tick started first; whatever its outcome, it is stale
	assert.Never(t, func() bool {
		_, ok := p.Usage()
		return ok
	}, 50*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, ViewStatus, p.Snapshot().View)
}

func TestSubscribeReceivesLatest(t *testing.T) {
	src := newFake()
	p := newPoller(src)
	ch, cancel := p.Subscribe()

	require.NoError(t, p.PollOnce(context.Background()))
	src.setIdle(7)
	require.NoError(t, p.PollOnce(context.Background()))

	s := <-ch
	assert.Equal(t, uint64(7), s.Status.IdleSeconds, "only the latest snapshot is buffered")

	cancel()
	cancel()
	require.NoError(t, p.PollOnce(context.Background()))
	select {
	case <-ch:
		t.Fatal("unsubscribed channel received a snapshot")
	default:
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	p := newPoller(newFake())
	p.SetView(ViewDashboard)
	require.NoError(t, p.PollOnce(context.Background()))

	s := p.Snapshot()
	s.Usage.AppTotals[0].Name = "mutated"
	u, _ := p.Usage()
	assert.Equal(t, "chrome", u.AppTotals[0].Name)
}
