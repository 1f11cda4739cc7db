// Package poller keeps the live status (and, on the dashboard, today's usage)
// fresh by polling the backend on a fixed interval while a view is active.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/loykin/timewarden/internal/gateway"
	"github.com/loykin/timewarden/internal/metrics"
	"github.com/loykin/timewarden/internal/usage"
)

// DefaultInterval is the refresh period of an active view.
const DefaultInterval = time.Second

// ErrSkipped is returned by PollOnce when another tick is still in flight.
var ErrSkipped = errors.New("poll skipped: previous tick still in flight")

// View selects what a tick fetches.
type View int

const (
	// ViewStatus fetches the current app and idle time.
	ViewStatus View = iota
	// ViewDashboard additionally fetches today's sessions and app totals.
	ViewDashboard
)

func (v View) String() string {
	switch v {
	case ViewStatus:
		return "status"
	case ViewDashboard:
		return "dashboard"
	default:
		return "unknown"
	}
}

// Source is the subset of the gateway the poller reads from.
type Source = gateway.StatusSource

// Snapshot is the combined state published after a successful tick.
type Snapshot struct {
	View      View
	Status    usage.StatusSnapshot
	HasStatus bool
	Usage     usage.UsageSnapshot
	HasUsage  bool
}

func (s Snapshot) clone() Snapshot {
	s.Usage = s.Usage.Clone()
	return s
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval overrides the tick period. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock sets the time source used to stamp snapshots.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) {
		if now != nil {
			p.now = now
		}
	}
}

// run is one activation of the poll loop. busy skips a tick of this run while
// its previous tick is in flight; it is not shared with other runs.
type run struct {
	gen  uint64
	view View
	stop chan struct{}
	busy atomic.Bool
}

// Poller owns the status and usage snapshots. At most one loop is active.
type Poller struct {
	src      Source
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	seq      atomic.Uint64
	onceBusy atomic.Bool

	mu      sync.Mutex
	gen     uint64
	current *run
	view    View
	applied uint64
	snap    Snapshot
	subs    map[int]chan Snapshot
	nextSub int
}

// New creates an idle poller. Call Activate to start polling.
func New(src Source, opts ...Option) *Poller {
	p := &Poller{
		src:      src,
		interval: DefaultInterval,
		logger:   slog.Default(),
		now:      time.Now,
		subs:     make(map[int]chan Snapshot),
	}
	for _, o := range opts {
		o(p)
	}
	p.logger = p.logger.With("component", "poller")
	return p
}

// Activate starts polling for view, replacing any running loop. One tick
// fires immediately, then one per interval. Ticks of the replaced loop that
// are still in flight do not hold back the new one; their results are
// discarded.
func (p *Poller) Activate(view View) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.gen++
	p.view = view
	r := &run{gen: p.gen, view: view, stop: make(chan struct{})}
	p.current = r
	p.logger.Debug("activated", "view", view.String(), "interval", p.interval)
	go p.loop(r)
}

// Deactivate stops the loop. Calls already in flight are left to finish but
// their results are discarded.
func (p *Poller) Deactivate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return
	}
	p.stopLocked()
	p.gen++
	p.logger.Debug("deactivated")
}

// Active reports whether a loop is running and for which view.
func (p *Poller) Active() (View, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view, p.current != nil
}

func (p *Poller) stopLocked() {
	if p.current != nil {
		close(p.current.stop)
		p.current = nil
	}
}

func (p *Poller) loop(r *run) {
	go p.fire(r)
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-t.C:
			go p.fire(r)
		}
	}
}

func (p *Poller) fire(r *run) {
	select {
	case <-r.stop:
		return
	default:
	}
	// Results outlive deactivation on purpose; staleness is decided on apply.
	_ = p.tick(context.Background(), r.gen, r.view, &r.busy)
}

// PollOnce runs a single tick synchronously for the current view and returns
// its error. Overlapping PollOnce calls are skipped, but PollOnce has its own
// in-flight guard and may run alongside a tick of the active loop. Staleness
// rules are the same as for the loop, so the later-started result wins.
func (p *Poller) PollOnce(ctx context.Context) error {
	p.mu.Lock()
	gen, view := p.gen, p.view
	p.mu.Unlock()
	return p.tick(ctx, gen, view, &p.onceBusy)
}

// SetView changes the view used by PollOnce without starting a loop.
func (p *Poller) SetView(view View) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		return
	}
	p.view = view
}

func (p *Poller) tick(ctx context.Context, gen uint64, view View, busy *atomic.Bool) error {
	if !busy.CompareAndSwap(false, true) {
		metrics.IncTickSkipped()
		p.logger.Debug("tick skipped", "view", view.String())
		return ErrSkipped
	}
	defer busy.Store(false)

	seq := p.seq.Add(1)
	start := time.Now()
	next, err := p.fetch(ctx, view)
	metrics.ObserveTickDuration(time.Since(start).Seconds())
	if err != nil {
		call, _ := gateway.CallOf(err)
		metrics.IncTickFailure(call)
		p.logger.Warn("tick abandoned", "view", view.String(), "call", call, "error", err)
		return err
	}
	if !p.apply(gen, seq, next) {
		metrics.IncStaleResult()
		p.logger.Debug("stale tick discarded", "view", view.String(), "seq", seq)
		return nil
	}
	metrics.IncTick(view.String())
	return nil
}

// fetch issues every call of the view concurrently and assembles the result
// only if all of them succeed.
func (p *Poller) fetch(ctx context.Context, view View) (Snapshot, error) {
	var (
		app      string
		hasApp   bool
		idle     uint64
		sessions []usage.Session
		totals   []usage.AppTotal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		app, hasApp, err = p.src.CurrentApp(gctx)
		return gateway.Wrap(gateway.CallGetCurrentApp, err)
	})
	g.Go(func() error {
		var err error
		idle, err = p.src.IdleSeconds(gctx)
		return gateway.Wrap(gateway.CallGetIdleSeconds, err)
	})
	if view == ViewDashboard {
		g.Go(func() error {
			var err error
			sessions, err = p.src.TodaySessions(gctx)
			return gateway.Wrap(gateway.CallGetTodaySessions, err)
		})
		g.Go(func() error {
			var err error
			totals, err = p.src.AppTotalsToday(gctx)
			return gateway.Wrap(gateway.CallGetAppTotalsToday, err)
		})
	}
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	at := p.now()
	s := Snapshot{
		View: view,
		Status: usage.StatusSnapshot{
			CurrentApp:  app,
			HasApp:      hasApp,
			IdleSeconds: idle,
			At:          at,
		},
		HasStatus: true,
	}
	if view == ViewDashboard {
		s.Usage = usage.NewUsageSnapshot(sessions, totals, at)
		s.HasUsage = true
	}
	return s, nil
}

// apply publishes next unless a newer tick or another activation got there
// first. A status-only tick keeps the last usage snapshot.
func (p *Poller) apply(gen, seq uint64, next Snapshot) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen || seq <= p.applied {
		return false
	}
	p.applied = seq
	if !next.HasUsage {
		next.Usage, next.HasUsage = p.snap.Usage, p.snap.HasUsage
	}
	p.snap = next
	for _, ch := range p.subs {
		publish(ch, next.clone())
	}
	return true
}

// publish replaces whatever is buffered with s.
func publish(ch chan Snapshot, s Snapshot) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- s:
	default:
	}
}

// Status returns the last published status.
func (p *Poller) Status() (usage.StatusSnapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap.Status, p.snap.HasStatus
}

// Usage returns a copy of the last published usage snapshot.
func (p *Poller) Usage() (usage.UsageSnapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap.Usage.Clone(), p.snap.HasUsage
}

// Snapshot returns a copy of everything last published.
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap.clone()
}

// Subscribe returns a channel that always holds the latest published
// snapshot, and a function that ends the subscription.
func (p *Poller) Subscribe() (<-chan Snapshot, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSub
	p.nextSub++
	ch := make(chan Snapshot, 1)
	p.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
		})
	}
}
