// Package schedules holds the client-side schedule collection and performs
// create, update, delete and optimistic toggle against the backend.
package schedules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/loykin/timewarden/internal/gateway"
	"github.com/loykin/timewarden/internal/metrics"
	"github.com/loykin/timewarden/internal/schedule"
)

var (
	// ErrNotFound is returned for ids that are not in the collection.
	ErrNotFound = errors.New("schedule not found")
	// ErrNotConfirmed is returned when the user declines a delete.
	ErrNotConfirmed = errors.New("delete not confirmed")
	// ErrStale is returned by Save when the backend applied the change but
	// the reload after it failed. The change took effect; the cached
	// collection is out of date until the next successful Refresh.
	ErrStale = errors.New("schedule saved but collection is stale")
)

// Backend is the schedule subset of the gateway.
type Backend = gateway.ScheduleBackend

// ConfirmFunc is asked before a delete; returning false cancels it.
type ConfirmFunc func(s schedule.Schedule) bool

type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithoutToggleRollback leaves an optimistic toggle applied even when the
// backend rejects it, until the next Refresh.
func WithoutToggleRollback() Option {
	return func(s *Store) { s.rollback = false }
}

// Store is the schedule collection as last reported by the backend plus any
// optimistic toggles not yet reconciled.
type Store struct {
	backend  Backend
	logger   *slog.Logger
	rollback bool

	mu      sync.RWMutex
	items   []schedule.Schedule
	loaded  bool
	subs    map[int]chan struct{}
	nextSub int
}

func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:  backend,
		logger:   slog.Default(),
		rollback: true,
		subs:     make(map[int]chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With("component", "schedules")
	return s
}

// Schedules returns a deep copy of the collection in backend order.
func (s *Store) Schedules() []schedule.Schedule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]schedule.Schedule, len(s.items))
	for i, it := range s.items {
		out[i] = it.Clone()
	}
	return out
}

// Get returns a copy of the schedule with id.
func (s *Store) Get(id int64) (schedule.Schedule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexLocked(id)
	if i < 0 {
		return schedule.Schedule{}, false
	}
	return s.items[i].Clone(), true
}

// Loaded reports whether at least one Refresh succeeded.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Subscribe returns a channel that is signalled after every change to the
// collection, and a function that ends the subscription.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan struct{}, 1)
	s.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) notifyLocked() {
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (s *Store) indexLocked(id int64) int {
	return slices.IndexFunc(s.items, func(it schedule.Schedule) bool {
		return it.ID != nil && *it.ID == id
	})
}

// Refresh replaces the whole collection with the backend's list. On failure
// the collection is left as it was.
func (s *Store) Refresh(ctx context.Context) error {
	all, err := s.backend.AllSchedules(ctx)
	if err != nil {
		err = gateway.Wrap(gateway.CallGetAllSchedules, err)
		s.logger.Error("load schedules failed", "error", err)
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make([]schedule.Schedule, len(all))
	for i, it := range all {
		s.items[i] = it.Clone()
	}
	s.loaded = true
	s.notifyLocked()
	return nil
}

// Save normalizes sched and sends it as an update when it carries an id and
// as a create otherwise. On success the collection is reloaded in full; a
// failed reload yields ErrStale, which is not a remote call failure.
func (s *Store) Save(ctx context.Context, sched schedule.Schedule) error {
	sched = schedule.Normalize(sched)

	op, call := "create", gateway.CallCreateSchedule
	var err error
	if sched.Persisted() {
		op, call = "update", gateway.CallUpdateSchedule
		err = s.backend.UpdateSchedule(ctx, sched)
	} else {
		err = s.backend.CreateSchedule(ctx, sched)
	}
	metrics.IncMutation(op, err)
	if err != nil {
		err = gateway.Wrap(call, err)
		s.logger.Error("save schedule failed", "op", op, "name", sched.Name, "error", err)
		return err
	}
	s.logger.Info("schedule saved", "op", op, "name", sched.Name)
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("reload after save failed", "op", op, "name", sched.Name, "error", err)
		return fmt.Errorf("%w: reload after %s: %v", ErrStale, op, err)
	}
	return nil
}

// Delete asks confirm (nil means already confirmed) and then deletes id.
// The entry is removed locally only after the backend accepted the delete.
func (s *Store) Delete(ctx context.Context, id int64, confirm ConfirmFunc) error {
	target, ok := s.Get(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if confirm != nil && !confirm(target) {
		return ErrNotConfirmed
	}

	err := s.backend.DeleteSchedule(ctx, id)
	metrics.IncMutation("delete", err)
	if err != nil {
		err = gateway.Wrap(gateway.CallDeleteSchedule, err)
		s.logger.Error("delete schedule failed", "id", id, "error", err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = slices.DeleteFunc(s.items, func(it schedule.Schedule) bool {
		return it.ID != nil && *it.ID == id
	})
	s.notifyLocked()
	s.logger.Info("schedule deleted", "id", id, "name", target.Name)
	return nil
}

// Toggle sets the enabled flag of id locally and then on the backend. When
// the backend rejects the change the previous value is restored, unless the
// entry has changed since or rollback is disabled.
func (s *Store) Toggle(ctx context.Context, id int64, enabled bool) error {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	prev := s.items[i].Enabled
	s.items[i].Enabled = enabled
	s.notifyLocked()
	s.mu.Unlock()

	err := s.backend.ToggleSchedule(ctx, id, enabled)
	metrics.IncMutation("toggle", err)
	if err == nil {
		s.logger.Debug("schedule toggled", "id", id, "enabled", enabled)
		return nil
	}
	err = gateway.Wrap(gateway.CallToggleSchedule, err)
	s.logger.Error("toggle schedule failed", "id", id, "enabled", enabled, "error", err)

	if s.rollback {
		s.mu.Lock()
		if j := s.indexLocked(id); j >= 0 && s.items[j].Enabled == enabled {
			s.items[j].Enabled = prev
			metrics.IncRollback()
			s.notifyLocked()
		}
		s.mu.Unlock()
	}
	return err
}
