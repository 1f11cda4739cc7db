// Package backend is the reference implementation of the remote call table.
// It persists schedules and recorded sessions and serves the live status
// reported by a Probe.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/loykin/timewarden/internal/gateway"
	"github.com/loykin/timewarden/internal/schedule"
	"github.com/loykin/timewarden/internal/store"
	"github.com/loykin/timewarden/internal/usage"
)

// ErrInvalid marks arguments the backend refuses to persist.
var ErrInvalid = errors.New("invalid argument")

type Option func(*Service)

// WithClock sets the time source that decides what "today" is.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// Service implements gateway.Gateway in process.
type Service struct {
	store  store.Store
	probe  Probe
	now    func() time.Time
	logger *slog.Logger
}

var _ gateway.Gateway = (*Service)(nil)

func New(st store.Store, probe Probe, opts ...Option) *Service {
	if probe == nil {
		probe = NullProbe{}
	}
	s := &Service{store: st, probe: probe, now: time.Now, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With("component", "backend")
	return s
}

// Probe returns the probe the service reads live status from.
func (s *Service) Probe() Probe { return s.probe }

// today returns the bounds of the local calendar day of the clock.
func (s *Service) today() (time.Time, time.Time) {
	t := s.now()
	y, m, d := t.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	return from, from.AddDate(0, 0, 1)
}

func (s *Service) CurrentApp(ctx context.Context) (string, bool, error) {
	return s.probe.CurrentApp(ctx)
}

func (s *Service) IdleSeconds(ctx context.Context) (uint64, error) {
	return s.probe.IdleSeconds(ctx)
}

func (s *Service) TodaySessions(ctx context.Context) ([]usage.Session, error) {
	from, to := s.today()
	return s.store.SessionsBetween(ctx, from, to)
}

func (s *Service) AppTotalsToday(ctx context.Context) ([]usage.AppTotal, error) {
	from, to := s.today()
	return s.store.AppTotalsBetween(ctx, from, to)
}

func (s *Service) AllSchedules(ctx context.Context) ([]schedule.Schedule, error) {
	return s.store.ListSchedules(ctx)
}

func (s *Service) CreateSchedule(ctx context.Context, sc schedule.Schedule) error {
	sc = schedule.Normalize(sc)
	sc.ID = nil
	if err := schedule.Validate(sc); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	id, err := s.store.InsertSchedule(ctx, sc)
	if err != nil {
		return err
	}
	s.logger.Info("schedule created", "id", id, "name", sc.Name)
	return nil
}

func (s *Service) UpdateSchedule(ctx context.Context, sc schedule.Schedule) error {
	if !sc.Persisted() {
		return fmt.Errorf("%w: update needs an id", ErrInvalid)
	}
	sc = schedule.Normalize(sc)
	if err := schedule.Validate(sc); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := s.store.UpdateSchedule(ctx, sc); err != nil {
		return err
	}
	s.logger.Info("schedule updated", "id", sc.IDValue(), "name", sc.Name)
	return nil
}

func (s *Service) DeleteSchedule(ctx context.Context, id int64) error {
	if err := s.store.DeleteSchedule(ctx, id); err != nil {
		return err
	}
	s.logger.Info("schedule deleted", "id", id)
	return nil
}

func (s *Service) ToggleSchedule(ctx context.Context, id int64, enabled bool) error {
	if err := s.store.SetScheduleEnabled(ctx, id, enabled); err != nil {
		return err
	}
	s.logger.Info("schedule toggled", "id", id, "enabled", enabled)
	return nil
}

// RecordSession stores a finished or open session. Sessions are normally
// produced by the platform tracker; this entry point feeds the debug API.
func (s *Service) RecordSession(ctx context.Context, sess usage.Session) (int64, error) {
	if sess.AppID == "" {
		return 0, fmt.Errorf("%w: app_id is required", ErrInvalid)
	}
	if sess.StartTime.IsZero() {
		return 0, fmt.Errorf("%w: start_time is required", ErrInvalid)
	}
	if sess.EndTime != nil && sess.EndTime.Before(sess.StartTime) {
		return 0, fmt.Errorf("%w: end_time before start_time", ErrInvalid)
	}
	return s.store.InsertSession(ctx, sess)
}
