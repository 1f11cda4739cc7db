// Package gateway defines the single channel through which the client reaches
// the backend. Implementations perform no retries and no caching; callers own
// any retry policy.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/loykin/timewarden/internal/schedule"
	"github.com/loykin/timewarden/internal/usage"
)

// Remote call names as exposed by the backend.
const (
	CallGetCurrentApp     = "get_current_app"
	CallGetIdleSeconds    = "get_idle_seconds"
	CallGetTodaySessions  = "get_today_sessions"
	CallGetAppTotalsToday = "get_app_totals_today"
	CallGetAllSchedules   = "get_all_schedules"
	CallCreateSchedule    = "create_schedule"
	CallUpdateSchedule    = "update_schedule"
	CallDeleteSchedule    = "delete_schedule"
	CallToggleSchedule    = "toggle_schedule"
)

// Calls lists every call name in table order.
var Calls = []string{
	CallGetCurrentApp,
	CallGetIdleSeconds,
	CallGetTodaySessions,
	CallGetAppTotalsToday,
	CallGetAllSchedules,
	CallCreateSchedule,
	CallUpdateSchedule,
	CallDeleteSchedule,
	CallToggleSchedule,
}

// StatusSource is the live-status and usage half of the backend.
type StatusSource interface {
	// CurrentApp reports the focused application; ok is false when nothing
	// trackable is in the foreground.
	CurrentApp(ctx context.Context) (app string, ok bool, err error)
	IdleSeconds(ctx context.Context) (uint64, error)
	TodaySessions(ctx context.Context) ([]usage.Session, error)
	AppTotalsToday(ctx context.Context) ([]usage.AppTotal, error)
}

// ScheduleBackend is the schedule persistence half of the backend.
type ScheduleBackend interface {
	AllSchedules(ctx context.Context) ([]schedule.Schedule, error)
	CreateSchedule(ctx context.Context, s schedule.Schedule) error
	UpdateSchedule(ctx context.Context, s schedule.Schedule) error
	DeleteSchedule(ctx context.Context, id int64) error
	ToggleSchedule(ctx context.Context, id int64, enabled bool) error
}

// Gateway exposes one operation per backend capability.
type Gateway interface {
	StatusSource
	ScheduleBackend
}

// RemoteCallError is the only error shape a Gateway returns. Callers treat
// every failure the same way: the operation did not take effect.
type RemoteCallError struct {
	Call string
	Err  error
}

func (e *RemoteCallError) Error() string {
	return fmt.Sprintf("remote call %s failed: %v", e.Call, e.Err)
}

func (e *RemoteCallError) Unwrap() error { return e.Err }

// Wrap returns err as a *RemoteCallError for call. Nil stays nil and an
// existing RemoteCallError is not wrapped twice.
func Wrap(call string, err error) error {
	if err == nil {
		return nil
	}
	var rce *RemoteCallError
	if errors.As(err, &rce) {
		return err
	}
	return &RemoteCallError{Call: call, Err: err}
}

// CallOf returns the failing call name if err came from a gateway.
func CallOf(err error) (string, bool) {
	var rce *RemoteCallError
	if errors.As(err, &rce) {
		return rce.Call, true
	}
	return "", false
}

// IsRemote reports whether err is a gateway failure.
func IsRemote(err error) bool {
	_, ok := CallOf(err)
	return ok
}
