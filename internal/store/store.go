// Package store persists schedules and recorded sessions for the reference
// backend. Drivers live in the sqlite and postgres subpackages.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/loykin/timewarden/internal/schedule"
	"github.com/loykin/timewarden/internal/usage"
)

// ErrNotFound is returned when a schedule id does not exist.
var ErrNotFound = errors.New("not found")

// Store is the persistence interface of the reference backend. Session times
// are stored as unix seconds; ranges are half open [from, to).
type Store interface {
	EnsureSchema(ctx context.Context) error

	ListSchedules(ctx context.Context) ([]schedule.Schedule, error)
	InsertSchedule(ctx context.Context, s schedule.Schedule) (int64, error)
	UpdateSchedule(ctx context.Context, s schedule.Schedule) error
	DeleteSchedule(ctx context.Context, id int64) error
	SetScheduleEnabled(ctx context.Context, id int64, enabled bool) error

	InsertSession(ctx context.Context, s usage.Session) (int64, error)
	// SessionsBetween returns sessions started in [from, to), oldest first.
	SessionsBetween(ctx context.Context, from, to time.Time) ([]usage.Session, error)
	// AppTotalsBetween sums non-idle session durations per app id, largest first.
	AppTotalsBetween(ctx context.Context, from, to time.Time) ([]usage.AppTotal, error)

	Close() error
}

// EncodeDays stores days as comma separated indices, Mon = 0.
func EncodeDays(days []schedule.Weekday) string {
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, strconv.Itoa(int(d)))
	}
	return strings.Join(parts, ",")
}

func DecodeDays(raw string) ([]schedule.Weekday, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []schedule.Weekday{}, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]schedule.Weekday, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("decode days %q: %w", raw, err)
		}
		d := schedule.Weekday(n)
		if !d.Valid() {
			return nil, fmt.Errorf("decode days %q: index %d out of range", raw, n)
		}
		out = append(out, d)
	}
	return out, nil
}

// EncodeApps stores keywords as a JSON array.
func EncodeApps(apps []string) (string, error) {
	if apps == nil {
		apps = []string{}
	}
	b, err := json.Marshal(apps)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func DecodeApps(raw string) ([]string, error) {
	out := []string{}
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode expected apps: %w", err)
	}
	return out, nil
}

// Scanner is satisfied by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// ScheduleColumns is the column order ScanSchedule expects.
const ScheduleColumns = "id, name, start_time, end_time, days, expected_apps, check_interval_secs, grace_period_secs, enabled"

// ScanSchedule decodes one row selected with ScheduleColumns.
func ScanSchedule(sc Scanner) (schedule.Schedule, error) {
	var (
		s          schedule.Schedule
		id         int64
		days, apps string
	)
	if err := sc.Scan(&id, &s.Name, &s.StartTime, &s.EndTime, &days, &apps,
		&s.CheckIntervalSecs, &s.GracePeriodSecs, &s.Enabled); err != nil {
		return s, err
	}
	s.ID = &id
	var err error
	if s.Days, err = DecodeDays(days); err != nil {
		return s, err
	}
	if s.ExpectedApps, err = DecodeApps(apps); err != nil {
		return s, err
	}
	return s, nil
}

// SessionColumns is the column order ScanSession expects.
const SessionColumns = "id, app_id, app_name, start_time, end_time, duration_seconds, is_idle"

// ScanSession decodes one row selected with SessionColumns.
func ScanSession(sc Scanner) (usage.Session, error) {
	var (
		s        usage.Session
		name     *string
		start    int64
		end, dur *int64
	)
	if err := sc.Scan(&s.ID, &s.AppID, &name, &start, &end, &dur, &s.IsIdle); err != nil {
		return s, err
	}
	s.AppName = name
	s.StartTime = time.Unix(start, 0).UTC()
	if end != nil {
		t := time.Unix(*end, 0).UTC()
		s.EndTime = &t
	}
	s.DurationSeconds = dur
	return s, nil
}

// SessionArgs returns the insert arguments of s in SessionColumns order,
// without the id.
func SessionArgs(s usage.Session) []any {
	var end any
	if s.EndTime != nil {
		end = s.EndTime.Unix()
	}
	var dur any
	if s.DurationSeconds != nil {
		dur = *s.DurationSeconds
	} else if s.EndTime != nil {
		dur = int64(s.EndTime.Sub(s.StartTime) / time.Second)
	}
	var name any
	if s.AppName != nil {
		name = *s.AppName
	}
	return []any{s.AppID, name, s.StartTime.Unix(), end, dur, s.IsIdle}
}
