// Package schedule holds the schedule value type and its pure transformations.
// Nothing here performs I/O; every operation returns a new Schedule and never
// aliases the slices of its input.
package schedule

import (
	"slices"
	"strings"
)

// Defaults for a fresh draft.
const (
	DefaultStartTime         = "09:00:00"
	DefaultEndTime           = "17:00:00"
	DefaultCheckIntervalSecs = 5
	DefaultGracePeriodSecs   = 30
)

// Schedule is a named time window over a set of weekdays during which the
// listed applications are expected to be in use.
// A nil ID marks a draft that the backend has not persisted yet.
type Schedule struct {
	ID                *int64    `json:"id,omitempty" yaml:"id,omitempty"`
	Name              string    `json:"name" yaml:"name"`
	StartTime         string    `json:"start_time" yaml:"start_time"`
	EndTime           string    `json:"end_time" yaml:"end_time"`
	Days              []Weekday `json:"days" yaml:"days"`
	ExpectedApps      []string  `json:"expected_apps" yaml:"expected_apps"`
	CheckIntervalSecs int       `json:"check_interval_secs" yaml:"check_interval_secs"`
	GracePeriodSecs   int       `json:"grace_period_secs" yaml:"grace_period_secs"`
	Enabled           bool      `json:"enabled" yaml:"enabled"`
}

// NewDraft returns an unsaved schedule with the standard working-week defaults.
func NewDraft(name string) Schedule {
	return Schedule{
		Name:              name,
		StartTime:         DefaultStartTime,
		EndTime:           DefaultEndTime,
		Days:              []Weekday{Mon, Tue, Wed, Thu, Fri},
		ExpectedApps:      []string{},
		CheckIntervalSecs: DefaultCheckIntervalSecs,
		GracePeriodSecs:   DefaultGracePeriodSecs,
		Enabled:           true,
	}
}

// Persisted reports whether the schedule carries a backend identity.
func (s Schedule) Persisted() bool { return s.ID != nil }

// IDValue returns the identity or 0 for drafts.
func (s Schedule) IDValue() int64 {
	if s.ID == nil {
		return 0
	}
	return *s.ID
}

// WithID returns a copy carrying the given identity.
func (s Schedule) WithID(id int64) Schedule {
	c := s.Clone()
	c.ID = &id
	return c
}

// Clone deep-copies the schedule so callers can mutate the result freely.
func (s Schedule) Clone() Schedule {
	c := s
	if s.ID != nil {
		id := *s.ID
		c.ID = &id
	}
	c.Days = slices.Clone(s.Days)
	c.ExpectedApps = slices.Clone(s.ExpectedApps)
	return c
}

// NormalizeTime turns "HH:MM" into "HH:MM:SS". Anything that is not five
// characters long passes through untouched; value validation happens at the
// input boundary.
func NormalizeTime(raw string) string {
	if len(raw) == 5 {
		return raw + ":00"
	}
	return raw
}

// ToggleDay removes day if present and adds it otherwise. The result is
// always in canonical weekday order.
func ToggleDay(s Schedule, day Weekday) Schedule {
	c := s.Clone()
	if i := slices.Index(c.Days, day); i >= 0 {
		c.Days = slices.Delete(c.Days, i, i+1)
	} else {
		c.Days = append(c.Days, day)
	}
	slices.Sort(c.Days)
	return c
}

// AddApp appends a trimmed keyword. Blank keywords are ignored.
func AddApp(s Schedule, keyword string) Schedule {
	c := s.Clone()
	k := strings.TrimSpace(keyword)
	if k == "" {
		return c
	}
	c.ExpectedApps = append(c.ExpectedApps, k)
	return c
}

// RemoveApp drops the keyword at index; an out-of-range index is ignored.
func RemoveApp(s Schedule, index int) Schedule {
	c := s.Clone()
	if index < 0 || index >= len(c.ExpectedApps) {
		return c
	}
	c.ExpectedApps = slices.Delete(c.ExpectedApps, index, index+1)
	return c
}

// Normalize canonicalizes times, sorts and dedups days and drops blank
// keywords. It is what the store applies before handing a schedule to the
// backend.
func Normalize(s Schedule) Schedule {
	c := s.Clone()
	c.Name = strings.TrimSpace(c.Name)
	c.StartTime = NormalizeTime(strings.TrimSpace(c.StartTime))
	c.EndTime = NormalizeTime(strings.TrimSpace(c.EndTime))
	slices.Sort(c.Days)
	c.Days = slices.Compact(c.Days)
	apps := make([]string, 0, len(c.ExpectedApps))
	for _, a := range c.ExpectedApps {
		if a = strings.TrimSpace(a); a != "" {
			apps = append(apps, a)
		}
	}
	c.ExpectedApps = apps
	return c
}
