package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Interval bounds. The backend rejects values outside them; the client
// clamps user input into them.
const (
	MinCheckIntervalSecs = 1
	MaxCheckIntervalSecs = 60
	MinGracePeriodSecs   = 0
	MaxGracePeriodSecs   = 300
)

// ParseCheckInterval converts raw input to a check interval. Non-numeric
// input falls back to the draft default; numbers are clamped into range.
func ParseCheckInterval(raw string) int {
	return parseBounded(raw, DefaultCheckIntervalSecs, MinCheckIntervalSecs, MaxCheckIntervalSecs)
}

// ParseGracePeriod is ParseCheckInterval for the grace period.
func ParseGracePeriod(raw string) int {
	return parseBounded(raw, DefaultGracePeriodSecs, MinGracePeriodSecs, MaxGracePeriodSecs)
}

func parseBounded(raw string, def, lo, hi int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return min(max(n, lo), hi)
}

// Validate reports every rule the schedule breaks, joined into one
// error. A nil result means the schedule can be persisted as is.
func Validate(s Schedule) error {
	var errs []error
	if strings.TrimSpace(s.Name) == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	if !canonicalTime(s.StartTime) {
		errs = append(errs, fmt.Errorf("start_time %q is not HH:MM:SS", s.StartTime))
	}
	if !canonicalTime(s.EndTime) {
		errs = append(errs, fmt.Errorf("end_time %q is not HH:MM:SS", s.EndTime))
	}
	for i, d := range s.Days {
		if !d.Valid() {
			errs = append(errs, fmt.Errorf("days[%d]: invalid weekday %d", i, int(d)))
			continue
		}
		if i > 0 && s.Days[i-1] >= d {
			errs = append(errs, errors.New("days must be unique and in weekday order"))
			break
		}
	}
	if s.CheckIntervalSecs < MinCheckIntervalSecs || s.CheckIntervalSecs > MaxCheckIntervalSecs {
		errs = append(errs, fmt.Errorf("check_interval_secs %d outside [%d, %d]",
			s.CheckIntervalSecs, MinCheckIntervalSecs, MaxCheckIntervalSecs))
	}
	if s.GracePeriodSecs < MinGracePeriodSecs || s.GracePeriodSecs > MaxGracePeriodSecs {
		errs = append(errs, fmt.Errorf("grace_period_secs %d outside [%d, %d]",
			s.GracePeriodSecs, MinGracePeriodSecs, MaxGracePeriodSecs))
	}
	return errors.Join(errs...)
}

// canonicalTime checks the 24h "HH:MM:SS" form without leap seconds.
func canonicalTime(t string) bool {
	if len(t) != 8 || t[2] != ':' || t[5] != ':' {
		return false
	}
	for _, i := range [...]int{0, 1, 3, 4, 6, 7} {
		if t[i] < '0' || t[i] > '9' {
			return false
		}
	}
	field := func(i int) int { return int(t[i]-'0')*10 + int(t[i+1]-'0') }
	return field(0) < 24 && field(3) < 60 && field(6) < 60
}
