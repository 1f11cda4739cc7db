// Package usage holds the ephemeral status and usage snapshots produced on
// every poll tick. Snapshots are replaced wholesale, never mutated.
package usage

import (
	"path"
	"slices"
	"strings"
	"time"
)

// DefaultIdleThreshold is the presentation-level idle cut-off.
const DefaultIdleThreshold = 300 * time.Second

// Session is one contiguous stretch of foreground use (or idleness) recorded
// by the backend.
type Session struct {
	ID              int64      `json:"id"`
	AppID           string     `json:"app_id"`
	AppName         *string    `json:"app_name,omitempty"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationSeconds *int64     `json:"duration_seconds,omitempty"`
	IsIdle          bool       `json:"is_idle"`
}

// Label prefers the human app name and falls back to the app id.
func (s Session) Label() string {
	if s.AppName != nil && *s.AppName != "" {
		return *s.AppName
	}
	return s.AppID
}

// AppTotal is the accumulated foreground time of one application today.
type AppTotal struct {
	Name    string `json:"name"`
	Seconds int64  `json:"seconds"`
}

// StatusSnapshot is the live status at one poll tick.
type StatusSnapshot struct {
	CurrentApp  string
	HasApp      bool
	IdleSeconds uint64
	At          time.Time
}

// IsIdle reports whether the idle time is strictly above threshold.
func (s StatusSnapshot) IsIdle(threshold time.Duration) bool {
	return time.Duration(s.IdleSeconds)*time.Second > threshold
}

// UsageSnapshot is today's session list and per-app totals at one poll tick.
type UsageSnapshot struct {
	// Sessions are most recent first.
	Sessions []Session
	// AppTotals keep the backend ranking.
	AppTotals    []AppTotal
	TotalSeconds int64
	At           time.Time
}

// NewUsageSnapshot builds a snapshot from raw backend results. Sessions
// arrive oldest first and are reversed; the total is recomputed from scratch.
func NewUsageSnapshot(sessions []Session, totals []AppTotal, at time.Time) UsageSnapshot {
	ss := slices.Clone(sessions)
	slices.Reverse(ss)
	var sum int64
	for _, t := range totals {
		sum += t.Seconds
	}
	return UsageSnapshot{
		Sessions:     ss,
		AppTotals:    slices.Clone(totals),
		TotalSeconds: sum,
		At:           at,
	}
}

// TopApp returns the first-ranked application, if any.
func (u UsageSnapshot) TopApp() (AppTotal, bool) {
	if len(u.AppTotals) == 0 {
		return AppTotal{}, false
	}
	return u.AppTotals[0], true
}

// Clone copies the slices so the result can be handed to consumers.
func (u UsageSnapshot) Clone() UsageSnapshot {
	u.Sessions = slices.Clone(u.Sessions)
	u.AppTotals = slices.Clone(u.AppTotals)
	return u
}

var executableSuffixes = []string{".exe", ".app"}

// DisplayName strips directories and executable suffixes from a process
// name: "C:\\Apps\\chrome.exe" and "chrome.exe" both become "chrome".
func DisplayName(name string) string {
	n := strings.ReplaceAll(strings.TrimSpace(name), `\`, "/")
	n = path.Base(n)
	if n == "." || n == "/" {
		return ""
	}
	lower := strings.ToLower(n)
	for _, suf := range executableSuffixes {
		if strings.HasSuffix(lower, suf) && len(n) > len(suf) {
			return n[:len(n)-len(suf)]
		}
	}
	return n
}
