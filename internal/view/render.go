// Package view turns poller snapshots and schedules into terminal output.
package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/loykin/timewarden/internal/usage"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	activeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	idleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// MaxSessions caps the session list in RenderUsage.
const MaxSessions = 10

// FormatDuration renders whole seconds as "1h 05m", "12m 03s" or "42s".
func FormatDuration(secs int64) string {
	if secs < 0 {
		secs = 0
	}
	h, m, s := secs/3600, secs%3600/60, secs%60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %02dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

func row(label, value string) string {
	return labelStyle.Render(fmt.Sprintf("%-14s", label)) + value
}

// RenderStatus renders the live status block. The idle marker uses threshold.
func RenderStatus(st usage.StatusSnapshot, threshold time.Duration) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Status"))
	b.WriteByte('\n')

	app := mutedStyle.Render("none")
	if st.HasApp {
		app = activeStyle.Render(usage.DisplayName(st.CurrentApp))
	}
	b.WriteString(row("Current app", app))
	b.WriteByte('\n')

	idle := FormatDuration(int64(st.IdleSeconds))
	if st.IsIdle(threshold) {
		idle = idleStyle.Render(idle + " (idle)")
	}
	b.WriteString(row("Idle", idle))
	b.WriteByte('\n')

	if !st.At.IsZero() {
		b.WriteString(row("Updated", mutedStyle.Render(st.At.Format(time.TimeOnly))))
		b.WriteByte('\n')
	}
	return b.String()
}

// RenderUsage renders today's totals and the most recent sessions. now is
// used for the relative start times.
func RenderUsage(u usage.UsageSnapshot, now time.Time) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Today"))
	b.WriteByte('\n')
	b.WriteString(row("Total", FormatDuration(u.TotalSeconds)))
	b.WriteByte('\n')
	if top, ok := u.TopApp(); ok {
		b.WriteString(row("Top app", activeStyle.Render(usage.DisplayName(top.Name))))
		b.WriteByte('\n')
	}

	if len(u.AppTotals) > 0 {
		b.WriteByte('\n')
		b.WriteString(titleStyle.Render("Apps"))
		b.WriteByte('\n')
		for _, t := range u.AppTotals {
			b.WriteString(row(usage.DisplayName(t.Name), FormatDuration(t.Seconds)))
			b.WriteByte('\n')
		}
	}

	if len(u.Sessions) > 0 {
		b.WriteByte('\n')
		b.WriteString(titleStyle.Render("Sessions"))
		b.WriteByte('\n')
		for i, s := range u.Sessions {
			if i == MaxSessions {
				b.WriteString(mutedStyle.Render(fmt.Sprintf("... %d more", len(u.Sessions)-MaxSessions)))
				b.WriteByte('\n')
				break
			}
			b.WriteString(sessionLine(s, now))
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func sessionLine(s usage.Session, now time.Time) string {
	dur := "running"
	if s.DurationSeconds != nil {
		dur = FormatDuration(*s.DurationSeconds)
	}
	label := usage.DisplayName(s.Label())
	if s.IsIdle {
		label = "(idle)"
	}
	started := humanize.RelTime(s.StartTime, now, "ago", "from now")
	return row(label, dur+mutedStyle.Render("  "+started))
}
