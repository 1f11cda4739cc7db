package view

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/loykin/timewarden/internal/poller"
)

var (
	activeTabStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(lipgloss.Color("236")).
			Padding(0, 1).
			Bold(true)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

// PollSource is what the dashboard needs from the poller.
type PollSource interface {
	Activate(view poller.View)
	Deactivate()
	Subscribe() (<-chan poller.Snapshot, func())
}

type snapshotMsg poller.Snapshot

// Dashboard is a bubbletea model that shows the latest poller snapshot.
// Tab switches between the status and dashboard views; q quits.
type Dashboard struct {
	src       PollSource
	view      poller.View
	threshold time.Duration
	now       func() time.Time

	updates <-chan poller.Snapshot
	cancel  func()
	snap    poller.Snapshot
	warn    string
}

// NewDashboard subscribes to src. Polling starts in Init.
func NewDashboard(src PollSource, view poller.View, threshold time.Duration) *Dashboard {
	ch, cancel := src.Subscribe()
	return &Dashboard{
		src:       src,
		view:      view,
		threshold: threshold,
		now:       time.Now,
		updates:   ch,
		cancel:    cancel,
	}
}

// Warn sets a one-line message shown under the tabs.
func (d *Dashboard) Warn(msg string) { d.warn = msg }

func (d *Dashboard) Init() tea.Cmd {
	d.src.Activate(d.view)
	return d.wait()
}

func (d *Dashboard) wait() tea.Cmd {
	ch := d.updates
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return snapshotMsg(s)
	}
}

func (d *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotMsg:
		d.snap = poller.Snapshot(msg)
		return d, d.wait()
	case tea.KeyMsg:
		switch msg.String() {
		case "tab":
			if d.view == poller.ViewStatus {
				d.view = poller.ViewDashboard
			} else {
				d.view = poller.ViewStatus
			}
			d.src.Activate(d.view)
		case "q", "ctrl+c", "esc":
			d.Close()
			return d, tea.Quit
		}
	}
	return d, nil
}

// Close stops polling and ends the subscription. It is safe to call twice.
func (d *Dashboard) Close() {
	d.src.Deactivate()
	d.cancel()
}

// CurrentView is the view the dashboard is polling for.
func (d *Dashboard) CurrentView() poller.View { return d.view }

func (d *Dashboard) View() string {
	var b strings.Builder
	for _, v := range []poller.View{poller.ViewStatus, poller.ViewDashboard} {
		style := inactiveTabStyle
		if v == d.view {
			style = activeTabStyle
		}
		b.WriteString(style.Render(v.String()))
	}
	b.WriteString("\n\n")
	if d.warn != "" {
		b.WriteString(errorStyle.Render(d.warn))
		b.WriteString("\n\n")
	}

	if !d.snap.HasStatus {
		b.WriteString(mutedStyle.Render("waiting for backend..."))
		b.WriteByte('\n')
	} else {
		b.WriteString(RenderStatus(d.snap.Status, d.threshold))
	}
	if d.view == poller.ViewDashboard && d.snap.HasUsage {
		b.WriteByte('\n')
		b.WriteString(RenderUsage(d.snap.Usage, d.now()))
	}
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("tab: switch view  q: quit"))
	b.WriteByte('\n')
	return b.String()
}
