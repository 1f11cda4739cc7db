package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"gopkg.in/yaml.v3"

	"github.com/loykin/timewarden/internal/gateway"
	"github.com/loykin/timewarden/internal/poller"
	"github.com/loykin/timewarden/internal/schedule"
	"github.com/loykin/timewarden/internal/schedules"
	"github.com/loykin/timewarden/internal/view"
)

// command binds the CLI handlers to their interactive collaborators so
// tests can replace them.
type command struct {
	global  *GlobalFlags
	out     io.Writer
	confirm schedules.ConfirmFunc
	alert   func(title, msg string) error
	runTUI  func(m tea.Model) error
}

func newCommand(global *GlobalFlags) *command {
	return &command{
		global:  global,
		out:     os.Stdout,
		confirm: view.ConfirmDelete,
		alert:   view.Alert,
		runTUI:  runProgram,
	}
}

func runProgram(m tea.Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func (s *session) newPoller() *poller.Poller {
	return poller.New(s.client,
		poller.WithInterval(s.cfg.Poller.Interval),
		poller.WithLogger(s.logger),
	)
}

func (s *session) newStore() *schedules.Store {
	opts := []schedules.Option{schedules.WithLogger(s.logger)}
	if !s.cfg.Schedules.ToggleRollback {
		opts = append(opts, schedules.WithoutToggleRollback())
	}
	return schedules.New(s.client, opts...)
}

// Status polls once and prints the result.
func (c *command) Status(ctx context.Context, f StatusFlags) error {
	s, err := c.open()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	if err := s.requireBackend(ctx); err != nil {
		return err
	}

	p := s.newPoller()
	if f.Usage {
		p.SetView(poller.ViewDashboard)
	}
	if err := p.PollOnce(ctx); err != nil {
		return err
	}
	snap := p.Snapshot()
	_, _ = fmt.Fprint(c.out, view.RenderStatus(snap.Status, s.cfg.Poller.IdleThreshold))
	if f.Usage && snap.HasUsage {
		_, _ = fmt.Fprintln(c.out)
		_, _ = fmt.Fprint(c.out, view.RenderUsage(snap.Usage, snap.Usage.At))
	}
	return nil
}

// Watch runs the live view until the user quits.
func (c *command) Watch(f WatchFlags) error {
	s, err := c.open()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	v := poller.ViewStatus
	if f.Dashboard {
		v = poller.ViewDashboard
	}
	d := view.NewDashboard(s.newPoller(), v, s.cfg.Poller.IdleThreshold)
	defer d.Close()
	if err := s.requireBackend(context.Background()); err != nil {
		d.Warn(err.Error())
	}
	return c.runTUI(d)
}

// ScheduleList prints every schedule in the requested format.
func (c *command) ScheduleList(ctx context.Context, f ScheduleListFlags) error {
	s, err := c.open()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	if err := s.requireBackend(ctx); err != nil {
		return err
	}

	st := s.newStore()
	if err := st.Refresh(ctx); err != nil {
		return err
	}
	return printSchedules(c.out, st.Schedules(), f.Output)
}

func printSchedules(w io.Writer, list []schedule.Schedule, format string) error {
	switch format {
	case "", "table":
		return view.PrintScheduleTable(w, list)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(list); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}

func parseDays(raw []string) ([]schedule.Weekday, error) {
	days := make([]schedule.Weekday, 0, len(raw))
	for _, r := range raw {
		d, err := schedule.ParseWeekday(r)
		if err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, nil
}

// ScheduleAdd creates a schedule from flags on top of the draft defaults.
func (c *command) ScheduleAdd(ctx context.Context, f ScheduleAddFlags) error {
	d := schedule.NewDraft(f.Name)
	if f.Start != "" {
		d.StartTime = f.Start
	}
	if f.End != "" {
		d.EndTime = f.End
	}
	if f.Days != nil {
		days, err := parseDays(f.Days)
		if err != nil {
			return err
		}
		d.Days = days
	}
	for _, a := range f.Apps {
		d = schedule.AddApp(d, a)
	}
	if f.CheckInterval != "" {
		d.CheckIntervalSecs = schedule.ParseCheckInterval(f.CheckInterval)
	}
	if f.GracePeriod != "" {
		d.GracePeriodSecs = schedule.ParseGracePeriod(f.GracePeriod)
	}
	d.Enabled = !f.Disabled

	return c.save(ctx, d)
}

// ScheduleEdit changes the given fields of an existing schedule.
func (c *command) ScheduleEdit(ctx context.Context, f ScheduleEditFlags) error {
	s, err := c.open()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	if err := s.requireBackend(ctx); err != nil {
		return err
	}

	st := s.newStore()
	if err := st.Refresh(ctx); err != nil {
		return err
	}
	sc, ok := st.Get(f.ID)
	if !ok {
		return fmt.Errorf("%w: %d", schedules.ErrNotFound, f.ID)
	}

	if f.Name != "" {
		sc.Name = f.Name
	}
	if f.Start != "" {
		sc.StartTime = f.Start
	}
	if f.End != "" {
		sc.EndTime = f.End
	}
	if f.Days != nil {
		days, err := parseDays(f.Days)
		if err != nil {
			return err
		}
		sc.Days = days
	}
	toggle, err := parseDays(f.ToggleDays)
	if err != nil {
		return err
	}
	for _, d := range toggle {
		sc = schedule.ToggleDay(sc, d)
	}
	if f.Apps != nil {
		sc.ExpectedApps = nil
		for _, a := range f.Apps {
			sc = schedule.AddApp(sc, a)
		}
	}
	if f.RemoveApp >= 0 {
		sc = schedule.RemoveApp(sc, f.RemoveApp)
	}
	for _, a := range f.AddApps {
		sc = schedule.AddApp(sc, a)
	}
	if f.CheckInterval != "" {
		sc.CheckIntervalSecs = schedule.ParseCheckInterval(f.CheckInterval)
	}
	if f.GracePeriod != "" {
		sc.GracePeriodSecs = schedule.ParseGracePeriod(f.GracePeriod)
	}

	return c.finishSave(s, st, st.Save(ctx, sc))
}

func (c *command) save(ctx context.Context, sc schedule.Schedule) error {
	s, err := c.open()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	if err := s.requireBackend(ctx); err != nil {
		return err
	}

	st := s.newStore()
	return c.finishSave(s, st, st.Save(ctx, sc))
}

// finishSave prints the collection after a save. A stale reload still means
// the change was applied, so it is reported but not returned.
func (c *command) finishSave(s *session, st *schedules.Store, err error) error {
	switch {
	case errors.Is(err, schedules.ErrStale):
		s.logger.Warn("schedule list not refreshed", "error", err)
		_, _ = fmt.Fprintln(c.out, "schedule saved; run 'timewarden schedule list' to see the current list")
		return nil
	case err != nil:
		return err
	}
	return printSchedules(c.out, st.Schedules(), "table")
}

// ScheduleDelete removes a schedule after confirmation. A delete the backend
// rejected also raises a desktop alert.
func (c *command) ScheduleDelete(ctx context.Context, f ScheduleDeleteFlags) error {
	s, err := c.open()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	if err := s.requireBackend(ctx); err != nil {
		return err
	}

	st := s.newStore()
	if err := st.Refresh(ctx); err != nil {
		return err
	}
	confirm := c.confirm
	if f.Yes {
		confirm = nil
	}
	err = st.Delete(ctx, f.ID, confirm)
	switch {
	case errors.Is(err, schedules.ErrNotConfirmed):
		_, _ = fmt.Fprintln(c.out, "cancelled")
		return nil
	case gateway.IsRemote(err):
		if aerr := c.alert("Failed to delete schedule", err.Error()); aerr != nil {
			s.logger.Warn("desktop alert failed", "error", aerr)
		}
		return err
	case err != nil:
		return err
	}
	_, _ = fmt.Fprintf(c.out, "deleted schedule %d\n", f.ID)
	return nil
}

// ScheduleToggle enables or disables a schedule.
func (c *command) ScheduleToggle(ctx context.Context, f ScheduleToggleFlags) error {
	s, err := c.open()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	if err := s.requireBackend(ctx); err != nil {
		return err
	}

	st := s.newStore()
	if err := st.Refresh(ctx); err != nil {
		return err
	}
	if err := st.Toggle(ctx, f.ID, f.Enabled); err != nil {
		return err
	}
	state := "disabled"
	if f.Enabled {
		state = "enabled"
	}
	_, _ = fmt.Fprintf(c.out, "schedule %d %s\n", f.ID, state)
	return nil
}
