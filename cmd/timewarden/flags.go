package main

import "time"

// GlobalFlags holds the persistent flags shared by every command.
type GlobalFlags struct {
	ConfigPath string
	APIUrl     string
	APITimeout time.Duration
	LogLevel   string
}

type StatusFlags struct {
	Usage bool // also fetch today's sessions and totals
}

type WatchFlags struct {
	Dashboard bool // start on the dashboard view instead of status
}

type ScheduleListFlags struct {
	Output string // table, json or yaml
}

// ScheduleAddFlags describe a new schedule. Empty values keep the draft
// defaults.
type ScheduleAddFlags struct {
	Name          string
	Start         string
	End           string
	Days          []string
	Apps          []string
	CheckInterval string
	GracePeriod   string
	Disabled      bool
}

// ScheduleEditFlags change an existing schedule. Empty values leave the
// field as it is.
type ScheduleEditFlags struct {
	ID            int64
	Name          string
	Start         string
	End           string
	Days          []string
	ToggleDays    []string
	Apps          []string
	AddApps       []string
	RemoveApp     int
	CheckInterval string
	GracePeriod   string
}

type ScheduleDeleteFlags struct {
	ID  int64
	Yes bool // skip the confirmation prompt
}

type ScheduleToggleFlags struct {
	ID      int64
	Enabled bool
}

type ServeFlags struct {
	Listen      string
	DSN         string
	ManualProbe bool
}
