package view

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"github.com/loykin/timewarden/internal/schedule"
)

var scheduleHeader = []string{"ID", "NAME", "WINDOW", "DAYS", "APPS", "CHECK", "GRACE", "ENABLED"}

// ScheduleRows returns the table rows for schedules, header first.
func ScheduleRows(schedules []schedule.Schedule) [][]string {
	data := [][]string{scheduleHeader}
	for _, s := range schedules {
		id := "-"
		if s.Persisted() {
			id = strconv.FormatInt(s.IDValue(), 10)
		}
		days := make([]string, len(s.Days))
		for i, d := range s.Days {
			days[i] = d.String()
		}
		apps := strings.Join(s.ExpectedApps, ", ")
		if apps == "" {
			apps = "-"
		}
		data = append(data, []string{
			id,
			s.Name,
			shortTime(s.StartTime) + "-" + shortTime(s.EndTime),
			strings.Join(days, " "),
			apps,
			fmt.Sprintf("%ds", s.CheckIntervalSecs),
			fmt.Sprintf("%ds", s.GracePeriodSecs),
			strconv.FormatBool(s.Enabled),
		})
	}
	return data
}

// shortTime drops the seconds of a canonical HH:MM:SS value.
func shortTime(t string) string {
	if len(t) == 8 && strings.HasSuffix(t, ":00") {
		return t[:5]
	}
	return t
}

// PrintScheduleTable writes schedules to w as a boxed table.
func PrintScheduleTable(w io.Writer, schedules []schedule.Schedule) error {
	if len(schedules) == 0 {
		_, err := fmt.Fprintln(w, "no schedules")
		return err
	}
	table := pterm.DefaultTable
	table.Boxed = true
	str, err := table.WithHasHeader().WithData(ScheduleRows(schedules)).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, str)
	return err
}
