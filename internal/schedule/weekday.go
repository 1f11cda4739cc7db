package schedule

import (
	"fmt"
	"strings"
	"time"
)

// Weekday is a day token in canonical weekly order, Mon first.
type Weekday int

const (
	Mon Weekday = iota
	Tue
	Wed
	Thu
	Fri
	Sat
	Sun
)

// AllDays lists every weekday in canonical order.
var AllDays = []Weekday{Mon, Tue, Wed, Thu, Fri, Sat, Sun}

var dayTokens = [...]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// Valid reports whether d is one of the seven canonical days.
func (d Weekday) Valid() bool { return d >= Mon && d <= Sun }

func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(d))
	}
	return dayTokens[d]
}

// ParseWeekday accepts the three letter token or the full English name, in any case.
func ParseWeekday(s string) (Weekday, error) {
	t := strings.ToLower(strings.TrimSpace(s))
	for i, tok := range dayTokens {
		if t == strings.ToLower(tok) {
			return Weekday(i), nil
		}
	}
	for d := Mon; d <= Sun; d++ {
		if t == strings.ToLower(d.Std().String()) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

// FromTime converts a time.Weekday (Sunday = 0) to the Monday-first enumeration.
func FromTime(wd time.Weekday) Weekday {
	return Weekday((int(wd) + 6) % 7)
}

// Std converts back to time.Weekday.
func (d Weekday) Std() time.Weekday {
	return time.Weekday((int(d) + 1) % 7)
}

func (d Weekday) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid weekday %d", int(d))
	}
	return []byte(d.String()), nil
}

func (d *Weekday) UnmarshalText(b []byte) error {
	v, err := ParseWeekday(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}
