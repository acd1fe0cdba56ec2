package notify

import (
	"fmt"
	"strings"
	"time"
)

// Window is the weekly slot in which notifications may go out. Hours are
// inclusive, so 9-12 covers 09:00 to 12:59.
type Window struct {
	Days      []time.Weekday
	StartHour int
	EndHour   int
	Location  *time.Location
}

// DefaultWindow is Monday and Thursday, 9 to 12, in loc.
func DefaultWindow(loc *time.Location) Window {
	return Window{Days: []time.Weekday{time.Monday, time.Thursday}, StartHour: 9, EndHour: 12, Location: loc}
}

// Validate checks hour bounds.
func (w Window) Validate() error {
	if w.StartHour < 0 || w.StartHour > 23 || w.EndHour < 0 || w.EndHour > 23 || w.StartHour > w.EndHour {
		return fmt.Errorf("%w: hours %d-%d", ErrInvalidWindow, w.StartHour, w.EndHour)
	}
	return nil
}

// Local converts t to the window's zone.
func (w Window) Local(t time.Time) time.Time {
	if w.Location == nil {
		return t
	}
	return t.In(w.Location)
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	t = w.Local(t)
	if t.Hour() < w.StartHour || t.Hour() > w.EndHour {
		return false
	}
	for _, d := range w.Days {
		if t.Weekday() == d {
			return true
		}
	}
	return false
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ParseDays reads a comma separated weekday list such as "monday,thu".
func ParseDays(s string) ([]time.Weekday, error) {
	var out []time.Weekday
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		d, ok := weekdays[part]
		if !ok {
			return nil, fmt.Errorf("%w: unknown day %q", ErrInvalidWindow, part)
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no days", ErrInvalidWindow)
	}
	return out, nil
}
