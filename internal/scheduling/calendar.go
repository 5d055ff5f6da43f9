package scheduling

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Window is a parsed, active working block for one weekday.
type Window struct {
	Weekday     time.Weekday
	StartMinute int
	EndMinute   int
}

// Contains reports whether [start, end) minutes fall inside the window.
func (w Window) Contains(start, end int) bool {
	return w.StartMinute <= start && end <= w.EndMinute
}

func (w Window) String() string {
	return fmt.Sprintf("%s to %s", formatMinutes(w.StartMinute), formatMinutes(w.EndMinute))
}

// Calendar is a read-only view of a clinician's recurring weekly template.
// Inactive windows and windows that do not parse to start < end are dropped.
type Calendar struct {
	byDay map[time.Weekday][]Window
}

// NewCalendar builds a Calendar from stored availability rows.
func NewCalendar(rows []AvailabilityWindow) Calendar {
	cal := Calendar{byDay: make(map[time.Weekday][]Window)}
	for _, row := range rows {
		if !row.Active || row.Weekday < time.Sunday || row.Weekday > time.Saturday {
			continue
		}
		start, err := ParseClock(row.Start)
		if err != nil {
			continue
		}
		end, err := ParseClock(row.End)
		if err != nil || start >= end {
			continue
		}
		cal.byDay[row.Weekday] = append(cal.byDay[row.Weekday], Window{
			Weekday:     row.Weekday,
			StartMinute: start,
			EndMinute:   end,
		})
	}
	for day := range cal.byDay {
		windows := cal.byDay[day]
		sort.Slice(windows, func(i, j int) bool {
			return windows[i].StartMinute < windows[j].StartMinute
		})
	}
	return cal
}

// Windows returns the active windows for weekday in chronological order.
func (c Calendar) Windows(weekday time.Weekday) []Window {
	return c.byDay[weekday]
}

// IsAvailable reports whether the clinician works at all on weekday.
func (c Calendar) IsAvailable(weekday time.Weekday) bool {
	return len(c.byDay[weekday]) > 0
}

// Fits returns true when [start, end) minutes lie wholly inside one window.
func (c Calendar) Fits(weekday time.Weekday, start, end int) bool {
	for _, w := range c.byDay[weekday] {
		if w.Contains(start, end) {
			return true
		}
	}
	return false
}

// WeeklySummary lists working days Monday first, e.g. "Monday: 9:00 AM to 5:00 PM".
func (c Calendar) WeeklySummary() []string {
	order := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday}
	lines := make([]string, 0, len(c.byDay))
	for _, day := range order {
		windows := c.byDay[day]
		if len(windows) == 0 {
			continue
		}
		parts := make([]string, 0, len(windows))
		for _, w := range windows {
			parts = append(parts, w.String())
		}
		lines = append(lines, fmt.Sprintf("%s: %s", day, strings.Join(parts, ", ")))
	}
	return lines
}
