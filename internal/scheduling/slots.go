package scheduling

import (
	"time"
)

// BuildSlots steps through each window of day's weekday in increments of
// duration, keeping only candidates that fit before the window end and do not
// overlap a blocking appointment. day is interpreted as a calendar date in loc.
func BuildSlots(cal Calendar, day time.Time, loc *time.Location, duration time.Duration, booked []Appointment) []Slot {
	step := int(duration / time.Minute)
	if step <= 0 {
		return nil
	}
	y, m, d := day.Date()
	weekday := time.Date(y, m, d, 0, 0, 0, 0, loc).Weekday()

	var slots []Slot
	for _, w := range cal.Windows(weekday) {
		for minute := w.StartMinute; minute+step <= w.EndMinute; minute += step {
			start := time.Date(y, m, d, 0, minute, 0, 0, loc)
			end := start.Add(duration)
			if overlapsAny(booked, start, end) || overlapsSlots(slots, start, end) {
				continue
			}
			slots = append(slots, Slot{Start: start, End: end})
		}
	}
	return slots
}

// FilterAfter drops slots that do not start strictly after now.
func FilterAfter(slots []Slot, now time.Time) []Slot {
	out := make([]Slot, 0, len(slots))
	for _, s := range slots {
		if s.Start.After(now) {
			out = append(out, s)
		}
	}
	return out
}

func overlapsAny(appts []Appointment, start, end time.Time) bool {
	for i := range appts {
		if appts[i].Blocks() && appts[i].Overlaps(start, end) {
			return true
		}
	}
	return false
}

func overlapsSlots(slots []Slot, start, end time.Time) bool {
	for _, s := range slots {
		if start.Before(s.End) && s.Start.Before(end) {
			return true
		}
	}
	return false
}
