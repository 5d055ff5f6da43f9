package scheduling

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Clock supplies the current instant.
type Clock func() time.Time

var clockTextRe = regexp.MustCompile(`^(\d{1,2})(?:[:.](\d{2}))?\s*(?:([ap])\.?\s?m\.?)?$`)

// ParseClock converts time-of-day text into minutes after midnight. Both
// 12-hour ("9:00 AM", "12 pm") and 24-hour ("17:30") forms are accepted;
// "24:00" is allowed as an end-of-day bound.
func ParseClock(text string) (int, error) {
	s := strings.ToLower(strings.TrimSpace(text))
	m := clockTextRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("scheduling: unrecognised time of day %q", text)
	}
	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	if minute > 59 {
		return 0, fmt.Errorf("scheduling: minutes out of range in %q", text)
	}

	switch m[3] {
	case "a", "p":
		if hour < 1 || hour > 12 {
			return 0, fmt.Errorf("scheduling: hour out of range in %q", text)
		}
		if hour == 12 {
			hour = 0
		}
		if m[3] == "p" {
			hour += 12
		}
	default:
		if hour == 24 && minute == 0 {
			return 24 * 60, nil
		}
		if hour > 23 {
			return 0, fmt.Errorf("scheduling: hour out of range in %q", text)
		}
	}
	return hour*60 + minute, nil
}

// MinuteOfDay returns t's wall clock as minutes after midnight.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

func formatMinutes(minutes int) string {
	return time.Date(2000, 1, 1, 0, minutes, 0, 0, time.UTC).Format("3:04 PM")
}
