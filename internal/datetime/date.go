// Package datetime pulls calendar dates and clock times out of free-form chat
// text. English and Roman Urdu phrasing are both understood. Every function takes
// the reference instant explicitly; nothing reads the wall clock.
package datetime

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	dayAfterRe = regexp.MustCompile(`\b(day after tomorrow|parso|parson|parsoon|parsun)\b`)
	tomorrowRe = regexp.MustCompile(`\b(tomorrow|tmrw|tmr|kal)\b`)
	todayRe    = regexp.MustCompile(`\b(today|aaj|aj)\b`)
	nextWeekRe = regexp.MustCompile(`\b(next week|agle hafte|agle haftay)\b`)
	nextRe     = regexp.MustCompile(`\b(next|agle|agla|agli)\b`)

	weekdayRe = regexp.MustCompile(`\b(sunday|sun|itwar|monday|mon|peer|pir|tuesday|tues|tue|mangal|wednesday|wed|budh|thursday|thurs|thur|thu|jumeraat|jumerat|jumrat|friday|fri|jumma|juma|saturday|sat|hafta)\b`)

	dayMonthRe = regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)?\s*(?:of\s+)?(jan|january|feb|february|mar|march|apr|april|may|jun|june|jul|july|aug|august|sep|sept|september|oct|october|nov|november|dec|december)\b`)
	monthDayRe = regexp.MustCompile(`\b(jan|january|feb|february|mar|march|apr|april|may|jun|june|jul|july|aug|august|sep|sept|september|oct|october|nov|november|dec|december)\s+(\d{1,2})(?:st|nd|rd|th)?\b`)
	bareDayRe  = regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)?\b`)
)

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday, "itwar": time.Sunday,
	"monday": time.Monday, "mon": time.Monday, "peer": time.Monday, "pir": time.Monday,
	"tuesday": time.Tuesday, "tues": time.Tuesday, "tue": time.Tuesday, "mangal": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday, "budh": time.Wednesday,
	"thursday": time.Thursday, "thurs": time.Thursday, "thur": time.Thursday, "thu": time.Thursday,
	"jumeraat": time.Thursday, "jumerat": time.Thursday, "jumrat": time.Thursday,
	"friday": time.Friday, "fri": time.Friday, "jumma": time.Friday, "juma": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday, "hafta": time.Saturday,
}

var months = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

// ExtractDate resolves a calendar date mentioned in text relative to now.
// The result is local midnight in now's location. ok is false when the text
// carries no date signal.
func ExtractDate(text string, now time.Time) (time.Time, bool) {
	s := normalize(text)
	if s == "" {
		return time.Time{}, false
	}
	today := Midnight(now)

	if offset, ok := relativeOffset(s); ok {
		return today.AddDate(0, 0, offset), true
	}

	if m := weekdayRe.FindStringSubmatch(s); m != nil {
		target := weekdays[m[1]]
		diff := int(target) - int(today.Weekday())
		if diff <= 0 {
			diff += 7
		}
		if nextRe.MatchString(s) || nextWeekRe.MatchString(s) {
			diff += 7
		}
		return today.AddDate(0, 0, diff), true
	}

	if m := dayMonthRe.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		return nextOccurrenceOf(today, months[m[2]], day)
	}
	if m := monthDayRe.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[2])
		return nextOccurrenceOf(today, months[m[1]], day)
	}

	for _, idx := range bareDayRe.FindAllStringSubmatchIndex(s, -1) {
		if partOfTime(s, idx[0], idx[1]) {
			continue
		}
		day, _ := strconv.Atoi(s[idx[2]:idx[3]])
		if day < 1 || day > 31 {
			continue
		}
		return nextDayOfMonth(today, day)
	}

	return time.Time{}, false
}

// Midnight truncates t to the start of its calendar day in t's location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func relativeOffset(s string) (int, bool) {
	switch {
	case dayAfterRe.MatchString(s):
		return 2, true
	case tomorrowRe.MatchString(s):
		return 1, true
	case todayRe.MatchString(s):
		return 0, true
	}
	return 0, false
}

func nextOccurrenceOf(today time.Time, month time.Month, day int) (time.Time, bool) {
	if day < 1 || day > 31 {
		return time.Time{}, false
	}
	for year := today.Year(); year <= today.Year()+8; year++ {
		candidate := time.Date(year, month, day, 0, 0, 0, 0, today.Location())
		if candidate.Month() != month {
			// 31 nov, 29 feb in a common year
			continue
		}
		if !candidate.Before(today) {
			return candidate, true
		}
	}
	return time.Time{}, false
}

func nextDayOfMonth(today time.Time, day int) (time.Time, bool) {
	year, month := today.Year(), today.Month()
	for i := 0; i <= 12; i++ {
		candidate := time.Date(year, month+time.Month(i), day, 0, 0, 0, 0, today.Location())
		if candidate.Day() != day {
			continue
		}
		if !candidate.Before(today) {
			return candidate, true
		}
	}
	return time.Time{}, false
}

// partOfTime reports whether the number at s[start:end] belongs to a clock
// expression such as "5 pm", "5:30", "6 shaam", "raat 12" or "4 baje".
func partOfTime(s string, start, end int) bool {
	if start > 0 && s[start-1] == ':' {
		return true
	}
	rest := strings.TrimLeft(s[end:], " ")
	if strings.HasPrefix(rest, ":") {
		return true
	}
	if m := ampmSuffixRe.FindString(rest); m != "" {
		return true
	}
	if bajeSuffixRe.MatchString(rest) || dayPartPrefixRe.MatchString(rest) {
		return true
	}
	return dayPartSuffixRe.MatchString(s[:start])
}

func normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
