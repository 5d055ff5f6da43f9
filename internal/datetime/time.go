package datetime

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// TimeMatch is a clock time found in text.
type TimeMatch struct {
	Hour   int
	Minute int
	// ImpliedDate is set when the text also names a relative day ("kal 5 pm").
	ImpliedDate *time.Time
	// Inferred marks a reading where am/pm was guessed rather than stated.
	Inferred bool
}

// Alternate returns the same clock reading in the opposite half of the day.
func (m TimeMatch) Alternate() TimeMatch {
	alt := m
	if m.Hour >= 12 {
		alt.Hour = m.Hour - 12
	} else {
		alt.Hour = m.Hour + 12
	}
	return alt
}

// On places the match on the calendar day of date, in date's location.
func (m TimeMatch) On(date time.Time) time.Time {
	y, mo, d := date.Date()
	return time.Date(y, mo, d, m.Hour, m.Minute, 0, 0, date.Location())
}

type dayPart struct {
	base   int
	adjust func(hour int) int
}

var dayParts = map[string]dayPart{
	"subha":     {base: 9, adjust: morningHour},
	"subah":     {base: 9, adjust: morningHour},
	"morning":   {base: 9, adjust: morningHour},
	"dopahar":   {base: 13, adjust: afternoonHour},
	"dopehar":   {base: 13, adjust: afternoonHour},
	"afternoon": {base: 13, adjust: afternoonHour},
	"shaam":     {base: 18, adjust: afternoonHour},
	"sham":      {base: 18, adjust: afternoonHour},
	"evening":   {base: 18, adjust: afternoonHour},
	"raat":      {base: 21, adjust: nightHour},
	"night":     {base: 21, adjust: nightHour},
}

var (
	ampmRe           = regexp.MustCompile(`\b(\d{1,2})(?:[:.](\d{2}))?\s*([ap])\.?\s?m\b\.?`)
	clock24Re        = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`)
	dayPartRe        = regexp.MustCompile(`\b(subha|subah|morning|dopahar|dopehar|afternoon|shaam|sham|evening|raat|night)\b`)
	hourAfterPartRe  = regexp.MustCompile(`^\s*(\d{1,2})(?::(\d{2}))?\b`)
	hourBeforePartRe = regexp.MustCompile(`\b(\d{1,2})(?::(\d{2}))?\s*(?:(?:baje|bje|bajay)\s*)?$`)
	bareHourRe       = regexp.MustCompile(`\b(\d{1,2})(?:\s*(?:baje|bje|bajay|o'?clock))?\b`)
	ampmSuffixRe     = regexp.MustCompile(`^([ap])\.?\s?m\b`)
	bajeSuffixRe     = regexp.MustCompile(`^(baje|bje|bajay|o'?clock)\b`)
	dayPartPrefixRe  = regexp.MustCompile(`^(subha|subah|morning|dopahar|dopehar|afternoon|shaam|sham|evening|raat|night)\b`)
	dayPartSuffixRe  = regexp.MustCompile(`\b(subha|subah|morning|dopahar|dopehar|afternoon|shaam|sham|evening|raat|night)\s*$`)
)

// ExtractTime finds a clock time in text. now supplies the current hour used to
// disambiguate bare numbers and the base for relative day markers.
func ExtractTime(text string, now time.Time) (TimeMatch, bool) {
	s := normalize(text)
	if s == "" {
		return TimeMatch{}, false
	}

	match, ok := extractClock(s, now)
	if !ok {
		return TimeMatch{}, false
	}

	if offset, ok := relativeOffset(s); ok {
		d := Midnight(now).AddDate(0, 0, offset)
		match.ImpliedDate = &d
	} else if nextWeekRe.MatchString(s) {
		d := Midnight(now).AddDate(0, 0, 7)
		match.ImpliedDate = &d
	}
	return match, true
}

func extractClock(s string, now time.Time) (TimeMatch, bool) {
	for _, m := range ampmRe.FindAllStringSubmatch(s, -1) {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if hour < 1 || hour > 12 || minute > 59 {
			continue
		}
		if m[3] == "p" && hour < 12 {
			hour += 12
		}
		if m[3] == "a" && hour == 12 {
			hour = 0
		}
		return TimeMatch{Hour: hour, Minute: minute}, true
	}

	if m := clock24Re.FindStringSubmatch(s); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		// "5:30" could be either half; "05:30" or "17:30" could not.
		inferred := hour >= 1 && hour <= 11 && len(m[1]) == 1
		return TimeMatch{Hour: hour, Minute: minute, Inferred: inferred}, true
	}

	if idx := dayPartRe.FindStringSubmatchIndex(s); idx != nil {
		part := dayParts[s[idx[2]:idx[3]]]
		hour, minute, ok := hourNextToDayPart(s, idx[0], idx[1])
		if !ok {
			return TimeMatch{Hour: part.base}, true
		}
		if hour > 23 || minute > 59 {
			return TimeMatch{}, false
		}
		return TimeMatch{Hour: part.adjust(hour), Minute: minute}, true
	}

	for _, idx := range bareHourRe.FindAllStringSubmatchIndex(s, -1) {
		hour, _ := strconv.Atoi(s[idx[2]:idx[3]])
		switch {
		case hour >= 13 && hour <= 23:
			return TimeMatch{Hour: hour}, true
		case hour == 12:
			return TimeMatch{Hour: 12, Inferred: true}, true
		case hour >= 1 && hour <= 11:
			if hour <= now.Hour() {
				hour += 12
			}
			return TimeMatch{Hour: hour, Inferred: true}, true
		}
	}
	return TimeMatch{}, false
}

// hourNextToDayPart reads the number written directly before ("6 shaam") or
// after ("shaam 6 baje") the marker at s[start:end]. Numbers that belong to a
// date such as "20 oct" are not hours.
func hourNextToDayPart(s string, start, end int) (hour, minute int, ok bool) {
	if m := hourBeforePartRe.FindStringSubmatchIndex(s[:start]); m != nil && !inDatePhrase(s, m[2]) {
		return readHourMinute(s, m)
	}
	if m := hourAfterPartRe.FindStringSubmatchIndex(s[end:]); m != nil && !inDatePhrase(s, end+m[2]) {
		for i := range m {
			if m[i] >= 0 {
				m[i] += end
			}
		}
		return readHourMinute(s, m)
	}
	return 0, 0, false
}

func readHourMinute(s string, m []int) (hour, minute int, ok bool) {
	hour, _ = strconv.Atoi(s[m[2]:m[3]])
	if m[4] >= 0 {
		minute, _ = strconv.Atoi(s[m[4]:m[5]])
	}
	return hour, minute, true
}

// inDatePhrase reports whether the byte at pos falls inside a day-and-month
// phrase like "20 oct" or "oct 20".
func inDatePhrase(s string, pos int) bool {
	for _, re := range []*regexp.Regexp{dayMonthRe, monthDayRe} {
		for _, span := range re.FindAllStringIndex(s, -1) {
			if pos >= span[0] && pos < span[1] {
				return true
			}
		}
	}
	return false
}

func morningHour(hour int) int {
	if hour > 12 {
		return hour - 12
	}
	return hour
}

func afternoonHour(hour int) int {
	if hour < 12 {
		return hour + 12
	}
	return hour
}

func nightHour(hour int) int {
	if hour == 12 {
		return 0
	}
	return afternoonHour(hour)
}

// FormatClock renders a 24-hour clock reading as "5:00 PM".
func FormatClock(hour, minute int) string {
	return time.Date(2000, 1, 1, hour, minute, 0, 0, time.UTC).Format("3:04 PM")
}

// FormatTime renders t's wall clock as "5:00 PM".
func FormatTime(t time.Time) string {
	return t.Format("3:04 PM")
}

// FormatDate renders t as "Monday, January 2".
func FormatDate(t time.Time) string {
	return t.Format("Monday, January 2")
}

// FormatSlot renders a start/end pair as "9:00 AM - 9:30 AM".
func FormatSlot(start, end time.Time) string {
	return fmt.Sprintf("%s - %s", FormatTime(start), FormatTime(end))
}

// HasSignal reports whether text names a date or a time.
func HasSignal(text string, now time.Time) bool {
	if _, ok := ExtractDate(text, now); ok {
		return true
	}
	_, ok := ExtractTime(text, now)
	return ok
}
