package conversation

import (
	"regexp"
	"strings"
	"unicode"
)

var affirmativeTokens = tokenSet(
	"yes", "y", "haan", "han", "ha", "ji", "g", "jee", "ok", "okay", "sure", "confirm",
	"bilkul", "theek", "thik", "done", "book", "book kardein", "yeah", "yep",
)

var negativeTokens = tokenSet(
	"no", "n", "nah", "nahi", "nahin", "cancel", "stop", "dont", "don't", "mat", "rehne do",
)

var thanksTokens = tokenSet(
	"thanks", "thank you", "thankyou", "thx", "shukriya", "shukria", "jazakallah", "jazak allah",
)

var (
	greetingRe      = regexp.MustCompile(`^(hi|hello|hey|salam|salaam|assalam|assalamualaikum|aoa|good morning|good evening|good afternoon)\b`)
	bookingIntentRe = regexp.MustCompile(`\b(appointment|book|booking|schedule|milna|mil sakta|time chahiye)\b`)
	infoSubjectRe   = regexp.MustCompile(`\b(doctor|dr|clinic|hospital)\b`)
	infoQuestionRe  = regexp.MustCompile(`\b(time|timing|timings|available|availability|open|close|hours|kab)\b`)
	cancelIntentRe  = regexp.MustCompile(`\b(cancel|remove|delete)\b`)
	namePrefixRe    = regexp.MustCompile(`^(my name is|my name's|name is|i am|i'm|im|this is|mera naam|mera name|naam)\s+`)
	nameSuffixRe    = regexp.MustCompile(`\s+(hai|he|h)$`)
)

const maxNameLength = 60

func tokenSet(tokens ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// normalizeReply lowercases, drops trailing punctuation and collapses spaces
// so "Yes!" and " yes " compare equal.
func normalizeReply(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = strings.TrimRightFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) && r != '\''
	})
	return strings.Join(strings.Fields(s), " ")
}

func isAffirmative(norm string) bool {
	_, ok := affirmativeTokens[norm]
	return ok
}

func isNegative(norm string) bool {
	_, ok := negativeTokens[norm]
	return ok
}

func isThanks(norm string) bool {
	_, ok := thanksTokens[norm]
	return ok
}

func isGreeting(norm string) bool { return greetingRe.MatchString(norm) }

func isBookingIntent(norm string) bool { return bookingIntentRe.MatchString(norm) }

func isInfoIntent(norm string) bool {
	return infoSubjectRe.MatchString(norm) && infoQuestionRe.MatchString(norm)
}

func isCancelIntent(norm string) bool { return cancelIntentRe.MatchString(norm) }

// cleanName strips "my name is"/"mera naam ... hai" framing and rejects text
// that cannot be a name.
func cleanName(text string) (string, bool) {
	name := strings.Join(strings.Fields(text), " ")
	name = strings.TrimRightFunc(name, unicode.IsPunct)
	if lower := strings.ToLower(name); len(lower) == len(name) {
		if loc := namePrefixRe.FindStringIndex(lower); loc != nil {
			name, lower = name[loc[1]:], lower[loc[1]:]
		}
		if loc := nameSuffixRe.FindStringIndex(lower); loc != nil {
			name = name[:loc[0]]
		}
	}
	name = strings.TrimSpace(name)
	if name == "" || len([]rune(name)) > maxNameLength {
		return "", false
	}
	for _, r := range name {
		if unicode.IsLetter(r) {
			return name, true
		}
	}
	return "", false
}
