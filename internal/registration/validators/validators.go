// Package validators holds the pure field validators behind the registration
// schema. Everything here is deterministic and side-effect free.
package validators

import (
	"math"
	"strings"
	"time"
	"unicode"
)

// Requirement is one atomic password-complexity predicate.
type Requirement struct {
	ID    string
	Label string
	Test  func(password string) bool
}

// Requirements lists the five password requirements in display order.
var Requirements = []Requirement{
	{
		ID:    "length",
		Label: "At least 8 characters",
		Test:  func(pw string) bool { return len([]rune(pw)) >= 8 },
	},
	{
		ID:    "uppercase",
		Label: "Contains an uppercase letter",
		Test:  func(pw string) bool { return strings.ContainsFunc(pw, unicode.IsUpper) },
	},
	{
		ID:    "lowercase",
		Label: "Contains a lowercase letter",
		Test:  func(pw string) bool { return strings.ContainsFunc(pw, unicode.IsLower) },
	},
	{
		ID:    "number",
		Label: "Contains a number",
		Test:  func(pw string) bool { return strings.ContainsFunc(pw, unicode.IsDigit) },
	},
	{
		ID:    "special",
		Label: "Contains a special character",
		Test: func(pw string) bool {
			return strings.ContainsFunc(pw, func(r rune) bool {
				return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r)
			})
		},
	},
}

// Level labels a strength score for display.
type Level string

const (
	LevelWeak   Level = "Weak"
	LevelFair   Level = "Fair"
	LevelGood   Level = "Good"
	LevelStrong Level = "Strong"
	// LevelVeryStrong exists for presentation styling but is never produced
	// by PasswordStrength: the level table tops out at Strong for score 4.
	LevelVeryStrong Level = "Very Strong"
)

// levelTable maps a 0-4 score to its label. The duplicate first entry keeps
// scores 0 and 1 both at Weak.
var levelTable = [5]Level{LevelWeak, LevelWeak, LevelFair, LevelGood, LevelStrong}

// Strength is derived from a password on every change and never persisted.
type Strength struct {
	Score           int
	Level           Level
	MetRequirements []string
}

// PasswordStrength scores a password on a 0-4 scale. The raw score blends
// length (40%), requirement variety (60%), and a 0.1 bonus for a 12+ rune
// password containing a non-alphanumeric rune, capped at 1.0.
func PasswordStrength(password string) Strength {
	if password == "" {
		return Strength{Score: 0, Level: LevelWeak}
	}

	var met []string
	for _, req := range Requirements {
		if req.Test(password) {
			met = append(met, req.ID)
		}
	}

	runes := len([]rune(password))
	lengthScore := math.Min(float64(runes)/12, 1)
	varietyScore := float64(len(met)) / float64(len(Requirements))

	bonus := 0.0
	if runes >= 12 && strings.ContainsFunc(password, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		bonus = 0.1
	}

	raw := math.Min(lengthScore*0.4+varietyScore*0.6+bonus, 1)
	score := int(math.Round(raw * 4))

	idx := score
	if idx > len(levelTable)-1 {
		idx = len(levelTable) - 1
	}

	return Strength{Score: score, Level: levelTable[idx], MetRequirements: met}
}

// disposableDomains is the fixed set of known temporary-mailbox providers.
var disposableDomains = map[string]struct{}{
	"mailinator.com":   {},
	"trashmail.com":    {},
	"10minutemail.com": {},
	"guerrillamail.com": {},
	"tempmail.com":     {},
	"yopmail.com":      {},
}

// IsDisposableEmail reports whether the address's domain belongs to a known
// disposable provider. Addresses without a domain are not disposable.
func IsDisposableEmail(email string) bool {
	_, domain, ok := strings.Cut(email, "@")
	if !ok || domain == "" {
		return false
	}
	_, found := disposableDomains[strings.ToLower(domain)]
	return found
}

const dateLayout = "2006-01-02"

// IsAdult reports whether a date of birth yields an age of at least 18 whole
// years. Absent dates pass (the field is optional); unparseable dates fail.
// Turning exactly 18 today counts as adult.
func IsAdult(dateOfBirth string) bool {
	return isAdultAt(dateOfBirth, time.Now())
}

func isAdultAt(dateOfBirth string, now time.Time) bool {
	if dateOfBirth == "" {
		return true
	}
	born, err := time.Parse(dateLayout, dateOfBirth)
	if err != nil {
		return false
	}

	years := now.Year() - born.Year()
	if years > 18 {
		return true
	}
	if years == 18 {
		monthDiff := int(now.Month()) - int(born.Month())
		if monthDiff > 0 {
			return true
		}
		if monthDiff == 0 && now.Day() >= born.Day() {
			return true
		}
	}
	return false
}

// NormalizePhone strips everything but digits and a leading "+", prepending
// the "+" when missing. Empty input stays empty.
func NormalizePhone(raw string) string {
	if raw == "" {
		return ""
	}
	var b strings.Builder
	for i, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			continue
		}
		if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if s == "" {
		return "+"
	}
	if !strings.HasPrefix(s, "+") {
		return "+" + s
	}
	return s
}
