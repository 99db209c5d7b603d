package password

import (
	"strings"
	"unicode"
)

// Strength is the advisory scoring result used by the change/reset flows.
// It never gates login.
type Strength struct {
	Valid    bool
	Score    int // 0..4
	Feedback []string
}

// Common passwords rejected outright. Kept deliberately small: the point is
// catching the worst offenders, not replacing a breach-corpus check.
var commonPasswords = map[string]struct{}{
	"password":    {},
	"password1":   {},
	"password123": {},
	"12345678":    {},
	"123456789":   {},
	"1234567890":  {},
	"qwerty123":   {},
	"qwertyuiop":  {},
	"iloveyou":    {},
	"admin123":    {},
	"letmein1":    {},
	"welcome1":    {},
	"sunshine":    {},
	"football":    {},
	"monkey123":   {},
}

// Score rates a candidate password 0..4. Valid iff Score >= 2.
func Score(password string) Strength {
	if len(password) < MinLength {
		return Strength{
			Score:    0,
			Feedback: []string{"password must be at least 8 characters"},
		}
	}
	if len(password) > MaxLength {
		return Strength{
			Score:    0,
			Feedback: []string{"password must be at most 128 characters"},
		}
	}

	if _, common := commonPasswords[strings.ToLower(password)]; common {
		return Strength{
			Score:    0,
			Feedback: []string{"password is too common"},
		}
	}

	var feedback []string
	score := 1 // passed the length floor

	if len(password) >= 12 {
		score++
	} else {
		feedback = append(feedback, "use 12 characters or more for a stronger password")
	}

	classes := characterClasses(password)
	switch {
	case classes >= 4:
		score += 2
	case classes == 3:
		score++
		feedback = append(feedback, "add symbols to strengthen the password")
	default:
		feedback = append(feedback, "mix upper case, lower case, digits and symbols")
	}

	if hasLongRun(password, 3) {
		score--
		feedback = append(feedback, "avoid repeating the same character")
	}

	if score < 0 {
		score = 0
	}
	if score > 4 {
		score = 4
	}

	return Strength{
		Valid:    score >= 2,
		Score:    score,
		Feedback: feedback,
	}
}

func characterClasses(s string) int {
	var lower, upper, digit, other bool
	for _, r := range s {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			other = true
		}
	}
	n := 0
	for _, ok := range []bool{lower, upper, digit, other} {
		if ok {
			n++
		}
	}
	return n
}

func hasLongRun(s string, run int) bool {
	count := 0
	var prev rune
	for i, r := range s {
		if i > 0 && r == prev {
			count++
			if count+1 >= run {
				return true
			}
		} else {
			count = 0
		}
		prev = r
	}
	return false
}
