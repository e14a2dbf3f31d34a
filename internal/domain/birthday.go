package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidBirthday = errors.New("invalid birthday")

// ParseBirthday parses "YYYY-MM-DD" or "MM-DD" into its components.
// The year is optional; 0 means the user did not share it.
func ParseBirthday(s string) (month time.Month, day, year int, err error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, "-")
	switch len(parts) {
	case 2:
		// MM-DD
	case 3:
		year, err = strconv.Atoi(parts[0])
		if err != nil || year < 1900 || year > time.Now().Year() {
			return 0, 0, 0, fmt.Errorf("%w: bad year in %q", ErrInvalidBirthday, s)
		}
		parts = parts[1:]
	default:
		return 0, 0, 0, fmt.Errorf("%w: expected YYYY-MM-DD or MM-DD, got %q", ErrInvalidBirthday, s)
	}

	m, err := strconv.Atoi(parts[0])
	if err != nil || m < 1 || m > 12 {
		return 0, 0, 0, fmt.Errorf("%w: bad month in %q", ErrInvalidBirthday, s)
	}
	day, err = strconv.Atoi(parts[1])
	if err != nil || day < 1 || day > daysInMonth(time.Month(m)) {
		return 0, 0, 0, fmt.Errorf("%w: bad day in %q", ErrInvalidBirthday, s)
	}
	return time.Month(m), day, year, nil
}

// daysInMonth returns the maximum valid day for a month, year-agnostic.
// February allows 29 so leap-day birthdays can be registered.
func daysInMonth(m time.Month) int {
	switch m {
	case time.February:
		return 29
	case time.April, time.June, time.September, time.November:
		return 30
	default:
		return 31
	}
}

// MatchBirthdays returns every user whose (month, day) equals the
// (month, day) of target shifted forward by offsetDays. Offset 0 asks for
// today's celebrants, 1 for tomorrow's.
//
// Leap-day policy: a user born on Feb 29 matches only when the comparison
// date is itself Feb 29. In non-leap years target+offset never lands on
// Feb 29, so such users are not remapped to Feb 28 or Mar 1.
func MatchBirthdays(users []User, target time.Time, offsetDays int) []User {
	cmp := target.AddDate(0, 0, offsetDays)
	month, day := cmp.Month(), cmp.Day()

	var out []User
	for _, u := range users {
		if u.BirthMonth == month && u.BirthDay == day {
			out = append(out, u)
		}
	}
	return out
}
