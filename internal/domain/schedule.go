package domain

import "time"

// DayKey formats a calendar day as YYYY-MM-DD in t's location. It is the
// unit the once-per-day completion markers are keyed on.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// NextTrigger computes the next instant a daily trigger at the given time
// of day should fire, seen from now.
//
// If today's instant is still ahead it is returned as-is. If it has passed
// and firedOn is not today's key, the trigger is overdue and the result is
// now itself: the caller fires a single catch-up pass immediately. If the
// trigger already fired today the result is tomorrow's instant.
func NextTrigger(now time.Time, at TimeOfDay, firedOn string) time.Time {
	today := at.At(now)
	if today.After(now) {
		return today
	}
	if firedOn != DayKey(now) {
		return now
	}
	return today.AddDate(0, 0, 1)
}
