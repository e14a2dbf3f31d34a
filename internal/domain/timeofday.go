package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidTimeOfDay = errors.New("invalid time of day")

// TimeOfDay is a wall-clock time stored as minutes since midnight (0..1439).
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM" into a TimeOfDay.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: expected HH:MM, got %q", ErrInvalidTimeOfDay, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: bad hour in %q", ErrInvalidTimeOfDay, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: bad minute in %q", ErrInvalidTimeOfDay, s)
	}
	return TimeOfDay(h*60 + m), nil
}

// Minutes returns minutes since midnight.
func (t TimeOfDay) Minutes() int { return int(t) }

// String returns HH:MM.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Elapsed reports whether the wall-clock moment described by t has already
// been reached on the day of ref, in ref's location.
func (t TimeOfDay) Elapsed(ref time.Time) bool {
	return ref.Hour()*60+ref.Minute() >= int(t)
}

// At anchors the time of day onto the calendar date of base, in base's
// location.
func (t TimeOfDay) At(base time.Time) time.Time {
	return time.Date(base.Year(), base.Month(), base.Day(), int(t)/60, int(t)%60, 0, 0, base.Location())
}

// EffectiveNotifyTime resolves the notification time for a group: the
// override when settings exist, otherwise the process-wide default.
func EffectiveNotifyTime(settings *GroupSettings, def TimeOfDay) TimeOfDay {
	if settings != nil {
		return settings.NotifyTime
	}
	return def
}
