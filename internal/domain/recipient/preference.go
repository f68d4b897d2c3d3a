package recipient

import (
	"fmt"
	"time"
)

// DefaultToleranceMinutes is the tolerance applied when a preference does not
// specify one.
const DefaultToleranceMinutes = 5

// TimeOfDay is a clock time without a date, as configured in a reminder
// preference.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses a 24-hour "HH:MM" string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// On returns the instant at this time of day on the same calendar date as ref,
// in ref's location.
func (t TimeOfDay) On(ref time.Time) time.Time {
	return time.Date(ref.Year(), ref.Month(), ref.Day(), t.Hour, t.Minute, 0, 0, ref.Location())
}

// Preference holds a recipient's reminder settings. It is owned by the
// settings surface and read-only to the reminder engine.
type Preference struct {
	RecipientID      int64
	Enabled          bool
	TimeOfDay        TimeOfDay
	ToleranceMinutes int
	UpdatedAt        time.Time
}

// IsReminderTime reports whether now falls within the tolerance window around
// the configured time of day. The boundary is inclusive: exactly
// ToleranceMinutes away still matches.
//
// The comparison stays on now's calendar date; a window that would span
// midnight does not match across it. forceNow bypasses the window entirely
// and is the escape hatch for manual and test invocations.
func (p Preference) IsReminderTime(now time.Time, forceNow bool) bool {
	if forceNow {
		return true
	}
	tolerance := p.ToleranceMinutes
	if tolerance < 0 {
		tolerance = 0
	}
	diff := now.Sub(p.TimeOfDay.On(now))
	if diff < 0 {
		diff = -diff
	}
	return diff <= time.Duration(tolerance)*time.Minute
}
