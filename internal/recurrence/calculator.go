package recurrence

import (
	"errors"
	"fmt"
	"time"
)

// ErrSeriesEnded reports that the rule's end condition leaves no further
// occurrence. It is a normal terminal outcome, not a failure.
var ErrSeriesEnded = errors.New("recurrence: series ended")

// Occurrence is one concrete firing of a recurring post.
type Occurrence struct {
	At    time.Time
	Count int  // occurrences fired once this one completes
	Final bool // an "after N" bound makes this the last occurrence
}

// Next computes the occurrence following prev. occurrencesSoFar counts the
// firings that already happened, including the one at prev.
func Next(r Rule, prev time.Time, occurrencesSoFar int) (Occurrence, error) {
	if !r.Enabled {
		return Occurrence{}, ErrDisabled
	}
	if err := r.Validate(); err != nil {
		return Occurrence{}, err
	}

	if r.End.Kind == EndAfter && occurrencesSoFar >= r.End.Count {
		return Occurrence{}, ErrSeriesEnded
	}

	var at time.Time
	switch r.Frequency {
	case FrequencyDaily, FrequencyCustom:
		// Custom cadences use an application-defined unit; internally they
		// advance by days just like daily rules.
		at = prev.AddDate(0, 0, r.Interval)
	case FrequencyWeekly:
		at = nextWeekly(r, prev)
	case FrequencyMonthly:
		at = nextMonthly(r, prev)
	default:
		return Occurrence{}, fmt.Errorf("%w: %q", ErrUnknownFrequency, r.Frequency)
	}

	if r.End.Kind == EndOn && r.End.Date != nil && at.After(*r.End.Date) {
		return Occurrence{}, ErrSeriesEnded
	}

	occ := Occurrence{At: at, Count: occurrencesSoFar + 1}
	if r.End.Kind == EndAfter {
		occ.Final = occ.Count >= r.End.Count
	}

	return occ, nil
}

// nextWeekly walks forward a day at a time until it lands on an allowed
// weekday. When the walk crosses into a later week, the interval multiplier
// applies and (interval-1) whole weeks are skipped; adding whole weeks keeps
// the weekday intact.
func nextWeekly(r Rule, prev time.Time) time.Time {
	next := prev.AddDate(0, 0, 1)
	for !r.hasWeekday(next.Weekday()) {
		next = next.AddDate(0, 0, 1)
	}

	if r.Interval > 1 && !weekStart(next).Equal(weekStart(prev)) {
		next = next.AddDate(0, 0, 7*(r.Interval-1))
	}

	return next
}

// weekStart truncates t to the Monday beginning its week.
func weekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.AddDate(0, 0, -offset).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// nextMonthly targets MonthDay in the month interval months after prev's
// month, clamping to the month's last day when MonthDay overflows it, and
// keeping prev's time of day.
func nextMonthly(r Rule, prev time.Time) time.Time {
	first := time.Date(prev.Year(), prev.Month()+time.Month(r.Interval), 1,
		prev.Hour(), prev.Minute(), prev.Second(), prev.Nanosecond(), prev.Location())

	day := r.MonthDay
	if last := daysInMonth(first.Year(), first.Month()); day > last {
		day = last
	}

	return first.AddDate(0, 0, day-1)
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
