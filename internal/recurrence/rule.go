// Package recurrence computes the next firing time of a repeating post.
// It is pure: no storage, no clocks, identical inputs always give
// identical outputs.
package recurrence

import (
	"errors"
	"fmt"
	"time"
)

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyCustom  Frequency = "custom"
)

type EndKind string

const (
	EndNever EndKind = "never"
	EndAfter EndKind = "after" // stop after Count occurrences
	EndOn    EndKind = "on"    // stop once the next occurrence would pass Date
)

type End struct {
	Kind  EndKind    `json:"kind"`
	Count int        `json:"count,omitempty"`
	Date  *time.Time `json:"date,omitempty"`
}

// Rule is a tagged variant keyed by Frequency: Weekdays is only meaningful
// for weekly rules, MonthDay only for monthly ones. Validate enforces the
// pairing so an invalid combination never reaches the calculator.
type Rule struct {
	Enabled   bool           `json:"enabled"`
	Frequency Frequency      `json:"frequency"`
	Interval  int            `json:"interval"`
	Weekdays  []time.Weekday `json:"weekdays,omitempty"`
	MonthDay  int            `json:"month_day,omitempty"`
	End       End            `json:"end"`
}

var (
	ErrDisabled         = errors.New("recurrence: rule is disabled")
	ErrUnknownFrequency = errors.New("recurrence: unknown frequency")
)

func (r Rule) Validate() error {
	if !r.Enabled {
		return nil
	}

	if r.Interval < 1 {
		return fmt.Errorf("recurrence: interval must be positive, got %d", r.Interval)
	}

	switch r.Frequency {
	case FrequencyDaily, FrequencyCustom:
	case FrequencyWeekly:
		if len(r.Weekdays) == 0 {
			return errors.New("recurrence: weekly rule requires at least one weekday")
		}
		for _, wd := range r.Weekdays {
			if wd < time.Sunday || wd > time.Saturday {
				return fmt.Errorf("recurrence: invalid weekday %d", wd)
			}
		}
	case FrequencyMonthly:
		if r.MonthDay < 1 || r.MonthDay > 31 {
			return fmt.Errorf("recurrence: month day must be in [1,31], got %d", r.MonthDay)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFrequency, r.Frequency)
	}

	switch r.End.Kind {
	case EndNever, "":
	case EndAfter:
		if r.End.Count < 1 {
			return fmt.Errorf("recurrence: end count must be positive, got %d", r.End.Count)
		}
	case EndOn:
		if r.End.Date == nil {
			return errors.New("recurrence: end date is required")
		}
	default:
		return fmt.Errorf("recurrence: unknown end condition %q", r.End.Kind)
	}

	return nil
}

func (r Rule) hasWeekday(wd time.Weekday) bool {
	for _, w := range r.Weekdays {
		if w == wd {
			return true
		}
	}
	return false
}
