package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func TestNext_Daily(t *testing.T) {
	tt := []struct {
		name     string
		interval int
		prev     time.Time
		want     time.Time
	}{
		{
			name:     "every day",
			interval: 1,
			prev:     date(2024, time.March, 10, 9, 30),
			want:     date(2024, time.March, 11, 9, 30),
		},
		{
			name:     "every third day",
			interval: 3,
			prev:     date(2024, time.March, 30, 9, 30),
			want:     date(2024, time.April, 2, 9, 30),
		},
	}

	for i := range tt {
		tc := tt[i]

		t.Run(tc.name, func(t *testing.T) {
			r := Rule{Enabled: true, Frequency: FrequencyDaily, Interval: tc.interval}

			occ, err := Next(r, tc.prev, 1)
			require.NoError(t, err)
			assert.Equal(t, tc.want, occ.At)
			assert.Equal(t, 2, occ.Count)
		})
	}
}

func TestNext_CustomBehavesLikeDaily(t *testing.T) {
	prev := date(2024, time.May, 1, 18, 0)

	daily, err := Next(Rule{Enabled: true, Frequency: FrequencyDaily, Interval: 4}, prev, 0)
	require.NoError(t, err)

	custom, err := Next(Rule{Enabled: true, Frequency: FrequencyCustom, Interval: 4}, prev, 0)
	require.NoError(t, err)

	assert.Equal(t, daily.At, custom.At)
}

func TestNext_Weekly(t *testing.T) {
	// 2024-03-05 is a Tuesday.
	tuesday := date(2024, time.March, 5, 12, 0)

	tt := []struct {
		name string
		rule Rule
		prev time.Time
		want time.Time
	}{
		{
			name: "tuesday to same week wednesday",
			rule: Rule{Enabled: true, Frequency: FrequencyWeekly, Interval: 1,
				Weekdays: []time.Weekday{time.Monday, time.Wednesday}},
			prev: tuesday,
			want: date(2024, time.March, 6, 12, 0),
		},
		{
			name: "wednesday wraps to next week monday",
			rule: Rule{Enabled: true, Frequency: FrequencyWeekly, Interval: 1,
				Weekdays: []time.Weekday{time.Monday, time.Wednesday}},
			prev: date(2024, time.March, 6, 12, 0),
			want: date(2024, time.March, 11, 12, 0),
		},
		{
			name: "interval skips extra weeks on week change",
			rule: Rule{Enabled: true, Frequency: FrequencyWeekly, Interval: 2,
				Weekdays: []time.Weekday{time.Monday}},
			prev: date(2024, time.March, 4, 12, 0), // Monday
			want: date(2024, time.March, 18, 12, 0),
		},
		{
			name: "interval ignored within same week",
			rule: Rule{Enabled: true, Frequency: FrequencyWeekly, Interval: 3,
				Weekdays: []time.Weekday{time.Monday, time.Friday}},
			prev: date(2024, time.March, 4, 12, 0), // Monday
			want: date(2024, time.March, 8, 12, 0), // same week's Friday
		},
	}

	for i := range tt {
		tc := tt[i]

		t.Run(tc.name, func(t *testing.T) {
			occ, err := Next(tc.rule, tc.prev, 0)
			require.NoError(t, err)
			assert.Equal(t, tc.want, occ.At)
		})
	}
}

func TestNext_WeeklyAlwaysLandsOnAllowedWeekday(t *testing.T) {
	rule := Rule{
		Enabled:   true,
		Frequency: FrequencyWeekly,
		Interval:  2,
		Weekdays:  []time.Weekday{time.Tuesday, time.Saturday},
	}

	prev := date(2024, time.January, 1, 8, 0)
	for i := 0; i < 120; i++ {
		occ, err := Next(rule, prev, i)
		require.NoError(t, err)
		assert.True(t, occ.At.After(prev), "occurrence must be strictly after prev")
		assert.Contains(t, rule.Weekdays, occ.At.Weekday())
		prev = occ.At
	}
}

func TestNext_Monthly(t *testing.T) {
	tt := []struct {
		name string
		rule Rule
		prev time.Time
		want time.Time
	}{
		{
			name: "regular day",
			rule: Rule{Enabled: true, Frequency: FrequencyMonthly, Interval: 1, MonthDay: 15},
			prev: date(2024, time.March, 15, 10, 0),
			want: date(2024, time.April, 15, 10, 0),
		},
		{
			name: "day 31 clamps to 30-day month",
			rule: Rule{Enabled: true, Frequency: FrequencyMonthly, Interval: 1, MonthDay: 31},
			prev: date(2024, time.March, 31, 10, 0),
			want: date(2024, time.April, 30, 10, 0),
		},
		{
			name: "day 31 clamps to leap february",
			rule: Rule{Enabled: true, Frequency: FrequencyMonthly, Interval: 1, MonthDay: 31},
			prev: date(2024, time.January, 31, 10, 0),
			want: date(2024, time.February, 29, 10, 0),
		},
		{
			name: "quarterly interval",
			rule: Rule{Enabled: true, Frequency: FrequencyMonthly, Interval: 3, MonthDay: 10},
			prev: date(2024, time.November, 10, 10, 0),
			want: date(2025, time.February, 10, 10, 0),
		},
	}

	for i := range tt {
		tc := tt[i]

		t.Run(tc.name, func(t *testing.T) {
			occ, err := Next(tc.rule, tc.prev, 0)
			require.NoError(t, err)
			assert.Equal(t, tc.want, occ.At)
		})
	}
}

func TestNext_EndAfter(t *testing.T) {
	// Weekly Mon/Wed, ending after 2 occurrences, starting on a Tuesday.
	rule := Rule{
		Enabled:   true,
		Frequency: FrequencyWeekly,
		Interval:  1,
		Weekdays:  []time.Weekday{time.Monday, time.Wednesday},
		End:       End{Kind: EndAfter, Count: 2},
	}

	tuesday := date(2024, time.March, 5, 9, 0)

	occ, err := Next(rule, tuesday, 1)
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.March, 6, 9, 0), occ.At, "same week's Wednesday")
	assert.Equal(t, 2, occ.Count)
	assert.True(t, occ.Final)

	_, err = Next(rule, occ.At, occ.Count)
	assert.ErrorIs(t, err, ErrSeriesEnded)
}

func TestNext_EndOn(t *testing.T) {
	end := date(2024, time.March, 12, 0, 0)
	rule := Rule{
		Enabled:   true,
		Frequency: FrequencyDaily,
		Interval:  7,
		End:       End{Kind: EndOn, Date: &end},
	}

	occ, err := Next(rule, date(2024, time.March, 4, 9, 0), 1)
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.March, 11, 9, 0), occ.At)
	assert.False(t, occ.Final)

	_, err = Next(rule, occ.At, occ.Count)
	assert.ErrorIs(t, err, ErrSeriesEnded)
}

func TestNext_Deterministic(t *testing.T) {
	rule := Rule{
		Enabled:   true,
		Frequency: FrequencyWeekly,
		Interval:  2,
		Weekdays:  []time.Weekday{time.Friday},
	}
	prev := date(2024, time.June, 3, 7, 45)

	first, err := Next(rule, prev, 3)
	require.NoError(t, err)

	second, err := Next(rule, prev, 3)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestNext_Disabled(t *testing.T) {
	_, err := Next(Rule{Frequency: FrequencyDaily, Interval: 1}, time.Now(), 0)
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestRule_Validate(t *testing.T) {
	tt := []struct {
		name    string
		rule    Rule
		wantErr bool
	}{
		{
			name: "valid daily",
			rule: Rule{Enabled: true, Frequency: FrequencyDaily, Interval: 1},
		},
		{
			name:    "zero interval",
			rule:    Rule{Enabled: true, Frequency: FrequencyDaily, Interval: 0},
			wantErr: true,
		},
		{
			name:    "weekly without weekdays",
			rule:    Rule{Enabled: true, Frequency: FrequencyWeekly, Interval: 1},
			wantErr: true,
		},
		{
			name:    "monthly day out of range",
			rule:    Rule{Enabled: true, Frequency: FrequencyMonthly, Interval: 1, MonthDay: 32},
			wantErr: true,
		},
		{
			name:    "unknown frequency",
			rule:    Rule{Enabled: true, Frequency: "yearly", Interval: 1},
			wantErr: true,
		},
		{
			name: "after without count",
			rule: Rule{Enabled: true, Frequency: FrequencyDaily, Interval: 1,
				End: End{Kind: EndAfter}},
			wantErr: true,
		},
		{
			name: "on without date",
			rule: Rule{Enabled: true, Frequency: FrequencyDaily, Interval: 1,
				End: End{Kind: EndOn}},
			wantErr: true,
		},
		{
			name: "disabled rule skips checks",
			rule: Rule{},
		},
	}

	for i := range tt {
		tc := tt[i]

		t.Run(tc.name, func(t *testing.T) {
			err := tc.rule.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
