package clock

import (
	"errors"
	"testing"
	"time"

	"github.com/aristath/harvester/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// weekdays lists Monday to Friday dates in [start, end].
func weekdays(start, end time.Time) []time.Time {
	var out []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			out = append(out, d)
		}
	}
	return out
}

func TestParseFrequency(t *testing.T) {
	tests := []struct {
		input   string
		name    string
		months  int
		never   bool
		daily   bool
		cron    bool
		wantErr bool
	}{
		{input: "monthly", name: "monthly", months: 1},
		{input: "Bimonthly", name: "bimonthly", months: 2},
		{input: "quarterly", name: "quarterly", months: 3},
		{input: "yearly", name: "yearly", months: 12},
		{input: "never", name: "never", never: true},
		{input: "", name: "never", never: true},
		{input: "daily", name: "daily", daily: true},
		{input: "cron:0 0 1 */2 *", name: "cron:0 0 1 */2 *", cron: true},
		{input: "cron:not a cron", wantErr: true},
		{input: "weekly-ish", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			f, err := ParseFrequency(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.name, f.String())
			assert.Equal(t, tt.months, f.Months())
			assert.Equal(t, tt.never, f.IsNever())
			assert.Equal(t, tt.daily, f.IsDaily())
			assert.Equal(t, tt.cron, f.IsCron())
		})
	}
}

func TestCalendar_Closest(t *testing.T) {
	days := []time.Time{domain.Date(2020, 1, 2), domain.Date(2020, 1, 6), domain.Date(2020, 1, 20)}
	cal := NewCalendar(days, domain.Date(2020, 1, 1), domain.Date(2020, 1, 31))

	tests := []struct {
		name     string
		date     time.Time
		expected time.Time
		ok       bool
	}{
		{name: "exact", date: domain.Date(2020, 1, 6), expected: domain.Date(2020, 1, 6), ok: true},
		{name: "forward wins at equal distance", date: domain.Date(2020, 1, 4), expected: domain.Date(2020, 1, 6), ok: true},
		{name: "backward when nearer", date: domain.Date(2020, 1, 3), expected: domain.Date(2020, 1, 2), ok: true},
		{name: "five days away", date: domain.Date(2020, 1, 15), expected: domain.Date(2020, 1, 20), ok: true},
		{name: "outside window", date: domain.Date(2020, 1, 13), ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := cal.Closest(tt.date)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, got)
			}
		})
	}
}

func TestCalendar_BoundsAndDedupe(t *testing.T) {
	days := []time.Time{domain.Date(2020, 1, 6), domain.Date(2019, 12, 31), domain.Date(2020, 1, 2), domain.Date(2020, 1, 2), domain.Date(2020, 2, 3)}
	cal := NewCalendar(days, domain.Date(2020, 1, 1), domain.Date(2020, 1, 31))

	assert.Equal(t, []time.Time{domain.Date(2020, 1, 2), domain.Date(2020, 1, 6)}, cal.Days())
	d, ok := cal.OnOrAfter(domain.Date(2020, 1, 3))
	require.True(t, ok)
	assert.Equal(t, domain.Date(2020, 1, 6), d)
	_, ok = cal.OnOrAfter(domain.Date(2020, 1, 7))
	assert.False(t, ok)
}

func TestBuild_MonthlyContributionsAndYearlyRebalance(t *testing.T) {
	start, end := domain.Date(2020, 1, 1), domain.Date(2021, 12, 31)
	cal := NewCalendar(weekdays(start, end), start, end)

	s, err := Build(cal, Config{
		Start:               start,
		End:                 end,
		InitialInvestment:   100000,
		RecurringInvestment: 4000,
		Contribution:        MustParseFrequency("monthly"),
		Rebalance:           MustParseFrequency("yearly"),
	})
	require.NoError(t, err)

	require.Len(t, s.Contributions, 24)
	// 2020-01-01 is a Wednesday
	assert.Equal(t, domain.Date(2020, 1, 1), s.Contributions[0])
	// 2020-02-01 is a Saturday and the Sunday after is closed, so Friday wins
	assert.Equal(t, domain.Date(2020, 1, 31), s.Contributions[1])
	// 2020-03-01 is a Sunday: forward to Monday
	assert.Equal(t, domain.Date(2020, 3, 2), s.Contributions[2])

	assert.Equal(t, []time.Time{domain.Date(2021, 1, 1)}, s.Rebalances)
	assert.Equal(t, s.Valuations, s.HarvestChecks, "harvest defaults to daily")
	assert.Equal(t, domain.Date(2020, 1, 1), s.Valuations[0])

	var total float64
	var initial int
	for i, ev := range s.Events {
		if i > 0 {
			assert.True(t, s.Events[i-1].Date.Before(ev.Date), "events are strictly ordered")
		}
		assert.False(t, ev.Date.Before(start) || ev.Date.After(end))
		assert.True(t, ev.Valuation)
		if ev.Contribution {
			total += ev.Amount
		}
		if ev.Initial {
			initial++
		}
	}
	assert.Equal(t, 1, initial)
	assert.InDelta(t, 100000+23*4000.0, total, 1e-9)
}

func TestBuild_BimonthlyAndQuarterly(t *testing.T) {
	start, end := domain.Date(2020, 1, 15), domain.Date(2020, 12, 31)
	cal := NewCalendar(weekdays(start, end), start, end)

	s, err := Build(cal, Config{
		Start:               start,
		End:                 end,
		InitialInvestment:   1000,
		RecurringInvestment: 100,
		Contribution:        MustParseFrequency("bimonthly"),
		Rebalance:           MustParseFrequency("quarterly"),
	})
	require.NoError(t, err)

	assert.Len(t, s.Contributions, 6) // Jan, Mar, May, Jul, Sep, Nov
	assert.Equal(t, []time.Time{domain.Date(2020, 4, 1), domain.Date(2020, 7, 1), domain.Date(2020, 10, 1)}, s.Rebalances)
}

func TestBuild_NeverRebalanceAndZeroRecurring(t *testing.T) {
	start, end := domain.Date(2020, 1, 1), domain.Date(2020, 6, 30)
	cal := NewCalendar(weekdays(start, end), start, end)

	s, err := Build(cal, Config{
		Start:             start,
		End:               end,
		InitialInvestment: 1000,
		Contribution:      MustParseFrequency("monthly"),
		Rebalance:         MustParseFrequency("never"),
		Harvest:           MustParseFrequency("monthly"),
	})
	require.NoError(t, err)

	assert.Equal(t, []time.Time{start}, s.Contributions)
	assert.Empty(t, s.Rebalances)
	assert.Len(t, s.HarvestChecks, 5)
}

func TestBuild_CronFrequencies(t *testing.T) {
	start, end := domain.Date(2020, 1, 1), domain.Date(2020, 3, 31)
	cal := NewCalendar(weekdays(start, end), start, end)

	s, err := Build(cal, Config{
		Start:               start,
		End:                 end,
		InitialInvestment:   1000,
		RecurringInvestment: 50,
		Contribution:        MustParseFrequency("cron:0 0 15 * *"),
		Rebalance:           MustParseFrequency("cron:0 0 1 3 *"),
	})
	require.NoError(t, err)

	// 2020-02-15 is a Saturday, 2020-03-15 a Sunday
	assert.Equal(t, []time.Time{start, domain.Date(2020, 1, 15), domain.Date(2020, 2, 14), domain.Date(2020, 3, 16)}, s.Contributions)
	// 2020-03-01 is a Sunday
	assert.Equal(t, []time.Time{domain.Date(2020, 3, 2)}, s.Rebalances)
}

func TestBuild_UnresolvedContribution(t *testing.T) {
	start, end := domain.Date(2020, 1, 1), domain.Date(2020, 4, 30)
	days := weekdays(start, end)
	var withHole []time.Time
	for _, d := range days {
		if !d.Before(domain.Date(2020, 2, 22)) && !d.After(domain.Date(2020, 3, 8)) {
			continue
		}
		withHole = append(withHole, d)
	}
	cal := NewCalendar(withHole, start, end)

	s, err := Build(cal, Config{
		Start:               start,
		End:                 end,
		InitialInvestment:   1000,
		RecurringInvestment: 100,
		Contribution:        MustParseFrequency("monthly"),
		Rebalance:           MustParseFrequency("never"),
	})
	require.NoError(t, err)

	var unresolved []Event
	for _, ev := range s.Events {
		if ev.Unresolved {
			unresolved = append(unresolved, ev)
		}
	}
	require.Len(t, unresolved, 1)
	assert.Equal(t, domain.Date(2020, 3, 1), unresolved[0].Date)
}

func TestBuild_ContributionsOutsidePricedRange(t *testing.T) {
	t.Run("end after last price", func(t *testing.T) {
		start, end := domain.Date(2020, 1, 20), domain.Date(2020, 3, 31)
		cal := NewCalendar(weekdays(start, domain.Date(2020, 3, 10)), start, end)

		s, err := Build(cal, Config{
			Start:               start,
			End:                 end,
			InitialInvestment:   1000,
			RecurringInvestment: 100,
			Contribution:        MustParseFrequency("monthly"),
			Rebalance:           MustParseFrequency("never"),
		})
		require.NoError(t, err)

		assert.Equal(t, []time.Time{start, domain.Date(2020, 2, 20)}, s.Contributions)
		for _, ev := range s.Events {
			assert.False(t, ev.Unresolved, "event on %s", domain.FormatDate(ev.Date))
		}
		require.Len(t, s.Warnings, 1)
		assert.Equal(t, domain.WarningPartialData, s.Warnings[0].Kind)
		assert.Equal(t, domain.Date(2020, 3, 20), *s.Warnings[0].Date)
		assert.Equal(t, domain.Date(2020, 3, 10), s.Valuations[len(s.Valuations)-1])
	})

	t.Run("start before first price", func(t *testing.T) {
		start, end := domain.Date(2020, 1, 1), domain.Date(2020, 2, 28)
		firstPrice := domain.Date(2020, 1, 15)
		cal := NewCalendar(weekdays(firstPrice, end), start, end)

		s, err := Build(cal, Config{
			Start:               start,
			End:                 end,
			InitialInvestment:   1000,
			RecurringInvestment: 100,
			Contribution:        MustParseFrequency("monthly"),
			Rebalance:           MustParseFrequency("never"),
		})
		require.NoError(t, err)

		// 2020-02-01 is a Saturday
		assert.Equal(t, []time.Time{firstPrice, domain.Date(2020, 1, 31)}, s.Contributions)
		assert.True(t, s.Events[0].Initial)
		assert.Equal(t, 1000.0, s.Events[0].Amount)
		require.Len(t, s.Warnings, 1)
		assert.Equal(t, start, *s.Warnings[0].Date)
	})
}

func TestBuild_InvalidConfig(t *testing.T) {
	start := domain.Date(2020, 1, 1)
	cal := NewCalendar(nil, start, start)

	_, err := Build(cal, Config{Start: start, End: start, Contribution: MustParseFrequency("monthly")})
	var cfgErr *domain.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "start_date", cfgErr.Field)

	_, err = Build(cal, Config{Start: start, End: start.AddDate(0, 1, 0), Contribution: MustParseFrequency("daily")})
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "investment_frequency", cfgErr.Field)
}
