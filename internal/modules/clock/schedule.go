package clock

import (
	"sort"
	"time"

	"github.com/aristath/harvester/internal/domain"
)

// Config drives schedule generation.
type Config struct {
	Start               time.Time
	End                 time.Time
	InitialInvestment   float64
	RecurringInvestment float64
	Contribution        Frequency
	Rebalance           Frequency
	// Harvest limits when loss checks run. The zero value means daily.
	Harvest Frequency
}

// Event is everything that happens on one date, in processing order:
// contribution, harvest check, rebalance, valuation.
type Event struct {
	Date         time.Time
	Contribution bool
	Initial      bool
	Amount       float64
	HarvestCheck bool
	Rebalance    bool
	Valuation    bool
	// Unresolved marks a contribution whose nominal date has no trading day
	// within SearchWindowDays.
	Unresolved bool
}

// Schedule holds the individual event streams and their merged view.
type Schedule struct {
	Contributions []time.Time
	Rebalances    []time.Time
	HarvestChecks []time.Time
	Valuations    []time.Time
	Events        []Event
	// Warnings lists contributions moved or skipped because they fall
	// outside the priced range.
	Warnings []domain.Warning
}

type contribution struct {
	nominal time.Time
	amount  float64
	initial bool
}

// Build derives the schedule from a trading calendar. Every stream is
// monotonic and contained in [start, end]. Contributions that land outside
// the calendar's priced range are skipped with a partial_data warning, except
// the initial one, which moves to the first trading day. Only a date inside
// the range with no trading day nearby becomes an unresolved event.
func Build(cal *Calendar, cfg Config) (*Schedule, error) {
	start, end := domain.Day(cfg.Start), domain.Day(cfg.End)
	if !start.Before(end) {
		return nil, domain.NewConfigurationError("start_date", "start date %s must be before end date %s",
			domain.FormatDate(start), domain.FormatDate(end))
	}
	if cfg.Contribution.IsDaily() {
		return nil, domain.NewConfigurationError("investment_frequency", "daily contributions are not supported")
	}
	harvest := cfg.Harvest
	if harvest.name == "" {
		harvest = Frequency{name: "daily", kind: kindDaily}
	}

	byDay := make(map[time.Time]*Event)
	var unresolved []Event
	s := &Schedule{}

	days := cal.Days()
	for _, c := range nominalContributions(start, end, cfg) {
		day, ok := cal.Closest(c.nominal)
		if !ok && len(days) > 0 {
			first, last := days[0], days[len(days)-1]
			switch {
			case c.initial && c.nominal.Before(first):
				day, ok = first, true
				s.Warnings = append(s.Warnings, domain.NewDatedWarning(domain.WarningPartialData, c.nominal, "",
					"no prices before %s, initial investment moved there", domain.FormatDate(first)))
			case c.nominal.Before(first) || c.nominal.After(last):
				s.Warnings = append(s.Warnings, domain.NewDatedWarning(domain.WarningPartialData, c.nominal, "",
					"no prices around %s, contribution of %.2f skipped", domain.FormatDate(c.nominal), c.amount))
				continue
			}
		}
		if !ok {
			unresolved = append(unresolved, Event{Date: c.nominal, Contribution: true, Initial: c.initial, Amount: c.amount, Unresolved: true})
			continue
		}
		ev, exists := byDay[day]
		if !exists {
			ev = &Event{Date: day}
			byDay[day] = ev
			s.Contributions = append(s.Contributions, day)
		}
		ev.Contribution = true
		ev.Initial = ev.Initial || c.initial
		ev.Amount += c.amount
	}
	sort.Slice(s.Contributions, func(i, j int) bool { return s.Contributions[i].Before(s.Contributions[j]) })

	first := cal.Start()
	if len(unresolved) == 0 || !unresolved[0].Initial {
		if len(s.Contributions) > 0 {
			first = s.Contributions[0]
		}
	}
	s.Valuations = cal.From(first)

	s.Rebalances = triggerDays(cal, s.Valuations, cfg.Rebalance, end)
	s.HarvestChecks = triggerDays(cal, s.Valuations, harvest, end)

	for _, d := range s.Valuations {
		ev, ok := byDay[d]
		if !ok {
			ev = &Event{Date: d}
			byDay[d] = ev
		}
		ev.Valuation = true
	}
	for _, d := range s.Rebalances {
		byDay[d].Rebalance = true
	}
	for _, d := range s.HarvestChecks {
		byDay[d].HarvestCheck = true
	}

	for _, ev := range byDay {
		s.Events = append(s.Events, *ev)
	}
	s.Events = append(s.Events, unresolved...)
	sort.SliceStable(s.Events, func(i, j int) bool { return s.Events[i].Date.Before(s.Events[j].Date) })
	return s, nil
}

// nominalContributions lists the initial deposit at start followed by each
// recurring deposit. Zero recurring amounts produce no events.
func nominalContributions(start, end time.Time, cfg Config) []contribution {
	out := []contribution{{nominal: start, amount: cfg.InitialInvestment, initial: true}}
	if cfg.RecurringInvestment <= 0 {
		return out
	}

	switch cfg.Contribution.kind {
	case kindMonths:
		for k := 1; ; k++ {
			d := domain.AddMonthsClamped(start, k*cfg.Contribution.months)
			if d.After(end) {
				break
			}
			out = append(out, contribution{nominal: d, amount: cfg.RecurringInvestment})
		}
	case kindCron:
		for _, d := range cronDays(cfg.Contribution, start, end) {
			out = append(out, contribution{nominal: d, amount: cfg.RecurringInvestment})
		}
	}
	return out
}

// triggerDays maps a frequency onto trading days after the first valuation.
// Calendar frequencies fire on the first trading day of each new period.
func triggerDays(cal *Calendar, valuations []time.Time, f Frequency, end time.Time) []time.Time {
	if len(valuations) == 0 {
		return nil
	}
	var out []time.Time
	switch f.kind {
	case kindDaily:
		out = append(out, valuations...)
	case kindMonths:
		last := f.period(valuations[0])
		for _, d := range valuations[1:] {
			if p := f.period(d); p != last {
				out = append(out, d)
				last = p
			}
		}
	case kindCron:
		for _, fire := range cronDays(f, valuations[0], end) {
			day, ok := cal.OnOrAfter(fire)
			if !ok {
				break
			}
			if !day.After(valuations[0]) || (len(out) > 0 && !out[len(out)-1].Before(day)) {
				continue
			}
			out = append(out, day)
		}
	}
	return out
}

// cronDays lists the distinct days with a cron fire after from, through to.
func cronDays(f Frequency, from, to time.Time) []time.Time {
	var out []time.Time
	t := from
	for {
		n := f.schedule.Next(t)
		if n.IsZero() {
			break
		}
		day := domain.Day(n.UTC())
		if day.After(to) {
			break
		}
		if len(out) == 0 || out[len(out)-1].Before(day) {
			out = append(out, day)
		}
		t = n
	}
	return out
}
