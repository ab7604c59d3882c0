package clock

import (
	"sort"
	"time"

	"github.com/aristath/harvester/internal/domain"
)

// SearchWindowDays bounds how far a nominal date may move to reach a trading day.
const SearchWindowDays = 5

// Calendar is the sorted set of trading days inside [start, end].
type Calendar struct {
	days  []time.Time
	index map[time.Time]int
	start time.Time
	end   time.Time
}

// NewCalendar keeps the days that fall within [start, end].
func NewCalendar(days []time.Time, start, end time.Time) *Calendar {
	start, end = domain.Day(start), domain.Day(end)
	c := &Calendar{index: make(map[time.Time]int), start: start, end: end}
	for _, d := range days {
		d = domain.Day(d)
		if d.Before(start) || d.After(end) {
			continue
		}
		if _, dup := c.index[d]; dup {
			continue
		}
		c.index[d] = 0
		c.days = append(c.days, d)
	}
	sort.Slice(c.days, func(i, j int) bool { return c.days[i].Before(c.days[j]) })
	for i, d := range c.days {
		c.index[d] = i
	}
	return c
}

// CalendarFromPrices builds a calendar from every date that carries a price.
func CalendarFromPrices(prices *domain.PriceSeries, start, end time.Time) *Calendar {
	return NewCalendar(prices.Dates(), start, end)
}

// Days returns the trading days in order. Callers must not modify it.
func (c *Calendar) Days() []time.Time { return c.days }

// Len is the number of trading days.
func (c *Calendar) Len() int { return len(c.days) }

// Start and End are the calendar bounds.
func (c *Calendar) Start() time.Time { return c.start }
func (c *Calendar) End() time.Time   { return c.end }

// IsTradingDay reports whether d is in the calendar.
func (c *Calendar) IsTradingDay(d time.Time) bool {
	_, ok := c.index[domain.Day(d)]
	return ok
}

// Closest returns d when it is a trading day, otherwise the nearest trading
// day within SearchWindowDays, trying later before earlier at each distance.
func (c *Calendar) Closest(d time.Time) (time.Time, bool) {
	d = domain.Day(d)
	if c.IsTradingDay(d) {
		return d, true
	}
	for i := 1; i <= SearchWindowDays; i++ {
		if fwd := d.AddDate(0, 0, i); c.IsTradingDay(fwd) {
			return fwd, true
		}
		if back := d.AddDate(0, 0, -i); c.IsTradingDay(back) {
			return back, true
		}
	}
	return time.Time{}, false
}

// OnOrAfter returns the first trading day not before d.
func (c *Calendar) OnOrAfter(d time.Time) (time.Time, bool) {
	d = domain.Day(d)
	i := sort.Search(len(c.days), func(i int) bool { return !c.days[i].Before(d) })
	if i == len(c.days) {
		return time.Time{}, false
	}
	return c.days[i], true
}

// From returns the trading days not before d.
func (c *Calendar) From(d time.Time) []time.Time {
	d = domain.Day(d)
	i := sort.Search(len(c.days), func(i int) bool { return !c.days[i].Before(d) })
	return c.days[i:]
}
