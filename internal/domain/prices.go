package domain

import (
	"context"
	"math"
	"sort"
	"time"
)

// PriceProvider delivers adjusted closes for a set of tickers. Missing
// (ticker, date) pairs are simply absent from the returned series; providers
// must not fail because of them.
type PriceProvider interface {
	GetPrices(ctx context.Context, tickers []string, start, end time.Time) (*PriceSeries, error)
}

// PriceSeries maps ticker and date to a closing price. It is filled once and
// then treated as read-only, so concurrent readers are safe.
type PriceSeries struct {
	data map[string]map[time.Time]float64
}

// NewPriceSeries creates an empty series.
func NewPriceSeries() *PriceSeries {
	return &PriceSeries{data: make(map[string]map[time.Time]float64)}
}

// Set stores a price. Non-finite and non-positive values are dropped so gaps
// stay explicit.
func (s *PriceSeries) Set(ticker string, date time.Time, price float64) {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return
	}
	byDate, ok := s.data[ticker]
	if !ok {
		byDate = make(map[time.Time]float64)
		s.data[ticker] = byDate
	}
	byDate[Day(date)] = price
}

// Price returns the close for ticker on date.
func (s *PriceSeries) Price(ticker string, date time.Time) (float64, bool) {
	byDate, ok := s.data[ticker]
	if !ok {
		return 0, false
	}
	p, ok := byDate[Day(date)]
	return p, ok
}

// Has reports whether the ticker has at least one price.
func (s *PriceSeries) Has(ticker string) bool {
	return len(s.data[ticker]) > 0
}

// Tickers returns the tickers with data, sorted.
func (s *PriceSeries) Tickers() []string {
	out := make([]string, 0, len(s.data))
	for t, byDate := range s.data {
		if len(byDate) > 0 {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// Dates returns the sorted union of all dates that carry at least one price.
func (s *PriceSeries) Dates() []time.Time {
	seen := make(map[time.Time]struct{})
	for _, byDate := range s.data {
		for d := range byDate {
			seen[d] = struct{}{}
		}
	}
	return sortedDates(seen)
}

// TickerDates returns the sorted dates priced for one ticker.
func (s *PriceSeries) TickerDates(ticker string) []time.Time {
	seen := make(map[time.Time]struct{}, len(s.data[ticker]))
	for d := range s.data[ticker] {
		seen[d] = struct{}{}
	}
	return sortedDates(seen)
}

// Len is the number of stored (ticker, date) prices.
func (s *PriceSeries) Len() int {
	n := 0
	for _, byDate := range s.data {
		n += len(byDate)
	}
	return n
}

// Slice copies the prices of the given tickers within [start, end]. A nil
// ticker list keeps every ticker.
func (s *PriceSeries) Slice(tickers []string, start, end time.Time) *PriceSeries {
	start, end = Day(start), Day(end)
	out := NewPriceSeries()
	if tickers == nil {
		tickers = s.Tickers()
	}
	for _, t := range tickers {
		for d, p := range s.data[t] {
			if d.Before(start) || d.After(end) {
				continue
			}
			out.Set(t, d, p)
		}
	}
	return out
}

// Merge copies every price of other into s, overwriting duplicates.
func (s *PriceSeries) Merge(other *PriceSeries) {
	if other == nil {
		return
	}
	for t, byDate := range other.data {
		for d, p := range byDate {
			s.Set(t, d, p)
		}
	}
}

// Each visits every price in ticker then date order.
func (s *PriceSeries) Each(fn func(ticker string, date time.Time, price float64)) {
	for _, t := range s.Tickers() {
		for _, d := range s.TickerDates(t) {
			fn(t, d, s.data[t][d])
		}
	}
}

func sortedDates(set map[time.Time]struct{}) []time.Time {
	out := make([]time.Time, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
