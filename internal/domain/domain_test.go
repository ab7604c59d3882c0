package domain

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddMonthsClamped(t *testing.T) {
	tests := []struct {
		name     string
		start    time.Time
		months   int
		expected time.Time
	}{
		{name: "same day next month", start: Date(2020, 1, 15), months: 1, expected: Date(2020, 2, 15)},
		{name: "clamps to leap february", start: Date(2020, 1, 31), months: 1, expected: Date(2020, 2, 29)},
		{name: "clamps to short february", start: Date(2021, 1, 31), months: 1, expected: Date(2021, 2, 28)},
		{name: "crosses year", start: Date(2020, 11, 30), months: 2, expected: Date(2021, 1, 30)},
		{name: "zero months", start: Date(2020, 3, 31), months: 0, expected: Date(2020, 3, 31)},
		{name: "april has 30 days", start: Date(2020, 3, 31), months: 1, expected: Date(2020, 4, 30)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AddMonthsClamped(tt.start, tt.months))
		})
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2021-03-04")
	require.NoError(t, err)
	assert.Equal(t, Date(2021, 3, 4), d)

	d, err = ParseDate("2021-03-04T15:30:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, Date(2021, 3, 4), d)

	_, err = ParseDate("03/04/2021")
	assert.Error(t, err)
}

func TestPriceSeries(t *testing.T) {
	s := NewPriceSeries()
	s.Set("AAA", Date(2020, 1, 2), 10)
	s.Set("AAA", time.Date(2020, 1, 3, 16, 0, 0, 0, time.UTC), 11)
	s.Set("BBB", Date(2020, 1, 3), 20)
	s.Set("BBB", Date(2020, 1, 6), math.NaN())
	s.Set("CCC", Date(2020, 1, 6), 0)

	p, ok := s.Price("AAA", Date(2020, 1, 3))
	require.True(t, ok)
	assert.Equal(t, 11.0, p)

	_, ok = s.Price("BBB", Date(2020, 1, 6))
	assert.False(t, ok, "NaN must be stored as a gap")

	assert.False(t, s.Has("CCC"))
	assert.Equal(t, []string{"AAA", "BBB"}, s.Tickers())
	assert.Equal(t, []time.Time{Date(2020, 1, 2), Date(2020, 1, 3)}, s.Dates())
	assert.Equal(t, 3, s.Len())

	sliced := s.Slice([]string{"AAA"}, Date(2020, 1, 3), Date(2020, 1, 31))
	assert.Equal(t, []string{"AAA"}, sliced.Tickers())
	assert.Equal(t, 1, sliced.Len())
}

func TestErrorsAreMatchable(t *testing.T) {
	var err error = fmt.Errorf("failed to run: %w", &DataGapError{Date: Date(2020, 5, 1)})

	var gap *DataGapError
	require.True(t, errors.As(err, &gap))
	assert.Equal(t, Date(2020, 5, 1), gap.Date)
	assert.Contains(t, err.Error(), "2020-05-01")

	insufficient := &InsufficientHoldingsError{Ticker: "AAA", Requested: decimal.NewFromInt(3), Held: decimal.NewFromInt(2)}
	assert.Equal(t, "insufficient holdings for AAA: requested 3, held 2", insufficient.Error())

	cfgErr := NewConfigurationError("top_n", "must be positive, got %d", 0)
	assert.Equal(t, "configuration error: top_n: must be positive, got 0", cfgErr.Error())
}
