package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/aristath/harvester/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(y int, m time.Month, dd int) time.Time {
	return domain.Date(y, m, dd)
}

func seeded(t *testing.T) *Ledger {
	t.Helper()
	l := New()
	_, err := l.Buy("AAA", day(2020, 1, 2), d("10"), d("100"))
	require.NoError(t, err)
	_, err = l.Buy("AAA", day(2020, 6, 1), d("10"), d("80"))
	require.NoError(t, err)
	_, err = l.Buy("AAA", day(2021, 3, 1), d("5"), d("120"))
	require.NoError(t, err)
	return l
}

func TestLedger_BuyRejectsNonPositive(t *testing.T) {
	l := New()
	_, err := l.Buy("AAA", day(2020, 1, 2), decimal.Zero, d("10"))
	assert.Error(t, err)
	_, err = l.Buy("AAA", day(2020, 1, 2), d("1"), d("-1"))
	assert.Error(t, err)
	assert.Empty(t, l.Tickers())
}

func TestLedger_Valuation(t *testing.T) {
	l := seeded(t)

	assert.True(t, l.Quantity("AAA").Equal(d("25")))
	assert.True(t, l.TotalCostBasis("AAA").Equal(d("2400")))
	assert.True(t, l.MarketValue("AAA", d("90")).Equal(d("2250")))
	assert.True(t, l.AverageCost("AAA").Equal(d("96")))
	assert.True(t, l.AverageCost("ZZZ").IsZero())
	assert.Equal(t, []string{"AAA"}, l.Tickers())
}

func TestLedger_SellFIFO(t *testing.T) {
	l := seeded(t)

	res, err := l.Sell("AAA", day(2021, 6, 1), d("15"), d("90"), PolicyFIFO)
	require.NoError(t, err)

	// 10 @ 100 then 5 @ 80
	assert.True(t, res.Quantity.Equal(d("15")))
	assert.True(t, res.Proceeds.Equal(d("1350")))
	assert.True(t, res.CostBasis.Equal(d("1400")))
	assert.True(t, res.RealizedGainLoss.Equal(d("-50")))
	require.Len(t, res.Disposals, 2)
	assert.Equal(t, int64(1), res.Disposals[0].LotID)
	assert.True(t, res.Disposals[0].LongTerm, "held 516 days")
	assert.Equal(t, 365, res.Disposals[1].HoldingDays)
	assert.True(t, res.Disposals[1].LongTerm, "held exactly 365 days")
	assert.True(t, res.LongTerm.Equal(d("-50")))
	assert.True(t, res.ShortTerm.IsZero())

	lots := l.Lots("AAA")
	require.Len(t, lots, 2)
	assert.True(t, lots[0].Quantity.Equal(d("5")))
	assert.True(t, lots[0].UnitCost.Equal(d("80")))
	assert.True(t, l.Quantity("AAA").Equal(d("10")))
	require.NoError(t, l.Validate())
}

func TestLedger_SellTaxOptimized(t *testing.T) {
	l := seeded(t)

	// At 90: lots @100 and @120 are losses, highest cost first, then the gain lot.
	res, err := l.Sell("AAA", day(2021, 6, 1), d("8"), d("90"), PolicyTaxOptimized)
	require.NoError(t, err)

	require.Len(t, res.Disposals, 2)
	assert.Equal(t, int64(3), res.Disposals[0].LotID)
	assert.True(t, res.Disposals[0].Quantity.Equal(d("5")))
	assert.Equal(t, int64(1), res.Disposals[1].LotID)
	assert.True(t, res.Disposals[1].Quantity.Equal(d("3")))
	// 5×(90−120) + 3×(90−100)
	assert.True(t, res.RealizedGainLoss.Equal(d("-180")))
}

func TestLedger_SellInsufficient(t *testing.T) {
	l := seeded(t)

	_, err := l.Sell("AAA", day(2021, 6, 1), d("25.000001"), d("90"), PolicyFIFO)
	var insufficient *domain.InsufficientHoldingsError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, "AAA", insufficient.Ticker)
	assert.True(t, insufficient.Held.Equal(d("25")))
	assert.True(t, l.Quantity("AAA").Equal(d("25")), "failed sell must not mutate")

	_, err = l.Sell("BBB", day(2021, 6, 1), d("1"), d("1"), PolicyFIFO)
	assert.True(t, errors.As(err, &insufficient))
}

func TestLedger_SellAllRemovesTicker(t *testing.T) {
	l := seeded(t)

	res, err := l.SellAll("AAA", day(2021, 6, 1), d("100"))
	require.NoError(t, err)
	assert.True(t, res.Quantity.Equal(d("25")))
	assert.True(t, res.RealizedGainLoss.Equal(d("100")))
	assert.Empty(t, l.Tickers())
	assert.Empty(t, l.Lots("AAA"))
}

func TestLedger_SellLots(t *testing.T) {
	l := seeded(t)

	res, err := l.SellLots("AAA", day(2021, 6, 1), []int64{1, 3}, d("90"))
	require.NoError(t, err)
	assert.True(t, res.Quantity.Equal(d("15")))
	assert.True(t, res.RealizedGainLoss.Equal(d("-250")))

	lots := l.Lots("AAA")
	require.Len(t, lots, 1)
	assert.Equal(t, int64(2), lots[0].ID)

	_, err = l.SellLots("AAA", day(2021, 6, 1), []int64{99}, d("90"))
	assert.Error(t, err)
}

func TestLedger_WithLongTermDays(t *testing.T) {
	l := New(WithLongTermDays(30))
	_, err := l.Buy("AAA", day(2020, 1, 1), d("1"), d("10"))
	require.NoError(t, err)

	res, err := l.SellAll("AAA", day(2020, 3, 1), d("12"))
	require.NoError(t, err)
	assert.True(t, res.LongTerm.Equal(d("2")))
	assert.True(t, res.ShortTerm.IsZero())
}

func TestLot_ReturnPct(t *testing.T) {
	lot := Lot{UnitCost: d("100"), Quantity: d("1")}
	assert.InDelta(t, -20.0, lot.ReturnPct(d("80")), 1e-9)
	assert.InDelta(t, 5.0, lot.ReturnPct(d("105")), 1e-9)
}

func TestParseMatchingPolicy(t *testing.T) {
	tests := []struct {
		input    string
		expected MatchingPolicy
		wantErr  bool
	}{
		{input: "", expected: PolicyFIFO},
		{input: "FIFO", expected: PolicyFIFO},
		{input: "tax-optimized", expected: PolicyTaxOptimized},
		{input: "lifo", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMatchingPolicy(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}
