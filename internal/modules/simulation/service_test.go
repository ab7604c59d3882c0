package simulation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/harvester/internal/config"
	"github.com/aristath/harvester/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	series *domain.PriceSeries
	calls  int
	asked  []string
	err    error
}

func (p *stubProvider) GetPrices(_ context.Context, tickers []string, start, end time.Time) (*domain.PriceSeries, error) {
	p.calls++
	p.asked = tickers
	if p.err != nil {
		return nil, p.err
	}
	return p.series.Slice(tickers, start, end), nil
}

func serviceConfig() config.SimulationConfig {
	cfg := config.Defaults()
	cfg.StartDate = "2020-01-01"
	cfg.EndDate = "2020-12-31"
	cfg.TickersSource = []interface{}{"AAA", "BB", "ZZZ"}
	cfg.RecurringInvestment = 1000
	cfg.Benchmark = "SPY"
	return cfg
}

func TestService_Run(t *testing.T) {
	start, end := domain.Date(2020, 1, 1), domain.Date(2020, 12, 31)
	provider := &stubProvider{series: wavePrices(start, end, []string{"AAA", "BB", "SPY"})}
	svc := NewService(provider, zerolog.Nop())

	res, err := svc.Run(context.Background(), serviceConfig())
	require.NoError(t, err)

	assert.Equal(t, 1, provider.calls, "prices are fetched in one batch")
	assert.ElementsMatch(t, []string{"AAA", "BB", "ZZZ", "SPY"}, provider.asked)

	assert.Equal(t, StateCompleted, res.State)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, []string{"AAA", "BB"}, res.Universe)
	assert.InDelta(t, 1.0, res.Target.Sum(), 1e-9)
	assert.InDelta(t, 0.5, res.Target["AAA"], 1e-9)

	var kinds []domain.WarningKind
	for _, w := range res.Warnings {
		kinds = append(kinds, w.Kind)
	}
	assert.Contains(t, kinds, domain.WarningMissingTicker)
	assert.Contains(t, kinds, domain.WarningAllocationNormalized)

	require.NotNil(t, res.Benchmark)
	require.NotNil(t, res.Comparison)
	assert.Equal(t, "SPY", res.Benchmark.Ticker)
	assert.Equal(t, res.Metrics.TotalContributed, res.Benchmark.Metrics.TotalContributed)
	assert.InDelta(t, res.Metrics.TotalReturnPct-res.Benchmark.Metrics.TotalReturnPct, res.Comparison.ExcessReturnPct, 1e-9)

	assert.Equal(t, 100000.0+11*1000, res.Metrics.TotalContributed)
	assert.Len(t, res.CashFlows, 12)
	assert.NotEmpty(t, res.Lots)
}

func TestService_PrepareOnceRunMany(t *testing.T) {
	start, end := domain.Date(2020, 1, 1), domain.Date(2020, 12, 31)
	provider := &stubProvider{series: wavePrices(start, end, []string{"AAA", "BB", "SPY"})}
	svc := NewService(provider, zerolog.Nop())

	cfg := serviceConfig()
	prepared, err := svc.Prepare(context.Background(), cfg)
	require.NoError(t, err)

	for _, trigger := range []float64{-5, -20} {
		cfg.SellTrigger = trigger
		res, err := svc.RunPrepared(context.Background(), prepared, cfg)
		require.NoError(t, err)
		assert.Equal(t, trigger, res.Config.SellTrigger)
	}
	assert.Equal(t, 1, provider.calls)
}

func TestService_WeightsFromTickerSource(t *testing.T) {
	start, end := domain.Date(2020, 1, 1), domain.Date(2020, 12, 31)
	path := filepath.Join(t.TempDir(), "weights.csv")
	require.NoError(t, os.WriteFile(path, []byte("Symbol,Weight\nAAA,5\nBB,3\nCC,2\n"), 0644))

	tests := []struct {
		name       string
		allocation interface{}
	}{
		{name: "same file as tickers source", allocation: path},
		{name: "source keyword", allocation: "source"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &stubProvider{series: wavePrices(start, end, []string{"AAA", "BB", "CC", "SPY"})}
			cfg := serviceConfig()
			cfg.TickersSource = path
			cfg.PortfolioAllocation = tt.allocation
			cfg.TopN = 2

			res, err := NewService(provider, zerolog.Nop()).Run(context.Background(), cfg)
			require.NoError(t, err)
			assert.Equal(t, []string{"AAA", "BB"}, res.Universe)
			assert.InDelta(t, 0.625, res.Target["AAA"], 1e-9)
			assert.InDelta(t, 0.375, res.Target["BB"], 1e-9)

			var kinds []domain.WarningKind
			for _, w := range res.Warnings {
				kinds = append(kinds, w.Kind)
			}
			assert.Contains(t, kinds, domain.WarningAllocationNormalized)
		})
	}
}

func TestService_Errors(t *testing.T) {
	start, end := domain.Date(2020, 1, 1), domain.Date(2020, 12, 31)

	t.Run("invalid config", func(t *testing.T) {
		cfg := serviceConfig()
		cfg.TopN = -1
		_, err := NewService(&stubProvider{series: domain.NewPriceSeries()}, zerolog.Nop()).Run(context.Background(), cfg)
		var cfgErr *domain.ConfigurationError
		assert.True(t, errors.As(err, &cfgErr))
	})

	t.Run("no data for any ticker", func(t *testing.T) {
		_, err := NewService(&stubProvider{series: domain.NewPriceSeries()}, zerolog.Nop()).Run(context.Background(), serviceConfig())
		var gap *domain.DataGapError
		require.True(t, errors.As(err, &gap))
		assert.Equal(t, start, gap.Date)
	})

	t.Run("provider failure", func(t *testing.T) {
		_, err := NewService(&stubProvider{err: errors.New("offline")}, zerolog.Nop()).Run(context.Background(), serviceConfig())
		assert.ErrorContains(t, err, "offline")
	})

	t.Run("missing benchmark is a warning", func(t *testing.T) {
		provider := &stubProvider{series: wavePrices(start, end, []string{"AAA", "BB"})}
		res, err := NewService(provider, zerolog.Nop()).Run(context.Background(), serviceConfig())
		require.NoError(t, err)
		assert.Nil(t, res.Benchmark)
		last := res.Warnings[len(res.Warnings)-1]
		assert.Equal(t, domain.WarningMissingTicker, last.Kind)
		assert.Equal(t, "SPY", last.Ticker)
	})
}
