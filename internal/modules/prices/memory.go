// Package prices provides price providers and caches for simulations.
package prices

import (
	"context"
	"time"

	"github.com/aristath/harvester/internal/domain"
)

// MemoryProvider serves prices from an in-memory series.
type MemoryProvider struct {
	series *domain.PriceSeries
}

// NewMemoryProvider creates a provider over series. A nil series serves nothing.
func NewMemoryProvider(series *domain.PriceSeries) *MemoryProvider {
	if series == nil {
		series = domain.NewPriceSeries()
	}
	return &MemoryProvider{series: series}
}

// GetPrices returns the requested slice of the series.
func (p *MemoryProvider) GetPrices(ctx context.Context, tickers []string, start, end time.Time) (*domain.PriceSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.series.Slice(tickers, start, end), nil
}
