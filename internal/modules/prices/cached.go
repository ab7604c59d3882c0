package prices

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/harvester/internal/domain"
	"github.com/rs/zerolog"
)

// coverageSlackDays is how far the first or last cached price may sit from
// the query bounds before the range counts as short. It covers weekends and
// holidays.
const coverageSlackDays = 5

// CachedProvider answers from a cache and asks upstream only for tickers the
// cache has no data for. Fetched prices are written back to the cache.
// Coverage is tracked per ticker, not per date range.
type CachedProvider struct {
	cache    Cache
	upstream domain.PriceProvider
	log      zerolog.Logger
}

// NewCachedProvider wraps upstream with cache. A nil upstream serves the
// cache alone.
func NewCachedProvider(cache Cache, upstream domain.PriceProvider, log zerolog.Logger) *CachedProvider {
	return &CachedProvider{
		cache:    cache,
		upstream: upstream,
		log:      log.With().Str("component", "cached_prices").Logger(),
	}
}

// GetPrices implements domain.PriceProvider.
func (p *CachedProvider) GetPrices(ctx context.Context, tickers []string, start, end time.Time) (*domain.PriceSeries, error) {
	cached, err := p.cache.Get(ctx, tickers, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to read price cache: %w", err)
	}

	var missing []string
	for _, t := range tickers {
		if !cached.Has(t) {
			missing = append(missing, t)
			continue
		}
		if first, last, short := ShortCoverage(cached, t, start, end); short {
			p.log.Debug().
				Str("ticker", t).
				Time("cached_from", first).
				Time("cached_to", last).
				Time("start", start).
				Time("end", end).
				Msg("Cached prices cover less than the requested range")
		}
	}
	p.log.Debug().
		Int("requested", len(tickers)).
		Int("cached", len(tickers)-len(missing)).
		Msg("Price cache lookup")

	if len(missing) == 0 || p.upstream == nil {
		return cached, nil
	}

	fetched, err := p.upstream.GetPrices(ctx, missing, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch uncached prices: %w", err)
	}
	if fetched != nil && fetched.Len() > 0 {
		if err := p.cache.Put(ctx, fetched); err != nil {
			// The run can proceed with the fetched data
			p.log.Warn().Err(err).Msg("Failed to update price cache")
		}
	}
	cached.Merge(fetched)
	return cached, nil
}

// ShortCoverage reports the first and last priced dates of ticker and whether
// they fall more than coverageSlackDays inside [start, end].
func ShortCoverage(series *domain.PriceSeries, ticker string, start, end time.Time) (time.Time, time.Time, bool) {
	dates := series.TickerDates(ticker)
	if len(dates) == 0 {
		return time.Time{}, time.Time{}, false
	}
	first, last := dates[0], dates[len(dates)-1]
	slack := coverageSlackDays * 24 * time.Hour
	short := first.Sub(domain.Day(start)) > slack || domain.Day(end).Sub(last) > slack
	return first, last, short
}
