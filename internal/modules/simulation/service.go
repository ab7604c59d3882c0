package simulation

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/harvester/internal/config"
	"github.com/aristath/harvester/internal/domain"
	"github.com/aristath/harvester/internal/modules/allocation"
	"github.com/aristath/harvester/internal/modules/clock"
	"github.com/aristath/harvester/internal/modules/ledger"
	"github.com/aristath/harvester/internal/modules/metrics"
	"github.com/aristath/harvester/internal/modules/universe"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Result is everything a run produced.
type Result struct {
	ID           string                     `json:"id"`
	State        State                      `json:"state"`
	Config       config.SimulationConfig    `json:"config"`
	Universe     []string                   `json:"universe"`
	Target       allocation.Target          `json:"target"`
	History      []domain.PortfolioState    `json:"history"`
	Transactions []domain.Transaction       `json:"transactions"`
	CashFlows    []domain.CashFlow          `json:"cash_flows"`
	Lots         map[string][]ledger.Lot    `json:"lots"`
	Metrics      metrics.PerformanceMetrics `json:"metrics"`
	Benchmark    *BenchmarkResult           `json:"benchmark,omitempty"`
	Comparison   *metrics.Comparison        `json:"comparison,omitempty"`
	Warnings     []domain.Warning           `json:"warnings"`
	Error        string                     `json:"error,omitempty"`
	Duration     time.Duration              `json:"duration_ns"`
}

// BenchmarkResult is the same cash flows replayed into one ticker.
type BenchmarkResult struct {
	Ticker  string                     `json:"ticker"`
	History []domain.PortfolioState    `json:"history"`
	Metrics metrics.PerformanceMetrics `json:"metrics"`
}

// Prepared holds the run inputs that do not depend on engine options, so a
// sweep can fetch and resolve once.
type Prepared struct {
	Universe []string
	Target   allocation.Target
	Prices   *domain.PriceSeries
	Warnings []domain.Warning
	Start    time.Time
	End      time.Time
}

// Service wires price retrieval, universe selection, allocation and the engine.
type Service struct {
	provider domain.PriceProvider
	selector *universe.Selector
	resolver *allocation.Resolver
	log      zerolog.Logger
}

// NewService creates a simulation service over a price provider.
func NewService(provider domain.PriceProvider, log zerolog.Logger) *Service {
	return &Service{
		provider: provider,
		selector: universe.NewSelector(log),
		resolver: allocation.NewResolver(log),
		log:      log.With().Str("component", "simulation_service").Logger(),
	}
}

// Run validates cfg, prepares inputs and executes one simulation.
func (s *Service) Run(ctx context.Context, cfg config.SimulationConfig) (*Result, error) {
	prepared, err := s.Prepare(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s.RunPrepared(ctx, prepared, cfg)
}

// Prepare selects the universe, fetches every price in one batched call and
// resolves the target allocation. Tickers with no data at all are dropped
// with a missing_ticker warning and the remaining weights renormalized.
func (s *Service) Prepare(ctx context.Context, cfg config.SimulationConfig) (*Prepared, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	src, err := cfg.TickerSource()
	if err != nil {
		return nil, domain.NewConfigurationError("tickers_source", "%v", err)
	}
	spec, err := cfg.AllocationSpec()
	if err != nil {
		return nil, domain.NewConfigurationError("portfolio_allocation", "%v", err)
	}
	spec = spec.WithSource(src.Path)

	tickers, warnings, err := s.selector.Select(src, cfg.TopN)
	if err != nil {
		return nil, err
	}
	target, resolveWarnings, err := s.resolver.Resolve(tickers, spec)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, resolveWarnings...)

	start, end := cfg.Start(), cfg.End()
	query := tickers
	if cfg.Benchmark != "" && !contains(tickers, cfg.Benchmark) {
		query = append(append([]string(nil), tickers...), cfg.Benchmark)
	}
	fetched, err := s.provider.GetPrices(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prices: %w", err)
	}
	prices := fetched.Slice(query, start, end)

	var available, dropped []string
	for _, t := range tickers {
		if prices.Has(t) {
			available = append(available, t)
			continue
		}
		dropped = append(dropped, t)
		warnings = append(warnings, domain.NewWarning(domain.WarningMissingTicker, t, "no price data for %s, dropped from universe", t))
	}
	if len(available) == 0 {
		return nil, &domain.DataGapError{Date: start}
	}
	if len(dropped) > 0 {
		target = target.Without(dropped...)
		if len(target) == 0 {
			return nil, domain.NewConfigurationError("portfolio_allocation", "no weight left after dropping tickers without data")
		}
		warnings = append(warnings, domain.NewWarning(domain.WarningAllocationNormalized, "",
			"weights renormalized over %d tickers with data", len(available)))
	}

	for _, w := range warnings {
		s.log.Warn().Str("kind", string(w.Kind)).Str("ticker", w.Ticker).Msg(w.Message)
	}
	s.log.Info().
		Int("universe", len(available)).
		Int("price_points", prices.Len()).
		Msg("Simulation inputs prepared")

	return &Prepared{
		Universe: available,
		Target:   target,
		Prices:   prices,
		Warnings: warnings,
		Start:    start,
		End:      end,
	}, nil
}

// RunPrepared validates cfg and runs one engine over prepared inputs. Only
// the engine and schedule settings of cfg are read; the universe, allocation
// and dates come from p. On engine failure the partial result is returned
// with the error.
func (s *Service) RunPrepared(ctx context.Context, p *Prepared, cfg config.SimulationConfig) (*Result, error) {
	began := time.Now()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sc, err := cfg.ScheduleConfig()
	if err != nil {
		return nil, err
	}
	sc.Start, sc.End = p.Start, p.End

	cal := clock.CalendarFromPrices(p.Prices.Slice(p.Universe, p.Start, p.End), p.Start, p.End)
	schedule, err := clock.Build(cal, sc)
	if err != nil {
		return nil, err
	}

	engine := NewEngine(p.Target, p.Prices, schedule, OptionsFromConfig(cfg), s.log)
	out, runErr := engine.Run(ctx)

	res := &Result{
		ID:           uuid.New().String(),
		State:        out.State,
		Config:       cfg,
		Universe:     p.Universe,
		Target:       p.Target,
		History:      out.History,
		Transactions: out.Transactions,
		CashFlows:    out.CashFlows,
		Lots:         out.Lots,
		Warnings:     append(append([]domain.Warning(nil), p.Warnings...), out.Warnings...),
	}

	calc := metrics.NewCalculator(cfg.TaxRate, cfg.RiskFreeRate)
	res.Metrics = calc.Calculate(out.History, out.Transactions, out.CashFlows)

	if runErr != nil {
		res.Error = runErr.Error()
		res.Duration = time.Since(began)
		return res, runErr
	}

	if cfg.Benchmark != "" {
		s.benchmark(res, p, cfg, schedule, calc)
	}
	res.Duration = time.Since(began)

	s.log.Info().
		Str("id", res.ID).
		Float64("final_value", res.Metrics.FinalValue).
		Float64("total_return_pct", res.Metrics.TotalReturnPct).
		Int("harvests", res.Metrics.HarvestCount).
		Dur("duration", res.Duration).
		Msg("Simulation finished")
	return res, nil
}

func (s *Service) benchmark(res *Result, p *Prepared, cfg config.SimulationConfig, schedule *clock.Schedule, calc *metrics.Calculator) {
	history, txs, err := metrics.BenchmarkHistory(cfg.Benchmark, p.Prices, schedule.Valuations, res.CashFlows, cfg.ShareDecimals)
	if err != nil {
		w := domain.NewWarning(domain.WarningMissingTicker, cfg.Benchmark, "benchmark skipped: %v", err)
		res.Warnings = append(res.Warnings, w)
		s.log.Warn().Str("ticker", cfg.Benchmark).Err(err).Msg("Benchmark skipped")
		return
	}
	bm := calc.Calculate(history, txs, res.CashFlows)
	res.Benchmark = &BenchmarkResult{Ticker: cfg.Benchmark, History: history, Metrics: bm}
	cmp := metrics.Compare(cfg.Benchmark, res.Metrics, bm)
	res.Comparison = &cmp
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
