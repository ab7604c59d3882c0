package allocation

import (
	"math"
	"sort"

	"github.com/aristath/harvester/internal/domain"
	"github.com/rs/zerolog"
)

// WeightTolerance is how far a weight sum may stray from 1 before it is
// normalized with a warning.
const WeightTolerance = 1e-6

// Target maps every universe ticker to its target weight. Weights sum to 1.
type Target map[string]float64

// Tickers returns the tickers, sorted.
func (t Target) Tickers() []string {
	out := make([]string, 0, len(t))
	for k := range t {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Sum adds all weights.
func (t Target) Sum() float64 {
	sum := 0.0
	for _, w := range t {
		sum += w
	}
	return sum
}

// Without returns a renormalized copy excluding the given tickers. The result
// is empty when nothing with positive weight remains.
func (t Target) Without(tickers ...string) Target {
	drop := make(map[string]bool, len(tickers))
	for _, tk := range tickers {
		drop[tk] = true
	}
	out := make(Target, len(t))
	sum := 0.0
	for k, w := range t {
		if drop[k] {
			continue
		}
		out[k] = w
		sum += w
	}
	if sum <= 0 {
		return Target{}
	}
	for k, w := range out {
		out[k] = w / sum
	}
	return out
}

// Resolver turns an allocation Spec into a Target over a universe.
type Resolver struct {
	log zerolog.Logger
}

// NewResolver creates a resolver.
func NewResolver(log zerolog.Logger) *Resolver {
	return &Resolver{log: log.With().Str("component", "allocation").Logger()}
}

// Resolve produces a Target covering exactly the universe.
func (r *Resolver) Resolve(universe []string, spec Spec) (Target, []domain.Warning, error) {
	if len(universe) == 0 {
		return nil, nil, domain.NewConfigurationError("tickers_source", "universe is empty")
	}

	switch spec.Kind {
	case KindEqual:
		target := make(Target, len(universe))
		w := 1.0 / float64(len(universe))
		for _, t := range universe {
			target[t] = w
		}
		return target, nil, nil

	case KindExplicit:
		return r.resolveExplicit(universe, spec.Weights, "portfolio_allocation")

	case KindFromFile:
		rows, hasWeights, err := ReadWeightsFile(spec.Path)
		if err != nil {
			return nil, nil, domain.NewConfigurationError("portfolio_allocation", "%v", err)
		}
		if !hasWeights {
			return nil, nil, domain.NewConfigurationError("portfolio_allocation", "weights file %s has no Weight column", spec.Path)
		}
		weights := make(map[string]float64, len(rows))
		for _, row := range rows {
			weights[row.Ticker] = row.Weight
		}
		return r.resolveExplicit(universe, weights, "portfolio_allocation")

	case KindFromSource:
		return r.resolveSource(universe, spec.Path)

	default:
		return nil, nil, domain.NewConfigurationError("portfolio_allocation", "unknown allocation kind %d", spec.Kind)
	}
}

// resolveSource keeps the weights of the universe rows of the source file
// and renormalizes them. Rows outside the universe are dropped.
func (r *Resolver) resolveSource(universe []string, path string) (Target, []domain.Warning, error) {
	if path == "" {
		return nil, nil, domain.NewConfigurationError("portfolio_allocation", "source allocation needs a tickers_source weights file")
	}
	rows, hasWeights, err := ReadWeightsFile(path)
	if err != nil {
		return nil, nil, domain.NewConfigurationError("portfolio_allocation", "%v", err)
	}
	if !hasWeights {
		return nil, nil, domain.NewConfigurationError("portfolio_allocation", "weights file %s has no Weight column", path)
	}

	inUniverse := make(map[string]bool, len(universe))
	for _, t := range universe {
		inUniverse[t] = true
	}
	weights := make(map[string]float64, len(universe))
	dropped := 0
	for _, row := range rows {
		if !inUniverse[row.Ticker] {
			dropped++
			continue
		}
		weights[row.Ticker] = row.Weight
	}

	target, warnings, err := r.resolveExplicit(universe, weights, "portfolio_allocation")
	if err != nil {
		return nil, nil, err
	}
	if dropped > 0 && len(warnings) == 0 {
		warnings = append(warnings, domain.NewWarning(domain.WarningAllocationNormalized, "",
			"weights of %d tickers outside the universe dropped and the rest normalized to 1", dropped))
	}
	return target, warnings, nil
}

func (r *Resolver) resolveExplicit(universe []string, weights map[string]float64, field string) (Target, []domain.Warning, error) {
	inUniverse := make(map[string]bool, len(universe))
	for _, t := range universe {
		inUniverse[t] = true
	}

	sum := 0.0
	for _, ticker := range sortedKeys(weights) {
		w := weights[ticker]
		if !inUniverse[ticker] {
			return nil, nil, domain.NewConfigurationError(field, "ticker %s is not in the selected universe", ticker)
		}
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, nil, domain.NewConfigurationError(field, "weight for %s must be a non-negative number, got %g", ticker, w)
		}
		sum += w
	}
	if sum <= 0 {
		return nil, nil, domain.NewConfigurationError(field, "weights must sum to a positive value")
	}

	var warnings []domain.Warning
	if math.Abs(sum-1) > WeightTolerance {
		warnings = append(warnings, domain.NewWarning(domain.WarningAllocationNormalized, "",
			"allocation weights summed to %g and were normalized to 1", sum))
		r.log.Warn().Float64("sum", sum).Msg("Normalizing allocation weights")
	}

	target := make(Target, len(universe))
	for _, t := range universe {
		target[t] = weights[t] / sum
	}
	return target, warnings, nil
}

func sortedKeys(m map[string]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
