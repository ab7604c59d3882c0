// Package universe selects the tickers a simulation trades.
package universe

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aristath/harvester/internal/domain"
	"github.com/aristath/harvester/internal/modules/allocation"
	"github.com/rs/zerolog"
)

// Source is where tickers come from: an inline list or a file path.
type Source struct {
	Tickers []string
	Path    string
}

// ParseSource converts a decoded config value (list or path) into a Source.
func ParseSource(raw interface{}) (Source, error) {
	switch v := raw.(type) {
	case Source:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return Source{}, fmt.Errorf("tickers source is empty")
		}
		return Source{Path: s}, nil
	case []string:
		return Source{Tickers: v}, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return Source{}, fmt.Errorf("ticker list entry %v is not a string", item)
			}
			out = append(out, s)
		}
		return Source{Tickers: out}, nil
	default:
		return Source{}, fmt.Errorf("unsupported tickers source of type %T", raw)
	}
}

func (s Source) String() string {
	if s.Path != "" {
		return s.Path
	}
	return strings.Join(s.Tickers, ",")
}

// Selector picks the top-N tickers from a source.
type Selector struct {
	log zerolog.Logger
}

// NewSelector creates a selector.
func NewSelector(log zerolog.Logger) *Selector {
	return &Selector{log: log.With().Str("component", "universe").Logger()}
}

// Select returns up to topN deduplicated tickers. Lists keep their order.
// Weights files are ranked by weight descending, ties keeping file order.
func (s *Selector) Select(src Source, topN int) ([]string, []domain.Warning, error) {
	if topN <= 0 {
		return nil, nil, domain.NewConfigurationError("top_n", "must be positive, got %d", topN)
	}

	var ranked []string
	if src.Path != "" {
		rows, hasWeights, err := allocation.ReadWeightsFile(src.Path)
		if err != nil {
			return nil, nil, domain.NewConfigurationError("tickers_source", "%v", err)
		}
		if hasWeights {
			sort.SliceStable(rows, func(i, j int) bool { return rows[i].Weight > rows[j].Weight })
		}
		for _, row := range rows {
			ranked = append(ranked, row.Ticker)
		}
	} else {
		ranked = dedupe(src.Tickers)
	}

	if len(ranked) == 0 {
		return nil, nil, domain.NewConfigurationError("tickers_source", "no tickers found in %s", src)
	}

	var warnings []domain.Warning
	if len(ranked) < topN {
		warnings = append(warnings, domain.NewWarning(domain.WarningUniverseShort, "",
			"requested top %d tickers but only %d are available", topN, len(ranked)))
		s.log.Warn().Int("top_n", topN).Int("available", len(ranked)).Msg("Universe smaller than requested")
	} else {
		ranked = ranked[:topN]
	}

	s.log.Debug().Strs("tickers", ranked).Msg("Universe selected")
	return ranked, warnings, nil
}

func dedupe(tickers []string) []string {
	seen := make(map[string]bool, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = allocation.NormalizeTicker(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
