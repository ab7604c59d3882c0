// Package sweep runs a simulation over a grid of engine parameters in
// parallel, sharing one set of fetched prices.
package sweep

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aristath/harvester/internal/config"
	"github.com/aristath/harvester/internal/domain"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// MaxPoints bounds the size of a single sweep.
const MaxPoints = 1000

// Grid lists the values to try per parameter. An empty dimension keeps the
// base configuration's value.
type Grid struct {
	SellTriggers         []float64 `json:"sell_triggers" toml:"sell_triggers" yaml:"sell_triggers"`
	RebalanceThresholds  []float64 `json:"rebalance_thresholds" toml:"rebalance_thresholds" yaml:"rebalance_thresholds"`
	RebalanceFrequencies []string  `json:"rebalance_frequencies" toml:"rebalance_frequencies" yaml:"rebalance_frequencies"`
}

// Point is one combination of the grid.
type Point struct {
	Index              int     `json:"index"`
	SellTrigger        float64 `json:"sell_trigger"`
	RebalanceThreshold float64 `json:"rebalance_threshold"`
	RebalanceFrequency string  `json:"rebalance_frequency"`
}

// Apply returns base with the point's parameters set.
func (p Point) Apply(base config.SimulationConfig) config.SimulationConfig {
	base.SellTrigger = p.SellTrigger
	base.RebalanceThreshold = p.RebalanceThreshold
	base.RebalanceFrequency = p.RebalanceFrequency
	return base
}

// Size is the number of points the grid expands to.
func (g Grid) Size() int {
	n := 1
	for _, l := range []int{len(g.SellTriggers), len(g.RebalanceThresholds), len(g.RebalanceFrequencies)} {
		if l > 0 {
			n *= l
		}
	}
	return n
}

// Points expands the grid in sell trigger, threshold, frequency order.
func (g Grid) Points(base config.SimulationConfig) ([]Point, error) {
	if size := g.Size(); size > MaxPoints {
		return nil, domain.NewConfigurationError("grid", "%d points exceeds the limit of %d", size, MaxPoints)
	}

	triggers := g.SellTriggers
	if len(triggers) == 0 {
		triggers = []float64{base.SellTrigger}
	}
	thresholds := g.RebalanceThresholds
	if len(thresholds) == 0 {
		thresholds = []float64{base.RebalanceThreshold}
	}
	freqs := g.RebalanceFrequencies
	if len(freqs) == 0 {
		freqs = []string{base.RebalanceFrequency}
	}

	points := make([]Point, 0, len(triggers)*len(thresholds)*len(freqs))
	for _, st := range triggers {
		for _, th := range thresholds {
			for _, f := range freqs {
				p := Point{Index: len(points), SellTrigger: st, RebalanceThreshold: th, RebalanceFrequency: f}
				cfg := p.Apply(base)
				if err := cfg.Validate(); err != nil {
					return nil, err
				}
				points = append(points, p)
			}
		}
	}
	return points, nil
}

// LoadGrid reads a grid from a .json, .toml or .yaml file.
func LoadGrid(path string) (*Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read grid file: %w", err)
	}

	var g Grid
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&g)
	case ".toml":
		err = toml.Unmarshal(data, &g)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &g)
	default:
		return nil, fmt.Errorf("unsupported grid file extension %q", ext)
	}
	if err != nil {
		return nil, domain.NewConfigurationError("grid", "failed to decode %s: %v", path, err)
	}
	return &g, nil
}
