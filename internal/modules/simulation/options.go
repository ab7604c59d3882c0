package simulation

import (
	"github.com/aristath/harvester/internal/config"
	"github.com/aristath/harvester/internal/modules/ledger"
)

// HarvestMode selects what a harvest check compares against the sell trigger.
type HarvestMode string

const (
	// HarvestPosition sells a whole ticker when its average-cost return crosses the trigger.
	HarvestPosition HarvestMode = "position"
	// HarvestLot sells only the individual lots that crossed the trigger.
	HarvestLot HarvestMode = "lot"
)

// ReinvestMode decides where harvest proceeds go.
type ReinvestMode string

const (
	// ReinvestSameTicker rebuys the harvested quantity at the sale price.
	ReinvestSameTicker ReinvestMode = "same_ticker"
	// ReinvestRedistribute spreads proceeds over the other target tickers.
	ReinvestRedistribute ReinvestMode = "redistribute"
)

// Options are the engine knobs that do not affect the schedule.
type Options struct {
	SellTrigger        float64 // percent, negative
	RebalanceThreshold float64 // percent of a ticker's target weight
	MatchingPolicy     ledger.MatchingPolicy
	HarvestMode        HarvestMode
	Reinvest           ReinvestMode
	ShareDecimals      int32
	LongTermDays       int
}

// DefaultOptions mirrors config.Defaults.
func DefaultOptions() Options {
	return OptionsFromConfig(config.Defaults())
}

// OptionsFromConfig extracts engine options from a validated config.
func OptionsFromConfig(cfg config.SimulationConfig) Options {
	opts := Options{
		SellTrigger:        cfg.SellTrigger,
		RebalanceThreshold: cfg.RebalanceThreshold,
		MatchingPolicy:     cfg.Policy(),
		HarvestMode:        HarvestMode(cfg.HarvestMode),
		Reinvest:           ReinvestMode(cfg.Reinvest),
		ShareDecimals:      cfg.ShareDecimals,
		LongTermDays:       cfg.LongTermDays,
	}
	if opts.HarvestMode == "" {
		opts.HarvestMode = HarvestPosition
	}
	if opts.Reinvest == "" {
		opts.Reinvest = ReinvestSameTicker
	}
	if opts.LongTermDays <= 0 {
		opts.LongTermDays = ledger.DefaultLongTermDays
	}
	return opts
}
