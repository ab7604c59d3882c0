package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/aristath/harvester/internal/domain"
	"github.com/aristath/harvester/internal/modules/allocation"
	"github.com/aristath/harvester/internal/modules/clock"
	"github.com/aristath/harvester/internal/modules/ledger"
	"github.com/aristath/harvester/internal/modules/universe"
	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// SimulationConfig is the user-facing description of one backtest.
// Files may be JSON, TOML or YAML; every key matches the JSON name.
type SimulationConfig struct {
	InitialInvestment   float64     `json:"initial_investment" toml:"initial_investment" yaml:"initial_investment" validate:"gte=0"`
	RecurringInvestment float64     `json:"recurring_investment" toml:"recurring_investment" yaml:"recurring_investment" validate:"gte=0"`
	InvestmentFrequency string      `json:"investment_frequency" toml:"investment_frequency" yaml:"investment_frequency" validate:"contribution_frequency"`
	PortfolioAllocation interface{} `json:"portfolio_allocation" toml:"portfolio_allocation" yaml:"portfolio_allocation"`
	StartDate           string      `json:"start_date" toml:"start_date" yaml:"start_date" validate:"required,isodate"`
	EndDate             string      `json:"end_date" toml:"end_date" yaml:"end_date" validate:"required,isodate"`
	SellTrigger         float64     `json:"sell_trigger" toml:"sell_trigger" yaml:"sell_trigger" validate:"lt=0"`
	TickersSource       interface{} `json:"tickers_source" toml:"tickers_source" yaml:"tickers_source" validate:"required"`
	TopN                int         `json:"top_n" toml:"top_n" yaml:"top_n" validate:"gt=0"`
	RebalanceFrequency  string      `json:"rebalance_frequency" toml:"rebalance_frequency" yaml:"rebalance_frequency" validate:"frequency"`
	RebalanceThreshold  float64     `json:"rebalance_threshold" toml:"rebalance_threshold" yaml:"rebalance_threshold" validate:"gte=0"`
	HarvestFrequency    string      `json:"harvest_frequency" toml:"harvest_frequency" yaml:"harvest_frequency" validate:"frequency"`
	HarvestMode         string      `json:"harvest_mode" toml:"harvest_mode" yaml:"harvest_mode" validate:"oneof=position lot"`
	Reinvest            string      `json:"reinvest" toml:"reinvest" yaml:"reinvest" validate:"oneof=same_ticker redistribute"`
	MatchingPolicy      string      `json:"matching_policy" toml:"matching_policy" yaml:"matching_policy" validate:"matching_policy"`
	TaxRate             float64     `json:"tax_rate" toml:"tax_rate" yaml:"tax_rate" validate:"gte=0,lte=1"`
	RiskFreeRate        float64     `json:"risk_free_rate" toml:"risk_free_rate" yaml:"risk_free_rate" validate:"gte=0,lt=1"`
	ShareDecimals       int32       `json:"share_decimals" toml:"share_decimals" yaml:"share_decimals" validate:"gte=0,lte=8"`
	LongTermDays        int         `json:"long_term_days" toml:"long_term_days" yaml:"long_term_days" validate:"gt=0"`
	Benchmark           string      `json:"benchmark" toml:"benchmark" yaml:"benchmark"`
	PriceCache          string      `json:"price_cache,omitempty" toml:"price_cache" yaml:"price_cache"`
	// PickleFile is the legacy name of PriceCache.
	PickleFile string `json:"pickle_file,omitempty" toml:"pickle_file" yaml:"pickle_file"`
	PriceFile  string `json:"price_file,omitempty" toml:"price_file" yaml:"price_file"`
	PriceDB    string `json:"price_db,omitempty" toml:"price_db" yaml:"price_db"`
}

// Defaults returns the settings used for every key a file leaves out.
func Defaults() SimulationConfig {
	return SimulationConfig{
		InitialInvestment:   100000,
		RecurringInvestment: 4000,
		InvestmentFrequency: "monthly",
		PortfolioAllocation: "equal",
		SellTrigger:         -10,
		TopN:                50,
		RebalanceFrequency:  "yearly",
		RebalanceThreshold:  50,
		HarvestFrequency:    "daily",
		HarvestMode:         "position",
		Reinvest:            "same_ticker",
		MatchingPolicy:      string(ledger.PolicyFIFO),
		TaxRate:             0.30,
		RiskFreeRate:        0,
		ShareDecimals:       6,
		LongTermDays:        ledger.DefaultLongTermDays,
		Benchmark:           "SPY",
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	mustRegister(v, "isodate", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseDate(fl.Field().String())
		return err == nil
	})
	mustRegister(v, "frequency", func(fl validator.FieldLevel) bool {
		_, err := clock.ParseFrequency(fl.Field().String())
		return err == nil
	})
	mustRegister(v, "contribution_frequency", func(fl validator.FieldLevel) bool {
		f, err := clock.ParseFrequency(fl.Field().String())
		return err == nil && !f.IsDaily() && !f.IsNever()
	})
	mustRegister(v, "matching_policy", func(fl validator.FieldLevel) bool {
		_, err := ledger.ParseMatchingPolicy(fl.Field().String())
		return err == nil
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("failed to register %s validation: %v", tag, err))
	}
}

// LoadSimulation reads a simulation file, picking the decoder from its extension.
func LoadSimulation(path string) (*SimulationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read simulation config: %w", err)
	}
	cfg, err := DecodeSimulation(data, strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return cfg, nil
}

// DecodeSimulation decodes json, toml or yaml on top of Defaults and validates the result.
func DecodeSimulation(data []byte, format string) (*SimulationConfig, error) {
	cfg := Defaults()
	var err error
	switch strings.ToLower(format) {
	case "json", "":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&cfg)
	case "toml":
		err = toml.Unmarshal(data, &cfg)
	case "yaml", "yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		return nil, fmt.Errorf("unsupported config format %q", format)
	}
	if err != nil {
		return nil, &domain.ConfigurationError{Reason: fmt.Sprintf("failed to decode %s: %v", format, err)}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and cross-field rules. Every failure is
// a *domain.ConfigurationError naming the offending key.
func (c *SimulationConfig) Validate() error {
	c.normalize()
	if err := validate.Struct(c); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			fe := errs[0]
			return domain.NewConfigurationError(fe.Field(), "failed %q validation (value %v)", fe.Tag(), fe.Value())
		}
		return &domain.ConfigurationError{Reason: err.Error()}
	}
	if !c.Start().Before(c.End()) {
		return domain.NewConfigurationError("start_date", "start date %s must be before end date %s", c.StartDate, c.EndDate)
	}
	if _, err := c.AllocationSpec(); err != nil {
		return domain.NewConfigurationError("portfolio_allocation", "%v", err)
	}
	if _, err := c.TickerSource(); err != nil {
		return domain.NewConfigurationError("tickers_source", "%v", err)
	}
	return nil
}

func (c *SimulationConfig) normalize() {
	if c.PriceCache == "" && c.PickleFile != "" {
		c.PriceCache = c.PickleFile
	}
	c.PickleFile = ""
	c.Benchmark = allocation.NormalizeTicker(c.Benchmark)
	c.HarvestMode = strings.ToLower(strings.TrimSpace(c.HarvestMode))
	c.Reinvest = strings.ToLower(strings.TrimSpace(c.Reinvest))
}

// Start is the parsed start date. Call only after Validate.
func (c *SimulationConfig) Start() time.Time {
	d, _ := domain.ParseDate(c.StartDate)
	return d
}

// End is the parsed end date. Call only after Validate.
func (c *SimulationConfig) End() time.Time {
	d, _ := domain.ParseDate(c.EndDate)
	return d
}

// AllocationSpec parses portfolio_allocation.
func (c *SimulationConfig) AllocationSpec() (allocation.Spec, error) {
	return allocation.ParseSpec(c.PortfolioAllocation)
}

// TickerSource parses tickers_source.
func (c *SimulationConfig) TickerSource() (universe.Source, error) {
	return universe.ParseSource(c.TickersSource)
}

// Policy is the parsed lot matching policy.
func (c *SimulationConfig) Policy() ledger.MatchingPolicy {
	p, _ := ledger.ParseMatchingPolicy(c.MatchingPolicy)
	return p
}

// ScheduleConfig converts the frequency settings for clock.Build.
func (c *SimulationConfig) ScheduleConfig() (clock.Config, error) {
	contribution, err := clock.ParseFrequency(c.InvestmentFrequency)
	if err != nil {
		return clock.Config{}, domain.NewConfigurationError("investment_frequency", "%v", err)
	}
	rebalance, err := clock.ParseFrequency(c.RebalanceFrequency)
	if err != nil {
		return clock.Config{}, domain.NewConfigurationError("rebalance_frequency", "%v", err)
	}
	harvest, err := clock.ParseFrequency(c.HarvestFrequency)
	if err != nil {
		return clock.Config{}, domain.NewConfigurationError("harvest_frequency", "%v", err)
	}
	return clock.Config{
		Start:               c.Start(),
		End:                 c.End(),
		InitialInvestment:   c.InitialInvestment,
		RecurringInvestment: c.RecurringInvestment,
		Contribution:        contribution,
		Rebalance:           rebalance,
		Harvest:             harvest,
	}, nil
}
