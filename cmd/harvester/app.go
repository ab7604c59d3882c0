package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/aristath/harvester/internal/config"
	"github.com/aristath/harvester/internal/di"
	"github.com/aristath/harvester/internal/modules/reporting"
	"github.com/aristath/harvester/pkg/logger"
	"github.com/rs/zerolog"
)

var logLevel = flag.String("log-level", "", "Log level (debug, info, warn, error). Defaults to LOG_LEVEL or warn.")

// setup loads the environment configuration, applies the price settings of
// sim (if any) and wires the container.
func setup(ctx context.Context, sim *config.SimulationConfig) (*di.Container, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load configuration: %w", err)
	}
	level := *logLevel
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	if level == "" {
		level = "warn"
	}
	log := logger.New(logger.Config{Level: level, Pretty: cfg.LogPretty})
	logger.SetGlobalLogger(log)

	if sim != nil {
		if sim.PriceFile != "" {
			cfg.PriceFile = sim.PriceFile
		}
		if sim.PriceCache != "" {
			cfg.PriceCache = sim.PriceCache
		}
		if sim.PriceDB != "" {
			cfg.PriceDB = sim.PriceDB
		}
	}

	container, err := di.Wire(ctx, cfg, log)
	if err != nil {
		return nil, log, err
	}
	return container, log, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printMarkdown renders md for the terminal unless plain is set.
func printMarkdown(w io.Writer, md string, plain bool) error {
	if !plain {
		rendered, err := reporting.RenderTerminal(md, 100)
		if err == nil {
			md = rendered
		}
	}
	_, err := io.WriteString(w, md)
	return err
}
