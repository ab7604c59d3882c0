package di

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/aristath/harvester/internal/config"
	"github.com/aristath/harvester/internal/domain"
	"github.com/aristath/harvester/internal/modules/prices"
	"github.com/aristath/harvester/internal/modules/reporting"
	"github.com/aristath/harvester/internal/modules/simulation"
	"github.com/aristath/harvester/internal/modules/sweep"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// walCheckpointSchedule runs the price database checkpoint job.
const walCheckpointSchedule = "@every 1h"

// Wire initializes all dependencies and returns a configured container.
// Order of operations:
// 1. Price sources and cache
// 2. Simulation and sweep services
// 3. Report sink
// 4. Maintenance jobs
func Wire(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Container, error) {
	c := &Container{Config: cfg, Log: log}

	if err := initializePrices(c, cfg, log); err != nil {
		return nil, fmt.Errorf("failed to initialize prices: %w", err)
	}

	c.SimulationService = simulation.NewService(c.PriceProvider, log)
	c.SweepRunner = sweep.NewRunner(c.SimulationService, cfg.SweepWorkers, log)

	sink, err := newSink(ctx, cfg, log)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to initialize report sink: %w", err)
	}
	c.Exporter = reporting.NewExporter(sink, reporting.DefaultCurrency, log)

	if err := registerJobs(c, log); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to register jobs: %w", err)
	}

	log.Info().Msg("Dependency injection wiring completed successfully")
	return c, nil
}

// initializePrices builds the provider chain: a CSV file upstream (if any)
// behind either the SQLite store or the msgpack file cache.
func initializePrices(c *Container, cfg *config.Config, log zerolog.Logger) error {
	var upstream domain.PriceProvider
	if cfg.PriceFile != "" {
		upstream = prices.NewCSVProvider(cfg.PriceFile, log)
	}

	if cfg.PriceDB != "" {
		store, err := prices.OpenStore(cfg.PriceDB, log)
		if err != nil {
			return err
		}
		c.PriceStore = store
		c.PriceCache = store
	} else {
		c.PriceCache = prices.NewFileCache(cfg.PriceCache)
	}

	c.PriceProvider = prices.NewCachedProvider(c.PriceCache, upstream, log)
	log.Info().
		Str("price_file", cfg.PriceFile).
		Bool("sqlite", c.PriceStore != nil).
		Msg("Price provider initialized")
	return nil
}

func newSink(ctx context.Context, cfg *config.Config, log zerolog.Logger) (reporting.Sink, error) {
	if cfg.S3.Enabled() {
		return reporting.NewS3Sink(ctx, cfg.S3, log)
	}
	return reporting.NewDirSink(filepath.Join(cfg.DataDir, "reports")), nil
}

func registerJobs(c *Container, log zerolog.Logger) error {
	if c.PriceStore == nil {
		return nil
	}
	c.Scheduler = cron.New()
	store := c.PriceStore
	_, err := c.Scheduler.AddFunc(walCheckpointSchedule, func() {
		if err := store.Checkpoint(); err != nil {
			log.Warn().Err(err).Msg("Price database checkpoint failed")
		}
	})
	if err != nil {
		return err
	}
	c.Scheduler.Start()
	return nil
}
