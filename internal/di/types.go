// Package di provides dependency injection wiring for the harvester service.
package di

import (
	"github.com/aristath/harvester/internal/config"
	"github.com/aristath/harvester/internal/domain"
	"github.com/aristath/harvester/internal/modules/prices"
	"github.com/aristath/harvester/internal/modules/reporting"
	"github.com/aristath/harvester/internal/modules/simulation"
	"github.com/aristath/harvester/internal/modules/sweep"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Container holds every service instance. It is created by Wire and passed
// to handlers.
type Container struct {
	Config *config.Config
	Log    zerolog.Logger

	// Prices
	PriceStore    *prices.Store // nil unless HARVESTER_PRICE_DB is set
	PriceCache    prices.Cache  // msgpack file or SQLite store
	PriceProvider domain.PriceProvider

	// Services
	SimulationService *simulation.Service
	SweepRunner       *sweep.Runner
	Exporter          *reporting.Exporter

	// Maintenance jobs
	Scheduler *cron.Cron
}

// Close stops background jobs and releases databases.
func (c *Container) Close() error {
	if c.Scheduler != nil {
		<-c.Scheduler.Stop().Done()
	}
	if c.PriceStore != nil {
		return c.PriceStore.Close()
	}
	return nil
}
