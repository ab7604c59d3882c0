package di

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aristath/harvester/internal/config"
	"github.com/aristath/harvester/internal/domain"
	"github.com/aristath/harvester/internal/modules/prices"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePriceFile(t *testing.T, dir string) string {
	t.Helper()
	series := domain.NewPriceSeries()
	for i, d := 0, domain.Date(2020, 1, 1); i < 40; i, d = i+1, d.AddDate(0, 0, 1) {
		series.Set("AAA", d, 100+float64(i))
	}
	var buf bytes.Buffer
	require.NoError(t, prices.WriteCSV(&buf, series))
	path := filepath.Join(dir, "prices.csv")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func TestWire(t *testing.T) {
	tests := []struct {
		name      string
		useDB     bool
		wantStore bool
	}{
		{name: "file cache", useDB: false},
		{name: "sqlite store", useDB: true, wantStore: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			cfg := &config.Config{
				DataDir:    dir,
				Port:       8080,
				PriceFile:  writePriceFile(t, dir),
				PriceCache: filepath.Join(dir, "prices.msgpack"),
			}
			if tt.useDB {
				cfg.PriceDB = filepath.Join(dir, "prices.db")
			}

			c, err := Wire(context.Background(), cfg, zerolog.Nop())
			require.NoError(t, err)
			defer c.Close()

			assert.Equal(t, tt.wantStore, c.PriceStore != nil)
			assert.Equal(t, tt.wantStore, c.Scheduler != nil)
			require.NotNil(t, c.SimulationService)
			require.NotNil(t, c.SweepRunner)
			require.NotNil(t, c.Exporter)

			sim := config.Defaults()
			sim.StartDate, sim.EndDate = "2020-01-01", "2020-02-09"
			sim.TickersSource = []interface{}{"AAA"}
			sim.Benchmark = ""
			res, err := c.SimulationService.Run(context.Background(), sim)
			require.NoError(t, err)
			assert.Greater(t, res.Metrics.FinalValue, 0.0)

			cached, err := c.PriceCache.Get(context.Background(), []string{"AAA"}, domain.Date(2020, 1, 1), domain.Date(2020, 2, 9))
			require.NoError(t, err)
			assert.Equal(t, 40, cached.Len(), "fetched prices are written back to the cache")

			locations, err := c.Exporter.Export(context.Background(), res)
			require.NoError(t, err)
			assert.FileExists(t, locations[0])
		})
	}
}
