package prices

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aristath/harvester/internal/domain"
	"github.com/vmihailenco/msgpack/v5"
)

// Cache stores prices between runs.
type Cache interface {
	Get(ctx context.Context, tickers []string, start, end time.Time) (*domain.PriceSeries, error)
	Put(ctx context.Context, series *domain.PriceSeries) error
}

// cacheFile is the on-disk layout: ticker -> ISO date -> close.
type cacheFile map[string]map[string]float64

// FileCache persists a price series as a single msgpack file.
type FileCache struct {
	path string
	mu   sync.Mutex
}

// NewFileCache creates a cache backed by the file at path.
func NewFileCache(path string) *FileCache {
	return &FileCache{path: path}
}

// Path returns the cache file path.
func (c *FileCache) Path() string {
	return c.path
}

// Load reads the whole cache. A missing file is an empty cache.
func (c *FileCache) Load() (*domain.PriceSeries, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load()
}

func (c *FileCache) load() (*domain.PriceSeries, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return domain.NewPriceSeries(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read price cache: %w", err)
	}

	var raw cacheFile
	if err := msgpack.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode price cache %s: %w", c.path, err)
	}
	series := domain.NewPriceSeries()
	for ticker, byDate := range raw {
		for ds, price := range byDate {
			date, err := domain.ParseDate(ds)
			if err != nil {
				return nil, fmt.Errorf("price cache %s, ticker %s: %w", c.path, ticker, err)
			}
			series.Set(ticker, date, price)
		}
	}
	return series, nil
}

// Save replaces the cache contents with series.
func (c *FileCache) Save(series *domain.PriceSeries) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.save(series)
}

func (c *FileCache) save(series *domain.PriceSeries) error {
	raw := make(cacheFile)
	series.Each(func(ticker string, date time.Time, price float64) {
		byDate, ok := raw[ticker]
		if !ok {
			byDate = make(map[string]float64)
			raw[ticker] = byDate
		}
		byDate[domain.FormatDate(date)] = price
	})

	data, err := msgpack.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to encode price cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write price cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("failed to replace price cache: %w", err)
	}
	return nil
}

// Get returns the cached prices of tickers within [start, end].
func (c *FileCache) Get(ctx context.Context, tickers []string, start, end time.Time) (*domain.PriceSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	series, err := c.Load()
	if err != nil {
		return nil, err
	}
	return series.Slice(tickers, start, end), nil
}

// Put merges series into the file.
func (c *FileCache) Put(ctx context.Context, series *domain.PriceSeries) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, err := c.load()
	if err != nil {
		return err
	}
	existing.Merge(series)
	return c.save(existing)
}
