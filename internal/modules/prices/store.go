package prices

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/harvester/internal/database"
	"github.com/aristath/harvester/internal/domain"
	"github.com/rs/zerolog"
)

// Store keeps prices in the SQLite prices table.
// Database: prices.db (prices table)
type Store struct {
	db  *database.DB
	log zerolog.Logger
}

// OpenStore opens (and migrates) the price database at path.
func OpenStore(path string, log zerolog.Logger) (*Store, error) {
	db, err := database.New(database.Config{
		Path:    path,
		Profile: database.ProfileCache,
		Name:    "prices",
	})
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate price database: %w", err)
	}
	return NewStore(db, log), nil
}

// NewStore creates a store over an already migrated database.
func NewStore(db *database.DB, log zerolog.Logger) *Store {
	return &Store{
		db:  db,
		log: log.With().Str("repo", "prices").Logger(),
	}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put upserts every price of series in one transaction.
func (s *Store) Put(ctx context.Context, series *domain.PriceSeries) error {
	if series == nil || series.Len() == 0 {
		return nil
	}
	fetchedAt := time.Now().Unix()

	err := database.WithTransaction(s.db.Conn(), func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO prices (ticker, date, close, fetched_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(ticker, date) DO UPDATE SET close = excluded.close, fetched_at = excluded.fetched_at`)
		if err != nil {
			return fmt.Errorf("failed to prepare price upsert: %w", err)
		}
		defer stmt.Close()

		var execErr error
		series.Each(func(ticker string, date time.Time, price float64) {
			if execErr != nil {
				return
			}
			if _, err := stmt.ExecContext(ctx, ticker, domain.FormatDate(date), price, fetchedAt); err != nil {
				execErr = fmt.Errorf("failed to upsert price %s %s: %w", ticker, domain.FormatDate(date), err)
			}
		})
		return execErr
	})
	if err != nil {
		return err
	}

	s.log.Debug().Int("points", series.Len()).Msg("Stored prices")
	return nil
}

// Get loads the prices of tickers within [start, end]. A nil ticker list
// loads every ticker.
func (s *Store) Get(ctx context.Context, tickers []string, start, end time.Time) (*domain.PriceSeries, error) {
	query := "SELECT ticker, date, close FROM prices WHERE date >= ? AND date <= ?"
	args := []interface{}{domain.FormatDate(start), domain.FormatDate(end)}
	if tickers != nil {
		if len(tickers) == 0 {
			return domain.NewPriceSeries(), nil
		}
		query += " AND ticker IN (?" + strings.Repeat(", ?", len(tickers)-1) + ")"
		for _, t := range tickers {
			args = append(args, t)
		}
	}

	rows, err := s.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query prices: %w", err)
	}
	defer rows.Close()

	series := domain.NewPriceSeries()
	for rows.Next() {
		var ticker, ds string
		var price float64
		if err := rows.Scan(&ticker, &ds, &price); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		date, err := domain.ParseDate(ds)
		if err != nil {
			return nil, fmt.Errorf("invalid stored date for %s: %w", ticker, err)
		}
		series.Set(ticker, date, price)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prices: %w", err)
	}
	return series, nil
}

// GetPrices makes the store usable as a provider on its own.
func (s *Store) GetPrices(ctx context.Context, tickers []string, start, end time.Time) (*domain.PriceSeries, error) {
	return s.Get(ctx, tickers, start, end)
}

// Tickers lists every stored ticker.
func (s *Store) Tickers(ctx context.Context) ([]string, error) {
	rows, err := s.db.Conn().QueryContext(ctx, "SELECT DISTINCT ticker FROM prices ORDER BY ticker")
	if err != nil {
		return nil, fmt.Errorf("failed to query tickers: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tickers: %w", err)
	}
	return out, nil
}

// Checkpoint truncates the write-ahead log.
func (s *Store) Checkpoint() error {
	return s.db.WALCheckpoint("TRUNCATE")
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.QuickCheck(ctx)
}
