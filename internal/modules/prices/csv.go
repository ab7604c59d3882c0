package prices

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aristath/harvester/internal/domain"
	"github.com/rs/zerolog"
)

// ReadCSV parses a wide price table: a "date" column followed by one column
// per ticker. Empty or unparseable cells are gaps, not errors.
func ReadCSV(r io.Reader) (*domain.PriceSeries, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return domain.NewPriceSeries(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read price header: %w", err)
	}
	if len(header) < 2 || !strings.EqualFold(strings.TrimSpace(header[0]), "date") {
		return nil, fmt.Errorf("price file must start with a date column followed by tickers")
	}
	tickers := make([]string, len(header)-1)
	for i, h := range header[1:] {
		tickers[i] = strings.ToUpper(strings.TrimSpace(h))
	}

	series := domain.NewPriceSeries()
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read price row %d: %w", line, err)
		}
		date, err := domain.ParseDate(record[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		for i, cell := range record[1:] {
			if i >= len(tickers) || tickers[i] == "" {
				break
			}
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			price, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				continue
			}
			series.Set(tickers[i], date, price)
		}
	}
	return series, nil
}

// WriteCSV writes series in the wide format read by ReadCSV.
func WriteCSV(w io.Writer, series *domain.PriceSeries) error {
	tickers := series.Tickers()
	writer := csv.NewWriter(w)
	if err := writer.Write(append([]string{"date"}, tickers...)); err != nil {
		return fmt.Errorf("failed to write price header: %w", err)
	}
	row := make([]string, len(tickers)+1)
	for _, date := range series.Dates() {
		row[0] = domain.FormatDate(date)
		for i, t := range tickers {
			row[i+1] = ""
			if p, ok := series.Price(t, date); ok {
				row[i+1] = strconv.FormatFloat(p, 'f', -1, 64)
			}
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write price row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// CSVProvider serves prices from a wide CSV file, read once on first use.
type CSVProvider struct {
	path string
	log  zerolog.Logger

	once   sync.Once
	series *domain.PriceSeries
	err    error
}

// NewCSVProvider creates a provider for the file at path.
func NewCSVProvider(path string, log zerolog.Logger) *CSVProvider {
	return &CSVProvider{
		path: path,
		log:  log.With().Str("component", "csv_prices").Logger(),
	}
}

// GetPrices returns the requested slice of the file.
func (p *CSVProvider) GetPrices(ctx context.Context, tickers []string, start, end time.Time) (*domain.PriceSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.once.Do(p.load)
	if p.err != nil {
		return nil, p.err
	}
	return p.series.Slice(tickers, start, end), nil
}

func (p *CSVProvider) load() {
	f, err := os.Open(p.path)
	if err != nil {
		p.err = fmt.Errorf("failed to open price file: %w", err)
		return
	}
	defer f.Close()

	p.series, p.err = ReadCSV(f)
	if p.err == nil {
		p.log.Info().
			Str("path", p.path).
			Int("tickers", len(p.series.Tickers())).
			Int("points", p.series.Len()).
			Msg("Loaded price file")
	}
}
