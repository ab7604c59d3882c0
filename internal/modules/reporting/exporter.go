package reporting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aristath/harvester/internal/domain"
	"github.com/aristath/harvester/internal/modules/simulation"
	"github.com/rs/zerolog"
)

// Artifact names written for each run, below a directory named after the run ID.
const (
	HistoryFile      = "history.csv"
	TransactionsFile = "transactions.csv"
	HoldingsFile     = "holdings.csv"
	SummaryFile      = "summary.md"
	ResultFile       = "result.json"
)

// Exporter writes every artifact of a run to a sink.
type Exporter struct {
	sink     Sink
	currency string
	log      zerolog.Logger
}

// NewExporter creates an exporter. An empty currency uses DefaultCurrency.
func NewExporter(sink Sink, currency string, log zerolog.Logger) *Exporter {
	if currency == "" {
		currency = DefaultCurrency
	}
	return &Exporter{
		sink:     sink,
		currency: currency,
		log:      log.With().Str("component", "exporter").Logger(),
	}
}

// Export writes the run's CSVs, markdown summary and JSON result, returning
// the sink locations written.
func (e *Exporter) Export(ctx context.Context, res *simulation.Result) ([]string, error) {
	var final domain.PortfolioState
	if len(res.History) > 0 {
		final = res.History[len(res.History)-1]
	}

	artifacts := []struct {
		name        string
		contentType string
		render      func(*bytes.Buffer) error
	}{
		{HistoryFile, "text/csv", func(b *bytes.Buffer) error { return WriteHistoryCSV(b, res.History) }},
		{TransactionsFile, "text/csv", func(b *bytes.Buffer) error { return WriteTransactionsCSV(b, res.Transactions) }},
		{HoldingsFile, "text/csv", func(b *bytes.Buffer) error { return WriteHoldingsCSV(b, final) }},
		{SummaryFile, "text/markdown", func(b *bytes.Buffer) error {
			_, err := b.WriteString(Summary(res, e.currency))
			return err
		}},
		{ResultFile, "application/json", func(b *bytes.Buffer) error {
			enc := json.NewEncoder(b)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}},
	}

	locations := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		var buf bytes.Buffer
		if err := a.render(&buf); err != nil {
			return locations, fmt.Errorf("failed to render %s: %w", a.name, err)
		}
		name := res.ID + "/" + a.name
		if err := e.sink.Write(ctx, name, a.contentType, buf.Bytes()); err != nil {
			return locations, err
		}
		locations = append(locations, e.sink.Location(name))
	}

	e.log.Info().Str("id", res.ID).Int("artifacts", len(locations)).Msg("Exported simulation report")
	return locations, nil
}
