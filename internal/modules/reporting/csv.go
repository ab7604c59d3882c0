// Package reporting exports simulation results as CSV, markdown and JSON
// and publishes them to a sink.
package reporting

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/aristath/harvester/internal/domain"
)

// HistoryColumns is the header of the history export.
var HistoryColumns = []string{"date", "event", "cash", "invested", "total_value", "contributed", "realized_gain_loss"}

// TransactionColumns is the header of the transaction export.
var TransactionColumns = []string{"date", "ticker", "action", "reason", "quantity", "price", "amount", "realized_gain_loss", "short_term_gain_loss", "long_term_gain_loss"}

// HoldingColumns is the header of the holdings export.
var HoldingColumns = []string{"ticker", "quantity", "price", "market_value", "cost_basis", "unrealized_gain_loss", "weight"}

func fixed2(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func writeAll(w io.Writer, header []string, rows [][]string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write csv rows: %w", err)
	}
	return nil
}

// WriteHistoryCSV writes one row per snapshot.
func WriteHistoryCSV(w io.Writer, history []domain.PortfolioState) error {
	rows := make([][]string, 0, len(history))
	for _, s := range history {
		rows = append(rows, []string{
			domain.FormatDate(s.Date),
			string(s.Event),
			fixed2(s.Cash),
			fixed2(s.InvestedValue()),
			fixed2(s.TotalValue),
			fixed2(s.Contributed),
			fixed2(s.RealizedGainLoss),
		})
	}
	return writeAll(w, HistoryColumns, rows)
}

// WriteTransactionsCSV writes the trade log. Decimal fields keep their exact
// representation.
func WriteTransactionsCSV(w io.Writer, txs []domain.Transaction) error {
	rows := make([][]string, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, []string{
			domain.FormatDate(tx.Date),
			tx.Ticker,
			string(tx.Action),
			string(tx.Reason),
			tx.Quantity.String(),
			tx.Price.String(),
			tx.Amount.StringFixed(2),
			tx.RealizedGainLoss.StringFixed(2),
			tx.ShortTermGainLoss.StringFixed(2),
			tx.LongTermGainLoss.StringFixed(2),
		})
	}
	return writeAll(w, TransactionColumns, rows)
}

// WriteHoldingsCSV writes the positions of a snapshot, sorted by ticker.
// Closed positions are skipped.
func WriteHoldingsCSV(w io.Writer, state domain.PortfolioState) error {
	tickers := make([]string, 0, len(state.Holdings))
	for t, h := range state.Holdings {
		if h.Quantity > 0 {
			tickers = append(tickers, t)
		}
	}
	sort.Strings(tickers)

	rows := make([][]string, 0, len(tickers))
	for _, t := range tickers {
		h := state.Holdings[t]
		rows = append(rows, []string{
			t,
			strconv.FormatFloat(h.Quantity, 'f', -1, 64),
			strconv.FormatFloat(h.Price, 'f', -1, 64),
			fixed2(h.MarketValue),
			fixed2(h.CostBasis),
			fixed2(h.MarketValue - h.CostBasis),
			strconv.FormatFloat(state.Weight(t), 'f', 4, 64),
		})
	}
	return writeAll(w, HoldingColumns, rows)
}
