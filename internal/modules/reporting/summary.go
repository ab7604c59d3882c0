package reporting

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/aristath/harvester/internal/domain"
	"github.com/aristath/harvester/internal/modules/metrics"
	"github.com/aristath/harvester/internal/modules/simulation"
	"github.com/charmbracelet/glamour"
)

// DefaultCurrency is used when a summary is rendered without one.
const DefaultCurrency = money.USD

func formatMoney(amount float64, currency string) string {
	if money.GetCurrency(currency) == nil {
		currency = DefaultCurrency
	}
	return money.NewFromFloat(amount, currency).Display()
}

func pct(v float64) string {
	return fmt.Sprintf("%+.2f%%", v)
}

type table struct {
	header []string
	rows   [][]string
}

func (t table) write(b *strings.Builder) {
	b.WriteString("| " + strings.Join(t.header, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(t.header)) + "\n")
	for _, r := range t.rows {
		b.WriteString("| " + strings.Join(r, " | ") + " |\n")
	}
	b.WriteString("\n")
}

// Summary renders the headline figures of a run as markdown.
func Summary(res *simulation.Result, currency string) string {
	var b strings.Builder
	m := res.Metrics
	cur := func(v float64) string { return formatMoney(v, currency) }

	fmt.Fprintf(&b, "# Simulation %s\n\n", res.ID)
	fmt.Fprintf(&b, "%s to %s, %d tickers, state **%s**.\n\n",
		domain.FormatDate(m.StartDate), domain.FormatDate(m.EndDate), len(res.Universe), res.State)
	if res.Error != "" {
		fmt.Fprintf(&b, "> Run failed: %s\n\n", res.Error)
	}

	b.WriteString("## Performance\n\n")
	perf := table{header: []string{"Metric", "Portfolio"}}
	if res.Benchmark != nil {
		perf.header = append(perf.header, res.Benchmark.Ticker)
	}
	addRow := func(name string, pick func(metrics.PerformanceMetrics) string) {
		row := []string{name, pick(m)}
		if res.Benchmark != nil {
			row = append(row, pick(res.Benchmark.Metrics))
		}
		perf.rows = append(perf.rows, row)
	}
	addRow("Final value", func(p metrics.PerformanceMetrics) string { return cur(p.FinalValue) })
	addRow("Contributed", func(p metrics.PerformanceMetrics) string { return cur(p.TotalContributed) })
	addRow("Total return", func(p metrics.PerformanceMetrics) string { return pct(p.TotalReturnPct) })
	addRow("Annualized return", func(p metrics.PerformanceMetrics) string { return pct(p.AnnualizedReturnPct) })
	addRow("Annualized volatility", func(p metrics.PerformanceMetrics) string { return fmt.Sprintf("%.2f%%", p.AnnualizedVolatilityPct) })
	addRow("Sharpe ratio", func(p metrics.PerformanceMetrics) string { return fmt.Sprintf("%.2f", p.SharpeRatio) })
	addRow("Max drawdown", func(p metrics.PerformanceMetrics) string { return pct(p.MaxDrawdownPct) })
	perf.write(&b)

	b.WriteString("## Taxes\n\n")
	table{
		header: []string{"Item", "Value"},
		rows: [][]string{
			{"Harvest events", fmt.Sprintf("%d", m.HarvestCount)},
			{"Harvested losses", cur(m.HarvestedLosses)},
			{"Estimated tax savings", cur(m.TaxSavingsEstimate)},
			{"Realized gain/loss", cur(m.RealizedGainLoss)},
			{"Short-term", cur(m.ShortTermGainLoss)},
			{"Long-term", cur(m.LongTermGainLoss)},
			{"Rebalances", fmt.Sprintf("%d", m.RebalanceCount)},
			{"Transactions", fmt.Sprintf("%d", m.TransactionCount)},
		},
	}.write(&b)

	if len(res.History) > 0 {
		last := res.History[len(res.History)-1]
		tickers := make([]string, 0, len(last.Holdings))
		for t, h := range last.Holdings {
			if h.Quantity > 0 {
				tickers = append(tickers, t)
			}
		}
		sort.Strings(tickers)
		if len(tickers) > 0 {
			b.WriteString("## Holdings\n\n")
			holdings := table{header: []string{"Ticker", "Market value", "Weight", "Target"}}
			for _, t := range tickers {
				holdings.rows = append(holdings.rows, []string{
					t,
					cur(last.Holdings[t].MarketValue),
					fmt.Sprintf("%.2f%%", last.Weight(t)*100),
					fmt.Sprintf("%.2f%%", res.Target[t]*100),
				})
			}
			holdings.rows = append(holdings.rows, []string{"Cash", cur(last.Cash), "", ""})
			holdings.write(&b)
		}
	}

	if len(res.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, w := range res.Warnings {
			fmt.Fprintf(&b, "- %s\n", w.String())
		}
		b.WriteString("\n")
	}
	return b.String()
}

// RenderTerminal styles markdown for a terminal of the given width.
func RenderTerminal(markdown string, width int) (string, error) {
	if width <= 0 {
		width = 100
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	out, err := r.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return out, nil
}
