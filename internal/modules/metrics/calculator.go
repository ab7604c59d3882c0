// Package metrics derives performance figures from a finished run.
package metrics

import (
	"math"
	"time"

	"github.com/aristath/harvester/internal/domain"
	"github.com/aristath/harvester/pkg/formulas"
	"github.com/shopspring/decimal"
)

// DefaultTaxRate is the assumed marginal rate applied to harvested losses.
const DefaultTaxRate = 0.30

// PerformanceMetrics summarizes one portfolio history. Percentages are in
// percent units; SharpeRatio is a plain ratio.
type PerformanceMetrics struct {
	StartDate               time.Time `json:"start_date"`
	EndDate                 time.Time `json:"end_date"`
	DaysElapsed             int       `json:"days_elapsed"`
	FinalValue              float64   `json:"final_value"`
	TotalContributed        float64   `json:"total_contributed"`
	TotalReturnPct          float64   `json:"total_return_pct"`
	AnnualizedReturnPct     float64   `json:"annualized_return_pct"`
	VolatilityPct           float64   `json:"volatility_pct"`
	AnnualizedVolatilityPct float64   `json:"annualized_volatility_pct"`
	SharpeRatio             float64   `json:"sharpe_ratio"`
	MaxDrawdownPct          float64   `json:"max_drawdown_pct"`
	RealizedGainLoss        float64   `json:"realized_gain_loss"`
	ShortTermGainLoss       float64   `json:"short_term_gain_loss"`
	LongTermGainLoss        float64   `json:"long_term_gain_loss"`
	HarvestedLosses         float64   `json:"harvested_losses"`
	TaxSavingsEstimate      float64   `json:"tax_savings_estimate"`
	HarvestCount            int       `json:"harvest_count"`
	RebalanceCount          int       `json:"rebalance_count"`
	TransactionCount        int       `json:"transaction_count"`
}

// Calculator computes PerformanceMetrics. It holds no state between calls.
type Calculator struct {
	TaxRate      float64
	RiskFreeRate float64 // annual, as a decimal
}

// NewCalculator creates a calculator. A negative tax rate falls back to DefaultTaxRate.
func NewCalculator(taxRate, riskFreeRate float64) *Calculator {
	if taxRate < 0 {
		taxRate = DefaultTaxRate
	}
	return &Calculator{TaxRate: taxRate, RiskFreeRate: riskFreeRate}
}

// Calculate is a pure function of the recorded history, transactions and
// external cash flows.
func (c *Calculator) Calculate(history []domain.PortfolioState, txs []domain.Transaction, flows []domain.CashFlow) PerformanceMetrics {
	var m PerformanceMetrics
	c.addTransactionStats(&m, txs)

	series := DailySeries(history)
	if len(series) == 0 {
		return m
	}
	first, last := series[0], series[len(series)-1]
	m.StartDate = first.Date
	m.EndDate = last.Date
	m.DaysElapsed = domain.DaysBetween(first.Date, last.Date)
	m.FinalValue = last.TotalValue
	m.TotalContributed = last.Contributed

	if m.TotalContributed > 0 {
		total := (m.FinalValue - m.TotalContributed) / m.TotalContributed
		m.TotalReturnPct = total * 100
		m.AnnualizedReturnPct = formulas.AnnualizeTotalReturn(total, m.DaysElapsed) * 100
	}

	returns := Returns(series, flows)
	m.VolatilityPct = formulas.StdDev(returns) * 100
	m.AnnualizedVolatilityPct = formulas.AnnualizedVolatility(returns) * 100
	m.SharpeRatio = formulas.SharpeRatio(returns, c.RiskFreeRate)
	m.MaxDrawdownPct = formulas.MaxDrawdown(returns) * 100
	return m
}

func (c *Calculator) addTransactionStats(m *PerformanceMetrics, txs []domain.Transaction) {
	realized, short, long, harvested := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	rebalanceDays := make(map[time.Time]bool)

	for _, tx := range txs {
		if tx.Action.IsSell() {
			realized = realized.Add(tx.RealizedGainLoss)
			short = short.Add(tx.ShortTermGainLoss)
			long = long.Add(tx.LongTermGainLoss)
		}
		if tx.IsHarvest() {
			m.HarvestCount++
			if tx.RealizedGainLoss.IsNegative() {
				harvested = harvested.Add(tx.RealizedGainLoss)
			}
		}
		if tx.Reason == domain.ReasonRebalance {
			rebalanceDays[domain.Day(tx.Date)] = true
		}
	}

	m.TransactionCount = len(txs)
	m.RebalanceCount = len(rebalanceDays)
	m.RealizedGainLoss = realized.InexactFloat64()
	m.ShortTermGainLoss = short.InexactFloat64()
	m.LongTermGainLoss = long.InexactFloat64()
	m.HarvestedLosses = harvested.InexactFloat64()
	m.TaxSavingsEstimate = harvested.Abs().Mul(decimal.NewFromFloat(c.TaxRate)).InexactFloat64()
}

// DailySeries keeps the last snapshot of every date, in order. Intraday
// snapshots (contribution, harvest, rebalance) are superseded by the
// valuation recorded at the end of the same day.
func DailySeries(history []domain.PortfolioState) []domain.PortfolioState {
	var out []domain.PortfolioState
	for _, s := range history {
		if n := len(out); n > 0 && out[n-1].Date.Equal(s.Date) {
			out[n-1] = s
			continue
		}
		out = append(out, s)
	}
	return out
}

// Returns computes flow-adjusted daily returns over a daily series.
func Returns(series []domain.PortfolioState, flows []domain.CashFlow) []float64 {
	byDay := make(map[time.Time]float64, len(flows))
	for _, f := range flows {
		byDay[domain.Day(f.Date)] += f.Amount
	}
	values := make([]float64, len(series))
	aligned := make([]float64, len(series))
	for i, s := range series {
		values[i] = s.TotalValue
		aligned[i] = byDay[domain.Day(s.Date)]
	}
	return formulas.FlowAdjustedReturns(values, aligned)
}

// RollingPoint is one value of a rolling statistic.
type RollingPoint struct {
	Date          time.Time `json:"date"`
	VolatilityPct float64   `json:"volatility_pct"`
}

// RollingVolatility reports annualized volatility over trailing windows of
// window returns, starting at the first full window.
func RollingVolatility(history []domain.PortfolioState, flows []domain.CashFlow, window int) []RollingPoint {
	series := DailySeries(history)
	returns := Returns(series, flows)
	vol := formulas.RollingVolatility(returns, window)

	var out []RollingPoint
	for i, v := range vol {
		if math.IsNaN(v) {
			continue
		}
		// returns[i] ends at series[i+1]
		out = append(out, RollingPoint{Date: series[i+1].Date, VolatilityPct: v * 100})
	}
	return out
}
