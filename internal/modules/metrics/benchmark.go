package metrics

import (
	"fmt"
	"time"

	"github.com/aristath/harvester/internal/domain"
	"github.com/aristath/harvester/internal/modules/ledger"
	"github.com/shopspring/decimal"
)

// DefaultBenchmark is compared against when a config names none.
const DefaultBenchmark = "SPY"

// BenchmarkHistory replays the portfolio's cash flows into a single ticker
// and values it on each of dates. Deposits made before the benchmark has a
// price wait in cash until its first quote.
func BenchmarkHistory(ticker string, prices *domain.PriceSeries, dates []time.Time, flows []domain.CashFlow, shareDecimals int32) ([]domain.PortfolioState, []domain.Transaction, error) {
	if !prices.Has(ticker) {
		return nil, nil, fmt.Errorf("no prices for benchmark %s", ticker)
	}

	deposits := make(map[time.Time]decimal.Decimal, len(flows))
	for _, f := range flows {
		d := domain.Day(f.Date)
		deposits[d] = deposits[d].Add(decimal.NewFromFloat(f.Amount))
	}

	book := ledger.New()
	cash, contributed, last := decimal.Zero, decimal.Zero, decimal.Zero
	var history []domain.PortfolioState
	var txs []domain.Transaction

	for _, date := range dates {
		date = domain.Day(date)
		if p, ok := prices.Price(ticker, date); ok {
			last = decimal.NewFromFloat(p)
		}
		if dep, ok := deposits[date]; ok {
			cash = cash.Add(dep)
			contributed = contributed.Add(dep)
		}
		if last.IsPositive() && cash.IsPositive() {
			qty := cash.Div(last).RoundDown(shareDecimals)
			if qty.IsPositive() {
				if _, err := book.Buy(ticker, date, qty, last); err != nil {
					return nil, nil, fmt.Errorf("failed to replay benchmark buy: %w", err)
				}
				cost := qty.Mul(last)
				cash = cash.Sub(cost)
				txs = append(txs, domain.Transaction{
					Date:              date,
					Ticker:            ticker,
					Action:            domain.ActionBuy,
					Reason:            domain.ReasonContribution,
					Quantity:          qty,
					Price:             last,
					Amount:            cost,
					RealizedGainLoss:  decimal.Zero,
					ShortTermGainLoss: decimal.Zero,
					LongTermGainLoss:  decimal.Zero,
				})
			}
		}

		qty := book.Quantity(ticker)
		mv := qty.Mul(last)
		holdings := map[string]domain.HoldingState{}
		if qty.IsPositive() {
			holdings[ticker] = domain.HoldingState{
				Quantity:    qty.InexactFloat64(),
				Price:       last.InexactFloat64(),
				MarketValue: mv.InexactFloat64(),
				CostBasis:   book.TotalCostBasis(ticker).InexactFloat64(),
			}
		}
		history = append(history, domain.PortfolioState{
			Date:        date,
			Event:       domain.EventValuation,
			Cash:        cash.InexactFloat64(),
			Holdings:    holdings,
			TotalValue:  cash.Add(mv).InexactFloat64(),
			Contributed: contributed.InexactFloat64(),
		})
	}
	return history, txs, nil
}

// Comparison puts a portfolio next to its benchmark.
type Comparison struct {
	Benchmark             string  `json:"benchmark"`
	ExcessReturnPct       float64 `json:"excess_return_pct"`
	ExcessAnnualizedPct   float64 `json:"excess_annualized_pct"`
	VolatilityDifference  float64 `json:"volatility_difference_pct"`
	FinalValueDifference  float64 `json:"final_value_difference"`
	DrawdownDifferencePct float64 `json:"drawdown_difference_pct"`
}

// Compare subtracts benchmark figures from portfolio figures.
func Compare(benchmark string, portfolio, bench PerformanceMetrics) Comparison {
	return Comparison{
		Benchmark:             benchmark,
		ExcessReturnPct:       portfolio.TotalReturnPct - bench.TotalReturnPct,
		ExcessAnnualizedPct:   portfolio.AnnualizedReturnPct - bench.AnnualizedReturnPct,
		VolatilityDifference:  portfolio.AnnualizedVolatilityPct - bench.AnnualizedVolatilityPct,
		FinalValueDifference:  portfolio.FinalValue - bench.FinalValue,
		DrawdownDifferencePct: portfolio.MaxDrawdownPct - bench.MaxDrawdownPct,
	}
}
