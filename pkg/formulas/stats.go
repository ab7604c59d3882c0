// Package formulas holds pure statistical helpers over return series.
package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear is used to annualize daily statistics.
const TradingDaysPerYear = 252

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// AnnualizedVolatility calculates annualized volatility from daily returns
// Formula: Std Dev of Daily Returns × sqrt(252 trading days)
func AnnualizedVolatility(dailyReturns []float64) float64 {
	return StdDev(dailyReturns) * math.Sqrt(TradingDaysPerYear)
}

// FlowAdjustedReturns converts a value series into period returns that ignore
// external deposits: r[i] = (values[i+1] - flows[i+1]) / values[i] - 1.
// flows must be aligned with values. Periods starting from a non-positive
// value are reported as 0.
func FlowAdjustedReturns(values, flows []float64) []float64 {
	if len(values) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] <= 0 {
			continue
		}
		var flow float64
		if i < len(flows) {
			flow = flows[i]
		}
		returns[i-1] = (values[i]-flow)/values[i-1] - 1
	}
	return returns
}

// SharpeRatio annualizes the mean excess daily return over its deviation.
// riskFreeRate is annual, as a decimal.
func SharpeRatio(dailyReturns []float64, riskFreeRate float64) float64 {
	sd := StdDev(dailyReturns)
	if sd == 0 {
		return 0
	}
	excess := Mean(dailyReturns) - riskFreeRate/TradingDaysPerYear
	return excess / sd * math.Sqrt(TradingDaysPerYear)
}

// MaxDrawdown compounds returns into a wealth index and returns the deepest
// peak-to-trough decline as a negative decimal (0 when it never declines).
func MaxDrawdown(returns []float64) float64 {
	wealth, peak, worst := 1.0, 1.0, 0.0
	for _, r := range returns {
		wealth *= 1 + r
		if wealth > peak {
			peak = wealth
		}
		if dd := wealth/peak - 1; dd < worst {
			worst = dd
		}
	}
	return worst
}

// AnnualizeTotalReturn converts a total return over days calendar days into
// a yearly rate using 365.25-day years. Both are decimals.
func AnnualizeTotalReturn(totalReturn float64, days int) float64 {
	if days <= 0 || 1+totalReturn <= 0 {
		return 0
	}
	return math.Pow(1+totalReturn, 365.25/float64(days)) - 1
}
