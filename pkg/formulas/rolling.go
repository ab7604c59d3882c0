package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// RollingVolatility returns the annualized standard deviation of each
// trailing window of returns. Output index i covers returns[i-window+1 : i+1];
// indexes before the first full window are NaN.
func RollingVolatility(returns []float64, window int) []float64 {
	out := make([]float64, len(returns))
	if window < 2 || len(returns) < window {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}

	// go-talib uses the population deviation, leaving zeros in the lookback
	sd := talib.StdDev(returns, window, 1.0)
	scale := math.Sqrt(TradingDaysPerYear)
	for i := range out {
		if i < window-1 || i >= len(sd) {
			out[i] = math.NaN()
			continue
		}
		out[i] = sd[i] * scale
	}
	return out
}
