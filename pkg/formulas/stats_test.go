package formulas

import (
	"math"
	"testing"
)

func makeReturns(r float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = r
	}
	return out
}

func TestFlowAdjustedReturns(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		flows    []float64
		expected []float64
	}{
		{name: "too short", values: []float64{100}, expected: []float64{}},
		{name: "no flows", values: []float64{100, 110, 99}, flows: []float64{100, 0, 0}, expected: []float64{0.10, -0.10}},
		{name: "deposit is not a gain", values: []float64{100, 150}, flows: []float64{100, 50}, expected: []float64{0}},
		{name: "zero base", values: []float64{0, 100, 110}, flows: []float64{0, 100, 0}, expected: []float64{0, 0.10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FlowAdjustedReturns(tt.values, tt.flows)
			if len(result) != len(tt.expected) {
				t.Fatalf("FlowAdjustedReturns() len = %d, want %d", len(result), len(tt.expected))
			}
			for i := range result {
				if math.Abs(result[i]-tt.expected[i]) > 1e-12 {
					t.Errorf("FlowAdjustedReturns()[%d] = %v, want %v", i, result[i], tt.expected[i])
				}
			}
		})
	}
}

func TestAnnualizedVolatility(t *testing.T) {
	tests := []struct {
		name      string
		returns   []float64
		expected  float64
		tolerance float64
	}{
		{name: "empty returns", returns: []float64{}, expected: 0},
		{name: "single return", returns: []float64{0.01}, expected: 0},
		{name: "constant returns", returns: makeReturns(0.001, 20), expected: 0, tolerance: 1e-12},
		{name: "alternating returns", returns: []float64{0.01, -0.01, 0.01, -0.01}, expected: 0.01154700538 * math.Sqrt(252), tolerance: 1e-9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := AnnualizedVolatility(tt.returns)
			if math.Abs(result-tt.expected) > tt.tolerance {
				t.Errorf("AnnualizedVolatility() = %v, want %v (±%v)", result, tt.expected, tt.tolerance)
			}
		})
	}
}

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name     string
		returns  []float64
		expected float64
	}{
		{name: "empty", returns: nil, expected: 0},
		{name: "only gains", returns: []float64{0.1, 0.05}, expected: 0},
		{name: "peak to trough", returns: []float64{0.25, -0.2, -0.25, 0.5}, expected: -0.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MaxDrawdown(tt.returns)
			if math.Abs(result-tt.expected) > 1e-12 {
				t.Errorf("MaxDrawdown() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestSharpeRatio(t *testing.T) {
	if got := SharpeRatio(makeReturns(0.001, 10), 0); got != 0 {
		t.Errorf("SharpeRatio() with zero deviation = %v, want 0", got)
	}

	returns := []float64{0.02, 0.0, 0.02, 0.0}
	expected := 0.01 / 0.01154700538 * math.Sqrt(252)
	if got := SharpeRatio(returns, 0); math.Abs(got-expected) > 1e-6 {
		t.Errorf("SharpeRatio() = %v, want %v", got, expected)
	}
}

func TestAnnualizeTotalReturn(t *testing.T) {
	tests := []struct {
		name     string
		total    float64
		days     int
		expected float64
	}{
		{name: "one year", total: 0.10, days: 365, expected: math.Pow(1.10, 365.25/365) - 1},
		{name: "two years", total: 0.21, days: 730, expected: math.Pow(1.21, 365.25/730) - 1},
		{name: "no days", total: 0.10, days: 0, expected: 0},
		{name: "total loss", total: -1, days: 365, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := AnnualizeTotalReturn(tt.total, tt.days)
			if math.Abs(result-tt.expected) > 1e-12 {
				t.Errorf("AnnualizeTotalReturn() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestRollingVolatility(t *testing.T) {
	returns := []float64{0.01, -0.01, 0.01, -0.01, 0.01}
	result := RollingVolatility(returns, 2)
	if len(result) != len(returns) {
		t.Fatalf("RollingVolatility() len = %d, want %d", len(result), len(returns))
	}
	if !math.IsNaN(result[0]) {
		t.Errorf("RollingVolatility()[0] = %v, want NaN", result[0])
	}
	// population deviation of {0.01, -0.01} is 0.01
	expected := 0.01 * math.Sqrt(252)
	for i := 1; i < len(result); i++ {
		if math.Abs(result[i]-expected) > 1e-9 {
			t.Errorf("RollingVolatility()[%d] = %v, want %v", i, result[i], expected)
		}
	}

	short := RollingVolatility([]float64{0.01}, 5)
	if !math.IsNaN(short[0]) {
		t.Errorf("RollingVolatility() with short input = %v, want NaN", short[0])
	}
}
