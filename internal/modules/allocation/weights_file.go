package allocation

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// WeightedTicker is one row of a weights file.
type WeightedTicker struct {
	Ticker string
	Weight float64
}

var tickerColumns = []string{"symbol", "ticker"}

// ReadWeights parses a CSV with a Symbol (or Ticker) column and a Weight
// column. Headers are case-insensitive. A repeated ticker keeps its last row,
// in the position of that last row. Without a Weight column every row gets
// weight 0 and only the ticker order is meaningful.
func ReadWeights(r io.Reader) ([]WeightedTicker, bool, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, false, fmt.Errorf("weights file is empty")
		}
		return nil, false, fmt.Errorf("failed to read weights header: %w", err)
	}

	tickerCol, weightCol := -1, -1
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		for _, c := range tickerColumns {
			if name == c && tickerCol < 0 {
				tickerCol = i
			}
		}
		if name == "weight" {
			weightCol = i
		}
	}
	if tickerCol < 0 {
		return nil, false, fmt.Errorf("weights file has no Symbol column")
	}

	var rows []WeightedTicker
	position := make(map[string]int)
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, false, fmt.Errorf("failed to read weights line %d: %w", line, err)
		}
		if tickerCol >= len(record) {
			continue
		}
		ticker := NormalizeTicker(record[tickerCol])
		if ticker == "" {
			continue
		}

		weight := 0.0
		if weightCol >= 0 && weightCol < len(record) {
			raw := strings.TrimSuffix(strings.TrimSpace(record[weightCol]), "%")
			if raw != "" {
				weight, err = strconv.ParseFloat(raw, 64)
				if err != nil {
					return nil, false, fmt.Errorf("invalid weight %q for %s on line %d", record[weightCol], ticker, line)
				}
			}
		}

		if i, ok := position[ticker]; ok {
			rows = append(rows[:i], rows[i+1:]...)
			for t, p := range position {
				if p > i {
					position[t] = p - 1
				}
			}
		}
		position[ticker] = len(rows)
		rows = append(rows, WeightedTicker{Ticker: ticker, Weight: weight})
	}

	return rows, weightCol >= 0, nil
}

// ReadWeightsFile opens path and parses it with ReadWeights.
func ReadWeightsFile(path string) ([]WeightedTicker, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open weights file: %w", err)
	}
	defer f.Close()
	return ReadWeights(f)
}
