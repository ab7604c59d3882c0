package universe

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aristath/harvester/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelector_List(t *testing.T) {
	s := NewSelector(zerolog.Nop())

	tickers, warnings, err := s.Select(Source{Tickers: []string{"aapl", "MSFT", " AAPL ", "", "GOOG"}}, 2)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, []string{"AAPL", "MSFT"}, tickers)
}

func TestSelector_ShortUniverseWarns(t *testing.T) {
	s := NewSelector(zerolog.Nop())

	tickers, warnings, err := s.Select(Source{Tickers: []string{"AAA", "BBB"}}, 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB"}, tickers)
	require.Len(t, warnings, 1)
	assert.Equal(t, domain.WarningUniverseShort, warnings[0].Kind)
}

func TestSelector_WeightsFileRanksByWeight(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sp500.csv")
	content := "Symbol,Company,Weight\nBBB,Beta,2.0\nAAA,Alpha,7.1\nCCC,Gamma,2.0\nBBB,Beta,5.0\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	tickers, _, err := NewSelector(zerolog.Nop()).Select(Source{Path: path}, 3)
	require.NoError(t, err)
	// BBB keeps its last row (5.0)
	assert.Equal(t, []string{"AAA", "BBB", "CCC"}, tickers)
}

func TestSelector_Errors(t *testing.T) {
	s := NewSelector(zerolog.Nop())
	var cfgErr *domain.ConfigurationError

	_, _, err := s.Select(Source{Tickers: []string{"AAA"}}, 0)
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "top_n", cfgErr.Field)

	_, _, err = s.Select(Source{Tickers: []string{" "}}, 1)
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "tickers_source", cfgErr.Field)

	_, _, err = s.Select(Source{Path: filepath.Join(t.TempDir(), "nope.csv")}, 1)
	assert.True(t, errors.As(err, &cfgErr))
}

func TestParseSource(t *testing.T) {
	src, err := ParseSource([]interface{}{"AAA", "BBB"})
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB"}, src.Tickers)

	src, err = ParseSource("data/sp500.csv")
	require.NoError(t, err)
	assert.Equal(t, "data/sp500.csv", src.Path)

	_, err = ParseSource([]interface{}{"AAA", 3})
	assert.Error(t, err)
	_, err = ParseSource(12)
	assert.Error(t, err)
}
