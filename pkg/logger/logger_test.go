package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected zerolog.Level
	}{
		{name: "debug", input: "debug", expected: zerolog.DebugLevel},
		{name: "uppercase warn", input: "WARN", expected: zerolog.WarnLevel},
		{name: "warning alias", input: "warning", expected: zerolog.WarnLevel},
		{name: "error", input: "error", expected: zerolog.ErrorLevel},
		{name: "off", input: "off", expected: zerolog.Disabled},
		{name: "unknown falls back to info", input: "verbose", expected: zerolog.InfoLevel},
		{name: "empty falls back to info", input: "", expected: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}
}

func TestNew_WritesJSONAtConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})

	log.Info().Msg("hidden")
	assert.Empty(t, buf.String())

	log.Warn().Str("ticker", "AAA").Msg("shown")
	assert.Contains(t, buf.String(), `"ticker":"AAA"`)
	assert.Contains(t, buf.String(), `"message":"shown"`)
}
