package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ConfigurationError reports invalid or contradictory settings. It is raised
// before a simulation starts.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// NewConfigurationError is a shorthand for &ConfigurationError{...}.
func NewConfigurationError(field, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// DataGapError reports a required date on which no ticker has a price.
type DataGapError struct {
	Date time.Time
}

func (e *DataGapError) Error() string {
	return fmt.Sprintf("no price data for any ticker on %s", FormatDate(e.Date))
}

// InsufficientHoldingsError means a sell asked for more than the ledger holds.
// It is a ledger bug, never a user error.
type InsufficientHoldingsError struct {
	Ticker    string
	Requested decimal.Decimal
	Held      decimal.Decimal
}

func (e *InsufficientHoldingsError) Error() string {
	return fmt.Sprintf("insufficient holdings for %s: requested %s, held %s",
		e.Ticker, e.Requested.String(), e.Held.String())
}

// WarningKind classifies non-fatal issues collected during a run.
type WarningKind string

const (
	WarningPartialData          WarningKind = "partial_data"
	WarningAllocationNormalized WarningKind = "allocation_normalized"
	WarningMissingTicker        WarningKind = "missing_ticker"
	WarningUniverseShort        WarningKind = "universe_short"
)

// Warning is a recovered, non-fatal problem returned alongside results.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Date    *time.Time  `json:"date,omitempty"`
	Ticker  string      `json:"ticker,omitempty"`
	Message string      `json:"message"`
}

// NewWarning builds a warning without a date.
func NewWarning(kind WarningKind, ticker, format string, args ...interface{}) Warning {
	return Warning{Kind: kind, Ticker: ticker, Message: fmt.Sprintf(format, args...)}
}

// NewDatedWarning builds a warning attached to a date.
func NewDatedWarning(kind WarningKind, date time.Time, ticker, format string, args ...interface{}) Warning {
	d := Day(date)
	return Warning{Kind: kind, Date: &d, Ticker: ticker, Message: fmt.Sprintf(format, args...)}
}

func (w Warning) String() string {
	if w.Date != nil {
		return fmt.Sprintf("[%s] %s: %s", w.Kind, FormatDate(*w.Date), w.Message)
	}
	return fmt.Sprintf("[%s] %s", w.Kind, w.Message)
}
