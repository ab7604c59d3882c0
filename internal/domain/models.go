package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Action is the kind of a recorded trade.
type Action string

const (
	ActionBuy           Action = "BUY"
	ActionSell          Action = "SELL"
	ActionRebalanceBuy  Action = "REBALANCE_BUY"
	ActionRebalanceSell Action = "REBALANCE_SELL"
)

// IsSell reports whether the action removes shares.
func (a Action) IsSell() bool {
	return a == ActionSell || a == ActionRebalanceSell
}

// Reason records why the engine traded.
type Reason string

const (
	ReasonContribution Reason = "contribution"
	ReasonHarvest      Reason = "harvest"
	ReasonRebalance    Reason = "rebalance"
)

// Transaction is one append-only entry of the trade log. Realized fields are
// zero on buys.
type Transaction struct {
	Date              time.Time       `json:"date"`
	Ticker            string          `json:"ticker"`
	Action            Action          `json:"action"`
	Reason            Reason          `json:"reason"`
	Quantity          decimal.Decimal `json:"quantity"`
	Price             decimal.Decimal `json:"price"`
	Amount            decimal.Decimal `json:"amount"`
	RealizedGainLoss  decimal.Decimal `json:"realized_gain_loss"`
	ShortTermGainLoss decimal.Decimal `json:"short_term_gain_loss"`
	LongTermGainLoss  decimal.Decimal `json:"long_term_gain_loss"`
}

// IsHarvest reports whether the transaction is the sell leg of a harvest.
func (t Transaction) IsHarvest() bool {
	return t.Action == ActionSell && t.Reason == ReasonHarvest
}

// EventKind tags what produced a portfolio snapshot.
type EventKind string

const (
	EventContribution EventKind = "contribution"
	EventHarvest      EventKind = "harvest"
	EventRebalance    EventKind = "rebalance"
	EventValuation    EventKind = "valuation"
)

// HoldingState is the valuation of one ticker inside a snapshot.
type HoldingState struct {
	Quantity    float64 `json:"quantity"`
	Price       float64 `json:"price"`
	MarketValue float64 `json:"market_value"`
	CostBasis   float64 `json:"cost_basis"`
}

// PortfolioState is an immutable snapshot appended to a run's history.
type PortfolioState struct {
	Date             time.Time               `json:"date"`
	Event            EventKind               `json:"event"`
	Cash             float64                 `json:"cash"`
	Holdings         map[string]HoldingState `json:"holdings"`
	TotalValue       float64                 `json:"total_value"`
	Contributed      float64                 `json:"contributed"`
	RealizedGainLoss float64                 `json:"realized_gain_loss"`
}

// InvestedValue is the market value of all holdings, excluding cash.
func (s PortfolioState) InvestedValue() float64 {
	return s.TotalValue - s.Cash
}

// Weight returns a ticker's share of total value.
func (s PortfolioState) Weight(ticker string) float64 {
	if s.TotalValue <= 0 {
		return 0
	}
	return s.Holdings[ticker].MarketValue / s.TotalValue
}

// CashFlow is an external contribution into the portfolio.
type CashFlow struct {
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
}
