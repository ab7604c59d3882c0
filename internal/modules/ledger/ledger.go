// Package ledger keeps per-ticker purchase lots with exact decimal cost basis.
package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/aristath/harvester/internal/domain"
	"github.com/shopspring/decimal"
)

// DefaultLongTermDays is the holding period from which a gain is long-term.
const DefaultLongTermDays = 365

// Lot is one purchase with its own cost basis.
type Lot struct {
	ID         int64           `json:"id"`
	Ticker     string          `json:"ticker"`
	AcquiredOn time.Time       `json:"acquired_on"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
}

// CostBasis is quantity × unit cost.
func (l Lot) CostBasis() decimal.Decimal {
	return l.Quantity.Mul(l.UnitCost)
}

// ReturnPct is the unrealized return of the lot at price, in percent.
func (l Lot) ReturnPct(price decimal.Decimal) float64 {
	if l.UnitCost.IsZero() {
		return 0
	}
	pct, _ := price.Sub(l.UnitCost).Div(l.UnitCost).Mul(decimal.NewFromInt(100)).Float64()
	return pct
}

// Disposal is the part of a single lot consumed by a sale.
type Disposal struct {
	LotID       int64           `json:"lot_id"`
	AcquiredOn  time.Time       `json:"acquired_on"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	Proceeds    decimal.Decimal `json:"proceeds"`
	GainLoss    decimal.Decimal `json:"gain_loss"`
	HoldingDays int             `json:"holding_days"`
	LongTerm    bool            `json:"long_term"`
}

// SaleResult summarizes a sell across all consumed lots.
type SaleResult struct {
	Ticker           string
	Date             time.Time
	Quantity         decimal.Decimal
	Price            decimal.Decimal
	Proceeds         decimal.Decimal
	CostBasis        decimal.Decimal
	RealizedGainLoss decimal.Decimal
	ShortTerm        decimal.Decimal
	LongTerm         decimal.Decimal
	Disposals        []Disposal
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLongTermDays overrides the short/long-term boundary.
func WithLongTermDays(days int) Option {
	return func(l *Ledger) {
		if days > 0 {
			l.longTermDays = days
		}
	}
}

// Ledger holds lots per ticker, oldest first. It is not safe for concurrent
// use; every simulation run owns its own instance.
type Ledger struct {
	holdings     map[string][]*Lot
	nextID       int64
	longTermDays int
}

// New creates an empty ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		holdings:     make(map[string][]*Lot),
		longTermDays: DefaultLongTermDays,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Buy appends a new lot.
func (l *Ledger) Buy(ticker string, date time.Time, quantity, price decimal.Decimal) (Lot, error) {
	if !quantity.IsPositive() {
		return Lot{}, fmt.Errorf("buy %s: quantity must be positive, got %s", ticker, quantity)
	}
	if !price.IsPositive() {
		return Lot{}, fmt.Errorf("buy %s: price must be positive, got %s", ticker, price)
	}

	l.nextID++
	lot := &Lot{
		ID:         l.nextID,
		Ticker:     ticker,
		AcquiredOn: domain.Day(date),
		Quantity:   quantity,
		UnitCost:   price,
	}
	l.holdings[ticker] = append(l.holdings[ticker], lot)
	return *lot, nil
}

// Sell consumes lots in policy order until quantity is matched, splitting the
// last lot when needed.
func (l *Ledger) Sell(ticker string, date time.Time, quantity, price decimal.Decimal, policy MatchingPolicy) (SaleResult, error) {
	if !quantity.IsPositive() {
		return SaleResult{}, fmt.Errorf("sell %s: quantity must be positive, got %s", ticker, quantity)
	}
	held := l.Quantity(ticker)
	if quantity.GreaterThan(held) {
		return SaleResult{}, &domain.InsufficientHoldingsError{Ticker: ticker, Requested: quantity, Held: held}
	}

	lots := l.holdings[ticker]
	remaining := quantity
	takes := make(map[int]decimal.Decimal)
	var order []int
	for _, i := range policy.order(lots, price) {
		if !remaining.IsPositive() {
			break
		}
		take := decimal.Min(remaining, lots[i].Quantity)
		takes[i] = take
		order = append(order, i)
		remaining = remaining.Sub(take)
	}
	return l.consume(ticker, date, price, order, takes), nil
}

// SellAll liquidates the whole position in FIFO order.
func (l *Ledger) SellAll(ticker string, date time.Time, price decimal.Decimal) (SaleResult, error) {
	return l.Sell(ticker, date, l.Quantity(ticker), price, PolicyFIFO)
}

// SellLots sells the named lots in full (specific identification).
func (l *Ledger) SellLots(ticker string, date time.Time, lotIDs []int64, price decimal.Decimal) (SaleResult, error) {
	if len(lotIDs) == 0 {
		return SaleResult{}, fmt.Errorf("sell %s: no lots selected", ticker)
	}
	wanted := make(map[int64]bool, len(lotIDs))
	for _, id := range lotIDs {
		wanted[id] = true
	}

	lots := l.holdings[ticker]
	takes := make(map[int]decimal.Decimal)
	var order []int
	for i, lot := range lots {
		if wanted[lot.ID] {
			takes[i] = lot.Quantity
			order = append(order, i)
			delete(wanted, lot.ID)
		}
	}
	if len(wanted) > 0 {
		return SaleResult{}, fmt.Errorf("sell %s: %d selected lots not held", ticker, len(wanted))
	}
	return l.consume(ticker, date, price, order, takes), nil
}

func (l *Ledger) consume(ticker string, date time.Time, price decimal.Decimal, order []int, takes map[int]decimal.Decimal) SaleResult {
	date = domain.Day(date)
	res := SaleResult{
		Ticker:           ticker,
		Date:             date,
		Price:            price,
		Quantity:         decimal.Zero,
		Proceeds:         decimal.Zero,
		CostBasis:        decimal.Zero,
		RealizedGainLoss: decimal.Zero,
		ShortTerm:        decimal.Zero,
		LongTerm:         decimal.Zero,
	}

	lots := l.holdings[ticker]
	for _, i := range order {
		lot := lots[i]
		qty := takes[i]
		proceeds := qty.Mul(price)
		cost := qty.Mul(lot.UnitCost)
		gain := proceeds.Sub(cost)
		days := domain.DaysBetween(lot.AcquiredOn, date)
		longTerm := days >= l.longTermDays

		res.Disposals = append(res.Disposals, Disposal{
			LotID:       lot.ID,
			AcquiredOn:  lot.AcquiredOn,
			Quantity:    qty,
			UnitCost:    lot.UnitCost,
			Proceeds:    proceeds,
			GainLoss:    gain,
			HoldingDays: days,
			LongTerm:    longTerm,
		})
		res.Quantity = res.Quantity.Add(qty)
		res.Proceeds = res.Proceeds.Add(proceeds)
		res.CostBasis = res.CostBasis.Add(cost)
		res.RealizedGainLoss = res.RealizedGainLoss.Add(gain)
		if longTerm {
			res.LongTerm = res.LongTerm.Add(gain)
		} else {
			res.ShortTerm = res.ShortTerm.Add(gain)
		}
		lot.Quantity = lot.Quantity.Sub(qty)
	}

	kept := lots[:0]
	for _, lot := range lots {
		if lot.Quantity.IsPositive() {
			kept = append(kept, lot)
		}
	}
	if len(kept) == 0 {
		delete(l.holdings, ticker)
	} else {
		l.holdings[ticker] = kept
	}
	return res
}

// Quantity is the total shares held.
func (l *Ledger) Quantity(ticker string) decimal.Decimal {
	total := decimal.Zero
	for _, lot := range l.holdings[ticker] {
		total = total.Add(lot.Quantity)
	}
	return total
}

// MarketValue is quantity held × price.
func (l *Ledger) MarketValue(ticker string, price decimal.Decimal) decimal.Decimal {
	return l.Quantity(ticker).Mul(price)
}

// TotalCostBasis is Σ lot quantity × unit cost.
func (l *Ledger) TotalCostBasis(ticker string) decimal.Decimal {
	total := decimal.Zero
	for _, lot := range l.holdings[ticker] {
		total = total.Add(lot.CostBasis())
	}
	return total
}

// AverageCost is the quantity-weighted unit cost, zero for an empty position.
func (l *Ledger) AverageCost(ticker string) decimal.Decimal {
	qty := l.Quantity(ticker)
	if qty.IsZero() {
		return decimal.Zero
	}
	return l.TotalCostBasis(ticker).Div(qty)
}

// Lots returns copies of the open lots for ticker, oldest first.
func (l *Ledger) Lots(ticker string) []Lot {
	out := make([]Lot, 0, len(l.holdings[ticker]))
	for _, lot := range l.holdings[ticker] {
		out = append(out, *lot)
	}
	return out
}

// Tickers returns tickers with an open position, sorted.
func (l *Ledger) Tickers() []string {
	out := make([]string, 0, len(l.holdings))
	for t := range l.holdings {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Validate checks that no lot is empty or negative.
func (l *Ledger) Validate() error {
	for ticker, lots := range l.holdings {
		for _, lot := range lots {
			if !lot.Quantity.IsPositive() {
				return fmt.Errorf("lot %d of %s has non-positive quantity %s", lot.ID, ticker, lot.Quantity)
			}
		}
	}
	return nil
}
