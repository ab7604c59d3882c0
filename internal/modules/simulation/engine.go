// Package simulation replays contributions, loss harvesting and rebalancing
// over historical prices.
package simulation

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/aristath/harvester/internal/domain"
	"github.com/aristath/harvester/internal/modules/allocation"
	"github.com/aristath/harvester/internal/modules/clock"
	"github.com/aristath/harvester/internal/modules/ledger"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// State is the engine lifecycle.
type State string

const (
	StateInitialized State = "INITIALIZED"
	StateRunning     State = "RUNNING"
	StateCompleted   State = "COMPLETED"
	StateFailed      State = "FAILED"
)

// driftEpsilon absorbs share rounding so a freshly rebalanced portfolio
// does not trigger again with a zero threshold.
const driftEpsilon = 1e-9

var hundred = decimal.NewFromInt(100)

// Outcome is what a run produced, complete or up to the failure.
type Outcome struct {
	State        State
	History      []domain.PortfolioState
	Transactions []domain.Transaction
	CashFlows    []domain.CashFlow
	Warnings     []domain.Warning
	Lots         map[string][]ledger.Lot
}

// Engine executes one schedule against one price series. An engine runs once
// and is not safe for concurrent use.
type Engine struct {
	target   allocation.Target
	tickers  []string
	prices   *domain.PriceSeries
	schedule *clock.Schedule
	opts     Options
	log      zerolog.Logger

	state       State
	book        *ledger.Ledger
	cash        decimal.Decimal
	contributed decimal.Decimal
	realized    decimal.Decimal
	lastPrice   map[string]decimal.Decimal

	history      []domain.PortfolioState
	transactions []domain.Transaction
	flows        []domain.CashFlow
	warnings     []domain.Warning
}

// NewEngine creates an engine in the INITIALIZED state.
func NewEngine(target allocation.Target, prices *domain.PriceSeries, schedule *clock.Schedule, opts Options, log zerolog.Logger) *Engine {
	if opts.ShareDecimals < 0 {
		opts.ShareDecimals = 0
	}
	return &Engine{
		target:    target,
		tickers:   target.Tickers(),
		prices:    prices,
		schedule:  schedule,
		opts:      opts,
		log:       log.With().Str("component", "simulation_engine").Logger(),
		state:     StateInitialized,
		book:      ledger.New(ledger.WithLongTermDays(opts.LongTermDays)),
		lastPrice: make(map[string]decimal.Decimal),
	}
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	return e.state
}

// Ledger exposes the lot ledger, mainly for inspection after a run.
func (e *Engine) Ledger() *ledger.Ledger {
	return e.book
}

// Run processes every scheduled event in order. On failure it returns the
// partial outcome together with the error.
func (e *Engine) Run(ctx context.Context) (*Outcome, error) {
	if e.state != StateInitialized {
		return nil, fmt.Errorf("engine already %s", strings.ToLower(string(e.state)))
	}
	e.state = StateRunning
	e.log.Info().
		Int("tickers", len(e.tickers)).
		Int("events", len(e.schedule.Events)).
		Msg("Simulation started")

	for _, w := range e.schedule.Warnings {
		e.warn(w)
	}
	for _, ev := range e.schedule.Events {
		if err := ctx.Err(); err != nil {
			return e.fail(err)
		}
		if err := e.process(ev); err != nil {
			return e.fail(err)
		}
	}
	if err := e.book.Validate(); err != nil {
		return e.fail(fmt.Errorf("ledger invariant violated: %w", err))
	}

	e.state = StateCompleted
	e.log.Info().
		Int("snapshots", len(e.history)).
		Int("transactions", len(e.transactions)).
		Str("cash", e.cash.StringFixed(2)).
		Msg("Simulation completed")
	return e.outcome(), nil
}

func (e *Engine) fail(err error) (*Outcome, error) {
	e.state = StateFailed
	e.log.Error().Err(err).Int("snapshots", len(e.history)).Msg("Simulation failed")
	return e.outcome(), err
}

func (e *Engine) outcome() *Outcome {
	lots := make(map[string][]ledger.Lot)
	for _, t := range e.book.Tickers() {
		lots[t] = e.book.Lots(t)
	}
	return &Outcome{
		State:        e.state,
		History:      e.history,
		Transactions: e.transactions,
		CashFlows:    e.flows,
		Warnings:     e.warnings,
		Lots:         lots,
	}
}

// process handles one date: contribution, harvest check, rebalance, valuation.
func (e *Engine) process(ev clock.Event) error {
	if ev.Unresolved {
		return &domain.DataGapError{Date: ev.Date}
	}

	priced, missing := e.observe(ev.Date)
	required := ev.Contribution || ev.Rebalance
	if len(priced) == 0 && required {
		return &domain.DataGapError{Date: ev.Date}
	}
	if len(missing) > 0 {
		if required {
			for _, t := range missing {
				e.warn(domain.NewDatedWarning(domain.WarningPartialData, ev.Date, t,
					"no price for %s, ticker skipped", t))
			}
		} else {
			e.log.Debug().Time("date", ev.Date).Strs("tickers", missing).Msg("Missing prices, using last known")
		}
	}

	if ev.Contribution {
		if err := e.contribute(ev, priced); err != nil {
			return err
		}
		e.snapshot(ev.Date, domain.EventContribution)
	}
	if ev.HarvestCheck {
		changed, err := e.harvest(ev.Date, priced)
		if err != nil {
			return err
		}
		if changed {
			e.snapshot(ev.Date, domain.EventHarvest)
		}
	}
	if ev.Rebalance {
		changed, err := e.rebalance(ev.Date, priced)
		if err != nil {
			return err
		}
		if changed {
			e.snapshot(ev.Date, domain.EventRebalance)
		}
	}
	if ev.Valuation {
		e.snapshot(ev.Date, domain.EventValuation)
	}
	return nil
}

// observe collects the day's prices and refreshes the last known price.
func (e *Engine) observe(date time.Time) (map[string]decimal.Decimal, []string) {
	priced := make(map[string]decimal.Decimal, len(e.tickers))
	var missing []string
	for _, t := range e.tickers {
		p, ok := e.prices.Price(t, date)
		if !ok {
			missing = append(missing, t)
			continue
		}
		d := decimal.NewFromFloat(p)
		priced[t] = d
		e.lastPrice[t] = d
	}
	return priced, missing
}

func (e *Engine) contribute(ev clock.Event, priced map[string]decimal.Decimal) error {
	amount := decimal.NewFromFloat(ev.Amount)
	e.cash = e.cash.Add(amount)
	e.contributed = e.contributed.Add(amount)
	e.flows = append(e.flows, domain.CashFlow{Date: ev.Date, Amount: ev.Amount})

	e.log.Debug().
		Time("date", ev.Date).
		Float64("amount", ev.Amount).
		Bool("initial", ev.Initial).
		Msg("Contribution")

	// Idle cash from skipped tickers is swept in with each deposit
	return e.invest(ev.Date, e.cash, e.target, priced, domain.ReasonContribution)
}

// invest splits budget by weights across priced tickers and buys whole
// multiples of the share increment. Unpriced tickers leave their share in cash.
func (e *Engine) invest(date time.Time, budget decimal.Decimal, weights allocation.Target, priced map[string]decimal.Decimal, reason domain.Reason) error {
	for _, t := range weights.Tickers() {
		w := weights[t]
		if w <= 0 {
			continue
		}
		price, ok := priced[t]
		if !ok {
			continue
		}
		qty := budget.Mul(decimal.NewFromFloat(w)).Div(price).RoundDown(e.opts.ShareDecimals)
		if available := e.cash.Div(price).RoundDown(e.opts.ShareDecimals); qty.GreaterThan(available) {
			qty = available
		}
		if !qty.IsPositive() {
			continue
		}
		if err := e.buy(date, t, qty, price, domain.ActionBuy, reason); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) harvest(date time.Time, priced map[string]decimal.Decimal) (bool, error) {
	var harvested []string
	pool := decimal.Zero

	for _, t := range e.book.Tickers() {
		price, ok := priced[t]
		if !ok {
			continue
		}

		var sale ledger.SaleResult
		var err error
		switch e.opts.HarvestMode {
		case HarvestLot:
			var ids []int64
			for _, lot := range e.book.Lots(t) {
				if lot.ReturnPct(price) <= e.opts.SellTrigger {
					ids = append(ids, lot.ID)
				}
			}
			if len(ids) == 0 {
				continue
			}
			sale, err = e.book.SellLots(t, date, ids, price)
		default:
			avg := e.book.AverageCost(t)
			if !avg.IsPositive() {
				continue
			}
			ret, _ := price.Sub(avg).Div(avg).Mul(hundred).Float64()
			if ret > e.opts.SellTrigger {
				continue
			}
			sale, err = e.book.SellAll(t, date, price)
		}
		if err != nil {
			return false, fmt.Errorf("failed to harvest %s: %w", t, err)
		}

		e.sell(sale, domain.ActionSell, domain.ReasonHarvest)
		harvested = append(harvested, t)
		e.log.Info().
			Str("ticker", t).
			Time("date", date).
			Str("quantity", sale.Quantity.String()).
			Str("realized", sale.RealizedGainLoss.StringFixed(2)).
			Msg("Harvested loss")

		if e.opts.Reinvest == ReinvestRedistribute {
			pool = pool.Add(sale.Proceeds)
			continue
		}
		if err := e.buy(date, t, sale.Quantity, price, domain.ActionBuy, domain.ReasonHarvest); err != nil {
			return false, err
		}
	}

	if len(harvested) == 0 {
		return false, nil
	}
	if e.opts.Reinvest == ReinvestRedistribute && pool.IsPositive() {
		weights := e.target.Without(harvested...)
		if len(weights) == 0 {
			e.log.Warn().Time("date", date).Msg("No ticker left to redistribute harvest proceeds, keeping cash")
			return true, nil
		}
		if err := e.invest(date, pool, weights, priced, domain.ReasonHarvest); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (e *Engine) rebalance(date time.Time, priced map[string]decimal.Decimal) (bool, error) {
	total := e.cash
	values := make(map[string]decimal.Decimal)
	for _, t := range e.book.Tickers() {
		price, ok := priced[t]
		if !ok {
			price = e.lastPrice[t]
		}
		v := e.book.MarketValue(t, price)
		values[t] = v
		total = total.Add(v)
	}
	if !total.IsPositive() {
		return false, nil
	}
	totalF := total.InexactFloat64()

	threshold := e.opts.RebalanceThreshold / 100
	triggered := false
	for _, t := range e.tickers {
		if _, ok := priced[t]; !ok {
			continue
		}
		tw := e.target[t]
		drift := math.Abs(values[t].InexactFloat64()/totalF - tw)
		if drift > driftEpsilon && drift >= threshold*tw {
			triggered = true
			e.log.Debug().Str("ticker", t).Float64("drift", drift).Float64("target", tw).Msg("Rebalance triggered")
			break
		}
	}
	if !triggered {
		return false, nil
	}

	desired := make(map[string]decimal.Decimal, len(priced))
	for _, t := range e.tickers {
		price, ok := priced[t]
		if !ok {
			continue
		}
		desired[t] = total.Mul(decimal.NewFromFloat(e.target[t])).Div(price).RoundDown(e.opts.ShareDecimals)
	}

	changed := false
	for _, t := range e.tickers {
		want, ok := desired[t]
		if !ok {
			continue
		}
		held := e.book.Quantity(t)
		if !held.GreaterThan(want) {
			continue
		}
		sale, err := e.book.Sell(t, date, held.Sub(want), priced[t], e.opts.MatchingPolicy)
		if err != nil {
			return false, fmt.Errorf("failed to rebalance %s: %w", t, err)
		}
		e.sell(sale, domain.ActionRebalanceSell, domain.ReasonRebalance)
		changed = true
	}
	for _, t := range e.tickers {
		want, ok := desired[t]
		if !ok {
			continue
		}
		price := priced[t]
		qty := want.Sub(e.book.Quantity(t))
		if available := e.cash.Div(price).RoundDown(e.opts.ShareDecimals); qty.GreaterThan(available) {
			qty = available
		}
		if !qty.IsPositive() {
			continue
		}
		if err := e.buy(date, t, qty, price, domain.ActionRebalanceBuy, domain.ReasonRebalance); err != nil {
			return false, err
		}
		changed = true
	}

	if changed {
		e.log.Info().Time("date", date).Str("total", total.StringFixed(2)).Msg("Portfolio rebalanced")
	}
	return changed, nil
}

func (e *Engine) buy(date time.Time, ticker string, qty, price decimal.Decimal, action domain.Action, reason domain.Reason) error {
	if _, err := e.book.Buy(ticker, date, qty, price); err != nil {
		return fmt.Errorf("failed to buy %s: %w", ticker, err)
	}
	cost := qty.Mul(price)
	e.cash = e.cash.Sub(cost)
	e.transactions = append(e.transactions, domain.Transaction{
		Date:              date,
		Ticker:            ticker,
		Action:            action,
		Reason:            reason,
		Quantity:          qty,
		Price:             price,
		Amount:            cost,
		RealizedGainLoss:  decimal.Zero,
		ShortTermGainLoss: decimal.Zero,
		LongTermGainLoss:  decimal.Zero,
	})
	return nil
}

func (e *Engine) sell(sale ledger.SaleResult, action domain.Action, reason domain.Reason) {
	e.cash = e.cash.Add(sale.Proceeds)
	e.realized = e.realized.Add(sale.RealizedGainLoss)
	e.transactions = append(e.transactions, domain.Transaction{
		Date:              sale.Date,
		Ticker:            sale.Ticker,
		Action:            action,
		Reason:            reason,
		Quantity:          sale.Quantity,
		Price:             sale.Price,
		Amount:            sale.Proceeds,
		RealizedGainLoss:  sale.RealizedGainLoss,
		ShortTermGainLoss: sale.ShortTerm,
		LongTermGainLoss:  sale.LongTerm,
	})
}

// snapshot values holdings at the last known prices.
func (e *Engine) snapshot(date time.Time, kind domain.EventKind) {
	holdings := make(map[string]domain.HoldingState)
	invested := decimal.Zero
	for _, t := range e.book.Tickers() {
		qty := e.book.Quantity(t)
		price := e.lastPrice[t]
		mv := qty.Mul(price)
		invested = invested.Add(mv)
		holdings[t] = domain.HoldingState{
			Quantity:    qty.InexactFloat64(),
			Price:       price.InexactFloat64(),
			MarketValue: mv.InexactFloat64(),
			CostBasis:   e.book.TotalCostBasis(t).InexactFloat64(),
		}
	}

	e.history = append(e.history, domain.PortfolioState{
		Date:             date,
		Event:            kind,
		Cash:             e.cash.InexactFloat64(),
		Holdings:         holdings,
		TotalValue:       e.cash.Add(invested).InexactFloat64(),
		Contributed:      e.contributed.InexactFloat64(),
		RealizedGainLoss: e.realized.InexactFloat64(),
	})
}

func (e *Engine) warn(w domain.Warning) {
	e.warnings = append(e.warnings, w)
	e.log.Warn().Str("kind", string(w.Kind)).Str("ticker", w.Ticker).Msg(w.Message)
}
