// Package backtest replays per-ticker signals against historical daily
// bars and produces the full audit trail of the simulated account: trade
// ledger, equity curve, position-state series and final holdings.
//
// The run is a deterministic, single-threaded fold over the unified
// calendar. Signals observed at bar i fill at bar i+1's open (or at a
// conditional price inside bar i+1), never earlier.
package backtest

import (
	"context"
	"fmt"
	"math"

	"backtester/market"
	"backtester/signal"
	"backtester/sizing"
)

// Config holds one run's parameters. Zero exit fractions disable the
// corresponding rule. Commission and Slippage are accepted and plumbed to
// the fill hook but not applied to fill prices (see fillPrice).
type Config struct {
	InitialCapital float64
	Exits          ExitPolicy
	Sizing         sizing.Model
	AllowShort     bool
	Commission     float64
	Slippage       float64
}

// Validate fails fast on configuration the loop cannot run with.
func (c Config) Validate() error {
	if c.InitialCapital <= 0 {
		return fmt.Errorf("backtest: initial capital must be positive, got %v", c.InitialCapital)
	}
	for name, v := range map[string]float64{
		"stop loss":     c.Exits.StopLoss,
		"take profit":   c.Exits.TakeProfit,
		"trailing stop": c.Exits.TrailingStop,
		"commission":    c.Commission,
		"slippage":      c.Slippage,
	} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("backtest: %s fraction must be non-negative, got %v", name, v)
		}
	}
	if c.Exits.StopLoss >= 1 || c.Exits.TrailingStop >= 1 {
		return fmt.Errorf("backtest: stop fractions must be below 1")
	}
	if c.Sizing.Fraction < 0 {
		return fmt.Errorf("backtest: sizing fraction must be non-negative, got %v", c.Sizing.Fraction)
	}
	for ticker, f := range c.Sizing.PerTicker {
		if f < 0 {
			return fmt.Errorf("backtest: sizing fraction for %s must be non-negative, got %v", ticker, f)
		}
	}
	return nil
}

// Engine runs one simulation per call to Run. It holds no state between
// runs; concurrent runs on the same calendar are safe.
type Engine struct {
	cfg Config
	cal *market.Calendar
}

// NewEngine validates cfg eagerly and returns an engine bound to cal.
func NewEngine(cal *market.Calendar, cfg Config) (*Engine, error) {
	if cal == nil {
		return nil, fmt.Errorf("backtest: nil calendar")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, cal: cal}, nil
}

// Run replays signals over the calendar. signals maps ticker to a series
// indexed by calendar position; missing tickers, short series and nil
// entries all default to Direction 0 (flat).
//
// ctx is checked between bars so very long histories can be cancelled
// cooperatively; there are no other suspension points.
func (e *Engine) Run(ctx context.Context, signals map[string][]signal.Signal) (*Result, error) {
	n := e.cal.Len()
	if n == 0 {
		return nil, fmt.Errorf("backtest: empty calendar")
	}

	tickers := e.cal.Tickers()
	st := newSimState(e.cfg.InitialCapital, tickers)

	res := &Result{
		Signals:        echoSignals(signals, tickers, n),
		Equity:         make([]EquityPoint, 0, n-1),
		PositionStates: make([]int8, 0, n-1),
	}

	// Fills read bar i+1's open, so the loop stops one bar early.
	for i := 0; i < n-1; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Pre-trade value: every fill on this bar sizes against it, so
		// the fixed ticker order is externally observable. Accepted
		// approximation, kept reproducible by the sorted order.
		preValue := PortfolioValue(st.cash, st.instruments, e.cal, i)

		for k := range st.instruments {
			ins := &st.instruments[k]
			sig := res.Signals[ins.ticker][i]

			if ins.units > 0 {
				if bar, ok := e.cal.Bar(ins.ticker, i); ok {
					var forced *ForcedExit
					ins.exit, forced = e.cfg.Exits.Evaluate(ins.entryPrice, ins.exit, bar)
					if forced != nil {
						e.closePosition(st, ins, res, i, forced.Price, forced.Reason)
						// Forced exit suppresses signal handling this bar.
						continue
					}
				}
			}

			next, ok := e.cal.Bar(ins.ticker, i+1)
			if !ok {
				continue // instrument absent tomorrow; nothing can fill
			}

			switch s := sig.(type) {
			case signal.Direction:
				e.applyDirection(st, ins, res, i, s, next.Open, preValue)
			case *signal.Order:
				if err := e.applyOrder(st, ins, res, i, s, next, preValue); err != nil {
					return nil, err
				}
			default:
				return nil, fmt.Errorf("backtest: unknown signal type %T for %s", sig, ins.ticker)
			}
		}

		res.Equity = append(res.Equity, EquityPoint{
			Date:  e.cal.Dates[i],
			Value: PortfolioValue(st.cash, st.instruments, e.cal, i),
		})
		res.PositionStates = append(res.PositionStates, st.netState())
	}

	res.FinalValue = PortfolioValue(st.cash, st.instruments, e.cal, n-1)
	res.Holdings = st.holdings()
	return res, nil
}

// applyDirection handles the {-1, 0, +1} signal alphabet. At most one
// transition happens per instrument per bar, so a reversal passes through
// flat and re-enters on a later bar.
func (e *Engine) applyDirection(st *simState, ins *instrumentState, res *Result, i int, d signal.Direction, execPrice, preValue float64) {
	switch {
	case d > 0 && ins.units < 0:
		e.closePosition(st, ins, res, i+1, e.fillPrice(execPrice), ReasonSignal)

	case d < 0 && ins.units > 0:
		e.closePosition(st, ins, res, i+1, e.fillPrice(execPrice), ReasonSignal)

	case d > 0 && ins.units == 0:
		units := e.cfg.Sizing.Units(ins.ticker, preValue, execPrice)
		e.openPosition(st, ins, i+1, e.fillPrice(execPrice), units)

	case d < 0 && ins.units == 0:
		if !e.cfg.AllowShort {
			return // disabled feature: silent no-op, not an error
		}
		units := e.cfg.Sizing.Units(ins.ticker, preValue, execPrice)
		e.openPosition(st, ins, i+1, e.fillPrice(execPrice), -units)
	}
}

// applyOrder handles explicit order instructions. Orders only open longs
// (Buy on flat) or close an open position (Sell); Sell on flat is a no-op.
func (e *Engine) applyOrder(st *simState, ins *instrumentState, res *Result, i int, o *signal.Order, next market.Bar, preValue float64) error {
	if o.Ticker == "" {
		filled := *o
		filled.Ticker = ins.ticker
		o = &filled
	}
	if err := o.Validate(); err != nil {
		return fmt.Errorf("backtest: %s at %s: %w", ins.ticker, e.cal.Dates[i].Format("2006-01-02"), err)
	}

	fill, ok := conditionalFill(o, next)
	if !ok {
		return nil // not touched inside the next bar: the order expires
	}
	fill = e.fillPrice(fill)

	switch o.Action {
	case signal.Buy:
		if ins.units != 0 {
			return nil
		}
		units := o.Units
		if units == 0 {
			units = e.cfg.Sizing.Units(ins.ticker, preValue, fill)
		}
		e.openPosition(st, ins, i+1, fill, units)

	case signal.Sell:
		if ins.units == 0 {
			return nil
		}
		e.closePosition(st, ins, res, i+1, fill, ReasonSignal)
	}
	return nil
}

// conditionalFill resolves whether an order triggers inside bar and at
// what price. Market orders always fill at the open; Limit/Stop fills are
// bounded by the bar's high/low and the order price.
func conditionalFill(o *signal.Order, bar market.Bar) (float64, bool) {
	switch o.Type {
	case signal.Market:
		return bar.Open, true
	case signal.Limit:
		if o.Action == signal.Buy {
			if bar.Low <= o.Price {
				return math.Min(bar.Open, o.Price), true
			}
		} else {
			if bar.High >= o.Price {
				return math.Max(bar.Open, o.Price), true
			}
		}
	case signal.Stop:
		if o.Action == signal.Buy {
			if bar.High >= o.Price {
				return math.Max(bar.Open, o.Price), true
			}
		} else {
			if bar.Low <= o.Price {
				return math.Min(bar.Open, o.Price), true
			}
		}
	}
	return 0, false
}

// openPosition creates the position record with a fill on the bar at
// fillIdx (the bar after the signal). Long entries debit cash; short
// entries accrue P&L against cash instead (see PortfolioValue), so cash
// is untouched.
func (e *Engine) openPosition(st *simState, ins *instrumentState, fillIdx int, fill, units float64) {
	if units == 0 || fill <= 0 {
		return
	}
	ins.units = units
	ins.entryPrice = fill
	ins.entryDate = e.cal.Dates[fillIdx]
	ins.exit = NewExitState(fill)
	if units > 0 {
		st.cash -= units * fill
	}
}

// closePosition records a full close on the bar at exitIdx: credits cash,
// appends the trade, and resets the record to flat. Forced exits pass the
// current index; signal-driven closes fill on the next bar.
func (e *Engine) closePosition(st *simState, ins *instrumentState, res *Result, exitIdx int, exitPrice float64, reason string) {
	side := Long
	ret := (exitPrice - ins.entryPrice) / ins.entryPrice
	if ins.units > 0 {
		st.cash += ins.units * exitPrice
	} else {
		side = Short
		ret = -ret
		st.cash += (ins.entryPrice - exitPrice) * -ins.units
	}

	res.Trades = append(res.Trades, TradeRecord{
		Ticker:     ins.ticker,
		EntryDate:  ins.entryDate,
		ExitDate:   e.cal.Dates[exitIdx],
		EntryPrice: ins.entryPrice,
		ExitPrice:  exitPrice,
		Units:      math.Abs(ins.units),
		Return:     ret,
		Side:       side,
		Reason:     reason,
	})
	ins.reset()
}

// fillPrice is the single fill-adjustment point. Commission and slippage
// rates are carried in the config but not applied, matching the observed
// fill model; applying them is a one-line change here.
func (e *Engine) fillPrice(px float64) float64 {
	return px
}

// echoSignals normalizes the input to one signal per ticker per calendar
// day; anything missing defaults to Direction 0.
func echoSignals(in map[string][]signal.Signal, tickers []string, n int) map[string][]signal.Signal {
	out := make(map[string][]signal.Signal, len(tickers))
	for _, ticker := range tickers {
		series := make([]signal.Signal, n)
		for i := range series {
			series[i] = signal.Flat
		}
		for i, s := range in[ticker] {
			if i >= n {
				break
			}
			if s != nil {
				series[i] = s
			}
		}
		out[ticker] = series
	}
	return out
}
