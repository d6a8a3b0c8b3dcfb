// Package strategies defines the strategy boundary: implementations emit
// one signal per ticker per bar, and Generate glues them onto the unified
// calendar for the simulation loop.
package strategies

import (
	"fmt"
	"strings"

	"backtester/market"
	"backtester/signal"
)

// Strategy produces the per-ticker signal stream. OnBar is called once per
// ticker per calendar day, in sorted-ticker order within a day; days where
// a ticker has no bar are skipped and default to flat.
type Strategy interface {
	Name() string
	Reset()
	OnBar(ticker string, bar market.Bar) signal.Signal
}

var registry = make(map[string]Strategy)

// Register adds a strategy under its Name for Lookup.
func Register(s Strategy) {
	registry[s.Name()] = s
}

// Lookup returns a registered strategy, or nil.
func Lookup(name string) Strategy {
	return registry[name]
}

// Options carries the knobs the builtin strategies understand.
type Options struct {
	Fast        int
	Slow        int
	SignalsFile string
}

// ByName builds one of the builtin strategies.
func ByName(name string, opts Options) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "noop", "none":
		return Noop{}, nil

	case "table":
		if opts.SignalsFile == "" {
			return nil, fmt.Errorf("strategies: table requires a signals file")
		}
		return LoadTable(opts.SignalsFile)

	case "sma-cross", "smacross":
		return NewCross("sma-cross", opts.Fast, opts.Slow, false)

	case "ema-cross", "emacross":
		return NewCross("ema-cross", opts.Fast, opts.Slow, true)

	default:
		return nil, fmt.Errorf("strategies: unknown strategy %q (supported: noop, table, sma-cross, ema-cross)", name)
	}
}

// Generate runs a strategy over the calendar and returns the signal series
// the engine consumes: one entry per ticker per calendar index. Strategies
// are aligned to each ticker's own dates: forward-filled bars are not
// replayed, and the skipped indices stay nil (Direction 0).
func Generate(strat Strategy, cal *market.Calendar) map[string][]signal.Signal {
	strat.Reset()

	out := make(map[string][]signal.Signal, len(cal.Tickers()))
	for _, ticker := range cal.Tickers() {
		out[ticker] = make([]signal.Signal, cal.Len())
	}

	for i := 0; i < cal.Len(); i++ {
		for _, ticker := range cal.Tickers() {
			bar, ok := cal.Bar(ticker, i)
			if !ok || !market.Day(bar.Date).Equal(cal.Dates[i]) {
				continue
			}
			out[ticker][i] = strat.OnBar(ticker, bar)
		}
	}
	return out
}
