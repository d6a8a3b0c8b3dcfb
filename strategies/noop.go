package strategies

import (
	"backtester/market"
	"backtester/signal"
)

// Noop emits flat for every bar.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) Reset() {}

func (Noop) OnBar(string, market.Bar) signal.Signal {
	return signal.Flat
}
