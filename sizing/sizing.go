// Package sizing turns an allocation fraction and a pre-trade portfolio
// value into a whole-unit position size.
package sizing

import "math"

// Model holds the allocation policy: one global fraction, or a per-ticker
// table. When PerTicker is set, unlisted tickers get 0 (no allocation).
type Model struct {
	Fraction  float64
	PerTicker map[string]float64
}

// FractionFor returns the allocation fraction used for ticker.
func (m Model) FractionFor(ticker string) float64 {
	if m.PerTicker != nil {
		return m.PerTicker[ticker]
	}
	return m.Fraction
}

// Units sizes a new position: fraction of portfolio value is the target
// notional, divided by the fill price and floored to whole units. A zero
// fill price sizes to 0 rather than erroring. Pure, no side effects.
func (m Model) Units(ticker string, portfolioValue, fillPrice float64) float64 {
	if fillPrice == 0 {
		return 0
	}
	frac := m.FractionFor(ticker)
	if frac <= 0 || portfolioValue <= 0 {
		return 0
	}
	return math.Floor(frac * portfolioValue / fillPrice)
}
