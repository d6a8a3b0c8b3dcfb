package strategies

import (
	"fmt"

	"backtester/indicators"
	"backtester/market"
	"backtester/signal"
)

type movingAverage interface {
	Update(close float64)
	Ready() bool
	Value() float64
	Reset()
}

type crossState struct {
	fast, slow   movingAverage
	lastDiff     float64
	haveLastDiff bool
}

// Cross emits +1 on a bull cross of a fast over a slow moving average and
// -1 on a bear cross, independently per ticker. Between crosses it emits
// flat, so the engine holds whatever position the last cross opened.
type Cross struct {
	name        string
	fast, slow  int
	exponential bool
	state       map[string]*crossState
}

// NewCross builds an SMA- or EMA-based crossover strategy.
func NewCross(name string, fast, slow int, exponential bool) (*Cross, error) {
	if fast <= 0 || slow <= 0 {
		return nil, fmt.Errorf("strategies: %s periods must be positive (fast=%d slow=%d)", name, fast, slow)
	}
	if fast >= slow {
		return nil, fmt.Errorf("strategies: %s fast period %d must be below slow period %d", name, fast, slow)
	}
	return &Cross{
		name:        name,
		fast:        fast,
		slow:        slow,
		exponential: exponential,
		state:       make(map[string]*crossState),
	}, nil
}

func (c *Cross) Name() string { return c.name }

func (c *Cross) Reset() {
	c.state = make(map[string]*crossState)
}

func (c *Cross) OnBar(ticker string, bar market.Bar) signal.Signal {
	st, ok := c.state[ticker]
	if !ok {
		st = &crossState{}
		if c.exponential {
			st.fast = indicators.NewEMA(c.fast)
			st.slow = indicators.NewEMA(c.slow)
		} else {
			st.fast = indicators.NewSMA(c.fast)
			st.slow = indicators.NewSMA(c.slow)
		}
		c.state[ticker] = st
	}

	st.fast.Update(bar.Close)
	st.slow.Update(bar.Close)
	if !st.fast.Ready() || !st.slow.Ready() {
		return signal.Flat
	}

	diff := st.fast.Value() - st.slow.Value()
	if !st.haveLastDiff {
		st.lastDiff = diff
		st.haveLastDiff = true
		return signal.Flat
	}

	bull := diff > 0 && st.lastDiff <= 0
	bear := diff < 0 && st.lastDiff >= 0
	st.lastDiff = diff

	switch {
	case bull:
		return signal.Long
	case bear:
		return signal.Short
	default:
		return signal.Flat
	}
}
