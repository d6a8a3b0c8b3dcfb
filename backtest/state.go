package backtest

import (
	"time"

	"backtester/market"
)

// instrumentState is the fixed per-ticker record. All mutation happens in
// the simulation loop; nothing else holds a reference to it.
type instrumentState struct {
	ticker     string
	units      float64 // >0 long, <0 short, 0 flat
	entryPrice float64
	entryDate  time.Time
	exit       ExitState
}

func (s *instrumentState) open() bool { return s.units != 0 }

// reset returns the record to flat; the other fields are meaningless while
// units == 0.
func (s *instrumentState) reset() {
	s.units = 0
	s.entryPrice = 0
	s.entryDate = time.Time{}
	s.exit = ExitState{}
}

// simState is the whole mutable state of one run: the cash scalar plus one
// record per ticker, index-keyed in sorted-ticker order. Each run owns its
// own simState; nothing is shared across runs.
type simState struct {
	cash        float64
	instruments []instrumentState
}

func newSimState(cash float64, tickers []string) *simState {
	st := &simState{
		cash:        cash,
		instruments: make([]instrumentState, len(tickers)),
	}
	for i, t := range tickers {
		st.instruments[i].ticker = t
	}
	return st
}

// netState summarizes holdings as a single {-1, 0, +1} code: the first
// non-zero holding in sorted-ticker order wins.
func (st *simState) netState() int8 {
	for i := range st.instruments {
		switch {
		case st.instruments[i].units > 0:
			return 1
		case st.instruments[i].units < 0:
			return -1
		}
	}
	return 0
}

func (st *simState) holdings() map[string]float64 {
	out := make(map[string]float64, len(st.instruments))
	for i := range st.instruments {
		out[st.instruments[i].ticker] = st.instruments[i].units
	}
	return out
}

// PortfolioValue marks every open position to the close at calendar index
// i and adds cash. Longs contribute units*close; shorts contribute the
// accrued P&L (entry-close)*|units|, not negative notional. Tickers with
// no bar at i are skipped. Pure.
func PortfolioValue(cash float64, positions []instrumentState, cal *market.Calendar, i int) float64 {
	total := cash
	for k := range positions {
		p := &positions[k]
		if p.units == 0 {
			continue
		}
		bar, ok := cal.Bar(p.ticker, i)
		if !ok {
			continue
		}
		if p.units > 0 {
			total += p.units * bar.Close
		} else {
			total += (p.entryPrice - bar.Close) * -p.units
		}
	}
	return total
}
