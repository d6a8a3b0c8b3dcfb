package backtest

import "backtester/market"

// Exit reasons recorded on forced closes.
const (
	ReasonStopLoss     = "Stop Loss"
	ReasonTakeProfit   = "Take Profit"
	ReasonTrailingStop = "Trailing Stop"
	ReasonSignal       = "Signal Close"
)

// ExitPolicy holds the protective-exit fractions. A zero fraction disables
// that rule.
type ExitPolicy struct {
	StopLoss     float64
	TakeProfit   float64
	TrailingStop float64
}

// ExitState is the per-position state the policy threads through each bar:
// the post-entry high and the ratcheted trailing level. Both are
// monotonically non-decreasing while the position is open.
type ExitState struct {
	High          float64
	TrailingLevel float64
}

// NewExitState seeds the state at entry: the fill price is the initial high.
func NewExitState(fillPrice float64) ExitState {
	return ExitState{High: fillPrice}
}

// ForcedExit describes the single exit a bar can force.
type ForcedExit struct {
	Price  float64
	Reason string
}

// Evaluate checks one open long position against one bar's high/low in
// fixed priority: trailing stop, then take profit, then stop loss. First
// match wins, so at most one rule fires per bar. Short positions are not
// evaluated by this policy; they close only on signals.
func (p ExitPolicy) Evaluate(entryPrice float64, st ExitState, bar market.Bar) (ExitState, *ForcedExit) {
	if bar.High > st.High {
		st.High = bar.High
	}

	if p.TrailingStop > 0 {
		level := st.High * (1 - p.TrailingStop)
		if level > st.TrailingLevel {
			st.TrailingLevel = level
		}
		if bar.Low <= st.TrailingLevel {
			return st, &ForcedExit{Price: st.TrailingLevel, Reason: ReasonTrailingStop}
		}
	}

	if p.TakeProfit > 0 && (bar.High-entryPrice)/entryPrice >= p.TakeProfit {
		return st, &ForcedExit{Price: entryPrice * (1 + p.TakeProfit), Reason: ReasonTakeProfit}
	}

	if p.StopLoss > 0 && (entryPrice-bar.Low)/entryPrice >= p.StopLoss {
		return st, &ForcedExit{Price: entryPrice * (1 - p.StopLoss), Reason: ReasonStopLoss}
	}

	return st, nil
}
