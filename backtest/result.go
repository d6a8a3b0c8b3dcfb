package backtest

import (
	"time"

	"backtester/signal"
)

// Side: +1 long, -1 short.
type Side int8

const (
	Long  Side = +1
	Short Side = -1
)

func (s Side) String() string {
	if s < 0 {
		return "Short"
	}
	return "Long"
}

// TradeRecord is appended to the ledger on every full close. Partial
// closes are not modeled.
type TradeRecord struct {
	Ticker     string
	EntryDate  time.Time // zero when the entry predates the run
	ExitDate   time.Time
	EntryPrice float64
	ExitPrice  float64
	Units      float64
	Return     float64 // fraction
	Side       Side
	Reason     string
}

// EquityPoint is one end-of-day total portfolio value.
type EquityPoint struct {
	Date  time.Time
	Value float64
}

// Result is the complete audit trail of one run.
//
// Equity and PositionStates hold one entry per calendar day except the
// last: fills use the next bar's open, so the loop stops one bar early.
// FinalValue is the extra valuation at the last calendar index.
type Result struct {
	Signals        map[string][]signal.Signal // the series actually used, echoed
	Trades         []TradeRecord
	Equity         []EquityPoint
	PositionStates []int8 // net long/short/flat per day, aligned with Equity
	FinalValue     float64
	Holdings       map[string]float64 // final per-ticker units
}
