// Package journal persists backtest results at the boundary: the engine
// itself performs no I/O, callers hand its Result to a Journal afterwards.
package journal

import (
	"time"

	"github.com/oklog/ulid/v2"

	"backtester/backtest"
)

// TradeRow is one persisted trade. The ID is a ULID assigned at record
// time (time-sortable, index-friendly); engine output carries no IDs so
// repeated runs stay byte-identical.
type TradeRow struct {
	ID         string
	Ticker     string
	Side       string
	Units      float64
	EntryDate  time.Time
	ExitDate   time.Time
	EntryPrice float64
	ExitPrice  float64
	Return     float64
	Reason     string
}

// EquityRow is one persisted end-of-day valuation with the net
// position-state code for that day.
type EquityRow struct {
	Date  time.Time
	Value float64
	State int8
}

type Journal interface {
	RecordTrade(TradeRow) error
	RecordEquity(EquityRow) error
	Close() error
}

// Record persists a complete run: every trade and every equity point.
func Record(j Journal, res *backtest.Result) error {
	for _, tr := range res.Trades {
		if err := j.RecordTrade(tradeRow(tr)); err != nil {
			return err
		}
	}
	for i, eq := range res.Equity {
		row := EquityRow{Date: eq.Date, Value: eq.Value}
		if i < len(res.PositionStates) {
			row.State = res.PositionStates[i]
		}
		if err := j.RecordEquity(row); err != nil {
			return err
		}
	}
	return nil
}

func tradeRow(tr backtest.TradeRecord) TradeRow {
	return TradeRow{
		ID:         ulid.Make().String(),
		Ticker:     tr.Ticker,
		Side:       tr.Side.String(),
		Units:      tr.Units,
		EntryDate:  tr.EntryDate,
		ExitDate:   tr.ExitDate,
		EntryPrice: tr.EntryPrice,
		ExitPrice:  tr.ExitPrice,
		Return:     tr.Return,
		Reason:     tr.Reason,
	}
}
