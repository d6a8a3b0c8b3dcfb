package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtester/market"
	"backtester/signal"
	"backtester/sizing"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

// flatBars builds a series whose OHLC all equal the given closes.
func flatBars(closes ...float64) market.Series {
	s := make(market.Series, len(closes))
	for i, c := range closes {
		s[i] = market.Bar{Date: day(i), Open: c, High: c, Low: c, Close: c}
	}
	return s
}

func newCalendar(t *testing.T, hist market.History) *market.Calendar {
	t.Helper()
	cal, err := market.NewCalendar(hist)
	require.NoError(t, err)
	return cal
}

func newTestEngine(t *testing.T, cal *market.Calendar, cfg Config) *Engine {
	t.Helper()
	e, err := NewEngine(cal, cfg)
	require.NoError(t, err)
	return e
}

// baseConfig has exits disabled so tests opt in to the rules they exercise.
func baseConfig() Config {
	return Config{
		InitialCapital: 100000,
		Sizing:         sizing.Model{Fraction: 0.1},
		AllowShort:     true,
	}
}

func directions(ds ...int8) []signal.Signal {
	out := make([]signal.Signal, len(ds))
	for i, d := range ds {
		out[i] = signal.Direction(d)
	}
	return out
}

func TestLongRoundTripFillsAtNextOpen(t *testing.T) {
	cal := newCalendar(t, market.History{"AAA": flatBars(100, 102, 99, 101, 103)})
	e := newTestEngine(t, cal, baseConfig())

	res, err := e.Run(context.Background(), map[string][]signal.Signal{
		"AAA": directions(0, 1, 0, -1, 0),
	})
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, "AAA", tr.Ticker)
	assert.Equal(t, Long, tr.Side)
	// Entry fills at the open following the +1 signal, exit at the open
	// following the -1 signal: never the signal bar itself.
	assert.Equal(t, day(2), tr.EntryDate)
	assert.Equal(t, day(4), tr.ExitDate)
	assert.InDelta(t, 99.0, tr.EntryPrice, 1e-9)
	assert.InDelta(t, 103.0, tr.ExitPrice, 1e-9)
	assert.InDelta(t, 4.0/99.0, tr.Return, 1e-12)

	// floor(0.1*100000/99) = 101 units
	assert.InDelta(t, 101, tr.Units, 1e-9)
	assert.InDelta(t, 100000+101*4.0, res.FinalValue, 1e-9)

	// One equity point per bar except the final one.
	require.Len(t, res.Equity, 4)
	require.Len(t, res.PositionStates, 4)
	assert.Equal(t, []int8{0, 1, 1, 0}, res.PositionStates)
	assert.InDelta(t, 100000, res.Equity[0].Value, 1e-9)

	assert.InDelta(t, 0, res.Holdings["AAA"], 1e-12)
}

func TestStopLossForcedExit(t *testing.T) {
	hist := market.History{"AAA": market.Series{
		{Date: day(0), Open: 100, High: 100, Low: 100, Close: 100},
		{Date: day(1), Open: 100, High: 101, Low: 94, Close: 96},
		{Date: day(2), Open: 96, High: 97, Low: 95, Close: 96},
	}}
	cfg := baseConfig()
	cfg.Exits.StopLoss = 0.05
	e := newTestEngine(t, newCalendar(t, hist), cfg)

	// Coincident -1 signal on the breach bar must be suppressed by the
	// forced exit.
	res, err := e.Run(context.Background(), map[string][]signal.Signal{
		"AAA": directions(1, -1, 0),
	})
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.InDelta(t, 100.0, tr.EntryPrice, 1e-9)
	assert.InDelta(t, 95.0, tr.ExitPrice, 1e-9)
	assert.Equal(t, ReasonStopLoss, tr.Reason)
	assert.Equal(t, day(1), tr.ExitDate)
}

func TestTrailingStopExitsAtRatchetedLevel(t *testing.T) {
	hist := market.History{"AAA": market.Series{
		{Date: day(0), Open: 100, High: 100, Low: 100, Close: 100},
		{Date: day(1), Open: 100, High: 100, Low: 100, Close: 100},
		{Date: day(2), Open: 100, High: 120, Low: 110, Close: 118},
		{Date: day(3), Open: 115, High: 116, Low: 107, Close: 109},
		{Date: day(4), Open: 109, High: 110, Low: 108, Close: 109},
	}}
	cfg := baseConfig()
	cfg.Exits.TrailingStop = 0.10
	e := newTestEngine(t, newCalendar(t, hist), cfg)

	res, err := e.Run(context.Background(), map[string][]signal.Signal{
		"AAA": directions(1, 0, 0, 0, 0),
	})
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	// Bar 2's high of 120 ratchets the level to 108; bar 3's low of 107
	// exits at the level, not the low.
	assert.InDelta(t, 108.0, tr.ExitPrice, 1e-9)
	assert.Equal(t, ReasonTrailingStop, tr.Reason)
	assert.Equal(t, day(3), tr.ExitDate)
}

func TestShortSignalIgnoredWhenShortingDisabled(t *testing.T) {
	cal := newCalendar(t, market.History{"AAA": flatBars(100, 100, 100, 100)})
	cfg := baseConfig()
	cfg.AllowShort = false
	e := newTestEngine(t, cal, cfg)

	res, err := e.Run(context.Background(), map[string][]signal.Signal{
		"AAA": directions(0, -1, -1, 0),
	})
	require.NoError(t, err)

	assert.Empty(t, res.Trades)
	assert.InDelta(t, 0, res.Holdings["AAA"], 1e-12)
	for _, st := range res.PositionStates {
		assert.Equal(t, int8(0), st)
	}
}

func TestTwoTickersStopOutSameBar(t *testing.T) {
	crash := market.Series{
		{Date: day(0), Open: 100, High: 100, Low: 100, Close: 100},
		{Date: day(1), Open: 100, High: 100, Low: 100, Close: 100},
		{Date: day(2), Open: 92, High: 93, Low: 90, Close: 91},
		{Date: day(3), Open: 91, High: 92, Low: 90, Close: 91},
	}
	hist := market.History{"AAA": crash, "BBB": crash}
	cfg := baseConfig()
	cfg.Exits.StopLoss = 0.05
	e := newTestEngine(t, newCalendar(t, hist), cfg)

	sigs := map[string][]signal.Signal{
		"AAA": directions(1, 0, 0, 0),
		"BBB": directions(1, 0, 0, 0),
	}
	res, err := e.Run(context.Background(), sigs)
	require.NoError(t, err)

	require.Len(t, res.Trades, 2)
	for _, tr := range res.Trades {
		assert.Equal(t, ReasonStopLoss, tr.Reason)
		assert.Equal(t, day(2), tr.ExitDate)
		assert.InDelta(t, 95.0, tr.ExitPrice, 1e-9)
	}
	// Both exits are reflected in that day's equity: all cash again.
	assert.InDelta(t, res.Equity[2].Value, res.FinalValue, 1e-9)
}

func TestShortRoundTrip(t *testing.T) {
	cal := newCalendar(t, market.History{"AAA": flatBars(100, 100, 90, 90, 90)})
	e := newTestEngine(t, cal, baseConfig())

	res, err := e.Run(context.Background(), map[string][]signal.Signal{
		"AAA": directions(-1, 0, 1, 0, 0),
	})
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, Short, tr.Side)
	assert.InDelta(t, 100.0, tr.EntryPrice, 1e-9)
	assert.InDelta(t, 90.0, tr.ExitPrice, 1e-9)
	assert.InDelta(t, 0.10, tr.Return, 1e-12)

	// floor(0.1*100000/100) = 100 units; short P&L accrues against cash.
	assert.InDelta(t, 100000+100*10.0, res.FinalValue, 1e-9)
	assert.Equal(t, int8(-1), res.PositionStates[1])
}

func TestFlatRoundTripReturnsZero(t *testing.T) {
	cal := newCalendar(t, market.History{"AAA": flatBars(50, 50, 50, 50)})
	e := newTestEngine(t, cal, baseConfig())

	res, err := e.Run(context.Background(), map[string][]signal.Signal{
		"AAA": directions(1, -1, 0, 0),
	})
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	assert.InDelta(t, 0, res.Trades[0].Return, 1e-12)
	assert.InDelta(t, 100000, res.FinalValue, 1e-9)
	for _, eq := range res.Equity {
		assert.InDelta(t, 100000, eq.Value, 1e-9)
	}
}

func TestDeterministicAcrossRuns(t *testing.T) {
	hist := market.History{
		"AAA": flatBars(100, 104, 99, 107, 103, 96, 101),
		"BBB": flatBars(50, 49, 53, 51, 55, 52, 54),
	}
	cfg := baseConfig()
	cfg.Exits.StopLoss = 0.05
	cfg.Exits.TakeProfit = 0.10
	sigs := map[string][]signal.Signal{
		"AAA": directions(1, 0, -1, 1, 0, -1, 0),
		"BBB": directions(0, 1, 0, 0, -1, 1, 0),
	}

	cal := newCalendar(t, hist)
	first, err := newTestEngine(t, cal, cfg).Run(context.Background(), sigs)
	require.NoError(t, err)
	second, err := newTestEngine(t, cal, cfg).Run(context.Background(), sigs)
	require.NoError(t, err)

	assert.Equal(t, first.Trades, second.Trades)
	assert.Equal(t, first.Equity, second.Equity)
	assert.Equal(t, first.PositionStates, second.PositionStates)
	assert.Equal(t, first.Holdings, second.Holdings)
	assert.InDelta(t, first.FinalValue, second.FinalValue, 0)
}

func TestMissingSignalsDefaultToFlat(t *testing.T) {
	cal := newCalendar(t, market.History{"AAA": flatBars(10, 10, 10)})
	e := newTestEngine(t, cal, baseConfig())

	res, err := e.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Empty(t, res.Trades)
	require.Len(t, res.Signals["AAA"], 3)
	for _, s := range res.Signals["AAA"] {
		assert.Equal(t, signal.Flat, s)
	}
}

func TestForwardFilledGapSkipsFill(t *testing.T) {
	// BBB is missing day(2): its +1 signal on day(1) still fills, using
	// the forward-filled bar; AAA absent before day(2) cannot fill.
	hist := market.History{
		"AAA": market.Series{
			{Date: day(2), Open: 10, High: 10, Low: 10, Close: 10},
			{Date: day(3), Open: 10, High: 10, Low: 10, Close: 10},
		},
		"BBB": flatBars(20, 20, 20, 20),
	}
	cal := newCalendar(t, hist)
	e := newTestEngine(t, cal, baseConfig())

	// AAA has no bar at day(1), so a +1 at day(0) has nothing to fill on.
	res, err := e.Run(context.Background(), map[string][]signal.Signal{
		"AAA": directions(1, 0, 0, 0),
	})
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
	assert.InDelta(t, 0, res.Holdings["AAA"], 1e-12)
}

func TestCancelledContextStopsRun(t *testing.T) {
	cal := newCalendar(t, market.History{"AAA": flatBars(10, 10, 10)})
	e := newTestEngine(t, cal, baseConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Run(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfigValidation(t *testing.T) {
	cal := newCalendar(t, market.History{"AAA": flatBars(10, 10)})

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero capital", func(c *Config) { c.InitialCapital = 0 }},
		{"negative stop", func(c *Config) { c.Exits.StopLoss = -0.01 }},
		{"stop above one", func(c *Config) { c.Exits.StopLoss = 1.5 }},
		{"negative fraction", func(c *Config) { c.Sizing.Fraction = -0.1 }},
		{"negative commission", func(c *Config) { c.Commission = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(&cfg)
			_, err := NewEngine(cal, cfg)
			assert.Error(t, err)
		})
	}
}
