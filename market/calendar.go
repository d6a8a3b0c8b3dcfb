package market

import (
	"fmt"
	"sort"
	"time"
)

// Calendar is the sorted union of all dates across a History, with every
// series forward-filled onto it. Multi-ticker simulation advances in
// lockstep over Dates even when individual series have gaps.
//
// Presence is tracked per ticker with a bitset: a clear bit means the
// ticker has no bar at that index (only possible before its first date,
// since gaps inside a series carry the previous bar forward).
type Calendar struct {
	Dates   []time.Time
	tickers []string // sorted; the stable per-bar iteration order
	bars    map[string][]Bar
	valid   map[string][]uint64
}

// NewCalendar unions the dates of every series in hist and forward-fills
// each series onto the unified axis.
func NewCalendar(hist History) (*Calendar, error) {
	if len(hist) == 0 {
		return nil, fmt.Errorf("market: empty history")
	}

	seen := make(map[time.Time]struct{})
	tickers := make([]string, 0, len(hist))
	for ticker, series := range hist {
		if len(series) == 0 {
			return nil, fmt.Errorf("market: ticker %s has no bars", ticker)
		}
		if err := series.Validate(); err != nil {
			return nil, fmt.Errorf("market: ticker %s: %w", ticker, err)
		}
		tickers = append(tickers, ticker)
		for _, b := range series {
			seen[Day(b.Date)] = struct{}{}
		}
	}
	sort.Strings(tickers)

	dates := make([]time.Time, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	cal := &Calendar{
		Dates:   dates,
		tickers: tickers,
		bars:    make(map[string][]Bar, len(hist)),
		valid:   make(map[string][]uint64, len(hist)),
	}

	for ticker, series := range hist {
		aligned := make([]Bar, len(dates))
		bits := make([]uint64, (len(dates)+63)/64)

		j := 0
		var last Bar
		have := false
		for i, d := range dates {
			for j < len(series) && !Day(series[j].Date).After(d) {
				last = series[j]
				have = true
				j++
			}
			if have {
				aligned[i] = last
				bitSet(bits, i)
			}
		}
		cal.bars[ticker] = aligned
		cal.valid[ticker] = bits
	}

	return cal, nil
}

// Len returns the number of calendar days.
func (c *Calendar) Len() int { return len(c.Dates) }

// Tickers returns the tickers in sorted order.
func (c *Calendar) Tickers() []string { return c.tickers }

// Bar returns the (possibly forward-filled) bar for ticker at calendar
// index i. ok is false when the ticker has no bar at or before that date;
// that is "instrument absent today", never an error.
func (c *Calendar) Bar(ticker string, i int) (Bar, bool) {
	bits, ok := c.valid[ticker]
	if !ok || i < 0 || i >= len(c.Dates) || !bitIsSet(bits, i) {
		return Bar{}, false
	}
	return c.bars[ticker][i], true
}

func bitSet(bits []uint64, i int) {
	bits[i>>6] |= 1 << uint(i&63)
}

func bitIsSet(bits []uint64, i int) bool {
	return bits[i>>6]&(1<<uint(i&63)) != 0
}
