// Package market holds the daily price-bar data model: per-ticker OHLC
// series, the multi-ticker history map, and the unified calendar that
// aligns irregular series onto one date axis.
package market

import (
	"fmt"
	"time"
)

// Bar is one OHLC price observation for one ticker on one calendar day.
type Bar struct {
	Date  time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// Series is an ordered slice of daily bars for a single ticker, sorted
// ascending by date with no duplicate dates.
type Series []Bar

// Validate checks ordering and duplicate dates. Series supplied by loaders
// are already normalized; external callers should validate before use.
func (s Series) Validate() error {
	for i := 1; i < len(s); i++ {
		prev, cur := s[i-1].Date, s[i].Date
		if !cur.After(prev) {
			return fmt.Errorf("market: series out of order at %s (prev %s)",
				cur.Format("2006-01-02"), prev.Format("2006-01-02"))
		}
	}
	return nil
}

// History maps ticker to its bar series. Series may cover different date
// ranges and contain gaps; the Calendar unions and forward-fills them.
type History map[string]Series

// Day truncates t to midnight UTC so dates from different sources compare
// equal on the calendar axis.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
