package strategies

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"backtester/market"
	"backtester/signal"
)

// Table replays externally supplied directional flags: one CSV row per
// (date, ticker) with a {-1, 0, 1} direction. Dates with no row are flat.
type Table struct {
	directions map[tableKey]signal.Direction
}

type tableKey struct {
	ticker string
	date   time.Time
}

// LoadTable reads date,ticker,direction rows. A header line is skipped.
func LoadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("strategies: load table: %w", err)
	}
	defer f.Close()

	t := &Table{directions: make(map[tableKey]signal.Direction)}

	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(strings.ToLower(line), "date") {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) < 3 {
			return nil, fmt.Errorf("strategies: %s:%d: want date,ticker,direction", path, lineNo)
		}

		date, err := time.Parse("2006-01-02", strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("strategies: %s:%d: %w", path, lineNo, err)
		}
		dir, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil || dir < -1 || dir > 1 {
			return nil, fmt.Errorf("strategies: %s:%d: direction must be -1, 0 or 1", path, lineNo)
		}

		key := tableKey{
			ticker: strings.ToUpper(strings.TrimSpace(parts[1])),
			date:   market.Day(date),
		}
		t.directions[key] = signal.Direction(dir)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) Name() string { return "table" }

func (t *Table) Reset() {}

func (t *Table) OnBar(ticker string, bar market.Bar) signal.Signal {
	return t.directions[tableKey{ticker: ticker, date: market.Day(bar.Date)}]
}
