package journal

import (
	"bytes"
	"os"
	"text/template"
	"time"

	"github.com/oklog/ulid/v2"

	"backtester/backtest"
)

// RunSummary aggregates one backtest Result for reporting.
type RunSummary struct {
	RunID    string
	Created  time.Time
	Strategy string
	Start    time.Time
	End      time.Time

	StartValue float64
	FinalValue float64

	Trades int
	Wins   int
	Losses int

	// Derived
	NetPL     float64
	ReturnPct float64
	WinRate   float64
	MaxDDPct  float64
}

// Summarize computes the run summary from a Result.
func Summarize(res *backtest.Result, strategy string, startValue float64) RunSummary {
	s := RunSummary{
		RunID:      ulid.Make().String(),
		Created:    time.Now().UTC(),
		Strategy:   strategy,
		StartValue: startValue,
		FinalValue: res.FinalValue,
		Trades:     len(res.Trades),
		NetPL:      res.FinalValue - startValue,
	}

	if len(res.Equity) > 0 {
		s.Start = res.Equity[0].Date
		s.End = res.Equity[len(res.Equity)-1].Date
	}
	if startValue > 0 {
		s.ReturnPct = 100 * s.NetPL / startValue
	}

	for _, tr := range res.Trades {
		switch {
		case tr.Return > 0:
			s.Wins++
		case tr.Return < 0:
			s.Losses++
		}
	}
	if s.Trades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Trades)
	}

	s.MaxDDPct = maxDrawdownPct(res.Equity)
	return s
}

// maxDrawdownPct is the largest peak-to-trough equity drop, in percent.
func maxDrawdownPct(equity []backtest.EquityPoint) float64 {
	peak := 0.0
	maxDD := 0.0
	for _, p := range equity {
		if p.Value > peak {
			peak = p.Value
		}
		if peak > 0 {
			dd := (peak - p.Value) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return 100 * maxDD
}

var orgFuncs = template.FuncMap{
	"mul100": func(x float64) float64 { return x * 100.0 },
}

// WriteOrg renders the run summary as an org-mode note at path.
func (s RunSummary) WriteOrg(path string) error {
	t, err := template.New("run").Funcs(orgFuncs).Parse(orgTemplate)
	if err != nil {
		return err
	}
	buf := new(bytes.Buffer)
	if err := t.Execute(buf, s); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

const orgTemplate = `
* BACKTEST: {{.Strategy}}
:PROPERTIES:
:RUN_ID:      {{.RunID}}
:STRATEGY:    {{.Strategy}}
:START_DATE:  {{.Start.Format "2006-01-02"}}
:END_DATE:    {{.End.Format "2006-01-02"}}
:START_VAL:   {{printf "%.2f" .StartValue}}
:FINAL_VAL:   {{printf "%.2f" .FinalValue}}
:NET_PL:      {{printf "%.2f" .NetPL}}
:RETURN_PCT:  {{printf "%.2f" .ReturnPct}}
:MAX_DD_PCT:  {{printf "%.2f" .MaxDDPct}}
:TRADES:      {{.Trades}}
:WINS:        {{.Wins}}
:LOSSES:      {{.Losses}}
:WIN_RATE:    {{printf "%.2f" (mul100 .WinRate)}}
:CREATED:     [{{.Created.Format "2006-01-02 Mon 15:04"}}]
:END:

** Performance Summary
- Net P/L:      *{{printf "%.2f" .NetPL}}*
- Return:       *{{printf "%.2f" .ReturnPct}}%*
- Max Drawdown: *{{printf "%.2f" .MaxDDPct}}%*
- Win Rate:     *{{printf "%.2f" (mul100 .WinRate)}}%*

** Trade Distribution
| Outcome | Count |
|---------+-------|
| Wins    | {{.Wins}} |
| Losses  | {{.Losses}} |
| Total   | {{.Trades}} |
`
