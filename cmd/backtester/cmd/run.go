package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"backtester/backtest"
	"backtester/config"
	"backtester/journal"
	"backtester/market"
	"backtester/strategies"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a backtest over a directory of daily-bar files",
	Long: `Run loads daily bars (TICKER.csv, TICKER.csv.xz or zip bundles),
generates signals with the configured strategy, replays them through the
engine and prints a summary.

Example:
  backtester run --config backtest.yaml
  backtester run --data ./bars --strategy sma-cross --fast 10 --slow 30`,
	RunE: runBacktest,
}

var (
	runConfigPath string
	runDataDir    string
	runStrategy   string
	runSignals    string
	runFast       int
	runSlow       int
	runCapital    float64
	runOrgPath    string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", "", "path to YAML/JSON config (flags override it)")
	runCmd.Flags().StringVarP(&runDataDir, "data", "d", "", "directory of daily-bar files")
	runCmd.Flags().StringVarP(&runStrategy, "strategy", "s", "", "strategy name (noop, table, sma-cross, ema-cross)")
	runCmd.Flags().StringVar(&runSignals, "signals", "", "table strategy: CSV of date,ticker,direction rows")
	runCmd.Flags().IntVar(&runFast, "fast", 0, "crossover: fast period")
	runCmd.Flags().IntVar(&runSlow, "slow", 0, "crossover: slow period")
	runCmd.Flags().Float64Var(&runCapital, "capital", 0, "initial capital")
	runCmd.Flags().StringVar(&runOrgPath, "org", "", "write an org-mode run report to this path")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig()
	if err != nil {
		return err
	}

	hist, err := market.LoadDir(cfg.Data.Dir)
	if err != nil {
		return err
	}
	cal, err := market.NewCalendar(hist)
	if err != nil {
		return err
	}

	strat, err := strategies.ByName(cfg.Strategy.Name, strategies.Options{
		Fast:        cfg.Strategy.Fast,
		Slow:        cfg.Strategy.Slow,
		SignalsFile: cfg.Strategy.SignalsFile,
	})
	if err != nil {
		return err
	}

	engine, err := backtest.NewEngine(cal, cfg.EngineConfig())
	if err != nil {
		return err
	}

	fmt.Printf("Running backtest with strategy: %s\n", strat.Name())
	fmt.Printf("  Data: %s (%d tickers, %d days)\n\n", cfg.Data.Dir, len(cal.Tickers()), cal.Len())

	res, err := engine.Run(context.Background(), strategies.Generate(strat, cal))
	if err != nil {
		return err
	}

	if err := persist(cfg, res); err != nil {
		return err
	}

	summary := journal.Summarize(res, strat.Name(), cfg.Account.InitialCapital)
	fmt.Printf("Backtest Complete!\n")
	fmt.Printf("  Final Value: $%.2f\n", summary.FinalValue)
	fmt.Printf("  Net P/L: $%.2f (%.2f%%)\n", summary.NetPL, summary.ReturnPct)
	fmt.Printf("  Max Drawdown: %.2f%%\n", summary.MaxDDPct)
	fmt.Printf("  Trades: %d (wins %d, losses %d)\n", summary.Trades, summary.Wins, summary.Losses)

	orgPath := cfg.Journal.OrgPath
	if runOrgPath != "" {
		orgPath = runOrgPath
	}
	if orgPath != "" {
		if err := summary.WriteOrg(orgPath); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Printf("  Report: %s\n", orgPath)
	}
	return nil
}

// loadRunConfig resolves config from file, environment and flags, in that
// order of increasing precedence.
func loadRunConfig() (*config.Config, error) {
	path := runConfigPath
	if path == "" {
		path = os.Getenv("BACKTESTER_CONFIG")
	}

	var cfg *config.Config
	if path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	if env := os.Getenv("BACKTESTER_DATA"); env != "" {
		cfg.Data.Dir = env
	}
	if runDataDir != "" {
		cfg.Data.Dir = runDataDir
	}
	if runStrategy != "" {
		cfg.Strategy.Name = runStrategy
	}
	if runSignals != "" {
		cfg.Strategy.SignalsFile = runSignals
	}
	if runFast > 0 {
		cfg.Strategy.Fast = runFast
	}
	if runSlow > 0 {
		cfg.Strategy.Slow = runSlow
	}
	if runCapital > 0 {
		cfg.Account.InitialCapital = runCapital
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(cfg *config.Config, res *backtest.Result) error {
	var j journal.Journal
	var err error

	switch cfg.Journal.Type {
	case "", "none":
		return nil
	case "csv":
		j, err = journal.NewCSV(cfg.Journal.TradesFile, cfg.Journal.EquityFile)
	case "sqlite":
		j, err = journal.NewSQLite(cfg.Journal.DBPath)
	}
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	return journal.Record(j, res)
}
