package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "backtester",
	Short: "A deterministic, event-driven portfolio backtesting engine",
	Long: `Backtester replays historical daily bars and per-ticker trading
signals through a simulated account, producing a full audit trail:
trade ledger, daily equity curve and position state.

It provides:
  - Next-bar-open fill timing (no look-ahead)
  - Stop-loss, take-profit and trailing-stop exits evaluated intrabar
  - Directional signals or explicit MARKET/LIMIT/STOP orders
  - Fraction-of-portfolio position sizing, per-ticker overrides
  - CSV or SQLite trade/equity journaling`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// .env values become environment overrides for the subcommands.
	_ = godotenv.Load()
}
