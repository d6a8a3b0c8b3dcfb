package main

import (
	"os"

	"backtester/cmd/backtester/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
