package main

import (
	"log/slog"
	"os"
)

func main() {
	err := rootCmd.Execute()
	if err != nil {
		slog.Error("migration run failed", "error", err)
		os.Exit(1)
	}
}
