package main

import (
	"log/slog"
	"os"

	"github.com/p-n-ai/statsquest/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		slog.Error("statsquest failed", "error", err)
		os.Exit(1)
	}
}
