package main

import (
	"log/slog"
	"os"

	"github.com/fly-io/flashcache-agent/cmd/flashcache-agent/commands"
)

func main() {
	// Stdout carries meta-data and usage output for the cluster manager
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: commands.LogLevel,
	}))
	slog.SetDefault(logger)

	commands.Execute()
}
