package main

import (
	"os"

	"github.com/MrGangrene/bgg-flashcards/cmd"
	"github.com/MrGangrene/bgg-flashcards/internal/conf"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	settings := &conf.Settings{}

	rootCmd := cmd.RootCommand(settings, version)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
