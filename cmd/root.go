package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MrGangrene/bgg-flashcards/cmd/image"
	"github.com/MrGangrene/bgg-flashcards/cmd/lookup"
	"github.com/MrGangrene/bgg-flashcards/cmd/search"
	"github.com/MrGangrene/bgg-flashcards/cmd/sync"
	"github.com/MrGangrene/bgg-flashcards/internal/conf"
	"github.com/MrGangrene/bgg-flashcards/internal/logging"
	"github.com/MrGangrene/bgg-flashcards/internal/telemetry"
)

// RootCommand creates and returns the root command. settings is filled
// from the configuration file, environment and flags before any subcommand runs.
func RootCommand(settings *conf.Settings, version string) *cobra.Command {
	var (
		configFile string
		cleanup    []func()
	)

	rootCmd := &cobra.Command{
		Use:          "bggsync",
		Short:        "BoardGameGeek catalog sync",
		Long:         "Search, look up and synchronise board games from BoardGameGeek into the local game cache.",
		Version:      version,
		SilenceUsage: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, &configFile); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	rootCmd.AddCommand(
		search.Command(settings),
		lookup.Command(settings),
		sync.Command(settings),
		image.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if configFile != "" {
			conf.SetConfigFile(configFile)
		}

		loaded, err := conf.Load()
		if err != nil {
			return err
		}
		*settings = *loaded

		closeLog, err := initialize(settings)
		if err != nil {
			return err
		}
		cleanup = append(cleanup, closeLog)

		flush, err := telemetry.InitSentry(settings, telemetry.Options{Release: version})
		if err != nil {
			// Telemetry is optional
			slog.Warn("Sentry initialization failed", "error", err)
			return nil
		}
		cleanup = append(cleanup, flush)
		return nil
	}

	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
		cleanup = nil
	}

	return rootCmd
}

// initialize sets the log level and routes structured logs to the
// configured file. Without a log file both streams go to stderr so stdout
// carries only command output.
func initialize(settings *conf.Settings) (func(), error) {
	level := slog.LevelInfo
	if settings.Debug {
		level = slog.LevelDebug
	}
	logging.SetLevel(level)

	if !settings.Log.Enabled || settings.Log.Path == "" {
		logging.SetOutput(os.Stderr, os.Stderr)
		return func() {}, nil
	}

	w, err := logging.NewRotatingWriter(settings.Log.Path, settings.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logging.SetOutput(w, os.Stderr)

	return func() {
		logging.SetOutput(os.Stderr, os.Stderr)
		_ = w.Close()
	}, nil
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, configFile *string) error {
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")
	rootCmd.PersistentFlags().StringVar(configFile, "config", "", "Path to the configuration file")

	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
