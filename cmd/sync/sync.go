package sync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	gosync "sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MrGangrene/bgg-flashcards/internal/app"
	"github.com/MrGangrene/bgg-flashcards/internal/conf"
	"github.com/MrGangrene/bgg-flashcards/internal/logging"
	"github.com/MrGangrene/bgg-flashcards/internal/observability"
	"github.com/MrGangrene/bgg-flashcards/internal/updater"
)

// Command creates a new command running a batch catalog sync.
func Command(settings *conf.Settings) *cobra.Command {
	var opts updater.Options

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronise catalog games into the local cache",
		Long: "Fetches the games matching --query or --letter, or with --images fills in " +
			"missing image URLs of cached games. Press Ctrl+C to stop after the current game.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.Validate(); err != nil {
				return err
			}
			return run(cmd, settings, opts)
		},
	}

	// Set up flags specific to the 'sync' command
	if err := setupFlags(cmd, &opts); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func run(cmd *cobra.Command, settings *conf.Settings, opts updater.Options) error {
	a, err := app.New(settings)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx, stop := app.SignalContext(cmd.Context())
	defer stop()

	// Long runs pick up debug toggles from the config file
	conf.Watch(func(updated *conf.Settings) {
		level := slog.LevelInfo
		if updated.Debug {
			level = slog.LevelDebug
		}
		logging.SetLevel(level)
	})

	var wg gosync.WaitGroup
	serveCtx, stopServing := context.WithCancel(ctx)
	defer func() {
		stopServing()
		wg.Wait()
	}()

	if settings.Metrics.Enabled {
		endpoint, err := observability.NewEndpoint(settings, a.Metrics)
		if err != nil {
			return err
		}
		if err := endpoint.Start(serveCtx, &wg); err != nil {
			return err
		}
	}

	report, err := a.Updater().Run(ctx, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "processed %d of %d: %d successful, %d skipped in %s\n",
		report.Processed, report.Total, report.Successful, report.Skipped, report.Duration.Round(time.Millisecond))
	if report.Interrupted {
		_, _ = fmt.Fprintln(out, "sync interrupted")
	}
	return nil
}

// setupFlags configures flags specific to the sync command.
func setupFlags(cmd *cobra.Command, opts *updater.Options) error {
	cmd.Flags().StringVar(&opts.Query, "query", "", "Catalog search query")
	cmd.Flags().StringVar(&opts.Letter, "letter", "", "Sync games matching a single letter exactly")
	cmd.Flags().BoolVar(&opts.ImagesOnly, "images", false, "Only fill in missing image URLs of cached games")
	cmd.Flags().Int("limit", viper.GetInt("sync.limit"), "Maximum number of games to process")
	cmd.Flags().Duration("interval", viper.GetDuration("sync.interval"), "Delay between catalog requests")
	cmd.Flags().Bool("metrics", viper.GetBool("metrics.enabled"), "Serve Prometheus metrics while syncing")
	cmd.Flags().String("listen", viper.GetString("metrics.listen"), "Listen address of the metrics endpoint")

	// Bind flags to the viper settings
	for key, flag := range map[string]string{
		"sync.limit":      "limit",
		"sync.interval":   "interval",
		"metrics.enabled": "metrics",
		"metrics.listen":  "listen",
	} {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flags: %w", err)
		}
	}

	return nil
}
