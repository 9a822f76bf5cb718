package search

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrGangrene/bgg-flashcards/internal/app"
	"github.com/MrGangrene/bgg-flashcards/internal/conf"
)

// DefaultWait bounds how long the command waits for background catalog searches.
const DefaultWait = 30 * time.Second

// Command creates a new command searching the local cache and the catalog by name.
func Command(settings *conf.Settings) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search games by name or catalog id",
		Long:  "Shows cached matches immediately, then the catalog results as they arrive.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, settings, strings.Join(args, " "), wait)
		},
	}

	// Set up flags specific to the 'search' command
	if err := setupFlags(cmd, &wait); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func run(cmd *cobra.Command, settings *conf.Settings, query string, wait time.Duration) error {
	a, err := app.New(settings)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx, stop := app.SignalContext(cmd.Context())
	defer stop()

	a.Orchestrator(app.NewTablePresenter(cmd.OutOrStdout())).Search(ctx, query)
	a.WaitForTasks(ctx, wait)
	return nil
}

func setupFlags(cmd *cobra.Command, wait *time.Duration) error {
	cmd.Flags().DurationVar(wait, "wait", DefaultWait, "Maximum time to wait for background catalog results")
	return nil
}
