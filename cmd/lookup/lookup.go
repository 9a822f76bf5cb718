package lookup

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrGangrene/bgg-flashcards/internal/app"
	"github.com/MrGangrene/bgg-flashcards/internal/conf"
)

// Command creates a new command looking up one game and its expansions by catalog id.
func Command(settings *conf.Settings) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "lookup <id>",
		Short: "Look up a game and its expansions by catalog id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid game id %q", args[0])
			}

			a, err := app.New(settings)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			ctx, stop := app.SignalContext(cmd.Context())
			defer stop()

			a.Orchestrator(app.NewTablePresenter(cmd.OutOrStdout())).SearchByID(ctx, id)
			a.WaitForTasks(ctx, wait)
			return nil
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 30*time.Second, "Maximum time to wait for background catalog results")

	return cmd
}
