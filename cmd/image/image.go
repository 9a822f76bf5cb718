package image

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/MrGangrene/bgg-flashcards/internal/app"
	"github.com/MrGangrene/bgg-flashcards/internal/conf"
	"github.com/MrGangrene/bgg-flashcards/internal/datastore"
	"github.com/MrGangrene/bgg-flashcards/internal/errors"
	"github.com/MrGangrene/bgg-flashcards/internal/imageservice"
)

// previewLength caps how much of a data URI is printed without --full.
const previewLength = 72

// Command creates the image command group.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image",
		Short: "Manage stored game images",
	}

	cmd.AddCommand(fetchCommand(settings), clearCommand(settings), showCommand(settings))
	return cmd
}

func fetchCommand(settings *conf.Settings) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "fetch <id>",
		Short: "Download, compress and store the image of a game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withImages(cmd, settings, args[0], func(ctx context.Context, a *app.App, images *imageservice.Service, id int) error {
				game, err := resolveGame(ctx, a, id, true)
				if err != nil {
					return err
				}
				if !game.HasExternalImage() {
					return fmt.Errorf("game %d has no catalog image", id)
				}
				if !images.EnsureImage(ctx, id, game.ImagePath, force) {
					return fmt.Errorf("failed to store image for game %d", id)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "stored image for %d (%s)\n", id, game.Name)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Replace an already stored image")
	return cmd
}

func clearCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <id>",
		Short: "Remove the stored image of a game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withImages(cmd, settings, args[0], func(ctx context.Context, _ *app.App, images *imageservice.Service, id int) error {
				if !images.Clear(ctx, id) {
					return fmt.Errorf("failed to clear image for game %d", id)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "cleared image for %d\n", id)
				return nil
			})
		},
	}
}

func showCommand(settings *conf.Settings) *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print the image source that would be displayed for a game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withImages(cmd, settings, args[0], func(ctx context.Context, a *app.App, images *imageservice.Service, id int) error {
				game, err := resolveGame(ctx, a, id, false)
				if err != nil && !errors.IsNotFound(err) {
					return err
				}
				src := images.Source(ctx, game)
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", src.Kind, preview(src.Value, full))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "Print the whole data URI")
	return cmd
}

func withImages(cmd *cobra.Command, settings *conf.Settings, rawID string, fn func(context.Context, *app.App, *imageservice.Service, int) error) error {
	id, err := strconv.Atoi(rawID)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid game id %q", rawID)
	}

	a, err := app.New(settings)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	images, err := a.RequireImages()
	if err != nil {
		return err
	}

	ctx, stop := app.SignalContext(cmd.Context())
	defer stop()
	return fn(ctx, a, images, id)
}

// resolveGame reads a game from the cache, fetching it from the catalog
// when missing and fetch is set.
func resolveGame(ctx context.Context, a *app.App, id int, fetch bool) (*datastore.Game, error) {
	game, err := a.Store.GetGame(ctx, id)
	if err == nil {
		return game, nil
	}
	if !errors.IsNotFound(err) || !fetch {
		return nil, err
	}
	if game = a.Catalog.FetchByID(ctx, id); game == nil {
		return nil, fmt.Errorf("game %d not found in the catalog", id)
	}
	return game, nil
}

func preview(value string, full bool) string {
	if full || len(value) <= previewLength {
		return value
	}
	return value[:previewLength] + "..."
}
