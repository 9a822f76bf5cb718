package bgg

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MrGangrene/bgg-flashcards/internal/datastore"
	"github.com/MrGangrene/bgg-flashcards/internal/errors"
	"github.com/MrGangrene/bgg-flashcards/internal/tasks"
)

// GameStore is the local game cache the catalog reads and writes through.
type GameStore interface {
	GetGame(ctx context.Context, id int) (*datastore.Game, error)
	UpsertGame(ctx context.Context, game *datastore.Game) error
}

// ImageAcquirer downloads and stores a game's image.
type ImageAcquirer interface {
	EnsureImage(ctx context.Context, gameID int, url string, force bool) bool
}

// Catalog combines the API client with the local cache. Its operations never
// return errors: failures are logged and reflected as empty or partial results.
type Catalog struct {
	client *Client
	store  GameStore
	images ImageAcquirer
	tasks  *tasks.Coordinator
}

// NewCatalog creates a catalog. images and coordinator may be nil, in which
// case image acquisition and secondary lookups are skipped.
func NewCatalog(client *Client, store GameStore, images ImageAcquirer, coordinator *tasks.Coordinator) *Catalog {
	return &Catalog{
		client: client,
		store:  store,
		images: images,
		tasks:  coordinator,
	}
}

// SearchByName returns detailed records for every candidate matching query.
// onImmediate, when non-nil, receives the coarse list once before any detail
// fetch, provided the list is non-empty. When ctx is cancelled the records
// fetched so far are returned.
func (c *Catalog) SearchByName(ctx context.Context, query string, onImmediate func([]datastore.Game)) []datastore.Game {
	items, err := c.client.Search(ctx, query, false)
	if err != nil {
		c.logFailure(ctx, "Catalog search failed", err, "query", query)
		return nil
	}

	candidates := make([]int, 0, len(items))
	coarse := make([]datastore.Game, 0, len(items))
	for i := range items {
		id, err := strconv.Atoi(items[i].ID)
		if err != nil || id <= 0 {
			logger.Debug("Skipping search item with invalid id", "query", query, "id", items[i].ID)
			continue
		}
		candidates = append(candidates, id)
		coarse = append(coarse, c.coarseRecord(ctx, id, &items[i]))
	}

	if onImmediate != nil && len(coarse) > 0 {
		onImmediate(coarse)
	}

	detailed := c.fetchAll(ctx, candidates, "query", query)
	logger.Info("Catalog search finished",
		"query", query,
		"candidates", len(candidates),
		"fetched", len(detailed),
		"cancelled", ctx.Err() != nil)
	return detailed
}

// coarseRecord returns the cached row for id, or a preview built from the
// search item alone.
func (c *Catalog) coarseRecord(ctx context.Context, id int, item *SearchItem) datastore.Game {
	if c.store != nil {
		cached, err := c.store.GetGame(ctx, id)
		if err == nil && cached != nil {
			cached.Provenance = datastore.ProvenanceLocalCache
			return *cached
		}
		if err != nil && !errors.IsNotFound(err) {
			logger.Debug("Cache lookup failed for search preview", "game_id", id, "error", err)
		}
	}
	return datastore.Game{
		ID:            id,
		Name:          primaryName(item.Names, true),
		YearPublished: parseYear(item.YearPublished),
		Provenance:    datastore.ProvenanceCatalogSearchPreview,
		Preview:       true,
	}
}

// fetchAll fetches details for ids in order, stopping at cancellation.
func (c *Catalog) fetchAll(ctx context.Context, ids []int, logArgs ...any) []datastore.Game {
	results := make([]datastore.Game, 0, len(ids))
	for i, id := range ids {
		if ctx.Err() != nil {
			logger.Debug("Catalog fetch cancelled",
				append(logArgs, "remaining", len(ids)-i, "fetched", len(results))...)
			break
		}
		if game := c.FetchByID(ctx, id); game != nil {
			results = append(results, *game)
		}
	}
	return results
}

// FetchByID fetches, caches and returns the detail record of a game. It
// returns nil when the game does not exist, has no primary name or the
// request fails.
func (c *Catalog) FetchByID(ctx context.Context, id int) *datastore.Game {
	item, err := c.client.Thing(ctx, id)
	if err != nil {
		c.logFailure(ctx, "Catalog detail fetch failed", err, "game_id", id)
		return nil
	}

	game, ok := gameFromThing(id, item)
	if !ok {
		logger.Warn("Catalog item has no primary name", "game_id", id)
		return nil
	}

	if c.store != nil {
		if err := c.store.UpsertGame(ctx, game); err != nil {
			// The fetched record is still returned to the caller
			logger.Error("Failed to cache catalog record", "game_id", id, "error", err)
		}
	}

	if c.images != nil && game.HasExternalImage() {
		c.images.EnsureImage(ctx, id, game.ImagePath, false)
	}

	game.Provenance = datastore.ProvenanceCatalog
	return game
}

// gameFromThing maps a detail item onto a Game. It reports false when the
// item has no primary name.
func gameFromThing(id int, item *ThingItem) (*datastore.Game, bool) {
	name := primaryName(item.Names, false)
	if name == "" {
		return nil, false
	}
	return &datastore.Game{
		ID:            id,
		Name:          name,
		AvgRating:     item.AverageRating(),
		MinPlayers:    parsePlayers(item.MinPlayers),
		MaxPlayers:    parsePlayers(item.MaxPlayers),
		YearPublished: parseYear(item.YearPublished),
		IsExpansion:   item.IsExpansion(),
		ImagePath:     strings.TrimSpace(item.Image),
	}, true
}

// FetchExpansionsOf returns detailed records of the expansions linked from
// baseID. When ctx is cancelled the records fetched so far are returned.
func (c *Catalog) FetchExpansionsOf(ctx context.Context, baseID int) []datastore.Game {
	item, err := c.client.Thing(ctx, baseID)
	if err != nil {
		c.logFailure(ctx, "Catalog expansion lookup failed", err, "game_id", baseID)
		return nil
	}

	ids := item.ExpansionIDs()
	if len(ids) == 0 {
		return []datastore.Game{}
	}
	expansions := c.fetchAll(ctx, ids, "base_game_id", baseID)
	logger.Info("Catalog expansions fetched",
		"base_game_id", baseID,
		"linked", len(ids),
		"fetched", len(expansions))
	return expansions
}

// Lookup treats a purely numeric query as a game id and anything else as a
// name. An id hit also schedules a delayed background name search for the
// game's name so related games get cached.
func (c *Catalog) Lookup(ctx context.Context, query string, onImmediate func([]datastore.Game)) []datastore.Game {
	query = strings.TrimSpace(query)
	id, err := strconv.Atoi(query)
	if err != nil || id <= 0 {
		return c.SearchByName(ctx, query, onImmediate)
	}

	game := c.FetchByID(ctx, id)
	if game == nil {
		return []datastore.Game{}
	}

	if c.tasks != nil {
		name := game.Name
		delay := c.client.Config().SecondarySearchDelay
		c.tasks.Start(tasks.TaskID("bgg_secondary", name), func(taskCtx context.Context) (any, error) {
			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-taskCtx.Done():
				return nil, fmt.Errorf("%w: %w", tasks.ErrTaskCancelled, taskCtx.Err())
			}
			return c.SearchByName(taskCtx, name, nil), nil
		}, nil)
	}

	return []datastore.Game{*game}
}

// SearchIDs returns the ids of all board games matching query.
func (c *Catalog) SearchIDs(ctx context.Context, query string, exact bool) ([]int, error) {
	items, err := c.client.Search(ctx, query, exact)
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(items))
	for i := range items {
		if id, err := strconv.Atoi(items[i].ID); err == nil && id > 0 {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// logFailure logs err, demoting it to debug when ctx was cancelled.
func (c *Catalog) logFailure(ctx context.Context, msg string, err error, args ...any) {
	args = append(args, "error", err)
	if ctx.Err() != nil {
		logger.Debug(msg, append(args, "cancelled", true)...)
		return
	}
	logger.Warn(msg, args...)
}
