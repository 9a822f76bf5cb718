// Package search presents local results at once and refines them with
// catalog results fetched in the background.
package search

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MrGangrene/bgg-flashcards/internal/datastore"
	"github.com/MrGangrene/bgg-flashcards/internal/errors"
	"github.com/MrGangrene/bgg-flashcards/internal/tasks"
)

// Task id prefixes
const (
	PrefixNameSearch = "bgg_search"
	PrefixIDSearch   = "bgg_id"
	PrefixExpansions = "expansions"
)

const (
	defaultCatalogTimeout = 2 * time.Minute
	defaultLocalLimit     = 50
)

// LocalStore is the game cache queried for immediate results.
type LocalStore interface {
	GetGame(ctx context.Context, id int) (*datastore.Game, error)
	SearchGames(ctx context.Context, query string, limit int) ([]datastore.Game, error)
}

// Catalog fetches fresh records from the remote catalog.
type Catalog interface {
	SearchByName(ctx context.Context, query string, onImmediate func([]datastore.Game)) []datastore.Game
	FetchByID(ctx context.Context, id int) *datastore.Game
	Lookup(ctx context.Context, query string, onImmediate func([]datastore.Game)) []datastore.Game
	FetchExpansionsOf(ctx context.Context, baseID int) []datastore.Game
}

// View is one rendering of the result lists.
type View struct {
	Query      string
	Games      []datastore.Game
	Expansions []datastore.Game
	Loading    bool
}

// Presenter displays views. Calls are serialized and must not call back
// into the orchestrator.
type Presenter interface {
	Render(View)
	Indicator(on bool)
}

// Config holds orchestrator settings.
type Config struct {
	CatalogTimeout time.Duration // bound on a whole background catalog search
	LocalLimit     int
}

// Orchestrator runs searches. Only the most recent search may update the
// result lists: every search bumps a generation and background results
// carrying an older generation are dropped.
type Orchestrator struct {
	config    Config
	store     LocalStore
	catalog   Catalog
	tasks     *tasks.Coordinator
	presenter Presenter

	mu         sync.Mutex
	generation uint64
	query      string
	games      []datastore.Game
	expansions []datastore.Game
	searching  bool
}

// New creates an orchestrator.
func New(config Config, store LocalStore, catalog Catalog, coordinator *tasks.Coordinator, presenter Presenter) *Orchestrator {
	if config.CatalogTimeout <= 0 {
		config.CatalogTimeout = defaultCatalogTimeout
	}
	if config.LocalLimit <= 0 {
		config.LocalLimit = defaultLocalLimit
	}
	return &Orchestrator{
		config:    config,
		store:     store,
		catalog:   catalog,
		tasks:     coordinator,
		presenter: presenter,
	}
}

// Search dispatches a purely numeric query to SearchByID and anything else
// to SearchByName.
func (o *Orchestrator) Search(ctx context.Context, query string) {
	query = strings.TrimSpace(query)
	if query == "" {
		return
	}
	if id, err := strconv.Atoi(query); err == nil && id > 0 {
		o.SearchByID(ctx, id)
		return
	}
	o.SearchByName(ctx, query)
}

// SearchByName renders local matches, then starts a background catalog
// search that first merges coarse results and finally replaces them with
// detailed records.
func (o *Orchestrator) SearchByName(ctx context.Context, query string) {
	o.cancelSearches()

	games, expansions := o.localQuery(ctx, query)

	o.mu.Lock()
	gen := o.begin(query)
	o.games, o.expansions = games, expansions
	o.renderLocked(false)
	o.setIndicatorLocked(true)
	o.mu.Unlock()

	onImmediate := func(coarse []datastore.Game) {
		o.mu.Lock()
		defer o.mu.Unlock()
		if !o.current(gen) {
			return
		}
		base, exp := Partition(coarse)
		o.games = MergeByID(o.games, base)
		o.expansions = MergeByID(o.expansions, exp)
		o.renderLocked(false)
	}

	timeout := o.config.CatalogTimeout
	tasks.Run(o.tasks, tasks.TaskID(PrefixNameSearch, query), func(taskCtx context.Context) ([]datastore.Game, error) {
		taskCtx, cancel := context.WithTimeout(taskCtx, timeout)
		defer cancel()
		return o.catalog.SearchByName(taskCtx, query, onImmediate), nil
	}, func(detailed []datastore.Game) {
		var refreshedGames, refreshedExpansions []datastore.Game
		if len(detailed) == 0 {
			// Nothing from the catalog, the cache may still have been updated
			refreshedGames, refreshedExpansions = o.localQuery(context.Background(), query)
		}

		o.mu.Lock()
		defer o.mu.Unlock()
		if !o.current(gen) {
			logger.Debug("Dropping stale search results", "query", query)
			return
		}
		if len(detailed) > 0 {
			o.games, o.expansions = ReplaceByID(o.games, o.expansions, detailed)
		} else {
			o.games, o.expansions = refreshedGames, refreshedExpansions
		}
		o.renderLocked(false)
		o.setIndicatorLocked(false)
	})
}

// SearchByID renders the cached game at once, or a loading view, and
// refreshes the game and its expansions in the background.
func (o *Orchestrator) SearchByID(ctx context.Context, id int) {
	o.cancelSearches()
	query := strconv.Itoa(id)

	cached, err := o.store.GetGame(ctx, id)
	if err != nil {
		if !errors.IsNotFound(err) {
			logger.Warn("Local game lookup failed", "game_id", id, "error", err)
		}
		cached = nil
	}

	if cached == nil {
		o.mu.Lock()
		gen := o.begin(query)
		o.games, o.expansions = nil, nil
		o.renderLocked(true)
		o.mu.Unlock()

		o.startIDRefresh(gen, id, func(game *datastore.Game) {
			if game == nil {
				o.games, o.expansions = nil, nil
				return
			}
			o.games, o.expansions = []datastore.Game{*game}, nil
		}, true)
		return
	}

	var localExpansions []datastore.Game
	if related, err := o.store.SearchGames(ctx, cached.Name, o.config.LocalLimit); err != nil {
		logger.Warn("Local expansion lookup failed", "game_id", id, "error", err)
	} else {
		_, localExpansions = Partition(related)
	}

	o.mu.Lock()
	gen := o.begin(query)
	o.games = []datastore.Game{*cached}
	o.expansions = MergeByID(nil, localExpansions)
	o.renderLocked(false)
	o.mu.Unlock()

	o.startIDRefresh(gen, id, func(game *datastore.Game) {
		if game != nil {
			o.games, o.expansions = ReplaceByID(o.games, o.expansions, []datastore.Game{*game})
		}
	}, false)
	o.startExpansions(gen, id)
}

// startIDRefresh fetches id in the background. apply runs with the lock
// held when the generation is still current. With chainExpansions set the
// expansions task starts after a successful fetch.
func (o *Orchestrator) startIDRefresh(gen uint64, id int, apply func(*datastore.Game), chainExpansions bool) {
	tasks.Run(o.tasks, tasks.TaskID(PrefixIDSearch, strconv.Itoa(id)), func(taskCtx context.Context) (*datastore.Game, error) {
		taskCtx, cancel := context.WithTimeout(taskCtx, o.config.CatalogTimeout)
		defer cancel()
		// Lookup also schedules the name search that caches sibling editions
		found := o.catalog.Lookup(taskCtx, strconv.Itoa(id), nil)
		if len(found) == 0 {
			return nil, nil
		}
		return &found[0], nil
	}, func(game *datastore.Game) {
		o.mu.Lock()
		if !o.current(gen) {
			o.mu.Unlock()
			return
		}
		apply(game)
		o.renderLocked(false)
		o.mu.Unlock()

		if chainExpansions && game != nil {
			o.startExpansions(gen, id)
		}
	})
}

// startExpansions fetches the expansions of baseID in the background and
// merges them without duplicates.
func (o *Orchestrator) startExpansions(gen uint64, baseID int) {
	tasks.Run(o.tasks, tasks.TaskID(PrefixExpansions, strconv.Itoa(baseID)), func(taskCtx context.Context) ([]datastore.Game, error) {
		taskCtx, cancel := context.WithTimeout(taskCtx, o.config.CatalogTimeout)
		defer cancel()
		return o.catalog.FetchExpansionsOf(taskCtx, baseID), nil
	}, func(found []datastore.Game) {
		if len(found) == 0 {
			return
		}
		o.mu.Lock()
		defer o.mu.Unlock()
		if !o.current(gen) {
			return
		}
		o.expansions = MergeByID(o.expansions, found)
		o.renderLocked(false)
	})
}

// localQuery returns cached matches split into base games and expansions.
func (o *Orchestrator) localQuery(ctx context.Context, query string) ([]datastore.Game, []datastore.Game) {
	if id, err := strconv.Atoi(query); err == nil && id > 0 {
		game, err := o.store.GetGame(ctx, id)
		if err != nil || game == nil {
			return []datastore.Game{}, []datastore.Game{}
		}
		return Partition([]datastore.Game{*game})
	}

	games, err := o.store.SearchGames(ctx, query, o.config.LocalLimit)
	if err != nil {
		logger.Warn("Local search failed", "query", query, "error", err)
		return []datastore.Game{}, []datastore.Game{}
	}
	return Partition(games)
}

// cancelSearches cancels background work of earlier searches. Expansion
// tasks are left running; their results are dropped by generation.
func (o *Orchestrator) cancelSearches() {
	n := o.tasks.CancelByPrefix(PrefixNameSearch+"_") + o.tasks.CancelByPrefix(PrefixIDSearch+"_")
	if n > 0 {
		logger.Debug("Cancelled previous searches", "count", n)
	}
}

// begin starts a new generation and clears the indicator of the search it
// replaces. Caller holds o.mu.
func (o *Orchestrator) begin(query string) uint64 {
	o.generation++
	o.query = query
	o.setIndicatorLocked(false)
	return o.generation
}

// setIndicatorLocked tells the presenter when the catalog search state
// changes. Caller holds o.mu.
func (o *Orchestrator) setIndicatorLocked(on bool) {
	if o.searching == on {
		return
	}
	o.searching = on
	o.presenter.Indicator(on)
}

// current reports whether gen is the latest generation. Caller holds o.mu.
func (o *Orchestrator) current(gen uint64) bool {
	return gen == o.generation
}

// renderLocked sends a copy of the current lists to the presenter. Caller holds o.mu.
func (o *Orchestrator) renderLocked(loading bool) {
	o.presenter.Render(View{
		Query:      o.query,
		Games:      slices.Clone(o.games),
		Expansions: slices.Clone(o.expansions),
		Loading:    loading,
	})
}

// Snapshot returns the current result lists.
func (o *Orchestrator) Snapshot() View {
	o.mu.Lock()
	defer o.mu.Unlock()
	return View{
		Query:      o.query,
		Games:      slices.Clone(o.games),
		Expansions: slices.Clone(o.expansions),
	}
}
