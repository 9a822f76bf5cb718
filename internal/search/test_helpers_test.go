package search

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MrGangrene/bgg-flashcards/internal/datastore"
	"github.com/MrGangrene/bgg-flashcards/internal/errors"
	"github.com/MrGangrene/bgg-flashcards/internal/tasks"
)

const defaultTestTimeout = 5 * time.Second

func game(id int, name string, expansion bool) datastore.Game {
	return datastore.Game{ID: id, Name: name, IsExpansion: expansion}
}

func ids(games []datastore.Game) []int {
	out := make([]int, len(games))
	for i := range games {
		out[i] = games[i].ID
	}
	return out
}

// fakeStore serves a fixed set of games.
type fakeStore struct {
	mu    sync.Mutex
	games []datastore.Game
}

func (s *fakeStore) GetGame(ctx context.Context, id int) (*datastore.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.games {
		if s.games[i].ID == id {
			g := s.games[i]
			return &g, nil
		}
	}
	return nil, errors.Newf("game %d not found", id).Category(errors.CategoryNotFound).Build()
}

func (s *fakeStore) SearchGames(ctx context.Context, query string, limit int) ([]datastore.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []datastore.Game
	for _, g := range s.games {
		if strings.Contains(strings.ToLower(g.Name), strings.ToLower(query)) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *fakeStore) UpsertGame(ctx context.Context, g *datastore.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.games {
		if s.games[i].ID == g.ID {
			s.games[i] = *g
			return nil
		}
	}
	s.games = append(s.games, *g)
	return nil
}

func (s *fakeStore) add(g datastore.Game) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games = append(s.games, g)
}

// fakeCatalog delegates to optional funcs and returns empty results otherwise.
type fakeCatalog struct {
	searchByName func(ctx context.Context, query string, onImmediate func([]datastore.Game)) []datastore.Game
	fetchByID    func(ctx context.Context, id int) *datastore.Game
	expansionsOf func(ctx context.Context, baseID int) []datastore.Game

	mu      sync.Mutex
	lookups []string
}

func (c *fakeCatalog) SearchByName(ctx context.Context, query string, onImmediate func([]datastore.Game)) []datastore.Game {
	if c.searchByName == nil {
		return nil
	}
	return c.searchByName(ctx, query, onImmediate)
}

func (c *fakeCatalog) FetchByID(ctx context.Context, id int) *datastore.Game {
	if c.fetchByID == nil {
		return nil
	}
	return c.fetchByID(ctx, id)
}

// Lookup records the query and resolves it like the catalog would, without
// scheduling any follow-up search.
func (c *fakeCatalog) Lookup(ctx context.Context, query string, onImmediate func([]datastore.Game)) []datastore.Game {
	c.mu.Lock()
	c.lookups = append(c.lookups, query)
	c.mu.Unlock()

	id, err := strconv.Atoi(query)
	if err != nil {
		return c.SearchByName(ctx, query, onImmediate)
	}
	g := c.FetchByID(ctx, id)
	if g == nil {
		return []datastore.Game{}
	}
	return []datastore.Game{*g}
}

func (c *fakeCatalog) Lookups() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lookups...)
}

func (c *fakeCatalog) FetchExpansionsOf(ctx context.Context, baseID int) []datastore.Game {
	if c.expansionsOf == nil {
		return nil
	}
	return c.expansionsOf(ctx, baseID)
}

// recordingPresenter keeps every view and indicator change.
type recordingPresenter struct {
	mu         sync.Mutex
	views      []View
	indicators []bool
}

func (p *recordingPresenter) Render(v View) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.views = append(p.views, v)
}

func (p *recordingPresenter) Indicator(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.indicators = append(p.indicators, on)
}

func (p *recordingPresenter) Views() []View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]View(nil), p.views...)
}

func (p *recordingPresenter) Last() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.views) == 0 {
		return View{}
	}
	return p.views[len(p.views)-1]
}

func (p *recordingPresenter) Indicators() []bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]bool(nil), p.indicators...)
}

func newTestOrchestrator(store *fakeStore, catalog *fakeCatalog) (*Orchestrator, *tasks.Coordinator, *recordingPresenter) {
	coordinator := tasks.New()
	presenter := &recordingPresenter{}
	return New(Config{CatalogTimeout: defaultTestTimeout}, store, catalog, coordinator, presenter), coordinator, presenter
}

