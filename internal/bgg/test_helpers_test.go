package bgg

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/MrGangrene/bgg-flashcards/internal/datastore"
	"github.com/MrGangrene/bgg-flashcards/internal/errors"
	"github.com/MrGangrene/bgg-flashcards/internal/httpclient"
)

// newTestClient returns a client whose transport is an httpmock transport.
func newTestClient(t *testing.T) (*Client, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	hc := httpclient.New(&httpclient.Config{
		DefaultTimeout: 5 * time.Second,
		Transport:      transport,
	})
	client := NewClient(Config{
		BaseURL:      testBaseURL,
		Timeout:      2 * time.Second,
		RateLimitMS:  0,
		CacheTTL:     time.Minute,
		MaxRetries:   3,
		RetryBackoff: time.Millisecond,
		UserAgent:    "bgg-test/1.0",
	}, hc, nil)
	t.Cleanup(client.Close)
	return client, transport
}

func registerSearch(transport *httpmock.MockTransport, query string, status int, body string) {
	transport.RegisterResponderWithQuery(http.MethodGet, testBaseURL+"/search",
		map[string]string{"query": query, "type": "boardgame"},
		httpmock.NewStringResponder(status, body))
}

func registerThing(transport *httpmock.MockTransport, id, status int, body string) {
	transport.RegisterResponderWithQuery(http.MethodGet, testBaseURL+"/thing",
		map[string]string{"id": strconv.Itoa(id), "stats": "1"},
		httpmock.NewStringResponder(status, body))
}

func registerCatan(transport *httpmock.MockTransport) {
	registerSearch(transport, "catan", http.StatusOK, catanSearchXML)
	registerThing(transport, 13, http.StatusOK, catanThingXML)
	registerThing(transport, 926, http.StatusOK, seafarersThingXML)
	registerThing(transport, 325, http.StatusOK, citiesThingXML)
	registerThing(transport, 27710, http.StatusOK, diceThingXML)
}

// fakeStore is an in-memory GameStore. onUpsert runs after each upsert.
type fakeStore struct {
	mu       sync.Mutex
	games    map[int]datastore.Game
	upserts  int
	onUpsert func(n int)
	failWith error
}

func newFakeStore(seed ...datastore.Game) *fakeStore {
	s := &fakeStore{games: make(map[int]datastore.Game)}
	for _, g := range seed {
		s.games[g.ID] = g
	}
	return s
}

func (s *fakeStore) GetGame(ctx context.Context, id int) (*datastore.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[id]
	if !ok {
		return nil, errors.Newf("game %d not found", id).Category(errors.CategoryNotFound).Build()
	}
	return &g, nil
}

func (s *fakeStore) UpsertGame(ctx context.Context, game *datastore.Game) error {
	s.mu.Lock()
	if s.failWith != nil {
		s.mu.Unlock()
		return s.failWith
	}
	s.games[game.ID] = *game
	s.upserts++
	n := s.upserts
	hook := s.onUpsert
	s.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return nil
}

func (s *fakeStore) snapshot() map[int]datastore.Game {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]datastore.Game, len(s.games))
	for k, v := range s.games {
		out[k] = v
	}
	return out
}

type imageCall struct {
	ID    int
	URL   string
	Force bool
}

// fakeImages records EnsureImage calls.
type fakeImages struct {
	mu    sync.Mutex
	calls []imageCall
}

func (f *fakeImages) EnsureImage(ctx context.Context, gameID int, url string, force bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, imageCall{ID: gameID, URL: url, Force: force})
	return true
}

func (f *fakeImages) Calls() []imageCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]imageCall(nil), f.calls...)
}

func ids(games []datastore.Game) []int {
	out := make([]int, len(games))
	for i := range games {
		out[i] = games[i].ID
	}
	return out
}
