package datastore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MrGangrene/bgg-flashcards/internal/conf"
)

// newTestStore opens an in-memory SQLite store and registers cleanup.
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := &SQLiteStore{Settings: &conf.Settings{}, Path: ":memory:"}
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func intPtr(v int) *int { return &v }

// seedGames upserts the given games, failing the test on error.
func seedGames(t *testing.T, store Interface, games ...Game) {
	t.Helper()
	for i := range games {
		require.NoError(t, store.UpsertGame(t.Context(), &games[i]))
	}
}
