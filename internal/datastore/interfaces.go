// interfaces.go: this code defines the interface for the game cache operations
package datastore

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/MrGangrene/bgg-flashcards/internal/conf"
)

// Interface abstracts the underlying database implementation of the game cache.
type Interface interface {
	Open() error
	Close() error
	GetGame(ctx context.Context, id int) (*Game, error)
	UpsertGame(ctx context.Context, game *Game) error
	SearchGames(ctx context.Context, query string, limit int) ([]Game, error)
	GamesMissingImages(ctx context.Context, limit int, distinctNames bool) ([]Game, error)
	SetImagePath(ctx context.Context, name, path string) (int64, error)
	SetImagePathByID(ctx context.Context, id int, path string) error
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// sqlitePrefix selects the SQLite driver, e.g. "sqlite:bgg.db" or "sqlite::memory:".
const sqlitePrefix = "sqlite:"

// New creates a store for the configured DSN. Postgres is the default; a DSN
// prefixed with "sqlite:" opens a local SQLite file instead.
func New(settings *conf.Settings) Interface {
	if path, ok := strings.CutPrefix(settings.Database.DSN, sqlitePrefix); ok {
		return &SQLiteStore{Settings: settings, Path: path}
	}
	return &PostgresStore{Settings: settings}
}
