package datastore

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/MrGangrene/bgg-flashcards/internal/conf"
)

// SQLiteStore implements Interface for SQLite. It has no large object support
// and is used for local runs and tests.
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
	Path     string // file path or ":memory:"
}

// Open opens the SQLite database and migrates the schema.
func (store *SQLiteStore) Open() error {
	path := store.Path
	if path == "" {
		path = ":memory:"
	}

	debug := store.Settings != nil && store.Settings.Debug
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: createGormLogger(debug)})
	if err != nil {
		return dbError(err, "open", "db_type", "sqlite", "path", path)
	}

	// An in-memory database exists per connection
	if path == ":memory:" {
		sqlDB, err := db.DB()
		if err != nil {
			return dbError(err, "get_sql_db", "db_type", "sqlite")
		}
		sqlDB.SetMaxOpenConns(1)
	}

	store.DB = db
	return performAutoMigration(db, "SQLite", path)
}

// Close closes the SQLite database.
func (store *SQLiteStore) Close() error {
	return closeDB(store.DB, "sqlite")
}
