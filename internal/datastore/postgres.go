package datastore

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/MrGangrene/bgg-flashcards/internal/conf"
)

// PostgresStore implements Interface for PostgreSQL. Stored images live in
// Postgres large objects, reachable through Images.
type PostgresStore struct {
	DataStore
	Settings *conf.Settings

	images *LargeObjectStore
}

// Open connects to Postgres, configures the pool and migrates the schema.
func (store *PostgresStore) Open() error {
	dsn := store.Settings.Database.DSN

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: createGormLogger(store.Settings.Debug)})
	if err != nil {
		logger.Error("Failed to open PostgreSQL database",
			"dsn", redactSensitiveInfo(dsn),
			"error", err)
		return dbError(err, "open", "db_type", "postgres")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return dbError(err, "get_sql_db", "db_type", "postgres")
	}
	if n := store.Settings.Database.MaxOpenConns; n > 0 {
		sqlDB.SetMaxOpenConns(n)
	}
	if n := store.Settings.Database.MaxIdleConns; n > 0 {
		sqlDB.SetMaxIdleConns(n)
	}
	if d := store.Settings.Database.ConnMaxLifetime; d > 0 {
		sqlDB.SetConnMaxLifetime(d)
	}

	store.DB = db
	store.images = NewLargeObjectStore(db)
	return performAutoMigration(db, "PostgreSQL", dsn)
}

// Images returns the large object image store. Nil before Open.
func (store *PostgresStore) Images() *LargeObjectStore {
	return store.images
}

// Close closes the PostgreSQL connection pool.
func (store *PostgresStore) Close() error {
	return closeDB(store.DB, "postgres")
}

func closeDB(db *gorm.DB, dbType string) error {
	if db == nil {
		return fmt.Errorf("database connection is not initialized")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return dbError(err, "get_sql_db", "db_type", dbType)
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close", "db_type", dbType)
	}
	return nil
}
