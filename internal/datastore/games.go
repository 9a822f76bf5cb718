package datastore

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MrGangrene/bgg-flashcards/internal/errors"
)

// catalogColumns are the columns refreshed from the catalog on upsert. Image
// metadata is deliberately absent so re-fetching a game keeps its stored image.
var catalogColumns = []string{
	"name",
	"avg_rating",
	"min_players",
	"max_players",
	"year_published",
	"is_expansion",
	"image_path",
	"updated_at",
}

// GetGame returns the cached game with the given catalog id, or a not-found error.
func (ds *DataStore) GetGame(ctx context.Context, id int) (*Game, error) {
	var game Game
	if err := ds.DB.WithContext(ctx).First(&game, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("game", id)
		}
		return nil, dbError(err, "get_game", "game_id", id)
	}
	game.Provenance = ProvenanceLocalCache
	return &game, nil
}

// UpsertGame inserts the game or updates its catalog fields. Calling it twice
// with the same record leaves the row unchanged.
func (ds *DataStore) UpsertGame(ctx context.Context, game *Game) error {
	if game == nil {
		return validationError("game is nil", "game", nil)
	}
	if game.Preview {
		return validationError("search preview records are not persisted", "preview", game.ID)
	}
	if game.ID <= 0 {
		return validationError("game id must be positive", "id", game.ID)
	}

	err := ds.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(catalogColumns),
	}).Omit("image_oid", "image_mimetype", "image_size").Create(game).Error
	if err != nil {
		return dbError(err, "upsert_game", "game_id", game.ID)
	}
	return nil
}

// SearchGames returns games whose name contains query, case-insensitively.
// Exact matches rank first, then prefix matches, then other substrings;
// ties are broken by rating and name.
func (ds *DataStore) SearchGames(ctx context.Context, query string, limit int) ([]Game, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	var games []Game
	err := ds.DB.WithContext(ctx).
		Where("LOWER(name) LIKE ?", "%"+q+"%").
		Order(clause.OrderBy{Expression: clause.Expr{
			SQL:                "CASE WHEN LOWER(name) = ? THEN 1 WHEN LOWER(name) LIKE ? THEN 2 ELSE 3 END, avg_rating DESC, name",
			Vars:               []any{q, q + "%"},
			WithoutParentheses: true,
		}}).
		Limit(limit).
		Find(&games).Error
	if err != nil {
		return nil, dbError(err, "search_games", "query", query)
	}

	for i := range games {
		games[i].Provenance = ProvenanceLocalCache
	}
	return games, nil
}

// GamesMissingImages returns games without an external image URL, ordered by
// id. With distinctNames only the lowest id per case-insensitive name is returned.
func (ds *DataStore) GamesMissingImages(ctx context.Context, limit int, distinctNames bool) ([]Game, error) {
	if limit <= 0 {
		return nil, validationError("limit must be positive", "limit", limit)
	}

	var games []Game
	db := ds.DB.WithContext(ctx)

	var err error
	if distinctNames {
		err = db.Raw(`SELECT id, name FROM (
				SELECT id, name, ROW_NUMBER() OVER (PARTITION BY LOWER(name) ORDER BY id) AS rn
				FROM games
				WHERE image_path IS NULL OR image_path = ''
			) ranked
			WHERE rn = 1
			ORDER BY id
			LIMIT ?`, limit).Scan(&games).Error
	} else {
		err = db.Where("image_path IS NULL OR image_path = ''").
			Order("id").
			Limit(limit).
			Find(&games).Error
	}
	if err != nil {
		return nil, dbError(err, "games_missing_images", "limit", limit)
	}
	return games, nil
}

// SetImagePath sets the external image URL on every game named name that has
// none yet, and returns the number of rows updated.
func (ds *DataStore) SetImagePath(ctx context.Context, name, path string) (int64, error) {
	result := ds.DB.WithContext(ctx).Model(&Game{}).
		Where("LOWER(name) = LOWER(?) AND (image_path IS NULL OR image_path = '')", name).
		Update("image_path", path)
	if result.Error != nil {
		return 0, dbError(result.Error, "set_image_path", "name", name)
	}
	return result.RowsAffected, nil
}

// SetImagePathByID sets the external image URL of a single game.
func (ds *DataStore) SetImagePathByID(ctx context.Context, id int, path string) error {
	result := ds.DB.WithContext(ctx).Model(&Game{ID: id}).Update("image_path", path)
	if result.Error != nil {
		return dbError(result.Error, "set_image_path_by_id", "game_id", id)
	}
	if result.RowsAffected == 0 {
		return notFoundError("game", id)
	}
	return nil
}
