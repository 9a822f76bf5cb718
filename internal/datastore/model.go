package datastore

import "time"

// Provenance tells where a game record came from. It is never persisted.
type Provenance int

const (
	ProvenanceLocalCache Provenance = iota
	ProvenanceCatalog
	ProvenanceCatalogSearchPreview
)

func (p Provenance) String() string {
	switch p {
	case ProvenanceLocalCache:
		return "local_cache"
	case ProvenanceCatalog:
		return "catalog"
	case ProvenanceCatalogSearchPreview:
		return "catalog_search_preview"
	default:
		return "unknown"
	}
}

// Game is a board game as cached locally. The catalog id is the primary key.
//
// AvgRating, MinPlayers and MaxPlayers are 0 when unknown. ImagePath holds the
// external image URL and may be "" or "N/A".
type Game struct {
	ID            int     `gorm:"primaryKey;autoIncrement:false"`
	Name          string  `gorm:"size:512;not null;index"`
	AvgRating     float64 `gorm:"not null;default:0"`
	MinPlayers    int     `gorm:"not null;default:0"`
	MaxPlayers    int     `gorm:"not null;default:0"`
	YearPublished *int
	IsExpansion   bool   `gorm:"not null;default:false;index"`
	ImagePath     string `gorm:"size:1024"`

	// Stored image metadata, owned by the large object store
	ImageOID      *uint32 `gorm:"column:image_oid;type:bigint"`
	ImageMimeType *string `gorm:"column:image_mimetype;size:64"`
	ImageSize     *int    `gorm:"column:image_size"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Provenance Provenance `gorm:"-"`
	Preview    bool       `gorm:"-"` // coarse search record, never persisted
}

// TableName pins the table name used by raw queries.
func (Game) TableName() string {
	return "games"
}

// HasExternalImage reports whether ImagePath holds a usable URL.
func (g *Game) HasExternalImage() bool {
	return g.ImagePath != "" && g.ImagePath != NoImage
}

// NoImage marks a game whose catalog entry has no image.
const NoImage = "N/A"

// StoredImage describes an image held in the large object store.
type StoredImage struct {
	OID      uint32
	MimeType string
	Size     int
}
