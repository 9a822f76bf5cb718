// Package updater bulk-syncs the local game cache with the catalog, either
// for the results of a name search or for cached games lacking an image.
package updater

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/MrGangrene/bgg-flashcards/internal/datastore"
	"github.com/MrGangrene/bgg-flashcards/internal/errors"
	"github.com/MrGangrene/bgg-flashcards/internal/logging"
	"github.com/MrGangrene/bgg-flashcards/internal/observability/metrics"
)

// progressEvery is how many items pass between progress log lines.
const progressEvery = 5

var logger *slog.Logger

func init() {
	logger = logging.ForService("updater")
	if logger == nil {
		logger = slog.Default().With("service", "updater")
	}
}

// Catalog is the subset of the catalog used by the updater.
type Catalog interface {
	SearchIDs(ctx context.Context, query string, exact bool) ([]int, error)
	FetchByID(ctx context.Context, id int) *datastore.Game
}

// Store is the subset of the game cache used by the updater.
type Store interface {
	GamesMissingImages(ctx context.Context, limit int, distinctNames bool) ([]datastore.Game, error)
	SetImagePath(ctx context.Context, name, path string) (int64, error)
	SetImagePathByID(ctx context.Context, id int, path string) error
}

// ImageAcquirer stores the image of a game.
type ImageAcquirer interface {
	EnsureImage(ctx context.Context, gameID int, url string, force bool) bool
}

// Config holds updater settings.
type Config struct {
	Interval time.Duration // minimum spacing between catalog lookups
	Limit    int           // default number of games per run
}

// Options select what a run processes. Exactly one of Query and Letter is
// required unless ImagesOnly is set.
type Options struct {
	Query      string
	Letter     string
	Limit      int
	ImagesOnly bool
}

// Report summarizes a run.
type Report struct {
	Total       int
	Processed   int
	Successful  int
	Skipped     int
	Interrupted bool
	Duration    time.Duration
}

// Updater runs batch syncs.
type Updater struct {
	catalog Catalog
	store   Store
	images  ImageAcquirer
	config  Config
	metrics *metrics.SyncMetrics
}

// New creates an updater. images and m may be nil.
func New(config Config, catalog Catalog, store Store, images ImageAcquirer, m *metrics.SyncMetrics) *Updater {
	if config.Limit <= 0 {
		config.Limit = 50
	}
	if config.Interval < 0 {
		config.Interval = 0
	}
	return &Updater{
		catalog: catalog,
		store:   store,
		images:  images,
		config:  config,
		metrics: m,
	}
}

// Validate checks that opts describe a runnable sync.
func (o *Options) Validate() error {
	query := strings.TrimSpace(o.Query)
	switch {
	case o.Limit < 0:
		return errors.ValidationError("limit must not be negative")
	case o.ImagesOnly:
		return nil
	case query != "" && o.Letter != "":
		return errors.ValidationError("query and letter are mutually exclusive")
	case query == "" && o.Letter == "":
		return errors.ValidationError("either query or letter is required")
	case o.Letter != "" && utf8.RuneCountInString(o.Letter) != 1:
		return errors.Newf("letter must be a single character, got %q", o.Letter).
			Component("updater").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

// Run executes one sync. Cancelling ctx stops the run after the current item
// and returns the partial report. Only invalid options produce an error.
func (u *Updater) Run(ctx context.Context, opts Options) (Report, error) {
	if err := opts.Validate(); err != nil {
		return Report{}, err
	}
	limit := opts.Limit
	if limit == 0 {
		limit = u.config.Limit
	}
	if u.metrics != nil {
		u.metrics.IncrementRuns()
	}

	start := time.Now()
	var report Report
	if opts.ImagesOnly {
		report = u.runImages(ctx, limit)
	} else {
		report = u.runSearch(ctx, opts, limit)
	}
	report.Duration = time.Since(start)

	logger.Info("Sync finished",
		"processed", report.Processed,
		"total", report.Total,
		"successful", report.Successful,
		"skipped", report.Skipped,
		"interrupted", report.Interrupted,
		"duration", report.Duration)
	return report, nil
}

func (u *Updater) runSearch(ctx context.Context, opts Options, limit int) Report {
	query, exact := strings.TrimSpace(opts.Query), false
	if opts.Letter != "" {
		query, exact = opts.Letter, true
	}

	ids, err := u.catalog.SearchIDs(ctx, query, exact)
	if err != nil {
		logger.Warn("Catalog search failed", "query", query, "exact", exact, "error", err)
		return Report{Interrupted: ctx.Err() != nil}
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}
	logger.Info("Syncing catalog search results", "query", query, "exact", exact, "games", len(ids))

	report := Report{Total: len(ids)}
	pace := u.newPacer()
	for _, id := range ids {
		if !pace(ctx) {
			report.Interrupted = true
			break
		}
		u.record(&report, u.syncGame(ctx, id))
	}
	return report
}

// syncGame refreshes one game and marks it when the catalog has no image.
func (u *Updater) syncGame(ctx context.Context, id int) bool {
	game := u.catalog.FetchByID(ctx, id)
	if game == nil {
		logger.Warn("Failed to sync game", "game_id", id)
		return false
	}
	if strings.TrimSpace(game.ImagePath) == "" {
		if err := u.store.SetImagePathByID(ctx, id, datastore.NoImage); err != nil {
			logger.Warn("Failed to mark game without image", "game_id", id, "error", err)
		}
		logger.Info("Synced game without image", "game_id", id, "name", game.Name)
		return true
	}
	logger.Info("Synced game", "game_id", id, "name", game.Name, "image_url", game.ImagePath)
	return true
}

func (u *Updater) runImages(ctx context.Context, limit int) Report {
	games, err := u.store.GamesMissingImages(ctx, limit, true)
	if err != nil {
		logger.Error("Failed to list games missing images", "error", err)
		return Report{}
	}
	if len(games) == 0 {
		logger.Info("No games with missing images")
		return Report{}
	}
	logger.Info("Filling missing images", "distinct_names", len(games))

	report := Report{Total: len(games)}
	pace := u.newPacer()
	for i := range games {
		if !pace(ctx) {
			report.Interrupted = true
			break
		}
		u.record(&report, u.fillImage(ctx, &games[i]))
	}
	return report
}

// fillImage looks local up by name and copies the first hit's image URL to
// every same-named game still lacking one.
func (u *Updater) fillImage(ctx context.Context, local *datastore.Game) bool {
	ids, err := u.catalog.SearchIDs(ctx, local.Name, false)
	if err != nil || len(ids) == 0 {
		logger.Warn("No catalog match for game", "game_id", local.ID, "name", local.Name, "error", err)
		return false
	}
	match := u.catalog.FetchByID(ctx, ids[0])
	if match == nil {
		logger.Warn("Failed to fetch catalog match", "name", local.Name, "catalog_id", ids[0])
		return false
	}

	path := strings.TrimSpace(match.ImagePath)
	if path == "" {
		path = datastore.NoImage
	}
	rows, err := u.store.SetImagePath(ctx, local.Name, path)
	if err != nil {
		logger.Error("Failed to update image path", "name", local.Name, "error", err)
		return false
	}
	logger.Info("Updated image path", "name", local.Name, "image_path", path, "rows", rows)

	if u.images != nil && path != datastore.NoImage && local.ID != match.ID {
		u.images.EnsureImage(ctx, local.ID, path, false)
	}
	return true
}

// newPacer returns a function that blocks until the next item may start.
// It reports false when ctx is done first.
func (u *Updater) newPacer() func(context.Context) bool {
	limit := rate.Inf
	if u.config.Interval > 0 {
		limit = rate.Every(u.config.Interval)
	}
	limiter := rate.NewLimiter(limit, 1)
	return func(ctx context.Context) bool {
		if ctx.Err() != nil {
			return false
		}
		return limiter.Wait(ctx) == nil
	}
}

// record counts one item and logs progress every few items and at the end.
func (u *Updater) record(r *Report, success bool) {
	r.Processed++
	if success {
		r.Successful++
	} else {
		r.Skipped++
	}
	if u.metrics != nil {
		u.metrics.RecordItem(success)
	}

	if r.Processed%progressEvery == 0 || r.Processed == r.Total {
		remaining := time.Duration(r.Total-r.Processed) * u.config.Interval
		logger.Info("Sync progress",
			"processed", r.Processed,
			"total", r.Total,
			"successful", r.Successful,
			"skipped", r.Skipped,
			"remaining_estimate", remaining)
	}
}
