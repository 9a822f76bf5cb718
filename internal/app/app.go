// Package app wires the sync components from settings. Every command builds
// one App and shares its task coordinator.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrGangrene/bgg-flashcards/internal/bgg"
	"github.com/MrGangrene/bgg-flashcards/internal/conf"
	"github.com/MrGangrene/bgg-flashcards/internal/datastore"
	"github.com/MrGangrene/bgg-flashcards/internal/errors"
	"github.com/MrGangrene/bgg-flashcards/internal/httpclient"
	"github.com/MrGangrene/bgg-flashcards/internal/imageservice"
	"github.com/MrGangrene/bgg-flashcards/internal/logging"
	"github.com/MrGangrene/bgg-flashcards/internal/observability"
	"github.com/MrGangrene/bgg-flashcards/internal/search"
	"github.com/MrGangrene/bgg-flashcards/internal/tasks"
	"github.com/MrGangrene/bgg-flashcards/internal/updater"
)

var logger *slog.Logger

func init() {
	logger = logging.ForService("app")
	if logger == nil {
		logger = slog.Default().With("service", "app")
	}
}

// closeTimeout bounds how long Close waits for cancelled tasks.
const closeTimeout = 5 * time.Second

// ErrNoImageStore is returned by image operations when the configured
// database cannot hold stored images.
var ErrNoImageStore = errors.NewStd("stored images require a PostgreSQL database")

// App holds the wired components.
type App struct {
	Settings *conf.Settings
	Store    datastore.Interface
	Metrics  *observability.Metrics
	Tasks    *tasks.Coordinator
	Client   *bgg.Client
	Catalog  *bgg.Catalog

	// Images is nil when the store has no large object support.
	Images *imageservice.Service

	httpClients []*httpclient.Client
}

// Option adjusts the wiring before components are built.
type Option func(*options)

type options struct {
	httpConfig httpclient.Config
	store      datastore.Interface
}

// WithHTTPConfig replaces the HTTP client configuration used for catalog
// and image requests.
func WithHTTPConfig(cfg httpclient.Config) Option {
	return func(o *options) { o.httpConfig = cfg }
}

// WithStore uses an already constructed store instead of datastore.New.
// The store is opened by New.
func WithStore(store datastore.Interface) Option {
	return func(o *options) { o.store = store }
}

// New opens the store and builds the components.
func New(settings *conf.Settings, opts ...Option) (*App, error) {
	o := options{httpConfig: httpclient.DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}

	store := o.store
	if store == nil {
		store = datastore.New(settings)
	}
	if err := store.Open(); err != nil {
		return nil, err
	}

	m, err := observability.NewMetrics()
	if err != nil {
		_ = store.Close()
		return nil, errors.New(err).
			Component("app").
			Category(errors.CategoryConfiguration).
			Context("operation", "create_metrics").
			Build()
	}

	a := &App{
		Settings: settings,
		Store:    store,
		Metrics:  m,
		Tasks:    tasks.New().WithMetrics(m.Tasks),
	}

	catalogHTTP := o.httpConfig
	catalogHTTP.DefaultTimeout = settings.Catalog.Timeout
	if settings.Catalog.UserAgent != "" {
		catalogHTTP.UserAgent = settings.Catalog.UserAgent
	}
	catalogClient := httpclient.New(&catalogHTTP)

	imageHTTP := o.httpConfig
	imageHTTP.DefaultTimeout = settings.Image.DownloadTimeout
	imageClient := httpclient.New(&imageHTTP)
	a.httpClients = []*httpclient.Client{catalogClient, imageClient}

	var acquirer bgg.ImageAcquirer
	if blobs := blobStore(store); blobs != nil {
		a.Images = imageservice.New(imageservice.ConfigFromSettings(&settings.Image), imageClient, blobs, m.ImageService)
		acquirer = a.Images
	} else {
		logger.Info("Image storage disabled for this database", "dsn_kind", "sqlite")
	}

	a.Client = bgg.NewClient(bgg.ConfigFromSettings(&settings.Catalog), catalogClient, m.Catalog)
	a.Catalog = bgg.NewCatalog(a.Client, store, acquirer, a.Tasks)

	return a, nil
}

// blobStore returns the large object store of a Postgres store.
func blobStore(store datastore.Interface) imageservice.BlobStore {
	pg, ok := store.(*datastore.PostgresStore)
	if !ok || pg.Images() == nil {
		return nil
	}
	return pg.Images()
}

// Orchestrator builds a search orchestrator rendering to presenter.
func (a *App) Orchestrator(presenter search.Presenter) *search.Orchestrator {
	return search.New(search.Config{}, a.Store, a.Catalog, a.Tasks, presenter)
}

// Updater builds the batch updater.
func (a *App) Updater() *updater.Updater {
	var images updater.ImageAcquirer
	if a.Images != nil {
		images = a.Images
	}
	return updater.New(updater.Config{
		Interval: a.Settings.Sync.Interval,
		Limit:    a.Settings.Sync.Limit,
	}, a.Catalog, a.Store, images, a.Metrics.Sync)
}

// RequireImages returns ErrNoImageStore when image storage is unavailable.
func (a *App) RequireImages() (*imageservice.Service, error) {
	if a.Images == nil {
		return nil, ErrNoImageStore
	}
	return a.Images, nil
}

// Close cancels background tasks, waits briefly for them to exit and
// releases resources.
func (a *App) Close() error {
	a.Tasks.CancelAll()
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := a.Tasks.Wait(ctx); err != nil {
		logger.Warn("Background tasks still running at shutdown", "running", len(a.Tasks.Running()))
	}

	a.Client.Close()
	for _, c := range a.httpClients {
		c.Close()
	}
	return a.Store.Close()
}
