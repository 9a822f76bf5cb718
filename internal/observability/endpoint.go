package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrGangrene/bgg-flashcards/internal/conf"
	"github.com/MrGangrene/bgg-flashcards/internal/logging"
)

// ShutdownTimeout bounds the graceful shutdown of the endpoint.
const ShutdownTimeout = 5 * time.Second

var logger *slog.Logger

func init() {
	logger = logging.ForService("observability")
	if logger == nil {
		logger = slog.Default().With("service", "observability")
	}
}

// Endpoint serves /metrics and /healthz over HTTP.
type Endpoint struct {
	echo          *echo.Echo
	listenAddress string
	metrics       *Metrics

	mu       sync.Mutex
	listener net.Listener
}

// NewEndpoint creates the metrics endpoint. It returns an error if metrics are
// disabled in settings.
func NewEndpoint(settings *conf.Settings, metrics *Metrics) (*Endpoint, error) {
	if !settings.Metrics.Enabled {
		return nil, fmt.Errorf("metrics not enabled in settings")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	ep := &Endpoint{
		echo:          e,
		listenAddress: settings.Metrics.Listen,
		metrics:       metrics,
	}
	ep.registerRoutes()
	return ep, nil
}

func (e *Endpoint) registerRoutes() {
	handler := promhttp.HandlerFor(e.metrics.registry, promhttp.HandlerOpts{
		ErrorLog:      slog.NewLogLogger(logger.Handler(), slog.LevelError),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
	e.echo.GET("/metrics", echo.WrapHandler(handler))
	e.echo.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
}

// Handler returns the HTTP handler serving the endpoint routes.
func (e *Endpoint) Handler() http.Handler {
	return e.echo
}

// Start listens on the configured address and serves until ctx is done,
// then shuts the server down gracefully. The wait group is released once the
// server has stopped.
func (e *Endpoint) Start(ctx context.Context, wg *sync.WaitGroup) error {
	listener, err := net.Listen("tcp", e.listenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", e.listenAddress, err)
	}
	e.mu.Lock()
	e.listener = listener
	e.mu.Unlock()
	e.echo.Listener = listener

	wg.Go(func() {
		logger.Info("Metrics endpoint starting", "address", listener.Addr().String())
		if err := e.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics HTTP server error", "error", err)
		}
	})

	wg.Go(func() {
		<-ctx.Done()
		logger.Info("Stopping metrics server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := e.echo.Shutdown(shutdownCtx); err != nil {
			logger.Error("Metrics server shutdown error", "error", err)
		}
	})

	return nil
}

// Addr returns the bound listen address, or the configured one before Start.
func (e *Endpoint) Addr() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listener != nil {
		return e.listener.Addr().String()
	}
	return e.listenAddress
}
