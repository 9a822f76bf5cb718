// Package telemetry wires opt-in error reporting to Sentry.
package telemetry

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/MrGangrene/bgg-flashcards/internal/conf"
	"github.com/MrGangrene/bgg-flashcards/internal/errors"
	"github.com/MrGangrene/bgg-flashcards/internal/logging"
	"github.com/MrGangrene/bgg-flashcards/internal/privacy"
)

// FlushTimeout bounds how long pending events are sent at shutdown.
const FlushTimeout = 2 * time.Second

var logger *slog.Logger

func init() {
	logger = logging.ForService("telemetry")
	if logger == nil {
		logger = slog.Default().With("service", "telemetry")
	}
}

// Options tune Sentry initialization. Transport is set by tests.
type Options struct {
	Release   string
	Transport sentry.Transport
}

// InitSentry initializes Sentry when enabled in settings and installs the
// error reporter. It returns a function that flushes pending events.
func InitSentry(settings *conf.Settings, opts Options) (func(), error) {
	if !settings.Sentry.Enabled {
		logger.Debug("Sentry telemetry is disabled")
		return func() {}, nil
	}

	release := opts.Release
	if release == "" {
		release = "dev"
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.Sentry.DSN,
		Transport:        opts.Transport,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      "production",
		ServerName:       "",
		Release:          "bgg-flashcards@" + release,
		BeforeSend:       applyPrivacyFilters,
	})
	if err != nil {
		return func() {}, fmt.Errorf("sentry initialization failed: %w", err)
	}

	errors.SetTelemetryReporter(newFilteringReporter(errors.NewSentryReporter(true)))
	logger.Info("Sentry telemetry initialized", "release", release)

	return func() {
		errors.SetTelemetryReporter(nil)
		sentry.Flush(FlushTimeout)
	}, nil
}

// applyPrivacyFilters strips host and user identifying data from events.
func applyPrivacyFilters(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""
	event.Message = privacy.ScrubMessage(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = privacy.ScrubMessage(event.Exception[i].Value)
	}

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
	}
	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}
	return event
}

// filteringReporter drops categories that describe expected outcomes.
type filteringReporter struct {
	next errors.TelemetryReporter
}

func newFilteringReporter(next errors.TelemetryReporter) *filteringReporter {
	return &filteringReporter{next: next}
}

func (r *filteringReporter) IsEnabled() bool {
	return r.next.IsEnabled()
}

func (r *filteringReporter) ReportError(ee *errors.EnhancedError) {
	switch ee.Category {
	case errors.CategoryNotFound, errors.CategoryCancellation, errors.CategoryValidation:
		return
	}
	r.next.ReportError(ee)
}
