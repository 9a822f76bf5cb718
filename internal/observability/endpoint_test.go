package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrGangrene/bgg-flashcards/internal/conf"
)

func TestNewEndpointRequiresEnabledMetrics(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	_, err = NewEndpoint(&conf.Settings{}, m)
	assert.Error(t, err)
}

func TestEndpointServesMetrics(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)
	m.Catalog.IncrementCacheHits()
	m.Tasks.TaskStarted()

	settings := &conf.Settings{Metrics: conf.MetricsSettings{Enabled: true, Listen: "127.0.0.1:0"}}
	ep, err := NewEndpoint(settings, m)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	ep.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "bgg_catalog_cache_hits_total 1")
	assert.Contains(t, body, "background_tasks_running 1")
	assert.Contains(t, body, "go_goroutines")
}

func TestEndpointHealthz(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	settings := &conf.Settings{Metrics: conf.MetricsSettings{Enabled: true, Listen: "127.0.0.1:0"}}
	ep, err := NewEndpoint(settings, m)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	ep.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestEndpointStartStop(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	settings := &conf.Settings{Metrics: conf.MetricsSettings{Enabled: true, Listen: "127.0.0.1:0"}}
	ep, err := NewEndpoint(settings, m)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	var wg sync.WaitGroup
	require.NoError(t, ep.Start(ctx, &wg))

	resp, err := http.Get("http://" + ep.Addr() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	wg.Wait()
}
