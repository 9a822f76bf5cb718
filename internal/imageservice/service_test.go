package imageservice

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrGangrene/bgg-flashcards/internal/datastore"
	"github.com/MrGangrene/bgg-flashcards/internal/errors"
	"github.com/MrGangrene/bgg-flashcards/internal/httpclient"
	"github.com/MrGangrene/bgg-flashcards/internal/observability/metrics"
)

const catanImageURL = "https://cf.geekdo-images.com/catan.jpg"

func TestProcessResizesAndConverts(t *testing.T) {
	svc, _, _ := newTestService(t, DefaultConfig())

	tests := []struct {
		name     string
		data     []byte
		wantMime string
		wantW    int
		wantH    int
	}{
		{"landscape jpeg", encodeTestJPEG(t, noiseImage(600, 400)), MimeJPEG, 300, 200},
		{"portrait png without alpha", encodePNG(t, noiseImage(200, 800)), MimeJPEG, 75, 300},
		{"png with alpha stays png", encodePNG(t, translucentImage(400, 400)), MimePNG, 300, 300},
		{"opaque png with alpha channel stays png", encodeOpaqueRGBAPNG(t, 600, 300), MimePNG, 300, 150},
		{"small gif is not upscaled", encodeGIF(t, noiseImage(120, 90)), MimeJPEG, 120, 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, mimeType, err := svc.Process(tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMime, mimeType)

			cfg, format := decodeConfig(t, out)
			assert.Equal(t, strings.TrimPrefix(tt.wantMime, "image/"), format)
			assert.Equal(t, tt.wantW, cfg.Width)
			assert.Equal(t, tt.wantH, cfg.Height)
		})
	}
}

func TestProcessRejectsGarbage(t *testing.T) {
	svc, _, _ := newTestService(t, DefaultConfig())

	_, _, err := svc.Process([]byte("definitely not an image"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryImageProcessing))
}

func TestAggressiveCompressFitsBudget(t *testing.T) {
	data := encodeTestJPEG(t, noiseImage(1200, 900))
	config := DefaultConfig()

	svc, _, _ := newTestService(t, config)
	processed, _, err := svc.Process(data)
	require.NoError(t, err)

	config.MaxSize = len(processed) - 1
	svc, _, _ = newTestService(t, config)
	out, mimeType, err := svc.AggressiveCompress(data)
	require.NoError(t, err)
	assert.Equal(t, MimeJPEG, mimeType)
	assert.LessOrEqual(t, len(out), config.MaxSize)

	cfg, _ := decodeConfig(t, out)
	assert.LessOrEqual(t, cfg.Width, 200)
	assert.LessOrEqual(t, cfg.Height, 200)
}

func TestAggressiveCompressFailsBelowMinimum(t *testing.T) {
	config := DefaultConfig()
	config.MaxSize = 100
	svc, _, _ := newTestService(t, config)

	_, _, err := svc.AggressiveCompress(encodeTestJPEG(t, noiseImage(500, 500)))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryImageProcessing))
}

func TestDownloadAndStoreRespectsBudget(t *testing.T) {
	data := encodeTestJPEG(t, noiseImage(1000, 800))

	for _, budget := range []int{2 << 20, 40000, 8000, 2000, 100} {
		config := DefaultConfig()
		config.MaxSize = budget
		svc, store, transport := newTestService(t, config)
		transport.RegisterResponder(http.MethodGet, catanImageURL, imageResponder(http.StatusOK, "image/jpeg", data))

		ok := svc.DownloadAndStore(t.Context(), 13, catanImageURL)
		blob, stored := store.get(13)
		assert.Equal(t, ok, stored, "budget %d", budget)
		if stored {
			assert.LessOrEqual(t, len(blob.data), budget, "budget %d", budget)
		}
	}
}

func TestDownloadAndStoreUsesAggressivePass(t *testing.T) {
	data := encodeTestJPEG(t, noiseImage(1200, 900))
	reg := prometheus.NewRegistry()
	m, err := metrics.NewImageServiceMetrics(reg)
	require.NoError(t, err)

	baseline, _, _ := newTestService(t, DefaultConfig())
	processed, _, err := baseline.Process(data)
	require.NoError(t, err)

	config := DefaultConfig()
	config.MaxSize = len(processed) - 1
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, catanImageURL, imageResponder(http.StatusOK, "image/jpeg", data))
	store := newMemoryBlobStore()
	svc := New(config, httpclient.New(&httpclient.Config{Transport: transport}), store, m)

	require.True(t, svc.DownloadAndStore(t.Context(), 13, catanImageURL))
	blob, ok := store.get(13)
	require.True(t, ok)
	assert.Less(t, len(blob.data), len(processed))
	assert.InDelta(t, 1, testutil.ToFloat64(m.AggressiveCompressions), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ImageDownloads), 0)
}

func TestDownloadAndStoreRejections(t *testing.T) {
	png := encodePNG(t, noiseImage(10, 10))

	tests := []struct {
		name      string
		url       string
		responder httpmock.Responder
	}{
		{"empty url", "", nil},
		{"no image marker", datastore.NoImage, nil},
		{"not found", catanImageURL, imageResponder(http.StatusNotFound, "image/png", png)},
		{"html content type", catanImageURL, imageResponder(http.StatusOK, "text/html; charset=utf-8", png)},
		{"corrupt body", catanImageURL, imageResponder(http.StatusOK, "image/png", []byte("\x89PNG broken"))},
		{"transport error", catanImageURL, httpmock.NewErrorResponder(context.DeadlineExceeded)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, transport := newTestService(t, DefaultConfig())
			if tt.responder != nil {
				transport.RegisterResponder(http.MethodGet, tt.url, tt.responder)
			}

			assert.False(t, svc.DownloadAndStore(t.Context(), 13, tt.url))
			_, stored := store.get(13)
			assert.False(t, stored)
			if tt.responder == nil {
				assert.Zero(t, transport.GetTotalCallCount())
			}
		})
	}
}

func TestStoreFailureReturnsFalse(t *testing.T) {
	svc, store, _ := newTestService(t, DefaultConfig())
	store.failWith = errors.NewStd("connection reset")

	assert.False(t, svc.Store(t.Context(), 13, []byte{1, 2, 3}, MimeJPEG))
}

func TestRoundTripDataURI(t *testing.T) {
	svc, _, transport := newTestService(t, DefaultConfig())
	transport.RegisterResponder(http.MethodGet, catanImageURL,
		imageResponder(http.StatusOK, "image/png", encodePNG(t, translucentImage(64, 48))))

	require.True(t, svc.DownloadAndStore(t.Context(), 13, catanImageURL))

	uri, ok := svc.RetrieveAsDataURI(t.Context(), 13)
	require.True(t, ok)
	require.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:image/png;base64,"))
	require.NoError(t, err)
	cfg, format := decodeConfig(t, raw)
	assert.Equal(t, "png", format)
	assert.Equal(t, 64, cfg.Width)
	assert.Equal(t, 48, cfg.Height)

	require.True(t, svc.Clear(t.Context(), 13))
	_, ok = svc.RetrieveAsDataURI(t.Context(), 13)
	assert.False(t, ok)
}

func TestEnsureImageSkipsStored(t *testing.T) {
	svc, store, transport := newTestService(t, DefaultConfig())
	transport.RegisterResponder(http.MethodGet, catanImageURL,
		imageResponder(http.StatusOK, "image/jpeg", encodeTestJPEG(t, noiseImage(50, 50))))

	_, err := store.ReplaceImage(t.Context(), 13, []byte("existing"), MimeJPEG)
	require.NoError(t, err)

	assert.True(t, svc.EnsureImage(t.Context(), 13, catanImageURL, false))
	assert.Zero(t, transport.GetTotalCallCount())
	blob, _ := store.get(13)
	assert.Equal(t, []byte("existing"), blob.data)

	assert.True(t, svc.EnsureImage(t.Context(), 13, catanImageURL, true))
	assert.Equal(t, 1, transport.GetTotalCallCount())
	blob, _ = store.get(13)
	assert.NotEqual(t, []byte("existing"), blob.data)

	assert.False(t, svc.EnsureImage(t.Context(), 14, datastore.NoImage, true))
}

func TestSourceFallbackChain(t *testing.T) {
	config := DefaultConfig()
	config.PlaceholderID = -1
	config.PlaceholderURL = "https://example.test/placeholder.png"
	svc, store, _ := newTestService(t, config)

	stored := &datastore.Game{ID: 13, ImagePath: catanImageURL}
	_, err := store.ReplaceImage(t.Context(), 13, []byte{0xff, 0xd8}, MimeJPEG)
	require.NoError(t, err)

	src := svc.Source(t.Context(), stored)
	assert.Equal(t, SourceStored, src.Kind)
	assert.Equal(t, "data:image/jpeg;base64,/9g=", src.Value)

	external := &datastore.Game{ID: 926, ImagePath: "https://cf.geekdo-images.com/seafarers.jpg"}
	src = svc.Source(t.Context(), external)
	assert.Equal(t, SourceExternal, src.Kind)
	assert.Equal(t, external.ImagePath, src.Value)

	none := &datastore.Game{ID: 325, ImagePath: datastore.NoImage}
	src = svc.Source(t.Context(), none)
	assert.Equal(t, SourcePlaceholderURL, src.Kind)
	assert.Equal(t, config.PlaceholderURL, src.Value)

	_, err = store.ReplaceImage(t.Context(), -1, []byte("ph"), MimePNG)
	require.NoError(t, err)
	src = svc.Source(t.Context(), none)
	assert.Equal(t, SourcePlaceholderStored, src.Kind)
	assert.Equal(t, "data:image/png;base64,cGg=", src.Value)
	assert.Equal(t, "placeholder_stored", src.Kind.String())
}
