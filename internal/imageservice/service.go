// Package imageservice downloads game images, shrinks them to a byte budget
// and keeps them in the blob store so they can be shown without network
// access.
package imageservice

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/MrGangrene/bgg-flashcards/internal/conf"
	"github.com/MrGangrene/bgg-flashcards/internal/datastore"
	"github.com/MrGangrene/bgg-flashcards/internal/errors"
	"github.com/MrGangrene/bgg-flashcards/internal/httpclient"
	"github.com/MrGangrene/bgg-flashcards/internal/observability/metrics"
)

// maxDownloadBytes bounds how much of a response body is read.
const maxDownloadBytes = 32 << 20

// Error stages used for metrics
const (
	stageDownload = "download"
	stageProcess  = "process"
	stageStore    = "store"
)

// BlobStore persists one image per game.
type BlobStore interface {
	ReplaceImage(ctx context.Context, gameID int, data []byte, mimeType string) (datastore.StoredImage, error)
	ReadImage(ctx context.Context, gameID int) ([]byte, string, error)
	ClearImage(ctx context.Context, gameID int) error
	HasImage(ctx context.Context, gameID int) (bool, error)
}

// Config holds image service settings.
type Config struct {
	MaxSize         int
	DownloadTimeout time.Duration
	MaxDimension    int
	PlaceholderID   int
	PlaceholderURL  string
}

// DefaultConfig returns the stock image settings.
func DefaultConfig() Config {
	return Config{
		MaxSize:         2 * 1024 * 1024,
		DownloadTimeout: 30 * time.Second,
		MaxDimension:    300,
		PlaceholderID:   -1,
		PlaceholderURL:  conf.DefaultPlaceholderURL,
	}
}

// ConfigFromSettings maps image settings onto a Config.
func ConfigFromSettings(s *conf.ImageSettings) Config {
	return Config{
		MaxSize:         s.MaxSize,
		DownloadTimeout: s.DownloadTimeout,
		MaxDimension:    s.MaxDimension,
		PlaceholderID:   s.PlaceholderID,
		PlaceholderURL:  s.PlaceholderURL,
	}
}

// Service acquires, stores and serves game images. Operations report
// success as a bool and log failures.
type Service struct {
	config     Config
	httpClient *httpclient.Client
	store      BlobStore
	metrics    *metrics.ImageServiceMetrics
}

// New creates an image service. A nil httpClient gets a default one;
// metrics are optional.
func New(config Config, httpClient *httpclient.Client, store BlobStore, m *metrics.ImageServiceMetrics) *Service {
	defaults := DefaultConfig()
	if config.MaxSize <= 0 {
		config.MaxSize = defaults.MaxSize
	}
	if config.DownloadTimeout <= 0 {
		config.DownloadTimeout = defaults.DownloadTimeout
	}
	if config.MaxDimension <= 0 {
		config.MaxDimension = defaults.MaxDimension
	}
	if httpClient == nil {
		httpClient = httpclient.New(&httpclient.Config{DefaultTimeout: config.DownloadTimeout})
	}
	return &Service{
		config:     config,
		httpClient: httpClient,
		store:      store,
		metrics:    m,
	}
}

// DownloadAndStore fetches url, processes it to fit the byte budget and
// stores it for gameID.
func (s *Service) DownloadAndStore(ctx context.Context, gameID int, url string) bool {
	if !usableURL(url) {
		return false
	}

	data, err := s.download(ctx, url)
	if err != nil {
		s.recordError(stageDownload)
		logger.Warn("Image download failed", "game_id", gameID, "url", url, "error", err)
		return false
	}
	if len(data) > s.config.MaxSize {
		logger.Debug("Large image downloaded, will compress", "game_id", gameID, "bytes", len(data))
	}

	processed, mimeType, err := s.Process(data)
	if err != nil {
		s.recordError(stageProcess)
		logger.Warn("Image processing failed", "game_id", gameID, "url", url, "error", err)
		return false
	}

	if len(processed) > s.config.MaxSize {
		logger.Info("Image over budget after processing, compressing aggressively",
			"game_id", gameID,
			"bytes", len(processed),
			"max_size", s.config.MaxSize)
		if s.metrics != nil {
			s.metrics.IncrementAggressiveCompressions()
		}
		processed, mimeType, err = s.AggressiveCompress(data)
		if err != nil {
			s.recordError(stageProcess)
			logger.Warn("Image could not be compressed to budget", "game_id", gameID, "error", err)
			return false
		}
	}

	return s.Store(ctx, gameID, processed, mimeType)
}

// download reads an image body, requiring a 2xx status and an image content type.
func (s *Service) download(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.DownloadTimeout)
	defer cancel()

	start := time.Now()
	resp, err := s.httpClient.Get(ctx, url)
	if err != nil {
		return nil, errors.NetworkError(err, url, s.config.DownloadTimeout)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Debug("Failed to close image response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Newf("image download returned status %d", resp.StatusCode).
			Component("imageservice").
			Category(errors.CategoryImageFetch).
			Context("status_code", resp.StatusCode).
			Context("url", url).
			Build()
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, errors.Newf("invalid content type %q", contentType).
			Component("imageservice").
			Category(errors.CategoryImageFetch).
			Context("content_type", contentType).
			Context("url", url).
			Build()
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return nil, errors.NetworkError(fmt.Errorf("failed to read image body: %w", err), url, s.config.DownloadTimeout)
	}
	if len(data) > maxDownloadBytes {
		return nil, errors.Newf("image body exceeds %d bytes", maxDownloadBytes).
			Component("imageservice").
			Category(errors.CategoryLimit).
			Context("url", url).
			Build()
	}

	if s.metrics != nil {
		s.metrics.IncrementImageDownloads()
		s.metrics.ObserveDownloadDuration(time.Since(start).Seconds())
	}
	return data, nil
}

// Store replaces the stored image of gameID.
func (s *Service) Store(ctx context.Context, gameID int, data []byte, mimeType string) bool {
	stored, err := s.store.ReplaceImage(ctx, gameID, data, mimeType)
	if err != nil {
		s.recordError(stageStore)
		logger.Error("Failed to store image", "game_id", gameID, "error", err)
		return false
	}
	if s.metrics != nil {
		s.metrics.ObserveStoredBytes(stored.Size)
	}
	logger.Info("Stored image",
		"game_id", gameID,
		"bytes", stored.Size,
		"mime_type", stored.MimeType,
		"oid", stored.OID)
	return true
}

// RetrieveAsDataURI returns the stored image of gameID as a data URI.
func (s *Service) RetrieveAsDataURI(ctx context.Context, gameID int) (string, bool) {
	data, mimeType, err := s.store.ReadImage(ctx, gameID)
	if err != nil {
		if !errors.IsNotFound(err) {
			logger.Warn("Failed to read stored image", "game_id", gameID, "error", err)
		}
		return "", false
	}
	if len(data) == 0 {
		return "", false
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), true
}

// Clear removes the stored image of gameID.
func (s *Service) Clear(ctx context.Context, gameID int) bool {
	if err := s.store.ClearImage(ctx, gameID); err != nil {
		logger.Error("Failed to clear image", "game_id", gameID, "error", err)
		return false
	}
	return true
}

// EnsureImage downloads url for gameID unless an image is already stored.
// force always downloads.
func (s *Service) EnsureImage(ctx context.Context, gameID int, url string, force bool) bool {
	if !usableURL(url) {
		return false
	}
	if !force {
		has, err := s.store.HasImage(ctx, gameID)
		if err != nil {
			logger.Debug("Could not check stored image", "game_id", gameID, "error", err)
		} else if has {
			return true
		}
	}
	return s.DownloadAndStore(ctx, gameID, url)
}

func (s *Service) recordError(stage string) {
	if s.metrics != nil {
		s.metrics.IncrementErrors(stage)
	}
}

func usableURL(url string) bool {
	return url != "" && url != datastore.NoImage
}
