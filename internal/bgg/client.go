package bgg

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/net/html/charset"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/cases"
	"golang.org/x/time/rate"

	"github.com/MrGangrene/bgg-flashcards/internal/errors"
	"github.com/MrGangrene/bgg-flashcards/internal/httpclient"
	"github.com/MrGangrene/bgg-flashcards/internal/logging"
	"github.com/MrGangrene/bgg-flashcards/internal/observability/metrics"
)

// maxResponseBytes bounds catalog response bodies.
const maxResponseBytes = 8 << 20

// Endpoint labels used in logs and metrics
const (
	endpointSearch = "search"
	endpointThing  = "thing"
)

var logger *slog.Logger

func init() {
	logger = logging.ForService("catalog")
	if logger == nil {
		logger = slog.Default().With("service", "catalog")
	}
}

// Client talks to the BoardGameGeek XML API. Responses are rate limited,
// retried on transient failures and cached by request.
type Client struct {
	config     Config
	httpClient *httpclient.Client
	cache      *cache.Cache
	limiter    *rate.Limiter
	flights    singleflight.Group
	metrics    *metrics.CatalogMetrics
}

// NewClient creates a catalog client. A nil httpClient gets a default one;
// metrics are optional.
func NewClient(config Config, httpClient *httpclient.Client, m *metrics.CatalogMetrics) *Client {
	defaults := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = defaults.CacheTTL
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = defaults.MaxRetries
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = defaults.RetryBackoff
	}
	if config.RateLimitMS < 0 {
		config.RateLimitMS = 0
	}

	if httpClient == nil {
		httpClient = httpclient.New(&httpclient.Config{
			DefaultTimeout: config.Timeout,
			UserAgent:      config.UserAgent,
		})
	}

	limit := rate.Inf
	if config.RateLimitMS > 0 {
		limit = rate.Every(time.Duration(config.RateLimitMS) * time.Millisecond)
	}

	logger.Debug("Catalog client initialized",
		"base_url", config.BaseURL,
		"timeout", config.Timeout,
		"cache_ttl", config.CacheTTL,
		"rate_limit_ms", config.RateLimitMS)

	return &Client{
		config:     config,
		httpClient: httpClient,
		cache:      cache.New(config.CacheTTL, config.CacheTTL*2),
		limiter:    rate.NewLimiter(limit, 1),
		metrics:    m,
	}
}

// Config returns the effective client configuration.
func (c *Client) Config() Config {
	return c.config
}

// Search queries /search for board games matching query. With exact set only
// exact name matches are returned.
func (c *Client) Search(ctx context.Context, query string, exact bool) ([]SearchItem, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.Newf("search query is empty").
			Component("catalog").
			Category(errors.CategoryValidation).
			Build()
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("type", itemTypeBoardGame)
	if exact {
		params.Set("exact", "1")
	}
	reqURL := c.config.BaseURL + "/search?" + params.Encode()

	// BGG name search is case-insensitive, so case variants share one cache entry
	cacheKey := fmt.Sprintf("search:%s:%t", cases.Fold().String(query), exact)

	var resp SearchResponse
	if err := c.get(ctx, endpointSearch, cacheKey, reqURL, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// Thing fetches the detail record of a game, including statistics.
// Concurrent calls for the same id share one request.
func (c *Client) Thing(ctx context.Context, id int) (*ThingItem, error) {
	if id <= 0 {
		return nil, errors.Newf("invalid game id %d", id).
			Component("catalog").
			Category(errors.CategoryValidation).
			Context("game_id", id).
			Build()
	}

	key := "thing:" + strconv.Itoa(id)
	ch := c.flights.DoChan(key, func() (any, error) {
		// The flight outlives any single caller, so it runs detached with its own bound.
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.flightTimeout())
		defer cancel()

		reqURL := fmt.Sprintf("%s/thing?id=%d&stats=1", c.config.BaseURL, id)
		var resp ThingResponse
		if err := c.get(flightCtx, endpointThing, key, reqURL, &resp); err != nil {
			return nil, err
		}
		if len(resp.Items) == 0 {
			return nil, errors.Newf("game %d not found in catalog", id).
				Component("catalog").
				Category(errors.CategoryNotFound).
				Context("game_id", id).
				Build()
		}
		return &resp.Items[0], nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*ThingItem), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// flightTimeout bounds a shared request: every attempt at the request
// timeout plus the backoff between attempts.
func (c *Client) flightTimeout() time.Duration {
	attempts := time.Duration(c.config.MaxRetries)
	backoff := c.config.RetryBackoff * attempts * (attempts - 1) / 2
	return c.config.Timeout*attempts + backoff
}

// get serves url from the cache or fetches and decodes it into out.
func (c *Client) get(ctx context.Context, endpoint, cacheKey, reqURL string, out any) error {
	if cached, found := c.cache.Get(cacheKey); found {
		if body, ok := cached.([]byte); ok {
			if c.metrics != nil {
				c.metrics.IncrementCacheHits()
			}
			logger.Debug("Catalog cache hit", "endpoint", endpoint, "cache_key", cacheKey)
			return decodeXML(body, out)
		}
	}
	if c.metrics != nil {
		c.metrics.IncrementCacheMisses()
	}

	start := time.Now()
	body, err := c.doRequestWithRetry(ctx, endpoint, reqURL)
	if c.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
			c.metrics.RecordError(endpoint, string(errorCategoryOf(err)))
		}
		c.metrics.RecordRequest(endpoint, status, time.Since(start).Seconds())
	}
	if err != nil {
		return err
	}

	if err := decodeXML(body, out); err != nil {
		return errors.New(err).
			Component("catalog").
			Category(errors.CategoryCatalogParse).
			Context("endpoint", endpoint).
			Context("response_size", len(body)).
			Build()
	}

	c.cache.Set(cacheKey, body, cache.DefaultExpiration)
	return nil
}

// decodeXML decodes an API body, honouring its declared encoding.
func decodeXML(body []byte, out any) error {
	decoder := xml.NewDecoder(bytes.NewReader(body))
	decoder.CharsetReader = charset.NewReaderLabel
	return decoder.Decode(out)
}

// doRequestWithRetry wraps doRequest with retry logic for transient failures
func (c *Client) doRequestWithRetry(ctx context.Context, endpoint, reqURL string) ([]byte, error) {
	maxRetries := c.config.MaxRetries
	var lastErr error

	for attempt := range maxRetries {
		body, err := c.doRequest(ctx, endpoint, reqURL)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !isRetryable(err) {
			return nil, err
		}

		// Don't retry if context is cancelled
		if ctx.Err() != nil {
			return nil, lastErr
		}

		if attempt < maxRetries-1 {
			delay := time.Duration(attempt+1) * c.config.RetryBackoff
			logger.Warn("Catalog request failed, retrying",
				"endpoint", endpoint,
				"attempt", attempt+1,
				"max_retries", maxRetries,
				"delay_ms", delay.Milliseconds(),
				"error", err.Error())

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, lastErr
			}
		}
	}

	return nil, lastErr
}

// isRetryable reports whether a failed request may succeed when repeated:
// transport errors, 5xx and 429 are retried, other 4xx are not.
func isRetryable(err error) bool {
	var enhancedErr *errors.EnhancedError
	if !errors.As(err, &enhancedErr) {
		return true
	}
	if statusCode, ok := enhancedErr.Context["status_code"].(int); ok {
		if statusCode == http.StatusTooManyRequests || statusCode >= 500 {
			return true
		}
		return false
	}
	switch enhancedErr.Category {
	case errors.CategoryValidation, errors.CategoryNotFound, errors.CategoryCancellation:
		return false
	}
	return true
}

// doRequest performs one rate limited GET with its own timeout and returns the body.
func (c *Client) doRequest(ctx context.Context, endpoint, reqURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.New(err).
			Component("catalog").
			Category(errors.CategoryCancellation).
			Context("endpoint", endpoint).
			Build()
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, errors.Newf("failed to create HTTP request: %w", err).
			Component("catalog").
			Category(errors.CategoryValidation).
			Context("endpoint", endpoint).
			Build()
	}
	req.Header.Set("Accept", "application/xml, text/xml")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	logger.Debug("Catalog request", "endpoint", endpoint, "url", reqURL)

	resp, err := c.httpClient.Do(reqCtx, req)
	if err != nil {
		return nil, errors.NetworkError(fmt.Errorf("catalog request failed: %w", err), reqURL, c.config.Timeout)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Debug("Failed to close catalog response body", "error", err)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.NetworkError(fmt.Errorf("failed to read catalog response: %w", err), reqURL, c.config.Timeout)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("catalog API returned status %d", resp.StatusCode).
			Component("catalog").
			Category(getErrorCategory(resp.StatusCode)).
			Context("status_code", resp.StatusCode).
			Context("endpoint", endpoint).
			Build()
	}

	return body, nil
}

// ClearCache drops all cached responses
func (c *Client) ClearCache() {
	c.cache.Flush()
	logger.Debug("Catalog cache cleared")
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.Close()
}

// getErrorCategory determines the error category for an HTTP status code
func getErrorCategory(statusCode int) errors.ErrorCategory {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return errors.CategoryLimit
	case statusCode == http.StatusNotFound:
		return errors.CategoryNotFound
	case statusCode >= 500:
		return errors.CategoryNetwork
	default:
		return errors.CategoryHTTP
	}
}

func errorCategoryOf(err error) errors.ErrorCategory {
	var enhancedErr *errors.EnhancedError
	if errors.As(err, &enhancedErr) && enhancedErr.Category != "" {
		return enhancedErr.Category
	}
	return errors.CategoryGeneric
}
