package ebird

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/hellobirdie/hellobirdie/internal/errors"
	"github.com/hellobirdie/hellobirdie/internal/httpclient"
	"github.com/hellobirdie/hellobirdie/internal/logger"
)

const (
	maxRetries          = 3
	maxErrorBodyPreview = 500
)

// Client provides methods for interacting with the eBird API
type Client struct {
	config     Config
	httpClient *httpclient.Client
	cache      *cache.Cache
	limiter    *rate.Limiter
	log        logger.Logger
	firstCall  sync.Once

	apiCalls    atomic.Int64
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
	apiErrors   atomic.Int64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = httpclient.Wrap(hc, httpclient.DefaultUserAgent) }
}

// WithLogger replaces the module logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient creates a new eBird API client
func NewClient(config Config, opts ...Option) (*Client, error) {
	if config.APIKey == "" {
		return nil, errors.Newf("eBird API key is required").
			Category(errors.CategoryConfiguration).
			Component("ebird").
			Build()
	}

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
	if config.RateLimit <= 0 {
		config.RateLimit = defaults.RateLimit
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = defaults.RetryBackoff
	}

	client := &Client{
		config:     config,
		httpClient: httpclient.New(httpclient.Config{Timeout: config.Timeout}),
		cache:      cache.New(config.CacheTTL, config.CacheTTL*2),
		limiter:    rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		log:        GetLogger(),
	}
	for _, opt := range opts {
		opt(client)
	}
	client.httpClient.SetResponseHook(client.logResponse)

	client.log.Info("eBird client initialized",
		logger.String("base_url", config.BaseURL),
		logger.Duration("cache_ttl", config.CacheTTL),
		logger.Float64("rate_limit", config.RateLimit))

	return client, nil
}

// GetTaxonomy retrieves the complete eBird taxonomy, optionally localized.
// Results are cached per locale.
func (c *Client) GetTaxonomy(ctx context.Context, locale string) ([]TaxonomyEntry, error) {
	cacheKey := "taxonomy:" + locale
	if cached, found := c.cache.Get(cacheKey); found {
		if taxonomy, ok := cached.([]TaxonomyEntry); ok {
			c.cacheHits.Add(1)
			c.log.Debug("eBird taxonomy cache hit",
				logger.String("cache_key", cacheKey),
				logger.Int("entries", len(taxonomy)))
			return taxonomy, nil
		}
	}
	c.cacheMisses.Add(1)

	var taxonomy []TaxonomyEntry
	if err := c.doRequestWithRetry(ctx, c.taxonomyURL("", locale), &taxonomy); err != nil {
		return nil, err
	}

	c.cache.SetDefault(cacheKey, taxonomy)
	c.log.Debug("eBird taxonomy cached",
		logger.String("cache_key", cacheKey),
		logger.Int("entries", len(taxonomy)))

	return taxonomy, nil
}

// GetSpeciesTaxonomy retrieves the taxonomy entry for one species code.
func (c *Client) GetSpeciesTaxonomy(ctx context.Context, speciesCode, locale string) (*TaxonomyEntry, error) {
	cacheKey := fmt.Sprintf("species:%s:%s", speciesCode, locale)
	if cached, found := c.cache.Get(cacheKey); found {
		if entry, ok := cached.(TaxonomyEntry); ok {
			c.cacheHits.Add(1)
			return &entry, nil
		}
	}
	c.cacheMisses.Add(1)

	var entries []TaxonomyEntry
	if err := c.doRequestWithRetry(ctx, c.taxonomyURL(speciesCode, locale), &entries); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, errors.Newf("species not found: %s", speciesCode).
			Category(errors.CategoryNotFound).
			Context("species_code", speciesCode).
			Component("ebird").
			Build()
	}

	c.cache.SetDefault(cacheKey, entries[0])
	entry := entries[0]
	return &entry, nil
}

// taxonomyURL builds /ref/taxonomy/ebird[/code]?fmt=json[&locale=]. The API
// defaults to CSV, so fmt=json is always set.
func (c *Client) taxonomyURL(speciesCode, locale string) string {
	path := c.config.BaseURL + "/ref/taxonomy/ebird"
	if speciesCode != "" {
		path += "/" + url.PathEscape(speciesCode)
	}
	q := url.Values{"fmt": {"json"}}
	if locale != "" {
		q.Set("locale", locale)
	}
	return path + "?" + q.Encode()
}

// logResponse traces each eBird round trip without the API token.
func (c *Client) logResponse(req *http.Request, resp *http.Response, err error, elapsed time.Duration) {
	if err != nil {
		return
	}
	c.log.Debug("eBird API response",
		logger.String("path", req.URL.Path),
		logger.Int("status_code", resp.StatusCode),
		logger.Duration("elapsed", elapsed))
}

// Close releases pooled connections.
func (c *Client) Close() {
	c.httpClient.Close()
}

// doRequest performs one rate-limited, authenticated GET and decodes the
// JSON body into result.
func (c *Client) doRequest(ctx context.Context, reqURL string, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.New(fmt.Errorf("rate limiter wait: %w", err)).
			Category(errors.CategoryNetwork).
			Component("ebird").
			Build()
	}

	start := time.Now()
	c.apiCalls.Add(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		c.apiErrors.Add(1)
		return errors.New(fmt.Errorf("failed to create HTTP request: %w", err)).
			Category(errors.CategoryNetwork).
			Context("url", reqURL).
			Component("ebird").
			Build()
	}
	req.Header.Set("X-eBirdApiToken", c.config.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		c.apiErrors.Add(1)
		c.log.Error("eBird API request failed",
			logger.Error(err),
			logger.String("url", reqURL))
		return errors.New(fmt.Errorf("HTTP request failed: %w", err)).
			Category(errors.CategoryNetwork).
			Context("url", reqURL).
			Component("ebird").
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.New(fmt.Errorf("failed to read response body: %w", err)).
			Category(errors.CategoryNetwork).
			Context("url", reqURL).
			Context("status_code", resp.StatusCode).
			Component("ebird").
			Build()
	}

	if resp.StatusCode >= http.StatusBadRequest {
		c.apiErrors.Add(1)
		return c.apiError(resp.StatusCode, body, reqURL)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "application/json") {
		c.log.Error("eBird API returned non-JSON response",
			logger.Int("status_code", resp.StatusCode),
			logger.String("content_type", contentType),
			logger.String("response_preview", preview(body)))
		return errors.Newf("eBird API returned non-JSON response (Content-Type: %s)", contentType).
			Category(errors.CategoryNetwork).
			Context("status_code", resp.StatusCode).
			Context("content_type", contentType).
			Component("ebird").
			Build()
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return errors.New(fmt.Errorf("failed to parse response: %w", err)).
				Category(errors.CategoryFileParsing).
				Context("url", reqURL).
				Context("response_size", len(body)).
				Component("ebird").
				Build()
		}
	}

	c.firstCall.Do(func() {
		c.log.Info("eBird API authentication successful")
	})
	c.log.Debug("eBird API request successful",
		logger.String("url", reqURL),
		logger.Duration("duration", time.Since(start)),
		logger.Int("response_size", len(body)))

	return nil
}

// apiError builds an error from a 4xx/5xx response, using the eBird error
// document when the body holds one.
func (c *Client) apiError(status int, body []byte, reqURL string) error {
	detail := preview(body)
	title := http.StatusText(status)

	var apiErr Error
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Detail != "" {
		detail = apiErr.Detail
		if apiErr.Title != "" {
			title = apiErr.Title
		}
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		c.log.Error("eBird API authentication failed, check ebird.apikey",
			logger.Int("status_code", status),
			logger.String("detail", detail))
	} else {
		c.log.Warn("eBird API error response",
			logger.Int("status_code", status),
			logger.String("error_title", title),
			logger.String("detail", detail))
	}

	return errors.Newf("eBird API error (status %d): %s", status, detail).
		Category(getErrorCategory(status)).
		Context("status_code", status).
		Context("error_title", title).
		Context("url", reqURL).
		Component("ebird").
		Build()
}

// doRequestWithRetry wraps doRequest with retry logic for transient failures.
// Client errors other than 429 are returned immediately.
func (c *Client) doRequestWithRetry(ctx context.Context, reqURL string, result any) error {
	var lastErr error

	for attempt := range maxRetries {
		err := c.doRequest(ctx, reqURL, result)
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) || ctx.Err() != nil {
			return err
		}
		if attempt == maxRetries-1 {
			break
		}

		delay := time.Duration(attempt+1) * c.config.RetryBackoff
		c.log.Warn("eBird API request failed, retrying",
			logger.Int("attempt", attempt+1),
			logger.Int("max_retries", maxRetries),
			logger.Duration("delay", delay),
			logger.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	return lastErr
}

func isRetryable(err error) bool {
	var enhancedErr *errors.EnhancedError
	if !errors.As(err, &enhancedErr) {
		return true
	}
	switch enhancedErr.Category {
	case errors.CategoryConfiguration, errors.CategoryNotFound, errors.CategoryValidation, errors.CategoryFileParsing:
		return false
	}
	if status, ok := enhancedErr.GetContext()["status_code"].(int); ok {
		if status >= 400 && status < 500 && status != http.StatusTooManyRequests {
			return false
		}
	}
	return true
}

// ClearCache clears all cached data
func (c *Client) ClearCache() {
	c.cache.Flush()
	c.log.Info("eBird cache cleared")
}

// Metrics represents eBird client counters
type Metrics struct {
	APICalls    int64 `json:"api_calls"`
	CacheHits   int64 `json:"cache_hits"`
	CacheMisses int64 `json:"cache_misses"`
	APIErrors   int64 `json:"api_errors"`
}

// GetMetrics returns current client metrics
func (c *Client) GetMetrics() Metrics {
	return Metrics{
		APICalls:    c.apiCalls.Load(),
		CacheHits:   c.cacheHits.Load(),
		CacheMisses: c.cacheMisses.Load(),
		APIErrors:   c.apiErrors.Load(),
	}
}

// getErrorCategory determines the appropriate error category based on HTTP status code
func getErrorCategory(statusCode int) errors.ErrorCategory {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.CategoryConfiguration
	case http.StatusTooManyRequests:
		return errors.CategoryLimit
	case http.StatusNotFound:
		return errors.CategoryNotFound
	default:
		return errors.CategoryNetwork
	}
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > maxErrorBodyPreview {
		return s[:maxErrorBodyPreview] + "..."
	}
	return s
}
