// Package fetch provides the HTTP fetch executor for the crawl: pacing,
// caching, retries with backoff and error classification. The walker stays
// free of I/O by delegating page and file retrieval here.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/assessorai/splegis-crawler/pkg/cache"
	"github.com/assessorai/splegis-crawler/pkg/pacer"
	"github.com/assessorai/splegis-crawler/pkg/walker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for portal requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "splegis_requests_total",
		Help: "Total portal requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "splegis_request_duration_seconds",
		Help:    "Portal request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "splegis_errors_total",
		Help: "Total portal errors by class",
	}, []string{"class"})
)

// maxBodySize caps response reads; listing pages are a few hundred KB and
// process PDFs rarely pass a few MB.
const maxBodySize = 64 << 20

// Client is the portal fetch executor.
type Client struct {
	httpClient *http.Client
	redis      *redis.Client
	pacer      *pacer.Pacer
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Redis client for page cache and shared pacing state
	Redis *redis.Client

	// User-Agent header identifying the collector
	UserAgent string

	// Timeout per HTTP request
	Timeout time.Duration

	// CacheTTL is how long fetched listing pages stay reusable
	CacheTTL time.Duration

	// Pacing configures the politeness interval
	Pacing pacer.Config

	// Retry configures backoff behavior
	Retry RetryConfig
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(redisClient *redis.Client, userAgent string) Config {
	return Config{
		Redis:     redisClient,
		UserAgent: userAgent,
		Timeout:   30 * time.Second,
		CacheTTL:  15 * time.Minute,
		Pacing:    pacer.DefaultConfig(),
		Retry:     DefaultRetryConfig(),
	}
}

// New creates a new fetch client.
func New(cfg Config) (*Client, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 15 * time.Minute
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	logger := log.With().Str("component", "fetch").Logger()

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		redis:  cfg.Redis,
		pacer:  pacer.New(cfg.Redis, cfg.Pacing, logger),
		cache:  cache.NewManager(cfg.Redis),
		config: cfg,
		logger: logger,
	}, nil
}

// FetchListing retrieves one listing page, serving it from the page cache
// when a fresh copy exists. Implements walker.Fetcher.
func (c *Client) FetchListing(ctx context.Context, req walker.Request) ([]byte, error) {
	endpoint := endpointLabel(req.URL)

	key := cache.Key{
		Endpoint: endpoint,
		Query:    req.Query,
	}

	cached, err := c.cache.Get(ctx, key)
	if err != nil && err != cache.ErrCacheMiss {
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
	}
	if cached != nil {
		c.logger.Debug().
			Str("endpoint", endpoint).
			Time("fetched_at", cached.FetchedAt).
			Msg("Listing page served from cache")
		return cached.Data, nil
	}

	body, err := c.get(ctx, req.Encode(), req.Header)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, key, cache.NewEntry(body, http.StatusOK, c.config.CacheTTL)); err != nil {
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Failed to cache listing page")
	}

	return body, nil
}

// FetchFile retrieves a document download URL. File responses are not
// cached; the pipeline already skips documents it has on disk.
func (c *Client) FetchFile(ctx context.Context, rawURL string) ([]byte, error) {
	return c.get(ctx, rawURL, nil)
}

// get performs a paced, retried GET and returns the response body.
func (c *Client) get(ctx context.Context, fullURL string, header http.Header) ([]byte, error) {
	endpoint := endpointLabel(fullURL)

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	var body []byte

	retryErr := retryWithBackoff(ctx, c.config.Retry, c.logger, func() error {
		if err := c.pacer.Wait(ctx); err != nil {
			return fmt.Errorf("pacing: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return &PortalError{Class: ErrorClassClient, Message: "build request", Err: err}
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		req.Header.Set("User-Agent", c.config.UserAgent)
		req.Header.Set("Accept", "application/json, text/plain, */*")

		c.logger.Debug().
			Str("endpoint", endpoint).
			Msg("Executing portal request")

		resp, reqErr := c.httpClient.Do(req)
		if reqErr != nil {
			c.logger.Error().Err(reqErr).Str("endpoint", endpoint).Msg("HTTP request failed")
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			_ = c.pacer.ReportFailure(ctx)
			return reqErr
		}
		defer resp.Body.Close()

		requestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

		if resp.StatusCode != http.StatusOK {
			class := classifyStatus(resp.StatusCode)
			errorsTotal.WithLabelValues(string(class)).Inc()

			c.logger.Warn().
				Str("endpoint", endpoint).
				Int("status", resp.StatusCode).
				Str("error_class", string(class)).
				Msg("Portal request error")

			if class == ErrorClassServer {
				_ = c.pacer.ReportFailure(ctx)
			}

			return &PortalError{
				StatusCode: resp.StatusCode,
				Class:      class,
				Message:    resp.Status,
			}
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			_ = c.pacer.ReportFailure(ctx)
			return fmt.Errorf("read response body: %w", err)
		}

		_ = c.pacer.ReportSuccess(ctx)
		return nil
	})

	if retryErr != nil {
		return nil, retryErr
	}
	return body, nil
}

// downloadPathPrefix is the per-process document endpoint; its trailing code
// segment is stripped from metric labels to keep cardinality bounded.
const downloadPathPrefix = "/ArquivoProcesso/GerarArquivoProcessoPorID/"

// endpointLabel reduces a URL to its path for metric labels.
func endpointLabel(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "unknown"
	}
	if strings.HasPrefix(u.Path, downloadPathPrefix) {
		return strings.TrimSuffix(downloadPathPrefix, "/")
	}
	return u.Path
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
