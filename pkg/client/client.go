// Package client provides the core marketplace API HTTP client with rate
// limiting, caching, retries, and error handling.
package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/masterhub/marketplace-client/pkg/cache"
	"github.com/masterhub/marketplace-client/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// Prometheus metrics for marketplace API client operations.
var (
	apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_requests_total",
		Help: "Total marketplace API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	apiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marketplace_request_duration_seconds",
		Help:    "Marketplace API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	apiErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_errors_total",
		Help: "Total marketplace API errors by class",
	}, []string{"class"})

	apiBreakerOpenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketplace_breaker_open_total",
		Help: "Total requests rejected by an open circuit breaker",
	})
)

// ErrorClass represents a classification of HTTP errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 rate limit errors.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// Client is the marketplace API client.
type Client struct {
	httpClient  *http.Client
	redis       *redis.Client
	rateLimiter *ratelimit.Tracker
	cache       *cache.Manager
	breaker     *gobreaker.CircuitBreaker
	config      Config
	logger      zerolog.Logger
}

// TokenSource supplies the bearer token for authenticated requests.
// It is called per request so rotated tokens are picked up.
type TokenSource func() string

// Config holds the client configuration.
type Config struct {
	// Redis client for caching and rate limit state
	Redis *redis.Client

	// BaseURL of the marketplace API (e.g. "https://api.masterhub.app")
	BaseURL string

	// User-Agent header
	// Format: "AppName/Version (contact@example.com)"
	UserAgent string

	// Token supplies the bearer token for authenticated endpoints.
	// Nil means unauthenticated (public endpoints only).
	Token TokenSource

	// Rate Limiting
	RateLimitThreshold int // Stop requests when budget remaining < threshold

	// Caching
	RespectExpires bool // Honor server expires header

	// Retry
	MaxRetries     int
	InitialBackoff time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(redis *redis.Client, baseURL, userAgent string) Config {
	return Config{
		Redis:              redis,
		BaseURL:            baseURL,
		UserAgent:          userAgent,
		RateLimitThreshold: 10,
		RespectExpires:     true,
		MaxRetries:         3,
		InitialBackoff:     1 * time.Second,
	}
}

// New creates a new marketplace API client.
func New(cfg Config) (*Client, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	logger := log.With().Str("component", "api-client").Logger()

	rateLimiter := ratelimit.NewTracker(cfg.Redis, logger)
	cacheManager := cache.NewManager(cfg.Redis)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "marketplace-api",
		Timeout: 15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})

	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		redis:       cfg.Redis,
		rateLimiter: rateLimiter,
		cache:       cacheManager,
		breaker:     breaker,
		config:      cfg,
		logger:      logger,
	}, nil
}

// Do performs an HTTP request with rate limiting, caching, circuit
// breaking, and retry. This is the core request method.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := req.URL.Path

	startTime := time.Now()
	defer func() {
		apiRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: Check rate limit budget
	allowed, err := c.rateLimiter.ShouldAllowRequest(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("Rate limit check failed")
		return nil, fmt.Errorf("rate limit check: %w", err)
	}
	if !allowed {
		c.logger.Warn().
			Str("endpoint", endpoint).
			Msg("Request blocked by rate limiter")
		apiRequestsTotal.WithLabelValues(endpoint, "rate_limited").Inc()
		return nil, ErrRateLimitBlocked
	}

	// Step 2: Check cache
	cacheKey := cache.Key{
		Endpoint:    endpoint,
		QueryParams: req.URL.Query(),
	}

	var cachedEntry *cache.Entry
	if req.Method == http.MethodGet {
		cachedEntry, err = c.cache.Get(ctx, cacheKey)
		if err != nil && err != cache.ErrCacheMiss {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}

		// Fresh cache hit: serve without touching the network.
		if cachedEntry != nil && !cachedEntry.IsExpired() {
			apiRequestsTotal.WithLabelValues(endpoint, "cache_hit").Inc()
			return cache.EntryToResponse(cachedEntry), nil
		}

		if cachedEntry != nil && cache.ShouldMakeConditionalRequest(cachedEntry) {
			cache.AddConditionalHeaders(req, cachedEntry)
			cache.ConditionalRequestsSent.Inc()
			c.logger.Debug().
				Str("endpoint", endpoint).
				Str("etag", cachedEntry.ETag).
				Msg("Making conditional request")
		}
	}

	// Step 3: Standard headers
	c.setHeaders(req)

	// Step 4: Execute with retry + circuit breaker
	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Msg("Executing API request")

	resp, err := c.execute(ctx, req, endpoint)
	if err != nil {
		return nil, err
	}

	// Step 5: 304 Not Modified - serve from cache
	if resp.StatusCode == http.StatusNotModified && cachedEntry != nil {
		c.logger.Debug().Str("endpoint", endpoint).Msg("304 Not Modified - using cache")
		apiRequestsTotal.WithLabelValues(endpoint, "304").Inc()
		cache.NotModifiedResponses.Inc()

		if expiresStr := resp.Header.Get("Expires"); expiresStr != "" {
			if newExpires, err := http.ParseTime(expiresStr); err == nil {
				if err := c.cache.UpdateTTL(ctx, cacheKey, newExpires); err != nil {
					c.logger.Warn().Err(err).Msg("Failed to update cache TTL")
				}
			}
		}

		resp.Body.Close()
		return cache.EntryToResponse(cachedEntry), nil
	}

	// Step 6: Update cache on success
	if req.Method == http.MethodGet && resp.StatusCode == http.StatusOK {
		entry, err := cache.ResponseToEntry(resp)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to create cache entry")
		} else {
			// The manager decides whether a stale entry is worth keeping
			// for conditional revalidation.
			if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to cache response")
			} else {
				c.logger.Debug().
					Str("endpoint", endpoint).
					Dur("ttl", entry.TTL()).
					Msg("Cached response")
			}
		}
	}

	return resp, nil
}

// execute runs the HTTP request through the circuit breaker with retry.
func (c *Client) execute(ctx context.Context, req *http.Request, endpoint string) (*http.Response, error) {
	var resp *http.Response
	var errClass ErrorClass

	retryErr := retryWithBackoff(ctx, func() error {
		result, execErr := c.breaker.Execute(func() (interface{}, error) {
			r, reqErr := c.httpClient.Do(req)
			if reqErr != nil {
				return nil, reqErr
			}

			// Update rate limit budget from headers on every response.
			if err := c.rateLimiter.UpdateFromHeaders(ctx, r.Header); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
			}

			// 5xx and 429 count as breaker failures.
			if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
				return r, &APIError{
					StatusCode: r.StatusCode,
					ErrorClass: c.classifyStatus(r.StatusCode),
					Message:    r.Status,
				}
			}
			return r, nil
		})

		if result != nil {
			resp = result.(*http.Response)
		}

		if execErr == nil {
			errClass = ""
			status := fmt.Sprintf("%d", resp.StatusCode)
			apiRequestsTotal.WithLabelValues(endpoint, status).Inc()
			if resp.StatusCode >= 400 && resp.StatusCode != http.StatusNotModified {
				// Non-retriable client error: let the caller handle the status.
				errClass = c.classifyStatus(resp.StatusCode)
				apiErrorsTotal.WithLabelValues(string(errClass)).Inc()
			}
			return nil
		}

		if execErr == gobreaker.ErrOpenState || execErr == gobreaker.ErrTooManyRequests {
			apiBreakerOpenTotal.Inc()
			apiRequestsTotal.WithLabelValues(endpoint, "breaker_open").Inc()
			errClass = ErrorClassServer
			return fmt.Errorf("%w: %v", ErrCircuitOpen, execErr)
		}

		errClass = c.classifyError(resp, execErr)
		apiErrorsTotal.WithLabelValues(string(errClass)).Inc()

		c.logger.Warn().
			Err(execErr).
			Str("endpoint", endpoint).
			Str("error_class", string(errClass)).
			Msg("API request error")

		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return execErr
	}, func() ErrorClass {
		return errClass
	})

	if retryErr != nil {
		return nil, retryErr
	}
	return resp, nil
}

// setHeaders applies the standard request headers.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.config.Token != nil {
		if token := c.config.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
}

// classifyError categorizes an error for observability and handling.
func (c *Client) classifyError(resp *http.Response, err error) ErrorClass {
	var apiErr *APIError
	if asAPIError(err, &apiErr) {
		return apiErr.ErrorClass
	}
	if err != nil {
		return ErrorClassNetwork
	}
	if resp == nil {
		return ErrorClassNetwork
	}
	return c.classifyStatus(resp.StatusCode)
}

// classifyStatus maps an HTTP status code to an error class.
func (c *Client) classifyStatus(statusCode int) ErrorClass {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case statusCode >= 400 && statusCode < 500:
		return ErrorClassClient
	case statusCode >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// Get performs a GET request to a marketplace API endpoint.
func (c *Client) Get(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	return c.Do(req)
}

// Close closes the client and releases resources.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// GetCache returns the cache manager (for testing).
func (c *Client) GetCache() *cache.Manager {
	return c.cache
}
