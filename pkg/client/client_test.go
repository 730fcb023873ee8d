package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// setupTestRedis creates a test Redis client.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	// Flush test DB
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestNew_Validation(t *testing.T) {
	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer redisClient.Close()

	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name: "valid config",
			config: Config{
				Redis:     redisClient,
				BaseURL:   "https://api.example.com",
				UserAgent: "TestApp/1.0.0 (test@example.com)",
			},
			expectError: false,
		},
		{
			name: "nil redis",
			config: Config{
				BaseURL:   "https://api.example.com",
				UserAgent: "TestApp/1.0.0",
			},
			expectError: true,
			errorMsg:    "redis client is required",
		},
		{
			name: "empty base URL",
			config: Config{
				Redis:     redisClient,
				UserAgent: "TestApp/1.0.0",
			},
			expectError: true,
			errorMsg:    "base URL is required",
		},
		{
			name: "empty user agent",
			config: Config{
				Redis:   redisClient,
				BaseURL: "https://api.example.com",
			},
			expectError: true,
			errorMsg:    "user-agent is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.config)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got nil")
					return
				}
				if tt.errorMsg != "" && err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
					return
				}
				if client == nil {
					t.Error("Client is nil")
				}
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer redisClient.Close()

	userAgent := "TestApp/1.0.0"
	cfg := DefaultConfig(redisClient, "https://api.example.com", userAgent)

	if cfg.Redis != redisClient {
		t.Error("Redis client not set correctly")
	}
	if cfg.BaseURL != "https://api.example.com" {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, "https://api.example.com")
	}
	if cfg.UserAgent != userAgent {
		t.Errorf("UserAgent = %q, want %q", cfg.UserAgent, userAgent)
	}
	if !cfg.RespectExpires {
		t.Error("RespectExpires should be true")
	}
	if cfg.RateLimitThreshold <= 0 {
		t.Errorf("RateLimitThreshold = %d, should be > 0", cfg.RateLimitThreshold)
	}
	if cfg.MaxRetries <= 0 {
		t.Errorf("MaxRetries = %d, should be > 0", cfg.MaxRetries)
	}
}

func TestClassifyError(t *testing.T) {
	logger := zerolog.Nop()

	client := &Client{
		logger: logger,
	}

	tests := []struct {
		name       string
		statusCode int
		err        error
		expected   ErrorClass
	}{
		{
			name:       "network error",
			statusCode: 0,
			err:        io.EOF,
			expected:   ErrorClassNetwork,
		},
		{
			name:       "client error 404",
			statusCode: 404,
			err:        nil,
			expected:   ErrorClassClient,
		},
		{
			name:       "client error 403",
			statusCode: 403,
			err:        nil,
			expected:   ErrorClassClient,
		},
		{
			name:       "server error 500",
			statusCode: 500,
			err:        nil,
			expected:   ErrorClassServer,
		},
		{
			name:       "server error 503",
			statusCode: 503,
			err:        nil,
			expected:   ErrorClassServer,
		},
		{
			name:       "rate limit 429",
			statusCode: 429,
			err:        nil,
			expected:   ErrorClassRateLimit,
		},
		{
			name:       "api error carries class",
			statusCode: 0,
			err:        &APIError{StatusCode: 429, ErrorClass: ErrorClassRateLimit},
			expected:   ErrorClassRateLimit,
		},
		{
			name:       "success 200",
			statusCode: 200,
			err:        nil,
			expected:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp *http.Response
			if tt.statusCode > 0 {
				resp = &http.Response{
					StatusCode: tt.statusCode,
				}
			}

			result := client.classifyError(resp, tt.err)
			if result != tt.expected {
				t.Errorf("classifyError() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestDo_StandardHeadersSet(t *testing.T) {
	redisClient := setupTestRedis(t)

	var received http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = r.Header.Clone()
		w.Header().Set("X-RateLimit-Remaining", "100")
		w.Header().Set("X-RateLimit-Reset", "60")
		w.Header().Set("Expires", time.Now().Add(5*time.Minute).Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"test": "data"}`))
	}))
	defer server.Close()

	cfg := DefaultConfig(redisClient, server.URL, "TestApp/1.0.0 (test@example.com)")
	cfg.Token = func() string { return "token-abc" }
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	req, _ := http.NewRequest("GET", server.URL+"/test", nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() failed: %v", err)
	}
	resp.Body.Close()

	if got := received.Get("User-Agent"); got != cfg.UserAgent {
		t.Errorf("User-Agent = %q, want %q", got, cfg.UserAgent)
	}
	if got := received.Get("Authorization"); got != "Bearer token-abc" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer token-abc")
	}
	if received.Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header not set")
	}
}

func TestDo_RateLimitBlock(t *testing.T) {
	redisClient := setupTestRedis(t)

	// Pre-populate the shared budget hash with a critical snapshot
	ctx := context.Background()
	now := time.Now()
	redisClient.HSet(ctx, "mp:rate_limit", map[string]interface{}{
		"remaining":  3,
		"reset_at":   now.Add(60 * time.Second).Unix(),
		"updated_at": now.Unix(),
	})

	cfg := DefaultConfig(redisClient, "http://example.com", "TestApp/1.0.0")
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	req, _ := http.NewRequest("GET", "http://example.com/test", nil)
	_, err = client.Do(req)

	if err == nil {
		t.Error("Expected request to be blocked by rate limiter")
	}
	if !errors.Is(err, ErrRateLimitBlocked) {
		t.Errorf("Error = %v, want ErrRateLimitBlocked", err)
	}
}

func TestDo_FreshCacheHitSkipsNetwork(t *testing.T) {
	redisClient := setupTestRedis(t)

	requestCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		w.Header().Set("X-RateLimit-Remaining", "100")
		w.Header().Set("X-RateLimit-Reset", "60")
		w.Header().Set("Expires", time.Now().Add(5*time.Minute).Format(http.TimeFormat))
		w.Header().Set("ETag", `"abc123"`)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"test": "data"}`))
	}))
	defer server.Close()

	cfg := DefaultConfig(redisClient, server.URL, "TestApp/1.0.0")
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	// First request - should hit server
	req1, _ := http.NewRequest("GET", server.URL+"/test", nil)
	resp1, err := client.Do(req1)
	if err != nil {
		t.Fatalf("First request failed: %v", err)
	}
	body1, _ := io.ReadAll(resp1.Body)
	resp1.Body.Close()

	if requestCount != 1 {
		t.Errorf("Request count after first request = %d, want 1", requestCount)
	}

	// Second request - entry is still fresh, must be served from cache
	req2, _ := http.NewRequest("GET", server.URL+"/test", nil)
	resp2, err := client.Do(req2)
	if err != nil {
		t.Fatalf("Second request failed: %v", err)
	}
	body2, _ := io.ReadAll(resp2.Body)
	resp2.Body.Close()

	if requestCount != 1 {
		t.Errorf("Request count after cached request = %d, want 1", requestCount)
	}
	if string(body1) != string(body2) {
		t.Errorf("Cached body = %q, want %q", body2, body1)
	}
	if resp2.Header.Get("ETag") != `"abc123"` {
		t.Errorf("Cached ETag = %q, want %q", resp2.Header.Get("ETag"), `"abc123"`)
	}
}

func TestDo_Handle304NotModified(t *testing.T) {
	redisClient := setupTestRedis(t)

	requestCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		w.Header().Set("X-RateLimit-Remaining", "100")
		w.Header().Set("X-RateLimit-Reset", "60")

		// Check for conditional request header
		if r.Header.Get("If-None-Match") == `"abc123"` {
			w.Header().Set("Expires", time.Now().Add(10*time.Minute).Format(http.TimeFormat))
			w.WriteHeader(http.StatusNotModified)
			return
		}

		// First request - return full response with a short lifetime
		w.Header().Set("Expires", time.Now().Add(1*time.Second).Format(http.TimeFormat))
		w.Header().Set("ETag", `"abc123"`)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"test": "data"}`))
	}))
	defer server.Close()

	cfg := DefaultConfig(redisClient, server.URL, "TestApp/1.0.0")
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	// First request
	req1, _ := http.NewRequest("GET", server.URL+"/test", nil)
	resp1, err := client.Do(req1)
	if err != nil {
		t.Fatalf("First request failed: %v", err)
	}
	resp1.Body.Close()

	if resp1.StatusCode != http.StatusOK {
		t.Errorf("First response status = %d, want %d", resp1.StatusCode, http.StatusOK)
	}

	// Wait until the entry is stale so a conditional request is made
	time.Sleep(1200 * time.Millisecond)

	req2, _ := http.NewRequest("GET", server.URL+"/test", nil)
	resp2, err := client.Do(req2)
	if err != nil {
		t.Fatalf("Second request failed: %v", err)
	}
	body2, _ := io.ReadAll(resp2.Body)
	resp2.Body.Close()

	if requestCount != 2 {
		t.Errorf("Request count = %d, want 2 (second must revalidate)", requestCount)
	}
	// The client serves the cached body when the server answers 304
	if resp2.StatusCode != http.StatusOK {
		t.Errorf("Second response status = %d, want %d", resp2.StatusCode, http.StatusOK)
	}
	if string(body2) != `{"test": "data"}` {
		t.Errorf("Body after 304 = %q, want cached body", body2)
	}
}

func TestGet(t *testing.T) {
	redisClient := setupTestRedis(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "100")
		w.Header().Set("X-RateLimit-Reset", "60")
		w.Header().Set("Expires", time.Now().Add(5*time.Minute).Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"test": "data"}`))
	}))
	defer server.Close()

	cfg := DefaultConfig(redisClient, server.URL, "TestApp/1.0.0")
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	resp, err := client.Get(context.Background(), "/test")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestDo_RetryOnServerError(t *testing.T) {
	redisClient := setupTestRedis(t)

	// Server that fails twice, then succeeds
	attemptCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attemptCount++
		w.Header().Set("X-RateLimit-Remaining", "100")
		w.Header().Set("X-RateLimit-Reset", "60")

		if attemptCount < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Expires", time.Now().Add(5*time.Minute).Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"success": true}`))
	}))
	defer server.Close()

	cfg := DefaultConfig(redisClient, server.URL, "TestApp/1.0.0")
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	req, _ := http.NewRequest("GET", server.URL+"/test", nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200 after retry, got %d", resp.StatusCode)
	}
	if attemptCount != 3 {
		t.Errorf("Expected 3 attempts (2 retries), got %d", attemptCount)
	}
}

func TestDo_NoRetryOnClientError(t *testing.T) {
	redisClient := setupTestRedis(t)

	// Server that always returns 404
	attemptCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attemptCount++
		w.Header().Set("X-RateLimit-Remaining", "100")
		w.Header().Set("X-RateLimit-Reset", "60")
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	cfg := DefaultConfig(redisClient, server.URL, "TestApp/1.0.0")
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	req, _ := http.NewRequest("GET", server.URL+"/test", nil)
	resp, err := client.Do(req)

	// Should not error out, but return the 404 response
	if err != nil {
		t.Fatalf("Do() failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.StatusCode)
	}
	// Should only attempt once (no retry for client errors)
	if attemptCount != 1 {
		t.Errorf("Expected 1 attempt (no retry for 4xx), got %d", attemptCount)
	}
}

func TestDo_RetryOnRateLimit(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping rate limit backoff test in short mode")
	}

	redisClient := setupTestRedis(t)

	// Server that returns 429 once, then succeeds
	attemptCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attemptCount++
		w.Header().Set("X-RateLimit-Remaining", "100")
		w.Header().Set("X-RateLimit-Reset", "60")

		if attemptCount == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		w.Header().Set("Expires", time.Now().Add(5*time.Minute).Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"success": true}`))
	}))
	defer server.Close()

	cfg := DefaultConfig(redisClient, server.URL, "TestApp/1.0.0")
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	req, _ := http.NewRequest("GET", server.URL+"/test", nil)

	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)

	if err != nil {
		t.Fatalf("Do() failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200 after retry, got %d", resp.StatusCode)
	}
	if attemptCount != 2 {
		t.Errorf("Expected 2 attempts (1 retry), got %d", attemptCount)
	}

	// Rate limit retry should have waited (initial backoff is 5s, with jitter it's 4-6s)
	if duration < 3*time.Second {
		t.Errorf("Expected at least 3s delay for rate limit retry, got %v", duration)
	}
}

func TestDo_RetryExhausted(t *testing.T) {
	redisClient := setupTestRedis(t)

	// Server that always fails with 500
	attemptCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attemptCount++
		w.Header().Set("X-RateLimit-Remaining", "100")
		w.Header().Set("X-RateLimit-Reset", "60")
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := DefaultConfig(redisClient, server.URL, "TestApp/1.0.0")
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	req, _ := http.NewRequest("GET", server.URL+"/test", nil)
	_, err = client.Do(req)

	// Should fail with retry exhausted error
	if err == nil {
		t.Error("Expected error, got nil")
	}
	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Expected ErrRetryExhausted, got %v", err)
	}
	// Should attempt 3 times (max attempts)
	if attemptCount != 3 {
		t.Errorf("Expected 3 attempts, got %d", attemptCount)
	}
}
