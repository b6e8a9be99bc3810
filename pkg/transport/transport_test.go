package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/hypermedia-labs/jsonapi-stream/pkg/ratelimit"
)

const bookPage = `{
	"data": [
		{"type": "books", "id": "1", "attributes": {"title": "Dune"}},
		{"type": "books", "id": "2", "attributes": {"title": "Hyperion"}}
	],
	"links": {"next": "/books?page=2"}
}`

// setupTestRedis starts an in-memory Redis and returns a client bound to it.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
	})

	return client
}

func newTestFetcher(t *testing.T, cfg Config) *Fetcher {
	t.Helper()

	f, err := New(cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return f
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid config",
			config:      DefaultConfig("TestApp/1.0.0 (test@example.com)"),
			expectError: false,
		},
		{
			name:        "empty user agent",
			config:      Config{},
			expectError: true,
			errorMsg:    "user-agent is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := New(tt.config)

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
				if f == nil {
					t.Error("Fetcher is nil")
				}
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	userAgent := "TestApp/1.0.0"
	cfg := DefaultConfig(userAgent)

	if cfg.UserAgent != userAgent {
		t.Errorf("UserAgent = %q, want %q", cfg.UserAgent, userAgent)
	}
	if cfg.RequestsPerSecond <= 0 {
		t.Errorf("RequestsPerSecond = %v, should be > 0", cfg.RequestsPerSecond)
	}
	if cfg.Timeout <= 0 {
		t.Errorf("Timeout = %v, should be > 0", cfg.Timeout)
	}
	if cfg.Redis != nil {
		t.Error("Redis should be nil by default (cache is opt-in)")
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		expected ErrorClass
	}{
		{"client error 404", 404, ErrorClassClient},
		{"client error 403", 403, ErrorClassClient},
		{"rate limit 429", 429, ErrorClassRateLimit},
		{"server error 500", 500, ErrorClassServer},
		{"server error 503", 503, ErrorClassServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyStatus(tt.status); got != tt.expected {
				t.Errorf("classifyStatus(%d) = %q, want %q", tt.status, got, tt.expected)
			}
		})
	}
}

func TestFetch_Success(t *testing.T) {
	var gotAccept, gotUserAgent, gotRequestID, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		gotUserAgent = r.Header.Get("User-Agent")
		gotRequestID = r.Header.Get("X-Request-ID")
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(bookPage))
	}))
	defer server.Close()

	f := newTestFetcher(t, DefaultConfig("TestApp/1.0.0"))

	doc, err := f.Fetch(context.Background(), server.URL+"/books")
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}

	items, err := doc.Resources()
	if err != nil {
		t.Fatalf("Resources() failed: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("Resources count = %d, want 2", len(items))
	}
	if items[0].ID != "1" || items[0].Type != "books" {
		t.Errorf("First resource = %s/%s, want books/1", items[0].Type, items[0].ID)
	}
	if doc.NextLink() != "/books?page=2" {
		t.Errorf("NextLink() = %q, want %q", doc.NextLink(), "/books?page=2")
	}

	if gotAccept != "application/vnd.api+json" {
		t.Errorf("Accept = %q, want application/vnd.api+json", gotAccept)
	}
	if gotUserAgent != "TestApp/1.0.0" {
		t.Errorf("User-Agent = %q, want TestApp/1.0.0", gotUserAgent)
	}
	if gotRequestID == "" {
		t.Error("X-Request-ID header missing")
	}
	if gotAuth != "" {
		t.Errorf("Authorization = %q, want empty without token", gotAuth)
	}
}

func TestFetch_BearerToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(bookPage))
	}))
	defer server.Close()

	cfg := DefaultConfig("TestApp/1.0.0")
	cfg.Token = "secret-token"
	f := newTestFetcher(t, cfg)

	if _, err := f.Fetch(context.Background(), server.URL+"/books"); err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}

	if gotAuth != "Bearer secret-token" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer secret-token")
	}
}

func TestFetch_ClientErrorNoRetry(t *testing.T) {
	attemptCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attemptCount++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := newTestFetcher(t, DefaultConfig("TestApp/1.0.0"))

	_, err := f.Fetch(context.Background(), server.URL+"/books/9")
	if err == nil {
		t.Fatal("Expected error, got nil")
	}

	var te *Error
	if !errors.As(err, &te) {
		t.Fatalf("Expected *Error, got %T: %v", err, err)
	}
	if te.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", te.StatusCode)
	}
	if te.Class != ErrorClassClient {
		t.Errorf("Class = %q, want %q", te.Class, ErrorClassClient)
	}

	// Should only attempt once (no retry for client errors)
	if attemptCount != 1 {
		t.Errorf("Expected 1 attempt (no retry for 4xx), got %d", attemptCount)
	}
}

func TestFetch_RetryOnServerError(t *testing.T) {
	// Server that fails twice, then succeeds
	attemptCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attemptCount++
		if attemptCount < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(bookPage))
	}))
	defer server.Close()

	f := newTestFetcher(t, DefaultConfig("TestApp/1.0.0"))

	doc, err := f.Fetch(context.Background(), server.URL+"/books")
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	if items, _ := doc.Resources(); len(items) != 2 {
		t.Errorf("Resources count = %d, want 2", len(items))
	}
	if attemptCount != 3 {
		t.Errorf("Expected 3 attempts (2 retries), got %d", attemptCount)
	}
}

func TestFetch_RetryExhausted(t *testing.T) {
	attemptCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attemptCount++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	f := newTestFetcher(t, DefaultConfig("TestApp/1.0.0"))

	_, err := f.Fetch(context.Background(), server.URL+"/books")
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Expected ErrRetryExhausted, got %v", err)
	}
	var te *Error
	if !errors.As(err, &te) {
		t.Fatal("Exhausted error should unwrap to *Error")
	}
	if te.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", te.StatusCode)
	}
	if attemptCount != 3 {
		t.Errorf("Expected 3 attempts, got %d", attemptCount)
	}
}

func TestFetch_MalformedBody(t *testing.T) {
	attemptCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attemptCount++
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	f := newTestFetcher(t, DefaultConfig("TestApp/1.0.0"))

	_, err := f.Fetch(context.Background(), server.URL+"/books")
	if err == nil {
		t.Fatal("Expected error, got nil")
	}

	var te *Error
	if !errors.As(err, &te) {
		t.Fatalf("Expected *Error, got %T: %v", err, err)
	}
	if te.Class != ErrorClassDecode {
		t.Errorf("Class = %q, want %q", te.Class, ErrorClassDecode)
	}
	if attemptCount != 1 {
		t.Errorf("Expected 1 attempt (no retry for decode errors), got %d", attemptCount)
	}
}

func TestFetch_ErrorDocumentIsNotTransportError(t *testing.T) {
	// A well-formed errors document decodes fine; it fails later, when the
	// engine unwraps it into resources.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"errors": [{"status": "403", "title": "Forbidden"}]}`))
	}))
	defer server.Close()

	f := newTestFetcher(t, DefaultConfig("TestApp/1.0.0"))

	doc, err := f.Fetch(context.Background(), server.URL+"/books")
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}

	if _, err := doc.Resources(); err == nil {
		t.Error("Resources() should fail for an errors document")
	}
}

func TestFetch_CacheServesFreshPage(t *testing.T) {
	requestCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		w.Header().Set("Expires", time.Now().Add(5*time.Minute).Format(http.TimeFormat))
		w.Header().Set("ETag", `"v1"`)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(bookPage))
	}))
	defer server.Close()

	cfg := DefaultConfig("TestApp/1.0.0")
	cfg.Redis = setupTestRedis(t)
	f := newTestFetcher(t, cfg)

	ctx := context.Background()
	url := server.URL + "/books"

	// First fetch hits the server and stores the page
	if _, err := f.Fetch(ctx, url); err != nil {
		t.Fatalf("First Fetch() failed: %v", err)
	}
	if requestCount != 1 {
		t.Fatalf("Request count after first fetch = %d, want 1", requestCount)
	}

	// Second fetch is served from cache without touching the network
	doc, err := f.Fetch(ctx, url)
	if err != nil {
		t.Fatalf("Second Fetch() failed: %v", err)
	}
	if requestCount != 1 {
		t.Errorf("Request count after cached fetch = %d, want 1", requestCount)
	}
	if items, _ := doc.Resources(); len(items) != 2 {
		t.Errorf("Cached page resources = %d, want 2", len(items))
	}
}

func TestFetch_ConditionalRequest304(t *testing.T) {
	requestCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++

		if r.Header.Get("If-None-Match") == `"v1"` {
			w.Header().Set("Expires", time.Now().Add(10*time.Minute).Format(http.TimeFormat))
			w.WriteHeader(http.StatusNotModified)
			return
		}

		// Short freshness so the second fetch must revalidate
		w.Header().Set("Expires", time.Now().Add(1*time.Second).Format(http.TimeFormat))
		w.Header().Set("ETag", `"v1"`)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(bookPage))
	}))
	defer server.Close()

	cfg := DefaultConfig("TestApp/1.0.0")
	cfg.Redis = setupTestRedis(t)
	f := newTestFetcher(t, cfg)

	ctx := context.Background()
	url := server.URL + "/books"

	if _, err := f.Fetch(ctx, url); err != nil {
		t.Fatalf("First Fetch() failed: %v", err)
	}

	// Let the cached page go stale
	time.Sleep(1200 * time.Millisecond)

	doc, err := f.Fetch(ctx, url)
	if err != nil {
		t.Fatalf("Revalidating Fetch() failed: %v", err)
	}

	if requestCount != 2 {
		t.Errorf("Request count = %d, want 2 (initial + conditional)", requestCount)
	}
	if items, _ := doc.Resources(); len(items) != 2 {
		t.Errorf("Revalidated page resources = %d, want 2", len(items))
	}
}

func TestFetch_UnsolicitedNotModified(t *testing.T) {
	// With no cache configured no validators are ever sent, so a 304 reply
	// has no body behind it and must surface as a server error.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
			t.Errorf("Unexpected conditional request: If-None-Match=%q", r.Header.Get("If-None-Match"))
		}
		w.WriteHeader(http.StatusNotModified)
	}))
	defer server.Close()

	f := newTestFetcher(t, DefaultConfig("TestApp/1.0.0"))

	_, err := f.Fetch(context.Background(), server.URL+"/books")
	if err == nil {
		t.Fatal("Expected error, got nil")
	}

	var te *Error
	if !errors.As(err, &te) {
		t.Fatalf("Expected *Error, got %T: %v", err, err)
	}
	if te.Class != ErrorClassServer {
		t.Errorf("Class = %q, want %q", te.Class, ErrorClassServer)
	}
	if te.StatusCode != http.StatusNotModified {
		t.Errorf("StatusCode = %d, want 304", te.StatusCode)
	}
}

func TestFetch_BudgetBlocked(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Request should not reach the server when the budget is critical")
	}))
	defer server.Close()

	redisClient := setupTestRedis(t)

	// Pre-populate Redis with critical budget state
	ctx := context.Background()
	now := time.Now()
	redisClient.Set(ctx, ratelimit.RedisKeyRemaining, 3, 0)
	redisClient.Set(ctx, ratelimit.RedisKeyResetTimestamp, now.Add(60*time.Second).Unix(), 0)
	lastUpdateJSON, _ := json.Marshal(now)
	redisClient.Set(ctx, ratelimit.RedisKeyLastUpdate, lastUpdateJSON, 0)

	cfg := DefaultConfig("TestApp/1.0.0")
	cfg.Redis = redisClient
	f := newTestFetcher(t, cfg)

	_, err := f.Fetch(ctx, server.URL+"/books")
	if err == nil {
		t.Fatal("Expected request to be blocked by budget gate")
	}
	if !errors.Is(err, ErrBudgetExhausted) {
		t.Errorf("Expected ErrBudgetExhausted, got %v", err)
	}
	var te *Error
	if !errors.As(err, &te) {
		t.Fatal("Budget block should unwrap to *Error")
	}
	if te.Class != ErrorClassRateLimit {
		t.Errorf("Class = %q, want %q", te.Class, ErrorClassRateLimit)
	}
}

func TestFetch_UpdatesBudgetFromHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "42")
		w.Header().Set("X-RateLimit-Reset", "60")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(bookPage))
	}))
	defer server.Close()

	redisClient := setupTestRedis(t)
	cfg := DefaultConfig("TestApp/1.0.0")
	cfg.Redis = redisClient
	f := newTestFetcher(t, cfg)

	ctx := context.Background()
	if _, err := f.Fetch(ctx, server.URL+"/books"); err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}

	remaining, err := redisClient.Get(ctx, ratelimit.RedisKeyRemaining).Int()
	if err != nil {
		t.Fatalf("Budget state not stored: %v", err)
	}
	if remaining != 42 {
		t.Errorf("Stored budget remaining = %d, want 42", remaining)
	}
}

func TestFetch_PacingDelaysSecondRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(bookPage))
	}))
	defer server.Close()

	cfg := DefaultConfig("TestApp/1.0.0")
	cfg.RequestsPerSecond = 1
	f := newTestFetcher(t, cfg)

	ctx := context.Background()
	if _, err := f.Fetch(ctx, server.URL+"/books"); err != nil {
		t.Fatalf("First Fetch() failed: %v", err)
	}

	start := time.Now()
	if _, err := f.Fetch(ctx, server.URL+"/books"); err != nil {
		t.Fatalf("Second Fetch() failed: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < 900*time.Millisecond {
		t.Errorf("Second request paced %v, want >= 900ms at 1 req/s", elapsed)
	}
}

func TestPathOf(t *testing.T) {
	tests := []struct {
		name     string
		rawurl   string
		expected string
	}{
		{"full url", "https://api.example.org/books?page=2", "/books"},
		{"nested path", "https://api.example.org/books/1/chapters", "/books/1/chapters"},
		{"no path", "https://api.example.org", "unknown"},
		{"unparseable", "://nope", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pathOf(tt.rawurl); got != tt.expected {
				t.Errorf("pathOf(%q) = %q, want %q", tt.rawurl, got, tt.expected)
			}
		})
	}
}
