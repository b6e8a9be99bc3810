// Package transport provides the HTTP layer below the pagination engine:
// it turns page URLs into parsed documents, with authentication, retry,
// client-side pacing, shared budget gating, and an optional Redis page
// cache.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/hypermedia-labs/jsonapi-stream/pkg/cache"
	"github.com/hypermedia-labs/jsonapi-stream/pkg/document"
	"github.com/hypermedia-labs/jsonapi-stream/pkg/logging"
	"github.com/hypermedia-labs/jsonapi-stream/pkg/ratelimit"
)

// Prometheus metrics for transport operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jsonapi_requests_total",
		Help: "Total page requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jsonapi_request_duration_seconds",
		Help:    "Page request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jsonapi_errors_total",
		Help: "Total transport errors by class",
	}, []string{"class"})
)

// Fetcher performs authenticated page GETs. Its Fetch method satisfies
// stream.FetchFunc.
type Fetcher struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *cache.Manager
	budget     *ratelimit.Tracker
	config     Config
	logger     zerolog.Logger
}

// Config holds the transport configuration.
type Config struct {
	// UserAgent identifies this client to the server.
	// Format: "AppName/Version (contact@example.com)"
	UserAgent string

	// Token is an optional bearer credential attached to every request.
	Token string

	// RequestsPerSecond paces outgoing requests client-side.
	// Zero disables pacing.
	RequestsPerSecond float64

	// Redis enables the page cache and the shared budget tracker when set.
	Redis *redis.Client

	// Timeout bounds each HTTP attempt.
	Timeout time.Duration

	// HTTPClient overrides the default HTTP client (for testing).
	HTTPClient *http.Client
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		UserAgent:         userAgent,
		RequestsPerSecond: 10,
		Timeout:           30 * time.Second,
	}
}

// New creates a new Fetcher.
func New(cfg Config) (*Fetcher, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	logger := logging.NewLogger("transport")

	f := &Fetcher{
		httpClient: cfg.HTTPClient,
		config:     cfg,
		logger:     logger,
	}

	if f.httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		f.httpClient = &http.Client{Timeout: timeout}
	}

	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	if cfg.Redis != nil {
		f.cache = cache.NewManager(cfg.Redis)
		f.budget = ratelimit.NewTracker(cfg.Redis, logging.NewLogger("rate-budget"))
	}

	return f, nil
}

// Fetch performs an authenticated GET of one page URL and decodes the
// response into a document. Every failure unwraps to *Error.
func (f *Fetcher) Fetch(ctx context.Context, rawurl string) (*document.Document, error) {
	endpoint := pathOf(rawurl)

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: Client-side pacing
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("request pacing: %w", err)
		}
	}

	// Step 2: Shared budget gate
	if f.budget != nil {
		allowed, err := f.budget.ShouldAllowRequest(ctx)
		if err != nil {
			f.logger.Error().Err(err).Msg("Budget check failed")
			return nil, fmt.Errorf("budget check: %w", err)
		}
		if !allowed {
			f.logger.Warn().
				Str("url", rawurl).
				Msg("Request blocked by budget gate")
			requestsTotal.WithLabelValues(endpoint, "budget_blocked").Inc()
			return nil, &Error{
				Class:   ErrorClassRateLimit,
				URL:     rawurl,
				Message: "request blocked: server budget critical",
				Err:     ErrBudgetExhausted,
			}
		}
	}

	// Step 3: Cache lookup; fresh pages skip the network entirely
	var (
		cacheKey    cache.Key
		cachedEntry *cache.Entry
	)
	if f.cache != nil {
		cacheKey = cache.NewKey(rawurl)

		entry, err := f.cache.Get(ctx, cacheKey)
		if err != nil && err != cache.ErrCacheMiss {
			f.logger.Warn().Err(err).Str("url", rawurl).Msg("Cache get error")
		}
		cachedEntry = entry

		if cachedEntry != nil && !cachedEntry.IsExpired() {
			f.logger.Debug().Str("url", rawurl).Msg("Page served from cache")
			requestsTotal.WithLabelValues(endpoint, "cache_hit").Inc()
			return decodeDocument(rawurl, cachedEntry.Body)
		}
	}

	// Step 4: Build request
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return nil, &Error{
			Class:   ErrorClassClient,
			URL:     rawurl,
			Message: "create request",
			Err:     err,
		}
	}
	req.Header.Set("Accept", "application/vnd.api+json")
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if f.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+f.config.Token)
	}

	// Step 5: Revalidate a stale cached page with a conditional request
	if cachedEntry != nil && cache.CanRevalidate(cachedEntry) {
		cache.AddValidators(req, cachedEntry)
		cache.ConditionalRequestsSent.Inc()
		f.logger.Debug().
			Str("url", rawurl).
			Str("etag", cachedEntry.ETag).
			Msg("Making conditional request")
	}

	// Step 6: Execute with retry
	f.logger.Debug().
		Str("url", rawurl).
		Str("request_id", req.Header.Get("X-Request-ID")).
		Msg("Fetching page")

	var (
		resp *http.Response
		body []byte
	)
	retryErr := retryWithBackoff(ctx, f.logger, func() error {
		var attemptErr error
		resp, body, attemptErr = f.doAttempt(ctx, req, endpoint)
		return attemptErr
	})
	if retryErr != nil {
		return nil, retryErr
	}

	// Step 7: 304 Not Modified serves the revalidated cached page
	if resp.StatusCode == http.StatusNotModified {
		// Validators go out only when a cached entry exists; a 304 without
		// one has no body to serve and is a protocol violation.
		if cachedEntry == nil {
			f.logger.Warn().Str("url", rawurl).Msg("Unexpected 304 without a conditional request")
			errorsTotal.WithLabelValues(string(ErrorClassServer)).Inc()
			requestsTotal.WithLabelValues(endpoint, "304").Inc()
			return nil, &Error{
				StatusCode: http.StatusNotModified,
				Class:      ErrorClassServer,
				URL:        rawurl,
				Message:    "unexpected 304 to an unconditional request",
			}
		}

		f.logger.Debug().Str("url", rawurl).Msg("304 Not Modified - using cached page")
		requestsTotal.WithLabelValues(endpoint, "304").Inc()
		cache.NotModifiedResponses.Inc()

		// Extend the entry's lifetime from the new expires header
		if expiresStr := resp.Header.Get("Expires"); expiresStr != "" {
			if newExpires, err := http.ParseTime(expiresStr); err == nil {
				if err := f.cache.UpdateTTL(ctx, cacheKey, newExpires); err != nil {
					f.logger.Warn().Err(err).Msg("Failed to update cache TTL")
				}
			}
		}

		return decodeDocument(rawurl, cachedEntry.Body)
	}

	// Step 8: Store the fresh page
	if f.cache != nil && resp.StatusCode == http.StatusOK {
		entry := cache.EntryFromResponse(resp, body)
		if entry.TTL() > 0 {
			if err := f.cache.Set(ctx, cacheKey, entry); err != nil {
				f.logger.Warn().Err(err).Msg("Failed to cache page")
			} else {
				f.logger.Debug().
					Str("url", rawurl).
					Dur("ttl", entry.TTL()).
					Msg("Cached page")
			}
		}
	}

	return decodeDocument(rawurl, body)
}

// doAttempt executes one HTTP attempt and classifies its failure. On
// success the response body has been fully read and closed.
func (f *Fetcher) doAttempt(ctx context.Context, req *http.Request, endpoint string) (*http.Response, []byte, error) {
	resp, err := f.httpClient.Do(req)
	if err != nil {
		f.logger.Error().Err(err).Str("url", req.URL.String()).Msg("HTTP request failed")
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, nil, &Error{
			Class:   ErrorClassNetwork,
			URL:     req.URL.String(),
			Message: "request failed",
			Err:     err,
		}
	}

	// Update the shared budget from response headers
	if f.budget != nil {
		if err := f.budget.UpdateFromHeaders(ctx, resp.Header); err != nil {
			f.logger.Warn().Err(err).Msg("Failed to update budget from headers")
		}
	}

	// 304 Not Modified is a success for conditional requests
	if resp.StatusCode == http.StatusNotModified {
		resp.Body.Close()
		return resp, nil, nil
	}

	if resp.StatusCode >= 400 {
		class := classifyStatus(resp.StatusCode)
		errorsTotal.WithLabelValues(string(class)).Inc()
		requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

		f.logger.Warn().
			Str("url", req.URL.String()).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Page request error")

		resp.Body.Close()
		return nil, nil, &Error{
			StatusCode: resp.StatusCode,
			Class:      class,
			URL:        req.URL.String(),
			Message:    resp.Status,
		}
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, nil, &Error{
			Class:   ErrorClassNetwork,
			URL:     req.URL.String(),
			Message: "read body",
			Err:     err,
		}
	}

	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
	return resp, body, nil
}

// classifyStatus categorizes a non-2xx HTTP status.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	default:
		return ErrorClassServer
	}
}

// decodeDocument parses a page body into a document.
func decodeDocument(rawurl string, body []byte) (*document.Document, error) {
	var doc document.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		return nil, &Error{
			Class:   ErrorClassDecode,
			URL:     rawurl,
			Message: "malformed document body",
			Err:     err,
		}
	}
	return &doc, nil
}

// pathOf extracts the URL path for the endpoint metric label, keeping
// query strings out of the label set.
func pathOf(rawurl string) string {
	u, err := url.Parse(rawurl)
	if err != nil || u.Path == "" {
		return "unknown"
	}
	return u.Path
}
