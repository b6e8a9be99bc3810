// Package client provides the top-level API client: one-time root
// link-table resolution, single-resource fetch by id, and lazy collection
// sequences over the pagination engine.
package client

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hypermedia-labs/jsonapi-stream/pkg/document"
	"github.com/hypermedia-labs/jsonapi-stream/pkg/logging"
	"github.com/hypermedia-labs/jsonapi-stream/pkg/stream"
	"github.com/hypermedia-labs/jsonapi-stream/pkg/transport"
)

// Client resolves resource types against the API's root link table and
// hands out lazy sequences over its collections.
//
// The root document is fetched once, on the first call that needs it, and
// the resolved table is read-only for the client's lifetime. A failed
// resolution is not memoized; the next call retries.
type Client struct {
	fetch   stream.FetchFunc
	baseURL string
	logger  zerolog.Logger

	mu       sync.Mutex
	links    document.Links
	resolved bool
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the API root. Its document's links member names every
	// collection this client can resolve. Required.
	BaseURL string

	// Transport configures the HTTP fetcher below the engine.
	Transport transport.Config
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL, userAgent string) Config {
	return Config{
		BaseURL:   baseURL,
		Transport: transport.DefaultConfig(userAgent),
	}
}

// New creates a new Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	fetcher, err := transport.New(cfg.Transport)
	if err != nil {
		return nil, err
	}

	return &Client{
		fetch:   fetcher.Fetch,
		baseURL: cfg.BaseURL,
		logger:  logging.NewLogger("client"),
	}, nil
}

// Get fetches a single resource by type and id.
func (c *Client) Get(ctx context.Context, resourceType, id string) (*document.Resource, error) {
	collection, err := c.resolve(ctx, resourceType)
	if err != nil {
		return nil, err
	}

	target, err := url.JoinPath(collection, id)
	if err != nil {
		return nil, fmt.Errorf("building resource URL: %w", err)
	}

	doc, err := c.fetch(ctx, target)
	if err != nil {
		return nil, err
	}
	return doc.One()
}

// All returns a lazy sequence over every resource of the given type.
// Nothing is fetched from the collection until the first pull; only the
// root link table may be fetched here, on the client's first resolution.
func (c *Client) All(ctx context.Context, resourceType string, opts ...Option) (*stream.Sequence, error) {
	settings := defaultOptions()
	for _, opt := range opts {
		opt(&settings)
	}

	collection, err := c.resolve(ctx, resourceType)
	if err != nil {
		return nil, err
	}

	start, err := settings.query.Apply(collection)
	if err != nil {
		return nil, fmt.Errorf("building collection URL: %w", err)
	}

	return stream.New(stream.Config{
		Fetch:         c.fetch,
		StartURL:      start,
		Limit:         settings.limit,
		Relationships: settings.relationships,
		Logger:        c.logger,
	}), nil
}

// resolve maps a resource type to its collection URL via the root link
// table. Relative hrefs are made absolute against the base URL.
func (c *Client) resolve(ctx context.Context, resourceType string) (string, error) {
	links, err := c.rootLinks(ctx)
	if err != nil {
		return "", err
	}

	href, ok := links[resourceType]
	if !ok {
		return "", &UnknownTypeError{Type: resourceType}
	}

	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", c.baseURL, err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("invalid link for type %q: %w", resourceType, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// rootLinks returns the root link table, fetching the root document on
// first use. Only success is memoized.
func (c *Client) rootLinks(ctx context.Context) (document.Links, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.resolved {
		return c.links, nil
	}

	doc, err := c.fetch(ctx, c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("resolving root links: %w", err)
	}
	if len(doc.Errors) > 0 {
		return nil, &document.Error{Errors: doc.Errors}
	}
	if len(doc.Links) == 0 {
		return nil, fmt.Errorf("root document at %s carries no links", c.baseURL)
	}

	c.links = doc.Links
	c.resolved = true

	c.logger.Info().
		Str("base_url", c.baseURL).
		Int("links", len(c.links)).
		Msg("Root link table resolved")

	return c.links, nil
}
