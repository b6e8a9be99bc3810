package stream

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/hypermedia-labs/jsonapi-stream/pkg/document"
)

// Unlimited removes the element cap when used as a limit.
const Unlimited = -1

// FetchFunc fetches and parses one page document by URL. The transport
// package provides production implementations; tests substitute in-memory
// sources.
type FetchFunc func(ctx context.Context, url string) (*document.Document, error)

// PullState reports the outcome of a TryPull call.
type PullState int

const (
	// StatePulled means an element was produced.
	StatePulled PullState = iota

	// StatePending means a page fetch is in flight and no element is
	// available yet. Wait blocks until the fetch resolves.
	StatePending

	// StateExhausted means no element can be produced right now: the chain
	// ended, or the cap was reached. CanContinue distinguishes the two.
	StateExhausted

	// StateFailed means the pull failed; the error return carries the cause.
	StateFailed
)

// String implements fmt.Stringer for log and test output.
func (ps PullState) String() string {
	switch ps {
	case StatePulled:
		return "pulled"
	case StatePending:
		return "pending"
	case StateExhausted:
		return "exhausted"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Config holds the sequence configuration.
type Config struct {
	// Fetch retrieves one page document by URL. Required.
	Fetch FetchFunc

	// StartURL is the first page of the link chain. An empty StartURL
	// yields an empty sequence.
	StartURL string

	// Limit caps how many elements the sequence will yield; Unlimited (-1)
	// removes the cap. The zero value caps the sequence at zero elements,
	// so callers that want uncapped streaming must pass Unlimited.
	Limit int

	// Relationships declares which relationship fields Consume expands
	// into nested sequences.
	Relationships []RelationshipSpec

	// Logger receives page-level debug events. The zero value discards them.
	Logger zerolog.Logger
}

// Sequence is a lazy, demand-driven stream of resources across the pages
// of one next-link chain. Elements are produced only on demand; at most
// one page fetch is in flight at any time, and the page after the one
// currently draining is fetched ahead as soon as its link is known.
//
// A Sequence is not safe for concurrent use. All pulls must come from a
// single goroutine; the fetch result channel is the only internal
// cross-goroutine edge.
type Sequence struct {
	fetch    FetchFunc
	log      zerolog.Logger
	relSpecs []RelationshipSpec

	limit     int
	delivered int
	buffer    []*document.Resource
	nextLink  string
	inFlight  map[string]struct{}
	results   chan fetchResult

	pullErr error // transient fetch failure, consumed by the next pull
	failErr error // permanent failure, set by NewFailed

	pagesFetched     int
	resourcesFetched int
}

type fetchResult struct {
	url string
	doc *document.Document
	err error
}

// New creates a Sequence over the page chain starting at cfg.StartURL.
// Nothing is fetched until the first pull.
func New(cfg Config) *Sequence {
	return &Sequence{
		fetch:    cfg.Fetch,
		log:      cfg.Logger,
		relSpecs: cfg.Relationships,
		limit:    cfg.Limit,
		nextLink: cfg.StartURL,
		inFlight: make(map[string]struct{}),
		results:  make(chan fetchResult, 1),
	}
}

// NewFailed creates a permanently failed Sequence: every pull reports err
// and CanContinue is false. It stands in for collections that could not
// be constructed at all, such as a relationship without a related link.
func NewFailed(err error) *Sequence {
	return &Sequence{failErr: err}
}

// TryPull attempts to produce the next element without blocking.
//
// StatePulled carries the element. StatePending means a page fetch is in
// flight and the caller should Wait. StateExhausted means the cap was
// reached or the chain ended; CanContinue tells which. StateFailed carries
// the pull's error. After a fetch failure the sequence stays usable: the
// in-flight marker is cleared and the next pull retries the same link.
func (s *Sequence) TryPull(ctx context.Context) (*document.Resource, PullState, error) {
	if s.failErr != nil {
		return nil, StateFailed, s.failErr
	}

	if !s.capWants(s.delivered) {
		return nil, StateExhausted, nil
	}

	// Integrating only on an empty buffer keeps fetching exactly one page
	// ahead of consumption.
	if len(s.buffer) == 0 {
		s.integrate(ctx)
		if s.pullErr != nil {
			err := s.pullErr
			s.pullErr = nil
			return nil, StateFailed, err
		}
	}

	if len(s.buffer) > 0 {
		res := s.buffer[0]
		s.buffer = s.buffer[1:]
		s.delivered++
		resourcesDeliveredTotal.Inc()
		return res, StatePulled, nil
	}

	if len(s.inFlight) > 0 {
		return nil, StatePending, nil
	}

	if s.nextLink == "" {
		return nil, StateExhausted, nil
	}

	s.launch(ctx, s.nextLink)
	return nil, StatePending, nil
}

// Wait blocks until the in-flight page fetch resolves and folds it into
// the sequence, or until ctx is done. It returns immediately when nothing
// is in flight. Fetch failures are not reported here; they surface on the
// next pull.
func (s *Sequence) Wait(ctx context.Context) error {
	if s.failErr != nil || len(s.inFlight) == 0 {
		return nil
	}
	select {
	case r := <-s.results:
		s.merge(ctx, r)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next pulls the next element, blocking while pages are fetched. The
// boolean is false when no further element can be produced, whether the
// chain ended or the cap was reached.
func (s *Sequence) Next(ctx context.Context) (*document.Resource, bool, error) {
	for {
		res, state, err := s.TryPull(ctx)
		switch state {
		case StatePulled:
			return res, true, nil
		case StatePending:
			if err := s.Wait(ctx); err != nil {
				return nil, false, err
			}
		case StateExhausted:
			return nil, false, nil
		default:
			return nil, false, err
		}
	}
}

// CanContinue reports whether more elements may still be produced: the
// buffer is non-empty, a fetch is in flight, or a next-page link is known.
// The cap is ignored, so a cap-exhausted sequence with a known next link
// reports true and AddMore resumes it.
func (s *Sequence) CanContinue() bool {
	if s.failErr != nil {
		return false
	}
	return len(s.buffer) > 0 || len(s.inFlight) > 0 || s.nextLink != ""
}

// AddMore raises the element cap by n, letting a cap-exhausted sequence
// resume without refetching already-buffered pages. Any n < 0 removes the
// cap entirely. On an uncapped sequence AddMore is a no-op.
func (s *Sequence) AddMore(n int) {
	if s.limit < 0 {
		return
	}
	if n < 0 {
		s.limit = Unlimited
		return
	}
	s.limit += n
}

// capWants reports whether the cap still allows yields beyond claimed
// elements.
func (s *Sequence) capWants(claimed int) bool {
	return s.limit < 0 || claimed < s.limit
}

// integrate folds a completed fetch into the sequence without blocking.
func (s *Sequence) integrate(ctx context.Context) {
	select {
	case r := <-s.results:
		s.merge(ctx, r)
	default:
	}
}

// merge applies one fetch result: it clears the in-flight marker, advances
// the next link, appends the page's resources to the buffer, and launches
// the read-ahead fetch for the new link when the cap still wants more than
// is already claimed or buffered.
func (s *Sequence) merge(ctx context.Context, r fetchResult) {
	delete(s.inFlight, r.url)

	if r.err != nil {
		s.pullErr = r.err
		fetchErrorsTotal.Inc()
		s.log.Debug().Str("url", r.url).Err(r.err).Msg("Page fetch failed")
		return
	}

	items, err := r.doc.Resources()
	if err != nil {
		s.pullErr = err
		fetchErrorsTotal.Inc()
		s.log.Debug().Str("url", r.url).Err(err).Msg("Page unwrap failed")
		return
	}

	s.nextLink = r.doc.NextLink()
	s.buffer = append(s.buffer, items...)
	s.pagesFetched++
	s.resourcesFetched += len(items)
	pagesFetchedTotal.Inc()

	s.log.Debug().
		Str("url", r.url).
		Int("resources", len(items)).
		Int("pages", s.pagesFetched).
		Str("next", s.nextLink).
		Msg("Page integrated")

	if s.nextLink != "" && s.capWants(s.delivered+len(s.buffer)) {
		s.launch(ctx, s.nextLink)
	}
}

// launch starts fetching url unless that url is already in flight.
func (s *Sequence) launch(ctx context.Context, url string) {
	if _, ok := s.inFlight[url]; ok {
		return
	}
	s.inFlight[url] = struct{}{}

	s.log.Debug().Str("url", url).Msg("Fetching page")

	go func() {
		doc, err := s.fetch(ctx, url)
		s.results <- fetchResult{url: url, doc: doc, err: err}
	}()
}
