package stream

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hypermedia-labs/jsonapi-stream/pkg/document"
)

// pageSource serves page documents from memory. It records per-URL call
// counts and the maximum number of fetches ever active for the same URL,
// and optionally signals each fetch on the fired channel.
type pageSource struct {
	mu            sync.Mutex
	pages         map[string]*document.Document
	errs          map[string]error // one-shot: consumed by the first fetch
	calls         map[string]int
	active        map[string]int
	maxSameActive int
	fired         chan string
}

func newPageSource() *pageSource {
	return &pageSource{
		pages:  make(map[string]*document.Document),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
		active: make(map[string]int),
	}
}

func (ps *pageSource) add(url string, doc *document.Document) {
	ps.pages[url] = doc
}

func (ps *pageSource) failOnce(url string, err error) {
	ps.errs[url] = err
}

func (ps *pageSource) fetch(ctx context.Context, url string) (*document.Document, error) {
	ps.mu.Lock()
	ps.calls[url]++
	ps.active[url]++
	if ps.active[url] > ps.maxSameActive {
		ps.maxSameActive = ps.active[url]
	}
	err, failing := ps.errs[url]
	if failing {
		delete(ps.errs, url)
	}
	doc := ps.pages[url]
	fired := ps.fired
	ps.mu.Unlock()

	if fired != nil {
		fired <- url
	}

	defer func() {
		ps.mu.Lock()
		ps.active[url]--
		ps.mu.Unlock()
	}()

	if failing {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("no page at %s", url)
	}
	return doc, nil
}

func (ps *pageSource) callCount(url string) int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.calls[url]
}

func (ps *pageSource) totalCalls() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	total := 0
	for _, n := range ps.calls {
		total += n
	}
	return total
}

// addBookChain seeds a chain of pages under /books, pageSize resources per
// page, with ids "1".."total" and next links between pages.
func (ps *pageSource) addBookChain(pageSize, total int) {
	id := 1
	page := 1
	for id <= total || page == 1 {
		url := bookPageURL(page)
		next := ""
		var ids []string
		for len(ids) < pageSize && id <= total {
			ids = append(ids, fmt.Sprintf("%d", id))
			id++
		}
		if id <= total {
			next = bookPageURL(page + 1)
		}
		ps.add(url, makePage(next, ids...))
		page++
	}
}

func bookPageURL(page int) string {
	if page == 1 {
		return "/books"
	}
	return fmt.Sprintf("/books?page=%d", page)
}

// makePage builds a collection document of books resources with the given
// ids and an optional next link.
func makePage(next string, ids ...string) *document.Document {
	items := make([]*document.Resource, 0, len(ids))
	for _, id := range ids {
		items = append(items, &document.Resource{Type: "books", ID: id})
	}
	doc := &document.Document{
		Data: document.PrimaryData{Present: true, Items: items},
	}
	if next != "" {
		doc.Links = document.Links{"next": next}
	}
	return doc
}

// makeErrorPage builds a document carrying errors and no data.
func makeErrorPage(title string) *document.Document {
	return &document.Document{
		Errors: []document.ErrorObject{{Status: "500", Title: title}},
	}
}

// relResource builds a resource whose named relationships carry related
// links.
func relResource(typ, id string, related map[string]string) *document.Resource {
	res := &document.Resource{Type: typ, ID: id}
	if len(related) > 0 {
		res.Relationships = make(map[string]document.Relationship, len(related))
		for field, url := range related {
			res.Relationships[field] = document.Relationship{
				Links: document.Links{"related": url},
			}
		}
	}
	return res
}

// singlePage wraps resources into one next-less collection document.
func singlePage(items ...*document.Resource) *document.Document {
	return &document.Document{
		Data: document.PrimaryData{Present: true, Items: items},
	}
}

func mustNext(t *testing.T, ctx context.Context, s *Sequence) *document.Resource {
	t.Helper()
	res, ok, err := s.Next(ctx)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if !ok {
		t.Fatalf("Next() ok = false, want element")
	}
	return res
}

func mustEnd(t *testing.T, ctx context.Context, s *Sequence) {
	t.Helper()
	res, ok, err := s.Next(ctx)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if ok {
		t.Fatalf("Next() = %v, want end of sequence", res)
	}
}

func expectFired(t *testing.T, fired chan string, url string) {
	t.Helper()
	select {
	case got := <-fired:
		if got != url {
			t.Fatalf("fetch fired for %q, want %q", got, url)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("fetch for %q never fired", url)
	}
}

func expectNoFire(t *testing.T, fired chan string) {
	t.Helper()
	select {
	case got := <-fired:
		t.Fatalf("unexpected fetch fired for %q", got)
	default:
	}
}
