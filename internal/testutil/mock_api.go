// Package testutil provides a scriptable JSON:API mock server for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
)

// ContentType is the JSON:API media type the mock serves.
const ContentType = "application/vnd.api+json"

// Resource describes one resource object in a scripted page.
type Resource struct {
	Type       string
	ID         string
	Attributes map[string]any

	// Related maps relationship field names to their related-collection
	// URLs.
	Related map[string]string
}

// Budget configures the X-RateLimit-* headers the mock attaches to every
// response once SetBudget is called.
type Budget struct {
	Remaining    int
	ResetSeconds int
}

// MockAPI is a configurable JSON:API server. Handlers are keyed by
// path, or path?query for pages addressed through query parameters.
// Every request is counted per key, and the peak number of in-flight
// requests is tracked per key and across the server.
type MockAPI struct {
	server *httptest.Server

	mu          sync.Mutex
	handlers    map[string]http.HandlerFunc
	requests    map[string]int
	active      map[string]int
	peak        map[string]int
	activeTotal int
	peakTotal   int
	conditional int
	lastHeader  http.Header
	budget      *Budget
}

// NewMockAPI starts a new mock server. Callers must Close it.
func NewMockAPI() *MockAPI {
	m := &MockAPI{
		handlers: make(map[string]http.HandlerFunc),
		requests: make(map[string]int),
		active:   make(map[string]int),
		peak:     make(map[string]int),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.dispatch))
	return m
}

// URL returns the mock server's base URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Abs makes a path absolute against the mock server's base URL.
func (m *MockAPI) Abs(path string) string {
	return m.server.URL + path
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

func (m *MockAPI) dispatch(w http.ResponseWriter, r *http.Request) {
	key := requestKey(r)

	m.mu.Lock()
	m.requests[key]++
	m.active[key]++
	if m.active[key] > m.peak[key] {
		m.peak[key] = m.active[key]
	}
	m.activeTotal++
	if m.activeTotal > m.peakTotal {
		m.peakTotal = m.activeTotal
	}
	if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
		m.conditional++
	}
	m.lastHeader = r.Header.Clone()
	handler := m.handlers[key]
	budget := m.budget
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.active[key]--
		m.activeTotal--
		m.mu.Unlock()
	}()

	if budget != nil {
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(budget.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.Itoa(budget.ResetSeconds))
	}

	if handler == nil {
		w.Header().Set("Content-Type", ContentType)
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, ErrorsBody("404", "Not Found"))
		return
	}

	handler(w, r)
}

// requestKey identifies a request the way handlers are registered:
// the path alone, or path?query when a query string is present.
func requestKey(r *http.Request) string {
	if r.URL.RawQuery == "" {
		return r.URL.Path
	}
	return r.URL.Path + "?" + r.URL.RawQuery
}

// SetHandler registers a custom handler for a key.
func (m *MockAPI) SetHandler(key string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[key] = handler
}

// SetPage registers a 200 response serving body as a JSON:API document.
func (m *MockAPI) SetPage(key, body string) {
	m.SetHandler(key, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", ContentType)
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, body)
	})
}

// SetRoot registers the root link table at "/". Hrefs are served as
// given; clients resolve relative ones against their base URL.
func (m *MockAPI) SetRoot(links map[string]string) {
	m.SetPage("/", RootBody(links))
}

// SetCollection scripts a paged collection at path: resources are split
// into pages of pageSize, each page linking to the next through a
// ?page=N query. A pageSize <= 0 serves everything on one page. The path
// must not itself carry a query string.
func (m *MockAPI) SetCollection(path string, pageSize int, resources ...Resource) {
	if pageSize <= 0 {
		pageSize = len(resources)
	}
	if len(resources) == 0 {
		m.SetPage(path, CollectionBody(""))
		return
	}

	for page, start := 1, 0; start < len(resources); page++ {
		end := start + pageSize
		if end > len(resources) {
			end = len(resources)
		}

		key := path
		if page > 1 {
			key = fmt.Sprintf("%s?page=%d", path, page)
		}
		next := ""
		if end < len(resources) {
			next = m.Abs(fmt.Sprintf("%s?page=%d", path, page+1))
		}

		m.SetPage(key, CollectionBody(next, resources[start:end]...))
		start = end
	}
}

// SetResource registers a single-resource document at key.
func (m *MockAPI) SetResource(key string, res Resource) {
	m.SetPage(key, SingleBody(res))
}

// SetErrors registers an errors document at key with the given HTTP
// status.
func (m *MockAPI) SetErrors(key string, status int, title string) {
	body := ErrorsBody(strconv.Itoa(status), title)
	m.SetHandler(key, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", ContentType)
		w.WriteHeader(status)
		io.WriteString(w, body)
	})
}

// SetBudget attaches X-RateLimit-Remaining and X-RateLimit-Reset headers
// to every subsequent response.
func (m *MockAPI) SetBudget(remaining, resetSeconds int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.budget = &Budget{Remaining: remaining, ResetSeconds: resetSeconds}
}

// RequestCount returns how many requests hit the key.
func (m *MockAPI) RequestCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[key]
}

// TotalRequests returns how many requests the server handled.
func (m *MockAPI) TotalRequests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.requests {
		total += n
	}
	return total
}

// MaxConcurrent returns the peak number of simultaneous in-flight
// requests observed for the key.
func (m *MockAPI) MaxConcurrent(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peak[key]
}

// MaxConcurrentTotal returns the peak number of simultaneous in-flight
// requests observed across all keys.
func (m *MockAPI) MaxConcurrentTotal() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peakTotal
}

// ConditionalRequests returns how many requests carried If-None-Match or
// If-Modified-Since headers.
func (m *MockAPI) ConditionalRequests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conditional
}

// LastHeader returns the headers of the most recent request.
func (m *MockAPI) LastHeader() http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastHeader
}

// CollectionBody renders a collection page document. An empty next omits
// the next link.
func CollectionBody(next string, resources ...Resource) string {
	items := make([]map[string]any, 0, len(resources))
	for _, res := range resources {
		items = append(items, res.toObject())
	}
	doc := map[string]any{"data": items}
	if next != "" {
		doc["links"] = map[string]string{"next": next}
	}
	return mustJSON(doc)
}

// SingleBody renders a single-resource document.
func SingleBody(res Resource) string {
	return mustJSON(map[string]any{"data": res.toObject()})
}

// RootBody renders a root document: null data plus a link table.
func RootBody(links map[string]string) string {
	return mustJSON(map[string]any{"data": nil, "links": links})
}

// ErrorsBody renders an errors document with one error object.
func ErrorsBody(status, title string) string {
	return mustJSON(map[string]any{
		"errors": []map[string]string{{"status": status, "title": title}},
	})
}

func (r Resource) toObject() map[string]any {
	obj := map[string]any{"type": r.Type, "id": r.ID}
	if len(r.Attributes) > 0 {
		obj["attributes"] = r.Attributes
	}
	if len(r.Related) > 0 {
		rels := make(map[string]any, len(r.Related))
		for field, href := range r.Related {
			rels[field] = map[string]any{
				"links": map[string]string{"related": href},
			}
		}
		obj["relationships"] = rels
	}
	return obj
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
