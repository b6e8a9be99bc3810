package cache

import (
	"net/url"
	"sort"
	"strings"
)

// Key identifies one cached page. Pages are keyed by their full request
// URL; the next links of a chain are opaque, so the URL is the complete
// identity of a page.
type Key struct {
	// URL is the page request URL.
	URL string
}

// NewKey builds a Key for a page URL.
func NewKey(rawurl string) Key {
	return Key{URL: rawurl}
}

// String generates a deterministic cache key string.
// Format: jsonapi:page:host/path?query with the query keys sorted, so the
// same page always maps to the same Redis key regardless of parameter
// order.
//
// Example:
//
//	jsonapi:page:api.example.org/books?filter%5Bgenre%5D=sf&page=2
func (k Key) String() string {
	parts := []string{"jsonapi", "page"}

	u, err := url.Parse(k.URL)
	if err != nil {
		// An unparseable URL still deserves a stable key.
		return strings.Join(append(parts, k.URL), ":")
	}

	loc := strings.ToLower(u.Host) + u.Path
	loc = strings.TrimSuffix(loc, "/")

	if u.RawQuery != "" {
		q := u.Query()
		keys := make([]string, 0, len(q))
		for key := range q {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		canonical := url.Values{}
		for _, key := range keys {
			for _, val := range q[key] {
				canonical.Add(key, val)
			}
		}
		loc += "?" + canonical.Encode()
	}

	return strings.Join(append(parts, loc), ":")
}
