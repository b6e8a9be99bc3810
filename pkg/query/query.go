// Package query builds the filter, sort, and page parameters appended to
// collection URLs, following the square-bracket convention of JSON:API
// style servers (filter[field]=value, sort=-created, page[size]=25).
// The pagination engine treats the resulting URLs as opaque.
package query

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Filter maps attribute names to the exact value resources must carry.
type Filter map[string]string

// Params collects the query parameters of one collection request.
type Params struct {
	// Filter restricts the collection by attribute equality.
	Filter Filter

	// Sort lists sort fields in priority order; a leading '-' requests
	// descending order.
	Sort []string

	// PageSize asks the server for pages of this many resources.
	// Zero keeps the server default.
	PageSize int
}

// IsZero reports whether no parameter is set.
func (p Params) IsZero() bool {
	return len(p.Filter) == 0 && len(p.Sort) == 0 && p.PageSize == 0
}

// Values renders the parameters as URL query values. Filter keys render
// in sorted order so the same parameters always produce the same query
// string.
func (p Params) Values() url.Values {
	v := url.Values{}

	names := make([]string, 0, len(p.Filter))
	for name := range p.Filter {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v.Set("filter["+name+"]", p.Filter[name])
	}

	if len(p.Sort) > 0 {
		v.Set("sort", strings.Join(p.Sort, ","))
	}
	if p.PageSize > 0 {
		v.Set("page[size]", strconv.Itoa(p.PageSize))
	}
	return v
}

// Encode renders the parameters as a query-string fragment without the
// leading '?'.
func (p Params) Encode() string {
	return p.Values().Encode()
}

// Apply merges the parameters into rawurl, keeping any parameters the URL
// already carries. Parameters set here win on key collisions.
func (p Params) Apply(rawurl string) (string, error) {
	if p.IsZero() {
		return rawurl, nil
	}

	u, err := url.Parse(rawurl)
	if err != nil {
		return "", fmt.Errorf("parse collection url: %w", err)
	}

	q := u.Query()
	for key, vals := range p.Values() {
		q.Del(key)
		for _, val := range vals {
			q.Add(key, val)
		}
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}
