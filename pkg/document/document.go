// Package document defines the wire types for JSON:API-style documents:
// one fetched page body carrying resource data, navigational links, or
// errors, plus the resource records inside it.
package document

import (
	"encoding/json"
)

// Document is the parsed body of one page response. Exactly one of the
// data or errors members must be present; a document carrying neither is
// a protocol violation surfaced by Resources.
type Document struct {
	// Data is the primary data: a single resource, an ordered list of
	// resources, or JSON null.
	Data PrimaryData `json:"data"`

	// Links maps relation names to URLs. The "next" relation chains pages.
	Links Links `json:"links,omitempty"`

	// Errors is the ordered list of error objects, when the server
	// answered with errors instead of data.
	Errors []ErrorObject `json:"errors,omitempty"`

	// Meta carries non-standard information, opaque to this package.
	Meta json.RawMessage `json:"meta,omitempty"`
}

// Resources unwraps the document into its resource records.
// It fails with *Error when the document carries errors, or when it
// carries neither data nor errors. A null data member unwraps to an
// empty slice.
func (d *Document) Resources() ([]*Resource, error) {
	if len(d.Errors) > 0 {
		return nil, &Error{Errors: d.Errors}
	}
	if !d.Data.Present {
		return nil, &Error{Reason: "document carries neither data nor errors"}
	}
	return d.Data.Items, nil
}

// One unwraps a single-resource document, as returned by a fetch-by-id
// endpoint. It fails with *Error when the document carries errors, has no
// data, or holds anything other than exactly one resource.
func (d *Document) One() (*Resource, error) {
	items, err := d.Resources()
	if err != nil {
		return nil, err
	}
	if d.Data.Null || len(items) == 0 {
		return nil, &Error{Reason: "document carries no resource"}
	}
	if !d.Data.Singular || len(items) > 1 {
		return nil, &Error{Reason: "document carries a collection, not a single resource"}
	}
	return items[0], nil
}

// NextLink returns the document's next-page URL, or "" when the chain ends.
func (d *Document) NextLink() string {
	return d.Links["next"]
}

// PrimaryData holds the polymorphic data member of a document. The JSON
// value may be a single resource object, an array of resource objects, or
// null; all three decode into the same shape here.
type PrimaryData struct {
	// Present reports whether the data key existed in the document at all.
	Present bool

	// Singular reports whether the value was a single object (or null)
	// rather than an array.
	Singular bool

	// Null reports whether the value was JSON null.
	Null bool

	// Items holds the decoded resources, in document order. Empty for
	// null data and for empty arrays.
	Items []*Resource
}

// UnmarshalJSON decodes a single resource, a resource array, or null.
// It is only invoked when the data key is present, which is what makes
// Present reliable.
func (p *PrimaryData) UnmarshalJSON(b []byte) error {
	p.Present = true

	trimmed := trimSpace(b)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		p.Singular = true
		p.Null = true
		return nil
	}

	if trimmed[0] == '[' {
		return json.Unmarshal(b, &p.Items)
	}

	p.Singular = true
	var res Resource
	if err := json.Unmarshal(b, &res); err != nil {
		return err
	}
	p.Items = []*Resource{&res}
	return nil
}

// MarshalJSON re-encodes the data member in its original arity.
func (p PrimaryData) MarshalJSON() ([]byte, error) {
	if p.Null {
		return []byte("null"), nil
	}
	if p.Singular {
		if len(p.Items) == 0 {
			return []byte("null"), nil
		}
		return json.Marshal(p.Items[0])
	}
	return json.Marshal(p.Items)
}

// Resource is one domain entity: identity, opaque attributes, and the
// links to its related collections. Resources are immutable once decoded;
// ownership passes to whoever pulled them out of a sequence.
type Resource struct {
	Type          string                  `json:"type"`
	ID            string                  `json:"id"`
	Attributes    Attributes              `json:"attributes,omitempty"`
	Relationships map[string]Relationship `json:"relationships,omitempty"`
	Links         Links                   `json:"links,omitempty"`
	Meta          json.RawMessage         `json:"meta,omitempty"`
}

// RelatedLink returns the related-collection URL for a relationship field.
// The second return is false when the resource has no such relationship or
// the relationship lacks a related link.
func (r *Resource) RelatedLink(field string) (string, bool) {
	rel, ok := r.Relationships[field]
	if !ok {
		return "", false
	}
	url, ok := rel.Links["related"]
	if !ok || url == "" {
		return "", false
	}
	return url, true
}

// Relationship describes one relationship entry on a resource: the links
// to the relationship's own collection and, optionally, resource linkage.
type Relationship struct {
	Links Links           `json:"links,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Meta  json.RawMessage `json:"meta,omitempty"`
}

// Links maps relation names to URLs. On the wire a link value is either a
// bare URL string or an object with an href member; both decode to the
// plain URL. Null links are dropped.
type Links map[string]string

// UnmarshalJSON accepts both string links and {href: ...} link objects.
func (l *Links) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	out := make(Links, len(raw))
	for name, val := range raw {
		trimmed := trimSpace(val)
		if len(trimmed) == 0 || string(trimmed) == "null" {
			continue
		}
		if trimmed[0] == '{' {
			var obj struct {
				Href string `json:"href"`
			}
			if err := json.Unmarshal(val, &obj); err != nil {
				return err
			}
			out[name] = obj.Href
			continue
		}
		var s string
		if err := json.Unmarshal(val, &s); err != nil {
			return err
		}
		out[name] = s
	}
	*l = out
	return nil
}

// ErrorObject is one error entry from a document's errors member.
type ErrorObject struct {
	Status string `json:"status,omitempty"`
	Code   string `json:"code,omitempty"`
	Title  string `json:"title,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// trimSpace strips leading/trailing JSON whitespace without allocating.
func trimSpace(b []byte) []byte {
	start := 0
	for start < len(b) && isJSONSpace(b[start]) {
		start++
	}
	end := len(b)
	for end > start && isJSONSpace(b[end-1]) {
		end--
	}
	return b[start:end]
}

func isJSONSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
