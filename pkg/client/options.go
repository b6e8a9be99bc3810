package client

import (
	"github.com/hypermedia-labs/jsonapi-stream/pkg/query"
	"github.com/hypermedia-labs/jsonapi-stream/pkg/stream"
)

// Option adjusts one collection request made through All.
type Option func(*options)

type options struct {
	limit         int
	query         query.Params
	relationships []stream.RelationshipSpec
}

func defaultOptions() options {
	return options{limit: stream.Unlimited}
}

// WithLimit caps how many resources the sequence yields. The cap can be
// raised later through the sequence's AddMore.
func WithLimit(n int) Option {
	return func(o *options) {
		o.limit = n
	}
}

// WithFilter constrains the collection to resources whose named attribute
// matches the value. Repeated filters on the same name overwrite.
func WithFilter(name, value string) Option {
	return func(o *options) {
		if o.query.Filter == nil {
			o.query.Filter = query.Filter{}
		}
		o.query.Filter[name] = value
	}
}

// WithSort orders the collection by the given attribute names, in order.
// Prefix a name with "-" for descending.
func WithSort(fields ...string) Option {
	return func(o *options) {
		o.query.Sort = fields
	}
}

// WithPageSize asks the server for n resources per page. Servers may
// clamp it; the engine adapts to whatever page size actually comes back.
func WithPageSize(n int) Option {
	return func(o *options) {
		o.query.PageSize = n
	}
}

// WithRelationships declares the relationship fields Consume expands into
// nested sequences.
func WithRelationships(specs ...stream.RelationshipSpec) Option {
	return func(o *options) {
		o.relationships = append(o.relationships, specs...)
	}
}
