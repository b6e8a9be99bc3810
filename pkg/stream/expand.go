package stream

import (
	"github.com/hypermedia-labs/jsonapi-stream/pkg/document"
)

// RelationshipSpec declares one relationship field to expand into a
// nested sequence when the parent sequence is consumed.
type RelationshipSpec struct {
	// Field is the relationship name on the resource.
	Field string

	// Limit caps the nested sequence. Zero or negative means unlimited.
	Limit int

	// Relationships are expanded on the related resources in turn, at
	// arbitrary depth.
	Relationships []RelationshipSpec
}

// Rel builds a RelationshipSpec for field with optional nested expansions.
func Rel(field string, nested ...RelationshipSpec) RelationshipSpec {
	return RelationshipSpec{Field: field, Relationships: nested}
}

// expand resolves the sequence's relationship specs against one resource,
// constructing a fresh nested sequence per requested field over that
// field's related link. Construction fetches nothing. A resource without
// the expected link gets a failed placeholder for that field only, so
// sibling fields and other resources still resolve.
func (s *Sequence) expand(res *document.Resource) Relationships {
	if len(s.relSpecs) == 0 {
		return nil
	}

	rels := make(Relationships, len(s.relSpecs))
	for _, spec := range s.relSpecs {
		link, ok := res.RelatedLink(spec.Field)
		if !ok {
			s.log.Debug().
				Str("type", res.Type).
				Str("id", res.ID).
				Str("field", spec.Field).
				Msg("Relationship link missing")
			rels[spec.Field] = NewFailed(&MissingLinkError{
				Type:  res.Type,
				ID:    res.ID,
				Field: spec.Field,
			})
			continue
		}

		limit := spec.Limit
		if limit <= 0 {
			limit = Unlimited
		}
		rels[spec.Field] = New(Config{
			Fetch:         s.fetch,
			StartURL:      link,
			Limit:         limit,
			Relationships: spec.Relationships,
			Logger:        s.log.With().Str("relationship", spec.Field).Logger(),
		})
	}
	return rels
}
