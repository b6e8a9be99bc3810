package stream

import "fmt"

// MissingLinkError reports a resource that lacks the related link for a
// relationship field requested for expansion. It fails only that field's
// nested sequence; an empty related collection is a success, a missing
// link is not.
type MissingLinkError struct {
	// Type and ID identify the resource missing the link.
	Type string
	ID   string

	// Field is the relationship name that could not be resolved.
	Field string
}

// Error implements the error interface.
func (e *MissingLinkError) Error() string {
	return fmt.Sprintf("resource %s/%s has no related link for relationship %q", e.Type, e.ID, e.Field)
}
