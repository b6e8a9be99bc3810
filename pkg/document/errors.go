package document

import (
	"fmt"
	"strings"
)

// Error reports a structurally broken or error-bearing document: the body
// parsed as JSON but cannot be consumed as resource data. Transport-level
// failures (network, HTTP status, undecodable JSON) are not Errors; they
// belong to the fetcher.
type Error struct {
	// Errors holds the document's error objects, when the server answered
	// with an errors member.
	Errors []ErrorObject

	// Reason describes a structural violation, when the document carried
	// no errors member but still cannot be consumed.
	Reason string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Errors) > 0 {
		parts := make([]string, 0, len(e.Errors))
		for _, eo := range e.Errors {
			parts = append(parts, eo.String())
		}
		return fmt.Sprintf("document error: %s", strings.Join(parts, "; "))
	}
	if e.Reason != "" {
		return fmt.Sprintf("malformed document: %s", e.Reason)
	}
	return "malformed document"
}

// String renders one error object compactly for log and error output.
func (eo ErrorObject) String() string {
	var b strings.Builder
	if eo.Status != "" {
		b.WriteString(eo.Status)
	}
	if eo.Code != "" {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteByte('[')
		b.WriteString(eo.Code)
		b.WriteByte(']')
	}
	title := eo.Title
	if title == "" {
		title = eo.Detail
	}
	if title != "" {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(title)
	}
	if b.Len() == 0 {
		return "unspecified error"
	}
	return b.String()
}
