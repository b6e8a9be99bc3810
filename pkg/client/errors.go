package client

import "fmt"

// UnknownTypeError reports a resource type the root link table does not
// name. It surfaces before any collection fetch.
type UnknownTypeError struct {
	Type string
}

// Error implements the error interface.
func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("no link for resource type %q in root document", e.Type)
}
