// Package engine implements the slot lifecycle state machine, the
// dynamic field schema with URL-derived fields, per-owner sequence
// allocation and the append-only change audit log. Every operation runs
// inside a single storage transaction obtained from its Store; the HTTP
// layer is a thin collaborator that supplies the authenticated
// principal and translates the error taxonomy below into status codes.
package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when the slot, allocation or field config the
// operation targets does not exist. Handlers should translate this into
// an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own, or lacks the role the operation requires.
// Handlers should translate this into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an operation would perform an illegal
// state transition, such as approving a slot that is not pending or
// filling a slot that is not empty. Handlers should translate this into
// an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates per-field validation failures. When it is
// returned, no mutation has occurred.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AsValidation unwraps err into a *ValidationError when possible.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
