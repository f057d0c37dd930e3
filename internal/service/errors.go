package service

import (
	"fmt"
	"net/http"
)

// Error is the API error taxonomy. Status picks the HTTP code, Message the
// envelope message, and Fields the per-field detail rendered under "errors".
type Error struct {
	Status  int
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func newValidationError(fields map[string]string) *Error {
	return &Error{
		Status:  http.StatusBadRequest,
		Message: "The given data was invalid.",
		Fields:  fields,
	}
}

func newConflictError(field, detail string) *Error {
	return &Error{
		Status:  http.StatusBadRequest,
		Message: "The given data was invalid.",
		Fields:  map[string]string{field: detail},
	}
}

func newNotFoundError(field, detail string) *Error {
	return &Error{
		Status:  http.StatusNotFound,
		Message: "Resource not found.",
		Fields:  map[string]string{field: detail},
	}
}

func newAuthError(detail string) *Error {
	return &Error{
		Status:  http.StatusUnauthorized,
		Message: "Unauthenticated.",
		Fields:  map[string]string{"auth": detail},
	}
}
