package backend

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when the backend has no session with the
// requested id.
var ErrSessionNotFound = errors.New("session not found")

// APIError is a non-2xx backend response. Message carries the backend's
// {"error": ...} field when present, otherwise the raw body.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.Status)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Message)
}
