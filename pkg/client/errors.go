package client

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is wrapped by New when the configuration is unusable.
var ErrInvalidConfig = errors.New("invalid client config")

// maxBodyPreview bounds how much of the response body Error() prints.
const maxBodyPreview = 200

// APIError represents a non-2xx answer from a catalogue endpoint.
type APIError struct {
	StatusCode int
	Status     string
	Class      ErrorClass
	Body       []byte
}

// Error implements the error interface.
func (e *APIError) Error() string {
	body := e.Body
	if len(body) > maxBodyPreview {
		body = body[:maxBodyPreview]
	}
	if len(body) == 0 {
		return fmt.Sprintf("IGDB %s error (status %d): %s", e.Class, e.StatusCode, e.Status)
	}
	return fmt.Sprintf("IGDB %s error (status %d): %s: %s", e.Class, e.StatusCode, e.Status, body)
}

// HTTPStatus returns the response status code.
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}
