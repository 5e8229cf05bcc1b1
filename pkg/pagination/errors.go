package pagination

import (
	"errors"
	"fmt"

	"github.com/MyGameListPlaceholder/my-game-list-backend/pkg/catalog"
)

// ErrEmptyQuery is wrapped by QueryError when no query text was supplied.
var ErrEmptyQuery = errors.New("query must not be empty")

// QueryError is returned before any network call when the query is unusable.
type QueryError struct {
	Kind catalog.ResourceKind
	Err  error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	return fmt.Sprintf("invalid %s query: %v", e.Kind, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// TransportError reports a failed call inside a batch. When several calls of
// one batch fail, it describes the one with the lowest offset.
type TransportError struct {
	Kind   catalog.ResourceKind
	Offset int

	// StatusCode is the HTTP status of the failed call, 0 if no response
	// was received.
	StatusCode int

	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s at offset %d failed (status %d): %v", e.Kind, e.Offset, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s at offset %d failed: %v", e.Kind, e.Offset, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// statusCoder is implemented by fetcher errors that carry an HTTP status.
type statusCoder interface {
	HTTPStatus() int
}

func newTransportError(kind catalog.ResourceKind, offset int, err error) *TransportError {
	te := &TransportError{Kind: kind, Offset: offset, Err: err}
	var sc statusCoder
	if errors.As(err, &sc) {
		te.StatusCode = sc.HTTPStatus()
	}
	return te
}
