package catalog

import (
	"errors"
	"fmt"
)

// Field-level decode failures, wrapped by DecodeError.
var (
	// ErrUnexpectedField is returned for a key the target record does not declare.
	ErrUnexpectedField = errors.New("unexpected field")

	// ErrMissingField is returned when a required field is absent or null.
	ErrMissingField = errors.New("missing required field")

	// ErrNotObject is returned when an item is not a JSON object.
	ErrNotObject = errors.New("item is not a JSON object")

	// ErrInvalidUTF8 is returned for a string value that is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("string is not valid UTF-8")
)

// UnknownResourceKindError is returned when a kind outside the four
// supported endpoints is requested.
type UnknownResourceKindError struct {
	Kind ResourceKind
}

// Error implements the error interface.
func (e *UnknownResourceKindError) Error() string {
	return fmt.Sprintf("unknown resource kind: %q", string(e.Kind))
}

// maxItemPreview bounds how much of the raw item Error() prints.
const maxItemPreview = 256

// DecodeError reports a raw item that could not be mapped onto its record.
type DecodeError struct {
	Kind ResourceKind

	// Index is the position of the offending item in the decoded slice.
	Index int

	// Item is the raw JSON of the offending item.
	Item []byte

	// Field is the dotted path of the offending field, if any.
	Field string

	Err error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	item := e.Item
	if len(item) > maxItemPreview {
		item = append(item[:maxItemPreview:maxItemPreview], "..."...)
	}
	if e.Field != "" {
		return fmt.Sprintf("decode %s item %d: field %q: %v: %s", e.Kind, e.Index, e.Field, e.Err, item)
	}
	return fmt.Sprintf("decode %s item %d: %v: %s", e.Kind, e.Index, e.Err, item)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// fieldError carries the failing field path up to Decode, which adds the
// kind, index and raw item.
type fieldError struct {
	field string
	err   error
}

func (e *fieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.field, e.err)
}

func (e *fieldError) Unwrap() error {
	return e.err
}

// nested prefixes the field path of err with parent.
func nested(parent string, err error) error {
	var fe *fieldError
	if errors.As(err, &fe) {
		return &fieldError{field: parent + "." + fe.field, err: fe.err}
	}
	return &fieldError{field: parent, err: err}
}
