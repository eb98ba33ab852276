package drive

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard drive errors. Implementations wrap them with context; callers test
// with errors.Is.
var (
	// ErrNotFound indicates that no item exists at the requested path or id.
	ErrNotFound = errors.New("item not found")

	// ErrConflict indicates the service rejected a mutation because of a
	// concurrent modification or a transient state clash (HTTP 409).
	ErrConflict = errors.New("conflict")

	// ErrPartialContent indicates the service answered a whole-content
	// download with a partial body (HTTP 206).
	ErrPartialContent = errors.New("partial content response")

	// ErrNotSupported indicates the backend cannot perform the operation.
	ErrNotSupported = errors.New("operation not supported")

	// ErrInvalidRange indicates an upload chunk did not continue where the
	// session expected, or violated the chunk alignment rules.
	ErrInvalidRange = errors.New("invalid upload range")
)

// StatusError is a non-success HTTP response from the service.
//
// It matches ErrNotFound for 404, ErrConflict for 409, ErrPartialContent for
// 206 and ErrInvalidRange for 416 through errors.Is.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Is maps HTTP status codes onto the standard drive errors.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrConflict:
		return e.StatusCode == http.StatusConflict
	case ErrPartialContent:
		return e.StatusCode == http.StatusPartialContent
	case ErrInvalidRange:
		return e.StatusCode == http.StatusRequestedRangeNotSatisfiable
	}
	return false
}

// IsNotFound reports whether err means the item does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict reports whether err is a conflict response.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
