package store

import (
	"errors"
	"fmt"
	"net/http"
)

// TransportError is returned when the store could not be reached at all.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: transport error: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPStatusError is returned for any response other than 200 OK.
type HTTPStatusError struct {
	Op         string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Op, e.URL, e.StatusCode, e.Body)
}

// MalformedPayloadError is returned when a body is not JSON or does not have
// the expected tree shape.
type MalformedPayloadError struct {
	Reason string
	Err    error
}

func (e *MalformedPayloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed payload: %s: %v", e.Reason, e.Err)
	}
	return "malformed payload: " + e.Reason
}

func (e *MalformedPayloadError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a 404 from the store, i.e. the key is
// already gone.
func IsNotFound(err error) bool {
	var statusErr *HTTPStatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}

// IsMalformed reports whether err is a *MalformedPayloadError.
func IsMalformed(err error) bool {
	var malformed *MalformedPayloadError
	return errors.As(err, &malformed)
}
