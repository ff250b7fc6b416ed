package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrSessionExpired    = errors.New("session expired")
	ErrMalformedResponse = errors.New("malformed response")
	ErrNoSession         = errors.New("no session")
)

// APIError is a non-2xx response. Detail comes from an RFC 7807 body when
// the server sent one, otherwise from the raw body.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Type       string
	Title      string
	Detail     string
}

func (e *APIError) Error() string {
	detail := e.Detail
	if detail == "" {
		detail = e.Title
	}

	if detail == "" {
		detail = http.StatusText(e.StatusCode)
	}

	return fmt.Sprintf("%s %s: %d: %s", e.Method, e.Path, e.StatusCode, detail)
}

// Unauthorized reports whether the response ended the session.
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

func IsAPIError(err error, statusCode int) bool {
	var apiErr *APIError

	return errors.As(err, &apiErr) && apiErr.StatusCode == statusCode
}
