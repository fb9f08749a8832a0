package httpclient

import (
	"errors"
	"net/http"

	"github.com/codigos/codigos/internal/common/apperrors"
)

var (
	ErrHTTPClient       apperrors.Error = apperrors.New("http client error").SetStatusCode(http.StatusBadGateway)
	ErrInvalidServerURL apperrors.Error = ErrHTTPClient.New("invalid server URL").SetStatusCode(http.StatusBadRequest)
	ErrRequestFailed    apperrors.Error = ErrHTTPClient.New("request failed")
	ErrMissingName      apperrors.Error = ErrHTTPClient.New("resource name is required").SetStatusCode(http.StatusBadRequest)
)

// HTTPError represents an error response from the server with HTTP status code and message.
type HTTPError struct {
	StatusCode int    // HTTP status code of the error
	Message    string // Error message extracted from the response body
}

// Error implements the error interface for HTTPError.
func (e *HTTPError) Error() string {
	return e.Message
}

// StatusCode returns the HTTP status carried by err, or 0 when err did not
// come from a server response.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// IsUnauthorized reports whether err is a 401 response.
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}
