package httpx

import (
	"net/http"
	"strings"

	"github.com/codigos/codigos/internal/common/apperrors"
)

// Error represents an HTTP error response with status code and description.
// Messages holds individual validation failures, if any.
type Error struct {
	Description string
	Messages    []string
	StatusCode  int
}

type errorRsp struct {
	StatusCode int    `json:"statusCode"`
	Message    any    `json:"message"`
	Error      string `json:"error"`
}

// Send writes the error response to the provided ResponseWriter.
// If the writer is nil, no action is taken.
func (e *Error) Send(w http.ResponseWriter) {
	if w == nil {
		return
	}
	rsp := &errorRsp{
		StatusCode: e.StatusCode,
		Message:    e.Description,
		Error:      http.StatusText(e.StatusCode),
	}
	if len(e.Messages) > 1 {
		rsp.Message = e.Messages
	}
	rspJson, err := json.Marshal(rsp)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Unable to parse error"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	w.Write(rspJson)
}

// Error returns the error description.
func (e *Error) Error() string {
	return e.Description
}

// Is reports whether the error matches the target error.
func (current Error) Is(other error) bool {
	return current.Error() == other.Error()
}

// SendError sends an application error as an HTTP error response.
// If the error is nil, no action is taken.
func SendError(w http.ResponseWriter, err apperrors.Error) {
	if err == nil {
		return
	}
	statusCode := err.StatusCode()
	if statusCode == 0 {
		statusCode = http.StatusInternalServerError
	}
	httperror := &Error{
		StatusCode:  statusCode,
		Description: err.ErrorAll(),
	}
	httperror.Send(w)
}

func newError(status int, def string, msg []string) *Error {
	e := &Error{StatusCode: status, Description: def}
	if len(msg) > 0 {
		e.Description = strings.Join(msg, "; ")
		e.Messages = msg
	}
	return e
}

// ErrReqMethodNotSupported returns an error for unsupported HTTP methods.
func ErrReqMethodNotSupported() *Error {
	return newError(http.StatusMethodNotAllowed, "request method not supported", nil)
}

// ErrUnableToParseReqData returns an error when request data cannot be parsed.
func ErrUnableToParseReqData() *Error {
	return newError(http.StatusBadRequest, "unable to parse request data", nil)
}

// ErrApplicationError returns an error for application-level failures.
// If no message is provided, a default message is used.
func ErrApplicationError(msg ...string) *Error {
	return newError(http.StatusInternalServerError, "unable to process request", msg)
}

// ErrUnAuthorized returns an error for unauthorized requests.
// If no message is provided, a default message is used.
func ErrUnAuthorized(msg ...string) *Error {
	return newError(http.StatusUnauthorized, "unable to authenticate request", msg)
}

// ErrForbidden returns an error for authenticated requests lacking a
// permission.
func ErrForbidden(msg ...string) *Error {
	return newError(http.StatusForbidden, "insufficient permissions", msg)
}

// ErrNotFound returns an error for unknown resources.
func ErrNotFound(msg ...string) *Error {
	return newError(http.StatusNotFound, "resource not found", msg)
}

// ErrInvalidRequest returns an error for invalid request data.
// Each message is reported separately to the client.
func ErrInvalidRequest(msg ...string) *Error {
	return newError(http.StatusBadRequest, "invalid request data or empty request values", msg)
}

// ErrRequestTimeout returns an error for request timeout.
func ErrRequestTimeout() *Error {
	return newError(http.StatusRequestTimeout, "request timed out", nil)
}
