// Package apperrors defines the chainable error type used across the client,
// the router and the mock backend. An Error carries an optional HTTP status
// code and any number of wrapped causes, and it stays compatible with
// errors.Is and errors.As.
package apperrors

// Error is an error that can be specialised, annotated and wrapped without
// losing its identity. Every method returns a new value; the receiver is
// never mutated.
type Error interface {
	error
	Unwrap() error

	New(msg string) Error                  // derive a new error from this one
	Msg(msg string) Error                  // replace the message, keep this as cause
	MsgErr(msg string, err ...error) Error // replace the message and attach causes
	Err(err ...error) Error                // attach causes, keep the message
	SetExpandError(bool) Error             // ErrorAll includes wrapped causes
	SetStatusCode(int) Error
	StatusCode() int
	ErrorAll() string
	UnwrapAll() []error
}
