package remote

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a resolution failure
type ErrorKind string

const (
	// KindInvalidURL means the configured URL cannot be used for a request
	KindInvalidURL ErrorKind = "invalid_url"

	// KindTransportFailure covers DNS, connection, timeout and read errors
	KindTransportFailure ErrorKind = "transport_failure"

	// KindUnexpectedStatus means the endpoint answered with a status other than 200
	KindUnexpectedStatus ErrorKind = "unexpected_status"

	// KindMalformedResponse means the body was empty or not JSON
	KindMalformedResponse ErrorKind = "malformed_response"

	// KindMissingAccessToken means the token endpoint answered without access_token
	KindMissingAccessToken ErrorKind = "missing_access_token"

	// KindInvalidConfig means the claim configuration is incomplete
	KindInvalidConfig ErrorKind = "invalid_config"
)

// Sentinels for errors.Is matching by kind
var (
	ErrInvalidURL         = &Error{Kind: KindInvalidURL}
	ErrTransportFailure   = &Error{Kind: KindTransportFailure}
	ErrUnexpectedStatus   = &Error{Kind: KindUnexpectedStatus}
	ErrMalformedResponse  = &Error{Kind: KindMalformedResponse}
	ErrMissingAccessToken = &Error{Kind: KindMissingAccessToken}
	ErrInvalidConfig      = &Error{Kind: KindInvalidConfig}
)

// Error is the single error type of a failed resolution. It always carries
// the configured target URL so operators can tell which endpoint failed.
type Error struct {
	Kind ErrorKind

	// URL is the configured base URL of the failing call
	URL string

	// StatusCode is set for KindUnexpectedStatus
	StatusCode int

	Message string

	// Err is the underlying cause, if any
	Err error
}

func newError(kind ErrorKind, url, message string, cause error) *Error {
	return &Error{Kind: kind, URL: url, Message: message, Err: cause}
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	msg = fmt.Sprintf("%s - configured URL: %s", msg, e.URL)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none
func KindOf(err error) ErrorKind {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.Kind
	}
	return ""
}
