package apihttp

import (
	"errors"
	"net/http"
)

// Kind tags an API failure. Handlers return tagged errors instead of
// panicking or writing status codes themselves; the router maps each kind
// to its status deterministically.
type Kind string

const (
	KindBadRequest      Kind = "bad_request"
	KindPayloadTooLarge Kind = "payload_too_large"
	KindNotFound        Kind = "not_found"
	KindInternal        Kind = "internal"
)

func (k Kind) status() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is the tagged result an API handler returns on failure.
// Detail carries parser/validator output verbatim; Message is stable.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`

	cause error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return string(e.Kind) + ": " + e.Message + ": " + e.Detail
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.cause }

func BadRequest(message, detail string) *Error {
	return &Error{Kind: KindBadRequest, Message: message, Detail: detail}
}

func PayloadTooLarge(detail string) *Error {
	return &Error{Kind: KindPayloadTooLarge, Message: "request body too large", Detail: detail}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Internal hides the cause from the caller; the original error only goes
// to the log.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: "internal server error", cause: cause}
}

// FromBodyError classifies a body read/parse failure: an exceeded
// MaxBytesReader cap becomes payload_too_large, anything else is a
// bad_request. The parser's own message rides along as detail.
func FromBodyError(err error) *Error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return PayloadTooLarge(mbe.Error())
	}
	return BadRequest("malformed request body", err.Error())
}
