package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/models"
)

// Kind classifies a failure so callers can decide between retrying and fixing input.
type Kind string

const (
	// Auth
	KindInvalidCredentials Kind = "invalid_credentials"
	KindMalformed          Kind = "malformed"
	KindAlreadyExists      Kind = "already_exists"

	// Fetch and mutation
	KindNotFound          Kind = "not_found"
	KindUnauthorized      Kind = "unauthorized"
	KindServerUnavailable Kind = "server_unavailable"
	KindValidationFailed  Kind = "validation_failed"
	KindUploadFailed      Kind = "upload_failed"
	KindAlreadyEnrolled   Kind = "already_enrolled"

	// Preview
	KindUnreachable  Kind = "unreachable"
	KindRenderFailed Kind = "render_failed"
	KindUnsupported  Kind = "unsupported"
)

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials}
	ErrMalformed          = &Error{Kind: KindMalformed}
	ErrAlreadyExists      = &Error{Kind: KindAlreadyExists}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized}
	ErrServerUnavailable  = &Error{Kind: KindServerUnavailable}
	ErrValidationFailed   = &Error{Kind: KindValidationFailed}
	ErrUploadFailed       = &Error{Kind: KindUploadFailed}
	ErrAlreadyEnrolled    = &Error{Kind: KindAlreadyEnrolled}
	ErrUnreachable        = &Error{Kind: KindUnreachable}
	ErrRenderFailed       = &Error{Kind: KindRenderFailed}
	ErrUnsupported        = &Error{Kind: KindUnsupported}
)

// Error is the failure type returned across component boundaries.
type Error struct {
	Op     string
	Kind   Kind
	Status int
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := string(e.Kind)
	if e.Detail != "" {
		msg = e.Detail
	} else if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

// New builds an *Error.
func New(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// Newf builds an *Error with a formatted detail message.
func Newf(op string, kind Kind, format string, args ...any) *Error {
	return &Error{Op: op, Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Retryable reports whether repeating the same call could succeed without
// the user changing their input.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindServerUnavailable, KindUploadFailed, KindUnreachable:
		return true
	}
	return false
}

// FetchKind maps an HTTP status on a read to the fetch taxonomy.
func FetchKind(status int) Kind {
	switch {
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindUnauthorized
	default:
		return KindServerUnavailable
	}
}

// MutationKind maps an HTTP status on a create, update or delete.
func MutationKind(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindUnauthorized
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict:
		return KindAlreadyExists
	case status >= 400 && status < 500:
		return KindValidationFailed
	default:
		return KindServerUnavailable
	}
}

// UploadKind maps an HTTP status on a multipart upload. Anything the user can
// fix by editing the form is a validation failure; everything else is retryable.
func UploadKind(status int) Kind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindUnauthorized
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusUnsupportedMediaType:
		return KindValidationFailed
	default:
		return KindUploadFailed
	}
}

// AuthKind maps an HTTP status on a login attempt.
func AuthKind(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindInvalidCredentials
	case status >= 400 && status < 500:
		return KindValidationFailed
	default:
		return KindServerUnavailable
	}
}

// Hint returns a role-specific suggestion to show next to an auth failure.
func Hint(err error, role models.Role) string {
	switch KindOf(err) {
	case KindInvalidCredentials:
		if role == models.RoleAdmin {
			return "Invalid admin credentials. Please check your email and password."
		}
		return "Invalid login credentials. Please check your email and password, or register if you don't have an account."
	case KindServerUnavailable:
		return "Unable to reach the server. Please try again in a few moments."
	case KindMalformed:
		return "The server returned an unreadable session. Please log in again."
	case KindValidationFailed:
		return "Please enter a valid email address and password."
	case KindAlreadyExists:
		return "An account with this email already exists. Please try logging in instead."
	}
	return ""
}
