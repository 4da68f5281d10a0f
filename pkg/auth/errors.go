package auth

import (
	"errors"
	"net/http"
)

// Kind classifies client-facing authentication failures.
type Kind int

const (
	// KindAuthenticationFailed covers bad credentials, unknown tenants or
	// roles, and tenant mismatches.
	KindAuthenticationFailed Kind = iota

	// KindNotImplemented is returned by strategies whose verification step
	// does not exist yet. It always denies.
	KindNotImplemented

	// KindUnauthorized means no usable credential was presented.
	KindUnauthorized

	// KindRateLimited means the tenant exceeded its request budget.
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindAuthenticationFailed:
		return "authentication_failed"
	case KindNotImplemented:
		return "not_implemented"
	case KindUnauthorized:
		return "unauthorized"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// Sentinel errors.
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("access denied")
	ErrTooManyRequests = errors.New("rate limit exceeded")
	ErrNotImplemented  = errors.New("token verification is not implemented")
)

// Error is a client-facing authentication failure carrying an HTTP status.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus maps the error kind to a response status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusForbidden
	}
}

// Failed returns a KindAuthenticationFailed error.
func Failed(msg string, cause error) *Error {
	return &Error{Kind: KindAuthenticationFailed, Message: msg, Err: cause}
}

// NotImplemented returns a KindNotImplemented error.
func NotImplemented(msg string) *Error {
	return &Error{Kind: KindNotImplemented, Message: msg, Err: ErrNotImplemented}
}

// Unauthorized returns a KindUnauthorized error.
func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg, Err: ErrUnauthenticated}
}

// RateLimited returns a KindRateLimited error.
func RateLimited(cause error) *Error {
	return &Error{Kind: KindRateLimited, Message: "too many requests", Err: cause}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}
