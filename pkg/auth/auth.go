package auth

import (
	"context"
	"net/http"

	"github.com/plantwise/plantwise/pkg/identity"
)

// Strategy authenticates a request and, on success, attaches the caller's
// principal to it.
//
// A strategy may report failure either by returning false or by returning
// an error. Returning false is a plain denial. Returning an error lets the
// strategy choose the status and message the caller receives (see Error).
// Returning true without attaching a principal is a programming error and
// is rendered as an internal failure.
type Strategy interface {
	Name() string
	Authenticate(ctx context.Context, req *Request) (bool, error)
}

// Request is the per-request scope handed to a Strategy. It carries the
// inbound HTTP request and the principal attached during authentication.
type Request struct {
	HTTP *http.Request

	principal *identity.Principal
}

// NewRequest wraps r for a single authentication pass.
func NewRequest(r *http.Request) *Request {
	return &Request{HTTP: r}
}

// Attach records p as the authenticated principal, replacing anything
// attached earlier. The principal is copied.
func (r *Request) Attach(p identity.Principal) {
	r.principal = p.Clone()
}

// Principal returns the attached principal, or nil.
func (r *Request) Principal() *identity.Principal {
	return r.principal
}
