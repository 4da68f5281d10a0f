// Package auth authenticates inbound requests and scopes them to a tenant.
//
// A single Strategy is bound at process start (see the selector package)
// and every request passes through the Guard. The Guard skips routes that
// were registered with Public, otherwise it asks the strategy to
// authenticate the request. A strategy that accepts a request attaches an
// identity.Principal; the Guard then stores that principal and its tenant
// in the request context for downstream handlers and storage scoping.
//
// Failures are never rendered here. The Guard hands every error to the
// configured ErrorRenderer, which decides how much detail the caller sees.
package auth
