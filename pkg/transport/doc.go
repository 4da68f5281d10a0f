// Package transport holds the HTTP plumbing shared by every route: the
// security exception translator that turns errors into safe JSON
// responses, and the request-id, recovery and access-log middleware.
//
// The translator is the only place where error detail is exposed to
// clients. Outside the development environment it replaces messages with
// generic text; the full error is always logged.
package transport
