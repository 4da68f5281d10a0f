package auth

import "net/http"

// publicHandler marks a handler as exempt from authentication.
type publicHandler struct {
	http.Handler
}

// Public marks h as a public route. The Guard never invokes the strategy
// for requests routed to a public handler.
func Public(h http.Handler) http.Handler {
	if IsPublic(h) {
		return h
	}
	return publicHandler{Handler: h}
}

// PublicFunc is Public for a handler function.
func PublicFunc(f func(http.ResponseWriter, *http.Request)) http.Handler {
	return Public(http.HandlerFunc(f))
}

// IsPublic reports whether h was registered with Public.
func IsPublic(h http.Handler) bool {
	_, ok := h.(publicHandler)
	return ok
}

// RouteResolver finds the handler a request will be dispatched to.
// *http.ServeMux satisfies it.
type RouteResolver interface {
	Handler(r *http.Request) (h http.Handler, pattern string)
}
