package transport

import (
	"fmt"
	"net/http"
)

// Recovery returns middleware that catches panics in the handler and
// renders them as server errors. The server continues to accept new
// requests after a panic is recovered.
func Recovery(render func(http.ResponseWriter, *http.Request, error)) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					render(w, r, fmt.Errorf("panic: %v", rec))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
