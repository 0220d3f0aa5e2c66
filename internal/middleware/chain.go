package middleware

import "net/http"

// Chain applies multiple middleware in order (first to last).
//
// Example:
//
//	handler := Chain(mux,
//	    Recover,          // Executes first
//	    RequestID,        // Executes second
//	    Authenticate(a),  // Executes last, closest to mux
//	)
func Chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	// Wrap in reverse so the first middleware is outermost
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
