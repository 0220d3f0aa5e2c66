package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/parallelhq/parallel/internal/ctxkeys"
)

// RateLimitAuth limits auth endpoints to 5 requests per 15 minutes per IP.
func RateLimitAuth() func(http.HandlerFunc) http.HandlerFunc {
	return limit(5, 15*time.Minute, keyByClientIP)
}

// RateLimitAI limits the AI proxy routes to 20 requests per minute per IP and endpoint.
func RateLimitAI() func(http.HandlerFunc) http.HandlerFunc {
	return limit(20, time.Minute, keyByClientIP, httprate.KeyByEndpoint)
}

func limit(requests int, window time.Duration, keys ...httprate.KeyFunc) func(http.HandlerFunc) http.HandlerFunc {
	limiter := httprate.Limit(requests, window,
		httprate.WithKeyFuncs(keys...),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			slog.Warn("rate limit exceeded",
				"ip", ClientIP(r),
				"path", r.URL.Path,
			)
			writeJSONError(w, http.StatusTooManyRequests, "too many requests, please try again later")
		}),
	)

	return func(next http.HandlerFunc) http.HandlerFunc {
		return limiter(next).ServeHTTP
	}
}

func keyByClientIP(r *http.Request) (string, error) {
	return ClientIP(r), nil
}

// ClientIP returns the address resolved by RealIP, or the direct peer when
// RealIP did not run.
func ClientIP(r *http.Request) string {
	if ip := ctxkeys.ClientIP(r.Context()); ip != "" {
		return ip
	}
	return peerIP(r)
}
